package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/issuedeck/issuedeck/internal/models"
	"github.com/issuedeck/issuedeck/internal/output"
	"github.com/issuedeck/issuedeck/internal/store"
	"github.com/issuedeck/issuedeck/internal/tracker"
	"github.com/issuedeck/issuedeck/internal/triage"
)

var (
	issueProject    string
	issueTitle      string
	issueDesc       string
	issuePriority   string
	issueStatus     string
	issueAssignee   string
	issueLabels     []string
	issueSearch     string
	issueNotes      string
	issueApplyFlags bool
)

var issueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Manage issues",
	Long:  "Create, list, update, and work issues through their lifecycle.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueListRun()
	},
}

var issueListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List issues",
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueListRun()
	},
}

var issueAddCmd = &cobra.Command{
	Use:   "add <project-id>",
	Short: "Add a new issue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueAddRun(args[0])
	},
}

var issueShowCmd = &cobra.Command{
	Use:   "show <issue-id>",
	Short: "Show issue details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueShowRun(args[0])
	},
}

var issueUpdateCmd = &cobra.Command{
	Use:   "update <issue-id>",
	Short: "Update an issue",
	Long:  "Update issue fields directly. Setting --status here bypasses the resolve/close transition rules.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueUpdateRun(args[0])
	},
}

var issueResolveCmd = &cobra.Command{
	Use:   "resolve <issue-id>",
	Short: "Resolve an issue",
	Long:  "Mark an Open or In Progress issue Resolved, with optional resolution notes.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueResolveRun(args[0])
	},
}

var issueCloseCmd = &cobra.Command{
	Use:   "close <issue-id>",
	Short: "Close a resolved issue",
	Long:  "Close a Resolved issue. Only the owner of the issue's project can close it.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueCloseRun(args[0])
	},
}

var issueDeleteCmd = &cobra.Command{
	Use:   "delete <issue-id>",
	Short: "Delete an issue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueDeleteRun(args[0])
	},
}

var issueTriageCmd = &cobra.Command{
	Use:   "triage <issue-id>",
	Short: "Classify an issue",
	Long:  "Suggest a category, priority, and analysis for an issue. With --apply, writes the suggestion back.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueTriageRun(args[0])
	},
}

var issueDuplicatesCmd = &cobra.Command{
	Use:   "duplicates <project-id> <text>",
	Short: "Find potential duplicates of the given text",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueDuplicatesRun(args[0], args[1])
	},
}

var issueAssignCmd = &cobra.Command{
	Use:   "assign <project-id>",
	Short: "Suggest an assignee by workload",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueAssignRun(args[0])
	},
}

func init() {
	issueAddCmd.Flags().StringVar(&issueTitle, "title", "", "Issue title (required)")
	issueAddCmd.Flags().StringVar(&issueDesc, "desc", "", "Issue description")
	issueAddCmd.Flags().StringVar(&issuePriority, "priority", "Medium", "Priority: Low, Medium, High, Critical")
	issueAddCmd.Flags().StringVar(&issueAssignee, "assign", "", "Assignee user ID")
	issueAddCmd.Flags().StringSliceVar(&issueLabels, "label", nil, "Label to apply (repeatable)")
	_ = issueAddCmd.MarkFlagRequired("title")

	issueListCmd.Flags().StringVar(&issueProject, "project", "", "Filter by project ID")
	issueListCmd.Flags().StringVar(&issueStatus, "status", "", "Filter by status")
	issueListCmd.Flags().StringVar(&issuePriority, "priority", "", "Filter by priority")
	issueListCmd.Flags().StringVar(&issueAssignee, "assignee", "", "Filter by assignee")
	issueListCmd.Flags().StringVar(&issueSearch, "search", "", "Substring search over title and description")

	issueUpdateCmd.Flags().StringVar(&issueTitle, "title", "", "New title")
	issueUpdateCmd.Flags().StringVar(&issueDesc, "desc", "", "New description")
	issueUpdateCmd.Flags().StringVar(&issueStatus, "status", "", "New status")
	issueUpdateCmd.Flags().StringVar(&issuePriority, "priority", "", "New priority")
	issueUpdateCmd.Flags().StringVar(&issueAssignee, "assign", "", "New assignee user ID")

	issueResolveCmd.Flags().StringVar(&issueNotes, "notes", "", "Resolution notes")

	issueTriageCmd.Flags().BoolVar(&issueApplyFlags, "apply", false, "Apply the suggestion to the issue")

	issueCmd.AddCommand(issueListCmd)
	issueCmd.AddCommand(issueAddCmd)
	issueCmd.AddCommand(issueShowCmd)
	issueCmd.AddCommand(issueUpdateCmd)
	issueCmd.AddCommand(issueResolveCmd)
	issueCmd.AddCommand(issueCloseCmd)
	issueCmd.AddCommand(issueDeleteCmd)
	issueCmd.AddCommand(issueTriageCmd)
	issueCmd.AddCommand(issueDuplicatesCmd)
	issueCmd.AddCommand(issueAssignCmd)
	rootCmd.AddCommand(issueCmd)
}

func issueListRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := rootCmd.Context()

	filter := store.IssueListFilter{
		ProjectID:  issueProject,
		Status:     models.IssueStatus(issueStatus),
		Priority:   models.IssuePriority(issuePriority),
		AssignedTo: issueAssignee,
		Search:     issueSearch,
	}

	issues, err := s.ListIssues(ctx, filter)
	if err != nil {
		return err
	}
	if len(issues) == 0 {
		ui.Info("No issues found.")
		return nil
	}

	projectNames := make(map[string]string)

	table := ui.Table([]string{"ID", "Project", "Title", "Status", "Priority", "Assignee"})
	for _, issue := range issues {
		projName := projectNames[issue.ProjectID]
		if projName == "" {
			if p, err := s.GetProject(ctx, issue.ProjectID); err == nil {
				projName = p.Name
				projectNames[issue.ProjectID] = projName
			}
		}
		_ = table.Append([]string{
			shortID(issue.ID),
			projName,
			truncate(issue.Title, 50),
			output.StatusColor(string(issue.Status)),
			output.PriorityColor(string(issue.Priority)),
			issue.AssignedTo,
		})
	}
	_ = table.Render()
	return nil
}

func issueAddRun(projectID string) error {
	d, err := buildDeps()
	if err != nil {
		return err
	}
	defer d.activities.Close()

	if dryRun {
		ui.DryRunMsg("would add issue %q [%s] to project %s", issueTitle, issuePriority, projectID)
		return nil
	}

	issue, err := d.tracker.CreateIssue(rootCmd.Context(), tracker.CreateIssueInput{
		ProjectID:   projectID,
		Title:       issueTitle,
		Description: issueDesc,
		Priority:    models.IssuePriority(issuePriority),
		AssignedTo:  issueAssignee,
		Labels:      issueLabels,
	}, actingUser())
	if err != nil {
		return err
	}

	ui.Success("Created issue %s: %s", output.Cyan(shortID(issue.ID)), issue.Title)
	return nil
}

func issueShowRun(id string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := rootCmd.Context()

	issue, err := s.GetIssue(ctx, id)
	if err != nil {
		return err
	}

	fmt.Printf("%s %s\n", output.Cyan(shortID(issue.ID)), issue.Title)
	fmt.Printf("  Status:    %s\n", output.StatusColor(string(issue.Status)))
	fmt.Printf("  Priority:  %s\n", output.PriorityColor(string(issue.Priority)))
	if issue.AssignedTo != "" {
		fmt.Printf("  Assignee:  %s\n", issue.AssignedTo)
	}
	if len(issue.Labels) > 0 {
		fmt.Printf("  Labels:    %s\n", strings.Join(issue.Labels, ", "))
	}
	if issue.Description != "" {
		fmt.Printf("\n%s\n", issue.Description)
	}
	if issue.AITriage != nil {
		fmt.Printf("\n  Suggested category: %s (%.0f%% confidence)\n",
			issue.AITriage.SuggestedCategory, issue.AITriage.Confidence*100)
		if issue.AITriage.Analysis != "" {
			fmt.Printf("  %s\n", issue.AITriage.Analysis)
		}
	}
	if issue.Resolution != nil {
		fmt.Printf("\n  Resolved by %s on %s", issue.Resolution.ResolvedBy, issue.Resolution.ResolvedAt.Format("2006-01-02"))
		if issue.Resolution.Notes != "" {
			fmt.Printf(": %s", issue.Resolution.Notes)
		}
		fmt.Println()
	}
	if issue.CodeLoc != nil {
		loc := issue.CodeLoc.FilePath
		if issue.CodeLoc.LineNumber > 0 {
			loc = fmt.Sprintf("%s:%d", loc, issue.CodeLoc.LineNumber)
		}
		fmt.Printf("  Location:  %s\n", loc)
	}

	comments, err := s.ListComments(ctx, issue.ID)
	if err == nil && len(comments) > 0 {
		fmt.Printf("\nComments (%d):\n", len(comments))
		for _, c := range comments {
			fmt.Printf("  [%s] %s: %s\n", c.CreatedAt.Format("2006-01-02"), c.CreatedBy, c.Text)
		}
	}
	return nil
}

func issueUpdateRun(id string) error {
	d, err := buildDeps()
	if err != nil {
		return err
	}
	defer d.activities.Close()

	patch := store.IssuePatch{}
	if issueTitle != "" {
		patch.Title = &issueTitle
	}
	if issueDesc != "" {
		patch.Description = &issueDesc
	}
	if issueStatus != "" {
		status := models.IssueStatus(issueStatus)
		patch.Status = &status
	}
	if issuePriority != "" {
		priority := models.IssuePriority(issuePriority)
		patch.Priority = &priority
	}
	if issueAssignee != "" {
		patch.AssignedTo = &issueAssignee
	}

	if dryRun {
		ui.DryRunMsg("would update issue %s", id)
		return nil
	}

	issue, err := d.tracker.Update(rootCmd.Context(), id, patch)
	if err != nil {
		return err
	}
	ui.Success("Updated issue %s", shortID(issue.ID))
	return nil
}

func issueResolveRun(id string) error {
	d, err := buildDeps()
	if err != nil {
		return err
	}
	defer d.activities.Close()

	if dryRun {
		ui.DryRunMsg("would resolve issue %s", id)
		return nil
	}

	issue, err := d.tracker.Resolve(rootCmd.Context(), id, issueNotes, actingUser())
	if err != nil {
		return err
	}
	ui.Success("Resolved issue %s: %s", shortID(issue.ID), issue.Title)
	return nil
}

func issueCloseRun(id string) error {
	d, err := buildDeps()
	if err != nil {
		return err
	}
	defer d.activities.Close()

	if dryRun {
		ui.DryRunMsg("would close issue %s", id)
		return nil
	}

	issue, err := d.tracker.Close(rootCmd.Context(), id, actingUser())
	if err != nil {
		return err
	}
	ui.Success("Closed issue %s: %s", shortID(issue.ID), issue.Title)
	return nil
}

func issueDeleteRun(id string) error {
	d, err := buildDeps()
	if err != nil {
		return err
	}
	defer d.activities.Close()

	if dryRun {
		ui.DryRunMsg("would delete issue %s", id)
		return nil
	}

	if err := d.tracker.Delete(rootCmd.Context(), id); err != nil {
		return err
	}
	ui.Success("Deleted issue %s", id)
	return nil
}

func issueTriageRun(id string) error {
	d, err := buildDeps()
	if err != nil {
		return err
	}
	defer d.activities.Close()
	ctx := rootCmd.Context()

	issue, err := d.store.GetIssue(ctx, id)
	if err != nil {
		return err
	}

	result := d.classifier.Classify(ctx, issue.Title, issue.Description)
	ui.Info("Category:   %s", result.Category)
	ui.Info("Priority:   %s", output.PriorityColor(string(result.Priority)))
	ui.Info("Confidence: %.0f%%", result.Confidence*100)
	ui.Info("Source:     %s", result.Source)
	if result.Analysis != "" {
		ui.Info("%s", result.Analysis)
	}

	if !issueApplyFlags {
		return nil
	}
	if dryRun {
		ui.DryRunMsg("would apply triage to issue %s", id)
		return nil
	}

	issue.Priority = result.Priority
	issue.Labels = models.DedupLabels(append([]string{result.Category}, issue.Labels...))
	issue.AITriage = result.Triage()
	if err := d.store.UpdateIssue(ctx, issue); err != nil {
		return err
	}
	ui.Success("Applied triage to issue %s", shortID(issue.ID))
	return nil
}

func issueDuplicatesRun(projectID, text string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := rootCmd.Context()

	issues, err := s.ListIssues(ctx, store.IssueListFilter{ProjectID: projectID})
	if err != nil {
		return err
	}

	duplicates := triage.FindDuplicates(text, issues)
	if len(duplicates) == 0 {
		ui.Success("No potential duplicates found.")
		return nil
	}

	ui.Warning("Found %d potential duplicate(s):", len(duplicates))
	table := ui.Table([]string{"ID", "Title", "Status", "Similarity"})
	for _, dup := range duplicates {
		_ = table.Append([]string{
			shortID(dup.Issue.ID),
			truncate(dup.Issue.Title, 50),
			output.StatusColor(string(dup.Issue.Status)),
			fmt.Sprintf("%.0f%%", dup.SimilarityPercent),
		})
	}
	_ = table.Render()
	return nil
}

func issueAssignRun(projectID string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := rootCmd.Context()

	if _, err := s.GetProject(ctx, projectID); err != nil {
		return err
	}
	issues, err := s.ListIssues(ctx, store.IssueListFilter{ProjectID: projectID})
	if err != nil {
		return err
	}
	users, err := s.ListUsers(ctx)
	if err != nil {
		return err
	}

	suggestion := triage.SuggestAssignee(issues, users)
	if suggestion.User == nil {
		ui.Warning("%s", suggestion.Reason)
		return nil
	}
	ui.Success("Suggested assignee: %s (%s)", output.Cyan(suggestion.User.Name), suggestion.Reason)
	return nil
}
