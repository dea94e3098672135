package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/issuedeck/issuedeck/internal/models"
	"github.com/issuedeck/issuedeck/internal/output"
)

var (
	projectDesc     string
	projectBranch   string
	projectMaxFiles int
	projectNoIssues bool
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage projects",
	Long:  "Create, list, import, scan, and analyze projects.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return projectListRun()
	},
}

var projectListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		return projectListRun()
	},
}

var projectCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return projectCreateRun(args[0])
	},
}

var projectDeleteCmd = &cobra.Command{
	Use:   "delete <project-id>",
	Short: "Delete a project and everything it owns",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return projectDeleteRun(args[0])
	},
}

var projectImportCmd = &cobra.Command{
	Use:   "import <owner>/<repo>",
	Short: "Import a GitHub repository as a project",
	Long:  "Import a GitHub repository: creates a project with provenance and, unless --no-issues is set, imports and classifies its issues.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return projectImportRun(args[0])
	},
}

var projectScanCmd = &cobra.Command{
	Use:   "scan <project-id>",
	Short: "Scan the project's repository tree for code findings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return projectScanRun(args[0])
	},
}

var projectAnalyzeCmd = &cobra.Command{
	Use:   "analyze <project-id>",
	Short: "Summarize project health and a recommended resolution order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return projectAnalyzeRun(args[0])
	},
}

var projectAnalyticsCmd = &cobra.Command{
	Use:   "analytics <project-id>",
	Short: "Show issue and sprint breakdowns",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return projectAnalyticsRun(args[0])
	},
}

func init() {
	projectCreateCmd.Flags().StringVar(&projectDesc, "desc", "", "Project description")

	projectImportCmd.Flags().BoolVar(&projectNoIssues, "no-issues", false, "Skip issue import")

	projectScanCmd.Flags().StringVar(&projectBranch, "branch", "main", "Branch to scan")
	projectScanCmd.Flags().IntVar(&projectMaxFiles, "max-files", 50, "Maximum files to scan")

	projectCmd.AddCommand(projectListCmd)
	projectCmd.AddCommand(projectCreateCmd)
	projectCmd.AddCommand(projectDeleteCmd)
	projectCmd.AddCommand(projectImportCmd)
	projectCmd.AddCommand(projectScanCmd)
	projectCmd.AddCommand(projectAnalyzeCmd)
	projectCmd.AddCommand(projectAnalyticsCmd)
	rootCmd.AddCommand(projectCmd)
}

func projectListRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}

	projects, err := s.ListProjects(rootCmd.Context())
	if err != nil {
		return err
	}
	if len(projects) == 0 {
		ui.Info("No projects yet. Create one with 'issuedeck project create' or 'issuedeck project import'.")
		return nil
	}

	table := ui.Table([]string{"ID", "Name", "Owner", "GitHub", "Created"})
	for _, p := range projects {
		repo := ""
		if p.GitHubRepo != nil {
			repo = p.GitHubRepo.Owner + "/" + p.GitHubRepo.Repo
		}
		_ = table.Append([]string{shortID(p.ID), p.Name, p.CreatedBy, repo, p.CreatedAt.Format("2006-01-02")})
	}
	_ = table.Render()
	return nil
}

func projectCreateRun(name string) error {
	d, err := buildDeps()
	if err != nil {
		return err
	}
	defer d.activities.Close()

	if dryRun {
		ui.DryRunMsg("would create project %q", name)
		return nil
	}

	project, err := d.tracker.CreateProject(rootCmd.Context(), name, projectDesc, actingUser())
	if err != nil {
		return err
	}
	ui.Success("Created project %s (%s)", output.Cyan(project.Name), shortID(project.ID))
	return nil
}

func projectDeleteRun(id string) error {
	d, err := buildDeps()
	if err != nil {
		return err
	}
	defer d.activities.Close()

	if dryRun {
		ui.DryRunMsg("would delete project %s", id)
		return nil
	}

	if err := d.tracker.DeleteProject(rootCmd.Context(), id, actingUser()); err != nil {
		return err
	}
	ui.Success("Deleted project %s", id)
	return nil
}

func projectImportRun(ownerRepo string) error {
	owner, repo, err := splitOwnerRepo(ownerRepo)
	if err != nil {
		return err
	}

	d, err := buildDeps()
	if err != nil {
		return err
	}
	defer d.activities.Close()

	if dryRun {
		ui.DryRunMsg("would import %s/%s", owner, repo)
		return nil
	}

	ui.Info("Importing %s/%s ...", owner, repo)
	result, err := d.importer.ImportProject(rootCmd.Context(), owner, repo, !projectNoIssues, actingUser())
	if err != nil {
		return err
	}

	ui.Success("Created project %s (%s)", output.Cyan(result.Project.Name), shortID(result.Project.ID))
	if result.IssuesCount > 0 {
		ui.Info("Imported %d issue(s)", result.IssuesCount)
		table := ui.Table([]string{"Title", "Status", "Priority"})
		for _, item := range result.Preview {
			_ = table.Append([]string{
				truncate(item.Issue.Title, 60),
				output.StatusColor(string(item.Issue.Status)),
				output.PriorityColor(string(item.Issue.Priority)),
			})
		}
		_ = table.Render()
	}
	if len(result.Languages) > 0 {
		ui.VerboseLog("Languages: %v", result.Languages)
	}
	return nil
}

func projectScanRun(projectID string) error {
	d, err := buildDeps()
	if err != nil {
		return err
	}
	defer d.activities.Close()

	if dryRun {
		ui.DryRunMsg("would scan project %s (branch %s)", projectID, projectBranch)
		return nil
	}

	ui.Info("Scanning branch %s ...", projectBranch)
	result, err := d.importer.ScanSourceCode(rootCmd.Context(), projectID, "", "", projectBranch, projectMaxFiles, actingUser())
	if err != nil {
		return err
	}

	ui.Success("Analyzed %d file(s): %d finding(s), %d created, %d skipped",
		result.FilesAnalyzed, result.TotalFound, result.CreatedCount, result.SkippedCount)

	if len(result.Created) > 0 {
		table := ui.Table([]string{"Title", "File", "Line", "Priority"})
		for _, issue := range result.Created {
			line := ""
			if issue.CodeLoc != nil && issue.CodeLoc.LineNumber > 0 {
				line = fmt.Sprintf("%d", issue.CodeLoc.LineNumber)
			}
			file := ""
			if issue.CodeLoc != nil {
				file = issue.CodeLoc.FilePath
			}
			_ = table.Append([]string{
				truncate(issue.Title, 50),
				truncate(file, 40),
				line,
				output.PriorityColor(string(issue.Priority)),
			})
		}
		_ = table.Render()
	}
	for _, skipped := range result.Skipped {
		ui.VerboseLog("skipped %q: %s", skipped.Candidate.Title, skipped.Reason)
	}
	return nil
}

func projectAnalyzeRun(projectID string) error {
	d, err := buildDeps()
	if err != nil {
		return err
	}
	defer d.activities.Close()

	analysis, err := d.tracker.AnalyzeProject(rootCmd.Context(), projectID)
	if err != nil {
		return err
	}

	ui.Info("%s", analysis.Summary)
	if len(analysis.ResolutionOrder) > 0 {
		table := ui.Table([]string{"#", "Title", "Priority", "Reason"})
		for i, step := range analysis.ResolutionOrder {
			_ = table.Append([]string{
				fmt.Sprintf("%d", i+1),
				truncate(step.Title, 50),
				output.PriorityColor(string(step.Priority)),
				truncate(step.Reason, 50),
			})
		}
		_ = table.Render()
	}
	for _, rec := range analysis.Recommendations {
		ui.Info("%s", rec)
	}
	return nil
}

func projectAnalyticsRun(projectID string) error {
	d, err := buildDeps()
	if err != nil {
		return err
	}
	defer d.activities.Close()

	a, err := d.tracker.ProjectAnalytics(rootCmd.Context(), projectID)
	if err != nil {
		return err
	}

	ui.Info("Total issues: %d", a.TotalIssues)
	table := ui.Table([]string{"Status", "Count"})
	for _, status := range []models.IssueStatus{
		models.IssueStatusOpen, models.IssueStatusInProgress,
		models.IssueStatusResolved, models.IssueStatusClosed,
	} {
		_ = table.Append([]string{output.StatusColor(string(status)), fmt.Sprintf("%d", a.IssuesByStatus[status])})
	}
	_ = table.Render()

	ui.Info("Sprints: %d total, %d active, %d completed", a.SprintsTotal, a.SprintsActive, a.SprintsCompleted)
	if a.SprintsCompleted > 0 {
		ui.Info("Velocity: %.1f resolved issues per completed sprint", a.Velocity)
	}
	return nil
}

func splitOwnerRepo(s string) (string, string, error) {
	for i := 0; i < len(s); i++ {
		if s[i] == '/' {
			if i == 0 || i == len(s)-1 {
				break
			}
			return s[:i], s[i+1:], nil
		}
	}
	return "", "", fmt.Errorf("expected <owner>/<repo>, got %q", s)
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n-3] + "..."
	}
	return s
}
