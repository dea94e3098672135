package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/issuedeck/issuedeck/internal/models"
	"github.com/issuedeck/issuedeck/internal/output"
)

var (
	templateDesc     string
	templatePriority string
	templateLabels   []string
)

var templateCmd = &cobra.Command{
	Use:   "template",
	Short: "Manage issue templates",
	Long:  "Define reusable issue skeletons and stamp issues out of them.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return templateListRun()
	},
}

var templateListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List templates",
	RunE: func(cmd *cobra.Command, args []string) error {
		return templateListRun()
	},
}

var templateAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Create a template",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return templateAddRun(args[0])
	},
}

var templateUseCmd = &cobra.Command{
	Use:   "use <template-id> <project-id>",
	Short: "Create an issue from a template",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return templateUseRun(args[0], args[1])
	},
}

var templateDeleteCmd = &cobra.Command{
	Use:   "delete <template-id>",
	Short: "Delete a template",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return templateDeleteRun(args[0])
	},
}

func init() {
	templateAddCmd.Flags().StringVar(&templateDesc, "desc", "", "Default description")
	templateAddCmd.Flags().StringVar(&templatePriority, "priority", "Medium", "Default priority")
	templateAddCmd.Flags().StringSliceVar(&templateLabels, "label", nil, "Default label (repeatable)")

	templateUseCmd.Flags().StringVar(&templateDesc, "desc", "", "Override the template's default description")

	templateCmd.AddCommand(templateListCmd)
	templateCmd.AddCommand(templateAddCmd)
	templateCmd.AddCommand(templateUseCmd)
	templateCmd.AddCommand(templateDeleteCmd)
	rootCmd.AddCommand(templateCmd)
}

func templateListRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}

	templates, err := s.ListTemplates(rootCmd.Context())
	if err != nil {
		return err
	}
	if len(templates) == 0 {
		ui.Info("No templates yet. Create one with 'issuedeck template add'.")
		return nil
	}

	table := ui.Table([]string{"ID", "Title", "Priority", "Uses"})
	for _, t := range templates {
		_ = table.Append([]string{
			shortID(t.ID),
			t.Title,
			output.PriorityColor(string(t.DefaultPriority)),
			fmt.Sprintf("%d", t.UsageCount),
		})
	}
	_ = table.Render()
	return nil
}

func templateAddRun(title string) error {
	d, err := buildDeps()
	if err != nil {
		return err
	}
	defer d.activities.Close()

	if dryRun {
		ui.DryRunMsg("would create template %q", title)
		return nil
	}

	tmpl, err := d.tracker.CreateTemplate(rootCmd.Context(), &models.IssueTemplate{
		Title:              title,
		DefaultDescription: templateDesc,
		DefaultPriority:    models.IssuePriority(templatePriority),
		DefaultLabels:      templateLabels,
	}, actingUser())
	if err != nil {
		return err
	}
	ui.Success("Created template %s: %s", output.Cyan(shortID(tmpl.ID)), tmpl.Title)
	return nil
}

func templateUseRun(templateID, projectID string) error {
	d, err := buildDeps()
	if err != nil {
		return err
	}
	defer d.activities.Close()

	if dryRun {
		ui.DryRunMsg("would instantiate template %s in project %s", templateID, projectID)
		return nil
	}

	issue, err := d.tracker.InstantiateTemplate(rootCmd.Context(), templateID, projectID, templateDesc, actingUser())
	if err != nil {
		return err
	}
	ui.Success("Created issue %s: %s", output.Cyan(shortID(issue.ID)), issue.Title)
	return nil
}

func templateDeleteRun(id string) error {
	s, err := getStore()
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("would delete template %s", id)
		return nil
	}

	if err := s.DeleteTemplate(rootCmd.Context(), id); err != nil {
		return err
	}
	ui.Success("Deleted template %s", id)
	return nil
}
