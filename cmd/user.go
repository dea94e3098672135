package cmd

import (
	"github.com/spf13/cobra"

	"github.com/issuedeck/issuedeck/internal/models"
	"github.com/issuedeck/issuedeck/internal/output"
)

var userEmail string

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users",
	RunE: func(cmd *cobra.Command, args []string) error {
		return userListRun()
	},
}

var userListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List users",
	RunE: func(cmd *cobra.Command, args []string) error {
		return userListRun()
	},
}

var userAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return userAddRun(args[0])
	},
}

func init() {
	userAddCmd.Flags().StringVar(&userEmail, "email", "", "Email address")

	userCmd.AddCommand(userListCmd)
	userCmd.AddCommand(userAddCmd)
	rootCmd.AddCommand(userCmd)
}

func userListRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}

	users, err := s.ListUsers(rootCmd.Context())
	if err != nil {
		return err
	}
	if len(users) == 0 {
		ui.Info("No users yet. Add one with 'issuedeck user add'.")
		return nil
	}

	table := ui.Table([]string{"ID", "Name", "Email"})
	for _, u := range users {
		_ = table.Append([]string{shortID(u.ID), u.Name, u.Email})
	}
	_ = table.Render()
	return nil
}

func userAddRun(name string) error {
	s, err := getStore()
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("would add user %q", name)
		return nil
	}

	user := &models.User{Name: name, Email: userEmail}
	if err := s.CreateUser(rootCmd.Context(), user); err != nil {
		return err
	}
	ui.Success("Created user %s (%s)", output.Cyan(user.Name), shortID(user.ID))
	return nil
}
