package cmd

import (
	"github.com/spf13/cobra"

	"github.com/issuedeck/issuedeck/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server for agent integration",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This lets coding agents query and update issuedeck natively. Configure
with:

  {
    "mcpServers": {
      "issuedeck": { "command": "issuedeck", "args": ["mcp"] }
    }
  }

Available tools: issuedeck_list_issues, issuedeck_triage_issue,
issuedeck_check_duplicates, issuedeck_resolve_issue`,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := buildDeps()
		if err != nil {
			return err
		}
		defer d.activities.Close()

		server := mcp.NewServer(d.tracker, d.classifier)
		return server.ServeStdio(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
