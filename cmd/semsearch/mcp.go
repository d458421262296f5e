package main

import (
	"github.com/spf13/cobra"

	mcpserver "github.com/bull/semantic-search/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the MCP tools over stdio",
	Long: `Runs the MCP server on stdin/stdout for local clients such as editors.
The HTTP server exposes the same tools at /mcp.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		server := mcpserver.NewServer(&mcpserver.Config{
			Store:             a.Store,
			Pipeline:          a.RAG,
			Chat:              a.ChatStore,
			DefaultCollection: a.Config.RAG.DefaultCollection,
		})
		return server.Run(cmd.Context())
	},
}
