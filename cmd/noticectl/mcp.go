package main

import (
	"github.com/spf13/cobra"

	mcpadapter "github.com/kirillkom/campus-notice-rag/internal/adapters/mcp"
)

func mcpCMD() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve notice search over MCP on stdio",
		Long: `Starts a Model Context Protocol server on stdin/stdout exposing the
search_notices and ask_notices tools. Logs go to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := openApp(cmd, false)
			if err != nil {
				return err
			}
			defer app.Close()

			return mcpadapter.NewTools(app.Retriever, app.Chat, app.Config.RAGSearchK).ServeStdio()
		},
	}
}
