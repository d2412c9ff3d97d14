package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stratalabs/strata/internal/adapters/driving/mcp"
)

var mcpPort int

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Model Context Protocol integration",
	Long:  `Expose the project to Model Context Protocol (MCP) clients.`,
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start a Model Context Protocol server over the current project.

The server speaks JSON-RPC on stdio, which is what desktop AI
assistants expect. It offers tools to find jobs by parameter filter,
read job documents and summarise project and queue state, plus
resources for the project descriptor and per-job documents.

With --port the server speaks streamable HTTP instead, which suits
the MCP Inspector and remote clients:

  strata mcp serve --port 8080

A typical assistant configuration runs "strata mcp serve" with no
further arguments from the project root.`,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntVarP(&mcpPort, "port", "p", 0, "HTTP port (0 = use stdio)")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	server, err := mcp.NewServer(&mcp.Ports{
		Project: projectService,
		Jobs:    jobService,
		Queue:   queueService,
	})
	if err != nil {
		return err
	}

	if mcpPort > 0 {
		addr := fmt.Sprintf(":%d", mcpPort)
		fmt.Fprintf(cmd.OutOrStdout(), "MCP server listening on http://localhost%s\n", addr)
		return server.RunHTTP(cmd.Context(), addr)
	}
	return server.Run(cmd.Context())
}
