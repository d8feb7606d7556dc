package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	fmcp "github.com/forumgate/forumgate/internal/mcp"
	"github.com/forumgate/forumgate/internal/service"
)

func newMCPCmd() *cobra.Command {
	var (
		transport string
		port      int
	)

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP server for AI agents",
		Long: `Start a Model Context Protocol (MCP) server that exposes key administration
and access diagnostics as tools for AI agents. Supports stdio (default) and
HTTP transports.

In stdio mode, the MCP server communicates over stdin/stdout using JSON-RPC,
suitable for direct integration with MCP clients that launch the server as a
subprocess. In HTTP mode, the server listens on the specified port.`,
		Example: `  forumgate mcp                             # stdio mode
  forumgate mcp --transport http --port 3001  # HTTP mode`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMCP(transport, port)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport mode: stdio or http")
	cmd.Flags().IntVar(&port, "port", 3001, "HTTP port (only used with --transport http)")

	return cmd
}

func runMCP(transport string, port int) error {
	// In stdio mode stdout belongs to the JSON-RPC stream; keep logs off it.
	var logOut io.Writer = os.Stderr
	if transport == "stdio" {
		logOut = io.Discard
	}
	logger := slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: slog.LevelInfo}))

	store, err := openConfigStore()
	if err != nil {
		return fmt.Errorf("init gateway store: %w", err)
	}
	defer store.Close()

	jwtSecret := viper.GetString("auth.jwt_secret")
	if jwtSecret == "" {
		jwtSecret = "forumgate-dev-secret-change-me"
	}

	authSvc := service.NewAuthorizer(store, jwtSecret)
	keySvc := service.NewKeyService(store, logger)

	mcpSrv := fmcp.NewMCPServer(store, keySvc, authSvc, logger)

	switch transport {
	case "stdio":
		return mcpSrv.ServeStdio()
	case "http":
		return mcpSrv.ServeHTTP(fmt.Sprintf(":%d", port))
	default:
		return fmt.Errorf("unsupported transport %q; use 'stdio' or 'http'", transport)
	}
}
