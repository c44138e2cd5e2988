package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	cmcp "github.com/cabinetdiet/cabinet/internal/mcp"
)

func newMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP server for AI agents",
		Long: `Start a Model Context Protocol (MCP) server that gives AI agents read-only
access to the blog: post listing, search, full articles and categories.

In stdio mode the server speaks JSON-RPC over stdin/stdout, suitable for
desktop MCP clients. In http mode it serves the Streamable HTTP transport on
--addr.

The MCP server reads the data directory directly and does not need
"cabinet serve" to be running.`,
		Example: `  cabinet mcp                                # stdio mode
  cabinet mcp --transport http --addr :3002  # Streamable HTTP`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMCP(cmd)
		},
	}

	cmd.Flags().String("transport", "stdio", "Transport mode: stdio or http")
	cmd.Flags().String("addr", "127.0.0.1:3002", "Listen address (only used with --transport http)")

	viper.BindPFlag("mcp.transport", cmd.Flags().Lookup("transport"))
	viper.BindPFlag("mcp.addr", cmd.Flags().Lookup("addr"))

	return cmd
}

func runMCP(cmd *cobra.Command) error {
	cfg, err := rawConfig()
	if err != nil {
		return err
	}
	// stdout carries the protocol in stdio mode.
	logger := newLogger(cfg, os.Stderr)

	app, err := openApp(cmd, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Posts.EnsureSeeded(ctx); err != nil {
		return err
	}

	srv := cmcp.NewMCPServer(app.Posts, versionString(), logger)

	switch cfg.MCP.Transport {
	case "stdio":
		return srv.ServeStdio()
	case "http":
		return srv.ServeHTTP(ctx, cfg.MCP.Addr)
	default:
		return fmt.Errorf("unsupported transport %q; use 'stdio' or 'http'", cfg.MCP.Transport)
	}
}
