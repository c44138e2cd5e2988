package mcp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/cabinetdiet/cabinet/internal/blog"
)

// MCPServer wraps the mcp-go server with the blog tools and resources. It
// exposes published posts read-only so assistants can cite or summarize
// them; nothing here writes to the store.
type MCPServer struct {
	posts  *blog.Service
	logger *slog.Logger
	server *server.MCPServer
}

// NewMCPServer creates an MCPServer with every tool and resource registered.
func NewMCPServer(posts *blog.Service, version string, logger *slog.Logger) *MCPServer {
	s := &MCPServer{
		posts:  posts,
		logger: logger,
	}

	mcpServer := server.NewMCPServer(
		"Cabinet Blog",
		version,
		server.WithResourceCapabilities(true, false),
		server.WithToolCapabilities(false),
		server.WithInstructions("Read-only access to the articles of a dietitian's blog. "+
			"Articles are written in French; keep quotes in the original language."),
	)

	s.registerTools(mcpServer)
	s.registerResources(mcpServer)

	s.server = mcpServer
	return s
}

// Server returns the underlying mcp-go MCPServer instance.
func (s *MCPServer) Server() *server.MCPServer {
	return s.server
}

// ServeStdio serves over stdin/stdout until the client disconnects. Logs
// must not go to stdout in this mode.
func (s *MCPServer) ServeStdio() error {
	s.logger.Info("starting MCP server in stdio mode")
	return server.ServeStdio(s.server)
}

// ServeHTTP serves Streamable HTTP on addr until ctx is cancelled.
func (s *MCPServer) ServeHTTP(ctx context.Context, addr string) error {
	httpServer := server.NewStreamableHTTPServer(s.server)
	s.logger.Info("MCP HTTP server starting", "addr", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func readOnlyAnnotation() mcp.ToolAnnotation {
	return mcp.ToolAnnotation{
		ReadOnlyHint:   boolPtr(true),
		IdempotentHint: boolPtr(true),
		OpenWorldHint:  boolPtr(false),
	}
}

func boolPtr(b bool) *bool {
	return &b
}
