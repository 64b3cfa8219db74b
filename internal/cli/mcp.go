package cli

import (
	"context"
	"fmt"
	"net"

	"github.com/lyoneil/Botpress"
	"github.com/lyoneil/Botpress/pkg/adapters/mcp"
)

// NewMCPServer exposes the runtime of app as an MCP server.
func NewMCPServer(app *App) *mcp.Server {
	return mcp.NewServer(app.Runtime, app.Runtime.Sessions(), app.Loader, botpress.Version, mcp.WithLogger(app.Logger))
}

// ServeMCP runs the MCP server on the given transport: "stdio", or "sse"
// listening on addr until ctx is done.
func ServeMCP(ctx context.Context, app *App, transport, addr string) error {
	srv := NewMCPServer(app)
	switch transport {
	case "stdio":
		app.Logger.Info("Starting Botpress MCP Server (Stdio)")
		return srv.ServeStdio()
	case "sse":
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return err
		}
		return srv.ServeSSE(ctx, ln)
	default:
		return fmt.Errorf("unknown transport: %s. Supported: stdio, sse", transport)
	}
}
