// Package toolserver exposes a tool.Registry as an MCP tool provider and
// adapts remote MCP servers back into tool.Tool values.
//
// The server is deliberately stateless: every call is dispatched through
// Registry.Invoke and failures are returned to the client with their raw
// error text. Nothing is retried, rephrased or remembered between calls.
package toolserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hupe1980/agentbridge/core"
	"github.com/hupe1980/agentbridge/logging"
	"github.com/hupe1980/agentbridge/tool"
)

// DefaultPath is the mount path of the streamable HTTP transport.
const DefaultPath = "/mcp"

// Options configures a Server.
type Options struct {
	Name         string
	Version      string
	Instructions string
	Logger       logging.Logger
}

// Server is an MCP server backed by a tool registry.
type Server struct {
	registry *tool.Registry
	mcp      *server.MCPServer
	logger   logging.Logger
}

// New registers every tool of registry with a new MCP server.
func New(registry *tool.Registry, optFns ...func(o *Options)) (*Server, error) {
	opts := Options{Name: "agentbridge-tools", Version: "dev"}
	for _, fn := range optFns {
		fn(&opts)
	}

	s := &Server{
		registry: registry,
		logger:   logging.OrNoOp(opts.Logger),
	}

	serverOpts := []server.ServerOption{
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	}
	if opts.Instructions != "" {
		serverOpts = append(serverOpts, server.WithInstructions(opts.Instructions))
	}

	s.mcp = server.NewMCPServer(opts.Name, opts.Version, serverOpts...)

	for _, t := range registry.Tools() {
		schema, err := json.Marshal(t.Parameters())
		if err != nil {
			return nil, fmt.Errorf("encode schema of tool %s: %w", t.Name(), err)
		}

		s.mcp.AddTool(mcp.NewToolWithRawSchema(t.Name(), t.Description(), schema), s.handle(t.Name()))
	}

	s.logger.Info("toolserver.ready", "name", opts.Name, "tools", registry.Len())

	return s, nil
}

// MCPServer returns the underlying mcp-go server, e.g. for in-process clients.
func (s *Server) MCPServer() *server.MCPServer { return s.mcp }

func (s *Server) handle(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()

		args := "{}"
		if req.Params.Arguments != nil {
			data, err := json.Marshal(req.Params.Arguments)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
			}
			args = string(data)
		}

		toolCtx := core.NewToolContext(ctx, func(o *core.ToolContextOptions) {
			o.FunctionCallID = core.NewID()
			o.Logger = s.logger
		})

		result, err := s.registry.Invoke(toolCtx, name, args)
		if err != nil {
			s.logger.Warn("toolserver.call.failed",
				"tool", name,
				"error", err.Error(),
				"duration_ms", time.Since(start).Milliseconds(),
			)

			return mcp.NewToolResultError(errorText(err)), nil
		}

		data, err := json.Marshal(result)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("encode result: %v", err)), nil
		}

		s.logger.Debug("toolserver.call.success", "tool", name, "duration_ms", time.Since(start).Milliseconds())

		return mcp.NewToolResultText(string(data)), nil
	}
}

// errorText returns the unmodified message of the failing layer.
func errorText(err error) string {
	var toolErr *tool.ToolError
	if errors.As(err, &toolErr) && toolErr.Message != "" {
		return toolErr.Message
	}
	return err.Error()
}

// ServeStdio serves MCP over the process stdin and stdout until ctx is done
// or stdin closes.
func (s *Server) ServeStdio(ctx context.Context) error {
	return s.ServeIO(ctx, os.Stdin, os.Stdout)
}

// ServeIO serves MCP over an arbitrary reader and writer pair.
func (s *Server) ServeIO(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)

	err := stdio.Listen(ctx, in, out)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, io.EOF) {
		return err
	}

	return nil
}

// HTTPHandler returns a mux serving the stateless streamable HTTP transport
// at path (DefaultPath when empty).
func (s *Server) HTTPHandler(path string) http.Handler {
	if path == "" {
		path = DefaultPath
	}

	mux := http.NewServeMux()
	mux.Handle(path, server.NewStreamableHTTPServer(s.mcp,
		server.WithStateLess(true),
		server.WithEndpointPath(path),
	))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	return mux
}
