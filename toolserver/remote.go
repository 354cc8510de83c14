package toolserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hupe1980/agentbridge/core"
	"github.com/hupe1980/agentbridge/tool"
)

// ClientName is sent in the MCP initialize handshake.
const ClientName = "agentbridge"

// DialConfig selects how to reach a remote MCP server. URL wins over Command.
type DialConfig struct {
	// URL of a streamable HTTP endpoint, e.g. http://localhost:8081/mcp.
	URL string
	// Command and Args launch a stdio server subprocess.
	Command string
	Args    []string
	Env     []string
}

// Dial connects and starts an MCP client. The caller owns Close.
func Dial(ctx context.Context, cfg DialConfig) (*client.Client, error) {
	switch {
	case cfg.URL != "":
		c, err := client.NewStreamableHttpClient(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("create MCP client: %w", err)
		}

		if err := c.Start(ctx); err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("start MCP client: %w", err)
		}

		return c, nil
	case cfg.Command != "":
		// the stdio transport is started by the constructor
		c, err := client.NewStdioMCPClient(cfg.Command, cfg.Env, cfg.Args...)
		if err != nil {
			return nil, fmt.Errorf("create MCP client: %w", err)
		}

		return c, nil
	default:
		return nil, errors.New("toolserver: url or command required")
	}
}

// Discover initializes c, lists its tools and wraps each as a tool.Tool
// whose calls are forwarded to the remote server.
func Discover(ctx context.Context, c *client.Client) ([]tool.Tool, error) {
	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    ClientName,
		Version: "dev",
	}

	if _, err := c.Initialize(ctx, initReq); err != nil {
		return nil, fmt.Errorf("failed to initialize MCP: %w", err)
	}

	listResp, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}

	tools := make([]tool.Tool, 0, len(listResp.Tools))
	for _, t := range listResp.Tools {
		tools = append(tools, &remoteTool{
			client: c,
			name:   t.Name,
			desc:   t.Description,
			schema: convertSchema(t),
		})
	}

	return tools, nil
}

// RemoteError is returned when the server answers a call with IsError.
type RemoteError struct {
	Tool string
	Text string
}

func (e *RemoteError) Error() string { return e.Text }

type remoteTool struct {
	client *client.Client
	name   string
	desc   string
	schema map[string]any
}

func (t *remoteTool) Name() string               { return t.name }
func (t *remoteTool) Description() string        { return t.desc }
func (t *remoteTool) Parameters() map[string]any { return t.schema }

// Call forwards to the remote server. A JSON text result is decoded; any
// other text is returned as a string.
func (t *remoteTool) Call(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	req := mcp.CallToolRequest{}
	req.Params.Name = t.name
	req.Params.Arguments = args

	resp, err := t.client.CallTool(toolCtx.Context(), req)
	if err != nil {
		return nil, fmt.Errorf("MCP call failed: %w", err)
	}

	text := joinText(resp.Content)

	if resp.IsError {
		if text == "" {
			text = "unknown error"
		}
		return nil, &RemoteError{Tool: t.name, Text: text}
	}

	var decoded any
	if err := json.Unmarshal([]byte(text), &decoded); err == nil {
		return decoded, nil
	}

	return text, nil
}

func joinText(contents []mcp.Content) string {
	var texts []string
	for _, content := range contents {
		switch c := content.(type) {
		case mcp.TextContent:
			texts = append(texts, c.Text)
		case *mcp.TextContent:
			texts = append(texts, c.Text)
		}
	}
	return strings.Join(texts, "\n")
}

// convertSchema prefers the raw schema and otherwise marshals the structured one.
func convertSchema(t mcp.Tool) map[string]any {
	data := []byte(t.RawInputSchema)
	if len(data) == 0 {
		var err error
		if data, err = json.Marshal(t.InputSchema); err != nil {
			return nil
		}
	}

	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil
	}

	return result
}

var _ tool.Tool = (*remoteTool)(nil)
