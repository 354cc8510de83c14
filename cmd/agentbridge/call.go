package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/hupe1980/agentbridge/a2a"
	"github.com/hupe1980/agentbridge/config"
	"github.com/hupe1980/agentbridge/toolserver"
)

// CallCmd sends one task to an A2A agent.
type CallCmd struct {
	URL       string        `help:"Agent base URL (default derived from agent.public_url or agent.addr)."`
	Skill     string        `help:"Skill id."`
	Input     []string      `short:"i" help:"Skill input as key=value. JSON values are decoded." placeholder:"KEY=VALUE"`
	Text      string        `short:"t" help:"Free-form text."`
	ContextID string        `name:"context" help:"Continue a conversation."`
	Timeout   time.Duration `help:"Request timeout." default:"60s"`
}

func (c *CallCmd) Run(cli *CLI) error {
	cfg, err := cli.load()
	if err != nil {
		return err
	}

	input, err := parseInput(c.Input)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	ctx, cancelTimeout := context.WithTimeout(ctx, c.Timeout)
	defer cancelTimeout()

	url := c.URL
	if url == "" {
		url = agentURL(cfg)
	}

	client, err := a2a.Dial(ctx, url, func(o *a2a.ClientOptions) {
		o.Logger = newLogger(cfg, "call")
	})
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	resp, err := client.Send(ctx, a2a.Request{
		Skill:     c.Skill,
		Input:     input,
		Text:      c.Text,
		ContextID: c.ContextID,
	})
	if err != nil {
		return err
	}

	return printResponse(os.Stdout, resp)
}

func printResponse(w io.Writer, resp *a2a.Response) error {
	fmt.Fprintln(w, resp.Result.Text)

	if len(resp.Result.Data) > 0 {
		data, err := json.MarshalIndent(resp.Result.Data, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(data))
	}

	if resp.ContextID != "" {
		fmt.Fprintf(w, "context: %s\n", resp.ContextID)
	}

	return nil
}

// parseInput turns key=value pairs into an input map. Values that parse as
// JSON keep their JSON type; anything else is a string.
func parseInput(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	in := make(map[string]any, len(pairs))

	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid input %q: expected key=value", pair)
		}

		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			v = raw
		}
		in[key] = v
	}

	return in, nil
}

func agentURL(cfg *config.Config) string {
	if cfg.Agent.PublicURL != "" {
		return cfg.Agent.PublicURL
	}
	return localURL(cfg.Agent.Addr)
}

func localURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "http://localhost" + addr
	}
	return "http://" + addr
}

// ListToolsCmd lists the tools of an MCP server.
type ListToolsCmd struct {
	URL     string   `help:"Streamable HTTP endpoint (default derived from toolserver.addr and toolserver.path)."`
	Command string   `help:"Launch a stdio server instead, e.g. agentbridge."`
	Args    []string `arg:"" optional:"" help:"Arguments for --command."`
}

func (c *ListToolsCmd) Run(cli *CLI) error {
	cfg, err := cli.load()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	dial := toolserver.DialConfig{URL: c.URL, Command: c.Command, Args: c.Args, Env: os.Environ()}
	if dial.URL == "" && dial.Command == "" {
		dial.URL = localURL(cfg.ToolServer.Addr) + cfg.ToolServer.Path
	}

	mcpClient, err := toolserver.Dial(ctx, dial)
	if err != nil {
		return err
	}
	defer func() { _ = mcpClient.Close() }()

	tools, err := toolserver.Discover(ctx, mcpClient)
	if err != nil {
		return err
	}

	for _, t := range tools {
		fmt.Printf("%-16s %s\n", t.Name(), t.Description())
	}

	return nil
}
