package main

import (
	"context"
	"fmt"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/hupe1980/agentbridge/a2a"
	"github.com/hupe1980/agentbridge/agent"
	"github.com/hupe1980/agentbridge/catalog"
	"github.com/hupe1980/agentbridge/catalog/client"
	"github.com/hupe1980/agentbridge/catalog/httpapi"
	"github.com/hupe1980/agentbridge/config"
	"github.com/hupe1980/agentbridge/logging"
	"github.com/hupe1980/agentbridge/model"
	"github.com/hupe1980/agentbridge/model/anthropic"
	"github.com/hupe1980/agentbridge/model/openai"
	"github.com/hupe1980/agentbridge/producttools"
	"github.com/hupe1980/agentbridge/tool"
	"github.com/hupe1980/agentbridge/toolserver"
)

// ServeAPICmd serves the catalog REST API.
type ServeAPICmd struct {
	Addr  string `help:"Listen address (overrides catalog.addr)."`
	Store string `help:"Store backend: memory or sqlite (overrides catalog.store)."`
}

func (c *ServeAPICmd) Run(cli *CLI) error {
	cfg, err := cli.load()
	if err != nil {
		return err
	}

	if c.Addr != "" {
		cfg.Catalog.Addr = c.Addr
	}
	if c.Store != "" {
		cfg.Catalog.Store = c.Store
	}

	logger := newLogger(cfg, "catalog")

	store, closeStore, err := openStore(cfg.Catalog)
	if err != nil {
		return err
	}
	defer closeStore()

	ctx, cancel := signalContext()
	defer cancel()

	handler := httpapi.NewServer(store, func(o *httpapi.Options) {
		o.Logger = logger
	})

	return serveHTTP(ctx, logger, "catalog", cfg.Catalog.Addr, handler)
}

func openStore(cfg config.CatalogConfig) (catalog.Store, func(), error) {
	if cfg.Store == "sqlite" {
		store, err := catalog.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	}

	return catalog.NewMemoryStore(), func() {}, nil
}

// ServeToolsCmd serves the catalog tools over MCP.
type ServeToolsCmd struct {
	Transport string `help:"Transport: stdio or http (overrides toolserver.transport)."`
	Addr      string `help:"Listen address for the http transport."`
}

func (c *ServeToolsCmd) Run(cli *CLI) error {
	cfg, err := cli.load()
	if err != nil {
		return err
	}

	if c.Transport != "" {
		cfg.ToolServer.Transport = c.Transport
	}
	if c.Addr != "" {
		cfg.ToolServer.Addr = c.Addr
	}

	logger := newLogger(cfg, "toolserver")

	api, err := newCatalogClient(cfg, logger)
	if err != nil {
		return err
	}

	srv, err := toolserver.New(producttools.NewRegistry(api), func(o *toolserver.Options) {
		o.Name = cfg.ToolServer.Name
		o.Version = cfg.ToolServer.Version
		o.Instructions = "Stateless product catalog tools. Errors from the catalog API are returned unchanged."
		o.Logger = logger
	})
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	if cfg.ToolServer.Transport == "stdio" {
		logger.Info("server.start", "server", "toolserver", "transport", "stdio")
		return srv.ServeStdio(ctx)
	}

	return serveHTTP(ctx, logger, "toolserver", cfg.ToolServer.Addr, srv.HTTPHandler(cfg.ToolServer.Path))
}

// ServeAgentCmd serves an agent over A2A.
type ServeAgentCmd struct {
	Kind     string `help:"Agent kind: wrapper or model (overrides agent.kind)."`
	Addr     string `help:"Listen address (overrides agent.addr)."`
	ToolsURL string `name:"tools-url" help:"Remote MCP endpoint for the model agent (overrides agent.tools_url)."`
}

func (c *ServeAgentCmd) Run(cli *CLI) error {
	cfg, err := cli.load()
	if err != nil {
		return err
	}

	if c.Kind != "" && c.Kind != cfg.Agent.Kind {
		cfg.Agent.Kind = c.Kind
		cfg.Agent.Name = ""
		cfg.SetDefaults()
	}
	if c.Addr != "" {
		cfg.Agent.Addr = c.Addr
	}
	if c.ToolsURL != "" {
		cfg.Agent.ToolsURL = c.ToolsURL
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := newLogger(cfg, "agent")

	ctx, cancel := signalContext()
	defer cancel()

	ag, cleanup, err := buildAgent(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	handler := a2a.NewHandler(ag, func(o *a2a.HandlerOptions) {
		o.URL = cfg.Agent.PublicURL
		o.Version = version()
		o.Logger = logger
	})

	return serveHTTP(ctx, logger, "agent", cfg.Agent.Addr, handler)
}

func buildAgent(ctx context.Context, cfg *config.Config, logger logging.Logger) (agent.Agent, func(), error) {
	api, err := newCatalogClient(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	if cfg.Agent.Kind == "wrapper" {
		return agent.NewProductAgent(api, func(o *agent.ProductAgentOptions) {
			o.Name = cfg.Agent.Name
			if cfg.Agent.Description != "" {
				o.Description = cfg.Agent.Description
			}
			o.Logger = logger
		}), func() {}, nil
	}

	registry, cleanup, err := buildTools(ctx, cfg, api, logger)
	if err != nil {
		return nil, nil, err
	}

	mc := cfg.Agent.Model

	ag := agent.NewModelAgent(cfg.Agent.Name, buildModel(mc), registry, func(o *agent.ModelAgentOptions) {
		if cfg.Agent.Description != "" {
			o.Description = cfg.Agent.Description
		}
		if mc.Instruction != "" {
			o.Instruction = agent.NewInstructionFromText(mc.Instruction)
		}
		o.MaxIterations = mc.MaxIterations
		o.MaxHistory = mc.MaxHistory
		o.Logger = logger
	})

	return ag, cleanup, nil
}

// buildTools discovers tools from a remote MCP server, or runs the catalog
// tools in process when no tools URL is configured.
func buildTools(ctx context.Context, cfg *config.Config, api *client.Client, logger logging.Logger) (*tool.Registry, func(), error) {
	if cfg.Agent.ToolsURL == "" {
		return producttools.NewRegistry(api), func() {}, nil
	}

	mcpClient, err := toolserver.Dial(ctx, toolserver.DialConfig{URL: cfg.Agent.ToolsURL})
	if err != nil {
		return nil, nil, err
	}

	tools, err := toolserver.Discover(ctx, mcpClient)
	if err != nil {
		_ = mcpClient.Close()
		return nil, nil, err
	}

	registry := tool.NewRegistry()
	if err := registry.Register(tools...); err != nil {
		_ = mcpClient.Close()
		return nil, nil, fmt.Errorf("register remote tools: %w", err)
	}

	logger.Info("agent.tools.discovered", "url", cfg.Agent.ToolsURL, "tools", registry.Names())

	return registry, func() { _ = mcpClient.Close() }, nil
}

func buildModel(mc config.ModelConfig) model.Model {
	if mc.Provider == "anthropic" {
		return anthropic.NewModel(func(o *anthropic.Options) {
			o.Model = anthropicsdk.Model(mc.Name)
			o.Temperature = mc.Temperature
			o.MaxTokens = mc.MaxTokens
			o.APIKey = mc.APIKey
			o.BaseURL = mc.BaseURL
		})
	}

	return openai.NewModel(func(o *openai.Options) {
		o.Model = mc.Name
		o.Temperature = mc.Temperature
		o.MaxCompletionTokens = mc.MaxTokens
		o.APIKey = mc.APIKey
		o.BaseURL = mc.BaseURL
	})
}
