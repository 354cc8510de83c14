// Package agentbridge wires the two ways of putting agents in front of the
// catalog API into one value:
//  1. A wrapper agent (agent.ProductAgent) that remembers context and turns API
//     failures into recovery hints
//  2. A stateless tool provider (toolserver.Server) exposing the same API as
//     MCP tools, optionally driven by a language model client (agent.ModelAgent)
//
// Every component is reachable through a Bridge so applications and tests can
// run the whole stack in one process. Agents are looked up by name and
// invoked synchronously with Invoke.
package agentbridge

import (
	"context"
	"fmt"
	"net/http"
	"sort"

	"github.com/hupe1980/agentbridge/a2a"
	"github.com/hupe1980/agentbridge/agent"
	"github.com/hupe1980/agentbridge/catalog/client"
	"github.com/hupe1980/agentbridge/core"
	"github.com/hupe1980/agentbridge/logging"
	"github.com/hupe1980/agentbridge/memory"
	"github.com/hupe1980/agentbridge/model"
	"github.com/hupe1980/agentbridge/producttools"
	"github.com/hupe1980/agentbridge/session"
	"github.com/hupe1980/agentbridge/tool"
	"github.com/hupe1980/agentbridge/toolserver"
)

// Options configures a Bridge.
type Options struct {
	// Model enables the model agent. Nil leaves it out.
	Model model.Model
	// Tools overrides the tools given to the model agent, e.g. tools
	// discovered from a remote MCP server. Defaults to the catalog tools.
	Tools *tool.Registry

	// Stores (default to in-memory implementations if not provided)
	MemoryStore  core.MemoryStore
	SessionStore core.SessionStore

	WrapperName   string
	AssistantName string
	// ToolServerName is the MCP server name.
	ToolServerName string

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// Bridge holds the wired components.
type Bridge struct {
	opts Options

	api        *client.Client
	tools      *tool.Registry
	toolServer *toolserver.Server
	agents     map[string]agent.Agent
}

// New builds a Bridge against the catalog API reached through api.
func New(api *client.Client, optFns ...func(o *Options)) (*Bridge, error) {
	opts := Options{
		MemoryStore:    memory.NewInMemoryStore(),
		SessionStore:   session.NewInMemoryStore(),
		WrapperName:    "product-agent",
		AssistantName:  "catalog-assistant",
		ToolServerName: "catalog-tools",
		Logger:         logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	tools := producttools.NewRegistry(api)

	ts, err := toolserver.New(tools, func(o *toolserver.Options) {
		o.Name = opts.ToolServerName
		o.Logger = opts.Logger
	})
	if err != nil {
		return nil, fmt.Errorf("tool server: %w", err)
	}

	b := &Bridge{
		opts:       opts,
		api:        api,
		tools:      tools,
		toolServer: ts,
		agents:     make(map[string]agent.Agent),
	}

	b.register(agent.NewProductAgent(api, func(o *agent.ProductAgentOptions) {
		o.Name = opts.WrapperName
		o.Memory = opts.MemoryStore
		o.Logger = opts.Logger
	}))

	if opts.Model != nil {
		modelTools := opts.Tools
		if modelTools == nil {
			modelTools = tools
		}

		b.register(agent.NewModelAgent(opts.AssistantName, opts.Model, modelTools, func(o *agent.ModelAgentOptions) {
			o.Sessions = opts.SessionStore
			o.Logger = opts.Logger
		}))
	}

	return b, nil
}

func (b *Bridge) register(a agent.Agent) { b.agents[a.Name()] = a }

// Tools returns the catalog tool registry.
func (b *Bridge) Tools() *tool.Registry { return b.tools }

// ToolServer returns the MCP server exposing Tools.
func (b *Bridge) ToolServer() *toolserver.Server { return b.toolServer }

// Agent returns the named agent.
func (b *Bridge) Agent(name string) (agent.Agent, bool) {
	a, ok := b.agents[name]
	return a, ok
}

// Agents returns the registered agent names, sorted.
func (b *Bridge) Agents() []string {
	names := make([]string, 0, len(b.agents))
	for n := range b.agents {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Invoke runs a task on the named agent and waits for the result.
func (b *Bridge) Invoke(ctx context.Context, agentName string, task agent.Task) (*agent.Result, error) {
	a, ok := b.agents[agentName]
	if !ok {
		return nil, fmt.Errorf("agent %q not registered", agentName)
	}

	if task.ID == "" {
		task.ID = core.NewID()
	}

	return a.Execute(ctx, task)
}

// A2AHandler serves the named agent over A2A.
func (b *Bridge) A2AHandler(agentName string, optFns ...func(o *a2a.HandlerOptions)) (http.Handler, error) {
	a, ok := b.agents[agentName]
	if !ok {
		return nil, fmt.Errorf("agent %q not registered", agentName)
	}

	fns := append([]func(o *a2a.HandlerOptions){func(o *a2a.HandlerOptions) { o.Logger = b.opts.Logger }}, optFns...)

	return a2a.NewHandler(a, fns...), nil
}
