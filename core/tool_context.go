package core

import (
	"context"
	"sync"

	"github.com/hupe1980/agentbridge/logging"
)

// ToolContext provides a constrained surface for tool implementations invoked
// by an agent or a tool server. It carries the cancellation context, the
// calling session and function call identifiers, and a buffered state delta
// that the caller decides whether to persist.
//
// Stateless callers (the MCP tool server) pass an empty session id and never
// read the delta back.
type ToolContext struct {
	ctx            context.Context
	sessionID      string
	functionCallID string
	agentName      string

	mu         sync.Mutex
	state      map[string]any
	stateDelta map[string]any

	*loggerAdapter
}

// ToolContextOptions configures NewToolContext.
type ToolContextOptions struct {
	SessionID      string
	FunctionCallID string
	AgentName      string
	// State is a read-only snapshot of session state visible to the tool.
	State  map[string]any
	Logger logging.Logger
}

// NewToolContext constructs a tool context bound to ctx.
func NewToolContext(ctx context.Context, optFns ...func(o *ToolContextOptions)) *ToolContext {
	opts := ToolContextOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	if ctx == nil {
		ctx = context.Background()
	}

	state := make(map[string]any, len(opts.State))
	for k, v := range opts.State {
		state[k] = v
	}

	return &ToolContext{
		ctx:            ctx,
		sessionID:      opts.SessionID,
		functionCallID: opts.FunctionCallID,
		agentName:      opts.AgentName,
		state:          state,
		stateDelta:     map[string]any{},
		loggerAdapter:  newLoggerAdapter(opts.Logger),
	}
}

// Context returns the context associated with the tool invocation.
func (tc *ToolContext) Context() context.Context { return tc.ctx }

// SessionID returns the session ID associated with the tool invocation.
func (tc *ToolContext) SessionID() string { return tc.sessionID }

// FunctionCallID returns the function call ID associated with the tool invocation.
func (tc *ToolContext) FunctionCallID() string { return tc.functionCallID }

// AgentName returns the name of the invoking agent, if any.
func (tc *ToolContext) AgentName() string { return tc.agentName }

// GetState reads a state key, preferring values written during this call.
func (tc *ToolContext) GetState(k string) (any, bool) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if v, ok := tc.stateDelta[k]; ok {
		return v, v != nil
	}
	v, ok := tc.state[k]
	return v, ok
}

// SetState records a state mutation in the local delta.
func (tc *ToolContext) SetState(k string, v any) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.stateDelta[k] = v
}

// StateDelta returns a copy of the accumulated state mutations.
func (tc *ToolContext) StateDelta() map[string]any {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	out := make(map[string]any, len(tc.stateDelta))
	for k, v := range tc.stateDelta {
		out[k] = v
	}
	return out
}

// WithFunctionCall returns a sibling context for another function call that
// shares the state snapshot but carries its own delta.
func (tc *ToolContext) WithFunctionCall(id string) *ToolContext {
	tc.mu.Lock()
	state := make(map[string]any, len(tc.state))
	for k, v := range tc.state {
		state[k] = v
	}
	tc.mu.Unlock()

	return &ToolContext{
		ctx:            tc.ctx,
		sessionID:      tc.sessionID,
		functionCallID: id,
		agentName:      tc.agentName,
		state:          state,
		stateDelta:     map[string]any{},
		loggerAdapter:  tc.loggerAdapter,
	}
}

// WithContext returns a shallow copy bound to ctx. The copy shares the state
// delta of tc.
func (tc *ToolContext) WithContext(ctx context.Context) *ToolContext {
	return &ToolContext{
		ctx:            ctx,
		sessionID:      tc.sessionID,
		functionCallID: tc.functionCallID,
		agentName:      tc.agentName,
		state:          tc.state,
		stateDelta:     tc.stateDelta,
		loggerAdapter:  tc.loggerAdapter,
	}
}
