package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/hupe1980/agentbridge/core"
)

// Definition is the model facing description of a tool.
type Definition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Registry is a name-indexed dispatch table of tools. It is safe for
// concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates a registry pre-populated with tools. It panics on an
// invalid or duplicate name; use Register for checked insertion.
func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool, len(tools))}
	if err := r.Register(tools...); err != nil {
		panic(err)
	}
	return r
}

// Register adds tools. Either all tools are added or none.
func (r *Registry) Register(tools ...Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]struct{}, len(tools))
	for _, t := range tools {
		if t == nil {
			return errors.New("tool: nil tool")
		}

		name := t.Name()
		if strings.TrimSpace(name) == "" {
			return errors.New("tool: empty tool name")
		}

		if _, dup := seen[name]; dup {
			return fmt.Errorf("tool: duplicate tool name %q", name)
		}

		if _, exists := r.tools[name]; exists {
			return fmt.Errorf("tool: tool %q already registered", name)
		}

		seen[name] = struct{}{}
	}

	for _, t := range tools {
		r.tools[t.Name()] = t
	}

	return nil
}

// Unregister removes a tool and reports whether it was present.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.tools[name]
	delete(r.tools, name)

	return ok
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tools[name]

	return t, ok
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Names returns the registered tool names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// Tools returns the registered tools ordered by name.
func (r *Registry) Tools() []Tool {
	names := r.Names()

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Tool, 0, len(names))
	for _, name := range names {
		if t, ok := r.tools[name]; ok {
			out = append(out, t)
		}
	}

	return out
}

// Definitions returns the model facing definitions ordered by name.
func (r *Registry) Definitions() []Definition {
	tools := r.Tools()

	defs := make([]Definition, 0, len(tools))
	for _, t := range tools {
		defs = append(defs, Definition{Name: t.Name(), Description: t.Description(), Parameters: t.Parameters()})
	}

	return defs
}

// Invoke decodes argsJSON and dispatches to the named tool. An empty string
// is treated as an empty object. All failures are returned as *ToolError.
func (r *Registry) Invoke(toolCtx *core.ToolContext, name, argsJSON string) (any, error) {
	args := map[string]any{}
	if strings.TrimSpace(argsJSON) != "" {
		if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
			return nil, &ToolError{
				Tool:    name,
				Message: fmt.Sprintf("invalid JSON arguments: %v", err),
				Code:    CodeInvalidArguments,
				Err:     err,
			}
		}

		if args == nil { // "null"
			args = map[string]any{}
		}
	}

	return r.Call(toolCtx, name, args)
}

// Call dispatches already decoded arguments to the named tool.
func (r *Registry) Call(toolCtx *core.ToolContext, name string, args map[string]any) (result any, err error) {
	t, ok := r.Lookup(name)
	if !ok {
		return nil, NewToolError(name, fmt.Sprintf("unknown tool %q", name), CodeNotFound)
	}

	if toolCtx == nil {
		toolCtx = core.NewToolContext(context.Background())
	}

	if args == nil {
		args = map[string]any{}
	}

	defer func() {
		if rec := recover(); rec != nil {
			toolCtx.LogError("tool.call.panic", "tool", name, "panic", fmt.Sprint(rec))

			result = nil
			err = &ToolError{Tool: name, Message: fmt.Sprintf("tool panicked: %v", rec), Code: CodePanic}
		}
	}()

	result, err = t.Call(toolCtx, args)
	if err != nil {
		var toolErr *ToolError
		if !errors.As(err, &toolErr) {
			return nil, executionError(name, err)
		}

		return nil, toolErr
	}

	return result, nil
}
