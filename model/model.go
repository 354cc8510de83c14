package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/agentbridge/core"
	"github.com/hupe1980/agentbridge/tool"
)

// ToolDefinition declaratively exposes a callable function to the model.
// Parameters is a JSON Schema object.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Request captures the normalized model input.
type Request struct {
	Instructions string           `json:"instructions"` // System instructions for the model
	Contents     []core.Content   `json:"contents"`
	Tools        []ToolDefinition `json:"tools,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a complete model turn.
type Response struct {
	ID           string       `json:"id"`
	Content      core.Content `json:"content"`
	FinishReason string       `json:"finish_reason"` // "stop", "length", "tool_calls", etc.
	Usage        *TokenUsage  `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "scripted", etc.
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the minimal interface required by agents to drive generation.
type Model interface {
	Generate(ctx context.Context, req Request) (*Response, error)

	// Info returns information about the model implementation.
	Info() Info
}

// FromDefinitions converts registry definitions into model tool definitions.
func FromDefinitions(defs []tool.Definition) []ToolDefinition {
	out := make([]ToolDefinition, 0, len(defs))
	for _, d := range defs {
		out = append(out, ToolDefinition{Name: d.Name, Description: d.Description, Parameters: d.Parameters})
	}
	return out
}

// FunctionResponseText renders a function response the way providers expect
// tool output: the JSON encoding of the result or {"error": "..."}.
func FunctionResponseText(fr core.FunctionResponse) string {
	if fr.Error != "" {
		data, _ := json.Marshal(map[string]string{"error": fr.Error})
		return string(data)
	}

	if s, ok := fr.Response.(string); ok {
		return s
	}

	data, err := json.Marshal(fr.Response)
	if err != nil {
		return fmt.Sprintf("%v", fr.Response)
	}

	return string(data)
}

// ErrScriptExhausted is returned by ScriptedModel when no step is left.
var ErrScriptExhausted = errors.New("model: script exhausted")

// ScriptedModel is a deterministic in-memory Model. Each Generate call
// consumes the next scripted step and the request is recorded.
type ScriptedModel struct {
	mu       sync.Mutex
	info     Info
	steps    []func(req Request) (*Response, error)
	requests []Request
}

// NewScriptedModel constructs a ScriptedModel with tool support enabled.
func NewScriptedModel(name string) *ScriptedModel {
	return &ScriptedModel{info: Info{Name: name, Provider: "scripted", SupportsTools: true}}
}

// Reply queues a response with the given content (chainable).
func (m *ScriptedModel) Reply(c core.Content) *ScriptedModel {
	if c.Role == "" {
		c.Role = core.RoleAssistant
	}

	finish := "stop"
	if len(c.FunctionCalls()) > 0 {
		finish = "tool_calls"
	}

	return m.ReplyFunc(func(Request) (*Response, error) {
		return &Response{ID: core.NewID(), Content: c.Clone(), FinishReason: finish}, nil
	})
}

// ReplyText queues a plain assistant text response (chainable).
func (m *ScriptedModel) ReplyText(text string) *ScriptedModel {
	return m.Reply(core.NewTextContent(core.RoleAssistant, text))
}

// Fail queues an error (chainable).
func (m *ScriptedModel) Fail(err error) *ScriptedModel {
	return m.ReplyFunc(func(Request) (*Response, error) { return nil, err })
}

// ReplyFunc queues a step computed from the request (chainable).
func (m *ScriptedModel) ReplyFunc(fn func(req Request) (*Response, error)) *ScriptedModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append(m.steps, fn)
	return m
}

// Generate implements Model.
func (m *ScriptedModel) Generate(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.requests = append(m.requests, cloneRequest(req))
	if len(m.steps) == 0 {
		m.mu.Unlock()
		return nil, ErrScriptExhausted
	}
	step := m.steps[0]
	m.steps = m.steps[1:]
	m.mu.Unlock()

	return step(req)
}

// Requests returns the recorded requests in call order.
func (m *ScriptedModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// Remaining returns the number of unconsumed steps.
func (m *ScriptedModel) Remaining() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.steps)
}

// Info implements Model.
func (m *ScriptedModel) Info() Info { return m.info }

func cloneRequest(req Request) Request {
	contents := make([]core.Content, len(req.Contents))
	for i, c := range req.Contents {
		contents[i] = c.Clone()
	}
	req.Contents = contents
	return req
}

var _ Model = (*ScriptedModel)(nil)
