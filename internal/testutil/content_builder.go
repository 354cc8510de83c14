package testutil

import (
	"encoding/json"

	"github.com/hupe1980/agentbridge/core"
)

// ContentBuilder provides a fluent helper for constructing content in tests.
// Example:
//
//	c := NewContentBuilder().Assistant().Text("checking").Call("c1", "get_product", map[string]any{"product_id": "p1"}).Build()
//
// Chain only the parts you need. The default role is assistant.
type ContentBuilder struct {
	role  string
	parts []core.Part
}

// NewContentBuilder creates a builder with the assistant role.
func NewContentBuilder() *ContentBuilder { return &ContentBuilder{role: core.RoleAssistant} }

// User sets the user role (chainable).
func (b *ContentBuilder) User() *ContentBuilder { b.role = core.RoleUser; return b }

// Assistant sets the assistant role (chainable).
func (b *ContentBuilder) Assistant() *ContentBuilder { b.role = core.RoleAssistant; return b }

// Text appends a text part (chainable).
func (b *ContentBuilder) Text(t string) *ContentBuilder {
	b.parts = append(b.parts, core.TextPart{Text: t})
	return b
}

// Call appends a function call part. args are JSON encoded (chainable).
func (b *ContentBuilder) Call(id, name string, args map[string]any) *ContentBuilder {
	raw := "{}"
	if args != nil {
		data, err := json.Marshal(args)
		if err != nil {
			panic(err)
		}
		raw = string(data)
	}

	b.parts = append(b.parts, core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: id, Name: name, Arguments: raw}})

	return b
}

// Response appends a function response part and switches to the tool role (chainable).
func (b *ContentBuilder) Response(id, name string, resp any) *ContentBuilder {
	b.role = core.RoleTool
	b.parts = append(b.parts, core.FunctionResponsePart{FunctionResponse: core.FunctionResponse{ID: id, Name: name, Response: resp}})
	return b
}

// Build returns the assembled content.
func (b *ContentBuilder) Build() core.Content {
	parts := make([]core.Part, len(b.parts))
	copy(parts, b.parts)
	return core.Content{Role: b.role, Parts: parts}
}
