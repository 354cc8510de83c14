package agent

import (
	"context"

	"github.com/hupe1980/agentbridge/internal/prompt"
)

// Provider supplies dynamic instruction text at runtime derived from
// session state.
type Provider interface {
	Instruction(ctx context.Context, state map[string]any) (string, error)
}

// Func is a functional adapter to allow ordinary functions to be used as Providers.
type Func func(ctx context.Context, state map[string]any) (string, error)

// Instruction implements Provider.
func (f Func) Instruction(ctx context.Context, state map[string]any) (string, error) {
	return f(ctx, state)
}

// Instruction represents either a static template or a dynamic provider.
type Instruction struct {
	text     string
	provider Provider
}

// NewInstructionFromText creates an Instruction from a text/template string
// rendered against session state, e.g. "Last product: {{.last_product_id}}".
func NewInstructionFromText(text string) Instruction { return Instruction{text: text} }

// NewInstructionFromProvider creates an Instruction from a dynamic provider.
func NewInstructionFromProvider(p Provider) Instruction { return Instruction{provider: p} }

// NewInstructionFromFunc creates an Instruction from a function.
func NewInstructionFromFunc(f func(ctx context.Context, state map[string]any) (string, error)) Instruction {
	return Instruction{provider: Func(f)}
}

// IsStatic returns true if the instruction is backed by a template string.
func (i Instruction) IsStatic() bool { return i.provider == nil }

// Resolve returns the instruction text, invoking the provider if needed.
func (i Instruction) Resolve(ctx context.Context, state map[string]any) (string, error) {
	if i.provider != nil {
		return i.provider.Instruction(ctx, state)
	}
	return prompt.Render(i.text, state)
}
