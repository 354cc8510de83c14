package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/agentbridge/core"
	"github.com/hupe1980/agentbridge/logging"
	"github.com/hupe1980/agentbridge/model"
	"github.com/hupe1980/agentbridge/session"
	"github.com/hupe1980/agentbridge/tool"
)

// SkillChat is the only skill of a ModelAgent.
const SkillChat = "chat"

// ModelAgentOptions configures a ModelAgent.
type ModelAgentOptions struct {
	Description string
	Instruction Instruction
	// MaxHistory bounds the number of prior contents sent to the model.
	MaxHistory int
	// MaxIterations bounds model calls per task.
	MaxIterations int
	// MaxParallelTools bounds concurrently executing tool calls.
	MaxParallelTools int
	// ToolTimeout bounds a single tool call. Zero means no timeout.
	ToolTimeout time.Duration
	// Sessions persists conversation history. Defaults to an in-memory store.
	Sessions core.SessionStore
	Logger   logging.Logger
}

// ModelAgent drives a language model through a tool calling loop.
type ModelAgent struct {
	name     string
	llm      model.Model
	tools    *tool.Registry
	sessions core.SessionStore
	opts     ModelAgentOptions
	logger   logging.Logger
}

// NewModelAgent creates a model agent. tools may be nil.
func NewModelAgent(name string, llm model.Model, tools *tool.Registry, optFns ...func(o *ModelAgentOptions)) *ModelAgent {
	opts := ModelAgentOptions{
		Description:      "Answers catalog questions in natural language using the available tools.",
		Instruction:      NewInstructionFromText(defaultInstruction),
		MaxHistory:       20,
		MaxIterations:    8,
		MaxParallelTools: 4,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Sessions == nil {
		opts.Sessions = session.NewInMemoryStore()
	}

	if tools == nil {
		tools = tool.NewRegistry()
	}

	return &ModelAgent{
		name:     name,
		llm:      llm,
		tools:    tools,
		sessions: opts.Sessions,
		opts:     opts,
		logger:   logging.OrNoOp(opts.Logger),
	}
}

const defaultInstruction = `You are a product catalog assistant. Use the tools to read and change products.
Never invent product ids. If a tool fails, explain the error and suggest a next step.`

// Name implements Agent.
func (a *ModelAgent) Name() string { return a.name }

// Description implements Agent.
func (a *ModelAgent) Description() string { return a.opts.Description }

// Skills implements Agent.
func (a *ModelAgent) Skills() []Skill {
	return []Skill{{
		ID:          SkillChat,
		Name:        "Chat",
		Description: "Free-form conversation. Send the request as text or as the message input.",
		Tags:        []string{"chat", "llm"},
		Examples:    []string{"Add a desk lamp for 19.99 with 5 in stock", "How many lamps are left?"},
	}}
}

// Tools returns the registry the agent calls.
func (a *ModelAgent) Tools() *tool.Registry { return a.tools }

// Execute implements Agent.
func (a *ModelAgent) Execute(ctx context.Context, task Task) (*Result, error) {
	if task.Skill != "" && task.Skill != SkillChat {
		return nil, UnknownSkill(a, task.Skill)
	}

	message, ok := stringInput(task.Input, "message")
	if !ok {
		message = strings.TrimSpace(task.Text)
	}

	if message == "" {
		return nil, &SkillError{
			Skill:   SkillChat,
			Code:    CodeInvalidInput,
			Message: "message is required",
			Hint:    "Send text or a message input.",
		}
	}

	sessionID := task.SessionID
	if sessionID == "" {
		sessionID = defaultSessionID
	}

	sess, err := a.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	snapshot := sess.Clone()
	state := snapshot.State

	contents := trimHistory(snapshot.GetHistory(a.opts.MaxHistory))

	userContent := core.NewTextContent(core.RoleUser, message)
	contents = append(contents, userContent)

	if err := a.sessions.AppendContent(sessionID, userContent); err != nil {
		return nil, fmt.Errorf("append content: %w", err)
	}

	limiter := core.NewModelLimiter(a.opts.MaxIterations)
	executor := &functionExecutor{
		agentName:   a.name,
		registry:    a.tools,
		maxParallel: a.opts.MaxParallelTools,
		timeout:     a.opts.ToolTimeout,
		logger:      a.logger,
	}

	toolDefs := model.FromDefinitions(a.tools.Definitions())
	toolCalls := 0

	for {
		if err := limiter.Increment(); err != nil {
			a.logger.Warn("agent.model.limit_exceeded", "agent", a.name, "session_id", sessionID, "max_iterations", a.opts.MaxIterations)

			return nil, &SkillError{
				Skill:   SkillChat,
				Code:    CodeRejected,
				Message: fmt.Sprintf("gave up after %d model calls", a.opts.MaxIterations),
				Hint:    "Split the request into smaller steps.",
				Err:     err,
			}
		}

		instruction, err := a.opts.Instruction.Resolve(ctx, state)
		if err != nil {
			return nil, fmt.Errorf("resolve instruction: %w", err)
		}

		start := time.Now()

		resp, err := a.llm.Generate(ctx, model.Request{
			Instructions: instruction,
			Contents:     contents,
			Tools:        toolDefs,
		})
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}

			a.logger.Error("agent.model.error", "agent", a.name, "model", a.llm.Info().Name, "error", err.Error())

			return nil, &SkillError{
				Skill:   SkillChat,
				Code:    CodeUnavailable,
				Message: "the language model is unavailable",
				Hint:    "Try again in a moment.",
				Err:     err,
			}
		}

		reply := resp.Content
		if reply.Role == "" {
			reply.Role = core.RoleAssistant
		}

		calls := reply.FunctionCalls()

		a.logger.Debug(
			"agent.model.response",
			"agent", a.name,
			"iteration", limiter.Count(),
			"function_calls", len(calls),
			"finish_reason", resp.FinishReason,
			"duration_ms", time.Since(start).Milliseconds(),
		)

		contents = append(contents, reply)
		if err := a.sessions.AppendContent(sessionID, reply); err != nil {
			return nil, fmt.Errorf("append content: %w", err)
		}

		if len(calls) == 0 {
			return &Result{
				Text: reply.Text(),
				Data: map[string]any{
					"iterations": limiter.Count(),
					"tool_calls": toolCalls,
				},
			}, nil
		}

		toolCalls += len(calls)

		base := core.NewToolContext(ctx, func(o *core.ToolContextOptions) {
			o.SessionID = sessionID
			o.AgentName = a.name
			o.State = state
			o.Logger = a.logger
		})

		batch := executor.Execute(base, calls)

		contents = append(contents, batch.Content)
		if err := a.sessions.AppendContent(sessionID, batch.Content); err != nil {
			return nil, fmt.Errorf("append content: %w", err)
		}

		if len(batch.Delta) > 0 {
			if err := a.sessions.ApplyDelta(sessionID, batch.Delta); err != nil {
				return nil, fmt.Errorf("apply state delta: %w", err)
			}

			snapshot.ApplyStateDelta(batch.Delta)
		}
	}
}

// trimHistory drops leading contents until the first user turn so the
// window never starts with orphaned tool traffic.
func trimHistory(history []core.Content) []core.Content {
	for i, c := range history {
		if c.Role == core.RoleUser {
			return history[i:]
		}
	}
	return nil
}

var _ Agent = (*ModelAgent)(nil)
