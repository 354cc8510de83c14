package a2a

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2asrv"
	"github.com/a2aproject/a2a-go/a2asrv/eventqueue"

	"github.com/hupe1980/agentbridge/agent"
	"github.com/hupe1980/agentbridge/logging"
)

// Message keys understood by the executor.
const (
	SkillKey = "skill"
	InputKey = "input"
)

// Error codes used for failures that are not *agent.SkillError.
const (
	CodeInternal   = "internal"
	CodeBadRequest = "bad_request"
)

// ExecutorOptions configures an Executor.
type ExecutorOptions struct {
	Logger logging.Logger
}

// Executor implements a2asrv.AgentExecutor over an agent.Agent.
//
// Event sequence per task:
//   - New task: TaskStateSubmitted
//   - Before the agent runs: TaskStateWorking
//   - On success: one artifact with a text part and, when present, a data part,
//     followed by a final TaskStateCompleted
//   - On failure: a final TaskStateFailed whose message carries the error text,
//     the recovery hint and a data part with the error code
//   - On Cancel, or when the request context ends first: a final TaskStateCanceled
type Executor struct {
	agent  agent.Agent
	logger logging.Logger

	mu      sync.Mutex
	running map[a2a.TaskID]*run
}

// run is one in-flight task. canceled is set once Cancel has written the
// terminal event for it.
type run struct {
	cancel   context.CancelFunc
	canceled bool
}

// NewExecutor creates a new executor for ag.
func NewExecutor(ag agent.Agent, optFns ...func(o *ExecutorOptions)) *Executor {
	opts := ExecutorOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Executor{
		agent:   ag,
		logger:  logging.OrNoOp(opts.Logger),
		running: make(map[a2a.TaskID]*run),
	}
}

// Execute implements a2asrv.AgentExecutor.
func (e *Executor) Execute(ctx context.Context, reqCtx *a2asrv.RequestContext, queue eventqueue.Queue) error {
	msg := reqCtx.Message
	if msg == nil {
		return fmt.Errorf("message not provided")
	}

	if reqCtx.StoredTask == nil {
		if err := queue.Write(ctx, a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateSubmitted, nil)); err != nil {
			return fmt.Errorf("write submitted event: %w", err)
		}
	}

	task, err := e.toTask(reqCtx)
	if err != nil {
		var skillErr *agent.SkillError
		if !errors.As(err, &skillErr) {
			skillErr = &agent.SkillError{Code: CodeBadRequest, Message: err.Error()}
		}
		return queue.Write(ctx, failedEvent(reqCtx, skillErr))
	}

	if err := queue.Write(ctx, a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateWorking, nil)); err != nil {
		return fmt.Errorf("write working event: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	r := e.track(reqCtx.TaskID, cancel)
	defer e.untrack(reqCtx.TaskID)

	start := time.Now()
	e.logger.Info("a2a.task.start", "agent", e.agent.Name(), "task_id", task.ID, "context_id", task.SessionID, "skill", task.Skill)

	res, err := e.agent.Execute(runCtx, task)
	if e.wasCanceled(r) {
		e.logger.Info("a2a.task.canceled", "task_id", task.ID)
		return nil
	}

	if ctx.Err() != nil {
		// The request went away without a Cancel call. The task still has to
		// reach a terminal state, so the event is written past the dead context.
		e.logger.Warn("a2a.task.aborted", "task_id", task.ID, "skill", task.Skill, "error", ctx.Err().Error())

		event := a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateCanceled, nil)
		event.Final = true

		return queue.Write(context.WithoutCancel(ctx), event)
	}

	if err != nil {
		var skillErr *agent.SkillError
		if !errors.As(err, &skillErr) {
			e.logger.Error("a2a.task.error", "task_id", task.ID, "skill", task.Skill, "error", err.Error())
			skillErr = &agent.SkillError{Skill: task.Skill, Code: CodeInternal, Message: err.Error()}
		}

		e.logger.Warn("a2a.task.failed", "task_id", task.ID, "skill", task.Skill, "code", skillErr.Code)

		return queue.Write(ctx, failedEvent(reqCtx, skillErr))
	}

	parts := []a2a.Part{a2a.TextPart{Text: res.Text}}
	if len(res.Data) > 0 {
		parts = append(parts, a2a.DataPart{Data: res.Data})
	}

	artifact := a2a.NewArtifactEvent(reqCtx, parts...)
	artifact.LastChunk = true
	if err := queue.Write(ctx, artifact); err != nil {
		return fmt.Errorf("write artifact event: %w", err)
	}

	done := a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateCompleted, nil)
	done.Final = true
	done.Metadata = map[string]any{SkillKey: task.Skill}

	e.logger.Info("a2a.task.completed", "task_id", task.ID, "skill", task.Skill, "duration_ms", time.Since(start).Milliseconds())

	return queue.Write(ctx, done)
}

// Cancel implements a2asrv.AgentExecutor.
func (e *Executor) Cancel(ctx context.Context, reqCtx *a2asrv.RequestContext, queue eventqueue.Queue) error {
	e.mu.Lock()
	r, ok := e.running[reqCtx.TaskID]
	if ok {
		r.canceled = true
	}
	e.mu.Unlock()

	if ok {
		r.cancel()
	}

	e.logger.Info("a2a.task.cancel", "task_id", string(reqCtx.TaskID), "running", ok)

	event := a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateCanceled, nil)
	event.Final = true

	return queue.Write(ctx, event)
}

func (e *Executor) track(id a2a.TaskID, cancel context.CancelFunc) *run {
	r := &run{cancel: cancel}

	e.mu.Lock()
	e.running[id] = r
	e.mu.Unlock()

	return r
}

func (e *Executor) untrack(id a2a.TaskID) {
	e.mu.Lock()
	if r, ok := e.running[id]; ok {
		r.cancel()
		delete(e.running, id)
	}
	e.mu.Unlock()
}

func (e *Executor) wasCanceled(r *run) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return r.canceled
}


// toTask reads skill, input and text from the request message.
func (e *Executor) toTask(reqCtx *a2asrv.RequestContext) (agent.Task, error) {
	msg := reqCtx.Message

	task := agent.Task{
		ID:        string(reqCtx.TaskID),
		SessionID: reqCtx.ContextID,
		Input:     map[string]any{},
	}

	var text []string

	for _, part := range msg.Parts {
		switch p := part.(type) {
		case a2a.TextPart:
			text = append(text, p.Text)
		case *a2a.TextPart:
			text = append(text, p.Text)
		case a2a.DataPart:
			if err := mergeData(&task, p.Data); err != nil {
				return task, err
			}
		case *a2a.DataPart:
			if err := mergeData(&task, p.Data); err != nil {
				return task, err
			}
		}
	}

	task.Text = strings.TrimSpace(strings.Join(text, "\n"))

	if task.Skill == "" && msg.Metadata != nil {
		if s, ok := msg.Metadata[SkillKey].(string); ok {
			task.Skill = s
		}
	}

	if task.Skill == "" {
		if skills := e.agent.Skills(); len(skills) == 1 {
			task.Skill = skills[0].ID
		}
	}

	if task.Skill == "" {
		return task, agent.UnknownSkill(e.agent, "")
	}

	return task, nil
}

// mergeData applies a data part. {"skill","input"} envelopes are unpacked,
// any other object is merged into the input.
func mergeData(task *agent.Task, data map[string]any) error {
	skill, hasSkill := data[SkillKey]
	input, hasInput := data[InputKey]

	if !hasSkill && !hasInput {
		for k, v := range data {
			task.Input[k] = v
		}
		return nil
	}

	if hasSkill {
		s, ok := skill.(string)
		if !ok {
			return fmt.Errorf("%s must be a string", SkillKey)
		}
		task.Skill = s
	}

	if hasInput && input != nil {
		m, ok := input.(map[string]any)
		if !ok {
			return fmt.Errorf("%s must be an object", InputKey)
		}
		for k, v := range m {
			task.Input[k] = v
		}
	}

	return nil
}

func failedEvent(reqCtx *a2asrv.RequestContext, skillErr *agent.SkillError) *a2a.TaskStatusUpdateEvent {
	text := skillErr.Message
	if skillErr.Hint != "" {
		text += ". " + skillErr.Hint
	}

	data := map[string]any{"code": skillErr.Code, "message": skillErr.Message}
	if skillErr.Skill != "" {
		data[SkillKey] = skillErr.Skill
	}
	if skillErr.Hint != "" {
		data["hint"] = skillErr.Hint
	}

	msg := a2a.NewMessageForTask(a2a.MessageRoleAgent, reqCtx, a2a.TextPart{Text: text}, a2a.DataPart{Data: data})

	ev := a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateFailed, msg)
	ev.Final = true

	return ev
}

var _ a2asrv.AgentExecutor = (*Executor)(nil)
