package a2a

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2aclient"
	"github.com/a2aproject/a2a-go/a2aclient/agentcard"

	"github.com/hupe1980/agentbridge/agent"
	"github.com/hupe1980/agentbridge/logging"
)

// ClientOptions configures Dial.
type ClientOptions struct {
	HTTPClient *http.Client
	// PollInterval is used while waiting for a task the server returned
	// before it reached a terminal state.
	PollInterval time.Duration
	Logger       logging.Logger
}

// Client calls a remote A2A agent.
type Client struct {
	inner  *a2aclient.Client
	card   *a2a.AgentCard
	opts   ClientOptions
	logger logging.Logger
}

// Dial resolves the agent card served under baseURL and connects to the
// agent's JSON-RPC endpoint.
func Dial(ctx context.Context, baseURL string, optFns ...func(o *ClientOptions)) (*Client, error) {
	opts := ClientOptions{PollInterval: 100 * time.Millisecond}
	for _, fn := range optFns {
		fn(&opts)
	}

	baseURL = strings.TrimRight(baseURL, "/")

	resolver := agentcard.DefaultResolver
	if opts.HTTPClient != nil {
		resolver = agentcard.NewResolver(opts.HTTPClient)
	}

	card, err := resolver.Resolve(ctx, baseURL)
	if err != nil {
		return nil, fmt.Errorf("resolve agent card: %w", err)
	}

	if card.URL == "" {
		card.URL = baseURL + "/"
	}

	inner, err := a2aclient.NewFromCard(ctx, card)
	if err != nil {
		return nil, fmt.Errorf("create a2a client: %w", err)
	}

	return &Client{inner: inner, card: card, opts: opts, logger: logging.OrNoOp(opts.Logger)}, nil
}

// Card returns the resolved agent card.
func (c *Client) Card() *a2a.AgentCard { return c.card }

// Request is a skill invocation.
type Request struct {
	Skill string
	Input map[string]any
	Text  string
	// ContextID continues a previous conversation. An empty value starts a
	// new one.
	ContextID string
}

// Response is a completed remote task.
type Response struct {
	TaskID    string
	ContextID string
	State     a2a.TaskState
	Result    *agent.Result
}

// RemoteError is a task that ended in a non-successful state.
type RemoteError struct {
	TaskID  string
	State   a2a.TaskState
	Skill   string
	Code    string
	Message string
	Hint    string
}

func (e *RemoteError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "task %s %s", e.TaskID, e.State)
	if e.Code != "" {
		fmt.Fprintf(&b, " [%s]", e.Code)
	}
	if e.Message != "" {
		b.WriteString(": " + e.Message)
	}
	if e.Hint != "" {
		b.WriteString(" (hint: " + e.Hint + ")")
	}
	return b.String()
}

// Send runs one skill and waits for the outcome. Failed, canceled and
// rejected tasks are returned as *RemoteError.
func (c *Client) Send(ctx context.Context, req Request) (*Response, error) {
	var parts []a2a.Part
	if req.Text != "" {
		parts = append(parts, a2a.TextPart{Text: req.Text})
	}

	if req.Skill != "" || len(req.Input) > 0 {
		data := map[string]any{}
		if req.Skill != "" {
			data[SkillKey] = req.Skill
		}
		if req.Input != nil {
			data[InputKey] = req.Input
		}
		parts = append(parts, a2a.DataPart{Data: data})
	}

	msg := a2a.NewMessage(a2a.MessageRoleUser, parts...)
	msg.ContextID = req.ContextID

	c.logger.Debug("a2a.client.send", "agent", c.card.Name, "skill", req.Skill, "context_id", req.ContextID)

	result, err := c.inner.SendMessage(ctx, &a2a.MessageSendParams{Message: msg})
	if err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}

	switch r := result.(type) {
	case *a2a.Message:
		return &Response{ContextID: r.ContextID, State: a2a.TaskStateCompleted, Result: resultFromParts(r.Parts)}, nil
	case *a2a.Task:
		task, err := c.await(ctx, r)
		if err != nil {
			return nil, err
		}
		return taskResponse(task)
	default:
		return nil, fmt.Errorf("unexpected send result %T", result)
	}
}

// Cancel requests cancellation of a running task.
func (c *Client) Cancel(ctx context.Context, taskID string) error {
	_, err := c.inner.CancelTask(ctx, &a2a.TaskIDParams{ID: a2a.TaskID(taskID)})
	return err
}

// Close releases the underlying transport.
func (c *Client) Close() error {
	return c.inner.Destroy()
}

func (c *Client) await(ctx context.Context, task *a2a.Task) (*a2a.Task, error) {
	for !settled(task.Status.State) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.opts.PollInterval):
		}

		next, err := c.inner.GetTask(ctx, &a2a.TaskQueryParams{ID: task.ID})
		if err != nil {
			return nil, fmt.Errorf("get task: %w", err)
		}
		task = next
	}

	return task, nil
}

func settled(s a2a.TaskState) bool {
	return s.Terminal() || s == a2a.TaskStateInputRequired
}

func taskResponse(task *a2a.Task) (*Response, error) {
	resp := &Response{TaskID: string(task.ID), ContextID: task.ContextID, State: task.Status.State}

	if task.Status.State != a2a.TaskStateCompleted {
		rerr := &RemoteError{TaskID: resp.TaskID, State: task.Status.State}

		if task.Status.Message != nil {
			res := resultFromParts(task.Status.Message.Parts)
			rerr.Message = res.Text
			if res.Data != nil {
				rerr.Code, _ = res.Data["code"].(string)
				rerr.Skill, _ = res.Data[SkillKey].(string)
				rerr.Hint, _ = res.Data["hint"].(string)
				if m, ok := res.Data["message"].(string); ok {
					rerr.Message = m
				}
			}
		}

		return nil, rerr
	}

	var parts []a2a.Part
	for _, art := range task.Artifacts {
		parts = append(parts, art.Parts...)
	}

	resp.Result = resultFromParts(parts)

	return resp, nil
}

func resultFromParts(parts []a2a.Part) *agent.Result {
	res := &agent.Result{}

	var text []string

	merge := func(data map[string]any) {
		if res.Data == nil {
			res.Data = map[string]any{}
		}
		for k, v := range data {
			res.Data[k] = v
		}
	}

	for _, part := range parts {
		switch p := part.(type) {
		case a2a.TextPart:
			text = append(text, p.Text)
		case *a2a.TextPart:
			text = append(text, p.Text)
		case a2a.DataPart:
			merge(p.Data)
		case *a2a.DataPart:
			merge(p.Data)
		}
	}

	res.Text = strings.Join(text, "\n")

	return res
}
