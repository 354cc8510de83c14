package a2a

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2asrv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentbridge/agent"
)

// recordingQueue keeps every written event.
type recordingQueue struct {
	mu     sync.Mutex
	events []a2a.Event
}

func (q *recordingQueue) Read(ctx context.Context) (a2a.Event, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (q *recordingQueue) Write(_ context.Context, event a2a.Event) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.events = append(q.events, event)
	return nil
}

func (q *recordingQueue) Close() error { return nil }

func (q *recordingQueue) last() a2a.Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.events) == 0 {
		return nil
	}
	return q.events[len(q.events)-1]
}

// blockingAgent runs until its context ends.
type blockingAgent struct {
	started chan struct{}
	stopped chan error
}

func newBlockingAgent() *blockingAgent {
	return &blockingAgent{started: make(chan struct{}), stopped: make(chan error, 1)}
}

func (a *blockingAgent) Name() string        { return "blocker" }
func (a *blockingAgent) Description() string { return "waits for cancellation" }
func (a *blockingAgent) Skills() []agent.Skill {
	return []agent.Skill{{ID: "wait", Name: "Wait"}}
}

func (a *blockingAgent) Execute(ctx context.Context, _ agent.Task) (*agent.Result, error) {
	close(a.started)
	<-ctx.Done()
	a.stopped <- ctx.Err()
	return nil, ctx.Err()
}

func newRequest() *a2asrv.RequestContext {
	return &a2asrv.RequestContext{
		Message:   a2a.NewMessage(a2a.MessageRoleUser, a2a.TextPart{Text: "wait"}),
		TaskID:    a2a.NewTaskID(),
		ContextID: "ctx-1",
	}
}

func requireFinalState(t *testing.T, event a2a.Event, state a2a.TaskState) {
	t.Helper()

	status, ok := event.(*a2a.TaskStatusUpdateEvent)
	require.True(t, ok, "expected status update, got %T", event)
	assert.Equal(t, state, status.Status.State)
	assert.True(t, status.Final)
}

func TestExecutorCancel(t *testing.T) {
	ag := newBlockingAgent()
	exec := NewExecutor(ag)
	reqCtx := newRequest()
	queue := &recordingQueue{}

	done := make(chan error, 1)
	go func() { done <- exec.Execute(context.Background(), reqCtx, queue) }()

	select {
	case <-ag.started:
	case <-time.After(5 * time.Second):
		t.Fatal("agent did not start")
	}

	cancelQueue := &recordingQueue{}
	require.NoError(t, exec.Cancel(context.Background(), &a2asrv.RequestContext{TaskID: reqCtx.TaskID, ContextID: reqCtx.ContextID}, cancelQueue))

	select {
	case err := <-ag.stopped:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("agent context was not canceled")
	}

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("execute did not return")
	}

	requireFinalState(t, cancelQueue.last(), a2a.TaskStateCanceled)

	// Cancel owns the terminal event, Execute adds nothing after working.
	status, ok := queue.last().(*a2a.TaskStatusUpdateEvent)
	require.True(t, ok)
	assert.Equal(t, a2a.TaskStateWorking, status.Status.State)
}

func TestExecutorCancelUnknownTask(t *testing.T) {
	exec := NewExecutor(newBlockingAgent())
	queue := &recordingQueue{}

	require.NoError(t, exec.Cancel(context.Background(), &a2asrv.RequestContext{TaskID: a2a.NewTaskID(), ContextID: "ctx-1"}, queue))
	requireFinalState(t, queue.last(), a2a.TaskStateCanceled)
}

func TestExecutorRequestContextEnds(t *testing.T) {
	ag := newBlockingAgent()
	exec := NewExecutor(ag)
	queue := &recordingQueue{}

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- exec.Execute(ctx, newRequest(), queue) }()

	select {
	case <-ag.started:
	case <-time.After(5 * time.Second):
		t.Fatal("agent did not start")
	}

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("execute did not return")
	}

	requireFinalState(t, queue.last(), a2a.TaskStateCanceled)
}
