package agent

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentbridge/catalog"
	"github.com/hupe1980/agentbridge/core"
	"github.com/hupe1980/agentbridge/internal/testutil"
	"github.com/hupe1980/agentbridge/model"
	"github.com/hupe1980/agentbridge/producttools"
	"github.com/hupe1980/agentbridge/session"
	"github.com/hupe1980/agentbridge/tool"
)

func echoTool(name string) tool.Tool {
	return tool.NewFunctionTool(name, "Echo the value argument", map[string]any{
		"type": "object",
		"properties": map[string]any{
			"value": map[string]any{"type": "string"},
		},
		"required": []string{"value"},
	}, func(_ *core.ToolContext, args map[string]any) (any, error) {
		return map[string]any{"echo": args["value"]}, nil
	})
}

func failingTool() tool.Tool {
	return tool.NewFunctionTool("explode", "Always fails", nil, func(*core.ToolContext, map[string]any) (any, error) {
		return nil, errors.New("catalog api: 404 not_found: product not found")
	})
}

func lastToolContent(t *testing.T, req model.Request) core.Content {
	t.Helper()
	require.NotEmpty(t, req.Contents)

	c := req.Contents[len(req.Contents)-1]
	require.Equal(t, core.RoleTool, c.Role)

	return c
}

func TestModelAgent_PlainReply(t *testing.T) {
	llm := model.NewScriptedModel("scripted").ReplyText("hello there")
	a := NewModelAgent("assistant", llm, tool.NewRegistry(echoTool("echo")))

	res, err := a.Execute(context.Background(), Task{SessionID: "s1", Text: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hello there", res.Text)
	assert.Equal(t, 1, res.Data["iterations"])
	assert.Equal(t, 0, res.Data["tool_calls"])

	reqs := llm.Requests()
	require.Len(t, reqs, 1)
	require.Len(t, reqs[0].Contents, 1)
	assert.Equal(t, "hi", reqs[0].Contents[0].Text())
	require.Len(t, reqs[0].Tools, 1)
	assert.Equal(t, "echo", reqs[0].Tools[0].Name)
	assert.Contains(t, reqs[0].Instructions, "product catalog assistant")
}

func TestModelAgent_MessageInputWins(t *testing.T) {
	llm := model.NewScriptedModel("scripted").ReplyText("ok")
	a := NewModelAgent("assistant", llm, nil)

	_, err := a.Execute(context.Background(), Task{Input: map[string]any{"message": "from input"}, Text: "from text"})
	require.NoError(t, err)
	assert.Equal(t, "from input", llm.Requests()[0].Contents[0].Text())
}

func TestModelAgent_EmptyMessage(t *testing.T) {
	llm := model.NewScriptedModel("scripted")
	a := NewModelAgent("assistant", llm, nil)

	_, err := a.Execute(context.Background(), Task{Skill: SkillChat, Text: "   "})
	requireSkillError(t, err, CodeInvalidInput)
	assert.Empty(t, llm.Requests())
}

func TestModelAgent_UnknownSkill(t *testing.T) {
	a := NewModelAgent("assistant", model.NewScriptedModel("scripted"), nil)

	_, err := a.Execute(context.Background(), Task{Skill: "restock", Text: "hi"})
	requireSkillError(t, err, CodeUnknownSkill)
}

func TestModelAgent_ToolLoop(t *testing.T) {
	llm := model.NewScriptedModel("scripted").
		Reply(testutil.NewContentBuilder().Call("c1", "echo", map[string]any{"value": "ping"}).Build()).
		ReplyText("done")

	a := NewModelAgent("assistant", llm, tool.NewRegistry(echoTool("echo")))

	res, err := a.Execute(context.Background(), Task{SessionID: "s1", Text: "call echo"})
	require.NoError(t, err)
	assert.Equal(t, "done", res.Text)
	assert.Equal(t, 2, res.Data["iterations"])
	assert.Equal(t, 1, res.Data["tool_calls"])

	reqs := llm.Requests()
	require.Len(t, reqs, 2)

	toolContent := lastToolContent(t, reqs[1])
	responses := toolContent.FunctionResponses()
	require.Len(t, responses, 1)
	assert.Equal(t, "c1", responses[0].ID)
	assert.Equal(t, map[string]any{"echo": "ping"}, responses[0].Response)
	assert.Empty(t, responses[0].Error)
}

func TestModelAgent_ParallelCallsKeepOrder(t *testing.T) {
	var inFlight, peak atomic.Int32

	slow := tool.NewFunctionTool("slow", "Sleeps", nil, func(_ *core.ToolContext, args map[string]any) (any, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)

		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}

		time.Sleep(20 * time.Millisecond)

		return args["n"], nil
	})

	b := testutil.NewContentBuilder()
	for i, id := range []string{"c1", "c2", "c3", "c4", "c5"} {
		b.Call(id, "slow", map[string]any{"n": float64(i)})
	}

	llm := model.NewScriptedModel("scripted").Reply(b.Build()).ReplyText("done")
	a := NewModelAgent("assistant", llm, tool.NewRegistry(slow), func(o *ModelAgentOptions) {
		o.MaxParallelTools = 2
	})

	_, err := a.Execute(context.Background(), Task{Text: "go"})
	require.NoError(t, err)

	responses := lastToolContent(t, llm.Requests()[1]).FunctionResponses()
	require.Len(t, responses, 5)

	for i, r := range responses {
		assert.Equal(t, float64(i), r.Response)
	}

	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestModelAgent_ToolErrorsAreFedBack(t *testing.T) {
	llm := model.NewScriptedModel("scripted").
		Reply(testutil.NewContentBuilder().
			Call("c1", "explode", nil).
			Call("c2", "missing", nil).
			Call("c3", "echo", map[string]any{}).
			Build()).
		ReplyFunc(func(req model.Request) (*model.Response, error) {
			return &model.Response{Content: core.NewTextContent(core.RoleAssistant, "recovered")}, nil
		})

	a := NewModelAgent("assistant", llm, tool.NewRegistry(echoTool("echo"), failingTool()))

	res, err := a.Execute(context.Background(), Task{Text: "break things"})
	require.NoError(t, err)
	assert.Equal(t, "recovered", res.Text)

	responses := lastToolContent(t, llm.Requests()[1]).FunctionResponses()
	require.Len(t, responses, 3)

	assert.Contains(t, responses[0].Error, "product not found")
	assert.Contains(t, responses[1].Error, tool.CodeNotFound)
	assert.Contains(t, responses[2].Error, tool.CodeValidation)

	for _, r := range responses {
		assert.Nil(t, r.Response)
	}
}

func TestModelAgent_IterationLimit(t *testing.T) {
	call := testutil.NewContentBuilder().Call("c", "echo", map[string]any{"value": "x"}).Build()
	llm := model.NewScriptedModel("scripted").Reply(call).Reply(call).Reply(call)

	a := NewModelAgent("assistant", llm, tool.NewRegistry(echoTool("echo")), func(o *ModelAgentOptions) {
		o.MaxIterations = 2
	})

	_, err := a.Execute(context.Background(), Task{Text: "loop forever"})
	skillErr := requireSkillError(t, err, CodeRejected)
	assert.ErrorIs(t, err, core.ErrLimitExceeded)
	assert.Contains(t, skillErr.Message, "2")
	assert.Len(t, llm.Requests(), 2)
	assert.Equal(t, 1, llm.Remaining())
}

func TestModelAgent_ModelFailure(t *testing.T) {
	llm := model.NewScriptedModel("scripted").Fail(errors.New("503 upstream"))
	a := NewModelAgent("assistant", llm, nil)

	_, err := a.Execute(context.Background(), Task{Text: "hi"})
	requireSkillError(t, err, CodeUnavailable)
}

func TestModelAgent_HistoryPersistsAcrossTasks(t *testing.T) {
	store := session.NewInMemoryStore()
	llm := model.NewScriptedModel("scripted").
		Reply(testutil.NewContentBuilder().Call("c1", "echo", map[string]any{"value": "a"}).Build()).
		ReplyText("first").
		ReplyText("second")

	a := NewModelAgent("assistant", llm, tool.NewRegistry(echoTool("echo")), func(o *ModelAgentOptions) {
		o.Sessions = store
	})

	_, err := a.Execute(context.Background(), Task{SessionID: "s1", Text: "one"})
	require.NoError(t, err)

	res, err := a.Execute(context.Background(), Task{SessionID: "s1", Text: "two"})
	require.NoError(t, err)
	assert.Equal(t, "second", res.Text)

	reqs := llm.Requests()
	require.Len(t, reqs, 3)

	// user, call, tool response, assistant, user
	contents := reqs[2].Contents
	require.Len(t, contents, 5)
	assert.Equal(t, core.RoleUser, contents[0].Role)
	assert.Equal(t, core.RoleTool, contents[2].Role)
	assert.Equal(t, "two", contents[4].Text())

	sess, err := store.Get("s1")
	require.NoError(t, err)
	assert.Len(t, sess.GetHistory(0), 6)
}

func TestModelAgent_HistoryTrimming(t *testing.T) {
	store := session.NewInMemoryStore()

	b := testutil.NewSessionBuilder("s1").Contents(
		testutil.NewContentBuilder().User().Text("old").Build(),
		testutil.NewContentBuilder().Call("c1", "echo", map[string]any{"value": "v"}).Build(),
		testutil.NewContentBuilder().Response("c1", "echo", "v").Build(),
		testutil.NewContentBuilder().Text("answer").Build(),
		testutil.NewContentBuilder().User().Text("recent").Build(),
		testutil.NewContentBuilder().Text("reply").Build(),
	)
	require.NoError(t, b.Seed(store))

	llm := model.NewScriptedModel("scripted").ReplyText("ok")
	a := NewModelAgent("assistant", llm, nil, func(o *ModelAgentOptions) {
		o.Sessions = store
		o.MaxHistory = 4
	})

	_, err := a.Execute(context.Background(), Task{SessionID: "s1", Text: "now"})
	require.NoError(t, err)

	// The last four entries start with a tool response, so the window
	// begins at the next user turn.
	contents := llm.Requests()[0].Contents
	require.Len(t, contents, 3)
	assert.Equal(t, "recent", contents[0].Text())
	assert.Equal(t, "reply", contents[1].Text())
	assert.Equal(t, "now", contents[2].Text())
}

func TestModelAgent_InstructionUsesSessionState(t *testing.T) {
	store := session.NewInMemoryStore()
	require.NoError(t, testutil.NewSessionBuilder("s1").State("user_name", "Ada").Seed(store))

	setter := tool.NewFunctionTool("remember", "Stores a note", nil, func(tc *core.ToolContext, _ map[string]any) (any, error) {
		tc.SetState("note", "lamp")
		return "ok", nil
	})

	llm := model.NewScriptedModel("scripted").
		Reply(testutil.NewContentBuilder().Call("c1", "remember", nil).Build()).
		ReplyText("done")

	a := NewModelAgent("assistant", llm, tool.NewRegistry(setter), func(o *ModelAgentOptions) {
		o.Sessions = store
		o.Instruction = NewInstructionFromText(`Hello {{.user_name}}.{{with .note}} Note: {{.}}{{end}}`)
	})

	_, err := a.Execute(context.Background(), Task{SessionID: "s1", Text: "hi"})
	require.NoError(t, err)

	reqs := llm.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "Hello Ada.", reqs[0].Instructions)
	assert.Equal(t, "Hello Ada. Note: lamp", reqs[1].Instructions)

	sess, err := store.Get("s1")
	require.NoError(t, err)
	assert.Equal(t, "lamp", sess.State["note"])
}

func TestModelAgent_ToolTimeout(t *testing.T) {
	blocking := tool.NewFunctionTool("block", "Waits for cancellation", nil, func(tc *core.ToolContext, _ map[string]any) (any, error) {
		<-tc.Context().Done()
		return nil, tc.Context().Err()
	})

	llm := model.NewScriptedModel("scripted").
		Reply(testutil.NewContentBuilder().Call("c1", "block", nil).Build()).
		ReplyText("gave up")

	a := NewModelAgent("assistant", llm, tool.NewRegistry(blocking), func(o *ModelAgentOptions) {
		o.ToolTimeout = 10 * time.Millisecond
	})

	res, err := a.Execute(context.Background(), Task{Text: "wait"})
	require.NoError(t, err)
	assert.Equal(t, "gave up", res.Text)

	responses := lastToolContent(t, llm.Requests()[1]).FunctionResponses()
	require.Len(t, responses, 1)
	assert.Contains(t, responses[0].Error, context.DeadlineExceeded.Error())
}

func TestModelAgent_WithProductTools(t *testing.T) {
	cat := testutil.NewCatalog(t)

	llm := model.NewScriptedModel("scripted").
		Reply(testutil.NewContentBuilder().Call("c1", producttools.CreateProduct, map[string]any{"name": "Lamp", "price": 3.0}).Build()).
		ReplyText("created")

	a := NewModelAgent("assistant", llm, producttools.NewRegistry(cat.Client))

	res, err := a.Execute(context.Background(), Task{Text: "add a lamp"})
	require.NoError(t, err)
	assert.Equal(t, "created", res.Text)

	list, err := cat.Store.List(context.Background(), catalog.ListOptions{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Lamp", list[0].Name)
}
