package agent

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/agentbridge/core"
	"github.com/hupe1980/agentbridge/logging"
	"github.com/hupe1980/agentbridge/tool"
)

// functionExecutor runs a batch of function calls with bounded parallelism.
// It produces exactly one response per call, in call order, and never fails
// the batch because of a single tool.
type functionExecutor struct {
	agentName   string
	registry    *tool.Registry
	maxParallel int
	timeout     time.Duration
	logger      logging.Logger
}

// batchResult holds the ordered responses and the merged state delta.
type batchResult struct {
	Content core.Content
	Delta   map[string]any
}

func (e *functionExecutor) Execute(base *core.ToolContext, calls []core.FunctionCall) batchResult {
	n := len(calls)
	responses := make([]core.FunctionResponse, n)
	deltas := make([]map[string]any, n)

	limit := e.maxParallel
	if limit <= 0 || limit > n {
		limit = n
	}

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}

	batchStart := time.Now()

	for i, fc := range calls {
		g.Go(func() error {
			responses[i], deltas[i] = e.executeOne(base, fc)
			return nil
		})
	}

	_ = g.Wait()

	parts := make([]core.Part, 0, n)
	delta := map[string]any{}

	for i := range calls {
		parts = append(parts, core.FunctionResponsePart{FunctionResponse: responses[i]})
		for k, v := range deltas[i] {
			delta[k] = v
		}
	}

	e.logger.Debug(
		"agent.functions.batch.complete",
		"agent", e.agentName,
		"count", n,
		"parallelism", limit,
		"duration_ms", time.Since(batchStart).Milliseconds(),
	)

	return batchResult{Content: core.Content{Role: core.RoleTool, Parts: parts}, Delta: delta}
}

func (e *functionExecutor) executeOne(base *core.ToolContext, fc core.FunctionCall) (core.FunctionResponse, map[string]any) {
	toolCtx := base.WithFunctionCall(fc.ID)

	if e.timeout > 0 {
		ctx, cancel := context.WithTimeout(base.Context(), e.timeout)
		defer cancel()

		toolCtx = toolCtx.WithContext(ctx)
	}

	start := time.Now()
	result, err := e.registry.Invoke(toolCtx, fc.Name, fc.Arguments)

	e.logger.Info(
		"agent.function.executed",
		"agent", e.agentName,
		"function", fc.Name,
		"function_call_id", fc.ID,
		"duration_ms", time.Since(start).Milliseconds(),
		"error", err != nil,
	)

	resp := core.FunctionResponse{ID: fc.ID, Name: fc.Name, Response: result}
	if err != nil {
		resp.Response = nil
		resp.Error = err.Error()

		return resp, nil
	}

	return resp, toolCtx.StateDelta()
}
