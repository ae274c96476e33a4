package flow

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/studymesh/core"
	"github.com/hupe1980/studymesh/tool"
)

func TestParallelFunctionExecutor_PreservesCallOrder(t *testing.T) {
	var inFlight, peak int32
	slow := tool.NewFunctionTool("slow", "", nil, func(_ *core.ToolContext, args map[string]any) (any, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return args["n"], nil
	})
	reg := tool.NewRegistry()
	require.NoError(t, reg.Register(slow))

	calls := []core.FunctionCall{
		{ID: "a", Name: "slow", Arguments: `{"n":1}`},
		{ID: "b", Name: "slow", Arguments: `{"n":2}`},
		{ID: "c", Name: "slow", Arguments: `{"n":3}`},
	}

	exec := NewParallelFunctionExecutor(FunctionExecutorConfig{MaxParallel: 2})
	events, err := exec.Execute(newRunContext(&eventSink{}, "x"), "task_planner", reg, calls)
	require.NoError(t, err)
	require.Len(t, events, 3)

	for i, id := range []string{"a", "b", "c"} {
		assert.Equal(t, id, events[i].GetFunctionResponses()[0].ID)
	}
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestParallelFunctionExecutor_Empty(t *testing.T) {
	events, err := NewParallelFunctionExecutor(FunctionExecutorConfig{}).Execute(newRunContext(&eventSink{}, "x"), "a", tool.NewRegistry(), nil)
	assert.NoError(t, err)
	assert.Nil(t, events)
}
