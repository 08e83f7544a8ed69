package divergence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sauravvenkat/forkline/pkg/runmodel"
	"github.com/sauravvenkat/forkline/pkg/value"
)

func step(idx int, name string, events ...runmodel.Event) runmodel.Step {
	return runmodel.Step{Idx: idx, Name: name, Events: events}
}

func in(v value.Value) runmodel.Event  { return runmodel.Event{Type: runmodel.EventInput, Payload: v} }
func out(v value.Value) runmodel.Event { return runmodel.Event{Type: runmodel.EventOutput, Payload: v} }

func TestFindFirst_IdenticalRunsIsExactMatch(t *testing.T) {
	build := func() runmodel.Run {
		return runmodel.Run{
			RunID: "r",
			Steps: []runmodel.Step{
				step(0, "init", in(value.String("a")), out(value.String("b"))),
				step(1, "prepare", in(value.String("c")), out(value.String("d"))),
			},
		}
	}
	a, b := build(), build()
	res, err := FindFirst(a, b, Config{Window: 10, ContextSize: 1, Show: ShowBoth})
	require.NoError(t, err)
	assert.Equal(t, StatusExactMatch, res.Status)
	assert.Equal(t, "Runs are identical (2 steps compared)", res.Explanation)
	assert.Equal(t, 2, res.IdxA)
	assert.Equal(t, 2, res.IdxB)
}

func TestFindFirst_OutputTextDifferenceIsOutputDivergence(t *testing.T) {
	mkRun := func(text string) runmodel.Run {
		return runmodel.Run{
			RunID: "r",
			Steps: []runmodel.Step{
				step(0, "init"),
				step(1, "prepare"),
				step(2, "generate_response",
					in(value.Map(map[string]value.Value{"q": value.String("hi")})),
					out(value.Map(map[string]value.Value{"text": value.String(text)}))),
			},
		}
	}
	a := mkRun("Expected response")
	b := mkRun("Different response")
	res, err := FindFirst(a, b, Config{Window: 10, ContextSize: 1, Show: ShowBoth})
	require.NoError(t, err)
	assert.Equal(t, StatusOutputDivergence, res.Status)
	assert.Equal(t, 1, res.LastEqualIdx)
	require.Len(t, res.OutputDiff, 1)
	assert.Equal(t, "replace", string(res.OutputDiff[0].Op))
	assert.Equal(t, "$[0].text", res.OutputDiff[0].Path)
	assert.Equal(t, "Expected response", res.OutputDiff[0].Old.AsString())
	assert.Equal(t, "Different response", res.OutputDiff[0].New.AsString())
}

func TestFindFirst_InsertedStepIsExtraSteps(t *testing.T) {
	a := runmodel.Run{RunID: "a", Steps: []runmodel.Step{
		step(0, "init"), step(1, "prepare"), step(2, "generate"),
	}}
	b := runmodel.Run{RunID: "b", Steps: []runmodel.Step{
		step(0, "init"), step(1, "prepare"),
		step(2, "extra", in(value.String("distinct"))),
		step(3, "generate"),
	}}
	res, err := FindFirst(a, b, Config{Window: 10, ContextSize: 1, Show: ShowBoth})
	require.NoError(t, err)
	assert.Equal(t, StatusExtraSteps, res.Status)
	assert.Equal(t, 2, res.IdxA)
	assert.Equal(t, 2, res.IdxB)
}

func TestFindFirst_TruncatedRunIsMissingSteps(t *testing.T) {
	a := runmodel.Run{RunID: "a", Steps: []runmodel.Step{
		step(0, "init"), step(1, "prepare"), step(2, "generate"),
	}}
	b := runmodel.Run{RunID: "b", Steps: []runmodel.Step{
		step(0, "init"), step(1, "prepare"),
	}}
	res, err := FindFirst(a, b, Config{Window: 10, ContextSize: 1, Show: ShowBoth})
	require.NoError(t, err)
	assert.Equal(t, StatusMissingSteps, res.Status)
	assert.Equal(t, 2, res.IdxA)
	assert.Equal(t, 2, res.IdxB)
}

func TestFindFirst_StepNameMismatchWithoutResyncIsOpDivergence(t *testing.T) {
	mkSteps := func(name3 string) []runmodel.Step {
		return []runmodel.Step{
			step(0, "init"), step(1, "prepare"), step(2, "fetch"),
			step(3, name3, in(value.String("whatever-"+name3))),
		}
	}
	a := runmodel.Run{RunID: "a", Steps: mkSteps("tool_call")}
	b := runmodel.Run{RunID: "b", Steps: mkSteps("llm_call")}
	res, err := FindFirst(a, b, Config{Window: 10, ContextSize: 1, Show: ShowBoth})
	require.NoError(t, err)
	assert.Equal(t, StatusOpDivergence, res.Status)
	assert.Contains(t, res.Explanation, "tool_call")
	assert.Contains(t, res.Explanation, "llm_call")
}
