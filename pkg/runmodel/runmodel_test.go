package runmodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sauravvenkat/forkline/pkg/value"
)

func TestRun_ValidateContiguousIndices(t *testing.T) {
	r := Run{
		RunID: "r1",
		Steps: []Step{
			{Idx: 0, Name: "init"},
			{Idx: 1, Name: "prepare"},
		},
	}
	assert.NoError(t, r.Validate())
}

func TestRun_ValidateRejectsIndexGap(t *testing.T) {
	r := Run{
		RunID: "r1",
		Steps: []Step{
			{Idx: 0, Name: "init"},
			{Idx: 2, Name: "prepare"},
		},
	}
	err := r.Validate()
	require.Error(t, err)
	var cre *CorruptRunError
	require.ErrorAs(t, err, &cre)
}

func TestRun_ValidateRejectsEmptyName(t *testing.T) {
	r := Run{RunID: "r1", Steps: []Step{{Idx: 0, Name: ""}}}
	require.Error(t, r.Validate())
}

func TestStep_InputOutputHash(t *testing.T) {
	s := Step{
		Idx:  0,
		Name: "generate_response",
		Events: []Event{
			{Type: EventInput, Payload: value.Map(map[string]value.Value{"q": value.String("hi")})},
			{Type: EventOutput, Payload: value.Map(map[string]value.Value{"text": value.String("hello")})},
		},
	}
	in, err := s.InputHash()
	require.NoError(t, err)
	out, err := s.OutputHash()
	require.NoError(t, err)
	assert.NotEqual(t, in, out)
	assert.Len(t, in, 64)
}

func TestStep_HasError(t *testing.T) {
	withErr := Step{Events: []Event{{Type: EventError, Payload: value.String("boom")}}}
	withoutErr := Step{Events: []Event{{Type: EventOutput, Payload: value.String("ok")}}}
	assert.True(t, withErr.HasError())
	assert.False(t, withoutErr.HasError())
}

func TestStep_EventsHashExcludesTimestamp(t *testing.T) {
	s1 := Step{Events: []Event{{Type: EventOutput, Payload: value.Int(1), Timestamp: "t1"}}}
	s2 := Step{Events: []Event{{Type: EventOutput, Payload: value.Int(1), Timestamp: "t2-different"}}}
	h1, err := s1.EventsHash()
	require.NoError(t, err)
	h2, err := s2.EventsHash()
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestComputeFingerprint_DeterministicAcrossCalls(t *testing.T) {
	s := Step{
		Name: "tool_call",
		Events: []Event{
			{Type: EventInput, Payload: value.String("x")},
			{Type: EventOutput, Payload: value.String("y")},
		},
	}
	f1, err := ComputeFingerprint(s)
	require.NoError(t, err)
	f2, err := ComputeFingerprint(s)
	require.NoError(t, err)
	assert.Equal(t, f1, f2)
}

func TestComputeSoftSignature(t *testing.T) {
	s := Step{Name: "tool_call", Events: []Event{{Type: EventInput, Payload: value.String("x")}}}
	sig, err := ComputeSoftSignature(s)
	require.NoError(t, err)
	assert.Equal(t, "tool_call", sig.Name)
	assert.Len(t, sig.InputHash, 64)
}
