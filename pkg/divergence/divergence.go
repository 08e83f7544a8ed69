// Package divergence implements Forkline's First-Divergence Engine: a
// lockstep walk over two recorded runs, classification by strict
// priority, and a bounded resync search.
//
// The engine walks both runs side by side, checking a priority ladder
// of fingerprint equalities at each index and returning at the first
// disagreement. It never reports a second divergence: cascading
// differences are downstream of root cause.
package divergence

import (
	"fmt"

	"github.com/sauravvenkat/forkline/pkg/differ"
	"github.com/sauravvenkat/forkline/pkg/runmodel"
	"github.com/sauravvenkat/forkline/pkg/value"
)

// Status is the classification of a comparison between two runs.
type Status string

const (
	StatusExactMatch       Status = "exact_match"
	StatusOpDivergence     Status = "op_divergence"
	StatusInputDivergence  Status = "input_divergence"
	StatusOutputDivergence Status = "output_divergence"
	StatusErrorDivergence  Status = "error_divergence"
	StatusMissingSteps     Status = "missing_steps"
	StatusExtraSteps       Status = "extra_steps"
)

// Show selects which diff fields a DivergenceResult carries.
type Show string

const (
	ShowInput  Show = "input"
	ShowOutput Show = "output"
	ShowBoth   Show = "both"
)

// Config parameterizes a comparison.
type Config struct {
	Window      int // W >= 0
	ContextSize int // C >= 0
	Show        Show
}

// StepSummary is the fingerprint view of a step surfaced in results.
type StepSummary struct {
	Idx        int    `json:"idx"`
	Name       string `json:"name"`
	InputHash  string `json:"input_hash"`
	OutputHash string `json:"output_hash"`
	EventCount int    `json:"event_count"`
	HasError   bool   `json:"has_error"`
}

// DivergenceResult is the total, deterministic, JSON-serializable answer
// to "where did run A and run B first diverge, and why". Logically
// immutable once returned: callers must not mutate it.
type DivergenceResult struct {
	Status       Status        `json:"status"`
	IdxA         int           `json:"idx_a"`
	IdxB         int           `json:"idx_b"`
	Explanation  string        `json:"explanation"`
	OldStep      *StepSummary  `json:"old_step,omitempty"`
	NewStep      *StepSummary  `json:"new_step,omitempty"`
	InputDiff    []differ.Op   `json:"input_diff,omitempty"`
	OutputDiff   []differ.Op   `json:"output_diff,omitempty"`
	LastEqualIdx int           `json:"last_equal_idx"`
	ContextA     []StepSummary `json:"context_a"`
	ContextB     []StepSummary `json:"context_b"`
}

func summarize(s runmodel.Step, fp runmodel.Fingerprint) StepSummary {
	return StepSummary{
		Idx:        s.Idx,
		Name:       s.Name,
		InputHash:  fp.InputHash,
		OutputHash: fp.OutputHash,
		EventCount: len(s.Events),
		HasError:   fp.HasError,
	}
}

// FindFirst walks a and b lockstep and returns the first point of
// divergence by strict priority, with a bounded resync search for
// name mismatches.
func FindFirst(a, b runmodel.Run, cfg Config) (DivergenceResult, error) {
	fpsA, err := fingerprintAll(a.Steps)
	if err != nil {
		return DivergenceResult{}, err
	}
	fpsB, err := fingerprintAll(b.Steps)
	if err != nil {
		return DivergenceResult{}, err
	}

	n := len(a.Steps)
	if len(b.Steps) < n {
		n = len(b.Steps)
	}

	for i := 0; i < n; i++ {
		sa, sb := a.Steps[i], b.Steps[i]
		fa, fb := fpsA[i], fpsB[i]

		if fa.Name != fb.Name {
			if res, ok, err := tryResync(a, b, i, cfg); err != nil {
				return DivergenceResult{}, err
			} else if ok {
				return res, nil
			}
			return classifyOpDivergence(a, b, sa, sb, fa, fb, i, cfg), nil
		}

		if fa.InputHash != fb.InputHash {
			return classifyInputDivergence(a, b, sa, sb, fa, fb, i, cfg)
		}

		if fa.HasError != fb.HasError || (fa.HasError && fb.HasError && !errorPayloadsEqual(sa, sb)) {
			return classifyErrorDivergence(a, b, sa, sb, fa, fb, i, cfg), nil
		}

		if fa.OutputHash != fb.OutputHash {
			return classifyOutputDivergence(a, b, sa, sb, fa, fb, i, cfg, false)
		}

		if fa.EventsHash != fb.EventsHash {
			return classifyOutputDivergence(a, b, sa, sb, fa, fb, i, cfg, true)
		}
	}

	if len(a.Steps) == len(b.Steps) {
		return DivergenceResult{
			Status:       StatusExactMatch,
			IdxA:         n,
			IdxB:         n,
			Explanation:  fmt.Sprintf("Runs are identical (%d steps compared)", n),
			LastEqualIdx: n - 1,
			ContextA:     contextWindow(a.Steps, fpsA, n-1, cfg.ContextSize),
			ContextB:     contextWindow(b.Steps, fpsB, n-1, cfg.ContextSize),
		}, nil
	}

	status := StatusMissingSteps
	last := len(a.Steps) - 1
	if len(b.Steps) > len(a.Steps) {
		status = StatusExtraSteps
		last = len(b.Steps) - 1
	}
	return DivergenceResult{
		Status:       status,
		IdxA:         n,
		IdxB:         n,
		Explanation:  missingOrExtraExplanation(status, n, last),
		LastEqualIdx: n - 1,
		ContextA:     contextWindow(a.Steps, fpsA, n-1, cfg.ContextSize),
		ContextB:     contextWindow(b.Steps, fpsB, n-1, cfg.ContextSize),
	}, nil
}

func fingerprintAll(steps []runmodel.Step) ([]runmodel.Fingerprint, error) {
	out := make([]runmodel.Fingerprint, len(steps))
	for i, s := range steps {
		fp, err := runmodel.ComputeFingerprint(s)
		if err != nil {
			return nil, err
		}
		out[i] = fp
	}
	return out, nil
}

func errorPayloadsEqual(a, b runmodel.Step) bool {
	pa, pb := a.ErrorPayloads(), b.ErrorPayloads()
	if len(pa) != len(pb) {
		return false
	}
	ha, err := canonicalConcatHash(pa)
	if err != nil {
		return false
	}
	hb, err := canonicalConcatHash(pb)
	if err != nil {
		return false
	}
	return ha == hb
}

func classifyOpDivergence(a, b runmodel.Run, sa, sb runmodel.Step, fa, fb runmodel.Fingerprint, i int, cfg Config) DivergenceResult {
	oldSum, newSum := summarize(sa, fa), summarize(sb, fb)
	return DivergenceResult{
		Status:       StatusOpDivergence,
		IdxA:         i,
		IdxB:         i,
		Explanation:  fmt.Sprintf("Step %d: operation mismatch ('%s' vs '%s')", i, sa.Name, sb.Name),
		OldStep:      &oldSum,
		NewStep:      &newSum,
		LastEqualIdx: i - 1,
		ContextA:     contextWindowFP(a.Steps, i, cfg.ContextSize),
		ContextB:     contextWindowFP(b.Steps, i, cfg.ContextSize),
	}
}

func classifyInputDivergence(a, b runmodel.Run, sa, sb runmodel.Step, fa, fb runmodel.Fingerprint, i int, cfg Config) (DivergenceResult, error) {
	oldSum, newSum := summarize(sa, fa), summarize(sb, fb)
	res := DivergenceResult{
		Status:       StatusInputDivergence,
		IdxA:         i,
		IdxB:         i,
		Explanation:  fmt.Sprintf("Step %d '%s': input differs", i, sa.Name),
		OldStep:      &oldSum,
		NewStep:      &newSum,
		LastEqualIdx: i - 1,
		ContextA:     contextWindowFP(a.Steps, i, cfg.ContextSize),
		ContextB:     contextWindowFP(b.Steps, i, cfg.ContextSize),
	}
	if cfg.Show != ShowOutput {
		d, err := differ.Diff(value.Seq(sa.InputPayloads()...), value.Seq(sb.InputPayloads()...))
		if err != nil {
			return DivergenceResult{}, err
		}
		res.InputDiff = d
	}
	return res, nil
}

func classifyErrorDivergence(a, b runmodel.Run, sa, sb runmodel.Step, fa, fb runmodel.Fingerprint, i int, cfg Config) DivergenceResult {
	oldSum, newSum := summarize(sa, fa), summarize(sb, fb)
	return DivergenceResult{
		Status:       StatusErrorDivergence,
		IdxA:         i,
		IdxB:         i,
		Explanation:  fmt.Sprintf("Step %d '%s': error state differs", i, sa.Name),
		OldStep:      &oldSum,
		NewStep:      &newSum,
		LastEqualIdx: i - 1,
		ContextA:     contextWindowFP(a.Steps, i, cfg.ContextSize),
		ContextB:     contextWindowFP(b.Steps, i, cfg.ContextSize),
	}
}

func classifyOutputDivergence(a, b runmodel.Run, sa, sb runmodel.Step, fa, fb runmodel.Fingerprint, i int, cfg Config, fullEvents bool) (DivergenceResult, error) {
	oldSum, newSum := summarize(sa, fa), summarize(sb, fb)
	res := DivergenceResult{
		Status:       StatusOutputDivergence,
		IdxA:         i,
		IdxB:         i,
		Explanation:  fmt.Sprintf("Step %d '%s': output differs (same input)", i, sa.Name),
		OldStep:      &oldSum,
		NewStep:      &newSum,
		LastEqualIdx: i - 1,
		ContextA:     contextWindowFP(a.Steps, i, cfg.ContextSize),
		ContextB:     contextWindowFP(b.Steps, i, cfg.ContextSize),
	}
	if cfg.Show != ShowInput {
		var oldVal, newVal value.Value
		if fullEvents {
			oldVal, newVal = eventsValue(sa), eventsValue(sb)
		} else {
			oldVal, newVal = value.Seq(sa.OutputPayloads()...), value.Seq(sb.OutputPayloads()...)
		}
		d, err := differ.Diff(oldVal, newVal)
		if err != nil {
			return DivergenceResult{}, err
		}
		res.OutputDiff = d
	}
	return res, nil
}

func eventsValue(s runmodel.Step) value.Value {
	items := make([]value.Value, len(s.Events))
	for i, e := range s.Events {
		items[i] = value.Map(map[string]value.Value{
			"type":    value.String(string(e.Type)),
			"payload": e.Payload,
		})
	}
	return value.Seq(items...)
}

// missingOrExtraExplanation renders the missing_steps wording
// ("Step(s) i..j from run_a missing in run_b") and its extra_steps
// mirror.
func missingOrExtraExplanation(status Status, i, j int) string {
	source, target := "run_a", "run_b"
	if status == StatusExtraSteps {
		source, target = "run_b", "run_a"
	}
	if i == j {
		return fmt.Sprintf("Step %d from %s missing in %s", i, source, target)
	}
	return fmt.Sprintf("Steps %d..%d from %s missing in %s", i, j, source, target)
}

func contextWindowFP(steps []runmodel.Step, center, c int) []StepSummary {
	fps, err := fingerprintAll(steps)
	if err != nil {
		return nil
	}
	return contextWindow(steps, fps, center, c)
}

func contextWindow(steps []runmodel.Step, fps []runmodel.Fingerprint, center, c int) []StepSummary {
	if center < 0 {
		center = 0
	}
	lo := center - c
	if lo < 0 {
		lo = 0
	}
	hi := center + c
	if hi > len(steps)-1 {
		hi = len(steps) - 1
	}
	if lo > hi || len(steps) == 0 {
		return []StepSummary{}
	}
	out := make([]StepSummary, 0, hi-lo+1)
	for i := lo; i <= hi; i++ {
		out = append(out, summarize(steps[i], fps[i]))
	}
	return out
}

func canonicalConcatHash(items []value.Value) (string, error) {
	return runmodel.Step{Events: wrapAsOutputEvents(items)}.OutputHash()
}

func wrapAsOutputEvents(items []value.Value) []runmodel.Event {
	out := make([]runmodel.Event, len(items))
	for i, v := range items {
		out[i] = runmodel.Event{Type: runmodel.EventOutput, Payload: v}
	}
	return out
}
