package divergence

import (
	"fmt"

	"github.com/sauravvenkat/forkline/pkg/runmodel"
)

// tryResync implements the bounded resync search triggered by a
// name mismatch at position i. It returns (result, true, nil) on a
// successful missing_steps/extra_steps resync, (zero, false, nil) when
// no resync is found within the window (caller falls back to
// op_divergence), or a non-nil error only if fingerprinting fails.
func tryResync(a, b runmodel.Run, i int, cfg Config) (DivergenceResult, bool, error) {
	sigsA, err := softSignaturesInWindow(a.Steps, i, cfg.Window)
	if err != nil {
		return DivergenceResult{}, false, err
	}
	sigsB, err := softSignaturesInWindow(b.Steps, i, cfg.Window)
	if err != nil {
		return DivergenceResult{}, false, err
	}

	bestDa, bestDb, found := -1, -1, false
	for da := 0; da <= cfg.Window; da++ {
		if i+da >= len(a.Steps) {
			continue
		}
		for db := 0; db <= cfg.Window; db++ {
			if da == 0 && db == 0 {
				continue
			}
			if i+db >= len(b.Steps) {
				continue
			}
			if sigsA[da] != sigsB[db] {
				continue
			}
			if !found || better(da, db, bestDa, bestDb) {
				bestDa, bestDb, found = da, db, true
			}
		}
	}

	if !found {
		return DivergenceResult{}, false, nil
	}

	switch {
	case bestDb == 0: // da > 0, db == 0
		res := DivergenceResult{
			Status:       StatusMissingSteps,
			IdxA:         i,
			IdxB:         i,
			Explanation:  missingOrExtraExplanation(StatusMissingSteps, i, i+bestDa-1),
			LastEqualIdx: i - 1,
			ContextA:     contextWindowFP(a.Steps, i, cfg.ContextSize),
			ContextB:     contextWindowFP(b.Steps, i, cfg.ContextSize),
		}
		return res, true, nil
	case bestDa == 0: // db > 0, da == 0
		res := DivergenceResult{
			Status:       StatusExtraSteps,
			IdxA:         i,
			IdxB:         i,
			Explanation:  missingOrExtraExplanation(StatusExtraSteps, i, i+bestDb-1),
			LastEqualIdx: i - 1,
			ContextA:     contextWindowFP(a.Steps, i, cfg.ContextSize),
			ContextB:     contextWindowFP(b.Steps, i, cfg.ContextSize),
		}
		return res, true, nil
	default:
		// da > 0 and db > 0: ambiguous resync, fall through to classify
		// by strict priority at position i.
		return DivergenceResult{}, false, nil
	}
}

// better reports whether (da, db) is strictly nearer than (bestDa,
// bestDb): (da+db) ascending, ties by da ascending, further ties by
// db ascending.
func better(da, db, bestDa, bestDb int) bool {
	sum, bestSum := da+db, bestDa+bestDb
	if sum != bestSum {
		return sum < bestSum
	}
	if da != bestDa {
		return da < bestDa
	}
	return db < bestDb
}

func softSignaturesInWindow(steps []runmodel.Step, i, window int) ([]runmodel.SoftSignature, error) {
	out := make([]runmodel.SoftSignature, window+1)
	for d := 0; d <= window; d++ {
		idx := i + d
		if idx >= len(steps) {
			continue
		}
		sig, err := runmodel.ComputeSoftSignature(steps[idx])
		if err != nil {
			return nil, fmt.Errorf("divergence: resync signature at %d: %w", idx, err)
		}
		out[d] = sig
	}
	return out, nil
}
