package reconcile

import (
	"math"

	"fsrecon/internal/model"
)

// Tolerance is the absolute difference, in KRW, under which two amounts
// count as equal. Rounding in published filings loses at most fractions of
// a won, so anything beyond one won is a real discrepancy.
const Tolerance = 1.0

// Scales tried against a claimed value, in order. Filings quote the same
// figure in won, thousands of won, or millions of won depending on the
// statement's unit line, and the oracle reports whatever the text says.
var Scales = []float64{1, 1_000, 1_000_000}

// Verification is the outcome of checking one claimed value against the
// authoritative source amount.
type Verification struct {
	Outcome    model.Outcome
	Scale      float64 // scale factor that matched, 0 when none did
	Variance   float64 // best-fit scaled claim minus source
	Normalized float64 // claimed value after the best-fit scale
}

// Verify compares a source amount with a value claimed to appear in the
// target text. Only the claimed side is rescaled; the source amount is
// already normalized to won. A claim the oracle did not find, or found
// without a number, is unverifiable rather than mismatched.
func Verify(source float64, claimed *float64, found bool) Verification {
	if !found || claimed == nil {
		return Verification{Outcome: model.OutcomeUnverifiable}
	}

	bestVariance := math.Inf(1)
	bestScale := Scales[0]
	for _, scale := range Scales {
		scaled := *claimed * scale
		diff := scaled - source
		if math.Abs(diff) <= Tolerance {
			return Verification{
				Outcome:    model.OutcomeMatched,
				Scale:      scale,
				Variance:   diff,
				Normalized: scaled,
			}
		}
		if math.Abs(diff) < math.Abs(bestVariance) {
			bestVariance = diff
			bestScale = scale
		}
	}
	return Verification{
		Outcome:    model.OutcomeMismatched,
		Scale:      bestScale,
		Variance:   bestVariance,
		Normalized: *claimed * bestScale,
	}
}
