package aggregate

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// CategoryTotal is one entry of a breakdown.
type CategoryTotal struct {
	Category   string          `json:"category"`
	RawSum     decimal.Decimal `json:"raw_sum"`
	Percentage decimal.Decimal `json:"percentage"`
}

// Normalize converts raw sums into percentages rounded to two decimals
// (half away from zero). The rounding drift 100 - sum(percentages) is added
// to the entry with the largest raw sum, the first one on ties, so the group
// closes at exactly 100. When the total is zero every percentage is zero and
// no drift is applied.
func Normalize(sums []CategorySum) []CategoryTotal {
	out := make([]CategoryTotal, len(sums))
	total := decimal.Zero
	for _, s := range sums {
		total = total.Add(s.RawSum)
	}

	if total.IsZero() {
		for i, s := range sums {
			out[i] = CategoryTotal{Category: s.Category, RawSum: s.RawSum, Percentage: decimal.Zero}
		}
		return out
	}

	sum := decimal.Zero
	largest := 0
	for i, s := range sums {
		pct := s.RawSum.Mul(hundred).DivRound(total, 2)
		out[i] = CategoryTotal{Category: s.Category, RawSum: s.RawSum, Percentage: pct}
		sum = sum.Add(pct)
		if s.RawSum.GreaterThan(sums[largest].RawSum) {
			largest = i
		}
	}

	if drift := hundred.Sub(sum); !drift.IsZero() {
		out[largest].Percentage = out[largest].Percentage.Add(drift)
	}
	return out
}
