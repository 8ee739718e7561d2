package aggregate

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type (
	// BucketSummary is one point of the time series.
	BucketSummary struct {
		Label   string          `json:"label"`
		Start   time.Time       `json:"start"`
		End     time.Time       `json:"end"`
		Sum     decimal.Decimal `json:"sum"`
		Count   int             `json:"count"`
		Average decimal.Decimal `json:"average"`
	}

	// Skipped counts records that did not contribute to a summary.
	Skipped struct {
		OutOfRange int `json:"out_of_range"`
		Malformed  int `json:"malformed"`
	}

	// Summary is the pipeline output handed to rendering and export code.
	Summary struct {
		Unit        Unit                       `json:"unit"`
		RangeDays   int                        `json:"range_days"`
		GeneratedAt time.Time                  `json:"generated_at"`
		Total       decimal.Decimal            `json:"total"`
		Count       int                        `json:"count"`
		Buckets     []BucketSummary            `json:"buckets"`
		Breakdowns  map[string][]CategoryTotal `json:"breakdowns"`
		Skipped     Skipped                    `json:"skipped"`
	}

	// Request parameterizes Build.
	Request struct {
		RangeDays  int
		Unit       Unit
		Now        time.Time
		Dimensions []string
	}
)

// Assemble composes reduced buckets and normalized breakdowns. Buckets keep
// the order of the input slice; breakdown slices are copied.
func Assemble(buckets []Bucket, reduced Reduction, breakdowns map[string][]CategoryTotal) Summary {
	s := Summary{
		Total:      decimal.Zero,
		Buckets:    make([]BucketSummary, len(buckets)),
		Breakdowns: make(map[string][]CategoryTotal, len(breakdowns)),
		Skipped: Skipped{
			OutOfRange: reduced.OutOfRange,
			Malformed:  reduced.Malformed,
		},
	}

	for i, b := range buckets {
		m, ok := reduced.ByBucket[b.Label]
		if !ok {
			m = Metrics{Sum: decimal.Zero}
		}
		avg := decimal.Zero
		if m.Count > 0 {
			avg = m.Sum.DivRound(decimal.NewFromInt(int64(m.Count)), 2)
		}
		s.Buckets[i] = BucketSummary{
			Label:   b.Label,
			Start:   b.Start,
			End:     b.End,
			Sum:     m.Sum,
			Count:   m.Count,
			Average: avg,
		}
		s.Total = s.Total.Add(m.Sum)
		s.Count += m.Count
	}

	for dim, totals := range breakdowns {
		s.Breakdowns[dim] = append([]CategoryTotal(nil), totals...)
	}
	return s
}

// Build runs the whole pipeline for one request. Unit defaults to day and
// Dimensions to the record category; Now defaults to the current time.
func Build(records []Record, req Request) (Summary, error) {
	unit := req.Unit
	if unit == "" {
		unit = UnitDay
	}
	now := req.Now
	if now.IsZero() {
		now = time.Now()
	}

	buckets, err := Bucketize(req.RangeDays, unit, now)
	if err != nil {
		return Summary{}, fmt.Errorf("bucketize: %w", err)
	}
	reduced := Reduce(records, buckets)

	dims := normalizeDimensions(req.Dimensions)
	breakdowns := make(map[string][]CategoryTotal, len(dims))
	for _, dim := range dims {
		breakdowns[dim] = Normalize(Breakdown(records, buckets, dim))
	}

	s := Assemble(buckets, reduced, breakdowns)
	s.Unit = unit
	s.RangeDays = req.RangeDays
	s.GeneratedAt = now
	return s, nil
}

// Dimensions returns the breakdown names in a stable order: category
// first, then the rest alphabetically.
func (s Summary) Dimensions() []string {
	dims := make([]string, 0, len(s.Breakdowns))
	for d := range s.Breakdowns {
		dims = append(dims, d)
	}
	sort.Slice(dims, func(i, j int) bool {
		if (dims[i] == DimensionCategory) != (dims[j] == DimensionCategory) {
			return dims[i] == DimensionCategory
		}
		return dims[i] < dims[j]
	})
	return dims
}

// ParseDimensions splits a comma separated list, dropping blanks.
func ParseDimensions(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func normalizeDimensions(in []string) []string {
	if len(in) == 0 {
		return []string{DimensionCategory}
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, d := range in {
		d = strings.ToLower(strings.TrimSpace(d))
		if d == "" {
			continue
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	if len(out) == 0 {
		return []string{DimensionCategory}
	}
	return out
}

// DimensionKey identifies the set of breakdowns Build produces for dims.
// Order, case and duplicates do not matter.
func DimensionKey(dims []string) string {
	out := normalizeDimensions(dims)
	sort.Strings(out)
	return strings.Join(out, ",")
}
