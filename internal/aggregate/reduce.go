package aggregate

import (
	"github.com/shopspring/decimal"
)

type (
	// Metrics is the per-bucket reduction result.
	Metrics struct {
		Sum   decimal.Decimal
		Count int
	}

	// Reduction maps bucket labels to metrics and counts what was left out.
	Reduction struct {
		ByBucket   map[string]Metrics
		OutOfRange int
		Malformed  int
		Rejected   []MalformedRecordError
	}
)

// Reduce assigns every well-formed record to the bucket whose [Start, End)
// contains its timestamp. A timestamp equal to a boundary belongs to the
// bucket starting there. Records outside every bucket are counted in
// OutOfRange; records missing a timestamp or amount are counted in
// Malformed and listed in Rejected. Every bucket gets an entry, even when
// empty.
func Reduce(records []Record, buckets []Bucket) Reduction {
	out := Reduction{
		ByBucket: make(map[string]Metrics, len(buckets)),
	}
	for _, b := range buckets {
		out.ByBucket[b.Label] = Metrics{Sum: decimal.Zero}
	}

	for i, r := range records {
		if err := r.Validate(i); err != nil {
			out.Malformed++
			out.Rejected = append(out.Rejected, err.(MalformedRecordError))
			continue
		}
		idx := locate(buckets, r.Timestamp)
		if idx < 0 {
			out.OutOfRange++
			continue
		}
		label := buckets[idx].Label
		m := out.ByBucket[label]
		m.Sum = m.Sum.Add(r.Amount.Decimal)
		m.Count++
		out.ByBucket[label] = m
	}
	return out
}

// CategorySum is the raw input to Normalize.
type CategorySum struct {
	Category string
	RawSum   decimal.Decimal
}

// Breakdown sums the amounts of in-range, well-formed records per value of
// dimension. Categories are returned in the order they are first seen.
func Breakdown(records []Record, buckets []Bucket, dimension string) []CategorySum {
	index := map[string]int{}
	out := make([]CategorySum, 0)
	for i, r := range records {
		if r.Validate(i) != nil || locate(buckets, r.Timestamp) < 0 {
			continue
		}
		key := r.Dimension(dimension)
		pos, seen := index[key]
		if !seen {
			pos = len(out)
			index[key] = pos
			out = append(out, CategorySum{Category: key, RawSum: decimal.Zero})
		}
		out[pos].RawSum = out[pos].RawSum.Add(r.Amount.Decimal)
	}
	return out
}
