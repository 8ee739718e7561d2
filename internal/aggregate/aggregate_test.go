package aggregate

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
)

var decimalComparer = cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func daysAgo(n int) time.Time { return fixedNow.AddDate(0, 0, -n) }

func TestBuild_SkipsRecordsBeforeWindow(t *testing.T) {
	records := []Record{
		NewRecord(daysAgo(0), "food", dec("10")),
		NewRecord(daysAgo(1), "food", dec("5")),
		NewRecord(daysAgo(8), "food", dec("99")),
	}

	s, err := Build(records, Request{RangeDays: 7, Unit: UnitDay, Now: fixedNow})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(s.Buckets) != 7 {
		t.Fatalf("len(Buckets) = %d, want 7", len(s.Buckets))
	}
	if s.Skipped.OutOfRange != 1 {
		t.Errorf("OutOfRange = %d, want 1", s.Skipped.OutOfRange)
	}
	if !s.Total.Equal(dec("15")) {
		t.Errorf("Total = %s, want 15", s.Total)
	}
	if s.Count != 2 {
		t.Errorf("Count = %d, want 2", s.Count)
	}
	last := s.Buckets[6]
	if last.Label != "2025-06-15" || !last.Sum.Equal(dec("10")) || last.Count != 1 {
		t.Errorf("last bucket = %+v", last)
	}
	yesterday := s.Buckets[5]
	if yesterday.Label != "2025-06-14" || !yesterday.Sum.Equal(dec("5")) || yesterday.Count != 1 {
		t.Errorf("yesterday's bucket = %+v", yesterday)
	}
	for _, b := range s.Buckets[:5] {
		if b.Count != 0 {
			t.Errorf("bucket %s count = %d, want 0", b.Label, b.Count)
		}
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   []CategorySum
		want []CategoryTotal
	}{
		{
			name: "exact split",
			in: []CategorySum{
				{Category: "A", RawSum: dec("30")},
				{Category: "B", RawSum: dec("20")},
			},
			want: []CategoryTotal{
				{Category: "A", RawSum: dec("30"), Percentage: dec("60")},
				{Category: "B", RawSum: dec("20"), Percentage: dec("40")},
			},
		},
		{
			name: "thirds put drift on first largest",
			in: []CategorySum{
				{Category: "A", RawSum: dec("1")},
				{Category: "B", RawSum: dec("1")},
				{Category: "C", RawSum: dec("1")},
			},
			want: []CategoryTotal{
				{Category: "A", RawSum: dec("1"), Percentage: dec("33.34")},
				{Category: "B", RawSum: dec("1"), Percentage: dec("33.33")},
				{Category: "C", RawSum: dec("1"), Percentage: dec("33.33")},
			},
		},
		{
			name: "drift goes to largest not first",
			in: []CategorySum{
				{Category: "small", RawSum: dec("1")},
				{Category: "big", RawSum: dec("2")},
			},
			want: []CategoryTotal{
				{Category: "small", RawSum: dec("1"), Percentage: dec("33.33")},
				{Category: "big", RawSum: dec("2"), Percentage: dec("66.67")},
			},
		},
		{
			name: "zero total",
			in: []CategorySum{
				{Category: "A", RawSum: decimal.Zero},
				{Category: "B", RawSum: decimal.Zero},
			},
			want: []CategoryTotal{
				{Category: "A", RawSum: decimal.Zero, Percentage: decimal.Zero},
				{Category: "B", RawSum: decimal.Zero, Percentage: decimal.Zero},
			},
		},
		{
			name: "empty",
			in:   nil,
			want: []CategoryTotal{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.in)
			if diff := cmp.Diff(tt.want, got, decimalComparer); diff != "" {
				t.Errorf("Normalize() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNormalize_AlwaysClosesAtHundred(t *testing.T) {
	groups := [][]string{
		{"1", "1", "1"},
		{"7", "7", "7", "7", "7", "7"},
		{"0.01", "0.01", "0.01"},
		{"10", "20", "30", "40", "50", "60", "70"},
		{"123.45", "0.99", "17", "3.33"},
	}
	for _, g := range groups {
		sums := make([]CategorySum, len(g))
		for i, v := range g {
			sums[i] = CategorySum{Category: v, RawSum: dec(v)}
		}
		total := decimal.Zero
		for _, ct := range Normalize(sums) {
			total = total.Add(ct.Percentage)
			if ct.Percentage.Exponent() < -2 {
				t.Errorf("%v: percentage %s has more than two decimals", g, ct.Percentage)
			}
		}
		if !total.Equal(hundred) {
			t.Errorf("%v: percentages sum to %s, want 100", g, total)
		}
	}
}

func TestBuild_EmptyRecords(t *testing.T) {
	s, err := Build(nil, Request{RangeDays: 30, Unit: UnitDay, Now: fixedNow})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(s.Buckets) != 30 {
		t.Fatalf("len(Buckets) = %d, want 30", len(s.Buckets))
	}
	for _, b := range s.Buckets {
		if !b.Sum.IsZero() || b.Count != 0 || !b.Average.IsZero() {
			t.Fatalf("bucket %s not zero: %+v", b.Label, b)
		}
	}
	if got := s.Breakdowns[DimensionCategory]; len(got) != 0 {
		t.Errorf("category breakdown = %v, want empty", got)
	}
}

func TestBuild_InvalidRange(t *testing.T) {
	_, err := Build(nil, Request{RangeDays: 0, Now: fixedNow})
	if !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}
	var rangeErr *InvalidRangeError
	if !errors.As(err, &rangeErr) {
		t.Fatalf("expected *InvalidRangeError in chain, got %T", err)
	}
}

func TestReduce_ConservesInRangeRecords(t *testing.T) {
	buckets, err := Bucketize(7, UnitDay, fixedNow)
	if err != nil {
		t.Fatalf("Bucketize() error = %v", err)
	}

	var records []Record
	want := decimal.Zero
	for i := 0; i < 40; i++ {
		ts := fixedNow.Add(-time.Duration(i) * 5 * time.Hour)
		amount := decimal.New(int64(i*37%101), -1)
		records = append(records, NewRecord(ts, "c", amount))
		if ts.After(buckets[0].Start) || ts.Equal(buckets[0].Start) {
			want = want.Add(amount)
		}
	}

	red := Reduce(records, buckets)
	got := decimal.Zero
	count := 0
	for _, m := range red.ByBucket {
		got = got.Add(m.Sum)
		count += m.Count
	}
	if !got.Equal(want) {
		t.Errorf("sum over buckets = %s, want %s", got, want)
	}
	if count+red.OutOfRange != len(records) {
		t.Errorf("count %d + out of range %d != %d records", count, red.OutOfRange, len(records))
	}
}

func TestReduce_BoundaryBelongsToLaterBucket(t *testing.T) {
	buckets, err := Bucketize(3, UnitDay, fixedNow)
	if err != nil {
		t.Fatalf("Bucketize() error = %v", err)
	}
	boundary := buckets[1].Start
	red := Reduce([]Record{NewRecord(boundary, "x", dec("4"))}, buckets)

	if got := red.ByBucket[buckets[0].Label].Count; got != 0 {
		t.Errorf("earlier bucket count = %d, want 0", got)
	}
	if got := red.ByBucket[buckets[1].Label].Count; got != 1 {
		t.Errorf("bucket starting at boundary count = %d, want 1", got)
	}

	// The end of the last bucket is outside the window.
	red = Reduce([]Record{NewRecord(buckets[2].End, "x", dec("4"))}, buckets)
	if red.OutOfRange != 1 {
		t.Errorf("OutOfRange = %d, want 1", red.OutOfRange)
	}
}

func TestReduce_Malformed(t *testing.T) {
	buckets, _ := Bucketize(1, UnitDay, fixedNow)
	records := []Record{
		{Category: "no-ts", Amount: decimal.NewNullDecimal(dec("1"))},
		{Timestamp: fixedNow, Category: "no-amount"},
		NewRecord(fixedNow, "ok", dec("2")),
	}

	red := Reduce(records, buckets)
	if red.Malformed != 2 {
		t.Fatalf("Malformed = %d, want 2", red.Malformed)
	}
	want := []MalformedRecordError{
		{Index: 0, Field: "timestamp"},
		{Index: 1, Field: "amount"},
	}
	if diff := cmp.Diff(want, red.Rejected); diff != "" {
		t.Errorf("Rejected mismatch (-want +got):\n%s", diff)
	}
	if !errors.Is(red.Rejected[0], ErrMalformedRecord) {
		t.Errorf("rejected entry does not match ErrMalformedRecord")
	}
	if got := red.ByBucket[buckets[0].Label]; got.Count != 1 || !got.Sum.Equal(dec("2")) {
		t.Errorf("bucket metrics = %+v", got)
	}
}

func TestBuild_ZeroAmountsCount(t *testing.T) {
	records := []Record{
		NewRecord(fixedNow, "free", decimal.Zero),
		NewRecord(fixedNow, "free", decimal.Zero),
	}
	s, err := Build(records, Request{RangeDays: 1, Now: fixedNow})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if s.Count != 2 {
		t.Errorf("Count = %d, want 2", s.Count)
	}
	bd := s.Breakdowns[DimensionCategory]
	if len(bd) != 1 || !bd[0].Percentage.IsZero() {
		t.Errorf("breakdown = %+v, want one zero entry", bd)
	}
}

func TestBuild_AttributeBreakdowns(t *testing.T) {
	records := []Record{
		NewRecord(daysAgo(1), "view", dec("1")).WithAttribute("device", "mobile"),
		NewRecord(daysAgo(1), "view", dec("1")).WithAttribute("device", "mobile"),
		NewRecord(daysAgo(2), "view", dec("1")).WithAttribute("device", "desktop"),
		NewRecord(daysAgo(2), "view", dec("1")),
	}

	s, err := Build(records, Request{
		RangeDays:  7,
		Now:        fixedNow,
		Dimensions: []string{" Device ", "device", "category"},
	})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(s.Breakdowns) != 2 {
		t.Fatalf("breakdowns = %v, want device and category", s.Breakdowns)
	}
	want := []CategoryTotal{
		{Category: "mobile", RawSum: dec("2"), Percentage: dec("50")},
		{Category: "desktop", RawSum: dec("1"), Percentage: dec("25")},
		{Category: UnknownCategory, RawSum: dec("1"), Percentage: dec("25")},
	}
	if diff := cmp.Diff(want, s.Breakdowns["device"], decimalComparer); diff != "" {
		t.Errorf("device breakdown mismatch (-want +got):\n%s", diff)
	}
}

func TestBuild_DoesNotMutateInput(t *testing.T) {
	attrs := map[string]string{"device": "mobile"}
	records := []Record{
		{Timestamp: fixedNow, Category: "a", Amount: decimal.NewNullDecimal(dec("3")), Attributes: attrs},
		NewRecord(daysAgo(2), "b", dec("1")),
	}
	before, _ := json.Marshal(records)

	if _, err := Build(records, Request{RangeDays: 7, Now: fixedNow, Dimensions: []string{"device"}}); err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	after, _ := json.Marshal(records)
	if !bytes.Equal(before, after) {
		t.Fatalf("records mutated:\nbefore %s\nafter  %s", before, after)
	}
}

func TestBuild_Deterministic(t *testing.T) {
	records := []Record{
		NewRecord(daysAgo(0), "hotel", dec("120.50")).WithAttribute("location", "Rome"),
		NewRecord(daysAgo(1), "restaurant", dec("33.10")).WithAttribute("location", "Milan"),
		NewRecord(daysAgo(1), "hotel", dec("80")).WithAttribute("location", "Rome"),
		NewRecord(daysAgo(4), "tour", dec("45.99")),
	}
	req := Request{RangeDays: 7, Unit: UnitDay, Now: fixedNow, Dimensions: []string{"category", "location"}}

	first, err := Build(records, req)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	want, _ := json.Marshal(first)
	for i := 0; i < 5; i++ {
		again, _ := Build(records, req)
		got, _ := json.Marshal(again)
		if !bytes.Equal(want, got) {
			t.Fatalf("run %d differs:\n%s\n%s", i, want, got)
		}
	}
}

func TestAssemble_Average(t *testing.T) {
	buckets, _ := Bucketize(1, UnitDay, fixedNow)
	red := Reduction{ByBucket: map[string]Metrics{
		buckets[0].Label: {Sum: dec("10"), Count: 3},
	}}
	s := Assemble(buckets, red, nil)
	if got := s.Buckets[0].Average; !got.Equal(dec("3.33")) {
		t.Errorf("Average = %s, want 3.33", got)
	}
}

func TestParseDimensions(t *testing.T) {
	got := ParseDimensions(" category, ,location,")
	if diff := cmp.Diff([]string{"category", "location"}, got); diff != "" {
		t.Errorf("ParseDimensions() mismatch (-want +got):\n%s", diff)
	}
	if got := ParseDimensions(""); got != nil {
		t.Errorf("ParseDimensions(\"\") = %v, want nil", got)
	}
}

func TestDimensionKey(t *testing.T) {
	tests := []struct {
		name string
		dims []string
		want string
	}{
		{"empty means category", nil, "category"},
		{"blanks only", []string{" ", ""}, "category"},
		{"sorted", []string{"device", "category"}, "category,device"},
		{"case and duplicates", []string{"Device", " category", "device"}, "category,device"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DimensionKey(tt.dims); got != tt.want {
				t.Errorf("DimensionKey(%q) = %q, want %q", tt.dims, got, tt.want)
			}
		})
	}

	in := []string{"location", "device"}
	DimensionKey(in)
	if diff := cmp.Diff([]string{"location", "device"}, in); diff != "" {
		t.Errorf("DimensionKey mutated its input (-want +got):\n%s", diff)
	}
}
