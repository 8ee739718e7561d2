package aggregate

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	UnitHour  Unit = "hour"
	UnitDay   Unit = "day"
	UnitMonth Unit = "month"
)

// MaxRangeDays is the longest range a summary may cover. It bounds the
// hourly series to 8784 buckets.
const MaxRangeDays = 366

const (
	hourLayout  = "2006-01-02T15:00Z07:00"
	dayLayout   = "2006-01-02"
	monthLayout = "2006-01"
)

type (
	// Unit is the width of a bucket.
	Unit string

	// Bucket is a half-open interval [Start, End).
	Bucket struct {
		Label string    `json:"label"`
		Start time.Time `json:"start"`
		End   time.Time `json:"end"`
	}
)

// ParseUnit accepts hour, day or month (case-insensitive). Empty means day.
func ParseUnit(s string) (Unit, error) {
	switch u := Unit(strings.ToLower(strings.TrimSpace(s))); u {
	case "":
		return UnitDay, nil
	case UnitHour, UnitDay, UnitMonth:
		return u, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidUnit, s)
	}
}

// IsValid returns true for the supported units.
func (u Unit) IsValid() bool {
	switch u {
	case UnitHour, UnitDay, UnitMonth:
		return true
	default:
		return false
	}
}

// Contains reports whether t falls inside [Start, End).
func (b Bucket) Contains(t time.Time) bool {
	return !t.Before(b.Start) && t.Before(b.End)
}

// BucketCount returns how many buckets of the given unit cover rangeDays.
// Months are approximated as 30 days, rounded to nearest, never below one.
func BucketCount(rangeDays int, unit Unit) int {
	switch unit {
	case UnitHour:
		return rangeDays * 24
	case UnitMonth:
		n := (rangeDays + 15) / 30
		if n < 1 {
			n = 1
		}
		return n
	default:
		return rangeDays
	}
}

// ValidateRange returns an *InvalidRangeError unless rangeDays is in
// 1..MaxRangeDays.
func ValidateRange(rangeDays int) error {
	if rangeDays <= 0 || rangeDays > MaxRangeDays {
		return &InvalidRangeError{RangeDays: rangeDays}
	}
	return nil
}

// Bucketize returns contiguous buckets, oldest first, whose last bucket is
// the hour, day or month containing now. Day and month boundaries are
// computed on the calendar in now's location, so a day spanning a
// daylight-saving change is 23 or 25 hours long.
func Bucketize(rangeDays int, unit Unit, now time.Time) ([]Bucket, error) {
	if err := ValidateRange(rangeDays); err != nil {
		return nil, err
	}
	if !unit.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidUnit, unit)
	}

	n := BucketCount(rangeDays, unit)
	buckets := make([]Bucket, n)
	loc := now.Location()
	y, m, d := now.Date()

	switch unit {
	case UnitHour:
		last := floorHour(now)
		for i := 0; i < n; i++ {
			start := last.Add(-time.Duration(n-1-i) * time.Hour)
			buckets[i] = Bucket{
				Label: start.In(loc).Format(hourLayout),
				Start: start,
				End:   start.Add(time.Hour),
			}
		}
	case UnitDay:
		for i := 0; i < n; i++ {
			day := d - (n - 1 - i)
			start := time.Date(y, m, day, 0, 0, 0, 0, loc)
			buckets[i] = Bucket{
				Label: start.Format(dayLayout),
				Start: start,
				End:   time.Date(y, m, day+1, 0, 0, 0, 0, loc),
			}
		}
	case UnitMonth:
		for i := 0; i < n; i++ {
			month := m - time.Month(n-1-i)
			start := time.Date(y, month, 1, 0, 0, 0, 0, loc)
			buckets[i] = Bucket{
				Label: start.Format(monthLayout),
				Start: start,
				End:   time.Date(y, month+1, 1, 0, 0, 0, 0, loc),
			}
		}
	}
	return buckets, nil
}

// floorHour truncates t to the start of its local hour. Working on the
// absolute instant keeps repeated hours after a DST fall-back distinct.
func floorHour(t time.Time) time.Time {
	_, offset := t.Zone()
	shift := time.Duration(offset) * time.Second
	return t.Add(shift).Truncate(time.Hour).Add(-shift)
}

// locate returns the index of the bucket containing t, or -1. buckets must
// be in chronological order.
func locate(buckets []Bucket, t time.Time) int {
	i := sort.Search(len(buckets), func(i int) bool {
		return t.Before(buckets[i].End)
	})
	if i < len(buckets) && buckets[i].Contains(t) {
		return i
	}
	return -1
}
