// Package aggregate turns flat dated records into time-bucketed,
// percentage-normalized summaries.
//
// The pipeline is Bucketize -> Reduce -> Normalize -> Assemble. Every step is
// a pure function: inputs are never mutated and outputs are freshly
// allocated, so calls may run concurrently without coordination.
package aggregate

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DimensionCategory selects Record.Category in a breakdown.
const DimensionCategory = "category"

// UnknownCategory groups records that carry no value for a dimension.
const UnknownCategory = "unknown"

// Record is a single dated observation supplied by a record source.
type Record struct {
	Timestamp  time.Time
	Category   string
	Amount     decimal.NullDecimal
	Attributes map[string]string
}

var (
	ErrInvalidRange    = errors.New("invalid range")
	ErrInvalidUnit     = errors.New("invalid bucket unit")
	ErrMalformedRecord = errors.New("malformed record")
)

// InvalidRangeError is returned when a summary is requested for a
// non-positive number of days or for more than MaxRangeDays.
type InvalidRangeError struct {
	RangeDays int
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid range: range_days must be between 1 and %d, got %d", MaxRangeDays, e.RangeDays)
}

func (e *InvalidRangeError) Is(target error) bool {
	return target == ErrInvalidRange
}

// MalformedRecordError describes a record excluded from aggregation.
type MalformedRecordError struct {
	Index int
	Field string
}

func (e MalformedRecordError) Error() string {
	return fmt.Sprintf("record %d: missing %s", e.Index, e.Field)
}

func (e MalformedRecordError) Is(target error) bool {
	return target == ErrMalformedRecord
}

// NewRecord builds a record with a known amount.
func NewRecord(ts time.Time, category string, amount decimal.Decimal) Record {
	return Record{
		Timestamp: ts,
		Category:  category,
		Amount:    decimal.NullDecimal{Decimal: amount, Valid: true},
	}
}

// WithAttribute returns a copy of r carrying key=value. The receiver's map is
// never written to.
func (r Record) WithAttribute(key, value string) Record {
	attrs := make(map[string]string, len(r.Attributes)+1)
	for k, v := range r.Attributes {
		attrs[k] = v
	}
	attrs[key] = value
	r.Attributes = attrs
	return r
}

// Validate reports the first missing required field.
func (r Record) Validate(index int) error {
	if r.Timestamp.IsZero() {
		return MalformedRecordError{Index: index, Field: "timestamp"}
	}
	if !r.Amount.Valid {
		return MalformedRecordError{Index: index, Field: "amount"}
	}
	return nil
}

// Dimension returns the record's value for a breakdown dimension.
func (r Record) Dimension(name string) string {
	var v string
	if name == DimensionCategory {
		v = r.Category
	} else {
		v = r.Attributes[name]
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return UnknownCategory
	}
	return v
}
