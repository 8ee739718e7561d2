package sheets

import (
	"context"
	"time"

	"guida/internal/source"
)

// Ports for the spreadsheet adapter.
type (
	// RecordReader reads flat analytics rows from a spreadsheet.
	RecordReader interface {
		source.Source
	}

	// ReportWriter appends one line per generated summary to a report sheet.
	ReportWriter interface {
		AppendReport(ctx context.Context, row ReportRow) (rowRef string, err error)
	}
)

// ReportRow is one line of the report sheet.
type ReportRow struct {
	GeneratedAt time.Time
	Kind        string
	BusinessID  string
	RangeDays   int
	Unit        string
	Total       string
	Count       int
	// TopCategory is the largest entry of the category breakdown.
	TopCategory   string
	TopPercentage string
	SnapshotID    string
}

// Values renders the row in column order.
func (r ReportRow) Values() []any {
	return []any{
		r.GeneratedAt.UTC().Format(time.RFC3339),
		r.Kind,
		r.BusinessID,
		r.RangeDays,
		r.Unit,
		r.Total,
		r.Count,
		r.TopCategory,
		r.TopPercentage,
		r.SnapshotID,
	}
}
