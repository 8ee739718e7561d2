// Package export writes summaries as CSV or XLSX for download.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"guida/internal/aggregate"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

const seriesSheet = "Series"

var ErrUnknownFormat = errors.New("unknown export format")

var (
	seriesHeader    = []string{"label", "start", "end", "sum", "count", "average"}
	breakdownHeader = []string{"dimension", "category", "raw_sum", "percentage"}
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("%w %q: must be csv or xlsx", ErrUnknownFormat, s)
	}
}

func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// Filename builds a download name such as impressions-b1-2025-06-15.csv.
func Filename(kind, businessID string, s aggregate.Summary, f Format) string {
	parts := []string{kind}
	if businessID != "" {
		parts = append(parts, businessID)
	}
	parts = append(parts, s.GeneratedAt.Format("2006-01-02"))
	return strings.Join(parts, "-") + "." + string(f)
}

// Write dispatches on f.
func Write(w io.Writer, s aggregate.Summary, f Format) error {
	switch f {
	case FormatCSV:
		return WriteCSV(w, s)
	case FormatXLSX:
		return WriteXLSX(w, s)
	default:
		return fmt.Errorf("%w %q", ErrUnknownFormat, f)
	}
}

// WriteCSV writes the bucket series, an empty line, then all breakdowns in
// one table keyed by dimension.
func WriteCSV(w io.Writer, s aggregate.Summary) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(seriesHeader); err != nil {
		return fmt.Errorf("write series header: %w", err)
	}
	for _, b := range s.Buckets {
		if err := cw.Write(seriesRow(b)); err != nil {
			return fmt.Errorf("write bucket %s: %w", b.Label, err)
		}
	}

	if len(s.Breakdowns) > 0 {
		if err := cw.Write(nil); err != nil {
			return err
		}
		if err := cw.Write(breakdownHeader); err != nil {
			return fmt.Errorf("write breakdown header: %w", err)
		}
		for _, dim := range s.Dimensions() {
			for _, ct := range s.Breakdowns[dim] {
				if err := cw.Write([]string{dim, ct.Category, ct.RawSum.String(), ct.Percentage.StringFixed(2)}); err != nil {
					return fmt.Errorf("write breakdown %s: %w", dim, err)
				}
			}
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes a Series sheet and one sheet per breakdown dimension.
// Amounts are written as numbers so spreadsheets can chart them.
func WriteXLSX(w io.Writer, s aggregate.Summary) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", seriesSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}

	rows := make([][]any, 0, len(s.Buckets)+1)
	rows = append(rows, toAny(seriesHeader))
	for _, b := range s.Buckets {
		rows = append(rows, []any{
			b.Label,
			b.Start.Format(time.RFC3339),
			b.End.Format(time.RFC3339),
			b.Sum.InexactFloat64(),
			b.Count,
			b.Average.InexactFloat64(),
		})
	}
	if err := writeRows(f, seriesSheet, rows, headerStyle); err != nil {
		return err
	}

	for _, dim := range s.Dimensions() {
		sheet := sheetName(dim)
		if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("create sheet %s: %w", sheet, err)
		}
		rows := [][]any{toAny(breakdownHeader[1:])}
		for _, ct := range s.Breakdowns[dim] {
			rows = append(rows, []any{ct.Category, ct.RawSum.InexactFloat64(), ct.Percentage.InexactFloat64()})
		}
		if err := writeRows(f, sheet, rows, headerStyle); err != nil {
			return err
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any, headerStyle int) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	if len(rows) == 0 {
		return nil
	}
	last, err := excelize.CoordinatesToCellName(len(rows[0]), 1)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, "A1", last, headerStyle)
}

func seriesRow(b aggregate.BucketSummary) []string {
	return []string{
		b.Label,
		b.Start.Format(time.RFC3339),
		b.End.Format(time.RFC3339),
		b.Sum.String(),
		strconv.Itoa(b.Count),
		b.Average.StringFixed(2),
	}
}

// sheetName keeps dimension names within Excel's 31 character limit and
// away from the series sheet.
func sheetName(dim string) string {
	name := "By " + dim
	if len(name) > 31 {
		name = name[:31]
	}
	return name
}

func toAny(in []string) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}
