package export

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"guida/internal/aggregate"
)

var now = time.Date(2025, 6, 15, 14, 30, 0, 0, time.UTC)

func buildSummary(t *testing.T) aggregate.Summary {
	t.Helper()
	records := []aggregate.Record{
		aggregate.NewRecord(now.Add(-time.Hour), "view", decimal.NewFromInt(1)).WithAttribute("device", "mobile"),
		aggregate.NewRecord(now.Add(-2*time.Hour), "view", decimal.NewFromInt(1)).WithAttribute("device", "desktop"),
		aggregate.NewRecord(now.Add(-26*time.Hour), "click", decimal.NewFromInt(1)).WithAttribute("device", "mobile"),
	}
	s, err := aggregate.Build(records, aggregate.Request{
		RangeDays:  2,
		Unit:       aggregate.UnitDay,
		Now:        now,
		Dimensions: []string{"device", "category"},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return s
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, buildSummary(t)); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	want := strings.Join([]string{
		"label,start,end,sum,count,average",
		"2025-06-14,2025-06-14T00:00:00Z,2025-06-15T00:00:00Z,1,1,1.00",
		"2025-06-15,2025-06-15T00:00:00Z,2025-06-16T00:00:00Z,2,2,1.00",
		"",
		"dimension,category,raw_sum,percentage",
		"category,view,2,66.67",
		"category,click,1,33.33",
		"device,mobile,2,66.67",
		"device,desktop,1,33.33",
		"",
	}, "\n")
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("csv mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteXLSX(&buf, buildSummary(t)); err != nil {
		t.Fatalf("WriteXLSX: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()

	if diff := cmp.Diff([]string{"Series", "By category", "By device"}, f.GetSheetList()); diff != "" {
		t.Errorf("sheets mismatch (-want +got):\n%s", diff)
	}

	series, err := f.GetRows("Series")
	if err != nil {
		t.Fatal(err)
	}
	if len(series) != 3 || series[0][0] != "label" || series[2][0] != "2025-06-15" || series[2][3] != "2" {
		t.Errorf("unexpected series rows: %v", series)
	}

	devices, err := f.GetRows("By device")
	if err != nil {
		t.Fatal(err)
	}
	wantDevices := [][]string{
		{"category", "raw_sum", "percentage"},
		{"mobile", "2", "66.67"},
		{"desktop", "1", "33.33"},
	}
	if diff := cmp.Diff(wantDevices, devices); diff != "" {
		t.Errorf("device rows mismatch (-want +got):\n%s", diff)
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatCSV, false},
		{"CSV", FormatCSV, false},
		{" xlsx ", FormatXLSX, false},
		{"pdf", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrUnknownFormat) {
				t.Fatalf("err = %v, want ErrUnknownFormat", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFilename(t *testing.T) {
	s := buildSummary(t)
	if got := Filename("impressions", "b1", s, FormatXLSX); got != "impressions-b1-2025-06-15.xlsx" {
		t.Errorf("Filename = %q", got)
	}
	if got := Filename("reviews", "", s, FormatCSV); got != "reviews-2025-06-15.csv" {
		t.Errorf("Filename = %q", got)
	}
}
