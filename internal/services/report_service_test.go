package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"

	"guida/internal/aggregate"
	"guida/internal/amqp"
	"guida/internal/sheets"
	"guida/internal/storage"
)

type fakeSnapshots struct {
	saved []storage.Snapshot
	err   error
}

func (f *fakeSnapshots) SaveSnapshot(ctx context.Context, s storage.Snapshot) (storage.Snapshot, error) {
	if f.err != nil {
		return storage.Snapshot{}, f.err
	}
	s.ID = "snap-1"
	f.saved = append(f.saved, s)
	return s, nil
}

type fakeReports struct {
	rows []sheets.ReportRow
	err  error
}

func (f *fakeReports) AppendReport(ctx context.Context, row sheets.ReportRow) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.rows = append(f.rows, row)
	return "Reports!A2:J2", nil
}

type fakeEvents struct {
	got []amqp.ReportReady
	err error
}

func (f *fakeEvents) PublishReportReady(ctx context.Context, ev amqp.ReportReady) error {
	f.got = append(f.got, ev)
	return f.err
}

func refreshRequest() amqp.RefreshRequest {
	return amqp.RefreshRequest{
		ID:         "req-1",
		Kind:       "impressions",
		BusinessID: "b1",
		RangeDays:  7,
		Unit:       "day",
	}
}

func TestReportService_Refresh(t *testing.T) {
	clock := now
	analytics := newService(&fakeSource{records: sampleRecords()}, &clock, AnalyticsOptions{})
	snaps := &fakeSnapshots{}
	reports := &fakeReports{}
	events := &fakeEvents{}
	svc := NewReportService(analytics, snaps, reports, events, nil)

	ev, err := svc.Refresh(context.Background(), refreshRequest())
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	want := amqp.ReportReady{
		ID:          "snap-1",
		RequestID:   "req-1",
		Kind:        "impressions",
		BusinessID:  "b1",
		GeneratedAt: now,
		SheetsRef:   "Reports!A2:J2",
	}
	if diff := cmp.Diff(want, ev); diff != "" {
		t.Errorf("event mismatch (-want +got):\n%s", diff)
	}
	if len(events.got) != 1 || events.got[0].ID != "snap-1" {
		t.Errorf("published events = %+v", events.got)
	}

	if len(snaps.saved) != 1 {
		t.Fatalf("saved %d snapshots", len(snaps.saved))
	}
	var stored aggregate.Summary
	if err := json.Unmarshal(snaps.saved[0].Payload, &stored); err != nil {
		t.Fatalf("payload is not a summary: %v", err)
	}
	if stored.Count != 2 || len(stored.Buckets) != 7 {
		t.Errorf("stored summary count = %d, buckets = %d", stored.Count, len(stored.Buckets))
	}
	if snaps.saved[0].Unit != "day" || snaps.saved[0].RangeDays != 7 {
		t.Errorf("snapshot = %+v", snaps.saved[0])
	}

	if len(reports.rows) != 1 || reports.rows[0].SnapshotID != "snap-1" {
		t.Errorf("report rows = %+v", reports.rows)
	}
}

func TestReportService_RefreshFailures(t *testing.T) {
	clock := now
	ctx := context.Background()

	t.Run("snapshot failure is fatal", func(t *testing.T) {
		analytics := newService(&fakeSource{records: sampleRecords()}, &clock, AnalyticsOptions{})
		boom := errors.New("disk full")
		events := &fakeEvents{}
		svc := NewReportService(analytics, &fakeSnapshots{err: boom}, nil, events, nil)
		if _, err := svc.Refresh(ctx, refreshRequest()); !errors.Is(err, boom) {
			t.Errorf("err = %v, want %v", err, boom)
		}
		if len(events.got) != 0 {
			t.Error("no event should be published without a snapshot")
		}
	})

	t.Run("invalid request is fatal", func(t *testing.T) {
		analytics := newService(&fakeSource{}, &clock, AnalyticsOptions{})
		svc := NewReportService(analytics, &fakeSnapshots{}, nil, nil, nil)
		req := refreshRequest()
		req.Unit = "fortnight"
		if _, err := svc.Refresh(ctx, req); !errors.Is(err, aggregate.ErrInvalidUnit) {
			t.Errorf("err = %v", err)
		}
	})

	t.Run("sheet and broker failures are tolerated", func(t *testing.T) {
		analytics := newService(&fakeSource{records: sampleRecords()}, &clock, AnalyticsOptions{})
		svc := NewReportService(analytics, &fakeSnapshots{},
			&fakeReports{err: errors.New("quota")},
			&fakeEvents{err: errors.New("circuit breaker is open")}, nil)
		ev, err := svc.Refresh(ctx, refreshRequest())
		if err != nil {
			t.Fatalf("Refresh() error = %v", err)
		}
		if ev.ID != "snap-1" || ev.SheetsRef != "" {
			t.Errorf("event = %+v", ev)
		}
	})

	t.Run("optional sinks may be nil", func(t *testing.T) {
		analytics := newService(&fakeSource{records: sampleRecords()}, &clock, AnalyticsOptions{})
		svc := NewReportService(analytics, &fakeSnapshots{}, nil, nil, nil)
		if _, err := svc.Refresh(ctx, refreshRequest()); err != nil {
			t.Errorf("Refresh() error = %v", err)
		}
	})
}

func TestReportRow(t *testing.T) {
	sum := aggregate.Summary{
		Unit:        aggregate.UnitMonth,
		RangeDays:   90,
		GeneratedAt: time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC),
		Total:       decimal.RequireFromString("168.7"),
		Count:       4,
		Breakdowns: map[string][]aggregate.CategoryTotal{
			"category": {
				{Category: "pix", RawSum: decimal.RequireFromString("19.90"), Percentage: decimal.RequireFromString("11.8")},
				{Category: "card", RawSum: decimal.RequireFromString("99.00"), Percentage: decimal.RequireFromString("58.68")},
				{Category: "boleto", RawSum: decimal.RequireFromString("49.80"), Percentage: decimal.RequireFromString("29.52")},
			},
		},
	}

	want := sheets.ReportRow{
		GeneratedAt:   sum.GeneratedAt,
		Kind:          "transactions",
		BusinessID:    "b1",
		RangeDays:     90,
		Unit:          "month",
		Total:         "168.70",
		Count:         4,
		TopCategory:   "card",
		TopPercentage: "58.68",
		SnapshotID:    "s1",
	}
	if diff := cmp.Diff(want, ReportRow("transactions", "b1", "s1", sum)); diff != "" {
		t.Errorf("ReportRow mismatch (-want +got):\n%s", diff)
	}

	empty := ReportRow("reviews", "", "s2", aggregate.Summary{Total: decimal.Zero})
	if empty.TopCategory != "" || empty.TopPercentage != "" || empty.Total != "0.00" {
		t.Errorf("empty summary row = %+v", empty)
	}
}
