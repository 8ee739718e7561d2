package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"guida/internal/aggregate"
	"guida/internal/amqp"
	applog "guida/internal/log"
	"guida/internal/sheets"
	"guida/internal/storage"
)

// SnapshotStore persists built summaries.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, s storage.Snapshot) (storage.Snapshot, error)
}

// EventPublisher announces stored snapshots.
type EventPublisher interface {
	PublishReportReady(ctx context.Context, ev amqp.ReportReady) error
}

// ReportService turns refresh requests into stored snapshots. The report
// sheet and the event publisher are optional.
type ReportService struct {
	analytics *AnalyticsService
	snapshots SnapshotStore
	reports   sheets.ReportWriter
	events    EventPublisher
	logger    *applog.Logger
}

func NewReportService(analytics *AnalyticsService, snapshots SnapshotStore, reports sheets.ReportWriter, events EventPublisher, logger *applog.Logger) *ReportService {
	if logger == nil {
		logger = applog.New(applog.Config{Output: io.Discard})
	}
	return &ReportService{
		analytics: analytics,
		snapshots: snapshots,
		reports:   reports,
		events:    events,
		logger:    logger.WithComponent(applog.ComponentReport),
	}
}

// Refresh builds a fresh summary for req, stores it as a snapshot, appends
// a line to the report sheet and publishes a ReportReady event.
//
// Only the build and the snapshot are fatal. A failed sheet append or
// publish is logged and the event is returned anyway.
func (s *ReportService) Refresh(ctx context.Context, req amqp.RefreshRequest) (amqp.ReportReady, error) {
	sum, err := s.analytics.Compute(ctx, SummaryRequest{
		Kind:       req.Kind,
		BusinessID: req.BusinessID,
		RangeDays:  req.RangeDays,
		Unit:       req.Unit,
		Dimensions: req.Dimensions,
	})
	if err != nil {
		return amqp.ReportReady{}, err
	}

	payload, err := json.Marshal(sum)
	if err != nil {
		return amqp.ReportReady{}, fmt.Errorf("encode summary: %w", err)
	}
	snap, err := s.snapshots.SaveSnapshot(ctx, storage.Snapshot{
		Kind:        req.Kind,
		BusinessID:  req.BusinessID,
		RangeDays:   sum.RangeDays,
		Unit:        string(sum.Unit),
		GeneratedAt: sum.GeneratedAt,
		Payload:     payload,
	})
	if err != nil {
		return amqp.ReportReady{}, fmt.Errorf("save snapshot: %w", err)
	}

	ev := amqp.ReportReady{
		ID:          snap.ID,
		RequestID:   req.ID,
		Kind:        req.Kind,
		BusinessID:  req.BusinessID,
		GeneratedAt: snap.GeneratedAt,
	}

	if s.reports != nil {
		ref, err := s.reports.AppendReport(ctx, ReportRow(req.Kind, req.BusinessID, snap.ID, sum))
		if err != nil {
			s.logger.ErrorContext(ctx, "Failed to append report row",
				applog.FieldSnapshotID, snap.ID,
				"error", err)
		} else {
			ev.SheetsRef = ref
		}
	}

	if s.events == nil {
		s.logger.WarnContext(ctx, "AMQP client not available, skipping report event",
			applog.FieldSnapshotID, snap.ID)
	} else if err := s.events.PublishReportReady(ctx, ev); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish report event",
			applog.FieldSnapshotID, snap.ID,
			"error", err)
	}

	applog.NewStructuredLogger(s.logger).LogReportPublished(ctx, req.Kind, req.BusinessID, snap.ID, ev.SheetsRef)
	return ev, nil
}

// ReportRow flattens a summary into one report sheet line. The top category
// is the first entry with the largest share of the category breakdown.
func ReportRow(kind, businessID, snapshotID string, sum aggregate.Summary) sheets.ReportRow {
	row := sheets.ReportRow{
		GeneratedAt: sum.GeneratedAt,
		Kind:        kind,
		BusinessID:  businessID,
		RangeDays:   sum.RangeDays,
		Unit:        string(sum.Unit),
		Total:       sum.Total.StringFixed(2),
		Count:       sum.Count,
		SnapshotID:  snapshotID,
	}
	var top *aggregate.CategoryTotal
	for i, ct := range sum.Breakdowns[aggregate.DimensionCategory] {
		if top == nil || ct.Percentage.GreaterThan(top.Percentage) {
			top = &sum.Breakdowns[aggregate.DimensionCategory][i]
		}
	}
	if top != nil {
		row.TopCategory = top.Category
		row.TopPercentage = top.Percentage.StringFixed(2)
	}
	return row
}
