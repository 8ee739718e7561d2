package worker

import (
	"context"
	"errors"
	"io"
	"time"

	"guida/internal/aggregate"
	"guida/internal/amqp"
	applog "guida/internal/log"
	"guida/internal/source"
)

// Refresher rebuilds and publishes one summary.
type Refresher interface {
	Refresh(ctx context.Context, req amqp.RefreshRequest) (amqp.ReportReady, error)
}

// Consumer delivers refresh requests to a handler until ctx is done.
type Consumer interface {
	ConsumeRefresh(ctx context.Context, handler func(context.Context, amqp.RefreshRequest) error) error
}

// RefreshWorker turns refresh requests from the queue into report
// snapshots.
type RefreshWorker struct {
	reports  Refresher
	consumer Consumer
	logger   *applog.Logger
	timeout  time.Duration
}

// NewRefreshWorker creates a worker. A zero timeout means each request
// may run for as long as its context allows.
func NewRefreshWorker(reports Refresher, consumer Consumer, timeout time.Duration, logger *applog.Logger) *RefreshWorker {
	if logger == nil {
		logger = applog.New(applog.Config{Output: io.Discard})
	}
	return &RefreshWorker{
		reports:  reports,
		consumer: consumer,
		logger:   logger.WithComponent(applog.ComponentWorker),
		timeout:  timeout,
	}
}

// Run consumes refresh requests until ctx is cancelled.
func (w *RefreshWorker) Run(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Refresh worker started")
	err := w.consumer.ConsumeRefresh(ctx, w.HandleRefresh)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// HandleRefresh processes a single refresh request. Requests that can never
// succeed (unknown kind, bad unit or range) are logged and acknowledged;
// any other failure is returned so the message is retried.
func (w *RefreshWorker) HandleRefresh(ctx context.Context, req amqp.RefreshRequest) error {
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	w.logger.InfoContext(ctx, "Processing refresh request",
		"message_id", req.ID,
		applog.FieldKind, req.Kind,
		applog.FieldBusinessID, req.BusinessID,
		applog.FieldRangeDays, req.RangeDays)

	started := time.Now()
	ev, err := w.reports.Refresh(ctx, req)
	if err != nil {
		if permanent(err) {
			w.logger.WarnContext(ctx, "Discarding invalid refresh request",
				"message_id", req.ID,
				applog.FieldKind, req.Kind,
				"error", err)
			return nil
		}
		applog.NewStructuredLogger(w.logger).LogError(ctx, "Refresh failed", err,
			applog.ComponentWorker, applog.OpRefresh,
			applog.NewFields().WithSummaryRequest(req.Kind, req.BusinessID, req.RangeDays, req.Unit))
		return err
	}

	w.logger.InfoContext(ctx, "Refresh request completed",
		"message_id", req.ID,
		applog.FieldSnapshotID, ev.ID,
		"sheets_ref", ev.SheetsRef,
		"duration_ms", time.Since(started).Milliseconds())
	return nil
}

func permanent(err error) bool {
	return errors.Is(err, source.ErrUnknownKind) ||
		errors.Is(err, aggregate.ErrInvalidRange) ||
		errors.Is(err, aggregate.ErrInvalidUnit)
}
