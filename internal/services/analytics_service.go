package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"guida/internal/aggregate"
	"guida/internal/amqp"
	"guida/internal/cache"
	"guida/internal/core"
	"guida/internal/entities"
	applog "guida/internal/log"
	"guida/internal/source"
)

var (
	// ErrRefreshUnavailable is returned when no message broker is configured.
	ErrRefreshUnavailable = errors.New("refresh requests need an AMQP broker")
	// ErrReadOnly is returned when the backend cannot record impressions.
	ErrReadOnly = errors.New("backend does not accept writes")
)

// summaryBuildTimeout bounds a shared summary build.
const summaryBuildTimeout = 30 * time.Second

// RefreshPublisher queues a summary rebuild for the worker.
type RefreshPublisher interface {
	PublishRefresh(ctx context.Context, req amqp.RefreshRequest) error
}

// SummaryRequest selects one summary. Kind and Unit are raw user input and
// are validated by the service.
type SummaryRequest struct {
	Kind       string
	BusinessID string
	RangeDays  int
	Unit       string
	Dimensions []string
}

// AnalyticsOptions configures an AnalyticsService. Every field is optional.
type AnalyticsOptions struct {
	Cache     cache.Cache[aggregate.Summary]
	Store     entities.Store
	Publisher RefreshPublisher
	Location  *time.Location
	Now       func() time.Time
	Logger    *applog.Logger
}

// AnalyticsService reads records from a Source, runs the aggregation
// pipeline and caches the result. Cached summaries are shared between
// callers and must be treated as read-only.
type AnalyticsService struct {
	source    source.Source
	cache     cache.Cache[aggregate.Summary]
	store     entities.Store
	publisher RefreshPublisher
	loc       *time.Location
	now       func() time.Time
	logger    *applog.Logger
	slog      *applog.StructuredLogger

	group singleflight.Group
}

func NewAnalyticsService(src source.Source, opts AnalyticsOptions) *AnalyticsService {
	s := &AnalyticsService{
		source:    src,
		cache:     opts.Cache,
		store:     opts.Store,
		publisher: opts.Publisher,
		loc:       opts.Location,
		now:       opts.Now,
		logger:    opts.Logger,
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = applog.New(applog.Config{Output: io.Discard})
	}
	s.logger = s.logger.WithComponent(applog.ComponentAnalytics)
	s.slog = applog.NewStructuredLogger(s.logger)
	return s
}

// Summary returns the cached summary for req when there is one and builds
// it otherwise. Concurrent identical requests share one build.
func (s *AnalyticsService) Summary(ctx context.Context, req SummaryRequest) (aggregate.Summary, error) {
	kind, unit, err := parseRequest(req)
	if err != nil {
		return aggregate.Summary{}, err
	}
	now := s.now().In(s.loc)
	key := cacheKey(kind, req.BusinessID, req.RangeDays, unit, req.Dimensions, now)

	if s.cache != nil {
		if sum, ok := s.cache.Get(key); ok {
			s.slog.LogSummaryBuilt(ctx, string(kind), req.BusinessID, req.RangeDays, string(unit),
				sum.Count, sum.Skipped.OutOfRange, sum.Skipped.Malformed, true)
			return sum, nil
		}
	}

	// The shared build outlives any single caller; each caller still
	// stops waiting when its own ctx is done.
	ch := s.group.DoChan(key, func() (any, error) {
		buildCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), summaryBuildTimeout)
		defer cancel()
		sum, err := s.build(buildCtx, kind, unit, req, now)
		if err != nil {
			return aggregate.Summary{}, err
		}
		if s.cache != nil {
			s.cache.Set(key, sum)
		}
		return sum, nil
	})
	select {
	case <-ctx.Done():
		return aggregate.Summary{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return aggregate.Summary{}, res.Err
		}
		return res.Val.(aggregate.Summary), nil
	}
}

// Compute builds a fresh summary, bypassing the cache.
func (s *AnalyticsService) Compute(ctx context.Context, req SummaryRequest) (aggregate.Summary, error) {
	kind, unit, err := parseRequest(req)
	if err != nil {
		return aggregate.Summary{}, err
	}
	return s.build(ctx, kind, unit, req, s.now().In(s.loc))
}

func (s *AnalyticsService) build(ctx context.Context, kind source.Kind, unit aggregate.Unit, req SummaryRequest, now time.Time) (aggregate.Summary, error) {
	records, err := s.source.Records(ctx, source.Query{Kind: kind, BusinessID: req.BusinessID})
	if err != nil {
		return aggregate.Summary{}, fmt.Errorf("read %s records: %w", kind, err)
	}

	sum, err := aggregate.Build(records, aggregate.Request{
		RangeDays:  req.RangeDays,
		Unit:       unit,
		Now:        now,
		Dimensions: req.Dimensions,
	})
	if err != nil {
		return aggregate.Summary{}, fmt.Errorf("build %s summary: %w", kind, err)
	}

	s.slog.LogSummaryBuilt(ctx, string(kind), req.BusinessID, req.RangeDays, string(unit),
		len(records), sum.Skipped.OutOfRange, sum.Skipped.Malformed, false)
	return sum, nil
}

// Invalidate drops cached summaries of businessID and the cross-business
// summaries it contributes to. It returns the number of entries removed.
func (s *AnalyticsService) Invalidate(businessID string) int {
	if s.cache == nil {
		return 0
	}
	return s.cache.DeleteFunc(func(key string) bool {
		parts := strings.SplitN(key, "|", 3)
		return len(parts) == 3 && (parts[1] == "" || parts[1] == businessID)
	})
}

// RecordImpression validates and stores im, then invalidates the summaries
// it affects.
func (s *AnalyticsService) RecordImpression(ctx context.Context, im core.Impression) (core.Impression, error) {
	if s.store == nil {
		return core.Impression{}, ErrReadOnly
	}
	if im.CreatedDate.IsZero() {
		im.CreatedDate = s.now().UTC()
	}
	if err := im.Validate(); err != nil {
		return core.Impression{}, fmt.Errorf("validate impression: %w", err)
	}

	created, err := entities.ImpressionCollection(s.store).Create(ctx, im)
	if err != nil {
		return core.Impression{}, fmt.Errorf("save impression: %w", err)
	}

	removed := s.Invalidate(created.BusinessID)
	s.logger.DebugContext(ctx, "Impression recorded",
		applog.FieldEntityID, created.ID,
		applog.FieldBusinessID, created.BusinessID,
		"invalidated", removed)
	return created, nil
}

// RequestRefresh queues an asynchronous rebuild and returns the message id.
func (s *AnalyticsService) RequestRefresh(ctx context.Context, req SummaryRequest) (string, error) {
	if s.publisher == nil {
		return "", ErrRefreshUnavailable
	}
	kind, unit, err := parseRequest(req)
	if err != nil {
		return "", err
	}

	msg := amqp.NewRefreshRequest(string(kind), req.BusinessID, req.RangeDays, string(unit), req.Dimensions)
	if err := s.publisher.PublishRefresh(ctx, msg); err != nil {
		return "", fmt.Errorf("publish refresh: %w", err)
	}
	return msg.ID, nil
}

func parseRequest(req SummaryRequest) (source.Kind, aggregate.Unit, error) {
	kind, err := source.ParseKind(req.Kind)
	if err != nil {
		return "", "", err
	}
	unit, err := aggregate.ParseUnit(req.Unit)
	if err != nil {
		return "", "", err
	}
	if err := aggregate.ValidateRange(req.RangeDays); err != nil {
		return "", "", err
	}
	return kind, unit, nil
}

// cacheKey identifies a summary. The period component changes whenever the
// bucket boundaries would.
func cacheKey(kind source.Kind, businessID string, rangeDays int, unit aggregate.Unit, dims []string, now time.Time) string {
	period := now.Format("2006-01-02")
	if unit == aggregate.UnitHour {
		period = now.Format("2006-01-02T15")
	}
	return strings.Join([]string{
		string(kind),
		businessID,
		strconv.Itoa(rangeDays),
		string(unit),
		aggregate.DimensionKey(dims),
		period,
	}, "|")
}
