package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"guida/internal/aggregate"
	"guida/internal/core"
	"guida/internal/entities"
	"guida/internal/listing"
	applog "guida/internal/log"
	"guida/internal/loader"
	"guida/internal/services"
	"guida/internal/source"
)

// dashboardReviews is how many recent reviews the dashboard shows.
const dashboardReviews = 5

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().JSON(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if s.ready != nil {
		if err := s.ready(ctx); err != nil {
			s.requestLogger(r).WarnContext(ctx, "Readiness check failed", "error", err)
			checks["backend"] = fmt.Sprintf("failed: %v", err)
			status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
		} else {
			checks["backend"] = "ok"
		}
	} else {
		checks["backend"] = "ok"
	}

	if s.cacheStats != nil {
		st := s.cacheStats()
		checks["cache"] = map[string]any{
			"entries": st.Size,
			"status":  "ok",
		}
	}

	checks["rate_limiter"] = map[string]any{
		"active_clients": s.rateLimiter.ActiveClients(),
		"status":         "ok",
	}

	NewJSONResponse().Status(httpStatus).JSON(map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	securityMetrics := s.detector.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	traceMetrics := s.tracer.GetMetrics()
	uptime := time.Since(s.started)

	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "# HELP http_requests_total Total number of HTTP requests\n")
	fmt.Fprintf(w, "# TYPE http_requests_total counter\n")
	fmt.Fprintf(w, "http_requests_total %d\n\n", traceMetrics.TotalRequests)

	if s.cacheStats != nil {
		st := s.cacheStats()
		fmt.Fprintf(w, "# HELP summary_cache_hits_total Summary cache hits\n")
		fmt.Fprintf(w, "# TYPE summary_cache_hits_total counter\n")
		fmt.Fprintf(w, "summary_cache_hits_total %d\n\n", st.Hits)

		fmt.Fprintf(w, "# HELP summary_cache_misses_total Summary cache misses\n")
		fmt.Fprintf(w, "# TYPE summary_cache_misses_total counter\n")
		fmt.Fprintf(w, "summary_cache_misses_total %d\n\n", st.Misses)

		fmt.Fprintf(w, "# HELP summary_cache_entries Current summary cache entries\n")
		fmt.Fprintf(w, "# TYPE summary_cache_entries gauge\n")
		fmt.Fprintf(w, "summary_cache_entries %d\n\n", st.Size)
	}

	fmt.Fprintf(w, "# HELP rate_limit_hits_total Total rate limit hits\n")
	fmt.Fprintf(w, "# TYPE rate_limit_hits_total counter\n")
	fmt.Fprintf(w, "rate_limit_hits_total %d\n\n", rateLimitMetrics.TotalHits)

	fmt.Fprintf(w, "# HELP suspicious_requests_total Total suspicious requests detected\n")
	fmt.Fprintf(w, "# TYPE suspicious_requests_total counter\n")
	fmt.Fprintf(w, "suspicious_requests_total %d\n\n", securityMetrics.SuspiciousRequests)

	fmt.Fprintf(w, "# HELP active_rate_limit_clients Currently tracked rate limit clients\n")
	fmt.Fprintf(w, "# TYPE active_rate_limit_clients gauge\n")
	fmt.Fprintf(w, "active_rate_limit_clients %d\n\n", rateLimitMetrics.ClientCount)

	fmt.Fprintf(w, "# HELP uptime_seconds Application uptime in seconds\n")
	fmt.Fprintf(w, "# TYPE uptime_seconds gauge\n")
	fmt.Fprintf(w, "uptime_seconds %.0f\n", uptime.Seconds())
}

func (s *Server) handleListBusinesses(w http.ResponseWriter, r *http.Request) {
	opts, err := ParseListingOptions(r.URL.Query())
	if err != nil {
		s.writeError(w, r, applog.OpList, err)
		return
	}

	all, err := entities.BusinessCollection(s.store).List(r.Context())
	if err != nil {
		s.writeError(w, r, applog.OpList, fmt.Errorf("list businesses: %w", err))
		return
	}

	page, err := listing.Apply(all, opts)
	if err != nil {
		s.writeError(w, r, applog.OpList, err)
		return
	}
	if page.Items == nil {
		page.Items = []core.Business{}
	}
	NewJSONResponse().JSON(page).Write(w)
}

func (s *Server) handleGetBusiness(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	b, err := entities.BusinessCollection(s.store).Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, applog.OpRead, err)
		return
	}
	NewJSONResponse().JSON(b).Write(w)
}

// Dashboard is the view model of a business dashboard. Every analytics
// panel loads on its own, so one failing source does not blank the page.
type Dashboard struct {
	Business      core.Business                  `json:"business"`
	RecentReviews []core.Review                  `json:"recent_reviews"`
	Impressions   loader.View[aggregate.Summary] `json:"impressions"`
	Transactions  loader.View[aggregate.Summary] `json:"transactions"`
	Reviews       loader.View[aggregate.Summary] `json:"reviews"`
}

// handleDashboard loads the business and its recent reviews, which are
// both required, then the three analytics panels concurrently.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	req, err := ParseSummaryRequest("", r.URL.Query(), s.defaultRange)
	if err != nil {
		s.writeError(w, r, applog.OpRead, err)
		return
	}
	req.BusinessID = id

	var d Dashboard
	err = loader.LoadAll(ctx,
		loader.Into("business", &d.Business, func(ctx context.Context) (core.Business, error) {
			return entities.BusinessCollection(s.store).Get(ctx, id)
		}),
		loader.Into("reviews", &d.RecentReviews, func(ctx context.Context) ([]core.Review, error) {
			return entities.ReviewCollection(s.store).Filter(ctx, entities.Where{"business_id": id}, "-created_date", dashboardReviews)
		}),
	)
	if err != nil {
		s.writeError(w, r, applog.OpRead, err)
		return
	}
	if d.RecentReviews == nil {
		d.RecentReviews = []core.Review{}
	}

	panels := make(map[source.Kind]*loader.Result[aggregate.Summary], len(source.Kinds()))
	for _, kind := range source.Kinds() {
		kreq := req
		kreq.Kind = string(kind)
		panels[kind] = loader.Load(ctx, func(ctx context.Context) (aggregate.Summary, error) {
			return s.analytics.Summary(ctx, kreq)
		})
	}
	for kind, res := range panels {
		if _, err := res.Wait(ctx); err != nil && ctx.Err() == nil {
			s.requestLogger(r).WarnContext(ctx, "Dashboard panel failed",
				applog.FieldKind, kind,
				applog.FieldBusinessID, id,
				"error", err)
		}
	}
	d.Impressions = panels[source.KindImpressions].View()
	d.Transactions = panels[source.KindTransactions].View()
	d.Reviews = panels[source.KindReviews].View()

	NewJSONResponse().JSON(d).Write(w)
}

func summaryRequestFields(req services.SummaryRequest) applog.LogFields {
	return applog.NewFields().WithSummaryRequest(req.Kind, req.BusinessID, req.RangeDays, req.Unit)
}
