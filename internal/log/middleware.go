package log

import (
	"context"
	"log/slog"
	"net/http"
)

type ContextKey string

const (
	// LoggerContextKey is the context key for the logger
	LoggerContextKey ContextKey = "logger"
)

// Middleware creates HTTP middleware that adds a logger to the request context
func Middleware(logger *Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), LoggerContextKey, logger)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithLogger returns a copy of ctx carrying logger.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, LoggerContextKey, logger)
}

// FromContext extracts a logger from the context, falling back to the
// default slog logger.
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(LoggerContextKey).(*Logger); ok {
		return logger
	}
	return &Logger{
		Logger:    slog.Default(),
		component: "unknown",
	}
}

// ComponentMiddleware creates middleware that adds component context to the logger
func ComponentMiddleware(component string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := FromContext(r.Context()).WithComponent(component)
			next.ServeHTTP(w, r.WithContext(WithLogger(r.Context(), logger)))
		})
	}
}

// RequestIDMiddleware adds request ID to logger context
func RequestIDMiddleware(extractRequestID func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := FromContext(r.Context()).With(FieldRequestID, extractRequestID(r))
			next.ServeHTTP(w, r.WithContext(WithLogger(r.Context(), logger)))
		})
	}
}

// StructuredLogger provides structured logging methods with context awareness
type StructuredLogger struct {
	logger *Logger
}

func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{
		logger: logger,
	}
}

// LogHTTPEnd logs the completion of an HTTP request at a level derived
// from the status code.
func (sl *StructuredLogger) LogHTTPEnd(ctx context.Context, r *http.Request, statusCode int, durationMs int64, clientIP string) {
	level := slog.LevelInfo
	if statusCode >= 400 && statusCode < 500 {
		level = slog.LevelWarn
	} else if statusCode >= 500 {
		level = slog.LevelError
	}

	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Get("User-Agent")).
		WithHTTPResponse(statusCode, durationMs, statusCode < 400).
		WithClientIP(clientIP).
		WithComponent(ComponentHTTP)

	sl.logger.Logger.Log(ctx, level, "HTTP request completed", fields.ToSlice()...)
}

// LogSummaryBuilt records a finished aggregation. Dropped records are
// logged at debug level only; they are also returned with the summary.
func (sl *StructuredLogger) LogSummaryBuilt(ctx context.Context, kind, businessID string, rangeDays int, unit string, records, outOfRange, malformed int, cacheHit bool) {
	fields := NewFields().
		WithSummaryRequest(kind, businessID, rangeDays, unit).
		WithOperation(OpSummarize).
		WithComponent(ComponentAnalytics)
	fields[FieldRecords] = records
	fields[FieldCacheHit] = cacheHit

	sl.logger.Logger.InfoContext(ctx, "Summary built", fields.ToSlice()...)

	if outOfRange > 0 || malformed > 0 {
		skipped := NewFields().
			WithSummaryRequest(kind, businessID, rangeDays, unit).
			WithSkipped(outOfRange, malformed).
			WithComponent(ComponentAnalytics)
		sl.logger.Logger.DebugContext(ctx, "Records skipped during aggregation", skipped.ToSlice()...)
	}
}

// LogReportPublished records a stored snapshot and where it was exported.
func (sl *StructuredLogger) LogReportPublished(ctx context.Context, kind, businessID, snapshotID, sheetsRef string) {
	fields := NewFields().
		WithOperation(OpPublish).
		WithComponent(ComponentReport)
	fields[FieldKind] = kind
	fields[FieldBusinessID] = businessID
	fields[FieldSnapshotID] = snapshotID
	if sheetsRef != "" {
		fields[FieldSheetsRef] = sheetsRef
	}

	sl.logger.Logger.InfoContext(ctx, "Report published", fields.ToSlice()...)
}

// LogError logs an error with structured context
func (sl *StructuredLogger) LogError(ctx context.Context, msg string, err error, component string, operation string, fields LogFields) {
	if fields == nil {
		fields = NewFields()
	}
	allFields := fields.
		WithError(err).
		WithOperation(operation).
		WithComponent(component)

	sl.logger.Logger.ErrorContext(ctx, msg, allFields.ToSlice()...)
}
