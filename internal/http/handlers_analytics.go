package http

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"guida/internal/export"
	applog "guida/internal/log"
)

// handleSummary returns the summary for the kind in the path.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	req, err := ParseSummaryRequest(chi.URLParam(r, "kind"), r.URL.Query(), s.defaultRange)
	if err != nil {
		s.writeError(w, r, applog.OpSummarize, err)
		return
	}

	sum, err := s.analytics.Summary(r.Context(), req)
	if err != nil {
		s.writeError(w, r, applog.OpSummarize, err)
		return
	}
	NewJSONResponse().JSON(sum).Write(w)
}

// handleExport renders a summary as a CSV or XLSX download. The file is
// rendered in memory first so an encoding failure still yields a JSON error.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	format, err := export.ParseFormat(query.Get("format"))
	if err != nil {
		s.writeError(w, r, applog.OpExport, err)
		return
	}
	req, err := ParseSummaryRequest(chi.URLParam(r, "kind"), query, s.defaultRange)
	if err != nil {
		s.writeError(w, r, applog.OpExport, err)
		return
	}

	sum, err := s.analytics.Summary(r.Context(), req)
	if err != nil {
		s.writeError(w, r, applog.OpExport, err)
		return
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, sum, format); err != nil {
		s.writeError(w, r, applog.OpExport, fmt.Errorf("render %s export: %w", format, err))
		return
	}

	name := export.Filename(strings.ToLower(req.Kind), req.BusinessID, sum, format)
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// handleRefresh queues a background rebuild of a summary. The response
// carries the request id the worker will echo in its report event.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	req, err := ParseSummaryRequest(chi.URLParam(r, "kind"), r.URL.Query(), s.defaultRange)
	if err != nil {
		s.writeError(w, r, applog.OpRefresh, err)
		return
	}

	id, err := s.analytics.RequestRefresh(r.Context(), req)
	if err != nil {
		s.writeError(w, r, applog.OpRefresh, err)
		return
	}

	fields := summaryRequestFields(req)
	fields["request_id"] = id
	s.requestLogger(r).InfoContext(r.Context(), "Summary refresh queued", fields.ToSlice()...)

	NewJSONResponse().Status(http.StatusAccepted).JSON(map[string]string{
		"request_id": id,
	}).Write(w)
}

// handleCreateImpression records one impression and drops the cached
// summaries it affects.
func (s *Server) handleCreateImpression(w http.ResponseWriter, r *http.Request) {
	imp, err := ParseImpression(NewRequestBodyParser(r))
	if err != nil {
		s.writeError(w, r, applog.OpCreate, err)
		return
	}

	created, err := s.analytics.RecordImpression(r.Context(), imp)
	if err != nil {
		s.writeError(w, r, applog.OpCreate, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).JSON(created).Write(w)
}
