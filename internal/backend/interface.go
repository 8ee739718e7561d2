package backend

import (
	"context"
	"errors"
	"fmt"

	"guida/internal/entities"
	"guida/internal/sheets"
	"guida/internal/source"
	"guida/internal/storage"
)

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	SheetsBackend BackendType = "sheets"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, SheetsBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult holds everything a process needs from the data layer.
//
// Store always serves the directory entities. Source feeds the analytics
// pipeline: for the sheets backend it reads the spreadsheet, otherwise it
// reads Store. Snapshots is nil unless SQLite is open, Reports is nil unless
// the sheets backend is selected.
type BackendResult struct {
	Type      BackendType
	Store     entities.Store
	Source    source.Source
	Snapshots *storage.SQLiteRepository
	Reports   sheets.ReportWriter

	ping    func(ctx context.Context) error
	cleanup []CleanupFunc
}

// Ping reports whether the backend can serve requests.
func (r *BackendResult) Ping(ctx context.Context) error {
	if r.ping == nil {
		return nil
	}
	return r.ping(ctx)
}

// Close runs every cleanup function, newest first.
func (r *BackendResult) Close() error {
	var errs []error
	for i := len(r.cleanup) - 1; i >= 0; i-- {
		if err := r.cleanup[i](); err != nil {
			errs = append(errs, err)
		}
	}
	r.cleanup = nil
	if len(errs) > 0 {
		return fmt.Errorf("close backend: %w", errors.Join(errs...))
	}
	return nil
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific. With Snapshots set a repository is opened for
	// snapshots whatever the backend type.
	SQLiteDBPath string
	Snapshots    bool

	// Google Sheets specific
	GoogleSpreadsheetID      string
	GoogleRecordsSheetPrefix string
	GoogleReportSheet        string

	// Memory backend seed files, <DataDirectory>/<collection>.json
	DataDirectory string

	// SeedDemoData fills an empty entity store with generated demo data.
	SeedDemoData bool
}
