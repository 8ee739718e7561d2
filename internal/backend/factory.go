package backend

import (
	"context"
	"fmt"
	"time"

	"guida/internal/entities"
	"guida/internal/entities/memory"
	applog "guida/internal/log"
	"guida/internal/mockdata"
	gsheet "guida/internal/sheets/google"
	"guida/internal/source"
	"guida/internal/storage"
)

const (
	demoBusinesses = 6
	demoDays       = 90
)

// DefaultFactory creates backends from configuration
type DefaultFactory struct {
	logger *applog.Logger
	now    func() time.Time
}

// NewFactory creates a new backend factory
func NewFactory(logger *applog.Logger) *DefaultFactory {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &DefaultFactory{
		logger: logger.WithComponent(applog.ComponentBackend),
		now:    time.Now,
	}
}

// CreateBackend opens the configured backend. On error everything opened
// so far is closed again.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	res := &BackendResult{Type: config.Type}
	var err error
	switch config.Type {
	case SQLiteBackend:
		err = f.createSQLiteBackend(res, config)
	case SheetsBackend:
		err = f.createSheetsBackend(ctx, res, config)
	case MemoryBackend:
		f.createMemoryBackend(res, config)
	default:
		err = fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err == nil && config.Snapshots && res.Snapshots == nil {
		err = f.openSnapshots(res, config.SQLiteDBPath)
	}
	if err == nil && config.SeedDemoData {
		err = f.seed(ctx, res.Store)
	}
	if err != nil {
		_ = res.Close()
		return nil, err
	}
	return res, nil
}

func (f *DefaultFactory) createSQLiteBackend(res *BackendResult, config Config) error {
	if err := f.openSnapshots(res, config.SQLiteDBPath); err != nil {
		return err
	}
	res.Store = res.Snapshots
	res.Source = source.NewEntitySource(res.Snapshots)
	res.ping = res.Snapshots.Ping

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	return nil
}

func (f *DefaultFactory) openSnapshots(res *BackendResult, dbPath string) error {
	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		return fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}
	res.Snapshots = repo
	res.cleanup = append(res.cleanup, repo.Close)
	return nil
}

// createSheetsBackend reads analytics records from the spreadsheet and
// keeps directory entities in memory.
func (f *DefaultFactory) createSheetsBackend(ctx context.Context, res *BackendResult, config Config) error {
	cli, err := gsheet.New(ctx, gsheet.Options{
		SpreadsheetID:      config.GoogleSpreadsheetID,
		RecordsSheetPrefix: config.GoogleRecordsSheetPrefix,
		ReportSheet:        config.GoogleReportSheet,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}

	res.Store = memory.NewFromFiles(dataDir(config))
	res.Source = cli
	res.Reports = cli

	f.logger.Info("Initialized Google Sheets backend",
		"spreadsheet_id", config.GoogleSpreadsheetID,
		"report_sheet", config.GoogleReportSheet)
	return nil
}

func (f *DefaultFactory) createMemoryBackend(res *BackendResult, config Config) {
	store := memory.NewFromFiles(dataDir(config))
	res.Store = store
	res.Source = source.NewEntitySource(store)

	f.logger.Info("Initialized memory backend", "data_directory", dataDir(config))
}

// seed fills store with demo data unless it already holds businesses.
func (f *DefaultFactory) seed(ctx context.Context, store entities.Store) error {
	existing, err := store.Filter(ctx, entities.Businesses, nil, "", 1)
	if err != nil {
		return fmt.Errorf("check existing businesses: %w", err)
	}
	if len(existing) > 0 {
		f.logger.Debug("Store already holds data, skipping demo seed")
		return nil
	}

	ds := mockdata.Generator{Seed: 1, Now: f.now()}.Generate(demoBusinesses, demoDays)
	if err := mockdata.Store(ctx, store, ds); err != nil {
		return fmt.Errorf("seed demo data: %w", err)
	}
	f.logger.Info("Seeded demo data",
		"businesses", len(ds.Businesses),
		"impressions", len(ds.Impressions),
		"transactions", len(ds.Transactions),
		"reviews", len(ds.Reviews))
	return nil
}

func dataDir(config Config) string {
	if config.DataDirectory == "" {
		return "data"
	}
	return config.DataDirectory
}
