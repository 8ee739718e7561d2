package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"guida/internal/aggregate"
	ports "guida/internal/sheets"
	"guida/internal/source"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Options names the spreadsheet and its tabs.
type Options struct {
	SpreadsheetID string
	// RecordsSheetPrefix is prepended to the kind to find a records tab,
	// e.g. "Data " gives "Data impressions". Empty means the kind itself.
	RecordsSheetPrefix string
	ReportSheet        string
	// Location interprets timestamps written without a zone.
	Location *time.Location
}

type Client struct {
	svc  *gsheet.Service
	opts Options
}

// Ensure interface conformance
var (
	_ ports.RecordReader = (*Client)(nil)
	_ ports.ReportWriter = (*Client)(nil)
)

// New creates a Sheets client authenticated with service account
// credentials taken from the environment.
func New(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return NewWithService(svc, opts), nil
}

// NewWithService wraps an existing service, e.g. one pointed at a test
// endpoint.
func NewWithService(svc *gsheet.Service, opts Options) *Client {
	if opts.ReportSheet == "" {
		opts.ReportSheet = "Reports"
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Client{svc: svc, opts: opts}
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
// Uses GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error

	switch {
	case serviceAccountJSON != "":
		slog.DebugContext(ctx, "Using inline JSON credentials")
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		slog.DebugContext(ctx, "Reading credentials from file", "path", serviceAccountFile)
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// Records reads the records tab for q.Kind. The first row is the header;
// see parseRecords for the expected columns.
func (c *Client) Records(ctx context.Context, q source.Query) ([]aggregate.Record, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	if !q.Kind.IsValid() {
		return nil, fmt.Errorf("%w: %q", source.ErrUnknownKind, q.Kind)
	}

	sheet := c.recordsSheetName(q.Kind)
	rng := fmt.Sprintf("%s!A:Z", quoteSheet(sheet))
	resp, err := c.svc.Spreadsheets.Values.Get(c.opts.SpreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}

	records, err := parseRecords(resp.Values, q.BusinessID, c.opts.Location)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", sheet, err)
	}
	return source.Since(records, q.Since), nil
}

// AppendReport adds row at the bottom of the report tab.
func (c *Client) AppendReport(ctx context.Context, row ports.ReportRow) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!A:J", quoteSheet(c.opts.ReportSheet))
	vr := &gsheet.ValueRange{Values: [][]any{row.Values()}}

	resp, err := c.svc.Spreadsheets.Values.Append(c.opts.SpreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to %s: %w", c.opts.ReportSheet, err)
	}
	if resp.Updates != nil {
		return resp.Updates.UpdatedRange, nil
	}
	return rng, nil
}

func (c *Client) recordsSheetName(kind source.Kind) string {
	return c.opts.RecordsSheetPrefix + string(kind)
}

// quoteSheet wraps names containing spaces or punctuation in A1 quotes.
func quoteSheet(name string) string {
	for _, r := range name {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_') {
			return "'" + strings.ReplaceAll(name, "'", "''") + "'"
		}
	}
	return name
}
