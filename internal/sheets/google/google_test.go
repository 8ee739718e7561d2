package google

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	ports "guida/internal/sheets"
	"guida/internal/source"
)

type fakeSheets struct {
	mu       sync.Mutex
	values   map[string][][]any
	appended [][]any
	paths    []string
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paths = append(f.paths, r.URL.Path)
	w.Header().Set("Content-Type", "application/json")

	if strings.HasSuffix(r.URL.Path, ":append") {
		var body struct {
			Values [][]any `json:"values"`
		}
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &body)
		f.appended = append(f.appended, body.Values...)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"updates": map[string]any{"updatedRange": "Reports!A2:J2"},
		})
		return
	}

	for sheet, vals := range f.values {
		if strings.Contains(r.URL.Path, "/values/"+sheet+"!") {
			_ = json.NewEncoder(w).Encode(map[string]any{"range": sheet, "values": vals})
			return
		}
	}
	http.Error(w, `{"error":{"code":404,"message":"not found"}}`, http.StatusNotFound)
}

func newTestClient(t *testing.T, fake *fakeSheets) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()),
		goption.WithoutAuthentication())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return NewWithService(svc, Options{SpreadsheetID: "sheet-1"})
}

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Options{})
	if err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestClientRecords(t *testing.T) {
	fake := &fakeSheets{values: map[string][][]any{
		"impressions": {
			{"timestamp", "business_id", "category", "amount", "device"},
			{"2025-06-14T10:00:00Z", "b1", "view", "1", "mobile"},
			{"2025-06-10T10:00:00Z", "b1", "click", "1", "mobile"},
			{"2025-06-14T11:00:00Z", "b2", "view", "1", "desktop"},
		},
	}}
	c := newTestClient(t, fake)

	recs, err := c.Records(context.Background(), source.Query{
		Kind:       source.KindImpressions,
		BusinessID: "b1",
		Since:      time.Date(2025, 6, 12, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Records: %v", err)
	}
	if len(recs) != 1 || recs[0].Category != "view" {
		t.Fatalf("unexpected records: %+v", recs)
	}

	if _, err := c.Records(context.Background(), source.Query{Kind: source.KindReviews}); err == nil {
		t.Fatalf("expected error for missing tab")
	}
}

func TestClientAppendReport(t *testing.T) {
	fake := &fakeSheets{}
	c := newTestClient(t, fake)

	ref, err := c.AppendReport(context.Background(), ports.ReportRow{
		GeneratedAt:   time.Date(2025, 6, 15, 14, 30, 0, 0, time.UTC),
		Kind:          "impressions",
		BusinessID:    "b1",
		RangeDays:     7,
		Unit:          "day",
		Total:         "12",
		Count:         12,
		TopCategory:   "view",
		TopPercentage: "75",
		SnapshotID:    "s1",
	})
	if err != nil {
		t.Fatalf("AppendReport: %v", err)
	}
	if ref != "Reports!A2:J2" {
		t.Fatalf("ref = %q", ref)
	}
	if len(fake.appended) != 1 || len(fake.appended[0]) != 10 {
		t.Fatalf("unexpected appended rows: %v", fake.appended)
	}
	if fake.appended[0][0] != "2025-06-15T14:30:00Z" || fake.appended[0][1] != "impressions" {
		t.Fatalf("unexpected row: %v", fake.appended[0])
	}
}

func TestClientWithoutService(t *testing.T) {
	c := &Client{}
	if _, err := c.Records(context.Background(), source.Query{Kind: source.KindImpressions}); err == nil {
		t.Fatalf("expected error without service")
	}
	if _, err := c.AppendReport(context.Background(), ports.ReportRow{}); err == nil {
		t.Fatalf("expected error without service")
	}
}
