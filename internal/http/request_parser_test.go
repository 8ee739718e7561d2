package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"guida/internal/core"
	"guida/internal/listing"
	"guida/internal/services"
)

func TestParseListingOptions(t *testing.T) {
	tests := []struct {
		name    string
		query   url.Values
		want    listing.Options
		wantErr bool
	}{
		{
			name:  "empty query",
			query: url.Values{},
			want:  listing.Options{},
		},
		{
			name: "all values provided",
			query: url.Values{
				"search":   {"  pizza "},
				"category": {"restaurant"},
				"city":     {"Milano"},
				"status":   {"Active"},
				"featured": {"true"},
				"sort":     {"-rating"},
				"page":     {"2"},
				"per_page": {"24"},
			},
			want: listing.Options{
				Search:   "pizza",
				Category: "restaurant",
				City:     "Milano",
				Status:   core.StatusActive,
				Featured: true,
				Sort:     "-rating",
				Page:     2,
				PerPage:  24,
			},
		},
		{
			name:  "control characters are stripped",
			query: url.Values{"search": {"caf\x00e\x07"}},
			want:  listing.Options{Search: "cafe"},
		},
		{name: "page not a number", query: url.Values{"page": {"two"}}, wantErr: true},
		{name: "per_page not a number", query: url.Values{"per_page": {"1e3"}}, wantErr: true},
		{name: "featured not a bool", query: url.Values{"featured": {"maybe"}}, wantErr: true},
		{name: "unknown status", query: url.Values{"status": {"closed"}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseListingOptions(tt.query)
			if tt.wantErr {
				if !errors.Is(err, errInvalidParam) {
					t.Fatalf("error = %v, want errInvalidParam", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("options mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseSummaryRequest(t *testing.T) {
	tests := []struct {
		name    string
		query   url.Values
		want    services.SummaryRequest
		wantErr bool
	}{
		{
			name:  "defaults",
			query: url.Values{},
			want:  services.SummaryRequest{Kind: "reviews", RangeDays: 30},
		},
		{
			name: "explicit values",
			query: url.Values{
				"business_id": {"b1"},
				"range_days":  {"7"},
				"unit":        {"hour"},
				"dimensions":  {"device, Location,device"},
			},
			want: services.SummaryRequest{
				Kind:       "reviews",
				BusinessID: "b1",
				RangeDays:  7,
				Unit:       "hour",
				Dimensions: []string{"device", "Location", "device"},
			},
		},
		{
			name:  "zero range is passed on",
			query: url.Values{"range_days": {"0"}},
			want:  services.SummaryRequest{Kind: "reviews", RangeDays: 0},
		},
		{name: "range not a number", query: url.Values{"range_days": {"week"}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSummaryRequest("reviews", tt.query, 30)
			if tt.wantErr {
				if !errors.Is(err, errInvalidParam) {
					t.Fatalf("error = %v, want errInvalidParam", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("request mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRequestBodyParser(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		wantJSON    bool
		wantValues  map[string]string
		wantErr     bool
	}{
		{
			name:        "JSON body",
			contentType: "application/json",
			body:        `{"business_id":"b1","action":"view","rating":4,"featured":true}`,
			wantJSON:    true,
			wantValues:  map[string]string{"business_id": "b1", "action": "view", "rating": "4", "featured": "true", "missing": ""},
		},
		{
			name:        "form body",
			contentType: "application/x-www-form-urlencoded",
			body:        "business_id=b2&action=call&device=%20mobile%20",
			wantValues:  map[string]string{"business_id": "b2", "action": "call", "device": "mobile"},
		},
		{
			name:       "empty body",
			wantValues: map[string]string{"business_id": ""},
		},
		{
			name:        "malformed JSON",
			contentType: "application/json",
			body:        `{"business_id":`,
			wantErr:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/impressions", strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			p := NewRequestBodyParser(req)
			err := p.Parse()
			if tt.wantErr {
				if !errors.Is(err, errInvalidParam) {
					t.Fatalf("error = %v, want errInvalidParam", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.IsJSON() != tt.wantJSON {
				t.Errorf("IsJSON() = %v, want %v", p.IsJSON(), tt.wantJSON)
			}
			if p.ContentType() != tt.contentType {
				t.Errorf("ContentType() = %q, want %q", p.ContentType(), tt.contentType)
			}
			for key, want := range tt.wantValues {
				if got := p.Get(key); got != want {
					t.Errorf("Get(%q) = %q, want %q", key, got, want)
				}
			}
		})
	}
}

func TestParseImpression(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/impressions",
		strings.NewReader(`{"business_id":" b1 ","action":"CLICK","device":"desktop","location":"Roma"}`))
	got, err := ParseImpression(NewRequestBodyParser(req))
	if err != nil {
		t.Fatalf("ParseImpression: %v", err)
	}
	want := core.Impression{BusinessID: "b1", Action: core.ActionClick, Device: "desktop", Location: "Roma"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("impression mismatch (-want +got):\n%s", diff)
	}
}
