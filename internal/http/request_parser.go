// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data.
// Query strings become listing options and summary requests; bodies may be
// JSON or form encoded.

package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"guida/internal/aggregate"
	"guida/internal/core"
	"guida/internal/listing"
	"guida/internal/services"
)

// maxBodyBytes bounds request bodies read by RequestBodyParser.
const maxBodyBytes = 1 << 20

// ParseListingOptions reads search, category, city, status, featured,
// sort, page and per_page. Malformed numbers and booleans are rejected.
func ParseListingOptions(query url.Values) (listing.Options, error) {
	opts := listing.Options{
		Search:   sanitizeInput(query.Get("search")),
		Category: sanitizeInput(query.Get("category")),
		City:     sanitizeInput(query.Get("city")),
		Status:   core.BusinessStatus(strings.ToLower(sanitizeInput(query.Get("status")))),
		Sort:     sanitizeInput(query.Get("sort")),
	}
	if opts.Status != "" && !opts.Status.IsValid() {
		return listing.Options{}, fmt.Errorf("%w: status %q", errInvalidParam, opts.Status)
	}

	var err error
	if opts.Page, err = parseOptionalInt(query, "page"); err != nil {
		return listing.Options{}, err
	}
	if opts.PerPage, err = parseOptionalInt(query, "per_page"); err != nil {
		return listing.Options{}, err
	}
	if v := strings.TrimSpace(query.Get("featured")); v != "" {
		if opts.Featured, err = strconv.ParseBool(v); err != nil {
			return listing.Options{}, fmt.Errorf("%w: featured %q", errInvalidParam, v)
		}
	}
	return opts, nil
}

// ParseSummaryRequest reads business_id, range_days, unit and dimensions
// for kind. A missing range_days uses defaultRange; an explicit value is
// passed on as given so the pipeline can reject it.
func ParseSummaryRequest(kind string, query url.Values, defaultRange int) (services.SummaryRequest, error) {
	req := services.SummaryRequest{
		Kind:       kind,
		BusinessID: sanitizeInput(query.Get("business_id")),
		RangeDays:  defaultRange,
		Unit:       sanitizeInput(query.Get("unit")),
		Dimensions: aggregate.ParseDimensions(query.Get("dimensions")),
	}
	if v := strings.TrimSpace(query.Get("range_days")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return services.SummaryRequest{}, fmt.Errorf("%w: range_days %q is not a number", errInvalidParam, v)
		}
		req.RangeDays = n
	}
	return req, nil
}

func parseOptionalInt(query url.Values, key string) (int, error) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q is not a number", errInvalidParam, key, v)
	}
	return n, nil
}

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser creates a parser for the given request.
// It reads the body once and stores it for subsequent parsing.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}

	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	if len(p.body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	// Try JSON first if content looks like JSON
	if p.body[0] == '{' {
		p.jsonData = make(map[string]any)
		if err := json.Unmarshal(p.body, &p.jsonData); err != nil {
			p.err = fmt.Errorf("%w: malformed JSON body: %v", errInvalidParam, err)
			return p.err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(p.body))
	if p.err != nil {
		p.err = fmt.Errorf("%w: malformed form body: %v", errInvalidParam, p.err)
	}
	return p.err
}

// Get returns a string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// ContentType returns the Content-Type header value.
func (p *RequestBodyParser) ContentType() string {
	return p.contentType
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// stringValue converts a decoded JSON value to string.
func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// ParseImpression builds an impression from a parsed body.
func ParseImpression(p *RequestBodyParser) (core.Impression, error) {
	if err := p.Parse(); err != nil {
		return core.Impression{}, err
	}
	return core.Impression{
		BusinessID: p.Get("business_id"),
		Action:     core.ImpressionAction(strings.ToLower(p.Get("action"))),
		Device:     p.Get("device"),
		Location:   p.Get("location"),
	}, nil
}
