package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"guida/internal/aggregate"
)

// RefreshRequest asks the worker to rebuild and publish one summary.
type RefreshRequest struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	BusinessID  string    `json:"business_id,omitempty"`
	RangeDays   int       `json:"range_days"`
	Unit        string    `json:"unit"`
	Dimensions  []string  `json:"dimensions,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

// ReportReady announces a stored snapshot.
type ReportReady struct {
	ID          string    `json:"id"`
	RequestID   string    `json:"request_id"`
	Kind        string    `json:"kind"`
	BusinessID  string    `json:"business_id,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`
	SheetsRef   string    `json:"sheets_ref,omitempty"`
}

func NewRefreshRequest(kind, businessID string, rangeDays int, unit string, dimensions []string) RefreshRequest {
	return RefreshRequest{
		ID:          uuid.NewString(),
		Kind:        kind,
		BusinessID:  businessID,
		RangeDays:   rangeDays,
		Unit:        unit,
		Dimensions:  dimensions,
		RequestedAt: time.Now().UTC(),
	}
}

// Validate checks the envelope and the range bound; kind and unit values
// are checked by the service that handles the request.
func (r RefreshRequest) Validate() error {
	var problems []string
	if r.ID == "" {
		problems = append(problems, "missing id")
	}
	if strings.TrimSpace(r.Kind) == "" {
		problems = append(problems, "missing kind")
	}
	if aggregate.ValidateRange(r.RangeDays) != nil {
		problems = append(problems, fmt.Sprintf("range_days %d must be between 1 and %d", r.RangeDays, aggregate.MaxRangeDays))
	}
	if len(problems) > 0 {
		return errors.New("invalid refresh request: " + strings.Join(problems, ", "))
	}
	return nil
}

func (r RefreshRequest) ToJSON() ([]byte, error) {
	return json.Marshal(r)
}

func RefreshRequestFromJSON(data []byte) (RefreshRequest, error) {
	var r RefreshRequest
	if err := json.Unmarshal(data, &r); err != nil {
		return RefreshRequest{}, fmt.Errorf("decode refresh request: %w", err)
	}
	return r, r.Validate()
}

func (r ReportReady) ToJSON() ([]byte, error) {
	return json.Marshal(r)
}

func ReportReadyFromJSON(data []byte) (ReportReady, error) {
	var r ReportReady
	if err := json.Unmarshal(data, &r); err != nil {
		return ReportReady{}, fmt.Errorf("decode report ready: %w", err)
	}
	return r, nil
}
