// Package source is the record source feeding the aggregation pipeline. It
// turns directory entities into flat aggregate.Record values per kind.
package source

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"guida/internal/aggregate"
	"guida/internal/core"
	"guida/internal/entities"
)

const (
	KindTransactions Kind = "transactions"
	KindImpressions  Kind = "impressions"
	KindReviews      Kind = "reviews"
)

// Kind selects which entity collection a summary is built from.
type Kind string

// Query selects the records of one kind, optionally for one business and
// from a point in time onwards.
type Query struct {
	Kind       Kind
	BusinessID string
	Since      time.Time
}

// Source is the port the analytics service reads from.
type Source interface {
	Records(ctx context.Context, q Query) ([]aggregate.Record, error)
}

var ErrUnknownKind = errors.New("unknown record kind")

func Kinds() []Kind {
	return []Kind{KindTransactions, KindImpressions, KindReviews}
}

func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !k.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
	return k, nil
}

func (k Kind) IsValid() bool {
	switch k {
	case KindTransactions, KindImpressions, KindReviews:
		return true
	default:
		return false
	}
}

// Collection returns the entity collection backing the kind.
func (k Kind) Collection() string {
	switch k {
	case KindTransactions:
		return entities.Transactions
	case KindImpressions:
		return entities.Impressions
	case KindReviews:
		return entities.Reviews
	default:
		return ""
	}
}

// EntitySource reads records from an entity store.
type EntitySource struct {
	store entities.Store
}

func NewEntitySource(store entities.Store) *EntitySource {
	return &EntitySource{store: store}
}

func (s *EntitySource) Records(ctx context.Context, q Query) ([]aggregate.Record, error) {
	if !q.Kind.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, q.Kind)
	}
	var where entities.Where
	if q.BusinessID != "" {
		where = entities.Where{"business_id": q.BusinessID}
	}

	var (
		records []aggregate.Record
		err     error
	)
	switch q.Kind {
	case KindTransactions:
		var items []core.Transaction
		items, err = entities.TransactionCollection(s.store).Filter(ctx, where, "created_date", 0)
		records = mapRecords(items, FromTransaction)
	case KindImpressions:
		var items []core.Impression
		items, err = entities.ImpressionCollection(s.store).Filter(ctx, where, "created_date", 0)
		records = mapRecords(items, FromImpression)
	case KindReviews:
		var items []core.Review
		items, err = entities.ReviewCollection(s.store).Filter(ctx, where, "created_date", 0)
		records = mapRecords(items, FromReview)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", q.Kind, err)
	}
	return Since(records, q.Since), nil
}

// FromTransaction groups payments by method; status and plan are available
// as breakdown dimensions.
func FromTransaction(t core.Transaction) aggregate.Record {
	method := ""
	if t.Payment != nil {
		method = string(t.Payment.Method())
	}
	r := aggregate.NewRecord(t.CreatedDate, method, t.Amount)
	r.Attributes = map[string]string{
		"status": string(t.Status),
		"plan":   t.Plan,
	}
	return r
}

// FromImpression counts one per interaction, grouped by action.
func FromImpression(i core.Impression) aggregate.Record {
	r := aggregate.NewRecord(i.CreatedDate, string(i.Action), decimal.NewFromInt(1))
	r.Attributes = map[string]string{
		"device":   i.Device,
		"location": i.Location,
	}
	return r
}

// FromReview groups by star rating and sums the rating itself, so a bucket
// average is the mean rating.
func FromReview(rv core.Review) aggregate.Record {
	return aggregate.NewRecord(rv.CreatedDate, strconv.Itoa(rv.Rating), decimal.NewFromInt(int64(rv.Rating)))
}

// Since drops records older than t. A zero t keeps everything. Records
// without a timestamp are kept so the pipeline can count them as malformed.
func Since(records []aggregate.Record, t time.Time) []aggregate.Record {
	if t.IsZero() {
		return records
	}
	out := records[:0:0]
	for _, r := range records {
		if r.Timestamp.IsZero() || !r.Timestamp.Before(t) {
			out = append(out, r)
		}
	}
	return out
}

func mapRecords[T any](items []T, fn func(T) aggregate.Record) []aggregate.Record {
	out := make([]aggregate.Record, len(items))
	for i, it := range items {
		out[i] = fn(it)
	}
	return out
}
