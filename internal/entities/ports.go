// Package entities is the generic entity store the directory pages talk to.
//
// Every entity kind lives in a named collection of JSON documents. A Store
// implements the raw document operations and Collection[T] gives them a
// typed face. Backends live in entities/memory and internal/storage.
package entities

import (
	"context"
	"encoding/json"
	"errors"

	"guida/internal/core"
)

const (
	Businesses   = "businesses"
	Transactions = "transactions"
	Impressions  = "impressions"
	Reviews      = "reviews"
)

// Where selects documents whose top-level fields equal the given values.
type Where map[string]any

type (
	// Store is the port implemented by every entity backend. Documents are
	// JSON objects carrying at least an "id" and a "created_date" field.
	Store interface {
		List(ctx context.Context, collection string) ([]json.RawMessage, error)
		// Filter returns documents matching where, ordered by sort ("field"
		// ascending, "-field" descending, empty for insertion order). A
		// limit <= 0 returns everything.
		Filter(ctx context.Context, collection string, where Where, sort string, limit int) ([]json.RawMessage, error)
		Get(ctx context.Context, collection, id string) (json.RawMessage, error)
		Create(ctx context.Context, collection string, doc json.RawMessage) (json.RawMessage, error)
		// Update merges the top-level fields of patch into the stored
		// document. The id is never changed.
		Update(ctx context.Context, collection, id string, patch json.RawMessage) (json.RawMessage, error)
		Delete(ctx context.Context, collection, id string) error
	}
)

var (
	// ErrNotFound is core.ErrNotFound so callers need to match one sentinel.
	ErrNotFound     = core.ErrNotFound
	ErrInvalidField = errors.New("invalid field name")
	ErrInvalidValue = errors.New("unsupported filter value")
	ErrNotObject    = errors.New("document is not a JSON object")
)
