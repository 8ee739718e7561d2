package entities

import (
	"context"
	"encoding/json"
	"fmt"

	"guida/internal/core"
)

// Collection is a typed view over one collection of a Store.
type Collection[T any] struct {
	store Store
	name  string
}

func NewCollection[T any](store Store, name string) *Collection[T] {
	return &Collection[T]{store: store, name: name}
}

func BusinessCollection(s Store) *Collection[core.Business] {
	return NewCollection[core.Business](s, Businesses)
}

func TransactionCollection(s Store) *Collection[core.Transaction] {
	return NewCollection[core.Transaction](s, Transactions)
}

func ImpressionCollection(s Store) *Collection[core.Impression] {
	return NewCollection[core.Impression](s, Impressions)
}

func ReviewCollection(s Store) *Collection[core.Review] {
	return NewCollection[core.Review](s, Reviews)
}

func (c *Collection[T]) Name() string { return c.name }

func (c *Collection[T]) List(ctx context.Context) ([]T, error) {
	docs, err := c.store.List(ctx, c.name)
	if err != nil {
		return nil, err
	}
	return decodeAll[T](c.name, docs)
}

func (c *Collection[T]) Filter(ctx context.Context, where Where, sort string, limit int) ([]T, error) {
	docs, err := c.store.Filter(ctx, c.name, where, sort, limit)
	if err != nil {
		return nil, err
	}
	return decodeAll[T](c.name, docs)
}

func (c *Collection[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T
	doc, err := c.store.Get(ctx, c.name, id)
	if err != nil {
		return zero, err
	}
	return decodeOne[T](c.name, doc)
}

// Create stores item and returns it with the id and created_date assigned by
// the store.
func (c *Collection[T]) Create(ctx context.Context, item T) (T, error) {
	var zero T
	raw, err := json.Marshal(item)
	if err != nil {
		return zero, fmt.Errorf("encode %s: %w", c.name, err)
	}
	doc, err := c.store.Create(ctx, c.name, raw)
	if err != nil {
		return zero, err
	}
	return decodeOne[T](c.name, doc)
}

// Update merges patch, a struct or map, into the stored document.
func (c *Collection[T]) Update(ctx context.Context, id string, patch any) (T, error) {
	var zero T
	raw, err := json.Marshal(patch)
	if err != nil {
		return zero, fmt.Errorf("encode %s patch: %w", c.name, err)
	}
	doc, err := c.store.Update(ctx, c.name, id, raw)
	if err != nil {
		return zero, err
	}
	return decodeOne[T](c.name, doc)
}

func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	return c.store.Delete(ctx, c.name, id)
}

func decodeOne[T any](name string, doc json.RawMessage) (T, error) {
	var v T
	if err := json.Unmarshal(doc, &v); err != nil {
		return v, fmt.Errorf("decode %s: %w", name, err)
	}
	return v, nil
}

func decodeAll[T any](name string, docs []json.RawMessage) ([]T, error) {
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		v, err := decodeOne[T](name, d)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
