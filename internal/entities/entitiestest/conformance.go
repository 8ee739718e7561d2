// Package entitiestest holds the behaviour every entities.Store backend
// must share. Backends call Run from their own tests.
package entitiestest

import (
	"context"
	"errors"
	"testing"
	"time"

	"guida/internal/core"
	"guida/internal/entities"
)

// Run exercises a fresh store returned by newStore for each subtest.
func Run(t *testing.T, newStore func(t *testing.T) entities.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("create assigns id and created date", func(t *testing.T) {
		businesses := entities.BusinessCollection(newStore(t))
		b, err := businesses.Create(ctx, core.Business{Name: "Bar Centrale", City: "Rome"})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if b.ID == "" {
			t.Fatalf("expected id to be assigned")
		}
		if b.CreatedDate.IsZero() {
			t.Fatalf("expected created_date to be assigned")
		}
		got, err := businesses.Get(ctx, b.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.Name != "Bar Centrale" || got.ID != b.ID {
			t.Fatalf("unexpected business: %+v", got)
		}
	})

	t.Run("create keeps explicit id and date", func(t *testing.T) {
		reviews := entities.ReviewCollection(newStore(t))
		when := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
		r, err := reviews.Create(ctx, core.Review{ID: "r-1", BusinessID: "b", Rating: 4, CreatedDate: when})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if r.ID != "r-1" || !r.CreatedDate.Equal(when) {
			t.Fatalf("unexpected review: %+v", r)
		}
	})

	t.Run("list keeps insertion order", func(t *testing.T) {
		businesses := entities.BusinessCollection(newStore(t))
		for _, name := range []string{"c", "a", "b"} {
			if _, err := businesses.Create(ctx, core.Business{Name: name}); err != nil {
				t.Fatalf("create %s: %v", name, err)
			}
		}
		all, err := businesses.List(ctx)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if got := names(all); got != "c,a,b" {
			t.Fatalf("order = %s, want c,a,b", got)
		}
	})

	t.Run("filter sort and limit", func(t *testing.T) {
		businesses := entities.BusinessCollection(newStore(t))
		seed := []core.Business{
			{Name: "Hotel Roma", City: "Rome", Rating: 4.1, Featured: true},
			{Name: "Pizzeria Napoli", City: "Naples", Rating: 4.8},
			{Name: "Caffe Greco", City: "Rome", Rating: 4.6},
			{Name: "Osteria", City: "Rome", Rating: 3.9},
		}
		for _, b := range seed {
			if _, err := businesses.Create(ctx, b); err != nil {
				t.Fatalf("create: %v", err)
			}
		}

		got, err := businesses.Filter(ctx, entities.Where{"city": "Rome"}, "-rating", 2)
		if err != nil {
			t.Fatalf("filter: %v", err)
		}
		if n := names(got); n != "Caffe Greco,Hotel Roma" {
			t.Fatalf("filter = %s", n)
		}

		got, err = businesses.Filter(ctx, entities.Where{"featured": true}, "", 0)
		if err != nil {
			t.Fatalf("filter featured: %v", err)
		}
		if n := names(got); n != "Hotel Roma" {
			t.Fatalf("featured = %s", n)
		}

		got, err = businesses.Filter(ctx, nil, "name", 0)
		if err != nil {
			t.Fatalf("filter all: %v", err)
		}
		if n := names(got); n != "Caffe Greco,Hotel Roma,Osteria,Pizzeria Napoli" {
			t.Fatalf("sorted = %s", n)
		}
	})

	t.Run("filter rejects bad field names", func(t *testing.T) {
		store := newStore(t)
		if _, err := store.Filter(ctx, entities.Businesses, entities.Where{"name') OR 1=1 --": "x"}, "", 0); !errors.Is(err, entities.ErrInvalidField) {
			t.Fatalf("expected ErrInvalidField, got %v", err)
		}
		if _, err := store.Filter(ctx, entities.Businesses, nil, "-Name;", 0); !errors.Is(err, entities.ErrInvalidField) {
			t.Fatalf("expected ErrInvalidField for sort, got %v", err)
		}
	})

	t.Run("update merges fields", func(t *testing.T) {
		businesses := entities.BusinessCollection(newStore(t))
		b, err := businesses.Create(ctx, core.Business{Name: "Old", City: "Turin"})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		got, err := businesses.Update(ctx, b.ID, map[string]any{"name": "New", "id": "hijack"})
		if err != nil {
			t.Fatalf("update: %v", err)
		}
		if got.Name != "New" || got.City != "Turin" || got.ID != b.ID {
			t.Fatalf("unexpected update result: %+v", got)
		}
		if _, err := businesses.Update(ctx, "missing", map[string]any{"name": "x"}); !errors.Is(err, entities.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("delete", func(t *testing.T) {
		impressions := entities.ImpressionCollection(newStore(t))
		a, _ := impressions.Create(ctx, core.Impression{BusinessID: "b", Action: core.ActionView})
		b, _ := impressions.Create(ctx, core.Impression{BusinessID: "b", Action: core.ActionClick})
		if err := impressions.Delete(ctx, a.ID); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if _, err := impressions.Get(ctx, a.ID); !errors.Is(err, entities.ErrNotFound) {
			t.Fatalf("expected ErrNotFound after delete, got %v", err)
		}
		if _, err := impressions.Get(ctx, b.ID); err != nil {
			t.Fatalf("other document lost: %v", err)
		}
		if err := impressions.Delete(ctx, a.ID); !errors.Is(err, entities.ErrNotFound) {
			t.Fatalf("expected ErrNotFound on second delete, got %v", err)
		}
	})

	t.Run("transactions keep payment union", func(t *testing.T) {
		txs := entities.TransactionCollection(newStore(t))
		created, err := txs.Create(ctx, core.Transaction{
			BusinessID: "b",
			Status:     core.TransactionPaid,
			Payment:    core.CardPayment{Brand: "visa", Last4: "4242"},
		})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		got, err := txs.Filter(ctx, entities.Where{"payment_method": core.MethodCard}, "", 0)
		if err != nil {
			t.Fatalf("filter: %v", err)
		}
		if len(got) != 1 || got[0].ID != created.ID {
			t.Fatalf("unexpected filter result: %+v", got)
		}
		if _, ok := got[0].Payment.(core.CardPayment); !ok {
			t.Fatalf("payment type = %T, want CardPayment", got[0].Payment)
		}
	})
}

func names(bs []core.Business) string {
	out := ""
	for i, b := range bs {
		if i > 0 {
			out += ","
		}
		out += b.Name
	}
	return out
}
