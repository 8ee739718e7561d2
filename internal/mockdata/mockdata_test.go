package mockdata

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"guida/internal/entities"
	"guida/internal/entities/memory"
)

var now = time.Date(2025, 6, 15, 14, 30, 0, 0, time.UTC)

func TestGenerateIsDeterministic(t *testing.T) {
	a, err := json.Marshal(Generator{Seed: 7, Now: now}.Generate(3, 14))
	if err != nil {
		t.Fatal(err)
	}
	b, err := json.Marshal(Generator{Seed: 7, Now: now}.Generate(3, 14))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Fatal("same seed produced different datasets")
	}

	c, _ := json.Marshal(Generator{Seed: 8, Now: now}.Generate(3, 14))
	if bytes.Equal(a, c) {
		t.Fatal("different seeds produced identical datasets")
	}
}

func TestGenerateShape(t *testing.T) {
	const days = 10
	ds := Generator{Seed: 1, Now: now}.Generate(2, days)

	if len(ds.Businesses) != 2 {
		t.Fatalf("got %d businesses", len(ds.Businesses))
	}
	for _, b := range ds.Businesses {
		if err := b.Validate(); err != nil {
			t.Errorf("business %s invalid: %v", b.ID, err)
		}
	}

	oldest := time.Date(2025, 6, 6, 0, 0, 0, 0, time.UTC)
	seenDays := map[string]bool{}
	ids := map[string]bool{}
	for _, im := range ds.Impressions {
		if err := im.Validate(); err != nil {
			t.Fatalf("impression invalid: %v", err)
		}
		if im.CreatedDate.After(now) || im.CreatedDate.Before(oldest) {
			t.Fatalf("impression at %v outside [%v, %v]", im.CreatedDate, oldest, now)
		}
		if ids[im.ID] {
			t.Fatalf("duplicate id %s", im.ID)
		}
		ids[im.ID] = true
		seenDays[im.CreatedDate.Format("2006-01-02")] = true
	}
	if len(seenDays) != days {
		t.Errorf("impressions cover %d days, want %d", len(seenDays), days)
	}

	for _, tx := range ds.Transactions {
		if err := tx.Validate(); err != nil {
			t.Errorf("transaction %s invalid: %v", tx.ID, err)
		}
	}
	for _, rv := range ds.Reviews {
		if err := rv.Validate(); err != nil {
			t.Errorf("review %s invalid: %v", rv.ID, err)
		}
	}
}

func TestStore(t *testing.T) {
	ds := Generator{Seed: 3, Now: now}.Generate(2, 5)
	store := memory.New()
	ctx := context.Background()

	if err := Store(ctx, store, ds); err != nil {
		t.Fatalf("Store: %v", err)
	}

	got, err := entities.ImpressionCollection(store).Filter(ctx, entities.Where{"business_id": ds.Businesses[0].ID}, "", 0)
	if err != nil {
		t.Fatal(err)
	}
	want := 0
	for _, im := range ds.Impressions {
		if im.BusinessID == ds.Businesses[0].ID {
			want++
		}
	}
	if len(got) != want {
		t.Errorf("stored %d impressions for first business, want %d", len(got), want)
	}

	txs, err := entities.TransactionCollection(store).List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(txs) != len(ds.Transactions) {
		t.Errorf("stored %d transactions, want %d", len(txs), len(ds.Transactions))
	}
}
