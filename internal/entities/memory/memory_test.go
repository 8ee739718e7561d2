package memory

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"guida/internal/entities"
	"guida/internal/entities/entitiestest"
)

func TestMemoryStoreConformance(t *testing.T) {
	entitiestest.Run(t, func(t *testing.T) entities.Store { return New() })
}

func TestNewFromFilesSeeds(t *testing.T) {
	dir := t.TempDir()
	// No files -> empty store
	s := NewFromFiles(dir)
	docs, _ := s.List(context.Background(), entities.Businesses)
	if len(docs) != 0 {
		t.Fatalf("expected empty store when files missing, got %d", len(docs))
	}

	mustWrite := func(name, content string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	mustWrite("businesses.json", `[{"id":"b1","name":"A"},{"name":"B"},{"id":"b1","name":"dup"}]`)
	mustWrite("reviews.json", `not json`)

	s = NewFromFiles(dir)
	businesses, err := entities.BusinessCollection(s).List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(businesses) != 2 || businesses[0].ID != "b1" || businesses[1].Name != "B" {
		t.Fatalf("unexpected businesses: %+v", businesses)
	}
	reviews, _ := s.List(context.Background(), entities.Reviews)
	if len(reviews) != 0 {
		t.Fatalf("expected malformed seed to be skipped")
	}
}
