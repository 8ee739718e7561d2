package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"guida/internal/entities"
)

// Store keeps every collection in process memory, in insertion order.
type Store struct {
	mu    sync.Mutex
	now   func() time.Time
	cols  map[string][]json.RawMessage
	index map[string]map[string]int
}

var _ entities.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		now:   time.Now,
		cols:  map[string][]json.RawMessage{},
		index: map[string]map[string]int{},
	}
}

// WithClock replaces the clock used for created_date stamps.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// NewFromFiles seeds a store from <base>/<collection>.json files holding a
// JSON array of documents. Missing or unreadable files are skipped.
func NewFromFiles(base string) *Store {
	s := New()
	for _, name := range []string{entities.Businesses, entities.Transactions, entities.Impressions, entities.Reviews} {
		for _, doc := range readSeed(filepath.Join(base, name+".json")) {
			_, _ = s.Create(context.Background(), name, doc)
		}
	}
	return s
}

func (s *Store) List(_ context.Context, collection string) ([]json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneDocs(s.cols[collection]), nil
}

func (s *Store) Filter(_ context.Context, collection string, where entities.Where, sortBy string, limit int) ([]json.RawMessage, error) {
	field, desc, err := entities.ParseSort(sortBy)
	if err != nil {
		return nil, err
	}
	if err := entities.ValidateWhere(where); err != nil {
		return nil, err
	}

	s.mu.Lock()
	docs := cloneDocs(s.cols[collection])
	s.mu.Unlock()

	type row struct {
		raw    json.RawMessage
		fields map[string]any
	}
	var rows []row
	for _, d := range docs {
		fields, err := entities.Decode(d)
		if err != nil {
			return nil, err
		}
		ok, err := entities.Matches(fields, where)
		if err != nil {
			return nil, err
		}
		if ok {
			rows = append(rows, row{raw: d, fields: fields})
		}
	}

	if field != "" {
		sort.SliceStable(rows, func(i, j int) bool {
			return entities.Less(rows[i].fields, rows[j].fields, field, desc)
		})
	}

	out := make([]json.RawMessage, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.raw)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) Get(_ context.Context, collection, id string) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos, ok := s.index[collection][id]
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", collection, id, entities.ErrNotFound)
	}
	return clone(s.cols[collection][pos]), nil
}

func (s *Store) Create(_ context.Context, collection string, doc json.RawMessage) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stamped, id, err := entities.Stamp(doc, s.now())
	if err != nil {
		return nil, err
	}
	if _, exists := s.index[collection][id]; exists {
		return nil, fmt.Errorf("%s %s: already exists", collection, id)
	}
	if s.index[collection] == nil {
		s.index[collection] = map[string]int{}
	}
	s.index[collection][id] = len(s.cols[collection])
	s.cols[collection] = append(s.cols[collection], stamped)
	return clone(stamped), nil
}

func (s *Store) Update(_ context.Context, collection, id string, patch json.RawMessage) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos, ok := s.index[collection][id]
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", collection, id, entities.ErrNotFound)
	}
	merged, err := entities.Merge(s.cols[collection][pos], patch)
	if err != nil {
		return nil, err
	}
	s.cols[collection][pos] = merged
	return clone(merged), nil
}

func (s *Store) Delete(_ context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos, ok := s.index[collection][id]
	if !ok {
		return fmt.Errorf("%s %s: %w", collection, id, entities.ErrNotFound)
	}
	docs := s.cols[collection]
	s.cols[collection] = append(docs[:pos:pos], docs[pos+1:]...)
	delete(s.index[collection], id)
	for k, p := range s.index[collection] {
		if p > pos {
			s.index[collection][k] = p - 1
		}
	}
	return nil
}

func readSeed(path string) []json.RawMessage {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var docs []json.RawMessage
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil
	}
	return docs
}

func clone(d json.RawMessage) json.RawMessage {
	return append(json.RawMessage(nil), d...)
}

func cloneDocs(in []json.RawMessage) []json.RawMessage {
	out := make([]json.RawMessage, len(in))
	for i, d := range in {
		out[i] = clone(d)
	}
	return out
}
