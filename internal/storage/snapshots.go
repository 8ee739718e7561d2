package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"guida/internal/entities"
)

// snapshotTimeLayout has fixed width so generated_at sorts as text.
const snapshotTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Snapshot is a stored summary produced by the report worker. Payload is
// the summary JSON as served by the API.
type Snapshot struct {
	ID          string          `json:"id"`
	Kind        string          `json:"kind"`
	BusinessID  string          `json:"business_id"`
	RangeDays   int             `json:"range_days"`
	Unit        string          `json:"unit"`
	GeneratedAt time.Time       `json:"generated_at"`
	Payload     json.RawMessage `json:"payload"`
}

// SaveSnapshot inserts s, assigning an id when it has none.
func (r *SQLiteRepository) SaveSnapshot(ctx context.Context, s Snapshot) (Snapshot, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.GeneratedAt.IsZero() {
		s.GeneratedAt = r.now()
	}
	if !json.Valid(s.Payload) {
		return Snapshot{}, fmt.Errorf("snapshot %s: payload is not valid JSON", s.ID)
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO summary_snapshots (id, kind, business_id, range_days, unit, generated_at, payload)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.Kind, s.BusinessID, s.RangeDays, s.Unit,
		s.GeneratedAt.UTC().Format(snapshotTimeLayout), string(s.Payload))
	if err != nil {
		return Snapshot{}, fmt.Errorf("insert snapshot: %w", err)
	}
	return s, nil
}

// LatestSnapshot returns the newest snapshot for kind and business.
func (r *SQLiteRepository) LatestSnapshot(ctx context.Context, kind, businessID string) (Snapshot, error) {
	list, err := r.ListSnapshots(ctx, kind, businessID, 1)
	if err != nil {
		return Snapshot{}, err
	}
	if len(list) == 0 {
		return Snapshot{}, fmt.Errorf("snapshot %s/%s: %w", kind, businessID, entities.ErrNotFound)
	}
	return list[0], nil
}

// ListSnapshots returns snapshots newest first. A limit <= 0 returns all.
func (r *SQLiteRepository) ListSnapshots(ctx context.Context, kind, businessID string, limit int) ([]Snapshot, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, kind, business_id, range_days, unit, generated_at, payload
		 FROM summary_snapshots
		 WHERE kind = ? AND business_id = ?
		 ORDER BY generated_at DESC
		 LIMIT ?`, kind, businessID, limit)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanSnapshot(rows *sql.Rows) (Snapshot, error) {
	var (
		s         Snapshot
		generated string
		payload   string
	)
	if err := rows.Scan(&s.ID, &s.Kind, &s.BusinessID, &s.RangeDays, &s.Unit, &generated, &payload); err != nil {
		return Snapshot{}, fmt.Errorf("scan snapshot: %w", err)
	}
	t, err := time.Parse(time.RFC3339Nano, generated)
	if err != nil {
		return Snapshot{}, fmt.Errorf("parse snapshot time %q: %w", generated, err)
	}
	s.GeneratedAt = t
	s.Payload = json.RawMessage(payload)
	return s, nil
}
