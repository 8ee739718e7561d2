package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"guida/internal/entities"

	_ "modernc.org/sqlite"
)

// SQLiteRepository stores every entity collection as JSON documents in a
// single table and keeps summary snapshots produced by the worker.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

var _ entities.Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	slog.Info("SQLite repository ready", "db_path", dbPath, "schema_version", version)
	return &SQLiteRepository{db: db, now: time.Now}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) List(ctx context.Context, collection string) ([]json.RawMessage, error) {
	return r.Filter(ctx, collection, nil, "", 0)
}

// Filter translates where and sort into json_extract expressions. Field
// names are validated before being placed in the JSON path.
func (r *SQLiteRepository) Filter(ctx context.Context, collection string, where entities.Where, sortBy string, limit int) ([]json.RawMessage, error) {
	field, desc, err := entities.ParseSort(sortBy)
	if err != nil {
		return nil, err
	}
	if err := entities.ValidateWhere(where); err != nil {
		return nil, err
	}

	var q strings.Builder
	q.WriteString(`SELECT doc FROM documents WHERE collection = ?`)
	args := []any{collection}

	keys := make([]string, 0, len(where))
	for k := range where {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v, err := entities.Canonical(where[k])
		if err != nil {
			return nil, err
		}
		path := jsonPath(k)
		switch v := v.(type) {
		case nil:
			q.WriteString(` AND json_extract(doc, '` + path + `') IS NULL`)
		case bool:
			q.WriteString(` AND json_extract(doc, '` + path + `') = ?`)
			args = append(args, boolInt(v))
		case float64, string:
			q.WriteString(` AND json_extract(doc, '` + path + `') = ?`)
			args = append(args, v)
		default:
			return nil, fmt.Errorf("%w: field %q", entities.ErrInvalidValue, k)
		}
	}

	if field != "" {
		q.WriteString(` ORDER BY json_extract(doc, '` + jsonPath(field) + `')`)
		if desc {
			q.WriteString(` DESC`)
		}
		q.WriteString(`, seq`)
	} else {
		q.WriteString(` ORDER BY seq`)
	}
	if limit > 0 {
		q.WriteString(` LIMIT ?`)
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, q.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	defer rows.Close()

	var out []json.RawMessage
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan %s: %w", collection, err)
		}
		out = append(out, json.RawMessage(doc))
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) Get(ctx context.Context, collection, id string) (json.RawMessage, error) {
	var doc string
	err := r.db.QueryRowContext(ctx,
		`SELECT doc FROM documents WHERE collection = ? AND id = ?`, collection, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s %s: %w", collection, id, entities.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s %s: %w", collection, id, err)
	}
	return json.RawMessage(doc), nil
}

func (r *SQLiteRepository) Create(ctx context.Context, collection string, doc json.RawMessage) (json.RawMessage, error) {
	stamped, id, err := entities.Stamp(doc, r.now())
	if err != nil {
		return nil, err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, doc) VALUES (?, ?, ?)`, collection, id, string(stamped))
	if err != nil {
		return nil, fmt.Errorf("insert %s %s: %w", collection, id, err)
	}

	slog.DebugContext(ctx, "Document saved to SQLite", "collection", collection, "id", id)
	return stamped, nil
}

func (r *SQLiteRepository) Update(ctx context.Context, collection, id string, patch json.RawMessage) (json.RawMessage, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback()

	var current string
	err = tx.QueryRowContext(ctx,
		`SELECT doc FROM documents WHERE collection = ? AND id = ?`, collection, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s %s: %w", collection, id, entities.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s %s: %w", collection, id, err)
	}

	merged, err := entities.Merge(json.RawMessage(current), patch)
	if err != nil {
		return nil, err
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE documents SET doc = ?, updated_at = CURRENT_TIMESTAMP WHERE collection = ? AND id = ?`,
		string(merged), collection, id)
	if err != nil {
		return nil, fmt.Errorf("update %s %s: %w", collection, id, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit update: %w", err)
	}
	return merged, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, collection, id string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id)
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", collection, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", collection, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", collection, id, entities.ErrNotFound)
	}
	return nil
}

func jsonPath(field string) string {
	return "$." + field
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
