/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"rockviewer/internal/domain"
	applog "rockviewer/internal/log"
	"rockviewer/internal/version"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

// schemaVersion tracks the local sample cache schema.
const schemaVersion = 2

// Index is the local SQLite cache of the sample list, used when the catalog
// source is unreachable.
type Index struct {
	db   *sql.DB
	path string
}

// OpenIndex creates or opens the cache at path, enables WAL mode and brings
// the schema up to date.
func OpenIndex(path string) (*Index, error) {
	l := applog.WithOperation(applog.WithComponent("catalog"), "index_init").With(
		slog.String("path", path),
	)
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("index path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		l.Error("create index dir failed", slog.Any("err", err))
		return nil, fmt.Errorf("create index dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		l.Error("sqlite open failed", slog.Any("err", err))
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		l.Error("enable WAL failed", slog.Any("err", err))
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if err := ensureMetaAndVersion(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure meta/version failed", slog.Any("err", err))
		return nil, err
	}
	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		l.Error("run migrations failed", slog.Any("err", err))
		return nil, err
	}
	l.Debug("index ready")
	return &Index{db: db, path: path}, nil
}

func (x *Index) Close() error { return x.db.Close() }

// Path is the database file.
func (x *Index) Path() string { return x.path }

func ensureMetaAndVersion(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS version (
			id          INTEGER PRIMARY KEY CHECK(id=1),
			schema      INTEGER NOT NULL,
			app         TEXT,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	appv := version.String()
	var cur int
	err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// Fresh database: start at 0 so every migration runs.
		if _, err := db.ExecContext(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, 0, ?, ?, ?)`, appv, now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		if _, err := db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, appv, now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

var migrations = map[int][]string{
	1: {
		`CREATE TABLE IF NOT EXISTS samples (
			code               TEXT PRIMARY KEY,
			dir                TEXT NOT NULL,
			name               TEXT NOT NULL,
			origin             TEXT NOT NULL DEFAULT '',
			sample_name        TEXT NOT NULL DEFAULT '',
			reference_width_cm REAL NOT NULL DEFAULT 0,
			meta_json          TEXT NOT NULL DEFAULT '{}',
			position           INTEGER NOT NULL,
			updated_at         TEXT NOT NULL
		);`,
	},
	2: {
		`CREATE INDEX IF NOT EXISTS idx_samples_origin ON samples(origin);`,
	},
}

// runMigrations applies incremental schema migrations up to schemaVersion.
func runMigrations(ctx context.Context, db *sql.DB) error {
	var cur int
	if err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	for cur < schemaVersion {
		next := cur + 1
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", next, err)
		}
		for _, q := range migrations[next] {
			if _, err := tx.ExecContext(ctx, q); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d stmt failed: %w", next, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `UPDATE version SET schema=?, updated_at=? WHERE id=1`, next, time.Now().UTC().Format(time.RFC3339)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d update version: %w", next, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d commit: %w", next, err)
		}
		cur = next
	}
	return nil
}

// Replace stores list as the cached catalog, dropping previous entries.
func (x *Index) Replace(ctx context.Context, list []domain.Sample) error {
	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, `DELETE FROM samples`); err != nil {
		return fmt.Errorf("clear samples: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO samples
		(code, dir, name, origin, sample_name, reference_width_cm, meta_json, position, updated_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()
	now := time.Now().UTC().Format(time.RFC3339)
	for i, s := range list {
		meta, err := json.Marshal(s.Meta)
		if err != nil {
			return fmt.Errorf("encode meta %s: %w", s.Code, err)
		}
		if _, err := stmt.ExecContext(ctx, s.Code, DirName(s.Path), s.Name, s.Origin, s.SampleName, s.ReferenceWidthCm, string(meta), i, now); err != nil {
			return fmt.Errorf("insert sample %s: %w", s.Code, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO meta(key, value) VALUES('refreshed_at', ?)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value`, now); err != nil {
		return fmt.Errorf("stamp refresh: %w", err)
	}
	return tx.Commit()
}

const selectSamples = `SELECT code, dir, name, origin, sample_name, reference_width_cm, meta_json FROM samples`

func scanSample(sc interface{ Scan(...any) error }) (domain.Sample, error) {
	var (
		s    domain.Sample
		dir  string
		meta string
	)
	if err := sc.Scan(&s.Code, &dir, &s.Name, &s.Origin, &s.SampleName, &s.ReferenceWidthCm, &meta); err != nil {
		return domain.Sample{}, err
	}
	s.Path = SampleDir(dir)
	if err := json.Unmarshal([]byte(meta), &s.Meta); err != nil {
		return domain.Sample{}, fmt.Errorf("decode meta %s: %w", s.Code, err)
	}
	if len(s.Meta) == 0 {
		s.Meta = nil
	}
	return s, nil
}

// List returns the cached samples in their original order.
func (x *Index) List(ctx context.Context) ([]domain.Sample, error) {
	rows, err := x.db.QueryContext(ctx, selectSamples+` ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query samples: %w", err)
	}
	defer rows.Close()
	var out []domain.Sample
	for rows.Next() {
		s, err := scanSample(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ByOrigin returns the cached samples with the given origin.
func (x *Index) ByOrigin(ctx context.Context, origin string) ([]domain.Sample, error) {
	rows, err := x.db.QueryContext(ctx, selectSamples+` WHERE origin = ? ORDER BY position`, origin)
	if err != nil {
		return nil, fmt.Errorf("query samples: %w", err)
	}
	defer rows.Close()
	var out []domain.Sample
	for rows.Next() {
		s, err := scanSample(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Get returns a cached sample by code or directory name.
func (x *Index) Get(ctx context.Context, code string) (domain.Sample, error) {
	row := x.db.QueryRowContext(ctx, selectSamples+` WHERE code = ? OR dir = ? LIMIT 1`, code, code)
	s, err := scanSample(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Sample{}, fmt.Errorf("sample %s: %w", code, ErrNotFound)
	}
	return s, err
}

// RefreshedAt is the time of the last Replace; zero when never filled.
func (x *Index) RefreshedAt(ctx context.Context) (time.Time, error) {
	var v string
	err := x.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key='refreshed_at'`).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339, v)
}
