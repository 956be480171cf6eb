/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package backend

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"rockviewer/internal/domain"
)

// PGStore keeps the sample catalog in Postgres (pgx stdlib driver).
type PGStore struct {
	DB *sql.DB
}

func (s PGStore) Ping(ctx context.Context) error { return s.DB.PingContext(ctx) }

// Samples runs q against the samples table.
func (s PGStore) Samples(ctx context.Context, q SampleQuery) ([]domain.Sample, error) {
	var (
		args []any
		b    strings.Builder
	)
	place := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	b.WriteString("SELECT code, name, origin, sample_name, reference_width_cm, path, meta::text FROM samples WHERE true ")
	if t := strings.ToLower(strings.TrimSpace(q.Text)); t != "" {
		p := place("%" + t + "%")
		b.WriteString(" AND (lower(code) LIKE " + p + " OR lower(name) LIKE " + p + " OR lower(sample_name) LIKE " + p + ") ")
	}
	if q.Origin != "" {
		b.WriteString(" AND (CASE WHEN origin IN ('" + domain.OriginMagmatic + "','" + domain.OriginMetamorphic + "','" +
			domain.OriginSedimentary + "') THEN origin ELSE '" + domain.OriginOther + "' END) = " + place(q.Origin) + " ")
	}
	b.WriteString(" ORDER BY code COLLATE \"C\" ")
	b.WriteString(" LIMIT " + place(q.limit()) + " OFFSET " + place(q.offset()))

	rows, err := s.DB.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query samples: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []domain.Sample
	for rows.Next() {
		var (
			smp  domain.Sample
			ref  sql.NullFloat64
			meta string
		)
		if err := rows.Scan(&smp.Code, &smp.Name, &smp.Origin, &smp.SampleName, &ref, &smp.Path, &meta); err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		smp.ReferenceWidthCm = ref.Float64
		if err := json.Unmarshal([]byte(meta), &smp.Meta); err != nil {
			return nil, fmt.Errorf("sample %s meta: %w", smp.Code, err)
		}
		out = append(out, smp)
	}
	return out, rows.Err()
}

// Upsert inserts or replaces samples by code in one transaction.
func (s PGStore) Upsert(ctx context.Context, samples []domain.Sample) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	const q = `INSERT INTO samples (code, name, origin, sample_name, reference_width_cm, path, meta, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, now())
ON CONFLICT (code) DO UPDATE SET
  name = EXCLUDED.name, origin = EXCLUDED.origin, sample_name = EXCLUDED.sample_name,
  reference_width_cm = EXCLUDED.reference_width_cm, path = EXCLUDED.path, meta = EXCLUDED.meta,
  updated_at = now()`
	for _, smp := range samples {
		if smp.Code == "" {
			return fmt.Errorf("upsert sample: empty code")
		}
		meta, err := json.Marshal(smp.Meta)
		if err != nil {
			return fmt.Errorf("sample %s meta: %w", smp.Code, err)
		}
		var ref sql.NullFloat64
		if smp.ReferenceWidthCm > 0 {
			ref = sql.NullFloat64{Float64: smp.ReferenceWidthCm, Valid: true}
		}
		if _, err := tx.ExecContext(ctx, q, smp.Code, smp.Name, smp.Origin, smp.SampleName, ref, smp.Path, string(meta)); err != nil {
			return fmt.Errorf("upsert sample %s: %w", smp.Code, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
