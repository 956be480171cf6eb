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
	"errors"
	"fmt"
	"sort"
	"strings"

	"rockviewer/internal/catalog"
	"rockviewer/internal/domain"
)

// ErrReadOnly is returned by stores that cannot persist samples.
var ErrReadOnly = errors.New("sample store is read-only")

// SampleQuery filters the sample listing. Text matches code, name and
// sample name case-insensitively; Origin matches the grouped origin.
type SampleQuery struct {
	Text   string
	Origin string
	Limit  int
	Offset int
}

const defaultLimit = 1000

func (q SampleQuery) limit() int {
	if q.Limit <= 0 {
		return defaultLimit
	}
	return q.Limit
}

func (q SampleQuery) offset() int {
	if q.Offset < 0 {
		return 0
	}
	return q.Offset
}

// Store is the server's sample catalog.
type Store interface {
	Samples(ctx context.Context, q SampleQuery) ([]domain.Sample, error)
	Upsert(ctx context.Context, samples []domain.Sample) error
	Ping(ctx context.Context) error
}

// CatalogStore serves samples straight from a catalog source. It is what the
// server uses when no database is configured.
type CatalogStore struct {
	Source catalog.Source
}

func (s CatalogStore) Samples(ctx context.Context, q SampleQuery) ([]domain.Sample, error) {
	list, err := s.Source.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list catalog: %w", err)
	}
	return FilterSamples(list, q), nil
}

func (CatalogStore) Upsert(context.Context, []domain.Sample) error { return ErrReadOnly }

func (CatalogStore) Ping(context.Context) error { return nil }

// FilterSamples applies q to an in-memory listing, ordered by code the same
// way the database query orders.
func FilterSamples(list []domain.Sample, q SampleQuery) []domain.Sample {
	text := strings.ToLower(strings.TrimSpace(q.Text))
	var out []domain.Sample
	for _, s := range list {
		if q.Origin != "" && s.GroupOrigin() != q.Origin {
			continue
		}
		if text != "" &&
			!strings.Contains(strings.ToLower(s.Code), text) &&
			!strings.Contains(strings.ToLower(s.Name), text) &&
			!strings.Contains(strings.ToLower(s.SampleName), text) {
			continue
		}
		out = append(out, s)
	}
	sortByCode(out)
	off := q.offset()
	if off >= len(out) {
		return nil
	}
	out = out[off:]
	if n := q.limit(); len(out) > n {
		out = out[:n]
	}
	return out
}

func sortByCode(list []domain.Sample) {
	sort.SliceStable(list, func(i, j int) bool { return list[i].Code < list[j].Code })
}

// Sync copies every sample of src into dst.
func Sync(ctx context.Context, dst Store, src catalog.Source) (int, error) {
	list, err := src.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list catalog: %w", err)
	}
	if err := dst.Upsert(ctx, list); err != nil {
		return 0, err
	}
	return len(list), nil
}
