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
	"log/slog"

	"rockviewer/internal/domain"
	applog "rockviewer/internal/log"
)

// Cached wraps a Source with the local Index: successful listings refresh
// the cache, failed ones are served from it.
type Cached struct {
	Source
	Index *Index
}

func (c Cached) List(ctx context.Context) ([]domain.Sample, error) {
	log := applog.WithOperation(applog.WithComponent("catalog"), "list")
	list, err := c.Source.List(ctx)
	if err == nil {
		if perr := c.Index.Replace(ctx, list); perr != nil {
			log.WarnContext(ctx, "cache update failed", slog.Any("err", perr))
		}
		return list, nil
	}
	cached, cerr := c.Index.List(ctx)
	if cerr != nil || len(cached) == 0 {
		return nil, err
	}
	log.WarnContext(ctx, "catalog unreachable, serving cache", slog.Any("err", err), slog.Int("count", len(cached)))
	return cached, nil
}

func (c Cached) Sample(ctx context.Context, dir string) (domain.Sample, error) {
	s, err := c.Source.Sample(ctx, dir)
	if err == nil {
		return s, nil
	}
	if cs, cerr := c.Index.Get(ctx, dir); cerr == nil {
		return cs, nil
	}
	return s, err
}
