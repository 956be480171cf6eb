/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package annotation

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	applog "rockviewer/internal/log"
)

// Source returns the raw annotation file of a sample. Implementations
// return an error wrapping ErrNoAnnotations when the sample has none.
type Source interface {
	Annotations(ctx context.Context, code string) ([]byte, error)
}

// DirSource reads <Root>/annotations/<code>.json from disk.
type DirSource struct {
	Root string
}

// Path returns the file backing code.
func (d DirSource) Path(code string) string {
	return filepath.Join(d.Root, "annotations", code+".json")
}

func (d DirSource) Annotations(ctx context.Context, code string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(d.Path(code))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", code, ErrNoAnnotations)
	}
	if err != nil {
		return nil, fmt.Errorf("read annotations %s: %w", code, err)
	}
	return b, nil
}

// Fetch loads and parses the annotations of code. A missing or malformed
// file is reported as ErrNoAnnotations.
func Fetch(ctx context.Context, src Source, code string) ([]Annotation, error) {
	b, err := src.Annotations(ctx, code)
	if err != nil {
		return nil, err
	}
	all, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", code, ErrNoAnnotations, err)
	}
	return all, nil
}

// Load returns the annotations of code for viewer. Failures are logged at
// WARN and yield an empty result; the viewer keeps working without them.
func Load(ctx context.Context, src Source, code, viewer string) []Annotation {
	log := applog.WithOperation(applog.WithComponent("annotation"), "load")
	all, err := Fetch(ctx, src, code)
	if err != nil {
		log.WarnContext(ctx, "no annotations", slog.String("code", code), slog.String("viewer", viewer), slog.Any("err", err))
		return nil
	}
	out := Filter(all, viewer)
	log.DebugContext(ctx, "annotations loaded", slog.String("code", code), slog.String("viewer", viewer), slog.Int("count", len(out)))
	return out
}
