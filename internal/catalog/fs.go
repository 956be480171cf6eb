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
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"rockviewer/internal/annotation"
	"rockviewer/internal/config"
	"rockviewer/internal/domain"
)

// FS reads the catalog from a local data root laid out like the web root:
// <Root>/models/<dir>/metadata.json and <Root>/data/annotations/<code>.json.
type FS struct {
	Root string
}

func (f FS) path(ref string) string {
	return filepath.Join(f.Root, filepath.FromSlash(strings.TrimLeft(ref, "/")))
}

// AnnotationDir is the directory watched for annotation changes.
func (f FS) AnnotationDir() annotation.DirSource {
	return annotation.DirSource{Root: filepath.Join(f.Root, "data")}
}

// Dirs lists the sample directories under models/, sorted by name.
func (f FS) Dirs() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(f.Root, ModelsDir))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read models dir: %w", err)
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			dirs = append(dirs, e.Name())
		}
	}
	sort.Strings(dirs)
	return dirs, nil
}

func (f FS) List(ctx context.Context) ([]domain.Sample, error) {
	dirs, err := f.Dirs()
	if err != nil {
		return nil, err
	}
	return collect(ctx, dirs, f.Sample), nil
}

func (f FS) Sample(ctx context.Context, dir string) (domain.Sample, error) {
	if err := ctx.Err(); err != nil {
		return domain.Sample{}, err
	}
	p := f.path(SampleDir(dir) + "metadata.json")
	b, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return domain.Sample{}, fmt.Errorf("sample %s: %w", dir, &AssetError{URL: p, Err: ErrNotFound})
	}
	if err != nil {
		return domain.Sample{}, fmt.Errorf("sample %s: %w", dir, &AssetError{URL: p, Err: err})
	}
	return ParseMetadata(dir, b)
}

// ProbeImage returns the first image variant that exists and decodes as an image.
func (f FS) ProbeImage(ctx context.Context, s domain.Sample) (string, error) {
	for _, ext := range ImageExts {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		ref := ImageRef(s, ext)
		fh, err := os.Open(f.path(ref))
		if err != nil {
			continue
		}
		ct := SniffImage(fh)
		_ = fh.Close()
		if strings.HasPrefix(ct, "image/") {
			return ref, nil
		}
	}
	return "", fmt.Errorf("image for %s: %w", s.Code, ErrNotFound)
}

func (f FS) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := f.path(ref)
	fh, err := os.Open(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &AssetError{URL: p, Err: ErrNotFound}
	}
	if err != nil {
		return nil, &AssetError{URL: p, Err: err}
	}
	return fh, nil
}

func (f FS) Annotations(ctx context.Context, code string) ([]byte, error) {
	return f.AnnotationDir().Annotations(ctx, code)
}

// New picks the local data root when set and the HTTP catalog otherwise.
func New(root, baseURL string, client *Client) Source {
	if root != "" {
		return FS{Root: root}
	}
	if client == nil {
		client = NewClient(baseURL, "")
	}
	return client
}

// FromConfig builds the source described by cfg. When a cache path is set
// the source is wrapped in Cached; close releases the cache.
func FromConfig(cfg config.CatalogConfig, token string) (src Source, closeFn func(), err error) {
	src = New(cfg.DataRoot, cfg.BaseURL, NewClientFromConfig(cfg, token))
	if cfg.CachePath == "" {
		return src, func() {}, nil
	}
	idx, err := OpenIndex(cfg.CachePath)
	if err != nil {
		return nil, nil, err
	}
	return Cached{Source: src, Index: idx}, func() { _ = idx.Close() }, nil
}

// Local returns the data-root source behind src, unwrapping Cached.
func Local(src Source) (FS, bool) {
	switch s := src.(type) {
	case FS:
		return s, true
	case Cached:
		return Local(s.Source)
	}
	return FS{}, false
}
