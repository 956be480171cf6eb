/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package catalog locates rock samples and their assets: the metadata.json of
// every sample directory under models/, the thin-section image variant, the
// mesh files and the annotation files. Sources exist for a static HTTP server
// and for a local data root; Index caches the sample list in SQLite.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"rockviewer/internal/annotation"
	"rockviewer/internal/domain"
)

// ErrNotFound reports an absent sample, metadata file or asset.
var ErrNotFound = errors.New("not found")

// ImageExts are the thin-section image variants, in probe order.
var ImageExts = []string{".png", ".jpg", ".jpeg", ".tiff"}

// ImageBase is the file name (without extension) of the thin-section image.
const ImageBase = "TS"

// ModelsDir is the directory holding one sub-directory per sample.
const ModelsDir = "models"

// AssetError is a failed asset load. URL is the request URL or file path.
type AssetError struct {
	URL    string
	Status int // HTTP status, 0 for local files and transport errors
	Err    error
}

func (e *AssetError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("asset %s: status %d: %v", e.URL, e.Status, e.Err)
	}
	return fmt.Sprintf("asset %s: %v", e.URL, e.Err)
}

func (e *AssetError) Unwrap() error { return e.Err }

// Source is a sample catalog backend.
type Source interface {
	annotation.Source
	// List returns every readable sample. Unreadable directories are skipped.
	List(ctx context.Context) ([]domain.Sample, error)
	// Sample reads models/<dir>/metadata.json.
	Sample(ctx context.Context, dir string) (domain.Sample, error)
	// ProbeImage returns the reference of the first image variant of s.
	ProbeImage(ctx context.Context, s domain.Sample) (string, error)
	// Open reads an asset by its data-root relative reference.
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
}

// SampleDir returns the data-root relative directory of a sample dir name.
func SampleDir(dir string) string { return ModelsDir + "/" + strings.Trim(dir, "/") + "/" }

// DirName is the inverse of SampleDir for a sample path.
func DirName(samplePath string) string { return path.Base(strings.TrimRight(samplePath, "/")) }

// ImageRef returns the reference of the image variant ext of s.
func ImageRef(s domain.Sample, ext string) string { return s.Path + ImageBase + ext }

// ModelRef returns the reference of the mesh file of s with ext.
func ModelRef(s domain.Sample, ext string) string { return s.Path + s.ModelFile(ext) }

// Find returns the sample with code from list.
func Find(list []domain.Sample, code string) (domain.Sample, error) {
	for _, s := range list {
		if s.Code == code || DirName(s.Path) == code {
			return s, nil
		}
	}
	return domain.Sample{}, fmt.Errorf("sample %s: %w", code, ErrNotFound)
}
