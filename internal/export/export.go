/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package export renders an overlay snapshot, optionally over the sample
// image, to SVG, PNG or PDF. It is the headless counterpart of the viewers'
// screenshot buttons.
package export

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"rockviewer/internal/geom"
	applog "rockviewer/internal/log"
	"rockviewer/internal/overlay"
)

// Format is an output encoding.
type Format string

const (
	SVG Format = "svg"
	PNG Format = "png"
	PDF Format = "pdf"
)

// Options describes the canvas. Coordinates of the drawables are canvas
// pixels; PDF pages use one point per pixel.
type Options struct {
	Size geom.Size
	// Background, when set, is scaled into ImageRect (the whole canvas when
	// ImageRect is empty) before the overlay is drawn.
	Background image.Image
	ImageRect  geom.Rect
	Title      string
}

func (o Options) imageRect() geom.Rect {
	if o.ImageRect.Empty() {
		return geom.R(0, 0, o.Size.W, o.Size.H)
	}
	return o.ImageRect
}

func (o Options) validate() error {
	if o.Size.W <= 0 || o.Size.H <= 0 {
		return fmt.Errorf("invalid canvas size %gx%g", o.Size.W, o.Size.H)
	}
	return nil
}

// FormatFromPath picks the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch f := Format(strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")); f {
	case SVG, PNG, PDF:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", filepath.Ext(path))
	}
}

// Write renders ds in format f.
func Write(w io.Writer, f Format, ds []overlay.Drawable, opt Options) error {
	if err := opt.validate(); err != nil {
		return err
	}
	switch f {
	case SVG:
		return WriteSVG(w, ds, opt)
	case PNG:
		return WritePNG(w, ds, opt)
	case PDF:
		return WritePDF(w, ds, opt)
	}
	return fmt.Errorf("unsupported export format %q", f)
}

// WriteFile renders ds to path, choosing the format by extension and
// creating the parent directory.
func WriteFile(path string, ds []overlay.Drawable, opt Options) error {
	f, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := Write(&buf, f, ds, opt); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	if err := replaceFile(path, buf.Bytes()); err != nil {
		return fmt.Errorf("write %s: %w", f, err)
	}
	applog.WithComponent("export").Info("overlay exported",
		slog.String("path", path), slog.String("format", string(f)), slog.Int("items", len(ds)))
	return nil
}

// replaceFile writes data to a temp file next to path, syncs it and renames
// it over path, so a failed export never leaves a truncated file behind.
func replaceFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(name)
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(name)
		return err
	}
	// Windows refuses to rename over an existing file.
	if _, err := os.Stat(path); err == nil {
		_ = os.Remove(path)
	}
	if err := os.Rename(name, path); err != nil {
		_ = os.Remove(name)
		return err
	}
	return nil
}

// ScreenshotName is the file name of a 2D capture taken at t.
func ScreenshotName(t time.Time) string {
	return fmt.Sprintf("lame-mince-%d.png", t.UnixMilli())
}

// CaptureName is the file name of a 3D capture of the named sample.
func CaptureName(sampleName string) string {
	return sampleName + "_capture.png"
}

const (
	popupPad    = 6.0
	lineHeight  = 14.0
	circleSteps = 32
)

// popupLines splits popup text into rows.
func popupLines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

// arcPoints samples the short arc from Start over Delta radians.
func arcPoints(a geom.Arc) []geom.Pt {
	if a.Radius <= 0 {
		return nil
	}
	start := math.Atan2(a.Start.Y-a.Center.Y, a.Start.X-a.Center.X)
	n := int(math.Ceil(math.Abs(a.Delta)/(2*math.Pi)*circleSteps)) + 1
	if n < 2 {
		n = 2
	}
	pts := make([]geom.Pt, n)
	for i := range pts {
		t := start + a.Delta*float64(i)/float64(n-1)
		pts[i] = geom.P(a.Center.X+math.Cos(t)*a.Radius, a.Center.Y+math.Sin(t)*a.Radius)
	}
	return pts
}

// circlePoints approximates a circle as a closed polygon.
func circlePoints(c geom.Pt, r float64) []geom.Pt {
	pts := make([]geom.Pt, circleSteps)
	for i := range pts {
		t := 2 * math.Pi * float64(i) / circleSteps
		pts[i] = geom.P(c.X+math.Cos(t)*r, c.Y+math.Sin(t)*r)
	}
	return pts
}
