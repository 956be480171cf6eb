/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package magnifier renders the circular loupe of the thin-section viewer:
// a Size x Size window showing the image around the pointer at Zoom times
// the current view scale, redrawn at most once per MinDelay.
package magnifier

import (
	"image"
	"image/color"
	"sync"
	"time"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"rockviewer/internal/geom"
)

// Loupe defaults.
const (
	DefaultSize     = 100
	DefaultZoom     = 4
	DefaultMinDelay = 16 * time.Millisecond
)

// Frame is one rendered loupe.
type Frame struct {
	Image *image.RGBA
	// At is the client position the loupe is drawn at.
	At geom.Pt
	// Source is the image-space square shown in the loupe.
	Source geom.Rect
}

// Options configures a Loupe; zero fields take the defaults.
type Options struct {
	Size     int
	Zoom     float64
	MinDelay time.Duration
	Clock    func() time.Time
}

// Loupe magnifies src around the pointer. It is safe for concurrent use.
type Loupe struct {
	mu       sync.Mutex
	src      image.Image
	size     int
	zoom     float64
	minDelay time.Duration
	now      func() time.Time

	last      time.Time
	drawn     bool
	pointer   geom.Pt
	havePtr   bool
	imageRect geom.Rect
	scale     float64
	mask      *image.Alpha
}

func New(src image.Image, opts Options) *Loupe {
	if opts.Size <= 0 {
		opts.Size = DefaultSize
	}
	if opts.Zoom <= 0 {
		opts.Zoom = DefaultZoom
	}
	if opts.MinDelay <= 0 {
		opts.MinDelay = DefaultMinDelay
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Loupe{
		src:      src,
		size:     opts.Size,
		zoom:     opts.Zoom,
		minDelay: opts.MinDelay,
		now:      opts.Clock,
		mask:     circleMask(opts.Size),
	}
}

// SourceRect is the image-space square shown for the image point p at view
// scale: side Size/(Zoom*scale), centred on p.
func (l *Loupe) SourceRect(p geom.Pt, scale float64) geom.Rect {
	side := float64(l.size) / (l.zoom * scale)
	return geom.R(p.X-side/2, p.Y-side/2, side, side)
}

// Move records the pointer and renders a frame unless the previous one is
// younger than MinDelay. imageRect is the on-screen rectangle of the
// transformed image and scale the current view scale.
func (l *Loupe) Move(client geom.Pt, imageRect geom.Rect, scale float64) (Frame, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pointer, l.havePtr = client, true
	l.imageRect, l.scale = imageRect, scale
	return l.drawLocked()
}

// Redraw renders again at the last pointer with a new view, as after a
// pan or zoom. It reports false when no pointer was seen yet or the frame
// is throttled.
func (l *Loupe) Redraw(imageRect geom.Rect, scale float64) (Frame, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.havePtr {
		return Frame{}, false
	}
	l.imageRect, l.scale = imageRect, scale
	return l.drawLocked()
}

func (l *Loupe) drawLocked() (Frame, bool) {
	now := l.now()
	if l.drawn && now.Sub(l.last) < l.minDelay {
		return Frame{}, false
	}
	if l.src == nil || l.scale <= 0 {
		return Frame{}, false
	}
	l.last, l.drawn = now, true

	p := geom.P((l.pointer.X-l.imageRect.X)/l.scale, (l.pointer.Y-l.imageRect.Y)/l.scale)
	sr := l.SourceRect(p, l.scale)
	return Frame{Image: l.render(sr), At: l.pointer, Source: sr}, true
}

func (l *Loupe) render(sr geom.Rect) *image.RGBA {
	n := l.size
	k := float64(n) / sr.W
	tmp := image.NewRGBA(image.Rect(0, 0, n, n))
	s2d := f64.Aff3{k, 0, -k * sr.X, 0, k, -k * sr.Y}
	draw.ApproxBiLinear.Transform(tmp, s2d, l.src, l.src.Bounds(), draw.Src, nil)

	out := image.NewRGBA(tmp.Bounds())
	draw.DrawMask(out, out.Bounds(), tmp, image.Point{}, l.mask, image.Point{}, draw.Src)
	return out
}

// circleMask is opaque inside the inscribed circle of an n x n square.
func circleMask(n int) *image.Alpha {
	m := image.NewAlpha(image.Rect(0, 0, n, n))
	r := float64(n) / 2
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			dx, dy := float64(x)+0.5-r, float64(y)+0.5-r
			if dx*dx+dy*dy <= r*r {
				m.SetAlpha(x, y, color.Alpha{A: 255})
			}
		}
	}
	return m
}
