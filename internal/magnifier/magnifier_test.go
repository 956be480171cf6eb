/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package magnifier

import (
	"image"
	"image/color"
	"testing"
	"time"

	"rockviewer/internal/geom"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

// quadrants is red on the left half and blue on the right.
func quadrants(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.RGBA{R: 255, A: 255}
			if x >= w/2 {
				c = color.RGBA{B: 255, A: 255}
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestSourceRectSide(t *testing.T) {
	l := New(nil, Options{})
	r := l.SourceRect(geom.P(50, 50), 2)
	if r.W != 12.5 || r.H != 12.5 || r.Center() != geom.P(50, 50) {
		t.Fatalf("source rect %+v", r)
	}
}

func TestMoveMapsPointerToImageSpace(t *testing.T) {
	clk := &fakeClock{t: time.Unix(0, 0)}
	l := New(quadrants(400, 400), Options{Clock: clk.now})
	// image drawn at client (100, 50) with scale 2: client (300, 250) is image (100, 100)
	f, ok := l.Move(geom.P(300, 250), geom.R(100, 50, 800, 800), 2)
	if !ok {
		t.Fatalf("first move throttled")
	}
	if f.Source.Center() != geom.P(100, 100) || f.At != geom.P(300, 250) {
		t.Fatalf("frame source %+v at %v", f.Source, f.At)
	}
	if f.Image.Bounds().Dx() != DefaultSize {
		t.Fatalf("loupe size %v", f.Image.Bounds())
	}
	if c := f.Image.RGBAAt(50, 50); c.R != 255 || c.B != 0 {
		t.Fatalf("centre colour %v, want red", c)
	}
	if c := f.Image.RGBAAt(0, 0); c.A != 0 {
		t.Fatalf("corner outside the circle is %v", c)
	}
}

func TestMoveIsThrottled(t *testing.T) {
	clk := &fakeClock{t: time.Unix(0, 0)}
	l := New(quadrants(100, 100), Options{Clock: clk.now})
	if _, ok := l.Move(geom.P(10, 10), geom.R(0, 0, 100, 100), 1); !ok {
		t.Fatalf("first frame dropped")
	}
	clk.advance(5 * time.Millisecond)
	if _, ok := l.Move(geom.P(20, 20), geom.R(0, 0, 100, 100), 1); ok {
		t.Fatalf("frame within MinDelay was drawn")
	}
	clk.advance(DefaultMinDelay)
	f, ok := l.Redraw(geom.R(0, 0, 100, 100), 1)
	if !ok {
		t.Fatalf("redraw after delay dropped")
	}
	if f.At != geom.P(20, 20) {
		t.Fatalf("redraw used pointer %v, want the last one", f.At)
	}
}

func TestRedrawBeforeMoveIsNoop(t *testing.T) {
	l := New(quadrants(10, 10), Options{})
	if _, ok := l.Redraw(geom.R(0, 0, 10, 10), 1); ok {
		t.Fatalf("redraw without pointer drew a frame")
	}
}

func TestRedrawFollowsTransform(t *testing.T) {
	clk := &fakeClock{t: time.Unix(0, 0)}
	l := New(quadrants(400, 400), Options{Clock: clk.now})
	l.Move(geom.P(100, 100), geom.R(0, 0, 400, 400), 1)
	clk.advance(time.Second)
	// the image panned 200 px left under a still pointer
	f, _ := l.Redraw(geom.R(-200, 0, 400, 400), 1)
	if f.Source.Center() != geom.P(300, 100) {
		t.Fatalf("source centre %v", f.Source.Center())
	}
	if c := f.Image.RGBAAt(50, 50); c.B != 255 {
		t.Fatalf("centre colour %v, want blue", c)
	}
}
