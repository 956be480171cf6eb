/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package export

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"

	"rockviewer/internal/geom"
	"rockviewer/internal/overlay"
)

// Render rasterizes ds onto a new canvas. The canvas is transparent unless a
// background image is set.
func Render(ds []overlay.Drawable, opt Options) (*image.RGBA, error) {
	if err := opt.validate(); err != nil {
		return nil, err
	}
	w, h := int(math.Round(opt.Size.W)), int(math.Round(opt.Size.H))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	if opt.Background != nil {
		r := opt.imageRect()
		dst := image.Rect(int(math.Round(r.X)), int(math.Round(r.Y)), int(math.Round(r.X+r.W)), int(math.Round(r.Y+r.H)))
		draw.ApproxBiLinear.Scale(img, dst, opt.Background, opt.Background.Bounds(), draw.Over, nil)
	}
	c := canvas{img: img}
	for _, d := range ds {
		c.draw(d)
	}
	return img, nil
}

// WritePNG rasterizes ds and encodes the result as PNG.
func WritePNG(w io.Writer, ds []overlay.Drawable, opt Options) error {
	img, err := Render(ds, opt)
	if err != nil {
		return err
	}
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

type canvas struct{ img *image.RGBA }

func (c canvas) draw(d overlay.Drawable) {
	st := d.Style
	switch d.Kind {
	case overlay.Marker:
		if len(d.Points) == 0 {
			return
		}
		ring := circlePoints(d.Points[0], d.Radius)
		c.fill(ring, st.Fill)
		c.stroke(append(ring, ring[0]), st.Stroke, st.StrokeWidth()/2)
	case overlay.Line, overlay.Polyline:
		c.stroke(d.Points, st.Stroke, st.StrokeWidth())
	case overlay.Polygon:
		if len(d.Points) < 3 {
			return
		}
		c.fill(d.Points, st.Fill)
		c.stroke(append(append([]geom.Pt(nil), d.Points...), d.Points[0]), st.Stroke, st.StrokeWidth())
	case overlay.Arc:
		c.stroke(arcPoints(d.Arc), st.Stroke, st.StrokeWidth())
	case overlay.Popup:
		r := d.Rect
		c.fill([]geom.Pt{r.Min(), geom.P(r.X+r.W, r.Y), r.Max(), geom.P(r.X, r.Y+r.H)}, st.Fill)
		y := r.Y + popupPad + 10
		for _, line := range popupLines(d.Text) {
			c.text(geom.P(r.X+popupPad, y), line, st.Stroke)
			y += lineHeight
		}
	}
}

func nrgba(c overlay.Color) image.Image {
	return image.NewUniform(color.NRGBA{R: c.R, G: c.G, B: c.B, A: c.A})
}

// fill paints the closed polygon pts with non-zero winding.
func (c canvas) fill(pts []geom.Pt, col overlay.Color) {
	if len(pts) < 3 || col.A == 0 {
		return
	}
	b := c.img.Bounds()
	z := vector.NewRasterizer(b.Dx(), b.Dy())
	z.DrawOp = draw.Over
	z.MoveTo(float32(pts[0].X), float32(pts[0].Y))
	for _, p := range pts[1:] {
		z.LineTo(float32(p.X), float32(p.Y))
	}
	z.ClosePath()
	z.Draw(c.img, b, nrgba(col), image.Point{})
}

// stroke paints each segment of the open path pts as a quad of the given
// width.
func (c canvas) stroke(pts []geom.Pt, col overlay.Color, width float64) {
	if len(pts) < 2 {
		return
	}
	segs := make([][2]geom.Pt, 0, len(pts)-1)
	for i := 1; i < len(pts); i++ {
		segs = append(segs, [2]geom.Pt{pts[i-1], pts[i]})
	}
	DrawSegments(c.img, segs, col, width)
}

// DrawSegments strokes every segment onto img in one rasterizer pass.
func DrawSegments(img *image.RGBA, segs [][2]geom.Pt, col overlay.Color, width float64) {
	if len(segs) == 0 || col.A == 0 || width <= 0 {
		return
	}
	b := img.Bounds()
	z := vector.NewRasterizer(b.Dx(), b.Dy())
	z.DrawOp = draw.Over
	for _, sg := range segs {
		a, e := sg[0], sg[1]
		d := e.Sub(a)
		l := d.Len()
		if l == 0 {
			continue
		}
		n := geom.P(-d.Y/l, d.X/l).Mul(width / 2)
		q := []geom.Pt{a.Add(n), e.Add(n), e.Sub(n), a.Sub(n)}
		z.MoveTo(float32(q[0].X), float32(q[0].Y))
		for _, p := range q[1:] {
			z.LineTo(float32(p.X), float32(p.Y))
		}
		z.ClosePath()
	}
	z.Draw(img, b, nrgba(col), image.Point{})
}

// text draws s with its baseline at p using the fixed 7x13 face. Glyphs
// outside the face's range render as its replacement box.
func (c canvas) text(p geom.Pt, s string, col overlay.Color) {
	d := &font.Drawer{
		Dst:  c.img,
		Src:  nrgba(col),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(int(math.Round(p.X)), int(math.Round(p.Y))),
	}
	d.DrawString(s)
}
