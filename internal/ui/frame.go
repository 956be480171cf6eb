/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package ui

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"

	"rockviewer/internal/export"
	"rockviewer/internal/geom"
	"rockviewer/internal/overlay"
	"rockviewer/internal/projection"
	"rockviewer/internal/viewer2d"
	"rockviewer/internal/viewer3d"
)

// maxWireTriangles bounds the wireframe drawn for large meshes; beyond it
// triangles are sampled with a stride.
const maxWireTriangles = 40000

var (
	backdrop  = color.RGBA{R: 30, G: 30, B: 34, A: 255}
	wireColor = overlay.Color{R: 170, G: 170, B: 170, A: 160}
	segStyle  = overlay.Style{Stroke: overlay.Color{R: 255, G: 210, B: 0, A: 255}, Width: 1.5}
)

func blank(size geom.Size) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, int(size.W), int(size.H)))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: backdrop}, image.Point{}, draw.Src)
	return img
}

// Frame2D renders the 2D view as the viewport shows it: the transformed
// sample image, the overlay and, when active, the magnifier loupe.
func Frame2D(s *viewer2d.Session) (*image.RGBA, error) {
	b := s.Element.Bounds()
	over, err := export.Render(s.Snapshot(), export.Options{Size: b.Size()})
	if err != nil {
		return nil, err
	}
	img := blank(b.Size())
	if s.Image != nil {
		r := s.ImageRect()
		dst := image.Rect(int(r.X-b.X), int(r.Y-b.Y), int(r.X-b.X+r.W), int(r.Y-b.Y+r.H))
		draw.ApproxBiLinear.Scale(img, dst, s.Image, s.Image.Bounds(), draw.Over, nil)
	}
	draw.Draw(img, img.Bounds(), over, image.Point{}, draw.Over)
	if f, ok := s.MagnifierFrame(); ok && f.Image != nil {
		fb := f.Image.Bounds()
		at := image.Pt(int(f.At.X-b.X)-fb.Dx()/2, int(f.At.Y-b.Y)-fb.Dy()/2)
		draw.Draw(img, fb.Sub(fb.Min).Add(at), f.Image, fb.Min, draw.Over)
	}
	return img, nil
}

// Frame3D renders the 3D view: the model as a wireframe, filled measurement
// polygons, annotation markers, projected segments and the popups.
func Frame3D(s *viewer3d.Session) (*image.RGBA, error) {
	b := s.Element.Bounds()
	var (
		wire [][2]geom.Pt
		ds   []overlay.Drawable
	)
	var visit func(n *projection.Node)
	visit = func(n *projection.Node) {
		if n.Hidden {
			return
		}
		if n.Sphere != nil {
			if p, ok := s.Project(n.Sphere.Center); ok {
				ds = append(ds, overlay.Drawable{Kind: overlay.Marker, Points: []geom.Pt{p}, Radius: 5, Style: n.Style})
			}
		}
		filled := n.Style.Fill.A > 0
		stride := 1
		if !filled && len(n.Triangles) > maxWireTriangles {
			stride = len(n.Triangles)/maxWireTriangles + 1
		}
		for i := 0; i < len(n.Triangles); i += stride {
			pts, ok := projectTriangle(s, n.Triangles[i])
			if !ok {
				continue
			}
			if filled {
				ds = append(ds, overlay.Drawable{Kind: overlay.Polygon, Points: pts[:], Style: n.Style})
				continue
			}
			wire = append(wire, [2]geom.Pt{pts[0], pts[1]}, [2]geom.Pt{pts[1], pts[2]}, [2]geom.Pt{pts[2], pts[0]})
		}
		for _, c := range n.Children {
			visit(c)
		}
	}
	visit(s.Scene)
	for _, sg := range s.Segments() {
		ds = append(ds, overlay.Drawable{Kind: overlay.Line, Points: []geom.Pt{sg[0], sg[1]}, Style: segStyle})
	}
	ds = append(ds, s.Snapshot()...)

	over, err := export.Render(ds, export.Options{Size: b.Size()})
	if err != nil {
		return nil, err
	}
	img := blank(b.Size())
	export.DrawSegments(img, wire, wireColor, 1)
	draw.Draw(img, img.Bounds(), over, image.Point{}, draw.Over)
	return img, nil
}

func projectTriangle(s *viewer3d.Session, t projection.Triangle) ([3]geom.Pt, bool) {
	var out [3]geom.Pt
	for i, v := range [3]geom.Vec3{t.A, t.B, t.C} {
		p, ok := s.Project(v)
		if !ok {
			return out, false
		}
		out[i] = p
	}
	return out, true
}
