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
	"math"
	"testing"

	"rockviewer/internal/domain"
	"rockviewer/internal/geom"
	"rockviewer/internal/input"
	"rockviewer/internal/mesh"
	"rockviewer/internal/projection"
	"rockviewer/internal/viewer2d"
	"rockviewer/internal/viewer3d"
)

func quiet(string, map[string]any) {}

func TestFrame2DComposesImageAndOverlay(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 200, 100))
	for i := 0; i < len(src.Pix); i += 4 {
		src.Pix[i], src.Pix[i+1], src.Pix[i+2], src.Pix[i+3] = 10, 200, 10, 255
	}
	s, err := viewer2d.New(domain.Sample{Code: "G1", ReferenceWidthCm: 2}, src, viewer2d.Options{Viewport: geom.R(0, 0, 400, 300), Event: quiet})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer s.Close()
	s.SetTool(viewer2d.ToolDistance)
	s.Dispatch(input.Event{Kind: input.Click, Client: geom.P(10, 150)})
	s.Dispatch(input.Event{Kind: input.Click, Client: geom.P(110, 150)})

	img, err := Frame2D(s)
	if err != nil {
		t.Fatalf("frame: %v", err)
	}
	if img.Bounds().Dx() != 400 || img.Bounds().Dy() != 300 {
		t.Fatalf("frame size %v", img.Bounds())
	}
	if got := img.RGBAAt(50, 50); got != (color.RGBA{R: 10, G: 200, B: 10, A: 255}) {
		t.Fatalf("image pixel = %v", got)
	}
	if got := img.RGBAAt(350, 250); got != backdrop {
		t.Fatalf("backdrop pixel = %v", got)
	}
	if got := img.RGBAAt(30, 150); got == backdrop {
		t.Fatalf("measurement line not drawn")
	}
}

func TestFrame3DDrawsWireframe(t *testing.T) {
	a, b, c, d := geom.V3(-1, 0, -1), geom.V3(1, 0, -1), geom.V3(1, 0, 1), geom.V3(-1, 0, 1)
	s := viewer3d.New(domain.Sample{Code: "P1"}, viewer3d.Options{Viewport: geom.R(0, 0, 400, 300), Event: quiet})
	defer s.Close()
	s.SetModel(&mesh.Model{Name: "plate", Triangles: []projection.Triangle{{A: a, B: b, C: c}, {A: a, B: c, C: d}}})
	if err := s.SetView(projection.ViewTop); err != nil {
		t.Fatalf("view: %v", err)
	}
	img, err := Frame3D(s)
	if err != nil {
		t.Fatalf("frame: %v", err)
	}
	p, ok := s.Project(geom.V3(0, 0, -1))
	if !ok {
		t.Fatalf("edge midpoint not visible")
	}
	x, y := int(math.Floor(p.X)), int(math.Floor(p.Y))
	if got := img.RGBAAt(x, y); got == backdrop {
		t.Fatalf("edge pixel (%d,%d) not drawn", x, y)
	}
	if got := img.RGBAAt(2, 2); got != backdrop {
		t.Fatalf("corner pixel = %v", got)
	}
}
