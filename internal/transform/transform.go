/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package transform holds the 2D view state and the mapping between client
// (device) coordinates, viewport-relative screen coordinates and image space.
package transform

import (
	"fmt"

	"rockviewer/internal/geom"
)

// Limits bounds the scale of a Transform2D.
type Limits struct {
	Min, Max float64
}

// DefaultLimits is the zoom range of the thin-section viewer.
var DefaultLimits = Limits{Min: 0.2, Max: 5}

// Clamp restricts s to the limits.
func (l Limits) Clamp(s float64) float64 { return geom.Clamp(s, l.Min, l.Max) }

// Transform2D maps image space to viewport space: screen = image*Scale + Translate.
// Scale is always > 0.
type Transform2D struct {
	Scale     float64
	Translate geom.Pt
}

// Identity is scale 1 with no translation.
func Identity() Transform2D { return Transform2D{Scale: 1} }

// ToScreen maps an image point to viewport-relative screen space.
func (t Transform2D) ToScreen(p geom.Pt) geom.Pt {
	return geom.Pt{X: p.X*t.Scale + t.Translate.X, Y: p.Y*t.Scale + t.Translate.Y}
}

// ToImage maps a viewport-relative screen point back to image space.
func (t Transform2D) ToImage(s geom.Pt) geom.Pt {
	return geom.Pt{X: (s.X - t.Translate.X) / t.Scale, Y: (s.Y - t.Translate.Y) / t.Scale}
}

// Zoom returns the scale; together with ToScreen it lets overlay renderers
// size image-space radii.
func (t Transform2D) Zoom() float64 { return t.Scale }

// Affine returns the transform as a matrix.
func (t Transform2D) Affine() geom.Affine2D {
	return geom.Translate(t.Translate.X, t.Translate.Y).Mul(geom.Scale(t.Scale, t.Scale))
}

// CSS renders the transform the way a browser style attribute would.
func (t Transform2D) CSS() string {
	return fmt.Sprintf("translate(%gpx, %gpx) scale(%g)", t.Translate.X, t.Translate.Y, t.Scale)
}

// Valid reports whether t can be inverted.
func (t Transform2D) Valid() bool { return t.Scale > 0 }

// ToImageSpace converts a client (device) position to image space. viewport is
// the bounding rectangle of the element that carries the transform, in client
// coordinates; the client point is first made relative to its top-left corner.
func ToImageSpace(client geom.Pt, viewport geom.Rect, t Transform2D) geom.Pt {
	return t.ToImage(client.Sub(viewport.Min()))
}

// ToScreenSpace converts an image point to viewport-relative screen space.
func ToScreenSpace(p geom.Pt, t Transform2D) geom.Pt { return t.ToScreen(p) }

// ToClient converts an image point to client coordinates for the given viewport.
func ToClient(p geom.Pt, viewport geom.Rect, t Transform2D) geom.Pt {
	return t.ToScreen(p).Add(viewport.Min())
}
