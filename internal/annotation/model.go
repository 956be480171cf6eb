/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package annotation loads the expert annotations attached to a sample and
// keeps their popups in place while the view changes. Annotations are read
// once per sample and never modified afterwards; the 2D scene draws them on
// an overlay layer, and the popup registry guarantees at most one open popup
// per annotation.
package annotation

import (
	"encoding/json"
	"errors"
	"fmt"

	"rockviewer/internal/geom"
)

// ErrNoAnnotations reports that a sample has no usable annotation file.
var ErrNoAnnotations = errors.New("no annotations")

// Viewer names the modality an annotation belongs to.
const (
	Viewer2D = "2D"
	Viewer3D = "3D"
)

// Annotation types.
const (
	TypePoint = "point"
	TypeZone  = "zone"
)

// Content is the popup body.
type Content struct {
	Title string `json:"title,omitempty"`
	Text  string `json:"text,omitempty"`
	Image string `json:"image,omitempty"`
}

// Annotation is one expert note on a sample. Position is used by points,
// Points by zones; both are image px in 2D and world units in 3D.
type Annotation struct {
	ID       ID          `json:"id"`
	Viewer   string      `json:"viewer"`
	Type     string      `json:"type"`
	Position []float64   `json:"position,omitempty"`
	Points   [][]float64 `json:"points,omitempty"`
	Content  Content     `json:"content"`
}

// ID accepts both JSON strings and numbers; annotation files use either.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("annotation id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

// Pos2D returns the point position in image px.
func (a Annotation) Pos2D() (geom.Pt, bool) {
	if len(a.Position) < 2 {
		return geom.Pt{}, false
	}
	return geom.P(a.Position[0], a.Position[1]), true
}

// Pos3D returns the point position in world units.
func (a Annotation) Pos3D() (geom.Vec3, bool) {
	if len(a.Position) < 3 {
		return geom.Vec3{}, false
	}
	return geom.V3(a.Position[0], a.Position[1], a.Position[2]), true
}

// Polygon2D returns the zone vertices in image px, skipping short tuples.
func (a Annotation) Polygon2D() []geom.Pt {
	out := make([]geom.Pt, 0, len(a.Points))
	for _, p := range a.Points {
		if len(p) >= 2 {
			out = append(out, geom.P(p[0], p[1]))
		}
	}
	return out
}

// Polygon3D returns the zone vertices in world units.
func (a Annotation) Polygon3D() []geom.Vec3 {
	out := make([]geom.Vec3, 0, len(a.Points))
	for _, p := range a.Points {
		if len(p) >= 3 {
			out = append(out, geom.V3(p[0], p[1], p[2]))
		}
	}
	return out
}

// Label is the popup text: title, then text, one per line.
func (a Annotation) Label() string {
	switch {
	case a.Content.Title != "" && a.Content.Text != "":
		return a.Content.Title + "\n" + a.Content.Text
	case a.Content.Title != "":
		return a.Content.Title
	case a.Content.Text != "":
		return a.Content.Text
	}
	return "#" + string(a.ID)
}

// Filter returns the annotations of viewer in file order.
func Filter(all []Annotation, viewer string) []Annotation {
	var out []Annotation
	for _, a := range all {
		if a.Viewer == viewer {
			out = append(out, a)
		}
	}
	return out
}
