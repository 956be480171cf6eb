/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package overlay

import (
	"sort"

	"rockviewer/internal/geom"
)

// Drawable is an item resolved to screen space, ready for a renderer.
type Drawable struct {
	ID     int
	Kind   Kind
	Points []geom.Pt
	Radius float64
	Arc    geom.Arc
	Rect   geom.Rect // popups
	Text   string
	Style  Style
	Class  string
	Key    string
}

// Snapshot resolves every visible item through p, in creation order.
func (l *Layer) Snapshot(p Projector) []Drawable {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Drawable, 0, len(l.items))
	for _, it := range l.items {
		if !l.visibleLocked(it) {
			continue
		}
		out = append(out, resolve(it, p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func resolve(it *Item, p Projector) Drawable {
	d := Drawable{ID: it.ID, Kind: it.Kind, Radius: it.Radius, Text: it.Text, Style: it.Style, Class: it.Class, Key: it.Key}
	toScreen := func(q geom.Pt) geom.Pt {
		if it.Space == ImageSpace && p != nil {
			return p.ToScreen(q)
		}
		return q
	}
	d.Points = make([]geom.Pt, len(it.Points))
	for i, q := range it.Points {
		d.Points[i] = toScreen(q)
	}
	switch it.Kind {
	case Arc:
		a := it.Arc
		if it.Space == ImageSpace && p != nil {
			z := p.Zoom()
			a.Center, a.Start, a.End = p.ToScreen(a.Center), p.ToScreen(a.Start), p.ToScreen(a.End)
			a.Radius *= z
		}
		d.Arc = a
		d.Radius = a.Radius
	case Popup:
		if len(d.Points) > 0 {
			d.Rect = geom.R(d.Points[0].X, d.Points[0].Y, it.Size.W, it.Size.H)
		}
	}
	return d
}

// HitTest returns the key of the topmost visible keyed marker or polygon
// under the screen point s. Markers hit within their radius, polygons by
// even-odd containment.
func (l *Layer) HitTest(s geom.Pt, p Projector) (string, bool) {
	ds := l.Snapshot(p)
	for i := len(ds) - 1; i >= 0; i-- {
		d := ds[i]
		if d.Key == "" {
			continue
		}
		switch d.Kind {
		case Marker:
			if len(d.Points) > 0 && d.Points[0].Dist(s) <= d.Radius {
				return d.Key, true
			}
		case Polygon:
			if PointInPolygon(s, d.Points) {
				return d.Key, true
			}
		}
	}
	return "", false
}

// PopupAt returns the id of the topmost popup in ds whose box contains s.
func PopupAt(ds []Drawable, s geom.Pt) (int, bool) {
	for i := len(ds) - 1; i >= 0; i-- {
		if ds[i].Kind == Popup && ds[i].Rect.Contains(s) {
			return ds[i].ID, true
		}
	}
	return 0, false
}

// ClosePopupAt closes the topmost popup under the screen point s, as if its
// close button was pressed.
func (l *Layer) ClosePopupAt(s geom.Pt, p Projector) bool {
	id, ok := PopupAt(l.Snapshot(p), s)
	if !ok {
		return false
	}
	return l.ClosePopup(id)
}

// PointInPolygon is the even-odd ray casting test.
func PointInPolygon(p geom.Pt, poly []geom.Pt) bool {
	if len(poly) < 3 {
		return false
	}
	in := false
	for i, j := 0, len(poly)-1; i < len(poly); j, i = i, i+1 {
		a, b := poly[i], poly[j]
		if (a.Y > p.Y) != (b.Y > p.Y) && p.X < (b.X-a.X)*(p.Y-a.Y)/(b.Y-a.Y)+a.X {
			in = !in
		}
	}
	return in
}
