/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package overlay is a small declarative builder for the primitives drawn on
// top of the viewers: markers, lines, polygons, arcs and popups. Items keep
// their geometry in image space (or screen space for popups placed by their
// owner) and are resolved to screen space on Snapshot, so the measurement
// and annotation code never touches a concrete rendering surface.
package overlay

import (
	"sort"
	"sync"

	"rockviewer/internal/geom"
)

// Kind is the primitive type of an item.
type Kind uint8

const (
	Marker Kind = iota
	Line
	Polyline
	Polygon
	Arc
	Popup
)

func (k Kind) String() string {
	switch k {
	case Marker:
		return "marker"
	case Line:
		return "line"
	case Polyline:
		return "polyline"
	case Polygon:
		return "polygon"
	case Arc:
		return "arc"
	case Popup:
		return "popup"
	}
	return "unknown"
}

// Space says how an item's points are interpreted.
type Space uint8

const (
	ImageSpace Space = iota
	ScreenSpace
)

// Projector maps image space to screen space. transform.Transform2D implements it.
type Projector interface {
	ToScreen(geom.Pt) geom.Pt
	Zoom() float64
}

// Item is one overlay primitive.
type Item struct {
	ID     int
	Kind   Kind
	Space  Space
	Points []geom.Pt
	// Radius is in screen px for markers and image px for arcs.
	Radius float64
	Arc    geom.Arc
	Text   string
	// Size is the popup extent in screen px.
	Size   geom.Size
	Style  Style
	Class  string
	Key    string // e.g. the annotation id for click routing
	Group  string // visibility group
	Hidden bool

	onClose func()
}

// Layer owns a set of items. It is safe for concurrent use; callbacks run
// without the lock held.
type Layer struct {
	mu     sync.Mutex
	next   int
	items  map[int]*Item
	hidden map[string]bool
}

func NewLayer() *Layer {
	return &Layer{items: make(map[int]*Item), hidden: make(map[string]bool)}
}

func (l *Layer) add(it Item) Handle {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.next++
	it.ID = l.next
	it.Points = append([]geom.Pt(nil), it.Points...)
	l.items[it.ID] = &it
	return Handle{l: l, id: it.ID}
}

// AddMarker adds a dot of screen radius r at p.
func (l *Layer) AddMarker(space Space, p geom.Pt, r float64, st Style) Handle {
	return l.add(Item{Kind: Marker, Space: space, Points: []geom.Pt{p}, Radius: r, Style: st})
}

// AddLine adds a segment a-b.
func (l *Layer) AddLine(space Space, a, b geom.Pt, st Style) Handle {
	return l.add(Item{Kind: Line, Space: space, Points: []geom.Pt{a, b}, Style: st})
}

// AddPolyline adds an open path.
func (l *Layer) AddPolyline(space Space, pts []geom.Pt, st Style) Handle {
	return l.add(Item{Kind: Polyline, Space: space, Points: pts, Style: st})
}

// AddPolygon adds a closed, filled path.
func (l *Layer) AddPolygon(space Space, pts []geom.Pt, st Style) Handle {
	return l.add(Item{Kind: Polygon, Space: space, Points: pts, Style: st})
}

// AddArc adds an image-space arc.
func (l *Layer) AddArc(a geom.Arc, st Style) Handle {
	return l.add(Item{Kind: Arc, Space: ImageSpace, Arc: a, Radius: a.Radius, Style: st})
}

// AddPopup adds a popup box whose top-left corner is at p. onClose, when set,
// runs on ClosePopup (the popup's close button).
func (l *Layer) AddPopup(space Space, p geom.Pt, size geom.Size, text string, onClose func()) Handle {
	return l.add(Item{Kind: Popup, Space: space, Points: []geom.Pt{p}, Size: size, Text: text, Style: PopupStyle, onClose: onClose})
}

// ClosePopup runs the close callback of popup id. It reports whether a popup
// with a callback was found.
func (l *Layer) ClosePopup(id int) bool {
	l.mu.Lock()
	it, ok := l.items[id]
	var fn func()
	if ok && it.Kind == Popup {
		fn = it.onClose
	}
	l.mu.Unlock()
	if fn == nil {
		return false
	}
	fn()
	return true
}

// Len returns the number of items, optionally filtered by kind.
func (l *Layer) Len(kinds ...Kind) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(kinds) == 0 {
		return len(l.items)
	}
	n := 0
	for _, it := range l.items {
		for _, k := range kinds {
			if it.Kind == k {
				n++
				break
			}
		}
	}
	return n
}

// Items returns copies of all items in creation order.
func (l *Layer) Items() []Item {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Item, 0, len(l.items))
	for _, it := range l.items {
		c := *it
		c.Points = append([]geom.Pt(nil), it.Points...)
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Clear removes every item.
func (l *Layer) Clear() {
	l.mu.Lock()
	l.items = make(map[int]*Item)
	l.mu.Unlock()
}

// SetGroupHidden hides or shows every item tagged with group without removing it.
func (l *Layer) SetGroupHidden(group string, hidden bool) {
	l.mu.Lock()
	l.hidden[group] = hidden
	l.mu.Unlock()
}

// GroupHidden reports the visibility flag of group.
func (l *Layer) GroupHidden(group string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.hidden[group]
}

func (l *Layer) visibleLocked(it *Item) bool {
	return !it.Hidden && !(it.Group != "" && l.hidden[it.Group])
}

// Handle refers to one item. The zero Handle is inert: every method is a no-op.
type Handle struct {
	l  *Layer
	id int
}

func (h Handle) ID() int { return h.id }

// Alive reports whether the item still exists.
func (h Handle) Alive() bool {
	if h.l == nil {
		return false
	}
	h.l.mu.Lock()
	defer h.l.mu.Unlock()
	_, ok := h.l.items[h.id]
	return ok
}

func (h Handle) with(fn func(*Item)) {
	if h.l == nil {
		return
	}
	h.l.mu.Lock()
	defer h.l.mu.Unlock()
	if it, ok := h.l.items[h.id]; ok {
		fn(it)
	}
}

// Update replaces the item's points.
func (h Handle) Update(pts ...geom.Pt) {
	h.with(func(it *Item) { it.Points = append(it.Points[:0:0], pts...) })
}

// Move sets the first point (marker centre, popup corner).
func (h Handle) Move(p geom.Pt) {
	h.with(func(it *Item) {
		if len(it.Points) == 0 {
			it.Points = []geom.Pt{p}
			return
		}
		it.Points[0] = p
	})
}

// MoveTo sets the first point and switches the item's space.
func (h Handle) MoveTo(space Space, p geom.Pt) {
	h.with(func(it *Item) {
		it.Space = space
		it.Points = []geom.Pt{p}
	})
}

func (h Handle) SetText(s string)     { h.with(func(it *Item) { it.Text = s }) }
func (h Handle) SetSize(s geom.Size)  { h.with(func(it *Item) { it.Size = s }) }
func (h Handle) SetHidden(v bool)     { h.with(func(it *Item) { it.Hidden = v }) }
func (h Handle) SetStyle(st Style)    { h.with(func(it *Item) { it.Style = st }) }
func (h Handle) SetClass(c string)    { h.with(func(it *Item) { it.Class = c }) }
func (h Handle) SetKey(k string)      { h.with(func(it *Item) { it.Key = k }) }
func (h Handle) SetGroup(g string)    { h.with(func(it *Item) { it.Group = g }) }
func (h Handle) SetArc(a geom.Arc)    { h.with(func(it *Item) { it.Arc = a; it.Radius = a.Radius }) }
func (h Handle) SetOnClose(fn func()) { h.with(func(it *Item) { it.onClose = fn }) }

// Item returns a copy of the item.
func (h Handle) Item() (Item, bool) {
	var out Item
	found := false
	h.with(func(it *Item) {
		out = *it
		out.Points = append([]geom.Pt(nil), it.Points...)
		found = true
	})
	return out, found
}

// Remove deletes the item. Removing twice is a no-op.
func (h Handle) Remove() {
	if h.l == nil {
		return
	}
	h.l.mu.Lock()
	delete(h.l.items, h.id)
	h.l.mu.Unlock()
}
