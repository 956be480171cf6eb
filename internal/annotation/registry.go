/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package annotation

import (
	"strings"

	"rockviewer/internal/geom"
	"rockviewer/internal/overlay"
)

// DefaultMargin keeps popups this many px away from the container edge.
const DefaultMargin = 10

// Group tags every overlay item owned by annotations so visibility can be
// toggled without closing anything.
const Group = "annotations"

// Place clamps a popup of size whose ideal top-left corner is ideal into
// container, margin px from each edge. When the container is too small the
// popup is pinned to the near margin.
func Place(ideal geom.Pt, size geom.Size, container geom.Rect, margin float64) geom.Pt {
	return geom.Pt{
		X: geom.Clamp(ideal.X, container.X+margin, container.X+container.W-size.W-margin),
		Y: geom.Clamp(ideal.Y, container.Y+margin, container.Y+container.H-size.H-margin),
	}
}

// PopupSize estimates the rendered size of the popup of a.
func PopupSize(a Annotation) geom.Size {
	lines := 0
	if a.Content.Title != "" {
		lines++
	}
	if a.Content.Text != "" {
		lines += 1 + len(a.Content.Text)/32 + strings.Count(a.Content.Text, "\n")
	}
	h := 28 + 18*float64(lines)
	if a.Content.Image != "" {
		h += 120
	}
	return geom.Size{W: 220, H: h}
}

// PopupRecord is an open popup and the point it is anchored to: an image
// point in 2D, a world point in 3D.
type PopupRecord[A any] struct {
	ID         string
	Annotation Annotation
	Popup      overlay.Handle
	Anchor     A
	Size       geom.Size
}

// ProjectFunc maps an anchor to screen px. ok is false when the anchor
// cannot be shown (behind the camera); the popup then keeps its place.
type ProjectFunc[A any] func(A) (screen geom.Pt, ok bool)

// Registry holds the open popups keyed by annotation id. There is at most
// one popup per id; popups are repositioned together by RepositionAll, never
// through per-popup listeners.
type Registry[A any] struct {
	layer   *overlay.Layer
	margin  float64
	recs    map[string]*PopupRecord[A]
	order   []string
	onClose []func(PopupRecord[A])
}

// NewRegistry creates a registry drawing on layer. margin <= 0 means DefaultMargin.
func NewRegistry[A any](layer *overlay.Layer, margin float64) *Registry[A] {
	if margin <= 0 {
		margin = DefaultMargin
	}
	return &Registry[A]{layer: layer, margin: margin, recs: make(map[string]*PopupRecord[A])}
}

// OnClose registers fn to run after a popup is closed.
func (r *Registry[A]) OnClose(fn func(PopupRecord[A])) { r.onClose = append(r.onClose, fn) }

// Open shows the popup of a anchored at anchor. If a popup for a.ID is
// already open it is returned unchanged and opened is false.
func (r *Registry[A]) Open(a Annotation, anchor A) (rec PopupRecord[A], opened bool) {
	id := a.ID.String()
	if cur, ok := r.recs[id]; ok {
		return *cur, false
	}
	size := PopupSize(a)
	h := r.layer.AddPopup(overlay.ScreenSpace, geom.Pt{}, size, a.Label(), func() { r.Close(id) })
	h.SetClass("anno-popup")
	h.SetKey(id)
	h.SetGroup(Group)
	cur := &PopupRecord[A]{ID: id, Annotation: a, Popup: h, Anchor: anchor, Size: size}
	r.recs[id] = cur
	r.order = append(r.order, id)
	return *cur, true
}

// Close removes the popup of id. It reports whether one was open.
func (r *Registry[A]) Close(id string) bool {
	cur, ok := r.recs[id]
	if !ok {
		return false
	}
	cur.Popup.Remove()
	delete(r.recs, id)
	for i, o := range r.order {
		if o == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	for _, fn := range r.onClose {
		fn(*cur)
	}
	return true
}

// CloseAll closes every popup.
func (r *Registry[A]) CloseAll() {
	for _, id := range append([]string(nil), r.order...) {
		r.Close(id)
	}
}

func (r *Registry[A]) IsOpen(id string) bool { _, ok := r.recs[id]; return ok }

func (r *Registry[A]) Len() int { return len(r.recs) }

// Get returns the record of id.
func (r *Registry[A]) Get(id string) (PopupRecord[A], bool) {
	cur, ok := r.recs[id]
	if !ok {
		return PopupRecord[A]{}, false
	}
	return *cur, true
}

// Records returns the open popups in the order they were opened.
func (r *Registry[A]) Records() []PopupRecord[A] {
	out := make([]PopupRecord[A], 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.recs[id])
	}
	return out
}

// RepositionAll moves every open popup to its projected anchor, clamped
// into container.
func (r *Registry[A]) RepositionAll(project ProjectFunc[A], container geom.Rect) {
	for _, id := range r.order {
		cur := r.recs[id]
		s, ok := project(cur.Anchor)
		if !ok {
			continue
		}
		cur.Popup.Move(Place(s, cur.Size, container, r.margin))
	}
}
