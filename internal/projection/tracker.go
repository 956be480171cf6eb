/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package projection

import (
	"rockviewer/internal/annotation"
	"rockviewer/internal/geom"
	"rockviewer/internal/overlay"
)

// LeaderLine joins a world anchor to the point under its popup, half way
// into the depth range.
type LeaderLine struct {
	ID     string
	From   geom.Vec3
	To     geom.Vec3
	Hidden bool
}

// Tracker keeps 3D annotation popups attached to their world anchors.
// Nothing moves until Resync, which the viewer calls once per frame.
type Tracker struct {
	layer   *overlay.Layer
	reg     *annotation.Registry[geom.Vec3]
	lines   map[string]*LeaderLine
	visible bool
}

func NewTracker(layer *overlay.Layer) *Tracker {
	t := &Tracker{
		layer:   layer,
		reg:     annotation.NewRegistry[geom.Vec3](layer, 0),
		lines:   make(map[string]*LeaderLine),
		visible: true,
	}
	t.reg.OnClose(func(r annotation.PopupRecord[geom.Vec3]) { delete(t.lines, r.ID) })
	return t
}

// Registry exposes the underlying popup registry.
func (t *Tracker) Registry() *annotation.Registry[geom.Vec3] { return t.reg }

// Open shows the popup of a anchored at the world point hit. It reports
// false when the popup was already open.
func (t *Tracker) Open(a annotation.Annotation, hit geom.Vec3) bool {
	rec, opened := t.reg.Open(a, hit)
	if !opened {
		return false
	}
	t.lines[rec.ID] = &LeaderLine{ID: rec.ID, From: hit, To: hit, Hidden: !t.visible}
	return true
}

// Close removes the popup of id and its leader line.
func (t *Tracker) Close(id string) bool { return t.reg.Close(id) }

// CloseAll closes every tracked popup.
func (t *Tracker) CloseAll() { t.reg.CloseAll() }

// Resync projects every anchor through cam, moves its popup to the
// resulting pixel in a viewport of size vp and rebuilds its leader line.
// Anchors behind the camera keep their last placement.
func (t *Tracker) Resync(cam Camera, vp geom.Size) {
	for _, rec := range t.reg.Records() {
		ndc, ok := cam.Project(rec.Anchor)
		if !ok {
			continue
		}
		rec.Popup.Move(ToPixels(geom.P(ndc.X, ndc.Y), vp.W, vp.H))
		if ln, ok := t.lines[rec.ID]; ok {
			if to, err := cam.Unproject(geom.V3(ndc.X, ndc.Y, 0.5)); err == nil {
				ln.From, ln.To = rec.Anchor, to
			}
		}
	}
}

// Lines returns the visible leader lines in popup order.
func (t *Tracker) Lines() []LeaderLine {
	var out []LeaderLine
	for _, rec := range t.reg.Records() {
		if ln, ok := t.lines[rec.ID]; ok && !ln.Hidden {
			out = append(out, *ln)
		}
	}
	return out
}

// SetVisible hides or shows popups and leader lines without closing them.
func (t *Tracker) SetVisible(v bool) {
	t.visible = v
	t.layer.SetGroupHidden(annotation.Group, !v)
	for _, ln := range t.lines {
		ln.Hidden = !v
	}
}

func (t *Tracker) Visible() bool { return t.visible }

func (t *Tracker) Len() int { return t.reg.Len() }
