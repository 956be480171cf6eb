/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package measure

import (
	"rockviewer/internal/calibration"
	"rockviewer/internal/geom"
	"rockviewer/internal/input"
	"rockviewer/internal/overlay"
)

// AreaSession measures a polygon's surface. Clicks add vertices; a click
// within CloseRadiusPx screen pixels of the first vertex, once three vertices
// exist, closes the polygon.
type AreaSession struct {
	base
	points  []geom.Pt
	markers []overlay.Handle
	polygon overlay.Handle
	preview overlay.Handle
	popup   overlay.Handle
	done    bool
}

// EnableArea starts an area session.
func EnableArea(env Env) *AreaSession {
	s := &AreaSession{base: newBase(env, "area")}
	s.polygon = env.Layer.AddPolygon(overlay.ImageSpace, nil, overlay.AreaStyle)
	s.bind(input.Click, s.onClick)
	s.bind(input.Move, s.onMove)
	return s
}

// Points returns a copy of the placed vertices.
func (s *AreaSession) Points() []geom.Pt { return append([]geom.Pt(nil), s.points...) }

// Done reports whether the polygon has been closed.
func (s *AreaSession) Done() bool { return s.done }

func (s *AreaSession) onClick(ev input.Event) {
	if !s.active || s.done {
		return
	}
	p := s.toImage(ev)
	if len(s.points) >= 3 && s.points[0].Dist(p)*s.transform().Scale < CloseRadiusPx {
		s.finalize()
		return
	}
	s.points = append(s.points, p)
	s.markers = append(s.markers, s.marker(p, overlay.AreaMarker))
	s.polygon.Update(s.points...)
}

func (s *AreaSession) onMove(ev input.Event) {
	if !s.active || s.done || len(s.points) == 0 {
		return
	}
	last := s.points[len(s.points)-1]
	p := s.toImage(ev)
	if !s.preview.Alive() {
		s.preview = s.env.Layer.AddLine(overlay.ImageSpace, last, p, overlay.AreaMarker)
		return
	}
	s.preview.Update(last, p)
}

// Finish closes the polygon as if the first vertex had been clicked. It is a
// no-op with fewer than three vertices.
func (s *AreaSession) Finish() bool {
	if !s.active || s.done || len(s.points) < 3 {
		return false
	}
	s.finalize()
	return true
}

func (s *AreaSession) finalize() {
	s.done = true
	s.unbind()
	for i := range s.markers {
		s.markers[i].Remove()
	}
	s.markers = nil
	removeAll(&s.preview)

	cm2 := s.env.Factor.Area(geom.Shoelace(s.points))
	text := calibration.FormatArea(cm2)
	// centroid in image space; the popup is projected with everything else
	c, _ := geom.Centroid(s.points)
	s.popup = s.openPopup(c, text, s.ClosePopup)
	s.emit(Result{Tool: "area", Value: cm2, Unit: "cm2", Text: text, Points: s.Points()})
}

// ClosePopup ends the session and reports it through OnEnd.
func (s *AreaSession) ClosePopup() {
	DisableArea(s)
	s.ended()
}

// Cancel removes every vertex marker, the polygon and the preview edge and
// detaches the session's listeners.
func (s *AreaSession) Cancel() { DisableArea(s) }

// DisableArea ends the session and releases everything it holds.
func DisableArea(s *AreaSession) {
	if s == nil {
		return
	}
	for i := range s.markers {
		s.markers[i].Remove()
	}
	s.markers = nil
	removeAll(&s.polygon, &s.preview, &s.popup)
	s.unbind()
	s.points = nil
	s.active = false
}
