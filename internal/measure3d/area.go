/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package measure3d

import (
	"rockviewer/internal/geom"
	"rockviewer/internal/input"
	"rockviewer/internal/measure"
	"rockviewer/internal/overlay"
	"rockviewer/internal/projection"
)

// AreaSession measures the surface of a picked polygon. From the third
// point on, the fan polygon and a live popup at the first point are
// refreshed on every click. Closing the popup starts a new polygon; the
// session stays active until DisableArea.
type AreaSession struct {
	base
	points []geom.Vec3
	poly   *projection.Node
	popup  overlay.Handle
}

func EnableArea(env Env) *AreaSession {
	s := &AreaSession{base: newBase(env, "area")}
	s.bind(input.Click, s.onClick)
	return s
}

func (s *AreaSession) onClick(ev input.Event) {
	p, ok := s.pick(ev)
	if !ok {
		return
	}
	s.points = append(s.points, p)
	s.marker(p, areaMarker)
	s.update()
}

func (s *AreaSession) update() {
	if s.poly != nil {
		s.group.Remove(s.poly)
		s.poly = nil
	}
	if len(s.points) < 3 {
		return
	}
	lift := geom.V3(0, AreaLift, 0)
	p0 := s.points[0].Add(lift)
	tris := make([]projection.Triangle, 0, len(s.points)-2)
	for i := 1; i < len(s.points)-1; i++ {
		tris = append(tris, projection.Triangle{A: p0, B: s.points[i].Add(lift), C: s.points[i+1].Add(lift)})
	}
	s.poly = &projection.Node{Name: "area", Triangles: tris, Style: areaStyle}
	s.group.Add(s.poly)

	units := geom.PolygonArea3D(s.points)
	cm2 := units * s.env.CmPerUnit * s.env.CmPerUnit
	text := FormatSurface(cm2)
	if s.popup.Alive() {
		s.popup.SetText(text)
		s.movePopup(s.popup, s.points[0])
	} else {
		s.popup = s.openPopup(s.points[0], text, s.ClosePopup)
	}
	s.emit(measure.Result{Tool: "area3d", Value: cm2, Unit: "cm2", Text: text})
}

// Points returns the picked vertices.
func (s *AreaSession) Points() []geom.Vec3 { return append([]geom.Vec3(nil), s.points...) }

// Resync keeps the popup on the first vertex.
func (s *AreaSession) Resync() {
	if len(s.points) > 0 {
		s.movePopup(s.popup, s.points[0])
	}
}

// ClosePopup clears the polygon; new clicks start a new one.
func (s *AreaSession) ClosePopup() { s.clear() }

func (s *AreaSession) clear() {
	s.clearGroup()
	s.popup.Remove()
	s.popup = overlay.Handle{}
	s.poly = nil
	s.points = nil
}

// DisableArea ends the session and removes everything it drew.
func DisableArea(s *AreaSession) {
	if s == nil {
		return
	}
	s.clear()
	s.unbind()
	s.detach()
	s.active = false
}
