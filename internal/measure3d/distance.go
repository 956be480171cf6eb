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

// DistanceSession measures between two picked points. After the second
// point the session stops listening; the result stays on screen until its
// popup is closed.
type DistanceSession struct {
	base
	points []geom.Vec3
	line   *projection.Node
	popup  overlay.Handle
	mid    geom.Vec3
}

func EnableDistance(env Env) *DistanceSession {
	s := &DistanceSession{base: newBase(env, "distance")}
	s.bind(input.Click, s.onClick)
	return s
}

func (s *DistanceSession) onClick(ev input.Event) {
	p, ok := s.pick(ev)
	if !ok {
		return
	}
	s.points = append(s.points, p)
	s.marker(p, distanceStyle)
	if len(s.points) < 2 {
		return
	}
	a, b := s.points[0], s.points[1]
	s.line = &projection.Node{Name: "line", Segments: []projection.Segment{{A: a, B: b}}, Style: distanceStyle}
	s.group.Add(s.line)
	cm := a.Dist(b) * s.env.CmPerUnit
	text := FormatCm(cm)
	s.mid = a.Lerp(b, 0.5)
	s.popup = s.openPopup(s.mid, text, s.ClosePopup)
	s.unbind()
	s.active = false
	s.emit(measure.Result{Tool: "distance3d", Value: cm, Unit: "cm", Text: text})
}

// Points returns the picked points.
func (s *DistanceSession) Points() []geom.Vec3 { return append([]geom.Vec3(nil), s.points...) }

// Resync keeps the result popup on the segment midpoint.
func (s *DistanceSession) Resync() { s.movePopup(s.popup, s.mid) }

// ClosePopup removes the line, markers and popup.
func (s *DistanceSession) ClosePopup() { s.clear() }

func (s *DistanceSession) clear() {
	s.clearGroup()
	s.popup.Remove()
	s.popup = overlay.Handle{}
	s.line = nil
	s.points = nil
}

// DisableDistance ends the session and removes everything it drew.
func DisableDistance(s *DistanceSession) {
	if s == nil {
		return
	}
	s.clear()
	s.unbind()
	s.detach()
	s.active = false
}
