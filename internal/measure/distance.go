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

// DistancePhase is the state of a distance session.
type DistancePhase int

const (
	DistanceIdle DistancePhase = iota
	DistanceFirstPointSet
	DistanceCompleted
)

// DistanceSession measures the length of a segment. Closing the result popup
// clears the segment and re-arms the tool.
type DistanceSession struct {
	base
	phase   DistancePhase
	p0, p1  geom.Pt
	m0, m1  overlay.Handle
	line    overlay.Handle
	preview overlay.Handle
	popup   overlay.Handle
}

// EnableDistance starts a distance session bound to env.Element.
func EnableDistance(env Env) *DistanceSession {
	s := &DistanceSession{base: newBase(env, "distance")}
	s.bind(input.Click, s.onClick)
	s.bind(input.Move, s.onMove)
	return s
}

func (s *DistanceSession) Phase() DistancePhase { return s.phase }

func (s *DistanceSession) onClick(ev input.Event) {
	if !s.active {
		return
	}
	p := s.toImage(ev)
	switch s.phase {
	case DistanceIdle:
		s.p0 = p
		s.m0 = s.marker(p, overlay.DistanceStyle)
		s.phase = DistanceFirstPointSet
	case DistanceFirstPointSet:
		if p == s.p0 {
			return
		}
		s.p1 = p
		removeAll(&s.preview)
		s.m1 = s.marker(p, overlay.DistanceStyle)
		s.line = s.env.Layer.AddLine(overlay.ImageSpace, s.p0, s.p1, overlay.DistanceStyle)
		cm := s.env.Factor.Length(s.p0.Dist(s.p1))
		text := calibration.FormatLength(cm)
		s.popup = s.openPopup(s.p0.Mid(s.p1), text, s.ClosePopup)
		s.phase = DistanceCompleted
		s.emit(Result{Tool: "distance", Value: cm, Unit: "cm", Text: text, Points: []geom.Pt{s.p0, s.p1}})
	}
}

func (s *DistanceSession) onMove(ev input.Event) {
	if !s.active || s.phase != DistanceFirstPointSet {
		return
	}
	p := s.toImage(ev)
	if !s.preview.Alive() {
		s.preview = s.env.Layer.AddLine(overlay.ImageSpace, s.p0, p, overlay.DistanceStyle)
		return
	}
	s.preview.Update(s.p0, p)
}

// ClosePopup clears the finished measurement and re-arms phase 0.
func (s *DistanceSession) ClosePopup() { s.clear() }

// Cancel drops an in-progress measurement; the session stays active.
func (s *DistanceSession) Cancel() { s.clear() }

func (s *DistanceSession) clear() {
	removeAll(&s.m0, &s.m1, &s.line, &s.preview, &s.popup)
	s.phase = DistanceIdle
}

// DisableDistance ends the session and releases everything it holds.
func DisableDistance(s *DistanceSession) {
	if s == nil {
		return
	}
	s.clear()
	s.unbind()
	s.active = false
}
