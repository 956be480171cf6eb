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

// AnglePhase is the state of an angle session. Phase 1 waits for A, 2 for B
// and 3 for C; 0 means the measurement is complete or the tool is off.
type AnglePhase int

const (
	AngleIdle AnglePhase = iota
	AngleAwaitA
	AngleAwaitB
	AngleAwaitC
)

// AngleSession measures the angle ABC. A-B is drawn first (the normal), then
// B-C, then an arc at B; the result popup sits at B. Closing the popup ends
// the session.
type AngleSession struct {
	base
	phase      AnglePhase
	a, b, c    geom.Pt
	mA, mB, mC overlay.Handle
	lineAB     overlay.Handle
	lineBC     overlay.Handle
	arc        overlay.Handle
	popup      overlay.Handle
}

// EnableAngle starts an angle session waiting for point A.
func EnableAngle(env Env) *AngleSession {
	s := &AngleSession{base: newBase(env, "angle"), phase: AngleAwaitA}
	s.bind(input.Click, s.onClick)
	s.bind(input.Move, s.onMove)
	return s
}

func (s *AngleSession) Phase() AnglePhase { return s.phase }

func (s *AngleSession) onClick(ev input.Event) {
	if !s.active {
		return
	}
	p := s.toImage(ev)
	switch s.phase {
	case AngleAwaitA:
		s.a = p
		s.mA = s.marker(p, overlay.AngleFirst)
		s.phase = AngleAwaitB
	case AngleAwaitB:
		if p == s.a {
			return
		}
		s.b = p
		s.setMarkerB(p, overlay.AngleFirst)
		s.setLine(&s.lineAB, s.a, p, overlay.AngleFirst)
		s.phase = AngleAwaitC
	case AngleAwaitC:
		deg, ok := geom.AngleAt(s.a, s.b, p)
		if !ok {
			return
		}
		s.c = p
		s.mC = s.marker(p, overlay.AngleSecond)
		s.setLine(&s.lineBC, s.b, p, overlay.AngleSecond)
		s.arc = s.env.Layer.AddArc(geom.AngleArc(s.a, s.b, s.c, ArcRadius), overlay.AngleArc)
		text := calibration.FormatAngle(deg)
		s.popup = s.openPopup(s.b, text, s.ClosePopup)
		s.phase = AngleIdle
		s.emit(Result{Tool: "angle", Value: deg, Unit: "deg", Text: text, Points: []geom.Pt{s.a, s.b, s.c}})
	}
}

func (s *AngleSession) onMove(ev input.Event) {
	if !s.active {
		return
	}
	switch s.phase {
	case AngleAwaitB:
		p := s.toImage(ev)
		s.setLine(&s.lineAB, s.a, p, overlay.AnglePreviewA)
		s.setMarkerB(p, overlay.AnglePreviewA)
	case AngleAwaitC:
		s.setLine(&s.lineBC, s.b, s.toImage(ev), overlay.AnglePreviewB)
	}
}

func (s *AngleSession) setLine(h *overlay.Handle, a, b geom.Pt, st overlay.Style) {
	if h.Alive() {
		h.Update(a, b)
		h.SetStyle(st)
		return
	}
	*h = s.env.Layer.AddLine(overlay.ImageSpace, a, b, st)
}

func (s *AngleSession) setMarkerB(p geom.Pt, st overlay.Style) {
	if s.mB.Alive() {
		s.mB.Move(p)
		s.mB.SetStyle(st)
		return
	}
	s.mB = s.marker(p, st)
}

// ClosePopup ends the session, like Cancel, and reports it through OnEnd.
func (s *AngleSession) ClosePopup() {
	DisableAngle(s)
	s.ended()
}

// Cancel tears everything down and resets the phase to 0.
func (s *AngleSession) Cancel() { DisableAngle(s) }

// DisableAngle ends the session and releases everything it holds.
func DisableAngle(s *AngleSession) {
	if s == nil {
		return
	}
	removeAll(&s.mA, &s.mB, &s.mC, &s.lineAB, &s.lineBC, &s.arc, &s.popup)
	s.unbind()
	s.phase = AngleIdle
	s.active = false
}
