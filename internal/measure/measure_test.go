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
	"math"
	"strings"
	"testing"

	"rockviewer/internal/calibration"
	"rockviewer/internal/geom"
	"rockviewer/internal/input"
	"rockviewer/internal/overlay"
	"rockviewer/internal/transform"
)

type fixedView struct{ t transform.Transform2D }

func (v *fixedView) State() transform.Transform2D { return v.t }

type rig struct {
	env     Env
	el      *input.Element
	view    *fixedView
	results []Result
}

// newRig builds an environment whose element sits at client (100,50).
func newRig(t *testing.T, tr transform.Transform2D) *rig {
	t.Helper()
	r := &rig{view: &fixedView{t: tr}}
	r.el = input.NewElement(geom.R(100, 50, 4000, 4000), &input.Target{})
	r.env = Env{
		Layer:    overlay.NewLayer(),
		Element:  r.el,
		View:     r.view,
		Factor:   calibration.Factor(0.001),
		OnResult: func(res Result) { r.results = append(r.results, res) },
	}
	return r
}

// click at an image point under the current transform.
func (r *rig) click(p geom.Pt) {
	r.el.Route(input.Event{Kind: input.Click, Client: transform.ToClient(p, r.el.Bounds(), r.view.t)})
}

func (r *rig) move(p geom.Pt) {
	r.el.Route(input.Event{Kind: input.Move, Client: transform.ToClient(p, r.el.Bounds(), r.view.t)})
}

func popupText(t *testing.T, l *overlay.Layer) string {
	t.Helper()
	for _, it := range l.Items() {
		if it.Kind == overlay.Popup {
			return it.Text
		}
	}
	t.Fatalf("no popup in layer")
	return ""
}

func TestDistanceFlow(t *testing.T) {
	r := newRig(t, transform.Transform2D{Scale: 2, Translate: geom.Pt{X: 30, Y: -10}})
	s := EnableDistance(r.env)
	r.click(geom.Pt{X: 0, Y: 0})
	if s.Phase() != DistanceFirstPointSet {
		t.Fatalf("phase = %v", s.Phase())
	}
	r.move(geom.Pt{X: 50, Y: 0})
	r.move(geom.Pt{X: 60, Y: 0})
	if n := r.env.Layer.Len(overlay.Line); n != 1 {
		t.Fatalf("preview lines = %d", n)
	}
	r.click(geom.Pt{X: 300, Y: 400})
	if s.Phase() != DistanceCompleted {
		t.Fatalf("phase = %v", s.Phase())
	}
	// 500 px * 0.001 cm = 0.5 cm = 5000 µm -> mm
	if got := popupText(t, r.env.Layer); got != "5.00 mm" {
		t.Fatalf("popup = %q", got)
	}
	if len(r.results) != 1 || math.Abs(r.results[0].Value-0.5) > 1e-9 || r.results[0].ID != s.ID() {
		t.Fatalf("results %+v", r.results)
	}
	// popup anchored at the midpoint in image space
	for _, it := range r.env.Layer.Items() {
		if it.Kind == overlay.Popup && !it.Points[0].Near(geom.Pt{X: 150, Y: 200}, 1e-9) {
			t.Fatalf("popup anchor %+v", it.Points[0])
		}
	}
	r.click(geom.Pt{X: 1, Y: 1})
	if r.env.Layer.Len(overlay.Marker) != 2 {
		t.Fatalf("clicks after completion must be ignored")
	}
	s.ClosePopup()
	if r.env.Layer.Len() != 0 || s.Phase() != DistanceIdle || !s.Active() {
		t.Fatalf("close should clear and re-arm: len=%d phase=%v", r.env.Layer.Len(), s.Phase())
	}
	r.click(geom.Pt{X: 5, Y: 5})
	if s.Phase() != DistanceFirstPointSet {
		t.Fatalf("tool not re-armed")
	}
	DisableDistance(s)
	if r.env.Layer.Len() != 0 || r.el.ListenerCount() != 0 {
		t.Fatalf("disable left items=%d listeners=%d", r.env.Layer.Len(), r.el.ListenerCount())
	}
}

func TestDistanceMicrons(t *testing.T) {
	r := newRig(t, transform.Identity())
	s := EnableDistance(r.env)
	defer DisableDistance(s)
	r.click(geom.Pt{X: 10, Y: 10})
	r.click(geom.Pt{X: 10, Y: 10}) // zero length ignored
	if s.Phase() != DistanceFirstPointSet {
		t.Fatalf("zero-length segment must be a no-op")
	}
	r.click(geom.Pt{X: 40, Y: 10})
	if got := popupText(t, r.env.Layer); got != "300.0 µm" {
		t.Fatalf("popup = %q", got)
	}
}

func TestAngleFlow(t *testing.T) {
	r := newRig(t, transform.Transform2D{Scale: 0.5})
	s := EnableAngle(r.env)
	if s.Phase() != AngleAwaitA {
		t.Fatalf("phase = %v", s.Phase())
	}
	a, b, c := geom.Pt{X: 200, Y: 100}, geom.Pt{X: 100, Y: 100}, geom.Pt{X: 100, Y: 200}
	r.click(a)
	r.move(geom.Pt{X: 150, Y: 150})
	r.move(geom.Pt{X: 120, Y: 110})
	if r.env.Layer.Len(overlay.Line) != 1 || r.env.Layer.Len(overlay.Marker) != 2 {
		t.Fatalf("phase 2 preview: lines=%d markers=%d", r.env.Layer.Len(overlay.Line), r.env.Layer.Len(overlay.Marker))
	}
	r.click(b)
	r.move(geom.Pt{X: 90, Y: 150})
	r.click(c)
	if s.Phase() != AngleIdle {
		t.Fatalf("phase = %v", s.Phase())
	}
	if got := popupText(t, r.env.Layer); got != "90.0°" {
		t.Fatalf("popup = %q", got)
	}
	if r.env.Layer.Len(overlay.Arc) != 1 || r.env.Layer.Len(overlay.Line) != 2 || r.env.Layer.Len(overlay.Marker) != 3 {
		t.Fatalf("final geometry: %d arcs %d lines %d markers", r.env.Layer.Len(overlay.Arc), r.env.Layer.Len(overlay.Line), r.env.Layer.Len(overlay.Marker))
	}
	for _, it := range r.env.Layer.Items() {
		if it.Kind == overlay.Line && strings.Contains(it.Style.Stroke.CSS(), "rgba") {
			t.Fatalf("preview style left on final line: %+v", it.Style)
		}
		if it.Kind == overlay.Arc && (it.Arc.Sweep != 1 || it.Radius != ArcRadius) {
			t.Fatalf("arc %+v", it.Arc)
		}
	}
	s.ClosePopup()
	if r.env.Layer.Len() != 0 || r.el.ListenerCount() != 0 || s.Active() {
		t.Fatalf("close should end the session")
	}
}

func TestAreaFlow(t *testing.T) {
	r := newRig(t, transform.Transform2D{Scale: 2})
	s := EnableArea(r.env)
	sq := []geom.Pt{{X: 0, Y: 0}, {X: 1000, Y: 0}, {X: 1000, Y: 1000}, {X: 0, Y: 1000}}
	for _, p := range sq {
		r.click(p)
	}
	r.move(geom.Pt{X: 500, Y: 500})
	if r.env.Layer.Len(overlay.Marker) != 4 || r.env.Layer.Len(overlay.Line) != 1 {
		t.Fatalf("construction: markers=%d lines=%d", r.env.Layer.Len(overlay.Marker), r.env.Layer.Len(overlay.Line))
	}
	// 4 image px * scale 2 = 8 screen px from the first vertex: closes
	r.click(geom.Pt{X: 4, Y: 0})
	if !s.Done() {
		t.Fatalf("polygon should be closed")
	}
	// 1e6 px² * 1e-6 = 1 cm²
	if got := popupText(t, r.env.Layer); got != "1.0 cm²" {
		t.Fatalf("popup = %q", got)
	}
	for _, it := range r.env.Layer.Items() {
		if it.Kind == overlay.Popup && it.Points[0] != (geom.Pt{X: 500, Y: 500}) {
			t.Fatalf("popup at %+v, want centroid", it.Points[0])
		}
	}
	if r.env.Layer.Len(overlay.Marker) != 0 || r.el.ListenerCount() != 0 {
		t.Fatalf("finalize should drop markers and listeners")
	}
	s.ClosePopup()
	if r.env.Layer.Len() != 0 {
		t.Fatalf("items left: %d", r.env.Layer.Len())
	}
}

func TestAreaDoesNotCloseWithTwoPointsOrFarClick(t *testing.T) {
	r := newRig(t, transform.Identity())
	s := EnableArea(r.env)
	defer DisableArea(s)
	r.click(geom.Pt{X: 0, Y: 0})
	r.click(geom.Pt{X: 100, Y: 0})
	r.click(geom.Pt{X: 1, Y: 1}) // near first but only two points
	if s.Done() || len(s.Points()) != 3 {
		t.Fatalf("points=%d done=%v", len(s.Points()), s.Done())
	}
	r.click(geom.Pt{X: 20, Y: 0}) // 20 screen px away
	if s.Done() {
		t.Fatalf("far click must add a vertex")
	}
	if !s.Finish() || !s.Done() {
		t.Fatalf("Finish should close a polygon with >=3 points")
	}
}

func TestToolCleanupLeavesNothingBehind(t *testing.T) {
	r := newRig(t, transform.Identity())
	tools := []struct {
		name    string
		enable  func() func()
		markers int
	}{
		{"distance", func() func() { s := EnableDistance(r.env); return func() { DisableDistance(s) } }, 1},
		{"angle", func() func() { s := EnableAngle(r.env); return func() { s.Cancel() } }, 1},
		{"area", func() func() { s := EnableArea(r.env); return func() { s.Cancel() } }, 1},
	}
	for _, tool := range tools {
		cancel := tool.enable()
		r.click(geom.Pt{X: 10, Y: 10})
		r.move(geom.Pt{X: 50, Y: 50})
		r.click(geom.Pt{X: 80, Y: 20})
		cancel()
		if r.env.Layer.Len() != 0 || r.el.ListenerCount() != 0 {
			t.Fatalf("%s: after cancel items=%d listeners=%d", tool.name, r.env.Layer.Len(), r.el.ListenerCount())
		}
		cancel = tool.enable()
		r.click(geom.Pt{X: 10, Y: 10})
		if n := r.env.Layer.Len(overlay.Marker); n != tool.markers {
			t.Fatalf("%s: re-enabled tool drew %d markers on first click", tool.name, n)
		}
		if n := r.el.ListenerCount(); n != 2 {
			t.Fatalf("%s: listeners = %d", tool.name, n)
		}
		cancel()
	}
}

func TestInactiveSessionIgnoresClicks(t *testing.T) {
	r := newRig(t, transform.Identity())
	s := EnableDistance(r.env)
	DisableDistance(s)
	s.onClick(input.Event{Kind: input.Click, Client: geom.Pt{X: 200, Y: 200}})
	if r.env.Layer.Len() != 0 {
		t.Fatalf("inactive session drew something")
	}
}
