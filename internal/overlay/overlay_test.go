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
	"testing"

	"rockviewer/internal/geom"
)

type proj struct {
	s float64
	t geom.Pt
}

func (p proj) ToScreen(q geom.Pt) geom.Pt { return q.Mul(p.s).Add(p.t) }
func (p proj) Zoom() float64              { return p.s }

func TestHandleLifecycle(t *testing.T) {
	l := NewLayer()
	m := l.AddMarker(ImageSpace, geom.Pt{X: 1, Y: 2}, 4, AreaMarker)
	ln := l.AddLine(ImageSpace, geom.Pt{}, geom.Pt{X: 1}, DistanceStyle)
	if l.Len() != 2 || l.Len(Marker) != 1 {
		t.Fatalf("len=%d markers=%d", l.Len(), l.Len(Marker))
	}
	ln.Update(geom.Pt{X: 5}, geom.Pt{X: 6})
	it, ok := ln.Item()
	if !ok || it.Points[0].X != 5 || it.Points[1].X != 6 {
		t.Fatalf("update failed: %+v", it)
	}
	m.Remove()
	m.Remove()
	if m.Alive() || l.Len() != 1 {
		t.Fatalf("remove failed")
	}
	var zero Handle
	zero.Move(geom.Pt{X: 1})
	zero.Remove()
	if zero.Alive() {
		t.Fatalf("zero handle must be inert")
	}
}

func TestSnapshotProjectsImageSpace(t *testing.T) {
	l := NewLayer()
	l.AddMarker(ImageSpace, geom.Pt{X: 10, Y: 10}, 4, AreaMarker)
	l.AddPopup(ScreenSpace, geom.Pt{X: 5, Y: 5}, geom.Size{W: 80, H: 30}, "x", nil)
	l.AddArc(geom.AngleArc(geom.Pt{X: 1}, geom.Pt{}, geom.Pt{Y: 1}, 40), AngleArc)
	ds := l.Snapshot(proj{s: 2, t: geom.Pt{X: 100}})
	if len(ds) != 3 {
		t.Fatalf("drawables %d", len(ds))
	}
	if ds[0].Points[0] != (geom.Pt{X: 120, Y: 20}) || ds[0].Radius != 4 {
		t.Fatalf("marker %+v", ds[0])
	}
	if ds[1].Rect != geom.R(5, 5, 80, 30) {
		t.Fatalf("popup rect %+v", ds[1].Rect)
	}
	if ds[2].Arc.Radius != 80 || !ds[2].Arc.Center.Near(geom.Pt{X: 100}, 1e-9) {
		t.Fatalf("arc %+v", ds[2].Arc)
	}
}

func TestGroupVisibility(t *testing.T) {
	l := NewLayer()
	h := l.AddMarker(ImageSpace, geom.Pt{}, 4, PointStyle)
	h.SetGroup("annotations")
	l.AddMarker(ImageSpace, geom.Pt{}, 4, PointStyle)
	l.SetGroupHidden("annotations", true)
	if n := len(l.Snapshot(nil)); n != 1 {
		t.Fatalf("visible = %d", n)
	}
	if l.Len() != 2 {
		t.Fatalf("hiding must not remove")
	}
	l.SetGroupHidden("annotations", false)
	if n := len(l.Snapshot(nil)); n != 2 {
		t.Fatalf("visible = %d", n)
	}
}

func TestHitTestAndClosePopup(t *testing.T) {
	l := NewLayer()
	m := l.AddMarker(ImageSpace, geom.Pt{X: 10, Y: 10}, 17.5, PointStyle)
	m.SetKey("p1")
	z := l.AddPolygon(ImageSpace, []geom.Pt{{X: 100, Y: 100}, {X: 200, Y: 100}, {X: 200, Y: 200}, {X: 100, Y: 200}}, ZoneStyle)
	z.SetKey("z1")
	if k, ok := l.HitTest(geom.Pt{X: 15, Y: 12}, proj{s: 1}); !ok || k != "p1" {
		t.Fatalf("hit = %q %v", k, ok)
	}
	if k, ok := l.HitTest(geom.Pt{X: 150, Y: 150}, proj{s: 1}); !ok || k != "z1" {
		t.Fatalf("hit = %q %v", k, ok)
	}
	if _, ok := l.HitTest(geom.Pt{X: 60, Y: 60}, proj{s: 1}); ok {
		t.Fatalf("expected miss")
	}
	closed := 0
	p := l.AddPopup(ScreenSpace, geom.Pt{}, geom.Size{W: 10, H: 10}, "t", func() { closed++ })
	if !l.ClosePopup(p.ID()) || closed != 1 {
		t.Fatalf("close callback not run")
	}
	if l.ClosePopup(m.ID()) {
		t.Fatalf("markers have no close")
	}
}

func TestClosePopupAtPicksTopmost(t *testing.T) {
	l := NewLayer()
	var closed []string
	l.AddPopup(ImageSpace, geom.Pt{X: 10, Y: 10}, geom.Size{W: 50, H: 20}, "below", func() { closed = append(closed, "below") })
	l.AddPopup(ScreenSpace, geom.Pt{X: 40, Y: 15}, geom.Size{W: 50, H: 20}, "above", func() { closed = append(closed, "above") })
	pr := proj{s: 2}
	// image (10,10) lands at screen (20,20)
	if l.ClosePopupAt(geom.Pt{X: 15, Y: 15}, pr) {
		t.Fatalf("point outside both boxes closed a popup")
	}
	if !l.ClosePopupAt(geom.Pt{X: 50, Y: 25}, pr) || len(closed) != 1 || closed[0] != "above" {
		t.Fatalf("closed = %v", closed)
	}
	if !l.ClosePopupAt(geom.Pt{X: 25, Y: 25}, pr) || len(closed) != 2 || closed[1] != "below" {
		t.Fatalf("closed = %v", closed)
	}
	if id, ok := PopupAt(l.Snapshot(pr), geom.Pt{X: 200, Y: 200}); ok {
		t.Fatalf("unexpected popup %d", id)
	}
}

func TestColorCSS(t *testing.T) {
	if Red.CSS() != "rgb(255,0,0)" {
		t.Fatalf("css %q", Red.CSS())
	}
	if Blue.WithAlpha(0.5).CSS() != "rgba(0,0,255,0.502)" {
		t.Fatalf("css %q", Blue.WithAlpha(0.5).CSS())
	}
}
