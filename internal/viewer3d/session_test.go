/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package viewer3d

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"rockviewer/internal/annotation"
	"rockviewer/internal/catalog"
	"rockviewer/internal/domain"
	"rockviewer/internal/geom"
	"rockviewer/internal/input"
	"rockviewer/internal/mesh"
	"rockviewer/internal/overlay"
	"rockviewer/internal/projection"
	"rockviewer/internal/telemetry"
)

const plateOBJ = `# unit plate
v -1 0 -1
v 1 0 -1
v 1 0 1
v -1 0 1
f 1 2 3 4
`

const annotations3D = `[
 {"id":1,"viewer":"3D","type":"point","position":[0,0,0],"content":{"title":"Centre"}},
 {"id":2,"viewer":"3D","type":"zone","points":[[0.5,0,0.5],[0.9,0,0.5],[0.9,0,0.9],[0.5,0,0.9]],"content":{"title":"Veine"}},
 {"id":3,"viewer":"2D","type":"point","position":[1,1],"content":{"title":"ignored"}}
]`

func plate() *mesh.Model {
	a, b, c, d := geom.V3(-1, 0, -1), geom.V3(1, 0, -1), geom.V3(1, 0, 1), geom.V3(-1, 0, 1)
	return &mesh.Model{Name: "plate", Triangles: []projection.Triangle{{A: a, B: b, C: c}, {A: a, B: c, C: d}}}
}

type recorder struct{ names []string }

func (r *recorder) event(name string, _ map[string]any) { r.names = append(r.names, name) }

// newTopSession looks straight down on the plate from y = 2.1.
func newTopSession(t *testing.T, withAnnotations bool) (*Session, *recorder) {
	t.Helper()
	rec := &recorder{}
	s := New(domain.Sample{Code: "P1"}, Options{Viewport: geom.R(0, 0, 800, 600), Event: rec.event})
	t.Cleanup(s.Close)
	s.SetModel(plate())
	if err := s.SetView(projection.ViewTop); err != nil {
		t.Fatalf("set view: %v", err)
	}
	if withAnnotations {
		anns, err := annotation.Parse([]byte(annotations3D))
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		if p, z := s.RenderAnnotations(anns); p != 1 || z != 1 {
			t.Fatalf("rendered %d points %d zones", p, z)
		}
	}
	return s, rec
}

func near(a, b geom.Pt) bool { return math.Abs(a.X-b.X) < 1e-6 && math.Abs(a.Y-b.Y) < 1e-6 }

func clickWorld(t *testing.T, s *Session, w geom.Vec3) {
	t.Helper()
	p, ok := s.Project(w)
	if !ok {
		t.Fatalf("%v not visible", w)
	}
	s.Dispatch(input.Event{Kind: input.Click, Client: p})
}

func TestFitOnModelLoad(t *testing.T) {
	s := New(domain.Sample{Code: "P1"}, Options{Viewport: geom.R(0, 0, 800, 600), Event: func(string, map[string]any) {}})
	defer s.Close()
	s.SetModel(plate())
	if got := s.Camera.Position; got.Dist(geom.V3(3, 2, 5)) > 1e-9 {
		t.Fatalf("camera at %v, want (3,2,5)", got)
	}
	s.ZoomIn()
	s.ResetView()
	if got := s.Camera.Position; got.Dist(geom.V3(3, 2, 5)) > 1e-9 {
		t.Fatalf("reset to %v", got)
	}
}

func TestPickAndProjectThroughCentre(t *testing.T) {
	s, _ := newTopSession(t, false)
	p, ok := s.Project(geom.V3(0, 0, 0))
	if !ok || !near(p, geom.P(400, 300)) {
		t.Fatalf("project = %v %v", p, ok)
	}
	want := geom.V3(0.3, 0, -0.6)
	p, _ = s.Project(want)
	w, ok := s.Pick(p)
	if !ok || w.Dist(want) > 1e-6 {
		t.Fatalf("pick = %v %v, want %v", w, ok, want)
	}
	if _, ok := s.Pick(geom.P(0, 0)); ok {
		t.Fatalf("corner ray should miss the plate")
	}
}

func TestAnnotationClickOpensTrackedPopup(t *testing.T) {
	s, rec := newTopSession(t, true)
	clickWorld(t, s, geom.V3(0, 0, 0))
	clickWorld(t, s, geom.V3(0.6, 0, 0.7))
	clickWorld(t, s, geom.V3(0, 0, 0))
	if s.Tracker.Len() != 2 {
		t.Fatalf("tracked popups = %d", s.Tracker.Len())
	}
	n := 0
	for _, name := range rec.names {
		if name == telemetry.EventAnnotationOpened {
			n++
		}
	}
	if n != 2 {
		t.Fatalf("annotation events = %d", n)
	}
	rec1, ok := s.Tracker.Registry().Get("1")
	if !ok {
		t.Fatalf("popup 1 missing")
	}
	it, _ := rec1.Popup.Item()
	if !near(it.Points[0], geom.P(400, 300)) {
		t.Fatalf("popup at %v", it.Points[0])
	}
	if len(s.Tracker.Lines()) != 2 {
		t.Fatalf("leader lines = %d", len(s.Tracker.Lines()))
	}

	// Hidden annotations are neither drawn nor clickable.
	if s.ToggleAnnotations() {
		t.Fatalf("expected hidden")
	}
	s.Tracker.CloseAll()
	clickWorld(t, s, geom.V3(0, 0, 0))
	if s.Tracker.Len() != 0 {
		t.Fatalf("hidden annotation opened")
	}
	if len(s.Snapshot()) != 0 {
		t.Fatalf("snapshot not empty")
	}
}

func TestDragIsNotAClick(t *testing.T) {
	s, _ := newTopSession(t, true)
	s.ResetView()
	s.Dispatch(input.Event{Kind: input.Down, Client: geom.P(100, 100)})
	s.Dispatch(input.Event{Kind: input.Move, Client: geom.P(150, 100)})
	s.Dispatch(input.Event{Kind: input.Up, Client: geom.P(150, 100)})
	s.Dispatch(input.Event{Kind: input.Click, Client: geom.P(400, 300)})
	if s.Tracker.Len() != 0 {
		t.Fatalf("drag opened a popup")
	}
	before := s.Camera.Position
	s.Tick(1.0 / 60)
	if s.Camera.Position.Dist(before) < 1e-6 {
		t.Fatalf("drag did not orbit the camera")
	}
}

func TestDistanceAndAreaTools(t *testing.T) {
	s, _ := newTopSession(t, false)
	if !s.ToggleDistance() {
		t.Fatalf("distance not started")
	}
	clickWorld(t, s, geom.V3(-0.5, 0, 0))
	clickWorld(t, s, geom.V3(0.5, 0, 0))
	res := s.Results()
	if len(res) != 1 || res[0].Text != "100.0 cm" {
		t.Fatalf("distance results = %+v", res)
	}
	if s.distance.Active() {
		t.Fatalf("distance tool should deactivate after two points")
	}
	if got := len(s.Segments()); got != 1 {
		t.Fatalf("segments = %d, want the measurement line", got)
	}
	if !s.ToggleDistance() {
		t.Fatalf("toggling a finished measurement restarts it")
	}
	if got := len(s.Segments()); got != 0 {
		t.Fatalf("restart kept %d segments", got)
	}
	s.ToggleDistance()

	if !s.ToggleArea() {
		t.Fatalf("area not started")
	}
	clickWorld(t, s, geom.V3(-0.5, 0, -0.4))
	clickWorld(t, s, geom.V3(0.5, 0, -0.4))
	clickWorld(t, s, geom.V3(0.5, 0, 0.6))
	res = s.Results()
	if last := res[len(res)-1]; last.Text != "Surface : 5000.0 cm²" {
		t.Fatalf("area result = %+v", last)
	}
	if s.Layer.Len(overlay.Popup) != 1 {
		t.Fatalf("area popups = %d", s.Layer.Len(overlay.Popup))
	}
	if s.ToggleArea() {
		t.Fatalf("area should switch off")
	}
	if s.Layer.Len(overlay.Popup) != 0 {
		t.Fatalf("area popup kept after switching off")
	}
}

func TestClickClosesMeasurementPopup(t *testing.T) {
	s, _ := newTopSession(t, false)
	s.ToggleDistance()
	clickWorld(t, s, geom.V3(-0.5, 0, 0))
	clickWorld(t, s, geom.V3(0.5, 0, 0))
	if s.Layer.Len(overlay.Popup) != 1 {
		t.Fatalf("popups = %d", s.Layer.Len(overlay.Popup))
	}
	// the box hangs from the projected midpoint (400,300)
	s.Dispatch(input.Event{Kind: input.Click, Client: geom.P(410, 310)})
	if s.Layer.Len(overlay.Popup) != 0 || len(s.Segments()) != 0 {
		t.Fatalf("popup click left popups=%d segments=%d", s.Layer.Len(overlay.Popup), len(s.Segments()))
	}
	if !s.ToggleDistance() {
		t.Fatalf("distance not restarted")
	}
	clickWorld(t, s, geom.V3(0, 0, -0.5))
	clickWorld(t, s, geom.V3(0, 0, 0.3))
	if res := s.Results(); len(res) != 2 || res[1].Text != "80.0 cm" {
		t.Fatalf("results = %+v", res)
	}
}

func TestTickScaleLabelAndAxes(t *testing.T) {
	s, _ := newTopSession(t, false)
	rendered := 0
	s.OnRender = func(*Session) { rendered++ }
	s.Tick(1.0 / 60)
	if rendered != 1 {
		t.Fatalf("render hook ran %d times", rendered)
	}
	if got := s.ScaleLabel(); got != "53.7 cm" {
		t.Fatalf("scale label = %q", got)
	}
	if !s.ToggleAxes() {
		t.Fatalf("axes not shown")
	}
	if s.ToggleAutoRotate() != true || !s.Controls.AutoRotate {
		t.Fatalf("auto-rotate not enabled")
	}
	if err := s.SetView("diagonal"); err == nil {
		t.Fatalf("expected unknown view error")
	}
}

func TestOpenFromCatalog(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "models", "plate")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(root, "data", "annotations"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "P1-Plaque.obj"), []byte(plateOBJ), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "data", "annotations", "P1.json"), []byte(annotations3D), 0o644); err != nil {
		t.Fatal(err)
	}
	src := catalog.FS{Root: root}
	sample := domain.Sample{Code: "P1", Name: "Plaque", Path: "models/plate/"}
	s, err := Open(context.Background(), src, sample, Options{Viewport: geom.R(0, 0, 800, 600), Event: func(string, map[string]any) {}})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()
	if m := s.Model(); m == nil || len(m.Triangles) != 2 {
		t.Fatalf("model = %+v", m)
	}
	if len(s.annotations.Children) != 2 {
		t.Fatalf("annotation nodes = %d", len(s.annotations.Children))
	}
	_, err = Open(context.Background(), src, domain.Sample{Code: "X", Name: "Y", Path: "models/none/"}, Options{})
	if !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
