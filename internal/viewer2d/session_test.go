/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package viewer2d

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"rockviewer/internal/annotation"
	"rockviewer/internal/catalog"
	"rockviewer/internal/domain"
	"rockviewer/internal/geom"
	"rockviewer/internal/input"
	applog "rockviewer/internal/log"
	"rockviewer/internal/magnifier"
	"rockviewer/internal/measure"
	"rockviewer/internal/overlay"
	"rockviewer/internal/telemetry"
)

const annotationsJSON = `[
 {"id":"p1","viewer":"2D","type":"point","position":[50,50],"content":{"title":"Quartz"}},
 {"id":"z1","viewer":"2D","type":"zone","points":[[100,100],[140,100],[140,140],[100,140]],"content":{"title":"Feldspath"}},
 {"id":"p3","viewer":"3D","type":"point","position":[0,0,0],"content":{"title":"ignored"}}
]`

func testImage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 200, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 200; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 90, A: 255})
		}
	}
	return img
}

type recorder struct{ names []string }

func (r *recorder) event(name string, _ map[string]any) { r.names = append(r.names, name) }

func (r *recorder) count(name string) int {
	n := 0
	for _, x := range r.names {
		if x == name {
			n++
		}
	}
	return n
}

func newSession(t *testing.T) (*Session, *recorder) {
	t.Helper()
	rec := &recorder{}
	anns, err := annotation.Parse([]byte(annotationsJSON))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	s, err := New(domain.Sample{Code: "G12", ReferenceWidthCm: 2}, testImage(), Options{
		Viewport: geom.R(10, 20, 800, 600),
		Event:    rec.event,
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	t.Cleanup(s.Close)
	if p, z := s.Render(anns); p != 1 || z != 1 {
		t.Fatalf("rendered %d points %d zones", p, z)
	}
	return s, rec
}

// clickImage clicks the image point p under the current transform.
func clickImage(s *Session, p geom.Pt) {
	t := s.View.State()
	b := s.Element.Bounds()
	c := t.ToScreen(p).Add(b.Min())
	s.Dispatch(input.Event{Kind: input.Click, Client: c})
}

func popupAt(t *testing.T, s *Session, key string) geom.Pt {
	t.Helper()
	for _, it := range s.Layer.Items() {
		if it.Kind == overlay.Popup && it.Key == key {
			return it.Points[0]
		}
	}
	t.Fatalf("no popup %q", key)
	return geom.Pt{}
}

func TestCalibrationFallbacks(t *testing.T) {
	s, err := New(domain.Sample{Code: "A"}, nil, Options{NaturalWidth: 250, Event: func(string, map[string]any) {}})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer s.Close()
	if got := float64(s.Factor); got != 0.01 {
		t.Fatalf("factor = %v, want 0.01 from default 2.5cm", got)
	}
	if s.ToggleMagnifier() {
		t.Fatalf("magnifier must stay off without image")
	}
	if _, err := New(domain.Sample{Code: "B"}, nil, Options{Event: func(string, map[string]any) {}}); err == nil {
		t.Fatalf("expected calibration error without width")
	}
}

func TestAnnotationClickWinsOverTool(t *testing.T) {
	s, rec := newSession(t)
	s.SetTool(ToolDistance)

	clickImage(s, geom.P(50, 50))
	if !s.Annotations.Registry().IsOpen("p1") {
		t.Fatalf("point popup not open")
	}
	if s.distance.Phase() != measure.DistanceIdle {
		t.Fatalf("annotation click reached the distance tool")
	}
	if got := popupAt(t, s, "p1"); got != geom.P(50, 50) {
		t.Fatalf("popup at %v", got)
	}

	clickImage(s, geom.P(120, 120))
	if !s.Annotations.Registry().IsOpen("z1") {
		t.Fatalf("zone popup not open")
	}
	if got := popupAt(t, s, "z1"); got != geom.P(120, 120) {
		t.Fatalf("zone popup at %v, want centroid", got)
	}

	clickImage(s, geom.P(0, 0))
	clickImage(s, geom.P(30, 0))
	res := s.Results()
	if len(res) != 1 || res[0].Text != "3.00 mm" {
		t.Fatalf("results = %+v", res)
	}
	if rec.count(telemetry.EventAnnotationOpened) != 2 || rec.count(telemetry.EventMeasurementDone) != 1 || rec.count(telemetry.EventSampleLoaded) != 1 {
		t.Fatalf("events = %v", rec.names)
	}
}

func TestClickOnDistancePopupRearmsTool(t *testing.T) {
	s, _ := newSession(t)
	s.SetTool(ToolDistance)
	clickImage(s, geom.P(10, 80))
	clickImage(s, geom.P(60, 80))
	if n := s.Layer.Len(overlay.Popup); n != 1 {
		t.Fatalf("popups = %d", n)
	}
	// the result box sits at the midpoint (35,80)
	clickImage(s, geom.P(50, 90))
	if n := s.Layer.Len(overlay.Popup); n != 0 {
		t.Fatalf("popups after closing = %d", n)
	}
	if n := s.Layer.Len(overlay.Marker, overlay.Line); n != 1 {
		t.Fatalf("measurement left %d items, want only the annotation marker", n)
	}
	if s.distance.Phase() != measure.DistanceIdle || s.Tool() != ToolDistance {
		t.Fatalf("phase %v tool %q", s.distance.Phase(), s.Tool())
	}
	clickImage(s, geom.P(150, 20))
	clickImage(s, geom.P(180, 20))
	res := s.Results()
	if len(res) != 2 || res[1].Text != "3.00 mm" {
		t.Fatalf("results = %+v", res)
	}
}

func TestClosingAnglePopupEndsTool(t *testing.T) {
	s, _ := newSession(t)
	s.SetTool(ToolAngle)
	clickImage(s, geom.P(150, 20))
	clickImage(s, geom.P(180, 20))
	clickImage(s, geom.P(180, 80))
	if len(s.Results()) != 1 || s.Layer.Len(overlay.Popup) != 1 {
		t.Fatalf("angle not completed")
	}
	clickImage(s, geom.P(200, 30))
	if s.Tool() != ToolNone || s.angle != nil {
		t.Fatalf("tool %q still set after its popup closed", s.Tool())
	}
	if n := s.Layer.Len(overlay.Popup, overlay.Arc); n != 0 {
		t.Fatalf("angle left %d items", n)
	}
	if n := s.Element.ListenerCount(input.Click); n != 0 {
		t.Fatalf("click listeners = %d", n)
	}
}

func TestCancelToolAndClosePopups(t *testing.T) {
	s, _ := newSession(t)
	clickImage(s, geom.P(50, 50))
	s.SetTool(ToolArea)
	for _, p := range []geom.Pt{{X: 150, Y: 10}, {X: 190, Y: 10}, {X: 190, Y: 40}} {
		clickImage(s, p)
	}
	if !s.area.Finish() {
		t.Fatalf("area not finished")
	}
	if n := s.Layer.Len(overlay.Popup); n != 2 {
		t.Fatalf("popups = %d", n)
	}
	s.ClosePopups()
	if n := s.Layer.Len(overlay.Popup); n != 0 || s.Annotations.Registry().Len() != 0 {
		t.Fatalf("popups after close all = %d", n)
	}
	if s.Tool() != ToolNone {
		t.Fatalf("area tool survived its popup")
	}
	s.SetTool(ToolDistance)
	clickImage(s, geom.P(150, 20))
	s.CancelTool()
	if s.Tool() != ToolNone || s.distance != nil || s.Layer.Len(overlay.Marker) != 1 {
		t.Fatalf("cancel left tool %q", s.Tool())
	}
}

func TestPopupsFollowTransform(t *testing.T) {
	s, _ := newSession(t)
	clickImage(s, geom.P(50, 50))
	s.View.PanBy(geom.P(-100, 0))
	if got := popupAt(t, s, "p1"); got != geom.P(10, 50) {
		t.Fatalf("popup at %v, want clamped to margin", got)
	}
	s.ResetView()
	if got := popupAt(t, s, "p1"); got != geom.P(50, 50) {
		t.Fatalf("popup at %v after reset", got)
	}
	s.Resize(geom.R(10, 20, 250, 100))
	if got := popupAt(t, s, "p1"); got != geom.P(20, 44) {
		t.Fatalf("popup at %v after resize", got)
	}
}

func TestToggleAnnotationsHidesWithoutClosing(t *testing.T) {
	s, _ := newSession(t)
	clickImage(s, geom.P(50, 50))
	before := len(s.Snapshot())
	if s.ToggleAnnotations() {
		t.Fatalf("expected hidden")
	}
	if !s.Annotations.Registry().IsOpen("p1") {
		t.Fatalf("toggle closed the popup")
	}
	if got := len(s.Snapshot()); got != before-3 {
		t.Fatalf("snapshot %d items, want %d", got, before-3)
	}
	clickImage(s, geom.P(120, 120))
	if s.Annotations.Registry().IsOpen("z1") {
		t.Fatalf("hidden zone was clickable")
	}
	s.ToggleAnnotations()
	if got := len(s.Snapshot()); got != before {
		t.Fatalf("snapshot %d items after show, want %d", got, before)
	}
}

func TestMagnifierFollowsPointer(t *testing.T) {
	s, _ := newSession(t)
	var frames int
	s.OnFrame = func(magnifier.Frame) { frames++ }
	if !s.ToggleMagnifier() {
		t.Fatalf("magnifier did not turn on")
	}
	s.Dispatch(input.Event{Kind: input.Move, Client: geom.P(60, 70)})
	f, ok := s.MagnifierFrame()
	if !ok || frames != 1 {
		t.Fatalf("no frame after move")
	}
	if f.Image.Bounds().Dx() != 100 || f.Source != geom.R(37.5, 37.5, 25, 25) {
		t.Fatalf("frame %v source %v", f.Image.Bounds(), f.Source)
	}
	if s.ToggleMagnifier() {
		t.Fatalf("magnifier did not turn off")
	}
	if _, ok := s.MagnifierFrame(); ok {
		t.Fatalf("frame kept after turning off")
	}
}

func TestScaleBarAndToolSwitch(t *testing.T) {
	s, _ := newSession(t)
	if got := s.ScaleBar(); got != "10.00 mm" {
		t.Fatalf("scale bar = %q", got)
	}
	s.SetTool(ToolArea)
	s.SetTool(ToolAngle)
	if s.Tool() != ToolAngle || s.area != nil || s.distance != nil {
		t.Fatalf("tool switch left sessions behind")
	}
	if _, err := ParseTool("lasso"); err == nil {
		t.Fatalf("expected unknown tool error")
	}
}

func TestCloseReleasesListeners(t *testing.T) {
	s, _ := newSession(t)
	s.SetTool(ToolArea)
	s.ToggleMagnifier()
	s.Close()
	if n := s.Element.ListenerCount(); n != 0 {
		t.Fatalf("element listeners = %d", n)
	}
	if n := s.Window.ListenerCount(); n != 0 {
		t.Fatalf("window listeners = %d", n)
	}
	if n := s.Layer.Len(); n != 0 {
		t.Fatalf("layer items = %d", n)
	}
}

func TestOpenFromCatalog(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "models", "granite")
	if err := os.MkdirAll(filepath.Join(root, "data", "annotations"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	f, err := os.Create(filepath.Join(dir, "TS.png"))
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, testImage()); err != nil {
		t.Fatal(err)
	}
	_ = f.Close()
	if err := os.WriteFile(filepath.Join(root, "data", "annotations", "G12.json"), []byte(annotationsJSON), 0o644); err != nil {
		t.Fatal(err)
	}
	src := catalog.FS{Root: root}
	sample := domain.Sample{Code: "G12", Name: "Granite", Path: "models/granite/", ReferenceWidthCm: 2}
	s, err := Open(context.Background(), src, sample, Options{Viewport: geom.R(0, 0, 400, 300), Event: func(string, map[string]any) {}})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()
	if s.Annotations.Len() != 2 || s.NaturalSize() != (geom.Size{W: 200, H: 100}) {
		t.Fatalf("annotations %d size %v", s.Annotations.Len(), s.NaturalSize())
	}
	if _, err := Open(context.Background(), src, domain.Sample{Code: "X", Path: "models/none/"}, Options{}); !errors.Is(err, ErrNoImage) {
		t.Fatalf("expected ErrNoImage, got %v", err)
	}
}

func TestOpenLogsWithSampleAndSession(t *testing.T) {
	var buf bytes.Buffer
	applog.Init(applog.Options{Level: "debug", Format: "json", Console: &buf})
	t.Cleanup(func() { applog.Init(applog.FromEnv()) })

	root := t.TempDir()
	dir := filepath.Join(root, "models", "basalt")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	f, err := os.Create(filepath.Join(dir, "TS.png"))
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, testImage()); err != nil {
		t.Fatal(err)
	}
	_ = f.Close()
	sample := domain.Sample{Code: "B7", Path: "models/basalt/", ReferenceWidthCm: 2}
	s, err := Open(context.Background(), catalog.FS{Root: root}, sample, Options{Event: func(string, map[string]any) {}})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	var found bool
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var m map[string]any
		if json.Unmarshal([]byte(line), &m) != nil || m["msg"] != "no annotations" {
			continue
		}
		found = true
		if m["sample"] != "B7" || m["session"] != s.ID {
			t.Fatalf("load log lacks context: %v", m)
		}
	}
	if !found {
		t.Fatalf("no annotation load warning in %q", buf.String())
	}
}
