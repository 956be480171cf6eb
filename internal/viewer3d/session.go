/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package viewer3d assembles the model viewer: a perspective camera with
// orbit controls, the mesh scene used for picking, 3D annotations with
// tracked popups, and the 3D distance and area tools. Hosts dispatch
// pointer events, call Tick once per frame and draw Snapshot.
package viewer3d

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/google/uuid"

	"rockviewer/internal/annotation"
	"rockviewer/internal/catalog"
	"rockviewer/internal/config"
	"rockviewer/internal/domain"
	"rockviewer/internal/geom"
	"rockviewer/internal/input"
	applog "rockviewer/internal/log"
	"rockviewer/internal/measure"
	"rockviewer/internal/measure3d"
	"rockviewer/internal/mesh"
	"rockviewer/internal/overlay"
	"rockviewer/internal/projection"
	"rockviewer/internal/telemetry"
)

// Scene constants.
const (
	AnnotationRadius = 0.005
	AxesLength       = 2
	// WheelZoomFactor converts wheel deltaY into a zoom delta.
	WheelZoomFactor = 0.001
)

var (
	pointStyle = overlay.Style{Stroke: overlay.Red, Fill: overlay.Red}
	zoneStyle  = overlay.Style{Stroke: overlay.Color{R: 255, G: 136, A: 255}, Fill: overlay.Color{R: 255, G: 136, A: 64}}
	axesStyle  = overlay.Style{Stroke: overlay.Color{A: 255}, Width: 1}
)

// Options configures a Session. Zero values select defaults.
type Options struct {
	Viewport      geom.Rect
	Window        *input.Target
	DragThreshold float64
	CmPerUnit     float64
	Event         func(name string, props map[string]any)
	Log           *slog.Logger
}

// OptionsFrom maps the viewer configuration onto session options.
func OptionsFrom(v config.ViewerConfig) Options {
	return Options{DragThreshold: v.DragThresholdPx}
}

// Session is the 3D viewer state of one sample.
type Session struct {
	ID       string
	Sample   domain.Sample
	Camera   *projection.Camera
	Controls *projection.Controls
	Scene    *projection.Node
	Layer    *overlay.Layer
	Element  *input.Element
	Window   *input.Target
	Tracker  *projection.Tracker
	Guard    *projection.ClickGuard

	model       *mesh.Model
	modelNode   *projection.Node
	annotations *projection.Node
	axes        *projection.Node
	cmPerUnit   float64

	distance *measure3d.DistanceSession
	area     *measure3d.AreaSession
	results  []measure.Result

	pressed    bool
	button     int
	last       geom.Pt
	scaleLabel string
	offs       []func()
	event      func(string, map[string]any)
	log        *slog.Logger

	// OnRender runs in Tick after the camera settles and before popups
	// are resynchronised; hosts draw the scene here.
	OnRender func(*Session)
	// OnResult runs for every completed or updated measurement.
	OnResult func(measure.Result)
}

// New creates an empty scene with the camera at (0, 0, 5).
func New(s domain.Sample, opts Options) *Session {
	if opts.Window == nil {
		opts.Window = &input.Target{}
	}
	if opts.CmPerUnit <= 0 {
		opts.CmPerUnit = measure3d.DefaultCmPerUnit
	}
	if opts.Event == nil {
		opts.Event = telemetry.Event
	}
	l := opts.Log
	if l == nil {
		l = applog.WithComponent("viewer3d")
	}
	aspect := 1.0
	if opts.Viewport.H > 0 {
		aspect = opts.Viewport.W / opts.Viewport.H
	}
	cam := projection.NewCamera(aspect)
	id := uuid.NewString()
	ss := &Session{
		ID:          id,
		Sample:      s,
		Camera:      &cam,
		Scene:       projection.NewNode("scene"),
		Layer:       overlay.NewLayer(),
		Element:     input.NewElement(opts.Viewport, opts.Window),
		Window:      opts.Window,
		Guard:       projection.NewClickGuard(opts.DragThreshold),
		annotations: projection.NewNode("annotations"),
		axes:        axesNode(geom.Vec3{}),
		cmPerUnit:   opts.CmPerUnit,
		event:       opts.Event,
		log:         l.With(slog.String("session", id), slog.String("sample", s.Code)),
	}
	ss.Controls = projection.NewControls(ss.Camera)
	ss.Tracker = projection.NewTracker(ss.Layer)
	ss.Scene.Add(ss.annotations, ss.axes)
	ss.bindInput()
	return ss
}

// Open loads the sample's mesh and 3D annotations from src.
func Open(ctx context.Context, src catalog.Source, s domain.Sample, opts Options) (*Session, error) {
	ctx = applog.ContextWithSample(ctx, s.Code)
	m, err := LoadModel(ctx, src, s)
	if err != nil {
		return nil, err
	}
	ss := New(s, opts)
	ss.SetModel(m)
	ctx = applog.ContextWithSession(ctx, ss.ID)
	ss.RenderAnnotations(annotation.Load(ctx, src, s.Code, annotation.Viewer3D))
	return ss, nil
}

// LoadModel fetches and decodes the first mesh variant of s.
func LoadModel(ctx context.Context, src catalog.Source, s domain.Sample) (*mesh.Model, error) {
	var lastErr error
	for _, ext := range mesh.Extensions {
		ref := catalog.ModelRef(s, ext)
		rc, err := src.Open(ctx, ref)
		if errors.Is(err, catalog.ErrNotFound) {
			lastErr = err
			continue
		}
		if err != nil {
			return nil, err
		}
		m, err := mesh.Decode(ref, rc)
		_ = rc.Close()
		if err != nil {
			return nil, &catalog.AssetError{URL: ref, Err: err}
		}
		return m, nil
	}
	return nil, fmt.Errorf("model for %s: %w", s.Code, lastErr)
}

func axesNode(origin geom.Vec3) *projection.Node {
	n := projection.NewNode("axes")
	n.Segments = []projection.Segment{
		{A: origin, B: origin.Add(geom.V3(AxesLength, 0, 0))},
		{A: origin, B: origin.Add(geom.V3(0, AxesLength, 0))},
		{A: origin, B: origin.Add(geom.V3(0, 0, AxesLength))},
	}
	n.Style = axesStyle
	n.Hidden = true
	return n
}

// SetModel replaces the mesh, frames it and makes that pose the reset pose.
func (s *Session) SetModel(m *mesh.Model) {
	if s.modelNode != nil {
		s.Scene.Remove(s.modelNode)
	}
	s.model = m
	s.modelNode = m.Node()
	s.Scene.Add(s.modelNode)
	box := m.Bounds()
	s.Controls.Fit(box)
	hidden := s.axes.Hidden
	s.Scene.Remove(s.axes)
	s.axes = axesNode(box.Center())
	s.axes.Hidden = hidden
	s.Scene.Add(s.axes)
	s.event(telemetry.EventSampleLoaded, map[string]any{"viewer": annotation.Viewer3D})
	s.log.Info("model loaded", slog.String("model", m.Name), slog.Int("triangles", len(m.Triangles)))
}

// Model returns the loaded mesh, or nil.
func (s *Session) Model() *mesh.Model { return s.model }

// RenderAnnotations replaces the annotation nodes. Points become small
// spheres, zones horizontal polygons at the height of their first vertex.
func (s *Session) RenderAnnotations(anns []annotation.Annotation) (points, zones int) {
	s.Tracker.CloseAll()
	for _, c := range append([]*projection.Node(nil), s.annotations.Children...) {
		s.annotations.Remove(c)
	}
	for _, a := range anns {
		if a.Viewer != annotation.Viewer3D {
			continue
		}
		switch a.Type {
		case annotation.TypePoint:
			p, ok := a.Pos3D()
			if !ok {
				continue
			}
			s.annotations.Add(&projection.Node{
				Name:   "annotation-" + a.ID.String(),
				Sphere: &projection.Sphere{Center: p, Radius: AnnotationRadius},
				Style:  pointStyle,
				Data:   a,
			})
			points++
		case annotation.TypeZone:
			n, ok := zoneNode(a)
			if !ok {
				continue
			}
			s.annotations.Add(n)
			zones++
		}
	}
	return points, zones
}

func zoneNode(a annotation.Annotation) (*projection.Node, bool) {
	poly := a.Polygon3D()
	if len(poly) < 3 {
		return nil, false
	}
	y := poly[0].Y
	flat := make([]geom.Pt, len(poly))
	for i, p := range poly {
		flat[i] = geom.P(p.X, p.Z)
	}
	n := &projection.Node{Name: "annotation-zone-" + a.ID.String(), Style: zoneStyle, Data: a}
	for _, t := range geom.Triangulate(flat) {
		v := func(i int) geom.Vec3 { return geom.V3(flat[i].X, y, flat[i].Y) }
		n.Triangles = append(n.Triangles, projection.Triangle{A: v(t[0]), B: v(t[1]), C: v(t[2])})
	}
	return n, true
}

func (s *Session) viewport() geom.Size { return s.Element.Bounds().Size() }

// Pick returns the model point under the viewport pixel p.
func (s *Session) Pick(p geom.Pt) (geom.Vec3, bool) {
	if s.modelNode == nil {
		return geom.Vec3{}, false
	}
	vp := s.viewport()
	ray, err := s.Camera.Ray(projection.NDC(p.X, p.Y, vp.W, vp.H))
	if err != nil {
		return geom.Vec3{}, false
	}
	hits := s.modelNode.Intersect(ray, true)
	if len(hits) == 0 {
		return geom.Vec3{}, false
	}
	return hits[0].Point, true
}

// Project maps a world point to viewport pixels.
func (s *Session) Project(w geom.Vec3) (geom.Pt, bool) {
	ndc, ok := s.Camera.Project(w)
	if !ok {
		return geom.Pt{}, false
	}
	vp := s.viewport()
	return projection.ToPixels(geom.P(ndc.X, ndc.Y), vp.W, vp.H), true
}

// PickAnnotation returns the nearest annotation along the ray through p
// and the world point where it was hit.
func (s *Session) PickAnnotation(p geom.Pt) (annotation.Annotation, geom.Vec3, bool) {
	vp := s.viewport()
	ray, err := s.Camera.Ray(projection.NDC(p.X, p.Y, vp.W, vp.H))
	if err != nil {
		return annotation.Annotation{}, geom.Vec3{}, false
	}
	hit, data, ok := projection.FirstWithData(s.annotations.Intersect(ray, true))
	if !ok {
		return annotation.Annotation{}, geom.Vec3{}, false
	}
	a, ok := data.(annotation.Annotation)
	return a, hit.Point, ok
}

func (s *Session) bindInput() {
	el, w := s.Element, s.Window
	s.offs = append(s.offs,
		el.On(input.Down, func(ev input.Event) {
			s.Guard.Down(ev.Client)
			s.pressed, s.button, s.last = true, ev.Button, ev.Client
		}),
		el.On(input.Wheel, func(ev input.Event) { s.Controls.Zoom(ev.DeltaY * WheelZoomFactor) }),
		w.On(input.Move, func(ev input.Event) {
			s.Guard.Move(ev.Client)
			if !s.pressed {
				return
			}
			d := ev.Client.Sub(s.last)
			s.last = ev.Client
			h := s.viewport().H
			if s.button == 2 {
				s.Controls.Pan(d.X, d.Y, h)
				return
			}
			s.Controls.Rotate(d.X, d.Y, h)
		}),
		w.On(input.Up, func(ev input.Event) {
			if s.pressed {
				s.Guard.Up(ev.Client)
			}
			s.pressed = false
		}),
	)
}

// Dispatch routes a pointer event. A click that is not a drag closes the
// popup under it, or opens the popup of the annotation it hits; the
// measurement tools see neither.
func (s *Session) Dispatch(ev input.Event) {
	if ev.Kind == input.Click && s.Element.Bounds().Contains(ev.Client) && !s.Guard.Dragging() {
		p := ev.Client.Sub(s.Element.Bounds().Min())
		if s.Layer.ClosePopupAt(p, nil) {
			s.log.Debug("popup closed")
			return
		}
		if a, hit, ok := s.PickAnnotation(p); ok {
			if s.Tracker.Open(a, hit) {
				s.log.Info("annotation opened", slog.String("id", a.ID.String()))
				s.event(telemetry.EventAnnotationOpened, map[string]any{"viewer": annotation.Viewer3D, "type": a.Type})
			}
			s.Tracker.Resync(*s.Camera, s.viewport())
			return
		}
	}
	s.Element.Route(ev)
}

// Tick advances the camera by dt seconds, refreshes the scale label, runs
// OnRender and moves every tracked popup to its anchor.
func (s *Session) Tick(dt float64) {
	s.Controls.Update(dt)
	if s.model != nil {
		_, s.scaleLabel = projection.ScaleBar(*s.Camera, s.model.Bounds().Center(), s.viewport().H, projection.ScaleBarPx)
	}
	if s.OnRender != nil {
		s.OnRender(s)
	}
	s.Tracker.Resync(*s.Camera, s.viewport())
	if s.distance != nil {
		s.distance.Resync()
	}
	if s.area != nil {
		s.area.Resync()
	}
}

// ScaleLabel is the scale bar label computed by the last Tick.
func (s *Session) ScaleLabel() string { return s.scaleLabel }

// Resize updates the canvas rectangle and the camera aspect.
func (s *Session) Resize(vp geom.Rect) {
	s.Element.SetBounds(vp)
	if vp.H > 0 {
		s.Camera.Aspect = vp.W / vp.H
	}
}

func (s *Session) env() measure3d.Env {
	return measure3d.Env{
		Layer:     s.Layer,
		Scene:     s.Scene,
		Element:   s.Element,
		Guard:     s.Guard,
		Picker:    s,
		CmPerUnit: s.cmPerUnit,
		OnResult:  s.record,
		Log:       s.log,
	}
}

// ToggleDistance starts a fresh distance measurement, or stops the one in
// progress. Starting clears the previous result.
func (s *Session) ToggleDistance() bool {
	running := s.distance != nil && s.distance.Active()
	measure3d.DisableDistance(s.distance)
	s.distance = nil
	if running {
		return false
	}
	s.distance = measure3d.EnableDistance(s.env())
	return true
}

// ToggleArea switches the area tool; switching off clears the polygon.
func (s *Session) ToggleArea() bool {
	if s.area != nil {
		measure3d.DisableArea(s.area)
		s.area = nil
		return false
	}
	s.area = measure3d.EnableArea(s.env())
	return true
}

func (s *Session) record(r measure.Result) {
	s.results = append(s.results, r)
	s.event(telemetry.EventMeasurementDone, map[string]any{"viewer": annotation.Viewer3D, "tool": r.Tool})
	if s.OnResult != nil {
		s.OnResult(r)
	}
}

// Results returns the measurement results reported so far.
func (s *Session) Results() []measure.Result { return append([]measure.Result(nil), s.results...) }

// ToggleAnnotations hides or shows annotation nodes, popups and leader lines.
func (s *Session) ToggleAnnotations() bool {
	v := !s.Tracker.Visible()
	s.annotations.Hidden = !v
	s.Tracker.SetVisible(v)
	return v
}

// ToggleAxes shows or hides the axes helper at the model centre.
func (s *Session) ToggleAxes() bool {
	s.axes.Hidden = !s.axes.Hidden
	return !s.axes.Hidden
}

// ToggleAutoRotate flips camera auto-rotation.
func (s *Session) ToggleAutoRotate() bool {
	s.Controls.AutoRotate = !s.Controls.AutoRotate
	return s.Controls.AutoRotate
}

func (s *Session) ResetView() { s.Controls.Reset() }
func (s *Session) ZoomIn()    { s.Controls.ZoomIn() }
func (s *Session) ZoomOut()   { s.Controls.ZoomOut() }

// SetView moves to a preset view of the model. Without a model it is a no-op.
func (s *Session) SetView(view string) error {
	if s.model == nil {
		return nil
	}
	return s.Controls.SetView(view, s.model.Bounds())
}

// Snapshot returns the overlay (popups) in viewport pixels.
func (s *Session) Snapshot() []overlay.Drawable { return s.Layer.Snapshot(nil) }

// Segments returns every visible segment in the scene projected to
// viewport pixels: measurement lines, axes and leader lines.
func (s *Session) Segments() [][2]geom.Pt {
	var out [][2]geom.Pt
	add := func(a, b geom.Vec3) {
		pa, ok1 := s.Project(a)
		pb, ok2 := s.Project(b)
		if ok1 && ok2 && !math.IsNaN(pa.X) && !math.IsNaN(pb.X) {
			out = append(out, [2]geom.Pt{pa, pb})
		}
	}
	var visit func(n *projection.Node)
	visit = func(n *projection.Node) {
		if n.Hidden {
			return
		}
		for _, sg := range n.Segments {
			add(sg.A, sg.B)
		}
		for _, c := range n.Children {
			visit(c)
		}
	}
	visit(s.Scene)
	for _, ln := range s.Tracker.Lines() {
		add(ln.From, ln.To)
	}
	return out
}

// Close unbinds every listener and drops tools, popups and the scene.
func (s *Session) Close() {
	measure3d.DisableDistance(s.distance)
	measure3d.DisableArea(s.area)
	s.distance, s.area = nil, nil
	for _, off := range s.offs {
		off()
	}
	s.offs = nil
	s.Tracker.CloseAll()
	s.Layer.Clear()
	s.Scene.Children = nil
}
