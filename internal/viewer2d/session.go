/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package viewer2d assembles the thin-section viewer: one Session per opened
// sample owns the pan/zoom controller, the overlay layer, the annotation
// scene, the active measurement tool and the magnifier. Hosts feed pointer
// events through Session.Dispatch and draw Session.Snapshot.
package viewer2d

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"rockviewer/internal/annotation"
	"rockviewer/internal/calibration"
	"rockviewer/internal/catalog"
	"rockviewer/internal/config"
	"rockviewer/internal/domain"
	"rockviewer/internal/geom"
	"rockviewer/internal/input"
	applog "rockviewer/internal/log"
	"rockviewer/internal/magnifier"
	"rockviewer/internal/measure"
	"rockviewer/internal/overlay"
	"rockviewer/internal/panzoom"
	"rockviewer/internal/telemetry"
	"rockviewer/internal/transform"
	"rockviewer/internal/undo"
)

// DefaultReferenceWidthCm is used when neither the sample nor the options
// give a physical width.
const DefaultReferenceWidthCm = 2.5

// ScaleBarPx is the on-screen length of the scale bar.
const ScaleBarPx = 100

// ErrNoImage is returned by Open when no thin-section variant exists.
var ErrNoImage = errors.New("no thin section image")

// Tool selects the measurement tool bound to the element.
type Tool string

const (
	ToolNone     Tool = ""
	ToolDistance Tool = "distance"
	ToolAngle    Tool = "angle"
	ToolArea     Tool = "area"
)

// ParseTool maps a tool name; unknown names are an error.
func ParseTool(s string) (Tool, error) {
	switch t := Tool(s); t {
	case ToolNone, ToolDistance, ToolAngle, ToolArea:
		return t, nil
	}
	return ToolNone, fmt.Errorf("unknown tool %q", s)
}

// Options configures a Session. Zero values select defaults.
type Options struct {
	// Viewport is the element's client rectangle.
	Viewport    geom.Rect
	Window      *input.Target
	Limits      transform.Limits
	WheelFactor float64
	PopupMargin float64
	History     *undo.Manager
	// ReferenceWidthCm is the fallback physical width of the sample.
	ReferenceWidthCm float64
	// NaturalWidth stands in for the image width when no image is given.
	NaturalWidth int
	Magnifier    magnifier.Options
	// Event sends telemetry; telemetry.Event when nil.
	Event func(name string, props map[string]any)
	Log   *slog.Logger
}

// OptionsFrom maps the viewer configuration onto session options. Viewport
// and the event sink are left to the caller.
func OptionsFrom(v config.ViewerConfig) Options {
	return Options{
		Limits:           transform.Limits{Min: v.MinScale, Max: v.MaxScale},
		WheelFactor:      v.WheelFactor,
		PopupMargin:      v.PopupMargin,
		History:          undo.NewManager(undo.Config{}),
		ReferenceWidthCm: v.ReferenceWidthCm,
		Magnifier:        magnifier.Options{Size: v.MagnifierSize, Zoom: v.MagnifierZoom},
	}
}

// Session is the 2D viewer state of one sample.
type Session struct {
	ID     string
	Sample domain.Sample
	Image  image.Image

	View        *panzoom.Controller
	Layer       *overlay.Layer
	Element     *input.Element
	Window      *input.Target
	Annotations *annotation.Scene2D
	Factor      calibration.Factor

	mu       sync.Mutex
	natural  geom.Size
	tool     Tool
	distance *measure.DistanceSession
	angle    *measure.AngleSession
	area     *measure.AreaSession
	results  []measure.Result
	loupe    *magnifier.Loupe
	loupeOn  bool
	frame    magnifier.Frame
	offs     []func()
	event    func(string, map[string]any)
	log      *slog.Logger

	// OnResult runs for every completed measurement.
	OnResult func(measure.Result)
	// OnFrame receives each rendered magnifier frame.
	OnFrame func(magnifier.Frame)
	// OnChange runs after every transform change, once popups are placed.
	OnChange func(transform.Transform2D)
}

// New builds a session for s showing img. img may be nil for headless use,
// in which case opts.NaturalWidth sets the calibration.
func New(s domain.Sample, img image.Image, opts Options) (*Session, error) {
	natural := geom.Size{W: float64(opts.NaturalWidth)}
	if img != nil {
		b := img.Bounds()
		natural = geom.Size{W: float64(b.Dx()), H: float64(b.Dy())}
	}
	refCm := s.ReferenceWidthCm
	if refCm <= 0 {
		refCm = opts.ReferenceWidthCm
	}
	if refCm <= 0 {
		refCm = DefaultReferenceWidthCm
	}
	factor, err := calibration.NewFactor(refCm, int(natural.W))
	if err != nil {
		return nil, fmt.Errorf("calibrate %s: %w", s.Code, err)
	}
	if opts.Window == nil {
		opts.Window = &input.Target{}
	}
	if opts.PopupMargin <= 0 {
		opts.PopupMargin = annotation.DefaultMargin
	}
	if opts.Event == nil {
		opts.Event = telemetry.Event
	}
	l := opts.Log
	if l == nil {
		l = applog.WithComponent("viewer2d")
	}
	id := uuid.NewString()
	ss := &Session{
		ID:      id,
		Sample:  s,
		Image:   img,
		Layer:   overlay.NewLayer(),
		Element: input.NewElement(opts.Viewport, opts.Window),
		Window:  opts.Window,
		Factor:  factor,
		natural: natural,
		event:   opts.Event,
		log:     l.With(slog.String("session", id), slog.String("sample", s.Code)),
	}
	ss.View = panzoom.New(panzoom.Options{
		Limits:      opts.Limits,
		WheelFactor: opts.WheelFactor,
		History:     opts.History,
		Sample:      s.Code,
	})
	ss.View.Attach(ss.Element)
	ss.Annotations = annotation.NewScene2D(ss.Layer, opts.PopupMargin)
	ss.Annotations.OnOpen = func(a annotation.Annotation) {
		ss.event(telemetry.EventAnnotationOpened, map[string]any{"viewer": annotation.Viewer2D, "type": a.Type})
	}
	if img != nil {
		ss.loupe = magnifier.New(img, opts.Magnifier)
	}
	ss.offs = append(ss.offs,
		ss.View.OnChange(ss.onTransform),
		ss.Element.On(input.Move, ss.onMove),
	)
	ss.event(telemetry.EventSampleLoaded, map[string]any{"viewer": annotation.Viewer2D})
	ss.log.Info("sample opened", slog.Float64("factor_cm_per_px", float64(factor)))
	return ss, nil
}

// Open probes and decodes the sample image from src, then loads the 2D
// annotations. Missing annotations leave the scene empty.
func Open(ctx context.Context, src catalog.Source, s domain.Sample, opts Options) (*Session, error) {
	ctx = applog.ContextWithSample(ctx, s.Code)
	ref, err := src.ProbeImage(ctx, s)
	if errors.Is(err, catalog.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", s.Code, ErrNoImage)
	}
	if err != nil {
		return nil, err
	}
	img, _, err := catalog.LoadImage(ctx, src, ref)
	if err != nil {
		return nil, err
	}
	ss, err := New(s, img, opts)
	if err != nil {
		return nil, err
	}
	ctx = applog.ContextWithSession(ctx, ss.ID)
	ss.Render(annotation.Load(ctx, src, s.Code, annotation.Viewer2D))
	return ss, nil
}

// Render replaces the annotation scene.
func (s *Session) Render(anns []annotation.Annotation) (points, zones int) {
	points, zones = s.Annotations.Render(anns)
	s.log.Debug("annotations rendered", slog.Int("points", points), slog.Int("zones", zones))
	return points, zones
}

// Container is the viewport-relative rectangle popups are clamped to.
func (s *Session) Container() geom.Rect {
	b := s.Element.Bounds()
	return geom.R(0, 0, b.W, b.H)
}

// NaturalSize is the image size in image pixels.
func (s *Session) NaturalSize() geom.Size { return s.natural }

// ImageRect is the on-screen (client) rectangle of the transformed image.
func (s *Session) ImageRect() geom.Rect {
	t := s.View.State()
	b := s.Element.Bounds()
	return geom.R(b.X+t.Translate.X, b.Y+t.Translate.Y, s.natural.W*t.Scale, s.natural.H*t.Scale)
}

// Dispatch routes a pointer event. A click on a popup closes it; a click on
// an annotation opens its popup. Neither is seen by the measurement tool.
func (s *Session) Dispatch(ev input.Event) {
	if ev.Kind == input.Click && s.Element.Bounds().Contains(ev.Client) {
		b := s.Element.Bounds()
		if s.Layer.ClosePopupAt(ev.Client.Sub(b.Min()), s.View.State()) {
			s.log.Debug("popup closed")
			return
		}
		if s.Annotations.HandleClick(ev.Client.Sub(b.Min()), s.View.State(), s.Container()) {
			return
		}
	}
	s.Element.Route(ev)
}

// Resize updates the element bounds and re-places popups.
func (s *Session) Resize(viewport geom.Rect) {
	s.Element.SetBounds(viewport)
	s.Annotations.Reposition(s.View.State(), s.Container())
}

func (s *Session) onTransform(t transform.Transform2D) {
	s.Annotations.Reposition(t, s.Container())
	s.mu.Lock()
	on, l := s.loupeOn, s.loupe
	s.mu.Unlock()
	if on && l != nil {
		if f, ok := l.Redraw(s.ImageRect(), t.Scale); ok {
			s.deliver(f)
		}
	}
	if s.OnChange != nil {
		s.OnChange(t)
	}
}

func (s *Session) onMove(ev input.Event) {
	s.mu.Lock()
	on, l := s.loupeOn, s.loupe
	s.mu.Unlock()
	if !on || l == nil {
		return
	}
	if f, ok := l.Move(ev.Client, s.ImageRect(), s.View.State().Scale); ok {
		s.deliver(f)
	}
}

func (s *Session) deliver(f magnifier.Frame) {
	s.mu.Lock()
	s.frame = f
	s.mu.Unlock()
	if s.OnFrame != nil {
		s.OnFrame(f)
	}
}

// ToggleMagnifier switches the loupe and returns its new state. Without an
// image the loupe stays off.
func (s *Session) ToggleMagnifier() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loupe == nil {
		return false
	}
	s.loupeOn = !s.loupeOn
	if !s.loupeOn {
		s.frame = magnifier.Frame{}
	}
	return s.loupeOn
}

// MagnifierFrame is the last rendered loupe frame.
func (s *Session) MagnifierFrame() (magnifier.Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame, s.frame.Image != nil
}

// ToggleAnnotations hides or shows the annotation scene.
func (s *Session) ToggleAnnotations() bool { return s.Annotations.Toggle() }

// ResetView returns to scale 1 at the origin.
func (s *Session) ResetView() { s.View.Reset() }

// ScaleBar returns the label of a ScaleBarPx bar at the current zoom.
func (s *Session) ScaleBar() string {
	return calibration.FormatLength(s.Factor.ScaleBarLength(ScaleBarPx, s.View.State().Scale))
}

// Tool returns the active tool.
func (s *Session) Tool() Tool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tool
}

// SetTool disables the current tool and enables t. Selecting the active
// tool again restarts it with a clean state.
func (s *Session) SetTool(t Tool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disableLocked()
	env := measure.Env{
		Layer:    s.Layer,
		Element:  s.Element,
		View:     s.View,
		Factor:   s.Factor,
		OnResult: s.record,
		OnEnd:    func() { s.toolEnded(t) },
		Log:      s.log,
	}
	switch t {
	case ToolDistance:
		s.distance = measure.EnableDistance(env)
	case ToolAngle:
		s.angle = measure.EnableAngle(env)
	case ToolArea:
		s.area = measure.EnableArea(env)
	}
	s.tool = t
	s.log.Debug("tool selected", slog.String("tool", string(t)))
}

// toolEnded drops t when its session closed itself, so Tool reports none.
func (s *Session) toolEnded(t Tool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tool != t {
		return
	}
	if (s.angle != nil && s.angle.Active()) || (s.area != nil && s.area.Active()) {
		return
	}
	s.angle, s.area = nil, nil
	s.tool = ToolNone
	s.log.Debug("tool ended", slog.String("tool", string(t)))
}

// CancelTool disables the active tool.
func (s *Session) CancelTool() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disableLocked()
}

func (s *Session) disableLocked() {
	measure.DisableDistance(s.distance)
	measure.DisableAngle(s.angle)
	measure.DisableArea(s.area)
	s.distance, s.angle, s.area = nil, nil, nil
	s.tool = ToolNone
}

func (s *Session) record(r measure.Result) {
	s.mu.Lock()
	s.results = append(s.results, r)
	s.mu.Unlock()
	s.event(telemetry.EventMeasurementDone, map[string]any{"viewer": annotation.Viewer2D, "tool": r.Tool})
	if s.OnResult != nil {
		s.OnResult(r)
	}
}

// Results returns the measurements completed so far.
func (s *Session) Results() []measure.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]measure.Result(nil), s.results...)
}

// ClosePopups closes every annotation popup and every measurement popup.
func (s *Session) ClosePopups() {
	s.Annotations.Registry().CloseAll()
	for _, d := range s.Snapshot() {
		if d.Kind == overlay.Popup {
			s.Layer.ClosePopup(d.ID)
		}
	}
}

// ClosePopupAt closes the popup under the viewport point p.
func (s *Session) ClosePopupAt(p geom.Pt) bool { return s.Layer.ClosePopupAt(p, s.View.State()) }

// Snapshot resolves the overlay to viewport coordinates for drawing.
func (s *Session) Snapshot() []overlay.Drawable { return s.Layer.Snapshot(s.View.State()) }

// Close releases every listener, tool and overlay item of the session.
func (s *Session) Close() {
	s.mu.Lock()
	s.disableLocked()
	offs := s.offs
	s.offs = nil
	s.loupeOn = false
	s.mu.Unlock()
	for _, off := range offs {
		off()
	}
	s.View.Detach()
	s.Annotations.Clear()
	s.Layer.Clear()
	s.log.Debug("session closed")
}
