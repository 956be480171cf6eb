/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package measure3d implements distance and surface measurement on the 3D
// model. Points come from ray picks against the model; drags that orbit the
// camera never place points.
package measure3d

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"rockviewer/internal/geom"
	"rockviewer/internal/input"
	applog "rockviewer/internal/log"
	"rockviewer/internal/measure"
	"rockviewer/internal/overlay"
	"rockviewer/internal/projection"
)

// Marker radii in world units and the lift applied to the area polygon so
// it does not z-fight with the surface.
const (
	MarkerRadius     = 0.001
	AreaLift         = 0.001
	DefaultCmPerUnit = 100
	popupW, popupH   = 110, 28
)

var (
	distanceStyle = overlay.Style{Stroke: overlay.Red, Fill: overlay.Red, Width: 3}
	areaStyle     = overlay.Style{Stroke: overlay.Color{G: 170, A: 255}, Fill: overlay.Color{G: 170, A: 77}}
	areaMarker    = overlay.Style{Stroke: overlay.Color{G: 170, A: 255}, Fill: overlay.Color{G: 170, A: 255}}
)

// Picker resolves viewport pixels against the model and projects world
// points back. viewer3d.Session implements it.
type Picker interface {
	Pick(viewport geom.Pt) (geom.Vec3, bool)
	Project(world geom.Vec3) (geom.Pt, bool)
}

// Env is what a 3D tool needs from its viewer session.
type Env struct {
	Layer   *overlay.Layer
	Scene   *projection.Node
	Element *input.Element
	Guard   *projection.ClickGuard
	Picker  Picker
	// CmPerUnit converts world units to cm; zero means DefaultCmPerUnit.
	CmPerUnit float64
	OnResult  func(measure.Result)
	Log       *slog.Logger
}

type base struct {
	env    Env
	id     string
	offs   []func()
	active bool
	group  *projection.Node
	log    *slog.Logger
}

func newBase(env Env, tool string) base {
	l := env.Log
	if l == nil {
		l = applog.WithComponent("measure")
	}
	if env.CmPerUnit <= 0 {
		env.CmPerUnit = DefaultCmPerUnit
	}
	id := uuid.NewString()
	g := projection.NewNode("measure3d:" + tool + ":" + id)
	if env.Scene != nil {
		env.Scene.Add(g)
	}
	return base{env: env, id: id, active: true, group: g, log: l.With(slog.String("tool", tool+"3d"))}
}

func (b *base) bind(kind input.Kind, fn input.Handler) {
	b.offs = append(b.offs, b.env.Element.On(kind, fn))
}

func (b *base) unbind() {
	for _, off := range b.offs {
		off()
	}
	b.offs = nil
}

// pick returns the model point under a click, or false for drags and misses.
func (b *base) pick(ev input.Event) (geom.Vec3, bool) {
	if !b.active {
		return geom.Vec3{}, false
	}
	if b.env.Guard != nil && b.env.Guard.Dragging() {
		return geom.Vec3{}, false
	}
	return b.env.Picker.Pick(ev.Client.Sub(b.env.Element.Bounds().Min()))
}

func (b *base) marker(p geom.Vec3, st overlay.Style) *projection.Node {
	n := &projection.Node{Name: "marker", Sphere: &projection.Sphere{Center: p, Radius: MarkerRadius}, Style: st}
	b.group.Add(n)
	return n
}

func (b *base) openPopup(anchor geom.Vec3, text string, onClose func()) overlay.Handle {
	s, _ := b.env.Picker.Project(anchor)
	h := b.env.Layer.AddPopup(overlay.ScreenSpace, s, geom.Size{W: popupW, H: popupH}, text, onClose)
	h.SetClass("anno-popup")
	return h
}

func (b *base) movePopup(h overlay.Handle, anchor geom.Vec3) {
	if !h.Alive() {
		return
	}
	if s, ok := b.env.Picker.Project(anchor); ok {
		h.Move(s)
	}
}

func (b *base) clearGroup() {
	for _, c := range append([]*projection.Node(nil), b.group.Children...) {
		b.group.Remove(c)
	}
}

func (b *base) detach() {
	if p := b.group.Parent(); p != nil {
		p.Remove(b.group)
	}
}

func (b *base) emit(r measure.Result) {
	r.ID = b.id
	b.log.Info("measurement completed", slog.String("id", r.ID), slog.String("value", r.Text))
	if b.env.OnResult != nil {
		b.env.OnResult(r)
	}
}

func (b *base) Active() bool { return b.active }

func (b *base) ID() string { return b.id }

func (b *base) ListenerCount() int { return len(b.offs) }

// Artifacts is the number of scene nodes the session currently shows.
func (b *base) Artifacts() int { return len(b.group.Children) }

// FormatCm renders a 3D length.
func FormatCm(cm float64) string { return fmt.Sprintf("%.1f cm", cm) }

// FormatSurface renders a 3D area.
func FormatSurface(cm2 float64) string { return fmt.Sprintf("Surface : %.1f cm²", cm2) }
