/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package measure implements the 2D measurement tools of the thin-section
// viewer: distance, angle and polygon area. Each tool is a phase machine
// living in a session returned by its Enable function; Disable consumes the
// session, unbinds every listener it registered and removes every overlay
// item it created, so enabling again starts from a clean state.
package measure

import (
	"log/slog"

	"github.com/google/uuid"

	"rockviewer/internal/calibration"
	"rockviewer/internal/geom"
	"rockviewer/internal/input"
	applog "rockviewer/internal/log"
	"rockviewer/internal/overlay"
	"rockviewer/internal/transform"
)

// Screen-space sizes shared by the tools.
const (
	MarkerRadius   = 4
	ArcRadius      = 40 // image px
	CloseRadiusPx  = 10
	popupW, popupH = 90, 28
)

// View exposes the current transform. panzoom.Controller implements it.
type View interface {
	State() transform.Transform2D
}

// Env is what a tool needs from its viewer session.
type Env struct {
	Layer   *overlay.Layer
	Element *input.Element
	View    View
	Factor  calibration.Factor
	// OnResult, when set, receives each completed measurement.
	OnResult func(Result)
	// OnEnd, when set, runs after a tool ends itself by closing its popup.
	OnEnd func()
	Log   *slog.Logger
}

// Result is a completed measurement.
type Result struct {
	ID     string
	Tool   string // "distance", "angle", "area"
	Value  float64
	Unit   string // "cm", "deg", "cm2"
	Text   string
	Points []geom.Pt
}

// base carries the bookkeeping common to all tools.
type base struct {
	env    Env
	id     string
	offs   []func()
	active bool
	log    *slog.Logger
}

func newBase(env Env, tool string) base {
	l := env.Log
	if l == nil {
		l = applog.WithComponent("measure")
	}
	return base{env: env, id: uuid.NewString(), active: true, log: l.With(slog.String("tool", tool))}
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

func (b *base) transform() transform.Transform2D { return b.env.View.State() }

func (b *base) toImage(ev input.Event) geom.Pt {
	return transform.ToImageSpace(ev.Client, b.env.Element.Bounds(), b.transform())
}

func (b *base) marker(p geom.Pt, st overlay.Style) overlay.Handle {
	return b.env.Layer.AddMarker(overlay.ImageSpace, p, MarkerRadius, st)
}

func (b *base) openPopup(anchor geom.Pt, text string, onClose func()) overlay.Handle {
	h := b.env.Layer.AddPopup(overlay.ImageSpace, anchor, geom.Size{W: popupW, H: popupH}, text, onClose)
	h.SetClass("ts-popup")
	return h
}

func (b *base) ended() {
	if b.env.OnEnd != nil {
		b.env.OnEnd()
	}
}

func (b *base) emit(r Result) {
	r.ID = b.id
	b.log.Info("measurement completed", slog.String("id", r.ID), slog.String("value", r.Text))
	if b.env.OnResult != nil {
		b.env.OnResult(r)
	}
}

// ListenerCount is the number of listeners a session currently holds.
func (b *base) ListenerCount() int { return len(b.offs) }

// Active reports whether the session still reacts to input.
func (b *base) Active() bool { return b.active }

// ID is the session id carried in results.
func (b *base) ID() string { return b.id }

func removeAll(hs ...*overlay.Handle) {
	for _, h := range hs {
		h.Remove()
		*h = overlay.Handle{}
	}
}
