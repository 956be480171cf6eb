/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package panzoom binds wheel and drag input to a Transform2D.
//
// Zoom keeps the image point under the cursor stationary. Pan adds the
// incremental pointer delta to the translation; the drag starts on the element
// but move and up are bound on the window, so releasing the button outside
// the element still ends the drag.
package panzoom

import (
	"log/slog"
	"sync"
	"time"

	"rockviewer/internal/geom"
	"rockviewer/internal/input"
	applog "rockviewer/internal/log"
	"rockviewer/internal/transform"
	"rockviewer/internal/undo"
)

// DefaultWheelFactor converts wheel deltaY into a scale delta.
const DefaultWheelFactor = 0.001

// Options configures a Controller. Zero values select defaults.
type Options struct {
	Limits      transform.Limits
	WheelFactor float64
	// History, when set, records each view under Sample so Back/Forward work.
	History *undo.Manager
	Sample  string
	// Clock is used for history timestamps; time.Now when nil.
	Clock func() time.Time
}

// Controller is the only writer of its transform.
type Controller struct {
	mu        sync.Mutex
	t         transform.Transform2D
	opts      Options
	el        *input.Element
	offs      []func()
	dragging  bool
	dragStart geom.Pt
	nextID    int
	listeners []listener
	log       *slog.Logger
}

type listener struct {
	id int
	fn func(transform.Transform2D)
}

// New returns a controller starting at the identity transform.
func New(opts Options) *Controller {
	if opts.Limits.Max <= 0 || opts.Limits.Min <= 0 {
		opts.Limits = transform.DefaultLimits
	}
	if opts.WheelFactor == 0 {
		opts.WheelFactor = DefaultWheelFactor
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	c := &Controller{t: transform.Identity(), opts: opts, log: applog.WithComponent("panzoom")}
	c.record()
	return c
}

// State returns a copy of the current transform.
func (c *Controller) State() transform.Transform2D {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

// Limits returns the scale limits in effect.
func (c *Controller) Limits() transform.Limits { return c.opts.Limits }

// OnChange registers fn to run after every mutation and returns an unbind func.
func (c *Controller) OnChange(fn func(transform.Transform2D)) (off func()) {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.listeners = append(c.listeners, listener{id: id, fn: fn})
	c.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			for i, l := range c.listeners {
				if l.id == id {
					c.listeners = append(c.listeners[:i:i], c.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// ZoomAt applies a scale delta around offset, the cursor position relative to
// the transformed element's origin (viewport offset minus translation). It
// reports whether the transform changed.
func (c *Controller) ZoomAt(delta float64, offset geom.Pt) bool {
	c.mu.Lock()
	old := c.t
	ns := c.opts.Limits.Clamp(old.Scale + delta)
	if ns == old.Scale {
		c.mu.Unlock()
		return false
	}
	c.t.Translate.X -= offset.X * (ns - old.Scale) / old.Scale
	c.t.Translate.Y -= offset.Y * (ns - old.Scale) / old.Scale
	c.t.Scale = ns
	c.mu.Unlock()
	c.changed()
	return true
}

// ZoomAtViewport zooms around a viewport-relative point.
func (c *Controller) ZoomAtViewport(delta float64, p geom.Pt) bool {
	return c.ZoomAt(delta, p.Sub(c.State().Translate))
}

// Wheel handles a wheel event given in client coordinates.
func (c *Controller) Wheel(client geom.Pt, deltaY float64, viewport geom.Rect) bool {
	return c.ZoomAtViewport(-deltaY*c.opts.WheelFactor, client.Sub(viewport.Min()))
}

// PanBy adds d to the translation.
func (c *Controller) PanBy(d geom.Pt) bool {
	if d.X == 0 && d.Y == 0 {
		return false
	}
	c.mu.Lock()
	c.t.Translate = c.t.Translate.Add(d)
	c.mu.Unlock()
	c.changed()
	return true
}

// Reset restores scale 1 and no translation.
func (c *Controller) Reset() {
	c.set(transform.Identity())
	c.log.Debug("view reset", slog.String("sample", c.opts.Sample))
}

// Set replaces the transform, clamping the scale.
func (c *Controller) Set(t transform.Transform2D) {
	t.Scale = c.opts.Limits.Clamp(t.Scale)
	c.set(t)
}

func (c *Controller) set(t transform.Transform2D) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
	c.changed()
}

// Back restores the previous recorded view. It reports false when there is none.
func (c *Controller) Back() bool {
	h := c.opts.History
	if h == nil {
		return false
	}
	if _, ok := h.Back(c.opts.Sample); !ok {
		return false
	}
	prev, ok := h.Peek(c.opts.Sample)
	if !ok {
		// nothing left to show; undo the pop
		h.Forward(c.opts.Sample)
		return false
	}
	c.apply(prev.View)
	return true
}

// Forward re-applies a view undone by Back.
func (c *Controller) Forward() bool {
	h := c.opts.History
	if h == nil {
		return false
	}
	s, ok := h.Forward(c.opts.Sample)
	if !ok {
		return false
	}
	c.apply(s.View)
	return true
}

func (c *Controller) apply(v undo.View) {
	c.mu.Lock()
	c.t = transform.Transform2D{Scale: v.Scale, Translate: geom.Pt{X: v.X, Y: v.Y}}
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) changed() {
	c.record()
	c.notify()
}

func (c *Controller) record() {
	if c.opts.History == nil {
		return
	}
	t := c.State()
	c.opts.History.Push(undo.Snapshot{
		Sample: c.opts.Sample,
		View:   undo.View{Scale: t.Scale, X: t.Translate.X, Y: t.Translate.Y},
		TS:     c.opts.Clock(),
	})
}

func (c *Controller) notify() {
	c.mu.Lock()
	t := c.t
	ls := append([]listener(nil), c.listeners...)
	c.mu.Unlock()
	for _, l := range ls {
		l.fn(t)
	}
}

// Attach binds wheel and mousedown on el and mousemove/mouseup on its window.
// Attaching again first detaches.
func (c *Controller) Attach(el *input.Element) {
	c.Detach()
	c.mu.Lock()
	c.el = el
	c.mu.Unlock()
	offs := []func(){
		el.On(input.Wheel, func(ev input.Event) { c.Wheel(ev.Client, ev.DeltaY, el.Bounds()) }),
		el.On(input.Down, func(ev input.Event) {
			c.mu.Lock()
			c.dragging = true
			c.dragStart = ev.Client
			c.mu.Unlock()
		}),
	}
	if w := el.Window(); w != nil {
		offs = append(offs,
			w.On(input.Up, func(input.Event) {
				c.mu.Lock()
				c.dragging = false
				c.mu.Unlock()
			}),
			w.On(input.Move, func(ev input.Event) {
				c.mu.Lock()
				if !c.dragging {
					c.mu.Unlock()
					return
				}
				d := ev.Client.Sub(c.dragStart)
				c.dragStart = ev.Client
				c.mu.Unlock()
				c.PanBy(d)
			}),
		)
	}
	c.mu.Lock()
	c.offs = offs
	c.mu.Unlock()
}

// Detach removes every listener bound by Attach.
func (c *Controller) Detach() {
	c.mu.Lock()
	offs := c.offs
	c.offs = nil
	c.el = nil
	c.dragging = false
	c.mu.Unlock()
	for _, off := range offs {
		off()
	}
}

// Dragging reports whether a pan drag is in progress.
func (c *Controller) Dragging() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dragging
}
