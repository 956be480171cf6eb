/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package input is the pointer event plumbing of the viewers: targets that
// handlers bind to and unbind from, and elements whose events bubble to the
// window target. Listener counts are observable so tools can be checked for
// leaks after teardown.
package input

import (
	"sync"

	"rockviewer/internal/geom"
)

// Kind identifies a pointer event type.
type Kind uint8

const (
	Click Kind = iota
	Move
	Down
	Up
	Wheel
	Leave
)

func (k Kind) String() string {
	switch k {
	case Click:
		return "click"
	case Move:
		return "mousemove"
	case Down:
		return "mousedown"
	case Up:
		return "mouseup"
	case Wheel:
		return "wheel"
	case Leave:
		return "mouseleave"
	default:
		return "unknown"
	}
}

// Event is a pointer event in client coordinates.
type Event struct {
	Kind   Kind
	Client geom.Pt
	// DeltaY is the wheel delta; positive scrolls down (zooms out).
	DeltaY float64
	Button int
}

// Handler receives events.
type Handler func(Event)

type entry struct {
	id int
	fn Handler
}

// Target holds handlers per event kind. The zero value is ready to use.
type Target struct {
	mu       sync.Mutex
	next     int
	handlers map[Kind][]entry
}

// On binds fn to kind and returns a function that unbinds it. Calling the
// returned function more than once is a no-op.
func (t *Target) On(kind Kind, fn Handler) (off func()) {
	t.mu.Lock()
	if t.handlers == nil {
		t.handlers = make(map[Kind][]entry)
	}
	t.next++
	id := t.next
	t.handlers[kind] = append(t.handlers[kind], entry{id: id, fn: fn})
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { t.remove(kind, id) })
	}
}

func (t *Target) remove(kind Kind, id int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	hs := t.handlers[kind]
	for i, e := range hs {
		if e.id == id {
			t.handlers[kind] = append(hs[:i:i], hs[i+1:]...)
			break
		}
	}
	if len(t.handlers[kind]) == 0 {
		delete(t.handlers, kind)
	}
}

// Dispatch delivers ev to the handlers bound when dispatch starts, in bind
// order. Handlers may bind or unbind during dispatch.
func (t *Target) Dispatch(ev Event) {
	t.mu.Lock()
	hs := append([]entry(nil), t.handlers[ev.Kind]...)
	t.mu.Unlock()
	for _, e := range hs {
		e.fn(ev)
	}
}

// ListenerCount returns the number of bound handlers for the given kinds,
// or for all kinds when none are given.
func (t *Target) ListenerCount(kinds ...Kind) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(kinds) == 0 {
		n := 0
		for _, hs := range t.handlers {
			n += len(hs)
		}
		return n
	}
	n := 0
	for _, k := range kinds {
		n += len(t.handlers[k])
	}
	return n
}

// Element is a rectangular interaction layer inside a window. Events
// dispatched on it reach its own handlers first and then bubble to the window.
type Element struct {
	Target
	mu     sync.RWMutex
	bounds geom.Rect
	window *Target
}

// NewElement creates an element with client-space bounds inside window.
// window may be nil for a detached element.
func NewElement(bounds geom.Rect, window *Target) *Element {
	return &Element{bounds: bounds, window: window}
}

// Bounds returns the element's bounding rectangle in client coordinates.
func (e *Element) Bounds() geom.Rect {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.bounds
}

// SetBounds updates the bounding rectangle, e.g. after a window resize.
func (e *Element) SetBounds(r geom.Rect) {
	e.mu.Lock()
	e.bounds = r
	e.mu.Unlock()
}

// Window returns the window target events bubble to.
func (e *Element) Window() *Target { return e.window }

// Dispatch delivers ev to the element and then to its window.
func (e *Element) Dispatch(ev Event) {
	e.Target.Dispatch(ev)
	if e.window != nil {
		e.window.Dispatch(ev)
	}
}

// Route delivers ev the way a pointer would: to the element when the client
// point lies inside its bounds, otherwise only to the window.
func (e *Element) Route(ev Event) {
	if e.Bounds().Contains(ev.Client) {
		e.Dispatch(ev)
		return
	}
	if e.window != nil {
		e.window.Dispatch(ev)
	}
}
