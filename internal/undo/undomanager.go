/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package undo keeps a back/forward history of viewer states per sample.
package undo

import (
	"sync"
	"time"
)

// View is a pan/zoom state: uniform scale and translation in screen pixels.
type View struct {
	Scale float64
	X, Y  float64
}

// Snapshot is a view recorded for a sample at TS.
type Snapshot struct {
	Sample string
	View   View
	TS     time.Time
}

// Config controls depth caps and coalescing behavior.
type Config struct {
	// MaxPerSample limits snapshots kept per sample (0 means unlimited).
	MaxPerSample int
	// MaxSamples caps the number of samples with history; the sample whose
	// oldest entry is oldest is evicted first.
	MaxSamples int
	// MinInterval coalesces snapshots captured within the interval for the same
	// sample, so a burst of wheel ticks becomes one entry.
	MinInterval time.Duration
}

// Manager provides back/forward stacks per sample. It is safe for concurrent use.
type Manager struct {
	cfg  Config
	mu   sync.Mutex
	back map[string][]Snapshot
	fwd  map[string][]Snapshot
}

func NewManager(cfg Config) *Manager {
	if cfg.MaxSamples <= 0 {
		cfg.MaxSamples = 32
	}
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = 250 * time.Millisecond
	}
	return &Manager{cfg: cfg, back: make(map[string][]Snapshot), fwd: make(map[string][]Snapshot)}
}

// Push records a view. Within MinInterval of the previous entry for the same
// sample it replaces that entry. Any push clears the forward stack.
func (m *Manager) Push(s Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stack := m.back[s.Sample]
	if n := len(stack); n > 0 && s.TS.Sub(stack[n-1].TS) < m.cfg.MinInterval {
		// keep the first timestamp so a long burst still coalesces
		s.TS = stack[n-1].TS
		stack[n-1] = s
	} else {
		stack = append(stack, s)
	}
	m.back[s.Sample] = stack
	m.fwd[s.Sample] = nil
	m.enforceCapsLocked(s.Sample)
}

// Back pops the latest view for sample and moves it to the forward stack.
func (m *Manager) Back(sample string) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stack := m.back[sample]
	if len(stack) == 0 {
		return Snapshot{}, false
	}
	s := stack[len(stack)-1]
	m.back[sample] = stack[:len(stack)-1]
	m.fwd[sample] = append(m.fwd[sample], s)
	return s, true
}

// Forward re-applies the view most recently undone by Back.
func (m *Manager) Forward(sample string) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.fwd[sample]
	if len(r) == 0 {
		return Snapshot{}, false
	}
	s := r[len(r)-1]
	m.fwd[sample] = r[:len(r)-1]
	m.back[sample] = append(m.back[sample], s)
	m.enforceCapsLocked(sample)
	return s, true
}

// Peek returns the latest view for sample without popping it.
func (m *Manager) Peek(sample string) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stack := m.back[sample]
	if len(stack) == 0 {
		return Snapshot{}, false
	}
	return stack[len(stack)-1], true
}

// Clear drops both stacks for a sample.
func (m *Manager) Clear(sample string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.back, sample)
	delete(m.fwd, sample)
}

// Stats returns current sizes for diagnostics.
func (m *Manager) Stats() (samples int, totalSnapshots int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	samples = len(m.back)
	for _, v := range m.back {
		totalSnapshots += len(v)
	}
	return samples, totalSnapshots
}

func (m *Manager) enforceCapsLocked(sample string) {
	if m.cfg.MaxPerSample > 0 {
		stack := m.back[sample]
		if len(stack) > m.cfg.MaxPerSample {
			toDrop := len(stack) - m.cfg.MaxPerSample
			m.back[sample] = append([]Snapshot{}, stack[toDrop:]...)
		}
	}
	for len(m.back) > m.cfg.MaxSamples {
		oldest := ""
		var oldestTS time.Time
		found := false
		for k, stack := range m.back {
			if k == sample {
				continue
			}
			var ts time.Time
			if len(stack) > 0 {
				ts = stack[0].TS
			}
			if !found || ts.Before(oldestTS) {
				oldest, oldestTS, found = k, ts, true
			}
		}
		if !found {
			break
		}
		delete(m.back, oldest)
		delete(m.fwd, oldest)
	}
}
