/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package projection

import "rockviewer/internal/geom"

// DefaultDragThreshold is the pointer travel, in px, above which a press
// is treated as a camera drag rather than a click.
const DefaultDragThreshold = 5

// ClickGuard tells clicks from drags. Picks and area clicks consult it;
// camera controls do not.
type ClickGuard struct {
	Threshold float64

	down     geom.Pt
	pressed  bool
	dragging bool
}

func NewClickGuard(threshold float64) *ClickGuard {
	if threshold <= 0 {
		threshold = DefaultDragThreshold
	}
	return &ClickGuard{Threshold: threshold}
}

func (g *ClickGuard) Down(p geom.Pt) {
	g.down = p
	g.pressed = true
	g.dragging = false
}

func (g *ClickGuard) Move(p geom.Pt) {
	if g.pressed && g.down.Dist(p) > g.Threshold {
		g.dragging = true
	}
}

// Up ends the press and reports whether it was a click.
func (g *ClickGuard) Up(p geom.Pt) bool {
	if g.down.Dist(p) > g.Threshold {
		g.dragging = true
	}
	g.pressed = false
	return !g.dragging
}

// Dragging reports whether the current or last press moved past the threshold.
func (g *ClickGuard) Dragging() bool { return g.dragging }
