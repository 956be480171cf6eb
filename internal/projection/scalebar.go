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

import (
	"fmt"

	"rockviewer/internal/geom"
)

// ScaleBarPx is the on-screen length of the 3D scale bar.
const ScaleBarPx = 100

// ScaleBar returns the world length covered by barPx pixels at the depth
// of center, and its label. One world unit is one metre.
func ScaleBar(c Camera, center geom.Vec3, viewportH, barPx float64) (float64, string) {
	depth := center.Dist(c.Position)
	vh := c.ViewportHeightAt(depth)
	if vh <= 0 || viewportH <= 0 {
		return 0, ""
	}
	pxPerUnit := viewportH / vh
	d := barPx / pxPerUnit
	return d, ScaleLabel(d)
}

// ScaleLabel formats a length in metres the way the scale bar shows it.
func ScaleLabel(m float64) string {
	switch {
	case m >= 1:
		return fmt.Sprintf("%.2f m", m)
	case m >= 0.01:
		return fmt.Sprintf("%.1f cm", m*100)
	case m < 0.001:
		return "< 1 mm"
	default:
		return fmt.Sprintf("%.0f mm", m*1000)
	}
}
