/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package overlay

import "fmt"

// Color is an 8-bit RGBA color.
type Color struct{ R, G, B, A uint8 }

var (
	Black       = Color{0, 0, 0, 255}
	White       = Color{255, 255, 255, 255}
	Transparent = Color{0, 0, 0, 0}
	Red         = Color{255, 0, 0, 255}
	Green       = Color{0, 128, 0, 255}
	Blue        = Color{0, 0, 255, 255}
	Orange      = Color{255, 136, 0, 255}
)

// WithAlpha returns c with alpha a (0..1).
func (c Color) WithAlpha(a float64) Color {
	if a < 0 {
		a = 0
	}
	if a > 1 {
		a = 1
	}
	c.A = uint8(a*255 + 0.5)
	return c
}

// CSS renders the color as rgba() for SVG attributes.
func (c Color) CSS() string {
	if c.A == 255 {
		return fmt.Sprintf("rgb(%d,%d,%d)", c.R, c.G, c.B)
	}
	return fmt.Sprintf("rgba(%d,%d,%d,%.3g)", c.R, c.G, c.B, float64(c.A)/255)
}

// Style is the paint of an overlay item. A zero Width means 2 px.
type Style struct {
	Stroke Color
	Fill   Color
	Width  float64
}

func (s Style) StrokeWidth() float64 {
	if s.Width <= 0 {
		return 2
	}
	return s.Width
}

// Presets used by the measurement tools and annotations.
var (
	DistanceStyle = Style{Stroke: Red, Fill: Red}
	AngleFirst    = Style{Stroke: Blue, Fill: Blue}
	AnglePreviewA = Style{Stroke: Blue.WithAlpha(0.5), Fill: Blue.WithAlpha(0.5)}
	AngleSecond   = Style{Stroke: Red, Fill: Red}
	AnglePreviewB = Style{Stroke: Red.WithAlpha(0.5), Fill: Red.WithAlpha(0.5)}
	AngleArc      = Style{Stroke: Green}
	AreaStyle     = Style{Stroke: Green, Fill: Color{0, 150, 0, 77}}
	AreaMarker    = Style{Stroke: Green, Fill: Green}
	ZoneStyle     = Style{Stroke: Red.WithAlpha(0.7), Fill: Red.WithAlpha(0.2)}
	PointStyle    = Style{Stroke: White, Fill: Red}
	PopupStyle    = Style{Stroke: White, Fill: Color{0, 0, 0, 178}}
)
