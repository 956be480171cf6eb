/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package geom

import "math"

// Shoelace returns the unsigned area of the polygon pts in squared input
// units. Fewer than three points yield 0.
func Shoelace(pts []Pt) float64 {
	if len(pts) < 3 {
		return 0
	}
	var sum float64
	for i := range pts {
		j := (i + 1) % len(pts)
		sum += pts[i].X*pts[j].Y - pts[j].X*pts[i].Y
	}
	return math.Abs(sum) / 2
}

// Centroid is the arithmetic mean of the vertices. ok is false for no points.
func Centroid(pts []Pt) (Pt, bool) {
	if len(pts) == 0 {
		return Pt{}, false
	}
	var c Pt
	for _, p := range pts {
		c = c.Add(p)
	}
	return c.Div(float64(len(pts))), true
}

// AngleAt returns the interior angle ABC at vertex b in degrees.
// ok is false when either arm has zero length.
func AngleAt(a, b, c Pt) (float64, bool) {
	v1 := a.Sub(b)
	v2 := c.Sub(b)
	l1, l2 := v1.Len(), v2.Len()
	if l1 == 0 || l2 == 0 {
		return 0, false
	}
	cos := Clamp(v1.Dot(v2)/(l1*l2), -1, 1)
	return math.Acos(cos) * 180 / math.Pi, true
}

// NormalizeAngle maps a radian delta into (-π, π].
func NormalizeAngle(d float64) float64 {
	for d > math.Pi {
		d -= 2 * math.Pi
	}
	for d <= -math.Pi {
		d += 2 * math.Pi
	}
	return d
}

// Arc is a circular arc around Center from the direction of the first arm to
// the second, taking the short way round.
type Arc struct {
	Center   Pt
	Radius   float64
	Start    Pt
	End      Pt
	Sweep    int // 1 when the signed delta is positive
	LargeArc int // always 0: the short arc never exceeds π
	Delta    float64
}

// AngleArc builds the arc drawn at vertex b between arms b→a and b→c.
func AngleArc(a, b, c Pt, radius float64) Arc {
	a1 := math.Atan2(a.Y-b.Y, a.X-b.X)
	a2 := math.Atan2(c.Y-b.Y, c.X-b.X)
	delta := NormalizeAngle(a2 - a1)
	sweep := 0
	if delta > 0 {
		sweep = 1
	}
	return Arc{
		Center: b,
		Radius: radius,
		Start:  Pt{b.X + math.Cos(a1)*radius, b.Y + math.Sin(a1)*radius},
		End:    Pt{b.X + math.Cos(a1+delta)*radius, b.Y + math.Sin(a1+delta)*radius},
		Sweep:  sweep,
		Delta:  delta,
	}
}

// Path returns the arc as a path (move to start, arc to end).
func (a Arc) Path() Path {
	var p Path
	p.MoveTo(a.Start.X, a.Start.Y)
	p.ArcTo(a.Radius, a.LargeArc == 1, a.Sweep == 1, a.End.X, a.End.Y)
	return p
}

// Map returns the arc with every point passed through m. The radius is scaled
// by the x scale of m, which is exact for uniform scale+translate.
func (a Arc) Map(m Affine2D) Arc {
	a.Center = m.Apply(a.Center)
	a.Start = m.Apply(a.Start)
	a.End = m.Apply(a.End)
	a.Radius *= math.Hypot(m.A, m.B)
	return a
}

// Points samples the arc into n+1 points, for renderers without arc support.
func (a Arc) Points(n int) []Pt {
	if n < 1 {
		n = 1
	}
	a1 := math.Atan2(a.Start.Y-a.Center.Y, a.Start.X-a.Center.X)
	out := make([]Pt, 0, n+1)
	for i := 0; i <= n; i++ {
		t := a1 + a.Delta*float64(i)/float64(n)
		out = append(out, Pt{a.Center.X + math.Cos(t)*a.Radius, a.Center.Y + math.Sin(t)*a.Radius})
	}
	return out
}
