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

// Vec3 is a point or direction in model (world) space.
type Vec3 struct{ X, Y, Z float64 }

func V3(x, y, z float64) Vec3 { return Vec3{x, y, z} }

func (v Vec3) Add(o Vec3) Vec3     { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vec3) Sub(o Vec3) Vec3     { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }
func (v Vec3) Mul(s float64) Vec3  { return Vec3{v.X * s, v.Y * s, v.Z * s} }
func (v Vec3) Dot(o Vec3) float64  { return v.X*o.X + v.Y*o.Y + v.Z*o.Z }
func (v Vec3) Len() float64        { return math.Sqrt(v.Dot(v)) }
func (v Vec3) Dist(o Vec3) float64 { return v.Sub(o).Len() }
func (v Vec3) Lerp(o Vec3, t float64) Vec3 {
	return Vec3{v.X + (o.X-v.X)*t, v.Y + (o.Y-v.Y)*t, v.Z + (o.Z-v.Z)*t}
}

func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		v.Y*o.Z - v.Z*o.Y,
		v.Z*o.X - v.X*o.Z,
		v.X*o.Y - v.Y*o.X,
	}
}

// Normalize returns the unit vector; the zero vector stays zero.
func (v Vec3) Normalize() Vec3 {
	l := v.Len()
	if l == 0 {
		return v
	}
	return v.Mul(1 / l)
}

// Box3 is an axis-aligned bounding box. The zero value is empty.
type Box3 struct {
	Min, Max Vec3
	set      bool
}

// Expand grows the box to contain p.
func (b *Box3) Expand(p Vec3) {
	if !b.set {
		b.Min, b.Max, b.set = p, p, true
		return
	}
	b.Min = Vec3{math.Min(b.Min.X, p.X), math.Min(b.Min.Y, p.Y), math.Min(b.Min.Z, p.Z)}
	b.Max = Vec3{math.Max(b.Max.X, p.X), math.Max(b.Max.Y, p.Y), math.Max(b.Max.Z, p.Z)}
}

// Union grows the box to contain o.
func (b *Box3) Union(o Box3) {
	if !o.set {
		return
	}
	b.Expand(o.Min)
	b.Expand(o.Max)
}

func (b Box3) Empty() bool  { return !b.set }
func (b Box3) Center() Vec3 { return b.Min.Add(b.Max).Mul(0.5) }
func (b Box3) Size() Vec3   { return b.Max.Sub(b.Min) }

// MaxDim is the largest edge of the box.
func (b Box3) MaxDim() float64 {
	s := b.Size()
	return math.Max(s.X, math.Max(s.Y, s.Z))
}

// TriangleArea returns the area of triangle abc.
func TriangleArea(a, b, c Vec3) float64 {
	return b.Sub(a).Cross(c.Sub(a)).Len() / 2
}

// PolygonArea3D sums the fan triangles (p0, pi, pi+1). Fewer than three
// points yield 0. For planar convex polygons this is the exact area.
func PolygonArea3D(pts []Vec3) float64 {
	if len(pts) < 3 {
		return 0
	}
	var sum float64
	for i := 1; i < len(pts)-1; i++ {
		sum += TriangleArea(pts[0], pts[i], pts[i+1])
	}
	return sum
}
