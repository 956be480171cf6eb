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
	"math"
	"sort"

	"rockviewer/internal/geom"
)

const epsilon = 1e-12

// Ray is a half line with a unit direction.
type Ray struct {
	Origin geom.Vec3
	Dir    geom.Vec3
}

// At returns the point at distance t along the ray.
func (r Ray) At(t float64) geom.Vec3 { return r.Origin.Add(r.Dir.Mul(t)) }

// Triangle is one mesh face in world coordinates.
type Triangle struct{ A, B, C geom.Vec3 }

// Sphere is an analytic pick target such as an annotation marker.
type Sphere struct {
	Center geom.Vec3
	Radius float64
}

// IntersectTriangle is the Moller-Trumbore test. Both faces are hit.
func (r Ray) IntersectTriangle(tri Triangle) (float64, bool) {
	e1 := tri.B.Sub(tri.A)
	e2 := tri.C.Sub(tri.A)
	p := r.Dir.Cross(e2)
	det := e1.Dot(p)
	if math.Abs(det) < epsilon {
		return 0, false
	}
	inv := 1 / det
	s := r.Origin.Sub(tri.A)
	u := s.Dot(p) * inv
	if u < 0 || u > 1 {
		return 0, false
	}
	q := s.Cross(e1)
	v := r.Dir.Dot(q) * inv
	if v < 0 || u+v > 1 {
		return 0, false
	}
	t := e2.Dot(q) * inv
	if t < 0 {
		return 0, false
	}
	return t, true
}

// IntersectSphere returns the nearest non-negative hit distance.
func (r Ray) IntersectSphere(s Sphere) (float64, bool) {
	oc := r.Origin.Sub(s.Center)
	b := oc.Dot(r.Dir)
	c := oc.Dot(oc) - s.Radius*s.Radius
	disc := b*b - c
	if disc < 0 {
		return 0, false
	}
	sq := math.Sqrt(disc)
	t := -b - sq
	if t < 0 {
		t = -b + sq
	}
	if t < 0 {
		return 0, false
	}
	return t, true
}

// Hit is one ray intersection.
type Hit struct {
	Distance float64
	Point    geom.Vec3
	Node     *Node
	Face     int // triangle index, -1 for spheres
}

func sortHits(hs []Hit) {
	sort.SliceStable(hs, func(i, j int) bool { return hs[i].Distance < hs[j].Distance })
}
