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

// Triangulate splits a simple polygon into triangles by ear clipping and
// returns vertex indices. Winding may be either direction. Polygons with
// fewer than three vertices, or that cannot be clipped (self-intersecting),
// fall back to a fan from vertex 0.
func Triangulate(pts []Pt) [][3]int {
	n := len(pts)
	if n < 3 {
		return nil
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	ccw := signedArea(pts) > 0
	var out [][3]int
	for guard := 0; len(idx) > 3 && guard < n*n; guard++ {
		clipped := false
		for i := range idx {
			a := idx[(i+len(idx)-1)%len(idx)]
			b := idx[i]
			c := idx[(i+1)%len(idx)]
			if !isEar(pts, idx, a, b, c, ccw) {
				continue
			}
			out = append(out, [3]int{a, b, c})
			idx = append(idx[:i], idx[i+1:]...)
			clipped = true
			break
		}
		if !clipped {
			return fan(n)
		}
	}
	return append(out, [3]int{idx[0], idx[1], idx[2]})
}

func fan(n int) [][3]int {
	out := make([][3]int, 0, n-2)
	for i := 1; i < n-1; i++ {
		out = append(out, [3]int{0, i, i + 1})
	}
	return out
}

func signedArea(pts []Pt) float64 {
	var s float64
	for i := range pts {
		j := (i + 1) % len(pts)
		s += pts[i].X*pts[j].Y - pts[j].X*pts[i].Y
	}
	return s / 2
}

func cross(o, a, b Pt) float64 { return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X) }

func isEar(pts []Pt, idx []int, a, b, c int, ccw bool) bool {
	turn := cross(pts[a], pts[b], pts[c])
	if (ccw && turn <= 0) || (!ccw && turn >= 0) {
		return false
	}
	for _, k := range idx {
		if k == a || k == b || k == c {
			continue
		}
		if inTriangle(pts[k], pts[a], pts[b], pts[c]) {
			return false
		}
	}
	return true
}

func inTriangle(p, a, b, c Pt) bool {
	d1, d2, d3 := cross(a, b, p), cross(b, c, p), cross(c, a, p)
	neg := d1 < 0 || d2 < 0 || d3 < 0
	pos := d1 > 0 || d2 > 0 || d3 > 0
	return !(neg && pos)
}
