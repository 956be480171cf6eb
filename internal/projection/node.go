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
	"rockviewer/internal/geom"
	"rockviewer/internal/overlay"
)

// Segment is a drawn line. Segments are never picked.
type Segment struct{ A, B geom.Vec3 }

// Node is a scene graph node. Geometry is stored in world coordinates;
// Data carries what a pick should resolve to (an annotation, a measurement
// marker).
type Node struct {
	Name      string
	Triangles []Triangle
	Sphere    *Sphere
	Segments  []Segment
	Style     overlay.Style
	Children  []*Node
	Hidden    bool
	Data      any

	parent *Node
}

func NewNode(name string) *Node { return &Node{Name: name} }

// Add attaches children, detaching them from any previous parent.
func (n *Node) Add(children ...*Node) {
	for _, c := range children {
		if c == nil {
			continue
		}
		if c.parent != nil {
			c.parent.Remove(c)
		}
		c.parent = n
		n.Children = append(n.Children, c)
	}
}

// Remove detaches child. It reports whether child was a direct child.
func (n *Node) Remove(child *Node) bool {
	for i, c := range n.Children {
		if c == child {
			n.Children = append(n.Children[:i], n.Children[i+1:]...)
			c.parent = nil
			return true
		}
	}
	return false
}

// Parent returns the node n is attached to.
func (n *Node) Parent() *Node { return n.parent }

// Walk visits n and its descendants depth first until fn returns false.
func (n *Node) Walk(fn func(*Node) bool) bool {
	if !fn(n) {
		return false
	}
	for _, c := range n.Children {
		if !c.Walk(fn) {
			return false
		}
	}
	return true
}

// Find returns the first node named name.
func (n *Node) Find(name string) *Node {
	var out *Node
	n.Walk(func(c *Node) bool {
		if c.Name == name {
			out = c
			return false
		}
		return true
	})
	return out
}

// Bounds returns the bounding box of n and its descendants.
func (n *Node) Bounds() geom.Box3 {
	var b geom.Box3
	n.Walk(func(c *Node) bool {
		for _, t := range c.Triangles {
			b.Expand(t.A)
			b.Expand(t.B)
			b.Expand(t.C)
		}
		if c.Sphere != nil {
			r := geom.V3(c.Sphere.Radius, c.Sphere.Radius, c.Sphere.Radius)
			b.Expand(c.Sphere.Center.Sub(r))
			b.Expand(c.Sphere.Center.Add(r))
		}
		return true
	})
	return b
}

// TriangleCount counts the faces of n and its descendants.
func (n *Node) TriangleCount() int {
	total := 0
	n.Walk(func(c *Node) bool { total += len(c.Triangles); return true })
	return total
}

// Intersect returns the hits of r against n (and its descendants when
// recursive), nearest first. Hidden nodes and their subtrees are skipped.
func (n *Node) Intersect(r Ray, recursive bool) []Hit {
	var hits []Hit
	n.intersect(r, recursive, &hits)
	sortHits(hits)
	return hits
}

func (n *Node) intersect(r Ray, recursive bool, hits *[]Hit) {
	if n.Hidden {
		return
	}
	for i, tri := range n.Triangles {
		if t, ok := r.IntersectTriangle(tri); ok {
			*hits = append(*hits, Hit{Distance: t, Point: r.At(t), Node: n, Face: i})
		}
	}
	if n.Sphere != nil {
		if t, ok := r.IntersectSphere(*n.Sphere); ok {
			*hits = append(*hits, Hit{Distance: t, Point: r.At(t), Node: n, Face: -1})
		}
	}
	if !recursive {
		return
	}
	for _, c := range n.Children {
		c.intersect(r, true, hits)
	}
}

// FirstWithData returns the nearest hit whose node (or
// any ancestor) carries Data.
func FirstWithData(hits []Hit) (Hit, any, bool) {
	for _, h := range hits {
		for c := h.Node; c != nil; c = c.parent {
			if c.Data != nil {
				return h, c.Data, true
			}
		}
	}
	return Hit{}, nil, false
}
