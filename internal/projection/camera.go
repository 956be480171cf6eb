/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package projection bridges the 3D scene and the screen: a perspective
// camera whose view and projection matrices are gonum dense 4x4 matrices,
// ray casting against a mesh tree, orbit controls, the scale bar and the
// tracker that keeps world-anchored popups in place every frame.
package projection

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"rockviewer/internal/geom"
)

// Camera defaults.
const (
	DefaultFov  = 75
	DefaultNear = 0.01
	DefaultFar  = 1000
)

// ErrSingular is returned when the camera matrices cannot be inverted.
var ErrSingular = errors.New("camera matrix is singular")

// Camera is a perspective camera looking from Position at Target.
type Camera struct {
	Position geom.Vec3
	Target   geom.Vec3
	Up       geom.Vec3
	FovDeg   float64 // vertical field of view
	Near     float64
	Far      float64
	Aspect   float64
}

// NewCamera returns the default camera at (0,0,5) looking at the origin.
func NewCamera(aspect float64) Camera {
	if aspect <= 0 {
		aspect = 1
	}
	return Camera{
		Position: geom.V3(0, 0, 5),
		Up:       geom.V3(0, 1, 0),
		FovDeg:   DefaultFov,
		Near:     DefaultNear,
		Far:      DefaultFar,
		Aspect:   aspect,
	}
}

// Forward is the unit view direction.
func (c Camera) Forward() geom.Vec3 { return c.Target.Sub(c.Position).Normalize() }

// Distance is the distance from the camera to its target.
func (c Camera) Distance() float64 { return c.Position.Dist(c.Target) }

func (c Camera) basis() (right, up, fwd geom.Vec3) {
	fwd = c.Forward()
	upHint := c.Up
	if upHint.Len() == 0 {
		upHint = geom.V3(0, 1, 0)
	}
	right = fwd.Cross(upHint)
	if right.Len() < 1e-12 {
		// looking straight along up: pick any perpendicular
		right = fwd.Cross(geom.V3(0, 0, -1))
		if right.Len() < 1e-12 {
			right = fwd.Cross(geom.V3(1, 0, 0))
		}
	}
	right = right.Normalize()
	up = right.Cross(fwd).Normalize()
	return right, up, fwd
}

// View returns the world-to-camera matrix.
func (c Camera) View() *mat.Dense {
	r, u, f := c.basis()
	e := c.Position
	return mat.NewDense(4, 4, []float64{
		r.X, r.Y, r.Z, -r.Dot(e),
		u.X, u.Y, u.Z, -u.Dot(e),
		-f.X, -f.Y, -f.Z, f.Dot(e),
		0, 0, 0, 1,
	})
}

// Projection returns the perspective matrix mapping camera space to clip
// space, with NDC depth in [-1, 1].
func (c Camera) Projection() *mat.Dense {
	f := 1 / math.Tan(c.FovDeg*math.Pi/360)
	n, fa := c.Near, c.Far
	aspect := c.Aspect
	if aspect <= 0 {
		aspect = 1
	}
	return mat.NewDense(4, 4, []float64{
		f / aspect, 0, 0, 0,
		0, f, 0, 0,
		0, 0, (fa + n) / (n - fa), 2 * fa * n / (n - fa),
		0, 0, -1, 0,
	})
}

// ViewProjection returns Projection * View.
func (c Camera) ViewProjection() *mat.Dense {
	var m mat.Dense
	m.Mul(c.Projection(), c.View())
	return &m
}

func apply(m mat.Matrix, p geom.Vec3) (geom.Vec3, float64) {
	in := mat.NewVecDense(4, []float64{p.X, p.Y, p.Z, 1})
	var out mat.VecDense
	out.MulVec(m, in)
	return geom.V3(out.AtVec(0), out.AtVec(1), out.AtVec(2)), out.AtVec(3)
}

// Project maps a world point to NDC. ok is false for points on or behind
// the camera plane, whose NDC is meaningless.
func (c Camera) Project(p geom.Vec3) (ndc geom.Vec3, ok bool) {
	v, w := apply(c.ViewProjection(), p)
	if w <= 0 {
		return geom.Vec3{}, false
	}
	return v.Mul(1 / w), true
}

// Unproject maps an NDC point back to world space.
func (c Camera) Unproject(ndc geom.Vec3) (geom.Vec3, error) {
	var inv mat.Dense
	if err := inv.Inverse(c.ViewProjection()); err != nil {
		return geom.Vec3{}, fmt.Errorf("unproject: %w: %v", ErrSingular, err)
	}
	v, w := apply(&inv, ndc)
	if w == 0 {
		return geom.Vec3{}, ErrSingular
	}
	return v.Mul(1 / w), nil
}

// Ray returns the pick ray from the camera through the NDC point.
func (c Camera) Ray(ndc geom.Pt) (Ray, error) {
	far, err := c.Unproject(geom.V3(ndc.X, ndc.Y, 0.5))
	if err != nil {
		return Ray{}, err
	}
	return Ray{Origin: c.Position, Dir: far.Sub(c.Position).Normalize()}, nil
}

// NDC converts a pixel position inside a w x h viewport to normalized
// device coordinates, y up.
func NDC(x, y, w, h float64) geom.Pt {
	return geom.P((x/w)*2-1, -(y/h)*2+1)
}

// ToPixels is the inverse of NDC.
func ToPixels(ndc geom.Pt, w, h float64) geom.Pt {
	return geom.P((ndc.X*0.5+0.5)*w, (-ndc.Y*0.5+0.5)*h)
}

// ViewportHeightAt is the world height visible at depth in front of the camera.
func (c Camera) ViewportHeightAt(depth float64) float64 {
	return 2 * math.Tan(c.FovDeg*math.Pi/360) * depth
}
