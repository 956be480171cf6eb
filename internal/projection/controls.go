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
	"math"

	"rockviewer/internal/geom"
)

// Orbit control defaults.
const (
	DefaultDampingFactor   = 0.05
	DefaultAutoRotateSpeed = 1.5 // speed 1 is one turn per minute
	ZoomStep               = 0.2
	MinZoomScale           = 0.05 // smallest distance factor one Zoom call applies
	FitFactor              = 2.5
	PresetFactor           = 1.05
)

// View presets.
const (
	ViewTop   = "top"
	ViewFront = "front"
	ViewSide  = "side"
)

// Controls orbits, pans and zooms a camera around its target, Y up.
type Controls struct {
	Camera *Camera

	Damping         bool
	DampingFactor   float64
	AutoRotate      bool
	AutoRotateSpeed float64
	RotateSpeed     float64

	dTheta, dPhi float64
	pan          geom.Vec3

	homePos, homeTarget geom.Vec3
}

// NewControls wraps cam with damping on and auto-rotate off.
func NewControls(cam *Camera) *Controls {
	return &Controls{
		Camera:          cam,
		Damping:         true,
		DampingFactor:   DefaultDampingFactor,
		AutoRotateSpeed: DefaultAutoRotateSpeed,
		RotateSpeed:     1,
		homePos:         cam.Position,
		homeTarget:      cam.Target,
	}
}

// Rotate queues an orbit for a pointer drag of (dx, dy) px in a viewport
// of height h.
func (c *Controls) Rotate(dx, dy, h float64) {
	if h <= 0 {
		return
	}
	c.dTheta -= 2 * math.Pi * dx / h * c.RotateSpeed
	c.dPhi -= 2 * math.Pi * dy / h * c.RotateSpeed
}

// Pan queues a translation of camera and target for a drag of (dx, dy) px.
func (c *Controls) Pan(dx, dy, h float64) {
	if h <= 0 {
		return
	}
	right, up, _ := c.Camera.basis()
	dist := c.Camera.Distance() * math.Tan(c.Camera.FovDeg*math.Pi/360)
	c.pan = c.pan.Add(right.Mul(-2 * dx * dist / h)).Add(up.Mul(2 * dy * dist / h))
}

// Zoom scales the camera-target distance by 1+delta immediately.
// Negative delta moves closer; the factor never drops below MinZoomScale,
// so the camera stays on its side of the target.
func (c *Controls) Zoom(delta float64) {
	dir := c.Camera.Position.Sub(c.Camera.Target).Mul(math.Max(1+delta, MinZoomScale))
	if dir.Len() < c.Camera.Near {
		return
	}
	c.Camera.Position = c.Camera.Target.Add(dir)
}

func (c *Controls) ZoomIn()  { c.Zoom(-ZoomStep) }
func (c *Controls) ZoomOut() { c.Zoom(ZoomStep) }

// Update advances damping and auto-rotation by dt seconds and reports
// whether the camera moved.
func (c *Controls) Update(dt float64) bool {
	if c.AutoRotate {
		c.dTheta -= 2 * math.Pi / 60 * c.AutoRotateSpeed * dt
	}
	k := 1.0
	if c.Damping {
		k = c.DampingFactor
	}
	cam := c.Camera
	offset := cam.Position.Sub(cam.Target)
	r := offset.Len()
	if r == 0 {
		return false
	}
	theta := math.Atan2(offset.X, offset.Z) + c.dTheta*k
	phi := math.Acos(geom.Clamp(offset.Y/r, -1, 1)) + c.dPhi*k
	phi = geom.Clamp(phi, 1e-6, math.Pi-1e-6)
	next := geom.V3(r*math.Sin(phi)*math.Sin(theta), r*math.Cos(phi), r*math.Sin(phi)*math.Cos(theta))
	pan := c.pan.Mul(k)

	before := cam.Position
	cam.Target = cam.Target.Add(pan)
	cam.Position = cam.Target.Add(next)

	if c.Damping {
		c.dTheta *= 1 - c.DampingFactor
		c.dPhi *= 1 - c.DampingFactor
		c.pan = c.pan.Mul(1 - c.DampingFactor)
	} else {
		c.dTheta, c.dPhi, c.pan = 0, 0, geom.Vec3{}
	}
	return before.Dist(cam.Position) > 1e-9 || pan.Len() > 1e-9
}

// SaveState makes the current pose the one Reset returns to.
func (c *Controls) SaveState() {
	c.homePos, c.homeTarget = c.Camera.Position, c.Camera.Target
}

// Reset restores the saved pose and drops pending motion.
func (c *Controls) Reset() {
	c.Camera.Position, c.Camera.Target = c.homePos, c.homeTarget
	c.dTheta, c.dPhi, c.pan = 0, 0, geom.Vec3{}
}

// Fit frames box: the camera sits at center + (0.6d, 0.4d, d) with
// d = maxDim*2.5, and the pose becomes the reset pose.
func (c *Controls) Fit(box geom.Box3) {
	if box.Empty() {
		return
	}
	center := box.Center()
	d := box.MaxDim() * FitFactor
	c.Camera.Target = center
	c.Camera.Position = center.Add(geom.V3(0.6*d, 0.4*d, d))
	c.dTheta, c.dPhi, c.pan = 0, 0, geom.Vec3{}
	c.SaveState()
}

// SetView moves the camera onto an axis of box at maxDim*1.05 from its
// centre.
func (c *Controls) SetView(view string, box geom.Box3) error {
	if box.Empty() {
		return fmt.Errorf("set view %q: empty scene", view)
	}
	center := box.Center()
	d := box.MaxDim() * PresetFactor
	var off geom.Vec3
	switch view {
	case ViewTop:
		off = geom.V3(0, d, 0)
	case ViewFront:
		off = geom.V3(0, 0, d)
	case ViewSide:
		off = geom.V3(d, 0, 0)
	default:
		return fmt.Errorf("unknown view %q", view)
	}
	c.Camera.Target = center
	c.Camera.Position = center.Add(off)
	c.dTheta, c.dPhi, c.pan = 0, 0, geom.Vec3{}
	return nil
}
