/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package calibration converts image pixels to physical lengths for a sample.
package calibration

import (
	"errors"
	"fmt"
)

// ErrInvalid is returned for a non-positive reference width or image width.
var ErrInvalid = errors.New("calibration: reference and image width must be positive")

// MicronThreshold is the length, in µm, up to which lengths are shown in µm.
const MicronThreshold = 300

// Factor is the physical length in cm of one image pixel at native resolution.
type Factor float64

// NewFactor derives the factor from the physical width of the sample and the
// natural pixel width of its image.
func NewFactor(referenceWidthCm float64, naturalWidthPx int) (Factor, error) {
	if referenceWidthCm <= 0 || naturalWidthPx <= 0 {
		return 0, fmt.Errorf("%w (got %gcm / %dpx)", ErrInvalid, referenceWidthCm, naturalWidthPx)
	}
	return Factor(referenceWidthCm / float64(naturalWidthPx)), nil
}

// Length converts an image-space distance to cm.
func (f Factor) Length(px float64) float64 { return px * float64(f) }

// Area converts an image-space area (px²) to cm².
func (f Factor) Area(px2 float64) float64 { return px2 * float64(f) * float64(f) }

// ScaleBarLength is the physical length in cm covered by a bar of barPx
// screen pixels at the given zoom.
func (f Factor) ScaleBarLength(barPx, scale float64) float64 {
	if scale <= 0 {
		return 0
	}
	return barPx / scale * float64(f)
}

// FormatLength renders a length given in cm: one-decimal µm up to 300 µm,
// otherwise two-decimal mm.
func FormatLength(cm float64) string {
	um := cm * 10000
	if um <= MicronThreshold {
		return fmt.Sprintf("%.1f µm", um)
	}
	return fmt.Sprintf("%.2f mm", um/1000)
}

// FormatArea renders an area given in cm².
func FormatArea(cm2 float64) string { return fmt.Sprintf("%.1f cm²", cm2) }

// FormatAngle renders an angle in degrees.
func FormatAngle(deg float64) string { return fmt.Sprintf("%.1f°", deg) }
