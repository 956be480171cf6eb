/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package calibration

import (
	"errors"
	"math"
	"testing"
)

func TestCalibrationRoundTrip(t *testing.T) {
	cases := []struct {
		refCm float64
		width int
		d     float64
	}{
		{2.5, 5000, 1234},
		{3.0, 12000, 1},
		{1.2, 800, 799.5},
	}
	for _, c := range cases {
		f, err := NewFactor(c.refCm, c.width)
		if err != nil {
			t.Fatalf("NewFactor: %v", err)
		}
		want := c.d * c.refCm / float64(c.width)
		if got := f.Length(c.d); math.Abs(got-want) > 1e-12 {
			t.Fatalf("Length(%v) = %v, want %v", c.d, got, want)
		}
	}
}

func TestNewFactorRejectsInvalid(t *testing.T) {
	if _, err := NewFactor(0, 100); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
	if _, err := NewFactor(2.5, 0); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestFormatLength(t *testing.T) {
	cases := map[float64]string{
		0.0150: "150.0 µm",
		0.0300: "300.0 µm",
		0.0301: "0.30 mm",
		0.2500: "2.50 mm",
	}
	for cm, want := range cases {
		if got := FormatLength(cm); got != want {
			t.Fatalf("FormatLength(%v) = %q, want %q", cm, got, want)
		}
	}
}

func TestScaleBarAndArea(t *testing.T) {
	f := Factor(0.001)
	if got := f.ScaleBarLength(100, 2); math.Abs(got-0.05) > 1e-15 {
		t.Fatalf("bar = %v", got)
	}
	if f.ScaleBarLength(100, 0) != 0 {
		t.Fatalf("zero scale must yield 0")
	}
	if got := f.Area(1e6); math.Abs(got-1) > 1e-12 {
		t.Fatalf("area = %v", got)
	}
	if FormatArea(1.04) != "1.0 cm²" || FormatAngle(90) != "90.0°" {
		t.Fatalf("formatting")
	}
}
