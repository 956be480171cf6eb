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

import (
	"strconv"
	"strings"
)

// Path commands and shapes.

type PathOp uint8

const (
	MoveTo PathOp = iota
	LineTo
	ArcTo // elliptical arc with equal radii (r, large, sweep, x, y)
	Close
)

type PathCmd struct {
	Op   PathOp
	Data [5]float64
}

type Path struct{ Cmds []PathCmd }

func (p *Path) MoveTo(x, y float64) {
	p.Cmds = append(p.Cmds, PathCmd{Op: MoveTo, Data: [5]float64{x, y}})
}
func (p *Path) LineTo(x, y float64) {
	p.Cmds = append(p.Cmds, PathCmd{Op: LineTo, Data: [5]float64{x, y}})
}
func (p *Path) ArcTo(r float64, large, sweep bool, x, y float64) {
	p.Cmds = append(p.Cmds, PathCmd{Op: ArcTo, Data: [5]float64{r, b2f(large), b2f(sweep), x, y}})
}
func (p *Path) Close() { p.Cmds = append(p.Cmds, PathCmd{Op: Close}) }

func b2f(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// SVG renders the path as an SVG "d" attribute, e.g. "M 1 2 A 40 40 0 0 1 3 4".
func (p *Path) SVG() string {
	var b strings.Builder
	for i, c := range p.Cmds {
		if i > 0 {
			b.WriteByte(' ')
		}
		switch c.Op {
		case MoveTo:
			b.WriteString("M " + num(c.Data[0]) + " " + num(c.Data[1]))
		case LineTo:
			b.WriteString("L " + num(c.Data[0]) + " " + num(c.Data[1]))
		case ArcTo:
			r := num(c.Data[0])
			b.WriteString("A " + r + " " + r + " 0 " + num(c.Data[1]) + " " + num(c.Data[2]) + " " + num(c.Data[3]) + " " + num(c.Data[4]))
		case Close:
			b.WriteString("Z")
		}
	}
	return b.String()
}

func num(v float64) string { return strconv.FormatFloat(Round(v, 3), 'f', -1, 64) }
