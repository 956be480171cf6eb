/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package mesh loads sample models (STL, binary or ASCII, and Wavefront
// OBJ) into a pickable projection.Node.
package mesh

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"rockviewer/internal/geom"
	"rockviewer/internal/projection"
)

// ErrFormat reports a model file that cannot be decoded.
var ErrFormat = errors.New("invalid model file")

// Model is a triangle soup in world units.
type Model struct {
	Name      string
	Triangles []projection.Triangle
}

// Load reads the model at path, choosing the decoder by extension.
func Load(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open model: %w", err)
	}
	defer f.Close()
	return Decode(path, f)
}

// Decode parses r as the model file name, choosing the decoder by the
// extension of name.
func Decode(name string, r io.Reader) (*Model, error) {
	var (
		m   *Model
		err error
	)
	switch strings.ToLower(filepath.Ext(name)) {
	case ".stl":
		m, err = ParseSTL(r)
	case ".obj":
		m, err = ParseOBJ(r)
	default:
		return nil, fmt.Errorf("%s: %w: unsupported extension", name, ErrFormat)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if m.Name == "" {
		m.Name = strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	}
	return m, nil
}

// Extensions lists the decodable model extensions, preferred first.
var Extensions = []string{".obj", ".stl"}

// ParseSTL decodes a binary or ASCII STL stream. A file is binary when its
// size matches the triangle count in its header, whatever its first bytes.
func ParseSTL(r io.Reader) (*Model, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read STL: %w", err)
	}
	if len(data) >= 84 {
		n := binary.LittleEndian.Uint32(data[80:84])
		if uint64(len(data)) == 84+50*uint64(n) {
			return parseBinary(data)
		}
	}
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte("solid")) {
		return parseASCII(bytes.NewReader(data))
	}
	return nil, fmt.Errorf("%w: neither binary nor ASCII STL", ErrFormat)
}

func parseASCII(r io.Reader) (*Model, error) {
	sc := bufio.NewScanner(r)
	m := &Model{}
	var verts []geom.Vec3
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "solid":
			if len(fields) > 1 {
				m.Name = strings.Join(fields[1:], " ")
			}
		case "vertex":
			v, err := parseVec(fields[1:])
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrFormat, line, err)
			}
			verts = append(verts, v)
		case "endfacet":
			if len(verts) == 3 {
				m.Triangles = append(m.Triangles, projection.Triangle{A: verts[0], B: verts[1], C: verts[2]})
			}
			verts = verts[:0]
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("error reading ASCII STL: %w", err)
	}
	return m, nil
}

func parseBinary(data []byte) (*Model, error) {
	m := &Model{Name: strings.TrimSpace(string(bytes.TrimRight(data[:80], "\x00")))}
	n := binary.LittleEndian.Uint32(data[80:84])
	m.Triangles = make([]projection.Triangle, 0, n)
	rd := bytes.NewReader(data[84:])
	for i := uint32(0); i < n; i++ {
		var rec struct {
			Normal, V1, V2, V3 [3]float32
			Attr               uint16
		}
		if err := binary.Read(rd, binary.LittleEndian, &rec); err != nil {
			return nil, fmt.Errorf("%w: triangle %d: %v", ErrFormat, i, err)
		}
		m.Triangles = append(m.Triangles, projection.Triangle{A: f32(rec.V1), B: f32(rec.V2), C: f32(rec.V3)})
	}
	return m, nil
}

func f32(v [3]float32) geom.Vec3 { return geom.V3(float64(v[0]), float64(v[1]), float64(v[2])) }

func parseVec(fields []string) (geom.Vec3, error) {
	if len(fields) < 3 {
		return geom.Vec3{}, fmt.Errorf("want 3 coordinates, got %d", len(fields))
	}
	var c [3]float64
	for i := 0; i < 3; i++ {
		v, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return geom.Vec3{}, err
		}
		c[i] = v
	}
	return geom.V3(c[0], c[1], c[2]), nil
}

// ParseOBJ decodes the geometry of a Wavefront OBJ stream: v and f records,
// with polygons fan-triangulated and negative indices resolved. Materials,
// normals and texture coordinates are ignored.
func ParseOBJ(r io.Reader) (*Model, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	m := &Model{}
	var verts []geom.Vec3
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		switch fields[0] {
		case "o":
			if m.Name == "" && len(fields) > 1 {
				m.Name = strings.Join(fields[1:], " ")
			}
		case "v":
			v, err := parseVec(fields[1:])
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrFormat, line, err)
			}
			verts = append(verts, v)
		case "f":
			if len(fields) < 4 {
				return nil, fmt.Errorf("%w: line %d: face with %d vertices", ErrFormat, line, len(fields)-1)
			}
			idx := make([]int, 0, len(fields)-1)
			for _, f := range fields[1:] {
				i, err := objIndex(f, len(verts))
				if err != nil {
					return nil, fmt.Errorf("%w: line %d: %v", ErrFormat, line, err)
				}
				idx = append(idx, i)
			}
			for i := 1; i < len(idx)-1; i++ {
				m.Triangles = append(m.Triangles, projection.Triangle{A: verts[idx[0]], B: verts[idx[i]], C: verts[idx[i+1]]})
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("error reading OBJ: %w", err)
	}
	return m, nil
}

// objIndex resolves "7", "7/1", "7//3" or "-1" to a zero-based index.
func objIndex(tok string, n int) (int, error) {
	if i := strings.IndexByte(tok, '/'); i >= 0 {
		tok = tok[:i]
	}
	v, err := strconv.Atoi(tok)
	if err != nil {
		return 0, fmt.Errorf("bad vertex index %q", tok)
	}
	if v < 0 {
		v = n + v + 1
	}
	if v < 1 || v > n {
		return 0, fmt.Errorf("vertex index %s out of range", tok)
	}
	return v - 1, nil
}

// Bounds returns the model's bounding box.
func (m *Model) Bounds() geom.Box3 {
	var b geom.Box3
	for _, t := range m.Triangles {
		b.Expand(t.A)
		b.Expand(t.B)
		b.Expand(t.C)
	}
	return b
}

// SurfaceArea is the total triangle area in squared world units.
func (m *Model) SurfaceArea() float64 {
	var total float64
	for _, t := range m.Triangles {
		total += geom.TriangleArea(t.A, t.B, t.C)
	}
	return total
}

// Node returns a scene node holding the model's faces.
func (m *Model) Node() *projection.Node {
	n := projection.NewNode("model")
	if m.Name != "" {
		n.Name = "model:" + m.Name
	}
	n.Triangles = m.Triangles
	return n
}
