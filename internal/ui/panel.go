/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package ui

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"rockviewer/internal/domain"
	"rockviewer/internal/geom"
	"rockviewer/internal/measure"
	"rockviewer/internal/viewer2d"
	"rockviewer/internal/viewer3d"
)

// MetaMarkdown renders the metadata panel of s: a title line followed by one
// section per metadata entry, in file order.
func MetaMarkdown(s domain.Sample) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", s.Label())
	fmt.Fprintf(&b, "**Origine :** %s\n\n", s.GroupOrigin())
	for _, m := range s.Meta {
		h := m.Heading()
		if m.Icon != "" {
			h = m.Icon + " " + h
		}
		fmt.Fprintf(&b, "## %s\n\n", h)
		if c := strings.TrimSpace(m.Content); c != "" {
			b.WriteString(c)
			b.WriteString("\n\n")
		}
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

// GroupTitle is the sidebar heading of an origin group.
func GroupTitle(g domain.Group) string {
	return fmt.Sprintf("%s (%d)", g.Origin, len(g.Samples))
}

type sessionDump struct {
	Sample   string           `json:"sample"`
	Time     time.Time        `json:"time"`
	Scale    float64          `json:"scale,omitempty"`
	Pan      geom.Pt          `json:"pan"`
	Tool     string           `json:"tool,omitempty"`
	Camera   *geom.Vec3       `json:"camera,omitempty"`
	Results  []measure.Result `json:"results,omitempty"`
	Results3 []measure.Result `json:"results3d,omitempty"`
}

// DumpSession writes the view state and measurements of the open sessions
// to dir as JSON and returns the file path. Either session may be nil.
func DumpSession(dir string, a *viewer2d.Session, b *viewer3d.Session) (string, error) {
	d := sessionDump{Time: time.Now().UTC()}
	if a != nil {
		t := a.View.State()
		d.Sample, d.Scale, d.Pan, d.Tool = a.Sample.Code, t.Scale, t.Translate, string(a.Tool())
		d.Results = a.Results()
	}
	if b != nil {
		d.Sample = b.Sample.Code
		pos := b.Camera.Position
		d.Camera = &pos
		d.Results3 = b.Results()
	}
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, fmt.Sprintf("session-%s-%d.json", d.Sample, d.Time.UnixMilli()))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
