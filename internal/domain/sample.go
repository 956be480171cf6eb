/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package domain holds the sample catalog model: one entry per rock sample as
// described by its metadata.json, and the grouping the sample list uses.
package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Origins in display order. Unknown origins fall into OriginOther.
const (
	OriginMagmatic    = "Magmatique"
	OriginMetamorphic = "Métamorphique"
	OriginSedimentary = "Sédimentaire"
	OriginOther       = "Autre"
)

var Origins = []string{OriginMagmatic, OriginMetamorphic, OriginSedimentary, OriginOther}

// Sample is a rock sample as described by models/<dir>/metadata.json.
type Sample struct {
	Code             string  `json:"code"`
	Name             string  `json:"nom"`
	Origin           string  `json:"origine"`
	SampleName       string  `json:"sampleName,omitempty"`
	ReferenceWidthCm float64 `json:"reference_width_cm,omitempty"`
	Meta             Meta    `json:"meta,omitempty"`
	// Path is the sample directory relative to the data root, with a trailing
	// slash ("models/<dir>/"). It is set by the catalog, not read from JSON.
	Path string `json:"path,omitempty"`
}

// ModelFile returns the base file name of the sample's mesh for ext (".obj", ".mtl", ".stl").
func (s Sample) ModelFile(ext string) string { return s.Code + "-" + s.Name + ext }

// Label is the sidebar line for the sample.
func (s Sample) Label() string {
	if s.SampleName != "" {
		return fmt.Sprintf("%s - %s (Échantillon : %s)", s.Code, s.Name, s.SampleName)
	}
	return s.Code + " - " + s.Name
}

// GroupOrigin maps the sample's origin onto one of Origins.
func (s Sample) GroupOrigin() string {
	switch s.Origin {
	case OriginMagmatic, OriginMetamorphic, OriginSedimentary:
		return s.Origin
	}
	return OriginOther
}

// MetaSection is one block of the metadata panel.
type MetaSection struct {
	Key     string `json:"-"`
	Title   string `json:"title,omitempty"`
	Icon    string `json:"icon,omitempty"`
	Content string `json:"content,omitempty"`
}

// Heading is the section title, falling back to its key.
func (m MetaSection) Heading() string {
	if m.Title != "" {
		return m.Title
	}
	return m.Key
}

// Meta keeps the sections in the order they appear in the JSON object.
type Meta []MetaSection

func (m Meta) Get(key string) (MetaSection, bool) {
	for _, s := range m {
		if s.Key == key {
			return s, true
		}
	}
	return MetaSection{}, false
}

func (m *Meta) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*m = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("meta: expected object, got %v", tok)
	}
	var out Meta
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := kt.(string)
		var sec MetaSection
		if err := dec.Decode(&sec); err != nil {
			return fmt.Errorf("meta %q: %w", key, err)
		}
		sec.Key = key
		out = append(out, sec)
	}
	*m = out
	return nil
}

func (m Meta) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, s := range m {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(s.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(s)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Group is one origin bucket of the sample list.
type Group struct {
	Origin  string
	Samples []Sample
}

// GroupByOrigin buckets samples by origin. Every origin in Origins is present,
// in that order, even when empty; samples keep their input order.
func GroupByOrigin(samples []Sample) []Group {
	idx := make(map[string]int, len(Origins))
	groups := make([]Group, len(Origins))
	for i, o := range Origins {
		idx[o] = i
		groups[i].Origin = o
	}
	for _, s := range samples {
		i := idx[s.GroupOrigin()]
		groups[i].Samples = append(groups[i].Samples, s)
	}
	return groups
}
