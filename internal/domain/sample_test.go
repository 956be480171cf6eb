/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package domain

import (
	"encoding/json"
	"testing"
)

func TestSampleJSONKeepsMetaOrder(t *testing.T) {
	raw := `{"code":"G12","nom":"Granite","origine":"Magmatique","reference_width_cm":3,
	"meta":{"texture":{"title":"Texture","icon":"t","content":"grenue"},"lieu":{"content":"Bretagne"}}}`
	var s Sample
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if s.Code != "G12" || s.Name != "Granite" || s.ReferenceWidthCm != 3 {
		t.Fatalf("unexpected sample: %+v", s)
	}
	if len(s.Meta) != 2 || s.Meta[0].Key != "texture" || s.Meta[1].Key != "lieu" {
		t.Fatalf("meta order lost: %+v", s.Meta)
	}
	if got := s.Meta[1].Heading(); got != "lieu" {
		t.Fatalf("heading fallback = %q", got)
	}
	b, err := json.Marshal(s.Meta)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"texture":{"title":"Texture","icon":"t","content":"grenue"},"lieu":{"content":"Bretagne"}}`
	if string(b) != want {
		t.Fatalf("meta json = %s", b)
	}
}

func TestMetaRejectsNonObject(t *testing.T) {
	var m Meta
	if err := json.Unmarshal([]byte(`[1,2]`), &m); err == nil {
		t.Fatalf("expected error for array meta")
	}
	if err := json.Unmarshal([]byte(`null`), &m); err != nil || m != nil {
		t.Fatalf("null meta: %v %v", m, err)
	}
}

func TestGroupByOrigin(t *testing.T) {
	in := []Sample{
		{Code: "A", Origin: OriginSedimentary},
		{Code: "B", Origin: "volcanique"},
		{Code: "C", Origin: OriginMagmatic},
		{Code: "D", Origin: OriginSedimentary},
	}
	groups := GroupByOrigin(in)
	if len(groups) != 4 {
		t.Fatalf("groups = %d", len(groups))
	}
	for i, o := range Origins {
		if groups[i].Origin != o {
			t.Fatalf("group %d origin %q want %q", i, groups[i].Origin, o)
		}
	}
	if len(groups[0].Samples) != 1 || groups[0].Samples[0].Code != "C" {
		t.Fatalf("magmatic: %+v", groups[0].Samples)
	}
	if len(groups[1].Samples) != 0 {
		t.Fatalf("metamorphic should be empty")
	}
	if len(groups[2].Samples) != 2 || groups[2].Samples[0].Code != "A" || groups[2].Samples[1].Code != "D" {
		t.Fatalf("sedimentary: %+v", groups[2].Samples)
	}
	if len(groups[3].Samples) != 1 || groups[3].Samples[0].Code != "B" {
		t.Fatalf("other: %+v", groups[3].Samples)
	}
}

func TestSampleNames(t *testing.T) {
	s := Sample{Code: "G12", Name: "Granite"}
	if s.ModelFile(".obj") != "G12-Granite.obj" {
		t.Fatalf("model file = %q", s.ModelFile(".obj"))
	}
	if s.Label() != "G12 - Granite" {
		t.Fatalf("label = %q", s.Label())
	}
	s.SampleName = "GR-1"
	if s.Label() != "G12 - Granite (Échantillon : GR-1)" {
		t.Fatalf("label = %q", s.Label())
	}
}
