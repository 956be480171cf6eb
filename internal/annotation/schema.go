/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package annotation

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	gojsonschema "github.com/xeipuuv/gojsonschema"
)

//go:embed annotations.schema.json
var schemaBytes []byte

// Schema returns the JSON schema annotation files are validated against.
func Schema() []byte { return append([]byte(nil), schemaBytes...) }

// Validate checks data against the annotation schema. All violations are
// joined into one error.
func Validate(data []byte) error {
	res, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(schemaBytes), gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("validate annotations: %w", err)
	}
	if res.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("annotations do not conform to schema: %s", strings.Join(msgs, "; "))
}

// Parse validates and decodes an annotation file.
func Parse(data []byte) ([]Annotation, error) {
	if err := Validate(data); err != nil {
		return nil, err
	}
	var out []Annotation
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode annotations: %w", err)
	}
	return out, nil
}
