/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	gojsonschema "github.com/xeipuuv/gojsonschema"

	"rockviewer/internal/domain"
)

//go:embed metadata.schema.json
var metadataSchema []byte

var metadataLoader = gojsonschema.NewBytesLoader(metadataSchema)

// ValidateMetadata checks a metadata.json document against the schema.
func ValidateMetadata(data []byte) error {
	res, err := gojsonschema.Validate(metadataLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("validate metadata: %w", err)
	}
	if res.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("metadata does not conform to schema: %s", strings.Join(msgs, "; "))
}

// ParseMetadata validates and decodes the metadata.json of the sample
// directory dir. The returned sample carries its catalog path.
func ParseMetadata(dir string, data []byte) (domain.Sample, error) {
	if err := ValidateMetadata(data); err != nil {
		return domain.Sample{}, err
	}
	var s domain.Sample
	if err := json.Unmarshal(data, &s); err != nil {
		return domain.Sample{}, fmt.Errorf("decode metadata: %w", err)
	}
	s.Path = SampleDir(dir)
	return s, nil
}
