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
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"

	_ "golang.org/x/image/tiff"
)

// SniffImage reports the image MIME type of r from its header, or "" when
// no registered decoder recognises it.
func SniffImage(r io.Reader) string {
	_, format, err := image.DecodeConfig(r)
	if err != nil {
		return ""
	}
	return "image/" + format
}

// LoadImage opens and decodes the thin-section image ref.
func LoadImage(ctx context.Context, src Source, ref string) (image.Image, string, error) {
	rc, err := src.Open(ctx, ref)
	if err != nil {
		return nil, "", err
	}
	defer rc.Close()
	img, format, err := image.Decode(rc)
	if err != nil {
		return nil, "", &AssetError{URL: ref, Err: fmt.Errorf("decode image: %w", err)}
	}
	return img, format, nil
}
