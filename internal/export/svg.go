/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/png"
	"io"
	"strings"

	"rockviewer/internal/geom"
	"rockviewer/internal/overlay"
)

// WriteSVG renders ds as a standalone SVG document. The background image is
// embedded as a PNG data URI.
func WriteSVG(w io.Writer, ds []overlay.Drawable, opt Options) error {
	var buf bytes.Buffer
	var werr error
	wf := func(format string, args ...any) {
		if werr != nil {
			return
		}
		_, werr = fmt.Fprintf(&buf, format, args...)
	}

	wf("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	wf("<svg xmlns=\"http://www.w3.org/2000/svg\" version=\"1.1\" width=\"%gpx\" height=\"%gpx\" viewBox=\"0 0 %g %g\">\n",
		opt.Size.W, opt.Size.H, opt.Size.W, opt.Size.H)
	if opt.Title != "" {
		wf("  <title>%s</title>\n", escText(opt.Title))
	}
	if opt.Background != nil {
		var img bytes.Buffer
		if err := png.Encode(&img, opt.Background); err != nil {
			return fmt.Errorf("encode background: %w", err)
		}
		r := opt.imageRect()
		wf("  <image x=\"%g\" y=\"%g\" width=\"%g\" height=\"%g\" preserveAspectRatio=\"none\" href=\"data:image/png;base64,%s\"/>\n",
			r.X, r.Y, r.W, r.H, base64.StdEncoding.EncodeToString(img.Bytes()))
	}

	for _, d := range ds {
		st := d.Style
		cls := ""
		if d.Class != "" {
			cls = fmt.Sprintf(" class=\"%s\"", escAttr(d.Class))
		}
		switch d.Kind {
		case overlay.Marker:
			if len(d.Points) == 0 {
				continue
			}
			p := d.Points[0]
			wf("  <circle%s cx=\"%g\" cy=\"%g\" r=\"%g\" fill=\"%s\" stroke=\"%s\" stroke-width=\"%g\"/>\n",
				cls, p.X, p.Y, d.Radius, st.Fill.CSS(), st.Stroke.CSS(), st.StrokeWidth())
		case overlay.Line, overlay.Polyline:
			wf("  <polyline%s points=\"%s\" fill=\"none\" stroke=\"%s\" stroke-width=\"%g\"/>\n",
				cls, svgPoints(d.Points), st.Stroke.CSS(), st.StrokeWidth())
		case overlay.Polygon:
			wf("  <polygon%s points=\"%s\" fill=\"%s\" stroke=\"%s\" stroke-width=\"%g\"/>\n",
				cls, svgPoints(d.Points), st.Fill.CSS(), st.Stroke.CSS(), st.StrokeWidth())
		case overlay.Arc:
			var p geom.Path
			p.MoveTo(d.Arc.Start.X, d.Arc.Start.Y)
			p.ArcTo(d.Arc.Radius, d.Arc.LargeArc == 1, d.Arc.Sweep == 1, d.Arc.End.X, d.Arc.End.Y)
			wf("  <path%s d=\"%s\" fill=\"none\" stroke=\"%s\" stroke-width=\"%g\"/>\n",
				cls, p.SVG(), st.Stroke.CSS(), st.StrokeWidth())
		case overlay.Popup:
			r := d.Rect
			wf("  <g%s>\n", cls)
			wf("    <rect x=\"%g\" y=\"%g\" width=\"%g\" height=\"%g\" rx=\"4\" ry=\"4\" fill=\"%s\"/>\n",
				r.X, r.Y, r.W, r.H, st.Fill.CSS())
			y := r.Y + popupPad + 10
			for _, line := range popupLines(d.Text) {
				wf("    <text x=\"%g\" y=\"%g\" font-family=\"Helvetica, Arial, sans-serif\" font-size=\"12\" fill=\"%s\">%s</text>\n",
					r.X+popupPad, y, st.Stroke.CSS(), escText(line))
				y += lineHeight
			}
			wf("  </g>\n")
		}
	}
	wf("</svg>\n")
	if werr != nil {
		return fmt.Errorf("build svg: %w", werr)
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write svg: %w", err)
	}
	return nil
}

func svgPoints(pts []geom.Pt) string {
	parts := make([]string, len(pts))
	for i, p := range pts {
		parts[i] = fmt.Sprintf("%g,%g", geom.Round(p.X, 3), geom.Round(p.Y, 3))
	}
	return strings.Join(parts, " ")
}

var (
	attrEscaper = strings.NewReplacer("&", "&amp;", "\"", "&quot;", "<", "&lt;", "\n", " ", "\r", "")
	textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
)

func escAttr(s string) string { return attrEscaper.Replace(s) }

func escText(s string) string { return textEscaper.Replace(s) }
