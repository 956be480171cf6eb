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
	"fmt"
	"image/png"
	"io"

	"github.com/jung-kurt/gofpdf"

	"rockviewer/internal/geom"
	"rockviewer/internal/overlay"
	"rockviewer/internal/version"
)

// WritePDF renders ds on a single page sized to the canvas, one point per
// pixel. Text uses the built-in Helvetica, so labels stay vector without
// embedding fonts.
func WritePDF(w io.Writer, ds []overlay.Drawable, opt Options) error {
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: opt.Size.W, Ht: opt.Size.H},
	})
	if opt.Title != "" {
		pdf.SetTitle(opt.Title, true)
	}
	pdf.SetCreator("rockviewer "+version.String(), true)
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPageFormat("", gofpdf.SizeType{Wd: opt.Size.W, Ht: opt.Size.H})
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	if opt.Background != nil {
		var buf bytes.Buffer
		if err := png.Encode(&buf, opt.Background); err != nil {
			return fmt.Errorf("encode background: %w", err)
		}
		imgOpt := gofpdf.ImageOptions{ImageType: "PNG"}
		pdf.RegisterImageOptionsReader("background", imgOpt, &buf)
		r := opt.imageRect()
		pdf.ImageOptions("background", r.X, r.Y, r.W, r.H, false, imgOpt, 0, "")
	}

	for _, d := range ds {
		st := d.Style
		switch d.Kind {
		case overlay.Marker:
			if len(d.Points) == 0 {
				continue
			}
			paint(pdf, st)
			pdf.Circle(d.Points[0].X, d.Points[0].Y, d.Radius, "FD")
		case overlay.Line, overlay.Polyline:
			paint(pdf, st)
			polyline(pdf, d.Points)
		case overlay.Polygon:
			if len(d.Points) < 3 {
				continue
			}
			paint(pdf, st)
			pdf.Polygon(pointTypes(d.Points), "FD")
		case overlay.Arc:
			paint(pdf, st)
			polyline(pdf, arcPoints(d.Arc))
		case overlay.Popup:
			r := d.Rect
			setFill(pdf, st.Fill)
			pdf.Rect(r.X, r.Y, r.W, r.H, "F")
			pdf.SetAlpha(1, "Normal")
			pdf.SetTextColor(int(st.Stroke.R), int(st.Stroke.G), int(st.Stroke.B))
			pdf.SetFont("Helvetica", "", 10)
			y := r.Y + popupPad + 10
			for _, line := range popupLines(d.Text) {
				pdf.Text(r.X+popupPad, y, tr(line))
				y += lineHeight
			}
		}
	}
	pdf.SetAlpha(1, "Normal")
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

// paint sets stroke and fill from st. gofpdf has a single alpha for both,
// so the fill alpha wins when the fill is visible.
func paint(pdf *gofpdf.Fpdf, st overlay.Style) {
	pdf.SetDrawColor(int(st.Stroke.R), int(st.Stroke.G), int(st.Stroke.B))
	pdf.SetLineWidth(st.StrokeWidth())
	setFill(pdf, st.Fill)
	if st.Fill.A == 0 {
		pdf.SetAlpha(float64(st.Stroke.A)/255, "Normal")
	}
}

func setFill(pdf *gofpdf.Fpdf, c overlay.Color) {
	pdf.SetFillColor(int(c.R), int(c.G), int(c.B))
	pdf.SetAlpha(float64(c.A)/255, "Normal")
}

func polyline(pdf *gofpdf.Fpdf, pts []geom.Pt) {
	for i := 1; i < len(pts); i++ {
		pdf.Line(pts[i-1].X, pts[i-1].Y, pts[i].X, pts[i].Y)
	}
}

func pointTypes(pts []geom.Pt) []gofpdf.PointType {
	out := make([]gofpdf.PointType, len(pts))
	for i, p := range pts {
		out[i] = gofpdf.PointType{X: p.X, Y: p.Y}
	}
	return out
}
