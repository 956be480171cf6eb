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
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"rockviewer/internal/geom"
	"rockviewer/internal/overlay"
)

func sampleSnapshot() []overlay.Drawable {
	l := overlay.NewLayer()
	l.AddMarker(overlay.ScreenSpace, geom.P(20, 20), 5, overlay.PointStyle)
	l.AddLine(overlay.ScreenSpace, geom.P(10, 60), geom.P(90, 60), overlay.DistanceStyle)
	l.AddPolygon(overlay.ScreenSpace, []geom.Pt{geom.P(50, 10), geom.P(90, 10), geom.P(90, 40)}, overlay.AreaStyle)
	l.AddArc(geom.AngleArc(geom.P(100, 80), geom.P(80, 80), geom.P(80, 60), 10), overlay.AngleArc)
	l.AddPopup(overlay.ScreenSpace, geom.P(5, 70), geom.Size{W: 110, H: 28}, "Surface : 1.00 mm² <b>", nil)
	return l.Snapshot(nil)
}

var canvas120 = Options{Size: geom.Size{W: 120, H: 100}, Title: "P1 & co"}

func TestWriteSVG(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, SVG, sampleSnapshot(), canvas120); err != nil {
		t.Fatalf("svg: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"<circle", "<polyline", "<polygon", "<path", "<rect", "&lt;b&gt;", "P1 &amp; co", `viewBox="0 0 120 100"`} {
		if !strings.Contains(out, want) {
			t.Errorf("svg missing %q", want)
		}
	}
}

func TestWritePNGDrawsMarker(t *testing.T) {
	bg := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for i := range bg.Pix {
		bg.Pix[i] = 255
	}
	opt := canvas120
	opt.Background = bg
	opt.ImageRect = geom.R(60, 50, 60, 50)
	var buf bytes.Buffer
	if err := Write(&buf, PNG, sampleSnapshot(), opt); err != nil {
		t.Fatalf("png: %v", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 120 || b.Dy() != 100 {
		t.Fatalf("size = %v", b)
	}
	if r, g, b, a := img.At(20, 20).RGBA(); r != 0xffff || g != 0 || b != 0 || a != 0xffff {
		t.Fatalf("marker centre = %v", img.At(20, 20))
	}
	if _, _, _, a := img.At(2, 2).RGBA(); a != 0 {
		t.Fatalf("canvas should stay transparent outside the image")
	}
	if c := color.NRGBAModel.Convert(img.At(117, 55)).(color.NRGBA); c != (color.NRGBA{255, 255, 255, 255}) {
		t.Fatalf("background not drawn: %v", c)
	}
}

func TestWritePDF(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, PDF, sampleSnapshot(), canvas120); err != nil {
		t.Fatalf("pdf: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
		t.Fatalf("not a pdf: %q", buf.Bytes()[:8])
	}
}

func TestWriteFileByExtension(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.svg", "sub/b.PNG", "c.pdf"} {
		path := filepath.Join(dir, name)
		if err := WriteFile(path, sampleSnapshot(), canvas120); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		st, err := os.Stat(path)
		if err != nil || st.Size() == 0 {
			t.Fatalf("%s: empty or missing (%v)", name, err)
		}
	}
	if err := WriteFile(filepath.Join(dir, "d.gif"), nil, canvas120); err == nil {
		t.Fatalf("expected unsupported format error")
	}
	if err := Write(&bytes.Buffer{}, SVG, nil, Options{}); err == nil {
		t.Fatalf("expected invalid size error")
	}
}

func TestCaptureNames(t *testing.T) {
	ts := time.UnixMilli(1700000000123)
	if got := ScreenshotName(ts); got != "lame-mince-1700000000123.png" {
		t.Fatalf("screenshot = %q", got)
	}
	if got := CaptureName("Granite"); got != "Granite_capture.png" {
		t.Fatalf("capture = %q", got)
	}
}

func TestArcPointsEndOnArc(t *testing.T) {
	a := geom.AngleArc(geom.P(10, 0), geom.P(0, 0), geom.P(0, 10), 5)
	pts := arcPoints(a)
	if len(pts) < 2 || !pts[0].Near(a.Start, 1e-9) || !pts[len(pts)-1].Near(a.End, 1e-9) {
		t.Fatalf("arc points %v, want %v..%v", pts, a.Start, a.End)
	}
}

func TestWriteFileReplacesWithoutLeftovers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shot.svg")
	if err := os.WriteFile(path, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := WriteFile(path, nil, Options{}); err == nil {
		t.Fatalf("expected invalid size error")
	}
	if b, _ := os.ReadFile(path); string(b) != "old" {
		t.Fatalf("failed export touched the file: %q", b)
	}
	if err := WriteFile(path, sampleSnapshot(), canvas120); err != nil {
		t.Fatalf("write: %v", err)
	}
	b, _ := os.ReadFile(path)
	if !strings.Contains(string(b), "<svg") {
		t.Fatalf("not replaced: %q", b)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("leftover files: %d", len(entries))
	}
}
