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
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"rockviewer/internal/annotation"
	"rockviewer/internal/config"
	"rockviewer/internal/domain"
)

const graniteMeta = `{"code":"G12","nom":"Granite","origine":"Magmatique","reference_width_cm":3,
"meta":{"texture":{"title":"Texture","content":"grenue"},"lieu":{"content":"Bretagne"}}}`

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	img.Set(1, 1, color.RGBA{R: 200, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func dataRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "models", "granite", "metadata.json"), []byte(graniteMeta))
	writeFile(t, filepath.Join(root, "models", "granite", "TS.jpg"), []byte("not an image"))
	writeFile(t, filepath.Join(root, "models", "granite", "TS.jpeg"), pngBytes(t))
	writeFile(t, filepath.Join(root, "models", "basalte", "metadata.json"), []byte(`{"code":"B1","nom":"Basalte","origine":"volcanique"}`))
	writeFile(t, filepath.Join(root, "models", "broken", "metadata.json"), []byte(`{"nom":"Sans code"}`))
	if err := os.MkdirAll(filepath.Join(root, "models", "empty"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeFile(t, filepath.Join(root, "data", "annotations", "G12.json"),
		[]byte(`[{"id":1,"viewer":"2D","type":"point","position":[10,20],"content":{"title":"Quartz"}}]`))
	return root
}

func TestFSListSkipsUnreadable(t *testing.T) {
	src := FS{Root: dataRoot(t)}
	list, err := src.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 samples, got %d: %+v", len(list), list)
	}
	if list[0].Code != "B1" || list[1].Code != "G12" {
		t.Fatalf("unexpected order: %s, %s", list[0].Code, list[1].Code)
	}
	if list[1].Path != "models/granite/" {
		t.Fatalf("path = %q", list[1].Path)
	}
	groups := domain.GroupByOrigin(list)
	if len(groups[0].Samples) != 1 || len(groups[3].Samples) != 1 {
		t.Fatalf("grouping: %+v", groups)
	}
}

func TestFSSampleMissing(t *testing.T) {
	src := FS{Root: dataRoot(t)}
	_, err := src.Sample(context.Background(), "empty")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	var ae *AssetError
	if !errors.As(err, &ae) || !strings.HasSuffix(filepath.ToSlash(ae.URL), "models/empty/metadata.json") {
		t.Fatalf("expected AssetError with path, got %v", err)
	}
}

func TestFSProbeSkipsNonImages(t *testing.T) {
	root := dataRoot(t)
	src := FS{Root: root}
	s, err := src.Sample(context.Background(), "granite")
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	ref, err := src.ProbeImage(context.Background(), s)
	if err != nil {
		t.Fatalf("probe: %v", err)
	}
	if ref != "models/granite/TS.jpeg" {
		t.Fatalf("ref = %q", ref)
	}
	img, format, err := LoadImage(context.Background(), src, ref)
	if err != nil {
		t.Fatalf("load image: %v", err)
	}
	if format != "png" || img.Bounds().Dx() != 4 {
		t.Fatalf("decoded %s %v", format, img.Bounds())
	}
	b, _ := src.Sample(context.Background(), "basalte")
	if _, err := src.ProbeImage(context.Background(), b); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFSAnnotations(t *testing.T) {
	src := FS{Root: dataRoot(t)}
	got := annotation.Load(context.Background(), src, "G12", annotation.Viewer2D)
	if len(got) != 1 || got[0].Content.Title != "Quartz" {
		t.Fatalf("annotations: %+v", got)
	}
	if _, err := src.Annotations(context.Background(), "B1"); !errors.Is(err, annotation.ErrNoAnnotations) {
		t.Fatalf("expected ErrNoAnnotations, got %v", err)
	}
}

func TestParseMetadataRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"missing code":   `{"nom":"x"}`,
		"negative width": `{"code":"a","nom":"b","reference_width_cm":-1}`,
		"meta not obj":   `{"code":"a","nom":"b","meta":{"k":"v"}}`,
	}
	for name, raw := range cases {
		if _, err := ParseMetadata("d", []byte(raw)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func newServer(t *testing.T, root string) *httptest.Server {
	t.Helper()
	files := http.FileServer(http.Dir(root))
	mux := http.NewServeMux()
	mux.HandleFunc("/api/samples", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[{"code":"G12","nom":"Granite","origine":"Magmatique","path":"models/granite/"}]`)
	})
	mux.Handle("/", files)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClientListAndSample(t *testing.T) {
	srv := newServer(t, dataRoot(t))
	c := NewClient(srv.URL+"/", "tok")
	list, err := c.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].Path != "models/granite/" {
		t.Fatalf("list: %+v", list)
	}
	s, err := c.Sample(context.Background(), "granite")
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	if s.ReferenceWidthCm != 3 || len(s.Meta) != 2 || s.Meta[0].Key != "texture" {
		t.Fatalf("sample: %+v", s)
	}
	got := c.Samples(context.Background(), []string{"granite", "nope", "broken"})
	if len(got) != 1 {
		t.Fatalf("samples: %+v", got)
	}

	anon := NewClient(srv.URL, "")
	_, err = anon.List(context.Background())
	var ae *AssetError
	if !errors.As(err, &ae) || ae.Status != http.StatusUnauthorized {
		t.Fatalf("expected 401 asset error, got %v", err)
	}
}

func TestClientProbeUsesContentType(t *testing.T) {
	var heads []string
	mux := http.NewServeMux()
	mux.HandleFunc("/models/granite/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			heads = append(heads, r.URL.Path)
		}
		switch r.URL.Path {
		case "/models/granite/TS.jpg":
			w.Header().Set("Content-Type", "text/html")
		case "/models/granite/TS.tiff":
			w.Header().Set("Content-Type", "image/tiff")
		default:
			http.NotFound(w, r)
		}
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(srv.URL, "")
	ref, err := c.ProbeImage(context.Background(), domain.Sample{Code: "G12", Path: "models/granite/"})
	if err != nil {
		t.Fatalf("probe: %v", err)
	}
	if ref != "models/granite/TS.tiff" {
		t.Fatalf("ref = %q", ref)
	}
	want := []string{"/models/granite/TS.png", "/models/granite/TS.jpg", "/models/granite/TS.jpeg", "/models/granite/TS.tiff"}
	if strings.Join(heads, ",") != strings.Join(want, ",") {
		t.Fatalf("probe order = %v", heads)
	}
}

func TestClientAnnotationsMissing(t *testing.T) {
	srv := newServer(t, dataRoot(t))
	c := NewClient(srv.URL, "")
	if _, err := c.Annotations(context.Background(), "B1"); !errors.Is(err, annotation.ErrNoAnnotations) {
		t.Fatalf("expected ErrNoAnnotations, got %v", err)
	}
	got := annotation.Load(context.Background(), c, "G12", annotation.Viewer2D)
	if len(got) != 1 {
		t.Fatalf("annotations: %+v", got)
	}
	rc, err := c.Open(context.Background(), "models/granite/TS.jpeg")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rc.Close()
	if _, _, err := image.Decode(rc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, err := c.Open(context.Background(), "models/granite/missing.obj"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestIndexRoundTripAndCachedFallback(t *testing.T) {
	ctx := context.Background()
	idx, err := OpenIndex(filepath.Join(t.TempDir(), "cache", "catalog.sqlite"))
	if err != nil {
		t.Fatalf("open index: %v", err)
	}
	defer idx.Close()

	if ts, err := idx.RefreshedAt(ctx); err != nil || !ts.IsZero() {
		t.Fatalf("fresh index refreshed at %v, %v", ts, err)
	}

	root := dataRoot(t)
	cached := Cached{Source: FS{Root: root}, Index: idx}
	list, err := cached.List(ctx)
	if err != nil || len(list) != 2 {
		t.Fatalf("list: %v %+v", err, list)
	}
	got, err := idx.Get(ctx, "granite")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Code != "G12" || got.Path != "models/granite/" || len(got.Meta) != 2 || got.Meta[1].Key != "lieu" {
		t.Fatalf("cached sample: %+v", got)
	}
	mag, err := idx.ByOrigin(ctx, domain.OriginMagmatic)
	if err != nil || len(mag) != 1 {
		t.Fatalf("by origin: %v %+v", err, mag)
	}
	if _, err := idx.Get(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	// The HTTP source is down; the cache answers.
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer down.Close()
	offline := Cached{Source: NewClient(down.URL, ""), Index: idx}
	list, err = offline.List(ctx)
	if err != nil || len(list) != 2 || list[0].Code != "B1" {
		t.Fatalf("offline list: %v %+v", err, list)
	}
	s, err := offline.Sample(ctx, "granite")
	if err != nil || s.Code != "G12" {
		t.Fatalf("offline sample: %v %+v", err, s)
	}
	if ts, err := idx.RefreshedAt(ctx); err != nil || ts.IsZero() {
		t.Fatalf("refreshed at %v, %v", ts, err)
	}
}

func TestNewPicksSource(t *testing.T) {
	if _, ok := New("/data", "", nil).(FS); !ok {
		t.Fatalf("expected FS source")
	}
	if c, ok := New("", "http://x/", nil).(*Client); !ok || c.BaseURL != "http://x" {
		t.Fatalf("expected client source")
	}
}

func TestFromConfigWrapsCache(t *testing.T) {
	root := dataRoot(t)
	src, closeFn, err := FromConfig(config.CatalogConfig{DataRoot: root}, "")
	if err != nil {
		t.Fatalf("from config: %v", err)
	}
	closeFn()
	if _, ok := src.(FS); !ok {
		t.Fatalf("expected FS source, got %T", src)
	}

	cache := filepath.Join(t.TempDir(), "catalog.sqlite")
	src, closeFn, err = FromConfig(config.CatalogConfig{DataRoot: root, CachePath: cache}, "")
	if err != nil {
		t.Fatalf("from config with cache: %v", err)
	}
	defer closeFn()
	c, ok := src.(Cached)
	if !ok {
		t.Fatalf("expected Cached source, got %T", src)
	}
	if fs, ok := Local(c); !ok || fs.Root != root {
		t.Fatalf("local root = %+v %v", fs, ok)
	}
	if _, ok := Local(NewClient("http://x", "")); ok {
		t.Fatalf("client has no local root")
	}
	if list, err := c.List(context.Background()); err != nil || len(list) != 2 {
		t.Fatalf("list: %v %+v", err, list)
	}
}
