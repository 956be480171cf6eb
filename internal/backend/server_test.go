/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"rockviewer/internal/annotation"
	"rockviewer/internal/catalog"
	"rockviewer/internal/domain"
)

const (
	graniteMeta = `{"code":"G1","nom":"Granite","origine":"Magmatique","reference_width_cm":3,"meta":{"general":{"title":"Général","content":"Roche grenue"}}}`
	schistMeta  = `{"code":"S1","nom":"Schiste","origine":"Inconnue"}`
)

func writeFile(t *testing.T, path, data string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
}

// seedDataRoot lays out models/<dir>/metadata.json, one TIFF thin section
// and one annotation file.
func seedDataRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "models", "schist", "metadata.json"), schistMeta)
	writeFile(t, filepath.Join(root, "models", "granite", "metadata.json"), graniteMeta)
	writeFile(t, filepath.Join(root, "models", "granite", "TS.tiff"), "II*\x00")
	writeFile(t, filepath.Join(root, "data", "annotations", "G1.json"), `[{"id":1,"viewer":"2D","type":"point","position":[1,2],"content":{"title":"Quartz"}}]`)
	return root
}

func newTestServer(t *testing.T) (*httptest.Server, *Hub, string) {
	t.Helper()
	root := seedDataRoot(t)
	hub := NewHub()
	go hub.Run()
	t.Cleanup(hub.Stop)
	cfg := Config{DataRoot: root, AuthSecret: "test-secret"}
	srv := httptest.NewServer(NewServer(cfg, CatalogStore{Source: catalog.FS{Root: root}}, hub).Handler())
	t.Cleanup(srv.Close)
	return srv, hub, root
}

func getJSON(t *testing.T, url string, dest any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if dest != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestHealthReadyVersion(t *testing.T) {
	srv, _, _ := newTestServer(t)
	for _, p := range []string{"/healthz", "/readyz", "/version"} {
		resp, err := http.Get(srv.URL + p)
		if err != nil {
			t.Fatalf("%s: %v", p, err)
		}
		b, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusOK || len(b) == 0 {
			t.Fatalf("%s: status %d body %q", p, resp.StatusCode, b)
		}
	}
}

func TestSampleListingAndFilters(t *testing.T) {
	srv, _, _ := newTestServer(t)
	var list []domain.Sample
	if code := getJSON(t, srv.URL+"/api/samples", &list); code != http.StatusOK {
		t.Fatalf("status %d", code)
	}
	if len(list) != 2 || list[0].Code != "G1" || list[1].Code != "S1" {
		t.Fatalf("list = %+v", list)
	}
	if list[0].Path != "models/granite/" || list[0].ReferenceWidthCm != 3 {
		t.Fatalf("granite = %+v", list[0])
	}
	list = nil
	getJSON(t, srv.URL+"/api/samples?q=GRAN", &list)
	if len(list) != 1 || list[0].Code != "G1" {
		t.Fatalf("text filter = %+v", list)
	}
	list = nil
	getJSON(t, srv.URL+"/api/samples?origin=Autre", &list)
	if len(list) != 1 || list[0].Code != "S1" {
		t.Fatalf("origin filter = %+v", list)
	}
	var groups []domain.Group
	getJSON(t, srv.URL+"/api/samples/groups", &groups)
	if len(groups) != 4 || groups[0].Origin != domain.OriginMagmatic || len(groups[0].Samples) != 1 || len(groups[3].Samples) != 1 {
		t.Fatalf("groups = %+v", groups)
	}
}

func TestWriteRoutesNeedToken(t *testing.T) {
	srv, _, _ := newTestServer(t)
	req, _ := http.NewRequest(http.MethodPut, srv.URL+"/api/samples", strings.NewReader(`[]`))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("no token: status %d", resp.StatusCode)
	}

	c := NewClient(srv.URL+"/", "")
	if _, err := c.IssueToken(context.Background(), "tester", time.Minute); err != nil {
		t.Fatalf("token: %v", err)
	}
	// The catalog store is read-only.
	if _, err := c.PushSamples(context.Background(), []domain.Sample{{Code: "X", Name: "Y"}}); err == nil || !strings.Contains(err.Error(), "409") {
		t.Fatalf("push on read-only store: %v", err)
	}
	c.Token = "forged.token"
	if _, err := c.Publish(context.Background(), TypeMeasurement, "G1", map[string]any{"text": "1.00 mm"}); err == nil {
		t.Fatalf("forged token accepted")
	}
}

func TestTokenRoundTrip(t *testing.T) {
	tok, err := signToken("s", "alice", time.Now().Add(time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if sub, err := verifyToken("s", tok); err != nil || sub != "alice" {
		t.Fatalf("verify = %q %v", sub, err)
	}
	if _, err := verifyToken("other", tok); err == nil {
		t.Fatalf("wrong secret accepted")
	}
	old, _ := signToken("s", "bob", time.Now().Add(-time.Minute))
	if _, err := verifyToken("s", old); err == nil {
		t.Fatalf("expired token accepted")
	}
}

func TestCatalogClientAgainstServer(t *testing.T) {
	srv, _, _ := newTestServer(t)
	ctx := context.Background()
	c := catalog.NewClient(srv.URL, "")
	list, err := c.List(ctx)
	if err != nil || len(list) != 2 {
		t.Fatalf("list = %v %v", list, err)
	}
	g, err := catalog.Find(list, "G1")
	if err != nil {
		t.Fatal(err)
	}
	ref, err := c.ProbeImage(ctx, g)
	if err != nil || ref != "models/granite/TS.tiff" {
		t.Fatalf("probe = %q %v", ref, err)
	}
	if _, err := c.Sample(ctx, "granite"); err != nil {
		t.Fatalf("metadata: %v", err)
	}
	anns, err := annotation.Fetch(ctx, c, "G1")
	if err != nil || len(anns) != 1 {
		t.Fatalf("annotations = %v %v", anns, err)
	}
	if _, err := c.Annotations(ctx, "NOPE"); !errors.Is(err, annotation.ErrNoAnnotations) {
		t.Fatalf("missing annotations: %v", err)
	}
	if code := getJSON(t, srv.URL+"/models/granite/", nil); code != http.StatusNotFound {
		t.Fatalf("directory listing status %d", code)
	}
}

func TestFilterSamplesPaging(t *testing.T) {
	list := []domain.Sample{{Code: "C"}, {Code: "A"}, {Code: "B"}}
	got := FilterSamples(list, SampleQuery{Limit: 1, Offset: 1})
	if len(got) != 1 || got[0].Code != "B" {
		t.Fatalf("page = %+v", got)
	}
	if got := FilterSamples(list, SampleQuery{Offset: 5}); got != nil {
		t.Fatalf("past the end = %+v", got)
	}
}

func TestParseVersion(t *testing.T) {
	if v, err := parseVersion("migrations/0002_samples_origin_idx.sql"); err != nil || v != 2 {
		t.Fatalf("parseVersion = %d %v", v, err)
	}
	if _, err := parseVersion("x_bad.sql"); err == nil {
		t.Fatalf("expected error")
	}
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil || len(entries) < 2 {
		t.Fatalf("embedded migrations = %v %v", entries, err)
	}
}
