/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package telemetry

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// collector records the bodies posted to /events and /crash.
type collector struct {
	mu      sync.Mutex
	events  []map[string]any
	crashes []string
}

func (c *collector) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
		var m map[string]any
		_ = json.NewDecoder(r.Body).Decode(&m)
		c.mu.Lock()
		c.events = append(c.events, m)
		c.mu.Unlock()
	})
	mux.HandleFunc("/crash", func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		c.mu.Lock()
		c.crashes = append(c.crashes, string(b))
		c.mu.Unlock()
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func (c *collector) counts() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events), len(c.crashes)
}

// waitFor polls until cond holds or a second has passed.
func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

func TestMeasurementEventCarriesOnlyAllowedProps(t *testing.T) {
	col := &collector{}
	srv := col.server(t)
	c := New(Config{OptIn: true, EventsURL: srv.URL + "/events", CrashURL: srv.URL + "/crash", Timeout: 2 * time.Second})
	defer c.Close()
	if !c.Enabled() {
		t.Fatalf("expected client to be enabled")
	}

	c.Event(EventMeasurementDone, map[string]any{"viewer": "2D", "tool": "distance", "sample": "G12", "value": 1.5})
	c.Flush(context.Background())
	if !waitFor(func() bool { n, _ := col.counts(); return n == 1 }) {
		t.Fatalf("event not delivered")
	}
	m := col.events[0]
	if m["name"] != EventMeasurementDone {
		t.Fatalf("name = %v", m["name"])
	}
	if _, ok := m["ts"].(string); !ok {
		t.Fatalf("missing ts")
	}
	if id, _ := m["install"].(string); len(id) != 36 {
		t.Fatalf("install id should be a uuid, got %q", id)
	}
	props, _ := m["props"].(map[string]any)
	if props["tool"] != "distance" || props["viewer"] != "2D" {
		t.Fatalf("props = %v", props)
	}
	if _, leaked := props["sample"]; leaked {
		t.Fatalf("sample code was sent: %v", props)
	}
	if _, leaked := props["value"]; leaked {
		t.Fatalf("measured value was sent: %v", props)
	}

	c.UploadCrash([]byte("goroutine 1 [running]"))
	if !waitFor(func() bool { _, n := col.counts(); return n == 1 }) {
		t.Fatalf("crash report not uploaded")
	}
}

func TestDisabledAndUnknownEventsAreDropped(t *testing.T) {
	col := &collector{}
	srv := col.server(t)

	off := New(Config{OptIn: false, EventsURL: srv.URL + "/events", CrashURL: srv.URL + "/crash", Timeout: time.Second})
	defer off.Close()
	if off.Enabled() {
		t.Fatalf("expected disabled client")
	}
	off.Event(EventSampleLoaded, nil)
	off.UploadCrash([]byte("ignored"))

	on := New(Config{OptIn: true, EventsURL: srv.URL + "/events", Timeout: time.Second})
	defer on.Close()
	on.Event("", nil)
	on.Event("viewer.opened", map[string]any{"viewer": "3D"})
	on.Flush(context.Background())
	time.Sleep(50 * time.Millisecond)
	if e, cr := col.counts(); e != 0 || cr != 0 {
		t.Fatalf("sent %d events and %d crashes", e, cr)
	}
	if Known("viewer.opened") || !Known(EventAnnotationOpened) {
		t.Fatalf("Known mismatch")
	}
}

func TestSendFailuresDoNotBlock(t *testing.T) {
	c := New(Config{
		OptIn:        true,
		EventsURL:    "http://127.0.0.1:1/events",
		CrashURL:     "http://127.0.0.1:1/crash",
		Timeout:      50 * time.Millisecond,
		DebugLogging: true,
	})
	defer c.Close()
	for i := 0; i < 1000; i++ {
		c.Event(EventAnnotationOpened, map[string]any{"viewer": "3D", "type": "zone"})
	}
	c.UploadCrash([]byte("oops"))
	if c.Dropped() == 0 {
		t.Fatalf("expected a full queue to drop events")
	}
}

func TestFromEnvAndDefaultClient(t *testing.T) {
	t.Setenv("RV_TELEMETRY_OPT_IN", "yes")
	t.Setenv("RV_TELEMETRY_URL", "http://127.0.0.1:0")
	t.Setenv("RV_CRASH_UPLOAD_URL", "")
	t.Setenv("RV_TELEMETRY_TIMEOUT_MS", "100")

	cfg := FromEnv()
	if !cfg.OptIn || cfg.EventsURL == "" || cfg.Timeout != 100*time.Millisecond {
		t.Fatalf("FromEnv = %+v", cfg)
	}
	NewDefault(cfg)
	if !Enabled() {
		t.Fatalf("default client should be enabled")
	}
	NewDefault(Config{})
	if Enabled() {
		t.Fatalf("zero config should disable the default client")
	}
}
