/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package telemetry sends opt-in anonymous usage events (tool activations,
// completed measurements) and optional crash uploads.
package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	applog "rockviewer/internal/log"
	"rockviewer/internal/version"

	"github.com/google/uuid"
)

// Event names emitted by the viewer.
const (
	EventSampleLoaded     = "sample.loaded"
	EventMeasurementDone  = "measurement.completed"
	EventAnnotationOpened = "annotation.opened"
)

// known lists the events that are ever sent; anything else is dropped.
var known = map[string]bool{
	EventSampleLoaded:     true,
	EventMeasurementDone:  true,
	EventAnnotationOpened: true,
}

// allowedProps are the only properties forwarded. Sample codes, coordinates
// and measured values never leave the machine.
var allowedProps = map[string]bool{"viewer": true, "type": true, "tool": true}

// Known reports whether name is a viewer event.
func Known(name string) bool { return known[name] }

// Config holds runtime configuration for telemetry and crash uploads.
// All telemetry is strictly opt-in and disabled by default.
//
// Environment variables (read by FromEnv):
// - RV_TELEMETRY_OPT_IN: "1", "true", "yes" to enable metrics
// - RV_TELEMETRY_URL: URL to POST JSON events to
// - RV_CRASH_UPLOAD_URL: URL to POST crash reports to
// - RV_TELEMETRY_TIMEOUT_MS: optional request timeout, default 1500ms
// - RV_TELEMETRY_DEBUG: if set, logs event send attempts
//
// If no URLs are set, events are dropped (no-ops), even if opt-in is true.
type Config struct {
	OptIn        bool
	EventsURL    string
	CrashURL     string
	Timeout      time.Duration
	DebugLogging bool
}

func FromEnv() Config {
	optIn := parseBool(os.Getenv("RV_TELEMETRY_OPT_IN"))
	cfg := Config{
		OptIn:        optIn,
		EventsURL:    strings.TrimSpace(os.Getenv("RV_TELEMETRY_URL")),
		CrashURL:     strings.TrimSpace(os.Getenv("RV_CRASH_UPLOAD_URL")),
		Timeout:      1500 * time.Millisecond,
		DebugLogging: os.Getenv("RV_TELEMETRY_DEBUG") != "",
	}
	if ms := strings.TrimSpace(os.Getenv("RV_TELEMETRY_TIMEOUT_MS")); ms != "" {
		if v, err := time.ParseDuration(ms + "ms"); err == nil {
			cfg.Timeout = v
		}
	}
	return cfg
}

func parseBool(v string) bool {
	s := strings.ToLower(strings.TrimSpace(v))
	return s == "1" || s == "true" || s == "yes" || s == "on"
}

// Client sends events from a bounded queue on its own goroutine. Send
// errors are only logged in debug mode.
type Client struct {
	cfg    Config
	log    *slog.Logger
	cli    *http.Client
	q      chan payload
	once   sync.Once
	closed chan struct{}
	// install is a random per-process id; it carries no user data.
	install string
	dropped atomic.Int64
}

// Dropped is the number of events discarded because the queue was full.
func (c *Client) Dropped() int64 { return c.dropped.Load() }

type payload struct {
	Name    string         `json:"name"`
	TS      string         `json:"ts"`
	Version string         `json:"version"`
	OS      string         `json:"os"`
	Arch    string         `json:"arch"`
	Install string         `json:"install"`
	Props   map[string]any `json:"props,omitempty"`
}

var defaultClient *Client
var defaultOnce sync.Once

// InitDefault initializes the package-level default client from env when first used.
func InitDefault() {
	defaultOnce.Do(func() {
		NewDefault(FromEnv())
	})
}

// NewDefault creates and installs the default client with cfg.
func NewDefault(cfg Config) {
	defaultClient = New(cfg)
}

// New constructs a client.
func New(cfg Config) *Client {
	l := applog.WithComponent("telemetry")
	c := &Client{
		cfg:     cfg,
		log:     l,
		cli:     &http.Client{Timeout: cfg.Timeout},
		q:       make(chan payload, 64),
		closed:  make(chan struct{}),
		install: uuid.NewString(),
	}
	go c.loop()
	return c
}

// Enabled reports whether anonymous telemetry is enabled and an endpoint is configured.
func (c *Client) Enabled() bool { return c != nil && c.cfg.OptIn && c.cfg.EventsURL != "" }

// Enabled reports whether anonymous telemetry is enabled using the default client.
func Enabled() bool {
	InitDefault()
	return defaultClient.Enabled()
}

// Event queues a viewer event if enabled. Unknown names are ignored and
// props are reduced to allowedProps. It never blocks.
func (c *Client) Event(name string, props map[string]any) {
	if !c.Enabled() || !known[name] {
		return
	}
	p := payload{
		Name:    name,
		TS:      time.Now().UTC().Format(time.RFC3339Nano),
		Version: version.String(),
		OS:      runtime.GOOS,
		Arch:    runtime.GOARCH,
		Install: c.install,
	}
	for k, v := range props {
		if !allowedProps[k] {
			continue
		}
		if p.Props == nil {
			p.Props = make(map[string]any, len(allowedProps))
		}
		p.Props[k] = v
	}
	select {
	case c.q <- p:
	default:
		c.dropped.Add(1)
	}
}

// Event using default client.
func Event(name string, props map[string]any) { InitDefault(); defaultClient.Event(name, props) }

// Flush waits briefly for the queue to drain.
func (c *Client) Flush(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	deadline := time.Now().Add(500 * time.Millisecond)
	for {
		if len(c.q) == 0 || time.Now().After(deadline) {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(25 * time.Millisecond):
		}
	}
}

// Close stops background goroutine.
func (c *Client) Close() { c.once.Do(func() { close(c.closed) }) }

func (c *Client) loop() {
	for {
		select {
		case <-c.closed:
			return
		case item := <-c.q:
			c.send(item)
		}
	}
}

func (c *Client) send(item payload) {
	buf, _ := json.Marshal(item)
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, c.cfg.EventsURL, bytes.NewReader(buf))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.cli.Do(req)
	if err != nil {
		if c.cfg.DebugLogging {
			c.log.Debug("telemetry send failed", slog.Any("err", err))
		}
		return
	}
	_ = resp.Body.Close()
	if c.cfg.DebugLogging {
		c.log.Debug("telemetry event sent", slog.String("name", item.Name))
	}
}

// UploadCrash posts an already-serialized crash report to the configured crash URL if opt-in.
func (c *Client) UploadCrash(report []byte) {
	if c == nil || !c.cfg.OptIn || c.cfg.CrashURL == "" {
		return
	}
	go func(b []byte) {
		req, err := http.NewRequest(http.MethodPost, c.cfg.CrashURL, bytes.NewReader(b))
		if err != nil {
			return
		}
		req.Header.Set("Content-Type", "text/plain; charset=utf-8")
		resp, err := c.cli.Do(req)
		if err != nil {
			if c.cfg.DebugLogging {
				c.log.Debug("crash upload failed", slog.Any("err", err))
			}
			return
		}
		_ = resp.Body.Close()
		if c.cfg.DebugLogging {
			c.log.Debug("crash report uploaded")
		}
	}(append([]byte(nil), report...))
}

// UploadCrash using default client.
func UploadCrash(report []byte) { InitDefault(); defaultClient.UploadCrash(report) }
