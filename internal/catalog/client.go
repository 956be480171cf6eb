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
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"rockviewer/internal/annotation"
	"rockviewer/internal/config"
	"rockviewer/internal/domain"
	applog "rockviewer/internal/log"
)

// maxMetadataBytes bounds a metadata or annotation document.
const maxMetadataBytes = 4 << 20

// Client reads the catalog from the static web layout served by the backend
// (or any static file server): /api/samples, /models/<dir>/... and
// /data/annotations/<code>.json.
type Client struct {
	BaseURL string
	Token   string // bearer token
	client  *http.Client
}

// NewClient creates a new catalog client. baseURL may include a trailing slash; it will be normalized.
func NewClient(baseURL string, token string) *Client {
	b := strings.TrimRight(baseURL, "/")
	return &Client{
		BaseURL: b,
		Token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// NewClientFromConfig applies the catalog timeout and TLS settings.
func NewClientFromConfig(cfg config.CatalogConfig, token string) *Client {
	c := NewClient(cfg.BaseURL, token)
	if cfg.TimeoutMs > 0 {
		c.client.Timeout = time.Duration(cfg.TimeoutMs) * time.Millisecond
	}
	if cfg.TLSInsecure {
		c.client.Transport = &http.Transport{
			Proxy:           http.ProxyFromEnvironment,
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, // #nosec G402 opt-in for self-signed lab servers
		}
	}
	return c
}

func (c *Client) url(ref string) (string, error) {
	u, err := url.Parse(c.BaseURL + "/" + strings.TrimLeft(ref, "/"))
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

func (c *Client) do(ctx context.Context, method, ref string) (*http.Response, string, error) {
	u, err := c.url(ref)
	if err != nil {
		return nil, "", err
	}
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return nil, u, err
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, u, &AssetError{URL: u, Err: err}
	}
	return resp, u, nil
}

// get performs a GET and returns the body. 404 maps to ErrNotFound.
func (c *Client) get(ctx context.Context, ref string) ([]byte, error) {
	resp, u, err := c.do(ctx, http.MethodGet, ref)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := statusErr(resp, u); err != nil {
		return nil, err
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxMetadataBytes))
	if err != nil {
		return nil, &AssetError{URL: u, Err: err}
	}
	return b, nil
}

func statusErr(resp *http.Response, u string) error {
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return &AssetError{URL: u, Status: resp.StatusCode, Err: ErrNotFound}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return &AssetError{URL: u, Status: resp.StatusCode, Err: fmt.Errorf("server %s", resp.Status)}
	}
	return nil
}

// List returns the samples published under /api/samples.
func (c *Client) List(ctx context.Context) ([]domain.Sample, error) {
	b, err := c.get(ctx, "/api/samples")
	if err != nil {
		return nil, err
	}
	var list []domain.Sample
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&list); err != nil {
		return nil, fmt.Errorf("decode samples: %w", err)
	}
	return list, nil
}

// Sample fetches /models/<dir>/metadata.json.
func (c *Client) Sample(ctx context.Context, dir string) (domain.Sample, error) {
	b, err := c.get(ctx, SampleDir(dir)+"metadata.json")
	if err != nil {
		return domain.Sample{}, fmt.Errorf("sample %s: %w", dir, err)
	}
	return ParseMetadata(dir, b)
}

// Samples fetches the metadata of each dir, skipping the ones that fail.
func (c *Client) Samples(ctx context.Context, dirs []string) []domain.Sample {
	return collect(ctx, dirs, c.Sample)
}

// ProbeImage sends a HEAD request for each image variant and returns the
// reference of the first one served with an image/* content type.
func (c *Client) ProbeImage(ctx context.Context, s domain.Sample) (string, error) {
	log := applog.WithOperation(applog.WithComponent("catalog"), "probe")
	for _, ext := range ImageExts {
		ref := ImageRef(s, ext)
		resp, u, err := c.do(ctx, http.MethodHead, ref)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			log.DebugContext(ctx, "probe failed", slog.String("url", u), slog.Any("err", err))
			continue
		}
		_ = resp.Body.Close()
		ct := resp.Header.Get("Content-Type")
		if resp.StatusCode >= 200 && resp.StatusCode < 300 && strings.HasPrefix(ct, "image/") {
			return ref, nil
		}
	}
	return "", fmt.Errorf("image for %s: %w", s.Code, ErrNotFound)
}

// Open streams an asset. The caller closes the body.
func (c *Client) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	resp, u, err := c.do(ctx, http.MethodGet, ref)
	if err != nil {
		return nil, err
	}
	if err := statusErr(resp, u); err != nil {
		_ = resp.Body.Close()
		return nil, err
	}
	return resp.Body, nil
}

// Annotations fetches /data/annotations/<code>.json.
func (c *Client) Annotations(ctx context.Context, code string) ([]byte, error) {
	b, err := c.get(ctx, "/data/annotations/"+url.PathEscape(code)+".json")
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", code, annotation.ErrNoAnnotations)
	}
	return b, err
}

func collect(ctx context.Context, dirs []string, read func(context.Context, string) (domain.Sample, error)) []domain.Sample {
	log := applog.WithOperation(applog.WithComponent("catalog"), "list")
	out := make([]domain.Sample, 0, len(dirs))
	for _, d := range dirs {
		s, err := read(ctx, d)
		if err != nil {
			log.WarnContext(ctx, "sample skipped", slog.String("dir", d), slog.Any("err", err))
			continue
		}
		out = append(out, s)
	}
	return out
}
