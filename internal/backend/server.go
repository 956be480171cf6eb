/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package backend is the rockviewer HTTP server: it publishes the sample
// catalog (Postgres or a local data root), the annotation and model files,
// and a websocket hub for live viewer events.
package backend

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"database/sql"
	"embed"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"rockviewer/internal/catalog"
	"rockviewer/internal/config"
	"rockviewer/internal/domain"
	applog "rockviewer/internal/log"
	"rockviewer/internal/version"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// EnvAuthSecret is the HMAC secret used to sign bearer tokens.
const EnvAuthSecret = "RV_AUTH_SECRET"

const devSecret = "dev-secret-change-me"

func init() {
	// The builtin table has no TIFF entry; image probing relies on it.
	_ = mime.AddExtensionType(".tiff", "image/tiff")
	_ = mime.AddExtensionType(".tif", "image/tiff")
	_ = mime.AddExtensionType(".obj", "text/plain; charset=utf-8")
	_ = mime.AddExtensionType(".mtl", "text/plain; charset=utf-8")
	_ = mime.AddExtensionType(".stl", "model/stl")
}

// Config holds server configuration.
type Config struct {
	Addr        string
	DatabaseURL string
	// DataRoot holds models/ and data/annotations/; it is served as static
	// files and seeds the catalog.
	DataRoot   string
	AuthSecret string
}

// ConfigFrom builds the server config from the application config. PORT and
// RV_AUTH_SECRET override it.
func ConfigFrom(app config.AppConfig) Config {
	cfg := Config{Addr: app.Server.Addr, DatabaseURL: app.Server.DatabaseURL, DataRoot: app.Catalog.DataRoot}
	if v := os.Getenv("PORT"); v != "" {
		cfg.Addr = ":" + v
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	cfg.AuthSecret = os.Getenv(EnvAuthSecret)
	return cfg
}

// Server wires the routes to a store and a hub.
type Server struct {
	cfg    Config
	store  Store
	hub    *Hub
	source catalog.Source
	log    *slog.Logger
	mux    *http.ServeMux
}

// NewServer builds the route table. A nil hub disables /ws and event
// publishing.
func NewServer(cfg Config, store Store, hub *Hub) *Server {
	s := &Server{cfg: cfg, store: store, hub: hub, log: applog.WithComponent("server"), mux: http.NewServeMux()}
	if cfg.AuthSecret == "" {
		s.cfg.AuthSecret = devSecret
		s.log.Warn("auth secret not set; using insecure dev secret", slog.String("env", EnvAuthSecret))
	}
	if cfg.DataRoot != "" {
		s.source = catalog.FS{Root: cfg.DataRoot}
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler { return s.logRequests(s.mux) }

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	s.mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.store.Ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("db not ready"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	s.mux.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("rockviewer " + version.String()))
	})
	s.mux.HandleFunc("/api/auth/token", s.handleToken)
	s.mux.HandleFunc("/api/samples", s.handleSamples)
	s.mux.HandleFunc("/api/samples/groups", s.handleGroups)
	s.mux.HandleFunc("/api/samples/sync", s.withAuth(s.handleSync))
	s.mux.HandleFunc("/api/events", s.withAuth(s.handleEvent))
	if s.hub != nil {
		s.mux.Handle("/ws", s.hub)
	}
	if s.cfg.DataRoot != "" {
		files := noListing(http.FileServer(http.Dir(s.cfg.DataRoot)))
		s.mux.Handle("/"+catalog.ModelsDir+"/", files)
		s.mux.Handle("/data/annotations/", files)
	}
}

// noListing hides directory indexes.
func noListing(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		h.ServeHTTP(w, r)
	})
}

func queryFrom(r *http.Request) SampleQuery {
	v := r.URL.Query()
	q := SampleQuery{Text: v.Get("q"), Origin: v.Get("origin")}
	q.Limit, _ = strconv.Atoi(v.Get("limit"))
	q.Offset, _ = strconv.Atoi(v.Get("offset"))
	return q
}

// GET lists samples; PUT (authenticated) upserts a JSON array of samples.
func (s *Server) handleSamples(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		list, err := s.store.Samples(r.Context(), queryFrom(r))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if list == nil {
			list = []domain.Sample{}
		}
		writeJSON(w, http.StatusOK, list)
	case http.MethodPut, http.MethodPost:
		s.withAuth(s.handleUpsert)(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleGroups(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	q := queryFrom(r)
	q.Origin = ""
	list, err := s.store.Samples(r.Context(), q)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.GroupByOrigin(list))
}

func (s *Server) handleUpsert(w http.ResponseWriter, r *http.Request, sub string) {
	var list []domain.Sample
	b, err := io.ReadAll(io.LimitReader(r.Body, 4<<20))
	if err == nil {
		err = json.Unmarshal(b, &list)
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid sample list: %w", err))
		return
	}
	if err := s.store.Upsert(r.Context(), list); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrReadOnly) {
			status = http.StatusConflict
		}
		writeError(w, status, err)
		return
	}
	s.log.Info("samples upserted", slog.Int("count", len(list)), slog.String("sub", sub))
	s.publishSamples(len(list))
	writeJSON(w, http.StatusOK, map[string]any{"upserted": len(list)})
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request, sub string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.source == nil {
		writeError(w, http.StatusConflict, errors.New("no data root configured"))
		return
	}
	n, err := Sync(r.Context(), s.store, s.source)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrReadOnly) {
			status = http.StatusConflict
		}
		writeError(w, status, err)
		return
	}
	s.log.Info("catalog synced", slog.Int("count", n), slog.String("sub", sub))
	s.publishSamples(n)
	writeJSON(w, http.StatusOK, map[string]any{"synced": n})
}

func (s *Server) publishSamples(n int) {
	if s.hub == nil {
		return
	}
	data, _ := json.Marshal(map[string]int{"count": n})
	_, _ = s.hub.Publish(Message{Type: TypeSamples, Data: data})
}

// handleEvent relays a viewer event to the websocket subscribers.
func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request, sub string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.hub == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("event hub disabled"))
		return
	}
	var msg Message
	b, err := io.ReadAll(io.LimitReader(r.Body, maxMessageSize))
	if err == nil {
		err = json.Unmarshal(b, &msg)
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid event: %w", err))
		return
	}
	n, err := s.hub.Publish(msg)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.log.Debug("event relayed", slog.String("type", msg.Type), slog.Int("clients", n), slog.String("sub", sub))
	writeJSON(w, http.StatusAccepted, map[string]any{"delivered": n})
}

// POST /api/auth/token → { token, expires_at }
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Subject    string `json:"subject"`
		TTLSeconds int64  `json:"ttl_seconds"`
	}
	b, _ := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	_ = r.Body.Close()
	_ = json.Unmarshal(b, &req)
	if req.Subject == "" {
		req.Subject = "dev"
	}
	if req.TTLSeconds <= 0 || req.TTLSeconds > 24*3600 {
		req.TTLSeconds = 3600
	}
	exp := time.Now().Add(time.Duration(req.TTLSeconds) * time.Second)
	tok, err := signToken(s.cfg.AuthSecret, req.Subject, exp)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":      tok,
		"expires_at": exp.UTC().Format(time.RFC3339),
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ws" {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Debug("request",
			slog.String("method", r.Method), slog.String("path", r.URL.Path),
			slog.Int("status", rec.status), slog.Duration("took", time.Since(start)))
	})
}

// Start opens the store, applies migrations and serves until ctx is done.
// Without a database URL the catalog is served from the data root.
func Start(ctx context.Context, cfg Config) error {
	l := applog.WithComponent("server")
	var store Store
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		defer func() {
			if err := db.Close(); err != nil {
				l.Warn("db close", slog.Any("err", err))
			}
		}()
		pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := db.PingContext(pctx); err != nil {
			return fmt.Errorf("ping db: %w", err)
		}
		if err := applyMigrations(pctx, db); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		store = PGStore{DB: db}
		if cfg.DataRoot != "" {
			n, err := Sync(pctx, store, catalog.FS{Root: cfg.DataRoot})
			if err != nil {
				l.Warn("initial catalog sync failed", slog.Any("err", err))
			} else {
				l.Info("catalog synced", slog.Int("count", n))
			}
		}
	} else {
		if cfg.DataRoot == "" {
			return errors.New("server needs a database URL or a data root")
		}
		store = CatalogStore{Source: catalog.FS{Root: cfg.DataRoot}}
	}

	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	srv := &http.Server{Addr: cfg.Addr, Handler: NewServer(cfg, store, hub).Handler(), ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	l.Info("listening", slog.String("addr", cfg.Addr), slog.Bool("postgres", cfg.DatabaseURL != ""))
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	}
}

// applyMigrations applies embedded SQL migrations in filename order and
// records each applied version.
func applyMigrations(ctx context.Context, db *sql.DB) error {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(strings.ToLower(e.Name()), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	// dialect=PostgreSQL
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version BIGINT PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}

	applied := map[int64]bool{}
	rows, err := db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("select schema_migrations: %w", err)
	}
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			_ = rows.Close()
			return err
		}
		applied[v] = true
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	_ = rows.Close()

	l := applog.WithComponent("server")
	for _, fname := range files {
		version, err := parseVersion(fname)
		if err != nil {
			return err
		}
		if applied[version] {
			continue
		}
		b, err := migrationsFS.ReadFile(path.Join("migrations", fname))
		if err != nil {
			return err
		}
		if strings.TrimSpace(string(b)) == "" {
			continue
		}
		l.Info("applying migration", slog.String("file", fname))
		if _, err := db.ExecContext(ctx, string(b)); err != nil {
			return fmt.Errorf("apply %s: %w", fname, err)
		}
		if _, err := db.ExecContext(ctx, `INSERT INTO schema_migrations(version, name) VALUES($1, $2) ON CONFLICT DO NOTHING`, version, fname); err != nil {
			return fmt.Errorf("record %s: %w", fname, err)
		}
	}
	return nil
}

func parseVersion(name string) (int64, error) {
	base := path.Base(name)
	parts := strings.SplitN(base, "_", 2)
	v, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse version from %s: %w", name, err)
	}
	return v, nil
}

type tokenClaims struct {
	Sub string `json:"sub"`
	Exp int64  `json:"exp"` // unix seconds
}

func signToken(secret, subject string, exp time.Time) (string, error) {
	b, err := json.Marshal(tokenClaims{Sub: subject, Exp: exp.Unix()})
	if err != nil {
		return "", err
	}
	h := hmac.New(sha256.New, []byte(secret))
	_, _ = h.Write(b)
	return base64.RawURLEncoding.EncodeToString(b) + "." + base64.RawURLEncoding.EncodeToString(h.Sum(nil)), nil
}

func verifyToken(secret, token string) (string, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid token format")
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return "", fmt.Errorf("invalid token payload")
	}
	sig, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("invalid token signature")
	}
	h := hmac.New(sha256.New, []byte(secret))
	_, _ = h.Write(payload)
	if !hmac.Equal(h.Sum(nil), sig) {
		return "", fmt.Errorf("bad signature")
	}
	var claims tokenClaims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return "", fmt.Errorf("bad claims")
	}
	if claims.Exp < time.Now().Unix() {
		return "", fmt.Errorf("token expired")
	}
	if claims.Sub == "" {
		claims.Sub = "dev"
	}
	return claims.Sub, nil
}

func (s *Server) withAuth(next func(w http.ResponseWriter, r *http.Request, subject string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		const prefix = "bearer "
		if !strings.HasPrefix(strings.ToLower(auth), prefix) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte("missing bearer token"))
			return
		}
		sub, err := verifyToken(s.cfg.AuthSecret, strings.TrimSpace(auth[len(prefix):]))
		if err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte("invalid token"))
			return
		}
		next(w, r, sub)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}
