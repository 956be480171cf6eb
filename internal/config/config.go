/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig is the user-editable configuration persisted as YAML in the user scope.
// Environment variables are read-only overrides applied after the file.
//
// config_version: bump when the structure changes in a backward-incompatible way.

type CatalogConfig struct {
	BaseURL     string `yaml:"base_url"`
	DataRoot    string `yaml:"data_root"` // local directory with models/ and data/annotations/
	TimeoutMs   int    `yaml:"timeout_ms"`
	TLSInsecure bool   `yaml:"tls_insecure"`
	CachePath   string `yaml:"cache_path"` // sqlite sample cache; empty disables it
	// Token is not stored on disk; it lives in the OS keychain.
}

type ViewerConfig struct {
	MinScale         float64 `yaml:"min_scale"`
	MaxScale         float64 `yaml:"max_scale"`
	WheelFactor      float64 `yaml:"wheel_factor"`
	PopupMargin      float64 `yaml:"popup_margin"`
	DragThresholdPx  float64 `yaml:"drag_threshold_px"`
	ReferenceWidthCm float64 `yaml:"reference_width_cm"`
	MagnifierSize    int     `yaml:"magnifier_size"`
	MagnifierZoom    float64 `yaml:"magnifier_zoom"`
}

type ServerConfig struct {
	Addr        string `yaml:"addr"`
	DatabaseURL string `yaml:"database_url"`
}

type GeneralConfig struct {
	TelemetryOptIn bool   `yaml:"telemetry_opt_in"`
	Theme          string `yaml:"theme"` // "system" | "light" | "dark"
	EnableServer   bool   `yaml:"enable_server"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

type AppConfig struct {
	ConfigVersion int           `yaml:"config_version"`
	General       GeneralConfig `yaml:"general"`
	Catalog       CatalogConfig `yaml:"catalog"`
	Viewer        ViewerConfig  `yaml:"viewer"`
	Server        ServerConfig  `yaml:"server"`
	Logging       LoggingConfig `yaml:"logging"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		General:       GeneralConfig{TelemetryOptIn: false, Theme: "system", EnableServer: false},
		Catalog:       CatalogConfig{BaseURL: "http://localhost:8080", TimeoutMs: 15000},
		Viewer: ViewerConfig{
			MinScale:         0.2,
			MaxScale:         5,
			WheelFactor:      0.001,
			PopupMargin:      10,
			DragThresholdPx:  5,
			ReferenceWidthCm: 2.5,
			MagnifierSize:    100,
			MagnifierZoom:    4,
		},
		Server:  ServerConfig{Addr: ":8080"},
		Logging: LoggingConfig{Level: "info", Format: "console"},
	}
}

// Env var names used as overrides.
const (
	EnvCatalogURL       = "RV_CATALOG_URL"
	EnvCatalogTimeoutMs = "RV_CATALOG_TIMEOUT_MS"
	EnvCatalogTLSInsec  = "RV_TLS_INSECURE"
	EnvDataRoot         = "RV_DATA_ROOT"
	EnvCachePath        = "RV_CACHE_PATH"
	EnvTelemetryOptIn   = "RV_TELEMETRY_OPT_IN"
	EnvEnableServer     = "RV_ENABLE_SERVER"
	EnvServerAddr       = "RV_ADDR"
	EnvDatabaseURL      = "RV_PG_DSN"
	EnvReferenceWidthCm = "RV_REFERENCE_WIDTH_CM"
	// EnvLogLevel Logging envs
	EnvLogLevel  = "RV_LOG_LEVEL"
	EnvLogFormat = "RV_LOG_FORMAT"
	EnvLogSource = "RV_LOG_SOURCE"
	EnvLogFile   = "RV_LOG_FILE"
	// EnvConfigPath points Load/Save at an explicit file.
	EnvConfigPath = "RV_CONFIG"
)

// Service/keys for OS keyring.
const (
	keyringService = "RockViewer"
	keyringToken   = "catalog_token"
)

// tokenStore abstracts the keyring so tests can stub it.
var tokenStore TokenStore = osKeyring{}

type TokenStore interface {
	Get(service, key string) (string, error)
	Set(service, key, value string) error
	Delete(service, key string) error
}

// ConfigPath returns the per-user config file path.
func ConfigPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return p, nil
	}
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "RockViewer")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "RockViewer")
	default:
		home := os.Getenv("HOME")
		if home == "" {
			return "", errors.New("cannot resolve config directory")
		}
		if x := os.Getenv("XDG_CONFIG_HOME"); x != "" {
			base = filepath.Join(x, "rockviewer")
		} else {
			base = filepath.Join(home, ".config", "rockviewer")
		}
	}
	return filepath.Join(base, "config.yaml"), nil
}

// Load reads the config file (if present), applies defaults and merges env overrides.
// The catalog token comes from the keyring and is returned separately.
func Load() (AppConfig, string, error) {
	cfg := Defaults()
	path, err := ConfigPath()
	if err != nil {
		return cfg, "", err
	}
	if data, err := os.ReadFile(path); err == nil {
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err == nil {
			mergeInto(&cfg, &fileCfg)
		}
	}
	applyEnvOverrides(&cfg)
	tok, _ := tokenStore.Get(keyringService, keyringToken)
	return cfg, tok, nil
}

// Save writes the YAML file and stores a non-empty token in the keyring.
func Save(cfg AppConfig, token string) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	if token != "" {
		if err := tokenStore.Set(keyringService, keyringToken, token); err != nil {
			return err
		}
	}
	return nil
}

// ClearToken removes the stored catalog token.
func ClearToken() error { return tokenStore.Delete(keyringService, keyringToken) }

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	if src.General.Theme != "" {
		dst.General.Theme = src.General.Theme
	}
	dst.General.TelemetryOptIn = src.General.TelemetryOptIn
	dst.General.EnableServer = src.General.EnableServer

	if src.Catalog.BaseURL != "" {
		dst.Catalog.BaseURL = src.Catalog.BaseURL
	}
	if s := strings.TrimSpace(src.Catalog.DataRoot); s != "" {
		dst.Catalog.DataRoot = s
	}
	if src.Catalog.TimeoutMs != 0 {
		dst.Catalog.TimeoutMs = src.Catalog.TimeoutMs
	}
	dst.Catalog.TLSInsecure = src.Catalog.TLSInsecure
	if s := strings.TrimSpace(src.Catalog.CachePath); s != "" {
		dst.Catalog.CachePath = s
	}

	// viewer: zero means "keep default"
	mergeFloat(&dst.Viewer.MinScale, src.Viewer.MinScale)
	mergeFloat(&dst.Viewer.MaxScale, src.Viewer.MaxScale)
	mergeFloat(&dst.Viewer.WheelFactor, src.Viewer.WheelFactor)
	mergeFloat(&dst.Viewer.PopupMargin, src.Viewer.PopupMargin)
	mergeFloat(&dst.Viewer.DragThresholdPx, src.Viewer.DragThresholdPx)
	mergeFloat(&dst.Viewer.ReferenceWidthCm, src.Viewer.ReferenceWidthCm)
	mergeFloat(&dst.Viewer.MagnifierZoom, src.Viewer.MagnifierZoom)
	if src.Viewer.MagnifierSize > 0 {
		dst.Viewer.MagnifierSize = src.Viewer.MagnifierSize
	}
	if dst.Viewer.MinScale > dst.Viewer.MaxScale {
		dst.Viewer.MinScale, dst.Viewer.MaxScale = dst.Viewer.MaxScale, dst.Viewer.MinScale
	}

	if s := strings.TrimSpace(src.Server.Addr); s != "" {
		dst.Server.Addr = s
	}
	if s := strings.TrimSpace(src.Server.DatabaseURL); s != "" {
		dst.Server.DatabaseURL = s
	}

	if strings.TrimSpace(src.Logging.Level) != "" {
		dst.Logging.Level = strings.ToLower(strings.TrimSpace(src.Logging.Level))
	}
	if strings.TrimSpace(src.Logging.Format) != "" {
		dst.Logging.Format = strings.ToLower(strings.TrimSpace(src.Logging.Format))
	}
	dst.Logging.Source = src.Logging.Source
	if strings.TrimSpace(src.Logging.File) != "" {
		dst.Logging.File = strings.TrimSpace(src.Logging.File)
	}
}

func mergeFloat(dst *float64, v float64) {
	if v > 0 {
		*dst = v
	}
}

func parseBool(v string) bool {
	lv := strings.ToLower(strings.TrimSpace(v))
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvCatalogURL)); v != "" {
		cfg.Catalog.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvCatalogTimeoutMs)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Catalog.TimeoutMs = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvCatalogTLSInsec)); v != "" {
		cfg.Catalog.TLSInsecure = parseBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvDataRoot)); v != "" {
		cfg.Catalog.DataRoot = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvCachePath)); v != "" {
		cfg.Catalog.CachePath = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvTelemetryOptIn)); v != "" {
		cfg.General.TelemetryOptIn = parseBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvEnableServer)); v != "" {
		cfg.General.EnableServer = parseBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvServerAddr)); v != "" {
		cfg.Server.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvDatabaseURL)); v != "" {
		cfg.Server.DatabaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvReferenceWidthCm)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.Viewer.ReferenceWidthCm = f
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = parseBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

var overrideKeys = map[string]string{
	"catalog.base_url":          EnvCatalogURL,
	"catalog.timeout_ms":        EnvCatalogTimeoutMs,
	"catalog.tls_insecure":      EnvCatalogTLSInsec,
	"catalog.data_root":         EnvDataRoot,
	"catalog.cache_path":        EnvCachePath,
	"general.telemetry_opt_in":  EnvTelemetryOptIn,
	"general.enable_server":     EnvEnableServer,
	"server.addr":               EnvServerAddr,
	"server.database_url":       EnvDatabaseURL,
	"viewer.reference_width_cm": EnvReferenceWidthCm,
	"logging.level":             EnvLogLevel,
	"logging.format":            EnvLogFormat,
	"logging.source":            EnvLogSource,
	"logging.file":              EnvLogFile,
}

// EnvOverrideFor returns the env var name if the field is overridden by the environment.
func EnvOverrideFor(key string) (string, bool) {
	env, ok := overrideKeys[key]
	if !ok || os.Getenv(env) == "" {
		return "", false
	}
	return env, true
}

// Timeout returns the catalog request timeout, falling back to the default.
func (c CatalogConfig) Timeout() time.Duration {
	if c.TimeoutMs <= 0 {
		return time.Duration(Defaults().Catalog.TimeoutMs) * time.Millisecond
	}
	return time.Duration(c.TimeoutMs) * time.Millisecond
}
