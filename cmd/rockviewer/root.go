/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"rockviewer/internal/catalog"
	"rockviewer/internal/config"
	"rockviewer/internal/domain"
	applog "rockviewer/internal/log"
	"rockviewer/internal/version"
)

// cli carries the configuration shared by every subcommand.
type cli struct {
	cfg   config.AppConfig
	token string

	dataRoot   string
	catalogURL string
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "rockviewer",
		Short: "Inspect, measure and annotate rock samples",
		Long: `rockviewer browses a rock sample catalog, measures thin-section images and
3D models, and serves the catalog with live measurement events.

Samples are read from a local data root (--data-root, RV_DATA_ROOT) laid out
as models/<dir>/metadata.json, or from a catalog server (--catalog-url).`,
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.load()
		},
	}
	root.PersistentFlags().StringVar(&c.dataRoot, "data-root", "", "local data root (overrides the config)")
	root.PersistentFlags().StringVar(&c.catalogURL, "catalog-url", "", "catalog server URL (overrides the config)")

	root.AddCommand(
		newVersionCmd(),
		newConfigCmd(c),
		newSamplesCmd(c),
		newProbeCmd(c),
		newAnnotationsCmd(c),
		newMeasureCmd(c),
		newPickCmd(c),
		newConsoleCmd(c),
		newUICmd(),
		newServeCmd(c),
	)
	return root
}

func (c *cli) load() error {
	cfg, token, err := config.Load()
	if err != nil {
		return err
	}
	if c.dataRoot != "" {
		cfg.Catalog.DataRoot = c.dataRoot
	}
	if c.catalogURL != "" {
		cfg.Catalog.BaseURL = c.catalogURL
		if c.dataRoot == "" {
			cfg.Catalog.DataRoot = ""
		}
	}
	c.cfg, c.token = cfg, token
	applog.WithComponent("cli").Debug("config loaded",
		slog.String("data_root", cfg.Catalog.DataRoot),
		slog.String("catalog_url", cfg.Catalog.BaseURL))
	return nil
}

func (c *cli) timeout() time.Duration {
	if c.cfg.Catalog.TimeoutMs > 0 {
		return time.Duration(c.cfg.Catalog.TimeoutMs) * time.Millisecond
	}
	return 15 * time.Second
}

// withSource runs fn against the configured catalog.
func (c *cli) withSource(cmd *cobra.Command, fn func(ctx context.Context, src catalog.Source) error) error {
	src, closeFn, err := catalog.FromConfig(c.cfg.Catalog, c.token)
	if err != nil {
		return err
	}
	defer closeFn()
	ctx, cancel := context.WithTimeout(cmd.Context(), c.timeout())
	defer cancel()
	return fn(ctx, src)
}

// findSample resolves a sample by code or directory name.
func findSample(ctx context.Context, src catalog.Source, code string) (domain.Sample, error) {
	list, err := src.List(ctx)
	if err != nil {
		return domain.Sample{}, err
	}
	return catalog.Find(list, code)
}
