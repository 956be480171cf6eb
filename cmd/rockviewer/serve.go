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
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"rockviewer/internal/backend"
)

func newServeCmd(c *cli) *cobra.Command {
	var (
		addr  string
		dbURL string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the sample catalog and relay viewer events",
		Long: `serve exposes the catalog over HTTP and relays measurement and annotation
events to websocket subscribers. With a database URL samples are stored in
PostgreSQL; otherwise they are read from the data root.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := backend.ConfigFrom(c.cfg)
			if addr != "" {
				cfg.Addr = addr
			}
			if dbURL != "" {
				cfg.DatabaseURL = dbURL
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return backend.Start(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides the config)")
	cmd.Flags().StringVar(&dbURL, "database-url", "", "PostgreSQL URL (overrides the config)")
	return cmd
}
