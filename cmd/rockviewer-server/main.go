/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Command rockviewer-server serves the sample catalog and relays viewer
// events. It is the server half of "rockviewer serve" without the CLI.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"rockviewer/internal/backend"
	"rockviewer/internal/config"
	"rockviewer/internal/crash"
	applog "rockviewer/internal/log"
	"rockviewer/internal/version"
)

func main() {
	applog.Init(applog.FromEnv())
	l := applog.WithComponent("server")
	defer crash.Recover(nil)

	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "version", "--version", "-v":
			fmt.Println(version.String())
			return
		}
	}

	cfg, _, err := config.Load()
	if err != nil {
		l.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	l.Info("starting", slog.String("version", version.String()))
	if err := backend.Start(ctx, backend.ConfigFrom(cfg)); err != nil {
		l.Error("server stopped", slog.Any("err", err))
		stop()
		os.Exit(1)
	}
}
