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
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"rockviewer/internal/annotation"
	"rockviewer/internal/catalog"
	"rockviewer/internal/config"
	"rockviewer/internal/console"
	"rockviewer/internal/geom"
	applog "rockviewer/internal/log"
	"rockviewer/internal/viewer2d"
)

func newConsoleCmd(c *cli) *cobra.Command {
	var (
		history       string
		width, height float64
	)
	cmd := &cobra.Command{
		Use:   "console <sample>",
		Short: "Drive the 2D viewer of a sample interactively",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, closeFn, err := catalog.FromConfig(c.cfg.Catalog, c.token)
			if err != nil {
				return err
			}
			defer closeFn()

			lctx, cancel := context.WithTimeout(cmd.Context(), c.timeout())
			s, err := findSample(lctx, src, args[0])
			var sess *viewer2d.Session
			if err == nil {
				opts := viewer2d.OptionsFrom(c.cfg.Viewer)
				opts.Viewport = geom.R(0, 0, width, height)
				sess, err = viewer2d.Open(lctx, src, s, opts)
			}
			cancel()
			if err != nil {
				return err
			}
			defer sess.Close()

			con := console.New(sess, cmd.OutOrStdout())
			if fs, ok := catalog.Local(src); ok {
				stop := watchAnnotations(cmd.Context(), fs, con, s.Code)
				defer stop()
			}
			if history == "" {
				history = defaultHistory()
			}
			return con.Run(cmd.Context(), console.Config{HistoryFile: history})
		},
	}
	cmd.Flags().StringVar(&history, "history", "", "readline history file")
	cmd.Flags().Float64Var(&width, "width", 800, "viewport width in px")
	cmd.Flags().Float64Var(&height, "height", 600, "viewport height in px")
	return cmd
}

// watchAnnotations re-renders the console session whenever the sample's
// annotation file changes on disk.
func watchAnnotations(ctx context.Context, fs catalog.FS, con *console.Console, code string) func() {
	l := applog.WithComponent("cli")
	w, err := annotation.NewWatcher(fs.AnnotationDir(), 0)
	if err != nil {
		l.Warn("annotation reload disabled", slog.Any("err", err))
		return func() {}
	}
	_ = w.Watch(code, annotation.Viewer2D, func(anns []annotation.Annotation) {
		con.Apply(func(s *viewer2d.Session) {
			p, z := s.Render(anns)
			l.Info("annotations reloaded", slog.String("sample", code), slog.Int("points", p), slog.Int("zones", z))
		})
	})
	w.Start(ctx)
	return func() { _ = w.Close() }
}

func defaultHistory() string {
	p, err := config.ConfigPath()
	if err != nil {
		return ""
	}
	dir := filepath.Dir(p)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ""
	}
	return filepath.Join(dir, "console_history")
}
