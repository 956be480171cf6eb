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
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"rockviewer/internal/backend"
	"rockviewer/internal/catalog"
	"rockviewer/internal/console"
	"rockviewer/internal/export"
	"rockviewer/internal/geom"
	"rockviewer/internal/measure"
	"rockviewer/internal/viewer2d"
)

type measureFlags struct {
	sample  string
	script  string
	out     string
	image   bool
	width   float64
	height  float64
	publish string
	token   string
}

func newMeasureCmd(c *cli) *cobra.Command {
	f := &measureFlags{}
	cmd := &cobra.Command{
		Use:   "measure",
		Short: "Replay a command script against a thin-section image",
		Long: `measure opens the 2D viewer of a sample headlessly, runs a script of console
commands (a JSON array of lines, "-" reads stdin) and prints the completed
measurements. The overlay can be exported and the results published to a
rockviewer server.`,
		Example: `  rockviewer measure --sample ECH-01 --script steps.json --out overlay.png --image`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if f.sample == "" {
				return fmt.Errorf("--sample is required")
			}
			if f.out != "" {
				if _, err := export.FormatFromPath(f.out); err != nil {
					return err
				}
			}
			return c.withSource(cmd, func(ctx context.Context, src catalog.Source) error {
				return runMeasure(ctx, cmd, c, src, f)
			})
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.sample, "sample", "", "sample code or directory")
	fl.StringVar(&f.script, "script", "", "command script, a JSON array of lines (- for stdin)")
	fl.StringVar(&f.out, "out", "", "export the overlay to this .svg, .png or .pdf file")
	fl.BoolVar(&f.image, "image", false, "draw the sample image under the exported overlay")
	fl.Float64Var(&f.width, "width", 800, "viewport width in px")
	fl.Float64Var(&f.height, "height", 600, "viewport height in px")
	fl.StringVar(&f.publish, "publish", "", "publish the measurements to the server at this URL")
	fl.StringVar(&f.token, "token", "", "bearer token for --publish (defaults to the stored token)")
	return cmd
}

func runMeasure(ctx context.Context, cmd *cobra.Command, c *cli, src catalog.Source, f *measureFlags) error {
	s, err := findSample(ctx, src, f.sample)
	if err != nil {
		return err
	}
	opts := viewer2d.OptionsFrom(c.cfg.Viewer)
	opts.Viewport = geom.R(0, 0, f.width, f.height)
	sess, err := viewer2d.Open(ctx, src, s, opts)
	if err != nil {
		return err
	}
	defer sess.Close()

	out := cmd.OutOrStdout()
	con := console.New(sess, out)
	if f.script != "" {
		var r io.Reader = cmd.InOrStdin()
		if f.script != "-" {
			fh, err := os.Open(f.script)
			if err != nil {
				return fmt.Errorf("failed to open script: %w", err)
			}
			defer fh.Close()
			r = fh
		}
		if err := con.Script(r); err != nil {
			return err
		}
	}
	if f.out != "" {
		line := "export " + f.out
		if f.image {
			line += " --image"
		}
		if err := con.Exec(line); err != nil {
			return err
		}
	}
	results := sess.Results()
	fmt.Fprintf(out, "%d measurements on %s\n", len(results), s.Label())
	if f.publish == "" || len(results) == 0 {
		return nil
	}
	token := f.token
	if token == "" {
		token = c.token
	}
	cl := backend.NewClient(f.publish, token)
	delivered := 0
	for _, r := range results {
		n, err := cl.Publish(ctx, backend.TypeMeasurement, s.Code, resultPayload(r))
		if err != nil {
			return fmt.Errorf("publish %s: %w", r.ID, err)
		}
		delivered += n
	}
	fmt.Fprintf(out, "published %d measurements (%d deliveries)\n", len(results), delivered)
	return nil
}

func resultPayload(r measure.Result) map[string]any {
	return map[string]any{
		"id":     r.ID,
		"tool":   r.Tool,
		"value":  r.Value,
		"unit":   r.Unit,
		"text":   r.Text,
		"points": r.Points,
	}
}
