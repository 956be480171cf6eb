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
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"rockviewer/internal/domain"
	"rockviewer/internal/geom"
	"rockviewer/internal/mesh"
	"rockviewer/internal/viewer3d"
)

func newPickCmd(c *cli) *cobra.Command {
	var (
		view          string
		width, height float64
	)
	cmd := &cobra.Command{
		Use:   "pick <model> <x> <y>",
		Short: "Cast a ray from a viewport pixel onto a 3D model",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			x, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("bad x %q: %w", args[1], err)
			}
			y, err := strconv.ParseFloat(args[2], 64)
			if err != nil {
				return fmt.Errorf("bad y %q: %w", args[2], err)
			}
			m, err := mesh.Load(args[0])
			if err != nil {
				return err
			}
			opts := viewer3d.OptionsFrom(c.cfg.Viewer)
			opts.Viewport = geom.R(0, 0, width, height)
			opts.Event = func(string, map[string]any) {}
			s := viewer3d.New(domain.Sample{Code: m.Name, Name: m.Name}, opts)
			defer s.Close()
			s.SetModel(m)
			if view != "" {
				if err := s.SetView(view); err != nil {
					return err
				}
			}
			out := cmd.OutOrStdout()
			w, ok := s.Pick(geom.P(x, y))
			if !ok {
				fmt.Fprintln(out, "miss")
				return nil
			}
			fmt.Fprintf(out, "hit %.4f %.4f %.4f\n", w.X, w.Y, w.Z)
			return nil
		},
	}
	cmd.Flags().StringVar(&view, "view", "", "preset camera: top, front or side (default: fitted)")
	cmd.Flags().Float64Var(&width, "width", 800, "viewport width in px")
	cmd.Flags().Float64Var(&height, "height", 600, "viewport height in px")
	return cmd
}
