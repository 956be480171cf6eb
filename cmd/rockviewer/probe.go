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

	"github.com/spf13/cobra"

	"rockviewer/internal/catalog"
)

func newProbeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "probe <sample>",
		Short: "Find the thin-section image variant of a sample",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withSource(cmd, func(ctx context.Context, src catalog.Source) error {
				s, err := findSample(ctx, src, args[0])
				if err != nil {
					return err
				}
				ref, err := src.ProbeImage(ctx, s)
				if err != nil {
					return err
				}
				img, format, err := catalog.LoadImage(ctx, src, ref)
				if err != nil {
					return err
				}
				b := img.Bounds()
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s %dx%d\n", ref, format, b.Dx(), b.Dy())
				return nil
			})
		},
	}
}
