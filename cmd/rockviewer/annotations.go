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
	"strings"

	"github.com/spf13/cobra"

	"rockviewer/internal/annotation"
	"rockviewer/internal/catalog"
)

func newAnnotationsCmd(c *cli) *cobra.Command {
	var viewer string
	cmd := &cobra.Command{
		Use:   "annotations <code>",
		Short: "List the annotations of a sample",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withSource(cmd, func(ctx context.Context, src catalog.Source) error {
				all, err := annotation.Fetch(ctx, src, args[0])
				if err != nil {
					return err
				}
				list := all
				if viewer != "" {
					list = annotation.Filter(all, strings.ToUpper(viewer))
				}
				out := cmd.OutOrStdout()
				for _, a := range list {
					where := fmt.Sprint(a.Position)
					if a.Type == annotation.TypeZone {
						where = fmt.Sprintf("%d points", len(a.Points))
					}
					fmt.Fprintf(out, "%s\t%s\t%s\t%s\t%s\n", a.ID, a.Viewer, a.Type, where, a.Content.Title)
				}
				fmt.Fprintf(out, "%d of %d annotations\n", len(list), len(all))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&viewer, "viewer", "", "only show 2D or 3D annotations")
	return cmd
}
