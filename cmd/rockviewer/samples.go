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
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"rockviewer/internal/backend"
	"rockviewer/internal/catalog"
	"rockviewer/internal/domain"
)

func newSamplesCmd(c *cli) *cobra.Command {
	var (
		asJSON bool
		origin string
		push   string
	)
	cmd := &cobra.Command{
		Use:   "samples",
		Short: "List the samples grouped by origin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withSource(cmd, func(ctx context.Context, src catalog.Source) error {
				list, err := src.List(ctx)
				if err != nil {
					return err
				}
				groups := domain.GroupByOrigin(list)
				if origin != "" {
					kept := groups[:0]
					for _, g := range groups {
						if g.Origin == origin {
							kept = append(kept, g)
						}
					}
					groups = kept
				}
				out := cmd.OutOrStdout()
				if asJSON {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					if err := enc.Encode(groups); err != nil {
						return err
					}
				} else {
					for _, g := range groups {
						fmt.Fprintf(out, "%s (%d)\n", g.Origin, len(g.Samples))
						for _, s := range g.Samples {
							fmt.Fprintf(out, "  %s\n", s.Label())
						}
					}
				}
				if push == "" {
					return nil
				}
				return pushSamples(ctx, cmd, push, c.token, list)
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the groups as JSON")
	cmd.Flags().StringVar(&origin, "origin", "", "only show one origin group")
	cmd.Flags().StringVar(&push, "push", "", "upsert the listed samples into the server at this URL")
	return cmd
}

// pushSamples upserts list into a rockviewer server. Without a token one is
// requested from the server.
func pushSamples(ctx context.Context, cmd *cobra.Command, url, token string, list []domain.Sample) error {
	cl := backend.NewClient(url, token)
	if token == "" {
		if _, err := cl.IssueToken(ctx, "rockviewer-cli", time.Hour); err != nil {
			return fmt.Errorf("request token: %w", err)
		}
	}
	n, err := cl.PushSamples(ctx, list)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "pushed %d samples to %s\n", n, url)
	return nil
}
