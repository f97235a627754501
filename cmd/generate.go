// Copyright (C) 2025-2026 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/contextlayers/config"
	"github.com/cardinalhq/contextlayers/internal/generation"
	"github.com/cardinalhq/contextlayers/internal/resolver"
)

func init() {
	cmd := &cobra.Command{
		Use:   "generate <prompt>",
		Short: "Resolve the user's context and send a prompt with it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if err := requireUserAndTenant(); err != nil {
				return err
			}
			prompt := strings.Join(args, " ")
			return runWithTelemetry("generate", func(ctx context.Context) error {
				return withResolver(ctx, func(ctx context.Context, cfg *config.Config, r *resolver.Resolver) error {
					return runGenerate(ctx, cfg, r, prompt)
				})
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User id")
	cmd.Flags().StringVar(&tenantKey, "tenant", "", "Tenant key")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output the execution record as JSON")

	rootCmd.AddCommand(cmd)
}

func runGenerate(ctx context.Context, cfg *config.Config, r *resolver.Resolver, prompt string) error {
	client, err := generation.NewClient(cfg.Generation)
	if err != nil {
		return err
	}

	rec, err := client.Generate(ctx, r.Resolve(ctx, userID, tenantKey), prompt)
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(rec)
	}
	fmt.Println(rec.Output)
	return nil
}
