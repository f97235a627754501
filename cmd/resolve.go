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
	"github.com/cardinalhq/contextlayers/internal/contextlayer"
	"github.com/cardinalhq/contextlayers/internal/resolver"
)

func init() {
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Print the merged context for a user",
		RunE: func(_ *cobra.Command, _ []string) error {
			if err := requireUserAndTenant(); err != nil {
				return err
			}
			return runWithTelemetry("resolve", func(ctx context.Context) error {
				return withResolver(ctx, runResolve)
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User id")
	cmd.Flags().StringVar(&tenantKey, "tenant", "", "Tenant key")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output the full resolution as JSON")

	rootCmd.AddCommand(cmd)
}

type resolveOutput struct {
	Fingerprint string `json:"fingerprint"`
	contextlayer.ResolvedContext
}

func runResolve(ctx context.Context, _ *config.Config, r *resolver.Resolver) error {
	rc := r.Resolve(ctx, userID, tenantKey)
	if jsonOut {
		return printJSON(resolveOutput{
			Fingerprint:     fmt.Sprintf("%016x", rc.Fingerprint()),
			ResolvedContext: rc,
		})
	}

	fmt.Printf("# applied: %s\n", strings.Join(rc.AppliedContextIDs, ", "))
	fmt.Println(rc.MergedText)
	return nil
}
