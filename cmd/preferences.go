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
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/contextlayers/config"
	"github.com/cardinalhq/contextlayers/internal/resolver"
)

func init() {
	prefsCmd := &cobra.Command{
		Use:   "preferences",
		Short: "Inspect and change a user's context preferences",
	}
	prefsCmd.PersistentFlags().StringVar(&userID, "user", "", "User id")
	prefsCmd.PersistentFlags().StringVar(&tenantKey, "tenant", "", "Tenant key")
	prefsCmd.PersistentPreRunE = func(_ *cobra.Command, _ []string) error {
		return requireUserAndTenant()
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List every context in the tenant with the user's setting",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runWithTelemetry("preferences-list", func(ctx context.Context) error {
				return withResolver(ctx, runListPreferences)
			})
		},
	}
	listCmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	prefsCmd.AddCommand(listCmd)

	setCmd := &cobra.Command{
		Use:   "set <context-id> <true|false>",
		Short: "Enable or disable one context for the user",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			enabled, err := strconv.ParseBool(args[1])
			if err != nil {
				return fmt.Errorf("invalid enabled value %q: %w", args[1], err)
			}
			return runWithTelemetry("preferences-set", func(ctx context.Context) error {
				return withResolver(ctx, func(ctx context.Context, _ *config.Config, r *resolver.Resolver) error {
					if !r.SetPreference(ctx, userID, args[0], tenantKey, enabled) {
						return fmt.Errorf("failed to save preference for context %s", args[0])
					}
					fmt.Printf("%s: enabled=%t\n", args[0], enabled)
					return nil
				})
			})
		},
	}
	prefsCmd.AddCommand(setCmd)

	bulkCmd := &cobra.Command{
		Use:   "bulk <context-id>=<true|false>...",
		Short: "Change several preferences at once",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			updates, err := parseUpdates(args)
			if err != nil {
				return err
			}
			return runWithTelemetry("preferences-bulk", func(ctx context.Context) error {
				return withResolver(ctx, func(ctx context.Context, _ *config.Config, r *resolver.Resolver) error {
					return runBulk(ctx, r, updates)
				})
			})
		},
	}
	bulkCmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	prefsCmd.AddCommand(bulkCmd)

	rootCmd.AddCommand(prefsCmd)
}

func parseUpdates(args []string) ([]resolver.PreferenceUpdate, error) {
	updates := make([]resolver.PreferenceUpdate, 0, len(args))
	for _, arg := range args {
		id, value, ok := strings.Cut(arg, "=")
		if !ok || id == "" {
			return nil, fmt.Errorf("invalid update %q, expected <context-id>=<true|false>", arg)
		}
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("invalid update %q: %w", arg, err)
		}
		updates = append(updates, resolver.PreferenceUpdate{ContextID: id, Enabled: enabled})
	}
	return updates, nil
}

func runListPreferences(ctx context.Context, _ *config.Config, r *resolver.Resolver) error {
	prefs := r.ListPreferencesForDisplay(ctx, userID, tenantKey)
	if jsonOut {
		return printJSON(prefs)
	}
	if len(prefs) == 0 {
		fmt.Println("No contexts found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSCOPE\tPRIORITY\tENABLED\tNAME")
	for _, p := range prefs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%t\t%s\n", p.ID, p.Scope, p.Priority, p.IsEnabled, p.Name)
	}
	return w.Flush()
}

func runBulk(ctx context.Context, r *resolver.Resolver, updates []resolver.PreferenceUpdate) error {
	res := r.SetPreferencesBulk(ctx, userID, tenantKey, updates)
	if jsonOut {
		if err := printJSON(res); err != nil {
			return err
		}
	} else {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "CONTEXT\tSUCCESS")
		for _, item := range res.Items {
			_, _ = fmt.Fprintf(w, "%s\t%t\n", item.ContextID, item.Success)
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}
	return res.Err
}
