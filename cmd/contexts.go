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
	"errors"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/contextlayers/config"
	"github.com/cardinalhq/contextlayers/configdb"
	"github.com/cardinalhq/contextlayers/internal/contextstore"
	"github.com/cardinalhq/contextlayers/internal/dbopen"
	"github.com/cardinalhq/contextlayers/internal/resolver"
)

func init() {
	contextsCmd := &cobra.Command{
		Use:   "contexts",
		Short: "Manage context layers stored in configdb",
	}

	importCmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Upsert contexts (and any preferences) from a YAML document",
		Long: `Reads a YAML document with "contexts:" and optional "preferences:" lists.
Contexts are written in a single transaction. A file of "env:NAME" reads the
document from that environment variable.`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runWithTelemetry("contexts-import", func(ctx context.Context) error {
				return runImport(ctx, args[0])
			})
		},
	}
	contextsCmd.AddCommand(importCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List all contexts for a tenant, including inactive ones",
		RunE: func(_ *cobra.Command, _ []string) error {
			if tenantKey == "" {
				return errors.New("--tenant is required")
			}
			return runWithTelemetry("contexts-list", runListContexts)
		},
	}
	listCmd.Flags().StringVar(&tenantKey, "tenant", "", "Tenant key")
	listCmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	contextsCmd.AddCommand(listCmd)

	for _, active := range []bool{true, false} {
		use, short := "enable", "Mark a context active"
		if !active {
			use, short = "disable", "Mark a context inactive for every user"
		}
		c := &cobra.Command{
			Use:   use + " <context-id>",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(_ *cobra.Command, args []string) error {
				if tenantKey == "" {
					return errors.New("--tenant is required")
				}
				return runWithTelemetry("contexts-"+use, func(ctx context.Context) error {
					return runSetActive(ctx, args[0], active)
				})
			},
		}
		c.Flags().StringVar(&tenantKey, "tenant", "", "Tenant key")
		contextsCmd.AddCommand(c)
	}

	rootCmd.AddCommand(contextsCmd)
}

func adminStore(ctx context.Context) (*configdb.Store, error) {
	store, err := configdb.ConfigDBStoreForAdmin(ctx)
	if errors.Is(err, dbopen.ErrDatabaseNotConfigured) {
		return nil, errors.New("contexts commands need configdb; set CONFIGDB_URL or CONFIGDB_HOST")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to configdb: %w", err)
	}
	return store, nil
}

func runImport(ctx context.Context, filename string) error {
	contents, err := contextstore.ReadDocument(filename)
	if err != nil {
		return err
	}
	contexts, prefs, err := contextstore.ParseDocument(contents)
	if err != nil {
		return fmt.Errorf("%s: %w", filename, err)
	}

	params := make([]configdb.UpsertLayerContextParams, 0, len(contexts))
	for _, c := range contexts {
		p, err := contextstore.UpsertParamsFromContext(c)
		if err != nil {
			return err
		}
		params = append(params, p)
	}

	store, err := adminStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.UpsertLayerContexts(ctx, params); err != nil {
		return err
	}
	slog.Info("Imported contexts", slog.Int("count", len(params)))

	if len(prefs) == 0 {
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	r := resolver.New(contextstore.NewDatabaseProvider(store), cfg.Resolver)
	defer r.Close()

	failed := 0
	for _, p := range prefs {
		if !r.SetPreference(ctx, p.UserID, p.ContextID, p.TenantKey, p.IsEnabled) {
			failed++
		}
	}
	slog.Info("Imported preferences", slog.Int("count", len(prefs)-failed), slog.Int("failed", failed))
	if failed > 0 {
		return fmt.Errorf("%d of %d preferences failed to import", failed, len(prefs))
	}
	return nil
}

func runListContexts(ctx context.Context) error {
	store, err := adminStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	rows, err := store.ListLayerContexts(ctx, tenantKey)
	if err != nil {
		return fmt.Errorf("failed to list contexts: %w", err)
	}

	if jsonOut {
		return printJSON(rows)
	}
	if len(rows) == 0 {
		fmt.Println("No contexts found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSCOPE\tPRIORITY\tACTIVE\tNAME\tUPDATED")
	for _, row := range rows {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%t\t%s\t%s\n",
			row.ID, row.Scope, row.Priority, row.IsActive, row.Name, row.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}

func runSetActive(ctx context.Context, contextID string, active bool) error {
	store, err := adminStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	n, err := store.SetLayerContextActive(ctx, configdb.SetLayerContextActiveParams{
		IsActive:  active,
		TenantKey: tenantKey,
		ID:        contextID,
	})
	if err != nil {
		return fmt.Errorf("failed to update context: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("context %s not found in tenant %s", contextID, tenantKey)
	}
	fmt.Printf("%s: active=%t\n", contextID, active)
	return nil
}
