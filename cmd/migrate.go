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
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/contextlayers/configdb"
	configdbmigrations "github.com/cardinalhq/contextlayers/configdb/migrations"
	"github.com/cardinalhq/contextlayers/internal/dbopen"
)

func init() {
	rootCmd.AddCommand(MigrateCmd)
}

var MigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Long:  "Create or upgrade the context and preference tables in the configdb database",
	RunE: func(_ *cobra.Command, _ []string) error {
		return runWithTelemetry("migrate", migrateconfigdb)
	},
}

func migrateconfigdb(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	if !dbopen.IsConfigured("CONFIGDB") {
		slog.Info("ConfigDB not configured, skipping migration")
		return nil
	}

	pool, err := configdb.ConnectToConfigDB(ctx, dbopen.SkipMigrationCheck())
	if err != nil {
		return err
	}
	defer pool.Close()

	slog.Info("Running configdb migrations")
	if err := configdbmigrations.RunMigrationsUp(ctx, pool); err != nil {
		return err
	}
	slog.Info("configdb migrations completed successfully")
	return nil
}
