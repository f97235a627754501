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
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/cardinalhq/contextlayers/config"
	"github.com/cardinalhq/contextlayers/internal/contextstore"
	"github.com/cardinalhq/contextlayers/internal/resolver"
)

var (
	userID    string
	tenantKey string
	jsonOut   bool
)

// withResolver loads configuration, opens the configured store and hands
// a resolver to fn. Everything is released when fn returns.
func withResolver(ctx context.Context, fn func(ctx context.Context, cfg *config.Config, r *resolver.Resolver) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	provider, closeProvider, err := contextstore.Setup(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("failed to open context store: %w", err)
	}
	defer closeProvider()

	r := resolver.New(provider, cfg.Resolver, resolver.WithLogger(slog.Default()))
	defer r.Close()

	return fn(ctx, cfg, r)
}

func requireUserAndTenant() error {
	if userID == "" {
		return fmt.Errorf("--user is required")
	}
	if tenantKey == "" {
		return fmt.Errorf("--tenant is required")
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
