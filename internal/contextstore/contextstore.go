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

// Package contextstore is the persistence boundary for context layers and
// per-user preferences. A database provider backed by configdb is used when
// CONFIGDB_* is configured; otherwise contexts come from a YAML file.
package contextstore

import (
	"context"
	"errors"
	"log/slog"

	"github.com/cardinalhq/contextlayers/configdb"
	"github.com/cardinalhq/contextlayers/internal/contextlayer"
	"github.com/cardinalhq/contextlayers/internal/dbopen"
)

// ErrPreferenceNotFound is returned when no preference row exists for a
// (user, context, tenant) key.
var ErrPreferenceNotFound = errors.New("preference not found")

// Provider is everything the resolver needs from storage.
type Provider interface {
	// ListActiveContexts returns active contexts for a tenant, highest
	// priority first. The ordering is a hint; callers must not rely on it.
	ListActiveContexts(ctx context.Context, tenantKey string) ([]contextlayer.Context, error)
	// ListPreferences returns every preference row for the user in one query.
	ListPreferences(ctx context.Context, userID, tenantKey string) ([]contextlayer.Preference, error)
	GetPreference(ctx context.Context, userID, contextID, tenantKey string) (contextlayer.Preference, error)
	UpdatePreference(ctx context.Context, pref contextlayer.Preference) error
	InsertPreference(ctx context.Context, pref contextlayer.Preference) error
}

type Config struct {
	// File is the YAML file used when no database is configured.
	// A value of "env:NAME" reads the document from that variable.
	File string `mapstructure:"file"`
}

func DefaultConfig() Config {
	return Config{File: "/app/config/contexts.yaml"}
}

// Setup picks the database provider when configdb is configured and falls
// back to the file provider otherwise. The returned func releases any
// resources the provider holds.
func Setup(ctx context.Context, cfg Config) (Provider, func(), error) {
	store, err := configdb.ConfigDBStore(ctx)
	if err == nil {
		slog.Info("Using database context provider")
		return NewDatabaseProvider(store), store.Close, nil
	}
	if !errors.Is(err, dbopen.ErrDatabaseNotConfigured) {
		return nil, nil, err
	}

	slog.Info("Using file context provider", slog.String("path", cfg.File))
	p, err := NewFileProvider(cfg.File)
	if err != nil {
		return nil, nil, err
	}
	return p, func() {}, nil
}
