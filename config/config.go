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

package config

import (
	"reflect"
	"strings"

	"github.com/spf13/viper"

	"github.com/cardinalhq/contextlayers/internal/contextstore"
	"github.com/cardinalhq/contextlayers/internal/generation"
	"github.com/cardinalhq/contextlayers/internal/resolver"
)

// Config aggregates configuration for the application.
// Each field is owned by its respective package.
type Config struct {
	Resolver   resolver.Config     `mapstructure:"resolver"`
	Store      contextstore.Config `mapstructure:"store"`
	Generation generation.Config   `mapstructure:"generation"`
}

// Load reads configuration from files and environment variables.
// Environment variables use the prefix "CONTEXTLAYERS" and the dot character
// in keys is replaced by an underscore. For example, "resolver.cache_ttl"
// becomes "CONTEXTLAYERS_RESOLVER_CACHE_TTL".
func Load() (*Config, error) {
	cfg := &Config{
		Resolver:   resolver.DefaultConfig(),
		Store:      contextstore.DefaultConfig(),
		Generation: generation.DefaultConfig(),
	}

	v := viper.New()
	v.SetConfigName("config")
	v.AddConfigPath(".")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v, cfg)
	_ = v.ReadInConfig()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// bindEnvs registers all keys within cfg so that viper will look up
// corresponding environment variables when unmarshalling.
func bindEnvs(v *viper.Viper, cfg any, parts ...string) {
	val := reflect.ValueOf(cfg)
	typ := reflect.TypeOf(cfg)
	if typ.Kind() == reflect.Ptr {
		val = val.Elem()
		typ = typ.Elem()
	}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		tag := f.Tag.Get("mapstructure")
		if tag == "" {
			tag = strings.ToLower(f.Name)
		}
		key := append(parts, tag)
		if f.Type.Kind() == reflect.Struct {
			bindEnvs(v, val.Field(i).Interface(), key...)
			continue
		}
		_ = v.BindEnv(strings.Join(key, "."))
	}
}
