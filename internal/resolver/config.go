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

package resolver

import "time"

type Config struct {
	// CacheTTL bounds how long contexts and preferences are served from
	// memory before the store is consulted again.
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

func DefaultConfig() Config {
	return Config{CacheTTL: 30 * time.Second}
}
