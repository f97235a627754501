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

import (
	"context"
	"log/slog"

	"github.com/cardinalhq/contextlayers/internal/logctx"
)

// failSoft runs a store read and turns any failure into an empty result.
// Errors are logged and counted but never returned, and the caller can tell
// from ok whether the result is safe to cache.
func failSoft[T any](ctx context.Context, operation string, read func(context.Context) ([]T, error)) (result []T, ok bool) {
	rows, err := read(ctx)
	if err != nil {
		logctx.FromContext(ctx).Error("Store read failed, continuing with no rows",
			slog.String("operation", operation),
			slog.Any("error", err))
		recordStoreError(ctx, operation)
		return []T{}, false
	}
	if rows == nil {
		rows = []T{}
	}
	return rows, true
}
