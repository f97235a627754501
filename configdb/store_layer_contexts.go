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

package configdb

import (
	"context"
	"fmt"
)

// UpsertLayerContexts writes every context in one transaction. Either all
// rows land or none do.
func (store *Store) UpsertLayerContexts(ctx context.Context, params []UpsertLayerContextParams) error {
	return store.execTx(ctx, func(s *Store) error {
		for i, p := range params {
			if err := s.UpsertLayerContext(ctx, p); err != nil {
				return fmt.Errorf("failed to upsert context %d (%s/%s): %w", i, p.TenantKey, p.ID, err)
			}
		}
		return nil
	})
}
