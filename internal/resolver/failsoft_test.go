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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFailSoft(t *testing.T) {
	rows, ok := failSoft(context.Background(), "test", func(context.Context) ([]int, error) {
		return []int{1, 2}, nil
	})
	assert.True(t, ok)
	assert.Equal(t, []int{1, 2}, rows)

	rows, ok = failSoft(context.Background(), "test", func(context.Context) ([]int, error) {
		return nil, nil
	})
	assert.True(t, ok)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)

	rows, ok = failSoft(context.Background(), "test", func(context.Context) ([]int, error) {
		return []int{9}, errors.New("boom")
	})
	assert.False(t, ok)
	assert.NotNil(t, rows)
	assert.Empty(t, rows, "partial rows are discarded on error")
}

func TestSafely(t *testing.T) {
	assert.NoError(t, safely(func() {})())

	err := safely(func() { panic("kaboom") })()
	assert.ErrorContains(t, err, "kaboom")
}

func TestCacheKeys(t *testing.T) {
	assert.Equal(t, "contexts:acme", contextsKey("acme"))
	assert.Equal(t, "prefs:u1:acme", prefsKey("u1", "acme"))
}
