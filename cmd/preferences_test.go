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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/contextlayers/internal/resolver"
)

func TestParseUpdates(t *testing.T) {
	updates, err := parseUpdates([]string{"T=true", "bad-id=false", "G=0"})
	require.NoError(t, err)
	assert.Equal(t, []resolver.PreferenceUpdate{
		{ContextID: "T", Enabled: true},
		{ContextID: "bad-id", Enabled: false},
		{ContextID: "G", Enabled: false},
	}, updates)

	for _, bad := range []string{"T", "=true", "T=maybe"} {
		_, err := parseUpdates([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestRequireUserAndTenant(t *testing.T) {
	userID, tenantKey = "", ""
	t.Cleanup(func() { userID, tenantKey = "", "" })

	assert.Error(t, requireUserAndTenant())
	userID = "u1"
	assert.Error(t, requireUserAndTenant())
	tenantKey = "acme"
	assert.NoError(t, requireUserAndTenant())
}
