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

package contextlayer

import (
	"fmt"
	"strings"
)

// Scope is the hierarchy level a context applies at.
type Scope string

const (
	ScopeGlobal       Scope = "global"
	ScopeOrganization Scope = "organization"
	ScopeTeam         Scope = "team"
	ScopePersonal     Scope = "personal"
)

// HierarchyOrder lists the scopes from most general to most specific.
// Callers must treat it as read-only; use Hierarchy() for a copy.
var HierarchyOrder = []Scope{ScopeGlobal, ScopeOrganization, ScopeTeam, ScopePersonal}

// Hierarchy returns a fresh copy of HierarchyOrder.
func Hierarchy() []Scope {
	out := make([]Scope, len(HierarchyOrder))
	copy(out, HierarchyOrder)
	return out
}

// ParseScope accepts one of the four scope names, case-insensitively.
func ParseScope(s string) (Scope, error) {
	scope := Scope(strings.ToLower(strings.TrimSpace(s)))
	if !scope.Valid() {
		return "", fmt.Errorf("invalid context scope %q", s)
	}
	return scope, nil
}

func (s Scope) Valid() bool {
	return s.Rank() >= 0
}

// Rank is the index of s in HierarchyOrder, or -1 for an unknown scope.
func (s Scope) Rank() int {
	switch s {
	case ScopeGlobal:
		return 0
	case ScopeOrganization:
		return 1
	case ScopeTeam:
		return 2
	case ScopePersonal:
		return 3
	default:
		return -1
	}
}

// DisplayName is the label shown to people, e.g. "Organization".
func (s Scope) DisplayName() string {
	if s == "" {
		return ""
	}
	return strings.ToUpper(string(s[:1])) + string(s[1:])
}

func (s Scope) String() string {
	return string(s)
}
