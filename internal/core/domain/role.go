package domain

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

type Role string

const RoleAdmin Role = "admin"

// RoleSet is the set of authority tags attached to one identity's metadata.
// Order is insertion order so that rewritten metadata stays stable.
type RoleSet []Role

func (rs RoleSet) Has(r Role) bool {
	return slices.Contains(rs, r)
}

func (rs RoleSet) IsAdmin() bool {
	return rs.Has(RoleAdmin)
}

// With returns a copy of the set containing r and whether r was newly added.
func (rs RoleSet) With(r Role) (RoleSet, bool) {
	if rs.Has(r) {
		return slices.Clone(rs), false
	}
	out := make(RoleSet, 0, len(rs)+1)
	out = append(out, rs...)
	return append(out, r), true
}

// Metadata renders the set as a standalone metadata document.
func (rs RoleSet) Metadata() string {
	if rs == nil {
		rs = RoleSet{}
	}
	b, _ := json.Marshal(roleDoc{Roles: rs})
	return string(b)
}

type roleDoc struct {
	Roles RoleSet `json:"roles"`
}

// ParseRoleSet extracts the role set from participant metadata.
// Blank metadata, "{}" and a missing roles key all yield an empty set.
func ParseRoleSet(metadata string) (RoleSet, error) {
	if strings.TrimSpace(metadata) == "" {
		return RoleSet{}, nil
	}
	var doc roleDoc
	if err := json.Unmarshal([]byte(metadata), &doc); err != nil {
		return RoleSet{}, fmt.Errorf("parse role metadata: %w", err)
	}
	if doc.Roles == nil {
		return RoleSet{}, nil
	}
	return doc.Roles, nil
}

// WithRoleSet replaces the roles key of metadata, keeping every other key untouched.
func WithRoleSet(metadata string, roles RoleSet) (string, error) {
	var fields map[string]json.RawMessage
	if strings.TrimSpace(metadata) != "" {
		if err := json.Unmarshal([]byte(metadata), &fields); err != nil {
			return "", fmt.Errorf("parse metadata: %w", err)
		}
	}
	if fields == nil {
		fields = make(map[string]json.RawMessage)
	}
	if roles == nil {
		roles = RoleSet{}
	}
	raw, err := json.Marshal(roles)
	if err != nil {
		return "", fmt.Errorf("encode roles: %w", err)
	}
	fields["roles"] = raw

	out, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}
	return string(out), nil
}
