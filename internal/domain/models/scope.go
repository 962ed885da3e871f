package models

import (
	"sort"
	"strings"
)

// Scopes is an order-insensitive set of scope strings.
// Scopes 是一个与顺序无关的权限范围集合。
type Scopes []string

// ParseScopes splits a space-delimited scope parameter, dropping empties and duplicates.
func ParseScopes(raw string) Scopes {
	return NewScopes(strings.Fields(raw)...)
}

// NewScopes builds a de-duplicated, sorted scope set.
func NewScopes(values ...string) Scopes {
	seen := make(map[string]struct{}, len(values))
	out := make(Scopes, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// IsEmpty reports whether the set has no members.
func (s Scopes) IsEmpty() bool {
	return len(s) == 0
}

// Contains reports whether scope is a member.
func (s Scopes) Contains(scope string) bool {
	for _, v := range s {
		if v == scope {
			return true
		}
	}
	return false
}

// Difference returns the members of s that are not in other.
func (s Scopes) Difference(other Scopes) Scopes {
	out := make([]string, 0)
	for _, v := range s {
		if !other.Contains(v) {
			out = append(out, v)
		}
	}
	return NewScopes(out...)
}

// IsSubsetOf reports whether every member of s is in other.
// The empty set is a subset of everything.
func (s Scopes) IsSubsetOf(other Scopes) bool {
	return len(s.Difference(other)) == 0
}

// Intersect returns the members present in both sets.
func (s Scopes) Intersect(other Scopes) Scopes {
	out := make([]string, 0)
	for _, v := range s {
		if other.Contains(v) {
			out = append(out, v)
		}
	}
	return NewScopes(out...)
}

// Union returns the members present in either set.
func (s Scopes) Union(other Scopes) Scopes {
	return NewScopes(append(append([]string{}, s...), other...)...)
}

// String joins the set with single spaces, the wire form of the scope parameter.
func (s Scopes) String() string {
	return strings.Join(NewScopes(s...), " ")
}
