// Package admins holds the admin allow-list: a fixed set of opaque user ids.
// Membership is the only admin predicate; there are no roles or scopes.
package admins

import "strings"

type AllowList struct {
	ids map[string]struct{}
}

func NewAllowList(ids ...string) *AllowList {
	a := &AllowList{ids: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			a.ids[id] = struct{}{}
		}
	}
	return a
}

// Parse builds an allow-list from a comma separated string.
func Parse(csv string) *AllowList {
	return NewAllowList(strings.Split(csv, ",")...)
}

// IsAdmin reports whether uid is on the list. The empty id never is.
func (a *AllowList) IsAdmin(uid string) bool {
	if a == nil || uid == "" {
		return false
	}
	_, ok := a.ids[uid]
	return ok
}

func (a *AllowList) Len() int {
	if a == nil {
		return 0
	}
	return len(a.ids)
}
