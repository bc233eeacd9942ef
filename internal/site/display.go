package site

import (
	"sort"
	"time"
)

// ForDisplay returns a copy of doc with events ordered soonest first and
// sermons newest first. Items without a parseable date keep their relative
// order after dated ones.
func ForDisplay(doc Document) Document {
	out := doc.Clone()
	if out == nil {
		return nil
	}
	sortByDate(out, Events, false)
	sortByDate(out, Sermons, true)
	return out
}

func sortByDate(doc Document, key SectionKey, desc bool) {
	list, ok := doc[string(key)].([]any)
	if !ok || len(list) < 2 {
		return
	}
	sort.SliceStable(list, func(i, j int) bool {
		ti, okI := itemDate(list[i])
		tj, okJ := itemDate(list[j])
		switch {
		case okI && !okJ:
			return true
		case !okI:
			return false
		case desc:
			return ti.After(tj)
		default:
			return ti.Before(tj)
		}
	})
}

var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02"}

func itemDate(v any) (time.Time, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return time.Time{}, false
	}
	s, _ := m["date"].(string)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
