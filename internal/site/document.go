package site

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// SectionKey names one independently editable block of the site.
type SectionKey string

const (
	HeroSlides    SectionKey = "heroSlides"
	About         SectionKey = "about"
	Services      SectionKey = "services"
	Sermons       SectionKey = "sermons"
	Ministries    SectionKey = "ministries"
	Events        SectionKey = "events"
	Announcements SectionKey = "announcements"
	Contact       SectionKey = "contact"
	LiveStream    SectionKey = "liveStream"
)

// AllSections returns the fixed section key set in display order.
func AllSections() []SectionKey {
	return []SectionKey{HeroSlides, About, Services, Sermons, Ministries, Events, Announcements, Contact, LiveStream}
}

// IsValidSection reports whether key is one of the known sections.
func IsValidSection(key string) bool {
	for _, s := range AllSections() {
		if string(s) == key {
			return true
		}
	}
	return false
}

// ItemKind returns the id prefix used for items of a list section, or "" when
// the section is not list-shaped.
func ItemKind(key SectionKey) string {
	switch key {
	case HeroSlides:
		return "slide"
	case Services:
		return "service"
	case Sermons:
		return "sermon"
	case Ministries:
		return "ministry"
	case Events:
		return "event"
	case Announcements:
		return "announcement"
	}
	return ""
}

// Document is the single site record: section key -> JSON-shaped payload.
type Document map[string]any

// Section returns the payload stored under key (nil when missing).
func (d Document) Section(key SectionKey) any {
	if d == nil {
		return nil
	}
	return d[string(key)]
}

// Clone deep-copies a document.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = Clone(v)
	}
	return out
}

// Clone deep-copies a JSON-shaped payload. Typed slices of objects are
// normalised to []any / map[string]any.
func Clone(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = Clone(vv)
		}
		return out
	case Document:
		return map[string]any(t.Clone())
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = Clone(vv)
		}
		return out
	case []map[string]any:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = Clone(vv)
		}
		return out
	default:
		return v
	}
}

// Equal is deep structural equality over payloads. Empty and nil
// maps/slices compare equal.
func Equal(a, b any) bool {
	return cmp.Equal(a, b, cmpopts.EquateEmpty())
}

// Normalize converts an arbitrary value into plain JSON shapes
// (map[string]any, []any, float64, string, bool, nil).
func Normalize(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("normalize payload: %w", err)
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("normalize payload: %w", err)
	}
	return out, nil
}

// Items returns a list payload as objects. ok is false when v is not a list.
// Non-object entries are skipped.
func Items(v any) ([]map[string]any, bool) {
	var raw []any
	switch t := v.(type) {
	case nil:
		return nil, true
	case []any:
		raw = t
	case []map[string]any:
		return t, true
	default:
		return nil, false
	}
	out := make([]map[string]any, 0, len(raw))
	for _, it := range raw {
		if m, ok := it.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out, true
}

// ItemIDOf returns the id of a list item ("" when missing).
func ItemIDOf(item map[string]any) string {
	id, _ := item["id"].(string)
	return id
}

// NewItemID builds "<kind>-<millis>" unique within existing. When the
// timestamp collides the millisecond is bumped until it is free.
func NewItemID(kind string, now time.Time, existing []map[string]any) string {
	taken := make(map[string]struct{}, len(existing))
	for _, it := range existing {
		taken[ItemIDOf(it)] = struct{}{}
	}
	ms := now.UnixMilli()
	for {
		id := fmt.Sprintf("%s-%d", kind, ms)
		if _, dup := taken[id]; !dup {
			return id
		}
		ms++
	}
}
