// Package draft holds the locally edited copy of one site section and keeps
// it in step with the authoritative document.
package draft

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gracefellowship/churchsite/backend/go-services/internal/site"
)

var (
	ErrNotList      = errors.New("section is not a list")
	ErrItemNotFound = errors.New("item not found")
)

// Persister writes a whole section payload to the authoritative document.
type Persister func(ctx context.Context, key site.SectionKey, payload any) error

// Section is the view-model for one section. While not editing, every
// change of the external value replaces the draft; while editing, external
// changes are remembered but never merged into unsaved edits.
type Section struct {
	key     site.SectionKey
	persist Persister
	now     func() time.Time

	mu       sync.Mutex
	external any
	base     any
	draft    any
	editing  bool
	pending  map[string]any
	onChange func(site.SectionKey, any)
}

type Option func(*Section)

// WithClock overrides the time source used for new item ids.
func WithClock(now func() time.Time) Option { return func(s *Section) { s.now = now } }

// OnChange registers a callback invoked with the new draft after every
// local change or reconciliation that replaced it.
func OnChange(fn func(site.SectionKey, any)) Option { return func(s *Section) { s.onChange = fn } }

func New(key site.SectionKey, initial any, persist Persister, opts ...Option) *Section {
	s := &Section{
		key:      key,
		persist:  persist,
		now:      time.Now,
		external: site.Clone(initial),
		draft:    site.Clone(initial),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Section) Key() site.SectionKey { return s.key }

// Reconcile applies an authoritative value. It returns true when the draft
// was replaced.
func (s *Section) Reconcile(external any) bool {
	s.mu.Lock()
	if site.Equal(external, s.external) {
		s.mu.Unlock()
		return false
	}
	s.external = site.Clone(external)
	if s.editing {
		s.mu.Unlock()
		return false
	}
	s.draft = site.Clone(external)
	d, fn := site.Clone(s.draft), s.onChange
	s.mu.Unlock()
	if fn != nil {
		fn(s.key, d)
	}
	return true
}

// Draft returns a copy of the local value.
func (s *Section) Draft() any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return site.Clone(s.draft)
}

// External returns a copy of the last authoritative value seen.
func (s *Section) External() any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return site.Clone(s.external)
}

func (s *Section) Editing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editing
}

func (s *Section) BeginEdit() {
	s.mu.Lock()
	if !s.editing {
		s.base = site.Clone(s.external)
	}
	s.editing = true
	s.mu.Unlock()
}

// Stale reports whether the authoritative value changed since editing
// began. Saving a stale draft still overwrites it.
func (s *Section) Stale() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editing && !site.Equal(s.base, s.external)
}

// CancelEdit discards unsaved edits and pending upload fields.
func (s *Section) CancelEdit() {
	s.mu.Lock()
	s.editing = false
	s.base = nil
	s.pending = nil
	s.draft = site.Clone(s.external)
	d, fn := site.Clone(s.draft), s.onChange
	s.mu.Unlock()
	if fn != nil {
		fn(s.key, d)
	}
}

// SetDraft replaces the local value (object-shaped sections).
func (s *Section) SetDraft(v any) {
	s.mu.Lock()
	s.draft = site.Clone(v)
	d, fn := site.Clone(s.draft), s.onChange
	s.mu.Unlock()
	if fn != nil {
		fn(s.key, d)
	}
}

// Save persists the draft and leaves edit mode on success.
func (s *Section) Save(ctx context.Context) error {
	s.mu.Lock()
	payload := site.Clone(s.draft)
	s.mu.Unlock()
	if err := s.persist(ctx, s.key, payload); err != nil {
		return err
	}
	s.mu.Lock()
	s.editing = false
	s.base = nil
	s.mu.Unlock()
	return nil
}

// Pending returns the fields staged for the next new item.
func (s *Section) Pending() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return nil
	}
	return site.Clone(s.pending).(map[string]any)
}

// CanBind reports whether BindField(itemID, ...) would find its target.
func (s *Section) CanBind(itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.bindTarget(itemID)
	return err
}

// BindField sets field on the item with itemID. An empty itemID addresses
// the pending new item of a list section and the object itself of an
// object section, as does the section key.
func (s *Section) BindField(itemID, field, value string) error {
	s.mu.Lock()
	target, err := s.bindTarget(itemID)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if target == nil {
		if s.pending == nil {
			s.pending = map[string]any{}
		}
		s.pending[field] = value
		s.mu.Unlock()
		return nil
	}
	target[field] = value
	d, fn := site.Clone(s.draft), s.onChange
	s.mu.Unlock()
	if fn != nil {
		fn(s.key, d)
	}
	return nil
}

// bindTarget resolves itemID to the map receiving fields; nil means the
// pending new item. Callers hold s.mu.
func (s *Section) bindTarget(itemID string) (map[string]any, error) {
	if obj, ok := s.draft.(map[string]any); ok {
		if itemID == "" || itemID == string(s.key) {
			return obj, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
	}
	if itemID == "" {
		return nil, nil
	}
	items, ok := site.Items(s.draft)
	if !ok {
		return nil, ErrNotList
	}
	for _, it := range items {
		if site.ItemIDOf(it) == itemID {
			return it, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
}

// AddItem appends a new item (fields merged over pending upload fields),
// assigns its id and persists the whole list.
func (s *Section) AddItem(ctx context.Context, fields map[string]any) (string, error) {
	kind := site.ItemKind(s.key)
	s.mu.Lock()
	items, ok := site.Items(s.draft)
	if !ok || kind == "" {
		s.mu.Unlock()
		return "", ErrNotList
	}
	item := map[string]any{}
	for k, v := range s.pending {
		item[k] = v
	}
	for k, v := range fields {
		item[k] = site.Clone(v)
	}
	id := site.NewItemID(kind, s.now(), items)
	item["id"] = id
	list := listOf(items)
	list = append(list, item)
	s.draft = list
	s.pending = nil
	s.mu.Unlock()
	return id, s.commit(ctx)
}

// UpdateItem merges fields into an existing item and persists the list.
func (s *Section) UpdateItem(ctx context.Context, id string, fields map[string]any) error {
	s.mu.Lock()
	items, ok := site.Items(s.draft)
	if !ok {
		s.mu.Unlock()
		return ErrNotList
	}
	found := false
	for _, it := range items {
		if site.ItemIDOf(it) == id {
			for k, v := range fields {
				if k == "id" {
					continue
				}
				it[k] = site.Clone(v)
			}
			found = true
			break
		}
	}
	if !found {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrItemNotFound, id)
	}
	s.draft = listOf(items)
	s.mu.Unlock()
	return s.commit(ctx)
}

// DeleteItem removes an item and persists the list.
func (s *Section) DeleteItem(ctx context.Context, id string) error {
	s.mu.Lock()
	items, ok := site.Items(s.draft)
	if !ok {
		s.mu.Unlock()
		return ErrNotList
	}
	kept := make([]map[string]any, 0, len(items))
	for _, it := range items {
		if site.ItemIDOf(it) != id {
			kept = append(kept, it)
		}
	}
	if len(kept) == len(items) {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrItemNotFound, id)
	}
	s.draft = listOf(kept)
	s.mu.Unlock()
	return s.commit(ctx)
}

// commit persists the entire current list.
func (s *Section) commit(ctx context.Context) error {
	s.mu.Lock()
	payload := site.Clone(s.draft)
	fn := s.onChange
	s.mu.Unlock()
	if fn != nil {
		fn(s.key, site.Clone(payload))
	}
	return s.persist(ctx, s.key, payload)
}

func listOf(items []map[string]any) []any {
	out := make([]any, len(items))
	for i, it := range items {
		out[i] = it
	}
	return out
}
