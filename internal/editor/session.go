// Package editor implements edit mode: a per-user session that owns a page
// controller, one draft per section and the upload pipelines of the
// upload-capable sections, and streams their feedback as events.
package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gracefellowship/churchsite/backend/go-services/internal/admins"
	"github.com/gracefellowship/churchsite/backend/go-services/internal/draft"
	"github.com/gracefellowship/churchsite/backend/go-services/internal/page"
	"github.com/gracefellowship/churchsite/backend/go-services/internal/site"
	"github.com/gracefellowship/churchsite/backend/go-services/internal/site/repository"
	"github.com/gracefellowship/churchsite/backend/go-services/internal/storage"
	"github.com/gracefellowship/churchsite/backend/go-services/internal/upload"
	"github.com/gracefellowship/churchsite/backend/go-services/pkg/logger"
)

var (
	ErrSessionNotFound    = errors.New("editor session not found")
	ErrUploadNotSupported = errors.New("section does not accept uploads")
)

// UploadTargets lists the upload-capable sections.
var UploadTargets = []upload.Target{
	{Section: string(site.About), Kind: "about", Field: "imageUrl"},
	{Section: string(site.Events), Kind: "event", Field: "imageUrl"},
	{Section: string(site.Announcements), Kind: "announcement", Field: "imageUrl"},
}

type EventKind string

const (
	EventStatus EventKind = "status"
	EventToast  EventKind = "toast"
	EventDraft  EventKind = "draft"
)

// Event is one item of a session's feedback stream.
type Event struct {
	Kind    EventKind      `json:"kind"`
	Section string         `json:"section,omitempty"`
	Status  *upload.Status `json:"status,omitempty"`
	Toast   *page.Toast    `json:"toast,omitempty"`
	Draft   any            `json:"draft,omitempty"`
}

// Deps are the collaborators shared by all sessions.
type Deps struct {
	Repo       repository.Repository
	Admins     *admins.AllowList
	Registry   upload.Registry
	Store      storage.Store
	ClearDelay time.Duration
	Now        func() time.Time
}

const eventBuffer = 64

type Session struct {
	id      string
	user    string
	created time.Time

	ctrl     *page.Controller
	sections map[site.SectionKey]*draft.Section
	uploads  map[site.SectionKey]*upload.Orchestrator

	cancel context.CancelFunc
	done   chan struct{}

	mu        sync.Mutex
	listeners map[chan Event]struct{}
	lastUsed  time.Time
	closed    bool
	unsub     func()
}

func newSession(id, user string, deps Deps) *Session {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	s := &Session{
		id:        id,
		user:      user,
		created:   now(),
		lastUsed:  now(),
		sections:  make(map[site.SectionKey]*draft.Section),
		uploads:   make(map[site.SectionKey]*upload.Orchestrator),
		listeners: make(map[chan Event]struct{}),
		done:      make(chan struct{}),
	}
	s.ctrl = page.New(deps.Repo, deps.Admins, page.Options{User: user, OnToast: func(t page.Toast) {
		s.publish(Event{Kind: EventToast, Section: t.Section, Toast: &t})
	}})

	onChange := draft.OnChange(func(key site.SectionKey, v any) {
		s.publish(Event{Kind: EventDraft, Section: string(key), Draft: v})
	})
	for _, key := range site.AllSections() {
		s.sections[key] = draft.New(key, nil, s.ctrl.Persister(), onChange, draft.WithClock(now))
	}
	for _, t := range UploadTargets {
		key := site.SectionKey(t.Section)
		s.uploads[key] = upload.New(t, deps.Registry, deps.Store, s.sections[key], upload.Options{
			ClearDelay: deps.ClearDelay,
			Now:        now,
			OnStatus: func(st upload.Status) {
				s.publish(Event{Kind: EventStatus, Section: st.Section, Status: &st})
			},
		})
	}
	s.unsub = s.ctrl.Subscribe(func(doc site.Document) {
		for key, sec := range s.sections {
			sec.Reconcile(doc.Section(key))
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go func() {
		defer close(s.done)
		if err := s.ctrl.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Errorf("editor session %s: %v", id, err)
		}
	}()
	return s
}

func (s *Session) ID() string              { return s.id }
func (s *Session) User() string            { return s.user }
func (s *Session) Created() time.Time      { return s.created }
func (s *Session) IsAdmin() bool           { return s.ctrl.IsAdmin() }
func (s *Session) Ready() <-chan struct{}  { return s.ctrl.Ready() }
func (s *Session) Document() site.Document { return s.ctrl.Document() }

// Section returns the draft view-model for key.
func (s *Session) Section(key site.SectionKey) (*draft.Section, error) {
	sec, ok := s.sections[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", page.ErrUnknownSection, key)
	}
	return sec, nil
}

// Upload runs one upload attempt for section key and binds the result to
// itemID (empty for the pending new item).
func (s *Session) Upload(ctx context.Context, key site.SectionKey, f upload.File, itemID string) (upload.Result, error) {
	o, ok := s.uploads[key]
	if !ok {
		if !site.IsValidSection(string(key)) {
			return upload.Result{}, fmt.Errorf("%w: %s", page.ErrUnknownSection, key)
		}
		return upload.Result{}, fmt.Errorf("%w: %s", ErrUploadNotSupported, key)
	}
	return o.Upload(ctx, f, itemID)
}

// UploadStatus returns the current status of every upload-capable section.
func (s *Session) UploadStatus() map[string]upload.Status {
	out := make(map[string]upload.Status, len(s.uploads))
	for key, o := range s.uploads {
		out[string(key)] = o.Status()
	}
	return out
}

// Events streams session feedback until ctx ends or the session closes.
// A slow reader loses events rather than blocking the session.
func (s *Session) Events(ctx context.Context) <-chan Event {
	ch := make(chan Event, eventBuffer)
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch
	}
	s.listeners[ch] = struct{}{}
	s.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-s.done:
		}
		s.mu.Lock()
		if _, ok := s.listeners[ch]; ok {
			delete(s.listeners, ch)
			close(ch)
		}
		s.mu.Unlock()
	}()
	return ch
}

func (s *Session) publish(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.listeners {
		select {
		case ch <- e:
		default:
			logger.Debugf("editor session %s: dropped %s event", s.id, e.Kind)
		}
	}
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastUsed = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

// Close stops the subscription, the upload status timers and ends every
// event stream. Safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.unsub()
	s.cancel()
	<-s.done
	for _, o := range s.uploads {
		o.Close()
	}

	s.mu.Lock()
	for ch := range s.listeners {
		delete(s.listeners, ch)
		close(ch)
	}
	s.mu.Unlock()
}
