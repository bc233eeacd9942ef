package editor

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gracefellowship/churchsite/backend/go-services/pkg/logger"
	"github.com/gracefellowship/churchsite/backend/go-services/pkg/metrics"
)

// DefaultIdleTimeout closes sessions nobody touched for this long.
const DefaultIdleTimeout = 30 * time.Minute

// Store keeps the open editor sessions.
type Store struct {
	deps Deps
	idle time.Duration
	now  func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewStore(deps Deps, idle time.Duration) *Store {
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Store{deps: deps, idle: idle, now: now, sessions: make(map[string]*Session)}
}

// Open starts a new session for user.
func (st *Store) Open(user string) *Session {
	s := newSession(uuid.NewString(), user, st.deps)
	st.mu.Lock()
	st.sessions[s.id] = s
	st.mu.Unlock()
	metrics.EditorSessions.Inc()
	logger.Infof("editor session %s opened by %s", s.id, user)
	return s
}

// Get returns the session id owned by user and marks it used. Sessions of
// other users are reported as not found.
func (st *Store) Get(id, user string) (*Session, error) {
	st.mu.Lock()
	s, ok := st.sessions[id]
	st.mu.Unlock()
	if !ok || s.user != user {
		return nil, ErrSessionNotFound
	}
	s.touch(st.now())
	return s, nil
}

// Close ends the session id owned by user.
func (st *Store) Close(id, user string) error {
	st.mu.Lock()
	s, ok := st.sessions[id]
	if !ok || s.user != user {
		st.mu.Unlock()
		return ErrSessionNotFound
	}
	delete(st.sessions, id)
	st.mu.Unlock()
	st.shut(s, "closed")
	return nil
}

// Sweep closes sessions idle for longer than the timeout and reports how many.
func (st *Store) Sweep() int {
	cutoff := st.now().Add(-st.idle)
	var expired []*Session
	st.mu.Lock()
	for id, s := range st.sessions {
		if s.idleSince().Before(cutoff) {
			expired = append(expired, s)
			delete(st.sessions, id)
		}
	}
	st.mu.Unlock()
	for _, s := range expired {
		st.shut(s, "expired")
	}
	return len(expired)
}

// Run sweeps every interval until ctx ends, then closes all sessions.
func (st *Store) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			st.CloseAll()
			return
		case <-t.C:
			st.Sweep()
		}
	}
}

func (st *Store) CloseAll() {
	st.mu.Lock()
	all := make([]*Session, 0, len(st.sessions))
	for id, s := range st.sessions {
		all = append(all, s)
		delete(st.sessions, id)
	}
	st.mu.Unlock()
	for _, s := range all {
		st.shut(s, "closed")
	}
}

func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

func (st *Store) shut(s *Session, why string) {
	s.Close()
	metrics.EditorSessions.Dec()
	logger.Infof("editor session %s %s", s.id, why)
}
