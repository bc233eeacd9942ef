// Package page owns the authoritative site document for one viewer: the
// live subscription, fan-out to sections and the admin-gated write path.
package page

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gracefellowship/churchsite/backend/go-services/internal/admins"
	"github.com/gracefellowship/churchsite/backend/go-services/internal/site"
	"github.com/gracefellowship/churchsite/backend/go-services/internal/site/repository"
	"github.com/gracefellowship/churchsite/backend/go-services/pkg/logger"
	"github.com/gracefellowship/churchsite/backend/go-services/pkg/metrics"
)

var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrUnknownSection   = errors.New("unknown section")
)

type Options struct {
	// User is the current user id ("" for nobody).
	User string
	// OnToast receives user feedback.
	OnToast func(Toast)
}

// Controller is not safe to Run twice.
type Controller struct {
	repo   repository.Repository
	admins *admins.AllowList

	mu      sync.RWMutex
	user    string
	doc     site.Document
	exists  bool
	loaded  bool
	subs    map[int]func(site.Document)
	nextSub int
	onToast func(Toast)
	ready   chan struct{}
}

func New(repo repository.Repository, allow *admins.AllowList, opts Options) *Controller {
	return &Controller{
		repo:    repo,
		admins:  allow,
		user:    opts.User,
		onToast: opts.OnToast,
		subs:    make(map[int]func(site.Document)),
		ready:   make(chan struct{}),
	}
}

// SetUser changes the current user (sign-in, elevation or sign-out).
func (c *Controller) SetUser(uid string) {
	c.mu.Lock()
	c.user = uid
	c.mu.Unlock()
}

func (c *Controller) User() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.user
}

// IsAdmin reports whether the current user holds admin capability.
func (c *Controller) IsAdmin() bool {
	return c.admins.IsAdmin(c.User())
}

// Run consumes the live subscription until ctx ends.
func (c *Controller) Run(ctx context.Context) error {
	snaps, err := c.repo.Watch(ctx)
	if err != nil {
		return fmt.Errorf("subscribe site document: %w", err)
	}
	for s := range snaps {
		c.handle(ctx, s)
	}
	return ctx.Err()
}

// Ready is closed after the first snapshot has been broadcast.
func (c *Controller) Ready() <-chan struct{} { return c.ready }

func (c *Controller) handle(ctx context.Context, s repository.Snapshot) {
	var doc site.Document
	switch {
	case s.Exists:
		doc, _ = site.Migrate(s.Doc)
		doc = site.WithDefaults(doc)
	case c.IsAdmin():
		doc = site.Defaults()
		if err := c.repo.Create(ctx, doc); err != nil {
			logger.Errorf("create default site document: %v", err)
			c.toast(Toast{Kind: ToastError, Message: msgSaveFailed})
		} else {
			logger.Infof("site document created with defaults by %s", c.User())
			c.toast(Toast{Kind: ToastInfo, Message: msgCreated})
		}
	default:
		doc = site.Defaults()
	}

	c.mu.Lock()
	c.doc = doc
	c.exists = s.Exists
	first := !c.loaded
	c.loaded = true
	subs := make([]func(site.Document), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.mu.Unlock()

	for _, fn := range subs {
		fn(doc.Clone())
	}
	if first {
		close(c.ready)
	}
}

// Document returns the last broadcast document (nil before the first snapshot).
func (c *Controller) Document() site.Document {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.doc.Clone()
}

// Subscribe registers fn for every broadcast. When a document is already
// loaded fn is called immediately with it.
func (c *Controller) Subscribe(fn func(site.Document)) (cancel func()) {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	var cur site.Document
	if c.loaded {
		cur = c.doc.Clone()
	}
	c.mu.Unlock()
	if cur != nil {
		fn(cur)
	}
	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// SaveSection writes one section. Non-admins are rejected before any write.
func (c *Controller) SaveSection(ctx context.Context, key site.SectionKey, payload any) error {
	if !c.IsAdmin() {
		metrics.SectionSaves.WithLabelValues(string(key), "denied").Inc()
		logger.Warnf("rejected save of %s by non-admin %q", key, c.User())
		c.toast(Toast{Kind: ToastError, Message: msgPermission, Section: string(key)})
		return ErrPermissionDenied
	}
	if !site.IsValidSection(string(key)) {
		metrics.SectionSaves.WithLabelValues("unknown", "rejected").Inc()
		return fmt.Errorf("%w: %s", ErrUnknownSection, key)
	}
	payload, err := site.Normalize(payload)
	if err != nil {
		return err
	}
	err = c.repo.UpdateSection(ctx, key, payload)
	if errors.Is(err, repository.ErrNotFound) {
		// never created (e.g. first admin save raced the subscription)
		doc := c.Document()
		if doc == nil {
			doc = site.Defaults()
		}
		doc[string(key)] = payload
		err = c.repo.Create(ctx, doc)
	}
	if err != nil {
		metrics.SectionSaves.WithLabelValues(string(key), "failed").Inc()
		logger.Errorf("save section %s: %v", key, err)
		c.toast(Toast{Kind: ToastError, Message: msgSaveFailed, Section: string(key)})
		return fmt.Errorf("save section %s: %w", key, err)
	}
	metrics.SectionSaves.WithLabelValues(string(key), "saved").Inc()
	c.toast(Toast{Kind: ToastSuccess, Message: msgSaved, Section: string(key)})
	return nil
}

// Persister adapts SaveSection for section view-models.
func (c *Controller) Persister() func(ctx context.Context, key site.SectionKey, payload any) error {
	return c.SaveSection
}

func (c *Controller) toast(t Toast) {
	c.mu.RLock()
	fn := c.onToast
	c.mu.RUnlock()
	if fn != nil {
		fn(t)
	}
}
