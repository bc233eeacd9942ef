package repository

import (
	"context"
	"errors"

	"github.com/gracefellowship/churchsite/backend/go-services/internal/site"
)

var (
	ErrNotFound = errors.New("site document not found")
)

// Snapshot is one observation of the site document.
type Snapshot struct {
	Exists bool
	Doc    site.Document
}

// Repository persists the single site document at a fixed path.
type Repository interface {
	Get(ctx context.Context) (site.Document, bool, error)
	// Create writes the whole document, replacing any existing one.
	Create(ctx context.Context, doc site.Document) error
	// UpdateSection replaces exactly one section key.
	UpdateSection(ctx context.Context, key site.SectionKey, payload any) error
	// Watch delivers the current state followed by every change until ctx ends.
	Watch(ctx context.Context) (<-chan Snapshot, error)
}

// latest is a single-slot channel send: a pending unread snapshot is
// replaced so slow readers only ever see the newest state.
func latest(ch chan Snapshot, s Snapshot) {
	for {
		select {
		case ch <- s:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// forward relays the single-slot channel to an unbuffered one that is closed
// when ctx ends.
func forward(ctx context.Context, ch chan Snapshot) <-chan Snapshot {
	out := make(chan Snapshot)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case s := <-ch:
				select {
				case out <- s:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}
