// Package upload validates, deduplicates and stores image assets for the
// upload-capable site sections.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/gracefellowship/churchsite/backend/go-services/internal/digest"
	"github.com/gracefellowship/churchsite/backend/go-services/internal/storage"
	"github.com/gracefellowship/churchsite/backend/go-services/pkg/logger"
	"github.com/gracefellowship/churchsite/backend/go-services/pkg/metrics"
	"golang.org/x/sync/singleflight"
)

// MaxFileSize is the upload ceiling (10 MiB).
const MaxFileSize = 10 << 20

// DefaultClearDelay is how long a finished status stays visible.
const DefaultClearDelay = 3 * time.Second

var (
	ErrNotImage     = errors.New("please choose an image file")
	ErrTooLarge     = errors.New("image must be 10 MB or smaller")
	ErrUploadFailed = errors.New(msgFailed)
)

// File is a candidate upload. Open must return a fresh reader each call.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Open        digest.Opener
}

// Target describes where a section stores uploaded assets.
type Target struct {
	Section string // storage folder and section key
	Kind    string // key prefix, e.g. "event"
	Field   string // draft field receiving the URL
}

// Registry is the duplicate registry consulted before uploading.
type Registry interface {
	FindByHash(ctx context.Context, digest string) (string, bool)
	Record(ctx context.Context, digest, url, fileName, storagePath string)
}

// Binder receives the resolved URL. An empty itemID addresses the pending
// new-item draft of list sections and the section object itself otherwise.
type Binder interface {
	// CanBind reports whether itemID can currently receive a field.
	CanBind(itemID string) error
	BindField(itemID, field, value string) error
}

// Result of a successful upload.
type Result struct {
	URL    string
	Digest string
	Reused bool
	Key    string
}

type Options struct {
	ClearDelay time.Duration
	OnStatus   func(Status)
	Now        func() time.Time
}

// Orchestrator runs upload attempts for one section.
type Orchestrator struct {
	target   Target
	registry Registry
	store    storage.Store
	binder   Binder

	clearDelay time.Duration
	onStatus   func(Status)
	now        func() time.Time

	flight singleflight.Group

	mu      sync.Mutex
	attempt uint64
	status  Status
	timer   *time.Timer
	lastKey int64 // millis used by the last asset key
}

// maxKeyAttempts bounds how often a taken asset key is replaced.
const maxKeyAttempts = 3

func New(target Target, registry Registry, store storage.Store, binder Binder, opts Options) *Orchestrator {
	o := &Orchestrator{
		target:     target,
		registry:   registry,
		store:      store,
		binder:     binder,
		clearDelay: opts.ClearDelay,
		onStatus:   opts.OnStatus,
		now:        opts.Now,
	}
	if o.clearDelay <= 0 {
		o.clearDelay = DefaultClearDelay
	}
	if o.now == nil {
		o.now = time.Now
	}
	o.status = Status{Section: target.Section, Phase: PhaseIdle, At: o.now()}
	return o
}

// Target returns the section configuration.
func (o *Orchestrator) Target() Target { return o.target }

// Status returns the current status.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// Validate checks the declared type and size without reading the file.
func Validate(f File) error {
	if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(f.ContentType)), "image/") {
		return ErrNotImage
	}
	if f.Size > MaxFileSize {
		return ErrTooLarge
	}
	return nil
}

// Upload runs one attempt. Each call starts a fresh attempt; in-flight
// attempts are never cancelled.
func (o *Orchestrator) Upload(ctx context.Context, f File, itemID string) (Result, error) {
	attempt := o.begin()

	if err := Validate(f); err != nil {
		metrics.Uploads.WithLabelValues(o.target.Section, "rejected").Inc()
		o.emit(attempt, Status{ItemID: itemID, Phase: PhaseError, Message: err.Error()})
		return Result{}, err
	}

	if err := o.binder.CanBind(itemID); err != nil {
		metrics.Uploads.WithLabelValues(o.target.Section, "rejected").Inc()
		o.emit(attempt, Status{ItemID: itemID, Phase: PhaseError, Message: msgFailed})
		return Result{}, err
	}

	o.emit(attempt, Status{ItemID: itemID, Phase: PhaseChecking, Message: msgChecking})
	res, err := o.resolve(ctx, attempt, f, itemID)
	if err != nil {
		metrics.Uploads.WithLabelValues(o.target.Section, "failed").Inc()
		logger.Errorf("upload %s/%s failed: %v", o.target.Section, f.Name, err)
		o.emit(attempt, Status{ItemID: itemID, Phase: PhaseError, Message: msgFailed})
		return Result{}, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	// The item may have been deleted while the blob was being written.
	if err := o.binder.BindField(itemID, o.target.Field, res.URL); err != nil {
		metrics.Uploads.WithLabelValues(o.target.Section, "failed").Inc()
		o.emit(attempt, Status{ItemID: itemID, Phase: PhaseError, Message: msgFailed})
		return Result{}, fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}

	msg := msgUploaded
	outcome := "uploaded"
	if res.Reused {
		msg = msgReused
		outcome = "reused"
	}
	metrics.Uploads.WithLabelValues(o.target.Section, outcome).Inc()
	o.emit(attempt, Status{ItemID: itemID, Phase: PhaseSuccess, Message: msg, URL: res.URL, Reused: res.Reused})
	return res, nil
}

// resolve finds or creates the asset for f. Concurrent attempts for the same
// content share one lookup/upload.
func (o *Orchestrator) resolve(ctx context.Context, attempt uint64, f File, itemID string) (Result, error) {
	sum, err := digest.Sum(f.Open)
	if err != nil {
		return Result{}, err
	}
	v, err, _ := o.flight.Do(sum, func() (interface{}, error) {
		if url, ok := o.registry.FindByHash(ctx, sum); ok {
			o.emit(attempt, Status{ItemID: itemID, Phase: PhaseReusing, Message: msgReusing, URL: url})
			return Result{URL: url, Digest: sum, Reused: true}, nil
		}
		o.emit(attempt, Status{ItemID: itemID, Phase: PhaseUploading, Message: msgUploading})
		return o.uploadNew(ctx, sum, f)
	})
	if err != nil {
		return Result{}, err
	}
	return v.(Result), nil
}

// uploadNew writes the blob under a fresh key and records its digest before
// returning, so the next upload of the same content finds it.
func (o *Orchestrator) uploadNew(ctx context.Context, sum string, f File) (Result, error) {
	var (
		key string
		err error
	)
	for i := 0; i < maxKeyAttempts; i++ {
		key = storage.AssetKey(o.target.Section, o.target.Kind, o.nextKeyTime(), f.Name)
		err = o.put(ctx, key, f)
		if !errors.Is(err, storage.ErrObjectExists) {
			break
		}
		logger.Warnf("asset key %s already taken, picking another", key)
	}
	if err != nil {
		return Result{}, err
	}
	url, err := o.store.URL(ctx, key)
	if err != nil {
		return Result{}, err
	}
	metrics.UploadedBytes.WithLabelValues(o.target.Section).Add(float64(f.Size))

	o.registry.Record(context.WithoutCancel(ctx), sum, url, f.Name, key)
	return Result{URL: url, Digest: sum, Key: key}, nil
}

func (o *Orchestrator) put(ctx context.Context, key string, f File) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	return o.store.Upload(ctx, key, io.LimitReader(rc, MaxFileSize+1), f.Size, f.ContentType)
}

// nextKeyTime returns the clock reading for a new asset key, moved forward
// so that no two keys of this orchestrator share a millisecond.
func (o *Orchestrator) nextKeyTime() time.Time {
	ms := o.now().UnixMilli()
	o.mu.Lock()
	if ms <= o.lastKey {
		ms = o.lastKey + 1
	}
	o.lastKey = ms
	o.mu.Unlock()
	return time.UnixMilli(ms)
}

// Close stops the pending status timer.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
	o.mu.Unlock()
}

func (o *Orchestrator) begin() uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.attempt++
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
	return o.attempt
}

// emit publishes s for attempt unless a newer attempt has started. Terminal
// statuses schedule the return to idle.
func (o *Orchestrator) emit(attempt uint64, s Status) {
	o.mu.Lock()
	if attempt != o.attempt {
		o.mu.Unlock()
		return
	}
	s.Section = o.target.Section
	s.Attempt = attempt
	s.At = o.now()
	o.status = s
	if s.Phase.Terminal() {
		o.timer = time.AfterFunc(o.clearDelay, func() { o.clear(attempt) })
	}
	sink := o.onStatus
	o.mu.Unlock()
	if sink != nil {
		sink(s)
	}
}

func (o *Orchestrator) clear(attempt uint64) {
	o.mu.Lock()
	if attempt != o.attempt || !o.status.Phase.Terminal() {
		o.mu.Unlock()
		return
	}
	s := Status{Section: o.target.Section, Attempt: attempt, Phase: PhaseIdle, At: o.now()}
	o.status = s
	o.timer = nil
	sink := o.onStatus
	o.mu.Unlock()
	if sink != nil {
		sink(s)
	}
}
