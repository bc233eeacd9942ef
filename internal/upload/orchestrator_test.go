package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/gracefellowship/churchsite/backend/go-services/internal/assets"
	"github.com/gracefellowship/churchsite/backend/go-services/internal/digest"
	"github.com/gracefellowship/churchsite/backend/go-services/internal/storage"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type bind struct{ itemID, field, value string }

type fakeBinder struct {
	mu      sync.Mutex
	binds   []bind
	err     error
	unknown map[string]bool
}

func (f *fakeBinder) CanBind(itemID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unknown[itemID] {
		return fmt.Errorf("%w: %s", errUnknownItem, itemID)
	}
	return nil
}

func (f *fakeBinder) BindField(itemID, field, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.binds = append(f.binds, bind{itemID, field, value})
	return nil
}

var errUnknownItem = errors.New("item not found")

type statusLog struct {
	mu  sync.Mutex
	all []Status
}

func (l *statusLog) add(s Status) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.all = append(l.all, s)
}

func (l *statusLog) phases() []Phase {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Phase, 0, len(l.all))
	for _, s := range l.all {
		out = append(out, s.Phase)
	}
	return out
}

type failingStore struct{ storage.Store }

func (failingStore) Upload(context.Context, string, io.Reader, int64, string) error {
	return errors.New("network down")
}

type fixture struct {
	repo   *assets.MemoryRepo
	store  *storage.MemoryStorage
	binder *fakeBinder
	log    *statusLog
	orch   *Orchestrator
}

func newFixture(t *testing.T, target Target, store storage.Store) *fixture {
	t.Helper()
	f := &fixture{
		repo:   assets.NewMemoryRepo(),
		store:  storage.NewMemoryStorage("https://assets.test"),
		binder: &fakeBinder{},
		log:    &statusLog{},
	}
	if store == nil {
		store = f.store
	}
	clock := time.UnixMilli(1700000000000)
	var mu sync.Mutex
	now := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(time.Millisecond)
		return clock
	}
	f.orch = New(target, assets.NewRegistry(f.repo), store, f.binder, Options{
		ClearDelay: 50 * time.Millisecond,
		OnStatus:   f.log.add,
		Now:        now,
	})
	t.Cleanup(f.orch.Close)
	return f
}

var eventsTarget = Target{Section: "events", Kind: "event", Field: "imageUrl"}

func imageFile(name string, content []byte) File {
	return File{Name: name, ContentType: "image/png", Size: int64(len(content)), Open: digest.BytesOpener(content)}
}

func TestUploadThenDuplicateReusesURL(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newFixture(t, eventsTarget, nil)
	ctx := context.Background()
	content := []byte("same flyer bytes")

	first, err := f.orch.Upload(ctx, imageFile("flyer.png", content), "event-1")
	require.NoError(t, err)
	require.False(t, first.Reused)
	require.Equal(t, "events/event-1700000000004-flyer.png", first.Key)

	second, err := f.orch.Upload(ctx, imageFile("poster.png", content), "event-2")
	require.NoError(t, err)
	require.True(t, second.Reused)
	require.Equal(t, first.URL, second.URL)

	require.Equal(t, 1, f.store.Len(), "duplicate content must not create a second blob")
	require.Equal(t, 1, f.repo.Count(digest.SumBytes(content)))
	require.Equal(t, []bind{
		{"event-1", "imageUrl", first.URL},
		{"event-2", "imageUrl", first.URL},
	}, f.binder.binds)
	f.orch.Close()
}

func TestBackToBackDuplicatesNeverUploadTwice(t *testing.T) {
	f := newFixture(t, eventsTarget, nil)
	ctx := context.Background()
	for i := 0; i < 20; i++ {
		content := []byte(fmt.Sprintf("flyer %d", i))
		first, err := f.orch.Upload(ctx, imageFile(fmt.Sprintf("a%d.png", i), content), "")
		require.NoError(t, err)
		second, err := f.orch.Upload(ctx, imageFile(fmt.Sprintf("b%d.png", i), content), "")
		require.NoError(t, err)
		require.True(t, second.Reused, "upload %d", i)
		require.Equal(t, first.URL, second.URL)
		require.Equal(t, 1, f.repo.Count(digest.SumBytes(content)))
	}
	require.Equal(t, 20, f.store.Len())
}

func TestSameNameSameMillisecondGetsDistinctKeys(t *testing.T) {
	store := storage.NewMemoryStorage("https://assets.test")
	frozen := time.UnixMilli(1700000000000)
	orch := New(eventsTarget, assets.NewRegistry(assets.NewMemoryRepo()), store, &fakeBinder{}, Options{
		Now: func() time.Time { return frozen },
	})
	t.Cleanup(orch.Close)

	keys := map[string]bool{}
	for i := 0; i < 50; i++ {
		res, err := orch.Upload(context.Background(), imageFile("flyer.png", []byte(fmt.Sprintf("content %d", i))), "")
		require.NoError(t, err)
		require.False(t, keys[res.Key], "key %s reused", res.Key)
		keys[res.Key] = true
	}
	require.Equal(t, 50, store.Len())
}

// takenStore reports the first key it sees as already taken.
type takenStore struct {
	*storage.MemoryStorage
	once sync.Once
}

func (s *takenStore) Upload(ctx context.Context, key string, r io.Reader, size int64, ct string) error {
	taken := false
	s.once.Do(func() { taken = true })
	if taken {
		return fmt.Errorf("put %s: %w", key, storage.ErrObjectExists)
	}
	return s.MemoryStorage.Upload(ctx, key, r, size, ct)
}

func TestTakenKeyIsReplaced(t *testing.T) {
	store := &takenStore{MemoryStorage: storage.NewMemoryStorage("https://assets.test")}
	f := newFixture(t, eventsTarget, store)
	res, err := f.orch.Upload(context.Background(), imageFile("flyer.png", []byte("x")), "")
	require.NoError(t, err)
	require.Equal(t, "events/event-1700000000005-flyer.png", res.Key)
	require.Equal(t, 1, store.Len())
}

func TestUnknownItemRejectedBeforeUpload(t *testing.T) {
	f := newFixture(t, eventsTarget, nil)
	f.binder.unknown = map[string]bool{"event-9": true}
	_, err := f.orch.Upload(context.Background(), imageFile("a.png", []byte("a")), "event-9")
	require.ErrorIs(t, err, errUnknownItem)
	require.NotErrorIs(t, err, ErrUploadFailed)
	require.Zero(t, f.store.Len())
	require.Zero(t, f.repo.Count(digest.SumBytes([]byte("a"))))
	require.Equal(t, []Phase{PhaseError}, f.log.phases())
}

func TestBindFailureKeepsCause(t *testing.T) {
	f := newFixture(t, eventsTarget, nil)
	f.binder.err = errUnknownItem
	_, err := f.orch.Upload(context.Background(), imageFile("a.png", []byte("a")), "event-1")
	require.ErrorIs(t, err, ErrUploadFailed)
	require.ErrorIs(t, err, errUnknownItem)
}

func TestUploadStatusSequence(t *testing.T) {
	f := newFixture(t, eventsTarget, nil)
	ctx := context.Background()

	_, err := f.orch.Upload(ctx, imageFile("a.png", []byte("a")), "")
	require.NoError(t, err)
	require.Equal(t, []Phase{PhaseChecking, PhaseUploading, PhaseSuccess}, f.log.phases())
	require.Equal(t, PhaseSuccess, f.orch.Status().Phase)

	require.Eventually(t, func() bool { return f.orch.Status().Phase == PhaseIdle }, time.Second, 5*time.Millisecond)
	require.Equal(t, PhaseIdle, f.log.phases()[3])

	f.log.all = nil
	_, err = f.orch.Upload(ctx, imageFile("b.png", []byte("a")), "")
	require.NoError(t, err)
	require.Equal(t, []Phase{PhaseChecking, PhaseReusing, PhaseSuccess}, f.log.phases()[:3])
	// pending new-item draft receives the URL
	require.Equal(t, "", f.binder.binds[1].itemID)
}

func TestRejectsNonImageBeforeHashing(t *testing.T) {
	f := newFixture(t, eventsTarget, nil)
	opened := 0
	file := File{Name: "notes.pdf", ContentType: "application/pdf", Size: 10, Open: func() (io.ReadCloser, error) {
		opened++
		return io.NopCloser(bytes.NewReader(nil)), nil
	}}
	_, err := f.orch.Upload(context.Background(), file, "event-1")
	require.ErrorIs(t, err, ErrNotImage)
	require.Zero(t, opened)
	require.Empty(t, f.binder.binds)
	require.Zero(t, f.store.Len())
	require.Equal(t, []Phase{PhaseError}, f.log.phases())
}

func TestRejectsOversizedBeforeHashing(t *testing.T) {
	f := newFixture(t, eventsTarget, nil)
	opened := 0
	file := File{Name: "huge.png", ContentType: "image/png", Size: MaxFileSize + 1, Open: func() (io.ReadCloser, error) {
		opened++
		return io.NopCloser(bytes.NewReader(nil)), nil
	}}
	_, err := f.orch.Upload(context.Background(), file, "")
	require.ErrorIs(t, err, ErrTooLarge)
	require.NotEqual(t, ErrNotImage.Error(), err.Error())
	require.Zero(t, opened)
	require.Empty(t, f.binder.binds)

	// exactly at the ceiling is fine
	require.NoError(t, Validate(File{ContentType: "image/jpeg", Size: MaxFileSize}))
}

func TestUploadFailureLeavesDraftUntouched(t *testing.T) {
	f := newFixture(t, eventsTarget, failingStore{})
	_, err := f.orch.Upload(context.Background(), imageFile("a.png", []byte("a")), "event-1")
	require.ErrorIs(t, err, ErrUploadFailed)
	require.Empty(t, f.binder.binds)
	st := f.orch.Status()
	require.Equal(t, PhaseError, st.Phase)
	require.Equal(t, msgFailed, st.Message)
	require.Zero(t, f.repo.Count(digest.SumBytes([]byte("a"))))
}

func TestUnreadableFileFails(t *testing.T) {
	f := newFixture(t, eventsTarget, nil)
	file := File{Name: "a.png", ContentType: "image/png", Size: 1, Open: func() (io.ReadCloser, error) {
		return nil, errors.New("blob unreadable")
	}}
	_, err := f.orch.Upload(context.Background(), file, "")
	require.ErrorIs(t, err, ErrUploadFailed)
	require.Empty(t, f.binder.binds)
}

func TestNewAttemptSuppressesStaleClear(t *testing.T) {
	f := newFixture(t, eventsTarget, nil)
	ctx := context.Background()
	_, err := f.orch.Upload(ctx, imageFile("a.png", []byte("a")), "")
	require.NoError(t, err)
	first := f.orch.Status().Attempt

	_, err = f.orch.Upload(ctx, File{Name: "x.txt", ContentType: "text/plain"}, "")
	require.Error(t, err)
	st := f.orch.Status()
	require.Equal(t, first+1, st.Attempt)
	require.Equal(t, PhaseError, st.Phase)

	require.Eventually(t, func() bool { return f.orch.Status().Phase == PhaseIdle }, time.Second, 5*time.Millisecond)
	require.Equal(t, first+1, f.orch.Status().Attempt)
}
