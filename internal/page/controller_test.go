package page

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/gracefellowship/churchsite/backend/go-services/internal/admins"
	"github.com/gracefellowship/churchsite/backend/go-services/internal/site"
	"github.com/gracefellowship/churchsite/backend/go-services/internal/site/repository"
)

type toastLog struct {
	mu     sync.Mutex
	toasts []Toast
}

func (l *toastLog) add(t Toast) {
	l.mu.Lock()
	l.toasts = append(l.toasts, t)
	l.mu.Unlock()
}

func (l *toastLog) all() []Toast {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Toast(nil), l.toasts...)
}

func start(t *testing.T, repo repository.Repository, user string) (*Controller, *toastLog) {
	t.Helper()
	log := &toastLog{}
	c := New(repo, admins.NewAllowList("admin-1"), Options{User: user, OnToast: log.add})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	select {
	case <-c.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("controller never received a snapshot")
	}
	return c, log
}

func TestNonAdminSeesDefaultsWithoutWriting(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })
	repo := repository.NewMemoryRepo()
	c, _ := start(t, repo, "visitor")

	require.True(t, site.Equal(site.Defaults(), c.Document()))
	require.Equal(t, 0, repo.Writes())
	_, exists, _ := repo.Get(context.Background())
	require.False(t, exists)
}

func TestAdminCreatesDefaults(t *testing.T) {
	repo := repository.NewMemoryRepo()
	_, log := start(t, repo, "admin-1")

	require.Eventually(t, func() bool {
		_, ok, _ := repo.Get(context.Background())
		return ok
	}, time.Second, 5*time.Millisecond)
	doc, _, _ := repo.Get(context.Background())
	require.True(t, site.Equal(site.Defaults(), doc))
	require.Contains(t, log.all(), Toast{Kind: ToastInfo, Message: msgCreated})
}

func TestSaveSectionRejectsNonAdmin(t *testing.T) {
	repo := repository.NewMemoryRepo()
	require.NoError(t, repo.Create(context.Background(), site.Defaults()))
	c, log := start(t, repo, "visitor")
	before := repo.Writes()

	err := c.SaveSection(context.Background(), site.Contact, map[string]any{"phone": "555"})
	require.ErrorIs(t, err, ErrPermissionDenied)
	require.Equal(t, before, repo.Writes())
	require.Equal(t, []Toast{{Kind: ToastError, Message: msgPermission, Section: "contact"}}, log.all())

	// signing out behaves the same
	c.SetUser("")
	require.ErrorIs(t, c.SaveSection(context.Background(), site.Contact, nil), ErrPermissionDenied)
}

func TestSaveSectionUpdatesAndBroadcasts(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })
	repo := repository.NewMemoryRepo()
	require.NoError(t, repo.Create(context.Background(), site.Defaults()))
	c, log := start(t, repo, "admin-1")

	var mu sync.Mutex
	var seen []site.Document
	cancel := c.Subscribe(func(d site.Document) {
		mu.Lock()
		seen = append(seen, d)
		mu.Unlock()
	})
	defer cancel()

	contact := map[string]any{"phone": "555-0100", "email": "office@example.org"}
	require.NoError(t, c.SaveSection(context.Background(), site.Contact, contact))
	require.Equal(t, ToastSuccess, log.all()[0].Kind)

	require.Eventually(t, func() bool {
		return site.Equal(contact, c.Document().Section(site.Contact))
	}, time.Second, 5*time.Millisecond)

	// other sections are untouched
	stored, _, _ := repo.Get(context.Background())
	require.True(t, site.Equal(site.Defaults().Section(site.Events), stored.Section(site.Events)))

	mu.Lock()
	require.NotEmpty(t, seen)
	mu.Unlock()
}

func TestSaveSectionIsIdempotent(t *testing.T) {
	repo := repository.NewMemoryRepo()
	require.NoError(t, repo.Create(context.Background(), site.Defaults()))
	c, _ := start(t, repo, "admin-1")

	payload := map[string]any{"url": "https://video.example.org/live"}
	require.NoError(t, c.SaveSection(context.Background(), site.LiveStream, payload))
	first, _, _ := repo.Get(context.Background())
	require.NoError(t, c.SaveSection(context.Background(), site.LiveStream, payload))
	second, _, _ := repo.Get(context.Background())
	require.True(t, site.Equal(first, second))
}

func TestSaveSectionUnknownKey(t *testing.T) {
	repo := repository.NewMemoryRepo()
	c, _ := start(t, repo, "admin-1")
	err := c.SaveSection(context.Background(), site.SectionKey("footer"), map[string]any{})
	require.ErrorIs(t, err, ErrUnknownSection)
}

func TestLegacyAboutIsMigratedOnRead(t *testing.T) {
	repo := repository.NewMemoryRepo()
	doc := site.Defaults()
	doc[string(site.About)] = map[string]any{"mission": "Love God", "vision": "Serve the city"}
	require.NoError(t, repo.Create(context.Background(), doc))

	c, _ := start(t, repo, "visitor")
	about, ok := c.Document().Section(site.About).(map[string]any)
	require.True(t, ok)
	require.NotContains(t, about, "mission")
	require.NotEmpty(t, about["highlights"])
}
