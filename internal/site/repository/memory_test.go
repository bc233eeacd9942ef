package repository

import (
	"context"
	"testing"
	"time"

	"github.com/gracefellowship/churchsite/backend/go-services/internal/site"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMemoryRepoCreateGetUpdate(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepo()

	_, ok, err := r.Get(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	require.ErrorIs(t, r.UpdateSection(ctx, site.Events, []any{}), ErrNotFound)

	require.NoError(t, r.Create(ctx, site.Defaults()))
	doc, ok, err := r.Get(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, site.Equal(map[string]any(site.Defaults()), map[string]any(doc)))

	events := []any{map[string]any{"id": "event-1", "title": "Picnic"}}
	require.NoError(t, r.UpdateSection(ctx, site.Events, events))
	doc, _, _ = r.Get(ctx)
	require.True(t, site.Equal(events, doc[string(site.Events)]))
	// other keys untouched by the partial update
	require.True(t, site.Equal(site.Defaults()[string(site.About)], doc[string(site.About)]))

	// returned documents are copies
	doc[string(site.Events)] = nil
	again, _, _ := r.Get(ctx)
	require.Len(t, again[string(site.Events)], 1)
	require.Equal(t, 2, r.Writes())
}

func TestMemoryRepoWatch(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	r := NewMemoryRepo()
	ch, err := r.Watch(ctx)
	require.NoError(t, err)

	first := recv(t, ch)
	require.False(t, first.Exists)

	require.NoError(t, r.Create(ctx, site.Defaults()))
	s := recv(t, ch)
	require.True(t, s.Exists)

	require.NoError(t, r.UpdateSection(ctx, site.Sermons, []any{map[string]any{"id": "sermon-1"}}))
	s = recv(t, ch)
	require.Len(t, s.Doc[string(site.Sermons)], 1)

	cancel()
	for range ch {
	}
}

func TestMemoryRepoWatchCoalescesToLatest(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := NewMemoryRepo()
	require.NoError(t, r.Create(ctx, site.Defaults()))
	ch, err := r.Watch(ctx)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, r.UpdateSection(ctx, site.LiveStream, map[string]any{"n": float64(i)}))
	}
	// drain until the final value shows up; intermediate ones may be skipped
	deadline := time.After(time.Second)
	for {
		select {
		case s := <-ch:
			if site.Equal(map[string]any{"n": float64(4)}, s.Doc[string(site.LiveStream)]) {
				return
			}
		case <-deadline:
			t.Fatal("latest snapshot never delivered")
		}
	}
}

func recv(t *testing.T, ch <-chan Snapshot) Snapshot {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
	return Snapshot{}
}
