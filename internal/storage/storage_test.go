package storage

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAssetKey(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	require.Equal(t, "events/event-1700000000123-flyer.png", AssetKey("events", "event", now, "flyer.png"))
	require.Equal(t, "about/about-1700000000123-pic.jpg", AssetKey("about", "about", now, `C:\Users\me\pic.jpg`))
	require.Equal(t, "about/about-1700000000123-pic.jpg", AssetKey("about", "about", now, "../../pic.jpg"))
	require.Equal(t, "events/event-1700000000123-file", AssetKey("events", "event", now, ""))
}

func TestPublicURLEscapesSegments(t *testing.T) {
	got := publicURL("https://cdn.example.org/", "site", "events/event-1-my flyer.png")
	require.Equal(t, "https://cdn.example.org/site/events/event-1-my%20flyer.png", got)
}

func TestMemoryStorage(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage("https://assets.test")
	require.NoError(t, s.Upload(ctx, "heroImages/b.jpg", bytes.NewReader([]byte("b")), 1, "image/jpeg"))
	require.NoError(t, s.Upload(ctx, "heroImages/a.jpg", bytes.NewReader([]byte("a")), 1, "image/jpeg"))
	require.NoError(t, s.Upload(ctx, "events/x.png", bytes.NewReader([]byte("x")), 1, "image/png"))

	require.Error(t, s.Upload(ctx, "events/x.png", bytes.NewReader(nil), 0, "image/png"), "keys are never overwritten")

	keys, err := s.List(ctx, "heroImages/")
	require.NoError(t, err)
	require.Equal(t, []string{"heroImages/a.jpg", "heroImages/b.jpg"}, keys)

	u, err := s.URL(ctx, "events/x.png")
	require.NoError(t, err)
	require.Equal(t, "https://assets.test/events/x.png", u)

	_, err = s.URL(ctx, "missing")
	require.Error(t, err)

	data, ok := s.Object("events/x.png")
	require.True(t, ok)
	require.Equal(t, []byte("x"), data)
	require.Equal(t, 3, s.Len())
}

func TestConfigRequiresPublicBaseURL(t *testing.T) {
	for _, backend := range []string{"", BackendMinIO, BackendS3} {
		c := &Config{Backend: backend, Bucket: "site"}
		require.Error(t, c.Validate(), backend)
		_, err := Open(context.Background(), c)
		require.ErrorContains(t, err, "STORAGE_PUBLIC_BASE_URL")

		c.PublicBaseURL = "https://cdn.example.org"
		require.NoError(t, c.Validate(), backend)
	}
	require.Error(t, (&Config{Backend: BackendS3, PublicBaseURL: "https://cdn.example.org"}).Validate())
	require.NoError(t, (&Config{Backend: BackendMemory}).Validate())
}

func TestRemoteURLsNeverExpire(t *testing.T) {
	cfg := Config{Bucket: "assets", PublicBaseURL: "https://cdn.example.org"}
	m := &MinIOStorage{cfg: cfg}
	u, err := m.URL(context.Background(), "events/event-1-flyer.png")
	require.NoError(t, err)
	require.Equal(t, "https://cdn.example.org/assets/events/event-1-flyer.png", u)

	s := &S3Storage{cfg: cfg}
	u, err = s.URL(context.Background(), "events/event-1-flyer.png")
	require.NoError(t, err)
	require.NotContains(t, u, "X-Amz-Expires")
}

func TestMemoryStorageReportsTakenKey(t *testing.T) {
	s := NewMemoryStorage("")
	ctx := context.Background()
	require.NoError(t, s.Upload(ctx, "k", bytes.NewReader([]byte("a")), 1, "image/png"))
	err := s.Upload(ctx, "k", bytes.NewReader([]byte("b")), 1, "image/png")
	require.ErrorIs(t, err, ErrObjectExists)
	data, _ := s.Object("k")
	require.Equal(t, []byte("a"), data)
}

func TestOpenMemoryAndUnknown(t *testing.T) {
	s, err := Open(context.Background(), &Config{Backend: BackendMemory})
	require.NoError(t, err)
	require.IsType(t, &MemoryStorage{}, s)

	_, err = Open(context.Background(), &Config{Backend: "ftp"})
	require.Error(t, err)
}
