package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"
)

// ErrObjectExists is returned by Upload when key is already taken.
var ErrObjectExists = errors.New("object already exists")

// Store is the blob store used for uploaded site assets.
type Store interface {
	// Upload writes r to key. An existing object is never replaced; Upload
	// fails with ErrObjectExists instead.
	Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	// URL resolves a durable, non-expiring download URL for key.
	URL(ctx context.Context, key string) (string, error)
	// List returns every key under prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
}

// AssetKey builds "<section>/<kind>-<millis>-<fileName>". Only the base name
// of fileName is kept.
func AssetKey(section, kind string, now time.Time, fileName string) string {
	base := path.Base(strings.ReplaceAll(fileName, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		base = "file"
	}
	return fmt.Sprintf("%s/%s-%d-%s", section, kind, now.UnixMilli(), base)
}

// publicURL joins a public base URL, bucket and key.
func publicURL(base, bucket, key string) string {
	return strings.TrimRight(base, "/") + "/" + bucket + "/" + escapeKey(key)
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
