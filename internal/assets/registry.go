// Package assets is the duplicate registry: a content digest -> URL mapping
// consulted before every upload.
package assets

import (
	"context"
	"time"

	"github.com/gracefellowship/churchsite/backend/go-services/pkg/logger"
	"github.com/gracefellowship/churchsite/backend/go-services/pkg/metrics"
)

// Registry is the client used by uploaders. Backend failures never surface:
// lookups fail open ("not found") and record writes are logged and dropped.
type Registry struct {
	repo Repository
	now  func() time.Time
}

func NewRegistry(repo Repository) *Registry {
	return &Registry{repo: repo, now: time.Now}
}

// FindByHash returns the URL of the earliest record for digest.
func (r *Registry) FindByHash(ctx context.Context, digest string) (string, bool) {
	recs, err := r.repo.FindByHash(ctx, digest)
	if err != nil {
		metrics.HashRecordFailures.Inc()
		logger.Warnf("duplicate check failed for %s, treating as new: %v", digest, err)
		return "", false
	}
	if len(recs) == 0 {
		return "", false
	}
	sortByUpload(recs)
	return recs[0].URL, true
}

// Record stores a new digest -> url mapping. Not idempotent: two racing
// uploads of the same new content may both insert.
func (r *Registry) Record(ctx context.Context, digest, url, fileName, storagePath string) {
	rec := HashRecord{
		Hash:        digest,
		URL:         url,
		FileName:    fileName,
		UploadedAt:  r.now().UTC(),
		StoragePath: storagePath,
	}
	if err := r.repo.Insert(ctx, rec); err != nil {
		metrics.HashRecordFailures.Inc()
		logger.Warnf("failed to record hash %s for %s: %v", digest, fileName, err)
	}
}
