package assets

import (
	"context"
	"sort"
	"time"
)

// HashRecord maps a content digest to an already uploaded asset.
type HashRecord struct {
	Hash        string    `bson:"hash" json:"hash"`
	URL         string    `bson:"url" json:"url"`
	FileName    string    `bson:"fileName" json:"fileName"`
	UploadedAt  time.Time `bson:"uploadedAt" json:"uploadedAt"`
	StoragePath string    `bson:"storagePath,omitempty" json:"storagePath,omitempty"`
}

// Repository persists hash records. Records are insert-only.
type Repository interface {
	// FindByHash returns every record for hash, earliest upload first.
	FindByHash(ctx context.Context, hash string) ([]HashRecord, error)
	Insert(ctx context.Context, rec HashRecord) error
}

func sortByUpload(recs []HashRecord) {
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].UploadedAt.Before(recs[j].UploadedAt) })
}
