package storage

import (
	"context"
	"fmt"
)

// Open builds the Store selected by cfg.Backend.
func Open(ctx context.Context, cfg *Config) (Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case BackendMinIO, "":
		return NewMinIOStorage(cfg)
	case BackendS3:
		return NewS3Storage(ctx, cfg)
	case BackendMemory:
		return NewMemoryStorage(cfg.PublicBaseURL), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
