// Package carousel serves the rotating hero images, read once from a fixed
// blob folder at startup.
package carousel

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/gracefellowship/churchsite/backend/go-services/internal/storage"
	"github.com/gracefellowship/churchsite/backend/go-services/pkg/logger"
)

const DefaultFolder = "heroImages/"

type Image struct {
	Path string `json:"path"`
	URL  string `json:"url"`
}

// Load lists every blob under folder and resolves its URL. Images whose URL
// cannot be resolved are skipped.
func Load(ctx context.Context, store storage.Store, folder string) ([]Image, error) {
	if folder == "" {
		folder = DefaultFolder
	}
	if !strings.HasSuffix(folder, "/") {
		folder += "/"
	}
	keys, err := store.List(ctx, folder)
	if err != nil {
		return nil, fmt.Errorf("list hero images: %w", err)
	}
	sort.Strings(keys)
	images := make([]Image, 0, len(keys))
	for _, k := range keys {
		if strings.HasSuffix(k, "/") {
			continue
		}
		u, err := store.URL(ctx, k)
		if err != nil {
			logger.Warnf("hero image %s: %v", k, err)
			continue
		}
		images = append(images, Image{Path: k, URL: u})
	}
	logger.Infof("loaded %d hero images from %s", len(images), folder)
	return images, nil
}
