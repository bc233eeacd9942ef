package storage

import "fmt"

const (
	BackendMinIO  = "minio"
	BackendS3     = "s3"
	BackendMemory = "memory"
)

// Config selects and configures the blob store backend.
type Config struct {
	Backend   string
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
	// PublicBaseURL is the anonymous-read origin of the bucket. Asset URLs
	// are "<base>/<bucket>/<key>" and end up in the site document, so they
	// must not expire.
	PublicBaseURL string
}

// Validate checks the settings the selected backend needs.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendMinIO, BackendS3, "":
		if c.Bucket == "" {
			return fmt.Errorf("STORAGE_BUCKET is required for the %s backend", c.backend())
		}
		if c.PublicBaseURL == "" {
			return fmt.Errorf("STORAGE_PUBLIC_BASE_URL is required for the %s backend", c.backend())
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown storage backend %q", c.Backend)
	}
	return nil
}

func (c *Config) backend() string {
	if c.Backend == "" {
		return BackendMinIO
	}
	return c.Backend
}
