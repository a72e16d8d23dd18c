// Package artifacts keeps evidence of failed scenarios: full-page screenshots
// written to a local directory, an S3-compatible bucket, or both.
package artifacts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/kuitang/portal-smoke/internal/config"
)

// Store persists one artifact and returns where it can be found.
type Store interface {
	Save(ctx context.Context, key string, content []byte, contentType string) (string, error)
}

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Key builds a stable object key: <prefix>/<run>/<case>-<utc stamp>.png
func Key(prefix, runID, caseName string, at time.Time) string {
	parts := make([]string, 0, 3)
	if p := strings.Trim(prefix, "/"); p != "" {
		parts = append(parts, p)
	}
	if runID != "" {
		parts = append(parts, unsafeKeyChars.ReplaceAllString(runID, "_"))
	}
	name := unsafeKeyChars.ReplaceAllString(caseName, "_")
	if name == "" {
		name = "case"
	}
	parts = append(parts, fmt.Sprintf("%s-%s.png", name, at.UTC().Format("20060102T150405.000Z")))
	return strings.Join(parts, "/")
}

// DirStore writes artifacts below a local directory.
type DirStore struct {
	dir string
}

// NewDirStore creates the directory if needed.
func NewDirStore(dir string) (*DirStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("artifacts: create %s: %w", dir, err)
	}
	return &DirStore{dir: dir}, nil
}

// Save writes content to <dir>/<key>.
func (d *DirStore) Save(_ context.Context, key string, content []byte, _ string) (string, error) {
	path := filepath.Join(d.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("artifacts: create dir for %q: %w", key, err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", fmt.Errorf("artifacts: write %q: %w", key, err)
	}
	return path, nil
}

// Multi saves to every store and reports all locations, comma separated.
// It fails only when every store fails.
type Multi []Store

func (m Multi) Save(ctx context.Context, key string, content []byte, contentType string) (string, error) {
	var locations []string
	var errs []error
	for _, s := range m {
		loc, err := s.Save(ctx, key, content, contentType)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		locations = append(locations, loc)
	}
	if len(locations) == 0 && len(errs) > 0 {
		return "", errors.Join(errs...)
	}
	return strings.Join(locations, ","), nil
}

// FromConfig builds the configured store, or nil when artifacts are off.
func FromConfig(ctx context.Context, cfg *config.Config) (Store, error) {
	var stores Multi
	if cfg.ArtifactDir != "" {
		dir, err := NewDirStore(cfg.ArtifactDir)
		if err != nil {
			return nil, err
		}
		stores = append(stores, dir)
	}
	if cfg.ArtifactBucket != "" {
		s3Store, err := NewS3Store(ctx, S3Config{
			Endpoint:        cfg.AWSEndpointS3,
			Region:          cfg.AWSRegion,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
			BucketName:      cfg.ArtifactBucket,
			UsePathStyle:    cfg.AWSEndpointS3 != "",
		})
		if err != nil {
			return nil, err
		}
		stores = append(stores, s3Store)
	}
	switch len(stores) {
	case 0:
		return nil, nil
	case 1:
		return stores[0], nil
	default:
		return stores, nil
	}
}
