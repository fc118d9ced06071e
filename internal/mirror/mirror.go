// Package mirror copies committed artifacts to object storage.
package mirror

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	cwerrors "github.com/yairfalse/cfgwatch/internal/errors"
	"github.com/yairfalse/cfgwatch/internal/logger"
)

// Supported backends
const (
	BackendS3    = "s3"
	BackendGCS   = "gcs"
	BackendAzure = "azure"
)

// Uploader stores one object
type Uploader interface {
	Put(ctx context.Context, key string, data []byte) error
	Location(key string) string
}

// Config selects and configures a backend
type Config struct {
	Backend         string
	Bucket          string
	Prefix          string
	Region          string
	Account         string
	AccountKey      string
	CredentialsFile string
}

// Result is the outcome of mirroring one artifact
type Result struct {
	Path     string
	Location string
	Err      error
}

// NewUploader builds the uploader for config.Backend
func NewUploader(ctx context.Context, config Config) (Uploader, error) {
	if config.Bucket == "" {
		return nil, cwerrors.ConfigError("mirror.bucket", nil, fmt.Errorf("bucket is required"))
	}

	switch strings.ToLower(config.Backend) {
	case BackendS3:
		return NewS3Uploader(ctx, config.Bucket, config.Region)
	case BackendGCS:
		return NewGCSUploader(ctx, config.Bucket, config.CredentialsFile)
	case BackendAzure:
		return NewAzureUploader(config.Account, config.AccountKey, config.Bucket)
	default:
		return nil, cwerrors.ConfigError("mirror.backend", config.Backend,
			fmt.Errorf("unsupported backend, expected s3, gcs or azure"))
	}
}

// Mirror uploads artifacts under prefix/device/name. Failures are
// reported per artifact and never affect the local copy.
type Mirror struct {
	uploader Uploader
	prefix   string
	logger   logger.Logger
}

// New creates a Mirror
func New(uploader Uploader, prefix string, log logger.Logger) *Mirror {
	if log == nil {
		log = logger.Discard()
	}
	return &Mirror{
		uploader: uploader,
		prefix:   strings.Trim(prefix, "/"),
		logger:   log,
	}
}

// Key returns the object key for an artifact of deviceID
func (m *Mirror) Key(deviceID, artifactPath string) string {
	return path.Join(m.prefix, deviceID, filepath.Base(artifactPath))
}

// Upload mirrors every path and returns one result per path
func (m *Mirror) Upload(ctx context.Context, deviceID string, paths []string) []Result {
	results := make([]Result, 0, len(paths))
	for _, p := range paths {
		key := m.Key(deviceID, p)
		res := Result{Path: p, Location: m.uploader.Location(key)}

		data, err := os.ReadFile(p)
		if err != nil {
			res.Err = cwerrors.StorageError("read", p, err)
		} else if err := m.uploader.Put(ctx, key, data); err != nil {
			res.Err = cwerrors.StorageError("mirror", res.Location, err)
		}

		if res.Err != nil {
			m.logger.WithField("location", res.Location).Error("Mirror upload failed", res.Err)
		} else {
			m.logger.WithField("location", res.Location).Debug("Mirrored artifact")
		}
		results = append(results, res)
	}
	return results
}
