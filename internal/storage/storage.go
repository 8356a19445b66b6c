package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

const (
	// BackendFilesystem stores objects under a local directory.
	BackendFilesystem = "filesystem"
	// BackendS3 stores objects in an S3 bucket.
	BackendS3 = "s3"
	// BackendMemory keeps objects in process memory.
	BackendMemory = "memory"
)

var (
	// ErrObjectNotFound indicates the key does not exist.
	ErrObjectNotFound = errors.New("storage: object not found")
	// ErrInvalidKey indicates a key that is empty or escapes its namespace.
	ErrInvalidKey       = errors.New("storage: invalid key")
	errUnknownBackend   = errors.New("storage: unknown backend")
	errMissingBucket    = errors.New("storage: s3 bucket is required")
	errMissingDirectory = errors.New("storage: directory is required")
)

// Object is a stored blob.
type Object struct {
	Data        []byte
	ContentType string
}

// ObjectStore persists rendered previews and returns their public URL.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Get(ctx context.Context, key string) (Object, error)
}

// Config selects and configures a backend.
type Config struct {
	Backend       string
	Directory     string
	PublicBaseURL string
	Bucket        string
	Region        string
	Endpoint      string
}

// Open builds the configured object store.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (ObjectStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	var (
		store ObjectStore
		err   error
	)
	switch backend {
	case BackendFilesystem, "":
		backend = BackendFilesystem
		store, err = NewFilesystemStore(cfg.Directory, cfg.PublicBaseURL)
	case BackendS3:
		store, err = NewS3Store(ctx, S3Config{
			Bucket:        cfg.Bucket,
			Region:        cfg.Region,
			Endpoint:      cfg.Endpoint,
			PublicBaseURL: cfg.PublicBaseURL,
		})
	case BackendMemory:
		store = NewMemoryStore(cfg.PublicBaseURL)
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownBackend, cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	logger.Info("object storage ready",
		zap.String("backend", backend),
		zap.String("directory", cfg.Directory),
		zap.String("bucket", cfg.Bucket),
	)
	return store, nil
}

// NewObjectKey returns a unique, time-ordered key under prefix.
func NewObjectKey(prefix, extension string) string {
	name := strings.ToLower(ulid.Make().String())
	if extension != "" {
		name += "." + strings.TrimPrefix(extension, ".")
	}
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

// cleanKey rejects keys that are empty or climb out of the store.
func cleanKey(key string) (string, error) {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return "", ErrInvalidKey
	}
	cleaned := path.Clean("/" + trimmed)[1:]
	if cleaned == "" || cleaned != strings.TrimPrefix(trimmed, "/") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return cleaned, nil
}

func publicURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + key
}
