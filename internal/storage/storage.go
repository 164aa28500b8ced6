package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"vqtlbrowser/internal/errors"
)

// StorageProvider represents different storage backends
type StorageProvider string

const (
	StorageLocal StorageProvider = "local"
	StorageS3    StorageProvider = "s3"
)

// BlobStore is the small object-store surface the loaders and the demo
// generator need. Local disk and S3 implement it with the same key layout.
type BlobStore interface {
	StoreBlob(ctx context.Context, key string, r io.Reader) error
	GetBlob(ctx context.Context, key string) (io.ReadCloser, error)
	BlobExists(ctx context.Context, key string) (bool, error)
	GetBlobMetadata(ctx context.Context, key string) (*BlobMetadata, error)
	Provider() StorageProvider
}

// BlobMetadata represents metadata for stored blobs
type BlobMetadata struct {
	Key          string          `json:"key"`
	Size         int64           `json:"size"`
	ContentType  string          `json:"content_type"`
	ETag         string          `json:"etag"`
	LastModified time.Time       `json:"last_modified"`
	Provider     StorageProvider `json:"provider"`
}

// LocalBlobStore implements BlobStore using local filesystem.
// An empty base path makes keys plain filesystem paths.
type LocalBlobStore struct {
	basePath string
}

// NewLocalBlobStore creates a new local blob store
func NewLocalBlobStore(basePath string) (*LocalBlobStore, error) {
	if basePath != "" {
		if err := os.MkdirAll(basePath, 0755); err != nil {
			return nil, fmt.Errorf("failed to create base directory: %w", err)
		}
	}

	return &LocalBlobStore{
		basePath: basePath,
	}, nil
}

// Provider returns the storage provider type
func (lbs *LocalBlobStore) Provider() StorageProvider {
	return StorageLocal
}

// StoreBlob writes r to the file for key, creating parent directories
func (lbs *LocalBlobStore) StoreBlob(ctx context.Context, key string, r io.Reader) error {
	filePath := lbs.keyToPath(key)

	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	f, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", filePath, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(filePath)
		return fmt.Errorf("failed to write file %s: %w", filePath, err)
	}
	return f.Close()
}

// GetBlob retrieves data from local filesystem
func (lbs *LocalBlobStore) GetBlob(ctx context.Context, key string) (io.ReadCloser, error) {
	filePath := lbs.keyToPath(key)

	file, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFound("blob " + key)
		}
		return nil, fmt.Errorf("failed to open file %s: %w", filePath, err)
	}

	return file, nil
}

// BlobExists checks if a blob exists
func (lbs *LocalBlobStore) BlobExists(ctx context.Context, key string) (bool, error) {
	_, err := os.Stat(lbs.keyToPath(key))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("failed to check file existence: %w", err)
}

// GetBlobMetadata returns metadata for a blob
func (lbs *LocalBlobStore) GetBlobMetadata(ctx context.Context, key string) (*BlobMetadata, error) {
	stat, err := os.Stat(lbs.keyToPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFound("blob " + key)
		}
		return nil, fmt.Errorf("failed to get file info: %w", err)
	}

	return &BlobMetadata{
		Key:          key,
		Size:         stat.Size(),
		ContentType:  contentTypeFor(key),
		LastModified: stat.ModTime(),
		Provider:     StorageLocal,
	}, nil
}

// keyToPath converts an S3-style key to a filesystem path
func (lbs *LocalBlobStore) keyToPath(key string) string {
	if lbs.basePath == "" {
		return filepath.FromSlash(key)
	}
	return filepath.Join(lbs.basePath, filepath.FromSlash(key))
}

func contentTypeFor(key string) string {
	switch {
	case strings.HasSuffix(key, ".gz"):
		return "application/gzip"
	case strings.HasSuffix(key, ".json"):
		return "application/json"
	case strings.HasSuffix(key, ".db"), strings.HasSuffix(key, ".sqlite"):
		return "application/vnd.sqlite3"
	default:
		return "application/octet-stream"
	}
}
