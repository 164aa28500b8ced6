package storage

import (
	"context"
	"io"
	"strings"

	"vqtlbrowser/internal/errors"
)

// Location is a parsed input location: a filesystem path or s3://bucket/key.
type Location struct {
	Provider StorageProvider
	Bucket   string
	Key      string
}

// ParseLocation splits raw into a provider, bucket and key
func ParseLocation(raw string) (Location, error) {
	if raw == "" {
		return Location{}, errors.InvalidInput("empty location")
	}
	if !strings.HasPrefix(raw, "s3://") {
		return Location{Provider: StorageLocal, Key: raw}, nil
	}
	rest := strings.TrimPrefix(raw, "s3://")
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return Location{}, errors.InvalidInput("s3 location must look like s3://bucket/key, got " + raw)
	}
	return Location{Provider: StorageS3, Bucket: bucket, Key: key}, nil
}

func (l Location) String() string {
	if l.Provider == StorageS3 {
		return "s3://" + l.Bucket + "/" + l.Key
	}
	return l.Key
}

// Opener resolves locations to blob stores. The zero value opens local paths
// only; set S3 to enable s3:// locations.
type Opener struct {
	S3 *S3Options
}

// Store returns the store and key that serve loc
func (o Opener) Store(ctx context.Context, loc Location) (BlobStore, string, error) {
	switch loc.Provider {
	case StorageS3:
		if o.S3 == nil {
			return nil, "", errors.ConfigInvalid("s3 locations are not enabled")
		}
		store, err := NewS3BlobStore(ctx, loc.Bucket, *o.S3)
		if err != nil {
			return nil, "", err
		}
		return store, loc.Key, nil
	default:
		store, err := NewLocalBlobStore("")
		if err != nil {
			return nil, "", err
		}
		return store, loc.Key, nil
	}
}

// Open parses raw and opens the blob for reading
func (o Opener) Open(ctx context.Context, raw string) (io.ReadCloser, error) {
	loc, err := ParseLocation(raw)
	if err != nil {
		return nil, err
	}
	store, key, err := o.Store(ctx, loc)
	if err != nil {
		return nil, err
	}
	return store.GetBlob(ctx, key)
}

// Stat parses raw and returns the metadata of the blob it names
func (o Opener) Stat(ctx context.Context, raw string) (*BlobMetadata, error) {
	loc, err := ParseLocation(raw)
	if err != nil {
		return nil, err
	}
	store, key, err := o.Store(ctx, loc)
	if err != nil {
		return nil, err
	}
	meta, err := store.GetBlobMetadata(ctx, key)
	if err != nil {
		return nil, err
	}
	meta.Key = loc.String()
	return meta, nil
}
