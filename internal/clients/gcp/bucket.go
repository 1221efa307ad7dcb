package gcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/chaintrack/chaintrack-backend/internal/logger"
	"github.com/chaintrack/chaintrack-backend/internal/types"
)

// ErrObjectNotFound is returned by GetObject when the key does not exist.
// Callers treat missing manifests as a skip, not a failure.
var ErrObjectNotFound = errors.New("object not found")

// ObjectInfo describes a stored object without its contents.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// ObjectStore is the snapshot bucket interface consumed by the scanner.
// The production implementation talks to GCS; tests substitute a fake.
type ObjectStore interface {
	ListCommonPrefixes(ctx context.Context, prefix string) ([]string, error)
	ListObjects(ctx context.Context, prefix string, limit int) ([]ObjectInfo, error)
	GetObject(ctx context.Context, key string) ([]byte, time.Time, error)
	BucketName() string
}

type bucketStore struct {
	log           *logger.Logger
	storageClient *storage.Client
	bucketName    string
}

// NewBucketStore builds an ObjectStore from the persisted storage config.
// CredentialsJSON and EndpointURL are optional; without credentials the
// client falls back to application default credentials or anonymous reads.
func NewBucketStore(ctx context.Context, log *logger.Logger, cfg *types.StorageConfig) (ObjectStore, error) {
	if cfg == nil || strings.TrimSpace(cfg.BucketName) == "" {
		return nil, fmt.Errorf("storage config missing bucket name")
	}

	opts := []option.ClientOption{option.WithScopes(storage.ScopeReadOnly)}
	if creds := strings.TrimSpace(cfg.CredentialsJSON); creds != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(creds)))
	} else {
		opts = append(opts, option.WithoutAuthentication())
	}
	if endpoint := strings.TrimSpace(cfg.EndpointURL); endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}

	stClient, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	return &bucketStore{
		log:           log.With("service", "BucketStore"),
		storageClient: stClient,
		bucketName:    strings.TrimSpace(cfg.BucketName),
	}, nil
}

func (bs *bucketStore) BucketName() string { return bs.bucketName }

// ListCommonPrefixes lists the "/"-delimited directory names directly
// under prefix, the way a filesystem ls would.
func (bs *bucketStore) ListCommonPrefixes(ctx context.Context, prefix string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	it := bs.storageClient.Bucket(bs.bucketName).Objects(ctx, &storage.Query{
		Prefix:    prefix,
		Delimiter: "/",
	})

	out := []string{}
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		if attrs.Prefix != "" {
			out = append(out, attrs.Prefix)
		}
	}
	return out, nil
}

func (bs *bucketStore) ListObjects(ctx context.Context, prefix string, limit int) ([]ObjectInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	it := bs.storageClient.Bucket(bs.bucketName).Objects(ctx, &storage.Query{Prefix: prefix})

	out := []ObjectInfo{}
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		out = append(out, ObjectInfo{
			Key:          attrs.Name,
			Size:         attrs.Size,
			LastModified: attrs.Updated,
		})
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (bs *bucketStore) GetObject(ctx context.Context, key string) ([]byte, time.Time, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	obj := bs.storageClient.Bucket(bs.bucketName).Object(key)
	r, err := obj.NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, time.Time{}, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return nil, time.Time{}, fmt.Errorf("failed to open reader for %q: %w", key, err)
	}
	defer r.Close()

	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to read %q: %w", key, err)
	}
	return raw, r.Attrs.LastModified, nil
}
