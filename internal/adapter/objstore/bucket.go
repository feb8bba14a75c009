// Package objstore adapts gocloud blob buckets to the zarr store
// interfaces. Bucket URLs follow the gocloud conventions:
//
//	s3://hrrrzarr?region=us-west-1
//	gs://my-mirror
//	file:///var/data/hrrr?metadata=skip
//	mem://
//
// The ?prefix= parameter scopes a bucket to a subtree.
package objstore

import (
	"context"
	"fmt"
	"io"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"
	"gocloud.dev/gcerrors"

	"github.com/couchcryptid/hrrr-zarr-analysis/internal/zarr"
)

// Bucket provides keyed object access backed by a gocloud blob bucket.
// It implements zarr.Store and zarr.WriteStore.
type Bucket struct {
	bucket *blob.Bucket
	url    string
}

// ObjectInfo describes one stored object.
type ObjectInfo struct {
	Key  string
	Size int64
}

// Open opens the bucket named by a gocloud URL.
func Open(ctx context.Context, rawURL string) (*Bucket, error) {
	bucket, err := blob.OpenBucket(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("opening bucket %s: %w", rawURL, err)
	}
	return &Bucket{bucket: bucket, url: rawURL}, nil
}

// URL returns the URL the bucket was opened with.
func (b *Bucket) URL() string { return b.url }

// Get reads the object stored under key. Missing keys report
// zarr.ErrNotFound.
func (b *Bucket) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := b.bucket.ReadAll(ctx, key)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, fmt.Errorf("%s: %w", key, zarr.ErrNotFound)
		}
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}

// Put writes data under key, replacing any existing object.
func (b *Bucket) Put(ctx context.Context, key string, data []byte) error {
	if err := b.bucket.WriteAll(ctx, key, data, nil); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// Size returns the byte size of the object under key. Missing keys
// report zarr.ErrNotFound.
func (b *Bucket) Size(ctx context.Context, key string) (int64, error) {
	attrs, err := b.bucket.Attributes(ctx, key)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return 0, fmt.Errorf("%s: %w", key, zarr.ErrNotFound)
		}
		return 0, fmt.Errorf("stat %s: %w", key, err)
	}
	return attrs.Size, nil
}

// List calls fn for every object whose key starts with prefix, in
// lexical key order. Returning an error from fn stops the walk.
func (b *Bucket) List(ctx context.Context, prefix string, fn func(ObjectInfo) error) error {
	iter := b.bucket.List(&blob.ListOptions{Prefix: prefix})
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("list %s: %w", prefix, err)
		}
		if obj.IsDir {
			continue
		}
		if err := fn(ObjectInfo{Key: obj.Key, Size: obj.Size}); err != nil {
			return err
		}
	}
}

// CheckReadiness reports whether the bucket answers requests. Any
// well-formed response qualifies, including "no such object".
func (b *Bucket) CheckReadiness(ctx context.Context) error {
	if _, err := b.bucket.Exists(ctx, ".readiness-probe"); err != nil {
		return fmt.Errorf("bucket %s not reachable: %w", b.url, err)
	}
	return nil
}

// Close releases the underlying bucket.
func (b *Bucket) Close() error {
	return b.bucket.Close()
}
