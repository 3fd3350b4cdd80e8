// Package minio provides a MinIO implementation of filestore.Store.
//
// Usage:
//
//	store, err := minio.New(ctx, cfg)
//	if err != nil { ... }
//	defer store.Close()
//
//	err = store.Put(ctx, key, data, "application/json")
package minio

import (
	"bytes"
	"context"
	"io"
	"sort"

	"github.com/koustreak/pgdescribe/internal/errs"
	"github.com/koustreak/pgdescribe/internal/filestore"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Driver is a MinIO implementation of filestore.Store over one bucket.
// It is safe for concurrent use by multiple goroutines.
type Driver struct {
	client *miniogo.Client
	bucket string
}

// New connects to MinIO using the provided Config and returns a Driver.
// The bucket is created when it does not exist yet.
func New(ctx context.Context, cfg *filestore.Config) (*Driver, error) {
	if cfg.Bucket == "" {
		return nil, errs.New(errs.ErrKindInvalidInput, "minio store needs a bucket")
	}

	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "failed to create minio client", err)
	}

	d := &Driver{client: client, bucket: cfg.Bucket}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, mapError(err, "failed to check bucket")
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, miniogo.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, mapError(err, "failed to create bucket")
		}
	}

	return d, nil
}

// --- filestore.Store implementation ---

// Ping verifies the MinIO server is reachable and the bucket exists.
func (d *Driver) Ping(ctx context.Context) error {
	exists, err := d.client.BucketExists(ctx, d.bucket)
	if err != nil {
		return mapError(err, "ping failed")
	}
	if !exists {
		return errs.Newf(errs.ErrKindNotFound, "bucket %q does not exist", d.bucket)
	}
	return nil
}

// Close is a no-op for MinIO: the SDK client holds no persistent connections.
func (d *Driver) Close() error {
	return nil
}

// Get downloads the object at key.
func (d *Driver) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := d.client.GetObject(ctx, d.bucket, key, miniogo.GetObjectOptions{})
	if err != nil {
		return nil, mapError(err, "failed to get object")
	}
	defer obj.Close()

	// GetObject is lazy; a missing key only shows up on the first read.
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, mapError(err, "failed to read object "+key)
	}
	return data, nil
}

// Put uploads data to key.
func (d *Driver) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := d.client.PutObject(ctx, d.bucket, key, bytes.NewReader(data), int64(len(data)),
		miniogo.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return mapError(err, "failed to put object "+key)
	}
	return nil
}

// Stat returns metadata for the object at key without downloading its content.
func (d *Driver) Stat(ctx context.Context, key string) (*filestore.ObjectInfo, error) {
	stat, err := d.client.StatObject(ctx, d.bucket, key, miniogo.StatObjectOptions{})
	if err != nil {
		return nil, mapError(err, "failed to stat object")
	}

	return &filestore.ObjectInfo{
		Key:          stat.Key,
		Size:         stat.Size,
		ContentType:  stat.ContentType,
		LastModified: stat.LastModified,
	}, nil
}

// List returns the objects whose key starts with prefix.
func (d *Driver) List(ctx context.Context, prefix string) ([]filestore.ObjectInfo, error) {
	listOpts := miniogo.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}

	results := make([]filestore.ObjectInfo, 0)
	for obj := range d.client.ListObjects(ctx, d.bucket, listOpts) {
		if obj.Err != nil {
			return nil, mapError(obj.Err, "failed to list objects")
		}
		results = append(results, filestore.ObjectInfo{
			Key:          obj.Key,
			Size:         obj.Size,
			ContentType:  obj.ContentType,
			LastModified: obj.LastModified,
		})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Key < results[j].Key })
	return results, nil
}

var _ filestore.Store = (*Driver)(nil)
