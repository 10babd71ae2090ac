package storage

import (
	"context"
	"fmt"
	"os"

	"github.com/chartmuseum/storage"
)

// SevallaClient stores objects in a Sevalla (S3-compatible) bucket through
// chartmuseum's Amazon backend. The backend API has no context support, so
// ctx is only checked before each call.
type SevallaClient struct {
	backend storage.Backend
	bucket  string
}

// NewSevallaClient builds a SevallaClient. The Amazon backend resolves
// credentials from the AWS environment, which is populated from cfg.
func NewSevallaClient(cfg Config) (*SevallaClient, error) {
	if err := cfg.validate(BackendSevalla, true); err != nil {
		return nil, err
	}

	region := cfg.region()
	for k, v := range map[string]string{
		"AWS_ACCESS_KEY_ID":     cfg.AccessKey,
		"AWS_SECRET_ACCESS_KEY": cfg.SecretKey,
		"AWS_REGION":            region,
		"AWS_DEFAULT_REGION":    region,
	} {
		if err := os.Setenv(k, v); err != nil {
			return nil, fmt.Errorf("set %s: %w", k, err)
		}
	}

	forcePathStyle := true
	backend := storage.NewAmazonS3BackendWithOptions(cfg.Bucket, "", region, cfg.endpointURL(), "",
		&storage.AmazonS3Options{S3ForcePathStyle: &forcePathStyle})

	return &SevallaClient{backend: backend, bucket: cfg.Bucket}, nil
}

func (c *SevallaClient) ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	objects, err := c.backend.ListObjects(prefix)
	if err != nil {
		return nil, fmt.Errorf("list %s/%s: %w", c.bucket, prefix, err)
	}
	infos := make([]ObjectInfo, len(objects))
	for i, o := range objects {
		infos[i] = ObjectInfo{Key: o.Path, Size: int64(len(o.Content))}
	}
	return infos, nil
}

func (c *SevallaClient) GetObject(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	object, err := c.backend.GetObject(key)
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", c.bucket, key, err)
	}
	return object.Content, nil
}

func (c *SevallaClient) DownloadObject(ctx context.Context, key, destPath string) error {
	data, err := c.GetObject(ctx, key)
	if err != nil {
		return err
	}
	return writeLocal(destPath, data)
}

func (c *SevallaClient) UploadObject(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.backend.PutObject(key, data); err != nil {
		return fmt.Errorf("put %s/%s: %w", c.bucket, key, err)
	}
	return nil
}

var _ ObjectStorage = (*SevallaClient)(nil)
