package storage

import (
	"context"
	"fmt"
	"strings"
)

// ObjectInfo represents metadata for a remote file/object.
type ObjectInfo struct {
	Key  string
	Size int64
}

// ObjectStorage captures the minimal S3-compatible operations the service needs:
// reading mapping tables and exports, and archiving generated workbooks.
type ObjectStorage interface {
	ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error)
	GetObject(ctx context.Context, key string) ([]byte, error)
	DownloadObject(ctx context.Context, key string, destPath string) error
	UploadObject(ctx context.Context, key string, data []byte) error
}

const (
	BackendSevalla = "sevalla"
	BackendMinio   = "minio"

	defaultRegion = "us-east-1"
)

// Config selects and configures an object storage backend
type Config struct {
	Backend   string
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

func (c Config) validate(backend string, needKeys bool) error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return fmt.Errorf("%s endpoint must be provided", backend)
	}
	if needKeys && (c.AccessKey == "" || c.SecretKey == "") {
		return fmt.Errorf("%s credentials must be provided", backend)
	}
	if strings.TrimSpace(c.Bucket) == "" {
		return fmt.Errorf("%s bucket must be provided", backend)
	}
	return nil
}

func (c Config) region() string {
	if r := strings.TrimSpace(c.Region); r != "" {
		return r
	}
	return defaultRegion
}

// hostAndScheme splits the endpoint into host[:port] and whether TLS is used.
// An explicit scheme on the endpoint wins over UseSSL.
func (c Config) hostAndScheme() (string, bool) {
	endpoint := strings.TrimSpace(c.Endpoint)
	secure := c.UseSSL
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		endpoint, secure = strings.TrimPrefix(endpoint, "https://"), true
	case strings.HasPrefix(endpoint, "http://"):
		endpoint, secure = strings.TrimPrefix(endpoint, "http://"), false
	}
	endpoint = strings.TrimPrefix(endpoint, "//")
	return strings.TrimSuffix(endpoint, "/"), secure
}

func (c Config) endpointURL() string {
	host, secure := c.hostAndScheme()
	if secure {
		return "https://" + host
	}
	return "http://" + host
}

// New builds the configured backend
func New(cfg Config) (ObjectStorage, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", BackendSevalla:
		return NewSevallaClient(cfg)
	case BackendMinio:
		return NewMinioClient(cfg)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
