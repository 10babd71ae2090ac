package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/andresuchdata/warenbestand/internal/cache"
	"github.com/andresuchdata/warenbestand/internal/domain"
	"github.com/andresuchdata/warenbestand/internal/drive"
	"github.com/andresuchdata/warenbestand/internal/ingest"
	"github.com/andresuchdata/warenbestand/internal/pipeline/coverage"
	"github.com/andresuchdata/warenbestand/internal/storage"
	"github.com/rs/zerolog/log"
)

const (
	SchemeFile   = "file"
	SchemeHTTP   = "http"
	SchemeHTTPS  = "https"
	SchemeS3     = "s3"
	SchemeGDrive = "gdrive"

	defaultMaxDownloadBytes = 64 << 20
)

// DriveSource is the part of the Drive service needed to fetch a single file
type DriveSource interface {
	Download(ctx context.Context, fileID string) (*drive.DownloadedFile, error)
}

// Document is a fetched table file
type Document struct {
	Name string
	Data []byte
}

// Resolver fetches tables addressed by URI:
//
//	/path/mapping.xlsx, file:///path/mapping.csv
//	https://docs.google.com/.../pub?output=csv
//	s3://mappings/mapping.xlsx   (key relative to the configured prefix)
//	gdrive://<fileId>
type Resolver struct {
	objects      storage.ObjectStorage
	objectPrefix string
	drive        DriveSource
	httpClient   *http.Client
	cache        cache.MappingCache
	maxDownload  int64
}

type Option func(*Resolver)

// WithObjectStorage enables s3:// URIs
func WithObjectStorage(objects storage.ObjectStorage, prefix string) Option {
	return func(r *Resolver) {
		r.objects = objects
		r.objectPrefix = prefix
	}
}

// WithDrive enables gdrive:// URIs
func WithDrive(d DriveSource) Option {
	return func(r *Resolver) { r.drive = d }
}

func WithHTTPClient(c *http.Client) Option {
	return func(r *Resolver) { r.httpClient = c }
}

// WithMaxDownloadBytes caps the size of an HTTP download
func WithMaxDownloadBytes(n int64) Option {
	return func(r *Resolver) { r.maxDownload = n }
}

// WithMappingCache caches parsed mapping tables
func WithMappingCache(c cache.MappingCache) Option {
	return func(r *Resolver) { r.cache = c }
}

func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		cache:       cache.NewNoopMappingCache(),
		maxDownload: defaultMaxDownloadBytes,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Fetch downloads the raw bytes behind uri
func (r *Resolver) Fetch(ctx context.Context, uri string) (*Document, error) {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return nil, fmt.Errorf("%w: empty source uri", domain.ErrSourceNotConfigured)
	}

	scheme, rest := splitScheme(uri)
	switch scheme {
	case "", SchemeFile:
		return r.fetchFile(rest)
	case SchemeHTTP, SchemeHTTPS:
		return r.fetchHTTP(ctx, uri)
	case SchemeS3:
		return r.fetchObject(ctx, rest)
	case SchemeGDrive:
		return r.fetchDrive(ctx, rest)
	default:
		return nil, fmt.Errorf("%w: scheme %q", domain.ErrUnsupportedFormat, scheme)
	}
}

// LoadTable fetches and parses a CSV or XLSX table
func (r *Resolver) LoadTable(ctx context.Context, uri string) ([][]string, error) {
	doc, err := r.Fetch(ctx, uri)
	if err != nil {
		return nil, err
	}
	return ingest.ReadTable(doc.Name, doc.Data)
}

// LoadMapping returns the mapping entries behind uri, going through the cache
func (r *Resolver) LoadMapping(ctx context.Context, uri string) ([]domain.MappingEntry, error) {
	if entries, ok, err := r.cache.Get(ctx, uri); err != nil {
		log.Warn().Err(err).Str("uri", uri).Msg("mapping cache read failed")
	} else if ok {
		log.Debug().Str("uri", uri).Int("entries", len(entries)).Msg("mapping cache hit")
		return entries, nil
	}

	table, err := r.LoadTable(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("load mapping %s: %w", uri, err)
	}
	entries, err := coverage.ParseMappingTable(table)
	if err != nil {
		return nil, fmt.Errorf("load mapping %s: %w", uri, err)
	}

	if err := r.cache.Set(ctx, uri, entries); err != nil {
		log.Warn().Err(err).Str("uri", uri).Msg("mapping cache write failed")
	}
	return entries, nil
}

// InvalidateMappings drops every cached mapping table so the next load fetches the source again
func (r *Resolver) InvalidateMappings(ctx context.Context) error {
	if err := r.cache.InvalidateAll(ctx); err != nil {
		return fmt.Errorf("invalidate mapping cache: %w", err)
	}
	return nil
}

func (r *Resolver) fetchFile(p string) (*Document, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", p, err)
	}
	return &Document{Name: filepath.Base(p), Data: data}, nil
}

func (r *Resolver) fetchHTTP(ctx context.Context, uri string) (*Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("build request %s: %w", uri, err)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", uri, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch %s: unexpected status %s", uri, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, r.maxDownload+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", uri, err)
	}
	if int64(len(data)) > r.maxDownload {
		return nil, fmt.Errorf("fetch %s: response exceeds %d bytes", uri, r.maxDownload)
	}

	name := "download"
	if u, err := url.Parse(uri); err == nil {
		if base := path.Base(u.Path); base != "" && base != "/" && base != "." {
			name = base
		}
	}
	return &Document{Name: name, Data: data}, nil
}

func (r *Resolver) fetchObject(ctx context.Context, key string) (*Document, error) {
	if r.objects == nil {
		return nil, fmt.Errorf("%w: object storage", domain.ErrSourceNotConfigured)
	}
	fullKey := storage.ResolveObjectKey(r.objectPrefix, key)
	data, err := r.objects.GetObject(ctx, fullKey)
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", fullKey, err)
	}
	return &Document{Name: path.Base(fullKey), Data: data}, nil
}

func (r *Resolver) fetchDrive(ctx context.Context, fileID string) (*Document, error) {
	if r.drive == nil {
		return nil, fmt.Errorf("%w: google drive", domain.ErrSourceNotConfigured)
	}
	fileID = strings.Trim(fileID, "/")
	if fileID == "" {
		return nil, fmt.Errorf("gdrive uri has no file id")
	}
	f, err := r.drive.Download(ctx, fileID)
	if err != nil {
		return nil, err
	}
	return &Document{Name: f.Name, Data: f.Data}, nil
}

// splitScheme separates "scheme://rest". Windows drive letters are not treated as schemes.
func splitScheme(uri string) (string, string) {
	i := strings.Index(uri, "://")
	if i <= 1 {
		return "", uri
	}
	return strings.ToLower(uri[:i]), uri[i+3:]
}
