package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStorage struct {
	objects map[string][]byte
}

func (f *fakeStorage) ListObjects(_ context.Context, prefix string) ([]ObjectInfo, error) {
	var out []ObjectInfo
	for k, v := range f.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, ObjectInfo{Key: k, Size: int64(len(v))})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (f *fakeStorage) GetObject(_ context.Context, key string) ([]byte, error) {
	v, ok := f.objects[key]
	if !ok {
		return nil, errors.New("not found")
	}
	return v, nil
}

func (f *fakeStorage) DownloadObject(ctx context.Context, key, destPath string) error {
	v, err := f.GetObject(ctx, key)
	if err != nil {
		return err
	}
	return writeLocal(destPath, v)
}

func (f *fakeStorage) UploadObject(_ context.Context, key string, data []byte) error {
	f.objects[key] = data
	return nil
}

func TestResolveObjectKey(t *testing.T) {
	assert.Equal(t, "exports/2024/m.csv", ResolveObjectKey("exports", "2024/m.csv"))
	assert.Equal(t, "exports/2024/m.csv", ResolveObjectKey("exports/", "/exports/2024/m.csv"))
	assert.Equal(t, "m.csv", ResolveObjectKey("", "/m.csv"))
	assert.Equal(t, "exports", ResolveObjectKey(" exports ", ""))
}

func TestObjectRelativePath(t *testing.T) {
	assert.Equal(t, "2024/m.csv", ObjectRelativePath("exports/", "exports/2024/m.csv"))
	assert.Equal(t, "other/m.csv", ObjectRelativePath("exports", "other/m.csv"))
	assert.Equal(t, "m.csv", ObjectRelativePath("", "m.csv"))
}

func TestDownloadPrefix(t *testing.T) {
	store := &fakeStorage{objects: map[string][]byte{
		"exports/b.xlsx":       []byte("b"),
		"exports/a.csv":        []byte("a"),
		"exports/notes.txt":    []byte("n"),
		"exports/sub/c.CSV":    []byte("c"),
		"elsewhere/ignore.csv": []byte("x"),
	}}
	dir := t.TempDir()

	paths, err := DownloadPrefix(context.Background(), store, "exports", dir, ".csv", ".xlsx")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.csv"),
		filepath.Join(dir, "b.xlsx"),
		filepath.Join(dir, "sub", "c.CSV"),
	}, paths)

	data, err := os.ReadFile(filepath.Join(dir, "sub", "c.CSV"))
	require.NoError(t, err)
	assert.Equal(t, "c", string(data))

	_, err = DownloadPrefix(context.Background(), store, "missing", dir, ".csv")
	assert.Error(t, err)
}

func TestNewRejectsUnknownBackend(t *testing.T) {
	_, err := New(Config{Backend: "ftp", Endpoint: "x", Bucket: "b"})
	assert.Error(t, err)

	_, err = New(Config{Backend: BackendSevalla})
	assert.Error(t, err)

	_, err = New(Config{Backend: BackendMinio, Bucket: "b"})
	assert.Error(t, err)
}

func TestNewMinioClient(t *testing.T) {
	c, err := NewMinioClient(Config{
		Endpoint:  "https://minio.local:9000/",
		AccessKey: "key",
		SecretKey: "secret",
		Bucket:    "warenbestand",
	})
	require.NoError(t, err)
	assert.Equal(t, "warenbestand", c.bucket)
	assert.Equal(t, "minio.local:9000", c.client.EndpointURL().Host)
	assert.Equal(t, "https", c.client.EndpointURL().Scheme)
}

func TestEndpointNormalization(t *testing.T) {
	host, secure := Config{Endpoint: "http://localhost:9000/"}.hostAndScheme()
	assert.Equal(t, "localhost:9000", host)
	assert.False(t, secure)

	assert.Equal(t, "https://s3.sevalla.app", Config{Endpoint: "s3.sevalla.app", UseSSL: true}.endpointURL())
	assert.Equal(t, "http://s3.local", Config{Endpoint: "//s3.local"}.endpointURL())
	assert.Equal(t, "eu-central-1", Config{Region: " eu-central-1 "}.region())
	assert.Equal(t, defaultRegion, Config{}.region())

	err := Config{Endpoint: "x", Bucket: "b"}.validate(BackendSevalla, true)
	assert.ErrorContains(t, err, "credentials")
	assert.NoError(t, Config{Endpoint: "x", Bucket: "b"}.validate(BackendMinio, false))
}
