package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ResolveObjectKey joins an optional prefix and a key, without doubling the prefix
// when the key already carries it.
func ResolveObjectKey(prefix, key string) string {
	if key == "" {
		return strings.TrimSpace(prefix)
	}
	if prefix == "" {
		return strings.TrimPrefix(key, "/")
	}

	prefixTrimmed := strings.TrimSuffix(strings.TrimSpace(prefix), "/")
	keyTrimmed := strings.TrimPrefix(strings.TrimSpace(key), "/")

	if strings.HasPrefix(keyTrimmed, prefixTrimmed) {
		return keyTrimmed
	}
	return fmt.Sprintf("%s/%s", prefixTrimmed, keyTrimmed)
}

// ObjectRelativePath strips prefix from key for use as a local path
func ObjectRelativePath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	prefixTrimmed := strings.TrimSuffix(strings.TrimSpace(prefix), "/")
	rel := strings.TrimPrefix(key, prefixTrimmed+"/")
	if rel == "" {
		return filepath.Base(key)
	}
	return rel
}

// DownloadPrefix downloads every object under prefix whose extension is in exts into destDir.
// It returns the sorted local paths.
func DownloadPrefix(ctx context.Context, client ObjectStorage, prefix, destDir string, exts ...string) ([]string, error) {
	objects, err := client.ListObjects(ctx, strings.TrimSpace(prefix))
	if err != nil {
		return nil, fmt.Errorf("failed to list objects for prefix %s: %w", prefix, err)
	}

	var localPaths []string
	for _, obj := range objects {
		if !hasExtension(obj.Key, exts) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		localPath := filepath.Join(destDir, ObjectRelativePath(prefix, obj.Key))
		if err := client.DownloadObject(ctx, obj.Key, localPath); err != nil {
			return nil, err
		}
		localPaths = append(localPaths, localPath)
	}

	if len(localPaths) == 0 {
		return nil, fmt.Errorf("no %s files found for prefix %s", strings.Join(exts, "/"), prefix)
	}
	sort.Strings(localPaths)
	return localPaths, nil
}

func hasExtension(key string, exts []string) bool {
	if len(exts) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(key))
	for _, e := range exts {
		if ext == strings.ToLower(e) {
			return true
		}
	}
	return false
}

func writeLocal(destPath string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("failed creating directory for %s: %w", destPath, err)
	}
	if err := os.WriteFile(destPath, data, 0o644); err != nil {
		return fmt.Errorf("failed writing %s: %w", destPath, err)
	}
	return nil
}

func contentTypeFor(key string) string {
	switch strings.ToLower(filepath.Ext(key)) {
	case ".csv":
		return "text/csv"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".json":
		return "application/json"
	}
	return "application/octet-stream"
}
