package drive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileSource is the part of the Drive service used by the downloader and the HTTP handler
type FileSource interface {
	ListFiles(ctx context.Context, folderID string) ([]*File, error)
	FindFolderByPath(ctx context.Context, path string) (string, error)
	Download(ctx context.Context, fileID string) (*DownloadedFile, error)
}

var _ FileSource = (*Service)(nil)

// DownloadOptions controls how files are pulled from Google Drive.
type DownloadOptions struct {
	FolderID    string
	DownloadDir string
}

// Downloader pulls the exports of a Drive folder to local disk.
type Downloader struct {
	source FileSource
}

// NewDownloader creates a new Downloader.
func NewDownloader(s FileSource) *Downloader {
	return &Downloader{source: s}
}

// IsTableFile reports whether a Drive file can be read as a table
func IsTableFile(f *File) bool {
	if f.MimeType == mimeSpreadsheet {
		return true
	}
	switch strings.ToLower(filepath.Ext(f.Name)) {
	case ".csv", ".xlsx":
		return true
	}
	return false
}

// DownloadFolder downloads all CSV, XLSX and native spreadsheet files from the given folder
// into DownloadDir and returns the local paths. Native spreadsheets are saved as .xlsx.
func (d *Downloader) DownloadFolder(ctx context.Context, opts DownloadOptions) ([]string, error) {
	if opts.DownloadDir == "" {
		return nil, fmt.Errorf("download dir is required")
	}
	if err := os.MkdirAll(opts.DownloadDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create download dir: %w", err)
	}

	files, err := d.source.ListFiles(ctx, opts.FolderID)
	if err != nil {
		return nil, err
	}

	var localPaths []string
	for _, f := range files {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if !IsTableFile(f) {
			continue
		}

		file, err := d.source.Download(ctx, f.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to download %s: %w", f.Name, err)
		}

		localPath := filepath.Join(opts.DownloadDir, filepath.Base(file.Name))
		if err := os.WriteFile(localPath, file.Data, 0644); err != nil {
			return nil, fmt.Errorf("failed to write local file %s: %w", localPath, err)
		}
		localPaths = append(localPaths, localPath)
	}

	return localPaths, nil
}
