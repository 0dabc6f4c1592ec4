package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// LocalUploader writes memes to a directory on the local filesystem. The URL
// returned is a file:// URL unless a public base URL is configured, and never
// expires.
type LocalUploader struct {
	baseDir   string
	publicURL string
}

// LocalOption configures a LocalUploader.
type LocalOption func(*LocalUploader)

// WithPublicURL makes Upload return baseURL/objectName instead of a file://
// URL, for when baseDir is served over HTTP.
func WithPublicURL(baseURL string) LocalOption {
	return func(u *LocalUploader) {
		u.publicURL = strings.TrimSuffix(baseURL, "/")
	}
}

// NewLocalUploader creates a LocalUploader that writes under baseDir. The
// directory is created if it does not already exist.
func NewLocalUploader(baseDir string, opts ...LocalOption) (*LocalUploader, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: failed to create local base directory %q: %w", baseDir, err)
	}
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("storage: failed to resolve absolute path for %q: %w", baseDir, err)
	}
	u := &LocalUploader{baseDir: abs}
	for _, opt := range opts {
		opt(u)
	}
	return u, nil
}

// Dir returns the absolute directory objects are written under.
func (u *LocalUploader) Dir() string {
	return u.baseDir
}

// Upload writes content to baseDir/objectName, creating any intermediate
// directories as needed. Object names may not escape baseDir.
func (u *LocalUploader) Upload(_ context.Context, req *UploadRequest) (*UploadResult, error) {
	dest := filepath.Join(u.baseDir, filepath.FromSlash(req.ObjectName))
	if rel, err := filepath.Rel(u.baseDir, dest); err != nil || strings.HasPrefix(rel, "..") {
		return nil, fmt.Errorf("storage: object name %q escapes %q", req.ObjectName, u.baseDir)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return nil, fmt.Errorf("storage: failed to create directory for %q: %w", req.ObjectName, err)
	}

	f, err := os.Create(dest)
	if err != nil {
		return nil, fmt.Errorf("storage: failed to create file %q: %w", dest, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, req.Content); err != nil {
		return nil, fmt.Errorf("storage: failed to write file %q: %w", dest, err)
	}

	if u.publicURL != "" {
		return &UploadResult{ObjectName: req.ObjectName, URL: u.publicURL + "/" + req.ObjectName}, nil
	}

	fileURL := &url.URL{Scheme: "file", Path: filepath.ToSlash(dest)}
	return &UploadResult{ObjectName: req.ObjectName, URL: fileURL.String()}, nil
}
