package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// DefaultURLTTL is how long a signed meme URL stays valid.
const DefaultURLTTL = time.Hour

// GCSOptions configures a GCSUploader.
type GCSOptions struct {
	Bucket string

	// URLTTL defaults to DefaultURLTTL.
	URLTTL time.Duration

	// ClientOptions are passed to the GCS client, e.g. to inject credentials.
	ClientOptions []option.ClientOption
}

// GCSUploader stores memes in a Google Cloud Storage bucket and hands out
// signed URLs for them.
type GCSUploader struct {
	client *storage.Client
	bucket string
	ttl    time.Duration
}

func NewGCSUploader(ctx context.Context, opts GCSOptions) (*GCSUploader, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("storage: GCS bucket name is required")
	}
	if opts.URLTTL <= 0 {
		opts.URLTTL = DefaultURLTTL
	}

	client, err := storage.NewClient(ctx, opts.ClientOptions...)
	if err != nil {
		return nil, fmt.Errorf("storage: failed to create GCS client: %w", err)
	}
	return &GCSUploader{client: client, bucket: opts.Bucket, ttl: opts.URLTTL}, nil
}

// Upload stores a meme and signs a GET URL for it. Browsers opening the URL
// are offered the meme's own filename for download.
func (u *GCSUploader) Upload(ctx context.Context, req *UploadRequest) (*UploadResult, error) {
	obj := u.client.Bucket(u.bucket).Object(req.ObjectName)

	w := obj.NewWriter(ctx)
	w.ContentType = req.ContentType
	w.ContentDisposition = fmt.Sprintf("inline; filename=%q", path.Base(req.ObjectName))
	w.CacheControl = fmt.Sprintf("private, max-age=%d", int(u.ttl.Seconds()))

	if _, err := io.Copy(w, req.Content); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("storage: write %q to bucket %q: %w", req.ObjectName, u.bucket, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("storage: finalise %q in bucket %q: %w", req.ObjectName, u.bucket, err)
	}

	expiresAt := time.Now().Add(u.ttl)
	url, err := u.client.Bucket(u.bucket).SignedURL(req.ObjectName, &storage.SignedURLOptions{
		Method:  "GET",
		Expires: expiresAt,
	})
	if err != nil {
		return nil, fmt.Errorf("storage: sign URL for %q: %w", req.ObjectName, err)
	}

	return &UploadResult{ObjectName: req.ObjectName, URL: url, ExpiresAt: expiresAt}, nil
}

// Close releases the GCS client.
func (u *GCSUploader) Close() error {
	return u.client.Close()
}
