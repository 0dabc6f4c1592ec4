// Package storage keeps copies of generated memes. An Uploader persists one
// object and returns a URL it can be fetched from; a Mirror copies every
// artefact of a job through an Uploader.
package storage

import (
	"context"
	"io"
	"time"
)

// Uploader persists artefacts to a storage backend and returns a URL for
// retrieval.
type Uploader interface {
	Upload(ctx context.Context, req *UploadRequest) (*UploadResult, error)
}

type UploadRequest struct {
	// ObjectName is the slash-separated object path within the backend, e.g.
	// "memes/2026/10/17/<job id>/cat_meme.png".
	ObjectName string

	// Content is the data to be uploaded.
	Content io.Reader

	// ContentType is the MIME type of the content, e.g. "video/mp4".
	ContentType string
}

// UploadResult is the outcome of a successful upload.
type UploadResult struct {
	ObjectName string

	// URL is where the stored copy can be fetched from. For GCS it is a signed
	// URL; for local storage a file:// URL.
	URL string

	// ExpiresAt is when URL becomes invalid. Zero means it does not expire.
	ExpiresAt time.Time
}
