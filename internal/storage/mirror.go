package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tomasbasham/memegen/internal/operation"
)

// Fetcher opens a generated artefact by URL.
type Fetcher interface {
	Download(ctx context.Context, url string) (io.ReadCloser, string, error)
}

// Mirror copies artefacts from the meme service into an Uploader.
type Mirror struct {
	Fetcher  Fetcher
	Uploader Uploader
}

var _ operation.Mirror = (*Mirror)(nil)

// Copy downloads each artefact from the service and uploads it under
// memes/YYYY/MM/DD/<jobID>/<NN>_<filename>, NN being its 1-based position.
// The returned references point at the copies, keep the order and kind of
// artifacts, and record the service reference in Source. An empty jobID is replaced
// by a random one so unrelated copies never collide.
func (m *Mirror) Copy(ctx context.Context, jobID string, artifacts []operation.MediaRef) ([]operation.MediaRef, error) {
	if jobID == "" {
		jobID = uuid.New().String()
	}

	copies := make([]operation.MediaRef, 0, len(artifacts))
	for i, ref := range artifacts {
		name := fmt.Sprintf("%02d_%s", i+1, ref.Filename())
		stored, err := m.copyOne(ctx, ObjectPath(jobID, name), ref)
		if err != nil {
			return nil, fmt.Errorf("artefact %d: %w", i+1, err)
		}
		copies = append(copies, operation.MediaRef{URL: stored.URL, Kind: ref.Kind, Source: ref.ServiceRef()})
	}
	return copies, nil
}

func (m *Mirror) copyOne(ctx context.Context, objectName string, ref operation.MediaRef) (*UploadResult, error) {
	body, contentType, err := m.Fetcher.Download(ctx, ref.ServiceRef())
	if err != nil {
		return nil, err
	}
	defer body.Close()

	if contentType == "" || strings.HasPrefix(contentType, "application/octet-stream") {
		contentType = ref.ContentType()
	}

	return m.Uploader.Upload(ctx, &UploadRequest{
		ObjectName:  objectName,
		Content:     body,
		ContentType: contentType,
	})
}

// ObjectPath returns the object name a job's artefact is stored under.
func ObjectPath(jobID, filename string) string {
	date := time.Now().UTC().Format("2006/01/02")
	return path.Join("memes", date, jobID, path.Base(filename))
}
