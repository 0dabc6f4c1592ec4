package server

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/tomasbasham/memegen/internal/operation"
)

// requestFromForm builds the single upload request a form selects. Selecting
// more than one slot, or none, is a validation error.
func requestFromForm(r *http.Request) (*operation.UploadRequest, error) {
	if err := r.ParseMultipartForm(32 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return nil, &operation.ValidationError{Field: "form", Reason: err.Error()}
	}

	var selected []*operation.UploadRequest

	for _, kind := range []operation.Kind{operation.KindPhoto, operation.KindVideo} {
		blob, err := formBlob(r, kind.FormField())
		if err != nil {
			return nil, err
		}
		if blob == nil {
			continue
		}
		if kind == operation.KindPhoto {
			selected = append(selected, operation.NewPhotoRequest(blob))
		} else {
			selected = append(selected, operation.NewVideoRequest(blob))
		}
	}

	if link := strings.TrimSpace(r.FormValue("youtubeLink")); link != "" {
		selected = append(selected, operation.NewLinkRequest(link))
	}

	switch len(selected) {
	case 0:
		return nil, &operation.ValidationError{Field: "form", Reason: "select a photo, a video or a YouTube link"}
	case 1:
		return selected[0], nil
	default:
		return nil, &operation.ValidationError{Field: "form", Reason: "select only one of photo, video or YouTube link"}
	}
}

// formBlob reads the file in field, or returns nil when none was chosen.
func formBlob(r *http.Request, field string) (*operation.Blob, error) {
	f, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, nil
	}
	if err != nil {
		return nil, &operation.ValidationError{Field: field, Reason: err.Error()}
	}
	defer f.Close()

	if header.Filename == "" && header.Size == 0 {
		return nil, nil
	}

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", field, err)
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || strings.HasPrefix(contentType, "application/octet-stream") {
		if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(header.Filename))); byExt != "" {
			contentType = byExt
		}
	}

	return &operation.Blob{
		Name:        header.Filename,
		ContentType: contentType,
		Data:        data,
	}, nil
}
