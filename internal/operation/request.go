package operation

import (
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// Kind identifies the upload slot a request was made through. Exactly one
// slot is active for any request.
type Kind string

const (
	KindPhoto Kind = "photo"
	KindVideo Kind = "video"
	KindLink  Kind = "link"
)

// FormField returns the multipart field name the remote service expects for
// file uploads of this kind.
func (k Kind) FormField() string {
	switch k {
	case KindPhoto:
		return "photoFile"
	case KindVideo:
		return "videoFile"
	default:
		return ""
	}
}

// mediaPrefix is the MIME type prefix a file must carry for the slot.
func (k Kind) mediaPrefix() string {
	switch k {
	case KindPhoto:
		return "image/"
	case KindVideo:
		return "video/"
	default:
		return ""
	}
}

// Blob is an in-memory file selected for upload.
type Blob struct {
	Name        string
	ContentType string
	Data        []byte
}

// ReadBlob loads the file at path. The content type is taken from the file
// extension and falls back to sniffing the first bytes.
func ReadBlob(path string) (*Blob, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", path, err)
	}

	contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	return &Blob{
		Name:        filepath.Base(path),
		ContentType: contentType,
		Data:        data,
	}, nil
}

// UploadRequest is a single user-supplied input. Build one with
// NewPhotoRequest, NewVideoRequest or NewLinkRequest.
type UploadRequest struct {
	Kind Kind

	// File is set for photo and video requests.
	File *Blob

	// Link is set for link requests.
	Link string
}

func NewPhotoRequest(file *Blob) *UploadRequest {
	return &UploadRequest{Kind: KindPhoto, File: file}
}

func NewVideoRequest(file *Blob) *UploadRequest {
	return &UploadRequest{Kind: KindVideo, File: file}
}

func NewLinkRequest(link string) *UploadRequest {
	return &UploadRequest{Kind: KindLink, Link: link}
}

// TrimmedLink returns the link with surrounding whitespace removed; this is
// the value sent to the remote service.
func (r *UploadRequest) TrimmedLink() string {
	return strings.TrimSpace(r.Link)
}

// Validate checks the request before any network call is made.
func (r *UploadRequest) Validate() error {
	if r == nil {
		return &ValidationError{Field: "request", Reason: "no input selected"}
	}

	switch r.Kind {
	case KindPhoto, KindVideo:
		if r.Link != "" {
			return &ValidationError{Field: string(r.Kind), Reason: "a file upload cannot also carry a link"}
		}
		if r.File == nil || len(r.File.Data) == 0 {
			return &ValidationError{Field: string(r.Kind), Reason: fmt.Sprintf("please select a %s", r.Kind)}
		}
		if !strings.HasPrefix(r.File.ContentType, r.Kind.mediaPrefix()) {
			article := "an image"
			if r.Kind == KindVideo {
				article = "a video"
			}
			return &ValidationError{
				Field:  string(r.Kind),
				Reason: fmt.Sprintf("please upload %s file, got %q", article, r.File.ContentType),
			}
		}
	case KindLink:
		if r.File != nil {
			return &ValidationError{Field: "link", Reason: "a link submission cannot also carry a file"}
		}
		if r.TrimmedLink() == "" {
			return &ValidationError{Field: "link", Reason: "please enter a YouTube link"}
		}
	default:
		return &ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown upload kind %q", r.Kind)}
	}

	return nil
}
