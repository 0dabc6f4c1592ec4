// Package view renders the upload and results pages. Rendering is a pure
// function of its input: FromResult and FromJob map domain values to a Page,
// and Render writes a Page as HTML.
package view

import (
	"embed"
	"errors"
	"html/template"
	"io"
	"time"

	"github.com/tomasbasham/memegen/internal/operation"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.New("").ParseFS(templateFS, "templates/*.html"))

// RefreshInterval is how often a pending results page reloads itself.
const RefreshInterval = operation.DefaultInterval

// State selects which variant of the results page is shown.
type State string

const (
	StatePending         State = "pending"
	StateResults         State = "results"
	StateEmpty           State = "empty"
	StateError           State = "error"
	StateConnectionError State = "connection_error"
)

const (
	headingEmpty           = "No memes found"
	headingError           = "Error"
	headingConnectionError = "Connection Error"

	messageEmpty           = "No memes were generated or found in the output folders."
	messageError           = "An error occurred while generating memes"
	messageConnectionError = "Failed to connect to the server. Please check if the server is running."
)

// Card is one artefact on the results page.
type Card struct {
	Index int

	// URL is where the browser loads the meme from.
	URL string

	// MemeFile is the reference the service reported, sent back when the
	// meme is re-captioned.
	MemeFile string

	// Mirrored is set when URL points at a copy rather than at the service.
	Mirrored bool

	Filename   string
	Video      bool
	SourceType string
}

// Page is everything the results template needs.
type Page struct {
	State   State
	Heading string
	Message string
	Cards   []Card

	// TaskID is set when the page tracks a job.
	TaskID string

	// RefreshMillis is non-zero for pending pages.
	RefreshMillis int64

	// Notice is an optional one-line status, e.g. after a caption was saved.
	Notice string
}

// Pending returns the page shown while taskID is not ready.
func Pending(taskID string) Page {
	return Page{
		State:         StatePending,
		Heading:       "Generating memes",
		Message:       "This page refreshes until your memes are ready.",
		TaskID:        taskID,
		RefreshMillis: int64(RefreshInterval / time.Millisecond),
	}
}

// FromResult maps a result, or the error that prevented one, to a page. A
// TransportError maps to the connection error page; any other error to the
// generic error page.
func FromResult(res *operation.Result, err error) Page {
	var transportErr *operation.TransportError
	switch {
	case errors.As(err, &transportErr):
		return Page{State: StateConnectionError, Heading: headingConnectionError, Message: messageConnectionError}
	case err != nil:
		return Page{State: StateError, Heading: headingError, Message: err.Error()}
	case res == nil:
		return Page{State: StateError, Heading: headingError, Message: messageError}
	case res.Unreachable:
		return Page{State: StateConnectionError, Heading: headingConnectionError, Message: messageConnectionError}
	case !res.Success:
		msg := res.Error
		if msg == "" {
			msg = messageError
		}
		return Page{State: StateError, Heading: headingError, Message: msg}
	case res.Empty():
		return Page{State: StateEmpty, Heading: headingEmpty, Message: messageEmpty}
	}

	cards := make([]Card, 0, len(res.Artifacts))
	for i, ref := range res.Artifacts {
		cards = append(cards, newCard(i+1, ref))
	}
	return Page{State: StateResults, Heading: "Your Memes", Cards: cards}
}

// FromJob maps a tracked job to a page.
func FromJob(job operation.Job) Page {
	if !job.State.Terminal() {
		return Pending(job.ID)
	}
	p := FromResult(job.Result, nil)
	p.TaskID = job.ID
	return p
}

func newCard(index int, ref operation.MediaRef) Card {
	c := Card{
		Index:    index,
		URL:      ref.URL,
		MemeFile: ref.ServiceRef(),
		Mirrored: ref.Mirrored(),
		Filename: ref.Filename(),
		Video:    ref.Kind == operation.MediaVideo,
	}
	if c.Video {
		c.SourceType = ref.ContentType()
	}
	return c
}

// ResolveURLs rewrites the URL of every card served by the service with
// resolve. Mirrored copies and MemeFile are left untouched.
func (p *Page) ResolveURLs(resolve func(string) string) {
	for i := range p.Cards {
		if !p.Cards[i].Mirrored {
			p.Cards[i].URL = resolve(p.Cards[i].URL)
		}
	}
}

// Render writes the results page.
func Render(w io.Writer, p Page) error {
	return templates.ExecuteTemplate(w, "results.html", p)
}

// UploadPage is everything the upload template needs.
type UploadPage struct {
	// Error is a validation or submission message from the last attempt.
	Error string
}

// RenderUpload writes the upload form.
func RenderUpload(w io.Writer, p UploadPage) error {
	return templates.ExecuteTemplate(w, "upload.html", p)
}
