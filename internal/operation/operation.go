// Package operation provides the client-side model for async meme generation
// jobs. A Job moves through a linear lifecycle:
//
//	created → pending → succeeded | failed.
//
// A job that is rejected on submission never receives an ID and goes straight
// from created to failed. No transition leaves a terminal state.
package operation

import (
	"path"
	"strings"
)

// State represents the lifecycle state of a job.
type State string

const (
	StateCreated   State = "created"
	StatePending   State = "pending"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// Terminal reports whether no further status requests may be made for a job
// in this state.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// MediaKind classifies a generated artefact.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

// MediaRef references a generated artefact by URL.
type MediaRef struct {
	URL  string    `json:"url"`
	Kind MediaKind `json:"kind"`

	// Source is the reference the service reported when URL points at a
	// mirrored copy. It is empty for artefacts served by the service itself.
	Source string `json:"source,omitempty"`
}

// Mirrored reports whether the artefact is a copy held outside the service.
func (m MediaRef) Mirrored() bool {
	return m.Source != ""
}

// ServiceRef returns the reference the service knows the artefact by.
func (m MediaRef) ServiceRef() string {
	if m.Source != "" {
		return m.Source
	}
	return m.URL
}

// NewMediaRef classifies url by its file extension: .mp4 and .webm are
// videos, anything else is an image. Matching is case-insensitive and ignores
// any query string or fragment.
func NewMediaRef(url string) MediaRef {
	return MediaRef{URL: url, Kind: classify(url)}
}

// NewMediaRefs classifies each of urls, preserving order. A nil or empty input
// yields an empty, non-nil slice.
func NewMediaRefs(urls []string) []MediaRef {
	refs := make([]MediaRef, 0, len(urls))
	for _, u := range urls {
		refs = append(refs, NewMediaRef(u))
	}
	return refs
}

// Filename returns the last path element of the artefact URL.
func (m MediaRef) Filename() string {
	return path.Base(stripQuery(m.URL))
}

// ContentType returns the MIME type used when sharing or storing the
// artefact.
func (m MediaRef) ContentType() string {
	switch strings.ToLower(path.Ext(stripQuery(m.URL))) {
	case ".mp4":
		return "video/mp4"
	case ".webm":
		return "video/webm"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}

func classify(url string) MediaKind {
	switch strings.ToLower(path.Ext(stripQuery(url))) {
	case ".mp4", ".webm":
		return MediaVideo
	default:
		return MediaImage
	}
}

func stripQuery(url string) string {
	if i := strings.IndexAny(url, "?#"); i >= 0 {
		return url[:i]
	}
	return url
}

// Result is the terminal outcome of a job, or the outcome of a latest-results
// fetch.
type Result struct {
	Success   bool       `json:"success"`
	Artifacts []MediaRef `json:"artifacts"`

	// Error is the server-provided message when Success is false. It may be
	// empty; presentation layers supply their own fallback.
	Error string `json:"error,omitempty"`

	// Unreachable is set when the job failed because the service could not be
	// reached while polling, rather than because the job itself failed.
	Unreachable bool `json:"unreachable,omitempty"`
}

// Empty reports whether the job succeeded without producing any artefact.
// An empty result is not a failure.
func (r *Result) Empty() bool {
	return r != nil && r.Success && len(r.Artifacts) == 0
}

// Job represents a single async meme generation job.
type Job struct {
	ID    string `json:"id"`
	State State  `json:"state"`

	// Result is set once the job reaches a terminal state.
	Result *Result `json:"result,omitempty"`
}

// NewJob returns a pending job for the server-issued id.
func NewJob(id string) *Job {
	return &Job{ID: id, State: StatePending}
}

// Snapshot returns a copy of the job that shares no mutable state with j.
func (j *Job) Snapshot() Job {
	c := *j
	if j.Result != nil {
		r := *j.Result
		r.Artifacts = append([]MediaRef(nil), j.Result.Artifacts...)
		c.Result = &r
	}
	return c
}

func (j *Job) succeed(artifacts []MediaRef) {
	j.State = StateSucceeded
	j.Result = &Result{Success: true, Artifacts: artifacts}
}

func (j *Job) fail(msg string) {
	j.State = StateFailed
	j.Result = &Result{Success: false, Error: msg}
}

func (j *Job) failUnreachable() {
	j.State = StateFailed
	j.Result = &Result{Success: false, Error: msgConnectionFailed, Unreachable: true}
}
