// Package server provides the browser front end for the meme generation
// service.
//
// Endpoints:
//
//	GET  /                  upload form (photo, video or YouTube link)
//	POST /generate          submit the form; redirects to the results page
//	GET  /results           results page; polls ?task_id=, else lists the latest memes
//	POST /caption           re-caption a generated meme
//	GET  /api/jobs/{id}     tracked job as JSON
//	GET  /files/*           locally mirrored memes, when configured
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
	"unicode"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/tomasbasham/memegen/internal/operation"
	"github.com/tomasbasham/memegen/internal/view"
)

const (
	maxUploadBytes = 512 << 20
	maxTaskIDLen   = 128
)

// Options holds the optional dependencies of a Server.
type Options struct {
	// Mirror copies the memes of finished jobs before they are shown.
	Mirror operation.Mirror

	// FilesDir is served under /files/ when set.
	FilesDir string

	// ResolveURL maps artefact references reported by the service to URLs a
	// browser can load. Mirrored copies are shown as stored.
	ResolveURL func(string) string

	Logger zerolog.Logger
}

// Server holds the dependencies shared across HTTP handlers.
type Server struct {
	controller *operation.Controller
	store      operation.Store
	mirror     operation.Mirror
	resolve    func(string) string
	logger     zerolog.Logger
	router     chi.Router

	// baseCtx bounds every poll worker. Workers must outlive the request that
	// started them, so they never use the request context.
	baseCtx context.Context
}

// New creates a Server. Poll workers started by the server stop when ctx is
// cancelled.
func New(ctx context.Context, controller *operation.Controller, store operation.Store, opts Options) *Server {
	s := &Server{
		controller: controller,
		store:      store,
		mirror:     opts.Mirror,
		resolve:    opts.ResolveURL,
		logger:     opts.Logger,
		baseCtx:    ctx,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(s.logger))

	r.Get("/", s.handleIndex)
	r.Post("/generate", s.handleGenerate)
	r.Get("/results", s.handleResults)
	r.Post("/caption", s.handleCaption)
	r.Get("/api/jobs/{id}", s.handleGetJob)

	if opts.FilesDir != "" {
		r.Handle("/files/*", http.StripPrefix("/files/", http.FileServer(http.Dir(opts.FilesDir))))
	}

	s.router = r
	return s
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe starts the HTTP server on the given address and shuts it
// down gracefully when ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  2 * time.Minute,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.renderUpload(w, http.StatusOK, "")
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	req, err := requestFromForm(r)
	if err != nil {
		s.renderUpload(w, http.StatusBadRequest, err.Error())
		return
	}

	job, err := s.controller.Submit(r.Context(), req)
	if err != nil {
		status := http.StatusBadGateway
		var validationErr *operation.ValidationError
		if errors.As(err, &validationErr) {
			status = http.StatusBadRequest
		}
		s.renderUpload(w, status, err.Error())
		return
	}

	if _, err := s.track(job.ID); err != nil {
		// The job runs remotely; the results page starts tracking it once
		// there is room.
		s.logger.Warn().Err(err).Str("job_id", job.ID).Msg("job submitted but not tracked")
	}
	http.Redirect(w, r, resultsURL(job.ID, ""), http.StatusSeeOther)
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	// The "type" parameter is sent by older upload pages; it carries no
	// meaning and is ignored.
	taskID := r.URL.Query().Get("task_id")

	var page view.Page
	switch {
	case taskID == "":
		res, err := s.controller.FetchLatest(r.Context())
		page = view.FromResult(res, err)
	case !validTaskID(taskID):
		s.renderResults(w, http.StatusBadRequest, view.FromResult(nil, &operation.ValidationError{Field: "task_id", Reason: "malformed task id"}))
		return
	default:
		tracked, err := s.track(taskID)
		if err != nil {
			s.renderResults(w, http.StatusServiceUnavailable, view.FromResult(nil, err))
			return
		}
		page = view.FromJob(tracked.Job)
	}

	if r.URL.Query().Get("captioned") != "" {
		page.Notice = "Custom caption submitted!"
	}
	s.renderResults(w, http.StatusOK, page)
}

func (s *Server) handleCaption(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.renderResults(w, http.StatusBadRequest, view.FromResult(nil, err))
		return
	}

	err := s.controller.CustomCaption(r.Context(), r.PostForm.Get("meme_file"), r.PostForm.Get("caption"))
	if err != nil {
		status := http.StatusBadGateway
		var validationErr *operation.ValidationError
		if errors.As(err, &validationErr) {
			status = http.StatusBadRequest
		}
		s.renderResults(w, status, view.FromResult(nil, err))
		return
	}

	http.Redirect(w, r, resultsURL(r.PostForm.Get("task_id"), "1"), http.StatusSeeOther)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	job, err := s.store.Get(id)
	if err != nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("job %q not found", id))
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// track registers id and starts its poll worker unless it is already tracked.
// Revisiting a results link for a job this process has never seen resumes
// polling it.
func (s *Server) track(id string) (*operation.TrackedJob, error) {
	tracked, isNew, err := s.store.Track(id)
	if err != nil {
		return nil, err
	}
	if isNew {
		go operation.Run(s.baseCtx, operation.WorkerOptions{
			Controller: s.controller,
			Store:      s.store,
			JobID:      id,
			Mirror:     s.mirror,
			Logger:     s.logger,
		})
	}
	return tracked, nil
}

// validTaskID rejects ids the service could never have issued, so a crafted
// results link cannot make the server poll arbitrary paths.
func validTaskID(id string) bool {
	if len(id) > maxTaskIDLen || id == "." || id == ".." {
		return false
	}
	for _, r := range id {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

func (s *Server) renderUpload(w http.ResponseWriter, status int, msg string) {
	var buf bytes.Buffer
	if err := view.RenderUpload(&buf, view.UploadPage{Error: msg}); err != nil {
		s.logger.Error().Err(err).Msg("failed to render upload page")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	writeHTML(w, status, buf.Bytes())
}

func (s *Server) renderResults(w http.ResponseWriter, status int, page view.Page) {
	if s.resolve != nil {
		page.ResolveURLs(s.resolve)
	}

	var buf bytes.Buffer
	if err := view.Render(&buf, page); err != nil {
		s.logger.Error().Err(err).Msg("failed to render results page")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	writeHTML(w, status, buf.Bytes())
}

func resultsURL(taskID, captioned string) string {
	q := url.Values{}
	if taskID != "" {
		q.Set("task_id", taskID)
	}
	if captioned != "" {
		q.Set("captioned", captioned)
	}
	if len(q) == 0 {
		return "/results"
	}
	return "/results?" + q.Encode()
}

func writeHTML(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
