package operation

import (
	"context"
	"iter"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultInterval is the delay between two status requests for the same job.
const DefaultInterval = 1500 * time.Millisecond

// Receipt is the remote service's answer to a submission.
type Receipt struct {
	Success bool
	TaskID  string
	Error   string
}

// Status is the remote service's answer to a status request.
type Status struct {
	Ready bool

	// Success is nil when the service omitted it, which it does for jobs that
	// are not ready yet.
	Success *bool

	Memes []string
	Error string
}

// Service is the remote job queue the controller talks to. Transport failures
// and non-success HTTP responses are returned as errors; a well-formed answer
// that rejects the request is returned as data.
type Service interface {
	Upload(ctx context.Context, req *UploadRequest) (*Receipt, error)
	Status(ctx context.Context, taskID string) (*Status, error)
	Memes(ctx context.Context) ([]string, error)
	CustomCaption(ctx context.Context, memeFile, caption string) (*Receipt, error)
}

// Option configures a Controller.
type Option func(*Controller)

// WithInterval overrides DefaultInterval.
func WithInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.interval = d
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

// Controller submits jobs and drives them to a terminal state. It holds no
// per-job state; each Job is advanced only by the Poll sequence ranging over
// it, so independent jobs may be polled concurrently.
type Controller struct {
	service  Service
	interval time.Duration
	logger   zerolog.Logger
}

func NewController(service Service, opts ...Option) *Controller {
	c := &Controller{
		service:  service,
		interval: DefaultInterval,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Interval returns the delay between status requests.
func (c *Controller) Interval() time.Duration {
	return c.interval
}

// Submit validates req and issues exactly one upload request. On acceptance
// the returned job is pending and carries the server-issued id.
func (c *Controller) Submit(ctx context.Context, req *UploadRequest) (*Job, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	receipt, err := c.service.Upload(ctx, req)
	if err != nil {
		c.logger.Warn().Err(err).Str("kind", string(req.Kind)).Msg("upload request failed")
		return nil, &SubmissionError{Reason: msgConnectionError, Err: err}
	}
	if !receipt.Success {
		reason := receipt.Error
		if reason == "" {
			reason = msgUnknownError
		}
		return nil, &SubmissionError{Reason: reason}
	}
	if receipt.TaskID == "" {
		return nil, &SubmissionError{Reason: "server accepted the upload without a task id"}
	}

	c.logger.Info().Str("job_id", receipt.TaskID).Str("kind", string(req.Kind)).Msg("job submitted")
	return NewJob(receipt.TaskID), nil
}

// Poll returns a lazy sequence of job snapshots. Each step issues one status
// request; a not-ready answer is followed by a delay of Interval before the
// next request. The sequence ends after yielding a terminal snapshot, a
// TransportError or the context's error.
//
// Poll advances job in place. Ranging over the sequence again once the job is
// terminal yields nothing and issues no request.
func (c *Controller) Poll(ctx context.Context, job *Job) iter.Seq2[Job, error] {
	return func(yield func(Job, error) bool) {
		if job.ID == "" {
			yield(job.Snapshot(), &ValidationError{Field: "job", Reason: "job has no id"})
			return
		}

		for attempt := 1; !job.State.Terminal(); attempt++ {
			if err := ctx.Err(); err != nil {
				yield(job.Snapshot(), err)
				return
			}

			status, err := c.service.Status(ctx, job.ID)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					yield(job.Snapshot(), ctxErr)
					return
				}
				job.failUnreachable()
				c.logger.Warn().Err(err).Str("job_id", job.ID).Int("attempt", attempt).Msg("status request failed, polling stopped")
				yield(job.Snapshot(), &TransportError{JobID: job.ID, Err: err})
				return
			}

			advance(job, status)
			c.logger.Debug().Str("job_id", job.ID).Int("attempt", attempt).Str("state", string(job.State)).Msg("job polled")

			if !yield(job.Snapshot(), nil) || job.State.Terminal() {
				return
			}

			timer := time.NewTimer(c.interval)
			select {
			case <-ctx.Done():
				timer.Stop()
				yield(job.Snapshot(), ctx.Err())
				return
			case <-timer.C:
			}
		}
	}
}

// Wait polls job until it is terminal and returns its result. A job failure
// is returned as a result, not an error; transport failures and cancellation
// are errors.
func (c *Controller) Wait(ctx context.Context, job *Job) (*Result, error) {
	for snap, err := range c.Poll(ctx, job) {
		if err != nil {
			return nil, err
		}
		if snap.State.Terminal() {
			return snap.Result, nil
		}
	}

	// Already terminal before Wait was called.
	snap := job.Snapshot()
	return snap.Result, nil
}

// FetchLatest returns the most recently generated artefacts without
// submitting or polling a job. An empty list is a successful result.
func (c *Controller) FetchLatest(ctx context.Context) (*Result, error) {
	memes, err := c.service.Memes(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("latest results request failed")
		return nil, &TransportError{Err: err}
	}
	return &Result{Success: true, Artifacts: NewMediaRefs(memes)}, nil
}

// CustomCaption asks the service to re-caption a generated meme.
func (c *Controller) CustomCaption(ctx context.Context, memeFile, caption string) error {
	caption = strings.TrimSpace(caption)
	if caption == "" {
		return &ValidationError{Field: "caption", Reason: "please enter a caption"}
	}
	if strings.TrimSpace(memeFile) == "" {
		return &ValidationError{Field: "meme_file", Reason: "no meme selected"}
	}

	receipt, err := c.service.CustomCaption(ctx, memeFile, caption)
	if err != nil {
		return &SubmissionError{Reason: msgConnectionError, Err: err}
	}
	if !receipt.Success {
		reason := receipt.Error
		if reason == "" {
			reason = "error submitting caption"
		}
		return &SubmissionError{Reason: reason}
	}
	return nil
}

// advance applies a status answer to a pending job.
func advance(job *Job, s *Status) {
	switch {
	case s.Ready && s.Success != nil && *s.Success:
		job.succeed(NewMediaRefs(s.Memes))
	case s.Ready:
		job.fail(s.Error)
	case s.Success != nil && !*s.Success:
		// The service answers unknown task ids with success:false and no
		// ready flag. That answer never changes, so it is terminal.
		job.fail(s.Error)
	}
}
