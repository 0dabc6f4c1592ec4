package operation

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// Mirror copies generated artefacts to storage the caller controls and returns
// references to the copies, in the same order.
type Mirror interface {
	Copy(ctx context.Context, jobID string, artifacts []MediaRef) ([]MediaRef, error)
}

// WorkerOptions configures a poll worker invocation.
type WorkerOptions struct {
	Controller *Controller
	Store      Store
	JobID      string

	// Mirror is optional. When set, the artefacts of a successful job are
	// copied before the job is reported as succeeded.
	Mirror Mirror

	Logger zerolog.Logger
}

// Run polls a tracked job until it is terminal, writing every observed state
// to the store.
//
// Run is intended to be called in a separate goroutine; it is the only writer
// for the job from the moment it is called. It returns early, leaving the job
// pending, when ctx is cancelled.
func Run(ctx context.Context, opts WorkerOptions) {
	log := opts.Logger.With().Str("job_id", opts.JobID).Logger()

	tracked, err := opts.Store.Get(opts.JobID)
	if err != nil {
		// If the job is not tracked there is nowhere to report to.
		log.Error().Err(err).Msg("worker started for untracked job")
		return
	}
	job := tracked.Job.Snapshot()

	for snap, err := range opts.Controller.Poll(ctx, &job) {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			log.Info().Msg("polling cancelled")
			return
		}

		if snap.State == StateSucceeded && opts.Mirror != nil {
			mirrored, err := opts.Mirror.Copy(ctx, snap.ID, snap.Result.Artifacts)
			if err != nil {
				snap.fail(fmt.Sprintf("mirror: %v", err))
			} else {
				snap.Result.Artifacts = mirrored
			}
		}

		if err := opts.Store.Update(snap); err != nil {
			log.Error().Err(err).Msg("failed to record job state")
			return
		}
	}

	if final, err := opts.Store.Get(opts.JobID); err == nil {
		log.Info().Str("state", string(final.State)).Msg("job finished")
	}
}
