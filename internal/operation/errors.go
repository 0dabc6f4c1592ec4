package operation

import "fmt"

// Messages surfaced to users when the remote service gives no detail.
const (
	msgUnknownError     = "unknown error"
	msgConnectionError  = "error connecting to server"
	msgConnectionFailed = "failed to connect to the server"
)

// ValidationError rejects a request before any network call is made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// SubmissionError reports that the remote service did not accept a request.
// Submissions are never retried automatically.
type SubmissionError struct {
	Reason string
	Err    error
}

func (e *SubmissionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("submission failed: %s: %v", e.Reason, e.Err)
	}
	return "submission failed: " + e.Reason
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// TransportError reports a network failure while polling a job or fetching
// results. Polling stops when one is observed.
type TransportError struct {
	JobID string
	Err   error
}

func (e *TransportError) Error() string {
	if e.JobID == "" {
		return fmt.Sprintf("%s: %v", msgConnectionFailed, e.Err)
	}
	return fmt.Sprintf("%s while polling job %q: %v", msgConnectionFailed, e.JobID, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
