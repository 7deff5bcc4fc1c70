package dbx

import (
	"encoding/json"
	"fmt"
	"time"
)

// Error is a type that allows for error constants below
type Error string

// Error returns a string representation of the error
func (e Error) Error() string { return string(e) }

const (
	// ErrBatchFull - the pending batch has reached the service's entry limit; Finish must be called
	ErrBatchFull = Error("pending batch is full - Finish must be called before more uploads may start")

	// ErrTokenInvalid - the service did not echo the validation query
	ErrTokenInvalid = Error("token validation failed - service did not echo the query")
)

// TransportError reports a network or IO failure before any well-formed
// response was received. Retrying is the caller's decision.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("dropbox: transport error during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// APIError is a service-reported rejection of a request. Summary and Payload
// carry the decoded error body when the service returned one; RawBody always
// carries the bytes as received, for diagnostics.
type APIError struct {
	StatusCode int
	Summary    string
	Payload    json.RawMessage
	RawBody    []byte
}

func (e *APIError) Error() string {
	if e.Summary != "" {
		return fmt.Sprintf("dropbox: %d %s", e.StatusCode, e.Summary)
	}
	return fmt.Sprintf("dropbox: %d %s", e.StatusCode, string(e.RawBody))
}

// AuthError is a 401 response: the bearer token was missing, malformed,
// expired or revoked.
type AuthError struct {
	APIError
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("dropbox: authentication failed: %d %s", e.StatusCode, e.Summary)
}

// BatchError is returned by BatchUploader.Finish when the finish-batch job
// settled but one or more commits were rejected. Entries holds the service's
// per-commit result, in the same order the commits were submitted.
type BatchError struct {
	Entries []*UploadSessionFinishBatchResultEntry
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("dropbox: upload batch commit failed for %d of %d entries", len(e.Failed()), len(e.Entries))
}

// Failed returns only the rejected entries.
func (e *BatchError) Failed() []*UploadSessionFinishBatchResultEntry {
	var failed []*UploadSessionFinishBatchResultEntry
	for _, entry := range e.Entries {
		if entry.Tag != TagSuccess {
			failed = append(failed, entry)
		}
	}
	return failed
}

// PollTimeoutError is returned by BatchUploader.Finish when the finish-batch
// job did not settle within the poll budget. The server-side job keeps
// running; its outcome is simply unobserved.
type PollTimeoutError struct {
	JobID  string
	Budget time.Duration
}

func (e *PollTimeoutError) Error() string {
	return fmt.Sprintf("dropbox: batch job %s still in progress after %s", e.JobID, e.Budget)
}
