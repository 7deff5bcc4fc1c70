package dbx

import "time"

// Union tags used by the endpoints this client speaks.
const (
	TagComplete   = "complete"
	TagInProgress = "in_progress"
	TagAsyncJobID = "async_job_id"
	TagSuccess    = "success"
	TagFailure    = "failure"
	TagFile       = "file"
	TagFolder     = "folder"
)

// WriteMode selects what happens when the destination path already exists.
type WriteMode string

const (
	// WriteModeAdd never overwrites; the service autorenames or rejects on conflict.
	WriteModeAdd WriteMode = "add"
	// WriteModeOverwrite replaces whatever is at the destination path.
	WriteModeOverwrite WriteMode = "overwrite"
)

// FileMetadata describes a file as materialized by the service.
type FileMetadata struct {
	ID             string    `json:"id,omitempty"`
	Name           string    `json:"name,omitempty"`
	PathLower      string    `json:"path_lower,omitempty"`
	PathDisplay    string    `json:"path_display,omitempty"`
	ClientModified time.Time `json:"client_modified,omitempty"`
	ServerModified time.Time `json:"server_modified,omitempty"`
	Rev            string    `json:"rev,omitempty"`
	Size           uint64    `json:"size,omitempty"`
	ContentHash    string    `json:"content_hash,omitempty"`
}

// FolderMetadata describes a folder.
type FolderMetadata struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name,omitempty"`
	PathLower   string `json:"path_lower,omitempty"`
	PathDisplay string `json:"path_display,omitempty"`
}

// SharedLinkMetadata describes a shared link and the entry it points at.
type SharedLinkMetadata struct {
	Tag       string `json:".tag,omitempty"` // "file" or "folder"
	URL       string `json:"url"`
	Name      string `json:"name,omitempty"`
	ID        string `json:"id,omitempty"`
	PathLower string `json:"path_lower,omitempty"`
	Size      uint64 `json:"size,omitempty"`
	Rev       string `json:"rev,omitempty"`
}

// CommitInfo describes where a finished upload session's bytes should be
// materialized as a file.
type CommitInfo struct {
	Path       string    `json:"path"`
	Mode       WriteMode `json:"mode,omitempty"`
	Autorename bool      `json:"autorename"`
	Mute       bool      `json:"mute"`
}

// NewCommitInfo returns a CommitInfo with the service's default write
// behavior: add, no autorename, no mute.
func NewCommitInfo(path string) *CommitInfo {
	return &CommitInfo{
		Path: path,
		Mode: WriteModeAdd,
	}
}

// UploadArg are the arguments for a single-shot upload.
type UploadArg struct {
	CommitInfo
}

// NewUploadArg returns an UploadArg with default write behavior for path.
func NewUploadArg(path string) *UploadArg {
	return &UploadArg{CommitInfo: *NewCommitInfo(path)}
}

// UploadSessionCursor identifies an upload session and the number of bytes
// the service has consumed so far.
type UploadSessionCursor struct {
	SessionID string `json:"session_id"`
	Offset    uint64 `json:"offset"`
}

// UploadSessionStartArg are the arguments for starting an upload session.
type UploadSessionStartArg struct {
	// Close marks the session closed after consuming the request body, so no
	// further appends are accepted.
	Close bool `json:"close"`
}

// UploadSessionStartResult carries the identifier of a started session.
type UploadSessionStartResult struct {
	SessionID string `json:"session_id"`
}

// UploadSessionAppendArg are the arguments for appending bytes to a session.
type UploadSessionAppendArg struct {
	Cursor *UploadSessionCursor `json:"cursor"`
	Close  bool                 `json:"close"`
}

// UploadSessionFinishArg pairs a closed session with the commit describing
// where its bytes belong. This is the batch entry produced by
// BatchUploader.Start.
type UploadSessionFinishArg struct {
	Cursor *UploadSessionCursor `json:"cursor"`
	Commit *CommitInfo          `json:"commit"`
}

// UploadSessionFinishBatchArg are the arguments for committing many sessions
// in one call.
type UploadSessionFinishBatchArg struct {
	Entries []*UploadSessionFinishArg `json:"entries"`
}

// UploadSessionFinishBatchLaunch is the immediate response to a finish-batch
// call: either the batch completed synchronously (Tag "complete", Entries
// populated) or a server-side job was launched (Tag "async_job_id").
type UploadSessionFinishBatchLaunch struct {
	Tag        string                                 `json:".tag"`
	AsyncJobID string                                 `json:"async_job_id,omitempty"`
	Entries    []*UploadSessionFinishBatchResultEntry `json:"entries,omitempty"`
}

// PollArg identifies an asynchronous server-side job.
type PollArg struct {
	AsyncJobID string `json:"async_job_id"`
}

// UploadSessionFinishBatchJobStatus is one poll result for a finish-batch
// job: "in_progress", or "complete" with per-entry results.
type UploadSessionFinishBatchJobStatus struct {
	Tag     string                                 `json:".tag"`
	Entries []*UploadSessionFinishBatchResultEntry `json:"entries,omitempty"`
}

// UploadSessionFinishBatchResultEntry is the per-commit outcome of a
// finished batch: "success" with file metadata inline, or "failure" with the
// service's reason.
type UploadSessionFinishBatchResultEntry struct {
	Tag string `json:".tag"`
	FileMetadata
	Failure *UploadSessionFinishError `json:"failure,omitempty"`
}

// UploadSessionFinishError is the service's reason a single commit was
// rejected, e.g. a path conflict or an expired session.
type UploadSessionFinishError struct {
	Tag  string     `json:".tag"`
	Path *TaggedTag `json:"path,omitempty"`
}

// TaggedTag is a bare union discriminator, used for nested error reasons.
type TaggedTag struct {
	Tag string `json:".tag"`
}

type checkUserArg struct {
	Query string `json:"query"`
}

type checkUserResult struct {
	Result string `json:"result"`
}

type pathArg struct {
	Path string `json:"path"`
}

type urlArg struct {
	URL string `json:"url"`
}

type downloadZipResult struct {
	Metadata *FolderMetadata `json:"metadata"`
}

// createSharedLinkError is the decoded 409 payload of a create-shared-link
// call, carried inside APIError.Payload.
type createSharedLinkError struct {
	Tag               string `json:".tag"`
	SharedLinkAlready *struct {
		Metadata *SharedLinkMetadata `json:"metadata"`
	} `json:"shared_link_already_exists,omitempty"`
}
