package dbx

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/batchbox/dbx/options"
	"github.com/batchbox/dbx/utils"
)

// MaxBatchEntries is the service's cap on entries in one finish-batch call.
const MaxBatchEntries = 1000

const (
	defaultChunkSize    = 4 << 20
	defaultPollInterval = 5 * time.Second
	defaultPollBudget   = 10 * time.Minute
)

// UploadClient is the subset of Client used by BatchUploader. It exists so
// tests can substitute a double for the live service.
type UploadClient interface {
	UploadSessionStart(ctx context.Context, arg *UploadSessionStartArg, r io.Reader) (*UploadSessionStartResult, error)
	UploadSessionAppend(ctx context.Context, arg *UploadSessionAppendArg, r io.Reader) error
	UploadSessionFinishBatch(ctx context.Context, arg *UploadSessionFinishBatchArg) (*UploadSessionFinishBatchLaunch, error)
	UploadSessionFinishBatchCheck(ctx context.Context, arg *PollArg) (*UploadSessionFinishBatchJobStatus, error)
}

// SleepFunc pauses for d or until ctx is done. BatchUploader's poll loop
// calls it between status checks; tests inject their own to avoid real
// waits.
type SleepFunc func(ctx context.Context, d time.Duration) error

// BatchUploader accumulates chunked upload sessions and commits them as one
// batch. Start may be called from multiple goroutines; each call uploads a
// file's content and parks its commit in the pending batch. Finish snapshots
// the batch, submits it, and waits for the service to report per-entry
// results.
type BatchUploader struct {
	client       UploadClient
	chunkSize    int64
	pollInterval time.Duration
	pollBudget   time.Duration
	sleep        SleepFunc

	mu      sync.Mutex
	pending []*UploadSessionFinishArg
}

// NewBatchUploader returns a BatchUploader committing through client.
func NewBatchUploader(client UploadClient, opts ...options.Option[BatchUploader]) *BatchUploader {
	u := &BatchUploader{
		client:       client,
		chunkSize:    defaultChunkSize,
		pollInterval: defaultPollInterval,
		pollBudget:   defaultPollBudget,
		sleep:        sleepContext,
	}

	options.ApplyOptions(u, opts...)

	return u
}

// Start uploads the local file's content in chunks and appends its commit to
// the pending batch. The returned commit describes where the file will land
// once Finish succeeds; the file is not visible at dropboxPath until then.
// ErrBatchFull is returned when the pending batch already holds
// MaxBatchEntries commits.
func (u *BatchUploader) Start(ctx context.Context, localPath, dropboxPath string) (*UploadSessionFinishArg, error) {
	if err := utils.ValidatePath(dropboxPath); err != nil {
		return nil, utils.WrapUploadError(err)
	}
	if u.Pending() >= MaxBatchEntries {
		return nil, ErrBatchFull
	}

	f, err := os.Open(localPath)
	if err != nil {
		return nil, utils.WrapUploadError(err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return nil, utils.WrapUploadError(err)
	}
	size := info.Size()

	sessionID, err := u.uploadChunks(ctx, f, size)
	if err != nil {
		return nil, err
	}

	commit := &UploadSessionFinishArg{
		Cursor: &UploadSessionCursor{SessionID: sessionID, Offset: uint64(size)},
		Commit: NewCommitInfo(dropboxPath),
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	if len(u.pending) >= MaxBatchEntries {
		return nil, ErrBatchFull
	}
	u.pending = append(u.pending, commit)

	return commit, nil
}

// uploadChunks opens an upload session with the first chunk of r and appends
// the rest chunk by chunk, closing the session with the final one.
func (u *BatchUploader) uploadChunks(ctx context.Context, r io.Reader, size int64) (string, error) {
	startArg := &UploadSessionStartArg{Close: size <= u.chunkSize}
	start, err := u.client.UploadSessionStart(ctx, startArg, io.LimitReader(r, u.chunkSize))
	if err != nil {
		return "", err
	}

	offset := min(size, u.chunkSize)
	for offset < size {
		remaining := size - offset
		appendArg := &UploadSessionAppendArg{
			Cursor: &UploadSessionCursor{SessionID: start.SessionID, Offset: uint64(offset)},
			Close:  remaining <= u.chunkSize,
		}
		if err := u.client.UploadSessionAppend(ctx, appendArg, io.LimitReader(r, u.chunkSize)); err != nil {
			return "", err
		}
		offset += min(remaining, u.chunkSize)
	}

	return start.SessionID, nil
}

// Finish submits the pending batch and waits for the service to commit every
// entry, polling when the commit runs as an async job. The batch is cleared
// before submission, so Start calls racing Finish land in the next batch.
// An empty batch is a no-op returning (nil, nil). On success the returned
// metadata is in Start order; if any entry failed the error is a
// *BatchError carrying every entry's result.
func (u *BatchUploader) Finish(ctx context.Context) ([]*FileMetadata, error) {
	u.mu.Lock()
	entries := u.pending
	u.pending = nil
	u.mu.Unlock()

	if len(entries) == 0 {
		return nil, nil
	}

	launch, err := u.client.UploadSessionFinishBatch(ctx, &UploadSessionFinishBatchArg{Entries: entries})
	if err != nil {
		return nil, err
	}

	switch launch.Tag {
	case TagComplete:
		return collectEntries(launch.Entries)
	case TagAsyncJobID:
		return u.poll(ctx, launch.AsyncJobID)
	default:
		return nil, utils.WrapBatchFinishError(fmt.Errorf("unexpected batch launch state %q", launch.Tag))
	}
}

// Pending reports how many commits are parked in the current batch.
func (u *BatchUploader) Pending() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.pending)
}

// poll checks the async job at a fixed interval until it completes or the
// poll budget is spent. A non-positive interval would stall the budget, so
// it falls back to the default.
func (u *BatchUploader) poll(ctx context.Context, jobID string) ([]*FileMetadata, error) {
	interval := u.pollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}

	var elapsed time.Duration
	for {
		if elapsed >= u.pollBudget {
			return nil, &PollTimeoutError{JobID: jobID, Budget: u.pollBudget}
		}
		if err := u.sleep(ctx, interval); err != nil {
			return nil, err
		}
		elapsed += interval

		status, err := u.client.UploadSessionFinishBatchCheck(ctx, &PollArg{AsyncJobID: jobID})
		if err != nil {
			return nil, err
		}

		switch status.Tag {
		case TagInProgress:
		case TagComplete:
			return collectEntries(status.Entries)
		default:
			return nil, utils.WrapBatchFinishError(fmt.Errorf("unexpected batch job state %q", status.Tag))
		}
	}
}

// collectEntries extracts the committed file metadata from a completed
// batch, or returns a *BatchError carrying all entries when any failed.
func collectEntries(entries []*UploadSessionFinishBatchResultEntry) ([]*FileMetadata, error) {
	metas := make([]*FileMetadata, 0, len(entries))
	for _, entry := range entries {
		if entry.Tag != TagSuccess {
			return nil, &BatchError{Entries: entries}
		}
		meta := entry.FileMetadata
		metas = append(metas, &meta)
	}
	return metas, nil
}
