package dbx

import (
	"context"
	"io"

	"github.com/batchbox/dbx/utils"
)

// checkQuery is echoed by the service when the bearer token is valid.
const checkQuery = "dbx"

// CheckUser validates the client's bearer token by asking the service to
// echo a query string. ErrTokenInvalid is returned when the echo does not
// match.
func (c *Client) CheckUser(ctx context.Context) error {
	var result checkUserResult
	if err := c.rpc(ctx, "check user", "check/user", &checkUserArg{Query: checkQuery}, &result); err != nil {
		return utils.WrapValidateError(err)
	}
	if result.Result != checkQuery {
		return utils.WrapValidateError(ErrTokenInvalid)
	}
	return nil
}

// Download streams the file at the given dropbox path into w and returns its
// metadata.
func (c *Client) Download(ctx context.Context, path string, w io.Writer) (*FileMetadata, error) {
	if err := utils.ValidatePath(path); err != nil {
		return nil, utils.WrapDownloadError(err)
	}

	meta := &FileMetadata{}
	if err := c.contentDownload(ctx, "download", "files/download", &pathArg{Path: path}, w, meta); err != nil {
		return nil, utils.WrapDownloadError(err)
	}
	return meta, nil
}

// DownloadZip streams the folder at the given dropbox path into w as a zip
// archive and returns the folder's metadata.
func (c *Client) DownloadZip(ctx context.Context, path string, w io.Writer) (*FolderMetadata, error) {
	if err := utils.ValidatePath(path); err != nil {
		return nil, utils.WrapDownloadError(err)
	}

	result := &downloadZipResult{}
	if err := c.contentDownload(ctx, "download zip", "files/download_zip", &pathArg{Path: path}, w, result); err != nil {
		return nil, utils.WrapDownloadError(err)
	}
	return result.Metadata, nil
}

// Upload writes the contents of r to the path named by arg in a single
// request. The service caps single-shot uploads at 150 MB; larger files
// should go through BatchUploader. Seekable readers (an *os.File, a
// bytes.Reader) are streamed and rewound if the request must be retried;
// any other reader is buffered in memory first.
func (c *Client) Upload(ctx context.Context, arg *UploadArg, r io.Reader) (*FileMetadata, error) {
	if err := utils.ValidatePath(arg.Path); err != nil {
		return nil, utils.WrapUploadError(err)
	}

	meta := &FileMetadata{}
	if err := c.contentUpload(ctx, "upload", "files/upload", arg, r, meta); err != nil {
		return nil, utils.WrapUploadError(err)
	}
	return meta, nil
}

// UploadSessionStart opens an upload session, writing the first chunk from r.
func (c *Client) UploadSessionStart(ctx context.Context, arg *UploadSessionStartArg, r io.Reader) (*UploadSessionStartResult, error) {
	result := &UploadSessionStartResult{}
	if err := c.contentUpload(ctx, "upload session start", "files/upload_session/start", arg, r, result); err != nil {
		return nil, utils.WrapUploadError(err)
	}
	return result, nil
}

// UploadSessionAppend writes the next chunk of an open upload session from r.
// The cursor's offset must equal the number of bytes the session has already
// received.
func (c *Client) UploadSessionAppend(ctx context.Context, arg *UploadSessionAppendArg, r io.Reader) error {
	if err := c.contentUpload(ctx, "upload session append", "files/upload_session/append_v2", arg, r, nil); err != nil {
		return utils.WrapUploadError(err)
	}
	return nil
}

// UploadSessionFinishBatch asks the service to commit a batch of completed
// upload sessions. The launch either carries the results inline or names an
// async job to poll with UploadSessionFinishBatchCheck.
func (c *Client) UploadSessionFinishBatch(ctx context.Context, arg *UploadSessionFinishBatchArg) (*UploadSessionFinishBatchLaunch, error) {
	launch := &UploadSessionFinishBatchLaunch{}
	if err := c.rpc(ctx, "upload session finish batch", "files/upload_session/finish_batch", arg, launch); err != nil {
		return nil, utils.WrapBatchFinishError(err)
	}
	return launch, nil
}

// UploadSessionFinishBatchCheck polls the status of an async batch commit
// job.
func (c *Client) UploadSessionFinishBatchCheck(ctx context.Context, arg *PollArg) (*UploadSessionFinishBatchJobStatus, error) {
	status := &UploadSessionFinishBatchJobStatus{}
	if err := c.rpc(ctx, "upload session finish batch check", "files/upload_session/finish_batch/check", arg, status); err != nil {
		return nil, utils.WrapBatchFinishError(err)
	}
	return status, nil
}
