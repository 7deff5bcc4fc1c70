package dbx

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/batchbox/dbx/utils"
)

// CreateSharedLink creates a shared link for the given dropbox path. When a
// link already exists the service rejects the call with a 409; that case is
// recovered here and the existing link's metadata is returned instead.
func (c *Client) CreateSharedLink(ctx context.Context, path string) (*SharedLinkMetadata, error) {
	if err := utils.ValidatePath(path); err != nil {
		return nil, utils.WrapSharedLinkError(err)
	}

	meta := &SharedLinkMetadata{}
	err := c.rpc(ctx, "create shared link", "sharing/create_shared_link_with_settings", &pathArg{Path: path}, meta)
	if err == nil {
		return meta, nil
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == 409 {
		var conflict createSharedLinkError
		if jsonErr := json.Unmarshal(apiErr.Payload, &conflict); jsonErr == nil &&
			conflict.SharedLinkAlready != nil && conflict.SharedLinkAlready.Metadata != nil {
			return conflict.SharedLinkAlready.Metadata, nil
		}
	}
	return nil, utils.WrapSharedLinkError(err)
}

// GetSharedLinkMetadata returns the metadata of the file or folder behind a
// shared link.
func (c *Client) GetSharedLinkMetadata(ctx context.Context, link string) (*SharedLinkMetadata, error) {
	if err := utils.ValidateSharedLink(link); err != nil {
		return nil, utils.WrapSharedLinkError(err)
	}

	meta := &SharedLinkMetadata{}
	if err := c.rpc(ctx, "get shared link metadata", "sharing/get_shared_link_metadata", &urlArg{URL: link}, meta); err != nil {
		return nil, utils.WrapSharedLinkError(err)
	}
	return meta, nil
}

// DownloadSharedLink streams the file behind a shared link into w and
// returns its metadata.
func (c *Client) DownloadSharedLink(ctx context.Context, link string, w io.Writer) (*SharedLinkMetadata, error) {
	if err := utils.ValidateSharedLink(link); err != nil {
		return nil, utils.WrapDownloadError(err)
	}

	meta := &SharedLinkMetadata{}
	if err := c.contentDownload(ctx, "download shared link", "sharing/get_shared_link_file", &urlArg{URL: link}, w, meta); err != nil {
		return nil, utils.WrapDownloadError(err)
	}
	return meta, nil
}
