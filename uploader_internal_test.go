package dbx

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"
)

// stubUploadClient records calls without any transport.
type stubUploadClient struct {
	starts  int
	batches []*UploadSessionFinishBatchArg
	launch  *UploadSessionFinishBatchLaunch
	status  *UploadSessionFinishBatchJobStatus
}

func (c *stubUploadClient) UploadSessionStart(_ context.Context, _ *UploadSessionStartArg, r io.Reader) (*UploadSessionStartResult, error) {
	_, _ = io.Copy(io.Discard, r)
	c.starts++
	return &UploadSessionStartResult{SessionID: "sess"}, nil
}

func (c *stubUploadClient) UploadSessionAppend(_ context.Context, _ *UploadSessionAppendArg, r io.Reader) error {
	_, _ = io.Copy(io.Discard, r)
	return nil
}

func (c *stubUploadClient) UploadSessionFinishBatch(_ context.Context, arg *UploadSessionFinishBatchArg) (*UploadSessionFinishBatchLaunch, error) {
	c.batches = append(c.batches, arg)
	return c.launch, nil
}

func (c *stubUploadClient) UploadSessionFinishBatchCheck(_ context.Context, _ *PollArg) (*UploadSessionFinishBatchJobStatus, error) {
	return c.status, nil
}

type uploaderInternalSuite struct {
	suite.Suite
	stub *stubUploadClient
}

func (s *uploaderInternalSuite) SetupTest() {
	s.stub = &stubUploadClient{}
}

func (s *uploaderInternalSuite) TestStart_BatchFull() {
	u := NewBatchUploader(s.stub)
	u.pending = make([]*UploadSessionFinishArg, MaxBatchEntries)

	local := filepath.Join(s.T().TempDir(), "full.txt")
	s.Require().NoError(os.WriteFile(local, []byte("x"), 0o600))

	_, err := u.Start(context.Background(), local, "/full.txt")
	s.Require().ErrorIs(err, ErrBatchFull, "a full batch must reject further starts")
	s.Zero(s.stub.starts, "no session may be opened for a rejected start")
}

func (s *uploaderInternalSuite) TestFinish_CommitOrder() {
	commits := []*UploadSessionFinishArg{
		{Cursor: &UploadSessionCursor{SessionID: "s1", Offset: 1}, Commit: NewCommitInfo("/one")},
		{Cursor: &UploadSessionCursor{SessionID: "s2", Offset: 2}, Commit: NewCommitInfo("/two")},
		{Cursor: &UploadSessionCursor{SessionID: "s3", Offset: 3}, Commit: NewCommitInfo("/three")},
	}
	s.stub.launch = &UploadSessionFinishBatchLaunch{
		Tag: TagComplete,
		Entries: []*UploadSessionFinishBatchResultEntry{
			{Tag: TagSuccess}, {Tag: TagSuccess}, {Tag: TagSuccess},
		},
	}

	u := NewBatchUploader(s.stub)
	u.pending = commits

	metas, err := u.Finish(context.Background())
	s.Require().NoError(err)
	s.Len(metas, 3)
	s.Require().Len(s.stub.batches, 1, "one finish_batch call expected")
	s.Equal(commits, s.stub.batches[0].Entries, "batch must submit commits in start order")
}

func (s *uploaderInternalSuite) TestFinish_UnexpectedLaunch() {
	s.stub.launch = &UploadSessionFinishBatchLaunch{Tag: "bogus"}

	u := NewBatchUploader(s.stub)
	u.pending = []*UploadSessionFinishArg{{Commit: NewCommitInfo("/x")}}

	_, err := u.Finish(context.Background())
	s.Require().Error(err)
	s.ErrorContains(err, "unexpected batch launch state", "unknown launch tags are an error")
}

func (s *uploaderInternalSuite) TestCollectEntries() {
	s.Run("all success", func() {
		entry := &UploadSessionFinishBatchResultEntry{Tag: TagSuccess}
		entry.PathDisplay = "/a"
		metas, err := collectEntries([]*UploadSessionFinishBatchResultEntry{entry})
		s.Require().NoError(err)
		s.Require().Len(metas, 1)
		s.Equal("/a", metas[0].PathDisplay)
	})

	s.Run("any failure", func() {
		entries := []*UploadSessionFinishBatchResultEntry{
			{Tag: TagSuccess},
			{Tag: TagFailure, Failure: &UploadSessionFinishError{Tag: "too_many_write_operations"}},
		}
		metas, err := collectEntries(entries)
		s.Require().Error(err)
		s.Nil(metas)

		var batchErr *BatchError
		s.Require().ErrorAs(err, &batchErr)
		s.Len(batchErr.Entries, 2)
		s.Len(batchErr.Failed(), 1)
	})
}

func TestUploaderInternal(t *testing.T) {
	suite.Run(t, new(uploaderInternalSuite))
}
