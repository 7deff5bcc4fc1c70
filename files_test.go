package dbx_test

import (
	"archive/zip"
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/batchbox/dbx"
	"github.com/batchbox/dbx/dbxtest"
	"github.com/batchbox/dbx/utils"
)

type filesSuite struct {
	suite.Suite
	server *dbxtest.Server
	client *dbx.Client
}

func (s *filesSuite) SetupTest() {
	s.server = dbxtest.NewServer()
	s.client = s.server.Client()
}

func (s *filesSuite) TearDownTest() {
	s.server.Close()
}

func (s *filesSuite) TestDownload() {
	s.server.SetFile("/docs/report.txt", []byte("quarterly numbers"))

	var buf bytes.Buffer
	meta, err := s.client.Download(context.Background(), "/docs/report.txt", &buf)
	s.Require().NoError(err, "an existing file should download")
	s.Equal("quarterly numbers", buf.String(), "downloaded bytes should match the stored content")
	s.Equal("report.txt", meta.Name, "metadata should ride the result header")
	s.Equal("/docs/report.txt", meta.PathDisplay)
	s.Equal(uint64(len("quarterly numbers")), meta.Size)
}

func (s *filesSuite) TestDownload_Error() {
	var buf bytes.Buffer

	_, err := s.client.Download(context.Background(), "/missing.txt", &buf)
	s.Require().Error(err, "a missing file is an error")
	var apiErr *dbx.APIError
	s.Require().ErrorAs(err, &apiErr)
	s.Contains(apiErr.Summary, "not_found")

	_, err = s.client.Download(context.Background(), "no-slash.txt", &buf)
	s.Require().Error(err, "a relative path is rejected before any request")
	s.ErrorContains(err, utils.ErrBadPath)
}

func (s *filesSuite) TestDownloadZip() {
	s.server.SetFile("/album/one.txt", []byte("first"))
	s.server.SetFile("/album/two.txt", []byte("second"))

	var buf bytes.Buffer
	meta, err := s.client.DownloadZip(context.Background(), "/album", &buf)
	s.Require().NoError(err, "an existing folder should download as a zip")
	s.Require().NotNil(meta)
	s.Equal("album", meta.Name)

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	s.Require().NoError(err, "the body should be a readable archive")
	names := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	s.ElementsMatch([]string{"album/one.txt", "album/two.txt"}, names, "every file in the folder should be archived")
}

func (s *filesSuite) TestUpload() {
	content := strings.Repeat("payload ", 64)

	meta, err := s.client.Upload(context.Background(), dbx.NewUploadArg("/up/new.txt"), strings.NewReader(content))
	s.Require().NoError(err, "a single-shot upload should succeed")
	s.Equal("new.txt", meta.Name)
	s.Equal(uint64(len(content)), meta.Size)

	stored, ok := s.server.File("/up/new.txt")
	s.Require().True(ok, "the file should be stored")
	s.Equal(content, string(stored))
}

func (s *filesSuite) TestUpload_RateLimitedReplay() {
	s.Run("seekable body rewinds", func() {
		s.server.RateLimitNext = 1
		before := s.server.Requests()

		r := strings.NewReader("seekable payload")
		_, err := s.client.Upload(context.Background(), dbx.NewUploadArg("/up/seek.txt"), r)
		s.Require().NoError(err, "the retried request should carry the full body again")
		s.Equal(2, s.server.Requests()-before, "one limited attempt plus the successful one")

		stored, ok := s.server.File("/up/seek.txt")
		s.Require().True(ok)
		s.Equal("seekable payload", string(stored), "replay must restart from the body's beginning")
	})

	s.Run("non-seekable body is buffered", func() {
		s.server.RateLimitNext = 1

		var buf bytes.Buffer
		buf.WriteString("buffered payload")
		_, err := s.client.Upload(context.Background(), dbx.NewUploadArg("/up/buf.txt"), &buf)
		s.Require().NoError(err)

		stored, ok := s.server.File("/up/buf.txt")
		s.Require().True(ok)
		s.Equal("buffered payload", string(stored))
	})
}

func (s *filesSuite) TestUpload_Error() {
	_, err := s.client.Upload(context.Background(), dbx.NewUploadArg("bad path"), strings.NewReader("x"))
	s.Require().Error(err, "an invalid destination is rejected")
	s.ErrorContains(err, utils.ErrBadPath)
}

func TestFiles(t *testing.T) {
	suite.Run(t, new(filesSuite))
}
