package dbx_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/batchbox/dbx"
	"github.com/batchbox/dbx/dbxtest"
)

type clientSuite struct {
	suite.Suite
	server *dbxtest.Server
}

func (s *clientSuite) SetupTest() {
	s.server = dbxtest.NewServer()
}

func (s *clientSuite) TearDownTest() {
	s.server.Close()
}

func (s *clientSuite) TestCheckUser() {
	err := s.server.Client().CheckUser(context.Background())
	s.Require().NoError(err, "a valid token should check out")
}

func (s *clientSuite) TestCheckUser_BadToken() {
	c := dbx.NewClient("not-the-token", dbx.WithHosts(s.server.URL(), s.server.URL()))

	err := c.CheckUser(context.Background())
	s.Require().Error(err, "a bad token should be rejected")

	var authErr *dbx.AuthError
	s.Require().ErrorAs(err, &authErr, "rejection should be an auth error")
	s.Equal(401, authErr.StatusCode)
	s.Contains(authErr.Summary, "invalid_access_token")
}

func (s *clientSuite) TestTransportError() {
	url := s.server.URL()
	s.server.Close()

	c := dbx.NewClient(dbxtest.Token, dbx.WithHosts(url, url))
	err := c.CheckUser(context.Background())
	s.Require().Error(err, "an unreachable host is a transport failure")

	var transportErr *dbx.TransportError
	s.Require().ErrorAs(err, &transportErr)
	s.Error(transportErr.Unwrap(), "the underlying cause should be preserved")
}

func (s *clientSuite) TestRateLimitRetry() {
	s.server.RateLimitNext = 2

	err := s.server.Client().CheckUser(context.Background())
	s.Require().NoError(err, "rate-limited requests should be retried")
	s.Equal(3, s.server.Requests(), "two limited attempts plus the successful one")
}

func (s *clientSuite) TestRateLimitExhausted() {
	s.server.RateLimitNext = 10

	err := s.server.Client(dbx.WithRetryCount(3)).CheckUser(context.Background())
	s.Require().Error(err, "retries beyond the cap should surface the limit")

	var apiErr *dbx.APIError
	s.Require().ErrorAs(err, &apiErr)
	s.Equal(429, apiErr.StatusCode)
	s.Equal(3, s.server.Requests(), "attempts must stop at the configured cap")
}

func (s *clientSuite) TestAPIError() {
	_, err := s.server.Client().GetSharedLinkMetadata(context.Background(), "https://www.dropbox.com/s/none/gone.txt")
	s.Require().Error(err, "unknown shared links are an api error")

	var apiErr *dbx.APIError
	s.Require().ErrorAs(err, &apiErr)
	s.Equal(409, apiErr.StatusCode)
	s.Contains(apiErr.Summary, "shared_link_not_found")
	s.NotEmpty(apiErr.Payload, "the decoded error payload should be retained")
	s.NotEmpty(apiErr.RawBody, "the raw body should be retained")
}

func TestClient(t *testing.T) {
	suite.Run(t, new(clientSuite))
}
