package dbx

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type clientInternalSuite struct {
	suite.Suite
}

func (s *clientInternalSuite) TestHeaderSafeJSON() {
	tests := []struct {
		name     string
		arg      any
		expected string
	}{
		{
			name:     "ascii passes through",
			arg:      &pathArg{Path: "/file.txt"},
			expected: `{"path":"/file.txt"}`,
		},
		{
			name:     "non-ascii is escaped",
			arg:      &pathArg{Path: "/日本.txt"},
			expected: `{"path":"/\u65e5\u672c.txt"}`,
		},
		{
			name:     "astral runes become surrogate pairs",
			arg:      &pathArg{Path: "/🙂.txt"},
			expected: `{"path":"/\ud83d\ude42.txt"}`,
		},
	}

	for _, t := range tests {
		s.Run(t.name, func() {
			encoded, err := headerSafeJSON(t.arg)
			s.Require().NoError(err)
			s.Equal(t.expected, encoded)
			for _, b := range []byte(encoded) {
				s.Less(b, byte(0x7f), "header value must stay within printable ascii")
			}
		})
	}
}

func (s *clientInternalSuite) TestRetryAfter() {
	tests := []struct {
		header   string
		expected time.Duration
		message  string
	}{
		{"3", 3 * time.Second, "integer seconds are honored"},
		{"", time.Second, "missing header defaults to one second"},
		{"soon", time.Second, "junk header defaults to one second"},
		{"0", 0, "zero is honored"},
	}

	for _, t := range tests {
		resp := &http.Response{Header: http.Header{}}
		if t.header != "" {
			resp.Header.Set("Retry-After", t.header)
		}
		s.Equal(t.expected, retryAfter(resp), t.message)
	}
}

func (s *clientInternalSuite) TestSleepContext() {
	s.Run("returns after the wait", func() {
		s.NoError(sleepContext(context.Background(), time.Millisecond))
	})

	s.Run("zero wait still checks cancellation", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		s.ErrorIs(sleepContext(ctx, 0), context.Canceled)
	})

	s.Run("cancellation interrupts the wait", func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
		defer cancel()
		s.ErrorIs(sleepContext(ctx, time.Minute), context.DeadlineExceeded)
	})
}

func (s *clientInternalSuite) TestNewClientDefaults() {
	c := NewClient("token")
	s.Equal(DefaultAPIHost, c.apiHost)
	s.Equal(DefaultContentHost, c.contentHost)
	s.Equal(defaultRetryCount, c.retryCount)
	s.NotNil(c.httpClient)
}

func (s *clientInternalSuite) TestNewClientOptions() {
	hc := &http.Client{}
	c := NewClient("token",
		WithHTTPClient(hc),
		WithHosts("http://api.local", "http://content.local"),
		WithUserAgent("batchbox-test"),
		WithRetryCount(2),
	)
	s.Same(hc, c.httpClient)
	s.Equal("http://api.local", c.apiHost)
	s.Equal("http://content.local", c.contentHost)
	s.Equal("batchbox-test", c.userAgent)
	s.Equal(2, c.retryCount)
}

func (s *clientInternalSuite) TestNewBatchUploaderOptions() {
	stub := &stubUploadClient{}

	u := NewBatchUploader(stub)
	s.Equal(int64(defaultChunkSize), u.chunkSize)
	s.Equal(defaultPollInterval, u.pollInterval)
	s.Equal(defaultPollBudget, u.pollBudget)
	s.NotNil(u.sleep)

	u = NewBatchUploader(stub,
		WithChunkSize(1<<20),
		WithPollInterval(time.Second),
		WithPollBudget(time.Minute),
		WithSleep(func(context.Context, time.Duration) error { return nil }),
	)
	s.Equal(int64(1<<20), u.chunkSize)
	s.Equal(time.Second, u.pollInterval)
	s.Equal(time.Minute, u.pollBudget)
}

func TestClientInternal(t *testing.T) {
	suite.Run(t, new(clientInternalSuite))
}
