package dbx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/batchbox/dbx/options"
)

const (
	// DefaultAPIHost serves the rpc-style endpoints (JSON in, JSON out).
	DefaultAPIHost = "https://api.dropboxapi.com"

	// DefaultContentHost serves the content-style endpoints (raw bytes in the
	// body, request args in the Dropbox-API-Arg header).
	DefaultContentHost = "https://content.dropboxapi.com"

	// defaultRetryCount is the attempt cap for the API-mandated 429 retry.
	defaultRetryCount = 5
)

// Client speaks the Dropbox HTTP API v2 on behalf of one bearer token.
// The zero value is not usable; use NewClient.
type Client struct {
	token       string
	httpClient  *http.Client
	apiHost     string
	contentHost string
	userAgent   string
	retryCount  int
}

// NewClient returns a Client authenticating with the given bearer token.
func NewClient(token string, opts ...options.Option[Client]) *Client {
	c := &Client{
		token:       token,
		httpClient:  &http.Client{},
		apiHost:     DefaultAPIHost,
		contentHost: DefaultContentHost,
		retryCount:  defaultRetryCount,
	}

	options.ApplyOptions(c, opts...)

	return c
}

// rpc posts arg as JSON to an api-host route and decodes the response into
// result (which may be nil when the caller only cares about success).
func (c *Client) rpc(ctx context.Context, op, route string, arg, result any) error {
	payload, err := json.Marshal(arg)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}

	resp, err := c.send(ctx, op, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiHost+"/2/"+route, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	return c.decodeBody(op, resp.Body, result)
}

// contentUpload posts raw bytes to a content-host route, with arg traveling
// in the Dropbox-API-Arg header. The request may need rebuilding for a
// retry: seekable bodies are rewound in place, anything else is buffered in
// memory once.
func (c *Client) contentUpload(ctx context.Context, op, route string, arg any, content io.Reader, result any) error {
	argJSON, err := headerSafeJSON(arg)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}

	newBody, err := replayableBody(content)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}

	resp, err := c.send(ctx, op, func(ctx context.Context) (*http.Request, error) {
		body, err := newBody()
		if err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.contentHost+"/2/"+route, body)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Dropbox-API-Arg", argJSON)
		req.Header.Set("Content-Type", "application/octet-stream")
		return req, nil
	})
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	return c.decodeBody(op, resp.Body, result)
}

// replayableBody returns a factory producing a fresh reader over content for
// each request attempt. Seekers (os.File, bytes.Reader) are rewound to their
// current position; other readers are drained into memory once.
func replayableBody(content io.Reader) (func() (io.Reader, error), error) {
	switch r := content.(type) {
	case nil:
		return func() (io.Reader, error) { return nil, nil }, nil
	case io.ReadSeeker:
		start, err := r.Seek(0, io.SeekCurrent)
		if err != nil {
			return nil, err
		}
		return func() (io.Reader, error) {
			if _, err := r.Seek(start, io.SeekStart); err != nil {
				return nil, err
			}
			return r, nil
		}, nil
	default:
		data, err := io.ReadAll(content)
		if err != nil {
			return nil, err
		}
		return func() (io.Reader, error) { return bytes.NewReader(data), nil }, nil
	}
}

// contentDownload posts to a content-host route and streams the response
// body into w. Result metadata, when requested, is decoded from the
// Dropbox-API-Result response header.
func (c *Client) contentDownload(ctx context.Context, op, route string, arg any, w io.Writer, result any) error {
	argJSON, err := headerSafeJSON(arg)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}

	resp, err := c.send(ctx, op, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.contentHost+"/2/"+route, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Dropbox-API-Arg", argJSON)
		return req, nil
	})
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if result != nil {
		raw := resp.Header.Get("Dropbox-API-Result")
		if raw != "" {
			if err := json.Unmarshal([]byte(raw), result); err != nil {
				return &TransportError{Op: op, Err: err}
			}
		}
	}

	if w != nil {
		if _, err := io.Copy(w, resp.Body); err != nil {
			return &TransportError{Op: op, Err: err}
		}
	}

	return nil
}

// send issues the request built by build, retrying on 429 per the service's
// Retry-After header up to the configured attempt cap. Any other non-2xx
// response is classified and returned as an error; the caller owns the
// response body on success.
func (c *Client) send(ctx context.Context, op string, build func(context.Context) (*http.Request, error)) (*http.Response, error) {
	attempts := c.retryCount
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; ; attempt++ {
		req, err := build(ctx)
		if err != nil {
			return nil, &TransportError{Op: op, Err: err}
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		if c.userAgent != "" {
			req.Header.Set("User-Agent", c.userAgent)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, &TransportError{Op: op, Err: err}
		}

		if resp.StatusCode == http.StatusTooManyRequests && attempt < attempts {
			wait := retryAfter(resp)
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
			if err := sleepContext(ctx, wait); err != nil {
				return nil, err
			}
			continue
		}

		if resp.StatusCode >= 400 {
			defer func() { _ = resp.Body.Close() }()
			return nil, responseError(resp)
		}

		return resp, nil
	}
}

func (c *Client) decodeBody(op string, body io.Reader, result any) error {
	if result == nil {
		_, _ = io.Copy(io.Discard, body)
		return nil
	}
	if err := json.NewDecoder(body).Decode(result); err != nil {
		return &TransportError{Op: op, Err: err}
	}
	return nil
}

// responseError turns a non-2xx response into *AuthError or *APIError,
// attaching the decoded error payload when the body carries one.
func responseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	apiErr := APIError{
		StatusCode: resp.StatusCode,
		RawBody:    body,
	}

	var decoded struct {
		Summary string          `json:"error_summary"`
		Payload json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &decoded); err == nil {
		apiErr.Summary = decoded.Summary
		apiErr.Payload = decoded.Payload
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return &AuthError{APIError: apiErr}
	}
	return &apiErr
}

// retryAfter reads a 429 response's Retry-After header in seconds,
// defaulting to one second when absent or unparsable.
func retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return time.Second
}

// headerSafeJSON marshals v for transport in an HTTP header: any rune
// outside printable ASCII is \u-escaped (as UTF-16 code units, as JSON
// requires).
func headerSafeJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, r := range string(b) {
		if r >= 0x20 && r <= 0x7e {
			sb.WriteRune(r)
			continue
		}
		for _, u := range utf16.Encode([]rune{r}) {
			fmt.Fprintf(&sb, `\u%04x`, u)
		}
	}
	return sb.String(), nil
}

// sleepContext sleeps for d or until ctx is done, whichever comes first.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		// still honor cancellation on a zero wait
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			return nil
		}
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
