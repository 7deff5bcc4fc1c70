package dbx

import (
	"net/http"

	"github.com/batchbox/dbx/options"
)

const (
	optionNameHTTPClient = "httpClient"
	optionNameHosts      = "hosts"
	optionNameUserAgent  = "userAgent"
	optionNameRetryCount = "retryCount"
)

// WithHTTPClient sets the underlying *http.Client. Useful when requests must
// go through a proxy or carry custom transport settings.
func WithHTTPClient(client *http.Client) options.Option[Client] {
	return &httpClientOpt{client: client}
}

type httpClientOpt struct {
	client *http.Client
}

func (o *httpClientOpt) Apply(c *Client) {
	c.httpClient = o.client
}

func (o *httpClientOpt) OptionName() string {
	return optionNameHTTPClient
}

// WithHosts overrides the api and content host URLs. Useful for pointing the
// client at a test server.
func WithHosts(apiHost, contentHost string) options.Option[Client] {
	return &hostsOpt{apiHost: apiHost, contentHost: contentHost}
}

type hostsOpt struct {
	apiHost     string
	contentHost string
}

func (o *hostsOpt) Apply(c *Client) {
	c.apiHost = o.apiHost
	c.contentHost = o.contentHost
}

func (o *hostsOpt) OptionName() string {
	return optionNameHosts
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) options.Option[Client] {
	return &userAgentOpt{ua: ua}
}

type userAgentOpt struct {
	ua string
}

func (o *userAgentOpt) Apply(c *Client) {
	c.userAgent = o.ua
}

func (o *userAgentOpt) OptionName() string {
	return optionNameUserAgent
}

// WithRetryCount sets the attempt cap for rate-limited requests.
// Default is 5.
func WithRetryCount(count int) options.Option[Client] {
	return &retryCountOpt{count: count}
}

type retryCountOpt struct {
	count int
}

func (o *retryCountOpt) Apply(c *Client) {
	c.retryCount = o.count
}

func (o *retryCountOpt) OptionName() string {
	return optionNameRetryCount
}
