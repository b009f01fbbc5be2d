// Package facebook is the Graph API adapter behind the account and
// reporting ports: cursor-paginated entity listings, node remote-reads,
// and the asynchronous insights report lifecycle over HTTP.
package facebook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client defaults.
const (
	defaultBaseURL  = "https://graph.facebook.com/v18.0"
	defaultTimeout  = 60 * time.Second
	defaultPageSize = 100
)

// ErrRequestFailed is the sentinel wrapped by every failed Graph API call.
var ErrRequestFailed = errors.New("graph api request failed")

// GraphError is the structured error body the Graph API returns.
type GraphError struct {
	Message   string `json:"message"`
	Type      string `json:"type"`
	Code      int    `json:"code"`
	Subcode   int    `json:"error_subcode"`
	TraceID   string `json:"fbtrace_id"`
	Transient bool   `json:"is_transient"`
}

// Error implements the error interface.
func (e *GraphError) Error() string {
	return fmt.Sprintf("%s (code %d, subcode %d): %s", e.Type, e.Code, e.Subcode, e.Message)
}

// Retryable reports whether the failure is transient on the platform side
// and worth resubmitting. Codes 1, 2 (unknown/service), 4, 17, 32, 613
// (rate limits) are the platform's documented transient classes.
func (e *GraphError) Retryable() bool {
	if e.Transient {
		return true
	}

	switch e.Code {
	case 1, 2, 4, 17, 32, 613:
		return true
	default:
		return false
	}
}

// Client is an authenticated handle on one ad account. It implements the
// streams.Account and insights.Service ports.
type Client struct {
	httpClient *http.Client
	baseURL    string
	accountID  string
	token      string
	pageSize   int
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client. Intended for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBaseURL overrides the Graph API base URL. Intended for tests.
func WithBaseURL(base string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(base, "/") }
}

// WithPageSize overrides the per-request page size.
func WithPageSize(size int) Option {
	return func(c *Client) { c.pageSize = size }
}

// NewClient creates a client for the given ad account. The token must
// already be authorized for the account; no auth flow happens here.
func NewClient(accountID, token string, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    defaultBaseURL,
		accountID:  accountID,
		token:      token,
		pageSize:   defaultPageSize,
		logger:     logger,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// accountPath prefixes an edge with the act_<id> account node.
func (c *Client) accountPath(edge string) string {
	return fmt.Sprintf("act_%s/%s", c.accountID, edge)
}

// get performs a GET against path with the given query, decoding the JSON
// body into out. Numbers decode as json.Number so integral values survive.
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, c.baseURL+"/"+path, query, out)
}

// getURL performs a GET against a fully-formed URL, as returned in paging
// links. The access token is already embedded in those links.
func (c *Client) getURL(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("%w: build request: %w", ErrRequestFailed, err)
	}

	return c.send(req, out)
}

// post performs a form POST against path, decoding the JSON body into out.
func (c *Client) post(ctx context.Context, path string, form url.Values, out any) error {
	form.Set("access_token", c.token)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/"+path, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("%w: build request: %w", ErrRequestFailed, err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return c.send(req, out)
}

func (c *Client) do(ctx context.Context, method, rawURL string, query url.Values, out any) error {
	if query == nil {
		query = url.Values{}
	}

	query.Set("access_token", c.token)

	req, err := http.NewRequestWithContext(ctx, method, rawURL+"?"+query.Encode(), nil)
	if err != nil {
		return fmt.Errorf("%w: build request: %w", ErrRequestFailed, err)
	}

	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read body: %w", ErrRequestFailed, err)
	}

	if resp.StatusCode != http.StatusOK {
		return c.decodeError(resp.StatusCode, body)
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %w", ErrRequestFailed, err)
	}

	return nil
}

// decodeError extracts the structured Graph error when present, falling
// back to the raw status for unstructured failures such as proxies.
func (c *Client) decodeError(status int, body []byte) error {
	var envelope struct {
		Error *GraphError `json:"error"`
	}

	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != nil {
		// 5xx responses are transient regardless of the error code.
		if status >= http.StatusInternalServerError {
			envelope.Error.Transient = true
		}

		c.logger.Warn("Graph API error",
			slog.Int("status", status),
			slog.Int("code", envelope.Error.Code),
			slog.String("message", envelope.Error.Message),
			slog.String("fbtrace_id", envelope.Error.TraceID),
		)

		return fmt.Errorf("%w: %w", ErrRequestFailed, envelope.Error)
	}

	// Unstructured failure, e.g. a proxy or gateway. Keep the error type
	// uniform so callers classify transience one way.
	return fmt.Errorf("%w: %w", ErrRequestFailed, &GraphError{
		Message:   http.StatusText(status),
		Type:      "HTTPError",
		Code:      status,
		Transient: status >= http.StatusInternalServerError,
	})
}
