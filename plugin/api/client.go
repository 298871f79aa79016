// Package api is the HTTP client for the ExecuMate backend endpoints the
// chat client consumes.
package api

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"

	clienterrors "github.com/seatyyy/ExecuMate/internal/errors"
	"github.com/seatyyy/ExecuMate/internal/timeout"
	"github.com/seatyyy/ExecuMate/plugin/calendar"
)

// maxBodySize caps how much of a response body is read.
const maxBodySize = 1 << 20

// NewHTTPClient returns an http.Client with the given timeout.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
			MaxIdleConns:        20,
			MaxIdleConnsPerHost: 5,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// Client calls the backend on behalf of one user.
type Client struct {
	base     *url.URL
	userID   string
	provider string
	http     *http.Client
	logger   *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a client for serverURL.
func NewClient(serverURL, userID, provider string, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(serverURL, "/"))
	if err != nil {
		return nil, errors.Wrapf(err, "invalid server url %q", serverURL)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, errors.Errorf("server url %q must use http or https", serverURL)
	}
	if userID == "" {
		return nil, errors.New("user id is required")
	}
	if provider == "" {
		provider = "google"
	}

	c := &Client{
		base:     base,
		userID:   userID,
		provider: provider,
		http:     NewHTTPClient(timeout.HTTPTimeout),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type authorizeResponse struct {
	AuthURL string `json:"auth_url"`
	Error   string `json:"error,omitempty"`
}

type statusResponse struct {
	Authenticated bool   `json:"authenticated"`
	Error         string `json:"error,omitempty"`
}

type logoutRequest struct {
	UserID string `json:"user_id"`
}

type logoutResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// AuthorizationURL returns the provider consent url.
// GET /api/authorize/{provider}?user_id=
func (c *Client) AuthorizationURL(ctx context.Context) (string, error) {
	var out authorizeResponse
	if err := c.do(ctx, http.MethodGet, "/api/authorize/"+url.PathEscape(c.provider), c.userQuery(), nil, &out); err != nil {
		return "", err
	}
	if out.Error != "" {
		return "", clienterrors.Protocol(out.Error)
	}
	if out.AuthURL == "" {
		return "", clienterrors.Protocol("authorization url missing from response")
	}
	return out.AuthURL, nil
}

// IsAuthorized reports whether the backend holds calendar credentials.
// GET /api/auth/status?user_id=
func (c *Client) IsAuthorized(ctx context.Context) (bool, error) {
	var out statusResponse
	if err := c.do(ctx, http.MethodGet, "/api/auth/status", c.userQuery(), nil, &out); err != nil {
		return false, err
	}
	if out.Error != "" {
		return false, clienterrors.Protocol(out.Error)
	}
	return out.Authenticated, nil
}

// Logout drops the user's calendar credentials on the backend.
// POST /api/auth/logout
func (c *Client) Logout(ctx context.Context) error {
	var out logoutResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/logout", nil, logoutRequest{UserID: c.userID}, &out); err != nil {
		return err
	}
	if out.Error != "" {
		return clienterrors.Protocol(out.Error)
	}
	if !out.Success {
		return clienterrors.Protocol("logout was not accepted")
	}
	return nil
}

// CalendarEvents fetches the events of range r.
// GET /api/calendar/events?user_id=&range=
func (c *Client) CalendarEvents(ctx context.Context, r calendar.Range) (*calendar.Payload, error) {
	q := c.userQuery()
	q.Set("range", r.String())

	var out calendar.Payload
	if err := c.do(ctx, http.MethodGet, "/api/calendar/events", q, nil, &out); err != nil {
		return nil, err
	}
	if out.Error != "" {
		return nil, clienterrors.Protocol(out.Error)
	}
	return &out, nil
}

func (c *Client) userQuery() url.Values {
	q := url.Values{}
	q.Set("user_id", c.userID)
	return q
}

// errorBody is the structured error shape every endpoint may return.
type errorBody struct {
	Error string `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := *c.base
	u.Path = c.base.Path + path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return clienterrors.InvalidArgument(errors.Wrap(err, "encode request").Error())
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return clienterrors.InvalidArgument(errors.Wrap(err, "build request").Error())
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return classify(ctx, method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return clienterrors.Transport(fmt.Sprintf("%s %s: read body", method, path), err)
	}

	c.logger.Debug("backend request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var eb errorBody
		if json.Unmarshal(data, &eb) == nil && eb.Error != "" {
			return clienterrors.Protocol(eb.Error).WithContext("status", resp.StatusCode)
		}
		return clienterrors.Transport(fmt.Sprintf("%s %s: unexpected status %d", method, path, resp.StatusCode), nil).
			WithContext("status", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return clienterrors.Transport(fmt.Sprintf("%s %s: malformed response", method, path),
			errors.Wrap(err, "decode response"))
	}
	return nil
}

// classify maps an http.Client error to the client taxonomy.
func classify(ctx context.Context, method, path string, err error) error {
	msg := fmt.Sprintf("%s %s", method, path)
	switch {
	case stderrors.Is(ctx.Err(), context.Canceled):
		return clienterrors.Canceled(msg, err)
	case stderrors.Is(err, context.DeadlineExceeded) || isTimeout(err):
		return clienterrors.Timeout(msg + ": " + err.Error())
	default:
		return clienterrors.Transport(msg, err)
	}
}

func isTimeout(err error) bool {
	var te interface{ Timeout() bool }
	return stderrors.As(err, &te) && te.Timeout()
}
