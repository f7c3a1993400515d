// Package transport issues authenticated requests to the dashboard API.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/eldtechnologies/aidesk/internal/metrics"
	"github.com/eldtechnologies/aidesk/internal/notify"
	"github.com/eldtechnologies/aidesk/internal/token"
)

// SessionExpiredMessage is the notice shown once when the server rejects the token.
const SessionExpiredMessage = "session expired, please re-authenticate"

// notAuthenticatedBody is the payload of the synthetic response returned when
// no token is stored.
var notAuthenticatedBody = []byte(`{"detail":"Not authenticated"}`)

// Request describes one API call. Body is JSON-encoded unless it is an
// io.Reader, which is sent raw (multipart forms, binary uploads).
type Request struct {
	Method string
	Path   string
	Body   any
	Header http.Header
}

// Response is the result of a request. It is returned for every HTTP status;
// only network-level failures produce an error.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte

	// Synthetic is set when the response was produced locally without a network call.
	Synthetic bool
}

// OK reports whether the status is 2xx.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Unauthorized reports whether the request was rejected for lack of a valid token.
func (r *Response) Unauthorized() bool {
	return r.StatusCode == http.StatusUnauthorized
}

// Client is the authenticated transport.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client

	tokens   token.Store
	notifier notify.Notifier
	logger   zerolog.Logger

	// expiredNotified makes the session-expired notice one-shot until a
	// request succeeds again.
	expiredNotified atomic.Bool
}

// New creates a transport for baseURL.
func New(baseURL string, tokens token.Store, notifier notify.Notifier, logger zerolog.Logger) *Client {
	if notifier == nil {
		notifier = notify.Discard{}
	}
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		tokens:     tokens,
		notifier:   notifier,
		logger:     logger,
	}
}

// Tokens returns the token store the client reads from.
func (c *Client) Tokens() token.Store {
	return c.tokens
}

// Do performs the request. Without a stored token it never touches the
// network and returns a synthetic 401. A 401 from the server clears the
// stored token and emits a one-shot notice; the response is still returned
// unmodified and nothing is retried.
func (c *Client) Do(ctx context.Context, r Request) (*Response, error) {
	tok, ok, err := c.tokens.Read(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("token store read failed")
	}
	if !ok || tok == "" {
		metrics.AuthFailures.Inc()
		c.logger.Debug().Str("method", r.Method).Str("path", r.Path).Msg("no token, request skipped")
		return &Response{
			StatusCode: http.StatusUnauthorized,
			Header:     http.Header{"Content-Type": []string{"application/json"}},
			Body:       append([]byte(nil), notAuthenticatedBody...),
			Synthetic:  true,
		}, nil
	}

	var body io.Reader
	raw := false
	switch b := r.Body.(type) {
	case nil:
	case io.Reader:
		body = b
		raw = true
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, c.BaseURL+r.Path, body)
	if err != nil {
		return nil, err
	}

	if !raw {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, values := range r.Header {
		req.Header.Del(key)
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if req.Header.Get("X-Request-ID") == "" {
		req.Header.Set("X-Request-ID", uuid.NewString())
	}
	req.Header.Set("Authorization", "Bearer "+tok)

	start := time.Now()
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		metrics.APIRequestsTotal.WithLabelValues(r.Method, "error").Inc()
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	metrics.APIRequestDuration.Observe(time.Since(start).Seconds())
	metrics.APIRequestsTotal.WithLabelValues(r.Method, strconv.Itoa(resp.StatusCode)).Inc()

	c.logger.Debug().
		Str("method", r.Method).
		Str("path", r.Path).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Str("request_id", req.Header.Get("X-Request-ID")).
		Msg("api request")

	out := &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: respBody}

	if out.Unauthorized() {
		metrics.AuthFailures.Inc()
		if err := c.tokens.Clear(ctx); err != nil {
			c.logger.Warn().Err(err).Msg("token store clear failed")
		}
		if c.expiredNotified.CompareAndSwap(false, true) {
			c.logger.Warn().Str("path", r.Path).Msg("server rejected token, cleared")
			c.notifier.Notify(notify.Error, SessionExpiredMessage)
		}
	} else {
		c.expiredNotified.Store(false)
	}

	return out, nil
}
