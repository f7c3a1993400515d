// Package aidesk provides a client for the AI-manager dashboard API.
//
// Read operations (chat and message lists, stats, AI context) never fail: on
// any error they log, notify the operator and return an empty value with
// ok=false. Write operations log, notify and return the error so callers do
// not assume the mutation applied.
package aidesk

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/eldtechnologies/aidesk/internal/notify"
	"github.com/eldtechnologies/aidesk/internal/transport"
)

// Doer is the transport the client sends requests through.
type Doer interface {
	Do(ctx context.Context, r transport.Request) (*transport.Response, error)
}

// APIError is returned by write operations for non-2xx responses.
type APIError struct {
	Op     string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: api error %d: %s", e.Op, e.Status, e.Body)
}

// IsUnauthorized reports whether err is an APIError with status 401.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

// Client is a dashboard API client.
type Client struct {
	transport Doer
	notifier  notify.Notifier
	logger    zerolog.Logger

	// RetryDelay is the pause before the single retry of a read.
	RetryDelay time.Duration
}

// NewClient creates a new dashboard client on top of an authenticated transport.
func NewClient(t Doer, notifier notify.Notifier, logger zerolog.Logger) *Client {
	if notifier == nil {
		notifier = notify.Discard{}
	}
	return &Client{
		transport:  t,
		notifier:   notifier,
		logger:     logger,
		RetryDelay: 300 * time.Millisecond,
	}
}

// write performs a mutating request. Non-2xx responses become *APIError.
func (c *Client) write(ctx context.Context, op string, r transport.Request) ([]byte, error) {
	resp, err := c.transport.Do(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !resp.OK() {
		return nil, &APIError{Op: op, Status: resp.StatusCode, Body: string(resp.Body)}
	}
	return resp.Body, nil
}

// read performs an idempotent request, retrying once on transport errors.
// HTTP error statuses are not retried.
func (c *Client) read(ctx context.Context, op string, r transport.Request) ([]byte, error) {
	var resp *transport.Response
	attempt := func() error {
		var err error
		resp, err = c.transport.Do(ctx, r)
		return err
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(c.RetryDelay), 1),
		ctx,
	)
	notifyRetry := func(err error, wait time.Duration) {
		c.logger.Debug().Err(err).Str("op", op).Dur("wait", wait).Msg("retrying read")
	}
	if err := backoff.RetryNotify(attempt, policy, notifyRetry); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !resp.OK() {
		return nil, &APIError{Op: op, Status: resp.StatusCode, Body: string(resp.Body)}
	}
	return resp.Body, nil
}

// fail logs err and shows the operator a short notice.
func (c *Client) fail(op, notice string, err error) {
	c.logger.Error().Err(err).Str("op", op).Msg("dashboard request failed")
	c.notifier.Notify(notify.Error, notice)
}
