// Package realtime keeps the dashboard's push connection open and splits
// incoming payloads into a message stream and an update stream.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/eldtechnologies/aidesk/internal/metrics"
	"github.com/eldtechnologies/aidesk/internal/models"
	"github.com/eldtechnologies/aidesk/internal/token"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	streamBuffer = 256
)

// ErrNotConnected is returned by Send while no connection is open.
var ErrNotConnected = errors.New("realtime channel not connected")

// Event is one received payload. Every payload gets its own ID, so two
// events with identical content are still two events.
type Event struct {
	ID         ulid.ULID
	Type       string
	Payload    json.RawMessage // the JSON object, already unwrapped if it arrived as a string
	ReceivedAt time.Time
}

// Channel is a single long-lived websocket connection.
type Channel struct {
	url    string
	tokens token.Store
	logger zerolog.Logger

	Dialer *websocket.Dialer
	// NewBackOff builds the reconnect policy for each disconnect streak.
	NewBackOff func() backoff.BackOff

	messages chan Event
	updates  chan Event

	latestMessage atomic.Pointer[Event]
	latestUpdate  atomic.Pointer[Event]

	// mu guards conn and serializes writes.
	mu   sync.Mutex
	conn *websocket.Conn
}

// New creates a channel for wsURL. Nothing is dialed until Run.
func New(wsURL string, tokens token.Store, logger zerolog.Logger) *Channel {
	return &Channel{
		url:        wsURL,
		tokens:     tokens,
		logger:     logger,
		Dialer:     &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		NewBackOff: defaultBackOff,
		messages:   make(chan Event, streamBuffer),
		updates:    make(chan Event, streamBuffer),
	}
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0 // retry until the context ends
	return b
}

// Messages delivers every "message" event in arrival order.
func (c *Channel) Messages() <-chan Event { return c.messages }

// Updates delivers every chat update event in arrival order.
func (c *Channel) Updates() <-chan Event { return c.updates }

// LatestMessage returns the most recent message event, or nil.
func (c *Channel) LatestMessage() *Event { return c.latestMessage.Load() }

// LatestUpdate returns the most recent update event, or nil.
func (c *Channel) LatestUpdate() *Event { return c.latestUpdate.Load() }

// Connected reports whether a connection is currently open.
func (c *Channel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Run connects and keeps reconnecting with backoff until ctx is done.
func (c *Channel) Run(ctx context.Context) error {
	b := c.NewBackOff()
	first := true
	for {
		if !first {
			metrics.RealtimeReconnects.Inc()
		}
		first = false

		connected, err := c.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if connected {
			b.Reset()
		}

		wait := b.NextBackOff()
		if wait == backoff.Stop {
			return err
		}
		c.logger.Warn().Err(err).Dur("retry_in", wait).Str("url", c.url).Msg("realtime connection lost")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// session dials once and reads until the connection fails.
func (c *Channel) session(ctx context.Context) (bool, error) {
	header := http.Header{}
	if tok, ok, _ := c.tokens.Read(ctx); ok {
		header.Set("Authorization", "Bearer "+tok)
	}

	conn, _, err := c.Dialer.DialContext(ctx, c.url, header)
	if err != nil {
		return false, err
	}
	c.logger.Info().Str("url", c.url).Msg("realtime connected")

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	done := make(chan struct{})
	defer func() {
		close(done)
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		conn.Close()
	}()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go c.keepAlive(ctx, conn, done)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return true, err
		}
		c.dispatch(ctx, data)
	}
}

// keepAlive pings the server and closes the connection when ctx ends so the
// blocked read returns.
func (c *Channel) keepAlive(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			c.mu.Lock()
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			c.mu.Unlock()
			conn.Close()
			return
		case <-ticker.C:
			c.mu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			c.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// dispatch routes one payload. Malformed payloads and unknown types are
// logged and dropped; they never affect the connection.
func (c *Channel) dispatch(ctx context.Context, data []byte) {
	typ, obj, err := models.EventType(data)
	if err != nil {
		metrics.RealtimeDropped.WithLabelValues("malformed").Inc()
		c.logger.Warn().Err(err).Int("bytes", len(data)).Msg("dropping malformed realtime payload")
		return
	}

	ev := Event{
		ID:         ulid.Make(),
		Type:       typ,
		Payload:    json.RawMessage(obj),
		ReceivedAt: time.Now(),
	}

	var stream chan Event
	switch {
	case typ == models.EventMessage:
		c.latestMessage.Store(&ev)
		stream = c.messages
	case models.IsUpdateEvent(typ):
		c.latestUpdate.Store(&ev)
		stream = c.updates
	default:
		metrics.RealtimeDropped.WithLabelValues("unknown_type").Inc()
		c.logger.Debug().Str("type", typ).Msg("ignoring realtime event")
		return
	}

	metrics.RealtimeEvents.WithLabelValues(typ).Inc()
	select {
	case stream <- ev:
	case <-ctx.Done():
	}
}

// Send writes payload as JSON on the open connection.
func (c *Channel) Send(ctx context.Context, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}

	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	c.conn.SetWriteDeadline(deadline)
	return c.conn.WriteMessage(websocket.TextMessage, data)
}
