// Package notify carries short user-facing notices (the dashboard's toasts)
// from the client layers to whatever presents them.
package notify

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Level of a notice.
type Level string

const (
	Info  Level = "info"
	Error Level = "error"
)

// Notice is one user-facing message.
type Notice struct {
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Notifier receives user-facing notices.
type Notifier interface {
	Notify(level Level, message string)
}

// Discard drops every notice.
type Discard struct{}

func (Discard) Notify(Level, string) {}

// Log writes notices to a zerolog logger. The CLI uses it as its only sink.
type Log struct {
	Logger zerolog.Logger
}

func (l Log) Notify(level Level, message string) {
	ev := l.Logger.Info()
	if level == Error {
		ev = l.Logger.Warn()
	}
	ev.Str("type", "notice").Msg(message)
}

// Queue keeps the most recent notices for a presentation layer to poll.
type Queue struct {
	mu      sync.Mutex
	notices []Notice
	limit   int
	now     func() time.Time
}

// NewQueue creates a queue holding at most limit notices.
func NewQueue(limit int) *Queue {
	if limit <= 0 {
		limit = 50
	}
	return &Queue{limit: limit, now: time.Now}
}

func (q *Queue) Notify(level Level, message string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.notices = append(q.notices, Notice{Level: level, Message: message, At: q.now()})
	if over := len(q.notices) - q.limit; over > 0 {
		q.notices = append(q.notices[:0:0], q.notices[over:]...)
	}
}

// Drain returns and removes all queued notices, oldest first.
func (q *Queue) Drain() []Notice {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := q.notices
	q.notices = nil
	if out == nil {
		out = []Notice{}
	}
	return out
}

// Multi fans a notice out to several notifiers.
type Multi []Notifier

func (m Multi) Notify(level Level, message string) {
	for _, n := range m {
		n.Notify(level, message)
	}
}
