// Package chatsync owns the client-side view of the dashboard: the chat list,
// the selected chat and its messages, the unread count and the aggregate
// stats. It merges REST results with realtime events into one consistent
// state that presentation layers read through Snapshot.
//
// The mutex is held only while state is reduced. Network calls run with the
// lock released, so results that arrive late are checked against generation
// counters before they are applied.
package chatsync

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/eldtechnologies/aidesk/internal/models"
)

// DefaultStatsInterval is the minimum spacing between two stats fetches.
const DefaultStatsInterval = 2000 * time.Millisecond

var (
	ErrSelectionInProgress = errors.New("chat selection already in progress")
	ErrChatNotFound        = errors.New("chat not found")
	ErrNoSelection         = errors.New("no chat selected")
	ErrSelectionSuperseded = errors.New("selection superseded")
)

// API is the dashboard client the core reads and writes through.
// *aidesk.Client satisfies it.
type API interface {
	ListChats(ctx context.Context) ([]models.Chat, bool)
	ListMessages(ctx context.Context, chatID int) ([]models.Message, bool)
	SendMessage(ctx context.Context, chatID int, text string, ai bool) (models.Message, error)
	MarkAsRead(ctx context.Context, chatID int) error
	SetAI(ctx context.Context, chatID int, enabled bool) (models.Chat, error)
	AddTag(ctx context.Context, chatID int, tag string) (models.TagsResult, error)
	RemoveTag(ctx context.Context, chatID int, tag string) (models.TagsResult, error)
	DeleteChat(ctx context.Context, chatID int) error
	SyncVK(ctx context.Context, chatID int) (models.VKSyncResult, error)
	Stats(ctx context.Context) (models.Stats, bool)
	AIContext(ctx context.Context) (models.AIContext, bool)
	UpdateAIContext(ctx context.Context, aiCtx models.AIContext) (models.AIContext, error)
}

// Sender pushes a payload to the realtime channel.
type Sender interface {
	Send(ctx context.Context, payload any) error
}

// State is a point-in-time copy of the core's state.
type State struct {
	Chats       []models.Chat    `json:"chats"`
	Selected    *models.Chat     `json:"selectedChat"`
	Messages    []models.Message `json:"messages"`
	UnreadCount int              `json:"unreadCount"`
	Stats       models.Stats     `json:"stats"`
}

// Option configures a Core.
type Option func(*Core)

// WithClock replaces time.Now, for the stats throttle.
func WithClock(now func() time.Time) Option {
	return func(c *Core) { c.now = now }
}

// WithStatsInterval overrides DefaultStatsInterval.
func WithStatsInterval(d time.Duration) Option {
	return func(c *Core) { c.statsInterval = d }
}

// Core is the synchronization core. Create it with New.
type Core struct {
	api    API
	sender Sender
	logger zerolog.Logger

	now           func() time.Time
	statsInterval time.Duration

	selecting atomic.Bool

	mu       sync.Mutex
	chats    []models.Chat
	selected *models.Chat
	messages []models.Message
	unread   int
	stats    models.Stats

	refreshStarted uint64
	refreshApplied uint64
	selectGen      uint64
	pendingID      int

	lastStats     time.Time
	statsInFlight bool
}

// New creates a core with empty state. sender may be nil, in which case sent
// messages are not echoed.
func New(api API, sender Sender, logger zerolog.Logger, opts ...Option) *Core {
	c := &Core{
		api:           api,
		sender:        sender,
		logger:        logger.With().Str("component", "chatsync").Logger(),
		now:           time.Now,
		statsInterval: DefaultStatsInterval,
		chats:         []models.Chat{},
		messages:      []models.Message{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Snapshot returns a deep copy of the current state.
func (c *Core) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := State{
		Chats:       make([]models.Chat, len(c.chats)),
		Messages:    append([]models.Message{}, c.messages...),
		UnreadCount: c.unread,
		Stats:       c.stats,
	}
	for i, ch := range c.chats {
		s.Chats[i] = ch.Clone()
	}
	if c.selected != nil {
		sel := c.selected.Clone()
		s.Selected = &sel
	}
	return s
}

// Chat returns a copy of the chat with the given id.
func (c *Core) Chat(id int) (models.Chat, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.indexLocked(id); i >= 0 {
		return c.chats[i].Clone(), true
	}
	return models.Chat{}, false
}

func (c *Core) indexLocked(id int) int {
	for i := range c.chats {
		if c.chats[i].ID == id {
			return i
		}
	}
	return -1
}

// mutateLocked applies fn to the chat with the given id and to the selected
// copy of it. It reports whether the chat was found in the list.
func (c *Core) mutateLocked(id int, fn func(*models.Chat)) bool {
	if c.selected != nil && c.selected.ID == id {
		fn(c.selected)
	}
	i := c.indexLocked(id)
	if i < 0 {
		return false
	}
	fn(&c.chats[i])
	return true
}

func (c *Core) recountLocked() {
	n := 0
	for _, ch := range c.chats {
		if ch.Waiting {
			n++
		}
	}
	c.unread = n
}

func (c *Core) clearSelectionLocked() {
	c.selected = nil
	c.messages = []models.Message{}
}

func (c *Core) isSelectedLocked(id int) bool {
	return c.selected != nil && c.selected.ID == id
}
