package chatsync

import (
	"context"

	"github.com/eldtechnologies/aidesk/internal/models"
	"github.com/eldtechnologies/aidesk/internal/realtime"
)

// Events is the pair of realtime streams the core consumes.
// *realtime.Channel satisfies it.
type Events interface {
	Messages() <-chan realtime.Event
	Updates() <-chan realtime.Event
}

// Run applies realtime events until ctx is done. Each stream is handled in
// arrival order. Malformed events are logged and dropped.
func (c *Core) Run(ctx context.Context, events Events) error {
	msgs, updates := events.Messages(), events.Updates()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-msgs:
			if err := c.HandleMessageEvent(ev.Payload); err != nil {
				c.logger.Warn().Err(err).Str("event_id", ev.ID.String()).Msg("dropping message event")
			}
		case ev := <-updates:
			if err := c.HandleUpdateEvent(ctx, ev.Payload); err != nil {
				c.logger.Warn().Err(err).Str("event_id", ev.ID.String()).Str("type", ev.Type).Msg("dropping update event")
			}
		}
	}
}

// HandleMessageEvent applies a pushed chat line. The payload may be an object
// or a JSON string holding one. The line is appended only when its chat is
// selected; the chat's preview is updated either way.
func (c *Core) HandleMessageEvent(payload []byte) error {
	ev, err := models.ParseMessageEvent(payload)
	if err != nil {
		return err
	}
	if ev.Type != models.EventMessage {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.isSelectedLocked(ev.ChatID) && !c.hasMessageLocked(ev.ID) {
		c.messages = append(c.messages, ev.ToMessage())
	}
	c.mutateLocked(ev.ChatID, func(ch *models.Chat) {
		ch.LastMessage = ev.Message
		ch.LastMessageTime = ev.CreatedAt
	})
	return nil
}

// HandleUpdateEvent applies a pushed chat mutation. Every type except
// chat_tags_updated also refreshes the stats, subject to the throttle.
func (c *Core) HandleUpdateEvent(ctx context.Context, payload []byte) error {
	ev, err := models.ParseUpdateEvent(payload)
	if err != nil {
		return err
	}

	c.mu.Lock()
	switch ev.Type {
	case models.EventChatDeleted:
		c.removeLocked(ev.ChatID)

	case models.EventChatAIUpdated:
		if ev.AI != nil {
			c.mutateLocked(ev.ChatID, func(ch *models.Chat) { ch.AI = *ev.AI })
		}

	case models.EventChatCreated:
		created := ev.Chat.Clone()
		if !c.mutateLocked(created.ID, func(ch *models.Chat) { *ch = created.Clone() }) {
			c.chats = append([]models.Chat{created}, c.chats...)
		}
		c.recountLocked()

	case models.EventChatUpdate:
		c.mutateLocked(ev.ChatID, func(ch *models.Chat) {
			if ev.Waiting != nil {
				ch.Waiting = *ev.Waiting
			}
			if ev.AI != nil {
				ch.AI = *ev.AI
			}
		})
		c.recountLocked()

	case models.EventChatTagsUpdated:
		c.mutateLocked(ev.ChatID, func(ch *models.Chat) { ch.Tags = append([]string{}, ev.Tags...) })
		c.mu.Unlock()
		return nil

	default:
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	c.FetchStats(ctx)
	return nil
}
