package chatsync

import (
	"context"

	"github.com/eldtechnologies/aidesk/internal/models"
)

// Echo is the payload pushed to the realtime channel after a send so other
// viewers see the message without polling.
type Echo struct {
	Type        string             `json:"type"`
	ID          int                `json:"id"`
	ChatID      int                `json:"chat_id"`
	Message     string             `json:"message"`
	MessageType models.MessageType `json:"message_type"`
	AI          bool               `json:"ai"`
	IsImage     bool               `json:"is_image"`
	CreatedAt   string             `json:"created_at"`
}

// SendMessage sends text to the selected chat as the operator, appends the
// created message, then echoes it to the realtime channel with the ids the
// server assigned. Without a selection it does nothing and returns
// ErrNoSelection.
func (c *Core) SendMessage(ctx context.Context, text string) (models.Message, error) {
	c.mu.Lock()
	if c.selected == nil {
		c.mu.Unlock()
		return models.Message{}, ErrNoSelection
	}
	chatID := c.selected.ID
	c.mu.Unlock()

	msg, err := c.api.SendMessage(ctx, chatID, text, false)
	if err != nil {
		return models.Message{}, err
	}
	if msg.Message == "" {
		msg.Message = text
	}

	c.mu.Lock()
	if c.isSelectedLocked(msg.ChatID) && !c.hasMessageLocked(msg.ID) {
		c.messages = append(c.messages, msg)
	}
	c.mutateLocked(msg.ChatID, func(ch *models.Chat) {
		ch.LastMessage = msg.Message
		ch.LastMessageTime = msg.CreatedAt
		ch.Waiting = false
	})
	c.recountLocked()
	c.mu.Unlock()

	if c.sender != nil {
		echo := Echo{
			Type:        models.EventMessage,
			ID:          msg.ID,
			ChatID:      msg.ChatID,
			Message:     msg.Message,
			MessageType: msg.MessageType,
			AI:          msg.AI,
			IsImage:     msg.IsImage,
			CreatedAt:   msg.CreatedAt,
		}
		if echo.MessageType == "" {
			echo.MessageType = models.Answer
		}
		if err := c.sender.Send(ctx, echo); err != nil {
			c.logger.Warn().Err(err).Int("chat_id", msg.ChatID).Int("message_id", msg.ID).Msg("realtime echo failed")
		}
	}
	return msg, nil
}

// hasMessageLocked reports whether a message with a known id is already held.
func (c *Core) hasMessageLocked(id int) bool {
	if id == 0 {
		return false
	}
	for _, m := range c.messages {
		if m.ID == id {
			return true
		}
	}
	return false
}
