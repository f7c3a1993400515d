package aidesk

import (
	"context"
	"fmt"
	"net/http"

	"github.com/eldtechnologies/aidesk/internal/models"
	"github.com/eldtechnologies/aidesk/internal/transport"
)

// ListMessages returns a chat's messages in server order.
func (c *Client) ListMessages(ctx context.Context, chatID int) ([]models.Message, bool) {
	body, err := c.read(ctx, "list messages", transport.Request{
		Method: http.MethodGet,
		Path:   fmt.Sprintf("/chats/%d/messages", chatID),
	})
	if err == nil {
		var msgs []models.Message
		if msgs, err = models.ParseMessages(body); err == nil {
			return msgs, true
		}
	}
	c.fail("list messages", "Failed to load messages", err)
	return []models.Message{}, false
}

// SendMessageRequest is the body of POST /messages.
type SendMessageRequest struct {
	ChatID      int                `json:"chat_id"`
	Message     string             `json:"message"`
	MessageType models.MessageType `json:"message_type"`
	AI          bool               `json:"ai"`
}

// SendMessage posts an answer to a chat, then clears the chat's waiting flag.
// A failure of the second call is logged only; the created message is still
// returned.
func (c *Client) SendMessage(ctx context.Context, chatID int, text string, ai bool) (models.Message, error) {
	body, err := c.write(ctx, "send message", transport.Request{
		Method: http.MethodPost,
		Path:   "/messages",
		Body: SendMessageRequest{
			ChatID:      chatID,
			Message:     text,
			MessageType: models.Answer,
			AI:          ai,
		},
	})
	if err != nil {
		c.fail("send message", "Failed to send message", err)
		return models.Message{}, err
	}

	msg, err := models.ParseMessage(body)
	if err != nil {
		c.fail("send message", "Failed to send message", err)
		return models.Message{}, err
	}
	if msg.ChatID == 0 {
		msg.ChatID = chatID
	}

	if _, err := c.write(ctx, "clear waiting", transport.Request{
		Method: http.MethodPut,
		Path:   fmt.Sprintf("/chats/%d/waiting", chatID),
		Body:   WaitingRequest{Waiting: false},
	}); err != nil {
		c.logger.Warn().Err(err).Int("chat_id", chatID).Msg("waiting flag not cleared after send")
	}

	return msg, nil
}
