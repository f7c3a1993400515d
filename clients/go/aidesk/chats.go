package aidesk

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/eldtechnologies/aidesk/internal/models"
	"github.com/eldtechnologies/aidesk/internal/notify"
	"github.com/eldtechnologies/aidesk/internal/transport"
)

// ListChats returns all chats, newest first as the server orders them.
func (c *Client) ListChats(ctx context.Context) ([]models.Chat, bool) {
	body, err := c.read(ctx, "list chats", transport.Request{Method: http.MethodGet, Path: "/chats"})
	if err == nil {
		var chats []models.Chat
		if chats, err = models.ParseChats(body); err == nil {
			return chats, true
		}
	}
	c.fail("list chats", "Failed to load chats", err)
	return []models.Chat{}, false
}

// WaitingRequest is the body of PUT /chats/{id}/waiting.
type WaitingRequest struct {
	Waiting bool `json:"waiting"`
}

// SetWaiting updates a chat's waiting flag.
func (c *Client) SetWaiting(ctx context.Context, chatID int, waiting bool) error {
	_, err := c.write(ctx, "set waiting", transport.Request{
		Method: http.MethodPut,
		Path:   fmt.Sprintf("/chats/%d/waiting", chatID),
		Body:   WaitingRequest{Waiting: waiting},
	})
	if err != nil {
		c.fail("set waiting", "Failed to update chat", err)
	}
	return err
}

// MarkAsRead clears a chat's waiting flag.
func (c *Client) MarkAsRead(ctx context.Context, chatID int) error {
	_, err := c.write(ctx, "mark as read", transport.Request{
		Method: http.MethodPut,
		Path:   fmt.Sprintf("/chats/%d/waiting", chatID),
		Body:   WaitingRequest{Waiting: false},
	})
	if err != nil {
		c.fail("mark as read", "Failed to mark chat as read", err)
	}
	return err
}

// AIRequest is the body of PUT /chats/{id}/ai.
type AIRequest struct {
	AI bool `json:"ai"`
}

// SetAI enables or disables automated replies for a chat and returns the updated chat.
func (c *Client) SetAI(ctx context.Context, chatID int, enabled bool) (models.Chat, error) {
	body, err := c.write(ctx, "set ai", transport.Request{
		Method: http.MethodPut,
		Path:   fmt.Sprintf("/chats/%d/ai", chatID),
		Body:   AIRequest{AI: enabled},
	})
	if err != nil {
		c.fail("set ai", "Failed to toggle AI", err)
		return models.Chat{}, err
	}
	chat, err := models.ParseChat(body)
	if err != nil {
		c.fail("set ai", "Failed to toggle AI", err)
		return models.Chat{}, err
	}
	return chat, nil
}

// DeleteChat deletes a chat.
func (c *Client) DeleteChat(ctx context.Context, chatID int) error {
	_, err := c.write(ctx, "delete chat", transport.Request{
		Method: http.MethodDelete,
		Path:   fmt.Sprintf("/chats/%d", chatID),
	})
	if err != nil {
		c.fail("delete chat", "Failed to delete chat", err)
	}
	return err
}

// TagRequest is the body of POST /chats/{id}/tags.
type TagRequest struct {
	Tag string `json:"tag"`
}

// AddTag adds a tag to a chat and returns the resulting tag set.
func (c *Client) AddTag(ctx context.Context, chatID int, tag string) (models.TagsResult, error) {
	body, err := c.write(ctx, "add tag", transport.Request{
		Method: http.MethodPost,
		Path:   fmt.Sprintf("/chats/%d/tags", chatID),
		Body:   TagRequest{Tag: tag},
	})
	return c.tagsResult("add tag", "Failed to add tag", body, err)
}

// RemoveTag removes a tag from a chat and returns the resulting tag set.
func (c *Client) RemoveTag(ctx context.Context, chatID int, tag string) (models.TagsResult, error) {
	body, err := c.write(ctx, "remove tag", transport.Request{
		Method: http.MethodDelete,
		Path:   fmt.Sprintf("/chats/%d/tags/%s", chatID, url.PathEscape(tag)),
	})
	return c.tagsResult("remove tag", "Failed to remove tag", body, err)
}

func (c *Client) tagsResult(op, notice string, body []byte, err error) (models.TagsResult, error) {
	if err != nil {
		c.fail(op, notice, err)
		return models.TagsResult{}, err
	}
	var res models.TagsResult
	if err := json.Unmarshal(body, &res); err != nil {
		err = fmt.Errorf("%s: %w: %v", op, models.ErrInvalidPayload, err)
		c.fail(op, notice, err)
		return models.TagsResult{}, err
	}
	// The server answers {"message":"error"} when the chat is gone.
	if !res.Success {
		err := &APIError{Op: op, Status: http.StatusOK, Body: string(body)}
		c.fail(op, notice, err)
		return models.TagsResult{}, err
	}
	if res.Tags == nil {
		res.Tags = []string{}
	}
	return res, nil
}

// SyncVK resyncs a VK chat's history with VK. The server refuses non-VK chats.
func (c *Client) SyncVK(ctx context.Context, chatID int) (models.VKSyncResult, error) {
	body, err := c.write(ctx, "sync vk", transport.Request{
		Method: http.MethodPost,
		Path:   fmt.Sprintf("/chats/%d/sync-vk", chatID),
	})
	if err != nil {
		c.fail("sync vk", "Failed to sync VK chat", err)
		return models.VKSyncResult{}, err
	}
	var res models.VKSyncResult
	if err := json.Unmarshal(body, &res); err != nil {
		err = fmt.Errorf("sync vk: %w: %v", models.ErrInvalidPayload, err)
		c.fail("sync vk", "Failed to sync VK chat", err)
		return models.VKSyncResult{}, err
	}
	if !res.Success {
		c.notifier.Notify(notify.Error, "VK sync failed: "+res.Message)
	}
	return res, nil
}
