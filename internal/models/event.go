package models

import (
	"encoding/json"
	"fmt"
)

// Realtime event discriminants.
const (
	EventMessage         = "message"
	EventChatDeleted     = "chat_deleted"
	EventChatAIUpdated   = "chat_ai_updated"
	EventChatCreated     = "chat_created"
	EventChatUpdate      = "chat_update"
	EventChatTagsUpdated = "chat_tags_updated"
)

// IsUpdateEvent reports whether t belongs on the update stream.
func IsUpdateEvent(t string) bool {
	switch t {
	case EventChatDeleted, EventChatAIUpdated, EventChatCreated, EventChatUpdate, EventChatTagsUpdated:
		return true
	}
	return false
}

// EventType returns the type discriminant of a realtime payload, unwrapping
// string-encoded payloads first. The returned bytes are the object itself.
func EventType(data []byte) (string, []byte, error) {
	obj, err := Unwrap(data)
	if err != nil {
		return "", nil, err
	}
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(obj, &env); err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if env.Type == "" {
		return "", nil, fmt.Errorf("%w: missing type", ErrInvalidPayload)
	}
	return env.Type, obj, nil
}

// MessageEvent is a pushed chat line. MessageType is the raw discriminant;
// use TypeFromString to map it.
type MessageEvent struct {
	Type        string `json:"type"`
	ID          int    `json:"id"`
	ChatID      int    `json:"chat_id"`
	Message     string `json:"message"`
	MessageType string `json:"message_type"`
	AI          bool   `json:"ai"`
	IsImage     bool   `json:"is_image"`
	CreatedAt   string `json:"created_at"`
}

// ToMessage builds the Message the event describes.
func (e MessageEvent) ToMessage() Message {
	return Message{
		ID:          e.ID,
		ChatID:      e.ChatID,
		CreatedAt:   e.CreatedAt,
		Message:     e.Message,
		MessageType: TypeFromString(e.MessageType),
		AI:          e.AI,
		IsImage:     e.IsImage,
	}
}

type messageEventWire struct {
	Type        string   `json:"type"`
	ID          *FlexInt `json:"id"`
	MessageID   *FlexInt `json:"message_id"`
	ChatIDSnake *FlexInt `json:"chat_id"`
	ChatIDCamel *FlexInt `json:"chatId"`
	Message     *string  `json:"message"`
	Content     *string  `json:"content"`
	MessageType string   `json:"message_type"`
	AI          bool     `json:"ai"`
	IsImage     bool     `json:"is_image"`
	CreatedAt   *string  `json:"created_at"`
	Timestamp   *string  `json:"timestamp"`
}

// ParseMessageEvent decodes a message-stream payload (object or string-wrapped).
func ParseMessageEvent(data []byte) (MessageEvent, error) {
	obj, err := Unwrap(data)
	if err != nil {
		return MessageEvent{}, err
	}
	var w messageEventWire
	if err := json.Unmarshal(obj, &w); err != nil {
		return MessageEvent{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	chatID, ok := firstInt(w.ChatIDSnake, w.ChatIDCamel)
	if !ok {
		return MessageEvent{}, fmt.Errorf("%w: message event without chat id", ErrInvalidPayload)
	}
	id, _ := firstInt(w.ID, w.MessageID)
	return MessageEvent{
		Type:        w.Type,
		ID:          id,
		ChatID:      chatID,
		Message:     firstString(w.Message, w.Content),
		MessageType: w.MessageType,
		AI:          w.AI,
		IsImage:     w.IsImage,
		CreatedAt:   firstString(w.CreatedAt, w.Timestamp),
	}, nil
}

// UpdateEvent is a pushed chat mutation. Pointer fields are nil when the
// payload did not carry them.
type UpdateEvent struct {
	Type    string
	ChatID  int
	AI      *bool
	Waiting *bool
	Tags    []string
	Chat    *Chat // chat_created only
}

type updateEventWire struct {
	Type        string          `json:"type"`
	ChatIDSnake *FlexInt        `json:"chat_id"`
	ChatIDCamel *FlexInt        `json:"chatId"`
	ID          *FlexInt        `json:"id"`
	AI          *bool           `json:"ai"`
	Waiting     *bool           `json:"waiting"`
	Tags        []string        `json:"tags"`
	Chat        json.RawMessage `json:"chat"`
}

// ParseUpdateEvent decodes an update-stream payload (object or string-wrapped).
func ParseUpdateEvent(data []byte) (UpdateEvent, error) {
	obj, err := Unwrap(data)
	if err != nil {
		return UpdateEvent{}, err
	}
	var w updateEventWire
	if err := json.Unmarshal(obj, &w); err != nil {
		return UpdateEvent{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	ev := UpdateEvent{Type: w.Type, AI: w.AI, Waiting: w.Waiting, Tags: w.Tags}

	if w.Type == EventChatCreated {
		// The chat is either nested under "chat" or is the payload itself.
		src := []byte(w.Chat)
		if isEmptyJSON(w.Chat) {
			src = obj
		}
		c, err := ParseChat(src)
		if err != nil {
			return UpdateEvent{}, err
		}
		ev.Chat = &c
		ev.ChatID = c.ID
		return ev, nil
	}

	id, ok := firstInt(w.ChatIDCamel, w.ChatIDSnake, w.ID)
	if !ok {
		return UpdateEvent{}, fmt.Errorf("%w: %s without chat id", ErrInvalidPayload, w.Type)
	}
	ev.ChatID = id
	if w.Type == EventChatTagsUpdated && ev.Tags == nil {
		ev.Tags = []string{}
	}
	return ev, nil
}
