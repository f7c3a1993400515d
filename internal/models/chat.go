package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Chat is one conversation with an external end user.
type Chat struct {
	ID              int      `json:"id"`
	UUID            string   `json:"uuid"`
	Waiting         bool     `json:"waiting"`
	AI              bool     `json:"ai"`
	Name            string   `json:"name"`
	Messager        string   `json:"messager"` // "telegram", "vk"
	Tags            []string `json:"tags"`
	LastMessage     string   `json:"lastMessage"`
	LastMessageTime string   `json:"lastMessageTime"`
	Unread          bool     `json:"unread"` // reserved, always false
}

// Clone returns a copy that shares no memory with c.
func (c Chat) Clone() Chat {
	c.Tags = append([]string{}, c.Tags...)
	return c
}

// chatWire accepts every field-name variant the server has used.
type chatWire struct {
	ID       *FlexInt   `json:"id"`
	UUID     FlexString `json:"uuid"`
	Waiting  bool       `json:"waiting"`
	AI       bool       `json:"ai"`
	Name     string     `json:"name"`
	Messager string     `json:"messager"`
	Tags     []string   `json:"tags"`
	Unread   bool       `json:"unread"`

	LastMessageCamel json.RawMessage `json:"lastMessage"`
	LastMessageSnake json.RawMessage `json:"last_message"`
	LastTimeCamel    *string         `json:"lastMessageTime"`
	LastTimeSnake    *string         `json:"last_message_time"`
}

// preview is the nested last_message object of the chat list.
type preview struct {
	Content   *string `json:"content"`
	Message   *string `json:"message"`
	Timestamp *string `json:"timestamp"`
	CreatedAt *string `json:"created_at"`
}

func (w chatWire) toChat() (Chat, error) {
	if w.ID == nil {
		return Chat{}, fmt.Errorf("%w: chat without id", ErrInvalidPayload)
	}

	c := Chat{
		ID:       int(*w.ID),
		UUID:     string(w.UUID),
		Waiting:  w.Waiting,
		AI:       w.AI,
		Name:     w.Name,
		Messager: w.Messager,
		Tags:     w.Tags,
		Unread:   w.Unread,
	}
	if c.Tags == nil {
		c.Tags = []string{}
	}

	raw := w.LastMessageCamel
	if isEmptyJSON(raw) {
		raw = w.LastMessageSnake
	}
	text, ts := decodePreview(raw)
	c.LastMessage = text
	c.LastMessageTime = firstString(w.LastTimeCamel, w.LastTimeSnake)
	if c.LastMessageTime == "" {
		c.LastMessageTime = ts
	}
	return c, nil
}

// decodePreview reads a preview given either as a plain string or as an
// object; anything else yields empty strings.
func decodePreview(raw json.RawMessage) (text, ts string) {
	if isEmptyJSON(raw) {
		return "", ""
	}
	raw = bytes.TrimSpace(raw)
	switch raw[0] {
	case '"':
		json.Unmarshal(raw, &text)
		return text, ""
	case '{':
		var p preview
		if err := json.Unmarshal(raw, &p); err != nil {
			return "", ""
		}
		return firstString(p.Content, p.Message), firstString(p.Timestamp, p.CreatedAt)
	}
	return "", ""
}

func isEmptyJSON(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

// ParseChat decodes one chat object.
func ParseChat(data []byte) (Chat, error) {
	var w chatWire
	if err := json.Unmarshal(data, &w); err != nil {
		return Chat{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return w.toChat()
}

// ParseChats decodes the chat list.
func ParseChats(data []byte) ([]Chat, error) {
	var wires []chatWire
	if err := json.Unmarshal(data, &wires); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	chats := make([]Chat, 0, len(wires))
	for _, w := range wires {
		c, err := w.toChat()
		if err != nil {
			return nil, err
		}
		chats = append(chats, c)
	}
	return chats, nil
}
