package models

import (
	"encoding/json"
	"fmt"
)

// MessageType tells who wrote a message.
type MessageType string

const (
	Question MessageType = "question" // inbound from the end user
	Answer   MessageType = "answer"   // outbound from an operator or the AI
)

// TypeFromString maps a raw discriminant onto a MessageType. Only "question"
// is inbound; everything else, including the legacy "text", is an answer.
func TypeFromString(s string) MessageType {
	if s == string(Question) {
		return Question
	}
	return Answer
}

// Message is one chat line. Ordering is arrival order; CreatedAt is for display only.
type Message struct {
	ID          int         `json:"id"`
	ChatID      int         `json:"chat_id"`
	CreatedAt   string      `json:"created_at"`
	Message     string      `json:"message"`
	MessageType MessageType `json:"message_type"`
	AI          bool        `json:"ai"`
	IsImage     bool        `json:"is_image"`
}

type messageWire struct {
	ID          *FlexInt `json:"id"`
	ChatIDSnake *FlexInt `json:"chat_id"`
	ChatIDCamel *FlexInt `json:"chatId"`
	Message     *string  `json:"message"`
	Content     *string  `json:"content"`
	CreatedAt   *string  `json:"created_at"`
	Timestamp   *string  `json:"timestamp"`
	MessageType string   `json:"message_type"`
	AI          bool     `json:"ai"`
	IsImage     bool     `json:"is_image"`
}

func (w messageWire) toMessage() (Message, error) {
	if w.ID == nil {
		return Message{}, fmt.Errorf("%w: message without id", ErrInvalidPayload)
	}
	chatID, _ := firstInt(w.ChatIDSnake, w.ChatIDCamel)
	return Message{
		ID:          int(*w.ID),
		ChatID:      chatID,
		CreatedAt:   firstString(w.CreatedAt, w.Timestamp),
		Message:     firstString(w.Message, w.Content),
		MessageType: MessageType(w.MessageType),
		AI:          w.AI,
		IsImage:     w.IsImage,
	}, nil
}

// ParseMessage decodes one message object.
func ParseMessage(data []byte) (Message, error) {
	var w messageWire
	if err := json.Unmarshal(data, &w); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return w.toMessage()
}

// ParseMessages decodes a chat's message list.
func ParseMessages(data []byte) ([]Message, error) {
	var wires []messageWire
	if err := json.Unmarshal(data, &wires); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	msgs := make([]Message, 0, len(wires))
	for _, w := range wires {
		m, err := w.toMessage()
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}
