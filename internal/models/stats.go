package models

import "encoding/json"

// Stats are aggregate counts across all chats.
type Stats struct {
	Total   int `json:"total"`
	Pending int `json:"pending"`
	AI      int `json:"ai"`
}

// AIContext is the system prompt and FAQ set the server's AI replies with.
// FAQs are passed through untouched.
type AIContext struct {
	SystemMessage string          `json:"system_message"`
	FAQs          json.RawMessage `json:"faqs"`
}

// TagsResult is returned by tag add/remove.
type TagsResult struct {
	Success bool     `json:"success"`
	Tags    []string `json:"tags"`
}

// VKSyncResult is returned by the VK resync endpoint. DBCount is sent instead
// of the before/after pair when the chat was already in sync.
type VKSyncResult struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	VKCount       *int   `json:"vk_count,omitempty"`
	DBCount       *int   `json:"db_count,omitempty"`
	DBCountBefore *int   `json:"db_count_before,omitempty"`
	DBCountAfter  *int   `json:"db_count_after,omitempty"`
}
