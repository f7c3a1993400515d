package handlers

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
)

// SelectChat makes a chat current and returns the resulting state.
func (h *Handler) SelectChat(w http.ResponseWriter, r *http.Request) {
	id, ok := h.chatID(w, r)
	if !ok {
		return
	}
	if err := h.core.SelectChat(r.Context(), &id); err != nil {
		h.fail(w, err)
		return
	}
	h.JSON(w, http.StatusOK, h.core.Snapshot())
}

// Deselect clears the selection.
func (h *Handler) Deselect(w http.ResponseWriter, r *http.Request) {
	if err := h.core.SelectChat(r.Context(), nil); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MarkRead clears a chat's waiting flag.
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id, ok := h.chatID(w, r)
	if !ok {
		return
	}
	if err := h.core.MarkChatAsRead(r.Context(), id); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetAIRequest is the body of PUT /chats/{id}/ai.
type SetAIRequest struct {
	AI *bool `json:"ai"`
}

// SetAI enables or disables automated replies for a chat.
func (h *Handler) SetAI(w http.ResponseWriter, r *http.Request) {
	id, ok := h.chatID(w, r)
	if !ok {
		return
	}
	var req SetAIRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.AI == nil {
		h.Error(w, http.StatusBadRequest, "ai is required")
		return
	}

	chat, err := h.core.ToggleAI(r.Context(), id, *req.AI)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.JSON(w, http.StatusOK, chat)
}

// TagRequest is the body of POST /chats/{id}/tags.
type TagRequest struct {
	Tag string `json:"tag"`
}

// TagsResponse lists a chat's tags after an edit.
type TagsResponse struct {
	ChatID int      `json:"chat_id"`
	Tags   []string `json:"tags"`
}

// AddTag tags a chat.
func (h *Handler) AddTag(w http.ResponseWriter, r *http.Request) {
	id, ok := h.chatID(w, r)
	if !ok {
		return
	}
	var req TagRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.Tag = strings.TrimSpace(req.Tag)
	if req.Tag == "" {
		h.Error(w, http.StatusBadRequest, "tag is required")
		return
	}

	tags, err := h.core.AddTag(r.Context(), id, req.Tag)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.JSON(w, http.StatusOK, TagsResponse{ChatID: id, Tags: tags})
}

// RemoveTag untags a chat.
func (h *Handler) RemoveTag(w http.ResponseWriter, r *http.Request) {
	id, ok := h.chatID(w, r)
	if !ok {
		return
	}
	tag := chi.URLParam(r, "tag")
	// chi routes on RawPath when the path has escapes, leaving the param escaped.
	if r.URL.RawPath != "" {
		unescaped, err := url.PathUnescape(tag)
		if err != nil {
			h.Error(w, http.StatusBadRequest, "invalid tag")
			return
		}
		tag = unescaped
	}
	if tag == "" {
		h.Error(w, http.StatusBadRequest, "tag is required")
		return
	}

	tags, err := h.core.RemoveTag(r.Context(), id, tag)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.JSON(w, http.StatusOK, TagsResponse{ChatID: id, Tags: tags})
}

// DeleteChat deletes a chat.
func (h *Handler) DeleteChat(w http.ResponseWriter, r *http.Request) {
	id, ok := h.chatID(w, r)
	if !ok {
		return
	}
	if err := h.core.DeleteChat(r.Context(), id); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SyncVK resyncs a VK chat's history.
func (h *Handler) SyncVK(w http.ResponseWriter, r *http.Request) {
	id, ok := h.chatID(w, r)
	if !ok {
		return
	}
	res, err := h.core.SyncVK(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	status := http.StatusOK
	if !res.Success {
		status = http.StatusUnprocessableEntity
	}
	h.JSON(w, status, res)
}

// SendMessageRequest is the body of POST /messages.
type SendMessageRequest struct {
	Text string `json:"text"`
}

// SendMessage answers the selected chat as the operator.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req SendMessageRequest
	if !h.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		h.Error(w, http.StatusBadRequest, "text is required")
		return
	}

	msg, err := h.core.SendMessage(r.Context(), req.Text)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.JSON(w, http.StatusCreated, msg)
}
