package handlers

import (
	"net/http"
)

// State returns a snapshot of chats, selection, messages, unread count and stats.
func (h *Handler) State(w http.ResponseWriter, r *http.Request) {
	h.JSON(w, http.StatusOK, h.core.Snapshot())
}

// Notifications drains the queued operator notices.
func (h *Handler) Notifications(w http.ResponseWriter, r *http.Request) {
	h.JSON(w, http.StatusOK, h.notices.Drain())
}

// Refresh reloads the chat list. A degraded or superseded fetch still
// answers with the current state; "applied" tells the two apart.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	applied := h.core.RefreshChats(r.Context())
	h.JSON(w, http.StatusOK, map[string]any{
		"applied": applied,
		"state":   h.core.Snapshot(),
	})
}
