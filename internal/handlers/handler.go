package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/eldtechnologies/aidesk/clients/go/aidesk"
	"github.com/eldtechnologies/aidesk/internal/chatsync"
	"github.com/eldtechnologies/aidesk/internal/notify"
	"github.com/eldtechnologies/aidesk/internal/token"
)

// Liveness reports whether the realtime connection is up.
type Liveness interface {
	Connected() bool
}

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	core     *chatsync.Core
	notices  *notify.Queue
	tokens   token.Store
	realtime Liveness
	logger   zerolog.Logger
}

// NewHandler creates a new Handler. realtime may be nil when the bridge runs
// without a push connection.
func NewHandler(core *chatsync.Core, notices *notify.Queue, tokens token.Store, realtime Liveness, logger zerolog.Logger) *Handler {
	return &Handler{core: core, notices: notices, tokens: tokens, realtime: realtime, logger: logger}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}

// fail maps a core or client error onto a response.
func (h *Handler) fail(w http.ResponseWriter, err error) {
	var apiErr *aidesk.APIError
	switch {
	case errors.Is(err, chatsync.ErrSelectionInProgress):
		h.Error(w, http.StatusConflict, err.Error())
	case errors.Is(err, chatsync.ErrSelectionSuperseded):
		h.Error(w, http.StatusConflict, err.Error())
	case errors.Is(err, chatsync.ErrNoSelection):
		h.Error(w, http.StatusConflict, err.Error())
	case errors.Is(err, chatsync.ErrChatNotFound):
		h.Error(w, http.StatusNotFound, err.Error())
	case errors.As(err, &apiErr):
		if apiErr.Status == http.StatusUnauthorized {
			h.Error(w, http.StatusUnauthorized, "dashboard session expired")
			return
		}
		h.JSON(w, http.StatusBadGateway, map[string]any{
			"error":           apiErr.Op + " failed",
			"upstream_status": apiErr.Status,
		})
	default:
		h.logger.Error().Err(err).Msg("bridge action failed")
		h.Error(w, http.StatusBadGateway, err.Error())
	}
}

// chatID parses the {id} URL parameter.
func (h *Handler) chatID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		h.Error(w, http.StatusBadRequest, "invalid chat id")
		return 0, false
	}
	return id, true
}

// decode reads a JSON request body into v.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}
