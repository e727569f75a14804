package handlers

import (
	"net/http"
	"time"

	"github.com/chatrelay/relay/backend/internal/models"
)

// HistorySource is the read side of the history window.
type HistorySource interface {
	History(after time.Time) []models.Message
}

// MessageHandler contains HTTP handlers for reading the history window.
// Provides a polling fallback for clients without a live socket.
type MessageHandler struct {
	history HistorySource
}

// NewMessageHandler creates a new MessageHandler instance.
func NewMessageHandler(history HistorySource) *MessageHandler {
	return &MessageHandler{history: history}
}

// GetMessages handles GET /api/messages
// Returns the history window, optionally filtered by 'after' timestamp.
// Query params:
//   - after: RFC 3339 timestamp to get messages after (for polling)
func (h *MessageHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	// Parse optional 'after' query param for incremental polling
	var afterTime time.Time
	afterParam := r.URL.Query().Get("after")
	if afterParam != "" {
		parsed, err := time.Parse(time.RFC3339Nano, afterParam)
		if err != nil {
			http.Error(w, "invalid 'after' timestamp format", http.StatusBadRequest)
			return
		}
		afterTime = parsed
	}

	messages := h.history.History(afterTime)
	if messages == nil {
		messages = []models.Message{}
	}

	writeJSON(w, http.StatusOK, models.GetMessagesResponse{Messages: messages})
}
