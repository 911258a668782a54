package chat

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/agrilink/backend-agrilink/internal/common"
)

// Handler exposes the chat endpoints.
type Handler struct {
	service *Service
	log     zerolog.Logger
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Service *Service
	Logger  zerolog.Logger
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{service: cfg.Service, log: cfg.Logger}
}

type conversationJSON struct {
	ID            uuid.UUID  `json:"id"`
	ProductID     *uuid.UUID `json:"product_id,omitempty"`
	ProductName   *string    `json:"product_name,omitempty"`
	OtherUserID   uuid.UUID  `json:"other_user_id"`
	OtherUsername string     `json:"other_username"`
	LastMessage   *string    `json:"last_message,omitempty"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
	UnreadCount   int        `json:"unread_count"`
}

type messageJSON struct {
	ID          uuid.UUID `json:"id"`
	Content     string    `json:"content"`
	Sender      string    `json:"sender"`
	SenderID    uuid.UUID `json:"sender_id"`
	Timestamp   time.Time `json:"timestamp"`
	MessageType string    `json:"message_type"`
	IsRead      bool      `json:"is_read"`
}

func toMessageJSON(m Message) messageJSON {
	return messageJSON{
		ID:          m.ID,
		Content:     m.Content,
		Sender:      m.SenderName,
		SenderID:    m.SenderID,
		Timestamp:   m.CreatedAt,
		MessageType: m.MessageType,
		IsRead:      m.IsRead,
	}
}

// List handles GET /api/v1/chat.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(r)
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	rows, totalUnread, err := h.service.List(r.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Msg("list conversations")
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load conversations", nil)
		return
	}
	out := make([]conversationJSON, 0, len(rows))
	for _, row := range rows {
		out = append(out, conversationJSON{
			ID:            row.ID,
			ProductID:     row.ProductID,
			ProductName:   row.ProductName,
			OtherUserID:   row.OtherUserID,
			OtherUsername: row.OtherUsername,
			LastMessage:   row.LastMessage,
			LastMessageAt: row.LastMessageAt,
			UnreadCount:   row.UnreadCount,
		})
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": out, "total_unread": totalUnread})
}

// Start handles POST /api/v1/chat/start/{productID}. It opens a conversation
// with the product's farmer, resuming an existing thread when one exists.
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(r)
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	productID, err := uuid.Parse(chi.URLParam(r, "productID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid product id", nil)
		return
	}

	conv, err := h.service.Start(r.Context(), userID, productID)
	var rejection RejectionError
	switch {
	case errors.As(err, &rejection):
		common.JSONError(w, http.StatusBadRequest, "REJECTED", rejection.Message, nil)
	case err != nil:
		h.log.Error().Err(err).Msg("start conversation")
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to start conversation", nil)
	default:
		common.JSONData(w, http.StatusOK, map[string]any{"conversation_id": conv.ID})
	}
}

// Messages handles GET /api/v1/chat/{id}. The page query selects a slice of
// the history, oldest first; viewing marks incoming messages read.
func (h *Handler) Messages(w http.ResponseWriter, r *http.Request) {
	userID, conversationID, ok := conversationScope(w, r)
	if !ok {
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))

	msgs, total, err := h.service.Messages(r.Context(), userID, conversationID, page)
	if !h.writeServiceError(w, err, "load messages") {
		return
	}
	out := make([]messageJSON, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toMessageJSON(m))
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": out, "total": total})
}

// Send handles POST /api/v1/chat/{id}/send. Quick actions arrive as
// message_type order_request or price_request.
func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	userID, conversationID, ok := conversationScope(w, r)
	if !ok {
		return
	}
	var req struct {
		Content     string `json:"content"`
		MessageType string `json:"message_type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid json body", nil)
		return
	}

	msg, err := h.service.Send(r.Context(), userID, conversationID, req.Content, req.MessageType)
	var rejection RejectionError
	switch {
	case errors.As(err, &rejection):
		common.JSONError(w, http.StatusBadRequest, "REJECTED", rejection.Message, nil)
	case err != nil:
		h.writeServiceError(w, err, "send message")
	default:
		common.JSON(w, http.StatusOK, map[string]any{"success": true, "message": toMessageJSON(msg)})
	}
}

// NewMessages handles GET /api/v1/chat/{id}/messages/new?after=RFC3339, the
// polling endpoint behind the open conversation view.
func (h *Handler) NewMessages(w http.ResponseWriter, r *http.Request) {
	userID, conversationID, ok := conversationScope(w, r)
	if !ok {
		return
	}
	after, err := time.Parse(time.RFC3339Nano, r.URL.Query().Get("after"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid timestamp format", nil)
		return
	}

	msgs, err := h.service.MessagesAfter(r.Context(), userID, conversationID, after)
	if !h.writeServiceError(w, err, "poll messages") {
		return
	}
	out := make([]messageJSON, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toMessageJSON(m))
	}
	common.JSON(w, http.StatusOK, map[string]any{"success": true, "messages": out, "count": len(out)})
}

// MarkRead handles POST /api/v1/chat/{id}/mark-read.
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, conversationID, ok := conversationScope(w, r)
	if !ok {
		return
	}
	n, err := h.service.MarkRead(r.Context(), userID, conversationID)
	if !h.writeServiceError(w, err, "mark messages read") {
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"success": true, "marked_read": n})
}

// Delete handles POST /api/v1/chat/{id}/delete. Only the caller's view of
// the conversation is removed.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, conversationID, ok := conversationScope(w, r)
	if !ok {
		return
	}
	err := h.service.DeleteForUser(r.Context(), userID, conversationID)
	if !h.writeServiceError(w, err, "delete conversation") {
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"success": true})
}

// writeServiceError maps service errors to HTTP responses. It reports true
// when err was nil and the caller should render its success payload.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error, action string) bool {
	switch {
	case err == nil:
		return true
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "conversation not found", nil)
	case errors.Is(err, ErrAccessDenied):
		common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "you do not have access to this conversation", nil)
	default:
		h.log.Error().Err(err).Msg(action)
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to "+action, nil)
	}
	return false
}

func conversationScope(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	userID, ok := authedUser(r)
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return uuid.Nil, uuid.Nil, false
	}
	conversationID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid conversation id", nil)
		return uuid.Nil, uuid.Nil, false
	}
	return userID, conversationID, true
}

func authedUser(r *http.Request) (uuid.UUID, bool) {
	raw, ok := common.UserID(r.Context())
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
