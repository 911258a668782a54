// Package chat connects buyers and farmers in product-scoped conversations
// with read tracking, quick-action message types, and per-user soft delete.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/agrilink/backend-agrilink/internal/events"
)

// Message types accepted by Send. Order and price requests back the listing
// page's quick-action buttons.
const (
	TypeText         = "text"
	TypeOrderRequest = "order_request"
	TypePriceRequest = "price_request"
)

// ErrAccessDenied indicates the user is not a participant of the conversation.
var ErrAccessDenied = errors.New("chat: access denied")

// RejectionError is a domain-level rejection carrying a user-facing message.
type RejectionError struct {
	Message string
}

func (e RejectionError) Error() string { return e.Message }

func reject(msg string) error { return RejectionError{Message: msg} }

// Service implements the conversation and messaging operations.
type Service struct {
	store    Store
	bus      *events.Bus
	tasks    *asynq.Client
	log      zerolog.Logger
	pageSize int
}

// ServiceConfig configures the Service dependencies. Tasks is optional; when
// set, each delivered message enqueues a recipient notification.
type ServiceConfig struct {
	Store    Store
	Bus      *events.Bus
	Tasks    *asynq.Client
	Logger   zerolog.Logger
	PageSize int
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("chat: store is required")
	}
	size := cfg.PageSize
	if size <= 0 {
		size = 30
	}
	return &Service{
		store:    cfg.Store,
		bus:      cfg.Bus,
		tasks:    cfg.Tasks,
		log:      cfg.Logger,
		pageSize: size,
	}, nil
}

// Start opens (or resumes) a conversation with a product's farmer. A
// conversation the user had deleted is restored instead of duplicated.
func (s *Service) Start(ctx context.Context, userID, productID uuid.UUID) (Conversation, error) {
	contact, err := s.store.GetProductContact(ctx, productID)
	if errors.Is(err, ErrNotFound) {
		return Conversation{}, reject("product not found")
	}
	if err != nil {
		return Conversation{}, fmt.Errorf("chat: load product: %w", err)
	}
	if contact.FarmerID == userID {
		return Conversation{}, reject("you cannot message yourself about your own product")
	}

	existing, err := s.store.FindConversation(ctx, userID, contact.FarmerID, productID)
	switch {
	case err == nil:
		deleted, err := s.store.ParticipantDeleted(ctx, existing.ID, userID)
		if err != nil {
			return Conversation{}, fmt.Errorf("chat: check deleted: %w", err)
		}
		if deleted {
			if err := s.store.SetParticipantDeleted(ctx, existing.ID, userID, false); err != nil {
				return Conversation{}, fmt.Errorf("chat: restore conversation: %w", err)
			}
		}
		return existing, nil
	case errors.Is(err, ErrNotFound):
	default:
		return Conversation{}, fmt.Errorf("chat: find conversation: %w", err)
	}

	conv, err := s.store.CreateConversation(ctx, &productID, userID, contact.FarmerID)
	if err != nil {
		return Conversation{}, fmt.Errorf("chat: create conversation: %w", err)
	}
	_, err = s.store.InsertMessage(ctx, Message{
		ConversationID: conv.ID,
		SenderID:       userID,
		Content:        "Started conversation about " + contact.Name,
		MessageType:    TypeText,
	})
	if err != nil {
		return Conversation{}, fmt.Errorf("chat: initial message: %w", err)
	}
	return conv, nil
}

// Send delivers a message into a conversation the user participates in.
func (s *Service) Send(ctx context.Context, userID, conversationID uuid.UUID, content, messageType string) (Message, error) {
	if err := s.requireParticipant(ctx, conversationID, userID); err != nil {
		return Message{}, err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return Message{}, reject("message content cannot be empty")
	}
	switch messageType {
	case "":
		messageType = TypeText
	case TypeText, TypeOrderRequest, TypePriceRequest:
	default:
		return Message{}, reject("unknown message type")
	}

	msg, err := s.store.InsertMessage(ctx, Message{
		ConversationID: conversationID,
		SenderID:       userID,
		Content:        content,
		MessageType:    messageType,
	})
	if err != nil {
		return Message{}, fmt.Errorf("chat: insert message: %w", err)
	}

	if s.bus != nil {
		payload := map[string]any{"conversation_id": conversationID, "message_type": messageType}
		if _, err := s.bus.Emit(ctx, events.TopicMessageSent, msg.ID, payload); err != nil {
			s.log.Warn().Err(err).Msg("emit message event")
		}
	}
	s.enqueueNotify(ctx, msg)
	return msg, nil
}

// List returns the user's visible conversations plus their total unread count.
func (s *Service) List(ctx context.Context, userID uuid.UUID) ([]ConversationSummary, int, error) {
	rows, err := s.store.ListConversations(ctx, userID)
	if err != nil {
		return nil, 0, fmt.Errorf("chat: list conversations: %w", err)
	}
	total, err := s.store.TotalUnread(ctx, userID)
	if err != nil {
		return nil, 0, fmt.Errorf("chat: total unread: %w", err)
	}
	return rows, total, nil
}

// Messages returns a page of the conversation history, oldest first, and
// marks the other participant's messages as read.
func (s *Service) Messages(ctx context.Context, userID, conversationID uuid.UUID, page int) ([]Message, int, error) {
	if err := s.requireParticipant(ctx, conversationID, userID); err != nil {
		return nil, 0, err
	}
	if page < 1 {
		page = 1
	}
	msgs, total, err := s.store.ListMessages(ctx, conversationID, s.pageSize, (page-1)*s.pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("chat: list messages: %w", err)
	}
	if _, err := s.store.MarkMessagesRead(ctx, conversationID, userID); err != nil {
		return nil, 0, fmt.Errorf("chat: mark read: %w", err)
	}
	return msgs, total, nil
}

// MessagesAfter returns messages newer than the given time, for polling, and
// marks them read.
func (s *Service) MessagesAfter(ctx context.Context, userID, conversationID uuid.UUID, after time.Time) ([]Message, error) {
	if err := s.requireParticipant(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	msgs, err := s.store.ListMessagesAfter(ctx, conversationID, after)
	if err != nil {
		return nil, fmt.Errorf("chat: list new messages: %w", err)
	}
	if _, err := s.store.MarkMessagesRead(ctx, conversationID, userID); err != nil {
		return nil, fmt.Errorf("chat: mark read: %w", err)
	}
	return msgs, nil
}

// MarkRead marks every message from the other participant as read and
// returns how many changed.
func (s *Service) MarkRead(ctx context.Context, userID, conversationID uuid.UUID) (int, error) {
	if err := s.requireParticipant(ctx, conversationID, userID); err != nil {
		return 0, err
	}
	n, err := s.store.MarkMessagesRead(ctx, conversationID, userID)
	if err != nil {
		return 0, fmt.Errorf("chat: mark read: %w", err)
	}
	return n, nil
}

// DeleteForUser hides the conversation from the user's list. The other
// participant keeps seeing it.
func (s *Service) DeleteForUser(ctx context.Context, userID, conversationID uuid.UUID) error {
	if err := s.requireParticipant(ctx, conversationID, userID); err != nil {
		return err
	}
	if err := s.store.SetParticipantDeleted(ctx, conversationID, userID, true); err != nil {
		return fmt.Errorf("chat: delete conversation: %w", err)
	}
	return nil
}

func (s *Service) requireParticipant(ctx context.Context, conversationID, userID uuid.UUID) error {
	if _, err := s.store.GetConversation(ctx, conversationID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("chat: load conversation: %w", err)
	}
	ok, err := s.store.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return fmt.Errorf("chat: check participant: %w", err)
	}
	if !ok {
		return ErrAccessDenied
	}
	return nil
}

func (s *Service) enqueueNotify(ctx context.Context, msg Message) {
	if s.tasks == nil {
		return
	}
	recipientID, _, err := s.store.OtherParticipant(ctx, msg.ConversationID, msg.SenderID)
	if err != nil {
		s.log.Warn().Err(err).Msg("resolve message recipient")
		return
	}
	task, err := NewMessageNotifyTask(NotifyPayload{
		MessageID:      msg.ID,
		ConversationID: msg.ConversationID,
		RecipientID:    recipientID,
		SenderName:     msg.SenderName,
		Preview:        preview(msg.Content),
	})
	if err != nil {
		s.log.Warn().Err(err).Msg("build notify task")
		return
	}
	if _, err := s.tasks.EnqueueContext(ctx, task); err != nil {
		s.log.Warn().Err(err).Msg("enqueue notify task")
	}
}

func preview(content string) string {
	const max = 80
	runes := []rune(content)
	if len(runes) <= max {
		return content
	}
	return string(runes[:max])
}
