package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"html"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/agrilink/backend-agrilink/internal/common"
)

// TaskTypeMessageNotify is the asynq task kind for new-message notifications.
const TaskTypeMessageNotify = "chat:message_notify"

// NotifyPayload is the task body for a new-message notification.
type NotifyPayload struct {
	MessageID      uuid.UUID `json:"message_id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	RecipientID    uuid.UUID `json:"recipient_id"`
	SenderName     string    `json:"sender_name"`
	Preview        string    `json:"preview"`
}

// NewMessageNotifyTask builds the asynq task carrying the payload.
func NewMessageNotifyTask(p NotifyPayload) (*asynq.Task, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("chat: marshal notify payload: %w", err)
	}
	return asynq.NewTask(TaskTypeMessageNotify, body, asynq.MaxRetry(3)), nil
}

// Notifier consumes message notification tasks and emails the recipient.
type Notifier struct {
	Store Store
	Email common.EmailSender
	Log   zerolog.Logger
}

// HandleMessageNotify processes one TaskTypeMessageNotify task.
func (n *Notifier) HandleMessageNotify(ctx context.Context, task *asynq.Task) error {
	var p NotifyPayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		return fmt.Errorf("chat: unmarshal notify payload: %w", err)
	}
	email, err := n.Store.GetUserEmail(ctx, p.RecipientID)
	if err != nil {
		return fmt.Errorf("chat: recipient email: %w", err)
	}

	sender := n.Email
	if sender == nil {
		sender = common.NopEmailSender{}
	}
	subject := "New message from " + p.SenderName
	body := fmt.Sprintf("<p><strong>%s</strong> sent you a message:</p><blockquote>%s</blockquote>",
		html.EscapeString(p.SenderName), html.EscapeString(p.Preview))
	if err := sender.Send(email, subject, body); err != nil {
		return fmt.Errorf("chat: send notification email: %w", err)
	}
	n.Log.Info().
		Str("message_id", p.MessageID.String()).
		Str("recipient_id", p.RecipientID.String()).
		Msg("message notification delivered")
	return nil
}
