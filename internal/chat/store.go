package chat

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrStoreUnavailable indicates the chat store dependency is not configured.
var ErrStoreUnavailable = errors.New("chat: store unavailable")

// ErrNotFound indicates the conversation or related row does not exist.
var ErrNotFound = errors.New("chat: not found")

// Conversation is a thread between two users, optionally about a product.
type Conversation struct {
	ID        uuid.UUID
	ProductID *uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Message is one entry in a conversation.
type Message struct {
	ID             uuid.UUID
	ConversationID uuid.UUID
	SenderID       uuid.UUID
	SenderName     string
	Content        string
	MessageType    string
	IsRead         bool
	CreatedAt      time.Time
}

// ConversationSummary is a list row: the thread plus the other participant,
// the last message preview, and the reader's unread count.
type ConversationSummary struct {
	ID            uuid.UUID
	ProductID     *uuid.UUID
	ProductName   *string
	OtherUserID   uuid.UUID
	OtherUsername string
	LastMessage   *string
	LastMessageAt *time.Time
	UnreadCount   int
	UpdatedAt     time.Time
}

// ProductContact identifies who a "contact seller" conversation is with.
type ProductContact struct {
	FarmerID uuid.UUID
	Name     string
	IsActive bool
}

// Store provides database accessors for conversations and messages.
type Store interface {
	CreateConversation(ctx context.Context, productID *uuid.UUID, first, second uuid.UUID) (Conversation, error)
	FindConversation(ctx context.Context, first, second, productID uuid.UUID) (Conversation, error)
	GetConversation(ctx context.Context, id uuid.UUID) (Conversation, error)
	IsParticipant(ctx context.Context, conversationID, userID uuid.UUID) (bool, error)
	OtherParticipant(ctx context.Context, conversationID, userID uuid.UUID) (uuid.UUID, string, error)
	SetParticipantDeleted(ctx context.Context, conversationID, userID uuid.UUID, deleted bool) error
	ParticipantDeleted(ctx context.Context, conversationID, userID uuid.UUID) (bool, error)
	ListConversations(ctx context.Context, userID uuid.UUID) ([]ConversationSummary, error)
	InsertMessage(ctx context.Context, msg Message) (Message, error)
	ListMessages(ctx context.Context, conversationID uuid.UUID, limit, offset int) ([]Message, int, error)
	ListMessagesAfter(ctx context.Context, conversationID uuid.UUID, after time.Time) ([]Message, error)
	MarkMessagesRead(ctx context.Context, conversationID, readerID uuid.UUID) (int, error)
	TotalUnread(ctx context.Context, userID uuid.UUID) (int, error)
	GetProductContact(ctx context.Context, productID uuid.UUID) (ProductContact, error)
	GetUserEmail(ctx context.Context, userID uuid.UUID) (string, error)
}

// NewStore constructs a Store backed by a pgx connection pool.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

type pgStore struct {
	pool *pgxpool.Pool
}

func (s *pgStore) CreateConversation(ctx context.Context, productID *uuid.UUID, first, second uuid.UUID) (Conversation, error) {
	if s == nil || s.pool == nil {
		return Conversation{}, ErrStoreUnavailable
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Conversation{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var conv Conversation
	conv.ProductID = productID
	var pid any
	if productID != nil {
		pid = *productID
	}
	err = tx.QueryRow(ctx, `INSERT INTO conversations (product_id) VALUES ($1)
RETURNING id, created_at, updated_at`, pid).Scan(&conv.ID, &conv.CreatedAt, &conv.UpdatedAt)
	if err != nil {
		return Conversation{}, err
	}
	_, err = tx.Exec(ctx, `INSERT INTO conversation_participants (conversation_id, user_id) VALUES ($1, $2), ($1, $3)`,
		conv.ID, first, second)
	if err != nil {
		return Conversation{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Conversation{}, err
	}
	return conv, nil
}

func (s *pgStore) FindConversation(ctx context.Context, first, second, productID uuid.UUID) (Conversation, error) {
	if s == nil || s.pool == nil {
		return Conversation{}, ErrStoreUnavailable
	}
	var conv Conversation
	err := s.pool.QueryRow(ctx, `SELECT c.id, c.product_id, c.created_at, c.updated_at
FROM conversations c
JOIN conversation_participants a ON a.conversation_id = c.id AND a.user_id = $1
JOIN conversation_participants b ON b.conversation_id = c.id AND b.user_id = $2
WHERE c.product_id = $3
LIMIT 1`, first, second, productID).Scan(&conv.ID, &conv.ProductID, &conv.CreatedAt, &conv.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Conversation{}, ErrNotFound
	}
	if err != nil {
		return Conversation{}, err
	}
	return conv, nil
}

func (s *pgStore) GetConversation(ctx context.Context, id uuid.UUID) (Conversation, error) {
	if s == nil || s.pool == nil {
		return Conversation{}, ErrStoreUnavailable
	}
	var conv Conversation
	err := s.pool.QueryRow(ctx, `SELECT id, product_id, created_at, updated_at FROM conversations WHERE id = $1`, id).
		Scan(&conv.ID, &conv.ProductID, &conv.CreatedAt, &conv.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Conversation{}, ErrNotFound
	}
	if err != nil {
		return Conversation{}, err
	}
	return conv, nil
}

func (s *pgStore) IsParticipant(ctx context.Context, conversationID, userID uuid.UUID) (bool, error) {
	if s == nil || s.pool == nil {
		return false, ErrStoreUnavailable
	}
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (
SELECT 1 FROM conversation_participants WHERE conversation_id = $1 AND user_id = $2)`,
		conversationID, userID).Scan(&exists)
	return exists, err
}

func (s *pgStore) OtherParticipant(ctx context.Context, conversationID, userID uuid.UUID) (uuid.UUID, string, error) {
	if s == nil || s.pool == nil {
		return uuid.Nil, "", ErrStoreUnavailable
	}
	var id uuid.UUID
	var username string
	err := s.pool.QueryRow(ctx, `SELECT u.id, u.username
FROM conversation_participants p
JOIN users u ON u.id = p.user_id
WHERE p.conversation_id = $1 AND p.user_id <> $2
LIMIT 1`, conversationID, userID).Scan(&id, &username)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, "", ErrNotFound
	}
	if err != nil {
		return uuid.Nil, "", err
	}
	return id, username, nil
}

func (s *pgStore) SetParticipantDeleted(ctx context.Context, conversationID, userID uuid.UUID, deleted bool) error {
	if s == nil || s.pool == nil {
		return ErrStoreUnavailable
	}
	var value any
	if deleted {
		value = time.Now().UTC()
	}
	tag, err := s.pool.Exec(ctx, `UPDATE conversation_participants SET deleted_at = $3
WHERE conversation_id = $1 AND user_id = $2`, conversationID, userID, value)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *pgStore) ParticipantDeleted(ctx context.Context, conversationID, userID uuid.UUID) (bool, error) {
	if s == nil || s.pool == nil {
		return false, ErrStoreUnavailable
	}
	var deletedAt *time.Time
	err := s.pool.QueryRow(ctx, `SELECT deleted_at FROM conversation_participants
WHERE conversation_id = $1 AND user_id = $2`, conversationID, userID).Scan(&deletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, err
	}
	return deletedAt != nil, nil
}

func (s *pgStore) ListConversations(ctx context.Context, userID uuid.UUID) ([]ConversationSummary, error) {
	if s == nil || s.pool == nil {
		return nil, ErrStoreUnavailable
	}
	rows, err := s.pool.Query(ctx, `SELECT c.id, c.product_id, pr.name, o.id, o.username,
	last.content, last.created_at,
	(SELECT count(*) FROM messages m WHERE m.conversation_id = c.id AND NOT m.is_read AND m.sender_id <> $1),
	c.updated_at
FROM conversations c
JOIN conversation_participants me ON me.conversation_id = c.id AND me.user_id = $1 AND me.deleted_at IS NULL
JOIN conversation_participants other ON other.conversation_id = c.id AND other.user_id <> $1
JOIN users o ON o.id = other.user_id
LEFT JOIN products pr ON pr.id = c.product_id
LEFT JOIN LATERAL (
	SELECT content, created_at FROM messages m
	WHERE m.conversation_id = c.id
	ORDER BY m.created_at DESC LIMIT 1
) last ON TRUE
ORDER BY COALESCE(last.created_at, c.updated_at) DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ConversationSummary
	for rows.Next() {
		var c ConversationSummary
		if err := rows.Scan(&c.ID, &c.ProductID, &c.ProductName, &c.OtherUserID, &c.OtherUsername,
			&c.LastMessage, &c.LastMessageAt, &c.UnreadCount, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *pgStore) InsertMessage(ctx context.Context, msg Message) (Message, error) {
	if s == nil || s.pool == nil {
		return Message{}, ErrStoreUnavailable
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Message{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `INSERT INTO messages (conversation_id, sender_id, content, message_type)
VALUES ($1, $2, $3, $4)
RETURNING id, created_at`,
		msg.ConversationID, msg.SenderID, msg.Content, msg.MessageType,
	).Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		return Message{}, err
	}
	if err := tx.QueryRow(ctx, `SELECT username FROM users WHERE id = $1`, msg.SenderID).Scan(&msg.SenderName); err != nil {
		return Message{}, err
	}
	if _, err := tx.Exec(ctx, `UPDATE conversations SET updated_at = now() WHERE id = $1`, msg.ConversationID); err != nil {
		return Message{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Message{}, err
	}
	return msg, nil
}

func (s *pgStore) ListMessages(ctx context.Context, conversationID uuid.UUID, limit, offset int) ([]Message, int, error) {
	if s == nil || s.pool == nil {
		return nil, 0, ErrStoreUnavailable
	}
	if limit <= 0 {
		limit = 30
	}
	var total int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM messages WHERE conversation_id = $1`, conversationID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := s.pool.Query(ctx, `SELECT m.id, m.conversation_id, m.sender_id, u.username, m.content, m.message_type, m.is_read, m.created_at
FROM messages m
JOIN users u ON u.id = m.sender_id
WHERE m.conversation_id = $1
ORDER BY m.created_at, m.id
LIMIT $2 OFFSET $3`, conversationID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	msgs, err := scanMessages(rows)
	if err != nil {
		return nil, 0, err
	}
	return msgs, total, nil
}

func (s *pgStore) ListMessagesAfter(ctx context.Context, conversationID uuid.UUID, after time.Time) ([]Message, error) {
	if s == nil || s.pool == nil {
		return nil, ErrStoreUnavailable
	}
	rows, err := s.pool.Query(ctx, `SELECT m.id, m.conversation_id, m.sender_id, u.username, m.content, m.message_type, m.is_read, m.created_at
FROM messages m
JOIN users u ON u.id = m.sender_id
WHERE m.conversation_id = $1 AND m.created_at > $2
ORDER BY m.created_at, m.id`, conversationID, after)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

func (s *pgStore) MarkMessagesRead(ctx context.Context, conversationID, readerID uuid.UUID) (int, error) {
	if s == nil || s.pool == nil {
		return 0, ErrStoreUnavailable
	}
	tag, err := s.pool.Exec(ctx, `UPDATE messages SET is_read = TRUE
WHERE conversation_id = $1 AND NOT is_read AND sender_id <> $2`, conversationID, readerID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (s *pgStore) TotalUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	if s == nil || s.pool == nil {
		return 0, ErrStoreUnavailable
	}
	var total int
	err := s.pool.QueryRow(ctx, `SELECT count(*)
FROM messages m
JOIN conversation_participants p ON p.conversation_id = m.conversation_id
WHERE p.user_id = $1 AND p.deleted_at IS NULL AND NOT m.is_read AND m.sender_id <> $1`, userID).Scan(&total)
	return total, err
}

func (s *pgStore) GetProductContact(ctx context.Context, productID uuid.UUID) (ProductContact, error) {
	if s == nil || s.pool == nil {
		return ProductContact{}, ErrStoreUnavailable
	}
	var c ProductContact
	err := s.pool.QueryRow(ctx, `SELECT farmer_id, name, is_active FROM products WHERE id = $1`, productID).
		Scan(&c.FarmerID, &c.Name, &c.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return ProductContact{}, ErrNotFound
	}
	if err != nil {
		return ProductContact{}, err
	}
	return c, nil
}

func (s *pgStore) GetUserEmail(ctx context.Context, userID uuid.UUID) (string, error) {
	if s == nil || s.pool == nil {
		return "", ErrStoreUnavailable
	}
	var email string
	err := s.pool.QueryRow(ctx, `SELECT email FROM users WHERE id = $1`, userID).Scan(&email)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	return email, err
}

func scanMessages(rows pgx.Rows) ([]Message, error) {
	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.SenderName, &m.Content, &m.MessageType, &m.IsRead, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
