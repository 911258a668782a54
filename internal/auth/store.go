package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates a user or session row is absent.
var ErrNotFound = errors.New("auth: not found")

// UserRow mirrors a users table row.
type UserRow struct {
	ID           uuid.UUID
	Username     string
	Email        string
	PasswordHash string
	PhoneNumber  *string
	UserType     string
	IsVerified   bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SessionRow mirrors a sessions table row. RefreshToken holds the sha256
// hex of the issued token, never the token itself.
type SessionRow struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	RefreshToken string
	UserAgent    *string
	IP           *string
	ExpiresAt    time.Time
}

// Store provides database accessors for users and refresh sessions.
type Store interface {
	CreateUser(ctx context.Context, u UserRow) (UserRow, error)
	GetUserByEmail(ctx context.Context, email string) (UserRow, error)
	GetUserByUsername(ctx context.Context, username string) (UserRow, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (UserRow, error)
	CreateSession(ctx context.Context, s SessionRow) (uuid.UUID, error)
	GetSessionByToken(ctx context.Context, hashedToken string) (SessionRow, error)
	RotateSessionToken(ctx context.Context, id uuid.UUID, hashedToken string, expiresAt time.Time) error
	DeleteSessionByToken(ctx context.Context, hashedToken string) error
	DeleteSessionsByUser(ctx context.Context, userID uuid.UUID) error
}

// NewStore constructs a Store backed by a pgx connection pool.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

type pgStore struct {
	pool *pgxpool.Pool
}

const userColumns = `id, username, email, password_hash, phone_number, user_type, is_verified, created_at, updated_at`

func scanUser(row pgx.Row) (UserRow, error) {
	var u UserRow
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.PhoneNumber, &u.UserType, &u.IsVerified, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return UserRow{}, ErrNotFound
	}
	return u, err
}

func (s *pgStore) CreateUser(ctx context.Context, u UserRow) (UserRow, error) {
	return scanUser(s.pool.QueryRow(ctx, `INSERT INTO users (username, email, password_hash, phone_number, user_type)
VALUES ($1, $2, $3, $4, $5)
RETURNING `+userColumns,
		u.Username, u.Email, u.PasswordHash, u.PhoneNumber, u.UserType))
}

func (s *pgStore) GetUserByEmail(ctx context.Context, email string) (UserRow, error) {
	return scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

func (s *pgStore) GetUserByUsername(ctx context.Context, username string) (UserRow, error) {
	return scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username))
}

func (s *pgStore) GetUserByID(ctx context.Context, id uuid.UUID) (UserRow, error) {
	return scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (s *pgStore) CreateSession(ctx context.Context, sess SessionRow) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.pool.QueryRow(ctx, `INSERT INTO sessions (user_id, refresh_token, user_agent, ip, expires_at)
VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		sess.UserID, sess.RefreshToken, sess.UserAgent, sess.IP, sess.ExpiresAt).Scan(&id)
	return id, err
}

func (s *pgStore) GetSessionByToken(ctx context.Context, hashedToken string) (SessionRow, error) {
	var sess SessionRow
	err := s.pool.QueryRow(ctx, `SELECT id, user_id, refresh_token, user_agent, ip, expires_at
FROM sessions WHERE refresh_token = $1`, hashedToken).Scan(
		&sess.ID, &sess.UserID, &sess.RefreshToken, &sess.UserAgent, &sess.IP, &sess.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return SessionRow{}, ErrNotFound
	}
	return sess, err
}

func (s *pgStore) RotateSessionToken(ctx context.Context, id uuid.UUID, hashedToken string, expiresAt time.Time) error {
	tag, err := s.pool.Exec(ctx, `UPDATE sessions SET refresh_token = $2, expires_at = $3 WHERE id = $1`, id, hashedToken, expiresAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *pgStore) DeleteSessionByToken(ctx context.Context, hashedToken string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE refresh_token = $1`, hashedToken)
	return err
}

func (s *pgStore) DeleteSessionsByUser(ctx context.Context, userID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
	return err
}
