package calc

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrStoreUnavailable indicates the calculation store dependency is not configured.
var ErrStoreUnavailable = errors.New("calc: store unavailable")

// ErrNotFound indicates the calculation does not exist or belongs to another user.
var ErrNotFound = errors.New("calc: calculation not found")

// SavedCalculation is a fair-price calculation persisted for a user.
type SavedCalculation struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	CropName       string
	Category       string
	FarmgatePrice  float64
	MarketPrice    *float64
	FairPrice      float64
	SavingsPercent int
	CreatedAt      time.Time
}

// Store provides database accessors for saved calculations.
type Store interface {
	InsertCalculation(ctx context.Context, calc SavedCalculation) (SavedCalculation, error)
	DeleteCalculation(ctx context.Context, id, userID uuid.UUID) error
	ListCalculationsByUser(ctx context.Context, userID uuid.UUID, limit int) ([]SavedCalculation, error)
}

// NewStore constructs a Store backed by a pgx connection pool.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

type pgStore struct {
	pool *pgxpool.Pool
}

func (s *pgStore) InsertCalculation(ctx context.Context, calc SavedCalculation) (SavedCalculation, error) {
	if s == nil || s.pool == nil {
		return SavedCalculation{}, ErrStoreUnavailable
	}
	var marketPrice any
	if calc.MarketPrice != nil {
		marketPrice = *calc.MarketPrice
	}
	err := s.pool.QueryRow(ctx, `INSERT INTO saved_calculations (user_id, crop_name, category, farmgate_price, market_price, fair_price, savings_percent)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, created_at`,
		calc.UserID, calc.CropName, calc.Category, calc.FarmgatePrice, marketPrice, calc.FairPrice, calc.SavingsPercent,
	).Scan(&calc.ID, &calc.CreatedAt)
	if err != nil {
		return SavedCalculation{}, err
	}
	return calc, nil
}

func (s *pgStore) DeleteCalculation(ctx context.Context, id, userID uuid.UUID) error {
	if s == nil || s.pool == nil {
		return ErrStoreUnavailable
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM saved_calculations WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *pgStore) ListCalculationsByUser(ctx context.Context, userID uuid.UUID, limit int) ([]SavedCalculation, error) {
	if s == nil || s.pool == nil {
		return nil, ErrStoreUnavailable
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `SELECT id, user_id, crop_name, category, farmgate_price, market_price, fair_price, savings_percent, created_at
FROM saved_calculations
WHERE user_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SavedCalculation
	for rows.Next() {
		var c SavedCalculation
		var market *float64
		if err := rows.Scan(&c.ID, &c.UserID, &c.CropName, &c.Category, &c.FarmgatePrice, &market, &c.FairPrice, &c.SavingsPercent, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.MarketPrice = market
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
