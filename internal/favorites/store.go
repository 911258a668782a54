package favorites

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// FavoriteRow is one saved listing joined with its product summary.
type FavoriteRow struct {
	ProductID   uuid.UUID
	ProductName string
	FarmerName  string
	Price       float64
	Unit        string
	ImageURL    *string
	IsActive    bool
	SavedAt     time.Time
}

// Store provides database accessors for favorite listings.
type Store interface {
	AddFavorite(ctx context.Context, userID, productID uuid.UUID) error
	RemoveFavorite(ctx context.Context, userID, productID uuid.UUID) error
	HasFavorite(ctx context.Context, userID, productID uuid.UUID) (bool, error)
	ListFavorites(ctx context.Context, userID uuid.UUID) ([]FavoriteRow, error)
}

// NewStore constructs a Store backed by a pgx connection pool.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

type pgStore struct {
	pool *pgxpool.Pool
}

func (s *pgStore) AddFavorite(ctx context.Context, userID, productID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO favorites (user_id, product_id)
VALUES ($1, $2) ON CONFLICT (user_id, product_id) DO NOTHING`, userID, productID)
	return err
}

func (s *pgStore) RemoveFavorite(ctx context.Context, userID, productID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM favorites WHERE user_id = $1 AND product_id = $2`, userID, productID)
	return err
}

func (s *pgStore) HasFavorite(ctx context.Context, userID, productID uuid.UUID) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (
SELECT 1 FROM favorites WHERE user_id = $1 AND product_id = $2)`, userID, productID).Scan(&exists)
	return exists, err
}

func (s *pgStore) ListFavorites(ctx context.Context, userID uuid.UUID) ([]FavoriteRow, error) {
	rows, err := s.pool.Query(ctx, `SELECT f.product_id, p.name, u.username, p.price, p.unit, p.image_url, p.is_active, f.created_at
FROM favorites f
JOIN products p ON p.id = f.product_id
JOIN users u ON u.id = p.farmer_id
WHERE f.user_id = $1
ORDER BY f.created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FavoriteRow
	for rows.Next() {
		var row FavoriteRow
		if err := rows.Scan(&row.ProductID, &row.ProductName, &row.FarmerName, &row.Price, &row.Unit, &row.ImageURL, &row.IsActive, &row.SavedAt); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
