package product

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates the product does not exist.
var ErrNotFound = errors.New("product: not found")

// Product is one listing owned by a farmer.
type Product struct {
	ID            uuid.UUID
	FarmerID      uuid.UUID
	CategoryID    uuid.UUID
	Name          string
	Description   string
	Price         float64
	Unit          string
	StockQuantity int
	Location      string
	ImageURL      *string
	IsActive      bool
	IsFeatured    bool
	TotalSales    int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// MyProductsFilter narrows a farmer's own listing query.
type MyProductsFilter struct {
	// Status filters by active flag when set.
	Status *bool
	Sort   string
	Limit  int
	Offset int
}

// Store provides database accessors for product writes and owner listings.
type Store interface {
	InsertProduct(ctx context.Context, p Product) (Product, error)
	UpdateProduct(ctx context.Context, p Product) (Product, error)
	SetProductActive(ctx context.Context, id uuid.UUID, active bool) error
	GetProduct(ctx context.Context, id uuid.UUID) (Product, error)
	ListByFarmer(ctx context.Context, farmerID uuid.UUID, filter MyProductsFilter) ([]Product, error)
	CountByFarmer(ctx context.Context, farmerID uuid.UUID, status *bool) (int64, error)
}

// NewStore constructs a Store backed by a pgx connection pool.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

type pgStore struct {
	pool *pgxpool.Pool
}

const columns = `id, farmer_id, category_id, name, description, price, unit, stock_quantity,
location, image_url, is_active, is_featured, total_sales, created_at, updated_at`

func scan(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(
		&p.ID, &p.FarmerID, &p.CategoryID, &p.Name, &p.Description, &p.Price, &p.Unit, &p.StockQuantity,
		&p.Location, &p.ImageURL, &p.IsActive, &p.IsFeatured, &p.TotalSales, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	return p, err
}

func (s *pgStore) InsertProduct(ctx context.Context, p Product) (Product, error) {
	q := fmt.Sprintf(`INSERT INTO products (farmer_id, category_id, name, description, price, unit, stock_quantity, location, image_url, is_active)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING %s`, columns)
	return scan(s.pool.QueryRow(ctx, q,
		p.FarmerID, p.CategoryID, p.Name, p.Description, p.Price, p.Unit, p.StockQuantity, p.Location, p.ImageURL, p.IsActive))
}

func (s *pgStore) UpdateProduct(ctx context.Context, p Product) (Product, error) {
	q := fmt.Sprintf(`UPDATE products
SET category_id = $2, name = $3, description = $4, price = $5, unit = $6,
    stock_quantity = $7, location = $8, image_url = $9, is_active = $10, updated_at = now()
WHERE id = $1
RETURNING %s`, columns)
	return scan(s.pool.QueryRow(ctx, q,
		p.ID, p.CategoryID, p.Name, p.Description, p.Price, p.Unit, p.StockQuantity, p.Location, p.ImageURL, p.IsActive))
}

func (s *pgStore) SetProductActive(ctx context.Context, id uuid.UUID, active bool) error {
	tag, err := s.pool.Exec(ctx, `UPDATE products SET is_active = $2, updated_at = now() WHERE id = $1`, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *pgStore) GetProduct(ctx context.Context, id uuid.UUID) (Product, error) {
	q := fmt.Sprintf(`SELECT %s FROM products WHERE id = $1`, columns)
	return scan(s.pool.QueryRow(ctx, q, id))
}

func (s *pgStore) ListByFarmer(ctx context.Context, farmerID uuid.UUID, filter MyProductsFilter) ([]Product, error) {
	where := "WHERE farmer_id = $1"
	args := []any{farmerID}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		where += " AND is_active = $" + strconv.Itoa(len(args))
	}
	args = append(args, filter.Limit, filter.Offset)
	q := fmt.Sprintf("SELECT %s FROM products %s %s LIMIT $%d OFFSET $%d",
		columns, where, myProductsOrder(filter.Sort), len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		p, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *pgStore) CountByFarmer(ctx context.Context, farmerID uuid.UUID, status *bool) (int64, error) {
	where := "WHERE farmer_id = $1"
	args := []any{farmerID}
	if status != nil {
		args = append(args, *status)
		where += " AND is_active = $2"
	}
	var total int64
	err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM products "+where, args...).Scan(&total)
	return total, err
}

func myProductsOrder(sort string) string {
	switch sort {
	case SortOldest:
		return "ORDER BY created_at ASC"
	case SortPriceAsc:
		return "ORDER BY price ASC"
	case SortPriceDesc:
		return "ORDER BY price DESC"
	case SortName:
		return "ORDER BY name ASC"
	case SortTopSales:
		return "ORDER BY total_sales DESC"
	default:
		return "ORDER BY created_at DESC"
	}
}
