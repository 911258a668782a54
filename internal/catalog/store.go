package catalog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrProductNotFound indicates no active product matches the identifier.
var ErrProductNotFound = errors.New("catalog: product not found")

// CategoryRow mirrors a categories table row.
type CategoryRow struct {
	ID          uuid.UUID
	Name        string
	Description string
}

// ProductRow is a product joined with its farmer and category names.
type ProductRow struct {
	ID            uuid.UUID
	FarmerID      uuid.UUID
	FarmerName    string
	CategoryID    uuid.UUID
	CategoryName  string
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

// ProductFilter narrows the public listing query.
type ProductFilter struct {
	Search     string
	CategoryID *uuid.UUID
	MinPrice   *float64
	MaxPrice   *float64
}

type queryProvider interface {
	ListCategories(ctx context.Context) ([]CategoryRow, error)
	CountProducts(ctx context.Context, filter ProductFilter) (int64, error)
	ListProducts(ctx context.Context, filter ProductFilter, sort string, limit, offset int) ([]ProductRow, error)
	GetProduct(ctx context.Context, id uuid.UUID) (ProductRow, error)
	ListFarmerOtherProducts(ctx context.Context, farmerID, exclude uuid.UUID, limit int) ([]ProductRow, error)
	CountFarmerActiveProducts(ctx context.Context, farmerID uuid.UUID) (int64, error)
}

// Store exposes the catalog read queries.
type Store interface {
	queryProvider
}

// NewStore constructs a Store backed by a pgx connection pool.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

type pgStore struct {
	pool *pgxpool.Pool
}

const productColumns = `p.id, p.farmer_id, u.username, p.category_id, c.name, p.name, p.description,
p.price, p.unit, p.stock_quantity, p.location, p.image_url, p.is_active, p.is_featured,
p.total_sales, p.created_at, p.updated_at`

const productJoins = `FROM products p
JOIN users u ON u.id = p.farmer_id
JOIN categories c ON c.id = p.category_id`

func scanProduct(row pgx.Row) (ProductRow, error) {
	var p ProductRow
	err := row.Scan(
		&p.ID, &p.FarmerID, &p.FarmerName, &p.CategoryID, &p.CategoryName, &p.Name, &p.Description,
		&p.Price, &p.Unit, &p.StockQuantity, &p.Location, &p.ImageURL, &p.IsActive, &p.IsFeatured,
		&p.TotalSales, &p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}

func (s *pgStore) ListCategories(ctx context.Context) ([]CategoryRow, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, description FROM categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CategoryRow
	for rows.Next() {
		var c CategoryRow
		if err := rows.Scan(&c.ID, &c.Name, &c.Description); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// filterClause builds the WHERE clause for the public listing. Search covers
// product name, farmer username, location, and description.
func filterClause(filter ProductFilter) (string, []any) {
	clauses := []string{"p.is_active"}
	var args []any

	if q := strings.TrimSpace(filter.Search); q != "" {
		args = append(args, "%"+q+"%")
		n := strconv.Itoa(len(args))
		clauses = append(clauses, "(p.name ILIKE $"+n+" OR u.username ILIKE $"+n+" OR p.location ILIKE $"+n+" OR p.description ILIKE $"+n+")")
	}
	if filter.CategoryID != nil {
		args = append(args, *filter.CategoryID)
		clauses = append(clauses, "p.category_id = $"+strconv.Itoa(len(args)))
	}
	if filter.MinPrice != nil {
		args = append(args, *filter.MinPrice)
		clauses = append(clauses, "p.price >= $"+strconv.Itoa(len(args)))
	}
	if filter.MaxPrice != nil {
		args = append(args, *filter.MaxPrice)
		clauses = append(clauses, "p.price <= $"+strconv.Itoa(len(args)))
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}

func orderClause(sort string) string {
	switch sort {
	case SortOldest:
		return "ORDER BY p.created_at ASC"
	case SortPriceAsc:
		return "ORDER BY p.price ASC, p.created_at DESC"
	case SortPriceDesc:
		return "ORDER BY p.price DESC, p.created_at DESC"
	case SortName:
		return "ORDER BY p.name ASC"
	default:
		return "ORDER BY p.created_at DESC"
	}
}

func (s *pgStore) CountProducts(ctx context.Context, filter ProductFilter) (int64, error) {
	where, args := filterClause(filter)
	var total int64
	err := s.pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) %s %s", productJoins, where), args...).Scan(&total)
	return total, err
}

func (s *pgStore) ListProducts(ctx context.Context, filter ProductFilter, sort string, limit, offset int) ([]ProductRow, error) {
	where, args := filterClause(filter)
	args = append(args, limit, offset)
	q := fmt.Sprintf("SELECT %s %s %s %s LIMIT $%d OFFSET $%d",
		productColumns, productJoins, where, orderClause(sort), len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectProducts(rows)
}

func (s *pgStore) GetProduct(ctx context.Context, id uuid.UUID) (ProductRow, error) {
	q := fmt.Sprintf("SELECT %s %s WHERE p.id = $1", productColumns, productJoins)
	p, err := scanProduct(s.pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return ProductRow{}, ErrProductNotFound
	}
	return p, err
}

func (s *pgStore) ListFarmerOtherProducts(ctx context.Context, farmerID, exclude uuid.UUID, limit int) ([]ProductRow, error) {
	q := fmt.Sprintf(`SELECT %s %s
WHERE p.farmer_id = $1 AND p.is_active AND p.id <> $2
ORDER BY p.created_at DESC LIMIT $3`, productColumns, productJoins)

	rows, err := s.pool.Query(ctx, q, farmerID, exclude, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectProducts(rows)
}

func (s *pgStore) CountFarmerActiveProducts(ctx context.Context, farmerID uuid.UUID) (int64, error) {
	var total int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM products WHERE farmer_id = $1 AND is_active`, farmerID).Scan(&total)
	return total, err
}

func collectProducts(rows pgx.Rows) ([]ProductRow, error) {
	var out []ProductRow
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
