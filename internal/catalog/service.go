package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/agrilink/backend-agrilink/internal/common"
	"github.com/agrilink/backend-agrilink/internal/lock"
)

// Sort keys accepted by the public listing. Anything else falls back to
// newest first.
const (
	SortNewest    = "newest"
	SortOldest    = "oldest"
	SortPriceAsc  = "price_asc"
	SortPriceDesc = "price_desc"
	SortName      = "name"
)

// Service orchestrates catalog queries, DTO assembly, and caching.
type Service struct {
	queries      queryProvider
	cache        *Cache
	locker       *lock.Locker
	defaultPage  int
	defaultLimit int
	maxLimit     int
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Queries Store
	Cache   *Cache
	// Locker, when set, serialises cache rebuilds for hot list pages so a
	// cache miss does not stampede the database.
	Locker       *lock.Locker
	DefaultPage  int
	DefaultLimit int
	MaxLimit     int
}

// ListParams captures filters for product listing.
type ListParams struct {
	Search   string
	Category *uuid.UUID
	MinPrice *float64
	MaxPrice *float64
	Sort     string
	Page     int
	Limit    int
}

// Category represents the public category payload.
type Category struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// ProductListItem represents an entry in list/related responses.
type ProductListItem struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	FarmerName   string  `json:"farmer_name"`
	CategoryName string  `json:"category_name"`
	Price        float64 `json:"price"`
	Unit         string  `json:"unit"`
	Location     string  `json:"location,omitempty"`
	ImageURL     *string `json:"image_url,omitempty"`
	InStock      bool    `json:"in_stock"`
	StockStatus  string  `json:"stock_status"`
	IsFeatured   bool    `json:"is_featured"`
}

// ProductDetail aggregates the full detail payload.
type ProductDetail struct {
	ProductListItem
	Description       string            `json:"description"`
	StockQuantity     int               `json:"stock_quantity"`
	TotalSales        int               `json:"total_sales"`
	CreatedAt         time.Time         `json:"created_at"`
	FarmerID          string            `json:"farmer_id"`
	FarmerActiveCount int64             `json:"farmer_active_products"`
	OtherFromFarmer   []ProductListItem `json:"other_from_farmer"`
}

// ProductListResult contains list data and pagination metadata.
type ProductListResult struct {
	Items []ProductListItem
	Total int64
	Page  int
	Limit int
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Queries == nil {
		return nil, errors.New("catalog: queries provider is required")
	}
	defaultPage := cfg.DefaultPage
	if defaultPage < 1 {
		defaultPage = 1
	}
	defaultLimit := cfg.DefaultLimit
	if defaultLimit < 1 {
		defaultLimit = 12
	}
	maxLimit := cfg.MaxLimit
	if maxLimit < 1 {
		maxLimit = 100
	}
	if defaultLimit > maxLimit {
		defaultLimit = maxLimit
	}
	return &Service{
		queries:      cfg.Queries,
		cache:        cfg.Cache,
		locker:       cfg.Locker,
		defaultPage:  defaultPage,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
	}, nil
}

func badRequest(field, message string, err error) error {
	return &common.AppError{
		Code:       "BAD_REQUEST",
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
		Err:        err,
		Details:    map[string]string{"field": field},
	}
}

// ParseListParams normalises raw query values into strongly typed filters.
// Unparseable price bounds are ignored rather than rejected, matching the
// lenient browsing behavior of the storefront.
func (s *Service) ParseListParams(values url.Values) (ListParams, error) {
	params := ListParams{
		Page:  s.defaultPage,
		Limit: s.defaultLimit,
	}
	params.Search = strings.TrimSpace(values.Get("search"))

	if v := strings.TrimSpace(values.Get("category")); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return params, badRequest("category", "category must be a valid id", err)
		}
		params.Category = &id
	}
	if v := strings.TrimSpace(values.Get("min_price")); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			params.MinPrice = &parsed
		}
	}
	if v := strings.TrimSpace(values.Get("max_price")); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			params.MaxPrice = &parsed
		}
	}
	if v := strings.TrimSpace(values.Get("page")); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			return params, badRequest("page", "page must be a positive integer", err)
		}
		params.Page = page
	}
	limit := s.defaultLimit
	if v := strings.TrimSpace(values.Get("limit")); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil || l < 1 {
			return params, badRequest("limit", "limit must be a positive integer", err)
		}
		limit = l
	}
	if limit > s.maxLimit {
		limit = s.maxLimit
	}
	params.Limit = limit

	params.Sort = normalizeSort(values.Get("sort"))
	return params, nil
}

func normalizeSort(raw string) string {
	switch strings.TrimSpace(raw) {
	case SortOldest, SortPriceAsc, SortPriceDesc, SortName:
		return strings.TrimSpace(raw)
	default:
		return SortNewest
	}
}

// ListCategories returns all categories sorted by name.
func (s *Service) ListCategories(ctx context.Context) ([]Category, error) {
	const key = "catalog:categories"
	if s.cache != nil {
		var cached []Category
		if ok, err := s.cache.GetJSON(ctx, key, &cached); err == nil && ok {
			return cached, nil
		}
	}
	rows, err := s.queries.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	result := make([]Category, 0, len(rows))
	for _, row := range rows {
		result = append(result, Category{
			ID:          row.ID.String(),
			Name:        row.Name,
			Description: row.Description,
		})
	}
	if s.cache != nil {
		_ = s.cache.SetJSON(ctx, key, result)
	}
	return result, nil
}

type cachedList struct {
	Items []ProductListItem `json:"items"`
	Total int64             `json:"total"`
}

// listCacheKey produces a stable key for a listing query. Only unfiltered
// pages are cached; searches and filters go straight to the database.
func (s *Service) listCacheKey(params ListParams) (string, bool) {
	if params.Search != "" || params.Category != nil || params.MinPrice != nil || params.MaxPrice != nil {
		return "", false
	}
	return fmt.Sprintf("catalog:list:%s:%d:%d", params.Sort, params.Page, params.Limit), true
}

// ListProducts returns the filtered product list with pagination metadata.
func (s *Service) ListProducts(ctx context.Context, params ListParams) (ProductListResult, error) {
	key, useCache := s.listCacheKey(params)
	if useCache && s.cache != nil {
		var cached cachedList
		if ok, err := s.cache.GetJSON(ctx, key, &cached); err == nil && ok {
			return ProductListResult{Items: cached.Items, Total: cached.Total, Page: params.Page, Limit: params.Limit}, nil
		}
		if s.locker != nil {
			var result ProductListResult
			err := s.locker.WithLock(ctx, "lock:"+key, 10*time.Second, func(ctx context.Context) error {
				// Another worker may have rebuilt the page while we
				// waited for the lock.
				if ok, err := s.cache.GetJSON(ctx, key, &cached); err == nil && ok {
					result = ProductListResult{Items: cached.Items, Total: cached.Total, Page: params.Page, Limit: params.Limit}
					return nil
				}
				var buildErr error
				result, buildErr = s.buildList(ctx, params, key, useCache)
				return buildErr
			})
			if err == nil {
				return result, nil
			}
			if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
				// Lock errors fall back to an unguarded rebuild.
				return s.buildList(ctx, params, key, useCache)
			}
			return ProductListResult{}, err
		}
	}
	return s.buildList(ctx, params, key, useCache)
}

func (s *Service) buildList(ctx context.Context, params ListParams, key string, useCache bool) (ProductListResult, error) {
	filter := ProductFilter{
		Search:     params.Search,
		CategoryID: params.Category,
		MinPrice:   params.MinPrice,
		MaxPrice:   params.MaxPrice,
	}
	total, err := s.queries.CountProducts(ctx, filter)
	if err != nil {
		return ProductListResult{}, fmt.Errorf("count products: %w", err)
	}
	offset := (params.Page - 1) * params.Limit
	if offset < 0 {
		offset = 0
	}
	rows, err := s.queries.ListProducts(ctx, filter, params.Sort, params.Limit, offset)
	if err != nil {
		return ProductListResult{}, fmt.Errorf("list products: %w", err)
	}
	items := make([]ProductListItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, toListItem(row))
	}

	if useCache && s.cache != nil {
		_ = s.cache.SetJSON(ctx, key, cachedList{Items: items, Total: total})
	}
	return ProductListResult{Items: items, Total: total, Page: params.Page, Limit: params.Limit}, nil
}

// GetProductDetail loads one product plus up to four other active listings
// from the same farmer.
func (s *Service) GetProductDetail(ctx context.Context, id uuid.UUID) (ProductDetail, error) {
	row, err := s.queries.GetProduct(ctx, id)
	if errors.Is(err, ErrProductNotFound) {
		return ProductDetail{}, common.NotFound("product not found", err)
	}
	if err != nil {
		return ProductDetail{}, fmt.Errorf("get product: %w", err)
	}

	others, err := s.queries.ListFarmerOtherProducts(ctx, row.FarmerID, row.ID, 4)
	if err != nil {
		return ProductDetail{}, fmt.Errorf("list farmer products: %w", err)
	}
	activeCount, err := s.queries.CountFarmerActiveProducts(ctx, row.FarmerID)
	if err != nil {
		return ProductDetail{}, fmt.Errorf("count farmer products: %w", err)
	}

	detail := ProductDetail{
		ProductListItem:   toListItem(row),
		Description:       row.Description,
		StockQuantity:     row.StockQuantity,
		TotalSales:        row.TotalSales,
		CreatedAt:         row.CreatedAt,
		FarmerID:          row.FarmerID.String(),
		FarmerActiveCount: activeCount,
		OtherFromFarmer:   make([]ProductListItem, 0, len(others)),
	}
	for _, other := range others {
		detail.OtherFromFarmer = append(detail.OtherFromFarmer, toListItem(other))
	}
	return detail, nil
}

func toListItem(row ProductRow) ProductListItem {
	return ProductListItem{
		ID:           row.ID.String(),
		Name:         row.Name,
		FarmerName:   row.FarmerName,
		CategoryName: row.CategoryName,
		Price:        row.Price,
		Unit:         row.Unit,
		Location:     row.Location,
		ImageURL:     row.ImageURL,
		InStock:      row.IsActive && row.StockQuantity > 0,
		StockStatus:  stockStatus(row),
		IsFeatured:   row.IsFeatured,
	}
}

func stockStatus(row ProductRow) string {
	switch {
	case !row.IsActive:
		return "Unavailable"
	case row.StockQuantity == 0:
		return "Out of Stock"
	case row.StockQuantity < 10:
		return fmt.Sprintf("Low Stock (%d %s left)", row.StockQuantity, row.Unit)
	default:
		return fmt.Sprintf("In Stock (%d %s available)", row.StockQuantity, row.Unit)
	}
}
