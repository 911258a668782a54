package product

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/agrilink/backend-agrilink/internal/common"
	"github.com/agrilink/backend-agrilink/internal/events"
)

// Sort keys accepted by the owner listing.
const (
	SortNewest    = "newest"
	SortOldest    = "oldest"
	SortPriceAsc  = "price_asc"
	SortPriceDesc = "price_desc"
	SortName      = "name"
	SortTopSales  = "top_sales"
)

// Actor identifies the authenticated caller of a product operation.
type Actor struct {
	ID   uuid.UUID
	Type string
}

// IsFarmer reports whether the actor may own listings.
func (a Actor) IsFarmer() bool {
	return a.Type == "farmer" || a.Type == "both"
}

// WriteInput is the create/edit payload for a listing.
type WriteInput struct {
	Name          string  `json:"name" validate:"required,min=3,max=200"`
	CategoryID    string  `json:"category_id" validate:"required,uuid4"`
	Description   string  `json:"description" validate:"required"`
	Price         float64 `json:"price" validate:"required,gt=0"`
	Unit          string  `json:"unit" validate:"required,max=50"`
	StockQuantity int     `json:"stock_quantity" validate:"gte=0"`
	Location      string  `json:"location" validate:"max=100"`
	ImageURL      *string `json:"image_url" validate:"omitempty,url"`
	IsActive      *bool   `json:"is_active"`
}

// MyProductsParams shapes the owner listing request.
type MyProductsParams struct {
	Status string
	Sort   string
	Page   int
	Limit  int
}

// MyProductsResult is the owner listing response.
type MyProductsResult struct {
	Items    []Product
	Total    int64
	Active   int64
	Inactive int64
	Page     int
	Limit    int
}

// Service implements farmer-facing product CRUD.
type Service struct {
	store    Store
	validate *validator.Validate
	bus      *events.Bus
	log      zerolog.Logger
	perPage  int
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Store     Store
	Validator *validator.Validate
	Bus       *events.Bus
	Logger    zerolog.Logger
	PerPage   int
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("product: store is required")
	}
	v := cfg.Validator
	if v == nil {
		v = validator.New()
	}
	perPage := cfg.PerPage
	if perPage < 1 {
		perPage = 12
	}
	return &Service{store: cfg.Store, validate: v, bus: cfg.Bus, log: cfg.Logger, perPage: perPage}, nil
}

func forbidden(message string) error {
	return common.NewAppError("FORBIDDEN", message, http.StatusForbidden, nil)
}

// validationError maps the first validator failure to a field-level error.
func (s *Service) validationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		field := strings.ToLower(verrs[0].Field())
		return common.ValidationError(field, fmt.Sprintf("%s failed %s validation", field, verrs[0].Tag()))
	}
	return common.NewAppError("BAD_REQUEST", "invalid payload", http.StatusBadRequest, err)
}

func (s *Service) buildProduct(actor Actor, in WriteInput) (Product, error) {
	if err := s.validate.Struct(in); err != nil {
		return Product{}, s.validationError(err)
	}
	categoryID, err := uuid.Parse(in.CategoryID)
	if err != nil {
		return Product{}, common.ValidationError("category_id", "category_id must be a valid id")
	}
	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}
	return Product{
		FarmerID:      actor.ID,
		CategoryID:    categoryID,
		Name:          strings.TrimSpace(in.Name),
		Description:   strings.TrimSpace(in.Description),
		Price:         in.Price,
		Unit:          strings.TrimSpace(in.Unit),
		StockQuantity: in.StockQuantity,
		Location:      strings.TrimSpace(in.Location),
		ImageURL:      in.ImageURL,
		IsActive:      active,
	}, nil
}

// Create adds a new listing for the acting farmer.
func (s *Service) Create(ctx context.Context, actor Actor, in WriteInput) (Product, error) {
	if !actor.IsFarmer() {
		return Product{}, forbidden("only farmers can add products")
	}
	p, err := s.buildProduct(actor, in)
	if err != nil {
		return Product{}, err
	}
	saved, err := s.store.InsertProduct(ctx, p)
	if err != nil {
		return Product{}, fmt.Errorf("product: insert: %w", err)
	}
	s.emit(ctx, events.TopicProductCreated, saved.ID, map[string]any{"name": saved.Name})
	return saved, nil
}

// Update edits an existing listing. Only the owner may edit.
func (s *Service) Update(ctx context.Context, actor Actor, id uuid.UUID, in WriteInput) (Product, error) {
	existing, err := s.store.GetProduct(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return Product{}, common.NotFound("product not found", err)
	}
	if err != nil {
		return Product{}, fmt.Errorf("product: load: %w", err)
	}
	if existing.FarmerID != actor.ID {
		return Product{}, forbidden("you do not have permission to edit this product")
	}

	p, err := s.buildProduct(actor, in)
	if err != nil {
		return Product{}, err
	}
	p.ID = existing.ID
	p.FarmerID = existing.FarmerID

	saved, err := s.store.UpdateProduct(ctx, p)
	if err != nil {
		return Product{}, fmt.Errorf("product: update: %w", err)
	}
	s.emit(ctx, events.TopicProductUpdated, saved.ID, map[string]any{"name": saved.Name})
	return saved, nil
}

// Delist soft-deletes a listing by flipping is_active off. Only the owner
// may delist; the row itself is kept.
func (s *Service) Delist(ctx context.Context, actor Actor, id uuid.UUID) error {
	existing, err := s.store.GetProduct(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return common.NotFound("product not found", err)
	}
	if err != nil {
		return fmt.Errorf("product: load: %w", err)
	}
	if existing.FarmerID != actor.ID {
		return forbidden("you do not have permission to delete this product")
	}
	if err := s.store.SetProductActive(ctx, id, false); err != nil {
		return fmt.Errorf("product: delist: %w", err)
	}
	s.emit(ctx, events.TopicProductDelisted, id, map[string]any{"name": existing.Name})
	return nil
}

// MyProducts lists the acting farmer's own products with status counts.
func (s *Service) MyProducts(ctx context.Context, actor Actor, params MyProductsParams) (MyProductsResult, error) {
	if !actor.IsFarmer() {
		return MyProductsResult{}, forbidden("only farmers can access this page")
	}
	page := params.Page
	if page < 1 {
		page = 1
	}
	limit := params.Limit
	if limit < 1 {
		limit = s.perPage
	}

	filter := MyProductsFilter{Sort: normalizeSort(params.Sort), Limit: limit, Offset: (page - 1) * limit}
	switch params.Status {
	case "active":
		v := true
		filter.Status = &v
	case "inactive":
		v := false
		filter.Status = &v
	}

	items, err := s.store.ListByFarmer(ctx, actor.ID, filter)
	if err != nil {
		return MyProductsResult{}, fmt.Errorf("product: list own: %w", err)
	}
	total, err := s.store.CountByFarmer(ctx, actor.ID, filter.Status)
	if err != nil {
		return MyProductsResult{}, fmt.Errorf("product: count own: %w", err)
	}
	activeFlag := true
	active, err := s.store.CountByFarmer(ctx, actor.ID, &activeFlag)
	if err != nil {
		return MyProductsResult{}, fmt.Errorf("product: count active: %w", err)
	}
	inactiveFlag := false
	inactive, err := s.store.CountByFarmer(ctx, actor.ID, &inactiveFlag)
	if err != nil {
		return MyProductsResult{}, fmt.Errorf("product: count inactive: %w", err)
	}

	return MyProductsResult{
		Items:    items,
		Total:    total,
		Active:   active,
		Inactive: inactive,
		Page:     page,
		Limit:    limit,
	}, nil
}

func normalizeSort(raw string) string {
	switch raw {
	case SortOldest, SortPriceAsc, SortPriceDesc, SortName, SortTopSales:
		return raw
	default:
		return SortNewest
	}
}

func (s *Service) emit(ctx context.Context, topic string, id uuid.UUID, payload any) {
	if s.bus == nil {
		return
	}
	if _, err := s.bus.Emit(ctx, topic, id, payload); err != nil {
		s.log.Warn().Err(err).Str("topic", topic).Msg("emit product event")
	}
}
