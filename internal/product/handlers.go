package product

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/agrilink/backend-agrilink/internal/common"
	"github.com/agrilink/backend-agrilink/internal/obs"
)

// Handler exposes farmer-facing product endpoints.
type Handler struct {
	service *Service
	log     zerolog.Logger
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Service *Service
	Logger  zerolog.Logger
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{service: cfg.Service, log: cfg.Logger}
}

type productJSON struct {
	ID            uuid.UUID `json:"id"`
	CategoryID    uuid.UUID `json:"category_id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Price         float64   `json:"price"`
	Unit          string    `json:"unit"`
	StockQuantity int       `json:"stock_quantity"`
	Location      string    `json:"location,omitempty"`
	ImageURL      *string   `json:"image_url,omitempty"`
	IsActive      bool      `json:"is_active"`
	IsFeatured    bool      `json:"is_featured"`
	TotalSales    int       `json:"total_sales"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func toJSON(p Product) productJSON {
	return productJSON{
		ID:            p.ID,
		CategoryID:    p.CategoryID,
		Name:          p.Name,
		Description:   p.Description,
		Price:         p.Price,
		Unit:          p.Unit,
		StockQuantity: p.StockQuantity,
		Location:      p.Location,
		ImageURL:      p.ImageURL,
		IsActive:      p.IsActive,
		IsFeatured:    p.IsFeatured,
		TotalSales:    p.TotalSales,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func (h *Handler) actor(r *http.Request) (Actor, bool) {
	raw, ok := common.UserID(r.Context())
	if !ok {
		return Actor{}, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return Actor{}, false
	}
	userType, _ := common.UserType(r.Context())
	return Actor{ID: id, Type: userType}, true
}

// Create handles POST /api/v1/products.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(r)
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	var in WriteInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid json body", nil)
		return
	}
	saved, err := h.service.Create(r.Context(), actor, in)
	if err != nil {
		countWrite("create", "error")
		common.WriteError(w, err)
		return
	}
	countWrite("create", "ok")
	common.JSON(w, http.StatusCreated, map[string]any{"data": toJSON(saved)})
}

// Update handles PUT /api/v1/products/{id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(r)
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.WriteError(w, common.NotFound("product not found", err))
		return
	}
	var in WriteInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid json body", nil)
		return
	}
	saved, err := h.service.Update(r.Context(), actor, id, in)
	if err != nil {
		countWrite("update", "error")
		common.WriteError(w, err)
		return
	}
	countWrite("update", "ok")
	common.JSON(w, http.StatusOK, map[string]any{"data": toJSON(saved)})
}

// Delete handles DELETE /api/v1/products/{id} (soft delete).
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(r)
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.WriteError(w, common.NotFound("product not found", err))
		return
	}
	if err := h.service.Delist(r.Context(), actor, id); err != nil {
		countWrite("delist", "error")
		common.WriteError(w, err)
		return
	}
	countWrite("delist", "ok")
	common.JSON(w, http.StatusOK, map[string]any{"success": true})
}

// MyProducts handles GET /api/v1/my/products.
func (h *Handler) MyProducts(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(r)
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	page, limit := common.ParsePagination(r, 12)
	params := MyProductsParams{
		Status: r.URL.Query().Get("status"),
		Sort:   r.URL.Query().Get("sort"),
		Page:   page,
		Limit:  limit,
	}
	result, err := h.service.MyProducts(r.Context(), actor, params)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	items := make([]productJSON, 0, len(result.Items))
	for _, item := range result.Items {
		items = append(items, toJSON(item))
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": items,
		"counts": map[string]int64{
			"total":    result.Total,
			"active":   result.Active,
			"inactive": result.Inactive,
		},
		"pagination": common.Pagination{Page: result.Page, PerPage: result.Limit, TotalItems: int(result.Total)},
	})
}

func countWrite(action, result string) {
	if c := obs.ProductWriteTotal; c != nil {
		c.WithLabelValues(action, result).Inc()
	}
}
