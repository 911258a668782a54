// Package favorites lets buyers bookmark product listings.
package favorites

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/agrilink/backend-agrilink/internal/common"
)

// Handler exposes the favorites endpoints.
type Handler struct {
	Store Store
}

type favoriteJSON struct {
	ProductID   uuid.UUID `json:"product_id"`
	ProductName string    `json:"product_name"`
	FarmerName  string    `json:"farmer_name"`
	Price       float64   `json:"price"`
	Unit        string    `json:"unit"`
	ImageURL    *string   `json:"image_url,omitempty"`
	IsActive    bool      `json:"is_active"`
	SavedAt     time.Time `json:"saved_at"`
}

// List handles GET /api/v1/favorites.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(r)
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	rows, err := h.Store.ListFavorites(r.Context(), userID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list favorites", nil)
		return
	}
	out := make([]favoriteJSON, 0, len(rows))
	for _, row := range rows {
		out = append(out, favoriteJSON{
			ProductID:   row.ProductID,
			ProductName: row.ProductName,
			FarmerName:  row.FarmerName,
			Price:       row.Price,
			Unit:        row.Unit,
			ImageURL:    row.ImageURL,
			IsActive:    row.IsActive,
			SavedAt:     row.SavedAt,
		})
	}
	common.JSONData(w, http.StatusOK, out)
}

// Toggle handles POST /api/v1/favorites. A listing already saved is
// removed, otherwise it is added.
func (h *Handler) Toggle(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(r)
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}

	var req struct {
		ProductID string `json:"product_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid json body", nil)
		return
	}
	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid product id", nil)
		return
	}

	exists, err := h.Store.HasFavorite(r.Context(), userID, productID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to toggle favorite", nil)
		return
	}
	if exists {
		err = h.Store.RemoveFavorite(r.Context(), userID, productID)
	} else {
		err = h.Store.AddFavorite(r.Context(), userID, productID)
	}
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to toggle favorite", nil)
		return
	}
	common.JSONData(w, http.StatusOK, map[string]bool{"favorited": !exists})
}

// Check handles GET /api/v1/favorites/{id}. Anonymous callers always get
// false.
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	productID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid product id", nil)
		return
	}
	userID, ok := authedUser(r)
	if !ok {
		common.JSONData(w, http.StatusOK, map[string]bool{"favorited": false})
		return
	}
	exists, err := h.Store.HasFavorite(r.Context(), userID, productID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to check favorite", nil)
		return
	}
	common.JSONData(w, http.StatusOK, map[string]bool{"favorited": exists})
}

func authedUser(r *http.Request) (uuid.UUID, bool) {
	raw, ok := common.UserID(r.Context())
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
