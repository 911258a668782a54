package calc

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/agrilink/backend-agrilink/internal/common"
	"github.com/agrilink/backend-agrilink/internal/obs"
)

// Handler exposes the fair-price calculator endpoints.
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

type calculationJSON struct {
	ID             uuid.UUID `json:"id"`
	CropName       string    `json:"crop_name"`
	Category       string    `json:"category"`
	FarmgatePrice  float64   `json:"farmgate_price"`
	MarketPrice    *float64  `json:"market_price"`
	FairPrice      float64   `json:"fair_price"`
	SavingsPercent int       `json:"savings_percent"`
	CreatedAt      time.Time `json:"created_at"`
	DeleteURL      string    `json:"delete_url"`
}

func toJSON(c SavedCalculation) calculationJSON {
	return calculationJSON{
		ID:             c.ID,
		CropName:       c.CropName,
		Category:       c.Category,
		FarmgatePrice:  c.FarmgatePrice,
		MarketPrice:    c.MarketPrice,
		FairPrice:      c.FairPrice,
		SavingsPercent: c.SavingsPercent,
		CreatedAt:      c.CreatedAt,
		DeleteURL:      "/api/v1/tools/fair-price/" + c.ID.String() + "/delete",
	}
}

// Save handles POST /api/v1/tools/fair-price.
//
// Domain rejections (validation, ownership) keep HTTP 200 so the widget's
// success-flag contract holds; only malformed requests get 4xx.
func (h *Handler) Save(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": "calculator service not configured"})
		return
	}
	userID, ok := authedUser(r)
	if !ok {
		common.JSON(w, http.StatusUnauthorized, map[string]any{"success": false, "error": "authentication required"})
		return
	}

	var in SaveInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "invalid json body"})
		return
	}

	saved, err := h.service.Save(r.Context(), userID, in)
	var rejection RejectionError
	switch {
	case errors.As(err, &rejection):
		incr(obs.CalcSaveTotal, "rejected")
		common.JSON(w, http.StatusOK, map[string]any{"success": false, "error": rejection.Message})
	case err != nil:
		incr(obs.CalcSaveTotal, "error")
		h.log.Error().Err(err).Msg("save calculation")
		common.JSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": "failed to save calculation"})
	default:
		incr(obs.CalcSaveTotal, "saved")
		common.JSON(w, http.StatusOK, map[string]any{"success": true, "calculation": toJSON(saved)})
	}
}

// Delete handles POST /api/v1/tools/fair-price/{id}/delete.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": "calculator service not configured"})
		return
	}
	userID, ok := authedUser(r)
	if !ok {
		common.JSON(w, http.StatusUnauthorized, map[string]any{"success": false, "error": "authentication required"})
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSON(w, http.StatusOK, map[string]any{"success": false, "error": "calculation not found"})
		return
	}

	err = h.service.Delete(r.Context(), userID, id)
	var rejection RejectionError
	switch {
	case errors.As(err, &rejection):
		incr(obs.CalcDeleteTotal, "rejected")
		common.JSON(w, http.StatusOK, map[string]any{"success": false, "error": rejection.Message})
	case err != nil:
		incr(obs.CalcDeleteTotal, "error")
		h.log.Error().Err(err).Msg("delete calculation")
		common.JSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": "failed to delete calculation"})
	default:
		incr(obs.CalcDeleteTotal, "deleted")
		common.JSON(w, http.StatusOK, map[string]any{"success": true})
	}
}

// History handles GET /api/v1/tools/fair-price/history.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "calculator service not configured", nil)
		return
	}
	userID, ok := authedUser(r)
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	rows, err := h.service.History(r.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Msg("list calculations")
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load calculations", nil)
		return
	}
	out := make([]calculationJSON, 0, len(rows))
	for _, row := range rows {
		out = append(out, toJSON(row))
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": out})
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

func incr(c *prometheus.CounterVec, result string) {
	if c != nil {
		c.WithLabelValues(result).Inc()
	}
}
