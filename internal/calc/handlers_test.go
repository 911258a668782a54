package calc_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/agrilink/backend-agrilink/internal/calc"
	"github.com/agrilink/backend-agrilink/internal/common"
)

func newRouter(t *testing.T, store calc.Store, userID uuid.UUID) http.Handler {
	t.Helper()
	svc, err := calc.NewService(calc.ServiceConfig{Store: store, Logger: zerolog.Nop()})
	require.NoError(t, err)
	handler := calc.NewHandler(calc.HandlerConfig{Service: svc, Logger: zerolog.Nop()})

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if userID != uuid.Nil {
				req = req.WithContext(common.WithUser(req.Context(), userID.String(), "farmer"))
			}
			next.ServeHTTP(w, req)
		})
	})
	r.Post("/api/v1/tools/fair-price", handler.Save)
	r.Post("/api/v1/tools/fair-price/{id}/delete", handler.Delete)
	r.Get("/api/v1/tools/fair-price", handler.History)
	return r
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestSaveEndpointSuccess(t *testing.T) {
	store := &fakeStore{}
	router := newRouter(t, store, uuid.New())

	payload := `{"crop_name":"Tomatoes","product_name":"Tomatoes","category":"Vegetables","farmgate_price":100,"market_price":160,"fair_price":130}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/tools/fair-price", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	require.Equal(t, true, body["success"])

	calcJSON, ok := body["calculation"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, 130.0, calcJSON["fair_price"])
	require.Equal(t, 19.0, calcJSON["savings_percent"])
	require.Contains(t, calcJSON["delete_url"], "/api/v1/tools/fair-price/")
	require.Contains(t, calcIDString(t, calcJSON), "-")
}

func calcIDString(t *testing.T, calcJSON map[string]any) string {
	t.Helper()
	id, ok := calcJSON["id"].(string)
	require.True(t, ok)
	return id
}

func TestSaveEndpointNullMarketPrice(t *testing.T) {
	store := &fakeStore{}
	router := newRouter(t, store, uuid.New())

	payload := `{"crop_name":"Rice","product_name":"Rice","category":"Grains","farmgate_price":100,"market_price":null,"fair_price":135}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/tools/fair-price", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	require.Equal(t, true, body["success"])
	calcJSON := body["calculation"].(map[string]any)
	require.Equal(t, 135.0, calcJSON["fair_price"])
	require.Nil(t, calcJSON["market_price"])
}

func TestSaveEndpointDomainRejectionStays200(t *testing.T) {
	router := newRouter(t, &fakeStore{}, uuid.New())

	payload := `{"product_name":"","category":"Vegetables","farmgate_price":100}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/tools/fair-price", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	require.Equal(t, false, body["success"])
	require.Equal(t, "please enter a product name", body["error"])
}

func TestSaveEndpointMalformedJSONIs400(t *testing.T) {
	router := newRouter(t, &fakeStore{}, uuid.New())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/tools/fair-price", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	require.Equal(t, false, body["success"])
}

func TestSaveEndpointRequiresAuth(t *testing.T) {
	router := newRouter(t, &fakeStore{}, uuid.Nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/tools/fair-price", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDeleteEndpointSuccess(t *testing.T) {
	store := &fakeStore{}
	router := newRouter(t, store, uuid.New())

	id := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/tools/fair-price/"+id.String()+"/delete", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	require.Equal(t, true, body["success"])
	require.Equal(t, []uuid.UUID{id}, store.deleted)
}

func TestDeleteEndpointUnknownRowStays200(t *testing.T) {
	store := &fakeStore{deleteErr: calc.ErrNotFound}
	router := newRouter(t, store, uuid.New())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/tools/fair-price/"+uuid.NewString()+"/delete", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	require.Equal(t, false, body["success"])
	require.Equal(t, "calculation not found", body["error"])
}

func TestHistoryEndpointNewestFirstWithDeleteURLs(t *testing.T) {
	id := uuid.New()
	store := &fakeStore{rows: []calc.SavedCalculation{{
		ID:             id,
		CropName:       "Tomatoes",
		Category:       "Vegetables",
		FarmgatePrice:  100,
		FairPrice:      130,
		SavingsPercent: 19,
	}}}
	router := newRouter(t, store, uuid.New())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tools/fair-price", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	rows, ok := body["data"].([]any)
	require.True(t, ok)
	require.Len(t, rows, 1)
	row := rows[0].(map[string]any)
	require.Equal(t, "/api/v1/tools/fair-price/"+id.String()+"/delete", row["delete_url"])
}
