package widget_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agrilink/backend-agrilink/internal/widget"
)

type capturedSave struct {
	body   map[string]any
	header http.Header
}

func saveServer(t *testing.T, status int, respond map[string]any, captured *capturedSave, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		if captured != nil {
			captured.header = r.Header.Clone()
			_ = json.NewDecoder(r.Body).Decode(&captured.body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(respond)
	}))
}

func TestSaveValidationOrderNoNetworkCall(t *testing.T) {
	var hits atomic.Int32
	srv := saveServer(t, http.StatusOK, map[string]any{"success": true}, nil, &hits)
	defer srv.Close()

	page := widget.NewPage(nil)
	c := newController(t, page, srv.URL, "", srv.Client())
	c.InputChanged(widget.FieldFarmgatePrice, "100")

	c.Save(context.Background())
	require.Equal(t, "please enter a product name", page.Banner)
	require.Equal(t, widget.FieldProductName, page.Focused)

	page.ProductName = "Tomatoes"
	c.Save(context.Background())
	require.Equal(t, "please select a category", page.Banner)
	require.Equal(t, widget.FieldCategory, page.Focused)

	page.Category = "Vegetables"
	c.InputChanged(widget.FieldFarmgatePrice, "0")
	c.Save(context.Background())
	require.Equal(t, "please enter a valid farmgate price", page.Banner)
	require.Equal(t, widget.FieldFarmgatePrice, page.Focused)

	require.Equal(t, int32(0), hits.Load())
	require.False(t, page.SaveDisabled)
	require.False(t, page.ReloadRequested)
}

func TestSaveSuccessRequestsReload(t *testing.T) {
	captured := &capturedSave{}
	srv := saveServer(t, http.StatusOK, map[string]any{"success": true}, captured, nil)
	defer srv.Close()

	page := widget.NewPage(nil)
	page.ProductName = "Tomatoes"
	page.Category = "Vegetables"
	c := newController(t, page, srv.URL, "sessionid=abc; csrftoken=tok%3D123", srv.Client())
	c.InputChanged(widget.FieldFarmgatePrice, "100")
	c.InputChanged(widget.FieldMarketPrice, "160")

	c.Save(context.Background())

	require.True(t, page.ReloadRequested)
	require.Empty(t, page.Banner)
	require.False(t, page.SaveDisabled)
	require.Equal(t, "Save Calculation", page.SaveLabel)

	require.Equal(t, "tok=123", captured.header.Get("X-CSRFToken"))
	require.Equal(t, "Tomatoes", captured.body["crop_name"])
	require.Equal(t, "Tomatoes", captured.body["product_name"])
	require.Equal(t, "Vegetables", captured.body["category"])
	require.Equal(t, 100.0, captured.body["farmgate_price"])
	require.Equal(t, 160.0, captured.body["market_price"])
	require.Equal(t, 130.0, captured.body["fair_price"])
}

func TestSaveSendsNullMarketPriceWhenAbsent(t *testing.T) {
	captured := &capturedSave{}
	srv := saveServer(t, http.StatusOK, map[string]any{"success": true}, captured, nil)
	defer srv.Close()

	page := widget.NewPage(nil)
	page.ProductName = "Rice"
	page.Category = "Grains"
	c := newController(t, page, srv.URL, "csrftoken=tok", srv.Client())
	c.InputChanged(widget.FieldFarmgatePrice, "100")

	c.Save(context.Background())

	require.Contains(t, captured.body, "market_price")
	require.Nil(t, captured.body["market_price"])
	require.Equal(t, 135.0, captured.body["fair_price"])
}

func TestSaveServerRejectionShowsVerbatimError(t *testing.T) {
	srv := saveServer(t, http.StatusOK, map[string]any{"success": false, "error": "please select a category"}, nil, nil)
	defer srv.Close()

	page := widget.NewPage(nil)
	page.ProductName = "Tomatoes"
	page.Category = "Vegetables"
	c := newController(t, page, srv.URL, "csrftoken=tok", srv.Client())
	c.InputChanged(widget.FieldFarmgatePrice, "100")

	c.Save(context.Background())

	require.Equal(t, "please select a category", page.Banner)
	require.False(t, page.ReloadRequested)
	require.False(t, page.SaveDisabled)
	require.Equal(t, "Save Calculation", page.SaveLabel)
}

func TestSaveServerRejectionWithoutMessageUsesGeneric(t *testing.T) {
	srv := saveServer(t, http.StatusOK, map[string]any{"success": false}, nil, nil)
	defer srv.Close()

	page := widget.NewPage(nil)
	page.ProductName = "Tomatoes"
	page.Category = "Vegetables"
	c := newController(t, page, srv.URL, "csrftoken=tok", srv.Client())
	c.InputChanged(widget.FieldFarmgatePrice, "100")

	c.Save(context.Background())
	require.Equal(t, "failed to save, please try again", page.Banner)
}

func TestSaveNetworkErrorShowsGenericMessage(t *testing.T) {
	srv := saveServer(t, http.StatusOK, map[string]any{"success": true}, nil, nil)
	client := srv.Client()
	url := srv.URL
	srv.Close()

	page := widget.NewPage(nil)
	page.ProductName = "Tomatoes"
	page.Category = "Vegetables"
	c := newController(t, page, url, "csrftoken=tok", client)
	c.InputChanged(widget.FieldFarmgatePrice, "100")

	c.Save(context.Background())

	require.Equal(t, "network error, please try again", page.Banner)
	require.False(t, page.ReloadRequested)
	require.False(t, page.SaveDisabled)
	require.Equal(t, "Save Calculation", page.SaveLabel)
}

func TestSaveBannerClearedOnNextAttempt(t *testing.T) {
	srv := saveServer(t, http.StatusOK, map[string]any{"success": true}, nil, nil)
	defer srv.Close()

	page := widget.NewPage(nil)
	page.Category = "Vegetables"
	c := newController(t, page, srv.URL, "csrftoken=tok", srv.Client())
	c.InputChanged(widget.FieldFarmgatePrice, "100")

	c.Save(context.Background())
	require.Equal(t, "please enter a product name", page.Banner)

	page.ProductName = "Tomatoes"
	c.Save(context.Background())
	require.Empty(t, page.Banner)
	require.True(t, page.ReloadRequested)
}
