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

func deleteServer(t *testing.T, respond map[string]any, lastPath *string, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		if lastPath != nil {
			*lastPath = r.URL.Path
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(respond)
	}))
}

func historyPage(srvURL string) *widget.Page {
	return widget.NewPage([]widget.Row{
		{ID: "row-1", Label: "Tomatoes", DeleteURL: srvURL + "/tools/fair-price/row-1/delete"},
		{ID: "row-2", Label: "Rice", DeleteURL: srvURL + "/tools/fair-price/row-2/delete"},
	})
}

func TestOpenDeleteModalRecordsIntent(t *testing.T) {
	page := historyPage("http://agrilink.test")
	c := newController(t, page, "", "csrftoken=tok", nil)

	c.OpenDeleteModal("row-1")

	require.True(t, page.ModalOpen)
	require.Equal(t, widget.FieldConfirmDelete, page.Focused)
}

func TestCancelClearsPendingWithoutNetworkCall(t *testing.T) {
	var hits atomic.Int32
	srv := deleteServer(t, map[string]any{"success": true}, nil, &hits)
	defer srv.Close()

	page := historyPage(srv.URL)
	c := newController(t, page, "", "csrftoken=tok", srv.Client())

	c.OpenDeleteModal("row-1")
	c.CancelDelete()
	require.False(t, page.ModalOpen)

	// confirm after cancel is a no-op
	c.ConfirmDelete(context.Background())
	require.Equal(t, int32(0), hits.Load())
	require.Len(t, page.Rows, 2)
}

func TestConfirmDeleteRemovesRowInPlace(t *testing.T) {
	var lastPath string
	srv := deleteServer(t, map[string]any{"success": true}, &lastPath, nil)
	defer srv.Close()

	page := historyPage(srv.URL)
	c := newController(t, page, "", "csrftoken=tok", srv.Client())

	c.OpenDeleteModal("row-1")
	c.ConfirmDelete(context.Background())

	require.Equal(t, "/tools/fair-price/row-1/delete", lastPath)
	require.Len(t, page.Rows, 1)
	require.Equal(t, "row-2", page.Rows[0].ID)
	require.False(t, page.ModalOpen)
	require.False(t, page.ReloadRequested)
	require.Empty(t, page.Banner)
}

func TestSecondOpenOverwritesPendingSlot(t *testing.T) {
	var lastPath string
	srv := deleteServer(t, map[string]any{"success": true}, &lastPath, nil)
	defer srv.Close()

	page := historyPage(srv.URL)
	c := newController(t, page, "", "csrftoken=tok", srv.Client())

	c.OpenDeleteModal("row-1")
	c.OpenDeleteModal("row-2")
	c.ConfirmDelete(context.Background())

	require.Equal(t, "/tools/fair-price/row-2/delete", lastPath)
	require.Len(t, page.Rows, 1)
	require.Equal(t, "row-1", page.Rows[0].ID)
}

func TestConfirmDeleteRejectionShowsBannerKeepsRow(t *testing.T) {
	srv := deleteServer(t, map[string]any{"success": false, "error": "calculation not found"}, nil, nil)
	defer srv.Close()

	page := historyPage(srv.URL)
	c := newController(t, page, "", "csrftoken=tok", srv.Client())

	c.OpenDeleteModal("row-1")
	c.ConfirmDelete(context.Background())

	require.Equal(t, "calculation not found", page.Banner)
	require.Len(t, page.Rows, 2)
	require.False(t, page.Rows[0].DeleteDisabled)
}

func TestConfirmDeleteNetworkError(t *testing.T) {
	srv := deleteServer(t, map[string]any{"success": true}, nil, nil)
	client := srv.Client()
	page := historyPage(srv.URL)
	srv.Close()

	c := newController(t, page, "", "csrftoken=tok", client)
	c.OpenDeleteModal("row-2")
	c.ConfirmDelete(context.Background())

	require.Equal(t, "network error, please try again", page.Banner)
	require.Len(t, page.Rows, 2)
	require.False(t, page.Rows[1].DeleteDisabled)
}
