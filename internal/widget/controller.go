// Package widget implements the fair-price calculator controller: the live
// display updater, the save workflow, and the delete confirmation workflow.
// The page surface is modelled as an explicit in-memory structure; the
// controller reacts to named input and click events and is the page's only
// mutator, so no locking is needed.
package widget

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/agrilink/backend-agrilink/internal/common"
	"github.com/agrilink/backend-agrilink/internal/pricing"
)

const (
	saveLabelIdle   = "Save Calculation"
	saveLabelBusy   = "Saving..."
	csrfCookieName  = "csrftoken"
	csrfHeaderName  = "X-CSRFToken"
	msgMissingName  = "please enter a product name"
	msgMissingCat   = "please select a category"
	msgInvalidPrice = "please enter a valid farmgate price"
	msgSaveFailed   = "failed to save, please try again"
	msgDeleteFailed = "failed to delete, please try again"
	msgNetworkError = "network error, please try again"
)

// pendingDelete is the single-slot delete intent held between modal open and
// confirm or cancel. Opening the modal for another row overwrites it.
type pendingDelete struct {
	url   string
	rowID string
}

// Controller drives a calculator Page against the save/delete endpoints.
type Controller struct {
	page         *Page
	client       *http.Client
	pageURL      string
	cookieHeader string
	pending      *pendingDelete
}

// Config configures a Controller.
type Config struct {
	Page *Page
	// PageURL is the page's own URL; the save workflow posts to it.
	PageURL string
	// CookieHeader is the page's cookie string, read for the CSRF token.
	CookieHeader string
	Client       *http.Client
}

// NewController constructs a Controller.
func NewController(cfg Config) (*Controller, error) {
	if cfg.Page == nil {
		return nil, errors.New("widget: page is required")
	}
	if cfg.PageURL == "" {
		return nil, errors.New("widget: page url is required")
	}
	client := cfg.Client
	if client == nil {
		client = http.DefaultClient
	}
	return &Controller{
		page:         cfg.Page,
		client:       client,
		pageURL:      cfg.PageURL,
		cookieHeader: cfg.CookieHeader,
	}, nil
}

// Page returns the surface the controller mutates.
func (c *Controller) Page() *Page { return c.page }

type exchangeResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// post issues one JSON exchange with the CSRF header attached. A transport
// failure or an undecodable body both count as a network error.
func (c *Controller) post(ctx context.Context, url string, body any) (exchangeResult, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return exchangeResult{}, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return exchangeResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token, ok := common.ReadCookie(c.cookieHeader, csrfCookieName); ok {
		req.Header.Set(csrfHeaderName, token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return exchangeResult{}, err
	}
	defer resp.Body.Close()

	var out exchangeResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return exchangeResult{}, err
	}
	return out, nil
}

func formatSavingsBadge(percent int) string {
	return strconv.Itoa(percent) + "%"
}

func marketProvided(raw string) bool {
	return pricing.ParseAmount(raw).Provided
}
