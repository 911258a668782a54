package calc

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/agrilink/backend-agrilink/internal/events"
	"github.com/agrilink/backend-agrilink/internal/pricing"
)

// RejectionError is a domain-level save/delete rejection surfaced to the
// widget as {success:false, error}. It never maps to a non-200 status.
type RejectionError struct {
	Message string
}

func (e RejectionError) Error() string { return e.Message }

func reject(msg string) error { return RejectionError{Message: msg} }

// SaveInput carries the widget's save payload after JSON decoding.
type SaveInput struct {
	CropName      string   `json:"crop_name"`
	ProductName   string   `json:"product_name"`
	Category      string   `json:"category"`
	FarmgatePrice float64  `json:"farmgate_price"`
	MarketPrice   *float64 `json:"market_price"`
	FairPrice     float64  `json:"fair_price"`
}

// Service implements the fair-price save, delete, and history operations.
type Service struct {
	store        Store
	bus          *events.Bus
	log          zerolog.Logger
	historyLimit int
}

// ServiceConfig configures the Service dependencies.
type ServiceConfig struct {
	Store        Store
	Bus          *events.Bus
	Logger       zerolog.Logger
	HistoryLimit int
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("calc: store is required")
	}
	limit := cfg.HistoryLimit
	if limit <= 0 {
		limit = 50
	}
	return &Service{
		store:        cfg.Store,
		bus:          cfg.Bus,
		log:          cfg.Logger,
		historyLimit: limit,
	}, nil
}

// Save re-validates the payload, recomputes the fair price server-side, and
// persists the calculation for the user. The client-sent fair_price is
// advisory only; the stored value is always recomputed.
func (s *Service) Save(ctx context.Context, userID uuid.UUID, in SaveInput) (SavedCalculation, error) {
	name := strings.TrimSpace(in.ProductName)
	if name == "" {
		name = strings.TrimSpace(in.CropName)
	}
	if name == "" {
		return SavedCalculation{}, reject("please enter a product name")
	}
	category := strings.TrimSpace(in.Category)
	if category == "" {
		return SavedCalculation{}, reject("please select a category")
	}

	farmgate := pricing.Amount{Value: in.FarmgatePrice, Provided: in.FarmgatePrice > 0}
	market := pricing.Amount{}
	if in.MarketPrice != nil && *in.MarketPrice > 0 {
		market = pricing.Amount{Value: *in.MarketPrice, Provided: true}
	}
	fair, valid := pricing.ComputeFairPrice(farmgate, market)
	if !valid {
		return SavedCalculation{}, reject("please enter a valid farmgate price")
	}
	savings := pricing.ComputeSavingsPercent(fair, valid, market)

	calc := SavedCalculation{
		UserID:         userID,
		CropName:       name,
		Category:       category,
		FarmgatePrice:  pricing.RoundCents(in.FarmgatePrice),
		FairPrice:      fair,
		SavingsPercent: savings,
	}
	if market.Provided {
		v := pricing.RoundCents(market.Value)
		calc.MarketPrice = &v
	}

	saved, err := s.store.InsertCalculation(ctx, calc)
	if err != nil {
		return SavedCalculation{}, fmt.Errorf("calc: insert calculation: %w", err)
	}

	s.emit(ctx, events.TopicCalculationSaved, saved.ID, map[string]any{
		"crop_name":  saved.CropName,
		"fair_price": saved.FairPrice,
	})
	return saved, nil
}

// Delete removes a saved calculation owned by the user.
func (s *Service) Delete(ctx context.Context, userID, id uuid.UUID) error {
	err := s.store.DeleteCalculation(ctx, id, userID)
	if errors.Is(err, ErrNotFound) {
		return reject("calculation not found")
	}
	if err != nil {
		return fmt.Errorf("calc: delete calculation: %w", err)
	}
	s.emit(ctx, events.TopicCalculationDeleted, id, nil)
	return nil
}

// History lists the user's saved calculations, newest first.
func (s *Service) History(ctx context.Context, userID uuid.UUID) ([]SavedCalculation, error) {
	rows, err := s.store.ListCalculationsByUser(ctx, userID, s.historyLimit)
	if err != nil {
		return nil, fmt.Errorf("calc: list calculations: %w", err)
	}
	return rows, nil
}

func (s *Service) emit(ctx context.Context, topic string, aggregateID uuid.UUID, payload any) {
	if s.bus == nil {
		return
	}
	if _, err := s.bus.Emit(ctx, topic, aggregateID, payload); err != nil {
		s.log.Warn().Err(err).Str("topic", topic).Msg("emit calculation event")
	}
}
