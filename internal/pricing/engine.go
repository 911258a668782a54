package pricing

import (
	"math"
	"strconv"
	"strings"
)

// FallbackMarkup is applied to the farmgate price when no market price is
// available: the farmer keeps a 35% margin over the farmgate base.
const FallbackMarkup = 1.35

// Amount represents a parsed monetary input. Provided reports whether the
// raw value parsed to a usable positive number; Value is only meaningful
// when Provided is true.
type Amount struct {
	Value    float64
	Provided bool
}

// ParseAmount converts a raw input string into an Amount. Blank input,
// unparseable input, and non-positive values all yield Provided=false so
// callers never conflate "zero" with "absent".
func ParseAmount(raw string) Amount {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Amount{}
	}
	v, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return Amount{}
	}
	return Amount{Value: v, Provided: true}
}

// ComputeFairPrice returns the fair selling price for the given farmgate and
// market prices. The ok result is false when no price can be computed
// (farmgate absent or non-positive). With a usable market price the fair
// price is the market-split average; otherwise the fallback markup applies.
// The result is rounded to cents, half away from zero.
func ComputeFairPrice(farmgate, market Amount) (float64, bool) {
	if !farmgate.Provided {
		return 0, false
	}
	var fair float64
	if market.Provided {
		fair = (farmgate.Value + market.Value) / 2
	} else {
		fair = farmgate.Value * FallbackMarkup
	}
	return RoundCents(fair), true
}

// ComputeSavingsPercent returns the buyer's saving relative to the market
// price as an integer percentage. It is zero when there is no market price,
// no valid fair price, or no saving to be had.
func ComputeSavingsPercent(fair float64, fairValid bool, market Amount) int {
	if !market.Provided || !fairValid {
		return 0
	}
	if fair >= market.Value {
		return 0
	}
	return int(math.Round((market.Value - fair) / market.Value * 100))
}

// Result bundles the two derived values recomputed on every input change.
type Result struct {
	FairPrice      float64
	Valid          bool
	SavingsPercent int
}

// Evaluate parses both raw inputs and derives the full calculation result.
// It is a pure function of its inputs.
func Evaluate(rawFarmgate, rawMarket string) Result {
	farmgate := ParseAmount(rawFarmgate)
	market := ParseAmount(rawMarket)
	fair, ok := ComputeFairPrice(farmgate, market)
	return Result{
		FairPrice:      fair,
		Valid:          ok,
		SavingsPercent: ComputeSavingsPercent(fair, ok, market),
	}
}

// RoundCents rounds to two decimal places, half away from zero on the cent
// boundary.
func RoundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
