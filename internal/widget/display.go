package widget

import "github.com/agrilink/backend-agrilink/internal/pricing"

// InputChanged records a new value for a price field and refreshes the
// display. Bind it to both price inputs' change events.
func (c *Controller) InputChanged(field Field, value string) {
	switch field {
	case FieldFarmgatePrice:
		c.page.FarmgateInput = value
	case FieldMarketPrice:
		c.page.MarketInput = value
	default:
		return
	}
	c.refreshDisplay()
}

// refreshDisplay recomputes the fair price and savings from the current
// inputs and replaces the display state wholesale. Safe to call repeatedly
// with unchanged inputs.
func (c *Controller) refreshDisplay() {
	result := pricing.Evaluate(c.page.FarmgateInput, c.page.MarketInput)

	c.page.FairPriceText = pricing.DisplayFairPrice(result)
	c.page.HasValue = result.Valid

	showBadge := result.SavingsPercent > 0 && marketProvided(c.page.MarketInput)
	c.page.BadgeVisible = showBadge
	if showBadge {
		c.page.BadgeText = formatSavingsBadge(result.SavingsPercent)
	} else {
		c.page.BadgeText = ""
	}
}
