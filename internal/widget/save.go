package widget

import (
	"context"

	"github.com/agrilink/backend-agrilink/internal/pricing"
)

type savePayload struct {
	CropName      string   `json:"crop_name"`
	ProductName   string   `json:"product_name"`
	Category      string   `json:"category"`
	FarmgatePrice float64  `json:"farmgate_price"`
	MarketPrice   *float64 `json:"market_price"`
	FairPrice     float64  `json:"fair_price"`
}

// Save runs the save workflow: validate, submit, then reload or report.
// Validation checks the product name, then the category, then the fair
// price; only the first failure is reported and no request is made. The
// save control is re-enabled and its label restored whatever the outcome.
func (c *Controller) Save(ctx context.Context) {
	c.page.Banner = ""

	if c.page.ProductName == "" {
		c.page.Banner = msgMissingName
		c.page.Focused = FieldProductName
		return
	}
	if c.page.Category == "" {
		c.page.Banner = msgMissingCat
		c.page.Focused = FieldCategory
		return
	}
	result := pricing.Evaluate(c.page.FarmgateInput, c.page.MarketInput)
	if !result.Valid {
		c.page.Banner = msgInvalidPrice
		c.page.Focused = FieldFarmgatePrice
		return
	}

	c.page.SaveDisabled = true
	c.page.SaveLabel = saveLabelBusy
	defer func() {
		c.page.SaveDisabled = false
		c.page.SaveLabel = saveLabelIdle
	}()

	payload := savePayload{
		CropName:      c.page.ProductName,
		ProductName:   c.page.ProductName,
		Category:      c.page.Category,
		FarmgatePrice: pricing.ParseAmount(c.page.FarmgateInput).Value,
		FairPrice:     result.FairPrice,
	}
	if market := pricing.ParseAmount(c.page.MarketInput); market.Provided {
		payload.MarketPrice = &market.Value
	}

	resp, err := c.post(ctx, c.pageURL, payload)
	if err != nil {
		c.page.Banner = msgNetworkError
		return
	}
	if !resp.Success {
		if resp.Error != "" {
			c.page.Banner = resp.Error
		} else {
			c.page.Banner = msgSaveFailed
		}
		return
	}
	c.page.ReloadRequested = true
}
