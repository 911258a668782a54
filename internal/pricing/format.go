package pricing

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// FormatAmount renders a monetary value with locale grouping and exactly two
// decimal digits, e.g. 12345.5 -> "12,345.50".
func FormatAmount(v float64) string {
	return printer.Sprintf("%.2f", v)
}

// DisplayFairPrice renders the fair price for the widget, falling back to
// "0.00" when the calculation is invalid.
func DisplayFairPrice(r Result) string {
	if !r.Valid {
		return "0.00"
	}
	return FormatAmount(r.FairPrice)
}
