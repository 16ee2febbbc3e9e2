package invoice

import "fmt"

var currencySymbols = map[string]string{
	"ZAR": "R",
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
}

// formatAmount renders integer minor units as "R 235.00". Unknown currencies
// fall back to the ISO code as the prefix.
func formatAmount(currency string, cents int64) string {
	symbol, ok := currencySymbols[currency]
	if !ok {
		symbol = currency
	}

	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}

	return fmt.Sprintf("%s%s %d.%02d", sign, symbol, cents/100, cents%100)
}
