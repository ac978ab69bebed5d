package utils

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var moneyPrinter = message.NewPrinter(language.English)

// FormatMoney renders an amount with its ISO code and grouped digits,
// e.g. "SGD 12,500.00". Unknown codes are printed as given.
func FormatMoney(code string, amount decimal.Decimal) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if unit, err := currency.ParseISO(code); err == nil {
		code = unit.String()
	}

	f, _ := amount.Round(2).Float64()
	return moneyPrinter.Sprintf("%s %.2f", code, f)
}
