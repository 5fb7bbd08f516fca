package price

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var usPrinter = message.NewPrinter(language.AmericanEnglish)

// FormatUSD renders an amount as en-US currency with two fraction digits, e.g. "$1,234.56"
func FormatUSD(amount decimal.Decimal) string {
	f, _ := amount.Round(2).Float64()
	return usPrinter.Sprintf("$%.2f", f)
}
