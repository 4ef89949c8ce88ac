package report

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var moneyPrinter = message.NewPrinter(language.AmericanEnglish)

// Money formats a dollar amount with thousands separators, e.g. $1,234.50
func Money(d decimal.Decimal) string {
	return moneyPrinter.Sprintf("$%.2f", d.Round(2).InexactFloat64())
}
