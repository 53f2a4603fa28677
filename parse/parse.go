/*
Package parse extracts currency amounts from free-form operator text.

Operators report takings as chat messages rather than structured
payloads, in whatever notation they are used to:

  "$12.50"        -> 12.50 USD
  "5000៛"         -> 5000 KHR
  "3 USD"         -> 3 USD
  "2000KHR"       -> 2000 KHR
  "៛1,500"        -> 1500 KHR
  "$5 and 2000៛"  -> 5 USD, 2000 KHR

A message can carry several amounts; each one becomes its own ledger
record. Text with no recognizable amount yields an empty slice, which
callers treat as "not a report" rather than an error.
*/
package parse

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/autosum/shift-engine/accounting"
)

// Entry is one extracted amount.
type Entry struct {
	Amount   decimal.Decimal
	Currency accounting.Currency
}

// Three notations: symbol-before, code-after, symbol-after.
var amountPattern = regexp.MustCompile(
	`(?i)([$៛])\s*([-+]?\d*\.?\d+)` +
		`|([-+]?\d*\.?\d+)\s*(USD|KHR)` +
		`|([-+]?\d*\.?\d+)\s*([$៛])`)

var symbolCurrency = map[string]accounting.Currency{
	"$": accounting.CurrencyUSD,
	"៛": accounting.CurrencyKHR,
}

// Amounts returns every (amount, currency) pair found in text, in
// order of appearance. Thousands separators are tolerated.
func Amounts(text string) []Entry {
	text = strings.ReplaceAll(text, ",", "")

	var entries []Entry
	for _, m := range amountPattern.FindAllStringSubmatch(text, -1) {
		var (
			raw      string
			currency accounting.Currency
		)
		switch {
		case m[1] != "" && m[2] != "":
			raw = m[2]
			currency = symbolCurrency[m[1]]
		case m[3] != "" && m[4] != "":
			raw = m[3]
			currency = accounting.Currency(strings.ToUpper(m[4]))
		case m[5] != "" && m[6] != "":
			raw = m[5]
			currency = symbolCurrency[m[6]]
		default:
			continue
		}

		amount, err := decimal.NewFromString(raw)
		if err != nil {
			continue
		}
		entries = append(entries, Entry{Amount: amount, Currency: currency})
	}
	return entries
}
