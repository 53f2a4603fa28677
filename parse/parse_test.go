package parse_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autosum/shift-engine/accounting"
	"github.com/autosum/shift-engine/parse"
)

func TestAmounts(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []struct {
			amount   string
			currency accounting.Currency
		}
	}{
		{
			name: "dollar symbol before",
			text: "$12.50",
			want: []struct {
				amount   string
				currency accounting.Currency
			}{{"12.50", accounting.CurrencyUSD}},
		},
		{
			name: "riel symbol after",
			text: "5000៛",
			want: []struct {
				amount   string
				currency accounting.Currency
			}{{"5000", accounting.CurrencyKHR}},
		},
		{
			name: "riel symbol before",
			text: "៛1500",
			want: []struct {
				amount   string
				currency accounting.Currency
			}{{"1500", accounting.CurrencyKHR}},
		},
		{
			name: "currency code after",
			text: "3 USD",
			want: []struct {
				amount   string
				currency accounting.Currency
			}{{"3", accounting.CurrencyUSD}},
		},
		{
			name: "lowercase code",
			text: "2000khr",
			want: []struct {
				amount   string
				currency accounting.Currency
			}{{"2000", accounting.CurrencyKHR}},
		},
		{
			name: "thousands separator stripped",
			text: "៛1,500",
			want: []struct {
				amount   string
				currency accounting.Currency
			}{{"1500", accounting.CurrencyKHR}},
		},
		{
			name: "symbol with space",
			text: "$ 7.25",
			want: []struct {
				amount   string
				currency accounting.Currency
			}{{"7.25", accounting.CurrencyUSD}},
		},
		{
			name: "negative amount",
			text: "$-5.50",
			want: []struct {
				amount   string
				currency accounting.Currency
			}{{"-5.50", accounting.CurrencyUSD}},
		},
		{
			name: "multiple amounts keep order",
			text: "$5 and 2000៛ from the drawer",
			want: []struct {
				amount   string
				currency accounting.Currency
			}{
				{"5", accounting.CurrencyUSD},
				{"2000", accounting.CurrencyKHR},
			},
		},
		{
			name: "no amounts",
			text: "closing up now",
			want: nil,
		},
		{
			name: "bare number is not an amount",
			text: "we had 20 customers",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries := parse.Amounts(tt.text)
			require.Len(t, entries, len(tt.want))
			for i, w := range tt.want {
				assert.Equal(t, w.currency, entries[i].Currency)
				assert.Equal(t, w.amount, entries[i].Amount.String(),
					"entry %d of %q", i, tt.text)
			}
		})
	}
}

func TestAmounts_DecimalPrecision(t *testing.T) {
	entries := parse.Amounts("$0.1 and $0.2")
	require.Len(t, entries, 2)

	sum := entries[0].Amount.Add(entries[1].Amount)
	assert.Equal(t, "0.3", sum.String(), "no float drift")
}
