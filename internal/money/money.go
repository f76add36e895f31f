// Package money keeps stored and displayed amounts on the same rounding.
package money

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"dokan/internal/domain"
)

// Places is the number of fractional digits amounts are stored with.
const Places = 2

func Normalize(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(Places)
}

func Parse(raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, domain.Validation("amount", "must be a number")
	}
	return Normalize(d), nil
}

func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

func ClampZero(a decimal.Decimal) decimal.Decimal {
	if a.IsNegative() {
		return decimal.Zero
	}
	return a
}

func tagFor(lang domain.Language) language.Tag {
	if lang == domain.LanguageBN {
		return language.Bengali
	}
	return language.English
}

// Format renders amount with locale digit grouping and the currency symbol
// in front. Whole amounts are shown without a fraction.
func Format(amount decimal.Decimal, currency string, lang domain.Language) string {
	p := message.NewPrinter(tagFor(lang))
	rounded := Normalize(amount)
	scale := 0
	if !rounded.Equal(rounded.Truncate(0)) {
		scale = Places
	}
	sign := ""
	if rounded.IsNegative() {
		sign = "-"
		rounded = rounded.Neg()
	}
	return sign + currency + p.Sprint(number.Decimal(rounded.InexactFloat64(), number.Scale(scale)))
}
