package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

const rupee = "₹"

var thousand = decimal.NewFromInt(1000)

// FormatINR renders an amount with two decimals and Indian digit grouping,
// e.g. 1234567.5 -> ₹12,34,567.50.
func FormatINR(amount decimal.Decimal) string {
	sign := ""
	if amount.IsNegative() {
		sign = "-"
		amount = amount.Neg()
	}
	fixed := amount.StringFixed(2)
	intPart, frac, _ := strings.Cut(fixed, ".")
	return sign + rupee + groupIndian(intPart) + "." + frac
}

// FormatCompact is the chart axis label: whole rupees, magnitudes above one
// thousand shown in thousands with a k suffix.
func FormatCompact(amount decimal.Decimal) string {
	sign := ""
	if amount.IsNegative() {
		sign = "-"
		amount = amount.Neg()
	}
	if amount.GreaterThan(thousand) {
		return sign + rupee + groupIndian(amount.Div(thousand).Round(0).String()) + "k"
	}
	return sign + rupee + groupIndian(amount.Round(0).String())
}

func groupIndian(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	head, tail := digits[:len(digits)-3], digits[len(digits)-3:]
	groups := make([]string, 0, len(head)/2+1)
	for len(head) > 2 {
		groups = append([]string{head[len(head)-2:]}, groups...)
		head = head[:len(head)-2]
	}
	if head != "" {
		groups = append([]string{head}, groups...)
	}
	return strings.Join(groups, ",") + "," + tail
}

// Sum adds amounts.
func Sum(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}
