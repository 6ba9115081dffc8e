package core

// convert.go coerces raw billing cells into amounts.
//
// Billing exports carry the usual spreadsheet noise:
//   - Currency symbols and thousand separators in numbers
//   - Accounting negatives written as "(123.45)"
//   - Excel formula prefixes (="value")
//
// ParseAmount never fails; callers decide whether a rejected value is worth
// a warning.

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// numericRegex validates that a string is a valid numeric format after cleanup.
// Matches integers, decimals, and scientific notation.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

var currencyReplacer = strings.NewReplacer(
	"$", "",
	"€", "", // Euro
	"£", "", // Pound
	",", "",
)

// ParseAmount converts a cell to a decimal amount.
// The second return is false when the cell is non-empty but not numeric; the
// amount is then zero. Empty cells return zero and true.
func ParseAmount(s string) (decimal.Decimal, bool) {
	s = CleanCell(s)
	if s == "" {
		return decimal.Zero, true
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = strings.TrimSpace(currencyReplacer.Replace(s))
	if negative {
		s = "-" + s
	}

	if !numericRegex.MatchString(s) {
		return decimal.Zero, false
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// CleanCell removes common CSV artifacts from a cell value:
// - Trims whitespace
// - Removes Excel formula prefix (="...")
// - Removes surrounding quotes
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") && len(s) >= 3 {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	return strings.TrimSpace(strings.Trim(s, `"'`))
}
