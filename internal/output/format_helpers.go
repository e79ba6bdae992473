package output

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// FormatCurrency formats a decimal as USD currency with 2 decimals.
// Kept here so it can be reused by multiple formatters and unit tested in isolation.
func FormatCurrency(amount decimal.Decimal) string { return "$" + amount.StringFixed(2) }

// FormatPercentage formats a decimal as a percentage with 2 decimals.
func FormatPercentage(amount decimal.Decimal) string { return amount.StringFixed(2) + "%" }

// FormatMonths renders a month count as years and months.
func FormatMonths(n int) string {
	if n < 12 {
		return fmt.Sprintf("%dm", n)
	}
	if n%12 == 0 {
		return fmt.Sprintf("%dy", n/12)
	}
	return fmt.Sprintf("%dy %dm", n/12, n%12)
}

func intToString(i int) string { return strconv.Itoa(i) }

func boolToString(b bool) string { return strconv.FormatBool(b) }
