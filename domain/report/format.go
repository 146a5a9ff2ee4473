package report

import "strconv"

// FormatMoney renders a currency total with two decimal places.
// This is a PURE function.
func FormatMoney(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// FormatUnitCost renders a sub-cent cost with eight decimal places.
// This is a PURE function.
func FormatUnitCost(v float64) string {
	return strconv.FormatFloat(v, 'f', 8, 64)
}

// FormatMargin renders profit as a percentage of revenue, two decimal
// places with a trailing %. Returns exactly "0%" when revenue is zero,
// regardless of profit sign, so callers never divide by zero.
// This is a PURE function.
func FormatMargin(profit, revenue float64) string {
	if revenue == 0 {
		return "0%"
	}
	return strconv.FormatFloat(profit/revenue*100, 'f', 2, 64) + "%"
}
