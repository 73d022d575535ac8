package utils

import "github.com/shopspring/decimal"

// MaxDecimal returns the maximum of two decimals
func MaxDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// Abs64 returns the absolute value of an int64
func Abs64(x int64) int64 {
	if x < 0 {
		return -x
	}
	return x
}

// Max64 returns the maximum of two int64 values
func Max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
