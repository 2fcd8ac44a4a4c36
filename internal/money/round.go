// Package money holds the single rounding policy shared by every figure the
// engine produces: half-up to the cent on non-negative amounts.
package money

import "math"

// Round rounds half-up to two decimals. Non-finite input rounds to 0.
func Round(f float64) float64 { return roundTo(f, 100) }

// Round4 is used for ratios in the presentation view.
func Round4(f float64) float64 { return roundTo(f, 10000) }

// Whole rounds a projected count to whole units.
func Whole(f float64) float64 { return roundTo(f, 1) }

// Equal reports whether a and b agree to within half a cent.
func Equal(a, b float64) bool { return math.Abs(a-b) < 0.005 }

func roundTo(f, scale float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	if f < 0 {
		return -math.Floor(-f*scale+0.5) / scale
	}
	return math.Floor(f*scale+0.5) / scale
}
