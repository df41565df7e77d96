package atr

import "math"

// TrueRange is the largest of three measures of a bar's movement relative to
// the prior close: high-low, |high-prevClose|, |low-prevClose|.
func TrueRange(prevClose, high, low float64) float64 {
	tr := high - low
	if v := math.Abs(high - prevClose); v > tr {
		tr = v
	}
	if v := math.Abs(low - prevClose); v > tr {
		tr = v
	}
	return tr
}
