// Package thermal fits the tub's heating and cooling behaviour from logged
// readings and equipment switches. Everything here is pure computation.
package thermal

import "math"

// precision is the number of decimals every published value is rounded to.
const precision = 4

// Slope returns the least-squares slope of ys over xs. ok is false when fewer
// than two points are given or all xs are equal.
func Slope(xs, ys []float64) (slope float64, ok bool) {
	n := float64(len(xs))
	if len(xs) < 2 || len(xs) != len(ys) {
		return 0, false
	}
	var sx, sy, sxy, sxx float64
	for i := range xs {
		sx += xs[i]
		sy += ys[i]
		sxy += xs[i] * ys[i]
		sxx += xs[i] * xs[i]
	}
	den := n*sxx - sx*sx
	if den == 0 {
		return 0, false
	}
	return (n*sxy - sx*sy) / den, true
}

// Round rounds v to the published precision.
func Round(v float64) float64 {
	p := math.Pow(10, precision)
	return math.Round(v*p) / p
}

func mean(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	var s float64
	for _, v := range vs {
		s += v
	}
	return s / float64(len(vs))
}
