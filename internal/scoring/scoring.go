// Package scoring holds the rounding rules shared by the progress metrics.
package scoring

import "math"

// Percent returns round(100 * part / total), or 0 when total is 0.
func Percent(part, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(part) * 100 / float64(total)))
}

// Mean returns the rounded arithmetic mean of values, or 0 for an empty slice.
func Mean(values []int) int {
	if len(values) == 0 {
		return 0
	}
	sum := 0
	for _, v := range values {
		sum += v
	}
	return int(math.Round(float64(sum) / float64(len(values))))
}
