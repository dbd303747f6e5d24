package utils

// ClampFloat64 clamps a float64 value between min and max. NaN passes
// through unchanged.
func ClampFloat64(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
