package utils

import (
	"math"
	"testing"
)

func TestClampFloat64(t *testing.T) {
	tests := []struct {
		value, min, max, expected float64
	}{
		{5.5, 0.0, 10.0, 5.5},
		{-5.5, 0.0, 10.0, 0.0},
		{15.5, 0.0, 10.0, 10.0},
		{5.5, 5.5, 10.0, 5.5},
		{10.0, 5.0, 10.0, 10.0},
	}

	for _, tt := range tests {
		result := ClampFloat64(tt.value, tt.min, tt.max)
		if result != tt.expected {
			t.Errorf("ClampFloat64(%f, %f, %f) = %f, expected %f",
				tt.value, tt.min, tt.max, result, tt.expected)
		}
	}
}

func TestClampFloat64NaN(t *testing.T) {
	result := ClampFloat64(math.NaN(), 0.0, 10.0)
	if !math.IsNaN(result) {
		t.Errorf("ClampFloat64(NaN, 0, 10) = %f, expected NaN", result)
	}
}
