package utils

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/stat"
)

func TestNewRandSource(t *testing.T) {
	// Test with seed
	rng1 := NewRandSource(12345)
	if rng1 == nil {
		t.Fatal("Expected RandSource to be created")
	}

	// Test with zero seed (should use current time)
	rng2 := NewRandSource(0)
	if rng2 == nil {
		t.Fatal("Expected RandSource to be created with zero seed")
	}
}

func TestRandSourceFloat64(t *testing.T) {
	rng := NewRandSource(12345)

	for i := 0; i < 100; i++ {
		val := rng.Float64()
		if val < 0 || val >= 1.0 {
			t.Errorf("Float64() returned value outside [0, 1): %f", val)
		}
	}
}

func TestRandSourceIntn(t *testing.T) {
	rng := NewRandSource(12345)

	for i := 0; i < 100; i++ {
		val := rng.Intn(10)
		if val < 0 || val >= 10 {
			t.Errorf("Intn(10) returned value outside [0, 10): %d", val)
		}
	}
}

func TestRandSourceNormFloat64(t *testing.T) {
	rng := NewRandSource(12345)
	meanVal := 10.0
	stddev := 2.0

	samples := make([]float64, 1000)
	for i := 0; i < 1000; i++ {
		samples[i] = rng.NormFloat64(meanVal, stddev)
	}

	// Check mean
	actualMean := stat.Mean(samples, nil)
	tolerance := 0.5
	if math.Abs(actualMean-meanVal) > tolerance {
		t.Errorf("NormFloat64 mean %f not close to expected %f", actualMean, meanVal)
	}

	// Check stddev
	actualStddev := math.Sqrt(stat.PopVariance(samples, nil))
	if math.Abs(actualStddev-stddev) > tolerance {
		t.Errorf("NormFloat64 stddev %f not close to expected %f", actualStddev, stddev)
	}
}

func TestRandSourceStandardNormal(t *testing.T) {
	rng := NewRandSource(12345)

	samples := make([]float64, 1000)
	for i := 0; i < 1000; i++ {
		samples[i] = rng.StandardNormal()
	}

	if mean := stat.Mean(samples, nil); math.Abs(mean) > 0.2 {
		t.Errorf("StandardNormal mean %f not close to 0", mean)
	}
	if std := math.Sqrt(stat.PopVariance(samples, nil)); math.Abs(std-1.0) > 0.2 {
		t.Errorf("StandardNormal stddev %f not close to 1", std)
	}
}

func TestRandSourceBernoulliBool(t *testing.T) {
	rng := NewRandSource(12345)
	p := 0.7

	trueCount := 0
	trials := 1000
	for i := 0; i < trials; i++ {
		if rng.BernoulliBool(p) {
			trueCount++
		}
	}

	// Check proportion is approximately p
	proportion := float64(trueCount) / float64(trials)
	tolerance := 0.1
	if math.Abs(proportion-p) > tolerance {
		t.Errorf("Bernoulli bool proportion %f not close to expected %f", proportion, p)
	}
}

func TestRandSourceUniformFloat64(t *testing.T) {
	rng := NewRandSource(12345)
	min := 5.0
	max := 15.0

	for i := 0; i < 100; i++ {
		val := rng.UniformFloat64(min, max)
		if val < min || val >= max {
			t.Errorf("UniformFloat64(%f, %f) returned value outside range: %f", min, max, val)
		}
	}
}

func TestDeterministicBehavior(t *testing.T) {
	// Same seed should produce same sequence
	rng1 := NewRandSource(999)
	rng2 := NewRandSource(999)

	for i := 0; i < 10; i++ {
		val1 := rng1.Float64()
		val2 := rng2.Float64()
		if val1 != val2 {
			t.Errorf("Same seed should produce same sequence: %f != %f", val1, val2)
		}
	}
}
