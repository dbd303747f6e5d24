package criteria

import (
	"errors"
	"math"
	"testing"

	"github.com/yanliu110/ALmoMD/pkg/models"
)

// erfConstant is the closed-form sub-score for an observation sitting
// exactly on the baseline mean.
var erfConstant = 0.5 * (1 + math.Erf(-0.2661/math.Sqrt(0.2)))

type stubSource struct {
	recs []models.UncertaintyRecord
	err  error
}

func (s stubSource) Window(n int) ([]models.UncertaintyRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	if n > len(s.recs) {
		n = len(s.recs)
	}
	return s.recs[:n], nil
}

func forceRecord(absF, etot float64) models.UncertaintyRecord {
	rec := models.NewUncertaintyRecord()
	rec.AbsF = absF
	rec.Etot = etot
	return rec
}

func TestCalibrate(t *testing.T) {
	src := stubSource{recs: []models.UncertaintyRecord{
		forceRecord(0.1, -10),
		forceRecord(0.2, -11),
		forceRecord(0.3, -12),
	}}

	base, err := Calibrate(src, 3)
	if err != nil {
		t.Fatalf("Calibrate failed: %v", err)
	}

	if math.Abs(base.AbsF.Mean-0.2) > 1e-12 {
		t.Errorf("AbsF mean = %f, expected 0.2", base.AbsF.Mean)
	}
	wantStd := math.Sqrt(0.02 / 3.0)
	if math.Abs(base.AbsF.Std-wantStd) > 1e-12 {
		t.Errorf("AbsF std = %f, expected %f", base.AbsF.Std, wantStd)
	}
	if math.Abs(base.Etot.Mean-(-11)) > 1e-12 {
		t.Errorf("Etot mean = %f, expected -11", base.Etot.Mean)
	}
	if math.Abs(base.Etot.Std-math.Sqrt(2.0/3.0)) > 1e-12 {
		t.Errorf("Etot std = %f, expected %f", base.Etot.Std, math.Sqrt(2.0/3.0))
	}
	// Columns holding the placeholder stay not-applicable.
	if !math.IsNaN(base.AbsE.Mean) || !math.IsNaN(base.AbsE.Std) {
		t.Errorf("AbsE stats = %v, expected NaN propagation", base.AbsE)
	}
}

func TestCalibrateShortWindow(t *testing.T) {
	src := stubSource{recs: []models.UncertaintyRecord{forceRecord(0.1, -10)}}
	if _, err := Calibrate(src, 5); !errors.Is(err, models.ErrConfiguration) {
		t.Errorf("Calibrate() error = %v, expected configuration error", err)
	}
}

func TestCalibrateSourceError(t *testing.T) {
	boom := errors.New("ledger unavailable")
	if _, err := Calibrate(stubSource{err: boom}, 3); !errors.Is(err, boom) {
		t.Errorf("Calibrate() error = %v, expected wrapped source error", err)
	}
}

func TestProbabilityErfConstant(t *testing.T) {
	base := models.NewBaseline()
	base.AbsE = models.Stat{Mean: 0.1, Std: 0.01}
	rec := models.NewUncertaintyRecord()
	rec.AbsE = 0.1

	got := Probability(models.ALModeEnergy, models.UncertAbsolute, rec, base, 8, 300)
	if math.Abs(got-erfConstant) > 1e-12 {
		t.Errorf("Probability = %.12f, expected %.12f", got, erfConstant)
	}
}

func TestProbabilityRelativeKind(t *testing.T) {
	base := models.NewBaseline()
	base.AbsE = models.Stat{Mean: 100, Std: 1} // must be ignored under relative scoring
	base.RelE = models.Stat{Mean: 0.05, Std: 0.005}
	rec := models.NewUncertaintyRecord()
	rec.AbsE = 1000
	rec.RelE = 0.05

	got := Probability(models.ALModeEnergy, models.UncertRelative, rec, base, 8, 300)
	if math.Abs(got-erfConstant) > 1e-12 {
		t.Errorf("Probability = %.12f, expected %.12f from the relative branch", got, erfConstant)
	}
}

func TestProbabilityMonotoneInUncertainty(t *testing.T) {
	base := models.NewBaseline()
	base.AbsE = models.Stat{Mean: 0.1, Std: 0.01}

	prev := -1.0
	for _, u := range []float64{0.08, 0.10, 0.12, 0.15} {
		rec := models.NewUncertaintyRecord()
		rec.AbsE = u
		got := Probability(models.ALModeEnergy, models.UncertAbsolute, rec, base, 8, 300)
		if got <= prev {
			t.Errorf("Probability(U=%f) = %f, expected strict increase over %f", u, got, prev)
		}
		prev = got
	}
}

func TestProbabilityForceMaxBand(t *testing.T) {
	tests := []struct {
		absF float64
		want float64
	}{
		{0.10, 1},
		{0.30, 0},
		{0.05, 0},
		{0.20, 0},
		{0.051, 1},
	}

	base := models.NewBaseline()
	for _, tt := range tests {
		rec := models.NewUncertaintyRecord()
		rec.AbsF = tt.absF
		got := Probability(models.ALModeForceMax, models.UncertAbsolute, rec, base, 8, 300)
		if got != tt.want {
			t.Errorf("Probability(AbsF=%.3f) = %f, expected %f", tt.absF, got, tt.want)
		}
	}
}

func TestProbabilityCanonicalTerm(t *testing.T) {
	base := models.NewBaseline()
	base.Etot = models.Stat{Mean: -10, Std: 0.5}

	// Inside the band the force sub-score is 1, so the canonical term is
	// what remains.
	rec := forceRecord(0.10, -10)
	got := Probability(models.ALModeForceMax, models.UncertAbsolute, rec, base, 8, 300)
	if math.Abs(got-1) > 1e-9 {
		t.Errorf("Probability at calibration mean = %f, expected 1", got)
	}

	rec = forceRecord(0.10, -9.5)
	got = Probability(models.ALModeForceMax, models.UncertAbsolute, rec, base, 8, 300)
	if math.Abs(got-0.2) > 1e-9 {
		t.Errorf("Probability one std above mean = %f, expected 0.2", got)
	}
}

func TestProbabilityClamped(t *testing.T) {
	base := models.NewBaseline()
	base.Etot = models.Stat{Mean: -10, Std: 0.5}

	// Far below the calibration average the raw canonical score exceeds 1.
	rec := forceRecord(0.10, -35)
	got := Probability(models.ALModeForceMax, models.UncertAbsolute, rec, base, 8, 300)
	if got != 1 {
		t.Errorf("Probability far below mean = %f, expected clamp to 1", got)
	}

	// Far above it the score must stay within [0,1].
	rec = forceRecord(0.10, 40)
	got = Probability(models.ALModeForceMax, models.UncertAbsolute, rec, base, 8, 300)
	if got < 0 || got > 1 {
		t.Errorf("Probability far above mean = %f, expected value in [0,1]", got)
	}
}

func TestProbabilityEorFmaxCombination(t *testing.T) {
	base := models.NewBaseline()
	base.AbsE = models.Stat{Mean: 0.1, Std: 0.01}
	base.Etot = models.Stat{Mean: -10, Std: 0.5}

	rec := models.NewUncertaintyRecord()
	rec.AbsE = 0.1  // energy sub-score = erfConstant
	rec.AbsF = 0.30 // outside the band, force sub-score = 0
	rec.Etot = -9.5 // canonical term = 0.2

	want := 1 - (1-erfConstant)*(1-0)*0.2
	got := Probability(models.ALModeEorFMax, models.UncertAbsolute, rec, base, 8, 300)
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("Probability = %.12f, expected %.12f", got, want)
	}
}

func TestProbabilityEandFmaxProduct(t *testing.T) {
	base := models.NewBaseline()
	base.AbsE = models.Stat{Mean: 0.1, Std: 0.01}
	base.Etot = models.Stat{Mean: -10, Std: 0.5}

	rec := models.NewUncertaintyRecord()
	rec.AbsE = 0.1
	rec.AbsF = 0.30
	rec.Etot = -9.5
	if got := Probability(models.ALModeEandFMax, models.UncertAbsolute, rec, base, 8, 300); got != 0 {
		t.Errorf("Probability outside band = %f, expected 0", got)
	}

	rec.AbsF = 0.10
	want := erfConstant * 0.2
	got := Probability(models.ALModeEandFMax, models.UncertAbsolute, rec, base, 8, 300)
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("Probability = %.12f, expected %.12f", got, want)
	}
}

func TestProbabilityAbsentSubScores(t *testing.T) {
	// With nothing calibrated and nothing observed, no constraint applies.
	got := Probability(models.ALModeForce, models.UncertAbsolute, models.NewUncertaintyRecord(), models.NewBaseline(), 8, 300)
	if got != 1 {
		t.Errorf("Probability = %f, expected 1 with absent sub-scores", got)
	}
}
