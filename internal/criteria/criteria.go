// Package criteria implements the probabilistic acceptance rule deciding
// whether a logged configuration enters the sampled set, and the
// calibration of its baseline statistics.
package criteria

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/yanliu110/ALmoMD/pkg/models"
	"github.com/yanliu110/ALmoMD/pkg/units"
	"github.com/yanliu110/ALmoMD/pkg/utils"
)

// Source yields the oldest n uncertainty records of a run, in order.
// Both the run ledger and the table reader satisfy it.
type Source interface {
	Window(n int) ([]models.UncertaintyRecord, error)
}

// Calibrate reduces the first window records of a run to the baseline
// statistics the acceptance rule scores against. Columns that hold the
// not-applicable placeholder calibrate to NaN and later score as an
// unconstrained sub-score.
func Calibrate(src Source, window int) (models.Baseline, error) {
	recs, err := src.Window(window)
	if err != nil {
		return models.NewBaseline(), fmt.Errorf("criteria: load calibration window: %w", err)
	}
	if len(recs) < window {
		return models.NewBaseline(), fmt.Errorf("criteria: calibration window holds %d of %d records: %w",
			len(recs), window, models.ErrConfiguration)
	}

	absE := make([]float64, len(recs))
	relE := make([]float64, len(recs))
	absF := make([]float64, len(recs))
	relF := make([]float64, len(recs))
	etot := make([]float64, len(recs))
	for i, rec := range recs {
		absE[i] = rec.AbsE
		relE[i] = rec.RelE
		absF[i] = rec.AbsF
		relF[i] = rec.RelF
		etot[i] = rec.Etot
	}

	return models.Baseline{
		AbsE: columnStat(absE),
		RelE: columnStat(relE),
		AbsF: columnStat(absF),
		RelF: columnStat(relF),
		Etot: columnStat(etot),
	}, nil
}

func columnStat(values []float64) models.Stat {
	return models.Stat{
		Mean: stat.Mean(values, nil),
		Std:  stat.PopStdDev(values, nil),
	}
}

// Probability scores one uncertainty record against the baseline and
// returns the acceptance probability in [0,1]. Sub-scores whose inputs
// are not applicable impose no constraint.
func Probability(mode models.ALMode, kind models.UncertKind, rec models.UncertaintyRecord, base models.Baseline, natoms int, tempK float64) float64 {
	pE, pF := 1.0, 1.0
	switch mode {
	case models.ALModeEnergy, models.ALModeEnergyMax:
		pE = uncertScore(kind, rec.AbsE, rec.RelE, base.AbsE, base.RelE)
	case models.ALModeForce:
		pF = uncertScore(kind, rec.AbsF, rec.RelF, base.AbsF, base.RelF)
	case models.ALModeForceMax:
		pF = hardBand(rec.AbsF)
	case models.ALModeEandFMax, models.ALModeEorFMax:
		pE = uncertScore(kind, rec.AbsE, rec.RelE, base.AbsE, base.RelE)
		pF = hardBand(rec.AbsF)
	}

	pCanon := canonicalScore(rec.Etot, base.Etot, natoms, tempK)

	var prob float64
	if mode == models.ALModeEorFMax {
		prob = 1 - (1-pE)*(1-pF)*pCanon
	} else {
		prob = pE * pF * pCanon
	}
	return utils.ClampFloat64(prob, 0, 1)
}

// uncertScore is the erf-based cumulative weight of the observed
// uncertainty over its calibrated baseline. The weight passes 1/2 once
// the observation exceeds the baseline mean by 0.2661 standard
// deviations.
func uncertScore(kind models.UncertKind, abs, rel float64, absStat, relStat models.Stat) float64 {
	u, s := abs, absStat
	if kind == models.UncertRelative {
		u, s = rel, relStat
	}
	if math.IsNaN(u) || !s.IsValid() {
		return 1
	}
	return 0.5 * (1 + math.Erf(((u-s.Mean)-0.2661*s.Std)/(s.Std*math.Sqrt(0.2))))
}

// hardBand is the fixed force_max acceptance window on the absolute
// force uncertainty, after Y. Zhang et al., Comput. Phys. Commun. 253,
// 107206 (2020).
func hardBand(absF float64) float64 {
	if absF > 0.05 && absF < 0.20 {
		return 1
	}
	return 0
}

// canonicalScore normalizes the Boltzmann weight of the per-atom total
// energy so it equals 1 at the calibration average and 0.2 one
// calibration-std above it. The extrapolated exponent can push the score
// past 1 below the average, so it is capped.
func canonicalScore(etot float64, base models.Stat, natoms int, tempK float64) float64 {
	if math.IsNaN(etot) || !base.IsValid() {
		return 1
	}
	kT := units.KB * tempK
	n := float64(natoms)
	prob := math.Exp(-(etot / n) / kT)
	upper := math.Exp(-(base.Mean / n) / kT)
	lower := math.Exp(-((base.Mean + base.Std) / n) / kT)

	score := math.Pow(prob/upper, math.Log(0.2)/math.Log(lower/upper))
	if score > 1 {
		score = 1
	}
	return score
}
