// Package uncertainty reduces aggregated committee statistics to the
// per-interval uncertainty record for the active sampling mode.
package uncertainty

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/yanliu110/ALmoMD/internal/ensemble"
	"github.com/yanliu110/ALmoMD/pkg/models"
)

// relFloor excludes atoms with a near-zero mean force norm from the
// relative maximum, which would otherwise blow up the ratio.
const relFloor = 0.05

// Engine selects which committee statistics become the reported
// uncertainties under a fixed sampling mode.
type Engine struct {
	mode models.ALMode
}

// NewEngine builds an engine for the given mode.
func NewEngine(mode models.ALMode) (*Engine, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("uncertainty: unknown mode %v: %w", mode, models.ErrConfiguration)
	}
	return &Engine{mode: mode}, nil
}

// Mode returns the active sampling mode.
func (e *Engine) Mode() models.ALMode {
	return e.mode
}

// Record reduces one committee result to the uncertainty record written
// per logging interval. Quantities undefined under the mode stay NaN and
// render as the table placeholder.
func (e *Engine) Record(res *ensemble.Result) (models.UncertaintyRecord, error) {
	rec := models.NewUncertaintyRecord()
	rec.Epot = res.Epot
	rec.Etot = res.Etot

	switch e.mode {
	case models.ALModeEnergy, models.ALModeEnergyMax:
		energyBranch(res, &rec)
	case models.ALModeForce:
		rec.AbsF = stat.Mean(res.FDisp, nil)
		rec.RelF = meanRatio(res.FDisp, res.FNorm)
	case models.ALModeForceMax:
		forceMaxBranch(res, &rec)
	case models.ALModeEandFMax, models.ALModeEorFMax:
		energyBranch(res, &rec)
		forceMaxBranch(res, &rec)
	default:
		return rec, fmt.Errorf("uncertainty: unknown mode %v: %w", e.mode, models.ErrConfiguration)
	}
	return rec, nil
}

// energyBranch fills the scalar energy uncertainties. The relative value
// is undefined when the mean shifted energy is zero.
func energyBranch(res *ensemble.Result, rec *models.UncertaintyRecord) {
	rec.AbsE = res.EpotStd
	if res.Epot != 0 {
		rec.RelE = res.EpotStd / res.Epot
	}
}

// forceMaxBranch fills the maxima over atoms. When no atom clears the
// relative floor the relative maximum is undefined.
func forceMaxBranch(res *ensemble.Result, rec *models.UncertaintyRecord) {
	rec.AbsF = floats.Max(res.FDisp)
	max := math.NaN()
	for i, norm := range res.FNorm {
		if norm <= relFloor {
			continue
		}
		if r := res.FDisp[i] / norm; math.IsNaN(max) || r > max {
			max = r
		}
	}
	rec.RelF = max
}

func meanRatio(disp, norm []float64) float64 {
	ratios := make([]float64, len(disp))
	for i := range disp {
		ratios[i] = disp[i] / norm[i]
	}
	return stat.Mean(ratios, nil)
}
