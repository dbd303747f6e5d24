package ensemble

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/yanliu110/ALmoMD/internal/system"
	"github.com/yanliu110/ALmoMD/pkg/config"
	"github.com/yanliu110/ALmoMD/pkg/models"
	"github.com/yanliu110/ALmoMD/pkg/utils"
)

// LennardJones is an analytic pair-potential committee member with the
// usual eV / Angstrom parameterization. It stands in for a trained model
// so a committee can run without external calculators.
type LennardJones struct {
	Epsilon float64 // well depth, eV
	Sigma   float64 // zero-crossing distance, Angstrom
}

// Predict sums the pair interactions over all atom pairs. Half of each
// pair energy is attributed to each partner atom.
func (lj LennardJones) Predict(ctx context.Context, conf *system.Configuration) (Prediction, error) {
	if err := ctx.Err(); err != nil {
		return Prediction{}, err
	}
	n := conf.Len()
	forces := mat.NewDense(n, 3, nil)
	atomE := make([]float64, n)
	var energy float64
	var dr [3]float64
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			var r2 float64
			for k := 0; k < 3; k++ {
				dr[k] = conf.Positions.At(i, k) - conf.Positions.At(j, k)
				r2 += dr[k] * dr[k]
			}
			if r2 == 0 {
				return Prediction{}, fmt.Errorf("lennard-jones: atoms %d and %d coincide: %w", i, j, models.ErrNumerical)
			}
			sr2 := lj.Sigma * lj.Sigma / r2
			sr6 := sr2 * sr2 * sr2
			sr12 := sr6 * sr6
			pair := 4 * lj.Epsilon * (sr12 - sr6)
			energy += pair
			atomE[i] += 0.5 * pair
			atomE[j] += 0.5 * pair
			fmag := 24 * lj.Epsilon * (2*sr12 - sr6) / r2
			for k := 0; k < 3; k++ {
				forces.Set(i, k, forces.At(i, k)+fmag*dr[k])
				forces.Set(j, k, forces.At(j, k)-fmag*dr[k])
			}
		}
	}
	return Prediction{Energy: energy, Forces: forces, AtomEnergies: atomE}, nil
}

// Harmonic ties every atom to its site in a reference geometry with
// independent springs.
type Harmonic struct {
	K      float64    // spring constant, eV/Angstrom^2
	Center *mat.Dense // equilibrium positions, natoms x 3
}

// Predict computes the spring energy and restoring forces.
func (h Harmonic) Predict(ctx context.Context, conf *system.Configuration) (Prediction, error) {
	if err := ctx.Err(); err != nil {
		return Prediction{}, err
	}
	n := conf.Len()
	r, c := h.Center.Dims()
	if r != n || c != 3 {
		return Prediction{}, fmt.Errorf("harmonic: center is %dx%d for %d atoms: %w", r, c, n, models.ErrConfiguration)
	}
	forces := mat.NewDense(n, 3, nil)
	atomE := make([]float64, n)
	var energy float64
	for i := 0; i < n; i++ {
		var d2 float64
		for j := 0; j < 3; j++ {
			d := conf.Positions.At(i, j) - h.Center.At(i, j)
			forces.Set(i, j, -h.K*d)
			d2 += d * d
		}
		atomE[i] = 0.5 * h.K * d2
		energy += atomE[i]
	}
	return Prediction{Energy: energy, Forces: forces, AtomEnergies: atomE}, nil
}

// NewLJCommittee builds size Lennard-Jones members with parameters drawn
// around (epsilon, sigma) so the committee disagrees the way a trained
// ensemble does. Jitter is the relative spread; zero gives identical
// members.
func NewLJCommittee(size int, epsilon, sigma, jitter float64, rng *utils.RandSource) []Predictor {
	members := make([]Predictor, size)
	for i := range members {
		members[i] = LennardJones{
			Epsilon: epsilon * (1 + rng.NormFloat64(0, jitter)),
			Sigma:   sigma * (1 + rng.NormFloat64(0, jitter)),
		}
	}
	return members
}

// NewHarmonicCommittee builds size harmonic members sharing a copy of the
// center geometry, with spring constants jittered around k.
func NewHarmonicCommittee(size int, k float64, center *mat.Dense, jitter float64, rng *utils.RandSource) []Predictor {
	shared := mat.DenseCopyOf(center)
	members := make([]Predictor, size)
	for i := range members {
		members[i] = Harmonic{
			K:      k * (1 + rng.NormFloat64(0, jitter)),
			Center: shared,
		}
	}
	return members
}

// FromConfig assembles the committee described by the configuration's
// ensemble section. The configuration's current positions serve as the
// equilibrium geometry for harmonic members.
func FromConfig(cfg *config.Ensemble, conf *system.Configuration, rng *utils.RandSource) (*Ensemble, error) {
	size := cfg.Size()
	var members []Predictor
	switch cfg.Potential {
	case "", "lj":
		members = NewLJCommittee(size, cfg.Epsilon, cfg.Sigma, cfg.Jitter, rng)
	case "harmonic":
		members = NewHarmonicCommittee(size, cfg.SpringK, conf.Positions, cfg.Jitter, rng)
	default:
		return nil, fmt.Errorf("ensemble: unknown potential %q: %w", cfg.Potential, models.ErrConfiguration)
	}
	return New(members, Params{
		Nmodel:   cfg.Nmodel,
		Nstep:    cfg.Nstep,
		Workers:  cfg.Workers,
		RefTotal: cfg.ReferenceEnergies,
		RefAtom:  cfg.AtomReferenceEnergies,
	})
}
