// Package dynamics integrates the modified Langevin thermostat and
// drives the sampling loop: the calibration window, probabilistic
// acceptance of logged intervals and warm restart from existing
// outputs.
package dynamics

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/yanliu110/ALmoMD/internal/ensemble"
	"github.com/yanliu110/ALmoMD/internal/system"
	"github.com/yanliu110/ALmoMD/pkg/models"
	"github.com/yanliu110/ALmoMD/pkg/units"
	"github.com/yanliu110/ALmoMD/pkg/utils"
)

// Evaluator produces ensemble forces and dispersions for a
// configuration.
type Evaluator interface {
	Evaluate(ctx context.Context, conf *system.Configuration) (*ensemble.Result, error)
}

// HeatSource selects which ensemble dispersion drives the noise boost.
type HeatSource int

const (
	// HeatFromForceSpread reads the heated atom's force dispersion.
	HeatFromForceSpread HeatSource = iota
	// HeatFromEnergySpread reads the heated atom's per-atom energy
	// dispersion.
	HeatFromEnergySpread
)

// Heating boosts the thermostat noise on a single atom. The boost
// temperature scales with an activation factor derived from how far
// the atom's ensemble dispersion sits relative to the calibrated
// baseline.
type Heating struct {
	Atom   int        // index of the heated atom
	ExtraK float64    // boost temperature at full activation, K
	Source HeatSource // dispersion feeding the activation
}

// HeatingForMode returns the boost wiring for a sampling mode, or nil
// for the modes that define none.
func HeatingForMode(mode models.ALMode, atom int, extraK float64) *Heating {
	switch mode {
	case models.ALModeForceMax:
		return &Heating{Atom: atom, ExtraK: extraK, Source: HeatFromForceSpread}
	case models.ALModeEnergyMax:
		return &Heating{Atom: atom, ExtraK: extraK, Source: HeatFromEnergySpread}
	}
	return nil
}

func (h *Heating) dispersion(res *ensemble.Result) float64 {
	switch h.Source {
	case HeatFromEnergySpread:
		if h.Atom < len(res.AtomEnergyStd) {
			return res.AtomEnergyStd[h.Atom]
		}
	default:
		if h.Atom < len(res.FDisp) {
			return res.FDisp[h.Atom]
		}
	}
	return math.NaN()
}

func (h *Heating) baseline(base models.Baseline) models.Stat {
	if h.Source == HeatFromEnergySpread {
		return base.AbsE
	}
	return base.AbsF
}

// Activation maps a dispersion against its baseline to a noise-boost
// factor in [0, 1]. At or below the baseline mean, and before any
// baseline exists, the boost is fully active; it falls off as the
// dispersion climbs above the mean, so atoms the ensemble already
// disagrees on stop receiving extra energy.
func Activation(disp float64, base models.Stat) float64 {
	excess := disp - base.Mean
	if math.IsNaN(excess) || excess < 0 {
		return 1.0
	}
	ratio := excess / base.Std
	if math.IsNaN(ratio) {
		return 1.0
	}
	return math.Exp(-ratio * ratio / 2)
}

// ThermostatParams configure the integrator.
type ThermostatParams struct {
	TimestepFs   float64
	TemperatureK float64
	Friction     float64  // inverse internal time units
	FixCOM       bool     // remove center-of-mass drift from the noise
	Heating      *Heating // nil disables the boost
}

// Thermostat integrates Langevin dynamics with the second-order
// splitting of Vanden-Eijnden and Ciccotti, Chem. Phys. Lett. 429,
// 310 (2006). At most one atom may run hotter than the bath.
type Thermostat struct {
	dt       float64 // timestep, internal time units
	friction float64
	kT       float64 // bath temperature, eV
	fixCOM   bool
	heating  *Heating
	base     models.Baseline
	rng      *utils.RandSource
}

// NewThermostat builds the integrator. The baseline starts invalid, so
// any heating runs fully active until SetBaseline is called.
func NewThermostat(p ThermostatParams, rng *utils.RandSource) (*Thermostat, error) {
	if p.TimestepFs <= 0 {
		return nil, fmt.Errorf("%w: timestep must be positive, got %f fs", models.ErrConfiguration, p.TimestepFs)
	}
	if p.TemperatureK < 0 {
		return nil, fmt.Errorf("%w: temperature must not be negative, got %f K", models.ErrConfiguration, p.TemperatureK)
	}
	if p.Friction < 0 {
		return nil, fmt.Errorf("%w: friction must not be negative, got %f", models.ErrConfiguration, p.Friction)
	}
	return &Thermostat{
		dt:       units.FsToInternal(p.TimestepFs),
		friction: p.Friction,
		kT:       units.KelvinToEnergy(p.TemperatureK),
		fixCOM:   p.FixCOM,
		heating:  p.Heating,
		base:     models.NewBaseline(),
		rng:      rng,
	}, nil
}

// SetBaseline installs the calibrated statistics the heating activation
// is measured against.
func (th *Thermostat) SetBaseline(base models.Baseline) {
	th.base = base
}

// Step advances the configuration by one timestep. Forces for the
// incoming positions ride in res; the evaluation for the new positions
// is returned so the caller can reuse it.
func (th *Thermostat) Step(ctx context.Context, conf *system.Configuration, res *ensemble.Result, eval Evaluator) (*ensemble.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n := conf.Len()
	if th.heating != nil && (th.heating.Atom < 0 || th.heating.Atom >= n) {
		return nil, fmt.Errorf("%w: heated atom %d out of range for %d atoms", models.ErrConfiguration, th.heating.Atom, n)
	}

	co := th.coefficients(conf.Masses, res)
	xi := th.normal(n)
	eta := th.normal(n)

	rndPos := mat.NewDense(n, 3, nil)
	rndVel := mat.NewDense(n, 3, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < 3; j++ {
			rndPos.Set(i, j, co.c5[i]*eta.At(i, j))
			rndVel.Set(i, j, co.c3[i]*xi.At(i, j)-co.c4[i]*eta.At(i, j))
		}
	}
	if th.fixCOM {
		removeDrift(conf.Masses, rndPos, rndVel)
	}

	masses := conf.Masses
	vel := conf.Velocities

	// First velocity half-step with the incoming forces.
	for i := 0; i < n; i++ {
		for j := 0; j < 3; j++ {
			v := vel.At(i, j)
			v += co.c1*res.Forces.At(i, j)/masses[i] - co.c2*v + rndVel.At(i, j)
			vel.Set(i, j, v)
		}
	}

	// Full step in positions.
	oldPos := mat.DenseCopyOf(conf.Positions)
	for i := 0; i < n; i++ {
		for j := 0; j < 3; j++ {
			conf.Positions.Set(i, j, oldPos.At(i, j)+th.dt*vel.At(i, j)+rndPos.At(i, j))
		}
	}

	// Recover the velocity from the realized displacement. A
	// constraint layer would adjust positions between the two
	// statements above.
	for i := 0; i < n; i++ {
		for j := 0; j < 3; j++ {
			vel.Set(i, j, (conf.Positions.At(i, j)-oldPos.At(i, j)-rndPos.At(i, j))/th.dt)
		}
	}

	next, err := eval.Evaluate(ctx, conf)
	if err != nil {
		return nil, err
	}

	// Second velocity half-step with the fresh forces and the same
	// noise kick.
	for i := 0; i < n; i++ {
		for j := 0; j < 3; j++ {
			v := vel.At(i, j)
			v += co.c1*next.Forces.At(i, j)/masses[i] - co.c2*v + rndVel.At(i, j)
			vel.Set(i, j, v)
		}
	}
	return next, nil
}

type coefficients struct {
	c1, c2     float64
	c3, c4, c5 []float64
}

// coefficients builds the splitting constants for the current step.
// The heated atom's noise row is rebuilt from the boosted temperature.
func (th *Thermostat) coefficients(masses []float64, res *ensemble.Result) coefficients {
	n := len(masses)
	co := coefficients{
		c1: th.dt/2 - th.dt*th.dt*th.friction/8,
		c2: th.dt*th.friction/2 - th.dt*th.dt*th.friction*th.friction/8,
		c3: make([]float64, n),
		c4: make([]float64, n),
		c5: make([]float64, n),
	}
	for i, m := range masses {
		co.setNoiseRow(i, th.kT, m, th.dt, th.friction)
	}

	if th.heating != nil {
		h := th.heating
		factor := Activation(h.dispersion(res), h.baseline(th.base))
		kT := th.kT + factor*units.KelvinToEnergy(h.ExtraK)
		co.setNoiseRow(h.Atom, kT, masses[h.Atom], th.dt, th.friction)
	}
	return co
}

func (co *coefficients) setNoiseRow(i int, kT, mass, dt, friction float64) {
	sigma := math.Sqrt(2 * kT * friction / mass)
	co.c3[i] = math.Sqrt(dt)*sigma/2 - math.Pow(dt, 1.5)*friction*sigma/8
	co.c5[i] = math.Pow(dt, 1.5) * sigma / (2 * math.Sqrt(3))
	co.c4[i] = friction / 2 * co.c5[i]
}

func (th *Thermostat) normal(n int) *mat.Dense {
	m := mat.NewDense(n, 3, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < 3; j++ {
			m.Set(i, j, th.rng.StandardNormal())
		}
	}
	return m
}

// removeDrift keeps the noise from kicking the center of mass: the
// position noise loses its plain per-component average, the velocity
// noise its momentum average.
func removeDrift(masses []float64, rndPos, rndVel *mat.Dense) {
	n := len(masses)
	fn := float64(n)
	for j := 0; j < 3; j++ {
		var posSum, momSum float64
		for i := 0; i < n; i++ {
			posSum += rndPos.At(i, j)
			momSum += masses[i] * rndVel.At(i, j)
		}
		posMean := posSum / fn
		for i := 0; i < n; i++ {
			rndPos.Set(i, j, rndPos.At(i, j)-posMean)
			rndVel.Set(i, j, rndVel.At(i, j)-momSum/(masses[i]*fn))
		}
	}
}
