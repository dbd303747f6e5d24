// Package ensemble evaluates a committee of energy/force predictors over a
// configuration and aggregates their outputs into the mean fields and
// dispersion statistics that drive uncertainty-based sampling.
package ensemble

import (
	"context"
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/yanliu110/ALmoMD/internal/system"
	"github.com/yanliu110/ALmoMD/pkg/models"
)

// Params sizes the committee and carries the per-member reference energies.
type Params struct {
	// Nmodel is the number of independently initialized model sets and
	// Nstep the number of subsampling sets per model; the committee holds
	// Nmodel*Nstep members ordered model-major.
	Nmodel int
	Nstep  int

	// Workers bounds the number of concurrent Predict calls.
	// Zero means one worker per member.
	Workers int

	// RefTotal shifts each member's energy by its ground-state reference,
	// in eV. Empty means no shift; otherwise one entry per member.
	RefTotal []float64

	// RefAtom is the per-atom reference energy subtracted from member
	// atomic energies. Same length rule as RefTotal.
	RefAtom []float64
}

// Ensemble is a fixed committee of predictors evaluated together.
type Ensemble struct {
	predictors []Predictor
	workers    int
	refTotal   []float64
	refAtom    []float64
}

// Result aggregates the committee outputs for one configuration.
// All statistics are population-normalized (divide by the member count).
type Result struct {
	// Energies are the per-member potential energies after reference
	// shifting, in committee order.
	Energies []float64

	// Epot and EpotStd are the mean and standard deviation of Energies.
	Epot    float64
	EpotStd float64

	// Forces is the member-averaged natoms x 3 force field.
	Forces *mat.Dense

	// FDisp[i] is the root-mean-square norm of the member force deviations
	// on atom i; FNorm[i] is the norm of the averaged force on atom i.
	FDisp []float64
	FNorm []float64

	// AtomEnergyMean and AtomEnergyStd are per-atom statistics of the
	// member atomic energies, nil when any member does not decompose
	// its energy.
	AtomEnergyMean []float64
	AtomEnergyStd  []float64

	// Ekin is the kinetic energy in eV, Temperature the instantaneous
	// temperature in K, and Etot the mean total energy Epot+Ekin of the
	// configuration the committee saw.
	Ekin        float64
	Temperature float64
	Etot        float64
}

// New builds a committee from the given predictors. The predictor count
// must equal Nmodel*Nstep, and reference slices must be empty or match it.
func New(predictors []Predictor, p Params) (*Ensemble, error) {
	if p.Nmodel < 1 || p.Nstep < 1 {
		return nil, fmt.Errorf("ensemble: nmodel=%d nstep=%d must be positive: %w", p.Nmodel, p.Nstep, models.ErrConfiguration)
	}
	size := p.Nmodel * p.Nstep
	if len(predictors) != size {
		return nil, fmt.Errorf("ensemble: %d predictors for nmodel=%d nstep=%d (want %d): %w",
			len(predictors), p.Nmodel, p.Nstep, size, models.ErrConfiguration)
	}
	refTotal, err := referenceSlice(p.RefTotal, size, "reference_energies")
	if err != nil {
		return nil, err
	}
	refAtom, err := referenceSlice(p.RefAtom, size, "atom_reference_energies")
	if err != nil {
		return nil, err
	}
	workers := p.Workers
	if workers <= 0 || workers > size {
		workers = size
	}
	return &Ensemble{
		predictors: predictors,
		workers:    workers,
		refTotal:   refTotal,
		refAtom:    refAtom,
	}, nil
}

func referenceSlice(ref []float64, size int, name string) ([]float64, error) {
	if len(ref) == 0 {
		return make([]float64, size), nil
	}
	if len(ref) != size {
		return nil, fmt.Errorf("ensemble: %s has %d entries, want %d: %w", name, len(ref), size, models.ErrConfiguration)
	}
	out := make([]float64, size)
	copy(out, ref)
	return out, nil
}

// Size returns the number of committee members.
func (e *Ensemble) Size() int {
	return len(e.predictors)
}

// Evaluate runs every member on the configuration over a bounded worker
// pool and aggregates once all members have reported. Non-finite member
// outputs abort the evaluation.
func (e *Ensemble) Evaluate(ctx context.Context, conf *system.Configuration) (*Result, error) {
	n := conf.Len()

	// Limit parallelism
	semaphore := make(chan struct{}, e.workers)
	var wg sync.WaitGroup
	preds := make([]Prediction, len(e.predictors))
	errs := make([]error, len(e.predictors))
	var mu sync.Mutex

	for i, p := range e.predictors {
		wg.Add(1)
		go func(idx int, pr Predictor) {
			defer wg.Done()

			// Acquire semaphore
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			pred, err := pr.Predict(ctx, conf)
			mu.Lock()
			preds[idx] = pred
			errs[idx] = err
			mu.Unlock()
		}(i, p)
	}

	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("ensemble member %d: %w", i, err)
		}
	}
	for i := range preds {
		if err := e.checkPrediction(&preds[i], i, n); err != nil {
			return nil, err
		}
	}

	return e.aggregate(preds, conf, n), nil
}

func (e *Ensemble) checkPrediction(p *Prediction, idx, natoms int) error {
	if !isFinite(p.Energy) {
		return fmt.Errorf("ensemble member %d: energy %v: %w", idx, p.Energy, models.ErrNumerical)
	}
	if p.Forces == nil {
		return fmt.Errorf("ensemble member %d: nil forces: %w", idx, models.ErrConfiguration)
	}
	r, c := p.Forces.Dims()
	if r != natoms || c != 3 {
		return fmt.Errorf("ensemble member %d: forces are %dx%d for %d atoms: %w", idx, r, c, natoms, models.ErrConfiguration)
	}
	for i := 0; i < natoms; i++ {
		for j := 0; j < 3; j++ {
			if !isFinite(p.Forces.At(i, j)) {
				return fmt.Errorf("ensemble member %d: force(%d,%d) is %v: %w", idx, i, j, p.Forces.At(i, j), models.ErrNumerical)
			}
		}
	}
	if p.AtomEnergies != nil && len(p.AtomEnergies) != natoms {
		return fmt.Errorf("ensemble member %d: %d atomic energies for %d atoms: %w", idx, len(p.AtomEnergies), natoms, models.ErrConfiguration)
	}
	return nil
}

func (e *Ensemble) aggregate(preds []Prediction, conf *system.Configuration, n int) *Result {
	size := len(preds)

	energies := make([]float64, size)
	for m := range preds {
		energies[m] = preds[m].Energy - e.refTotal[m]
	}

	forces := mat.NewDense(n, 3, nil)
	for m := range preds {
		forces.Add(forces, preds[m].Forces)
	}
	forces.Scale(1/float64(size), forces)

	fdisp := make([]float64, n)
	fnorm := make([]float64, n)
	for i := 0; i < n; i++ {
		var sumsq float64
		for m := range preds {
			for j := 0; j < 3; j++ {
				d := preds[m].Forces.At(i, j) - forces.At(i, j)
				sumsq += d * d
			}
		}
		fdisp[i] = math.Sqrt(sumsq / float64(size))
		fnorm[i] = floats.Norm(forces.RawRowView(i), 2)
	}

	res := &Result{
		Energies:    energies,
		Epot:        stat.Mean(energies, nil),
		EpotStd:     stat.PopStdDev(energies, nil),
		Forces:      forces,
		FDisp:       fdisp,
		FNorm:       fnorm,
		Ekin:        conf.KineticEnergy(),
		Temperature: conf.Temperature(),
	}
	res.Etot = res.Epot + res.Ekin

	if decomposed(preds) {
		mean := make([]float64, n)
		std := make([]float64, n)
		col := make([]float64, size)
		for i := 0; i < n; i++ {
			for m := range preds {
				col[m] = preds[m].AtomEnergies[i] - e.refAtom[m]
			}
			mean[i] = stat.Mean(col, nil)
			std[i] = stat.PopStdDev(col, nil)
		}
		res.AtomEnergyMean = mean
		res.AtomEnergyStd = std
	}

	return res
}

func decomposed(preds []Prediction) bool {
	for i := range preds {
		if preds[i].AtomEnergies == nil {
			return false
		}
	}
	return true
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
