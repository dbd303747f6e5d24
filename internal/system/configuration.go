// Package system holds the simulated system snapshot: atom identities
// and masses plus position and velocity tensors, in internal units
// (angstrom, amu, eV).
package system

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/yanliu110/ALmoMD/pkg/models"
	"github.com/yanliu110/ALmoMD/pkg/units"
)

// Configuration is one snapshot of the system. The integrator mutates
// Positions and Velocities in place; Symbols and Masses are fixed for
// the lifetime of a run.
type Configuration struct {
	Symbols    []string
	Masses     []float64  // amu
	Positions  *mat.Dense // natoms x 3, angstrom
	Velocities *mat.Dense // natoms x 3, angstrom per internal time unit
	Cell       *mat.Dense // 3x3 lattice vectors, nil for non-periodic systems
}

// New builds a configuration from symbols and positions, resolving
// masses from the element table and starting at rest.
func New(symbols []string, positions *mat.Dense) (*Configuration, error) {
	n, c := positions.Dims()
	if c != 3 {
		return nil, fmt.Errorf("%w: positions must be natoms x 3, got %dx%d", models.ErrConfiguration, n, c)
	}
	if len(symbols) != n {
		return nil, fmt.Errorf("%w: %d symbols for %d atoms", models.ErrConfiguration, len(symbols), n)
	}

	masses := make([]float64, n)
	for i, sym := range symbols {
		m, err := AtomicMass(sym)
		if err != nil {
			return nil, err
		}
		masses[i] = m
	}

	return &Configuration{
		Symbols:    symbols,
		Masses:     masses,
		Positions:  positions,
		Velocities: mat.NewDense(n, 3, nil),
	}, nil
}

// Len returns the number of atoms.
func (c *Configuration) Len() int {
	return len(c.Symbols)
}

// KineticEnergy returns the kinetic energy in eV.
func (c *Configuration) KineticEnergy() float64 {
	ekin := 0.0
	for i := 0; i < c.Len(); i++ {
		v2 := 0.0
		for j := 0; j < 3; j++ {
			v := c.Velocities.At(i, j)
			v2 += v * v
		}
		ekin += 0.5 * c.Masses[i] * v2
	}
	return ekin
}

// Temperature returns the instantaneous kinetic temperature in kelvin.
func (c *Configuration) Temperature() float64 {
	n := c.Len()
	if n == 0 {
		return 0
	}
	return 2 * c.KineticEnergy() / (3 * float64(n) * units.KB)
}

// Momentum returns the total momentum vector.
func (c *Configuration) Momentum() [3]float64 {
	var p [3]float64
	for i := 0; i < c.Len(); i++ {
		for j := 0; j < 3; j++ {
			p[j] += c.Masses[i] * c.Velocities.At(i, j)
		}
	}
	return p
}

// ZeroMomentum removes center-of-mass drift from the velocities.
func (c *Configuration) ZeroMomentum() {
	mtot := floats.Sum(c.Masses)
	if mtot == 0 {
		return
	}
	p := c.Momentum()
	for i := 0; i < c.Len(); i++ {
		for j := 0; j < 3; j++ {
			c.Velocities.Set(i, j, c.Velocities.At(i, j)-p[j]/mtot)
		}
	}
}

// CenterOfMass returns the mass-weighted mean position.
func (c *Configuration) CenterOfMass() [3]float64 {
	var com [3]float64
	mtot := floats.Sum(c.Masses)
	if mtot == 0 {
		return com
	}
	for i := 0; i < c.Len(); i++ {
		for j := 0; j < 3; j++ {
			com[j] += c.Masses[i] * c.Positions.At(i, j)
		}
	}
	for j := 0; j < 3; j++ {
		com[j] /= mtot
	}
	return com
}

// Clone returns a deep copy.
func (c *Configuration) Clone() *Configuration {
	clone := &Configuration{
		Symbols:    append([]string(nil), c.Symbols...),
		Masses:     append([]float64(nil), c.Masses...),
		Positions:  mat.DenseCopyOf(c.Positions),
		Velocities: mat.DenseCopyOf(c.Velocities),
	}
	if c.Cell != nil {
		clone.Cell = mat.DenseCopyOf(c.Cell)
	}
	return clone
}
