package config

import (
	"fmt"

	"github.com/yanliu110/ALmoMD/pkg/models"
)

// Config represents the main sampling configuration
type Config struct {
	LogLevel  string    `yaml:"log_level"`
	Seed      int64     `yaml:"seed"`
	Structure string    `yaml:"structure"`
	MD        MD        `yaml:"md"`
	Sampling  Sampling  `yaml:"sampling"`
	Ensemble  Ensemble  `yaml:"ensemble"`
	Outputs   Outputs   `yaml:"outputs"`
	Ledger    *Ledger   `yaml:"ledger,omitempty"`
}

// MD represents the molecular dynamics parameters
type MD struct {
	TimestepFs   float64 `yaml:"timestep_fs"`
	TemperatureK float64 `yaml:"temperature_k"`
	PressureBar  float64 `yaml:"pressure_bar"`
	Friction     float64 `yaml:"friction"` // in inverse internal time units
	Loginterval  int     `yaml:"loginterval"`
	FixCOM       bool    `yaml:"fix_com"`
}

// Sampling represents the active-learning sampling parameters
type Sampling struct {
	Mode        string  `yaml:"mode"`        // energy, force, force_max, energy_max, EandFmax, EorFmax
	Uncertainty string  `yaml:"uncertainty"` // absolute or relative
	CalcType    string  `yaml:"calc_type"`   // active or period
	Ntotal      int     `yaml:"ntotal"`
	Nperiod     int     `yaml:"nperiod"`
	StepsInit   int     `yaml:"steps_init"`
	HeatedAtom  int     `yaml:"heated_atom"`
	TempFactorK float64 `yaml:"temp_factor_k"`
	Iteration   int     `yaml:"iteration"`
}

// Ensemble represents the predictor committee configuration
type Ensemble struct {
	Nmodel               int       `yaml:"nmodel"`
	Nstep                int       `yaml:"nstep"`
	Workers              int       `yaml:"workers"`   // 0 means one per predictor
	Potential            string    `yaml:"potential"` // lj or harmonic
	Jitter               float64   `yaml:"jitter"`
	Epsilon              float64   `yaml:"epsilon"`  // LJ well depth, eV
	Sigma                float64   `yaml:"sigma"`    // LJ distance parameter, Angstrom
	SpringK              float64   `yaml:"spring_k"` // harmonic spring constant, eV/Angstrom^2
	ReferenceEnergies    []float64 `yaml:"reference_energies,omitempty"`
	AtomReferenceEnergies []float64 `yaml:"atom_reference_energies,omitempty"`
}

// Outputs represents the run output file paths
type Outputs struct {
	Trajectory       string `yaml:"trajectory"`
	Accepted         string `yaml:"accepted"`
	Log              string `yaml:"log"`
	UncertaintyTable string `yaml:"uncertainty_table"`
	Result           string `yaml:"result"`
}

// Ledger represents the run ledger backend configuration
type Ledger struct {
	Backend string `yaml:"backend"` // memory or sqlite
	Path    string `yaml:"path,omitempty"`
}

// ALMode returns the parsed sampling mode tag
func (s *Sampling) ALMode() (models.ALMode, error) {
	return models.ParseALMode(s.Mode)
}

// UncertKind returns the parsed uncertainty kind tag
func (s *Sampling) UncertKind() (models.UncertKind, error) {
	return models.ParseUncertKind(s.Uncertainty)
}

// Size returns the total number of committee members
func (e *Ensemble) Size() int {
	return e.Nmodel * e.Nstep
}

// Condition returns the run condition label, e.g. "300K-0bar_1"
func (c *Config) Condition() string {
	return fmt.Sprintf("%.0fK-%.0fbar_%d", c.MD.TemperatureK, c.MD.PressureBar, c.Sampling.Iteration)
}
