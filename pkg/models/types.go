package models

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Fatal error classes. Components wrap these with fmt.Errorf("%w: ...")
// so callers can classify failures with errors.Is.
var (
	// ErrConfiguration marks structurally invalid setup: unknown mode
	// tags, mismatched ensemble sizes, out-of-range atom indices.
	ErrConfiguration = errors.New("configuration error")

	// ErrNumerical marks non-finite energies or force components
	// coming out of a predictor.
	ErrNumerical = errors.New("numerical error")
)

// ALMode selects which uncertainty quantity steers the sampling loop.
type ALMode int

const (
	ALModeEnergy ALMode = iota
	ALModeForce
	ALModeForceMax
	ALModeEnergyMax
	ALModeEandFMax
	ALModeEorFMax
)

var alModeNames = map[ALMode]string{
	ALModeEnergy:    "energy",
	ALModeForce:     "force",
	ALModeForceMax:  "force_max",
	ALModeEnergyMax: "energy_max",
	ALModeEandFMax:  "EandFmax",
	ALModeEorFMax:   "EorFmax",
}

// ParseALMode parses a sampling mode tag. Unknown tags are a
// configuration error.
func ParseALMode(s string) (ALMode, error) {
	for mode, name := range alModeNames {
		if name == s {
			return mode, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown sampling mode %q", ErrConfiguration, s)
}

// String returns the config-file tag of the mode.
func (m ALMode) String() string {
	if name, ok := alModeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("ALMode(%d)", int(m))
}

// Valid reports whether the mode is one of the recognized tags.
func (m ALMode) Valid() bool {
	_, ok := alModeNames[m]
	return ok
}

// UsesForces reports whether the ensemble dispersion driving this mode
// is computed from forces. The energy_max mode works on per-atom
// potential energies instead.
func (m ALMode) UsesForces() bool {
	return m != ALModeEnergyMax
}

// UncertKind selects absolute or relative uncertainty for scoring.
type UncertKind int

const (
	UncertAbsolute UncertKind = iota
	UncertRelative
)

// ParseUncertKind parses an uncertainty kind tag.
func ParseUncertKind(s string) (UncertKind, error) {
	switch s {
	case "absolute":
		return UncertAbsolute, nil
	case "relative":
		return UncertRelative, nil
	}
	return 0, fmt.Errorf("%w: unknown uncertainty kind %q", ErrConfiguration, s)
}

// String returns the config-file tag of the kind.
func (k UncertKind) String() string {
	if k == UncertRelative {
		return "relative"
	}
	return "absolute"
}

// NotApplicable is the placeholder written to table columns whose
// quantity is undefined under the active mode. The width matches the
// scientific-notation cells around it.
const NotApplicable = "----          "

// FormatUncert renders an uncertainty value for the table files.
// NaN means "not applicable" and renders as the placeholder.
func FormatUncert(v float64) string {
	if math.IsNaN(v) {
		return NotApplicable
	}
	return fmt.Sprintf("%.5e", v)
}

// ParseUncert is the inverse of FormatUncert. The placeholder and the
// empty string parse to NaN.
func ParseUncert(s string) (float64, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" || strings.Trim(trimmed, "-") == "" {
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, fmt.Errorf("parse uncertainty value %q: %w", s, err)
	}
	return v, nil
}

// UncertaintyRecord is the outcome of one ensemble uncertainty
// evaluation. Fields not defined under the active mode hold NaN and
// render as the NotApplicable placeholder.
type UncertaintyRecord struct {
	AbsE float64 // absolute energy uncertainty [eV]
	RelE float64 // energy uncertainty relative to the mean shifted energy
	AbsF float64 // absolute force uncertainty [eV/A]
	RelF float64 // force uncertainty relative to the mean force norm
	AbsS float64 // absolute anharmonicity uncertainty
	RelS float64 // relative anharmonicity uncertainty

	Epot float64 // ensemble-average potential energy, reference-shifted [eV]
	Etot float64 // ensemble-average total energy, reference-shifted [eV]
	S    float64 // ensemble-average anharmonicity score
}

// NewUncertaintyRecord returns a record with every field set to NaN.
func NewUncertaintyRecord() UncertaintyRecord {
	nan := math.NaN()
	return UncertaintyRecord{
		AbsE: nan, RelE: nan,
		AbsF: nan, RelF: nan,
		AbsS: nan, RelS: nan,
		Epot: nan, Etot: nan, S: nan,
	}
}

// Stat is a mean and population standard deviation pair.
type Stat struct {
	Mean float64
	Std  float64
}

// IsValid reports whether both moments are finite.
func (s Stat) IsValid() bool {
	return !math.IsNaN(s.Mean) && !math.IsInf(s.Mean, 0) &&
		!math.IsNaN(s.Std) && !math.IsInf(s.Std, 0)
}

// Baseline holds the calibration statistics collected over the initial
// sampling window. It is computed once per run and passed by value;
// nothing mutates it afterwards.
type Baseline struct {
	AbsE Stat
	RelE Stat
	AbsF Stat
	RelF Stat
	Etot Stat
}

// NewBaseline returns a baseline with every statistic set to NaN, the
// state before any calibration window has completed.
func NewBaseline() Baseline {
	nan := Stat{Mean: math.NaN(), Std: math.NaN()}
	return Baseline{AbsE: nan, RelE: nan, AbsF: nan, RelF: nan, Etot: nan}
}

// RunStatus represents the status of a sampling run.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run represents one sampling run under a fixed thermodynamic
// condition.
type Run struct {
	ID        string        `json:"id"`
	Condition string        `json:"condition"` // e.g. "300K-0bar_1"
	Status    RunStatus     `json:"status"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time,omitempty"`
	Duration  time.Duration `json:"duration,omitempty"`
	StepIndex int           `json:"step_index"` // logged intervals completed
	Accepted  int           `json:"accepted"`   // samples accepted so far
	Error     string        `json:"error,omitempty"`
}
