package ensemble

import (
	"context"

	"gonum.org/v1/gonum/mat"

	"github.com/yanliu110/ALmoMD/internal/system"
)

// Prediction holds one committee member's output for a single configuration.
type Prediction struct {
	// Energy is the total potential energy in eV.
	Energy float64

	// Forces is the natoms x 3 force matrix in eV/Angstrom.
	Forces *mat.Dense

	// AtomEnergies resolves Energy into per-atom contributions, in eV.
	// Members that cannot decompose their energy leave it nil.
	AtomEnergies []float64
}

// Predictor computes the potential energy and forces of a configuration.
// Predict must treat the configuration as read-only; Evaluate calls it
// from multiple goroutines at once.
type Predictor interface {
	Predict(ctx context.Context, conf *system.Configuration) (Prediction, error)
}
