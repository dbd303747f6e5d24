// Package trajio owns the run's append-only file surfaces: the
// extended-XYZ trajectories, the MD log, the uncertainty table and the
// result summary. A single coordinator goroutine writes them; every
// append failure is fatal to the run.
package trajio

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/yanliu110/ALmoMD/internal/system"
)

// TrajectoryWriter appends frames to an extended-XYZ file. Velocities
// ride in columns 5-7 so a run can warm-restart from its last frame.
type TrajectoryWriter struct {
	path string
}

// NewTrajectoryWriter binds a writer to the given path. The file is
// created on first append.
func NewTrajectoryWriter(path string) *TrajectoryWriter {
	return &TrajectoryWriter{path: path}
}

// Path returns the trajectory file path.
func (w *TrajectoryWriter) Path() string {
	return w.path
}

// Append writes one frame with the elapsed simulation time in the
// comment line.
func (w *TrajectoryWriter) Append(conf *system.Configuration, timePs float64) error {
	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open trajectory %s: %w", w.path, err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	fmt.Fprintf(bw, "%d\n", conf.Len())

	comment := fmt.Sprintf("Properties=species:S:1:pos:R:3:vel:R:3 Time=%.5f", timePs)
	if conf.Cell != nil {
		c := conf.Cell
		comment = fmt.Sprintf(`Lattice="%.8f %.8f %.8f %.8f %.8f %.8f %.8f %.8f %.8f" `,
			c.At(0, 0), c.At(0, 1), c.At(0, 2),
			c.At(1, 0), c.At(1, 1), c.At(1, 2),
			c.At(2, 0), c.At(2, 1), c.At(2, 2)) + comment
	}
	fmt.Fprintln(bw, comment)

	for i := 0; i < conf.Len(); i++ {
		fmt.Fprintf(bw, "%-2s %17.9f %17.9f %17.9f %17.9f %17.9f %17.9f\n",
			conf.Symbols[i],
			conf.Positions.At(i, 0), conf.Positions.At(i, 1), conf.Positions.At(i, 2),
			conf.Velocities.At(i, 0), conf.Velocities.At(i, 1), conf.Velocities.At(i, 2))
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to write trajectory %s: %w", w.path, err)
	}
	return nil
}

// ReadLastFrame returns the final frame of a trajectory, the state a
// warm restart continues from.
func ReadLastFrame(path string) (*system.Configuration, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trajectory %s: %w", path, err)
	}
	defer f.Close()

	var (
		symbols []string
		pos     []float64
		vel     []float64
		cell    *mat.Dense
	)

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		n, err := strconv.Atoi(line)
		if err != nil {
			return nil, fmt.Errorf("trajectory %s: bad frame header %q", path, line)
		}
		if !scanner.Scan() {
			return nil, fmt.Errorf("trajectory %s: truncated frame", path)
		}
		frameCell, err := parseLattice(scanner.Text())
		if err != nil {
			return nil, fmt.Errorf("trajectory %s: %w", path, err)
		}

		frameSymbols := make([]string, n)
		framePos := make([]float64, n*3)
		frameVel := make([]float64, n*3)
		for i := 0; i < n; i++ {
			if !scanner.Scan() {
				return nil, fmt.Errorf("trajectory %s: truncated frame", path)
			}
			fields := strings.Fields(scanner.Text())
			if len(fields) < 7 {
				return nil, fmt.Errorf("trajectory %s: atom line %q needs symbol, position and velocity", path, scanner.Text())
			}
			frameSymbols[i] = fields[0]
			for j := 0; j < 3; j++ {
				p, err := strconv.ParseFloat(fields[1+j], 64)
				if err != nil {
					return nil, fmt.Errorf("trajectory %s: bad position %q: %w", path, fields[1+j], err)
				}
				v, err := strconv.ParseFloat(fields[4+j], 64)
				if err != nil {
					return nil, fmt.Errorf("trajectory %s: bad velocity %q: %w", path, fields[4+j], err)
				}
				framePos[i*3+j] = p
				frameVel[i*3+j] = v
			}
		}
		symbols, pos, vel, cell = frameSymbols, framePos, frameVel, frameCell
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read trajectory %s: %w", path, err)
	}
	if symbols == nil {
		return nil, fmt.Errorf("trajectory %s holds no frames", path)
	}

	conf, err := system.New(symbols, mat.NewDense(len(symbols), 3, pos))
	if err != nil {
		return nil, fmt.Errorf("trajectory %s: %w", path, err)
	}
	conf.Velocities = mat.NewDense(len(symbols), 3, vel)
	conf.Cell = cell
	return conf, nil
}

func parseLattice(comment string) (*mat.Dense, error) {
	const key = `Lattice="`
	start := strings.Index(comment, key)
	if start < 0 {
		return nil, nil
	}
	rest := comment[start+len(key):]
	end := strings.Index(rest, `"`)
	if end < 0 {
		return nil, fmt.Errorf("unterminated Lattice attribute")
	}
	fields := strings.Fields(rest[:end])
	if len(fields) != 9 {
		return nil, fmt.Errorf("lattice needs 9 components, got %d", len(fields))
	}
	data := make([]float64, 9)
	for i, field := range fields {
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, fmt.Errorf("bad lattice component %q: %w", field, err)
		}
		data[i] = v
	}
	return mat.NewDense(3, 3, data), nil
}
