package trajio

import (
	"bufio"
	"fmt"
	"os"

	"github.com/yanliu110/ALmoMD/pkg/models"
)

// MDInfo is one MD-log row: elapsed simulation time plus the
// instantaneous energies and temperature.
type MDInfo struct {
	TimePs      float64
	Etot        float64
	Epot        float64
	Ekin        float64
	Temperature float64
}

// LogWriter appends rows to the tab-separated MD log. With uncertainty
// logging on, each row also carries the uncertainty columns evaluated
// at the same interval.
type LogWriter struct {
	path        string
	uncertainty bool
}

// NewLogWriter binds a log writer to the given path.
func NewLogWriter(path string, uncertainty bool) *LogWriter {
	return &LogWriter{path: path, uncertainty: uncertainty}
}

// Path returns the log file path.
func (w *LogWriter) Path() string {
	return w.path
}

// Start truncates the log and writes the column header. Fresh runs
// only; warm restarts keep appending to the existing file.
func (w *LogWriter) Start() error {
	f, err := os.Create(w.path)
	if err != nil {
		return fmt.Errorf("failed to create MD log %s: %w", w.path, err)
	}
	defer f.Close()

	header := "Time[ps]   \tEtot[eV]   \tEpot[eV]    \tEkin[eV]   \tTemperature[K]"
	if w.uncertainty {
		header += "\tUncertAbs_E\tUncertRel_E\tUncertAbs_F\tUncertRel_F\tUncertAbs_S\tUncertRel_S\tS_average"
	}
	if _, err := fmt.Fprintln(f, header); err != nil {
		return fmt.Errorf("failed to write MD log %s: %w", w.path, err)
	}
	return nil
}

// Append writes one row. The record supplies the uncertainty columns
// and is ignored when uncertainty logging is off.
func (w *LogWriter) Append(info MDInfo, rec models.UncertaintyRecord) error {
	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open MD log %s: %w", w.path, err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	fmt.Fprintf(bw, "%.5f   \t%.5e\t%.5e\t%.5e\t%.2f",
		info.TimePs, info.Etot, info.Epot, info.Ekin, info.Temperature)
	if w.uncertainty {
		fmt.Fprintf(bw, "      \t%s\t%s\t%s\t%s\t%s\t%s\t%s",
			models.FormatUncert(rec.AbsE), models.FormatUncert(rec.RelE),
			models.FormatUncert(rec.AbsF), models.FormatUncert(rec.RelF),
			models.FormatUncert(rec.AbsS), models.FormatUncert(rec.RelS),
			models.FormatUncert(rec.S))
	}
	fmt.Fprintln(bw)
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to write MD log %s: %w", w.path, err)
	}
	return nil
}
