package trajio

import (
	"bufio"
	"fmt"
	"os"

	"github.com/yanliu110/ALmoMD/pkg/models"
)

const resultHeader = "Temperature[K]\tIteration\tUncertRel_E\tUncertAbs_E\tUncertRel_F\tUncertAbs_F\tEtot_average\tEtot_std\n"

// ResultWriter appends one calibration summary row per completed
// baseline pass to the result file.
type ResultWriter struct {
	path string
}

// NewResultWriter binds a result writer to the given path.
func NewResultWriter(path string) *ResultWriter {
	return &ResultWriter{path: path}
}

// Path returns the result file path.
func (w *ResultWriter) Path() string {
	return w.path
}

// EnsureHeader writes the column header when the file is missing or
// empty. The result file accumulates across iterations, so it is never
// truncated.
func (w *ResultWriter) EnsureHeader() error {
	if st, err := os.Stat(w.path); err == nil && st.Size() > 0 {
		return nil
	}
	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open result file %s: %w", w.path, err)
	}
	defer f.Close()

	if _, err := f.WriteString(resultHeader); err != nil {
		return fmt.Errorf("failed to write result file %s: %w", w.path, err)
	}
	return nil
}

// Append records the baseline statistics collected over a calibration
// window, keyed by the run condition.
func (w *ResultWriter) Append(temperature float64, iteration int, base models.Baseline) error {
	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open result file %s: %w", w.path, err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	fmt.Fprintf(bw, "%.2f\t%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
		temperature, iteration,
		models.FormatUncert(base.RelE.Mean), models.FormatUncert(base.AbsE.Mean),
		models.FormatUncert(base.RelF.Mean), models.FormatUncert(base.AbsF.Mean),
		models.FormatUncert(base.Etot.Mean), models.FormatUncert(base.Etot.Std))
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to write result file %s: %w", w.path, err)
	}
	return nil
}
