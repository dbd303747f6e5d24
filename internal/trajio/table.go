package trajio

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/yanliu110/ALmoMD/pkg/models"
)

// Acceptance verdicts as they appear in the uncertainty table.
const (
	AcceptanceAccepted = "Accepted"
	AcceptanceVetoed   = "Vetoed"
	AcceptancePending  = "--"
)

// tableHeader is the column contract of the uncertainty table.
// Downstream tooling parses these names, so they never change.
const tableHeader = "Temperature[K]\tUncertAbs_E\tUncertRel_E\tUncertAbs_F\tUncertRel_F\tUncertAbs_S\tUncertRel_S\tEpot_average\tS_average\tCounting\tProbability\tAcceptance\n"

// TableRow is one uncertainty-table line: the interval's uncertainty
// record plus the acceptance outcome.
type TableRow struct {
	Temperature float64 // instantaneous temperature [K]
	Record      models.UncertaintyRecord
	Counting    int     // cumulative accepted samples after this interval
	Probability float64 // acceptance probability, NaN during calibration
	Acceptance  string  // AcceptanceAccepted, AcceptanceVetoed or AcceptancePending
}

// TableWriter appends interval rows to the uncertainty table.
type TableWriter struct {
	path string
}

// NewTableWriter binds a table writer to the given path.
func NewTableWriter(path string) *TableWriter {
	return &TableWriter{path: path}
}

// Path returns the table file path.
func (w *TableWriter) Path() string {
	return w.path
}

// EnsureHeader writes the column header when the table is missing or
// empty, and leaves existing rows alone so restarts keep appending.
func (w *TableWriter) EnsureHeader() error {
	if st, err := os.Stat(w.path); err == nil && st.Size() > 0 {
		return nil
	}
	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open uncertainty table %s: %w", w.path, err)
	}
	defer f.Close()

	if _, err := f.WriteString(tableHeader); err != nil {
		return fmt.Errorf("failed to write uncertainty table %s: %w", w.path, err)
	}
	return nil
}

// Append writes one interval row.
func (w *TableWriter) Append(row TableRow) error {
	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open uncertainty table %s: %w", w.path, err)
	}
	defer f.Close()

	rec := row.Record
	bw := bufio.NewWriter(f)
	fmt.Fprintf(bw, "%.5e\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%d          \t%s\t%s   \n",
		row.Temperature,
		models.FormatUncert(rec.AbsE), models.FormatUncert(rec.RelE),
		models.FormatUncert(rec.AbsF), models.FormatUncert(rec.RelF),
		models.FormatUncert(rec.AbsS), models.FormatUncert(rec.RelS),
		models.FormatUncert(rec.Epot), models.FormatUncert(rec.S),
		row.Counting,
		models.FormatUncert(row.Probability),
		row.Acceptance)
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to write uncertainty table %s: %w", w.path, err)
	}
	return nil
}

// ReadTable parses the uncertainty table back into rows. The Etot
// field of the parsed records stays NaN: total energy is a ledger
// column, not a table one.
func ReadTable(path string) ([]TableRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open uncertainty table %s: %w", path, err)
	}
	defer f.Close()

	var rows []TableRow
	lineno := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lineno++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "Temperature[K]") {
			continue
		}
		row, err := parseTableRow(line)
		if err != nil {
			return nil, fmt.Errorf("uncertainty table %s: line %d: %w", path, lineno, err)
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read uncertainty table %s: %w", path, err)
	}
	return rows, nil
}

func parseTableRow(line string) (TableRow, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < 12 {
		return TableRow{}, fmt.Errorf("%d columns, expected 12", len(fields))
	}

	temp, err := strconv.ParseFloat(strings.TrimSpace(fields[0]), 64)
	if err != nil {
		return TableRow{}, fmt.Errorf("bad temperature %q: %w", fields[0], err)
	}

	rec := models.NewUncertaintyRecord()
	cols := []struct {
		dst *float64
		idx int
	}{
		{&rec.AbsE, 1}, {&rec.RelE, 2},
		{&rec.AbsF, 3}, {&rec.RelF, 4},
		{&rec.AbsS, 5}, {&rec.RelS, 6},
		{&rec.Epot, 7}, {&rec.S, 8},
	}
	for _, col := range cols {
		v, err := models.ParseUncert(fields[col.idx])
		if err != nil {
			return TableRow{}, err
		}
		*col.dst = v
	}

	counting, err := strconv.Atoi(strings.TrimSpace(fields[9]))
	if err != nil {
		return TableRow{}, fmt.Errorf("bad counting %q: %w", fields[9], err)
	}
	prob, err := models.ParseUncert(fields[10])
	if err != nil {
		return TableRow{}, err
	}

	return TableRow{
		Temperature: temp,
		Record:      rec,
		Counting:    counting,
		Probability: prob,
		Acceptance:  strings.TrimSpace(fields[11]),
	}, nil
}

// Progress reports the restart coordinates stored in a table: logged
// intervals so far and the cumulative accepted count of the last row.
// A missing table means a fresh run.
func Progress(path string) (intervals, accepted int, err error) {
	rows, err := ReadTable(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, 0, nil
		}
		return 0, 0, err
	}
	if len(rows) == 0 {
		return 0, 0, nil
	}
	return len(rows), rows[len(rows)-1].Counting, nil
}

// TableSource adapts a table file to the calibration window interface.
// Total-energy statistics are not available through this path, so a
// baseline calibrated from a table leaves the canonical weight
// unconstrained.
type TableSource struct {
	Path string
}

// Window returns the oldest n records, or all of them when fewer
// exist.
func (s TableSource) Window(n int) ([]models.UncertaintyRecord, error) {
	rows, err := ReadTable(s.Path)
	if err != nil {
		return nil, err
	}
	if n > len(rows) {
		n = len(rows)
	}
	recs := make([]models.UncertaintyRecord, n)
	for i := range recs {
		recs[i] = rows[i].Record
	}
	return recs, nil
}
