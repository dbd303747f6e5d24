package trajio

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yanliu110/ALmoMD/pkg/models"
)

func energyRow(absE, relE, epot float64, counting int, prob float64, accept string) TableRow {
	rec := models.NewUncertaintyRecord()
	rec.AbsE = absE
	rec.RelE = relE
	rec.Epot = epot
	return TableRow{
		Temperature: 300,
		Record:      rec,
		Counting:    counting,
		Probability: prob,
		Acceptance:  accept,
	}
}

func TestTableHeaderOnce(t *testing.T) {
	w := NewTableWriter(filepath.Join(t.TempDir(), "uncertainty.txt"))
	if err := w.EnsureHeader(); err != nil {
		t.Fatalf("failed to write header: %v", err)
	}
	if err := w.EnsureHeader(); err != nil {
		t.Fatalf("second EnsureHeader failed: %v", err)
	}

	lines := readLines(t, w.Path())
	if len(lines) != 1 {
		t.Fatalf("table has %d lines, expected a single header", len(lines))
	}
	if lines[0] != strings.TrimSuffix(tableHeader, "\n") {
		t.Errorf("header = %q", lines[0])
	}
}

func TestTableRowFormat(t *testing.T) {
	w := NewTableWriter(filepath.Join(t.TempDir(), "uncertainty.txt"))
	if err := w.EnsureHeader(); err != nil {
		t.Fatalf("failed to write header: %v", err)
	}
	row := energyRow(0.5, 0.025, -12.3, 3, 0.25, AcceptanceAccepted)
	if err := w.Append(row); err != nil {
		t.Fatalf("failed to append row: %v", err)
	}

	lines := readLines(t, w.Path())
	want := "3.00000e+02\t5.00000e-01\t2.50000e-02\t----          \t----          \t----          \t----          \t-1.23000e+01\t----          \t3          \t2.50000e-01\tAccepted   "
	if lines[1] != want {
		t.Errorf("row = %q, expected %q", lines[1], want)
	}
}

func TestTableRoundTrip(t *testing.T) {
	w := NewTableWriter(filepath.Join(t.TempDir(), "uncertainty.txt"))
	if err := w.EnsureHeader(); err != nil {
		t.Fatalf("failed to write header: %v", err)
	}
	if err := w.Append(energyRow(0.4, 0.02, -12.1, 0, math.NaN(), AcceptancePending)); err != nil {
		t.Fatalf("failed to append calibration row: %v", err)
	}
	if err := w.Append(energyRow(0.5, 0.025, -12.3, 1, 0.75, AcceptanceAccepted)); err != nil {
		t.Fatalf("failed to append sampling row: %v", err)
	}

	rows, err := ReadTable(w.Path())
	if err != nil {
		t.Fatalf("failed to read table: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("read %d rows, expected 2", len(rows))
	}

	first := rows[0]
	if first.Temperature != 300 {
		t.Errorf("temperature = %f, expected 300", first.Temperature)
	}
	if first.Record.AbsE != 0.4 {
		t.Errorf("AbsE = %f, expected 0.4", first.Record.AbsE)
	}
	if !math.IsNaN(first.Record.AbsF) {
		t.Errorf("AbsF = %f, expected NaN", first.Record.AbsF)
	}
	if !math.IsNaN(first.Probability) {
		t.Errorf("calibration probability = %f, expected NaN", first.Probability)
	}
	if first.Acceptance != AcceptancePending {
		t.Errorf("acceptance = %q, expected %q", first.Acceptance, AcceptancePending)
	}
	if !math.IsNaN(first.Record.Etot) {
		t.Errorf("Etot = %f, expected NaN for a parsed table row", first.Record.Etot)
	}

	second := rows[1]
	if second.Counting != 1 {
		t.Errorf("counting = %d, expected 1", second.Counting)
	}
	if second.Probability != 0.75 {
		t.Errorf("probability = %f, expected 0.75", second.Probability)
	}
	if second.Acceptance != AcceptanceAccepted {
		t.Errorf("acceptance = %q, expected %q", second.Acceptance, AcceptanceAccepted)
	}
}

func TestTableReadMalformed(t *testing.T) {
	w := NewTableWriter(filepath.Join(t.TempDir(), "uncertainty.txt"))
	if err := w.EnsureHeader(); err != nil {
		t.Fatalf("failed to write header: %v", err)
	}
	f, err := os.OpenFile(w.Path(), os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatalf("failed to open table: %v", err)
	}
	if _, err := f.WriteString("3.0e+02\tnot-enough-columns\n"); err != nil {
		t.Fatalf("failed to write line: %v", err)
	}
	f.Close()

	if _, err := ReadTable(w.Path()); err == nil {
		t.Error("expected an error for a malformed row")
	}
}

func TestTableProgress(t *testing.T) {
	dir := t.TempDir()

	intervals, accepted, err := Progress(filepath.Join(dir, "missing.txt"))
	if err != nil {
		t.Fatalf("missing table should not error: %v", err)
	}
	if intervals != 0 || accepted != 0 {
		t.Errorf("missing table progress = (%d, %d), expected (0, 0)", intervals, accepted)
	}

	w := NewTableWriter(filepath.Join(dir, "uncertainty.txt"))
	if err := w.EnsureHeader(); err != nil {
		t.Fatalf("failed to write header: %v", err)
	}
	if err := w.Append(energyRow(0.4, 0.02, -12.1, 0, math.NaN(), AcceptancePending)); err != nil {
		t.Fatalf("failed to append row: %v", err)
	}
	if err := w.Append(energyRow(0.5, 0.025, -12.3, 1, 0.9, AcceptanceAccepted)); err != nil {
		t.Fatalf("failed to append row: %v", err)
	}

	intervals, accepted, err = Progress(w.Path())
	if err != nil {
		t.Fatalf("failed to report progress: %v", err)
	}
	if intervals != 2 {
		t.Errorf("intervals = %d, expected 2", intervals)
	}
	if accepted != 1 {
		t.Errorf("accepted = %d, expected 1", accepted)
	}
}

func TestTableSourceWindow(t *testing.T) {
	w := NewTableWriter(filepath.Join(t.TempDir(), "uncertainty.txt"))
	if err := w.EnsureHeader(); err != nil {
		t.Fatalf("failed to write header: %v", err)
	}
	for i, absE := range []float64{0.1, 0.2, 0.3} {
		if err := w.Append(energyRow(absE, 0.01, -12.0, i, math.NaN(), AcceptancePending)); err != nil {
			t.Fatalf("failed to append row: %v", err)
		}
	}

	src := TableSource{Path: w.Path()}
	recs, err := src.Window(2)
	if err != nil {
		t.Fatalf("failed to read window: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("window holds %d records, expected 2", len(recs))
	}
	if recs[0].AbsE != 0.1 || recs[1].AbsE != 0.2 {
		t.Errorf("window AbsE = %f, %f, expected 0.1, 0.2", recs[0].AbsE, recs[1].AbsE)
	}

	all, err := src.Window(5)
	if err != nil {
		t.Fatalf("failed to read oversized window: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("oversized window holds %d records, expected 3", len(all))
	}
}
