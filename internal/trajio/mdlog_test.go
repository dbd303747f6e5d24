package trajio

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yanliu110/ALmoMD/pkg/models"
)

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

func TestLogWriterHeader(t *testing.T) {
	dir := t.TempDir()

	plain := NewLogWriter(filepath.Join(dir, "plain.log"), false)
	if err := plain.Start(); err != nil {
		t.Fatalf("failed to start log: %v", err)
	}
	lines := readLines(t, plain.Path())
	if len(lines) != 1 {
		t.Fatalf("fresh log has %d lines, expected 1", len(lines))
	}
	if lines[0] != "Time[ps]   \tEtot[eV]   \tEpot[eV]    \tEkin[eV]   \tTemperature[K]" {
		t.Errorf("plain header = %q", lines[0])
	}

	full := NewLogWriter(filepath.Join(dir, "full.log"), true)
	if err := full.Start(); err != nil {
		t.Fatalf("failed to start log: %v", err)
	}
	header := readLines(t, full.Path())[0]
	if !strings.HasSuffix(header, "\tUncertAbs_E\tUncertRel_E\tUncertAbs_F\tUncertRel_F\tUncertAbs_S\tUncertRel_S\tS_average") {
		t.Errorf("uncertainty header = %q", header)
	}
}

func TestLogWriterRow(t *testing.T) {
	w := NewLogWriter(filepath.Join(t.TempDir(), "md.log"), false)
	if err := w.Start(); err != nil {
		t.Fatalf("failed to start log: %v", err)
	}

	info := MDInfo{TimePs: 0.005, Etot: -12.3, Epot: -12.425, Ekin: 0.125, Temperature: 300}
	if err := w.Append(info, models.NewUncertaintyRecord()); err != nil {
		t.Fatalf("failed to append row: %v", err)
	}

	lines := readLines(t, w.Path())
	if len(lines) != 2 {
		t.Fatalf("log has %d lines, expected 2", len(lines))
	}
	if lines[1] != "0.00500   \t-1.23000e+01\t-1.24250e+01\t1.25000e-01\t300.00" {
		t.Errorf("row = %q", lines[1])
	}
}

func TestLogWriterUncertaintyRow(t *testing.T) {
	w := NewLogWriter(filepath.Join(t.TempDir(), "md.log"), true)
	if err := w.Start(); err != nil {
		t.Fatalf("failed to start log: %v", err)
	}

	rec := models.NewUncertaintyRecord()
	rec.AbsE = 0.5
	rec.RelE = 0.025
	info := MDInfo{TimePs: 0.01, Etot: -12.3, Epot: -12.425, Ekin: 0.125, Temperature: 298.5}
	if err := w.Append(info, rec); err != nil {
		t.Fatalf("failed to append row: %v", err)
	}

	row := readLines(t, w.Path())[1]
	fields := strings.Split(row, "\t")
	if len(fields) != 12 {
		t.Fatalf("row has %d columns, expected 12: %q", len(fields), row)
	}
	if fields[4] != "298.50      " {
		t.Errorf("temperature cell = %q", fields[4])
	}
	if fields[5] != "5.00000e-01" {
		t.Errorf("AbsE cell = %q", fields[5])
	}
	if fields[6] != "2.50000e-02" {
		t.Errorf("RelE cell = %q", fields[6])
	}
	for i := 7; i < 12; i++ {
		if fields[i] != models.NotApplicable {
			t.Errorf("column %d = %q, expected the placeholder", i, fields[i])
		}
	}
}

func TestLogWriterRestartAppends(t *testing.T) {
	w := NewLogWriter(filepath.Join(t.TempDir(), "md.log"), false)
	if err := w.Start(); err != nil {
		t.Fatalf("failed to start log: %v", err)
	}
	info := MDInfo{TimePs: 0.005, Etot: -12.3, Epot: -12.425, Ekin: 0.125, Temperature: 300}
	if err := w.Append(info, models.NewUncertaintyRecord()); err != nil {
		t.Fatalf("failed to append row: %v", err)
	}

	// A restarted run reuses the path without calling Start again.
	restarted := NewLogWriter(w.Path(), false)
	info.TimePs = 0.01
	info.Temperature = 301.5
	if err := restarted.Append(info, models.NewUncertaintyRecord()); err != nil {
		t.Fatalf("failed to append after restart: %v", err)
	}

	lines := readLines(t, w.Path())
	if len(lines) != 3 {
		t.Fatalf("log has %d lines, expected 3", len(lines))
	}
	if !strings.HasPrefix(lines[2], "0.01000   \t") {
		t.Errorf("restart row = %q", lines[2])
	}
}
