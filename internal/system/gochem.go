package system

import (
	"fmt"
	"path/filepath"
	"strings"

	chem "github.com/rmera/gochem"
	"gonum.org/v1/gonum/mat"

	"github.com/yanliu110/ALmoMD/pkg/models"
)

// ReadStructure loads the initial configuration from an xyz, pdb or
// gro file, dispatching on the file extension.
func ReadStructure(path string) (*Configuration, error) {
	var mol *chem.Molecule
	var err error
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")) {
	case "gro":
		mol, err = chem.GroFileRead(path)
	case "pdb":
		mol, err = chem.PDBFileRead(path, false)
	default:
		mol, err = chem.XYZFileRead(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read structure %s: %w", path, err)
	}
	return FromMolecule(mol)
}

// FromMolecule converts the first frame of a gochem molecule into a
// configuration. Masses carried by the file win over the element
// table when present.
func FromMolecule(mol *chem.Molecule) (*Configuration, error) {
	if mol == nil || len(mol.Coords) == 0 {
		return nil, fmt.Errorf("%w: molecule has no coordinates", models.ErrConfiguration)
	}

	n := mol.Len()
	symbols := make([]string, n)
	positions := mat.NewDense(n, 3, nil)
	coords := mol.Coords[0]
	for i := 0; i < n; i++ {
		at := mol.Atom(i)
		sym := at.Symbol
		if sym == "" {
			sym = at.Name
		}
		symbols[i] = sym
		for j := 0; j < 3; j++ {
			positions.Set(i, j, coords.At(i, j))
		}
	}

	cfg, err := New(symbols, positions)
	if err != nil {
		return nil, err
	}
	for i := 0; i < n; i++ {
		if m := mol.Atom(i).Mass; m > 0 {
			cfg.Masses[i] = m
		}
	}
	return cfg, nil
}
