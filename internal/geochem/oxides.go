package geochem

import (
	"errors"
	"fmt"
	"strings"
)

const SumColumn = "Sum"

// DefaultSumThreshold is the major oxide total (wt%) below which an
// analysis is reported as suspect.
const DefaultSumThreshold = 90.0

// Oxides are the major oxides, in wt%, every upload must carry.
var Oxides = []string{"SiO2", "TiO2", "Al2O3", "Fe2O3", "FeO", "MnO", "MgO", "CaO",
	"Na2O", "K2O", "P2O5"}

// MinorTrace are the optional minor and trace components, in ppm.
var MinorTrace = []string{
	"CO2",
	"SO3",
	"F",
	"Cl",
	"S",
	"Ni",
	"Co",
	"Sr",
	"Ba",
	"Rb",
	"Cs",
	"Li",
	"Zr",
	"Cr",
	"V",
}

var ErrMissingOxides = errors.New("missing major oxide columns")

// MissingOxides lists the major oxide headers absent from t.
func MissingOxides(t *Table) []string {
	var missing []string
	for _, ox := range Oxides {
		if !t.Has(ox) {
			missing = append(missing, ox)
		}
	}
	return missing
}

// CheckOxides returns an error wrapping ErrMissingOxides when any major
// oxide header is absent.
func CheckOxides(t *Table) error {
	if missing := MissingOxides(t); len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingOxides, strings.Join(missing, ", "))
	}
	return nil
}

func MajorSum(t *Table) []float64 {
	sums := make([]float64, t.Len())
	for i := range sums {
		for _, ox := range Oxides {
			sums[i] += t.Float(i, ox)
		}
	}
	return sums
}

// AddSum writes the major oxide total of each row into the Sum column.
func AddSum(t *Table) {
	t.SetColumn(SumColumn, MajorSum(t))
}

// BelowThreshold returns the rows whose major oxide total is under threshold.
func BelowThreshold(t *Table, threshold float64) []int {
	rows := []int{}
	for i, s := range MajorSum(t) {
		if s < threshold {
			rows = append(rows, i)
		}
	}
	return rows
}

func SummationWarning(t *Table, threshold float64) int {
	return len(BelowThreshold(t, threshold))
}

// Template is an empty upload sheet with every recognised header.
func Template() *Table {
	cols := make([]string, 0, len(Oxides)+len(MinorTrace))
	cols = append(cols, Oxides...)
	cols = append(cols, MinorTrace...)
	return NewTable(cols)
}
