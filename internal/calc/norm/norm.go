package norm

import (
	"context"
	"errors"
	"fmt"

	"webnorm/internal/calc/fe"
	"webnorm/internal/geochem"
)

// DefaultSumLimit is the normative total above which a sample is flagged.
const DefaultSumLimit = 100.1

// FreeDefSiO2 is the silica deficiency column; it is subtracted from the
// mineral total.
const FreeDefSiO2 = "FREE_DEFSIO2"

// Endmembers are the engine output columns that make up the normative sum.
var Endmembers = []string{"quartz", "zircon", "potassium metasilicate", "anorthite",
	"sodium metasilicate", "acmite", "thenardite", "albite", "orthoclase",
	"perovskite", "nepheline", "leucite", "dicalcium silicate",
	"kaliophilite", "apatite", "fluroapatite", "fluorite", "pyrite",
	"chromite", "ilmenite", "calcite", "corundum", "rutile", "magnetite",
	"hematite", "forsterite", "fayalite", "clinoferrosilite",
	"clinoenstatite", "ferrosilite", "enstatite", "titanite",
	"wollastonite", "halite",
	"cancrinite", "FREE_O", "FREE_CO2",
	"FREE_OXIDES"}

// Sum writes the normative total of each row into the Sum column.
// Columns the engine did not return count as zero.
func Sum(t *geochem.Table) {
	sums := make([]float64, t.Len())
	for i := range sums {
		for _, m := range Endmembers {
			sums[i] += t.Float(i, m)
		}
		sums[i] -= t.Float(i, FreeDefSiO2)
	}
	t.SetColumn(geochem.SumColumn, sums)
}

// OverSum returns the rows whose normative total exceeds limit.
func OverSum(t *geochem.Table, limit float64) []int {
	rows := []int{}
	for i := range t.Rows {
		if t.Float(i, geochem.SumColumn) > limit {
			rows = append(rows, i)
		}
	}
	return rows
}

// Params selects the Fe correction applied before the norm.
type Params struct {
	Method   fe.Method   `json:"method"`
	Constant float64     `json:"constant,omitempty"`
	Column   string      `json:"column,omitempty"`
	Rock     fe.RockType `json:"rock_type,omitempty"`
}

// Options maps the Fe correction onto the engine's keyword arguments.
// Only the corrections owned by the norm library change them.
func (p Params) Options() Options {
	switch p.Method {
	case fe.MethodLeMaitre:
		return Options{
			FeCorrection:         "LeMaitre",
			FeCorrectionMode:     string(p.Rock),
			AdjustAllFe:          true,
			ReturnFreeComponents: true,
			Rounding:             3,
		}
	case fe.MethodMiddlemost:
		return Options{
			FeCorrection:         "Middlemost",
			AdjustAllFe:          true,
			ReturnFreeComponents: true,
			Rounding:             3,
		}
	}
	return Options{}
}

// Prepare applies the Fe corrections done locally and returns the table
// to hand to the engine.
func (p Params) Prepare(t *geochem.Table) (*geochem.Table, error) {
	switch p.Method {
	case fe.MethodConstant:
		return fe.Constant(t, p.Constant)
	case fe.MethodSpecified:
		return fe.Specified(t, p.Column)
	case fe.MethodNone, fe.MethodLeMaitre, fe.MethodMiddlemost, "":
		return t.Clone(), nil
	}
	return nil, fmt.Errorf("%w: %q", fe.ErrBadMethod, p.Method)
}

var ErrNoSamples = errors.New("no samples to calculate")

// Calculate runs the Fe correction and the engine, then totals the norm.
func Calculate(ctx context.Context, engine Engine, t *geochem.Table, p Params) (*geochem.Table, error) {
	if t == nil || t.Len() == 0 {
		return nil, ErrNoSamples
	}
	if err := geochem.CheckOxides(t); err != nil {
		return nil, err
	}
	in, err := p.Prepare(t)
	if err != nil {
		return nil, err
	}
	out, err := engine.Norm(ctx, in, p.Options())
	if err != nil {
		return nil, err
	}
	Sum(out)
	return out, nil
}
