package fe

import (
	"errors"
	"fmt"
	"strings"

	"webnorm/internal/geochem"
)

// FeO2Fe2O3 converts FeO wt% to the Fe2O3 wt% carrying the same iron
// (2*M(FeO) vs M(Fe2O3)).
const FeO2Fe2O3 = 1.11134

type Method string

const (
	MethodNone       Method = "None"
	MethodConstant   Method = "Constant"
	MethodLeMaitre   Method = "Le Maitre"
	MethodMiddlemost Method = "Middlemost"
	MethodSpecified  Method = "Specified"
)

var Methods = []Method{MethodNone, MethodConstant, MethodLeMaitre, MethodMiddlemost, MethodSpecified}

type RockType string

const (
	Plutonic RockType = "plutonic"
	Volcanic RockType = "volcanic"
)

var (
	ErrBadFactor = errors.New("Fe adjustment factor must be between 0 and 1")
	ErrBadMethod = errors.New("unknown Fe correction method")
	ErrNoColumn  = errors.New("Fe factor column not found")
)

func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", "")) {
	case "", "none":
		return MethodNone, nil
	case "constant":
		return MethodConstant, nil
	case "lemaitre":
		return MethodLeMaitre, nil
	case "middlemost":
		return MethodMiddlemost, nil
	case "specified":
		return MethodSpecified, nil
	}
	return "", fmt.Errorf("%w: %q", ErrBadMethod, s)
}

// ParseRockType defaults to plutonic, the first choice offered for Le Maitre.
func ParseRockType(s string) (RockType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "plutonic":
		return Plutonic, nil
	case "volcanic":
		return Volcanic, nil
	}
	return "", fmt.Errorf("unknown rock type %q", s)
}

// Adjust resets the FeO/Fe2O3 split of each row. factors[i] is the FeO
// share of the total iron (expressed as FeO) for row i. The input table
// is not modified.
func Adjust(t *geochem.Table, factors []float64) (*geochem.Table, error) {
	if len(factors) != t.Len() {
		return nil, fmt.Errorf("got %d factors for %d samples", len(factors), t.Len())
	}
	for i, f := range factors {
		if f < 0 || f > 1 {
			return nil, fmt.Errorf("%w: sample %d has %g", ErrBadFactor, i+1, f)
		}
	}

	out := t.Clone()
	for i, f := range factors {
		total := t.Float(i, "Fe2O3")/FeO2Fe2O3 + t.Float(i, "FeO")
		out.SetFloat(i, "Fe2O3", total*(1-f)*FeO2Fe2O3)
		out.SetFloat(i, "FeO", total*f)
	}
	return out, nil
}

func Constant(t *geochem.Table, factor float64) (*geochem.Table, error) {
	if factor < 0 || factor > 1 {
		return nil, fmt.Errorf("%w: %g", ErrBadFactor, factor)
	}
	factors := make([]float64, t.Len())
	for i := range factors {
		factors[i] = factor
	}
	return Adjust(t, factors)
}

// Specified reads the per-sample factor from one of the table's columns.
// Blank and NaN cells read as 0; any other non-numeric cell is an error.
func Specified(t *geochem.Table, column string) (*geochem.Table, error) {
	idx := t.Index(column)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %q", ErrNoColumn, column)
	}
	factors := make([]float64, t.Len())
	for i, row := range t.Rows {
		var cell string
		if idx < len(row) {
			cell = row[idx]
		}
		v, ok := t.Value(i, column)
		if !ok && !missing(cell) {
			return nil, fmt.Errorf("%w: column %q, sample %d has %q", ErrBadFactor, column, i+1, cell)
		}
		if v < 0 || v > 1 {
			return nil, fmt.Errorf("%w: column %q, sample %d has %g", ErrBadFactor, column, i+1, v)
		}
		factors[i] = v
	}
	return Adjust(t, factors)
}

func missing(cell string) bool {
	s := strings.TrimSpace(cell)
	return s == "" || strings.EqualFold(s, "nan")
}
