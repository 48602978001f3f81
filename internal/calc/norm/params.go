package norm

import (
	"fmt"
	"strconv"
	"strings"

	"webnorm/internal/calc/fe"
)

// ParseParams builds Params from the form or flag values a user supplies.
// constant is only read for the Constant method, column for Specified and
// rock for Le Maitre.
func ParseParams(method, constant, column, rock string) (Params, error) {
	m, err := fe.ParseMethod(method)
	if err != nil {
		return Params{}, err
	}
	p := Params{Method: m}
	switch m {
	case fe.MethodConstant:
		if strings.TrimSpace(constant) == "" {
			return Params{}, fmt.Errorf("%w: constant required", fe.ErrBadFactor)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(constant), 64)
		if err != nil {
			return Params{}, fmt.Errorf("%w: %q", fe.ErrBadFactor, constant)
		}
		if v < 0 || v > 1 {
			return Params{}, fmt.Errorf("%w: %g", fe.ErrBadFactor, v)
		}
		p.Constant = v
	case fe.MethodSpecified:
		p.Column = strings.TrimSpace(column)
		if p.Column == "" {
			return Params{}, fmt.Errorf("%w: no column chosen", fe.ErrNoColumn)
		}
	case fe.MethodLeMaitre:
		r, err := fe.ParseRockType(rock)
		if err != nil {
			return Params{}, err
		}
		p.Rock = r
	}
	return p, nil
}

// String is the human readable form stored with a run.
func (p Params) String() string {
	switch p.Method {
	case fe.MethodConstant:
		return fmt.Sprintf("%s (FeO ratio %g)", p.Method, p.Constant)
	case fe.MethodSpecified:
		return fmt.Sprintf("%s (column %s)", p.Method, p.Column)
	case fe.MethodLeMaitre:
		return fmt.Sprintf("%s (%s)", p.Method, p.Rock)
	case "":
		return string(fe.MethodNone)
	}
	return string(p.Method)
}
