package norm

import (
	"context"
	"errors"
	"fmt"

	"webnorm/internal/geochem"
)

// Engine hosts the CIPW norm calculation. The algorithm lives in an
// external scientific library; engines only move tables to and from it.
type Engine interface {
	Norm(ctx context.Context, t *geochem.Table, opts Options) (*geochem.Table, error)
}

// Options are forwarded verbatim as keyword arguments of the library's
// CIPW_norm call. The zero value requests the library defaults.
type Options struct {
	FeCorrection         string `json:"Fe_correction,omitempty"`
	FeCorrectionMode     string `json:"Fe_correction_mode,omitempty"`
	AdjustAllFe          bool   `json:"adjust_all_Fe,omitempty"`
	ReturnFreeComponents bool   `json:"return_free_components,omitempty"`
	Rounding             int    `json:"rounding,omitempty"`
}

type engineRequest struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
	Options Options    `json:"options"`
}

// Engines answer with native JSON numbers, strings or nulls per cell.
type engineResponse struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
	Error   string   `json:"error,omitempty"`
}

var ErrEngine = errors.New("norm engine failed")

func newRequest(t *geochem.Table, opts Options) engineRequest {
	return engineRequest{Columns: t.Columns, Rows: t.Rows, Options: opts}
}

func (r engineResponse) table(samples int) (*geochem.Table, error) {
	if r.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrEngine, r.Error)
	}
	if len(r.Columns) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrEngine)
	}
	if len(r.Rows) != samples {
		return nil, fmt.Errorf("%w: returned %d rows for %d samples", ErrEngine, len(r.Rows), samples)
	}
	t := geochem.NewTable(r.Columns)
	t.Rows = make([][]string, len(r.Rows))
	for i, row := range r.Rows {
		cells := make([]string, len(t.Columns))
		for j := 0; j < len(row) && j < len(cells); j++ {
			cells[j] = cellText(row[j])
		}
		t.Rows[i] = cells
	}
	return t, nil
}

func cellText(v any) string {
	switch c := v.(type) {
	case nil:
		return ""
	case string:
		return c
	case float64:
		return geochem.FormatFloat(c)
	case bool:
		if c {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprint(c)
	}
}
