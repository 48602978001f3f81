package norm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"webnorm/internal/auth"
	"webnorm/internal/calc/export"
	"webnorm/internal/calc/fe"
	"webnorm/internal/geochem"
	"webnorm/internal/runs"
)

type Handler struct {
	Engine   Engine
	Runs     runs.Repository
	Links    *auth.LinkSigner
	SumLimit float64
	Timeout  time.Duration
	Log      *zap.Logger
}

type Result struct {
	Filename  string            `json:"filename"`
	Params    Params            `json:"params"`
	Table     *geochem.Table    `json:"table"`
	OverSum   []int             `json:"over_sum"`
	SumLimit  float64           `json:"sum_limit"`
	Link      string            `json:"link"`
	RunID     int64             `json:"run_id,omitempty"`
	Downloads map[string]string `json:"downloads,omitempty"`
}

func (h *Handler) sumLimit() float64 {
	if h.SumLimit <= 0 {
		return DefaultSumLimit
	}
	return h.SumLimit
}

func (h *Handler) logger() *zap.Logger {
	if h.Log == nil {
		return zap.NewNop()
	}
	return h.Log
}

// Calc takes a multipart upload plus the Fe correction choice and answers
// with the normative mineralogy.
func (h *Handler) Calc(w http.ResponseWriter, r *http.Request) {
	t, name, err := geochem.FromRequest(w, r)
	if err != nil {
		if errors.Is(err, geochem.ErrUnsupportedFormat) || errors.Is(err, geochem.ErrNoFile) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, "Invalid file", http.StatusBadRequest)
		return
	}
	params, err := ParseParams(r.FormValue("fe_method"), r.FormValue("fe_constant"),
		r.FormValue("fe_column"), r.FormValue("rock_type"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if h.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.Timeout)
		defer cancel()
	}

	log := h.logger().With(zap.String("file", name), zap.String("fe_method", params.String()))
	start := time.Now()
	norms, err := Calculate(ctx, h.Engine, t, params)
	if err != nil {
		log.Warn("norm calculation failed", zap.Error(err))
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	over := OverSum(norms, h.sumLimit())
	log.Info("norm calculated",
		zap.Int("samples", norms.Len()),
		zap.Int("over_sum", len(over)),
		zap.Duration("took", time.Since(start)))

	csv, err := export.CSV(norms)
	if err != nil {
		http.Error(w, "Export error", http.StatusInternalServerError)
		return
	}
	res := Result{
		Filename: name,
		Params:   params,
		Table:    norms,
		OverSum:  over,
		SumLimit: h.sumLimit(),
		Link:     export.DownloadLink(csv, export.ResultsFilename, "Download results as csv file"),
	}

	if h.Runs != nil {
		run := &runs.Run{
			Source:    name,
			FeMethod:  string(params.Method),
			FeParams:  params.String(),
			Samples:   norms.Len(),
			OverSum:   over,
			ResultCSV: csv,
		}
		id, err := h.Runs.Save(ctx, run)
		if err != nil {
			log.Error("saving run failed", zap.Error(err))
		} else {
			res.RunID = id
			res.Downloads = h.downloads(id)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(res)
}

func (h *Handler) downloads(id int64) map[string]string {
	if h.Links == nil {
		return nil
	}
	out := make(map[string]string, 3)
	for _, format := range []string{"csv", "xlsx", "pdf"} {
		u, err := h.Links.DownloadURL(id, format)
		if err != nil {
			h.logger().Error("signing download link failed", zap.Error(err))
			return nil
		}
		out[format] = u
	}
	return out
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrEngine):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, ErrNoSamples),
		errors.Is(err, geochem.ErrMissingOxides),
		errors.Is(err, fe.ErrBadFactor),
		errors.Is(err, fe.ErrBadMethod),
		errors.Is(err, fe.ErrNoColumn):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
