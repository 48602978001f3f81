package runs

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"webnorm/internal/auth"
	"webnorm/internal/calc/export"
	"webnorm/internal/geochem"
)

type Handler struct {
	Repo     Repository
	Links    *auth.LinkSigner
	SumLimit float64
	Log      *zap.Logger
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	list, err := h.Repo.List(r.Context(), limit)
	if err != nil {
		h.logError("listing runs failed", err)
		http.Error(w, "DB error", http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []Run{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(list)
}

// Download serves a stored run as csv, xlsx or pdf. The token query
// parameter must be a link signed for the same run.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid run id", http.StatusBadRequest)
		return
	}
	if h.Links == nil {
		http.Error(w, auth.ErrInvalidLink.Error(), http.StatusForbidden)
		return
	}
	granted, err := h.Links.Verify(r.URL.Query().Get("token"))
	if err != nil || granted != id {
		http.Error(w, auth.ErrInvalidLink.Error(), http.StatusForbidden)
		return
	}

	run, err := h.Repo.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		h.logError("loading run failed", err)
		http.Error(w, "DB error", http.StatusInternalServerError)
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" || format == "csv" {
		attach(w, "text/csv", export.ResultsFilename)
		w.Write(run.ResultCSV)
		return
	}

	t, err := geochem.ReadCSV(bytes.NewReader(run.ResultCSV))
	if err != nil {
		h.logError("decoding stored run failed", err)
		http.Error(w, "Stored run is corrupt", http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	switch format {
	case "xlsx":
		if err := t.WriteXLSX(&buf, "norms"); err != nil {
			http.Error(w, "Export error", http.StatusInternalServerError)
			return
		}
		attach(w, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "normative_mineralogy.xlsx")
	case "pdf":
		err := export.PDF(&buf, export.Report{
			Source:   run.Source,
			Method:   run.FeParams,
			Created:  run.CreatedAt,
			Table:    t,
			Flagged:  run.OverSum,
			SumLimit: h.SumLimit,
		})
		if err != nil {
			http.Error(w, "Report generation error", http.StatusInternalServerError)
			return
		}
		attach(w, "application/pdf", "normative_mineralogy.pdf")
	default:
		http.Error(w, fmt.Sprintf("Unknown format %q", format), http.StatusBadRequest)
		return
	}
	w.Write(buf.Bytes())
}

func attach(w http.ResponseWriter, contentType, filename string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
}

func (h *Handler) logError(msg string, err error) {
	if h.Log != nil {
		h.Log.Error(msg, zap.Error(err))
	}
}
