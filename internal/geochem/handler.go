package geochem

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"
)

const MaxUploadSize = 10 << 20 // 10MB

var ErrNoFile = errors.New("file required")

// FromRequest reads the multipart "file" field of r into a table.
func FromRequest(w http.ResponseWriter, r *http.Request) (*Table, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)
	if err := r.ParseMultipartForm(MaxUploadSize); err != nil {
		return nil, "", err
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, "", ErrNoFile
	}
	defer file.Close()

	t, err := Load(header.Filename, file)
	if err != nil {
		return nil, header.Filename, err
	}
	return t, header.Filename, nil
}

type Handler struct {
	Threshold float64
	Log       *zap.Logger
}

type PreviewResult struct {
	Filename       string   `json:"filename"`
	Table          *Table   `json:"table"`
	BelowThreshold []int    `json:"below_threshold"`
	Warning        int      `json:"warning"`
	Threshold      float64  `json:"threshold"`
	MissingOxides  []string `json:"missing_oxides,omitempty"`
}

func (h *Handler) threshold() float64 {
	if h.Threshold <= 0 {
		return DefaultSumThreshold
	}
	return h.Threshold
}

// Preview echoes an uploaded sheet back with its major oxide totals so the
// user can check the data before calculating.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	t, name, err := FromRequest(w, r)
	if err != nil {
		if errors.Is(err, ErrUnsupportedFormat) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, "Invalid file", http.StatusBadRequest)
		return
	}

	AddSum(t)
	below := BelowThreshold(t, h.threshold())
	if h.Log != nil && len(below) > 0 {
		h.Log.Info("samples below summation threshold",
			zap.String("file", name),
			zap.Int("count", len(below)),
			zap.Float64("threshold", h.threshold()))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(PreviewResult{
		Filename:       name,
		Table:          t,
		BelowThreshold: below,
		Warning:        len(below),
		Threshold:      h.threshold(),
		MissingOxides:  MissingOxides(t),
	})
}

// Template serves the empty upload sheet as csv, or xlsx with ?format=xlsx.
func (h *Handler) Template(w http.ResponseWriter, r *http.Request) {
	t := Template()
	var buf bytes.Buffer
	if r.URL.Query().Get("format") == "xlsx" {
		if err := t.WriteXLSX(&buf, "template"); err != nil {
			http.Error(w, "Template generation error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", "attachment; filename=\"template.xlsx\"")
		w.Write(buf.Bytes())
		return
	}
	if err := t.WriteCSV(&buf); err != nil {
		http.Error(w, "Template generation error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=\"template.csv\"")
	w.Write(buf.Bytes())
}
