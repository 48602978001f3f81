package export

import (
	"encoding/json"
	"net/http"
)

type Handler struct{}

// TemplateLink returns the template download anchor for embedding in a page.
func (h *Handler) TemplateLink(w http.ResponseWriter, r *http.Request) {
	link, err := TemplateLink()
	if err != nil {
		http.Error(w, "Template generation error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"link": link})
}
