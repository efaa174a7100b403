package handle

import (
	"net/http"
	"strconv"

	"face-match/api/internal/logger"
)

// Attempts handles GET /v1/attempts?limit=N. Without a journal it is 404.
func (h *Handle) Attempts(w http.ResponseWriter, r *http.Request) {
	if h.attempts == nil {
		http.Error(w, "attempt journal disabled", http.StatusNotFound)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	rows, err := h.attempts.Recent(r.Context(), limit)
	if err != nil {
		h.log.Error(r.Context(), "list attempts", logger.Error(err))
		http.Error(w, "journal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}
