package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

func (a *App) PreviewGet(w http.ResponseWriter, r *http.Request) {
	preview, ok := a.Intake.Previews().Get(chi.URLParam(r, "handle"))
	if !ok {
		a.error(w, http.StatusNotFound, "not_found", "preview not found")
		return
	}
	w.Header().Set("Content-Type", preview.MediaType)
	w.Header().Set("Content-Length", strconv.Itoa(len(preview.Data)))
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(preview.Data)
}
