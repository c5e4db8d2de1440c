package handlers

import (
	"encoding/json"
	"net/http"
)

type recolorRequest struct {
	Source   string `json:"source"`
	Template string `json:"template"`
}

type recolorResponse struct {
	Image string `json:"image"`
}

// Recolor is the stateless form: two data URLs in, one data URL out.
func (a *App) Recolor(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 3*a.MaxUploadBytes+1<<20)
	var req recolorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}

	out := a.Recolorer.Recolor(r.Context(), req.Source, req.Template)
	if !out.OK() {
		a.json(w, kindStatus(out.Kind()), errorBody{Error: errorDetail{
			Code:    "recolor_failed",
			Message: out.Message(),
			Kind:    out.Kind().String(),
		}})
		return
	}
	a.json(w, http.StatusOK, recolorResponse{Image: out.Image()})
}
