package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"idphoto/internal/infra"
	"idphoto/internal/intake"
	"idphoto/internal/recolor"
	"idphoto/internal/session"
)

// App carries the collaborators shared by every handler.
type App struct {
	Sessions  *session.Registry
	Intake    *intake.Intake
	Recolorer session.Recolorer
	Logger    *infra.Logger

	// BaseContext parents background generations so they outlive the
	// request that started them but stop on shutdown.
	BaseContext context.Context
	// MaxUploadBytes bounds a multipart request body.
	MaxUploadBytes int64
}

func NewApp(sessions *session.Registry, in *intake.Intake, recolorer session.Recolorer, logger *infra.Logger) *App {
	if logger == nil {
		logger = infra.NopLogger()
	}
	return &App{
		Sessions:       sessions,
		Intake:         in,
		Recolorer:      recolorer,
		Logger:         logger,
		BaseContext:    context.Background(),
		MaxUploadBytes: intake.DefaultMaxBytes,
	}
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, errorBody{Error: errorDetail{Code: errCode, Message: message}})
}

// session resolves the {id} URL parameter and writes a 404 when unknown.
func (a *App) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, ok := a.Sessions.Get(chi.URLParam(r, "id"))
	if !ok {
		a.error(w, http.StatusNotFound, "not_found", "session not found")
		return nil, false
	}
	return sess, true
}

// detached returns a context for work that continues after the response is
// written. It keeps the request logger.
func (a *App) detached(r *http.Request) context.Context {
	base := a.BaseContext
	if base == nil {
		base = context.Background()
	}
	return zerolog.Ctx(r.Context()).WithContext(base)
}

func (a *App) logger(r *http.Request) *zerolog.Logger {
	if l := zerolog.Ctx(r.Context()); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return a.Logger
}

func kindStatus(kind recolor.Kind) int {
	switch kind {
	case recolor.KindConfiguration:
		return http.StatusServiceUnavailable
	case recolor.KindInput, recolor.KindEmptyResult:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}
