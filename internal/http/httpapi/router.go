package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"idphoto/internal/http/handlers"
	mw "idphoto/internal/middleware"
)

type Options struct {
	CORSAllowedOrigins []string
	// RateLimitPerMinute applies to the endpoints that call the model.
	RateLimitPerMinute int
	// TrustProxyHeaders lets X-Forwarded-For and X-Real-IP replace the
	// connection address. Enable only behind a proxy that overwrites them.
	TrustProxyHeaders bool
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(mw.RequestID)
	if opts.TrustProxyHeaders {
		r.Use(middleware.RealIP)
	}
	r.Use(
		mw.Logger(*app.Logger),
		middleware.Recoverer,
		mw.Metrics,
		mw.CORS(opts.CORSAllowedOrigins),
	)

	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/healthz", app.Health)
		r.Get("/previews/{handle}", app.PreviewGet)

		limited := mw.RateLimit(opts.RateLimitPerMinute, time.Minute)
		r.With(limited).Post("/recolor", app.Recolor)

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", app.SessionCreate)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", app.SessionGet)
				r.Delete("/", app.SessionDelete)
				r.Put("/source", app.SourcePut)
				r.Delete("/source", app.SourceDelete)
				r.Put("/template", app.TemplatePut)
				r.Delete("/template", app.TemplateDelete)
				r.With(limited).Post("/generate", app.SessionGenerate)
				r.Get("/result", app.SessionResult)
				r.Get("/bundle", app.SessionBundle)
			})
		})
	})

	return r
}
