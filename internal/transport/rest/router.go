package rest

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouterDeps struct {
	Handler         *Handler
	RateLimitPerMin int
	HealthCheck     func() error
}

func NewRouter(d RouterDeps) http.Handler {
	if d.Handler == nil {
		panic("rest.NewRouter: nil handler")
	}
	if d.RateLimitPerMin <= 0 {
		d.RateLimitPerMin = 100
	}

	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(HTTPLogger)
	r.Use(middleware.Recoverer)
	r.Use(SecurityHeaders)
	r.Use(httprate.LimitByIP(d.RateLimitPerMin, time.Minute))

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if d.HealthCheck != nil {
			if err := d.HealthCheck(); err != nil {
				http.Error(w, "unhealthy", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/applications", d.Handler.Submit)
		r.Get("/applications/{applicationID}", d.Handler.Get)
	})

	return r
}
