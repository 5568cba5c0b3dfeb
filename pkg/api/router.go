package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(h.metrics.Middleware)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { writeSuccess(w, http.StatusOK, "ok", nil) })
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics.Handler())
	}
	r.Route("/v1", func(r chi.Router) {
		r.Get("/forecast", h.getForecast)
		r.Get("/customers", h.getCustomers)
		r.Get("/config", h.getConfig)
		r.Patch("/config", h.patchConfig)
		r.Post("/config/seasonality/storage-preset", h.applyStoragePreset)
		r.Post("/snapshots", h.saveSnapshot)
		r.Get("/snapshots", h.listSnapshots)
		r.Get("/snapshots/{id}", h.getSnapshot)
		r.Post("/snapshots/{id}/apply", h.loadSnapshot)
		r.Delete("/snapshots/{id}", h.deleteSnapshot)
	})
	return r
}
