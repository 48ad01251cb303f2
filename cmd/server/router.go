package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/scaffold-api/internal/api"
	apiMiddleware "github.com/phrazzld/scaffold-api/internal/api/middleware"
)

// setupRouter registers the API routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.NewTraceMiddleware(app.logger))
	r.Use(apiMiddleware.NewCORSMiddleware(app.config.Server.AllowedOrigins))

	h := api.NewGenerationHandler(app.service, app.catalog)

	r.Route("/api", func(r chi.Router) {
		r.Post("/generate", h.Generate)
		r.Get("/status/{"+api.TaskIDParam+"}", h.GetStatus)
		r.Get("/download/{"+api.TaskIDParam+"}", h.Download)
		r.Get("/options", h.Options)
	})

	r.Get("/health", api.Health)

	return r
}
