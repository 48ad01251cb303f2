package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/phrazzld/scaffold-api/internal/api/shared"
	"github.com/phrazzld/scaffold-api/internal/domain"
	"github.com/phrazzld/scaffold-api/internal/platform/logger"
	"github.com/phrazzld/scaffold-api/internal/service"
)

// TaskIDParam is the chi URL parameter holding a task identifier.
const TaskIDParam = "taskID"

const archiveContentType = "application/zip"

// GenerationHandler serves the task API.
type GenerationHandler struct {
	service service.GenerationService
	catalog domain.OptionCatalog
}

// NewGenerationHandler creates a GenerationHandler.
func NewGenerationHandler(svc service.GenerationService, catalog domain.OptionCatalog) *GenerationHandler {
	return &GenerationHandler{service: svc, catalog: catalog}
}

// Generate handles POST /api/generate
func (h *GenerationHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var cfg domain.ProjectConfig
	if err := shared.DecodeJSON(w, r, &cfg); err != nil {
		if errors.Is(err, shared.ErrEmptyBody) {
			shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, GetSafeErrorMessage(err), err)
			return
		}
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	record, err := h.service.Submit(r.Context(), cfg)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, GenerateResponse{
		TaskID:  record.ID,
		Status:  record.Status,
		Message: record.Message,
	})
}

// GetStatus handles GET /api/status/{taskID}
func (h *GenerationHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	record, err := h.service.GetTask(r.Context(), chi.URLParam(r, TaskIDParam))
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, record)
}

// Download handles GET /api/download/{taskID}
func (h *GenerationHandler) Download(w http.ResponseWriter, r *http.Request) {
	archive, err := h.service.OpenArchive(r.Context(), chi.URLParam(r, TaskIDParam))
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	defer func() {
		if err := archive.File.Close(); err != nil {
			logger.FromContext(r.Context()).Warn("failed to close archive", "error", err)
		}
	}()

	w.Header().Set("Content-Type", archiveContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+archive.Name+`"`)
	http.ServeContent(w, r, archive.Name, archive.ModTime, archive.File)
}

// Options handles GET /api/options
func (h *GenerationHandler) Options(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, h.catalog)
}

// Health handles GET /health
func Health(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, HealthResponse{Status: "ok"})
}

func (h *GenerationHandler) respondWithServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var opts []shared.ResponseOption
	var missing *domain.MissingFieldsError
	if errors.As(err, &missing) {
		opts = append(opts, shared.WithMissingFields(missing.Fields))
	}
	shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err, opts...)
}
