package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/senyabanana/proposal-service/internal/models"
	"github.com/senyabanana/proposal-service/internal/services"
	"github.com/senyabanana/proposal-service/internal/utils"
)

// ProjectHandler - структура для обработки HTTP-запросов к проектам.
type ProjectHandler struct {
	base
	Service *services.ProjectService
}

// NewProjectHandler создает новый экземпляр ProjectHandler.
func NewProjectHandler(service *services.ProjectService, logger *slog.Logger, timeout time.Duration) *ProjectHandler {
	return &ProjectHandler{
		base:    base{Logger: logger, Timeout: timeout},
		Service: service,
	}
}

// CreateProject обрабатывает запросы для создания проекта.
func (h *ProjectHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	ctx, cancel := h.context(r)
	defer cancel()

	var req models.ProjectRequest
	if err := decodeJSON(r, &req); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	project, err := h.Service.CreateProject(ctx, actor, req)
	if err != nil {
		h.fail(w, r, err, "failed to create project")
		return
	}
	utils.SendJSON(w, http.StatusOK, project)
}

// GetProject обрабатывает запросы для получения проекта.
func (h *ProjectHandler) GetProject(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	ctx, cancel := h.context(r)
	defer cancel()

	project, err := h.Service.GetProject(ctx, r.PathValue("projectId"), actor)
	if err != nil {
		h.fail(w, r, err, "failed to retrieve project")
		return
	}
	utils.SendJSON(w, http.StatusOK, project)
}

// ListMyProjects обрабатывает запросы для получения проектов домовладельца.
func (h *ProjectHandler) ListMyProjects(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	ctx, cancel := h.context(r)
	defer cancel()

	limit, offset, err := utils.ParseLimitOffset(r.URL.Query().Get("limit"), r.URL.Query().Get("offset"))
	if err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	projects, err := h.Service.ListMyProjects(ctx, actor, limit, offset)
	if err != nil {
		h.fail(w, r, err, "failed to retrieve projects")
		return
	}
	utils.SendJSON(w, http.StatusOK, projects)
}

// EditProject обрабатывает запросы для изменения проекта.
func (h *ProjectHandler) EditProject(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	ctx, cancel := h.context(r)
	defer cancel()

	var patch models.ProjectPatch
	if err := decodeJSON(r, &patch); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	project, err := h.Service.EditProject(ctx, r.PathValue("projectId"), actor, patch)
	if err != nil {
		h.fail(w, r, err, "failed to edit project")
		return
	}
	utils.SendJSON(w, http.StatusOK, project)
}

// UpdateProjectStatus обрабатывает запросы для смены статуса проекта.
func (h *ProjectHandler) UpdateProjectStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	ctx, cancel := h.context(r)
	defer cancel()

	status := r.URL.Query().Get("status")
	if status == "" {
		utils.SendErrorResponse(w, http.StatusBadRequest, "status is required")
		return
	}

	project, err := h.Service.UpdateProjectStatus(ctx, r.PathValue("projectId"), actor, models.ProjectStatus(status))
	if err != nil {
		h.fail(w, r, err, "failed to update project status")
		return
	}
	utils.SendJSON(w, http.StatusOK, project)
}

// CheckConsistency обрабатывает запросы проверки инвариантов проекта.
func (h *ProjectHandler) CheckConsistency(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	ctx, cancel := h.context(r)
	defer cancel()

	report, err := h.Service.CheckConsistency(ctx, r.PathValue("projectId"), actor)
	if err != nil {
		h.fail(w, r, err, "failed to check project consistency")
		return
	}
	utils.SendJSON(w, http.StatusOK, report)
}
