package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/senyabanana/proposal-service/internal/lifecycle"
	"github.com/senyabanana/proposal-service/internal/models"
	"github.com/senyabanana/proposal-service/internal/services"
	"github.com/senyabanana/proposal-service/internal/utils"
)

// ProposalHandler - структура для обработки HTTP-запросов к предложениям.
type ProposalHandler struct {
	base
	Service        *services.ProposalService
	MaxUploadBytes int64
}

// NewProposalHandler создает новый экземпляр ProposalHandler.
func NewProposalHandler(service *services.ProposalService, logger *slog.Logger, timeout time.Duration, maxUploadBytes int64) *ProposalHandler {
	return &ProposalHandler{
		base:           base{Logger: logger, Timeout: timeout},
		Service:        service,
		MaxUploadBytes: maxUploadBytes,
	}
}

// decisionRequest - необязательное тело запроса отклонения.
type decisionRequest struct {
	Reason models.RejectionReason `json:"reason"`
	Notes  string                 `json:"notes"`
}

func readDecision(r *http.Request) (lifecycle.Decision, error) {
	var req decisionRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		return lifecycle.Decision{}, err
	}
	return lifecycle.Decision{Reason: req.Reason, Notes: req.Notes}, nil
}

// SubmitProposal обрабатывает запросы для создания предложения.
func (h *ProposalHandler) SubmitProposal(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	ctx, cancel := h.context(r)
	defer cancel()

	var req models.ProposalRequest
	if err := decodeJSON(r, &req); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	proposal, err := h.Service.SubmitProposal(ctx, actor, req)
	if err != nil {
		h.fail(w, r, err, "failed to create proposal")
		return
	}
	utils.SendJSON(w, http.StatusOK, proposal)
}

// GetProposal обрабатывает запросы для получения предложения.
func (h *ProposalHandler) GetProposal(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	ctx, cancel := h.context(r)
	defer cancel()

	proposal, err := h.Service.GetProposal(ctx, r.PathValue("proposalId"), actor)
	if err != nil {
		h.fail(w, r, err, "failed to retrieve proposal")
		return
	}
	utils.SendJSON(w, http.StatusOK, proposal)
}

// ListMyProposals обрабатывает запросы для получения предложений подрядчика.
func (h *ProposalHandler) ListMyProposals(w http.ResponseWriter, r *http.Request) {
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

	proposals, err := h.Service.ListMyProposals(ctx, actor, limit, offset)
	if err != nil {
		h.fail(w, r, err, "failed to retrieve proposals")
		return
	}
	utils.SendJSON(w, http.StatusOK, proposals)
}

// ListProjectProposals обрабатывает запросы для получения предложений по проекту.
func (h *ProposalHandler) ListProjectProposals(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	ctx, cancel := h.context(r)
	defer cancel()

	proposals, err := h.Service.ListProposalsForProject(ctx, r.PathValue("projectId"), actor)
	if err != nil {
		h.fail(w, r, err, "failed to retrieve proposals for project")
		return
	}
	utils.SendJSON(w, http.StatusOK, proposals)
}

// EditProposal обрабатывает запросы для изменения содержимого предложения.
func (h *ProposalHandler) EditProposal(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	ctx, cancel := h.context(r)
	defer cancel()

	var patch models.ProposalPatch
	if err := decodeJSON(r, &patch); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	proposal, err := h.Service.UpdateProposal(ctx, r.PathValue("proposalId"), patch, actor)
	if err != nil {
		h.fail(w, r, err, "failed to edit proposal")
		return
	}
	utils.SendJSON(w, http.StatusOK, proposal)
}

// UpdateProposalStatus обрабатывает запросы для смены статуса предложения.
func (h *ProposalHandler) UpdateProposalStatus(w http.ResponseWriter, r *http.Request) {
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
	decision, err := readDecision(r)
	if err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	proposal, err := h.Service.TransitionProposal(ctx, r.PathValue("proposalId"), models.ProposalStatus(status), actor, decision)
	if err != nil {
		h.fail(w, r, err, "failed to update proposal status")
		return
	}
	utils.SendJSON(w, http.StatusOK, proposal)
}

// AcceptProposal обрабатывает запросы для принятия предложения.
func (h *ProposalHandler) AcceptProposal(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	ctx, cancel := h.context(r)
	defer cancel()

	result, err := h.Service.AcceptProposal(ctx, r.PathValue("proposalId"), actor)
	if err != nil {
		h.fail(w, r, err, "failed to accept proposal")
		return
	}
	utils.SendJSON(w, http.StatusOK, result)
}

// RejectProposal обрабатывает запросы для отклонения одного предложения.
func (h *ProposalHandler) RejectProposal(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	ctx, cancel := h.context(r)
	defer cancel()

	decision, err := readDecision(r)
	if err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	proposal, err := h.Service.RejectProposal(ctx, r.PathValue("proposalId"), actor, decision)
	if err != nil {
		h.fail(w, r, err, "failed to reject proposal")
		return
	}
	utils.SendJSON(w, http.StatusOK, proposal)
}

// RollbackProposal обрабатывает запросы для отката содержимого к версии.
func (h *ProposalHandler) RollbackProposal(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	ctx, cancel := h.context(r)
	defer cancel()

	version, err := strconv.Atoi(r.PathValue("version"))
	if err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid version")
		return
	}

	proposal, err := h.Service.RollbackProposal(ctx, r.PathValue("proposalId"), version, actor)
	if err != nil {
		h.fail(w, r, err, "failed to rollback proposal")
		return
	}
	utils.SendJSON(w, http.StatusOK, proposal)
}

// DeleteProposal обрабатывает запросы для удаления предложения.
func (h *ProposalHandler) DeleteProposal(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	ctx, cancel := h.context(r)
	defer cancel()

	if err := h.Service.DeleteProposal(ctx, r.PathValue("proposalId"), actor); err != nil {
		h.fail(w, r, err, "failed to delete proposal")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AttachFile обрабатывает multipart-загрузку вложения в поле file.
func (h *ProposalHandler) AttachFile(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	ctx, cancel := h.context(r)
	defer cancel()

	r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.SendErrorResponse(w, http.StatusRequestEntityTooLarge, "file is too large")
			return
		}
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "failed to read file")
		return
	}
	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}

	proposal, err := h.Service.AttachFile(ctx, r.PathValue("proposalId"), actor, header.Filename, mimeType, data)
	if err != nil {
		h.fail(w, r, err, "failed to attach file")
		return
	}
	utils.SendJSON(w, http.StatusOK, proposal)
}
