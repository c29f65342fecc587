package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/anything-backend/internal/http/response"
	"github.com/yungbote/anything-backend/internal/services"
)

type GenerationHandler struct {
	gen  services.GenerationService
	jobs services.JobService
}

func NewGenerationHandler(gen services.GenerationService, jobs services.JobService) *GenerationHandler {
	return &GenerationHandler{gen: gen, jobs: jobs}
}

// POST /api/apps/generate
// body: { "prompt": "...", "organization_id": "..." }
func (h *GenerationHandler) Generate(c *gin.Context) {
	var req struct {
		Prompt         string     `json:"prompt"`
		OrganizationID *uuid.UUID `json:"organization_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	gr, job, err := h.gen.Submit(dbcOf(c), req.Prompt, req.OrganizationID)
	if err != nil {
		response.RespondServiceError(c, "generate_failed", err)
		return
	}
	response.RespondAccepted(c, gin.H{
		"request_id": gr.ID,
		"job_id":     job.ID,
		"status":     gr.Status,
	})
}

// GET /api/generation-requests/:id
func (h *GenerationHandler) GetGenerationRequest(c *gin.Context) {
	id, ok := uuidParam(c, "id", "invalid_request_id")
	if !ok {
		return
	}
	gr, err := h.gen.GetRequest(dbcOf(c), id)
	if err != nil {
		response.RespondServiceError(c, "generation_request_not_found", err)
		return
	}
	job, err := h.jobs.GetLatestForEntityForRequestUser(dbcOf(c), services.EntityGenerationRequest, gr.ID, services.JobTypeAppGenerate)
	if err != nil {
		response.RespondServiceError(c, "job_lookup_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"generation_request": gr, "job": job})
}

// POST /api/apps/:id/update
// body: { "content": "..." }
func (h *GenerationHandler) Update(c *gin.Context) {
	appID, ok := uuidParam(c, "id", "invalid_app_id")
	if !ok {
		return
	}
	var req struct {
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if req.Content == "" {
		response.RespondError(c, http.StatusBadRequest, "content_required", errors.New("content is required"))
		return
	}
	ur, job, err := h.gen.SubmitUpdate(dbcOf(c), appID, req.Content)
	if err != nil {
		response.RespondServiceError(c, "update_failed", err)
		return
	}
	response.RespondAccepted(c, gin.H{
		"update_request_id": ur.ID,
		"job_id":            job.ID,
		"status":            ur.Status,
	})
}

// GET /api/update-requests/:id
func (h *GenerationHandler) GetUpdateRequest(c *gin.Context) {
	id, ok := uuidParam(c, "id", "invalid_request_id")
	if !ok {
		return
	}
	ur, err := h.gen.GetUpdateRequest(dbcOf(c), id)
	if err != nil {
		response.RespondServiceError(c, "update_request_not_found", err)
		return
	}
	job, err := h.jobs.GetLatestForEntityForRequestUser(dbcOf(c), services.EntityUpdateRequest, ur.ID, services.JobTypeAppUpdate)
	if err != nil {
		response.RespondServiceError(c, "job_lookup_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"update_request": ur, "job": job})
}
