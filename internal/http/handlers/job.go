package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/anything-backend/internal/http/response"
	"github.com/yungbote/anything-backend/internal/services"
)

type JobHandler struct {
	jobs services.JobService
}

func NewJobHandler(jobs services.JobService) *JobHandler {
	return &JobHandler{jobs: jobs}
}

// GET /api/jobs/:id
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID, ok := uuidParam(c, "id", "invalid_job_id")
	if !ok {
		return
	}
	job, err := h.jobs.GetByIDForRequestUser(dbcOf(c), jobID)
	if err != nil {
		response.RespondServiceError(c, "job_not_found", err)
		return
	}
	response.RespondOK(c, gin.H{"job": job})
}
