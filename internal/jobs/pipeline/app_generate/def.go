package app_generate

import (
	"context"

	"github.com/google/uuid"

	"github.com/yungbote/anything-backend/internal/modules/appgen"
	"github.com/yungbote/anything-backend/internal/platform/logger"
	"github.com/yungbote/anything-backend/internal/services"
)

// Runner is the part of appgen.Generator this job needs.
type Runner interface {
	RunGenerate(ctx context.Context, requestID uuid.UUID) (appgen.TaskResult, error)
}

type Pipeline struct {
	log *logger.Logger
	gen Runner
}

func New(baseLog *logger.Logger, gen Runner) *Pipeline {
	return &Pipeline{
		log: baseLog.With("job", services.JobTypeAppGenerate),
		gen: gen,
	}
}

func (p *Pipeline) Type() string { return services.JobTypeAppGenerate }
