package app_update

import (
	"context"

	"github.com/google/uuid"

	"github.com/yungbote/anything-backend/internal/modules/appgen"
	"github.com/yungbote/anything-backend/internal/platform/logger"
	"github.com/yungbote/anything-backend/internal/services"
)

type Runner interface {
	RunUpdate(ctx context.Context, updateID uuid.UUID) (appgen.TaskResult, error)
}

type Pipeline struct {
	log *logger.Logger
	gen Runner
}

func New(baseLog *logger.Logger, gen Runner) *Pipeline {
	return &Pipeline{
		log: baseLog.With("job", services.JobTypeAppUpdate),
		gen: gen,
	}
}

func (p *Pipeline) Type() string { return services.JobTypeAppUpdate }
