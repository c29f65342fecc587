package services

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	types "github.com/yungbote/anything-backend/internal/domain"
	"github.com/yungbote/anything-backend/internal/platform/logger"
)

const (
	JobEventCreated  = "JobCreated"
	JobEventProgress = "JobProgress"
	JobEventFailed   = "JobFailed"
	JobEventDone     = "JobDone"
)

type JobNotifier interface {
	JobCreated(userID uuid.UUID, job *types.JobRun)
	JobProgress(userID uuid.UUID, job *types.JobRun, stage string, progress int, message string)
	JobFailed(userID uuid.UUID, job *types.JobRun, stage string, errorMessage string)
	JobDone(userID uuid.UUID, job *types.JobRun)
}

// JobEvent is what subscribers of the job channel receive. Channel is the
// owning user's id.
type JobEvent struct {
	Channel string         `json:"channel"`
	Event   string         `json:"event"`
	Data    map[string]any `json:"data"`
}

type JobEventPublisher interface {
	Publish(ctx context.Context, ev JobEvent) error
	Close() error
}

type jobNotifier struct {
	log *logger.Logger
	pub JobEventPublisher
}

// NewJobNotifier logs every job transition and, when pub is non-nil, also
// publishes it.
func NewJobNotifier(baseLog *logger.Logger, pub JobEventPublisher) JobNotifier {
	return &jobNotifier{log: baseLog.With("service", "JobNotifier"), pub: pub}
}

func (n *jobNotifier) JobCreated(userID uuid.UUID, job *types.JobRun) {
	n.emit(userID, JobEventCreated, job, map[string]any{"job": job})
}

func (n *jobNotifier) JobProgress(userID uuid.UUID, job *types.JobRun, stage string, progress int, message string) {
	n.emit(userID, JobEventProgress, job, map[string]any{
		"job_id":   job.ID,
		"job_type": job.JobType,
		"stage":    stage,
		"progress": progress,
		"message":  message,
		"job":      job,
	})
}

func (n *jobNotifier) JobFailed(userID uuid.UUID, job *types.JobRun, stage string, errorMessage string) {
	n.emit(userID, JobEventFailed, job, map[string]any{
		"job_id":   job.ID,
		"job_type": job.JobType,
		"stage":    stage,
		"error":    errorMessage,
		"job":      job,
	})
}

func (n *jobNotifier) JobDone(userID uuid.UUID, job *types.JobRun) {
	n.emit(userID, JobEventDone, job, map[string]any{
		"job_id":   job.ID,
		"job_type": job.JobType,
		"job":      job,
	})
}

func (n *jobNotifier) emit(userID uuid.UUID, event string, job *types.JobRun, data map[string]any) {
	if n == nil || job == nil {
		return
	}
	n.log.Debug("Job event", "event", event, "job_id", job.ID, "job_type", job.JobType, "stage", job.Stage, "user_id", userID)
	if n.pub == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := n.pub.Publish(ctx, JobEvent{Channel: userID.String(), Event: event, Data: data}); err != nil {
		n.log.Warn("Publish job event failed", "event", event, "job_id", job.ID, "error", err)
	}
}

type redisJobEventPublisher struct {
	log     *logger.Logger
	rdb     goredis.UniversalClient
	channel string
}

// NewRedisJobEventPublisher publishes job events as JSON on a Redis pub/sub
// channel (default "jobs").
func NewRedisJobEventPublisher(baseLog *logger.Logger, rdb goredis.UniversalClient, channel string) JobEventPublisher {
	channel = strings.TrimSpace(channel)
	if channel == "" {
		channel = "jobs"
	}
	return &redisJobEventPublisher{
		log:     baseLog.With("service", "RedisJobEventPublisher"),
		rdb:     rdb,
		channel: channel,
	}
}

func (p *redisJobEventPublisher) Publish(ctx context.Context, ev JobEvent) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.rdb.Publish(ctx, p.channel, raw).Err()
}

// Close is a no-op; the client is shared and closed by its owner.
func (p *redisJobEventPublisher) Close() error { return nil }
