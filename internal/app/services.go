package app

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/anything-backend/internal/jobs/pipeline/app_generate"
	"github.com/yungbote/anything-backend/internal/jobs/pipeline/app_update"
	jobruntime "github.com/yungbote/anything-backend/internal/jobs/runtime"
	"github.com/yungbote/anything-backend/internal/jobs/worker"
	"github.com/yungbote/anything-backend/internal/modules/appgen"
	"github.com/yungbote/anything-backend/internal/modules/appgen/prompts"
	"github.com/yungbote/anything-backend/internal/platform/applock"
	"github.com/yungbote/anything-backend/internal/platform/logger"
	"github.com/yungbote/anything-backend/internal/services"
	"github.com/yungbote/anything-backend/internal/temporalx/temporalworker"
)

type Services struct {
	// Domain
	Ledger     services.TokenLedger
	Apps       services.AppService
	Generation services.GenerationService
	DataStore  services.DataStoreService
	User       services.UserService

	// Jobs + notifications
	JobNotifier services.JobNotifier
	JobService  services.JobService
	Generator   *appgen.Generator

	// Job infra
	JobRegistry    *jobruntime.Registry
	Executor       *jobruntime.Executor
	JobWorker      *worker.Worker
	TemporalWorker *temporalworker.Runner
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, r Repos, clients Clients) (Services, error) {
	log.Info("Wiring services...")
	var out Services

	// Notifications go to Redis pub/sub when available.
	var pub services.JobEventPublisher
	var locker applock.Locker = applock.NewLocal()
	if clients.Redis != nil {
		pub = services.NewRedisJobEventPublisher(log, clients.Redis, "")
		rl, err := applock.NewRedis(log, clients.Redis, applock.RedisOptions{})
		if err != nil {
			return Services{}, fmt.Errorf("init redis app lock: %w", err)
		}
		locker = rl
	}
	out.JobNotifier = services.NewJobNotifier(log, pub)

	out.Ledger = services.NewTokenLedger(db, log, r.User, cfg.TokenCost)
	out.Apps = services.NewAppService(db, log, r.User, r.Organization, r.App, r.Page, r.ContextQuery, r.Permission, r.DataStore, r.Generation, r.Update)
	out.JobService = services.NewJobService(db, log, r.JobRun, out.JobNotifier, clients.Temporal, cfg.Temporal.TaskQueue)
	out.Generation = services.NewGenerationService(db, log, out.Apps, out.Ledger, out.JobService, r.Generation, r.Update)
	out.DataStore = services.NewDataStoreService(db, log, out.Apps, r.DataStore, r.Page, r.ContextQuery)
	out.User = services.NewUserService(db, log, r.User, out.Ledger)

	// Generation pipeline
	var opts []prompts.StoreOption
	if cfg.PromptOverrideDir != "" {
		opts = append(opts, prompts.WithOverrideDir(cfg.PromptOverrideDir))
	}
	store, err := prompts.NewStore(log, opts...)
	if err != nil {
		return Services{}, fmt.Errorf("init prompt store: %w", err)
	}
	gen, err := appgen.NewGenerator(cfg.AppGen, appgen.Deps{
		DB:          db,
		Log:         log,
		Prompts:     store,
		LLM:         clients.LLM,
		Ledger:      out.Ledger,
		Locker:      locker,
		Requests:    r.Generation,
		Updates:     r.Update,
		Apps:        r.App,
		Pages:       r.Page,
		Queries:     r.ContextQuery,
		Permissions: r.Permission,
		Data:        r.DataStore,
	})
	if err != nil {
		return Services{}, fmt.Errorf("init generator: %w", err)
	}
	out.Generator = gen

	// Job infra
	out.JobRegistry = jobruntime.NewRegistry()
	if err := out.JobRegistry.Register(app_generate.New(log, gen)); err != nil {
		return Services{}, err
	}
	if err := out.JobRegistry.Register(app_update.New(log, gen)); err != nil {
		return Services{}, err
	}
	out.Executor = &jobruntime.Executor{
		Log:      log.With("component", "JobExecutor"),
		DB:       db,
		Repo:     r.JobRun,
		Registry: out.JobRegistry,
		Notify:   out.JobNotifier,
	}

	if !cfg.RunWorker {
		return out, nil
	}
	if clients.Temporal != nil {
		tw, err := temporalworker.NewRunner(log, clients.Temporal, cfg.Temporal, out.Executor)
		if err != nil {
			return Services{}, fmt.Errorf("init temporal worker: %w", err)
		}
		out.TemporalWorker = tw
	} else {
		out.JobWorker = worker.NewWorker(log, r.JobRun, out.Executor, cfg.Worker)
	}
	return out, nil
}
