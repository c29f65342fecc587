package observability

import (
	"context"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/anything-backend/internal/domain"
	"github.com/yungbote/anything-backend/internal/platform/envutil"
	"github.com/yungbote/anything-backend/internal/platform/logger"
)

type Metrics struct {
	apiRequests   *CounterVec
	apiLatency    *HistogramVec
	apiInflight   *Gauge
	apiReqError   *Counter
	llmRequests   *CounterVec
	llmLatency    *HistogramVec
	llmTokens     *CounterVec
	stageDuration *HistogramVec
	stageTotal    *CounterVec
	tokensCharged *CounterVec
	activityTime  *HistogramVec
	workerError   *Counter
	queueDepth    *GaugeVec
	pgStats       *GaugeVec
	redisUp       *Gauge
	redisPing     *Gauge
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled() bool {
	v := strings.TrimSpace(os.Getenv("METRICS_ENABLED"))
	if v == "" {
		return false
	}
	return strings.EqualFold(v, "true") || v == "1" || strings.EqualFold(v, "yes")
}

func Current() *Metrics {
	return instance
}

func scrapeInterval() time.Duration {
	return envutil.Seconds("METRICS_SCRAPE_INTERVAL_SECONDS", 10)
}

func Init(log *logger.Logger) *Metrics {
	if !Enabled() {
		return nil
	}
	initOnce.Do(func() {
		instance = newMetrics()
		if log != nil {
			log.Info("Observability metrics enabled")
		}
	})
	return instance
}

func newMetrics() *Metrics {
	return &Metrics{
		apiRequests: NewCounterVec("anything_api_requests_total", "Total API requests by method/route/status.", []string{"method", "route", "status"}),
		apiLatency: NewHistogramVec(
			"anything_api_request_duration_seconds",
			"API request latency in seconds by method/route/status.",
			[]string{"method", "route", "status"},
			[]float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		),
		apiInflight: NewGauge("anything_api_inflight_requests", "In-flight API requests."),
		apiReqError: NewCounter("anything_api_requests_error_total", "Total API requests with 5xx status."),
		llmRequests: NewCounterVec("anything_llm_requests_total", "LLM calls by provider/stage/status.", []string{"provider", "stage", "status"}),
		llmLatency: NewHistogramVec(
			"anything_llm_request_duration_seconds",
			"LLM call latency in seconds by provider/stage.",
			[]string{"provider", "stage"},
			[]float64{0.25, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		),
		llmTokens: NewCounterVec("anything_llm_tokens_total", "LLM tokens by provider/direction.", []string{"provider", "direction"}),
		stageDuration: NewHistogramVec(
			"anything_generation_stage_duration_seconds",
			"Generation pipeline stage duration in seconds.",
			[]string{"pipeline", "stage", "status"},
			[]float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		),
		stageTotal:    NewCounterVec("anything_generation_stage_total", "Generation pipeline stages by pipeline/stage/status.", []string{"pipeline", "stage", "status"}),
		tokensCharged: NewCounterVec("anything_tokens_charged_total", "User token balance movements by kind.", []string{"kind"}),
		activityTime: NewHistogramVec(
			"anything_worker_activity_duration_seconds",
			"Job run duration in seconds.",
			[]string{"activity", "job_type", "status"},
			[]float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600},
		),
		workerError: NewCounter("anything_worker_activity_error_total", "Job runs that ended in failure."),
		queueDepth:  NewGaugeVec("anything_job_queue_depth", "Job queue depth by status.", []string{"status"}),
		pgStats:     NewGaugeVec("anything_postgres_stats", "Postgres connection stats.", []string{"metric"}),
		redisUp:     NewGauge("anything_redis_up", "Redis connectivity (1=up, 0=down)."),
		redisPing:   NewGauge("anything_redis_ping_seconds", "Redis ping latency in seconds."),
	}
}

func (m *Metrics) StartServer(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil {
		return
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           http.HandlerFunc(m.WriteHTTP),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if log != nil {
				log.Error("metrics server failed", "error", err, "addr", addr)
			}
		}
	}()
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

type promWriter interface {
	WritePrometheus(w io.Writer) error
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	all := []promWriter{
		m.apiRequests, m.apiLatency, m.apiInflight, m.apiReqError,
		m.llmRequests, m.llmLatency, m.llmTokens,
		m.stageDuration, m.stageTotal, m.tokensCharged,
		m.activityTime, m.workerError, m.queueDepth,
		m.pgStats, m.redisUp, m.redisPing,
	}
	for _, pw := range all {
		if err := pw.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if route == "" {
		route = "unknown"
	}
	if status == "" {
		status = "0"
	}
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route, status)
	if isServerErrorStatus(status) {
		m.apiReqError.Inc()
	}
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

// ObserveLLMRequest satisfies llm.Observer.
func (m *Metrics) ObserveLLMRequest(provider, stage, status string, dur time.Duration, inputTokens, outputTokens int64) {
	if m == nil {
		return
	}
	provider = orUnknown(provider)
	stage = orUnknown(stage)
	m.llmRequests.Inc(provider, stage, orUnknown(status))
	if dur > 0 {
		m.llmLatency.Observe(dur.Seconds(), provider, stage)
	}
	if inputTokens > 0 {
		m.llmTokens.Add(float64(inputTokens), provider, "input")
	}
	if outputTokens > 0 {
		m.llmTokens.Add(float64(outputTokens), provider, "output")
	}
}

func (m *Metrics) ObserveGenerationStage(pipeline, stage, status string, dur time.Duration) {
	if m == nil {
		return
	}
	pipeline, stage, status = orUnknown(pipeline), orUnknown(stage), orUnknown(status)
	m.stageDuration.Observe(dur.Seconds(), pipeline, stage, status)
	m.stageTotal.Inc(pipeline, stage, status)
}

func (m *Metrics) AddTokensCharged(kind string, amount int64) {
	if m == nil || amount <= 0 {
		return
	}
	m.tokensCharged.Add(float64(amount), orUnknown(kind))
}

func (m *Metrics) ObserveActivity(activityName, jobType, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.activityTime.Observe(dur.Seconds(), orUnknown(activityName), orUnknown(jobType), orUnknown(status))
	if isFailureStatus(status) {
		m.workerError.Inc()
	}
}

func (m *Metrics) StartPostgresCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	interval := scrapeInterval()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sqlDB, err := db.DB()
				if err != nil {
					if log != nil {
						log.Warn("metrics: postgres stats unavailable", "error", err)
					}
					continue
				}
				stats := sqlDB.Stats()
				m.pgStats.Set(float64(stats.OpenConnections), "open_connections")
				m.pgStats.Set(float64(stats.InUse), "in_use")
				m.pgStats.Set(float64(stats.Idle), "idle")
				m.pgStats.Set(float64(stats.WaitCount), "wait_count")
				m.pgStats.Set(stats.WaitDuration.Seconds(), "wait_duration_seconds")
			}
		}
	}()
}

func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, rdb redis.UniversalClient) {
	if m == nil || rdb == nil {
		return
	}
	interval := scrapeInterval()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				start := time.Now()
				if err := rdb.Ping(ctx).Err(); err != nil {
					m.redisUp.Set(0)
					if log != nil {
						log.Warn("metrics: redis ping failed", "error", err)
					}
					continue
				}
				m.redisUp.Set(1)
				m.redisPing.Set(time.Since(start).Seconds())
			}
		}
	}()
}

func (m *Metrics) StartJobQueueCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	interval := scrapeInterval()
	statuses := []string{domain.JobStatusQueued, domain.JobStatusRunning, domain.JobStatusSucceeded, domain.JobStatusFailed}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for _, s := range statuses {
					m.queueDepth.Set(0, s)
				}
				var rows []struct {
					Status string
					Count  int64
				}
				if err := db.WithContext(ctx).
					Model(&domain.JobRun{}).
					Select("status, count(*) as count").
					Group("status").
					Scan(&rows).Error; err != nil {
					if log != nil {
						log.Warn("metrics: job queue depth query failed", "error", err)
					}
					continue
				}
				for _, row := range rows {
					m.queueDepth.Set(float64(row.Count), orUnknown(strings.TrimSpace(row.Status)))
				}
			}
		}
	}()
}

func orUnknown(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "unknown"
	}
	return s
}
