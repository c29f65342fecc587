package temporalx

import (
	"time"

	"github.com/yungbote/anything-backend/internal/platform/envutil"
)

type Config struct {
	Address   string
	Namespace string
	TaskQueue string

	ClientCertPath string
	ClientKeyPath  string
	ClientCAPath   string

	DialTimeout       time.Duration
	DialMaxWait       time.Duration
	AutoRegister      bool
	RetentionDays     int
	WorkerConcurrency int
}

// Enabled reports whether a Temporal address is configured. Without one,
// jobs run on the polling worker.
func (c Config) Enabled() bool { return c.Address != "" }

func LoadConfig() Config {
	retention := envutil.Int("TEMPORAL_NAMESPACE_RETENTION_DAYS", 7)
	if retention < 1 || retention > 365 {
		retention = 7
	}
	return Config{
		Address:   envutil.String("TEMPORAL_ADDRESS", ""),
		Namespace: envutil.String("TEMPORAL_NAMESPACE", "anything"),
		TaskQueue: envutil.String("TEMPORAL_TASK_QUEUE", "anything"),

		ClientCertPath: envutil.String("TEMPORAL_CLIENT_CERT_PATH", ""),
		ClientKeyPath:  envutil.String("TEMPORAL_CLIENT_KEY_PATH", ""),
		ClientCAPath:   envutil.String("TEMPORAL_CLIENT_CA_PATH", ""),

		DialTimeout:       envutil.Seconds("TEMPORAL_DIAL_TIMEOUT_SECONDS", 5),
		DialMaxWait:       envutil.Seconds("TEMPORAL_DIAL_MAX_WAIT_SECONDS", 60),
		AutoRegister:      envutil.Bool("TEMPORAL_AUTO_REGISTER_NAMESPACE", false),
		RetentionDays:     retention,
		WorkerConcurrency: envutil.Int("WORKER_CONCURRENCY", 4),
	}
}
