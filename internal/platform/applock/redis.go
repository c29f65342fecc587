package applock

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/anything-backend/internal/platform/logger"
)

var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

var refreshScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Redis is a lease-based lock using SET NX PX. While held, the lease is
// refreshed in the background at a third of its TTL.
type Redis struct {
	log    *logger.Logger
	rdb    goredis.UniversalClient
	prefix string
	ttl    time.Duration
	poll   time.Duration
}

type RedisOptions struct {
	Prefix string
	TTL    time.Duration
	Poll   time.Duration
}

func NewRedis(log *logger.Logger, rdb goredis.UniversalClient, opts RedisOptions) (*Redis, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if rdb == nil {
		return nil, fmt.Errorf("redis client required")
	}
	if strings.TrimSpace(opts.Prefix) == "" {
		opts.Prefix = "anything:applock:"
	}
	if opts.TTL <= 0 {
		opts.TTL = 2 * time.Minute
	}
	if opts.Poll <= 0 {
		opts.Poll = 250 * time.Millisecond
	}
	return &Redis{
		log:    log.With("service", "RedisAppLock"),
		rdb:    rdb,
		prefix: opts.Prefix,
		ttl:    opts.TTL,
		poll:   opts.Poll,
	}, nil
}

// Dial connects to addr and verifies it with a ping.
func Dial(ctx context.Context, addr string) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func (r *Redis) Acquire(ctx context.Context, key string) (func() error, error) {
	full := r.prefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(r.poll)
	defer ticker.Stop()
	for {
		ok, err := r.rdb.SetNX(ctx, full, token, r.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("applock acquire %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go r.refresh(full, token, stop, done)

	released := false
	return func() error {
		if released {
			return nil
		}
		released = true
		close(stop)
		<-done
		relCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		n, err := releaseScript.Run(relCtx, r.rdb, []string{full}, token).Int64()
		if err != nil {
			return fmt.Errorf("applock release %s: %w", key, err)
		}
		if n == 0 {
			return ErrNotHeld
		}
		return nil
	}, nil
}

func (r *Redis) refresh(full, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	t := time.NewTicker(r.ttl / 3)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			n, err := refreshScript.Run(ctx, r.rdb, []string{full}, token, r.ttl.Milliseconds()).Int64()
			cancel()
			if err != nil {
				r.log.Warn("applock refresh failed", "key", full, "error", err)
				continue
			}
			if n == 0 {
				r.log.Warn("applock lease lost", "key", full)
				return
			}
		}
	}
}
