package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/termforge/glossary-backend/internal/logger"
	"github.com/termforge/glossary-backend/internal/types"
	"github.com/termforge/glossary-backend/internal/utils"
)

// JobStatusPublisher mirrors batch job snapshots somewhere the admin
// dashboard can poll cheaply. Never load-bearing: the job row in Postgres
// stays the source of truth.
type JobStatusPublisher interface {
	Publish(ctx context.Context, job *types.BatchJob)
}

type redisStatusPublisher struct {
	log    *logger.Logger
	rdb    *goredis.Client
	prefix string
	ttl    time.Duration
}

// NewJobStatusPublisher connects to Redis when REDIS_ADDR is set and returns
// a no-op publisher otherwise.
func NewJobStatusPublisher(log *logger.Logger) (JobStatusPublisher, error) {
	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		log.Info("REDIS_ADDR not set, job status snapshots disabled")
		return noopStatusPublisher{}, nil
	}

	prefix := strings.TrimSpace(os.Getenv("REDIS_JOB_STATUS_PREFIX"))
	if prefix == "" {
		prefix = "glossary:job"
	}
	ttl := utils.GetEnvAsDurationMS("REDIS_JOB_STATUS_TTL_MS", 24*time.Hour, log)

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &redisStatusPublisher{
		log:    log.With("service", "RedisJobStatusPublisher"),
		rdb:    rdb,
		prefix: prefix,
		ttl:    ttl,
	}, nil
}

func (p *redisStatusPublisher) Publish(ctx context.Context, job *types.BatchJob) {
	if job == nil {
		return
	}
	payload, err := json.Marshal(job)
	if err != nil {
		p.log.Warn("Failed to marshal job snapshot", "job_id", job.ID, "error", err)
		return
	}
	key := p.prefix + ":" + job.ID.String()
	if err := p.rdb.Set(ctx, key, payload, p.ttl).Err(); err != nil {
		p.log.Warn("Failed to publish job snapshot", "job_id", job.ID, "error", err)
	}
}

type noopStatusPublisher struct{}

func (noopStatusPublisher) Publish(context.Context, *types.BatchJob) {}
