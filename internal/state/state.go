package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"instruments/scraper/internal/domain"

	"github.com/redis/go-redis/v9"
)

// RunStateManager guards against overlapping crawl runs and keeps the report of the latest one.
// Nothing stored here is used to resume a run.
type RunStateManager interface {
	AcquireRunLock(ctx context.Context, runID string, ttl time.Duration) (bool, error)
	ReleaseRunLock(ctx context.Context, runID string) error
	SaveReport(ctx context.Context, report *domain.RunReport) error
	LastReport(ctx context.Context) (*domain.RunReport, error)
}

// releaseLock deletes the lock only while it is still held by the given run.
var releaseLock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type redisStateManager struct {
	redisClient *redis.Client
	keyPrefix   string
}

func NewRedisStateManager(redisClient *redis.Client, keyPrefix string) RunStateManager {
	return &redisStateManager{
		redisClient: redisClient,
		keyPrefix:   keyPrefix + "crawl:",
	}
}

func (s *redisStateManager) lockKey() string {
	return s.keyPrefix + "lock"
}

func (s *redisStateManager) reportKey() string {
	return s.keyPrefix + "last_run"
}

func (s *redisStateManager) AcquireRunLock(ctx context.Context, runID string, ttl time.Duration) (bool, error) {
	ok, err := s.redisClient.SetNX(ctx, s.lockKey(), runID, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire run lock: %w", err)
	}
	return ok, nil
}

func (s *redisStateManager) ReleaseRunLock(ctx context.Context, runID string) error {
	if err := releaseLock.Run(ctx, s.redisClient, []string{s.lockKey()}, runID).Err(); err != nil {
		return fmt.Errorf("failed to release run lock: %w", err)
	}
	return nil
}

func (s *redisStateManager) SaveReport(ctx context.Context, report *domain.RunReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to serialize run report: %w", err)
	}

	if err := s.redisClient.Set(ctx, s.reportKey(), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save run report %s: %w", report.RunID, err)
	}
	return nil
}

// LastReport returns nil when no run has been recorded yet.
func (s *redisStateManager) LastReport(ctx context.Context) (*domain.RunReport, error) {
	data, err := s.redisClient.Get(ctx, s.reportKey()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get last run report: %w", err)
	}

	var report domain.RunReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to parse last run report: %w", err)
	}
	return &report, nil
}
