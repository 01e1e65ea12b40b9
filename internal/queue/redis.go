package queue

import (
	"context"
	"fmt"

	"instruments/scraper/internal/config"
	"instruments/scraper/internal/domain/event"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

type Publisher interface {
	Publish(ctx context.Context, e event.Event) (string, error) // Returns message ID
}

// RedisPublisher appends crawl events to one Redis stream per event type.
type RedisPublisher struct {
	redisClient  *redis.Client
	streamPrefix string
	maxLen       int64
}

func NewRedisPublisher(redisClient *redis.Client, cfg config.RedisConfig) *RedisPublisher {
	return &RedisPublisher{
		redisClient:  redisClient,
		streamPrefix: cfg.KeyPrefix + "stream:",
		maxLen:       cfg.StreamMaxLen,
	}
}

func (q *RedisPublisher) StreamName(eventType string) string {
	return q.streamPrefix + eventType
}

func (q *RedisPublisher) Publish(ctx context.Context, e event.Event) (string, error) {
	eventType := e.EventType()
	streamName := q.StreamName(eventType)

	eventValue, err := e.EventValue()
	if err != nil {
		return "", fmt.Errorf("failed to serialize event: %w", err)
	}

	// Fields: event_type, event_data
	args := &redis.XAddArgs{
		Stream: streamName,
		Values: map[string]interface{}{
			"event_type": eventType,
			"event_data": string(eventValue),
		},
	}
	if q.maxLen > 0 {
		args.MaxLen = q.maxLen
		args.Approx = true
	}

	messageID, err := q.redisClient.XAdd(ctx, args).Result()
	if err != nil {
		return "", fmt.Errorf("failed to add event to Redis stream %s: %w", streamName, err)
	}

	log.Debugf("Added event %s to stream %s with message ID: %s", eventType, streamName, messageID)
	return messageID, nil
}
