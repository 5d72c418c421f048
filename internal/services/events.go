package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	EventTransactionCreated   = "transaction.created"
	EventTransactionCompleted = "transaction.completed"
	EventTransactionRejected  = "transaction.rejected"
	EventTransactionDeleted   = "transaction.deleted"
	EventEntityDeleted        = "entity.deleted"
	EventWalletCreated        = "wallet.created"
)

// Event describes a committed change for downstream consumers
type Event struct {
	Type       string    `json:"type"`
	SubjectID  uuid.UUID `json:"subject_id"`
	Data       any       `json:"data,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// EventPublisher delivers events after commit. Delivery failures are the
// publisher's problem; they never undo the committed change.
type EventPublisher interface {
	Publish(ctx context.Context, event Event)
}

// RedisEventPublisher appends events to a Redis list
type RedisEventPublisher struct {
	redis    *redis.Client
	queueKey string
	logger   *zap.Logger
}

func NewRedisEventPublisher(redisClient *redis.Client, queueKey string, logger *zap.Logger) *RedisEventPublisher {
	return &RedisEventPublisher{
		redis:    redisClient,
		queueKey: queueKey,
		logger:   logger,
	}
}

func (p *RedisEventPublisher) Publish(ctx context.Context, event Event) {
	if p.redis == nil {
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("failed to encode event", zap.String("type", event.Type), zap.Error(err))
		return
	}

	if err := p.redis.RPush(ctx, p.queueKey, data).Err(); err != nil {
		p.logger.Warn("failed to queue event",
			zap.String("type", event.Type),
			zap.Stringer("subject_id", event.SubjectID),
			zap.Error(err))
	}
}
