package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"chatllm-backend/internal/models"
)

// EventPublisher announces appended messages to the owning user's live sessions.
// Publishing is best-effort and never fails the caller.
type EventPublisher interface {
	PublishMessage(ctx context.Context, userID int64, msg *models.Message)
}

// UserChannel is the pub/sub channel carrying a user's updates.
func UserChannel(userID int64) string {
	return fmt.Sprintf("user_updates:%d", userID)
}

type RedisPublisher struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRedisPublisher(client *redis.Client, logger *zap.Logger) *RedisPublisher {
	return &RedisPublisher{client: client, logger: logger}
}

func (p *RedisPublisher) PublishMessage(ctx context.Context, userID int64, msg *models.Message) {
	data, err := json.Marshal(models.WSMessage{Type: models.EventMessageCreated, Payload: msg})
	if err != nil {
		p.logger.Error("failed to encode message event", zap.Error(err))
		return
	}
	if err := p.client.Publish(ctx, UserChannel(userID), data).Err(); err != nil {
		p.logger.Warn("failed to publish message event",
			zap.Int64("user_id", userID),
			zap.Int64("message_id", msg.ID),
			zap.Error(err))
	}
}

type NoopPublisher struct{}

func (NoopPublisher) PublishMessage(context.Context, int64, *models.Message) {}
