package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/contestra/ai-ranker-sub003/internal/domain"
	"github.com/contestra/ai-ranker-sub003/internal/infra"
)

// SignalBus транслирует события соседним инстансам дашборда через Redis
// Pub/Sub: завершенные прогоны и инжестированные бот-события. Шина
// опциональна: без Redis все публикации — no-op. Сбой публикации — warning,
// никогда не ошибка прогона.
type SignalBus struct {
	rdb    *redis.Client
	logger *zap.Logger
}

// NewSignalBus принимает nil-клиента: шина при этом отключена.
func NewSignalBus(rdb *redis.Client, logger *zap.Logger) *SignalBus {
	return &SignalBus{rdb: rdb, logger: logger.Named("signal-bus")}
}

func (b *SignalBus) enabled() bool {
	return b != nil && b.rdb != nil
}

// PublishTestCompleted сигналит о завершенном прогоне. Формат "key:status".
func (b *SignalBus) PublishTestCompleted(ctx context.Context, key domain.TestKey, status string) {
	if !b.enabled() {
		return
	}
	payload := fmt.Sprintf("%s:%s", key, status)
	if err := b.rdb.Publish(ctx, infra.RedisChanTestCompleted, payload).Err(); err != nil {
		b.logger.Warn("test-completed signal delivery failed",
			zap.String("channel", infra.RedisChanTestCompleted),
			zap.Error(err))
	}
}

// PublishBotEvent транслирует инжестированное бот-событие (JSON).
func (b *SignalBus) PublishBotEvent(ctx context.Context, ev domain.BotEvent) {
	if !b.enabled() {
		return
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := b.rdb.Publish(ctx, infra.RedisChanBotEvents, data).Err(); err != nil {
		b.logger.Warn("bot-event signal delivery failed",
			zap.String("channel", infra.RedisChanBotEvents),
			zap.Error(err))
	}
}
