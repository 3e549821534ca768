package infra

// RedisNamespace — базовый префикс для изоляции данных проекта в Redis.
const RedisNamespace = "ranker"

// Каналы Pub/Sub (события для соседних инстансов дашборда)
const (
	// RedisChanTestCompleted — трансляция завершенных тестовых прогонов.
	// Формат: "country/model/mode:status" (см. domain.TestKey.String).
	RedisChanTestCompleted = RedisNamespace + ":tests:completed"

	// RedisChanBotEvents — трансляция инжестированных бот-событий (JSON BotEvent).
	RedisChanBotEvents = RedisNamespace + ":monitor:bot-events"
)
