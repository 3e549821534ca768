package infra

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/contestra/ai-ranker-sub003/internal/domain"
)

// Config — корневая структура конфигурации всего сервиса.
type Config struct {
	Server    ServerConfig         `mapstructure:"server"`
	Backend   BackendConfig        `mapstructure:"backend"`
	Monitor   MonitorConfig        `mapstructure:"monitor"`
	Engine    EngineConfig         `mapstructure:"engine"`
	Database  DatabaseConfig       `mapstructure:"database"`
	Redis     RedisConfig          `mapstructure:"redis"`
	Auth      AuthConfig           `mapstructure:"auth"`
	Logger    LoggerConfig         `mapstructure:"logger"`
	Countries []domain.CountrySpec `mapstructure:"countries"`
}

// ServerConfig описывает настройки локального HTTP API (консоль дашборда).
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	MetricsPort  int           `mapstructure:"metrics_port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// BackendConfig описывает подключение к аналитическому бэкенду (черный ящик).
type BackendConfig struct {
	BaseURL string `mapstructure:"base_url"`
	// APIToken — bearer-токен для запросов к бэкенду. Если это JWT,
	// адаптер заранее предупредит о скором истечении.
	APIToken string `mapstructure:"api_token"`
	BrandID  string `mapstructure:"brand_id"`
	// TestTimeout — жесткий таймаут одного тестового прогона (включая вычитку потока).
	TestTimeout time.Duration `mapstructure:"test_timeout"`
}

// MonitorConfig — параметры живого канала событий.
type MonitorConfig struct {
	// Domain — домен, выбираемый при старте. Пусто — канал не открывается
	// до первого явного выбора через API.
	Domain string `mapstructure:"domain"`
	// ReconnectDelay — фиксированная пауза между попытками переподключения.
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay"`
	// RecentEventsCap — емкость буфера последних событий.
	RecentEventsCap int `mapstructure:"recent_events_cap"`
	// SnapshotTTL — окно устаревания клиентских инкрементов: счетчики старше
	// окна считаются предварительными до следующего авторитетного снапшота.
	// 0 — авторитетен только явный refresh.
	SnapshotTTL time.Duration `mapstructure:"snapshot_ttl"`
}

// EngineConfig — настройки исполнения тестов.
type EngineConfig struct {
	// ProviderOrder задает фиксированный порядок комбинаций батча.
	ProviderOrder []string `mapstructure:"provider_order"`
	// Models — модель по умолчанию для каждого провайдера.
	Models map[string]string `mapstructure:"models"`
	// BatchRate/BatchBurst — темп батча (заданий в секунду к внешним моделям).
	BatchRate  float64 `mapstructure:"batch_rate"`
	BatchBurst int     `mapstructure:"batch_burst"`

	// Настройки Circuit Breaker и лимитера для снапшотных чтений бэкенда.
	CBMaxRequests uint32        `mapstructure:"cb_max_requests"`
	CBInterval    time.Duration `mapstructure:"cb_interval"`
	CBTimeout     time.Duration `mapstructure:"cb_timeout"`
	SnapshotRate  float64       `mapstructure:"snapshot_rate"`
	SnapshotBurst int           `mapstructure:"snapshot_burst"`
}

// DatabaseConfig описывает подключение к PostgreSQL (история прогонов).
// Пустой URL отключает персистентность истории.
type DatabaseConfig struct {
	URL      string `mapstructure:"url"`
	MaxConns int    `mapstructure:"max_conns"`
	MinConns int    `mapstructure:"min_conns"`
}

// RedisConfig описывает подключение к Redis (fan-out сигналов).
// Пустой Addr отключает шину.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig — защита локального API. Пустой токен — API открыт (dev-режим).
type AuthConfig struct {
	APIToken string `mapstructure:"api_token"`
}

// LoggerConfig настраивает поведение zap логгера.
type LoggerConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
}

// LoadConfig инициализирует конфигурацию, объединяя значения из файла и ENV.
func LoadConfig() (*Config, error) {
	v := viper.New()

	// 1. Настройка поиска файла
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")

	// 2. Переменные окружения: BACKEND_BASE_URL перекроет backend.base_url
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 3. Дефолты
	setDefaults(v)

	// 4. Чтение файла. Если файла нет — работаем на ENV и дефолтах.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.metrics_port", 9090)
	v.SetDefault("server.read_timeout", 5*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)

	// Пустые дефолты регистрируют ключи: без этого AutomaticEnv
	// не доносит ENV-значения до Unmarshal
	v.SetDefault("backend.base_url", "")
	v.SetDefault("backend.api_token", "")
	v.SetDefault("backend.brand_id", "")
	v.SetDefault("backend.test_timeout", 120*time.Second)

	v.SetDefault("monitor.domain", "")
	v.SetDefault("database.url", "")
	v.SetDefault("redis.addr", "")
	v.SetDefault("auth.api_token", "")

	v.SetDefault("monitor.reconnect_delay", 3*time.Second)
	v.SetDefault("monitor.recent_events_cap", 100)
	v.SetDefault("monitor.snapshot_ttl", time.Duration(0))

	v.SetDefault("engine.provider_order", []string{"openai", "vertex"})
	v.SetDefault("engine.models", map[string]string{
		"openai": "gpt-5",
		"vertex": "gemini-2.5-pro",
	})
	// Батч щадит лимиты внешних моделей: не чаще одного задания в 5 секунд
	v.SetDefault("engine.batch_rate", 0.2)
	v.SetDefault("engine.batch_burst", 1)

	v.SetDefault("engine.cb_max_requests", 3)
	v.SetDefault("engine.cb_interval", 5*time.Second)
	v.SetDefault("engine.cb_timeout", 30*time.Second)
	v.SetDefault("engine.snapshot_rate", 5.0)
	v.SetDefault("engine.snapshot_burst", 5)

	v.SetDefault("database.max_conns", 15)
	v.SetDefault("database.min_conns", 5)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
}
