package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Latency: полная длительность прогона, включая вычитку потока и refresh
	RunDuration *prometheus.HistogramVec

	// Traffic: запущенные прогоны
	RunsTotal *prometheus.CounterVec

	// Fallback: переключения на синхронный эндпоинт после 404
	FallbacksTotal prometheus.Counter

	// Поток: события по типам (progress, complete, malformed, unknown)
	StreamEvents *prometheus.CounterVec

	// Живой канал: текущее состояние (0=closed..3=reconnecting) и переподключения
	ChannelState    prometheus.Gauge
	ReconnectsTotal prometheus.Counter

	// Инжест: бот-события, свернутые в агрегаты
	BotEventsTotal *prometheus.CounterVec

	// История: заполненность буфера записи (backpressure)
	HistoryBufferFill prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Null Object Pattern — без реестра метрики живут в локальном, никуда не подключенном
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		RunDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ranker_run_duration_seconds",
			Help:    "Histogram of locale test run latencies.",
			Buckets: []float64{.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"provider", "grounded", "status"}),

		RunsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "ranker_runs_total",
			Help: "Total number of admitted test runs.",
		}, []string{"provider", "grounded"}),

		FallbacksTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "ranker_run_fallbacks_total",
			Help: "Runs that fell back to the synchronous endpoint after a 404.",
		}),

		StreamEvents: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "ranker_stream_events_total",
			Help: "Stream lines by decoded event type.",
		}, []string{"type"}), // типы: progress, complete, malformed, unknown

		ChannelState: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "ranker_channel_state",
			Help: "Live channel state (0=closed, 1=connecting, 2=open, 3=reconnecting).",
		}),

		ReconnectsTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "ranker_channel_reconnects_total",
			Help: "Reconnect attempts of the live event channel.",
		}),

		BotEventsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "ranker_bot_events_total",
			Help: "Bot events folded into aggregate stats.",
		}, []string{"provider"}),

		HistoryBufferFill: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "ranker_history_buffer_utilization",
			Help: "Current number of records in the run history buffer.",
		}),
	}
}
