package engine

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/contestra/ai-ranker-sub003/internal/domain"
)

// MessageConn — одно открытое соединение живого канала.
type MessageConn interface {
	// ReadMessage блокируется до следующего сообщения, ошибки или закрытия.
	ReadMessage() ([]byte, error)
	Close() error
}

// MonitorDialer открывает соединение живого канала для выбранного домена.
type MonitorDialer interface {
	DialMonitor(ctx context.Context, domainName string) (MessageConn, error)
}

// initialMessage — первое сообщение после открытия: полный снапшот.
type initialMessage struct {
	Type         string                `json:"type"`
	Stats        domain.AggregateStats `json:"stats"`
	RecentEvents []domain.BotEvent     `json:"recent_events"`
}

// eventMessage — конверт инкрементального сообщения.
type eventMessage struct {
	Type string `json:"type"`
}

// ChannelManager держит живой канал событий одного домена и единолично
// владеет ConnectionState. Цикл: Connecting -> Open -> (обрыв) ->
// Reconnecting -> пауза -> Connecting, без потолка попыток — канал живет,
// пока живет вид мониторинга. Смена домена означает новый экземпляр:
// Stop() гасит и соединение, и ожидающий таймер переподключения, прежде
// чем кто-то откроет следующий канал.
type ChannelManager struct {
	dialer     MonitorDialer
	reconciler *Reconciler
	signals    *SignalBus
	metrics    *Metrics
	delay      time.Duration
	domainName string
	logger     *zap.Logger

	mu     sync.Mutex
	state  domain.ConnectionState
	cancel context.CancelFunc
	done   chan struct{}
}

func NewChannelManager(
	dialer MonitorDialer,
	reconciler *Reconciler,
	signals *SignalBus,
	metrics *Metrics,
	delay time.Duration,
	domainName string,
	logger *zap.Logger,
) *ChannelManager {
	if delay <= 0 {
		delay = 3 * time.Second
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &ChannelManager{
		dialer:     dialer,
		reconciler: reconciler,
		signals:    signals,
		metrics:    metrics,
		delay:      delay,
		domainName: domainName,
		logger:     logger.Named("channel").With(zap.String("domain", domainName)),
	}
}

// Start запускает цикл канала. Повторный Start без Stop — no-op.
func (m *ChannelManager) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})

	go m.run(runCtx)
}

// Stop рвет соединение, отменяет ожидающее переподключение и дожидается
// выхода цикла. После Stop состояние — Closed, терминальное для этого экземпляра.
func (m *ChannelManager) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel = nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// State — текущее состояние канала (для индикатора "disconnected" в UI).
func (m *ChannelManager) State() domain.ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *ChannelManager) setState(s domain.ConnectionState) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
	m.metrics.ChannelState.Set(float64(s))
}

// run — "живучий" цикл подписки: подключение, вычитка, переподключение
// с фиксированной паузой. Выход — только по отмене контекста.
func (m *ChannelManager) run(ctx context.Context) {
	defer close(m.done)
	defer m.setState(domain.ConnClosed)

	m.logger.Info("live channel starting")

	for {
		m.setState(domain.ConnConnecting)
		conn, err := m.dialer.DialMonitor(ctx, m.domainName)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.logger.Warn("channel dial failed", zap.Error(err))
			if !m.waitReconnect(ctx) {
				return
			}
			continue
		}

		m.setState(domain.ConnOpen)
		m.logger.Info("live channel open")
		m.consume(ctx, conn)
		conn.Close()

		if ctx.Err() != nil {
			return
		}
		m.logger.Warn("live channel dropped, reconnecting")
		if !m.waitReconnect(ctx) {
			return
		}
	}
}

// waitReconnect переводит канал в Reconnecting и выдерживает фиксированную
// паузу. false — область видимости снесена, переподключаться больше нельзя.
func (m *ChannelManager) waitReconnect(ctx context.Context) bool {
	m.setState(domain.ConnReconnecting)
	m.metrics.ReconnectsTotal.Inc()

	timer := time.NewTimer(m.delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// consume вычитывает сообщения до ошибки чтения. Первое сообщение после
// открытия — всегда снапшот (замена состояния), все последующие —
// инкрементальные события в порядке прихода, без переупорядочивания.
func (m *ChannelManager) consume(ctx context.Context, conn MessageConn) {
	// Разблокируем ReadMessage при отмене области видимости
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-watchDone:
		}
	}()

	first := true
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		if first {
			first = false
			var init initialMessage
			if err := json.Unmarshal(data, &init); err != nil {
				m.logger.Error("malformed initial snapshot, dropping connection", zap.Error(err))
				return
			}
			recent := init.RecentEvents
			if recent == nil {
				recent = []domain.BotEvent{}
			}
			m.reconciler.ApplySnapshot(init.Stats, recent)
			continue
		}

		var env eventMessage
		if err := json.Unmarshal(data, &env); err != nil {
			m.logger.Warn("malformed channel message skipped", zap.Error(err))
			continue
		}
		if env.Type != domain.ChannelMsgNewEvent {
			continue
		}

		var ev domain.BotEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			m.logger.Warn("malformed bot event skipped", zap.Error(err))
			continue
		}

		m.reconciler.ApplyEvent(ev)
		if ev.IsBot {
			m.metrics.BotEventsTotal.WithLabelValues(ev.Provider).Inc()
		}
		m.signals.PublishBotEvent(ctx, ev)
	}
}
