package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/contestra/ai-ranker-sub003/internal/domain"
	"github.com/contestra/ai-ranker-sub003/internal/engine"
	"github.com/contestra/ai-ranker-sub003/internal/infra"
)

const noticesCap = 50

// RunRequest — параметры одиночного запуска из UI.
type RunRequest struct {
	Country  string `json:"country"`
	Provider string `json:"provider"`
	Model    string `json:"model,omitempty"` // пусто — модель провайдера из конфига
	Grounded bool   `json:"grounded"`
}

// MonitorService — композиционный корень ядра: владеет реестром, раннером,
// секвенсором, реконсайлером и менеджером живого канала. Служит раннеру
// Notifier-ом и SummaryRefresher-ом, поэтому собирает его сам.
type MonitorService struct {
	cfg       *infra.Config
	appCtx    context.Context
	logger    *zap.Logger
	registry  *engine.RunRegistry
	runner    *engine.Runner
	sequencer *engine.Sequencer
	reconcile *engine.Reconciler
	snapshots engine.SnapshotProvider
	dialer    engine.MonitorDialer
	signals   *engine.SignalBus
	metrics   *engine.Metrics
	catalog   map[string]domain.CountrySpec

	mu           sync.Mutex
	channel      *engine.ChannelManager
	selected     string
	batchRunning bool
	lastBatch    *engine.BatchReport
	notices      []engine.Notice
}

func NewMonitorService(
	appCtx context.Context,
	cfg *infra.Config,
	backend engine.TestBackend,
	snapshots engine.SnapshotProvider,
	dialer engine.MonitorDialer,
	recorder engine.RunRecorder,
	signals *engine.SignalBus,
	metrics *engine.Metrics,
	logger *zap.Logger,
) *MonitorService {
	s := &MonitorService{
		cfg:       cfg,
		appCtx:    appCtx,
		logger:    logger.Named("monitor-service"),
		registry:  engine.NewRunRegistry(logger),
		reconcile: engine.NewReconciler(cfg.Monitor.RecentEventsCap),
		snapshots: snapshots,
		dialer:    dialer,
		signals:   signals,
		metrics:   metrics,
		catalog:   make(map[string]domain.CountrySpec, len(cfg.Countries)),
	}
	for _, c := range cfg.Countries {
		s.catalog[c.Code] = c
	}

	s.runner = engine.NewRunner(
		s.registry, backend, s, s, recorder, signals, metrics,
		cfg.Backend.TestTimeout, logger,
	)
	s.sequencer = engine.NewSequencer(
		s.runner,
		cfg.Engine.ProviderOrder,
		cfg.Engine.Models,
		rate.NewLimiter(rate.Limit(cfg.Engine.BatchRate), cfg.Engine.BatchBurst),
		logger,
	)
	return s
}

// Run запускает фоновые обязанности сервиса: сторож устаревания снапшота
// (monitor.snapshot_ttl). Возвращается при отмене контекста.
func (s *MonitorService) Run(ctx context.Context) {
	ttl := s.cfg.Monitor.SnapshotTTL
	if ttl <= 0 {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(ttl / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if age := s.reconcile.SnapshotAge(); age >= 0 && age > ttl {
				if err := s.RefreshSummary(ctx); err != nil {
					s.logger.Warn("stale snapshot refresh failed", zap.Error(err))
				}
			}
		}
	}
}

// Close сносит живой канал. Вызывается при graceful shutdown.
func (s *MonitorService) Close() {
	s.mu.Lock()
	ch := s.channel
	s.channel = nil
	s.mu.Unlock()
	if ch != nil {
		ch.Stop()
	}
}

// --- Запуск тестов ---

// RunSingle ставит одиночный прогон. false — такой ключ уже работает
// (предварительная проверка; решающая — внутри допуска раннера).
func (s *MonitorService) RunSingle(req RunRequest) (bool, error) {
	job, err := s.buildJob(req)
	if err != nil {
		return false, err
	}
	if s.registry.IsRunning(job.Key()) {
		return false, nil
	}

	go func() {
		// Прогон живет дольше HTTP-запроса, породившего его
		if err := s.runner.Execute(s.appCtx, job); err != nil {
			s.logger.Warn("single run failed", zap.Stringer("key", job.Key()), zap.Error(err))
		}
	}()
	return true, nil
}

func (s *MonitorService) buildJob(req RunRequest) (domain.TestJob, error) {
	spec, ok := s.catalog[req.Country]
	if !ok {
		return domain.TestJob{}, fmt.Errorf("unknown country %q", req.Country)
	}
	model := req.Model
	if model == "" {
		model = s.cfg.Engine.Models[req.Provider]
	}
	if model == "" {
		return domain.TestJob{}, fmt.Errorf("unknown provider %q", req.Provider)
	}
	return domain.TestJob{
		Provider: req.Provider,
		Model:    model,
		Grounded: req.Grounded,
		Country:  spec.Code,
		ALSBlock: spec.ALSBlock,
		Expected: spec.Expected,
	}, nil
}

// RunAll запускает батч по всем странам каталога (или по переданному
// подмножеству) в фоне. Конкурентные батчи запрещены.
func (s *MonitorService) RunAll(countryCodes []string) error {
	s.mu.Lock()
	if s.batchRunning {
		s.mu.Unlock()
		return fmt.Errorf("batch already running")
	}
	s.batchRunning = true
	s.mu.Unlock()

	countries := s.resolveCountries(countryCodes)
	if len(countries) == 0 {
		s.mu.Lock()
		s.batchRunning = false
		s.mu.Unlock()
		return fmt.Errorf("no countries to run")
	}

	go func() {
		report := s.sequencer.RunAll(s.appCtx, countries)
		s.mu.Lock()
		s.lastBatch = &report
		s.batchRunning = false
		s.mu.Unlock()
	}()
	return nil
}

func (s *MonitorService) resolveCountries(codes []string) []domain.CountrySpec {
	if len(codes) == 0 {
		return s.cfg.Countries
	}
	out := make([]domain.CountrySpec, 0, len(codes))
	for _, code := range codes {
		if spec, ok := s.catalog[code]; ok {
			out = append(out, spec)
		} else {
			s.logger.Warn("unknown country skipped in batch", zap.String("country", code))
		}
	}
	return out
}

// LastBatch возвращает отчет последнего батча и флаг "батч еще идет".
func (s *MonitorService) LastBatch() (*engine.BatchReport, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastBatch, s.batchRunning
}

// Status — живые статусы всех текущих прогонов.
func (s *MonitorService) Status() []domain.TestExecution {
	return s.registry.Executions()
}

// --- Сводка и живой канал ---

// RefreshSummary — шаг 6 раннера и ручной refresh из UI: авторитетный
// снапшот заменяет клиентские инкременты.
func (s *MonitorService) RefreshSummary(ctx context.Context) error {
	s.mu.Lock()
	selected := s.selected
	s.mu.Unlock()

	if selected == "" {
		s.logger.Debug("summary refresh skipped: no domain selected")
		return nil
	}

	stats, err := s.snapshots.FetchStats(ctx, selected)
	if err != nil {
		return fmt.Errorf("fetch stats for %s: %w", selected, err)
	}
	s.reconcile.ApplySnapshot(*stats, nil)
	return nil
}

// Stats — текущие счетчики плюс состояние канала для индикатора в UI.
func (s *MonitorService) Stats() (domain.AggregateStats, domain.ConnectionState) {
	s.mu.Lock()
	ch := s.channel
	s.mu.Unlock()

	state := domain.ConnClosed
	if ch != nil {
		state = ch.State()
	}
	return s.reconcile.Stats(), state
}

// RecentEvents — лента последних бот-событий.
func (s *MonitorService) RecentEvents() []domain.BotEvent {
	return s.reconcile.RecentEvents()
}

// Domains — список доменов бренда для выбора области канала.
func (s *MonitorService) Domains(ctx context.Context) ([]domain.Domain, error) {
	return s.snapshots.ListDomains(ctx, s.cfg.Backend.BrandID)
}

// SelectDomain переключает область живого канала. Старое соединение и его
// таймер переподключения гасятся до открытия нового: две живые подписки
// не должны гоняться за одним локальным состоянием.
func (s *MonitorService) SelectDomain(domainName string) {
	s.mu.Lock()
	old := s.channel
	s.selected = domainName
	s.channel = engine.NewChannelManager(
		s.dialer, s.reconcile, s.signals, s.metrics,
		s.cfg.Monitor.ReconnectDelay, domainName, s.logger,
	)
	ch := s.channel
	s.mu.Unlock()

	if old != nil {
		old.Stop()
	}
	ch.Start(s.appCtx)
	s.logger.Info("monitor domain selected", zap.String("domain", domainName))
}

// SelectedDomain — текущая область канала ("" — не выбрана).
func (s *MonitorService) SelectedDomain() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// --- Уведомления ---

// Notify реализует engine.Notifier: лента для UI плюс лог.
func (s *MonitorService) Notify(n engine.Notice) {
	s.mu.Lock()
	if len(s.notices) == noticesCap {
		copy(s.notices, s.notices[1:])
		s.notices[noticesCap-1] = n
	} else {
		s.notices = append(s.notices, n)
	}
	s.mu.Unlock()

	s.logger.Info("user notice",
		zap.String("level", n.Level),
		zap.Stringer("key", n.Key),
		zap.String("message", n.Message))
}

// Notices — накопленные уведомления (от старых к новым).
func (s *MonitorService) Notices() []engine.Notice {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]engine.Notice, len(s.notices))
	copy(out, s.notices)
	return out
}
