package engine

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/contestra/ai-ranker-sub003/internal/domain"
)

// JobExecutor исполняет одно задание до полного завершения
// (включая вычитку потока и refresh сводки).
type JobExecutor interface {
	Execute(ctx context.Context, job domain.TestJob) error
}

// Combination — одна пара провайдер × режим grounding.
type Combination struct {
	Provider string `json:"provider"`
	Grounded bool   `json:"grounded"`
}

// BatchItem — исход одной комбинации для одной страны.
type BatchItem struct {
	Country     string        `json:"country"`
	Combination Combination   `json:"combination"`
	Error       string        `json:"error,omitempty"`
	Duration    time.Duration `json:"duration"`
}

// BatchReport — итог батча: по записи на каждую пару страна × комбинация,
// чтобы пользователь видел, какие именно комбинации упали.
type BatchReport struct {
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at"`
	Items      []BatchItem `json:"items"`
}

// Failed возвращает число упавших позиций.
func (r BatchReport) Failed() int {
	n := 0
	for _, it := range r.Items {
		if it.Error != "" {
			n++
		}
	}
	return n
}

// Sequencer прогоняет фиксированный упорядоченный набор комбинаций по
// странам строго последовательно: страна за страной, комбинация за
// комбинацией, каждая — до полного завершения. Параллелизма нет намеренно:
// бэкенд лимитирует вызовы внешних моделей. Сбой одной позиции не
// останавливает остальные.
type Sequencer struct {
	executor JobExecutor
	combos   []Combination
	models   map[string]string // провайдер -> модель
	limiter  *rate.Limiter
	logger   *zap.Logger
}

// NewSequencer строит порядок комбинаций из providerOrder:
// для каждого провайдера сперва ungrounded, затем grounded.
func NewSequencer(
	executor JobExecutor,
	providerOrder []string,
	models map[string]string,
	limiter *rate.Limiter,
	logger *zap.Logger,
) *Sequencer {
	combos := make([]Combination, 0, len(providerOrder)*2)
	for _, p := range providerOrder {
		combos = append(combos,
			Combination{Provider: p, Grounded: false},
			Combination{Provider: p, Grounded: true},
		)
	}
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	return &Sequencer{
		executor: executor,
		combos:   combos,
		models:   models,
		limiter:  limiter,
		logger:   logger.Named("sequencer"),
	}
}

// Combinations возвращает фиксированный порядок комбинаций (для API/отчетов).
func (s *Sequencer) Combinations() []Combination {
	out := make([]Combination, len(s.combos))
	copy(out, s.combos)
	return out
}

// RunAll обходит страны в порядке каталога (country-major, combination-minor).
// Отмена контекста прекращает батч на текущей позиции; все пройденные
// позиции остаются в отчете.
func (s *Sequencer) RunAll(ctx context.Context, countries []domain.CountrySpec) BatchReport {
	report := BatchReport{StartedAt: time.Now()}

	s.logger.Info("batch started",
		zap.Int("countries", len(countries)),
		zap.Int("combinations", len(s.combos)))

	for _, country := range countries {
		for _, combo := range s.combos {
			if err := s.limiter.Wait(ctx); err != nil {
				report.Items = append(report.Items, BatchItem{
					Country:     country.Code,
					Combination: combo,
					Error:       "batch cancelled: " + err.Error(),
				})
				report.FinishedAt = time.Now()
				return report
			}

			job := domain.TestJob{
				Provider: combo.Provider,
				Model:    s.models[combo.Provider],
				Grounded: combo.Grounded,
				Country:  country.Code,
				ALSBlock: country.ALSBlock,
				Expected: country.Expected,
			}

			start := time.Now()
			err := s.executor.Execute(ctx, job)

			item := BatchItem{
				Country:     country.Code,
				Combination: combo,
				Duration:    time.Since(start),
			}
			if err != nil {
				// Изолируем сбой: запоминаем и идем к следующей комбинации
				item.Error = err.Error()
				s.logger.Warn("batch item failed",
					zap.String("country", country.Code),
					zap.String("provider", combo.Provider),
					zap.Bool("grounded", combo.Grounded),
					zap.Error(err))
			}
			report.Items = append(report.Items, item)
		}
	}

	report.FinishedAt = time.Now()
	s.logger.Info("batch finished",
		zap.Int("items", len(report.Items)),
		zap.Int("failed", report.Failed()))
	return report
}
