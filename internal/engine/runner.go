package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/contestra/ai-ranker-sub003/internal/domain"
	"github.com/contestra/ai-ranker-sub003/internal/history"
)

// TestBackend — то, что раннеру нужно от адаптера бэкенда.
// RunLocaleTest возвращает сырой ответ: статус и тело разбирает сам раннер,
// потому что от статуса зависит ветка (поток / fallback / ошибка).
type TestBackend interface {
	RunLocaleTest(ctx context.Context, job domain.TestJob) (*http.Response, error)
	RunLocaleTestSync(ctx context.Context, job domain.TestJob) (*domain.TestResult, error)
}

// SummaryRefresher перечитывает авторитетную сводку после прогона.
// Вердикты проб считаются на стороне бэкенда, поток сообщает только прогресс —
// доверять одному потоку нельзя.
type SummaryRefresher interface {
	RefreshSummary(ctx context.Context) error
}

// RunRecorder принимает завершенные прогоны для истории. Может быть nil.
type RunRecorder interface {
	Record(rec history.RunRecord)
}

// Статусы завершения прогона (история, метрики, fan-out).
const (
	RunStatusSuccess  = "success"
	RunStatusFallback = "fallback"
	RunStatusFailed   = "failed"
	RunStatusTimeout  = "timeout"
)

// Runner исполняет одно тестовое задание целиком: допуск, потоковый запрос,
// fallback на синхронный эндпоинт при 404, обновление сводки и гарантированное
// освобождение ключа на всех путях выхода, включая таймаут и ошибки разбора.
//
// Комбинация (провайдер × grounding) — параметр задания, не ветка кода.
type Runner struct {
	registry  *RunRegistry
	backend   TestBackend
	refresher SummaryRefresher // может быть nil (одноразовый батч без сводки)
	notifier  Notifier
	recorder  RunRecorder // может быть nil (история отключена)
	signals   *SignalBus
	metrics   *Metrics
	timeout   time.Duration
	logger    *zap.Logger
}

func NewRunner(
	registry *RunRegistry,
	backend TestBackend,
	refresher SummaryRefresher,
	notifier Notifier,
	recorder RunRecorder,
	signals *SignalBus,
	metrics *Metrics,
	timeout time.Duration,
	logger *zap.Logger,
) *Runner {
	if notifier == nil {
		notifier = NewLogNotifier(logger)
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Runner{
		registry:  registry,
		backend:   backend,
		refresher: refresher,
		notifier:  notifier,
		recorder:  recorder,
		signals:   signals,
		metrics:   metrics,
		timeout:   timeout,
		logger:    logger.Named("runner"),
	}
}

// Execute выполняет задание end-to-end. Повторный запуск по занятому ключу —
// тихий no-op (nil). Любой другой исход проходит через единый deferred-блок:
// освобождение ключа, метрики, запись истории, сигнал завершения.
func (r *Runner) Execute(ctx context.Context, job domain.TestJob) error {
	key := job.Key()
	if !r.registry.TryAdmit(key) {
		return nil
	}

	traceID := uuid.New().String()
	ctx = WithTraceID(ctx, traceID)

	start := time.Now()
	status := RunStatusFailed
	var runErr error
	var verdict map[string]interface{}

	defer func() {
		r.registry.Release(key)

		grounded := strconv.FormatBool(job.Grounded)
		r.metrics.RunsTotal.WithLabelValues(job.Provider, grounded).Inc()
		r.metrics.RunDuration.WithLabelValues(job.Provider, grounded, status).
			Observe(time.Since(start).Seconds())

		if r.recorder != nil {
			rec := history.RunRecord{
				ID:         uuid.New().String(),
				TraceID:    traceID,
				Country:    job.Country,
				Provider:   job.Provider,
				Model:      job.Model,
				Grounded:   job.Grounded,
				Status:     status,
				Result:     verdict,
				DurationMs: time.Since(start).Milliseconds(),
				Timestamp:  start,
			}
			if runErr != nil {
				rec.Error = runErr.Error()
			}
			r.recorder.Record(rec)
		}

		r.signals.PublishTestCompleted(context.Background(), key, status)
	}()

	// Жесткий таймаут накрывает и запрос, и вычитку потока, и refresh.
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	resp, err := r.backend.RunLocaleTest(ctx, job)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			status = RunStatusTimeout
			r.notify(NoticeError, key, fmt.Sprintf("test timed out after %s, retry or switch provider", r.timeout))
		} else {
			r.notify(NoticeError, key, "test request failed: "+err.Error())
		}
		runErr = err
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		// Потоковый эндпоинт не поддержан этим развертыванием — ровно один
		// переход на синхронный вариант с теми же логическими параметрами.
		r.metrics.FallbacksTotal.Inc()
		result, fbErr := r.backend.RunLocaleTestSync(ctx, job)
		if fbErr != nil {
			r.notify(NoticeError, key, "fallback test failed: "+fbErr.Error())
			runErr = fbErr
			return fbErr
		}
		if result.Error == domain.ErrEmptyResponse {
			r.notify(NoticeWarn, key, "model returned empty output, please retry")
		}
		verdict = result.JSONObj
		status = RunStatusFallback
		return r.finish(ctx, key)

	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		runErr = fmt.Errorf("backend returned %d: %s", resp.StatusCode, string(body))
		r.notify(NoticeError, key, runErr.Error())
		return runErr
	}

	if err := r.consumeStream(ctx, key, resp.Body); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			status = RunStatusTimeout
			r.notify(NoticeError, key, fmt.Sprintf("stream timed out after %s", r.timeout))
		} else {
			r.notify(NoticeError, key, "stream aborted: "+err.Error())
		}
		runErr = err
		return err
	}

	status = RunStatusSuccess
	return r.finish(ctx, key)
}

// consumeStream вычитывает тело как поток line-delimited JSON событий.
// Битая строка логируется и пропускается — поток она не прерывает;
// прерывают только ошибки чтения (сеть, таймаут).
func (r *Runner) consumeStream(ctx context.Context, key domain.TestKey, body io.Reader) error {
	var dec LineDecoder
	buf := make([]byte, 4096)

	for {
		n, err := body.Read(buf)
		if n > 0 {
			for _, line := range dec.Push(buf[:n]) {
				r.handleLine(key, line)
			}
		}
		if err == io.EOF {
			if rest := dec.Flush(); rest != nil {
				r.handleLine(key, rest)
			}
			return nil
		}
		if err != nil {
			// Read возвращает обертку над ctx-ошибкой; сверяем с контекстом
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
	}
}

func (r *Runner) handleLine(key domain.TestKey, line []byte) {
	var ev domain.StreamEvent
	if err := json.Unmarshal(line, &ev); err != nil {
		r.metrics.StreamEvents.WithLabelValues("malformed").Inc()
		r.logger.Warn("malformed stream line skipped",
			zap.Stringer("key", key),
			zap.ByteString("line", line),
			zap.Error(err))
		return
	}

	switch ev.Type {
	case domain.EventTypeProgress:
		r.metrics.StreamEvents.WithLabelValues("progress").Inc()
		r.registry.SetProgress(key, ev.Current, ev.Total, ev.Probe)

	case domain.EventTypeComplete:
		r.metrics.StreamEvents.WithLabelValues("complete").Inc()
		if ev.Error == domain.ErrEmptyResponse {
			// Мягкий отказ: уведомляем, но прогон продолжает путь к refresh
			r.notify(NoticeWarn, key, "model returned empty output, please retry")
		}

	default:
		// Конверт с вердиктом или неизвестный тип — непрозрачные данные, не ошибка
		r.metrics.StreamEvents.WithLabelValues("unknown").Inc()
		r.logger.Debug("unrecognized stream line ignored", zap.Stringer("key", key))
	}
}

// finish — шаг 6 протокола: перечитать авторитетную сводку.
// Сбой сводки не отменяет успех прогона, но виден пользователю.
func (r *Runner) finish(ctx context.Context, key domain.TestKey) error {
	if r.refresher == nil {
		r.logger.Debug("summary refresh skipped: no refresher configured")
		return nil
	}
	if err := r.refresher.RefreshSummary(ctx); err != nil {
		r.notify(NoticeWarn, key, "summary refresh failed: "+err.Error())
		r.logger.Warn("summary refresh failed", zap.Stringer("key", key), zap.Error(err))
	}
	return nil
}

func (r *Runner) notify(level string, key domain.TestKey, msg string) {
	r.notifier.Notify(Notice{Level: level, Key: key, Message: msg, Time: time.Now()})
}
