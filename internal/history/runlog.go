package history

/*
Файл runlog.go реализует конвейер персистентности истории прогонов.

Ключевые особенности архитектуры:
- Non-blocking Logging: события уходят из hot path раннера через неблокирующий
  канал, задержки БД не влияют на длительность прогона.
- Batching: накопление записей в памяти и пакетная вставка в PostgreSQL
  по таймеру или при достижении лимита (100 записей).
- Drain Pattern: при остановке сервиса канал закрывается, воркер вычитывает
  остатки и делает финальный flush — записи не теряются при перезагрузке.
- Load Shedding: при переполнении буфера запись сбрасывается с error-логом,
  раннер никогда не блокируется.
*/

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// StorageInterface определяет, куда физически сохраняется история.
type StorageInterface interface {
	// WriteBatch сохраняет пачку записей за один раз
	WriteBatch(ctx context.Context, records []RunRecord) error
}

const (
	bufferSize    = 10000
	batchSize     = 100
	flushInterval = 500 * time.Millisecond
)

type RunLog struct {
	ch     chan RunRecord
	repo   StorageInterface
	logger *zap.Logger
	wg     sync.WaitGroup
	fill   prometheus.Gauge // заполненность буфера; может быть nil

	// Защита от Record после остановки
	isClosed int32 // атомарный флаг (0 - открыт, 1 - закрыт)
}

func NewRunLog(repo StorageInterface, logger *zap.Logger, fill prometheus.Gauge) *RunLog {
	return &RunLog{
		ch:     make(chan RunRecord, bufferSize),
		repo:   repo,
		logger: logger.With(zap.String("mod", "runlog")),
		fill:   fill,
	}
}

func (l *RunLog) Start() {
	l.wg.Add(1)
	go l.worker()
}

// Stop запирает вход в канал и ждет, пока воркер все допишет.
func (l *RunLog) Stop() {
	atomic.StoreInt32(&l.isClosed, 1)

	// Даем крошечную паузу, чтобы текущие Record успели проскочить
	time.Sleep(10 * time.Millisecond)

	l.logger.Info("stopping run log: closing channel and flushing buffer...")
	close(l.ch)
	l.wg.Wait()
	l.logger.Info("run log stopped gracefully")
}

// Record ставит запись в очередь. Никогда не блокирует.
func (l *RunLog) Record(rec RunRecord) {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	if atomic.LoadInt32(&l.isClosed) == 1 {
		l.logger.Warn("run record dropped: log is stopping", zap.String("id", rec.ID))
		return
	}

	select {
	case l.ch <- rec:
		if l.fill != nil {
			l.fill.Set(float64(len(l.ch)))
		}
	default:
		// Буфер переполнен — сбрасываем нагрузку, но оставляем след в логах
		l.logger.Error("run_history_buffer_overflow",
			zap.String("trace_id", rec.TraceID),
			zap.String("country", rec.Country),
		)
	}
}

func (l *RunLog) worker() {
	defer l.wg.Done()

	batch := make([]RunRecord, 0, batchSize)
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		// Background: основной контекст на завершении уже может быть закрыт
		if err := l.repo.WriteBatch(context.Background(), batch); err != nil {
			l.logger.Error("run history flush failed", zap.Error(err))
		}
		batch = batch[:0]
	}

	for {
		select {
		case rec, ok := <-l.ch:
			if !ok {
				// Канал закрыт в Stop(): воркер вычитал остатки очереди,
				// делает финальный flush и выходит.
				flush()
				l.logger.Info("run log worker finished")
				return
			}
			batch = append(batch, rec)
			if l.fill != nil {
				l.fill.Set(float64(len(l.ch)))
			}
			if len(batch) >= batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
