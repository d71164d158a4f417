package recorder

/*
Файл recorder.go реализует приемник результатов нагрузочного прогона.

Ключевые особенности:
- Single Consumer: воркеры только отправляют ProbeResult в канал, весь набор
  результатов принадлежит одной горутине-сборщику. Общего изменяемого среза нет.
- No Lost Writes: отправка блокирующая, без Load Shedding. Под нагрузкой
  лучше притормозить воркер, чем потерять результат и исказить статистику.
- Batching: если подключено хранилище (PostgreSQL), результаты уходят пачками
  по таймеру или при достижении лимита. Ошибка хранилища не роняет прогон:
  набор в памяти остается источником истины для агрегатора.
- Drain Pattern: Close закрывает канал, сборщик вычитывает остатки,
  делает финальный flush и только потом Close возвращает набор.
*/

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xela07ax/mlserve-probe/internal/domain"
)

// Store определяет, куда физически сохраняются результаты проб
type Store interface {
	// WriteBatch сохраняет пачку результатов одного прогона за один раз
	WriteBatch(ctx context.Context, runID string, results []domain.ProbeResult) error
}

type Recorder struct {
	runID string
	ch    chan domain.ProbeResult
	store Store // nil — только память

	logger        *zap.Logger
	batchSize     int
	flushInterval time.Duration

	results []domain.ProbeResult // пишет только collector
	wg      sync.WaitGroup

	mu     sync.RWMutex // защищает closed и закрытие канала от гонки с Record
	closed bool
}

type Option func(*Recorder)

func WithBatchSize(n int) Option {
	return func(r *Recorder) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

func WithFlushInterval(d time.Duration) Option {
	return func(r *Recorder) {
		if d > 0 {
			r.flushInterval = d
		}
	}
}

func WithBufferSize(n int) Option {
	return func(r *Recorder) {
		if n > 0 {
			r.ch = make(chan domain.ProbeResult, n)
		}
	}
}

func New(runID string, store Store, logger *zap.Logger, opts ...Option) *Recorder {
	r := &Recorder{
		runID:         runID,
		ch:            make(chan domain.ProbeResult, 10000),
		store:         store,
		logger:        logger.With(zap.String("mod", "recorder"), zap.String("run_id", runID)),
		batchSize:     100,
		flushInterval: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Recorder) Start() {
	r.wg.Add(1)
	go r.collect()
}

// Record передает результат сборщику. Безопасен для вызова из любого числа горутин.
func (r *Recorder) Record(res domain.ProbeResult) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		r.logger.Warn("probe result dropped: recorder is closed", zap.String("request_id", res.RequestID))
		return
	}
	r.ch <- res
}

// Close «запирает» вход, ждет финальный flush и отдает весь набор результатов.
func (r *Recorder) Close() []domain.ProbeResult {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.ch)
	}
	r.mu.Unlock()

	r.wg.Wait()
	return r.results
}

func (r *Recorder) collect() {
	defer r.wg.Done()

	var batch []domain.ProbeResult
	if r.store != nil {
		batch = make([]domain.ProbeResult, 0, r.batchSize)
	}
	ticker := time.NewTicker(r.flushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		// Background: контекст прогона к этому моменту может быть уже отменен
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := r.store.WriteBatch(ctx, r.runID, batch); err != nil {
			r.logger.Error("probe results flush failed", zap.Int("batch", len(batch)), zap.Error(err))
		}
		batch = batch[:0]
	}

	for {
		select {
		case res, ok := <-r.ch:
			if !ok {
				flush() // Финальный сброс
				r.logger.Debug("recorder drained", zap.Int("results", len(r.results)))
				return
			}
			r.results = append(r.results, res)
			if r.store == nil {
				continue
			}
			batch = append(batch, res)
			if len(batch) >= r.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
