package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xela07ax/mlserve-probe/internal/domain"
	"github.com/xela07ax/mlserve-probe/internal/recorder"
)

// Prober выполняет одну пробу. Отказы возвращаются как данные, не как ошибка.
type Prober interface {
	Probe(ctx context.Context, method, url string, payload []byte) domain.ProbeResult
}

// Run — один завершенный прогон нагрузки.
type Run struct {
	ID         string
	Config     domain.LoadTestConfig
	StartedAt  time.Time
	FinishedAt time.Time
	Results    []domain.ProbeResult
}

// Pool — пул воркеров с ограничением частоты.
type Pool struct {
	prober  Prober
	store   recorder.Store
	metrics *Metrics
	logger  *zap.Logger
	recOpts []recorder.Option
}

type PoolOption func(*Pool)

// WithStore дублирует результаты в долговременное хранилище.
func WithStore(s recorder.Store) PoolOption {
	return func(p *Pool) { p.store = s }
}

func WithMetrics(m *Metrics) PoolOption {
	return func(p *Pool) { p.metrics = m }
}

func WithRecorderOptions(opts ...recorder.Option) PoolOption {
	return func(p *Pool) { p.recOpts = append(p.recOpts, opts...) }
}

func NewPool(prober Prober, logger *zap.Logger, opts ...PoolOption) *Pool {
	p := &Pool{
		prober: prober,
		logger: logger.With(zap.String("mod", "pool")),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.metrics == nil {
		p.metrics = NewMetrics(nil)
	}
	return p
}

// Run запускает cfg.Concurrency воркеров до истечения cfg.Duration и возвращает
// полный набор результатов. Возврат только после выхода всех воркеров.
func (p *Pool) Run(ctx context.Context, cfg domain.LoadTestConfig) (*Run, error) {
	// 1. Конфиг проверяем до любой сетевой активности
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	pacer, err := NewPacer(cfg)
	if err != nil {
		return nil, err
	}

	run := &Run{ID: uuid.NewString(), Config: cfg, StartedAt: time.Now()}
	logger := p.logger.With(zap.String("run_id", run.ID))

	rec := recorder.New(run.ID, p.store, logger, p.recOpts...)
	rec.Start()

	// 2. Дедлайн ограничивает только паузы и старт новых итераций.
	// Проба живет на родительском контексте: начатый запрос доводится до конца и записывается.
	deadlineCtx, cancel := context.WithDeadline(ctx, run.StartedAt.Add(cfg.Duration))
	defer cancel()

	p.metrics.TargetRPS.Set(cfg.TargetRPS)
	logger.Info("load run started",
		zap.String("target", cfg.TargetURL),
		zap.Float64("target_rps", cfg.TargetRPS),
		zap.Duration("duration", cfg.Duration),
		zap.Int("concurrency", cfg.Concurrency),
		zap.String("pacing", string(cfg.Pacing)),
	)

	// 3. Воркеры
	var wg sync.WaitGroup
	for i := range cfg.Concurrency {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			p.work(ctx, deadlineCtx, workerID, cfg, pacer, rec)
		}(i)
	}

	// 4. Жесткий барьер: ждем всех, потом сливаем рекордер
	wg.Wait()
	run.Results = rec.Close()
	run.FinishedAt = time.Now()

	logger.Info("load run finished",
		zap.Int("results", len(run.Results)),
		zap.Duration("wall", run.FinishedAt.Sub(run.StartedAt)),
	)
	return run, nil
}

func (p *Pool) work(ctx, deadlineCtx context.Context, workerID int, cfg domain.LoadTestConfig, pacer Pacer, rec *recorder.Recorder) {
	method := cfg.RequestMethod()
	for {
		// Дедлайн прошел или прогон прерван сигналом — новую итерацию не начинаем
		if deadlineCtx.Err() != nil {
			return
		}

		p.metrics.InFlight.Inc()
		res := p.prober.Probe(ctx, method, cfg.TargetURL, cfg.Payload)
		p.metrics.InFlight.Dec()

		res.WorkerID = workerID
		p.metrics.Observe(res)
		rec.Record(res)

		if err := pacer.Pause(deadlineCtx); err != nil {
			return
		}
	}
}
