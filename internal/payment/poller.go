package payment

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type RefreshJob struct {
	RecordID         int64
	GatewayPaymentID string
}

type Worker struct {
	ID         int
	WorkerPool chan chan RefreshJob
	JobChannel chan RefreshJob
	Logger     *slog.Logger
}

func NewWorker(id int, workerPool chan chan RefreshJob, logger *slog.Logger) *Worker {
	return &Worker{
		ID:         id,
		WorkerPool: workerPool,
		JobChannel: make(chan RefreshJob),
		Logger:     logger,
	}
}

func (w *Worker) Start(ctx context.Context, wg *sync.WaitGroup, processFunc func(context.Context, RefreshJob)) {
	wg.Add(1)
	go func() {
		defer wg.Done()

		for {
			select {
			case w.WorkerPool <- w.JobChannel:
			case <-ctx.Done():
				w.Logger.Debug("worker shutting down", "worker_id", w.ID)
				return
			}

			select {
			case job := <-w.JobChannel:
				w.Logger.Debug("worker refreshing payment", "worker_id", w.ID, "record_id", job.RecordID)
				processFunc(ctx, job)
			case <-ctx.Done():
				w.Logger.Debug("worker shutting down", "worker_id", w.ID)
				return
			}
		}
	}()
}

// Refresher is satisfied by *Reconciler.
type Refresher interface {
	Refresh(ctx context.Context, recordID int64) (Result, error)
}

type PollerConfig struct {
	Interval   time.Duration
	StaleAfter time.Duration
	BatchSize  int
	Workers    int
	QueueSize  int
}

// Poller periodically asks the gateway about payments whose notification
// never arrived.
type Poller struct {
	store     Store
	refresher Refresher
	cfg       PollerConfig
	logger    *slog.Logger
	now       func() time.Time

	jobQueue   chan RefreshJob
	workerPool chan chan RefreshJob

	mu      sync.Mutex
	queued  map[int64]struct{}
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	once    sync.Once
	stopped bool
}

func NewPoller(store Store, refresher Refresher, cfg PollerConfig, logger *slog.Logger) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 5 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = cfg.BatchSize
	}

	return &Poller{
		store:      store,
		refresher:  refresher,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
		jobQueue:   make(chan RefreshJob, cfg.QueueSize),
		workerPool: make(chan chan RefreshJob, cfg.Workers),
		queued:     make(map[int64]struct{}),
	}
}

// Start launches the workers, the dispatcher and the sweep ticker. Calling it
// more than once has no effect.
func (p *Poller) Start(ctx context.Context) {
	p.once.Do(func() {
		p.mu.Lock()
		p.ctx, p.cancel = context.WithCancel(ctx)
		p.mu.Unlock()

		for i := 0; i < p.cfg.Workers; i++ {
			worker := NewWorker(i, p.workerPool, p.logger)
			worker.Start(p.ctx, &p.wg, p.process)
		}

		p.wg.Add(2)
		go p.dispatch()
		go p.loop()

		p.logger.Info("payment poller started",
			"workers", p.cfg.Workers,
			"interval", p.cfg.Interval,
			"stale_after", p.cfg.StaleAfter)
	})
}

func (p *Poller) loop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	p.sweepLogged()
	for {
		select {
		case <-ticker.C:
			p.sweepLogged()
		case <-p.ctx.Done():
			return
		}
	}
}

func (p *Poller) sweepLogged() {
	n, err := p.Sweep(p.ctx)
	if err != nil {
		p.logger.Error("payment sweep failed", "error", err)
		return
	}
	if n > 0 {
		p.logger.Info("queued stale payments for refresh", "count", n)
	}
}

// Sweep queues stale in-flight payments and reports how many were queued.
func (p *Poller) Sweep(ctx context.Context) (int, error) {
	records, err := p.store.ListStale(ctx, p.now().Add(-p.cfg.StaleAfter), p.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	queued := 0
	for _, rec := range records {
		job := RefreshJob{RecordID: rec.ID}
		if rec.GatewayPaymentID != nil {
			job.GatewayPaymentID = *rec.GatewayPaymentID
		}
		if p.Enqueue(job) {
			queued++
		}
	}
	return queued, nil
}

// Enqueue adds a job unless the record is already waiting or the queue is full.
func (p *Poller) Enqueue(job RefreshJob) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return false
	}
	if _, ok := p.queued[job.RecordID]; ok {
		return false
	}

	select {
	case p.jobQueue <- job:
		p.queued[job.RecordID] = struct{}{}
		return true
	default:
		p.logger.Warn("refresh queue full, skipping payment",
			"record_id", job.RecordID,
			"queue_capacity", cap(p.jobQueue))
		return false
	}
}

func (p *Poller) dispatch() {
	defer p.wg.Done()

	for {
		select {
		case job := <-p.jobQueue:
			select {
			case jobChannel := <-p.workerPool:
				select {
				case jobChannel <- job:
				case <-p.ctx.Done():
					p.logger.Info("dispatcher shutting down")
					return
				}
			case <-p.ctx.Done():
				p.logger.Info("dispatcher shutting down")
				return
			}
		case <-p.ctx.Done():
			p.logger.Info("dispatcher shutting down")
			return
		}
	}
}

func (p *Poller) process(ctx context.Context, job RefreshJob) {
	defer func() {
		p.mu.Lock()
		delete(p.queued, job.RecordID)
		p.mu.Unlock()
	}()

	res, err := p.refresher.Refresh(ctx, job.RecordID)
	if err != nil {
		p.logger.Warn("payment refresh failed",
			"record_id", job.RecordID,
			"gateway_payment_id", job.GatewayPaymentID,
			"error", err)
		return
	}

	p.logger.Debug("payment refreshed",
		"record_id", job.RecordID,
		"outcome", res.Outcome,
		"status", res.To)
}

// Shutdown stops the sweep and waits for in-flight refreshes to return.
func (p *Poller) Shutdown() {
	p.mu.Lock()
	p.stopped = true
	cancel := p.cancel
	p.mu.Unlock()

	if cancel == nil {
		return
	}

	p.logger.Info("shutting down payment poller")
	cancel()
	p.wg.Wait()
	p.logger.Info("payment poller shutdown complete")
}
