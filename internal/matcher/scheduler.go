package matcher

import (
	"context"
	"time"

	"github.com/paykg/deposit-gateway/internal/model"
	"github.com/paykg/deposit-gateway/pkg/logger"
	"github.com/paykg/deposit-gateway/pkg/prom"
	"github.com/paykg/deposit-gateway/pkg/worker"
)

type rescanSource interface {
	FindPendingForRescan(ctx context.Context, maxAge time.Duration, limit int) ([]*model.Request, error)
}

type SchedulerConfig struct {
	Interval  time.Duration
	MaxAge    time.Duration
	BatchSize int
	Workers   int
}

// Scheduler is the safety net behind the event-driven paths: every Interval
// it sweeps pending deposit requests and rechecks them, so a missed inline
// settle or a payment that arrived before its request still converges.
type Scheduler struct {
	matcher *Matcher
	source  rescanSource
	cfg     SchedulerConfig
	pool    *worker.WorkerManager
	cancel  context.CancelFunc
}

func NewScheduler(m *Matcher, source rescanSource, cfg SchedulerConfig) *Scheduler {
	if cfg.Interval == 0 {
		cfg.Interval = 2 * time.Second
	}
	if cfg.MaxAge == 0 {
		cfg.MaxAge = 10 * time.Minute
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 100
	}
	if cfg.Workers == 0 {
		cfg.Workers = 4
	}
	return &Scheduler{
		matcher: m,
		source:  source,
		cfg:     cfg,
		pool:    worker.NewWorkerManager(cfg.BatchSize, cfg.Workers, nil),
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.pool.SetWorker(func(workerIndex int, job interface{}) {
		requestID, ok := job.(int64)
		if !ok {
			return
		}
		if err := s.matcher.RecheckRequest(ctx, requestID); err != nil {
			logger.Warn("rescan: recheck failed", "request_id", requestID, "error", err)
		}
	})
	go func() {
		if err := s.pool.Start(); err != nil {
			logger.Info("rescan: worker pool stopped", "reason", err)
		}
	}()

	go s.loop(ctx)
	logger.Info("rescan: scheduler started",
		"interval", s.cfg.Interval, "workers", s.cfg.Workers)
}

func (s *Scheduler) loop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Scheduler) sweep(ctx context.Context) {
	requests, err := s.source.FindPendingForRescan(ctx, s.cfg.MaxAge, s.cfg.BatchSize)
	if err != nil {
		logger.Error("rescan: sweep query failed", "error", err)
		prom.IncCounterVec(prom.SystemSettlement, prom.MetricRescanRequestsSeen, "error")
		return
	}
	for _, r := range requests {
		s.pool.Enqueue(r.ID)
	}
	if len(requests) > 0 {
		prom.AddCounterVec(prom.SystemSettlement, prom.MetricRescanRequestsSeen, float64(len(requests)), "enqueued")
	}
}

func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.pool.Exit()
}
