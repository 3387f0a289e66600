// Package scheduler runs the background jobs of the server.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rpggio/fieldlog/internal/domain/reconcile"
	"github.com/rpggio/fieldlog/internal/metrics"
)

// ReconcileJobName names the aggregate reconciliation job.
const ReconcileJobName = "aggregate-reconcile"

// Reconciler checks every project aggregate against its records.
type Reconciler interface {
	CheckAll(ctx context.Context, repair bool) ([]reconcile.Report, error)
}

// Config controls the reconciliation job.
type Config struct {
	Interval time.Duration
	Repair   bool
}

// Manager owns the gocron scheduler and its jobs.
type Manager struct {
	scheduler  gocron.Scheduler
	reconciler Reconciler
	cfg        Config
	logger     *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	job    gocron.Job
}

// NewManager creates a manager and registers its jobs. Nothing runs until Start.
func NewManager(reconciler Reconciler, cfg Config, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("invalid reconcile interval %s", cfg.Interval)
	}

	s, err := gocron.NewScheduler(gocron.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		scheduler:  s,
		reconciler: reconciler,
		cfg:        cfg,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
	}

	m.job, err = s.NewJob(
		gocron.DurationJob(cfg.Interval),
		gocron.NewTask(m.runReconcile),
		gocron.WithName(ReconcileJobName),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		cancel()
		_ = s.Shutdown()
		return nil, fmt.Errorf("failed to register job %s: %w", ReconcileJobName, err)
	}
	return m, nil
}

// Start starts the scheduler.
func (m *Manager) Start() {
	m.scheduler.Start()
	m.logger.Info("scheduler started", "job", ReconcileJobName, "interval", m.cfg.Interval, "repair", m.cfg.Repair)
}

// RunNow triggers the reconciliation job outside its schedule.
func (m *Manager) RunNow() error {
	return m.job.RunNow()
}

// Stop cancels running jobs and waits for them to return.
func (m *Manager) Stop() error {
	m.cancel()
	if err := m.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("failed to shutdown scheduler: %w", err)
	}
	m.logger.Info("scheduler stopped")
	return nil
}

func (m *Manager) runReconcile() {
	start := time.Now()
	drifted, err := m.reconciler.CheckAll(m.ctx, m.cfg.Repair)
	if err != nil {
		m.logger.Error("aggregate reconcile failed", "error", err)
	}
	for _, rep := range drifted {
		for _, mr := range rep.Methods {
			if mr.Consistent {
				continue
			}
			m.logger.Warn("aggregate drift",
				"project_id", rep.ProjectID,
				"method", mr.Method,
				"recorded_points", mr.RecordedPoints,
				"actual_points", mr.ActualPoints,
				"recorded_max_depth", mr.RecordedMaxDepth,
				"actual_max_depth", mr.ActualMaxDepth,
				"repaired", rep.Repaired,
			)
		}
	}
	metrics.SetAggregateDrift(len(drifted))
	m.logger.Info("aggregate reconcile finished", "drifted", len(drifted), "duration", time.Since(start))
}
