package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/engclin/melwatch/internal/services"
)

// Reconciler runs one MEL reconcile pass
type Reconciler interface {
	Reconcile(ctx context.Context) (*services.ReconcileResult, error)
}

// ReconcileJob runs reconcile passes on a cron schedule and on demand.
// Every run goes through a single worker, so passes never overlap and
// triggers that arrive while a pass is running collapse into one follow-up.
type ReconcileJob struct {
	reconciler Reconciler
	schedule   string
	runOnStart bool
	timeout    time.Duration
	logger     *zap.Logger

	trigger chan struct{}

	mu      sync.Mutex
	cron    *cron.Cron
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	last    *services.ReconcileResult
	lastErr error
	lastRun time.Time
}

// ReconcileJobOption customizes the job
type ReconcileJobOption func(*ReconcileJob)

// WithRunOnStart runs a pass as soon as the job starts
func WithRunOnStart() ReconcileJobOption {
	return func(j *ReconcileJob) { j.runOnStart = true }
}

// WithPassTimeout bounds each pass
func WithPassTimeout(d time.Duration) ReconcileJobOption {
	return func(j *ReconcileJob) { j.timeout = d }
}

// NewReconcileJob creates a job for the given cron schedule. Standard five
// field expressions and descriptors such as "@every 5m" are accepted.
func NewReconcileJob(reconciler Reconciler, schedule string, logger *zap.Logger, opts ...ReconcileJobOption) (*ReconcileJob, error) {
	if reconciler == nil {
		return nil, errors.New("reconcile job: nil reconciler")
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid reconcile schedule %q: %w", schedule, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	j := &ReconcileJob{
		reconciler: reconciler,
		schedule:   schedule,
		timeout:    5 * time.Minute,
		logger:     logger,
		trigger:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j, nil
}

// Start begins scheduling. It is safe to call Start multiple times.
func (j *ReconcileJob) Start(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.cron != nil {
		return nil
	}

	loopCtx, cancel := context.WithCancel(ctx)
	c := cron.New(
		cron.WithLogger(cronLogger{j.logger}),
		cron.WithChain(cron.Recover(cronLogger{j.logger}), cron.SkipIfStillRunning(cronLogger{j.logger})),
	)
	if _, err := c.AddFunc(j.schedule, j.Trigger); err != nil {
		cancel()
		return fmt.Errorf("failed to schedule reconcile job: %w", err)
	}

	j.cron = c
	j.cancel = cancel
	j.wg.Add(1)
	go j.worker(loopCtx)
	c.Start()

	if j.runOnStart {
		j.Trigger()
	}
	j.logger.Info("reconcile job started", zap.String("schedule", j.schedule))
	return nil
}

// Stop halts scheduling and waits for a running pass to finish
func (j *ReconcileJob) Stop() {
	j.mu.Lock()
	if j.cron == nil {
		j.mu.Unlock()
		return
	}
	stopped := j.cron.Stop()
	j.cron = nil
	cancel := j.cancel
	j.cancel = nil
	j.mu.Unlock()

	<-stopped.Done()
	cancel()
	j.wg.Wait()
	j.logger.Info("reconcile job stopped")
}

// Trigger requests a pass without waiting for it. Requests made while one
// is already pending are dropped.
func (j *ReconcileJob) Trigger() {
	select {
	case j.trigger <- struct{}{}:
	default:
	}
}

// Last returns the outcome of the most recent pass
func (j *ReconcileJob) Last() (result *services.ReconcileResult, at time.Time, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.last, j.lastRun, j.lastErr
}

func (j *ReconcileJob) worker(ctx context.Context) {
	defer j.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-j.trigger:
			j.runPass(ctx)
		}
	}
}

func (j *ReconcileJob) runPass(ctx context.Context) {
	passCtx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	result, err := j.reconciler.Reconcile(passCtx)
	if err != nil {
		j.logger.Warn("scheduled reconcile failed", zap.Error(err))
	}

	j.mu.Lock()
	j.last, j.lastErr, j.lastRun = result, err, time.Now().UTC()
	j.mu.Unlock()
}

// cronLogger adapts zap to cron.Logger
type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Debugw("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}
