package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/engclin/melwatch/internal/services"
	"github.com/engclin/melwatch/internal/testhelpers"
)

type countingReconciler struct {
	calls   atomic.Int32
	release chan struct{}
	err     error

	mu      sync.Mutex
	running int
	overlap bool
}

func (r *countingReconciler) Reconcile(ctx context.Context) (*services.ReconcileResult, error) {
	r.mu.Lock()
	r.running++
	if r.running > 1 {
		r.overlap = true
	}
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.running--
		r.mu.Unlock()
	}()

	r.calls.Add(1)
	if r.release != nil {
		select {
		case <-r.release:
		case <-ctx.Done():
		}
	}
	if r.err != nil {
		return nil, r.err
	}
	return &services.ReconcileResult{AlertsCreated: 1}, nil
}

func TestNewReconcileJob_RejectsBadSchedule(t *testing.T) {
	if _, err := NewReconcileJob(&countingReconciler{}, "every now and then", nil); err == nil {
		t.Error("expected invalid schedule error")
	}
	if _, err := NewReconcileJob(nil, "@every 1m", nil); err == nil {
		t.Error("expected nil reconciler error")
	}
}

func TestReconcileJob_TriggerRunsPass(t *testing.T) {
	rec := &countingReconciler{}
	job, err := NewReconcileJob(rec, "@every 1h", nil)
	if err != nil {
		t.Fatalf("NewReconcileJob: %v", err)
	}
	if err := job.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer job.Stop()

	job.Trigger()
	testhelpers.Eventually(t, 2*time.Second, func() bool {
		result, _, _ := job.Last()
		return result != nil
	}, "pass result recorded")

	result, at, err := job.Last()
	if err != nil || result.AlertsCreated != 1 || at.IsZero() {
		t.Errorf("unexpected last run: %+v %v %v", result, at, err)
	}
}

func TestReconcileJob_RunOnStart(t *testing.T) {
	rec := &countingReconciler{}
	job, err := NewReconcileJob(rec, "@every 1h", nil, WithRunOnStart())
	if err != nil {
		t.Fatalf("NewReconcileJob: %v", err)
	}
	if err := job.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer job.Stop()

	testhelpers.Eventually(t, 2*time.Second, func() bool { return rec.calls.Load() == 1 }, "initial pass")
}

func TestReconcileJob_CoalescesTriggers(t *testing.T) {
	rec := &countingReconciler{release: make(chan struct{})}
	job, err := NewReconcileJob(rec, "@every 1h", nil)
	if err != nil {
		t.Fatalf("NewReconcileJob: %v", err)
	}
	if err := job.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	job.Trigger()
	testhelpers.Eventually(t, 2*time.Second, func() bool { return rec.calls.Load() == 1 }, "first pass running")

	// While the first pass blocks, a burst of triggers leaves one pending.
	for i := 0; i < 10; i++ {
		job.Trigger()
	}
	close(rec.release)

	testhelpers.Eventually(t, 2*time.Second, func() bool { return rec.calls.Load() == 2 }, "follow-up pass")
	time.Sleep(50 * time.Millisecond)
	if got := rec.calls.Load(); got != 2 {
		t.Errorf("expected exactly 2 passes, got %d", got)
	}
	rec.mu.Lock()
	overlap := rec.overlap
	rec.mu.Unlock()
	if overlap {
		t.Error("passes must not overlap")
	}

	testhelpers.MustCompleteWithin(t, 2*time.Second, job.Stop)
}

func TestReconcileJob_RecordsFailure(t *testing.T) {
	rec := &countingReconciler{err: errors.New("source down")}
	job, err := NewReconcileJob(rec, "@every 1h", nil, WithPassTimeout(time.Second))
	if err != nil {
		t.Fatalf("NewReconcileJob: %v", err)
	}
	if err := job.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer job.Stop()

	job.Trigger()
	testhelpers.Eventually(t, 2*time.Second, func() bool {
		_, _, err := job.Last()
		return err != nil
	}, "failure recorded")
}

func TestReconcileJob_StopIsIdempotent(t *testing.T) {
	job, err := NewReconcileJob(&countingReconciler{}, "@every 1h", nil)
	if err != nil {
		t.Fatalf("NewReconcileJob: %v", err)
	}
	job.Stop()
	if err := job.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := job.Start(context.Background()); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	testhelpers.MustCompleteWithin(t, 2*time.Second, func() {
		job.Stop()
		job.Stop()
	})
}

func TestReconcileJob_StopReleasesGoroutines(t *testing.T) {
	baseline := goleak.IgnoreCurrent()

	rec := &countingReconciler{}
	job, err := NewReconcileJob(rec, "@every 1h", nil, WithRunOnStart())
	if err != nil {
		t.Fatalf("NewReconcileJob: %v", err)
	}
	if err := job.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	testhelpers.Eventually(t, 2*time.Second, func() bool { return rec.calls.Load() == 1 }, "initial pass")
	job.Trigger()
	job.Stop()

	goleak.VerifyNone(t, baseline)
}
