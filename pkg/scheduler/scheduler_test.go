package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tokenized/pkg/logger"
)

type countJob struct {
	name  string
	runs  int32
	limit int32
}

func (j *countJob) IsReady(ctx context.Context) bool { return true }

func (j *countJob) Run(ctx context.Context) { atomic.AddInt32(&j.runs, 1) }

func (j *countJob) IsComplete(ctx context.Context) bool {
	return j.limit > 0 && atomic.LoadInt32(&j.runs) >= j.limit
}

func (j *countJob) Equal(other Job) bool {
	o, ok := other.(*countJob)
	return ok && o.name == j.name
}

// rescheduleJob schedules another job from inside Run, which requires Run to be called without
//   the scheduler lock held.
type rescheduleJob struct {
	sch  *Scheduler
	next Job
	done bool
}

func (j *rescheduleJob) IsReady(ctx context.Context) bool { return true }

func (j *rescheduleJob) Run(ctx context.Context) {
	j.sch.ScheduleJob(ctx, j.next)
	j.done = true
}

func (j *rescheduleJob) IsComplete(ctx context.Context) bool { return j.done }

func (j *rescheduleJob) Equal(other Job) bool { return other == Job(j) }

func waitFor(t *testing.T, timeout time.Duration, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !condition() {
		if time.Now().After(deadline) {
			t.Fatalf("Condition not met within %s", timeout)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSchedulerRunsAndRemovesCompleteJobs(t *testing.T) {
	ctx := logger.ContextWithNoLogger(context.Background())
	sch := NewScheduler(5 * time.Millisecond)

	job := &countJob{name: "three", limit: 3}
	if err := sch.ScheduleJob(ctx, job); err != nil {
		t.Fatalf("Failed to schedule job : %s", err)
	}

	go sch.Run(ctx)
	defer sch.Stop(ctx)

	waitFor(t, time.Second, func() bool { return sch.Count() == 0 })

	if runs := atomic.LoadInt32(&job.runs); runs != 3 {
		t.Fatalf("Wrong run count : got %d, want %d", runs, 3)
	}
}

func TestSchedulerCancelJob(t *testing.T) {
	ctx := logger.ContextWithNoLogger(context.Background())
	sch := NewScheduler(time.Hour)

	sch.ScheduleJob(ctx, &countJob{name: "a"})
	sch.ScheduleJob(ctx, &countJob{name: "b"})

	if err := sch.CancelJob(ctx, &countJob{name: "a"}); err != nil {
		t.Fatalf("Failed to cancel job : %s", err)
	}
	if err := sch.CancelJob(ctx, &countJob{name: "a"}); err != NotFound {
		t.Fatalf("Wrong error cancelling missing job : got %v, want %v", err, NotFound)
	}
	if sch.Count() != 1 {
		t.Fatalf("Wrong job count : got %d, want %d", sch.Count(), 1)
	}
}

func TestSchedulerJobCanScheduleJobs(t *testing.T) {
	ctx := logger.ContextWithNoLogger(context.Background())
	sch := NewScheduler(5 * time.Millisecond)

	next := &countJob{name: "next", limit: 1}
	sch.ScheduleJob(ctx, &rescheduleJob{sch: sch, next: next})

	go sch.Run(ctx)
	defer sch.Stop(ctx)

	waitFor(t, time.Second, func() bool { return atomic.LoadInt32(&next.runs) == 1 })
}

func TestSchedulerStopsOnContext(t *testing.T) {
	ctx, cancel := context.WithCancel(logger.ContextWithNoLogger(context.Background()))
	sch := NewScheduler(5 * time.Millisecond)

	finished := make(chan error, 1)
	go func() {
		finished <- sch.Run(ctx)
	}()

	cancel()

	select {
	case err := <-finished:
		if err != nil {
			t.Fatalf("Run returned error : %s", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Scheduler did not stop on context cancel")
	}
}

func TestPeriodicProcess(t *testing.T) {
	ctx := logger.ContextWithNoLogger(context.Background())
	sch := NewScheduler(5 * time.Millisecond)

	var runs int32
	pp := NewPeriodicProcess("tick", PeriodicProcessFunc(func(context.Context) {
		atomic.AddInt32(&runs, 1)
	}), 10*time.Millisecond)
	sch.ScheduleJob(ctx, pp)

	go sch.Run(ctx)
	defer sch.Stop(ctx)

	waitFor(t, time.Second, func() bool { return atomic.LoadInt32(&runs) >= 2 })

	if err := sch.CancelJob(ctx, NewPeriodicProcess("tick", nil, time.Second)); err != nil {
		t.Fatalf("Failed to cancel periodic process : %s", err)
	}
}
