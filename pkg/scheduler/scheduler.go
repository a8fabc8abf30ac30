package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/tokenized/pkg/logger"

	sync "github.com/sasha-s/go-deadlock"
)

const (
	SubSystem = "Scheduler" // For logger

	// DefaultFrequency is how often jobs are checked when no frequency is set.
	DefaultFrequency = 500 * time.Millisecond
)

var (
	NotFound = errors.New("Job not found")
)

// Scheduler provides the ability to schedule tasks to run at when they are ready.
//
// The zero value is ready to use and checks jobs every DefaultFrequency.
type Scheduler struct {
	Frequency time.Duration

	jobs          []Job
	lock          sync.Mutex
	isRunning     bool
	stopRequested bool
	done          chan struct{}
}

// Job provides an interface that tells Scheduler when and how to run the job.
type Job interface {
	// IsReady returns true when a job should be executed.
	IsReady(ctx context.Context) bool

	// Run executes the job.
	Run(ctx context.Context)

	// IsComplete returns true when a job should be removed from the scheduler.
	IsComplete(ctx context.Context) bool

	// Equal returns true if another job matches it. Used to cancel jobs.
	Equal(other Job) bool
}

// NewScheduler returns a scheduler that checks jobs at the given frequency.
func NewScheduler(frequency time.Duration) *Scheduler {
	return &Scheduler{Frequency: frequency}
}

// ScheduleJob adds a job to the scheduler.
func (sch *Scheduler) ScheduleJob(ctx context.Context, job Job) error {
	sch.lock.Lock()
	defer sch.lock.Unlock()
	sch.jobs = append(sch.jobs, job)
	return nil
}

// CancelJob removes a job from the scheduler. The job passed in just needs to be equivalent based
//   on the job's Equal function.
func (sch *Scheduler) CancelJob(ctx context.Context, job Job) error {
	sch.lock.Lock()
	defer sch.lock.Unlock()
	for i, existing := range sch.jobs {
		if existing.Equal(job) {
			sch.jobs = append(sch.jobs[:i], sch.jobs[i+1:]...)
			return nil
		}
	}
	return NotFound
}

// Count returns the number of scheduled jobs.
func (sch *Scheduler) Count() int {
	sch.lock.Lock()
	defer sch.lock.Unlock()
	return len(sch.jobs)
}

// Run monitors jobs and runs them when they are ready. It returns when Stop is called or the
//   context is done.
//
// Jobs are run without the scheduler lock held so they may schedule or cancel other jobs.
func (sch *Scheduler) Run(ctx context.Context) error {
	ctx = logger.ContextWithLogSubSystem(ctx, SubSystem)

	sch.lock.Lock()
	if sch.isRunning {
		sch.lock.Unlock()
		return errors.New("Scheduler already running")
	}
	sch.isRunning = true
	sch.stopRequested = false
	sch.done = make(chan struct{})
	done := sch.done
	frequency := sch.Frequency
	sch.lock.Unlock()

	if frequency <= 0 {
		frequency = DefaultFrequency
	}

	ticker := time.NewTicker(frequency)
	defer ticker.Stop()

	defer func() {
		sch.lock.Lock()
		sch.isRunning = false
		sch.lock.Unlock()
		close(done)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		sch.lock.Lock()
		if sch.stopRequested {
			sch.lock.Unlock()
			return nil
		}
		var ready []Job
		for _, job := range sch.jobs {
			if job.IsReady(ctx) {
				ready = append(ready, job)
			}
		}
		sch.lock.Unlock()

		for _, job := range ready {
			job.Run(ctx)
			if job.IsComplete(ctx) {
				sch.remove(job)
			}
		}
	}
}

// remove drops the exact job instance, if it is still scheduled.
func (sch *Scheduler) remove(job Job) {
	sch.lock.Lock()
	defer sch.lock.Unlock()
	for i, existing := range sch.jobs {
		if existing == job {
			sch.jobs = append(sch.jobs[:i], sch.jobs[i+1:]...)
			return
		}
	}
}

// Stop requests Run finish and waits for it to finish.
func (sch *Scheduler) Stop(ctx context.Context) error {
	ctx = logger.ContextWithLogSubSystem(ctx, SubSystem)

	sch.lock.Lock()
	if !sch.isRunning {
		sch.lock.Unlock()
		return nil
	}
	sch.stopRequested = true
	done := sch.done
	sch.lock.Unlock()

	for {
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(3 * time.Second):
			logger.Info(ctx, "Waiting for scheduler to stop")
		}
	}
}
