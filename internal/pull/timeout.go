package pull

import (
	"context"
	"time"

	"github.com/tokenized/gacha/pkg/scheduler"

	"github.com/google/uuid"
)

// expirer is implemented by the reconciler.
type expirer interface {
	expire(ctx context.Context, requestID uuid.UUID)
}

// PullTimeout is a Scheduler job that fails a pull if no confirmation arrives before the
//   deadline.
type PullTimeout struct {
	target    expirer
	requestID uuid.UUID
	deadline  time.Time
	finished  bool
}

func NewPullTimeout(target expirer, requestID uuid.UUID, deadline time.Time) *PullTimeout {
	return &PullTimeout{
		target:    target,
		requestID: requestID,
		deadline:  deadline,
	}
}

// IsReady returns true when a job should be executed.
func (pt *PullTimeout) IsReady(ctx context.Context) bool {
	return !time.Now().Before(pt.deadline)
}

// Run executes the job.
func (pt *PullTimeout) Run(ctx context.Context) {
	pt.target.expire(ctx, pt.requestID)
	pt.finished = true
}

// IsComplete returns true when a job should be removed from the scheduler.
func (pt *PullTimeout) IsComplete(ctx context.Context) bool {
	return pt.finished
}

// Equal returns true if another job matches it. Used to cancel jobs.
func (pt *PullTimeout) Equal(other scheduler.Job) bool {
	otherPT, ok := other.(*PullTimeout)
	if !ok {
		return false
	}
	return pt.requestID == otherPT.requestID
}
