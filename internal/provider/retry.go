package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BradenHooton/prospector/internal/models"
	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy is the fixed wait schedule of a start/poll cycle. A task is
// polled once after each delay; exhausting the schedule times the task out.
type RetryPolicy struct {
	Delays []time.Duration
}

var (
	DomainResolvePolicy = RetryPolicy{Delays: []time.Duration{
		800 * time.Millisecond, 1500 * time.Millisecond, 2500 * time.Millisecond, 4 * time.Second,
	}}
	ProspectSearchPolicy = RetryPolicy{Delays: []time.Duration{
		time.Second, 2 * time.Second, 3 * time.Second, 4 * time.Second, 5 * time.Second,
	}}
	EnrichPolicy = RetryPolicy{Delays: []time.Duration{
		time.Second, 2 * time.Second, 3 * time.Second,
	}}
)

// ImmediatePolicy polls attempts times without waiting
func ImmediatePolicy(attempts int) RetryPolicy {
	return RetryPolicy{Delays: make([]time.Duration, attempts)}
}

// Attempts is the number of polls the policy allows
func (p RetryPolicy) Attempts() int {
	return len(p.Delays)
}

var errPending = errors.New("task pending")

// Poll waits out the schedule, calling check after every delay until it
// reports done or returns an error. Errors from check are final.
func (p RetryPolicy) Poll(ctx context.Context, task *models.AsyncTask, check func(ctx context.Context) (bool, error)) error {
	if len(p.Delays) == 0 {
		task.Status = models.TaskStatusTimedOut
		return models.ErrTaskTimeout
	}

	if err := sleepContext(ctx, p.Delays[0]); err != nil {
		return err
	}

	op := func() error {
		done, err := check(ctx)
		if err != nil {
			return backoff.Permanent(err)
		}
		if !done {
			return errPending
		}
		return nil
	}

	b := backoff.WithContext(&scheduleBackOff{delays: p.Delays[1:]}, ctx)
	err := backoff.Retry(op, b)
	switch {
	case err == nil:
		task.Status = models.TaskStatusCompleted
		return nil
	case errors.Is(err, errPending):
		task.Status = models.TaskStatusTimedOut
		return fmt.Errorf("%s %s after %d polls: %w", task.Kind, task.TaskHash, p.Attempts(), models.ErrTaskTimeout)
	case errors.Is(err, models.ErrTaskFailed):
		task.Status = models.TaskStatusFailed
		return err
	default:
		return err
	}
}

// scheduleBackOff replays a fixed list of delays, then stops
type scheduleBackOff struct {
	delays []time.Duration
	next   int
}

func (s *scheduleBackOff) NextBackOff() time.Duration {
	if s.next >= len(s.delays) {
		return backoff.Stop
	}
	d := s.delays[s.next]
	s.next++
	return d
}

func (s *scheduleBackOff) Reset() {
	s.next = 0
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
