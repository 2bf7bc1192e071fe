package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/jdziat/durable-training-queue/pkg/core"
)

// InterruptedMessage is recorded on entries released by RecoverStuck.
const InterruptedMessage = "launch interrupted: no launch outcome was recorded"

// RecoverStuck moves LAUNCHING entries leased more than olderThan ago to
// ERROR. Such entries belong to a tick that died between leasing and
// recording the launch outcome; whether an execution exists is unknown, so
// they are not made PENDING again. Use Queue.Retry once the operator has
// checked. It returns the ids it released.
func (s *Scheduler) RecoverStuck(ctx context.Context, olderThan time.Duration) ([]int64, error) {
	ctx, span := s.opts.Tracer.Start(ctx, "trainq.recover")
	defer span.End()

	var released []int64
	_, _, err := s.queue.Update(ctx, func(p *core.QueuePayload) (bool, error) {
		released = released[:0]
		cutoff := s.opts.Now().UTC().Add(-olderThan)
		for i := range p.Entries {
			e := &p.Entries[i]
			if e.Status != core.StatusLaunching {
				continue
			}
			if leasedAt, ok := e.LaunchedAt(); ok && leasedAt.After(cutoff) {
				continue
			}
			e.Status = core.StatusError
			e.Message = InterruptedMessage
			released = append(released, e.ID)
		}
		return len(released) > 0, nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("recover stuck entries: %w", err)
	}

	for _, id := range released {
		s.logger.Warn("released stuck launch", "entry_id", id)
	}
	return released, nil
}
