package pipeline

import (
	"context"
	"time"
)

// beginJob reserves a queue slot and then an in-flight slot. The in-flight
// channel capacity is the configured safe concurrent job count, so stage
// execution of distinct jobs can never overlap beyond it. Returns a release
// func to be deferred.
func (p *Pipeline) beginJob(ctx context.Context) (func(), error) {
	p.mu.RLock()
	state := p.state
	p.mu.RUnlock()
	if state == StateDraining || state == StateCold {
		// Rejecting during drain lets shutdown finish promptly.
		return func() {}, tooBusyError{}
	}

	// Fast path: respect an already-canceled context.
	if err := ctx.Err(); err != nil {
		return func() {}, err
	}

	// Try to reserve a queue slot with timeout.
	timer := time.NewTimer(p.maxWait)
	defer timer.Stop()
	select {
	case p.queueCh <- struct{}{}:
		// reserved queue slot
	case <-ctx.Done():
		return func() {}, ctx.Err()
	case <-timer.C:
		return func() {}, tooBusyError{}
	}

	// Wait to acquire an in-flight slot.
	acquired := false
	defer func() {
		if !acquired {
			<-p.queueCh
		}
	}()
	if err := ctx.Err(); err != nil {
		return func() {}, err
	}
	timer2 := time.NewTimer(p.maxWait)
	defer timer2.Stop()
	select {
	case p.genCh <- struct{}{}:
		acquired = true
		return func() { <-p.genCh; <-p.queueCh }, nil
	case <-ctx.Done():
		return func() {}, ctx.Err()
	case <-timer2.C:
		return func() {}, tooBusyError{}
	}
}
