package services

import (
	"context"
	"sync"
	"time"

	"github.com/stratalabs/strata/internal/core/domain"
	"github.com/stratalabs/strata/internal/core/ports/driven"
	"github.com/stratalabs/strata/internal/logger"
)

// pulseRunner beats the heartbeat of one open job instance.
type pulseRunner struct {
	pulseStore driven.PulseStore
	instanceID string
	jobID      string
	period     time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// newPulseRunner creates a runner beating at domain.PulsePeriod.
func newPulseRunner(pulseStore driven.PulseStore, instanceID, jobID string) *pulseRunner {
	return &pulseRunner{
		pulseStore: pulseStore,
		instanceID: instanceID,
		jobID:      jobID,
		period:     domain.PulsePeriod,
	}
}

// Start records the first beat and begins the beating goroutine. The
// first beat is synchronous so a freshly opened instance is never
// pulse-less; its error fails the open.
func (r *pulseRunner) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = true
	r.stopCh = make(chan struct{})
	r.mu.Unlock()

	if err := r.beat(ctx); err != nil {
		r.Stop()
		return err
	}

	r.wg.Add(1)
	go r.run(ctx)
	return nil
}

// run is the beating loop.
func (r *pulseRunner) run(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		case <-ticker.C:
			if err := r.beat(ctx); err != nil {
				logger.Warn("Pulse beat failed for instance %s: %v", r.instanceID, err)
			}
		}
	}
}

// beat upserts the pulse row with the current time.
func (r *pulseRunner) beat(ctx context.Context) error {
	return r.pulseStore.Beat(ctx, r.instanceID, r.jobID, time.Now().UTC())
}

// Stop ends the beating goroutine and waits for it. It does not remove
// the pulse row; the closing path does that after deregistering.
func (r *pulseRunner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	close(r.stopCh)
	r.mu.Unlock()

	r.wg.Wait()
}
