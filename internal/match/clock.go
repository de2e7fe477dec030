package match

import (
	"context"
	"time"

	"github.com/palafeltre/matchcast/internal/telemetry"
)

// Clock drives the controller's Tick once per wall-clock second for the
// lifetime of the process.
type Clock struct {
	ctrl *Controller
}

func NewClock(c *Controller) *Clock {
	return &Clock{ctrl: c}
}

// Run blocks until ctx is cancelled. A panicking tick is logged and counts
// as a no-op tick; the loop resumes on the next second.
func (k *Clock) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	telemetry.Infof("clock: running")
	for {
		select {
		case <-ctx.Done():
			telemetry.Infof("clock: stopped after %d ticks", telemetry.Metrics.ClockTicks.Value())
			return
		case now := <-ticker.C:
			k.tick(now)
		}
	}
}

func (k *Clock) tick(now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			telemetry.Metrics.TickFaults.Inc()
			telemetry.Errorf("clock: tick fault: %v", r)
		}
	}()

	k.ctrl.Tick(now)
	telemetry.Metrics.ClockTicks.Inc()
	telemetry.Metrics.LastTickUnix.Set(now.Unix())
}
