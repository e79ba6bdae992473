package simulation

import (
	"context"
	"time"

	"github.com/rpgo/loan-simulator/internal/config"
	"github.com/rpgo/loan-simulator/internal/domain"
)

// Backoff is the growing interval between status polls.
type Backoff struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
}

// DefaultBackoff starts at 1.5s and grows by half each poll up to 5s.
func DefaultBackoff() Backoff {
	return Backoff{Initial: 1500 * time.Millisecond, Max: 5 * time.Second, Multiplier: 1.5}
}

// BackoffFromConfig converts the polling section of the app config.
func BackoffFromConfig(c config.PollingConfig) Backoff {
	return Backoff{Initial: c.InitialInterval, Max: c.MaxInterval, Multiplier: c.Multiplier}
}

// Next returns the interval that follows cur.
func (b Backoff) Next(cur time.Duration) time.Duration {
	if cur <= 0 {
		return b.Initial
	}
	next := time.Duration(float64(cur) * b.Multiplier)
	if next > b.Max {
		return b.Max
	}
	return next
}

// StatusFunc reads the current status of whatever is being polled.
type StatusFunc func(ctx context.Context) (domain.SimulationStatus, error)

// PollUntilTerminal calls get until it reports a terminal status, sleeping
// with backoff in between. The first check happens immediately.
func PollUntilTerminal(ctx context.Context, get StatusFunc, b Backoff) (domain.SimulationStatus, error) {
	var wait time.Duration
	for {
		status, err := get(ctx)
		if err != nil {
			return "", err
		}
		if status.IsTerminal() {
			return status, nil
		}

		wait = b.Next(wait)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return status, ctx.Err()
		case <-timer.C:
		}
	}
}
