package engine

import (
	"context"
	"time"

	"github.com/marketprism/ingestion-fabric/rawevent"
)

func exchangeOf(name string) rawevent.Exchange { return rawevent.Exchange(name) }

// pollJob is one scheduled REST polling job (funding, open interest,
// liquidation poll, LSR, volatility index), spec §6's schedules config.
// Poll fetches and passes each fully-decoded raw event to emit, which the
// Supervisor routes through the same path as a WS-decoded event.
type pollJob struct {
	Name     string
	Exchange string
	Interval time.Duration
	Poll     func(ctx context.Context, emit func(any))
}

// NewPollJob constructs a scheduled job.
func NewPollJob(name, exchange string, interval time.Duration, poll func(ctx context.Context, emit func(any))) *pollJob {
	return &pollJob{Name: name, Exchange: exchange, Interval: interval, Poll: poll}
}

func (s *Supervisor) runJob(ctx context.Context, j *pollJob) {
	defer s.wg.Done()
	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.Poll(ctx, func(ev any) { s.route(ctx, exchangeOf(j.Exchange), ev) })
		}
	}
}
