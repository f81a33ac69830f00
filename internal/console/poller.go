package console

import (
	"context"
	"time"

	"github.com/jmraffin/flowdeck/internal/controller"
	"github.com/jmraffin/flowdeck/internal/logging"
)

// DefaultPollInterval is the cadence of the snapshot loop. Each tick
// starts after the previous poll completed, so polls never overlap.
const DefaultPollInterval = 800 * time.Millisecond

// SnapshotFetcher is the controller surface the poller needs.
type SnapshotFetcher interface {
	Snapshot() (*controller.Snapshot, error)
}

// Poller runs the unbounded snapshot loop for the lifetime of a console
// session. Successful polls replace the cell's state and are published on
// Updates; failed polls are swallowed (the loop keeps its cadence, no
// backoff) and only visible on the optional Errors channel.
type Poller struct {
	fetcher  SnapshotFetcher
	cell     *Cell
	interval time.Duration

	updates chan *controller.Snapshot
	errs    chan error
}

// NewPoller creates a poller feeding cell from fetcher at the default
// cadence.
func NewPoller(fetcher SnapshotFetcher, cell *Cell) *Poller {
	return NewPollerInterval(fetcher, cell, DefaultPollInterval)
}

// NewPollerInterval creates a poller with a custom cadence. Intervals
// below 1ms are clamped to the default; tests use short intervals.
func NewPollerInterval(fetcher SnapshotFetcher, cell *Cell, interval time.Duration) *Poller {
	if interval < time.Millisecond {
		interval = DefaultPollInterval
	}
	return &Poller{
		fetcher:  fetcher,
		cell:     cell,
		interval: interval,
		updates:  make(chan *controller.Snapshot, 1),
		errs:     make(chan error, 1),
	}
}

// Updates delivers the snapshot of each successful poll, after it has been
// applied to the cell. The channel holds only the latest value: a slow
// consumer sees the freshest snapshot, not a backlog.
func (p *Poller) Updates() <-chan *controller.Snapshot {
	return p.updates
}

// Errors exposes swallowed poll failures for observers that care (status
// lines, logs). Nothing reads it in the hot path and sends never block.
func (p *Poller) Errors() <-chan error {
	return p.errs
}

// Run executes the polling loop until ctx is canceled. It never returns
// early on poll failures.
func (p *Poller) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		p.pollOnce()

		select {
		case <-ctx.Done():
			return
		case <-time.After(p.interval):
		}
	}
}

// pollOnce performs one fetch-and-replace cycle.
func (p *Poller) pollOnce() {
	start := time.Now()
	snap, err := p.fetcher.Snapshot()
	logging.LogPoll(time.Since(start), err)

	if err != nil {
		// Transient fetch errors never abort the loop. Offer the error to
		// observers and retry on the next tick.
		offer(p.errs, err)
		return
	}

	p.cell.Replace(snap)
	offer(p.updates, p.cell.Current())
}

// offer publishes v on a latest-value channel without ever blocking: a
// pending unread value is dropped in favor of the new one.
func offer[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}
