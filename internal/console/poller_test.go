package console

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jmraffin/flowdeck/internal/controller"
)

// fakeFetcher serves a scripted sequence of snapshots and errors, then
// repeats the last entry forever.
type fakeFetcher struct {
	mu      sync.Mutex
	script  []fetchResult
	pos     int
	fetches int
}

type fetchResult struct {
	snap *controller.Snapshot
	err  error
}

func (f *fakeFetcher) Snapshot() (*controller.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	r := f.script[f.pos]
	if f.pos < len(f.script)-1 {
		f.pos++
	}
	return r.snap, r.err
}

func (f *fakeFetcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

func taggedSnapshot(tag string) *controller.Snapshot {
	return &controller.Snapshot{
		Connected: true,
		Devices:   []controller.Device{{Tag: tag}},
	}
}

func TestPollerSurvivesFetchFailures(t *testing.T) {
	fetcher := &fakeFetcher{script: []fetchResult{
		{nil, controller.NewFetchError("serial bus timeout", nil)},
		{nil, errors.New("read tcp: connection reset")},
		{taggedSnapshot("ARGON___"), nil},
	}}
	cell := NewCell(1)
	p := NewPollerInterval(fetcher, cell, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	select {
	case snap := <-p.Updates():
		if snap.Devices[0].Tag != "ARGON___" {
			t.Errorf("Devices[0].Tag = %q", snap.Devices[0].Tag)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("poller never recovered after failed polls")
	}

	if fetcher.count() < 3 {
		t.Errorf("fetches = %d, want the loop to keep running through failures", fetcher.count())
	}
	if !cell.Connected() {
		t.Error("successful poll should have replaced the cell")
	}
}

func TestPollerFailureLeavesCellUntouched(t *testing.T) {
	fetcher := &fakeFetcher{script: []fetchResult{
		{taggedSnapshot("ARGON___"), nil},
		{nil, controller.NewFetchError("snapshot failed", nil)},
	}}
	cell := NewCell(1)
	p := NewPollerInterval(fetcher, cell, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	<-p.Updates()

	// Wait for at least one failed poll after the success
	deadline := time.After(2 * time.Second)
	for fetcher.count() < 3 {
		select {
		case <-deadline:
			t.Fatal("loop stalled")
		case <-time.After(time.Millisecond):
		}
	}

	snap := cell.Current()
	if snap.Devices[0].Tag != "ARGON___" {
		t.Errorf("failed poll changed state: %q", snap.Devices[0].Tag)
	}
}

func TestPollerOffersErrorsWithoutBlocking(t *testing.T) {
	fetcher := &fakeFetcher{script: []fetchResult{
		{nil, controller.NewFetchError("snapshot failed", nil)},
	}}
	cell := NewCell(1)
	p := NewPollerInterval(fetcher, cell, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	// Nobody is reading Errors most of the time; the loop must still make
	// progress.
	deadline := time.After(2 * time.Second)
	for fetcher.count() < 5 {
		select {
		case <-deadline:
			t.Fatal("loop blocked on unread error channel")
		case <-time.After(time.Millisecond):
		}
	}

	select {
	case err := <-p.Errors():
		if !controller.IsFetchError(err) {
			t.Errorf("Errors() delivered %v", err)
		}
	default:
		t.Error("a swallowed failure should be waiting on Errors()")
	}
}

func TestPollerUpdatesKeepLatestValue(t *testing.T) {
	fetcher := &fakeFetcher{script: []fetchResult{
		{taggedSnapshot("FIRST___"), nil},
		{taggedSnapshot("SECOND__"), nil},
		{taggedSnapshot("THIRD___"), nil},
	}}
	cell := NewCell(1)
	p := NewPollerInterval(fetcher, cell, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	// Let several polls land while nobody reads
	deadline := time.After(2 * time.Second)
	for fetcher.count() < 4 {
		select {
		case <-deadline:
			t.Fatal("loop stalled")
		case <-time.After(time.Millisecond):
		}
	}
	cancel()

	// A slow consumer gets the freshest snapshot, not a backlog
	snap := <-p.Updates()
	if snap.Devices[0].Tag != "THIRD___" {
		t.Errorf("Updates() delivered %q, want the latest snapshot", snap.Devices[0].Tag)
	}
	select {
	case stale := <-p.Updates():
		t.Errorf("backlog present on Updates(): %q", stale.Devices[0].Tag)
	default:
	}
}

func TestPollerStopsOnCancel(t *testing.T) {
	fetcher := &fakeFetcher{script: []fetchResult{
		{taggedSnapshot("ARGON___"), nil},
	}}
	cell := NewCell(1)
	p := NewPollerInterval(fetcher, cell, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	<-p.Updates()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	after := fetcher.count()
	time.Sleep(20 * time.Millisecond)
	if fetcher.count() != after {
		t.Error("polling continued after Run returned")
	}
}

func TestPollerClampsTinyInterval(t *testing.T) {
	fetcher := &fakeFetcher{script: []fetchResult{{taggedSnapshot("X_______"), nil}}}
	p := NewPollerInterval(fetcher, NewCell(1), 0)
	if p.interval != DefaultPollInterval {
		t.Errorf("interval = %v, want %v", p.interval, DefaultPollInterval)
	}
}
