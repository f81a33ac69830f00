package console

import (
	"sync"

	"github.com/jmraffin/flowdeck/internal/controller"
)

// Cell owns the console's authoritative snapshot. All reads go through
// Current and all writes through Replace; there is no way to mutate the
// stored snapshot in place. Both sides work on deep copies, so a snapshot
// handed out by Current stays valid across later replacements.
type Cell struct {
	mu   sync.RWMutex
	snap *controller.Snapshot
	max  int
}

// NewCell creates a cell seeded with a disconnected snapshot of max
// placeholder channels. max is fixed for the session: every snapshot
// passed to Replace is normalized to exactly this many devices.
func NewCell(max int) *Cell {
	if max <= 0 {
		max = controller.DefaultMaxDevices
	}
	return &Cell{
		snap: controller.EmptySnapshot(max),
		max:  max,
	}
}

// MaxDevices returns the fixed channel count of this session.
func (c *Cell) MaxDevices() int {
	return c.max
}

// Current returns a deep copy of the authoritative snapshot.
func (c *Cell) Current() *controller.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap.Clone()
}

// Connected reports the connection flag of the current snapshot.
func (c *Cell) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap.Connected
}

// Replace adopts snap wholesale as the new authoritative state. The cell
// stores its own normalized copy, so the caller may keep using snap.
// Replace ordering decides races: whoever replaces last wins.
func (c *Cell) Replace(snap *controller.Snapshot) {
	if snap == nil {
		return
	}
	clone := snap.Clone()
	clone.Normalize(c.max)

	c.mu.Lock()
	c.snap = clone
	c.mu.Unlock()
}

// OverrideTag writes a locally normalized tag for one channel without
// touching the rest of the snapshot. This is the single permitted window
// of optimism (tag renames return no controller snapshot); the next poll
// overwrites it with the controller's identically normalized copy.
func (c *Cell) OverrideTag(index int, tag string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if index < 0 || index >= len(c.snap.Devices) {
		return
	}
	c.snap.Devices[index].Tag = controller.NormalizeTag(tag)
}
