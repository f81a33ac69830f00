// Package console implements the state-synchronization core of the
// flowdeck operator console.
//
// Three pieces cooperate around a single owned state cell:
//
//   - Cell holds the authoritative in-memory snapshot. It only supports
//     wholesale replacement; nothing merges fields into it.
//   - Poller fetches a fresh snapshot from the controller on a fixed
//     cadence and replaces the cell's contents. Transient fetch failures
//     are swallowed: the loop never stops and never backs off.
//   - Dispatcher turns discrete operator intents (toggle, setpoint, valve
//     mode, ramp, gas, tag, totalizer reset) into single controller calls
//     and replaces the cell with the authoritative response.
//
// # Consistency Model
//
// Replacement is last-write-wins at the granularity of the whole snapshot.
// A command's result can therefore be clobbered by a poll that was already
// in flight when the command completed; the next poll converges again.
// This weak-consistency tradeoff is deliberate and matches the controller
// being the single source of truth.
//
// The one optimistic exception is tag renaming: it is cosmetic, has no
// physical side effect, and the controller returns no snapshot for it, so
// the Dispatcher writes the normalized tag into the cell immediately. The
// controller normalizes tags with the same truncate-and-pad rule, so a
// later poll converges on the identical value.
package console
