package console

import (
	"fmt"
	"math"

	"github.com/jmraffin/flowdeck/internal/controller"
	"github.com/jmraffin/flowdeck/internal/logging"
)

// CommandClient is the controller surface the dispatcher needs. The real
// implementation is *controller.Client; tests substitute fakes.
type CommandClient interface {
	Connect(port string) (*controller.Snapshot, error)
	Disconnect() (*controller.Snapshot, error)
	ToggleDevice(index int, active bool) (*controller.Snapshot, error)
	SetTag(index int, tag string) error
	SetConsigne(index int, value float64) (*controller.Snapshot, error)
	SetVanne(index int, mode string) (*controller.Snapshot, error)
	SetRamp(index int, active bool, timeS float64) (*controller.Snapshot, error)
	SelectGas(index int, gas string) (*controller.Snapshot, error)
	ResetTotal(index int) (*controller.Snapshot, error)
}

// Dispatcher translates discrete operator intents into single controller
// calls. Every operation validates its input at the boundary, issues one
// remote call, and on success replaces the cell with the authoritative
// response. A failed call is a no-op on state: the error is returned for
// display and the previous snapshot stays untouched. The one exception is
// Rename (see there).
type Dispatcher struct {
	client CommandClient
	cell   *Cell
}

// NewDispatcher creates a dispatcher issuing commands through client and
// applying results to cell.
func NewDispatcher(client CommandClient, cell *Cell) *Dispatcher {
	return &Dispatcher{client: client, cell: cell}
}

// Connect opens the given serial port on the controller. An empty port is
// a no-op: nothing is sent and no error is returned, so a blank selection
// cannot produce a spurious failure.
func (d *Dispatcher) Connect(port string) error {
	if port == "" {
		return nil
	}
	snap, err := d.client.Connect(port)
	if err != nil {
		logging.LogConnection(port, "connect_failed")
		return err
	}
	logging.LogConnection(port, "connected")
	d.cell.Replace(snap)
	return nil
}

// Disconnect releases the serial port. Idempotent: disconnecting while
// already disconnected succeeds and leaves Connected false.
func (d *Dispatcher) Disconnect() error {
	snap, err := d.client.Disconnect()
	if err != nil {
		return err
	}
	logging.LogConnection("", "disconnected")
	d.cell.Replace(snap)
	return nil
}

// Toggle switches channel index on or off.
func (d *Dispatcher) Toggle(index int, active bool) error {
	if err := d.checkIndex(index); err != nil {
		return err
	}
	return d.apply("toggle", index, func() (*controller.Snapshot, error) {
		return d.client.ToggleDevice(index, active)
	})
}

// SetConsigne sets the setpoint of channel index. Non-finite values are
// rejected at the boundary without a controller round trip.
func (d *Dispatcher) SetConsigne(index int, value float64) error {
	if err := d.checkIndex(index); err != nil {
		return err
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return controller.NewCommandRejectedError("setpoint must be a finite number", 0)
	}
	return d.apply("set_consigne", index, func() (*controller.Snapshot, error) {
		return d.client.SetConsigne(index, value)
	})
}

// SetValve sets the valve mode of channel index. The mode must be one of
// the controller-advertised labels.
func (d *Dispatcher) SetValve(index int, mode string) error {
	if err := d.checkIndex(index); err != nil {
		return err
	}
	if !controller.IsValveMode(mode) {
		return controller.NewCommandRejectedError(fmt.Sprintf("unknown valve mode %q", mode), 0)
	}
	return d.apply("set_vanne", index, func() (*controller.Snapshot, error) {
		return d.client.SetVanne(index, mode)
	})
}

// SetRamp configures ramp behavior of channel index. An active ramp needs
// a positive duration.
func (d *Dispatcher) SetRamp(index int, active bool, timeS float64) error {
	if err := d.checkIndex(index); err != nil {
		return err
	}
	if active && (timeS <= 0 || math.IsNaN(timeS) || math.IsInf(timeS, 0)) {
		return controller.NewCommandRejectedError("ramp time must be a positive number of seconds", 0)
	}
	return d.apply("set_ramp", index, func() (*controller.Snapshot, error) {
		return d.client.SetRamp(index, active, timeS)
	})
}

// SelectGas selects the active gas of channel index. The gas must be one
// of the channel's configured gases per the current snapshot.
func (d *Dispatcher) SelectGas(index int, gas string) error {
	if err := d.checkIndex(index); err != nil {
		return err
	}
	snap := d.cell.Current()
	if !snap.Devices[index].HasGas(gas) {
		return controller.NewCommandRejectedError(fmt.Sprintf("gas %q is not configured on channel %d", gas, index+1), 0)
	}
	return d.apply("select_gas", index, func() (*controller.Snapshot, error) {
		return d.client.SelectGas(index, gas)
	})
}

// ResetTotal zeroes the totalizer of channel index.
func (d *Dispatcher) ResetTotal(index int) error {
	if err := d.checkIndex(index); err != nil {
		return err
	}
	return d.apply("reset_total", index, func() (*controller.Snapshot, error) {
		return d.client.ResetTotal(index)
	})
}

// Rename relabels channel index. This is the single optimistic path: the
// normalized tag is written into the cell before the controller call, so
// the grid updates immediately. The controller applies the identical
// normalization, so the next poll converges on the same value. On failure
// the error is still surfaced, and the next poll restores the
// controller's tag.
func (d *Dispatcher) Rename(index int, tag string) error {
	if err := d.checkIndex(index); err != nil {
		return err
	}
	normalized := controller.NormalizeTag(tag)
	d.cell.OverrideTag(index, normalized)

	err := d.client.SetTag(index, normalized)
	logging.LogCommand("set_tag", index, err)
	return err
}

// apply runs one remote command and adopts its snapshot on success.
func (d *Dispatcher) apply(op string, index int, call func() (*controller.Snapshot, error)) error {
	snap, err := call()
	logging.LogCommand(op, index, err)
	if err != nil {
		return err
	}
	d.cell.Replace(snap)
	return nil
}

// checkIndex validates the 0-based channel index against the session's
// fixed channel count.
func (d *Dispatcher) checkIndex(index int) error {
	if index < 0 || index >= d.cell.MaxDevices() {
		return controller.NewCommandRejectedError(
			fmt.Sprintf("channel index %d out of range [0,%d)", index, d.cell.MaxDevices()), 0)
	}
	return nil
}
