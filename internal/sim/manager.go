package sim

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/jmraffin/flowdeck/internal/controller"
)

// Rejection errors returned by Manager operations. The server maps these to
// HTTP error answers.
var (
	ErrNotConnected = errors.New("serial port not connected")
	ErrUnknownPort  = errors.New("unknown serial port")
	ErrDeviceOff    = errors.New("device is off")
	ErrIndexRange   = errors.New("device index out of range")
	ErrUnknownGas   = errors.New("gas not configured on this channel")
	ErrUnknownValve = errors.New("unknown valve mode")
)

// gasSpec describes one gas calibration of a simulated channel.
type gasSpec struct {
	name      string
	unit      string
	fullScale float64
}

// gasTables are the per-channel gas calibrations. Channels cycle through
// the tables, mimicking a mixed rack of small and large controllers.
var gasTables = [][]gasSpec{
	{{"N2", "sccm", 500}, {"Ar", "sccm", 680}, {"He", "sccm", 720}},
	{{"N2", "sccm", 100}, {"O2", "sccm", 98}},
	{{"Ar", "slm", 10}, {"N2", "slm", 10.2}, {"CO2", "slm", 7.4}, {"He", "slm", 14.5}},
	{{"H2", "sccm", 200}, {"N2", "sccm", 198}},
}

// simDevice is the internal state of one simulated channel.
type simDevice struct {
	tag      string
	active   bool
	consigne float64
	mesure   float64
	total    float64
	valve    string
	ramp     controller.Ramp

	gases       []gasSpec
	selectedGas int

	hasReading bool
}

// fullScale returns the full-scale flow of the selected gas.
func (d *simDevice) fullScale() float64 {
	if len(d.gases) == 0 {
		return 0
	}
	return d.gases[d.selectedGas].fullScale
}

// unit returns the flow unit of the selected gas.
func (d *simDevice) unit() string {
	if len(d.gases) == 0 {
		return ""
	}
	return d.gases[d.selectedGas].unit
}

// Manager is the simulated rack: a fixed array of channels behind one
// serial port. All methods are safe for concurrent use.
type Manager struct {
	mu sync.Mutex

	ports     []string
	openPort  string
	connected bool

	devices []simDevice
}

// NewManager creates a rack of max simulated channels offering the given
// serial ports. With no ports, two fake ports are offered.
func NewManager(max int, ports []string) *Manager {
	if max <= 0 {
		max = controller.DefaultMaxDevices
	}
	if len(ports) == 0 {
		ports = []string{"/dev/ttyUSB0", "/dev/ttyUSB1"}
	}
	m := &Manager{
		ports:   ports,
		devices: make([]simDevice, max),
	}
	for i := range m.devices {
		m.devices[i] = simDevice{
			tag:   controller.DefaultTag(i),
			valve: controller.ValveRegulation,
			ramp:  controller.Ramp{Active: false, TimeS: 1.0},
		}
	}
	return m
}

// Ports returns the serial ports the rack offers.
func (m *Manager) Ports() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.ports...)
}

// Connect opens the given serial port. Any previous connection is released
// first, like a real controller re-opening the bus.
func (m *Manager) Connect(port string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	known := false
	for _, p := range m.ports {
		if p == port {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("%w: %q", ErrUnknownPort, port)
	}

	m.disconnectLocked()
	m.openPort = port
	m.connected = true
	return nil
}

// Disconnect releases the serial port and deactivates every channel.
// Idempotent: disconnecting while disconnected succeeds.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disconnectLocked()
}

func (m *Manager) disconnectLocked() {
	m.connected = false
	m.openPort = ""
	for i := range m.devices {
		m.deactivateLocked(&m.devices[i])
	}
}

// Toggle switches channel idx on or off.
func (m *Manager) Toggle(idx int, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, err := m.deviceLocked(idx)
	if err != nil {
		return err
	}
	if !active {
		m.deactivateLocked(d)
		return nil
	}
	if !m.connected {
		return ErrNotConnected
	}

	// Activation mirrors instrument bring-up: load the gas table, select
	// the first gas, park the valve in regulation with a zero setpoint.
	d.gases = append([]gasSpec(nil), gasTables[idx%len(gasTables)]...)
	d.selectedGas = 0
	d.active = true
	d.valve = controller.ValveRegulation
	d.consigne = 0
	d.mesure = 0
	d.total = 0
	d.hasReading = true
	return nil
}

// deactivateLocked turns a channel off and clears its live readings.
func (m *Manager) deactivateLocked(d *simDevice) {
	d.active = false
	d.consigne = 0
	d.mesure = 0
	d.hasReading = false
	d.valve = controller.ValveRegulation
	d.gases = nil
	d.selectedGas = 0
}

// SetTag relabels channel idx. Allowed even while the channel is off or the
// port disconnected: tags are rack configuration, not instrument state.
func (m *Manager) SetTag(idx int, tag string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, err := m.deviceLocked(idx)
	if err != nil {
		return err
	}
	d.tag = controller.NormalizeTag(tag)
	return nil
}

// SetConsigne sets the setpoint of channel idx, clamped to [0, full scale].
func (m *Manager) SetConsigne(idx int, value float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, err := m.activeDeviceLocked(idx)
	if err != nil {
		return err
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return errors.New("setpoint must be a finite number")
	}
	if value < 0 {
		value = 0
	}
	if fs := d.fullScale(); fs > 0 && value > fs {
		value = fs
	}
	d.consigne = value
	return nil
}

// SetVanne sets the valve mode of channel idx.
func (m *Manager) SetVanne(idx int, mode string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, err := m.activeDeviceLocked(idx)
	if err != nil {
		return err
	}
	if !controller.IsValveMode(mode) {
		return fmt.Errorf("%w: %q", ErrUnknownValve, mode)
	}
	d.valve = mode
	return nil
}

// SetRamp configures ramp behavior of channel idx. A non-positive ramp
// time falls back to one second, like the instrument default.
func (m *Manager) SetRamp(idx int, active bool, timeS float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, err := m.activeDeviceLocked(idx)
	if err != nil {
		return err
	}
	if timeS <= 0 || math.IsNaN(timeS) || math.IsInf(timeS, 0) {
		timeS = 1.0
	}
	d.ramp = controller.Ramp{Active: active, TimeS: timeS}
	return nil
}

// SelectGas selects the active gas of channel idx. Switching gas changes
// the channel's unit and full scale; the setpoint is re-clamped.
func (m *Manager) SelectGas(idx int, gas string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, err := m.activeDeviceLocked(idx)
	if err != nil {
		return err
	}
	for i, g := range d.gases {
		if g.name == gas {
			d.selectedGas = i
			if d.consigne > g.fullScale {
				d.consigne = g.fullScale
			}
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownGas, gas)
}

// ResetTotal zeroes the totalizer of channel idx.
func (m *Manager) ResetTotal(idx int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, err := m.activeDeviceLocked(idx)
	if err != nil {
		return err
	}
	d.total = 0
	return nil
}

// Step advances the simulation by dt seconds: measured flow converges on
// the effective setpoint and the totalizer integrates the flow. An open
// valve reads full scale, a closed one zero, regardless of setpoint.
func (m *Manager) Step(dt float64) {
	if dt <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.devices {
		d := &m.devices[i]
		if !d.active {
			continue
		}

		target := d.consigne
		switch d.valve {
		case controller.ValveOpen:
			target = d.fullScale()
		case controller.ValveClose:
			target = 0
		}

		gap := target - d.mesure
		if d.ramp.Active && d.ramp.TimeS > 0 && d.fullScale() > 0 {
			// Linear ramp: full scale is crossed in TimeS seconds.
			rate := d.fullScale() / d.ramp.TimeS
			step := rate * dt
			if math.Abs(gap) <= step {
				d.mesure = target
			} else if gap > 0 {
				d.mesure += step
			} else {
				d.mesure -= step
			}
		} else {
			// First-order response, settling in a few steps.
			d.mesure += gap * 0.5
			if math.Abs(target-d.mesure) < d.fullScale()*1e-4 {
				d.mesure = target
			}
		}

		// Totalizer integrates flow over time. Units are <unit>·s; real
		// instruments report their own totalizer unit the same way.
		d.total += d.mesure * dt
	}
}

// Snapshot returns the rack state in the wire shape.
func (m *Manager) Snapshot() *controller.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := &controller.Snapshot{
		Connected: m.connected,
		Devices:   make([]controller.Device, len(m.devices)),
	}
	for i := range m.devices {
		d := &m.devices[i]
		dev := controller.Device{
			Index:    i,
			Tag:      d.tag,
			Active:   d.active,
			Consigne: d.consigne,
			Valve:    d.valve,
			Ramp:     d.ramp,
		}
		if d.active {
			dev.Gases = make([]string, len(d.gases))
			for j, g := range d.gases {
				dev.Gases[j] = g.name
			}
		}
		if d.hasReading {
			mesure := d.mesure
			total := d.total
			dev.Mesure = controller.Reading{Value: &mesure, Unit: d.unit()}
			dev.Total = controller.Reading{Value: &total, Unit: d.unit() + "·s"}
		} else {
			dev.Mesure = controller.Reading{Unit: "N/A"}
			dev.Total = controller.Reading{Unit: "N/A"}
		}
		snap.Devices[i] = dev
	}
	return snap
}

// deviceLocked validates idx and returns the channel. Caller holds mu.
func (m *Manager) deviceLocked(idx int) (*simDevice, error) {
	if idx < 0 || idx >= len(m.devices) {
		return nil, fmt.Errorf("%w: %d", ErrIndexRange, idx)
	}
	return &m.devices[idx], nil
}

// activeDeviceLocked validates idx and requires the channel to be on.
func (m *Manager) activeDeviceLocked(idx int) (*simDevice, error) {
	d, err := m.deviceLocked(idx)
	if err != nil {
		return nil, err
	}
	if !d.active {
		return nil, ErrDeviceOff
	}
	return d, nil
}

// MaxDevices returns the channel count of the rack.
func (m *Manager) MaxDevices() int {
	return len(m.devices)
}
