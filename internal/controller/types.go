package controller

import (
	"fmt"
	"math"
)

const (
	// DefaultMaxDevices is the number of channels the console manages when
	// the controller does not say otherwise. Matches the SI12 rack size.
	DefaultMaxDevices = 12

	// TagWidth is the fixed display width of a channel tag. Tags shorter
	// than this are padded on the right with TagPad; longer ones are cut.
	TagWidth = 8

	// TagPad is the padding rune used to fill short tags.
	TagPad = '_'
)

// Valve mode labels advertised by the controller. The labels are part of
// the wire contract and must be sent verbatim.
const (
	ValveRegulation = "Régulation"
	ValveOpen       = "Ouverture"
	ValveClose      = "Fermeture"
)

// ValveModes returns the valve mode labels the controller accepts, in
// display order.
func ValveModes() []string {
	return []string{ValveRegulation, ValveOpen, ValveClose}
}

// IsValveMode reports whether mode is one of the controller's valve labels.
func IsValveMode(mode string) bool {
	switch mode {
	case ValveRegulation, ValveOpen, ValveClose:
		return true
	}
	return false
}

// Reading is a measured quantity paired with its display unit. Value is nil
// when the controller has no current reading for the channel; nil never
// means zero.
type Reading struct {
	Value *float64 `json:"value"`
	Unit  string   `json:"unit"`
}

// Valid reports whether the reading carries a finite numeric value.
func (r Reading) Valid() bool {
	return r.Value != nil && !math.IsNaN(*r.Value) && !math.IsInf(*r.Value, 0)
}

// Ramp describes the ramp-to-setpoint behavior of a channel.
type Ramp struct {
	Active bool    `json:"active"`
	TimeS  float64 `json:"time_s"`
}

// Device is the reported state of one physical channel. Channels are
// identified by their positional index, stable for the session.
type Device struct {
	Index    int      `json:"index"`
	Tag      string   `json:"tag"`
	Active   bool     `json:"active"`
	Consigne float64  `json:"consigne"`
	Mesure   Reading  `json:"mesure"`
	Total    Reading  `json:"total"`
	Valve    string   `json:"valve"`
	Ramp     Ramp     `json:"ramp"`
	Gases    []string `json:"gases"`
}

// HasGas reports whether gas is one of the channel's configured gases.
func (d *Device) HasGas(gas string) bool {
	for _, g := range d.Gases {
		if g == gas {
			return true
		}
	}
	return false
}

// Snapshot is a full, point-in-time copy of controller and device state.
// It is replaced wholesale on every successful controller interaction and
// never mutated in place.
type Snapshot struct {
	Connected bool     `json:"connected"`
	Devices   []Device `json:"devices"`
}

// AppInfo is the controller's application metadata.
type AppInfo struct {
	Name     string      `json:"name"`
	Version  string      `json:"version"`
	Max      int         `json:"max"`
	Settings AppSettings `json:"settings"`
}

// AppSettings holds the controller-persisted UI settings.
type AppSettings struct {
	Theme string `json:"theme"`
}

// NormalizeTag cuts or pads a label to exactly TagWidth runes, padding on
// the right with TagPad. It is idempotent: normalizing an already
// normalized tag returns it unchanged. The controller applies the same
// rule, which is what lets the console's optimistic tag edit converge.
func NormalizeTag(tag string) string {
	runes := []rune(tag)
	if len(runes) > TagWidth {
		runes = runes[:TagWidth]
	}
	for len(runes) < TagWidth {
		runes = append(runes, TagPad)
	}
	return string(runes)
}

// DefaultTag returns the factory label for channel index (0-based), e.g.
// "MFC00001" for the first channel.
func DefaultTag(index int) string {
	return NormalizeTag(fmt.Sprintf("MFC%05d", index+1))
}

// Normalize forces the snapshot to exactly max devices. Short device lists
// are padded with inactive placeholder channels, long ones are truncated,
// and per-device index and tag fields are repaired. The console relies on
// the device list never growing or shrinking after boot.
func (s *Snapshot) Normalize(max int) {
	if max <= 0 {
		max = DefaultMaxDevices
	}
	if len(s.Devices) > max {
		s.Devices = s.Devices[:max]
	}
	for len(s.Devices) < max {
		s.Devices = append(s.Devices, Device{})
	}
	for i := range s.Devices {
		d := &s.Devices[i]
		d.Index = i
		if d.Tag == "" {
			d.Tag = DefaultTag(i)
		} else {
			d.Tag = NormalizeTag(d.Tag)
		}
	}
}

// Clone returns a deep copy of the snapshot. Readings share no pointers
// with the original, so callers can hold a clone across later replacements.
func (s *Snapshot) Clone() *Snapshot {
	out := &Snapshot{
		Connected: s.Connected,
		Devices:   make([]Device, len(s.Devices)),
	}
	for i, d := range s.Devices {
		cd := d
		cd.Mesure = cloneReading(d.Mesure)
		cd.Total = cloneReading(d.Total)
		if d.Gases != nil {
			cd.Gases = append([]string(nil), d.Gases...)
		}
		out.Devices[i] = cd
	}
	return out
}

func cloneReading(r Reading) Reading {
	if r.Value == nil {
		return r
	}
	v := *r.Value
	return Reading{Value: &v, Unit: r.Unit}
}

// EmptySnapshot returns a disconnected snapshot with max placeholder
// channels, used as the console's state before the first poll lands.
func EmptySnapshot(max int) *Snapshot {
	s := &Snapshot{}
	s.Normalize(max)
	return s
}
