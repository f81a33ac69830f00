package tui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jmraffin/flowdeck/internal/controller"
)

// Placeholder is shown wherever a value is unavailable. An absent reading
// is never rendered as "0.000": zero is a legitimate measurement.
const Placeholder = "—"

// DeviceView is the display projection of one channel. Building it reads
// the snapshot and nothing else, so the same snapshot always renders the
// same grid.
type DeviceView struct {
	Label    string // "CH 01" .. "CH 12"
	Tag      string
	PowerOn  bool
	Consigne string
	Mesure   string
	Total    string
	Valve    string
	// ValveSelector is what the valve picker shows when not open. It is
	// always the regulation label, regardless of the channel's actual
	// valve state: the picker proposes the usual action, the Valve field
	// reports the truth.
	ValveSelector string
	RampActive    bool
	RampTime      string
	Gases         []string
	SelectedGas   string
}

// BuildGrid projects a snapshot into per-channel views.
func BuildGrid(snap *controller.Snapshot) []DeviceView {
	views := make([]DeviceView, len(snap.Devices))
	for i := range snap.Devices {
		views[i] = buildDeviceView(&snap.Devices[i])
	}
	return views
}

func buildDeviceView(d *controller.Device) DeviceView {
	v := DeviceView{
		Label:         fmt.Sprintf("CH %02d", d.Index+1),
		Tag:           d.Tag,
		PowerOn:       d.Active,
		Consigne:      FormatValue(d.Consigne),
		Mesure:        FormatReading(d.Mesure),
		Total:         FormatReading(d.Total),
		Valve:         d.Valve,
		ValveSelector: controller.ValveRegulation,
		RampActive:    d.Ramp.Active,
		RampTime:      FormatValue(d.Ramp.TimeS),
		Gases:         d.Gases,
	}
	if v.Valve == "" {
		v.Valve = Placeholder
	}
	if len(d.Gases) > 0 {
		v.SelectedGas = d.Gases[0]
	}
	return v
}

// FormatValue renders a plain number with three decimals, or the
// placeholder for non-finite values.
func FormatValue(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Placeholder
	}
	return fmt.Sprintf("%.3f", v)
}

// FormatReading renders a reading as "<unit> <value>", the placeholder
// standing in for an absent or non-finite value. Readings without a usable
// unit render the value (or placeholder) alone.
func FormatReading(r controller.Reading) string {
	value := Placeholder
	if r.Valid() {
		value = FormatValue(*r.Value)
	}
	if r.Unit == "" || r.Unit == "N/A" {
		return value
	}
	return r.Unit + " " + value
}

// gridColumns is how many channel cards sit on one row for a terminal
// width. At least one, at most four.
func gridColumns(width int) int {
	cols := width / (CardWidth + 4)
	if cols < 1 {
		return 1
	}
	if cols > 4 {
		return 4
	}
	return cols
}

// renderCard renders one channel card.
func renderCard(s Styles, v DeviceView, focused bool) string {
	var b strings.Builder

	power := s.ChannelOff.Render("OFF")
	if v.PowerOn {
		power = s.ChannelOn.Render("ON")
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		s.FieldValue.Bold(true).Render(v.Label),
		"  ",
		s.Subtitle.Render(v.Tag),
		"  ",
		power,
	))
	b.WriteString("\n")

	writeField := func(label, value string) {
		b.WriteString(s.FieldLabel.Render(fmt.Sprintf("%-9s", label)))
		b.WriteString(s.FieldValue.Render(value))
		b.WriteString("\n")
	}

	writeField("Consigne", v.Consigne)
	writeField("Mesure", v.Mesure)
	writeField("Total", v.Total)
	writeField("Vanne", v.Valve)

	ramp := "off"
	if v.RampActive {
		ramp = v.RampTime + " s"
	}
	writeField("Rampe", ramp)

	gas := Placeholder
	if v.SelectedGas != "" {
		gas = v.SelectedGas
	}
	writeField("Gaz", gas)

	card := s.Card
	if focused {
		card = s.CardFocused
	} else if !v.PowerOn {
		card = s.CardInactive
	}
	return card.Render(strings.TrimRight(b.String(), "\n"))
}

// renderGrid lays the channel cards out in rows.
func renderGrid(s Styles, views []DeviceView, cursor int, width int) string {
	cols := gridColumns(width)

	var rows []string
	for start := 0; start < len(views); start += cols {
		end := start + cols
		if end > len(views) {
			end = len(views)
		}
		cards := make([]string, 0, end-start)
		for i := start; i < end; i++ {
			cards = append(cards, renderCard(s, views[i], i == cursor))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cards...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}
