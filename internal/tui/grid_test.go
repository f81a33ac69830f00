package tui

import (
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/jmraffin/flowdeck/internal/controller"
)

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0.000"},
		{42.5, "42.500"},
		{1.23456, "1.235"},
		{-3, "-3.000"},
		{math.NaN(), Placeholder},
		{math.Inf(1), Placeholder},
	}
	for _, tt := range tests {
		if got := FormatValue(tt.in); got != tt.want {
			t.Errorf("FormatValue(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatReading(t *testing.T) {
	v := 41.98
	nan := math.NaN()

	tests := []struct {
		name string
		r    controller.Reading
		want string
	}{
		{"unit leads the value", controller.Reading{Value: &v, Unit: "sccm"}, "sccm 41.980"},
		{"value without unit", controller.Reading{Value: &v}, "41.980"},
		{"N/A unit omitted", controller.Reading{Value: &v, Unit: "N/A"}, "41.980"},
		{"absent value keeps unit", controller.Reading{Unit: "sccm"}, "sccm " + Placeholder},
		{"nan value renders placeholder", controller.Reading{Value: &nan, Unit: "sccm"}, "sccm " + Placeholder},
		{"absent value without unit", controller.Reading{}, Placeholder},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatReading(tt.r); got != tt.want {
				t.Errorf("FormatReading() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildGridAbsentReadingNeverZero(t *testing.T) {
	snap := controller.EmptySnapshot(2)
	views := BuildGrid(snap)

	if views[0].Mesure != Placeholder {
		t.Errorf("Mesure = %q, want the placeholder", views[0].Mesure)
	}
	if views[0].Total != Placeholder {
		t.Errorf("Total = %q, want the placeholder", views[0].Total)
	}
	if strings.Contains(views[0].Mesure, "0.000") {
		t.Error("an absent reading must never render as zero")
	}
}

func TestBuildGridLabelsAndFields(t *testing.T) {
	v := 41.98
	tot := 1204.2
	snap := &controller.Snapshot{
		Connected: true,
		Devices: []controller.Device{
			{
				Index:    0,
				Tag:      "ARGON___",
				Active:   true,
				Consigne: 42.5,
				Mesure:   controller.Reading{Value: &v, Unit: "sccm"},
				Total:    controller.Reading{Value: &tot, Unit: "sccm·s"},
				Valve:    controller.ValveClose,
				Ramp:     controller.Ramp{Active: true, TimeS: 10},
				Gases:    []string{"Ar", "N2"},
			},
			{Index: 1, Tag: "MFC00002"},
		},
	}

	views := BuildGrid(snap)
	if len(views) != 2 {
		t.Fatalf("len(views) = %d", len(views))
	}

	on := views[0]
	if on.Label != "CH 01" {
		t.Errorf("Label = %q, want CH 01", on.Label)
	}
	if !on.PowerOn {
		t.Error("PowerOn = false")
	}
	if on.Consigne != "42.500" {
		t.Errorf("Consigne = %q", on.Consigne)
	}
	if on.Mesure != "sccm 41.980" {
		t.Errorf("Mesure = %q", on.Mesure)
	}
	if on.Valve != controller.ValveClose {
		t.Errorf("Valve = %q, want the channel's actual state", on.Valve)
	}
	if !on.RampActive || on.RampTime != "10.000" {
		t.Errorf("Ramp = %v %q", on.RampActive, on.RampTime)
	}
	if on.SelectedGas != "Ar" {
		t.Errorf("SelectedGas = %q", on.SelectedGas)
	}

	off := views[1]
	if off.Label != "CH 02" {
		t.Errorf("Label = %q, want CH 02", off.Label)
	}
	if off.PowerOn {
		t.Error("PowerOn = true for off channel")
	}
	if off.SelectedGas != "" {
		t.Errorf("SelectedGas = %q for channel without gases", off.SelectedGas)
	}
}

func TestBuildGridValveSelectorAlwaysRegulation(t *testing.T) {
	snap := &controller.Snapshot{
		Devices: []controller.Device{
			{Index: 0, Valve: controller.ValveOpen},
			{Index: 1, Valve: controller.ValveClose},
			{Index: 2, Valve: controller.ValveRegulation},
		},
	}
	for i, v := range BuildGrid(snap) {
		if v.ValveSelector != controller.ValveRegulation {
			t.Errorf("views[%d].ValveSelector = %q, want regulation", i, v.ValveSelector)
		}
	}
}

func TestBuildGridEmptyValveShowsPlaceholder(t *testing.T) {
	snap := &controller.Snapshot{Devices: []controller.Device{{Index: 0}}}
	if got := BuildGrid(snap)[0].Valve; got != Placeholder {
		t.Errorf("Valve = %q, want placeholder", got)
	}
}

func TestBuildGridIsDeterministic(t *testing.T) {
	v := 12.5
	snap := &controller.Snapshot{
		Connected: true,
		Devices: []controller.Device{
			{
				Index:  0,
				Tag:    "ARGON___",
				Active: true,
				Mesure: controller.Reading{Value: &v, Unit: "sccm"},
				Gases:  []string{"Ar"},
			},
		},
	}

	first := BuildGrid(snap)
	second := BuildGrid(snap)
	if !reflect.DeepEqual(first, second) {
		t.Error("the same snapshot must always project to the same grid")
	}
}

func TestGridColumns(t *testing.T) {
	tests := []struct {
		width int
		want  int
	}{
		{0, 1},
		{40, 1},
		{60, 2},
		{90, 3},
		{120, 4},
		{400, 4},
	}
	for _, tt := range tests {
		if got := gridColumns(tt.width); got != tt.want {
			t.Errorf("gridColumns(%d) = %d, want %d", tt.width, got, tt.want)
		}
	}
}

func TestRenderCardShowsFields(t *testing.T) {
	s := NewStyles(DarkTheme)
	v := DeviceView{
		Label:    "CH 01",
		Tag:      "ARGON___",
		PowerOn:  true,
		Consigne: "42.500",
		Mesure:   "sccm 41.980",
		Total:    Placeholder,
		Valve:    controller.ValveRegulation,
		RampTime: "1.000",
	}

	out := renderCard(s, v, false)
	for _, want := range []string{"CH 01", "ARGON___", "ON", "42.500", "sccm 41.980", Placeholder} {
		if !strings.Contains(out, want) {
			t.Errorf("card missing %q", want)
		}
	}
	if !strings.Contains(out, "off") {
		t.Error("inactive ramp should render as off")
	}
}
