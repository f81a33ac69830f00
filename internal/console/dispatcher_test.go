package console

import (
	"math"
	"reflect"
	"testing"

	"github.com/jmraffin/flowdeck/internal/controller"
)

// fakeClient is a scripted CommandClient. Each call returns the configured
// snapshot or error and records the operation.
type fakeClient struct {
	snap *controller.Snapshot
	err  error

	calls []string
	tags  map[int]string
}

func newFakeClient(snap *controller.Snapshot) *fakeClient {
	return &fakeClient{snap: snap, tags: make(map[int]string)}
}

func (f *fakeClient) record(op string) (*controller.Snapshot, error) {
	f.calls = append(f.calls, op)
	if f.err != nil {
		return nil, f.err
	}
	return f.snap, nil
}

func (f *fakeClient) Connect(port string) (*controller.Snapshot, error) {
	return f.record("connect:" + port)
}
func (f *fakeClient) Disconnect() (*controller.Snapshot, error) { return f.record("disconnect") }
func (f *fakeClient) ToggleDevice(index int, active bool) (*controller.Snapshot, error) {
	return f.record("toggle")
}
func (f *fakeClient) SetTag(index int, tag string) error {
	f.calls = append(f.calls, "set_tag")
	f.tags[index] = tag
	return f.err
}
func (f *fakeClient) SetConsigne(index int, value float64) (*controller.Snapshot, error) {
	return f.record("set_consigne")
}
func (f *fakeClient) SetVanne(index int, mode string) (*controller.Snapshot, error) {
	return f.record("set_vanne")
}
func (f *fakeClient) SetRamp(index int, active bool, timeS float64) (*controller.Snapshot, error) {
	return f.record("set_ramp")
}
func (f *fakeClient) SelectGas(index int, gas string) (*controller.Snapshot, error) {
	return f.record("select_gas")
}
func (f *fakeClient) ResetTotal(index int) (*controller.Snapshot, error) {
	return f.record("reset_total")
}

// respSnapshot builds the authoritative answer the fake controller returns.
func respSnapshot(max int) *controller.Snapshot {
	snap := controller.EmptySnapshot(max)
	snap.Connected = true
	snap.Devices[0].Active = true
	snap.Devices[0].Consigne = 7.5
	snap.Devices[0].Valve = controller.ValveRegulation
	snap.Devices[0].Gases = []string{"N2", "Ar"}
	return snap
}

func TestDispatcherSuccessReplacesWholeSnapshot(t *testing.T) {
	cell := NewCell(3)
	fake := newFakeClient(respSnapshot(3))
	d := NewDispatcher(fake, cell)

	if err := d.Toggle(0, true); err != nil {
		t.Fatalf("Toggle() error = %v", err)
	}

	snap := cell.Current()
	if !snap.Connected {
		t.Error("cell should carry the response's Connected flag")
	}
	// The whole snapshot is adopted, including fields the command did not
	// touch.
	if snap.Devices[0].Consigne != 7.5 {
		t.Errorf("Consigne = %v, want the controller's value", snap.Devices[0].Consigne)
	}
}

func TestDispatcherFailureLeavesStateUntouched(t *testing.T) {
	cell := NewCell(3)
	fake := newFakeClient(respSnapshot(3))
	fake.err = controller.NewCommandRejectedError("device is off", 409)
	d := NewDispatcher(fake, cell)

	before := cell.Current()
	if err := d.SetConsigne(0, 5); err == nil {
		t.Fatal("SetConsigne() should surface the rejection")
	}
	after := cell.Current()

	if !reflect.DeepEqual(before, after) {
		t.Error("failed command must not change the snapshot")
	}
}

func TestDispatcherValidatesAtBoundary(t *testing.T) {
	cell := NewCell(3)
	fake := newFakeClient(respSnapshot(3))
	d := NewDispatcher(fake, cell)

	tests := []struct {
		name string
		call func() error
	}{
		{"index below range", func() error { return d.Toggle(-1, true) }},
		{"index above range", func() error { return d.Toggle(3, true) }},
		{"NaN setpoint", func() error { return d.SetConsigne(0, math.NaN()) }},
		{"Inf setpoint", func() error { return d.SetConsigne(0, math.Inf(1)) }},
		{"unknown valve mode", func() error { return d.SetValve(0, "Open") }},
		{"active ramp without duration", func() error { return d.SetRamp(0, true, 0) }},
		{"NaN ramp time", func() error { return d.SetRamp(0, true, math.NaN()) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			if err == nil {
				t.Fatal("expected rejection")
			}
			if !controller.IsCommandRejected(err) {
				t.Errorf("error should be a rejection, got %v", err)
			}
		})
	}

	// None of the rejected commands may have reached the controller
	if len(fake.calls) != 0 {
		t.Errorf("rejected commands reached the client: %v", fake.calls)
	}
}

func TestDispatcherSelectGasChecksSnapshot(t *testing.T) {
	cell := NewCell(3)
	fake := newFakeClient(respSnapshot(3))
	d := NewDispatcher(fake, cell)

	// Seed the cell so channel 0 advertises N2 and Ar
	cell.Replace(respSnapshot(3))

	if err := d.SelectGas(0, "He"); err == nil || !controller.IsCommandRejected(err) {
		t.Errorf("unknown gas should be rejected locally, got %v", err)
	}
	if len(fake.calls) != 0 {
		t.Error("rejected gas selection reached the client")
	}

	if err := d.SelectGas(0, "Ar"); err != nil {
		t.Errorf("SelectGas(Ar) error = %v", err)
	}
	if len(fake.calls) != 1 || fake.calls[0] != "select_gas" {
		t.Errorf("calls = %v", fake.calls)
	}
}

func TestDispatcherConnectEmptyPortIsNoOp(t *testing.T) {
	cell := NewCell(3)
	fake := newFakeClient(respSnapshot(3))
	d := NewDispatcher(fake, cell)

	if err := d.Connect(""); err != nil {
		t.Errorf("Connect(\"\") error = %v, want nil", err)
	}
	if len(fake.calls) != 0 {
		t.Errorf("empty port should not reach the client: %v", fake.calls)
	}
}

func TestDispatcherDisconnectIdempotent(t *testing.T) {
	cell := NewCell(3)
	resp := controller.EmptySnapshot(3)
	fake := newFakeClient(resp)
	d := NewDispatcher(fake, cell)

	if err := d.Disconnect(); err != nil {
		t.Fatalf("first Disconnect() error = %v", err)
	}
	if err := d.Disconnect(); err != nil {
		t.Fatalf("second Disconnect() error = %v", err)
	}
	if cell.Connected() {
		t.Error("Connected should stay false after double disconnect")
	}
}

func TestDispatcherRenameIsOptimistic(t *testing.T) {
	cell := NewCell(3)
	fake := newFakeClient(respSnapshot(3))
	d := NewDispatcher(fake, cell)

	if err := d.Rename(1, "AR"); err != nil {
		t.Fatalf("Rename() error = %v", err)
	}

	// The cell shows the normalized tag immediately
	if got := cell.Current().Devices[1].Tag; got != "AR______" {
		t.Errorf("Devices[1].Tag = %q, want AR______", got)
	}
	// The client received the same normalized form
	if fake.tags[1] != "AR______" {
		t.Errorf("client saw tag %q", fake.tags[1])
	}
}

func TestDispatcherRenameFailureKeepsOverrideAndSurfacesError(t *testing.T) {
	cell := NewCell(3)
	fake := newFakeClient(respSnapshot(3))
	fake.err = controller.NewConnectionError("controller unreachable", nil)
	d := NewDispatcher(fake, cell)

	err := d.Rename(1, "AR")
	if err == nil {
		t.Fatal("Rename() should surface the client error")
	}

	// The optimistic write already happened; the next poll will repair it.
	if got := cell.Current().Devices[1].Tag; got != "AR______" {
		t.Errorf("Devices[1].Tag = %q, want optimistic value", got)
	}
}
