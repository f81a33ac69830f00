package tui

import (
	"errors"
	"testing"

	"github.com/jmraffin/flowdeck/internal/console"
	"github.com/jmraffin/flowdeck/internal/controller"
	"github.com/jmraffin/flowdeck/internal/settings"
)

// fakeCommandClient records tag writes and answers every command with a
// fixed snapshot.
type fakeCommandClient struct {
	snap *controller.Snapshot
	err  error
	tags map[int]string
}

func newFakeCommandClient(max int) *fakeCommandClient {
	return &fakeCommandClient{
		snap: controller.EmptySnapshot(max),
		tags: make(map[int]string),
	}
}

func (f *fakeCommandClient) Connect(port string) (*controller.Snapshot, error) {
	return f.snap, f.err
}
func (f *fakeCommandClient) Disconnect() (*controller.Snapshot, error) { return f.snap, f.err }
func (f *fakeCommandClient) ToggleDevice(index int, active bool) (*controller.Snapshot, error) {
	return f.snap, f.err
}
func (f *fakeCommandClient) SetTag(index int, tag string) error {
	if f.err != nil {
		return f.err
	}
	f.tags[index] = tag
	return nil
}
func (f *fakeCommandClient) SetConsigne(index int, value float64) (*controller.Snapshot, error) {
	return f.snap, f.err
}
func (f *fakeCommandClient) SetVanne(index int, mode string) (*controller.Snapshot, error) {
	return f.snap, f.err
}
func (f *fakeCommandClient) SetRamp(index int, active bool, timeS float64) (*controller.Snapshot, error) {
	return f.snap, f.err
}
func (f *fakeCommandClient) SelectGas(index int, gas string) (*controller.Snapshot, error) {
	return f.snap, f.err
}
func (f *fakeCommandClient) ResetTotal(index int) (*controller.Snapshot, error) {
	return f.snap, f.err
}

func newTestAppModel(t *testing.T, fake *fakeCommandClient, max int) AppModel {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cell := console.NewCell(max)
	dispatcher := console.NewDispatcher(fake, cell)
	updates := make(chan *controller.Snapshot)
	cfg := settings.NewSettings()
	cfg.NormalizeTags(max)

	client := controller.NewClient("127.0.0.1", 9327)
	return NewAppModel(client, cell, dispatcher, updates, cfg)
}

func TestRenameSuccessPersistsTag(t *testing.T) {
	fake := newFakeCommandClient(3)
	m := newTestAppModel(t, fake, 3)

	updated, cmd := m.Update(renameDoneMsg{index: 1, tag: "AR"})
	app := updated.(AppModel)

	if app.Settings.Tags[1] != "AR______" {
		t.Errorf("Settings.Tags[1] = %q, want the canonical tag", app.Settings.Tags[1])
	}
	if cmd == nil {
		t.Fatal("rename success should schedule a registry save")
	}

	// Run the save and check the tag survives a reload
	msg := cmd()
	synced, ok := msg.(tagsSyncedMsg)
	if !ok {
		t.Fatalf("save produced %T, want tagsSyncedMsg", msg)
	}
	if synced.err != nil {
		t.Fatalf("save error = %v", synced.err)
	}

	loaded, err := settings.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Tags[1] != "AR______" {
		t.Errorf("reloaded Tags[1] = %q, want AR______", loaded.Tags[1])
	}
}

func TestRenameFailureDoesNotPersist(t *testing.T) {
	fake := newFakeCommandClient(3)
	m := newTestAppModel(t, fake, 3)
	before := m.Settings.Tags[1]

	updated, _ := m.Update(renameDoneMsg{
		index: 1,
		tag:   "AR",
		err:   controller.NewConnectionError("controller unreachable", nil),
	})
	app := updated.(AppModel)

	if app.Settings.Tags[1] != before {
		t.Errorf("failed rename changed the registry: %q", app.Settings.Tags[1])
	}
	if app.GridModel.LastError == nil {
		t.Error("the rename error should surface on the grid")
	}
}

func TestConnectSeedsSavedTags(t *testing.T) {
	fake := newFakeCommandClient(3)
	m := newTestAppModel(t, fake, 3)
	m.Settings.Tags = []string{"ARGON___", "HELIUM__", "MFC00003"}

	updated, cmd := m.Update(connectDoneMsg{})
	app := updated.(AppModel)

	if app.CurrentScreen != ScreenGrid {
		t.Fatalf("CurrentScreen = %v, want grid", app.CurrentScreen)
	}
	if cmd == nil {
		t.Fatal("connect should schedule the saved-tags push")
	}

	msg := cmd()
	synced, ok := msg.(tagsSyncedMsg)
	if !ok {
		t.Fatalf("seed produced %T, want tagsSyncedMsg", msg)
	}
	if synced.err != nil {
		t.Fatalf("seed error = %v", synced.err)
	}

	for i, want := range []string{"ARGON___", "HELIUM__", "MFC00003"} {
		if fake.tags[i] != want {
			t.Errorf("controller tag[%d] = %q, want %q", i, fake.tags[i], want)
		}
	}
	// The dispatcher's optimistic write makes the tags visible before the
	// next poll
	if got := app.Cell.Current().Devices[0].Tag; got != "ARGON___" {
		t.Errorf("cell tag = %q, want the seeded value", got)
	}
}

func TestConnectFailureDoesNotSeed(t *testing.T) {
	fake := newFakeCommandClient(3)
	m := newTestAppModel(t, fake, 3)

	updated, cmd := m.Update(connectDoneMsg{err: errors.New("port busy")})
	app := updated.(AppModel)

	if app.CurrentScreen != ScreenConnect {
		t.Error("failed connect should stay on the connect screen")
	}
	if cmd != nil {
		t.Error("failed connect must not push tags")
	}
	if len(fake.tags) != 0 {
		t.Errorf("tags reached the controller: %v", fake.tags)
	}
}
