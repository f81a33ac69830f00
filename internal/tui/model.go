package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jmraffin/flowdeck/internal/console"
	"github.com/jmraffin/flowdeck/internal/controller"
	"github.com/jmraffin/flowdeck/internal/logging"
	"github.com/jmraffin/flowdeck/internal/settings"
)

// Screen represents the current active screen in the application
type Screen string

const (
	ScreenConnect Screen = "connect"
	ScreenGrid    Screen = "grid"
)

// Messages for async operations
type snapshotMsg struct {
	snap *controller.Snapshot
}

type connectDoneMsg struct {
	err error
}

type cmdDoneMsg struct {
	op  string
	err error
}

// renameDoneMsg carries the outcome of a channel relabel. Unlike the other
// commands it keeps the index and tag, so the app model can persist the new
// tag in the settings registry.
type renameDoneMsg struct {
	index int
	tag   string
	err   error
}

// tagsSyncedMsg reports a background tag synchronization: saving the
// registry after a rename, or pushing saved tags after a connect.
type tagsSyncedMsg struct {
	op  string
	err error
}

type themeDoneMsg struct {
	err error
}

// editMode is the grid's input mode. Navigation is the default; the other
// modes capture keys for one channel until applied or canceled.
type editMode int

const (
	modeNav editMode = iota
	modeTag
	modeConsigne
	modeRamp
	modeValve
	modeGas
)

// gridKeyMap defines key bindings for the grid screen
type gridKeyMap struct {
	Up         key.Binding
	Down       key.Binding
	Left       key.Binding
	Right      key.Binding
	Toggle     key.Binding
	Tag        key.Binding
	Consigne   key.Binding
	Ramp       key.Binding
	Valve      key.Binding
	Gas        key.Binding
	ResetTotal key.Binding
	Theme      key.Binding
	Disconnect key.Binding
	Quit       key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k gridKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.Consigne, k.Valve, k.Tag, k.Disconnect, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k gridKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Left, k.Right},
		{k.Toggle, k.Tag, k.Consigne, k.Ramp},
		{k.Valve, k.Gas, k.ResetTotal, k.Theme},
		{k.Disconnect, k.Quit},
	}
}

func newGridKeyMap() gridKeyMap {
	return gridKeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Left: key.NewBinding(
			key.WithKeys("left", "h"),
			key.WithHelp("←/h", "left"),
		),
		Right: key.NewBinding(
			key.WithKeys("right", "l"),
			key.WithHelp("→/l", "right"),
		),
		Toggle: key.NewBinding(
			key.WithKeys(" ", "o"),
			key.WithHelp("space", "on/off"),
		),
		Tag: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "tag"),
		),
		Consigne: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "consigne"),
		),
		Ramp: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "ramp"),
		),
		Valve: key.NewBinding(
			key.WithKeys("v"),
			key.WithHelp("v", "valve"),
		),
		Gas: key.NewBinding(
			key.WithKeys("g"),
			key.WithHelp("g", "gas"),
		),
		ResetTotal: key.NewBinding(
			key.WithKeys("z"),
			key.WithHelp("z", "reset total"),
		),
		Theme: key.NewBinding(
			key.WithKeys("T"),
			key.WithHelp("T", "theme"),
		),
		Disconnect: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "disconnect"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "quit"),
		),
	}
}

// GridModel is the channel grid screen.
type GridModel struct {
	Dispatcher *console.Dispatcher

	Snap  *controller.Snapshot
	Views []DeviceView

	Cursor int
	Mode   editMode

	Input        textinput.Model
	Picker       []string
	PickerCursor int

	Busy      bool
	LastError error

	// DisconnectRequested is set when the operator asked to release the
	// port; the app model reads and clears it after the command lands.
	DisconnectRequested bool

	Width  int
	Height int

	Help help.Model
	Keys gridKeyMap
}

// NewGridModel creates the grid screen over dispatcher, seeded with snap.
func NewGridModel(dispatcher *console.Dispatcher, snap *controller.Snapshot) GridModel {
	input := textinput.New()
	input.CharLimit = 32
	input.Width = 24

	return GridModel{
		Dispatcher: dispatcher,
		Snap:       snap,
		Views:      BuildGrid(snap),
		Input:      input,
		Help:       help.New(),
		Keys:       newGridKeyMap(),
	}
}

// SetSnapshot folds a fresh snapshot into the grid.
func (m *GridModel) SetSnapshot(snap *controller.Snapshot) {
	m.Snap = snap
	m.Views = BuildGrid(snap)
	if m.Cursor >= len(m.Views) && len(m.Views) > 0 {
		m.Cursor = len(m.Views) - 1
	}
}

// dispatch runs one dispatcher call off the update loop.
func (m *GridModel) dispatch(op string, call func() error) tea.Cmd {
	m.Busy = true
	return func() tea.Msg {
		return cmdDoneMsg{op: op, err: call()}
	}
}

// Update handles messages for the grid screen.
func (m GridModel) Update(msg tea.Msg) (GridModel, tea.Cmd) {
	switch msg := msg.(type) {
	case snapshotMsg:
		m.SetSnapshot(msg.snap)
		return m, nil

	case cmdDoneMsg:
		m.Busy = false
		m.LastError = msg.err
		return m, nil

	case renameDoneMsg:
		m.Busy = false
		m.LastError = msg.err
		return m, nil

	case tea.KeyMsg:
		switch m.Mode {
		case modeNav:
			return m.updateNav(msg)
		case modeTag, modeConsigne, modeRamp:
			return m.updateInput(msg)
		case modeValve, modeGas:
			return m.updatePicker(msg)
		}
	}

	return m, nil
}

// updateNav handles keys in navigation mode.
func (m GridModel) updateNav(msg tea.KeyMsg) (GridModel, tea.Cmd) {
	cols := gridColumns(m.Width)
	idx := m.Cursor

	switch {
	case key.Matches(msg, m.Keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.Keys.Up):
		if m.Cursor-cols >= 0 {
			m.Cursor -= cols
		}

	case key.Matches(msg, m.Keys.Down):
		if m.Cursor+cols < len(m.Views) {
			m.Cursor += cols
		}

	case key.Matches(msg, m.Keys.Left):
		if m.Cursor > 0 {
			m.Cursor--
		}

	case key.Matches(msg, m.Keys.Right):
		if m.Cursor < len(m.Views)-1 {
			m.Cursor++
		}

	case key.Matches(msg, m.Keys.Toggle):
		active := !m.Views[idx].PowerOn
		return m, m.dispatch("toggle", func() error {
			return m.Dispatcher.Toggle(idx, active)
		})

	case key.Matches(msg, m.Keys.Tag):
		m.Mode = modeTag
		m.Input.Placeholder = "new tag"
		m.Input.SetValue(strings.TrimRight(m.Views[idx].Tag, string(controller.TagPad)))
		m.Input.CursorEnd()
		m.Input.Focus()

	case key.Matches(msg, m.Keys.Consigne):
		m.Mode = modeConsigne
		m.Input.Placeholder = "setpoint"
		m.Input.SetValue("")
		m.Input.Focus()

	case key.Matches(msg, m.Keys.Ramp):
		m.Mode = modeRamp
		m.Input.Placeholder = "ramp seconds (empty = off)"
		m.Input.SetValue("")
		m.Input.Focus()

	case key.Matches(msg, m.Keys.Valve):
		m.Mode = modeValve
		m.Picker = controller.ValveModes()
		// The picker always opens on the regulation entry, whatever the
		// channel's current valve state.
		m.PickerCursor = 0

	case key.Matches(msg, m.Keys.Gas):
		if len(m.Views[idx].Gases) == 0 {
			return m, nil
		}
		m.Mode = modeGas
		m.Picker = m.Views[idx].Gases
		m.PickerCursor = 0

	case key.Matches(msg, m.Keys.ResetTotal):
		return m, m.dispatch("reset_total", func() error {
			return m.Dispatcher.ResetTotal(idx)
		})

	case key.Matches(msg, m.Keys.Disconnect):
		m.DisconnectRequested = true
		return m, m.dispatch("disconnect", func() error {
			return m.Dispatcher.Disconnect()
		})
	}

	return m, nil
}

// updateInput handles keys while a text editor is open.
func (m GridModel) updateInput(msg tea.KeyMsg) (GridModel, tea.Cmd) {
	idx := m.Cursor

	switch msg.String() {
	case "esc":
		m.Mode = modeNav
		m.Input.Blur()
		return m, nil

	case "enter":
		value := m.Input.Value()
		mode := m.Mode
		m.Mode = modeNav
		m.Input.Blur()

		switch mode {
		case modeTag:
			m.Busy = true
			dispatcher := m.Dispatcher
			return m, func() tea.Msg {
				return renameDoneMsg{index: idx, tag: value, err: dispatcher.Rename(idx, value)}
			}

		case modeConsigne:
			v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
			if err != nil {
				m.LastError = fmt.Errorf("invalid setpoint %q", value)
				return m, nil
			}
			return m, m.dispatch("set_consigne", func() error {
				return m.Dispatcher.SetConsigne(idx, v)
			})

		case modeRamp:
			trimmed := strings.TrimSpace(value)
			if trimmed == "" || trimmed == "0" {
				return m, m.dispatch("set_ramp", func() error {
					return m.Dispatcher.SetRamp(idx, false, 1.0)
				})
			}
			v, err := strconv.ParseFloat(trimmed, 64)
			if err != nil {
				m.LastError = fmt.Errorf("invalid ramp time %q", value)
				return m, nil
			}
			return m, m.dispatch("set_ramp", func() error {
				return m.Dispatcher.SetRamp(idx, true, v)
			})
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.Input, cmd = m.Input.Update(msg)
	return m, cmd
}

// updatePicker handles keys while the valve or gas picker is open.
func (m GridModel) updatePicker(msg tea.KeyMsg) (GridModel, tea.Cmd) {
	idx := m.Cursor

	switch msg.String() {
	case "esc":
		m.Mode = modeNav
		return m, nil

	case "up", "k":
		if m.PickerCursor > 0 {
			m.PickerCursor--
		}

	case "down", "j":
		if m.PickerCursor < len(m.Picker)-1 {
			m.PickerCursor++
		}

	case "enter":
		choice := m.Picker[m.PickerCursor]
		mode := m.Mode
		m.Mode = modeNav

		if mode == modeValve {
			return m, m.dispatch("set_vanne", func() error {
				return m.Dispatcher.SetValve(idx, choice)
			})
		}
		return m, m.dispatch("select_gas", func() error {
			return m.Dispatcher.SelectGas(idx, choice)
		})
	}

	return m, nil
}

// View renders the grid screen content.
func (m GridModel) View(s Styles) string {
	var b strings.Builder

	status := s.StatusBad.Render("● disconnected")
	if m.Snap != nil && m.Snap.Connected {
		status = s.StatusOK.Render("● connected")
	}
	b.WriteString(status)
	if m.Busy {
		b.WriteString(s.Subtitle.Render("  working..."))
	}
	b.WriteString("\n\n")

	b.WriteString(renderGrid(s, m.Views, m.Cursor, m.Width))
	b.WriteString("\n")

	switch m.Mode {
	case modeTag, modeConsigne, modeRamp:
		label := map[editMode]string{
			modeTag:      "Tag",
			modeConsigne: "Consigne",
			modeRamp:     "Rampe",
		}[m.Mode]
		editor := fmt.Sprintf("%s %s — %s: %s", m.Views[m.Cursor].Label, m.Views[m.Cursor].Tag, label, m.Input.View())
		b.WriteString(s.EditorBox.Render(editor))
		b.WriteString("\n")

	case modeValve, modeGas:
		title := "Vanne"
		if m.Mode == modeGas {
			title = "Gaz"
		}
		var p strings.Builder
		p.WriteString(fmt.Sprintf("%s %s — %s\n", m.Views[m.Cursor].Label, m.Views[m.Cursor].Tag, title))
		for i, item := range m.Picker {
			p.WriteString(s.RenderMenuItem(item, i == m.PickerCursor))
			p.WriteString("\n")
		}
		b.WriteString(s.EditorBox.Render(strings.TrimRight(p.String(), "\n")))
		b.WriteString("\n")
	}

	if m.LastError != nil {
		b.WriteString(s.Error.Render("✗ " + m.LastError.Error()))
		b.WriteString("\n")
	}

	return b.String()
}

// AppModel is the top-level coordinator model that manages screen transitions
type AppModel struct {
	CurrentScreen Screen

	ConnectModel ConnectModel
	GridModel    GridModel

	Client     *controller.Client
	Cell       *console.Cell
	Dispatcher *console.Dispatcher
	Updates    <-chan *controller.Snapshot

	Settings *settings.Settings
	Styles   Styles

	LastError error

	Width  int
	Height int
}

// NewAppModel creates the application model starting at the connect screen.
func NewAppModel(client *controller.Client, cell *console.Cell, dispatcher *console.Dispatcher, updates <-chan *controller.Snapshot, cfg *settings.Settings) AppModel {
	w, h := GetTerminalSize()

	return AppModel{
		CurrentScreen: ScreenConnect,
		ConnectModel:  NewConnectModel(client),
		GridModel:     NewGridModel(dispatcher, cell.Current()),
		Client:        client,
		Cell:          cell,
		Dispatcher:    dispatcher,
		Updates:       updates,
		Settings:      cfg,
		Styles:        NewStyles(ThemeByName(cfg.Theme)),
		Width:         w,
		Height:        h,
	}
}

// Init initializes the application
func (m AppModel) Init() tea.Cmd {
	return tea.Batch(m.ConnectModel.Init(), waitForSnapshot(m.Updates))
}

// waitForSnapshot blocks on the poller's update channel and re-emits the
// snapshot as a message. Re-issued after every receive.
func waitForSnapshot(updates <-chan *controller.Snapshot) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-updates
		if !ok {
			return nil
		}
		return snapshotMsg{snap: snap}
	}
}

// Update handles all messages and routes them to the appropriate screen
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.ConnectModel.Width = msg.Width
		m.ConnectModel.Height = msg.Height
		m.GridModel.Width = msg.Width
		m.GridModel.Height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.CurrentScreen == ScreenGrid && m.GridModel.Mode == modeNav &&
			key.Matches(msg, m.GridModel.Keys.Theme) {
			return m.toggleTheme()
		}

	case snapshotMsg:
		updated, cmd := m.GridModel.Update(msg)
		m.GridModel = updated
		return m, tea.Batch(cmd, waitForSnapshot(m.Updates))

	case connectDoneMsg:
		if msg.err != nil {
			m.ConnectModel.Err = msg.err
			return m, nil
		}
		m.CurrentScreen = ScreenGrid
		m.GridModel.SetSnapshot(m.Cell.Current())
		m.GridModel.LastError = nil
		return m, m.seedSavedTags()

	case renameDoneMsg:
		var persist tea.Cmd
		if msg.err == nil {
			// The registry keeps the canonical form, so the saved tag and
			// the controller's converge on the same value.
			m.Settings.SetTag(msg.index, msg.tag)
			cfg := m.Settings
			persist = func() tea.Msg {
				return tagsSyncedMsg{op: "save_tags", err: cfg.Save()}
			}
		}
		updated, cmd := m.GridModel.Update(msg)
		m.GridModel = updated
		return m, tea.Batch(cmd, persist)

	case tagsSyncedMsg:
		logging.LogCommand(msg.op, -1, msg.err)
		return m, nil

	case themeDoneMsg:
		if msg.err != nil {
			logging.LogCommand("set_theme", -1, msg.err)
		}
		return m, nil
	}

	return m.updateCurrentScreen(msg)
}

// updateCurrentScreen routes updates to the currently active screen
func (m AppModel) updateCurrentScreen(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.CurrentScreen {
	case ScreenConnect:
		m.ConnectModel, cmd = m.ConnectModel.Update(msg)

		if port := m.ConnectModel.SelectedPort; port != "" {
			m.ConnectModel.SelectedPort = ""
			dispatcher := m.Dispatcher
			return m, func() tea.Msg {
				return connectDoneMsg{err: dispatcher.Connect(port)}
			}
		}

		if keyMsg, ok := msg.(tea.KeyMsg); ok && !m.ConnectModel.Loading {
			if keyMsg.String() == "q" || keyMsg.String() == "esc" {
				return m, tea.Quit
			}
		}

	case ScreenGrid:
		m.GridModel, cmd = m.GridModel.Update(msg)

		// A completed disconnect returns to port selection.
		if m.GridModel.DisconnectRequested && !m.GridModel.Busy && m.GridModel.LastError == nil {
			m.GridModel.DisconnectRequested = false
			m.CurrentScreen = ScreenConnect
			m.ConnectModel = NewConnectModel(m.Client)
			m.ConnectModel.Width = m.Width
			m.ConnectModel.Height = m.Height
			return m, m.ConnectModel.Init()
		}
	}

	return m, cmd
}

// seedSavedTags pushes the persisted channel tags to the controller after a
// connect, so relabels survive console restarts. Each push goes through the
// dispatcher, which also writes the tag into the cell ahead of the next poll.
func (m AppModel) seedSavedTags() tea.Cmd {
	dispatcher := m.Dispatcher
	tags := append([]string(nil), m.Settings.Tags...)
	return func() tea.Msg {
		for i, tag := range tags {
			if err := dispatcher.Rename(i, tag); err != nil {
				return tagsSyncedMsg{op: "seed_tags", err: err}
			}
		}
		return tagsSyncedMsg{op: "seed_tags"}
	}
}

// toggleTheme flips the theme, persists it locally, and pushes it to the
// controller. The local save decides the next session; the controller copy
// is best effort.
func (m AppModel) toggleTheme() (tea.Model, tea.Cmd) {
	next := settings.ThemeDark
	if m.Settings.Theme == settings.ThemeDark {
		next = settings.ThemeLight
	}
	m.Settings.Theme = next
	m.Styles = NewStyles(ThemeByName(next))

	client := m.Client
	cfg := m.Settings
	return m, func() tea.Msg {
		if err := cfg.Save(); err != nil {
			return themeDoneMsg{err: err}
		}
		return themeDoneMsg{err: client.SetTheme(next)}
	}
}

// View renders the current screen
func (m AppModel) View() string {
	var content, footer string

	switch m.CurrentScreen {
	case ScreenConnect:
		content = m.ConnectModel.View(m.Styles)
		footer = "↑/↓ select • enter connect • r refresh • q quit"
	case ScreenGrid:
		content = m.GridModel.View(m.Styles)
		footer = m.GridModel.Help.View(m.GridModel.Keys)
	}

	return RenderApplicationContainer(m.Styles, content, footer, m.Width, m.Height)
}

// Run starts the console against client and blocks until the operator
// quits. It owns the poller lifecycle.
func Run(client *controller.Client, cfg *settings.Settings) error {
	max := controller.DefaultMaxDevices
	if info, err := client.Info(); err == nil && info.Max > 0 {
		max = info.Max
	}
	cfg.NormalizeTags(max)

	cell := console.NewCell(max)
	dispatcher := console.NewDispatcher(client, cell)
	poller := console.NewPoller(client, cell)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go poller.Run(ctx)

	model := NewAppModel(client, cell, dispatcher, poller.Updates(), cfg)
	program := tea.NewProgram(model, tea.WithAltScreen())
	_, err := program.Run()
	return err
}
