package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// portsMsg carries the result of a port listing.
type portsMsg struct {
	ports []string
	err   error
}

// connectKeyMap defines key bindings for the connect screen
type connectKeyMap struct {
	Up      key.Binding
	Down    key.Binding
	Connect key.Binding
	Refresh key.Binding
	Quit    key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k connectKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Connect, k.Refresh, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k connectKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Connect, k.Refresh, k.Quit},
	}
}

// PortLister lists the serial ports the controller offers.
type PortLister interface {
	ListPorts() ([]string, error)
}

// ConnectModel is the serial-port selection screen.
type ConnectModel struct {
	Lister PortLister

	Ports   []string
	Cursor  int
	Loading bool
	Err     error

	// SelectedPort is set when the operator picks a port; the app model
	// reads and clears it.
	SelectedPort string

	Spinner spinner.Model
	Keys    connectKeyMap

	Width  int
	Height int
}

// NewConnectModel creates the connect screen backed by lister.
func NewConnectModel(lister PortLister) ConnectModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	keys := connectKeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Connect: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "connect"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "quit"),
		),
	}

	return ConnectModel{
		Lister:  lister,
		Loading: true,
		Spinner: sp,
		Keys:    keys,
	}
}

// Init starts the initial port listing.
func (m ConnectModel) Init() tea.Cmd {
	return tea.Batch(m.Spinner.Tick, m.fetchPorts())
}

// fetchPorts lists ports off the update loop.
func (m ConnectModel) fetchPorts() tea.Cmd {
	lister := m.Lister
	return func() tea.Msg {
		ports, err := lister.ListPorts()
		return portsMsg{ports: ports, err: err}
	}
}

// Update handles messages for the connect screen.
func (m ConnectModel) Update(msg tea.Msg) (ConnectModel, tea.Cmd) {
	switch msg := msg.(type) {
	case portsMsg:
		m.Loading = false
		m.Err = msg.err
		m.Ports = msg.ports
		if m.Cursor >= len(m.Ports) {
			m.Cursor = 0
		}
		return m, nil

	case spinner.TickMsg:
		if !m.Loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.Keys.Up):
			if m.Cursor > 0 {
				m.Cursor--
			}
		case key.Matches(msg, m.Keys.Down):
			if m.Cursor < len(m.Ports)-1 {
				m.Cursor++
			}
		case key.Matches(msg, m.Keys.Refresh):
			m.Loading = true
			m.Err = nil
			return m, tea.Batch(m.Spinner.Tick, m.fetchPorts())
		case key.Matches(msg, m.Keys.Connect):
			if !m.Loading && m.Cursor < len(m.Ports) {
				m.SelectedPort = m.Ports[m.Cursor]
			}
		}
	}
	return m, nil
}

// View renders the port list.
func (m ConnectModel) View(s Styles) string {
	var b strings.Builder

	b.WriteString(s.Title.Render("Select a serial port"))
	b.WriteString("\n\n")

	switch {
	case m.Loading:
		b.WriteString(fmt.Sprintf("%s Listing serial ports...", m.Spinner.View()))
		b.WriteString("\n")

	case m.Err != nil:
		b.WriteString(s.Error.Render("✗ " + m.Err.Error()))
		b.WriteString("\n\n")
		b.WriteString(s.Subtitle.Render("Is the controller service running? Press r to retry."))
		b.WriteString("\n")

	case len(m.Ports) == 0:
		b.WriteString(s.Subtitle.Render("No serial ports found. Press r to refresh."))
		b.WriteString("\n")

	default:
		for i, port := range m.Ports {
			b.WriteString(s.RenderMenuItem(port, i == m.Cursor))
			b.WriteString("\n")
		}
	}

	return b.String()
}
