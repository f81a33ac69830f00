package tui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/jmraffin/flowdeck/internal/settings"
	"github.com/jmraffin/flowdeck/internal/version"
)

// Application branding constants
const (
	AppName   = "FLOWDECK"
	GitHubURL = "github.com/jmraffin/flowdeck"
)

// AppVersion returns the application version from the centralized version package
func AppVersion() string {
	return version.Version
}

// Layout constants for responsive terminal width
const (
	MinTerminalWidth = 80  // Minimum supported terminal width
	MaxContentWidth  = 160 // Maximum content width before capping
	CardWidth        = 24  // Inner width of one channel card
)

// Theme is a named color palette. The grid renders identically under both
// themes; only colors differ.
type Theme struct {
	Name string

	Primary   lipgloss.Color
	Accent    lipgloss.Color
	Warning   lipgloss.Color
	Error     lipgloss.Color
	Text      lipgloss.Color
	Subtle    lipgloss.Color
	Border    lipgloss.Color
	Highlight lipgloss.Color
}

// DarkTheme is the palette for dark terminals.
var DarkTheme = Theme{
	Name:      settings.ThemeDark,
	Primary:   lipgloss.Color("#5FAFFF"), // Blue
	Accent:    lipgloss.Color("#43BF6D"), // Green
	Warning:   lipgloss.Color("#FFA500"), // Orange
	Error:     lipgloss.Color("#FF5555"), // Red
	Text:      lipgloss.Color("#FFFFFF"), // White
	Subtle:    lipgloss.Color("#626262"), // Gray
	Border:    lipgloss.Color("#5FAFFF"), // Blue (same as primary)
	Highlight: lipgloss.Color("#43BF6D"), // Green (same as accent)
}

// LightTheme is the palette for light terminals.
var LightTheme = Theme{
	Name:      settings.ThemeLight,
	Primary:   lipgloss.Color("#005FAF"),
	Accent:    lipgloss.Color("#007A3D"),
	Warning:   lipgloss.Color("#B36B00"),
	Error:     lipgloss.Color("#C00000"),
	Text:      lipgloss.Color("#1A1A1A"),
	Subtle:    lipgloss.Color("#767676"),
	Border:    lipgloss.Color("#005FAF"),
	Highlight: lipgloss.Color("#007A3D"),
}

// ThemeByName returns the theme for a persisted theme name, defaulting to
// light for unknown names.
func ThemeByName(name string) Theme {
	if name == settings.ThemeDark {
		return DarkTheme
	}
	return LightTheme
}

// Styles is the full style set for one theme. Built once per theme switch,
// not per frame.
type Styles struct {
	Theme Theme

	Title      lipgloss.Style
	Subtitle   lipgloss.Style
	Help       lipgloss.Style
	Error      lipgloss.Style
	StatusOK   lipgloss.Style
	StatusBad  lipgloss.Style
	FieldLabel lipgloss.Style
	FieldValue lipgloss.Style

	Card         lipgloss.Style
	CardFocused  lipgloss.Style
	CardInactive lipgloss.Style
	ChannelOn    lipgloss.Style
	ChannelOff   lipgloss.Style

	MenuItem         lipgloss.Style
	SelectedMenuItem lipgloss.Style
	EditorBox        lipgloss.Style
}

// NewStyles builds the style set for a theme.
func NewStyles(t Theme) Styles {
	return Styles{
		Theme: t,

		Title: lipgloss.NewStyle().
			Foreground(t.Primary).
			Bold(true).
			Padding(1, 0),

		Subtitle: lipgloss.NewStyle().
			Foreground(t.Subtle).
			Italic(true),

		Help: lipgloss.NewStyle().
			Foreground(t.Subtle).
			Padding(1, 0),

		Error: lipgloss.NewStyle().
			Foreground(t.Error).
			Bold(true),

		StatusOK: lipgloss.NewStyle().
			Foreground(t.Accent).
			Bold(true),

		StatusBad: lipgloss.NewStyle().
			Foreground(t.Error).
			Bold(true),

		FieldLabel: lipgloss.NewStyle().
			Foreground(t.Subtle),

		FieldValue: lipgloss.NewStyle().
			Foreground(t.Text),

		Card: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(t.Subtle).
			Padding(0, 1).
			Width(CardWidth),

		CardFocused: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(t.Highlight).
			Padding(0, 1).
			Width(CardWidth),

		CardInactive: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(t.Subtle).
			Foreground(t.Subtle).
			Padding(0, 1).
			Width(CardWidth),

		ChannelOn: lipgloss.NewStyle().
			Foreground(t.Accent).
			Bold(true),

		ChannelOff: lipgloss.NewStyle().
			Foreground(t.Subtle),

		MenuItem: lipgloss.NewStyle().
			PaddingLeft(4).
			Foreground(t.Text),

		SelectedMenuItem: lipgloss.NewStyle().
			PaddingLeft(2).
			Foreground(t.Highlight).
			Bold(true),

		EditorBox: lipgloss.NewStyle().
			Border(lipgloss.Border{
				Top:    "━",
				Bottom: "━",
				Left:   "┃",
				Right:  "┃",
			}).
			BorderForeground(t.Primary).
			Padding(0, 1),
	}
}

// RenderMenuItem renders a menu item with selection indicator
func (s Styles) RenderMenuItem(text string, selected bool) string {
	if selected {
		return s.SelectedMenuItem.Render("→ " + text)
	}
	return s.MenuItem.Render("  " + text)
}

// buildHeaderContent creates header content with app name and GitHub URL
func buildHeaderContent(s Styles) string {
	left := lipgloss.NewStyle().
		Foreground(s.Theme.Text).
		Bold(true).
		Render(AppName + " v" + AppVersion())

	right := lipgloss.NewStyle().
		Foreground(s.Theme.Subtle).
		Render(GitHubURL)

	return lipgloss.JoinHorizontal(lipgloss.Top, left, " ", right)
}

// RenderApplicationContainer wraps a screen's content in the shared chrome:
// bordered full-screen panel, application header, context-sensitive footer.
// Every screen renders through this function.
func RenderApplicationContainer(s Styles, content string, footerText string, terminalWidth int, terminalHeight int) string {
	header := buildHeaderContent(s)

	footer := lipgloss.NewStyle().
		Foreground(s.Theme.Subtle).
		Render(footerText)

	headerStyle := lipgloss.NewStyle().
		BorderStyle(lipgloss.Border{Bottom: "─"}).
		BorderForeground(s.Theme.Border).
		Width(terminalWidth - 4).
		Padding(0, 1)

	footerStyle := lipgloss.NewStyle().
		BorderStyle(lipgloss.Border{Top: "─"}).
		BorderForeground(s.Theme.Border).
		Width(terminalWidth - 4).
		Padding(0, 1)

	contentStyle := lipgloss.NewStyle().
		Width(terminalWidth - 4)

	inner := lipgloss.JoinVertical(
		lipgloss.Left,
		headerStyle.Render(header),
		contentStyle.Render(content),
		footerStyle.Render(footer),
	)

	bordered := lipgloss.NewStyle().
		Border(lipgloss.NormalBorder()).
		BorderForeground(s.Theme.Border).
		Width(terminalWidth - 2).
		Height(terminalHeight - 2).
		AlignVertical(lipgloss.Top).
		Render(inner)

	return lipgloss.Place(
		terminalWidth,
		terminalHeight,
		lipgloss.Left,
		lipgloss.Top,
		bordered,
	)
}

// GetTerminalSize returns the current terminal size, clamped to the layout
// bounds. Used before the first tea.WindowSizeMsg arrives.
func GetTerminalSize() (int, int) {
	width, height, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return MinTerminalWidth, 24
	}
	if width < MinTerminalWidth {
		width = MinTerminalWidth
	}
	if width > MaxContentWidth {
		width = MaxContentWidth
	}
	return width, height
}
