// Package styles provides the colour theme and lipgloss styles for
// the dashboard.
package styles

import (
	"github.com/charmbracelet/lipgloss"
)

// Theme is the dashboard colour palette.
type Theme struct {
	Primary    lipgloss.Color // main accent
	Secondary  lipgloss.Color // second accent
	Background lipgloss.Color // screen background
	Surface    lipgloss.Color // raised areas such as the status bar
	Foreground lipgloss.Color // default text
	Muted      lipgloss.Color // de-emphasised text
	Success    lipgloss.Color
	Warning    lipgloss.Color
	Error      lipgloss.Color
	Border     lipgloss.Color
}

// DefaultTheme returns the stock palette, blue on dark slate.
func DefaultTheme() *Theme {
	return &Theme{
		Primary:    lipgloss.Color("#2563EB"),
		Secondary:  lipgloss.Color("#0D9488"),
		Background: lipgloss.Color("#0F172A"),
		Surface:    lipgloss.Color("#1E293B"),
		Foreground: lipgloss.Color("#E2E8F0"),
		Muted:      lipgloss.Color("#64748B"),
		Success:    lipgloss.Color("#22C55E"),
		Warning:    lipgloss.Color("#EAB308"),
		Error:      lipgloss.Color("#EF4444"),
		Border:     lipgloss.Color("#334155"),
	}
}

// Styles holds the ready-made styles the views render with.
type Styles struct {
	theme *Theme

	Title      lipgloss.Style // tab and section headers
	Subtitle   lipgloss.Style // secondary headers
	Normal     lipgloss.Style // regular text
	Muted      lipgloss.Style // annotations and timestamps
	Value      lipgloss.Style // the numbers on the overview
	Selected   lipgloss.Style // highlighted list rows
	Error      lipgloss.Style
	Success    lipgloss.Style
	Warning    lipgloss.Style
	InputField lipgloss.Style // the filter input box
	StatusBar  lipgloss.Style
	Help       lipgloss.Style
	Border     lipgloss.Style // bordered containers
}

// NewStyles derives the styles from a theme. A nil theme selects the
// default palette.
func NewStyles(theme *Theme) *Styles {
	if theme == nil {
		theme = DefaultTheme()
	}

	text := lipgloss.NewStyle().Foreground(theme.Foreground)
	quiet := lipgloss.NewStyle().Foreground(theme.Muted)
	box := lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(theme.Border)

	return &Styles{
		theme: theme,

		Title:      lipgloss.NewStyle().Bold(true).Foreground(theme.Primary),
		Subtitle:   lipgloss.NewStyle().Bold(true).Foreground(theme.Secondary),
		Normal:     text,
		Muted:      quiet,
		Value:      text.Bold(true),
		Selected:   text.Bold(true).Background(theme.Primary),
		Error:      lipgloss.NewStyle().Foreground(theme.Error),
		Success:    lipgloss.NewStyle().Foreground(theme.Success),
		Warning:    lipgloss.NewStyle().Foreground(theme.Warning),
		InputField: box.Padding(0, 1),
		StatusBar:  quiet.Background(theme.Surface).Padding(0, 1),
		Help:       quiet,
		Border:     box,
	}
}

// DefaultStyles returns styles over the default theme.
func DefaultStyles() *Styles {
	return NewStyles(DefaultTheme())
}

// Theme returns the palette these styles were derived from.
func (s *Styles) Theme() *Theme {
	return s.theme
}
