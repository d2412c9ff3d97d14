// Package status provides the status bar component for the TUI.
package status

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/stratalabs/strata/internal/adapters/driving/tui/keymap"
	"github.com/stratalabs/strata/internal/adapters/driving/tui/styles"
)

// State represents the current dashboard state for display.
type State string

const (
	StateReady   State = "ready"
	StateLoading State = "loading"
	StateError   State = "error"
	StateList    State = "list"
)

// Bar displays the project, refresh state and keybinding hints.
type Bar struct {
	styles  *styles.Styles
	keymap  *keymap.KeyMap
	state   State
	project string
	message string
	width   int
}

// NewBar creates a new status bar component.
func NewBar(s *styles.Styles, km *keymap.KeyMap) *Bar {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}

	return &Bar{
		styles: s,
		keymap: km,
		state:  StateReady,
		width:  80,
	}
}

// Init initialises the status bar.
func (s *Bar) Init() tea.Cmd {
	return nil
}

// Update handles status bar messages.
func (s *Bar) Update(msg tea.Msg) (*Bar, tea.Cmd) {
	// Bar is passive, updated via Set methods.
	return s, nil
}

// View renders the status bar.
func (s *Bar) View() string {
	left := s.renderLeft()
	right := s.renderRight()

	// Pad to the style's inner width; padding the full width would
	// overflow the frame and wrap the hints mid-token.
	inner := s.width - s.styles.StatusBar.GetHorizontalFrameSize()
	leftLen := lipgloss.Width(left)
	rightLen := lipgloss.Width(right)
	padding := inner - leftLen - rightLen
	if padding < 1 {
		padding = 1
	}

	return s.styles.StatusBar.Width(s.width).Render(
		left + strings.Repeat(" ", padding) + right,
	)
}

// renderLeft renders the project name and current state.
func (s *Bar) renderLeft() string {
	name := s.project
	if name == "" {
		name = "strata"
	}

	switch s.state {
	case StateLoading:
		return s.styles.Normal.Render(name) + "  " + s.styles.Muted.Render("refreshing...")
	case StateError:
		if s.message != "" {
			return s.styles.Normal.Render(name) + "  " + s.styles.Error.Render(fmt.Sprintf("Error: %s", s.message))
		}
		return s.styles.Normal.Render(name) + "  " + s.styles.Error.Render("Error")
	case StateReady, StateList:
		if s.message != "" {
			return s.styles.Normal.Render(name) + "  " + s.styles.Muted.Render(s.message)
		}
		return s.styles.Normal.Render(name)
	}
	return s.styles.Normal.Render(name)
}

// renderRight renders keybinding hints.
func (s *Bar) renderRight() string {
	var bindings []key.Binding
	if s.state == StateList {
		bindings = s.keymap.ListHelp()
	} else {
		bindings = s.keymap.ShortHelp()
	}

	hints := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		hints = append(hints, fmt.Sprintf("%s: %s", h.Key, h.Desc))
	}
	return s.styles.Muted.Render(strings.Join(hints, " | "))
}

// SetState sets the current state.
func (s *Bar) SetState(state State) {
	s.state = state
}

// State returns the current state.
func (s *Bar) State() State {
	return s.state
}

// SetProject sets the displayed project name.
func (s *Bar) SetProject(project string) {
	s.project = project
}

// SetMessage sets a custom message next to the project name.
func (s *Bar) SetMessage(message string) {
	s.message = message
}

// Message returns the current message.
func (s *Bar) Message() string {
	return s.message
}

// SetWidth sets the status bar width.
func (s *Bar) SetWidth(width int) {
	s.width = width
}

// Width returns the current width.
func (s *Bar) Width() int {
	return s.width
}

// Clear resets the status bar to default state.
func (s *Bar) Clear() {
	s.state = StateReady
	s.message = ""
}
