package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/stratalabs/strata/internal/adapters/driving/tui/components/status"
	"github.com/stratalabs/strata/internal/adapters/driving/tui/keymap"
	"github.com/stratalabs/strata/internal/adapters/driving/tui/messages"
	"github.com/stratalabs/strata/internal/adapters/driving/tui/styles"
	"github.com/stratalabs/strata/internal/adapters/driving/tui/views/jobs"
	"github.com/stratalabs/strata/internal/adapters/driving/tui/views/overview"
	"github.com/stratalabs/strata/internal/adapters/driving/tui/views/queue"
)

// refreshInterval is how often the active tab reloads from the stores.
const refreshInterval = 2 * time.Second

// tabs is the tab cycle order. Help is reached via "?" and is not a tab.
var tabs = []messages.ViewType{
	messages.ViewOverview,
	messages.ViewJobs,
	messages.ViewQueue,
}

// App is the dashboard application following the Elm architecture.
// It implements tea.Model for use with Bubbletea.
type App struct {
	// ports provides access to core services via driving ports.
	ports *Ports

	// ctx is the context for cancellation.
	ctx context.Context

	// styles holds the TUI styles.
	styles *styles.Styles

	// keymap holds the dashboard keybindings.
	keymap *keymap.KeyMap

	// overviewView shows project status, pulses and locks.
	overviewView *overview.View

	// jobsView lists and filters registered jobs.
	jobsView *jobs.View

	// queueView shows the task queue.
	queueView *queue.View

	// statusBar is the bottom bar with project name and key hints.
	statusBar *status.Bar

	// currentView tracks which view is active.
	currentView messages.ViewType

	// updatedAt is when the last load completed.
	updatedAt time.Time

	// err holds the last error that occurred.
	err error

	// width and height are terminal dimensions.
	width  int
	height int

	// ready indicates if the app has initialised.
	ready bool
}

// Ensure App implements tea.Model.
var _ tea.Model = (*App)(nil)

// NewApp creates a new dashboard application with the given ports.
func NewApp(ports *Ports) (*App, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("creating app: %w", err)
	}

	s := styles.DefaultStyles()
	km := keymap.DefaultKeyMap()

	app := &App{
		ports:        ports,
		ctx:          context.Background(),
		styles:       s,
		keymap:       km,
		overviewView: overview.NewView(s, ports.Project),
		jobsView:     jobs.NewView(s, ports.Jobs, ports.Project),
		queueView:    queue.NewView(s, ports.Queue),
		statusBar:    status.NewBar(s, km),
		currentView:  messages.ViewOverview,
	}
	if project := ports.Project.Project(); project != nil {
		app.statusBar.SetProject(project.ID)
	}
	return app, nil
}

// WithContext sets the context for the app.
func (a *App) WithContext(ctx context.Context) *App {
	a.ctx = ctx
	return a
}

// Init implements tea.Model. All tabs load up front so switching is
// instant; the tick then refreshes only the active one.
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		tea.EnterAltScreen,
		tea.SetWindowTitle("strata - Project Dashboard"),
		a.overviewView.Init(),
		a.jobsView.Init(),
		a.queueView.Init(),
		a.scheduleTick(),
	)
}

// scheduleTick returns a command that emits the next refresh tick.
func (a *App) scheduleTick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return messages.RefreshTick{At: t}
	})
}

// Update implements tea.Model.
// It handles messages and updates the model state.
//
//nolint:gocognit,gocyclo // central message handler requires complexity
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.ready = true
		// Tab bar and status bar take three lines between them.
		bodyHeight := msg.Height - 3
		a.overviewView.SetDimensions(msg.Width, bodyHeight)
		a.jobsView.SetDimensions(msg.Width, bodyHeight)
		a.queueView.SetDimensions(msg.Width, bodyHeight)
		a.statusBar.SetWidth(msg.Width)
		return a, nil

	case tea.KeyMsg:
		return a.handleKeyMsg(msg)

	case messages.RefreshTick:
		// Never reload the job list under the user's fingers.
		if a.currentView == messages.ViewJobs && a.jobsView.Filtering() {
			return a, a.scheduleTick()
		}
		return a, tea.Batch(a.refreshActive(), a.scheduleTick())

	case messages.StatusLoaded:
		a.overviewView, cmd = a.overviewView.Update(msg)
		if msg.Err == nil && msg.Status != nil {
			a.updatedAt = msg.At
			a.statusBar.SetProject(msg.Status.Project.ID)
		}
		a.err = msg.Err
		return a, cmd

	case messages.JobsLoaded:
		a.jobsView, cmd = a.jobsView.Update(msg)
		if msg.Err == nil {
			a.updatedAt = time.Now()
		}
		a.err = msg.Err
		return a, cmd

	case messages.QueueLoaded:
		a.queueView, cmd = a.queueView.Update(msg)
		if msg.Err == nil {
			a.updatedAt = time.Now()
		}
		a.err = msg.Err
		return a, cmd

	case messages.FilterApplied:
		// Informational; the jobs view reloads itself.
		return a, nil

	case messages.ViewChanged:
		a.currentView = msg.View
		return a, a.refreshActive()

	case messages.ErrorOccurred:
		a.err = msg.Err
		return a, nil

	case messages.Quit:
		return a, tea.Quit
	}

	// Forward other messages (e.g. cursor blinks) to the active view.
	switch a.currentView {
	case messages.ViewOverview:
		a.overviewView, cmd = a.overviewView.Update(msg)
	case messages.ViewJobs:
		a.jobsView, cmd = a.jobsView.Update(msg)
	case messages.ViewQueue:
		a.queueView, cmd = a.queueView.Update(msg)
	case messages.ViewHelp:
		// Help is static.
	}

	return a, cmd
}

// handleKeyMsg routes key presses. While the job filter is focused all
// keys except ctrl+c go to the jobs view so typing works.
func (a *App) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	if msg.String() == "ctrl+c" {
		return a, tea.Quit
	}

	if a.currentView == messages.ViewJobs && a.jobsView.Filtering() {
		a.jobsView, cmd = a.jobsView.Update(msg)
		return a, cmd
	}

	switch {
	case keymap.Matches(msg.String(), a.keymap.Quit):
		return a, tea.Quit

	case keymap.Matches(msg.String(), a.keymap.Help):
		a.currentView = messages.ViewHelp
		return a, nil

	case keymap.Matches(msg.String(), a.keymap.Back):
		if a.currentView == messages.ViewHelp {
			a.currentView = messages.ViewOverview
		}
		return a, nil

	case keymap.Matches(msg.String(), a.keymap.NextTab):
		a.currentView = a.nextTab(1)
		return a, a.refreshActive()

	case keymap.Matches(msg.String(), a.keymap.PrevTab):
		a.currentView = a.nextTab(-1)
		return a, a.refreshActive()
	}

	// Everything else (navigation, filter, reload) is per-view.
	switch a.currentView {
	case messages.ViewOverview:
		a.overviewView, cmd = a.overviewView.Update(msg)
	case messages.ViewJobs:
		a.jobsView, cmd = a.jobsView.Update(msg)
	case messages.ViewQueue:
		a.queueView, cmd = a.queueView.Update(msg)
	case messages.ViewHelp:
		// Help only reacts to esc, handled above.
	}

	return a, cmd
}

// nextTab returns the tab a step away from the current one, cycling.
func (a *App) nextTab(step int) messages.ViewType {
	current := 0
	for i, t := range tabs {
		if t == a.currentView {
			current = i
		}
	}
	next := (current + step + len(tabs)) % len(tabs)
	return tabs[next]
}

// refreshActive returns a command that reloads the active view.
func (a *App) refreshActive() tea.Cmd {
	switch a.currentView {
	case messages.ViewOverview:
		return a.overviewView.Refresh()
	case messages.ViewJobs:
		return a.jobsView.Refresh()
	case messages.ViewQueue:
		return a.queueView.Refresh()
	case messages.ViewHelp:
		return nil
	}
	return nil
}

// View implements tea.Model.
// It renders the tab bar, the active view and the status bar.
func (a *App) View() string {
	if !a.ready {
		return "Initialising..."
	}

	var body string
	switch a.currentView {
	case messages.ViewOverview:
		body = a.overviewView.View()
	case messages.ViewJobs:
		body = a.jobsView.View()
	case messages.ViewQueue:
		body = a.queueView.View()
	case messages.ViewHelp:
		body = a.viewHelp()
	default:
		body = a.overviewView.View()
	}

	a.syncStatusBar()

	var b strings.Builder
	b.WriteString(a.renderTabs())
	b.WriteString("\n")
	b.WriteString(body)

	// Pin the status bar to the bottom row.
	used := lipgloss.Height(b.String())
	for i := used; i < a.height-1; i++ {
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(a.statusBar.View())

	return b.String()
}

// renderTabs renders the tab bar with the active tab highlighted.
func (a *App) renderTabs() string {
	titles := make([]string, 0, len(tabs))
	for _, t := range tabs {
		title := " " + t.String() + " "
		if t == a.currentView {
			titles = append(titles, a.styles.Selected.Render(title))
		} else {
			titles = append(titles, a.styles.Muted.Render(title))
		}
	}
	return strings.Join(titles, a.styles.Muted.Render("|"))
}

// syncStatusBar reflects the active view's state on the status bar.
func (a *App) syncStatusBar() {
	if a.err != nil {
		a.statusBar.SetState(status.StateError)
		a.statusBar.SetMessage(a.err.Error())
		return
	}

	if a.currentView == messages.ViewJobs {
		a.statusBar.SetState(status.StateList)
	} else {
		a.statusBar.SetState(status.StateReady)
	}
	if !a.updatedAt.IsZero() {
		a.statusBar.SetMessage("updated " + a.updatedAt.Format("15:04:05"))
	} else {
		a.statusBar.SetMessage("")
	}
}

// viewHelp renders the help view.
func (a *App) viewHelp() string {
	var b strings.Builder

	b.WriteString(a.styles.Title.Render("Help"))
	b.WriteString("\n\n")

	for _, group := range a.keymap.FullHelp() {
		for _, binding := range group {
			h := binding.Help()
			b.WriteString(fmt.Sprintf("  %s  %s\n",
				a.styles.Value.Render(fmt.Sprintf("%-11s", h.Key)),
				a.styles.Normal.Render(h.Desc)))
		}
		b.WriteString("\n")
	}

	b.WriteString(a.styles.Help.Render("[esc] back to overview"))
	return b.String()
}

// Run starts the dashboard and blocks until it exits.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen(), tea.WithContext(a.ctx))
	_, err := p.Run()
	return err
}

// CurrentView returns the current view type.
func (a *App) CurrentView() messages.ViewType {
	return a.currentView
}

// Err returns the last error that occurred.
func (a *App) Err() error {
	return a.err
}

// Ready returns whether the app has been initialised.
func (a *App) Ready() bool {
	return a.ready
}

// SetDimensions sets the terminal dimensions (for testing).
func (a *App) SetDimensions(width, height int) {
	a.width = width
	a.height = height
	a.ready = true
	a.overviewView.SetDimensions(width, height-3)
	a.jobsView.SetDimensions(width, height-3)
	a.queueView.SetDimensions(width, height-3)
	a.statusBar.SetWidth(width)
}
