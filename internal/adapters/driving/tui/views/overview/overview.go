// Package overview provides the project overview view for the TUI.
package overview

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/stratalabs/strata/internal/adapters/driving/tui/messages"
	"github.com/stratalabs/strata/internal/adapters/driving/tui/styles"
	"github.com/stratalabs/strata/internal/core/domain"
	"github.com/stratalabs/strata/internal/core/ports/driving"
)

// View is the project overview: job counts, open instances, pulses,
// queue totals and held locks at a glance.
type View struct {
	styles         *styles.Styles
	projectService driving.ProjectService

	status   *driving.ProjectStatus
	loadedAt time.Time
	width    int
	height   int
	ready    bool
	err      error
	loading  bool
}

// NewView creates a new overview view.
func NewView(s *styles.Styles, projectService driving.ProjectService) *View {
	return &View{
		styles:         s,
		projectService: projectService,
	}
}

// Init initialises the view and loads the project status.
func (v *View) Init() tea.Cmd {
	v.loading = true
	return v.loadStatus()
}

// loadStatus returns a command that loads the project status.
func (v *View) loadStatus() tea.Cmd {
	return func() tea.Msg {
		if v.projectService == nil {
			return messages.StatusLoaded{Err: fmt.Errorf("project service not available")}
		}

		status, err := v.projectService.Status(context.Background())
		if err != nil {
			return messages.StatusLoaded{Err: err}
		}

		return messages.StatusLoaded{Status: status, At: time.Now()}
	}
}

// Update handles messages for the overview view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height
		v.ready = true
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)

	case messages.StatusLoaded:
		v.loading = false
		if msg.Err != nil {
			v.err = msg.Err
		} else {
			v.status = msg.Status
			v.loadedAt = msg.At
			v.err = nil
		}
		return v, nil
	}

	return v, nil
}

// handleKeyMsg handles key presses.
func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	switch msg.String() {
	case "r":
		v.loading = true
		return v, v.loadStatus()
	}

	return v, nil
}

// Refresh returns a command that reloads the project status.
func (v *View) Refresh() tea.Cmd {
	v.loading = true
	return v.loadStatus()
}

// View renders the overview.
func (v *View) View() string {
	var b strings.Builder

	b.WriteString(v.styles.Title.Render("Overview"))
	b.WriteString("\n\n")

	if v.loading && v.status == nil {
		b.WriteString(v.styles.Muted.Render("Loading project status..."))
		return b.String()
	}

	if v.err != nil {
		b.WriteString(v.styles.Error.Render(fmt.Sprintf("Error: %s", v.err.Error())))
		return b.String()
	}

	if v.status == nil {
		b.WriteString(v.styles.Muted.Render("No status available."))
		return b.String()
	}

	v.renderProject(&b)
	b.WriteString("\n")
	v.renderQueue(&b)
	b.WriteString("\n")
	v.renderInstances(&b)
	v.renderLocks(&b)

	return b.String()
}

// renderProject renders the project identity and job count.
func (v *View) renderProject(b *strings.Builder) {
	b.WriteString(v.styles.Subtitle.Render("Project"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  %s %s\n",
		v.styles.Muted.Render("id:"),
		v.styles.Normal.Render(v.status.Project.ID)))
	b.WriteString(fmt.Sprintf("  %s %s\n",
		v.styles.Muted.Render("schema:"),
		v.styles.Normal.Render(v.status.Project.SchemaVersion.String())))
	b.WriteString(fmt.Sprintf("  %s %s\n",
		v.styles.Muted.Render("jobs:"),
		v.styles.Value.Render(fmt.Sprintf("%d", v.status.JobCount))))
}

// renderQueue renders the queue counters.
func (v *View) renderQueue(b *strings.Builder) {
	q := v.status.Queue
	b.WriteString(v.styles.Subtitle.Render("Queue"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  %s %s   %s %s   %s %s   %s %s\n",
		v.styles.Muted.Render("queued:"),
		v.styles.Value.Render(fmt.Sprintf("%d", q.Queued)),
		v.styles.Muted.Render("active:"),
		v.styles.Value.Render(fmt.Sprintf("%d", q.Active)),
		v.styles.Muted.Render("completed:"),
		v.styles.Value.Render(fmt.Sprintf("%d", q.Completed)),
		v.styles.Muted.Render("aborted:"),
		v.styles.Value.Render(fmt.Sprintf("%d", q.Aborted))))
}

// renderInstances renders open instances with the age of their last pulse.
func (v *View) renderInstances(b *strings.Builder) {
	b.WriteString(v.styles.Subtitle.Render(fmt.Sprintf("Open instances (%d)", len(v.status.OpenInstances))))
	b.WriteString("\n")

	if len(v.status.OpenInstances) == 0 {
		b.WriteString(v.styles.Muted.Render("  none"))
		b.WriteString("\n")
		return
	}

	pulses := make(map[string]domain.Pulse, len(v.status.Pulses))
	for _, p := range v.status.Pulses {
		pulses[p.InstanceID] = p
	}

	now := time.Now()
	for _, inst := range v.status.OpenInstances {
		line := fmt.Sprintf("  %s on %s", shortID(inst.JobID), inst.InstanceID)
		if inst.Hostname != "" {
			line += fmt.Sprintf(" (%s)", inst.Hostname)
		}
		b.WriteString(v.styles.Normal.Render(line))

		if p, ok := pulses[inst.InstanceID]; ok {
			age := p.Age(now)
			pulse := fmt.Sprintf("  pulse %s ago", formatAge(age))
			if p.Dead(now, domain.DefaultPulseTolerance) {
				b.WriteString(v.styles.Error.Render(pulse + " (dead)"))
			} else {
				b.WriteString(v.styles.Success.Render(pulse))
			}
		} else {
			b.WriteString(v.styles.Warning.Render("  no pulse"))
		}
		b.WriteString("\n")
	}
}

// renderLocks renders held locks, omitted entirely when none are held.
func (v *View) renderLocks(b *strings.Builder) {
	held := make([]domain.LockState, 0, len(v.status.HeldLocks))
	for _, l := range v.status.HeldLocks {
		if l.Held() {
			held = append(held, l)
		}
	}
	if len(held) == 0 {
		return
	}

	b.WriteString("\n")
	b.WriteString(v.styles.Subtitle.Render(fmt.Sprintf("Held locks (%d)", len(held))))
	b.WriteString("\n")
	for _, l := range held {
		b.WriteString(v.styles.Warning.Render(fmt.Sprintf("  %s held by %s (count %d)", l.Name, l.Holder, l.Count)))
		b.WriteString("\n")
	}
}

// shortID truncates a job ID for display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// formatAge renders a duration compactly, seconds below a minute.
func formatAge(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%.0fm", d.Minutes())
	}
	return fmt.Sprintf("%.1fh", d.Hours())
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.ready = true
}

// Status returns the last loaded project status.
func (v *View) Status() *driving.ProjectStatus {
	return v.status
}

// Err returns the last error.
func (v *View) Err() error {
	return v.err
}
