// Package queue provides the task queue view for the TUI.
package queue

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/stratalabs/strata/internal/adapters/driving/tui/messages"
	"github.com/stratalabs/strata/internal/adapters/driving/tui/styles"
	"github.com/stratalabs/strata/internal/core/domain"
	"github.com/stratalabs/strata/internal/core/ports/driving"
)

// View is the task queue view: per-state counts plus the most recent
// entries, newest first.
type View struct {
	styles       *styles.Styles
	queueService driving.QueueService

	counts  domain.QueueCounts
	entries []domain.QueueEntry
	width   int
	height  int
	ready   bool
	err     error
	loading bool
}

// NewView creates a new queue view.
func NewView(s *styles.Styles, queueService driving.QueueService) *View {
	return &View{
		styles:       s,
		queueService: queueService,
	}
}

// Init initialises the view and loads the queue.
func (v *View) Init() tea.Cmd {
	v.loading = true
	return v.loadQueue()
}

// loadQueue returns a command that loads counts and entries.
func (v *View) loadQueue() tea.Cmd {
	return func() tea.Msg {
		if v.queueService == nil {
			return messages.QueueLoaded{Err: fmt.Errorf("queue service not available")}
		}

		ctx := context.Background()

		counts, err := v.queueService.Counts(ctx)
		if err != nil {
			return messages.QueueLoaded{Err: err}
		}

		entries, err := v.queueService.List(ctx, "")
		if err != nil {
			return messages.QueueLoaded{Err: err}
		}

		return messages.QueueLoaded{Counts: counts, Entries: entries}
	}
}

// Update handles messages for the queue view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height
		v.ready = true
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)

	case messages.QueueLoaded:
		v.loading = false
		if msg.Err != nil {
			v.err = msg.Err
		} else {
			v.counts = msg.Counts
			v.entries = msg.Entries
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
		return v, v.loadQueue()
	}

	return v, nil
}

// Refresh returns a command that reloads the queue.
func (v *View) Refresh() tea.Cmd {
	v.loading = true
	return v.loadQueue()
}

// View renders the queue view.
func (v *View) View() string {
	var b strings.Builder

	b.WriteString(v.styles.Title.Render("Queue"))
	b.WriteString("\n\n")

	if v.loading && len(v.entries) == 0 && v.counts.Total() == 0 {
		b.WriteString(v.styles.Muted.Render("Loading queue..."))
		return b.String()
	}

	if v.err != nil {
		b.WriteString(v.styles.Error.Render(fmt.Sprintf("Error: %s", v.err.Error())))
		return b.String()
	}

	v.renderCounts(&b)
	b.WriteString("\n")
	v.renderEntries(&b)

	return b.String()
}

// renderCounts renders the per-state counters.
func (v *View) renderCounts(b *strings.Builder) {
	b.WriteString(fmt.Sprintf("  %s %s   %s %s   %s %s   %s %s\n",
		v.styles.Muted.Render("queued:"),
		v.styles.Value.Render(fmt.Sprintf("%d", v.counts.Queued)),
		v.styles.Muted.Render("active:"),
		v.styles.Value.Render(fmt.Sprintf("%d", v.counts.Active)),
		v.styles.Muted.Render("completed:"),
		v.styles.Value.Render(fmt.Sprintf("%d", v.counts.Completed)),
		v.styles.Muted.Render("aborted:"),
		v.styles.Value.Render(fmt.Sprintf("%d", v.counts.Aborted))))
}

// renderEntries renders the most recent entries, newest first.
func (v *View) renderEntries(b *strings.Builder) {
	if len(v.entries) == 0 {
		b.WriteString(v.styles.Muted.Render("  Queue is empty."))
		b.WriteString("\n")
		return
	}

	visible := v.height - 8
	if visible < 5 {
		visible = 5
	}

	// Entries arrive oldest first; show the tail, newest on top.
	shown := 0
	for i := len(v.entries) - 1; i >= 0 && shown < visible; i-- {
		b.WriteString(v.renderEntry(&v.entries[i]))
		b.WriteString("\n")
		shown++
	}
	if remaining := len(v.entries) - shown; remaining > 0 {
		b.WriteString(v.styles.Muted.Render(fmt.Sprintf("  … %d more", remaining)))
		b.WriteString("\n")
	}
}

// renderEntry renders a single queue entry line.
func (v *View) renderEntry(e *domain.QueueEntry) string {
	state := v.renderState(e.State)
	task := e.Task
	maxTask := v.width - 32
	if maxTask < 16 {
		maxTask = 16
	}
	if len(task) > maxTask {
		task = task[:maxTask-1] + "…"
	}

	line := fmt.Sprintf("  #%-4d %s %s %s",
		e.ID, state, v.styles.Normal.Render(shortID(e.JobID)), v.styles.Muted.Render(task))
	if e.State == domain.QueueStateAborted && e.Error != "" {
		line += " " + v.styles.Error.Render("("+e.Error+")")
	}
	return line
}

// renderState renders a fixed-width, coloured state tag.
func (v *View) renderState(state domain.QueueState) string {
	tag := fmt.Sprintf("%-9s", state)
	switch state {
	case domain.QueueStateQueued:
		return v.styles.Muted.Render(tag)
	case domain.QueueStateActive:
		return v.styles.Warning.Render(tag)
	case domain.QueueStateCompleted:
		return v.styles.Success.Render(tag)
	case domain.QueueStateAborted:
		return v.styles.Error.Render(tag)
	}
	return v.styles.Normal.Render(tag)
}

// shortID truncates a job ID for display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.ready = true
}

// Counts returns the last loaded counters.
func (v *View) Counts() domain.QueueCounts {
	return v.counts
}

// Entries returns the last loaded entries.
func (v *View) Entries() []domain.QueueEntry {
	return v.entries
}

// Err returns the last error.
func (v *View) Err() error {
	return v.err
}
