// Package list provides list display components for the TUI.
package list

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/stratalabs/strata/internal/adapters/driving/tui/styles"
	"github.com/stratalabs/strata/internal/core/domain"
)

// JobList displays registered jobs in a navigable list.
type JobList struct {
	jobs     []domain.Job
	open     map[string]int
	selected int
	styles   *styles.Styles
	width    int
	height   int
}

// NewJobList creates a new job list component.
func NewJobList(s *styles.Styles) *JobList {
	if s == nil {
		s = styles.DefaultStyles()
	}

	return &JobList{
		jobs:     nil,
		selected: 0,
		styles:   s,
		width:    80,
		height:   10,
	}
}

// Init initialises the job list.
func (l *JobList) Init() tea.Cmd {
	return nil
}

// Update handles list navigation messages.
func (l *JobList) Update(msg tea.Msg) (*JobList, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "up", "k":
			l.MoveUp()
		case "down", "j":
			l.MoveDown()
		}
	}
	return l, nil
}

// View renders the job list.
func (l *JobList) View() string {
	if len(l.jobs) == 0 {
		return l.styles.Muted.Render("No jobs")
	}

	lines := make([]string, 0, len(l.jobs)+2)

	header := l.styles.Subtitle.Render(fmt.Sprintf("Jobs (%d)", len(l.jobs)))
	lines = append(lines, header, "")

	visible := l.height - 4
	if visible < 1 {
		visible = 1
	}

	start := 0
	if l.selected >= visible {
		start = l.selected - visible + 1
	}
	end := start + visible
	if end > len(l.jobs) {
		end = len(l.jobs)
	}

	for i := start; i < end; i++ {
		lines = append(lines, l.renderJob(i))
	}

	if end < len(l.jobs) {
		lines = append(lines, l.styles.Muted.Render(fmt.Sprintf("… %d more", len(l.jobs)-end)))
	}

	return strings.Join(lines, "\n")
}

// renderJob renders one job row: short id, open count, parameters.
func (l *JobList) renderJob(index int) string {
	job := &l.jobs[index]

	id := job.ID
	if len(id) > 8 {
		id = id[:8]
	}

	openBadge := ""
	if n := l.open[job.ID]; n > 0 {
		openBadge = l.styles.Success.Render(fmt.Sprintf(" [%d open]", n))
	}

	params := parameterSummary(job.Parameters, l.width-16)

	if index == l.selected {
		return l.styles.Selected.Render("> "+id) + openBadge + " " + l.styles.Normal.Render(params)
	}
	return l.styles.Normal.Render("  "+id) + openBadge + " " + l.styles.Muted.Render(params)
}

// parameterSummary renders parameters as canonical JSON, truncated to
// the given width.
func parameterSummary(params domain.Parameters, width int) string {
	data, err := params.Canonical()
	if err != nil {
		return "?"
	}
	s := string(data)
	if width > 3 && len(s) > width {
		s = s[:width-1] + "…"
	}
	return s
}

// SetJobs replaces the listed jobs and clamps the selection.
func (l *JobList) SetJobs(jobs []domain.Job, open map[string]int) {
	l.jobs = jobs
	l.open = open
	if l.selected >= len(jobs) {
		l.selected = len(jobs) - 1
	}
	if l.selected < 0 {
		l.selected = 0
	}
}

// Jobs returns the listed jobs.
func (l *JobList) Jobs() []domain.Job {
	return l.jobs
}

// MoveUp moves the selection up.
func (l *JobList) MoveUp() {
	if l.selected > 0 {
		l.selected--
	}
}

// MoveDown moves the selection down.
func (l *JobList) MoveDown() {
	if l.selected < len(l.jobs)-1 {
		l.selected++
	}
}

// Selected returns the selected index.
func (l *JobList) Selected() int {
	return l.selected
}

// SelectedJob returns the selected job, or nil for an empty list.
func (l *JobList) SelectedJob() *domain.Job {
	if len(l.jobs) == 0 || l.selected >= len(l.jobs) {
		return nil
	}
	return &l.jobs[l.selected]
}

// SetDimensions sets the visible area of the list.
func (l *JobList) SetDimensions(width, height int) {
	l.width = width
	l.height = height
}
