// Package jobs provides the job list view for the TUI.
package jobs

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/stratalabs/strata/internal/adapters/driving/tui/components/input"
	"github.com/stratalabs/strata/internal/adapters/driving/tui/components/list"
	"github.com/stratalabs/strata/internal/adapters/driving/tui/messages"
	"github.com/stratalabs/strata/internal/adapters/driving/tui/styles"
	"github.com/stratalabs/strata/internal/core/domain"
	"github.com/stratalabs/strata/internal/core/ports/driving"
)

// View is the job list view: a navigable list of registered jobs with
// a parameter filter. The filter accepts JSON or key=value shorthand.
type View struct {
	styles         *styles.Styles
	jobService     driving.JobService
	projectService driving.ProjectService

	jobList     *list.JobList
	filterInput *input.FilterInput
	filter      domain.Filter
	filtering   bool
	width       int
	height      int
	ready       bool
	err         error
	loading     bool
}

// NewView creates a new jobs view.
func NewView(
	s *styles.Styles,
	jobService driving.JobService,
	projectService driving.ProjectService,
) *View {
	return &View{
		styles:         s,
		jobService:     jobService,
		projectService: projectService,
		jobList:        list.NewJobList(s),
		filterInput:    input.NewFilterInput(s),
	}
}

// Init initialises the view and loads the job list.
func (v *View) Init() tea.Cmd {
	v.loading = true
	return v.loadJobs()
}

// loadJobs returns a command that loads jobs matching the current filter.
func (v *View) loadJobs() tea.Cmd {
	filter := v.filter
	return func() tea.Msg {
		if v.jobService == nil {
			return messages.JobsLoaded{Err: fmt.Errorf("job service not available")}
		}

		ctx := context.Background()

		var jobs []domain.Job
		var err error
		if len(filter) == 0 {
			jobs, err = v.jobService.List(ctx)
		} else {
			jobs, err = v.jobService.Find(ctx, filter)
		}
		if err != nil {
			return messages.JobsLoaded{Err: err}
		}

		return messages.JobsLoaded{Jobs: jobs, Open: v.fetchOpenCounts(ctx)}
	}
}

// fetchOpenCounts counts open instances per job via the project status.
func (v *View) fetchOpenCounts(ctx context.Context) map[string]int {
	open := make(map[string]int)
	if v.projectService == nil {
		return open
	}

	status, err := v.projectService.Status(ctx)
	if err != nil {
		return open
	}
	for _, inst := range status.OpenInstances {
		open[inst.JobID]++
	}
	return open
}

// Update handles messages for the jobs view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)

	case messages.JobsLoaded:
		v.loading = false
		if msg.Err != nil {
			v.err = msg.Err
		} else {
			v.jobList.SetJobs(msg.Jobs, msg.Open)
			v.err = nil
		}
		return v, nil
	}

	if v.filtering {
		var cmd tea.Cmd
		v.filterInput, cmd = v.filterInput.Update(msg)
		return v, cmd
	}

	return v, nil
}

// handleKeyMsg handles key presses. While the filter input is focused
// all keys except enter and esc go to the input.
func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	if v.filtering {
		switch msg.String() {
		case "enter":
			return v.applyFilter()
		case "esc":
			v.filtering = false
			v.filterInput.Blur()
			v.filterInput.SetValue(v.filterValue())
			return v, nil
		default:
			var cmd tea.Cmd
			v.filterInput, cmd = v.filterInput.Update(msg)
			return v, cmd
		}
	}

	switch msg.String() {
	case "up", "k":
		v.jobList.MoveUp()
	case "down", "j":
		v.jobList.MoveDown()
	case "/":
		v.filtering = true
		return v, v.filterInput.Focus()
	case "r":
		v.loading = true
		return v, v.loadJobs()
	}

	return v, nil
}

// applyFilter parses the filter input and reloads the list with it.
func (v *View) applyFilter() (*View, tea.Cmd) {
	filter, err := v.filterInput.Filter()
	if err != nil {
		v.err = err
		return v, nil
	}

	v.filter = filter
	v.filtering = false
	v.filterInput.Blur()
	v.err = nil
	v.loading = true

	apply := func() tea.Msg {
		return messages.FilterApplied{Filter: filter}
	}
	return v, tea.Batch(apply, v.loadJobs())
}

// filterValue reconstructs the input text for the active filter so
// cancelling an edit restores what is actually applied.
func (v *View) filterValue() string {
	if len(v.filter) == 0 {
		return ""
	}
	return v.filterInput.Value()
}

// Refresh returns a command that reloads the job list.
func (v *View) Refresh() tea.Cmd {
	v.loading = true
	return v.loadJobs()
}

// View renders the jobs view.
func (v *View) View() string {
	var b strings.Builder

	b.WriteString(v.styles.Title.Render("Jobs"))
	b.WriteString("\n\n")

	if v.filtering || len(v.filter) > 0 {
		b.WriteString(v.filterInput.View())
		b.WriteString("\n\n")
	}

	if v.loading && len(v.jobList.Jobs()) == 0 {
		b.WriteString(v.styles.Muted.Render("Loading jobs..."))
		return b.String()
	}

	if v.err != nil {
		b.WriteString(v.styles.Error.Render(fmt.Sprintf("Error: %s", v.err.Error())))
		b.WriteString("\n\n")
	}

	b.WriteString(v.jobList.View())

	return b.String()
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.ready = true
	v.filterInput.SetWidth(width)
	// Title, filter row and padding take up vertical space.
	listHeight := height - 8
	if listHeight < 5 {
		listHeight = 5
	}
	v.jobList.SetDimensions(width, listHeight)
}

// Filtering reports whether the filter input is focused.
func (v *View) Filtering() bool {
	return v.filtering
}

// Filter returns the currently applied filter.
func (v *View) Filter() domain.Filter {
	return v.filter
}

// SelectedJob returns the currently selected job, nil when empty.
func (v *View) SelectedJob() *domain.Job {
	return v.jobList.SelectedJob()
}

// Err returns the last error.
func (v *View) Err() error {
	return v.err
}
