// Package messages defines Bubbletea message types for the TUI.
// Messages represent events and commands that flow through the Elm architecture.
package messages

import (
	"time"

	"github.com/stratalabs/strata/internal/core/domain"
	"github.com/stratalabs/strata/internal/core/ports/driving"
)

// ViewType identifies which dashboard tab is currently active.
type ViewType int

const (
	// ViewOverview is the project summary tab.
	ViewOverview ViewType = iota
	// ViewJobs is the job list tab.
	ViewJobs
	// ViewQueue is the task queue tab.
	ViewQueue
	// ViewHelp is the help/keybindings view.
	ViewHelp
)

// String returns the string representation of the view type.
func (v ViewType) String() string {
	switch v {
	case ViewOverview:
		return "overview"
	case ViewJobs:
		return "jobs"
	case ViewQueue:
		return "queue"
	case ViewHelp:
		return "help"
	default:
		return "unknown"
	}
}

// ViewChanged is sent when navigating between tabs.
type ViewChanged struct {
	View ViewType
}

// RefreshTick fires on the periodic dashboard refresh.
type RefreshTick struct {
	At time.Time
}

// StatusLoaded carries a project status snapshot to the overview.
type StatusLoaded struct {
	Status *driving.ProjectStatus
	At     time.Time
	Err    error
}

// JobsLoaded carries the job list with per-job open instance counts.
type JobsLoaded struct {
	Jobs []domain.Job
	Open map[string]int
	Err  error
}

// QueueLoaded carries queue counts and entries.
type QueueLoaded struct {
	Counts  domain.QueueCounts
	Entries []domain.QueueEntry
	Err     error
}

// FilterApplied is sent when the job filter input is confirmed.
type FilterApplied struct {
	Filter domain.Filter
}

// ErrorOccurred signals that an error happened.
type ErrorOccurred struct {
	Err error
}

// Quit signals the application should exit.
type Quit struct{}
