package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratalabs/strata/internal/adapters/driving/tui/messages"
	"github.com/stratalabs/strata/internal/adapters/driving/tui/styles"
	"github.com/stratalabs/strata/internal/core/domain"
	"github.com/stratalabs/strata/internal/core/ports/driving"
)

// mockJobService implements driving.JobService for tests. Only List
// and Find are exercised here; the rest return zero values.
type mockJobService struct {
	jobs       []domain.Job
	found      []domain.Job
	lastFilter domain.Filter
	err        error
}

func (m *mockJobService) Job(_ domain.Parameters) (*domain.Job, error) { return nil, m.err }

func (m *mockJobService) Create(_ context.Context, _ domain.Parameters) (*domain.Job, error) {
	return nil, m.err
}

func (m *mockJobService) Open(_ context.Context, _ domain.Parameters) (driving.OpenJob, error) {
	return nil, m.err
}

func (m *mockJobService) Get(_ context.Context, _ string) (*domain.Job, error) {
	return nil, m.err
}

func (m *mockJobService) List(_ context.Context) ([]domain.Job, error) {
	return m.jobs, m.err
}

func (m *mockJobService) Find(_ context.Context, filter domain.Filter) ([]domain.Job, error) {
	m.lastFilter = filter
	return m.found, m.err
}

func (m *mockJobService) Status(_ context.Context, _ string) (*domain.JobStatus, error) {
	return nil, m.err
}

func (m *mockJobService) ScanParameters(_ *domain.Job, _ any) error { return m.err }

func (m *mockJobService) Remove(_ context.Context, _ string, _ bool) error { return m.err }

func (m *mockJobService) RemoveAll(_ context.Context, _ bool) (int, error) { return 0, m.err }

func (m *mockJobService) GetDocument(_ context.Context, _ string) (map[string]any, error) {
	return nil, m.err
}

func (m *mockJobService) GetValue(_ context.Context, _, _ string) (any, error) {
	return nil, m.err
}

func (m *mockJobService) SetValue(_ context.Context, _, _ string, _ any) error { return m.err }

func (m *mockJobService) UnsetValue(_ context.Context, _, _ string) error { return m.err }

// mockProjectService provides open instances for the open counts.
type mockProjectService struct {
	status *driving.ProjectStatus
	err    error
}

func (m *mockProjectService) Project() *domain.Project { return nil }

func (m *mockProjectService) Status(_ context.Context) (*driving.ProjectStatus, error) {
	return m.status, m.err
}

func (m *mockProjectService) Check(_ context.Context) ([]driving.CheckResult, error) {
	return nil, m.err
}

func (m *mockProjectService) Cleanup(_ context.Context, _ time.Duration) ([]domain.DeadInstance, error) {
	return nil, m.err
}

func (m *mockProjectService) Log(_ context.Context, _ domain.LogLevel, _ int) ([]domain.LogRecord, error) {
	return nil, m.err
}

func (m *mockProjectService) ClearLogs(_ context.Context) (int, error) { return 0, m.err }

func (m *mockProjectService) Migrate(_ context.Context) (int, error) { return 0, m.err }

func testJobs() []domain.Job {
	return []domain.Job{
		{ID: "aaaaaaaa1111", Parameters: domain.Parameters{"alpha": 0.5}},
		{ID: "bbbbbbbb2222", Parameters: domain.Parameters{"alpha": 1.5}},
	}
}

func TestView_Init(t *testing.T) {
	v := NewView(styles.DefaultStyles(), &mockJobService{jobs: testJobs()}, nil)

	cmd := v.Init()
	require.NotNil(t, cmd)

	msg := cmd()
	loaded, ok := msg.(messages.JobsLoaded)
	require.True(t, ok)
	assert.NoError(t, loaded.Err)
	assert.Len(t, loaded.Jobs, 2)
}

func TestView_Init_NoService(t *testing.T) {
	v := NewView(styles.DefaultStyles(), nil, nil)

	msg := v.Init()()
	loaded, ok := msg.(messages.JobsLoaded)
	require.True(t, ok)
	assert.Error(t, loaded.Err)
}

func TestView_OpenCounts(t *testing.T) {
	projects := &mockProjectService{status: &driving.ProjectStatus{
		OpenInstances: []domain.OpenInstance{
			{JobID: "aaaaaaaa1111", InstanceID: "inst-1"},
			{JobID: "aaaaaaaa1111", InstanceID: "inst-2"},
		},
	}}
	v := NewView(styles.DefaultStyles(), &mockJobService{jobs: testJobs()}, projects)

	msg := v.Init()()
	loaded, ok := msg.(messages.JobsLoaded)
	require.True(t, ok)
	assert.Equal(t, 2, loaded.Open["aaaaaaaa1111"])
	assert.Zero(t, loaded.Open["bbbbbbbb2222"])
}

func TestView_Update_JobsLoaded(t *testing.T) {
	t.Run("stores jobs", func(t *testing.T) {
		v := NewView(styles.DefaultStyles(), nil, nil)

		v, _ = v.Update(messages.JobsLoaded{Jobs: testJobs()})

		assert.NoError(t, v.Err())
		require.NotNil(t, v.SelectedJob())
		assert.Equal(t, "aaaaaaaa1111", v.SelectedJob().ID)
	})

	t.Run("stores error", func(t *testing.T) {
		v := NewView(styles.DefaultStyles(), nil, nil)

		v, _ = v.Update(messages.JobsLoaded{Err: errors.New("store gone")})

		assert.Error(t, v.Err())
	})
}

func TestView_Navigation(t *testing.T) {
	v := NewView(styles.DefaultStyles(), nil, nil)
	v, _ = v.Update(messages.JobsLoaded{Jobs: testJobs()})

	v, _ = v.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'j'}})
	assert.Equal(t, "bbbbbbbb2222", v.SelectedJob().ID)

	v, _ = v.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'k'}})
	assert.Equal(t, "aaaaaaaa1111", v.SelectedJob().ID)
}

func TestView_Filtering(t *testing.T) {
	t.Run("slash focuses the filter", func(t *testing.T) {
		v := NewView(styles.DefaultStyles(), &mockJobService{}, nil)

		v, _ = v.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'/'}})

		assert.True(t, v.Filtering())
	})

	t.Run("esc cancels without applying", func(t *testing.T) {
		v := NewView(styles.DefaultStyles(), &mockJobService{}, nil)
		v, _ = v.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'/'}})

		v, _ = v.Update(tea.KeyMsg{Type: tea.KeyEsc})

		assert.False(t, v.Filtering())
		assert.Empty(t, v.Filter())
	})

	t.Run("enter applies the filter", func(t *testing.T) {
		svc := &mockJobService{found: testJobs()[:1]}
		v := NewView(styles.DefaultStyles(), svc, nil)
		v, _ = v.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'/'}})
		v.filterInput.SetValue("alpha=0.5")

		v, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEnter})
		require.NotNil(t, cmd)

		assert.False(t, v.Filtering())
		assert.Equal(t, domain.Filter{"alpha": 0.5}, v.Filter())
	})

	t.Run("malformed filter surfaces error", func(t *testing.T) {
		v := NewView(styles.DefaultStyles(), &mockJobService{}, nil)
		v, _ = v.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'/'}})
		v.filterInput.SetValue("{not json")

		v, _ = v.Update(tea.KeyMsg{Type: tea.KeyEnter})

		assert.Error(t, v.Err())
		assert.True(t, v.Filtering())
	})

	t.Run("applied filter is used on reload", func(t *testing.T) {
		svc := &mockJobService{found: testJobs()[:1]}
		v := NewView(styles.DefaultStyles(), svc, nil)
		v.filter = domain.Filter{"alpha": 0.5}

		msg := v.Refresh()()
		loaded, ok := msg.(messages.JobsLoaded)
		require.True(t, ok)

		assert.Len(t, loaded.Jobs, 1)
		assert.Equal(t, domain.Filter{"alpha": 0.5}, svc.lastFilter)
	})
}

func TestView_View(t *testing.T) {
	t.Run("renders job list", func(t *testing.T) {
		v := NewView(styles.DefaultStyles(), nil, nil)
		v.SetDimensions(100, 30)
		v, _ = v.Update(messages.JobsLoaded{Jobs: testJobs()})

		out := v.View()

		assert.Contains(t, out, "Jobs (2)")
		assert.Contains(t, out, "aaaaaaaa")
	})

	t.Run("renders loading state", func(t *testing.T) {
		v := NewView(styles.DefaultStyles(), &mockJobService{}, nil)
		v.Init()

		out := v.View()

		assert.Contains(t, out, "Loading")
	})

	t.Run("shows filter input while filtering", func(t *testing.T) {
		v := NewView(styles.DefaultStyles(), &mockJobService{}, nil)
		v.SetDimensions(100, 30)
		v, _ = v.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'/'}})

		out := v.View()

		assert.Contains(t, out, "Filter:")
	})

	t.Run("renders error state", func(t *testing.T) {
		v := NewView(styles.DefaultStyles(), nil, nil)
		v, _ = v.Update(messages.JobsLoaded{Err: errors.New("store gone")})

		out := v.View()

		assert.Contains(t, out, "Error: store gone")
	})
}
