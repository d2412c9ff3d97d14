package overview

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

// mockProjectService implements driving.ProjectService for tests.
type mockProjectService struct {
	status *driving.ProjectStatus
	err    error
}

func (m *mockProjectService) Project() *domain.Project {
	if m.status == nil {
		return nil
	}
	return &m.status.Project
}

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

func testStatus() *driving.ProjectStatus {
	return &driving.ProjectStatus{
		Project: domain.Project{
			ID:            "demo",
			SchemaVersion: domain.MustSchemaVersion("2.0.0"),
		},
		JobCount: 7,
		OpenInstances: []domain.OpenInstance{
			{JobID: "aaaaaaaa1111", InstanceID: "inst-1", OpenedAt: time.Now(), Hostname: "node-3"},
		},
		Pulses: []domain.Pulse{
			{InstanceID: "inst-1", JobID: "aaaaaaaa1111", BeatAt: time.Now().Add(-2 * time.Second)},
		},
		Queue: domain.QueueCounts{Queued: 3, Active: 1, Completed: 12, Aborted: 2},
		HeldLocks: []domain.LockState{
			{Name: "workspace", Holder: "inst-1", Count: 1, AcquiredAt: time.Now()},
		},
	}
}

func TestView_Init(t *testing.T) {
	v := NewView(styles.DefaultStyles(), &mockProjectService{status: testStatus()})

	cmd := v.Init()
	require.NotNil(t, cmd)

	msg := cmd()
	loaded, ok := msg.(messages.StatusLoaded)
	require.True(t, ok)
	assert.NoError(t, loaded.Err)
	assert.Equal(t, 7, loaded.Status.JobCount)
}

func TestView_Init_NoService(t *testing.T) {
	v := NewView(styles.DefaultStyles(), nil)

	msg := v.Init()()
	loaded, ok := msg.(messages.StatusLoaded)
	require.True(t, ok)
	assert.Error(t, loaded.Err)
}

func TestView_Update_StatusLoaded(t *testing.T) {
	t.Run("stores status", func(t *testing.T) {
		v := NewView(styles.DefaultStyles(), nil)

		v, _ = v.Update(messages.StatusLoaded{Status: testStatus(), At: time.Now()})

		require.NotNil(t, v.Status())
		assert.Equal(t, "demo", v.Status().Project.ID)
		assert.NoError(t, v.Err())
	})

	t.Run("stores error", func(t *testing.T) {
		v := NewView(styles.DefaultStyles(), nil)

		v, _ = v.Update(messages.StatusLoaded{Err: errors.New("store gone")})

		assert.Error(t, v.Err())
	})

	t.Run("error clears on next load", func(t *testing.T) {
		v := NewView(styles.DefaultStyles(), nil)

		v, _ = v.Update(messages.StatusLoaded{Err: errors.New("store gone")})
		v, _ = v.Update(messages.StatusLoaded{Status: testStatus(), At: time.Now()})

		assert.NoError(t, v.Err())
	})
}

func TestView_Update_WindowSize(t *testing.T) {
	v := NewView(styles.DefaultStyles(), nil)

	v, _ = v.Update(tea.WindowSizeMsg{Width: 100, Height: 40})

	assert.Equal(t, 100, v.width)
	assert.Equal(t, 40, v.height)
	assert.True(t, v.ready)
}

func TestView_Refresh(t *testing.T) {
	svc := &mockProjectService{status: testStatus()}
	v := NewView(styles.DefaultStyles(), svc)

	cmd := v.Refresh()
	require.NotNil(t, cmd)

	msg := cmd()
	loaded, ok := msg.(messages.StatusLoaded)
	require.True(t, ok)
	assert.NoError(t, loaded.Err)
}

func TestView_View(t *testing.T) {
	t.Run("renders status sections", func(t *testing.T) {
		v := NewView(styles.DefaultStyles(), nil)
		v.SetDimensions(120, 40)
		v, _ = v.Update(messages.StatusLoaded{Status: testStatus(), At: time.Now()})

		out := v.View()

		assert.Contains(t, out, "Overview")
		assert.Contains(t, out, "demo")
		assert.Contains(t, out, "2.0.0")
		assert.Contains(t, out, "Queue")
		assert.Contains(t, out, "Open instances (1)")
		assert.Contains(t, out, "aaaaaaaa")
		assert.Contains(t, out, "node-3")
		assert.Contains(t, out, "Held locks (1)")
		assert.Contains(t, out, "workspace")
		// The full 12 character job ID is shortened for display.
		assert.NotContains(t, out, "aaaaaaaa1111")
	})

	t.Run("renders loading state", func(t *testing.T) {
		v := NewView(styles.DefaultStyles(), &mockProjectService{status: testStatus()})
		v.Init()

		out := v.View()

		assert.Contains(t, out, "Loading")
	})

	t.Run("renders error state", func(t *testing.T) {
		v := NewView(styles.DefaultStyles(), nil)
		v, _ = v.Update(messages.StatusLoaded{Err: errors.New("store gone")})

		out := v.View()

		assert.Contains(t, out, "Error: store gone")
	})

	t.Run("omits lock section when none held", func(t *testing.T) {
		status := testStatus()
		status.HeldLocks = nil
		v := NewView(styles.DefaultStyles(), nil)
		v, _ = v.Update(messages.StatusLoaded{Status: status, At: time.Now()})

		out := v.View()

		assert.NotContains(t, out, "Held locks")
	})

	t.Run("marks dead pulses", func(t *testing.T) {
		status := testStatus()
		status.Pulses[0].BeatAt = time.Now().Add(-time.Hour)
		v := NewView(styles.DefaultStyles(), nil)
		v, _ = v.Update(messages.StatusLoaded{Status: status, At: time.Now()})

		out := v.View()

		assert.Contains(t, out, "dead")
	})

	t.Run("flags missing pulse", func(t *testing.T) {
		status := testStatus()
		status.Pulses = nil
		v := NewView(styles.DefaultStyles(), nil)
		v, _ = v.Update(messages.StatusLoaded{Status: status, At: time.Now()})

		out := v.View()

		assert.Contains(t, out, "no pulse")
	})
}

func TestFormatAge(t *testing.T) {
	assert.Equal(t, "5s", formatAge(5*time.Second))
	assert.Equal(t, "3m", formatAge(3*time.Minute))
	assert.Equal(t, "1.5h", formatAge(90*time.Minute))
}
