package queue

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

// mockQueueService implements driving.QueueService for tests.
type mockQueueService struct {
	counts  domain.QueueCounts
	entries []domain.QueueEntry
	err     error
}

func (m *mockQueueService) Enqueue(_ context.Context, _, _ string) (*domain.QueueEntry, error) {
	return nil, m.err
}

func (m *mockQueueService) Work(_ context.Context, _ int, _ bool) error { return m.err }

func (m *mockQueueService) Counts(_ context.Context) (domain.QueueCounts, error) {
	return m.counts, m.err
}

func (m *mockQueueService) List(_ context.Context, _ domain.QueueState) ([]domain.QueueEntry, error) {
	return m.entries, m.err
}

func (m *mockQueueService) ClearResults(_ context.Context) (int, error) { return 0, m.err }

func (m *mockQueueService) ClearQueued(_ context.Context) (int, error) { return 0, m.err }

func (m *mockQueueService) WorkerStatuses() []driving.WorkerStatus { return nil }

func testEntries() []domain.QueueEntry {
	return []domain.QueueEntry{
		{ID: 1, JobID: "aaaaaaaa1111", Task: "make run", State: domain.QueueStateCompleted, EnqueuedAt: time.Now().Add(-time.Minute)},
		{ID: 2, JobID: "bbbbbbbb2222", Task: "make run", State: domain.QueueStateAborted, Error: "exit status 2", EnqueuedAt: time.Now().Add(-30 * time.Second)},
		{ID: 3, JobID: "cccccccc3333", Task: "make run", State: domain.QueueStateQueued, EnqueuedAt: time.Now()},
	}
}

func TestView_Init(t *testing.T) {
	svc := &mockQueueService{
		counts:  domain.QueueCounts{Queued: 1, Completed: 1, Aborted: 1},
		entries: testEntries(),
	}
	v := NewView(styles.DefaultStyles(), svc)

	cmd := v.Init()
	require.NotNil(t, cmd)

	msg := cmd()
	loaded, ok := msg.(messages.QueueLoaded)
	require.True(t, ok)
	assert.NoError(t, loaded.Err)
	assert.Len(t, loaded.Entries, 3)
	assert.Equal(t, 1, loaded.Counts.Queued)
}

func TestView_Init_NoService(t *testing.T) {
	v := NewView(styles.DefaultStyles(), nil)

	msg := v.Init()()
	loaded, ok := msg.(messages.QueueLoaded)
	require.True(t, ok)
	assert.Error(t, loaded.Err)
}

func TestView_Update_QueueLoaded(t *testing.T) {
	t.Run("stores counts and entries", func(t *testing.T) {
		v := NewView(styles.DefaultStyles(), nil)

		v, _ = v.Update(messages.QueueLoaded{
			Counts:  domain.QueueCounts{Queued: 2},
			Entries: testEntries(),
		})

		assert.Equal(t, 2, v.Counts().Queued)
		assert.Len(t, v.Entries(), 3)
		assert.NoError(t, v.Err())
	})

	t.Run("stores error", func(t *testing.T) {
		v := NewView(styles.DefaultStyles(), nil)

		v, _ = v.Update(messages.QueueLoaded{Err: errors.New("store gone")})

		assert.Error(t, v.Err())
	})
}

func TestView_Update_WindowSize(t *testing.T) {
	v := NewView(styles.DefaultStyles(), nil)

	v, _ = v.Update(tea.WindowSizeMsg{Width: 100, Height: 40})

	assert.Equal(t, 100, v.width)
	assert.True(t, v.ready)
}

func TestView_View(t *testing.T) {
	t.Run("renders counts and entries", func(t *testing.T) {
		v := NewView(styles.DefaultStyles(), nil)
		v.SetDimensions(120, 40)
		v, _ = v.Update(messages.QueueLoaded{
			Counts:  domain.QueueCounts{Queued: 1, Completed: 1, Aborted: 1},
			Entries: testEntries(),
		})

		out := v.View()

		assert.Contains(t, out, "Queue")
		assert.Contains(t, out, "queued:")
		assert.Contains(t, out, "#1")
		assert.Contains(t, out, "make run")
		assert.Contains(t, out, "aaaaaaaa")
		assert.Contains(t, out, "exit status 2")
		// The full 12 character job ID is shortened for display.
		assert.NotContains(t, out, "aaaaaaaa1111")
	})

	t.Run("renders empty state", func(t *testing.T) {
		v := NewView(styles.DefaultStyles(), nil)
		v, _ = v.Update(messages.QueueLoaded{})

		out := v.View()

		assert.Contains(t, out, "Queue is empty")
	})

	t.Run("renders loading state", func(t *testing.T) {
		v := NewView(styles.DefaultStyles(), &mockQueueService{})
		v.Init()

		out := v.View()

		assert.Contains(t, out, "Loading")
	})

	t.Run("renders error state", func(t *testing.T) {
		v := NewView(styles.DefaultStyles(), nil)
		v, _ = v.Update(messages.QueueLoaded{Err: errors.New("store gone")})

		out := v.View()

		assert.Contains(t, out, "Error: store gone")
	})

	t.Run("windows long entry lists", func(t *testing.T) {
		entries := make([]domain.QueueEntry, 30)
		for i := range entries {
			entries[i] = domain.QueueEntry{ID: int64(i + 1), JobID: "aaaaaaaa1111", Task: "make run", State: domain.QueueStateQueued}
		}
		v := NewView(styles.DefaultStyles(), nil)
		v.SetDimensions(120, 16)
		v, _ = v.Update(messages.QueueLoaded{Entries: entries})

		out := v.View()

		assert.Contains(t, out, "more")
		// Newest entries are shown first.
		assert.Contains(t, out, "#30")
	})
}

func TestView_Refresh(t *testing.T) {
	svc := &mockQueueService{entries: testEntries()}
	v := NewView(styles.DefaultStyles(), svc)

	msg := v.Refresh()()
	loaded, ok := msg.(messages.QueueLoaded)
	require.True(t, ok)
	assert.NoError(t, loaded.Err)
	assert.Len(t, loaded.Entries, 3)
}
