package telemetry_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/ddharvester/internal/domain"
	"github.com/jonesrussell/ddharvester/internal/logger"
	"github.com/jonesrussell/ddharvester/internal/telemetry"
)

type mockRunStore struct {
	updates   []domain.RunCounters
	ended     []string
	updateErr error
}

func (m *mockRunStore) Begin(context.Context, string) (string, error) {
	return "run-1", nil
}

func (m *mockRunStore) UpdateStats(_ context.Context, _ string, c domain.RunCounters) error {
	m.updates = append(m.updates, c)
	return m.updateErr
}

func (m *mockRunStore) End(_ context.Context, runID string) error {
	m.ended = append(m.ended, runID)
	return nil
}

type stepClock struct {
	t    time.Time
	step time.Duration
}

func (c *stepClock) Now() time.Time {
	now := c.t
	c.t = c.t.Add(c.step)
	return now
}

func TestHeartbeat_Due(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	hb := telemetry.NewHeartbeat(30*time.Second, func() time.Time { return now })

	assert.False(t, hb.Due())
	now = now.Add(29 * time.Second)
	assert.False(t, hb.Due())
	now = now.Add(time.Second)
	assert.True(t, hb.Due())
	assert.False(t, hb.Due())
	now = now.Add(31 * time.Second)
	assert.True(t, hb.Due())
}

func TestRecorder_Finish_WritesTextfile(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := &mockRunStore{}
	path := filepath.Join(t.TempDir(), "ddharvester.prom")
	clock := &stepClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), step: 90 * time.Second}

	rec := telemetry.NewRecorder(store, logger.NewNop(),
		telemetry.WithTextfile(path), telemetry.WithRecorderClock(clock.Now))

	runID, err := rec.Begin(ctx, "test")
	require.NoError(t, err)
	assert.Equal(t, "run-1", runID)

	rec.Counters.PostsInserted = 3
	rec.Counters.Errors = 1
	require.NoError(t, rec.Finish(ctx, nil, domain.QueueStats{Queued: 4, Done: 2}))

	require.Len(t, store.updates, 1)
	assert.Equal(t, 3, store.updates[0].PostsInserted)
	assert.Equal(t, []string{"run-1"}, store.ended)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "ddharvester_run_posts_inserted 3")
	assert.Contains(t, text, "ddharvester_run_errors 1")
	assert.Contains(t, text, "ddharvester_run_success 1")
	assert.Contains(t, text, "ddharvester_run_duration_seconds 90")
	assert.Contains(t, text, `ddharvester_queue_items{status="queued"} 4`)
}

func TestRecorder_Finish_AlwaysEnds(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dbErr := errors.New("database is locked")
	store := &mockRunStore{updateErr: dbErr}

	rec := telemetry.NewRecorder(store, logger.NewNop())
	_, err := rec.Begin(ctx, "")
	require.NoError(t, err)

	err = rec.Finish(ctx, errors.New("fatal"), domain.QueueStats{})
	require.ErrorIs(t, err, dbErr)
	assert.Equal(t, []string{"run-1"}, store.ended)
}
