package frontier_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/ddharvester/internal/database"
	"github.com/jonesrussell/ddharvester/internal/domain"
	"github.com/jonesrussell/ddharvester/internal/frontier"
)

func newQueue(t *testing.T) (*frontier.Queue, *database.QueueRepository) {
	t.Helper()

	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{Driver: database.DriverSQLite, DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(ctx, db))

	repo := database.NewStore(db).Repos().Queue
	return frontier.New(repo, frontier.Config{}), repo
}

func TestQueue_Enqueue_KeyUniqueness(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	q, repo := newQueue(t)

	added, err := q.Enqueue(ctx, frontier.Entry{
		Key: "abc123", URL: "https://www.reddit.com/comments/abc123", Depth: 0, IsHub: true, MaxCommentDepth: 1,
	})
	require.NoError(t, err)
	assert.True(t, added)

	added, err = q.Enqueue(ctx, frontier.Entry{Key: "abc123", URL: "https://redd.it/abc123", Depth: 3})
	require.NoError(t, err)
	assert.False(t, added)

	item, err := repo.Get(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, 0, item.Depth)
	assert.True(t, item.IsHub)
	assert.Equal(t, 1, item.MaxCommentDepth)

	stats, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Total())
}

func TestQueue_Enqueue_DepthBound(t *testing.T) {
	t.Parallel()

	q, _ := newQueue(t)
	_, err := q.Enqueue(context.Background(), frontier.Entry{Key: "abc123", URL: "u", Depth: 4})
	require.ErrorIs(t, err, frontier.ErrDepthExceeded)
}

func TestQueue_Discover(t *testing.T) {
	t.Parallel()

	urls := []string{
		"https://gme.fyi",
		"http://old.reddit.com/r/Superstonk/comments/aaaaa1/one/",
		"https://redd.it/aaaaa1",
		"https://www.reddit.com/r/Superstonk/comments/bbbbb2/two/",
	}

	tests := []struct {
		name        string
		sourceDepth int
		wantAdded   int
		wantDepth   int
	}{
		{name: "from directly ingested post", sourceDepth: 0, wantAdded: 2, wantDepth: 1},
		{name: "one below the bound", sourceDepth: 2, wantAdded: 2, wantDepth: 3},
		{name: "at the bound", sourceDepth: 3, wantAdded: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			q, repo := newQueue(t)

			added, err := q.Discover(ctx, tt.sourceDepth, urls)
			require.NoError(t, err)
			assert.Equal(t, tt.wantAdded, added)

			items, err := repo.List(ctx, "", 10)
			require.NoError(t, err)
			require.Len(t, items, tt.wantAdded)
			for _, item := range items {
				assert.Equal(t, tt.wantDepth, item.Depth)
				assert.LessOrEqual(t, item.Depth, q.MaxDepth())
				assert.False(t, item.IsHub)
			}
			if tt.wantAdded > 0 {
				assert.Equal(t, "aaaaa1", items[0].Key)
				assert.Equal(t, "https://www.reddit.com/r/Superstonk/comments/aaaaa1/one/", items[0].URL)
			}
		})
	}
}

func TestQueue_CompleteAndFail(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	q, repo := newQueue(t)

	for _, key := range []string{"aaaaa1", "bbbbb2"} {
		_, err := q.Enqueue(ctx, frontier.Entry{Key: key, URL: "u/" + key})
		require.NoError(t, err)
	}

	batch, err := q.NextBatch(ctx)
	require.NoError(t, err)
	require.Len(t, batch, 2)

	require.NoError(t, q.Complete(ctx, "aaaaa1"))
	require.NoError(t, q.Fail(ctx, "bbbbb2", errors.New(strings.Repeat("x", 600))))

	failed, err := repo.Get(ctx, "bbbbb2")
	require.NoError(t, err)
	assert.Equal(t, domain.QueueStatusError, failed.Status)
	require.NotNil(t, failed.LastError)
	assert.Len(t, *failed.LastError, domain.MaxErrorLength)

	// Terminal states reject further transitions.
	require.ErrorIs(t, q.Complete(ctx, "bbbbb2"), database.ErrNotQueued)

	batch, err = q.NextBatch(ctx)
	require.NoError(t, err)
	assert.Empty(t, batch)
}

func TestQueue_RequeueHubs(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	q, _ := newQueue(t)

	_, err := q.Enqueue(ctx, frontier.Entry{Key: "hub001", URL: "u", IsHub: true, MaxCommentDepth: 1})
	require.NoError(t, err)
	require.NoError(t, q.Fail(ctx, "hub001", errors.New("timeout")))

	n, err := q.RequeueHubs(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	batch, err := q.NextBatch(ctx)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, "hub001", batch[0].Key)
}

func TestTruncateError(t *testing.T) {
	t.Parallel()

	assert.Empty(t, frontier.TruncateError(nil))
	assert.Equal(t, "short", frontier.TruncateError(errors.New("short")))

	long := strings.Repeat("é", 700)
	got := frontier.TruncateError(errors.New(long))
	assert.Equal(t, domain.MaxErrorLength, len([]rune(got)))
}
