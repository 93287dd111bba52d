package ingest_test

import (
	"context"
	"errors"
	"iter"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/jonesrussell/ddharvester/internal/budget"
	"github.com/jonesrussell/ddharvester/internal/database"
	"github.com/jonesrussell/ddharvester/internal/domain"
	"github.com/jonesrussell/ddharvester/internal/frontier"
	"github.com/jonesrussell/ddharvester/internal/ingest"
	"github.com/jonesrussell/ddharvester/internal/logger"
	"github.com/jonesrussell/ddharvester/internal/source"
	"github.com/jonesrussell/ddharvester/internal/source/mocks"
	"github.com/jonesrussell/ddharvester/internal/telemetry"
)

const testFlair = "📚 Due Diligence"

type harness struct {
	pipeline *ingest.Pipeline
	store    *database.Store
	src      *mocks.MockContentSource
}

func newHarness(t *testing.T, cfg ingest.Config, ctrl *budget.Controller) *harness {
	t.Helper()

	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{Driver: database.DriverSQLite, DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(ctx, db))

	store := database.NewStore(db)
	src := mocks.NewMockContentSource(gomock.NewController(t))
	if ctrl == nil {
		ctrl = budget.New(0, 0)
	}
	if len(cfg.Flairs) == 0 {
		cfg.Flairs = []string{testFlair}
	}
	rec := telemetry.NewRecorder(store.Repos().Runs, logger.NewNop())

	return &harness{
		pipeline: ingest.New(cfg, src, store, ctrl, rec, logger.NewNop()),
		store:    store,
		src:      src,
	}
}

func (h *harness) enqueue(t *testing.T, e frontier.Entry) {
	t.Helper()
	_, err := frontier.New(h.store.Repos().Queue, frontier.Config{}).Enqueue(context.Background(), e)
	require.NoError(t, err)
}

func (h *harness) item(t *testing.T, key string) *domain.QueueItem {
	t.Helper()
	item, err := h.store.Repos().Queue.Get(context.Background(), key)
	require.NoError(t, err)
	return item
}

func submission(id, body string) source.Submission {
	return source.Submission{
		ID:         id,
		Subreddit:  "Superstonk",
		CreatedUTC: 1700000000,
		Title:      "post " + id,
		Selftext:   body,
		Permalink:  "/r/Superstonk/comments/" + id + "/post/",
		URL:        "https://www.reddit.com/r/Superstonk/comments/" + id + "/post/",
	}
}

func seq(subs ...source.Submission) iter.Seq2[source.Submission, error] {
	return func(yield func(source.Submission, error) bool) {
		for _, s := range subs {
			if !yield(s, nil) {
				return
			}
		}
	}
}

func flairParams() source.SearchParams {
	return source.SearchParams{Query: `flair:"` + testFlair + `"`, Sort: source.SortNew, Syntax: source.SyntaxLucene}
}

func TestStoreSubmission_Idempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t, ingest.Config{}, nil)
	sub := submission("aaaaa1", "library https://redd.it/bbbbb2 and https://gme.fyi.")

	for i, want := range []bool{true, false} {
		err := h.store.InTx(ctx, func(r database.Repositories) error {
			inserted, storeErr := h.pipeline.StoreSubmission(ctx, r, sub, 0)
			assert.Equal(t, want, inserted, "call %d", i)
			return storeErr
		})
		require.NoError(t, err)
	}

	n, err := h.store.Repos().Posts.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	post, err := h.store.Repos().Posts.GetByID(ctx, "aaaaa1")
	require.NoError(t, err)
	assert.Equal(t, "https://www.reddit.com/r/Superstonk/comments/aaaaa1/post/", post.Permalink)
	assert.Equal(t, "2023-11-14T22:13:20Z", post.CreatedISO)

	links, err := h.store.Repos().Links.ListByPost(ctx, "aaaaa1")
	require.NoError(t, err)
	assert.Len(t, links, 3)

	queued := h.item(t, "bbbbb2")
	assert.Equal(t, 1, queued.Depth)
	assert.Equal(t, "https://redd.it/bbbbb2", queued.URL)
}

func TestStoreSubmission_DepthBound(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t, ingest.Config{}, nil)
	sub := submission("aaaaa1", "https://redd.it/bbbbb2")

	err := h.store.InTx(ctx, func(r database.Repositories) error {
		_, storeErr := h.pipeline.StoreSubmission(ctx, r, sub, frontier.DefaultMaxDepth)
		return storeErr
	})
	require.NoError(t, err)

	stats, err := h.store.Repos().Queue.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Total())
}

func TestStoreSubmission_EmptyID(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t, ingest.Config{}, nil)

	err := h.store.InTx(ctx, func(r database.Repositories) error {
		_, storeErr := h.pipeline.StoreSubmission(ctx, r, source.Submission{}, 0)
		return storeErr
	})
	assert.Equal(t, ingest.KindParse, ingest.KindOf(err))
}

func TestFlairScan_StopsAtDupStreak(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t, ingest.Config{}, nil)

	dup := submission("dup001", "")
	_, err := h.store.Repos().Posts.InsertIfAbsent(ctx, &domain.Post{
		ID: dup.ID, Subreddit: "Superstonk", CreatedISO: "x", Title: "t", Permalink: "p",
	})
	require.NoError(t, err)

	examined := 0
	stream := func(yield func(source.Submission, error) bool) {
		for range ingest.DefaultDupStreakLimit + 500 {
			examined++
			if !yield(dup, nil) {
				return
			}
		}
	}
	h.src.EXPECT().Search(gomock.Any(), flairParams()).Return(iter.Seq2[source.Submission, error](stream))

	require.NoError(t, h.pipeline.FlairScan(ctx))
	assert.Equal(t, ingest.DefaultDupStreakLimit, examined)
	assert.Zero(t, h.pipeline.Counters().PostsInserted)
}

func TestFlairScan_ResetsStreakOnInsert(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t, ingest.Config{DupStreakLimit: 2}, nil)

	// new, dup, new, dup, dup (stop), never reached
	stream := seq(
		submission("aaaaa1", ""), submission("aaaaa1", ""),
		submission("bbbbb2", ""), submission("bbbbb2", ""), submission("aaaaa1", ""),
		submission("ccccc3", ""),
	)
	h.src.EXPECT().Search(gomock.Any(), flairParams()).Return(stream)

	require.NoError(t, h.pipeline.FlairScan(ctx))
	assert.Equal(t, 2, h.pipeline.Counters().PostsInserted)

	_, err := h.store.Repos().Posts.GetByID(ctx, "ccccc3")
	require.ErrorIs(t, err, database.ErrNotFound)
}

func TestFlairScan_FetchErrorIsFatal(t *testing.T) {
	t.Parallel()

	h := newHarness(t, ingest.Config{}, nil)
	boom := errors.New("503 service unavailable")
	h.src.EXPECT().Search(gomock.Any(), gomock.Any()).Return(iter.Seq2[source.Submission, error](
		func(yield func(source.Submission, error) bool) { yield(source.Submission{}, boom) },
	))

	err := h.pipeline.FlairScan(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Equal(t, ingest.KindFetch, ingest.KindOf(err))
}

func TestFlairScan_PacesEveryResult(t *testing.T) {
	t.Parallel()

	paced := 0
	ctrl := budget.New(0, time.Second, budget.WithSleeper(func(context.Context, time.Duration) error {
		paced++
		return nil
	}))
	h := newHarness(t, ingest.Config{}, ctrl)
	h.src.EXPECT().Search(gomock.Any(), flairParams()).
		Return(seq(submission("aaaaa1", ""), submission("aaaaa1", ""), submission("bbbbb2", "")))

	require.NoError(t, h.pipeline.FlairScan(context.Background()))
	assert.Equal(t, 3, paced)
}

func TestDiscoverHubs_SeedsHubItems(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t, ingest.Config{HubQueries: []string{`"gme.fyi"`, `"library of DD"`}}, nil)

	h.src.EXPECT().Search(gomock.Any(), source.SearchParams{
		Query: `"gme.fyi"`, Sort: source.SortRelevance, Syntax: source.SyntaxLucene, Limit: ingest.DefaultHubSearchLimit,
	}).Return(seq(submission("hub001", ""), submission("hub002", "")))
	h.src.EXPECT().Search(gomock.Any(), gomock.Any()).Return(seq(submission("hub001", "")))

	require.NoError(t, h.pipeline.DiscoverHubs(ctx))
	assert.Equal(t, 3, h.pipeline.Counters().HubsQueued)

	hub := h.item(t, "hub001")
	assert.True(t, hub.IsHub)
	assert.Equal(t, 0, hub.Depth)
	assert.Equal(t, ingest.DefaultHubReplyDepth, hub.MaxCommentDepth)
	assert.Equal(t, "https://www.reddit.com/r/Superstonk/comments/hub001/post/", hub.URL)

	n, err := h.store.Repos().Posts.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCrawlQueue_DeadlineInPast(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ctrl := budget.New(time.Minute, 0, budget.WithClock(func() time.Time { return now }))
	now = now.Add(time.Hour)

	h := newHarness(t, ingest.Config{}, ctrl)
	h.enqueue(t, frontier.Entry{Key: "aaaaa1", URL: "https://redd.it/aaaaa1"})
	h.enqueue(t, frontier.Entry{Key: "bbbbb2", URL: "https://redd.it/bbbbb2"})

	before, err := h.store.Repos().Queue.List(ctx, "", 10)
	require.NoError(t, err)

	require.NoError(t, h.pipeline.CrawlQueue(ctx))

	after, err := h.store.Repos().Queue.List(ctx, "", 10)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestCrawlQueue_ErrorIsolation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t, ingest.Config{}, nil)
	for _, key := range []string{"aaaaa1", "bbbbb2", "ccccc3"} {
		h.enqueue(t, frontier.Entry{Key: key, URL: "https://www.reddit.com/r/Superstonk/comments/" + key + "/x/", Depth: 1})
	}

	gomock.InOrder(
		h.src.EXPECT().SubmissionByID(gomock.Any(), "aaaaa1").Return(submission("aaaaa1", ""), nil),
		h.src.EXPECT().SubmissionByID(gomock.Any(), "bbbbb2").Return(source.Submission{}, errors.New("read: connection reset")),
		h.src.EXPECT().SubmissionByID(gomock.Any(), "ccccc3").Return(submission("ccccc3", ""), nil),
	)

	require.NoError(t, h.pipeline.CrawlQueue(ctx))

	assert.Equal(t, domain.QueueStatusDone, h.item(t, "aaaaa1").Status)
	assert.Equal(t, domain.QueueStatusDone, h.item(t, "ccccc3").Status)

	failed := h.item(t, "bbbbb2")
	assert.Equal(t, domain.QueueStatusError, failed.Status)
	require.NotNil(t, failed.LastError)
	assert.Contains(t, *failed.LastError, "connection reset")

	counters := h.pipeline.Counters()
	assert.Equal(t, 1, counters.Errors)
	assert.Equal(t, 2, counters.QueueDone)
}

func TestCrawlQueue_HubExpansion(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t, ingest.Config{}, nil)
	h.enqueue(t, frontier.Entry{
		Key: "hub001", URL: "https://www.reddit.com/r/Superstonk/comments/hub001/library/", IsHub: true, MaxCommentDepth: 1,
	})

	hub := submission("hub001", "the library")
	comments := []source.Comment{
		{ID: "c1", Body: "part one https://www.reddit.com/r/Superstonk/comments/aaaaa1/one/"},
		{ID: "c2", Body: "part two https://redd.it/bbbbb2"},
	}
	h.src.EXPECT().SubmissionByID(gomock.Any(), "hub001").Return(hub, nil)
	h.src.EXPECT().TopComments(gomock.Any(), hub, source.SortBest, ingest.DefaultHubTopLevelComments).Return(comments, nil)
	h.src.EXPECT().Replies(gomock.Any(), gomock.Any(), ingest.DefaultHubRepliesPerTop).Return(nil, nil).Times(2)

	// The two discovered items are crawled in the same call; they carry no
	// further links.
	h.src.EXPECT().SubmissionByID(gomock.Any(), "aaaaa1").Return(submission("aaaaa1", ""), nil)
	h.src.EXPECT().SubmissionByID(gomock.Any(), "bbbbb2").Return(submission("bbbbb2", ""), nil)

	require.NoError(t, h.pipeline.CrawlQueue(ctx))

	assert.Equal(t, domain.QueueStatusDone, h.item(t, "hub001").Status)
	for _, key := range []string{"aaaaa1", "bbbbb2"} {
		item := h.item(t, key)
		assert.Equal(t, 1, item.Depth)
		assert.False(t, item.IsHub)
		assert.Equal(t, domain.QueueStatusDone, item.Status)
	}

	stats, err := h.store.Repos().Queue.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.QueueStats{Done: 3}, stats)
}

func TestCrawlQueue_HubExpansionEnqueuesTwoItems(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	// The deadline expires once the hub is processed so the discovered items
	// stay queued.
	ctrl := budget.New(time.Minute, time.Second,
		budget.WithClock(func() time.Time { return now }),
		budget.WithSleeper(func(context.Context, time.Duration) error {
			now = now.Add(time.Hour)
			return nil
		}),
	)
	h := newHarness(t, ingest.Config{}, ctrl)
	h.enqueue(t, frontier.Entry{Key: "hub001", URL: "https://redd.it/hub001", IsHub: true, MaxCommentDepth: 1})

	hub := submission("hub001", "")
	h.src.EXPECT().SubmissionByID(gomock.Any(), "hub001").Return(hub, nil)
	h.src.EXPECT().TopComments(gomock.Any(), hub, source.SortBest, ingest.DefaultHubTopLevelComments).
		Return([]source.Comment{
			{ID: "c1", Body: "https://old.reddit.com/r/Superstonk/comments/aaaaa1/x/"},
			{ID: "c2", Body: "https://www.reddit.com/r/Superstonk/comments/bbbbb2/y/"},
		}, nil)
	h.src.EXPECT().Replies(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, nil).Times(2)

	require.NoError(t, h.pipeline.CrawlQueue(ctx))

	assert.Equal(t, domain.QueueStatusDone, h.item(t, "hub001").Status)
	queued, err := h.store.Repos().Queue.List(ctx, domain.QueueStatusQueued, 10)
	require.NoError(t, err)
	require.Len(t, queued, 2)
	for _, item := range queued {
		assert.NotEqual(t, "hub001", item.Key)
		assert.Equal(t, 1, item.Depth)
	}
}

func TestHubLinks_SkipsReplyFailures(t *testing.T) {
	t.Parallel()

	h := newHarness(t, ingest.Config{}, nil)
	hub := submission("hub001", "")
	top := []source.Comment{
		{ID: "c1", Body: "https://redd.it/bbbbb2 https://gme.fyi"},
		{ID: "c2", Body: ""},
	}
	h.src.EXPECT().TopComments(gomock.Any(), hub, gomock.Any(), gomock.Any()).Return(top, nil)
	h.src.EXPECT().Replies(gomock.Any(), top[0], gomock.Any()).Return(nil, errors.New("malformed thread"))
	h.src.EXPECT().Replies(gomock.Any(), top[1], gomock.Any()).Return([]source.Comment{
		{Body: "https://www.reddit.com/r/Superstonk/comments/aaaaa1/z/"},
		{Body: "https://redd.it/bbbbb2"},
	}, nil)

	links, err := h.pipeline.HubLinks(context.Background(), hub, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://redd.it/bbbbb2",
		"https://www.reddit.com/r/Superstonk/comments/aaaaa1/z/",
	}, links)
}

func TestHubLinks_TopCommentsFailure(t *testing.T) {
	t.Parallel()

	h := newHarness(t, ingest.Config{}, nil)
	h.src.EXPECT().TopComments(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, errors.New("timeout"))

	_, err := h.pipeline.HubLinks(context.Background(), submission("hub001", ""), 1)
	assert.Equal(t, ingest.KindFetch, ingest.KindOf(err))
}
