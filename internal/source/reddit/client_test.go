package reddit_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/jonesrussell/ddharvester/internal/logger"
	"github.com/jonesrussell/ddharvester/internal/retry"
	"github.com/jonesrussell/ddharvester/internal/source"
	"github.com/jonesrussell/ddharvester/internal/source/reddit"
)

const tokenResponse = `{"access_token":"tok-1","token_type":"bearer","expires_in":3600}`

func linkJSON(id, flair string, created int) string {
	flairJSON := "null"
	if flair != "" {
		flairJSON = fmt.Sprintf("%q", flair)
	}
	return fmt.Sprintf(`{"kind":"t3","data":{"id":%q,"subreddit":"Superstonk","created_utc":%d.0,
		"title":"title %s","selftext":"see https://gme.fyi","score":42,"num_comments":3,
		"permalink":"/r/Superstonk/comments/%s/t/","url":"https://www.reddit.com/r/Superstonk/comments/%s/t/",
		"link_flair_text":%s,"author":"[deleted]"}}`, id, created, id, id, id, flairJSON)
}

func newTestServer(t *testing.T, mux *http.ServeMux) *httptest.Server {
	t.Helper()

	mux.HandleFunc("/api/v1/access_token", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "id" || pass != "secret" || r.Method != http.MethodPost {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(tokenResponse))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newClient(t *testing.T, server *httptest.Server) *reddit.Client {
	t.Helper()

	client, err := reddit.New(reddit.Config{
		ClientID:     "id",
		ClientSecret: "secret",
		UserAgent:    "ddharvester-test",
		Subreddit:    "Superstonk",
		BaseURL:      server.URL,
		TokenURL:     server.URL + "/api/v1/access_token",
	}, logger.NewNop(),
		reddit.WithLimiter(rate.NewLimiter(rate.Inf, 1)),
		reddit.WithRetry(retry.Config{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}),
	)
	require.NoError(t, err)
	return client
}

func requireAuth(t *testing.T, r *http.Request) {
	t.Helper()
	assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
	assert.Equal(t, "ddharvester-test", r.Header.Get("User-Agent"))
}

func TestNew_RequiresCredentials(t *testing.T) {
	t.Parallel()

	_, err := reddit.New(reddit.Config{}, logger.NewNop())
	require.Error(t, err)
}

func TestClient_Search_Paginates(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/r/Superstonk/search", func(w http.ResponseWriter, r *http.Request) {
		requireAuth(t, r)
		q := r.URL.Query()
		assert.Equal(t, `flair:"📚 Due Diligence"`, q.Get("q"))
		assert.Equal(t, "new", q.Get("sort"))
		assert.Equal(t, "lucene", q.Get("syntax"))
		assert.Equal(t, "1", q.Get("restrict_sr"))

		switch q.Get("after") {
		case "":
			fmt.Fprintf(w, `{"kind":"Listing","data":{"after":"t3_bbbbb2","children":[%s,%s]}}`,
				linkJSON("aaaaa1", "📚 Due Diligence", 1700000300), linkJSON("bbbbb2", "", 1700000200))
		case "t3_bbbbb2":
			fmt.Fprintf(w, `{"kind":"Listing","data":{"after":null,"children":[%s]}}`,
				linkJSON("ccccc3", "📚 Due Diligence", 1700000100))
		default:
			t.Errorf("unexpected cursor %q", q.Get("after"))
		}
	})
	client := newClient(t, newTestServer(t, mux))

	var ids []string
	for sub, err := range client.Search(context.Background(), source.SearchParams{
		Query: `flair:"📚 Due Diligence"`, Sort: source.SortNew, Syntax: source.SyntaxLucene,
	}) {
		require.NoError(t, err)
		ids = append(ids, sub.ID)
	}
	assert.Equal(t, []string{"aaaaa1", "bbbbb2", "ccccc3"}, ids)
}

func TestClient_Search_Limit(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/r/Superstonk/search", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "2", r.URL.Query().Get("limit"))
		fmt.Fprintf(w, `{"kind":"Listing","data":{"after":"t3_x","children":[%s,%s]}}`,
			linkJSON("aaaaa1", "", 1), linkJSON("bbbbb2", "", 2))
	})
	client := newClient(t, newTestServer(t, mux))

	n := 0
	for _, err := range client.Search(context.Background(), source.SearchParams{Query: "gme.fyi", Limit: 2}) {
		require.NoError(t, err)
		n++
	}
	assert.Equal(t, 2, n)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_SubmissionByID(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/comments/aaaaa1", func(w http.ResponseWriter, r *http.Request) {
		requireAuth(t, r)
		fmt.Fprintf(w, `[{"kind":"Listing","data":{"children":[%s]}},{"kind":"Listing","data":{"children":[]}}]`,
			linkJSON("aaaaa1", "📚 Possible DD", 1700000000))
	})
	mux.HandleFunc("/comments/gone01", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"message":"Not Found","error":404}`, http.StatusNotFound)
	})
	client := newClient(t, newTestServer(t, mux))

	sub, err := client.SubmissionByID(context.Background(), "aaaaa1")
	require.NoError(t, err)
	assert.Equal(t, "aaaaa1", sub.ID)
	assert.Equal(t, int64(1700000000), sub.CreatedUTC)
	assert.Equal(t, "/r/Superstonk/comments/aaaaa1/t/", sub.Permalink)
	assert.Nil(t, sub.Author)
	require.NotNil(t, sub.Flair)
	assert.Equal(t, "📚 Possible DD", *sub.Flair)

	_, err = client.SubmissionByID(context.Background(), "gone01")
	require.ErrorIs(t, err, source.ErrNotFound)

	var apiErr *reddit.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}

func TestClient_SubmissionByURL(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/info", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("url") == "https://example.com/missing" {
			fmt.Fprint(w, `{"kind":"Listing","data":{"children":[]}}`)
			return
		}
		fmt.Fprintf(w, `{"kind":"Listing","data":{"children":[%s]}}`, linkJSON("aaaaa1", "", 1))
	})
	client := newClient(t, newTestServer(t, mux))

	sub, err := client.SubmissionByURL(context.Background(), "https://www.reddit.com/r/Superstonk/wiki/dd")
	require.NoError(t, err)
	assert.Equal(t, "aaaaa1", sub.ID)

	_, err = client.SubmissionByURL(context.Background(), "https://example.com/missing")
	require.ErrorIs(t, err, source.ErrNotFound)
}

func TestClient_TopCommentsAndReplies(t *testing.T) {
	t.Parallel()

	const comments = `[
		{"kind":"Listing","data":{"children":[]}},
		{"kind":"Listing","data":{"children":[
			{"kind":"t1","data":{"id":"c1","body":"index https://redd.it/aaaaa1","replies":{"kind":"Listing","data":{"children":[
				{"kind":"t1","data":{"id":"r1","body":"https://www.reddit.com/r/Superstonk/comments/bbbbb2/x/","replies":""}},
				{"kind":"t1","data":{"id":"r2","body":null,"replies":""}},
				{"kind":"more","data":{"count":5}}
			]}}}},
			{"kind":"t1","data":{"id":"c2","body":null,"replies":""}},
			{"kind":"more","data":{"count":40}}
		]}}
	]`

	mux := http.NewServeMux()
	mux.HandleFunc("/comments/hub001", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "best", r.URL.Query().Get("sort"))
		assert.Equal(t, "75", r.URL.Query().Get("limit"))
		fmt.Fprint(w, comments)
	})
	client := newClient(t, newTestServer(t, mux))
	ctx := context.Background()

	top, err := client.TopComments(ctx, source.Submission{ID: "hub001"}, source.SortBest, 75)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "index https://redd.it/aaaaa1", top[0].Body)
	assert.Empty(t, top[1].Body)

	replies, err := client.Replies(ctx, top[0], 20)
	require.NoError(t, err)
	require.Len(t, replies, 2)
	assert.Equal(t, "r1", replies[0].ID)

	limited, err := client.Replies(ctx, top[0], 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestClient_RetriesRateLimited(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/comments/aaaaa1", func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprintf(w, `[{"kind":"Listing","data":{"children":[%s]}}]`, linkJSON("aaaaa1", "", 1))
	})
	client := newClient(t, newTestServer(t, mux))

	sub, err := client.SubmissionByID(context.Background(), "aaaaa1")
	require.NoError(t, err)
	assert.Equal(t, "aaaaa1", sub.ID)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_Search_YieldsError(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/r/Superstonk/search", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	client := newClient(t, newTestServer(t, mux))

	var errs []error
	for _, err := range client.Search(context.Background(), source.SearchParams{Query: "x"}) {
		errs = append(errs, err)
	}
	require.Len(t, errs, 1)

	var apiErr *reddit.APIError
	require.True(t, errors.As(errs[0], &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
}
