package reddit

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/jonesrussell/ddharvester/internal/source"
)

// Listing kinds.
const (
	kindComment = "t1"
	kindLink    = "t3"
)

const deletedAuthor = "[deleted]"

type listing struct {
	Kind string `json:"kind"`
	Data struct {
		After    string  `json:"after"`
		Children []thing `json:"children"`
	} `json:"data"`
}

type thing struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

type linkData struct {
	ID          string  `json:"id"`
	Subreddit   string  `json:"subreddit"`
	CreatedUTC  float64 `json:"created_utc"`
	Title       string  `json:"title"`
	Selftext    string  `json:"selftext"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
	Permalink   string  `json:"permalink"`
	URL         string  `json:"url"`
	Flair       *string `json:"link_flair_text"`
	Author      *string `json:"author"`
}

type commentData struct {
	ID      string          `json:"id"`
	Body    *string         `json:"body"`
	Replies json.RawMessage `json:"replies"`
}

func (d linkData) toSubmission() source.Submission {
	author := d.Author
	if author != nil && (*author == "" || *author == deletedAuthor) {
		author = nil
	}
	return source.Submission{
		ID:          d.ID,
		Subreddit:   d.Subreddit,
		CreatedUTC:  int64(d.CreatedUTC),
		Title:       d.Title,
		Selftext:    d.Selftext,
		Score:       d.Score,
		NumComments: d.NumComments,
		Permalink:   d.Permalink,
		URL:         d.URL,
		Flair:       d.Flair,
		Author:      author,
	}
}

// submissions returns the t3 children of a listing in order.
func (l listing) submissions() ([]source.Submission, error) {
	subs := make([]source.Submission, 0, len(l.Data.Children))
	for _, child := range l.Data.Children {
		if child.Kind != kindLink {
			continue
		}
		var d linkData
		if err := json.Unmarshal(child.Data, &d); err != nil {
			return nil, fmt.Errorf("decode submission: %w", err)
		}
		subs = append(subs, d.toSubmission())
	}
	return subs, nil
}

// comments returns the loaded t1 children of a listing, recursively
// attaching loaded replies. "more" stubs are dropped.
func (l listing) comments() ([]source.Comment, error) {
	out := make([]source.Comment, 0, len(l.Data.Children))
	for _, child := range l.Data.Children {
		if child.Kind != kindComment {
			continue
		}
		var d commentData
		if err := json.Unmarshal(child.Data, &d); err != nil {
			return nil, fmt.Errorf("decode comment: %w", err)
		}

		c := source.Comment{ID: d.ID}
		if d.Body != nil {
			c.Body = *d.Body
		}

		replies, err := decodeReplies(d.Replies)
		if err != nil {
			return nil, err
		}
		c.Replies = replies
		out = append(out, c)
	}
	return out, nil
}

// decodeReplies handles the replies field, which is an empty string when a
// comment has none and a listing otherwise.
func decodeReplies(raw json.RawMessage) ([]source.Comment, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, nil
	}

	var l listing
	if err := json.Unmarshal(trimmed, &l); err != nil {
		return nil, fmt.Errorf("decode replies: %w", err)
	}
	return l.comments()
}
