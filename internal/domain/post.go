// Package domain holds the records persisted by the harvester.
package domain

// Post is one submission harvested from the forum. Posts are append-only.
type Post struct {
	ID          string  `db:"id"              json:"id"`
	Subreddit   string  `db:"subreddit"       json:"subreddit"`
	CreatedUTC  int64   `db:"created_utc"     json:"created_utc"`
	CreatedISO  string  `db:"created_iso"     json:"created_iso"`
	Title       string  `db:"title"           json:"title"`
	Selftext    string  `db:"selftext"        json:"selftext"`
	Score       int     `db:"score"           json:"score"`
	NumComments int     `db:"num_comments"    json:"num_comments"`
	Permalink   string  `db:"permalink"       json:"permalink"`
	URL         string  `db:"url"             json:"url"`
	Flair       *string `db:"link_flair_text" json:"link_flair_text,omitempty"`
	Author      *string `db:"author"          json:"author,omitempty"`
	RetrievedAt string  `db:"retrieved_at_utc" json:"retrieved_at_utc"`
}

// Link is a URL extracted from a post. (PostID, URL) is unique.
type Link struct {
	PostID    string `db:"post_id"        json:"post_id"`
	URL       string `db:"url"            json:"url"`
	FirstSeen string `db:"first_seen_utc" json:"first_seen_utc"`
}
