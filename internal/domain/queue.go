package domain

// QueueItem status constants. Done and error are terminal.
const (
	QueueStatusQueued = "queued"
	QueueStatusDone   = "done"
	QueueStatusError  = "error"
)

// MaxErrorLength bounds the stored last_error message.
const MaxErrorLength = 500

// QueueItem is one unit of crawl work keyed by submission id or normalized URL.
type QueueItem struct {
	Key             string  `db:"key"               json:"key"`
	URL             string  `db:"url"               json:"url"`
	Depth           int     `db:"depth"             json:"depth"`
	Status          string  `db:"status"            json:"status"`
	LastError       *string `db:"last_error"        json:"last_error,omitempty"`
	IsHub           bool    `db:"is_hub"            json:"is_hub"`
	MaxCommentDepth int     `db:"max_comment_depth" json:"max_comment_depth"`
	AddedAt         string  `db:"added_at_utc"      json:"added_at_utc"`
	UpdatedAt       string  `db:"updated_at_utc"    json:"updated_at_utc"`
}

// QueueStats is the status breakdown of the crawl queue.
type QueueStats struct {
	Queued int64 `json:"queued"`
	Done   int64 `json:"done"`
	Error  int64 `json:"error"`
}

// Total returns the number of rows across all statuses.
func (s QueueStats) Total() int64 {
	return s.Queued + s.Done + s.Error
}
