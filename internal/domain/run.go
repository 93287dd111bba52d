package domain

// RunCounters are the aggregate counters persisted on a run record.
type RunCounters struct {
	PostsInserted int `db:"posts_inserted" json:"posts_inserted"`
	HubsQueued    int `db:"hubs_queued"    json:"hubs_queued"`
	QueueDone     int `db:"queue_done"     json:"queue_done"`
	Errors        int `db:"errors"         json:"errors"`
}

// Run is one execution of the pipeline.
type Run struct {
	ID        string  `db:"run_id"         json:"run_id"`
	StartedAt string  `db:"started_at_utc" json:"started_at_utc"`
	EndedAt   *string `db:"ended_at_utc"   json:"ended_at_utc,omitempty"`
	Notes     string  `db:"notes"          json:"notes"`

	RunCounters
}
