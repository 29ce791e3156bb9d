package models

import "time"

// JobStatus is the lifecycle state of a HarvestJob.
type JobStatus string

const (
	JobPending JobStatus = "pending"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
)

// IsTerminal reports whether no further transition is possible.
func (s JobStatus) IsTerminal() bool {
	return s == JobDone || s == JobFailed
}

// Valid reports whether s is one of the known statuses.
func (s JobStatus) Valid() bool {
	switch s {
	case JobPending, JobRunning, JobDone, JobFailed:
		return true
	}
	return false
}

// HarvestJob is a request to pull the history of some channels of one server.
// After and Before keep the raw bound strings as submitted; an empty string
// means the bound is absent.
type HarvestJob struct {
	ID            string     `json:"job_id" bson:"-"`
	RequesterID   string     `json:"discordId" bson:"discordId"`
	ServerID      int64      `json:"serverId" bson:"serverId"`
	ChannelIDs    []int64    `json:"channels" bson:"channels"`
	After         string     `json:"after,omitempty" bson:"after,omitempty"`
	Before        string     `json:"before,omitempty" bson:"before,omitempty"`
	Status        JobStatus  `json:"status" bson:"status"`
	CreatedAt     time.Time  `json:"created_at" bson:"created_at"`
	StartedAt     *time.Time `json:"started_at,omitempty" bson:"started_at,omitempty"`
	FinishedAt    *time.Time `json:"finished_at,omitempty" bson:"finished_at,omitempty"`
	InsertedCount *int       `json:"inserted,omitempty" bson:"inserted,omitempty"`
	ErrorMessage  string     `json:"error,omitempty" bson:"error,omitempty"`
}
