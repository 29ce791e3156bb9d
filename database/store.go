package database

import (
	"context"
	"time"

	"discord-harvester/models"
)

// MessageStore persists harvested messages.
type MessageStore interface {
	// ExistingMessageIDs returns the subset of ids already stored.
	ExistingMessageIDs(ctx context.Context, ids []int64) (map[int64]struct{}, error)
	// InsertMessages inserts msgs, silently skipping ids that already exist,
	// and returns how many rows were actually written.
	InsertMessages(ctx context.Context, msgs []models.Message) (int, error)
	// LastMessageID returns the highest stored message id of a channel, nil when
	// the channel has no stored messages.
	LastMessageID(ctx context.Context, channelID int64) (*int64, error)
	// FindMessages returns the messages matching f, oldest first.
	FindMessages(ctx context.Context, f models.MessageFilter) ([]models.Message, error)
	// PruneFetchedBefore deletes messages fetched before cutoff.
	PruneFetchedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// JobQueue is the durable harvest job queue.
type JobQueue interface {
	Submit(ctx context.Context, job models.HarvestJob) (string, error)
	// ClaimNext atomically moves the oldest pending job to running. The boolean
	// is false when no job is pending.
	ClaimNext(ctx context.Context) (*models.HarvestJob, bool, error)
	Complete(ctx context.Context, id string, inserted int) error
	Fail(ctx context.Context, id string, message string) error
	Get(ctx context.Context, id string) (*models.HarvestJob, error)
	// List returns the most recent jobs, newest first. An empty status matches all.
	List(ctx context.Context, status models.JobStatus, limit int) ([]models.HarvestJob, error)
}

// RegistryStore keeps the write-once server and channel records.
type RegistryStore interface {
	// EnsureServer inserts s unless a server with the same id exists.
	EnsureServer(ctx context.Context, s models.Server) error
	// EnsureChannel inserts c unless a channel with the same id exists.
	EnsureChannel(ctx context.Context, c models.Channel) error
	ListServers(ctx context.Context) ([]models.Server, error)
	ListChannels(ctx context.Context, serverID int64) ([]models.Channel, error)
}

// AnalysisStore appends analysis audit records.
type AnalysisStore interface {
	InsertAnalysis(ctx context.Context, r models.AnalysisResult) (string, error)
}

// Store is a complete document store backend.
type Store interface {
	MessageStore
	JobQueue
	RegistryStore
	AnalysisStore
	Close(ctx context.Context) error
}
