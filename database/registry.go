package database

import (
	"context"
	"sync"

	"discord-harvester/models"
)

// Registry records servers and channels the first time they are harvested.
// Records are never updated, so ids already written are remembered in memory
// and not sent to the store again.
type Registry struct {
	store    RegistryStore
	servers  sync.Map
	channels sync.Map
}

// NewRegistry wraps a RegistryStore.
func NewRegistry(store RegistryStore) *Registry {
	return &Registry{store: store}
}

// RegisterServer writes s unless it is already known.
func (r *Registry) RegisterServer(ctx context.Context, s models.Server) error {
	if _, ok := r.servers.Load(s.ID); ok {
		return nil
	}
	if err := r.store.EnsureServer(ctx, s); err != nil {
		return err
	}
	r.servers.Store(s.ID, struct{}{})
	return nil
}

// RegisterChannel writes c unless it is already known.
func (r *Registry) RegisterChannel(ctx context.Context, c models.Channel) error {
	if _, ok := r.channels.Load(c.ID); ok {
		return nil
	}
	if err := r.store.EnsureChannel(ctx, c); err != nil {
		return err
	}
	r.channels.Store(c.ID, struct{}{})
	return nil
}
