package database

import (
	"context"

	"discord-harvester/models"
)

// Deduplicator filters candidate messages against the store and persists the rest.
type Deduplicator struct {
	store MessageStore
}

// NewDeduplicator wraps a MessageStore.
func NewDeduplicator(store MessageStore) *Deduplicator {
	return &Deduplicator{store: store}
}

// Deduplicate returns the candidates whose id is not stored yet, in input
// order. Repeated ids inside the batch keep their first occurrence.
func (d *Deduplicator) Deduplicate(ctx context.Context, candidates []models.Message) ([]models.Message, error) {
	if len(candidates) == 0 {
		return []models.Message{}, nil
	}

	ids := make([]int64, 0, len(candidates))
	for _, m := range candidates {
		ids = append(ids, m.ID)
	}
	existing, err := d.store.ExistingMessageIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]struct{}, len(candidates))
	fresh := make([]models.Message, 0, len(candidates))
	for _, m := range candidates {
		if _, ok := existing[m.ID]; ok {
			continue
		}
		if _, ok := seen[m.ID]; ok {
			continue
		}
		seen[m.ID] = struct{}{}
		fresh = append(fresh, m)
	}
	return fresh, nil
}

// PersistBatch inserts msgs and returns the number of rows written.
func (d *Deduplicator) PersistBatch(ctx context.Context, msgs []models.Message) (int, error) {
	if len(msgs) == 0 {
		return 0, nil
	}
	return d.store.InsertMessages(ctx, msgs)
}
