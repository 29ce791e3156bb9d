package mongodb

import (
	"context"
	"errors"
	"time"

	"discord-harvester/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ExistingMessageIDs returns the subset of ids already stored.
func (d *DB) ExistingMessageIDs(ctx context.Context, ids []int64) (map[int64]struct{}, error) {
	found := make(map[int64]struct{})
	if len(ids) == 0 {
		return found, nil
	}

	cur, err := d.messages.Find(ctx,
		bson.M{"_id": bson.M{"$in": ids}},
		options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, &models.StoreError{Op: "existing message ids", Err: err}
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var doc struct {
			ID int64 `bson:"_id"`
		}
		if err := cur.Decode(&doc); err != nil {
			return nil, &models.StoreError{Op: "existing message ids", Err: err}
		}
		found[doc.ID] = struct{}{}
	}
	if err := cur.Err(); err != nil {
		return nil, &models.StoreError{Op: "existing message ids", Err: err}
	}
	return found, nil
}

// InsertMessages inserts msgs unordered. Duplicate ids are rejected by the
// primary key and not counted.
func (d *DB) InsertMessages(ctx context.Context, msgs []models.Message) (int, error) {
	if len(msgs) == 0 {
		return 0, nil
	}

	docs := make([]any, len(msgs))
	for i, m := range msgs {
		m.CreatedAt = m.CreatedAt.UTC()
		m.FetchedAt = m.FetchedAt.UTC()
		docs[i] = m
	}

	_, err := d.messages.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	return insertedCount(len(msgs), err)
}

// insertedCount turns the outcome of an unordered InsertMany of n documents
// into the number actually written.
func insertedCount(n int, err error) (int, error) {
	if err == nil {
		return n, nil
	}
	if dups, ok := onlyDuplicateKeys(err); ok {
		return n - dups, nil
	}
	return 0, &models.StoreError{Op: "insert messages", Err: err}
}

// LastMessageID returns the highest stored message id of a channel.
func (d *DB) LastMessageID(ctx context.Context, channelID int64) (*int64, error) {
	var doc struct {
		ID int64 `bson:"_id"`
	}
	err := d.messages.FindOne(ctx,
		bson.M{"channel_id": channelID},
		options.FindOne().SetSort(bson.D{{Key: "_id", Value: -1}}).SetProjection(bson.M{"_id": 1}),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, &models.StoreError{Op: "last message id", Err: err}
	}
	return &doc.ID, nil
}

// FindMessages returns the messages of a channel in the filter window, oldest first.
func (d *DB) FindMessages(ctx context.Context, f models.MessageFilter) ([]models.Message, error) {
	filter := bson.M{"channel_id": f.ChannelID}
	window := bson.M{}
	if !f.From.IsZero() {
		window["$gte"] = f.From.UTC()
	}
	if !f.To.IsZero() {
		window["$lte"] = f.To.UTC()
	}
	if len(window) > 0 {
		filter["created_at"] = window
	}

	cur, err := d.messages.Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, &models.StoreError{Op: "find messages", Err: err}
	}
	var msgs []models.Message
	if err := cur.All(ctx, &msgs); err != nil {
		return nil, &models.StoreError{Op: "find messages", Err: err}
	}
	return msgs, nil
}

// PruneFetchedBefore deletes messages fetched before cutoff.
func (d *DB) PruneFetchedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := d.messages.DeleteMany(ctx, bson.M{"fetched_at": bson.M{"$lt": cutoff.UTC()}})
	if err != nil {
		return 0, &models.StoreError{Op: "prune messages", Err: err}
	}
	return res.DeletedCount, nil
}
