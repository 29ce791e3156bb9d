// Package mongodb is the MongoDB document store backend.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"discord-harvester/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Collection names shared with the analyzer's existing Mongo database.
const (
	messagesCollection = "discord_messages"
	jobsCollection     = "discord_harvest_jobs"
	serversCollection  = "discord_servers"
	channelsCollection = "discord_channels"
	analysisCollection = "analysis_results"

	duplicateKeyCode = 11000
)

// DB implements database.Store on MongoDB.
type DB struct {
	client   *mongo.Client
	messages *mongo.Collection
	jobs     *mongo.Collection
	servers  *mongo.Collection
	channels *mongo.Collection
	analysis *mongo.Collection
}

// Open connects to uri, selects dbName and ensures the indexes.
func Open(ctx context.Context, uri, dbName string) (*DB, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	db := client.Database(dbName)
	d := &DB{
		client:   client,
		messages: db.Collection(messagesCollection),
		jobs:     db.Collection(jobsCollection),
		servers:  db.Collection(serversCollection),
		channels: db.Collection(channelsCollection),
		analysis: db.Collection(analysisCollection),
	}
	if err := d.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	utils.Info("Database", "Open", fmt.Sprintf("Successfully connected to mongo database %s", dbName))
	return d, nil
}

func (d *DB) ensureIndexes(ctx context.Context) error {
	indexes := map[*mongo.Collection][]mongo.IndexModel{
		d.messages: {
			{Keys: bson.D{{Key: "channel_id", Value: 1}, {Key: "created_at", Value: 1}}},
			{Keys: bson.D{{Key: "user_id", Value: 1}}},
			{Keys: bson.D{{Key: "parent_message_id", Value: 1}}},
			{Keys: bson.D{{Key: "fetched_at", Value: 1}}},
		},
		d.jobs: {
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: 1}}},
			{Keys: bson.D{{Key: "created_at", Value: 1}}},
			{Keys: bson.D{{Key: "serverId", Value: 1}}},
		},
		d.channels: {
			{Keys: bson.D{{Key: "server_id", Value: 1}}},
		},
	}
	for coll, specs := range indexes {
		if _, err := coll.Indexes().CreateMany(ctx, specs); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", coll.Name(), err)
		}
	}
	return nil
}

// Close disconnects the client.
func (d *DB) Close(ctx context.Context) error {
	return d.client.Disconnect(ctx)
}

// onlyDuplicateKeys reports how many write errors err carries when every one
// of them is a duplicate key violation.
func onlyDuplicateKeys(err error) (int, bool) {
	var bwe mongo.BulkWriteException
	if !errors.As(err, &bwe) || bwe.WriteConcernError != nil {
		return 0, false
	}
	for _, we := range bwe.WriteErrors {
		if we.Code != duplicateKeyCode {
			return 0, false
		}
	}
	return len(bwe.WriteErrors), true
}

func now() time.Time {
	return time.Now().UTC()
}
