package mongodb

import (
	"context"
	"strconv"

	"discord-harvester/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// unknownRequester is stored as user_id when the requester is not a numeric
// user id, such as jobs queued by the CLI or the scheduler.
const unknownRequester int64 = 0

// serverDocument is a Server as stored: the collection requires user_id to
// be a long.
type serverDocument struct {
	ID     int64  `bson:"_id"`
	UserID int64  `bson:"user_id"`
	Name   string `bson:"name"`
}

func newServerDocument(s models.Server) serverDocument {
	userID, err := strconv.ParseInt(s.RequesterID, 10, 64)
	if err != nil {
		userID = unknownRequester
	}
	return serverDocument{ID: s.ID, UserID: userID, Name: s.Name}
}

func (doc serverDocument) server() models.Server {
	s := models.Server{ID: doc.ID, Name: doc.Name}
	if doc.UserID != unknownRequester {
		s.RequesterID = strconv.FormatInt(doc.UserID, 10)
	}
	return s
}

// EnsureServer inserts s unless it already exists.
func (d *DB) EnsureServer(ctx context.Context, s models.Server) error {
	if _, err := d.servers.InsertOne(ctx, newServerDocument(s)); err != nil && !mongo.IsDuplicateKeyError(err) {
		return &models.StoreError{Op: "ensure server", Err: err}
	}
	return nil
}

// EnsureChannel inserts c unless it already exists.
func (d *DB) EnsureChannel(ctx context.Context, c models.Channel) error {
	if _, err := d.channels.InsertOne(ctx, c); err != nil && !mongo.IsDuplicateKeyError(err) {
		return &models.StoreError{Op: "ensure channel", Err: err}
	}
	return nil
}

// ListServers returns every registered server.
func (d *DB) ListServers(ctx context.Context) ([]models.Server, error) {
	cur, err := d.servers.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, &models.StoreError{Op: "list servers", Err: err}
	}
	var docs []serverDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, &models.StoreError{Op: "list servers", Err: err}
	}
	servers := make([]models.Server, 0, len(docs))
	for _, doc := range docs {
		servers = append(servers, doc.server())
	}
	return servers, nil
}

// ListChannels returns the registered channels of a server.
func (d *DB) ListChannels(ctx context.Context, serverID int64) ([]models.Channel, error) {
	cur, err := d.channels.Find(ctx, bson.M{"server_id": serverID}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, &models.StoreError{Op: "list channels", Err: err}
	}
	var channels []models.Channel
	if err := cur.All(ctx, &channels); err != nil {
		return nil, &models.StoreError{Op: "list channels", Err: err}
	}
	return channels, nil
}

type analysisDocument struct {
	ID                    primitive.ObjectID `bson:"_id"`
	models.AnalysisResult `bson:",inline"`
}

// InsertAnalysis appends an analysis record and returns its id.
func (d *DB) InsertAnalysis(ctx context.Context, r models.AnalysisResult) (string, error) {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now()
	}
	doc := analysisDocument{ID: primitive.NewObjectID(), AnalysisResult: r}
	if _, err := d.analysis.InsertOne(ctx, doc); err != nil {
		return "", &models.StoreError{Op: "insert analysis", Err: err}
	}
	return doc.ID.Hex(), nil
}
