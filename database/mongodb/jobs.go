package mongodb

import (
	"context"
	"errors"
	"time"

	"discord-harvester/database"
	"discord-harvester/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// jobDocument is a HarvestJob as stored, keyed by an ObjectID.
type jobDocument struct {
	ID                primitive.ObjectID `bson:"_id"`
	models.HarvestJob `bson:",inline"`
}

func (doc jobDocument) job() *models.HarvestJob {
	job := doc.HarvestJob
	job.ID = doc.ID.Hex()
	return &job
}

// Submit validates and queues a job, returning its ObjectID hex.
func (d *DB) Submit(ctx context.Context, job models.HarvestJob) (string, error) {
	if err := database.ValidateJob(job); err != nil {
		return "", err
	}
	job.Status = models.JobPending
	job.CreatedAt = now()
	job.StartedAt, job.FinishedAt, job.InsertedCount, job.ErrorMessage = nil, nil, nil, ""

	doc := jobDocument{ID: primitive.NewObjectID(), HarvestJob: job}
	if _, err := d.jobs.InsertOne(ctx, doc); err != nil {
		return "", &models.StoreError{Op: "submit job", Err: err}
	}
	return doc.ID.Hex(), nil
}

// ClaimNext moves the oldest pending job to running in a single
// find-and-modify, so two daemons never claim the same job.
func (d *DB) ClaimNext(ctx context.Context) (*models.HarvestJob, bool, error) {
	var doc jobDocument
	err := d.jobs.FindOneAndUpdate(ctx,
		bson.M{"status": models.JobPending},
		bson.M{"$set": bson.M{"status": models.JobRunning, "started_at": now()}},
		options.FindOneAndUpdate().
			SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}).
			SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &models.StoreError{Op: "claim job", Err: err}
	}
	return doc.job(), true, nil
}

// Complete marks a job done with the number of inserted messages.
func (d *DB) Complete(ctx context.Context, id string, inserted int) error {
	return d.finish(ctx, id, completeUpdate(now(), inserted))
}

// Fail marks a job failed with an error description.
func (d *DB) Fail(ctx context.Context, id string, message string) error {
	return d.finish(ctx, id, failUpdate(now(), message))
}

// completeUpdate and failUpdate each clear the other's result field, so the
// last call wins outright.
func completeUpdate(at time.Time, inserted int) bson.M {
	return bson.M{
		"$set":   bson.M{"status": models.JobDone, "finished_at": at, "inserted": inserted},
		"$unset": bson.M{"error": ""},
	}
}

func failUpdate(at time.Time, message string) bson.M {
	return bson.M{
		"$set":   bson.M{"status": models.JobFailed, "finished_at": at, "error": message},
		"$unset": bson.M{"inserted": ""},
	}
}

func (d *DB) finish(ctx context.Context, id string, update bson.M) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return &models.TargetNotFoundError{Kind: "job", ID: id}
	}
	res, err := d.jobs.UpdateByID(ctx, oid, update)
	if err != nil {
		return &models.StoreError{Op: "finish job", Err: err}
	}
	if res.MatchedCount == 0 {
		return &models.TargetNotFoundError{Kind: "job", ID: id}
	}
	return nil
}

// Get returns a job by id.
func (d *DB) Get(ctx context.Context, id string) (*models.HarvestJob, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, &models.TargetNotFoundError{Kind: "job", ID: id}
	}
	var doc jobDocument
	err = d.jobs.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, &models.TargetNotFoundError{Kind: "job", ID: id}
	}
	if err != nil {
		return nil, &models.StoreError{Op: "get job", Err: err}
	}
	return doc.job(), nil
}

// List returns recent jobs, newest first.
func (d *DB) List(ctx context.Context, status models.JobStatus, limit int) ([]models.HarvestJob, error) {
	if limit <= 0 {
		limit = 20
	}
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}
	cur, err := d.jobs.Find(ctx, filter, options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit)))
	if err != nil {
		return nil, &models.StoreError{Op: "list jobs", Err: err}
	}
	var docs []jobDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, &models.StoreError{Op: "list jobs", Err: err}
	}

	jobs := make([]models.HarvestJob, 0, len(docs))
	for _, doc := range docs {
		jobs = append(jobs, *doc.job())
	}
	return jobs, nil
}
