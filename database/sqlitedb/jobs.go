package sqlitedb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"discord-harvester/database"
	"discord-harvester/models"
	"discord-harvester/utils"
)

const jobColumns = "id, discord_id, server_id, channels, after_bound, before_bound, status, created_at, started_at, finished_at, inserted, error"

// Submit validates and queues a job, returning its id.
func (d *DB) Submit(ctx context.Context, job models.HarvestJob) (string, error) {
	if err := database.ValidateJob(job); err != nil {
		return "", err
	}
	channels, err := json.Marshal(job.ChannelIDs)
	if err != nil {
		return "", fmt.Errorf("failed to encode channels: %w", err)
	}

	id := utils.NewID()
	_, err = d.db.ExecContext(ctx, `
    INSERT INTO harvest_jobs (id, discord_id, server_id, channels, after_bound, before_bound, status, created_at)
    VALUES (?, ?, ?, ?, ?, ?, ?, ?);`,
		id, job.RequesterID, job.ServerID, string(channels), job.After, job.Before, models.JobPending, toMillis(time.Now()))
	if err != nil {
		return "", &models.StoreError{Op: "submit job", Err: err}
	}
	return strconv.FormatInt(id, 10), nil
}

// ClaimNext moves the oldest pending job to running inside one write
// transaction, so two daemons never claim the same job.
func (d *DB) ClaimNext(ctx context.Context) (*models.HarvestJob, bool, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, &models.StoreError{Op: "claim job", Err: fmt.Errorf("failed to begin transaction: %w", err)}
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
    UPDATE harvest_jobs SET status = ?, started_at = ?
    WHERE id = (
        SELECT id FROM harvest_jobs WHERE status = ? ORDER BY created_at, id LIMIT 1
    ) AND status = ?
    RETURNING `+jobColumns,
		models.JobRunning, toMillis(time.Now()), models.JobPending, models.JobPending)

	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &models.StoreError{Op: "claim job", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return nil, false, &models.StoreError{Op: "claim job", Err: fmt.Errorf("failed to commit transaction: %w", err)}
	}
	return job, true, nil
}

// Complete marks a job done with the number of inserted messages.
func (d *DB) Complete(ctx context.Context, id string, inserted int) error {
	return d.finish(ctx, id, models.JobDone, &inserted, "")
}

// Fail marks a job failed with an error description.
func (d *DB) Fail(ctx context.Context, id string, message string) error {
	return d.finish(ctx, id, models.JobFailed, nil, message)
}

func (d *DB) finish(ctx context.Context, id string, status models.JobStatus, inserted *int, message string) error {
	key, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return &models.TargetNotFoundError{Kind: "job", ID: id}
	}
	var count sql.NullInt64
	if inserted != nil {
		count = sql.NullInt64{Int64: int64(*inserted), Valid: true}
	}
	res, err := d.db.ExecContext(ctx,
		"UPDATE harvest_jobs SET status = ?, finished_at = ?, inserted = ?, error = ? WHERE id = ?",
		status, toMillis(time.Now()), count, message, key)
	if err != nil {
		return &models.StoreError{Op: "finish job", Err: err}
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return &models.TargetNotFoundError{Kind: "job", ID: id}
	}
	return nil
}

// Get returns a job by id.
func (d *DB) Get(ctx context.Context, id string) (*models.HarvestJob, error) {
	key, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return nil, &models.TargetNotFoundError{Kind: "job", ID: id}
	}
	job, err := scanJob(d.db.QueryRowContext(ctx, "SELECT "+jobColumns+" FROM harvest_jobs WHERE id = ?", key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.TargetNotFoundError{Kind: "job", ID: id}
	}
	if err != nil {
		return nil, &models.StoreError{Op: "get job", Err: err}
	}
	return job, nil
}

// List returns recent jobs, newest first.
func (d *DB) List(ctx context.Context, status models.JobStatus, limit int) ([]models.HarvestJob, error) {
	if limit <= 0 {
		limit = 20
	}
	query := "SELECT " + jobColumns + " FROM harvest_jobs"
	args := []any{}
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, status)
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &models.StoreError{Op: "list jobs", Err: err}
	}
	defer rows.Close()

	var jobs []models.HarvestJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, &models.StoreError{Op: "list jobs", Err: err}
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, &models.StoreError{Op: "list jobs", Err: err}
	}
	return jobs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(s scanner) (*models.HarvestJob, error) {
	var (
		job               models.HarvestJob
		id                int64
		channels          string
		created           int64
		started, finished sql.NullInt64
		inserted          sql.NullInt64
	)
	if err := s.Scan(&id, &job.RequesterID, &job.ServerID, &channels, &job.After, &job.Before,
		&job.Status, &created, &started, &finished, &inserted, &job.ErrorMessage); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(channels), &job.ChannelIDs); err != nil {
		return nil, fmt.Errorf("failed to decode channels of job %d: %w", id, err)
	}
	job.ID = strconv.FormatInt(id, 10)
	job.CreatedAt = fromMillis(created)
	job.StartedAt = nullMillis(started)
	job.FinishedAt = nullMillis(finished)
	if inserted.Valid {
		n := int(inserted.Int64)
		job.InsertedCount = &n
	}
	return &job, nil
}
