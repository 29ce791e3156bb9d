package sqlitedb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"discord-harvester/models"
)

// maxVars keeps IN lists below SQLite's bound parameter limit.
const maxVars = 500

// ExistingMessageIDs returns the subset of ids already stored.
func (d *DB) ExistingMessageIDs(ctx context.Context, ids []int64) (map[int64]struct{}, error) {
	found := make(map[int64]struct{})
	for start := 0; start < len(ids); start += maxVars {
		end := min(start+maxVars, len(ids))
		chunk := ids[start:end]

		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}
		query := "SELECT id FROM messages WHERE id IN (?" + strings.Repeat(",?", len(chunk)-1) + ")"
		rows, err := d.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, &models.StoreError{Op: "existing message ids", Err: err}
		}
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, &models.StoreError{Op: "existing message ids", Err: err}
			}
			found[id] = struct{}{}
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, &models.StoreError{Op: "existing message ids", Err: err}
		}
	}
	return found, nil
}

// InsertMessages saves msgs in one transaction and returns how many were new.
func (d *DB) InsertMessages(ctx context.Context, msgs []models.Message) (int, error) {
	if len(msgs) == 0 {
		return 0, nil
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, &models.StoreError{Op: "insert messages", Err: fmt.Errorf("failed to begin transaction: %w", err)}
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
    INSERT OR IGNORE INTO messages (
        id, channel_id, parent_message_id, user_id, author_name, content, created_at, fetched_at
    ) VALUES (?, ?, ?, ?, ?, ?, ?, ?);`)
	if err != nil {
		return 0, &models.StoreError{Op: "insert messages", Err: fmt.Errorf("failed to prepare statement: %w", err)}
	}
	defer stmt.Close()

	inserted := 0
	for _, m := range msgs {
		var parent sql.NullInt64
		if m.ParentMessageID != nil {
			parent = sql.NullInt64{Int64: *m.ParentMessageID, Valid: true}
		}
		res, err := stmt.ExecContext(ctx,
			m.ID,
			m.ChannelID,
			parent,
			m.AuthorUserID,
			m.AuthorName,
			m.Content,
			toMillis(m.CreatedAt),
			toMillis(m.FetchedAt),
		)
		if err != nil {
			return 0, &models.StoreError{Op: "insert messages", Err: fmt.Errorf("failed to save message %d: %w", m.ID, err)}
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, &models.StoreError{Op: "insert messages", Err: err}
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, &models.StoreError{Op: "insert messages", Err: fmt.Errorf("failed to commit transaction: %w", err)}
	}
	return inserted, nil
}

// LastMessageID returns the highest stored message id of a channel.
func (d *DB) LastMessageID(ctx context.Context, channelID int64) (*int64, error) {
	var id sql.NullInt64
	err := d.db.QueryRowContext(ctx, "SELECT MAX(id) FROM messages WHERE channel_id = ?", channelID).Scan(&id)
	if err != nil {
		return nil, &models.StoreError{Op: "last message id", Err: err}
	}
	if !id.Valid {
		return nil, nil
	}
	return &id.Int64, nil
}

// FindMessages returns the messages of a channel in the filter window, oldest first.
func (d *DB) FindMessages(ctx context.Context, f models.MessageFilter) ([]models.Message, error) {
	query := `SELECT id, channel_id, parent_message_id, user_id, author_name, content, created_at, fetched_at
        FROM messages WHERE channel_id = ?`
	args := []any{f.ChannelID}
	if !f.From.IsZero() {
		query += " AND created_at >= ?"
		args = append(args, toMillis(f.From))
	}
	if !f.To.IsZero() {
		query += " AND created_at <= ?"
		args = append(args, toMillis(f.To))
	}
	query += " ORDER BY created_at, id"

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &models.StoreError{Op: "find messages", Err: err}
	}
	defer rows.Close()

	var msgs []models.Message
	for rows.Next() {
		var (
			m                  models.Message
			parent             sql.NullInt64
			created, fetchedAt int64
		)
		if err := rows.Scan(&m.ID, &m.ChannelID, &parent, &m.AuthorUserID, &m.AuthorName, &m.Content, &created, &fetchedAt); err != nil {
			return nil, &models.StoreError{Op: "find messages", Err: err}
		}
		if parent.Valid {
			p := parent.Int64
			m.ParentMessageID = &p
		}
		m.CreatedAt = fromMillis(created)
		m.FetchedAt = fromMillis(fetchedAt)
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, &models.StoreError{Op: "find messages", Err: err}
	}
	return msgs, nil
}

// PruneFetchedBefore deletes messages fetched before cutoff.
func (d *DB) PruneFetchedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := d.db.ExecContext(ctx, "DELETE FROM messages WHERE fetched_at < ?", toMillis(cutoff))
	if err != nil {
		return 0, &models.StoreError{Op: "prune messages", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, &models.StoreError{Op: "prune messages", Err: err}
	}
	return n, nil
}
