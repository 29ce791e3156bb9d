package sqlitedb

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"discord-harvester/models"
	"discord-harvester/utils"
)

// EnsureServer inserts s unless it already exists.
func (d *DB) EnsureServer(ctx context.Context, s models.Server) error {
	_, err := d.db.ExecContext(ctx, "INSERT OR IGNORE INTO servers (id, name, user_id) VALUES (?, ?, ?)", s.ID, s.Name, s.RequesterID)
	if err != nil {
		return &models.StoreError{Op: "ensure server", Err: err}
	}
	return nil
}

// EnsureChannel inserts c unless it already exists.
func (d *DB) EnsureChannel(ctx context.Context, c models.Channel) error {
	_, err := d.db.ExecContext(ctx, "INSERT OR IGNORE INTO channels (id, server_id, name) VALUES (?, ?, ?)", c.ID, c.ServerID, c.Name)
	if err != nil {
		return &models.StoreError{Op: "ensure channel", Err: err}
	}
	return nil
}

// ListServers returns every registered server.
func (d *DB) ListServers(ctx context.Context) ([]models.Server, error) {
	rows, err := d.db.QueryContext(ctx, "SELECT id, name, user_id FROM servers ORDER BY id")
	if err != nil {
		return nil, &models.StoreError{Op: "list servers", Err: err}
	}
	defer rows.Close()

	var servers []models.Server
	for rows.Next() {
		var s models.Server
		if err := rows.Scan(&s.ID, &s.Name, &s.RequesterID); err != nil {
			return nil, &models.StoreError{Op: "list servers", Err: err}
		}
		servers = append(servers, s)
	}
	if err := rows.Err(); err != nil {
		return nil, &models.StoreError{Op: "list servers", Err: err}
	}
	return servers, nil
}

// ListChannels returns the registered channels of a server.
func (d *DB) ListChannels(ctx context.Context, serverID int64) ([]models.Channel, error) {
	rows, err := d.db.QueryContext(ctx, "SELECT id, server_id, name FROM channels WHERE server_id = ? ORDER BY id", serverID)
	if err != nil {
		return nil, &models.StoreError{Op: "list channels", Err: err}
	}
	defer rows.Close()

	var channels []models.Channel
	for rows.Next() {
		var c models.Channel
		if err := rows.Scan(&c.ID, &c.ServerID, &c.Name); err != nil {
			return nil, &models.StoreError{Op: "list channels", Err: err}
		}
		channels = append(channels, c)
	}
	if err := rows.Err(); err != nil {
		return nil, &models.StoreError{Op: "list channels", Err: err}
	}
	return channels, nil
}

// InsertAnalysis appends an analysis record and returns its id.
func (d *DB) InsertAnalysis(ctx context.Context, r models.AnalysisResult) (string, error) {
	result, err := json.Marshal(r.Result)
	if err != nil {
		return "", fmt.Errorf("failed to encode analysis result: %w", err)
	}
	created := r.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	id := utils.NewID()
	_, err = d.db.ExecContext(ctx, `
    INSERT INTO analysis_results (
        id, creator_id, platform, prompt_key, llm_model, server_id, channel_id, period_from, period_to, result, created_at
    ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		id, r.CreatorID, r.Platform, r.PromptKey, r.ModelName, r.Scope.ServerID, r.Scope.ChannelID,
		toMillis(r.Period.From), toMillis(r.Period.To), string(result), toMillis(created))
	if err != nil {
		return "", &models.StoreError{Op: "insert analysis", Err: err}
	}
	return strconv.FormatInt(id, 10), nil
}
