package scanner

import (
	"context"
	"fmt"
	"time"

	"discord-harvester/bot"
	"discord-harvester/database"
	"discord-harvester/metrics"
	"discord-harvester/models"
	"discord-harvester/utils"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// maxErrorRunes bounds the error text recorded on a failed job.
const maxErrorRunes = 2000

// Store is the part of the document store a harvest needs.
type Store interface {
	database.MessageStore
	database.JobQueue
	database.RegistryStore
}

// Harvester runs claimed jobs: resolve the target, fetch, dedup, persist and
// record the outcome on the job.
type Harvester struct {
	gateway  bot.Gateway
	store    Store
	dedup    *database.Deduplicator
	registry *database.Registry
	now      func() time.Time
	log      zerolog.Logger
}

// NewHarvester wires a harvester over a connected gateway and a store.
func NewHarvester(gateway bot.Gateway, store Store) *Harvester {
	return &Harvester{
		gateway:  gateway,
		store:    store,
		dedup:    database.NewDeduplicator(store),
		registry: database.NewRegistry(store),
		now:      func() time.Time { return time.Now().UTC() },
		log:      log.With().Str("component", "harvester").Logger(),
	}
}

// Process runs job and records it as done or failed. It never returns the
// job's error: failures, panics included, end up on the job itself.
func (h *Harvester) Process(ctx context.Context, job *models.HarvestJob) {
	start := time.Now()
	inserted, err := h.runSafe(ctx, job)

	// The outcome is recorded even when ctx was cancelled mid-job.
	finishCtx := context.WithoutCancel(ctx)
	if err != nil {
		msg := utils.Truncate(err.Error(), maxErrorRunes)
		if ferr := h.store.Fail(finishCtx, job.ID, msg); ferr != nil {
			h.log.Error().Err(ferr).Str("job_id", job.ID).Msg("failed to record job failure")
		}
		metrics.JobsTotal.WithLabelValues(string(models.JobFailed)).Inc()
		utils.Error("Harvester", "Process", fmt.Sprintf("job %s failed: %s", job.ID, msg))
	} else {
		if cerr := h.store.Complete(finishCtx, job.ID, inserted); cerr != nil {
			h.log.Error().Err(cerr).Str("job_id", job.ID).Msg("failed to record job completion")
		}
		metrics.JobsTotal.WithLabelValues(string(models.JobDone)).Inc()
		utils.Info("Harvester", "Process", fmt.Sprintf("job %s done, %d new messages", job.ID, inserted))
	}
	metrics.JobDuration.Observe(time.Since(start).Seconds())
}

func (h *Harvester) runSafe(ctx context.Context, job *models.HarvestJob) (inserted int, err error) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error().Interface("panic", r).Str("job_id", job.ID).Msg("panic recovered in harvest job")
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return h.Run(ctx, job)
}

// Run executes the harvest stages for job and returns how many messages were
// newly stored. The job record itself is not touched.
func (h *Harvester) Run(ctx context.Context, job *models.HarvestJob) (int, error) {
	h.log.Info().Str("job_id", job.ID).Int64("server_id", job.ServerID).Int("channels", len(job.ChannelIDs)).Msg("harvest started")

	rng, err := ParseRange(job.After, job.Before)
	if err != nil {
		return 0, err
	}

	channels, err := h.resolveTarget(ctx, job)
	if err != nil {
		return 0, err
	}

	candidates, err := h.fetchAll(ctx, job.ServerID, channels, rng)
	if err != nil {
		return 0, err
	}
	metrics.MessagesFetched.Add(float64(len(candidates)))

	fresh, err := h.dedup.Deduplicate(ctx, candidates)
	if err != nil {
		return 0, fmt.Errorf("failed to deduplicate messages: %w", err)
	}

	inserted, err := h.dedup.PersistBatch(ctx, fresh)
	if err != nil {
		return 0, fmt.Errorf("failed to persist messages: %w", err)
	}
	metrics.MessagesInserted.Add(float64(inserted))

	h.log.Info().Str("job_id", job.ID).Int("fetched", len(candidates)).Int("new", len(fresh)).Int("inserted", inserted).Msg("harvest finished")
	return inserted, nil
}

// resolveTarget checks the guild, keeps the requested channels the bot can
// read and registers both.
func (h *Harvester) resolveTarget(ctx context.Context, job *models.HarvestJob) ([]bot.GuildChannel, error) {
	guilds, err := h.gateway.ListGuilds(ctx)
	if err != nil {
		return nil, err
	}
	var guild *bot.Guild
	for i := range guilds {
		if guilds[i].ID == job.ServerID {
			guild = &guilds[i]
			break
		}
	}
	if guild == nil {
		return nil, &models.TargetNotFoundError{Kind: "guild", ID: utils.FormatSnowflake(job.ServerID)}
	}

	available, err := h.gateway.ListChannels(ctx, guild.ID)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]bot.GuildChannel, len(available))
	for _, ch := range available {
		byID[ch.ID] = ch
	}

	channels := make([]bot.GuildChannel, 0, len(job.ChannelIDs))
	for _, id := range job.ChannelIDs {
		ch, ok := byID[id]
		if !ok {
			h.log.Debug().Int64("channel_id", id).Str("job_id", job.ID).Msg("channel not accessible, skipped")
			continue
		}
		channels = append(channels, ch)
	}

	if err := h.registry.RegisterServer(ctx, models.Server{ID: guild.ID, Name: guild.Name, RequesterID: job.RequesterID}); err != nil {
		return nil, fmt.Errorf("failed to register server: %w", err)
	}
	for _, ch := range channels {
		if err := h.registry.RegisterChannel(ctx, models.Channel{ID: ch.ID, ServerID: guild.ID, Name: ch.Name}); err != nil {
			return nil, fmt.Errorf("failed to register channel: %w", err)
		}
	}
	return channels, nil
}

// fetchAll reads every channel in turn. The first channel error aborts the
// whole job and drops whatever was collected.
func (h *Harvester) fetchAll(ctx context.Context, guildID int64, channels []bot.GuildChannel, rng Range) ([]models.Message, error) {
	var all []models.Message
	for _, ch := range channels {
		var last *int64
		if rng.After.Kind != BoundID {
			var err error
			if last, err = h.store.LastMessageID(ctx, ch.ID); err != nil {
				return nil, err
			}
		}
		cursor := rng.StartCursor(last)

		fetchedAt := h.now()
		count := 0
		for raw, err := range h.gateway.FetchHistory(ctx, guildID, ch.ID, cursor) {
			if err != nil {
				return nil, err
			}
			msg, ok := toMessage(raw, fetchedAt)
			if !ok {
				continue
			}
			if rng.Past(msg.CreatedAt) {
				break
			}
			if !rng.Keep(msg.CreatedAt) {
				continue
			}
			all = append(all, msg)
			count++
		}
		h.log.Debug().Int64("channel_id", ch.ID).Int("messages", count).Msg("channel fetched")
	}
	return all, nil
}
