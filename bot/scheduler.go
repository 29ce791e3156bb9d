package bot

import (
	"context"
	"fmt"
	"time"

	"discord-harvester/database"
	"discord-harvester/metrics"
	"discord-harvester/models"
	"discord-harvester/utils"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// SchedulerRequester is the requester id stamped on scheduled jobs.
const SchedulerRequester = "scheduler"

// SchedulerStore is what the scheduled jobs read and write.
type SchedulerStore interface {
	database.JobQueue
	database.RegistryStore
	PruneFetchedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Scheduler runs the periodic re-harvest and retention jobs.
type Scheduler struct {
	c             *cron.Cron
	store         SchedulerStore
	retentionDays int
	ctx           context.Context
}

// NewScheduler registers the jobs enabled in cfg. A blank schedule disables
// that job; retention only runs when retentionDays is positive.
func NewScheduler(ctx context.Context, store SchedulerStore, cfg models.HarvestConfig, retentionDays int) (*Scheduler, error) {
	s := &Scheduler{
		c:             cron.New(),
		store:         store,
		retentionDays: retentionDays,
		ctx:           ctx,
	}
	if cfg.Schedule != "" {
		if _, err := s.c.AddFunc(cfg.Schedule, s.runReharvest); err != nil {
			return nil, fmt.Errorf("could not set up re-harvest job %q: %w", cfg.Schedule, err)
		}
		log.Info().Str("schedule", cfg.Schedule).Msg("re-harvest job scheduled")
	}
	if retentionDays > 0 && cfg.PruneSchedule != "" {
		if _, err := s.c.AddFunc(cfg.PruneSchedule, s.runPrune); err != nil {
			return nil, fmt.Errorf("could not set up prune job %q: %w", cfg.PruneSchedule, err)
		}
		log.Info().Str("schedule", cfg.PruneSchedule).Int("retention_days", retentionDays).Msg("prune job scheduled")
	}
	return s, nil
}

// Start starts the cron jobs.
func (s *Scheduler) Start() {
	s.c.Start()
}

// Stop stops the cron jobs and waits for running ones.
func (s *Scheduler) Stop() {
	<-s.c.Stop().Done()
	log.Info().Msg("Scheduler stopped.")
}

func (s *Scheduler) runReharvest() {
	n, err := s.SubmitReharvest(s.ctx)
	if err != nil {
		utils.Error("Scheduler", "Reharvest", err.Error())
		return
	}
	utils.Info("Scheduler", "Reharvest", fmt.Sprintf("queued %d incremental harvest jobs", n))
}

func (s *Scheduler) runPrune() {
	n, err := s.Prune(s.ctx, time.Now())
	if err != nil {
		utils.Error("Scheduler", "Prune", err.Error())
		return
	}
	utils.Info("Scheduler", "Prune", fmt.Sprintf("Successfully cleaned up %d old messages", n))
}

// SubmitReharvest queues one unbounded job per registered server covering
// its registered channels, so each run resumes from the last stored message.
func (s *Scheduler) SubmitReharvest(ctx context.Context) (int, error) {
	servers, err := s.store.ListServers(ctx)
	if err != nil {
		return 0, err
	}
	queued := 0
	for _, srv := range servers {
		channels, err := s.store.ListChannels(ctx, srv.ID)
		if err != nil {
			return queued, err
		}
		if len(channels) == 0 {
			continue
		}
		ids := make([]int64, 0, len(channels))
		for _, ch := range channels {
			ids = append(ids, ch.ID)
		}
		if _, err := s.store.Submit(ctx, models.HarvestJob{
			RequesterID: SchedulerRequester,
			ServerID:    srv.ID,
			ChannelIDs:  ids,
		}); err != nil {
			return queued, err
		}
		queued++
	}
	return queued, nil
}

// Prune deletes messages fetched more than retentionDays before now.
func (s *Scheduler) Prune(ctx context.Context, now time.Time) (int64, error) {
	cutoff := now.AddDate(0, 0, -s.retentionDays)
	n, err := s.store.PruneFetchedBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	metrics.MessagesPruned.Add(float64(n))
	return n, nil
}
