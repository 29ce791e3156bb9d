package scanner

import (
	"context"
	"time"

	"discord-harvester/metrics"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultPollInterval is the wait between claims when the queue is empty.
const DefaultPollInterval = 2 * time.Second

// Daemon polls the job queue and runs one job at a time.
type Daemon struct {
	harvester *Harvester
	interval  time.Duration
	log       zerolog.Logger
}

// NewDaemon returns a daemon claiming jobs from the harvester's store.
func NewDaemon(h *Harvester, interval time.Duration) *Daemon {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Daemon{
		harvester: h,
		interval:  interval,
		log:       log.With().Str("component", "daemon").Logger(),
	}
}

// Run loops until ctx is cancelled. Job failures never stop the loop.
func (d *Daemon) Run(ctx context.Context) error {
	d.log.Info().Dur("poll_interval", d.interval).Msg("daemon started")
	for {
		if ctx.Err() != nil {
			d.log.Info().Msg("daemon stopping")
			return nil
		}
		claimed, err := d.RunOnce(ctx)
		if claimed {
			continue
		}
		if err != nil && ctx.Err() == nil {
			d.log.Error().Err(err).Msg("failed to claim job")
		}
		select {
		case <-ctx.Done():
		case <-time.After(d.interval):
		}
	}
}

// RunOnce claims and processes at most one job. It reports whether a job was run.
func (d *Daemon) RunOnce(ctx context.Context) (bool, error) {
	job, ok, err := d.harvester.store.ClaimNext(ctx)
	if err != nil {
		metrics.QueueClaims.WithLabelValues("error").Inc()
		return false, err
	}
	if !ok {
		metrics.QueueClaims.WithLabelValues("empty").Inc()
		return false, nil
	}
	metrics.QueueClaims.WithLabelValues("claimed").Inc()

	d.log.Info().Str("job_id", job.ID).Msg("job claimed")
	d.harvester.Process(ctx, job)
	return true, nil
}
