package database

import (
	"errors"
	"fmt"
	"strings"

	"discord-harvester/models"
)

// ErrInvalidJob is returned by Submit for a job that cannot be queued.
var ErrInvalidJob = errors.New("invalid harvest job")

// ValidateJob checks a job before it is queued. Backends call it from Submit.
func ValidateJob(job models.HarvestJob) error {
	switch {
	case job.ServerID == 0:
		return fmt.Errorf("%w: server id is required", ErrInvalidJob)
	case len(job.ChannelIDs) == 0:
		return fmt.Errorf("%w: at least one channel id is required", ErrInvalidJob)
	case strings.TrimSpace(job.RequesterID) == "":
		return fmt.Errorf("%w: requester id is required", ErrInvalidJob)
	}
	for _, id := range job.ChannelIDs {
		if id == 0 {
			return fmt.Errorf("%w: channel ids must be non-zero", ErrInvalidJob)
		}
	}
	return nil
}
