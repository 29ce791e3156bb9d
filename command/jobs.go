package command

import (
	"context"
	"fmt"
	"strings"
	"time"

	"discord-harvester/database"
	"discord-harvester/models"
	"discord-harvester/utils"

	"github.com/spf13/cobra"
)

// withStore opens the configured store for the duration of fn.
func (a *app) withStore(ctx context.Context, fn func(database.Store) error) error {
	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close(context.WithoutCancel(ctx))
	return fn(store)
}

func newSubmitCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Queue a harvest job",
		Long: `Queue a harvest of one or more channels of a server.

--after takes a message id or an ISO-8601 timestamp, --before an ISO-8601
timestamp. Without --after the harvest resumes from the newest stored message.

Examples:
  harvester submit --server 1100 --channel 2200 --channel 2201
  harvester submit --server 1100 --channel 2200 --after 2024-01-01T00:00:00Z`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			requester, _ := cmd.Flags().GetString("requester")
			server, _ := cmd.Flags().GetString("server")
			channels, _ := cmd.Flags().GetStringSlice("channel")
			after, _ := cmd.Flags().GetString("after")
			before, _ := cmd.Flags().GetString("before")

			job := models.HarvestJob{RequesterID: requester, After: after, Before: before}
			var err error
			if job.ServerID, err = utils.ParseSnowflake("server", server); err != nil {
				return writeCommandError(cmd, err)
			}
			for _, raw := range channels {
				id, err := utils.ParseSnowflake("channel", raw)
				if err != nil {
					return writeCommandError(cmd, err)
				}
				job.ChannelIDs = append(job.ChannelIDs, id)
			}

			var id string
			err = a.withStore(cmd.Context(), func(s database.Store) error {
				var err error
				id, err = s.Submit(cmd.Context(), job)
				return err
			})
			if err != nil {
				return writeCommandError(cmd, err)
			}

			if jsonMode(cmd) {
				return writeJSON(cmd, map[string]string{"job_id": id, "status": string(models.JobPending)})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Queued job %s\n", id)
			return nil
		},
	}
	cmd.Flags().String("requester", "cli", "requester id recorded on the job")
	cmd.Flags().String("server", "", "server id")
	cmd.Flags().StringSlice("channel", nil, "channel id (repeatable)")
	cmd.Flags().String("after", "", "message id or ISO-8601 timestamp to start after")
	cmd.Flags().String("before", "", "ISO-8601 timestamp to stop at")
	_ = cmd.MarkFlagRequired("server")
	_ = cmd.MarkFlagRequired("channel")
	return cmd
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show the state of a harvest job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var job *models.HarvestJob
			err := a.withStore(cmd.Context(), func(s database.Store) error {
				var err error
				job, err = s.Get(cmd.Context(), args[0])
				return err
			})
			if err != nil {
				return writeCommandError(cmd, err)
			}
			if jsonMode(cmd) {
				return writeJSON(cmd, job)
			}
			printJob(cmd, *job, true)
			return nil
		},
	}
}

func newJobsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List recent harvest jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rawStatus, _ := cmd.Flags().GetString("status")
			limit, _ := cmd.Flags().GetInt("limit")
			status := models.JobStatus(rawStatus)
			if status != "" && !status.Valid() {
				return writeCommandError(cmd, fmt.Errorf("unknown status %q", rawStatus))
			}

			var jobs []models.HarvestJob
			err := a.withStore(cmd.Context(), func(s database.Store) error {
				var err error
				jobs, err = s.List(cmd.Context(), status, limit)
				return err
			})
			if err != nil {
				return writeCommandError(cmd, err)
			}

			if jsonMode(cmd) {
				if jobs == nil {
					jobs = []models.HarvestJob{}
				}
				return writeJSON(cmd, map[string]any{"jobs": jobs})
			}
			if len(jobs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No jobs.")
				return nil
			}
			for _, job := range jobs {
				printJob(cmd, job, false)
			}
			return nil
		},
	}
	cmd.Flags().String("status", "", "filter by status (pending, running, done, failed)")
	cmd.Flags().Int("limit", 20, "maximum number of jobs")
	return cmd
}

func printJob(cmd *cobra.Command, job models.HarvestJob, detailed bool) {
	out := cmd.OutOrStdout()
	line := fmt.Sprintf("%s  %-8s  server %s  %d channel(s)  %s",
		job.ID, job.Status, utils.FormatSnowflake(job.ServerID), len(job.ChannelIDs), job.CreatedAt.Format(time.RFC3339))
	if job.InsertedCount != nil {
		line += fmt.Sprintf("  +%d", *job.InsertedCount)
	}
	fmt.Fprintln(out, line)
	if !detailed {
		return
	}

	ids := make([]string, len(job.ChannelIDs))
	for i, id := range job.ChannelIDs {
		ids[i] = utils.FormatSnowflake(id)
	}
	fmt.Fprintf(out, "  requester: %s\n  channels:  %s\n", job.RequesterID, strings.Join(ids, ", "))
	if job.After != "" {
		fmt.Fprintf(out, "  after:     %s\n", job.After)
	}
	if job.Before != "" {
		fmt.Fprintf(out, "  before:    %s\n", job.Before)
	}
	if job.StartedAt != nil {
		fmt.Fprintf(out, "  started:   %s\n", job.StartedAt.Format(time.RFC3339))
	}
	if job.FinishedAt != nil {
		fmt.Fprintf(out, "  finished:  %s\n", job.FinishedAt.Format(time.RFC3339))
	}
	if job.ErrorMessage != "" {
		fmt.Fprintf(out, "  error:     %s\n", job.ErrorMessage)
	}
}
