package command

import (
	"context"
	"fmt"
	"os/signal"
	"sync"
	"syscall"

	"discord-harvester/bot"
	"discord-harvester/config"
	harvestgrpc "discord-harvester/grpc"
	"discord-harvester/metrics"
	"discord-harvester/scanner"
	"discord-harvester/utils"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newDaemonCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the harvest daemon",
		Long: `Start the daemon that claims pending harvest jobs and runs them one at a time.

The daemon:
- Opens one Discord gateway session shared by every job
- Polls the job queue every harvest.poll_interval when idle
- Queues scheduled re-harvests and prunes old messages when configured
- Serves gRPC health on grpc.health_addr and /metrics on metrics.addr when set

Several daemons may share one queue. Use Ctrl+C or SIGTERM to stop.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.RequireToken(a.cfg); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.runDaemon(ctx)
		},
	}
	return cmd
}

func (a *app) runDaemon(ctx context.Context) error {
	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close(context.WithoutCancel(ctx))

	var health *harvestgrpc.HealthServer
	if a.cfg.GRPC.HealthAddr != "" {
		if health, err = harvestgrpc.Listen(a.cfg.GRPC.HealthAddr); err != nil {
			return err
		}
		defer health.Close()
	}

	b, err := bot.New(a.cfg.Bot)
	if err != nil {
		return err
	}
	if err := bot.Dial(ctx, b); err != nil {
		return err
	}
	defer func() {
		utils.DetachAdminChannel()
		if err := b.Close(); err != nil {
			log.Error().Err(err).Msg("error closing Discord session")
		}
	}()
	utils.AttachAdminChannel(b.Session, a.cfg.Bot.AdminChannelID)

	if a.cfg.Bot.SlashCommands {
		if err := b.RegisterCommands(bot.NewCommandHandler(store)); err != nil {
			utils.Warn("Daemon", "Commands", err.Error())
		}
	}

	sched, err := bot.NewScheduler(ctx, store, a.cfg.Harvest, a.cfg.Storage.RetentionDays)
	if err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	var (
		wg   sync.WaitGroup
		errs = make(chan error, 2)
	)
	if health != nil {
		health.SetServing(true)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := health.Serve(ctx); err != nil {
				errs <- fmt.Errorf("grpc health: %w", err)
			}
		}()
	}
	if a.cfg.Metrics.Addr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := metrics.Serve(ctx, a.cfg.Metrics.Addr); err != nil {
				errs <- fmt.Errorf("metrics: %w", err)
			}
		}()
	}

	utils.Info("Daemon", "Start", "Harvest daemon is now running.")
	d := scanner.NewDaemon(scanner.NewHarvester(b, store), a.cfg.Harvest.PollInterval)
	runErr := d.Run(ctx)

	if health != nil {
		health.SetServing(false)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		log.Error().Err(err).Msg("auxiliary server stopped with error")
	}
	utils.Info("Daemon", "Stop", "Harvest daemon stopped.")
	return runErr
}
