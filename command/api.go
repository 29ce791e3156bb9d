package command

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"discord-harvester/analyzer"
	"discord-harvester/bot"
	"discord-harvester/handlers"
	"discord-harvester/llm"
	"discord-harvester/utils"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newAPICmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "api",
		Short: "Serve the HTTP API",
		Long: `Serve job submission, job status, server and channel listing and analysis over HTTP.

Jobs are only queued here; a running daemon executes them. Listing endpoints
open a short-lived Discord session per request.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
				a.cfg.API.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.runAPI(ctx)
		},
	}
	cmd.Flags().String("addr", "", "listen address, overrides api.addr")
	return cmd
}

func (a *app) runAPI(ctx context.Context) error {
	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close(context.WithoutCancel(ctx))

	var analysis handlers.AnalysisService
	if client, err := llm.New(a.cfg.LLM); err != nil {
		utils.Warn("API", "LLM", "analysis disabled: "+err.Error())
	} else {
		analysis = analyzer.NewService(store, client)
	}

	if a.cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handlers.NewRouter(handlers.New(store, bot.NewOpener(a.cfg.Bot), analysis))

	srv := &http.Server{
		Addr:              a.cfg.API.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http api listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}
	return <-errCh
}
