// Package command holds the cobra CLI: the harvest daemon, the HTTP API and
// one-shot commands for listing, submitting and analyzing.
package command

import (
	"context"
	"fmt"
	"os"

	"discord-harvester/config"
	"discord-harvester/database"
	"discord-harvester/database/mongodb"
	"discord-harvester/database/sqlitedb"
	"discord-harvester/models"
	"discord-harvester/utils"

	"github.com/spf13/cobra"
)

const AppName = "harvester"

// Version is overwritten at build time using -ldflags.
var Version = "dev"

// app carries what PersistentPreRunE loaded to the subcommands.
type app struct {
	configDir string
	cfg       *models.Config
}

// NewRootCmd builds the command tree.
func NewRootCmd(version string) *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:           AppName,
		Short:         "Discord message history harvester",
		Long:          "Harvests Discord channel history into a document store and runs LLM analyses over it.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.Version = version
	cmd.SetVersionTemplate(AppName + " version {{.Version}}\n")
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)

	cmd.PersistentFlags().StringVar(&a.configDir, "config-dir", ".", "directory holding config.yaml, .env and config/")
	cmd.PersistentFlags().String("log-level", "", "override log.level")
	cmd.PersistentFlags().Bool("json", false, "output in JSON format")

	cmd.AddCommand(
		newDaemonCmd(a),
		newAPICmd(a),
		newServersCmd(a),
		newChannelsCmd(a),
		newSubmitCmd(a),
		newStatusCmd(a),
		newJobsCmd(a),
		newAnalyzeCmd(a),
		newModelsCmd(a),
		newHealthCmd(a),
	)
	return cmd
}

// Execute runs the CLI.
func Execute() error {
	return NewRootCmd(Version).Execute()
}

func (a *app) load(cmd *cobra.Command) error {
	cfg, err := config.LoadDir(a.configDir)
	if err != nil {
		return err
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}
	utils.InitLogger(cfg.Log.Level, cfg.Log.Pretty)

	if err := config.Validate(cfg); err != nil {
		return err
	}
	if err := utils.InitIDs(cfg.Storage.NodeID); err != nil {
		return fmt.Errorf("invalid storage.node_id: %w", err)
	}
	a.cfg = cfg
	return nil
}

// openStore opens the backend selected by storage.driver.
func (a *app) openStore(ctx context.Context) (database.Store, error) {
	if a.cfg.Storage.Driver == "mongo" {
		db, err := mongodb.Open(ctx, a.cfg.Storage.MongoURI, a.cfg.Storage.MongoDatabase)
		if err != nil {
			return nil, err
		}
		return db, nil
	}
	db, err := sqlitedb.Open(ctx, a.cfg.Storage.SQLitePath)
	if err != nil {
		return nil, err
	}
	return db, nil
}
