package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"discord-harvester/models"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// sideFiles are merged on top of config.yaml when present in ./config.
var sideFiles = []string{"llm_models", "prompt_models"}

// Load reads configuration from several sources into the global viper
// instance and decodes it:
// 1. .env file (environment variables)
// 2. config.yaml (base configuration)
// 3. config/llm_models.yaml and config/prompt_models.yaml (merged into the base)
// Environment variables override values from files.
func Load() (*models.Config, error) {
	return loadWith(viper.GetViper(), ".")
}

// LoadDir is Load rooted at dir, on a private viper instance.
func LoadDir(dir string) (*models.Config, error) {
	return loadWith(viper.New(), dir)
}

func loadWith(v *viper.Viper, dir string) (*models.Config, error) {
	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil {
		log.Debug().Msg(".env file not found, skipping")
	}
	if err := load(v, dir); err != nil {
		return nil, err
	}
	return Decode(v)
}

// Decode unmarshals v into a models.Config.
func Decode(v *viper.Viper) (*models.Config, error) {
	var cfg models.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	return &cfg, nil
}

func load(v *viper.Viper, dir string) error {
	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	bindEnvAliases(v)

	// Base configuration. A missing file is fine, env and defaults still apply.
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("fatal error reading config file: %w", err)
		}
		log.Debug().Msg("config.yaml not found, using environment variables and defaults")
	}

	// Catalog files live under ./config and are merged into the base tree
	// under the llm key, so prompt_models.yaml holding a top-level
	// prompt_models map ends up at llm.prompt_models.
	for _, name := range sideFiles {
		side := viper.New()
		side.SetConfigName(name)
		side.SetConfigType("yaml")
		side.AddConfigPath(filepath.Join(dir, "config"))
		if err := side.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) {
				log.Debug().Str("file", name).Msg("catalog file not found, skipping merge")
				continue
			}
			return fmt.Errorf("fatal error merging %s: %w", name, err)
		}
		if err := v.MergeConfigMap(map[string]any{"llm": side.AllSettings()}); err != nil {
			return fmt.Errorf("fatal error merging %s: %w", name, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("bot.token", "")
	v.SetDefault("bot.admin_channel_id", "")
	v.SetDefault("bot.ready_timeout", 15*time.Second)
	v.SetDefault("bot.pages_per_second", 2.0)
	v.SetDefault("bot.slash_commands", false)

	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.sqlite_path", "./data/harvester.db")
	v.SetDefault("storage.mongo_uri", "")
	v.SetDefault("storage.mongo_database", "harvester")
	v.SetDefault("storage.node_id", 1)
	v.SetDefault("storage.retention_days", 0)

	v.SetDefault("harvest.poll_interval", 2*time.Second)
	v.SetDefault("harvest.schedule", "")
	v.SetDefault("harvest.prune_schedule", "@daily")

	v.SetDefault("api.addr", ":8000")
	v.SetDefault("grpc.health_addr", "")
	v.SetDefault("metrics.addr", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetDefault("llm.base_url", "https://oai.endpoints.kepler.ai.cloud.ovh.net/v1")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.timeout", 60*time.Second)
}

// bindEnvAliases keeps the variable names used by existing deployments working.
func bindEnvAliases(v *viper.Viper) {
	_ = v.BindEnv("bot.token", "BOT_TOKEN", "DISCORD_BOT_TOKEN")
	_ = v.BindEnv("llm.api_key", "LLM_API_KEY", "OVH_AI_ENDPOINTS_ACCESS_TOKEN")
	_ = v.BindEnv("llm.base_url", "LLM_BASE_URL", "OVH_API_BASE_URL")
	_ = v.BindEnv("storage.mongo_uri", "STORAGE_MONGO_URI", "MONGO_URI")
}

// Validate checks the settings every command depends on.
func Validate(cfg *models.Config) error {
	switch cfg.Storage.Driver {
	case "sqlite":
		if cfg.Storage.SQLitePath == "" {
			return errors.New("storage.sqlite_path is required for the sqlite driver")
		}
	case "mongo":
		if cfg.Storage.MongoURI == "" {
			return errors.New("storage.mongo_uri is required for the mongo driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
	if cfg.Harvest.PollInterval <= 0 {
		return errors.New("harvest.poll_interval must be positive")
	}
	return nil
}

// RequireToken reports an error when no bot token is configured.
func RequireToken(cfg *models.Config) error {
	if cfg.Bot.Token == "" {
		return errors.New("no bot token provided, set BOT_TOKEN in your .env or config file")
	}
	return nil
}
