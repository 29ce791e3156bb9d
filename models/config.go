package models

import "time"

// Config is the full application configuration as decoded by viper.
type Config struct {
	Bot     BotConfig     `mapstructure:"bot"`
	Storage StorageConfig `mapstructure:"storage"`
	Harvest HarvestConfig `mapstructure:"harvest"`
	API     APIConfig     `mapstructure:"api"`
	GRPC    GRPCConfig    `mapstructure:"grpc"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Log     LogConfig     `mapstructure:"log"`
	LLM     LLMConfig     `mapstructure:"llm"`
}

// BotConfig holds the Discord gateway settings.
type BotConfig struct {
	Token          string        `mapstructure:"token"`
	AdminChannelID string        `mapstructure:"admin_channel_id"`
	ReadyTimeout   time.Duration `mapstructure:"ready_timeout"`
	PagesPerSecond float64       `mapstructure:"pages_per_second"`
	SlashCommands  bool          `mapstructure:"slash_commands"`
}

// StorageConfig selects and configures the document store.
type StorageConfig struct {
	Driver        string `mapstructure:"driver"` // sqlite or mongo
	SQLitePath    string `mapstructure:"sqlite_path"`
	MongoURI      string `mapstructure:"mongo_uri"`
	MongoDatabase string `mapstructure:"mongo_database"`
	NodeID        int64  `mapstructure:"node_id"`
	RetentionDays int    `mapstructure:"retention_days"`
}

// HarvestConfig controls the polling daemon and its scheduled jobs.
type HarvestConfig struct {
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	Schedule      string        `mapstructure:"schedule"`
	PruneSchedule string        `mapstructure:"prune_schedule"`
}

type APIConfig struct {
	Addr string `mapstructure:"addr"`
}

type GRPCConfig struct {
	HealthAddr string `mapstructure:"health_addr"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// LLMConfig describes the OpenAI-compatible endpoint plus the model and
// prompt catalogs merged in from llm_models.yaml and prompt_models.yaml.
type LLMConfig struct {
	BaseURL string                  `mapstructure:"base_url"`
	APIKey  string                  `mapstructure:"api_key"`
	Timeout time.Duration           `mapstructure:"timeout"`
	Models  []LLMModel              `mapstructure:"llm_models"`
	LRM     []LLMModel              `mapstructure:"lrm_models"`
	VLM     []LLMModel              `mapstructure:"vlm_models"`
	Prompts map[string]PromptConfig `mapstructure:"prompt_models"`
}

// AllModels returns the language, reasoning and vision model catalogs in lookup order.
func (c LLMConfig) AllModels() []LLMModel {
	all := make([]LLMModel, 0, len(c.Models)+len(c.LRM)+len(c.VLM))
	all = append(all, c.Models...)
	all = append(all, c.LRM...)
	return append(all, c.VLM...)
}

// LLMModel is one entry of the model catalog.
type LLMModel struct {
	Name          string   `mapstructure:"name"`
	ContextWindow int      `mapstructure:"context_window"`
	Temperature   *float64 `mapstructure:"temperature"`
	TopP          *float64 `mapstructure:"top_p"`
}

// PromptConfig is one entry of the prompt catalog.
type PromptConfig struct {
	Messages       []PromptMessage `mapstructure:"messages"`
	Temperature    *float64        `mapstructure:"temperature"`
	TopP           *float64        `mapstructure:"top_p"`
	ResponseFormat map[string]any  `mapstructure:"response_format"`
}

// PromptMessage is a templated chat message; {{messages}} and {{question}}
// are replaced by the analyzed content.
type PromptMessage struct {
	Role    string `mapstructure:"role"`
	Content string `mapstructure:"content"`
}
