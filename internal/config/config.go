package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/zakupai/supplier-search/internal/pipeline"
	"github.com/zakupai/supplier-search/internal/queue"
	"github.com/zakupai/supplier-search/internal/store"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig        `yaml:"store" mapstructure:"store"`
	Anthropic AnthropicConfig    `yaml:"anthropic" mapstructure:"anthropic"`
	Yandex    YandexConfig       `yaml:"yandex" mapstructure:"yandex"`
	Registry  RegistryConfig     `yaml:"registry" mapstructure:"registry"`
	Pipeline  pipeline.Config    `yaml:"pipeline" mapstructure:"pipeline"`
	Worker    queue.WorkerConfig `yaml:"worker" mapstructure:"worker"`
	Server    ServerConfig       `yaml:"server" mapstructure:"server"`
	Log       LogConfig          `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string           `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string           `yaml:"database_url" mapstructure:"database_url"`
	Pool        store.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key string `yaml:"key" mapstructure:"key"`
}

// YandexConfig holds Yandex Search API settings.
type YandexConfig struct {
	Key          string `yaml:"key" mapstructure:"key"`
	FolderID     string `yaml:"folder_id" mapstructure:"folder_id"`
	BaseURL      string `yaml:"base_url" mapstructure:"base_url"`
	GroupsOnPage int    `yaml:"groups_on_page" mapstructure:"groups_on_page"`
}

// RegistryConfig points at an optional labels override file. Empty means the
// embedded defaults.
type RegistryConfig struct {
	LabelsPath string `yaml:"labels_path" mapstructure:"labels_path"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Validate checks the fields required for the given run mode. Serving only
// needs the store; the worker additionally needs provider credentials.
func (c *Config) Validate(mode string) error {
	var missing []string

	requireStore := func() {
		if c.Store.Driver != "postgres" && c.Store.Driver != "sqlite" {
			missing = append(missing, "store.driver must be postgres or sqlite")
		}
		if c.Store.DatabaseURL == "" {
			missing = append(missing, "store.database_url is required")
		}
	}

	switch mode {
	case "serve":
		requireStore()
		if c.Server.Port <= 0 {
			missing = append(missing, "server.port must be > 0")
		}
	case "worker":
		requireStore()
		if c.Anthropic.Key == "" {
			missing = append(missing, "anthropic.key is required")
		}
		if c.Yandex.Key == "" {
			missing = append(missing, "yandex.key is required")
		}
		if c.Yandex.FolderID == "" {
			missing = append(missing, "yandex.folder_id is required")
		}
		if c.Pipeline.FuzzyRatio < 0 || c.Pipeline.FuzzyRatio > 1 {
			missing = append(missing, "pipeline.fuzzy_ratio must be between 0 and 1")
		}
	case "migrate":
		requireStore()
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(missing) > 0 {
		return eris.New("config: " + strings.Join(missing, "; "))
	}
	return nil
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ZAKUPAI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Keys configured only through the environment still need an
	// entry here: AutomaticEnv resolves just the keys viper already knows.
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.pool.max_conns", 10)
	v.SetDefault("store.pool.min_conns", 2)
	v.SetDefault("anthropic.key", "")
	v.SetDefault("yandex.key", "")
	v.SetDefault("yandex.folder_id", "")
	v.SetDefault("registry.labels_path", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("yandex.base_url", "https://searchapi.api.cloud.yandex.net")
	v.SetDefault("yandex.groups_on_page", 20)
	v.SetDefault("pipeline.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("pipeline.query_docs_limit", 3)
	v.SetDefault("pipeline.fuzzy_ratio", 0.6)
	v.SetDefault("pipeline.max_concurrency", 4)
	v.SetDefault("pipeline.model_rps", 2)
	v.SetDefault("pipeline.page_rune_limit", 10000)
	v.SetDefault("worker.poll_interval", "2s")
	v.SetDefault("worker.reclaim_after", "45m")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
