package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable read by Load.
const EnvPrefix = "SCAFFOLD"

// Load configuration from environment variables and optionally a config file.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.applyDerivedDefaults()

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers every key so that AutomaticEnv can override it
// during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("storage.data_dir", "./data")

	v.SetDefault("store.driver", StoreDriverFile)
	v.SetDefault("store.registry_path", "")
	v.SetDefault("store.sqlite_path", "")
	v.SetDefault("store.database_url", "")

	v.SetDefault("generator.command", "mlops-project-generator")
	v.SetDefault("generator.args", []string{"init"})
	v.SetDefault("generator.timeout", "0s")
	v.SetDefault("generator.forward_extended_options", false)

	v.SetDefault("task.worker_count", 2)
	v.SetDefault("task.queue_size", 100)
}

func (c *Config) applyDerivedDefaults() {
	if c.Store.RegistryPath == "" && c.Storage.DataDir != "" {
		c.Store.RegistryPath = filepath.Join(c.Storage.DataDir, "tasks.json")
	}
	if c.Store.SQLitePath == "" && c.Storage.DataDir != "" {
		c.Store.SQLitePath = filepath.Join(c.Storage.DataDir, "tasks.db")
	}
}
