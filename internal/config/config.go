package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"    validate:"required"`
	Storage   StorageConfig   `mapstructure:"storage"   validate:"required"`
	Store     StoreConfig     `mapstructure:"store"     validate:"required"`
	Generator GeneratorConfig `mapstructure:"generator" validate:"required"`
	Task      TaskConfig      `mapstructure:"task"      validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`

	// AllowedOrigins lists the browser origins allowed to call the API.
	// "*" allows any origin.
	AllowedOrigins []string `mapstructure:"allowed_origins"`

	// ShutdownTimeout bounds graceful shutdown of in-flight requests.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gte=0"`
}

// StorageConfig locates the on-disk artifacts of generation tasks.
type StorageConfig struct {
	// DataDir is the root under which workspaces, archives and the default
	// registry file live.
	DataDir string `mapstructure:"data_dir" validate:"required"`
}

// Store drivers
const (
	StoreDriverFile     = "file"
	StoreDriverSQLite   = "sqlite"
	StoreDriverPostgres = "postgres"
)

// StoreConfig selects and configures the task store backend.
type StoreConfig struct {
	Driver string `mapstructure:"driver" validate:"required,oneof=file sqlite postgres"`

	// RegistryPath is the registry file used by the file driver.
	// Empty means <data_dir>/tasks.json.
	RegistryPath string `mapstructure:"registry_path"`

	// SQLitePath is the database file used by the sqlite driver.
	// Empty means <data_dir>/tasks.db.
	SQLitePath string `mapstructure:"sqlite_path"`

	DatabaseURL string `mapstructure:"database_url" validate:"required_if=Driver postgres,omitempty,url"`
}

// GeneratorConfig describes how the external scaffolding tool is invoked.
type GeneratorConfig struct {
	Command string   `mapstructure:"command" validate:"required"`
	Args    []string `mapstructure:"args"`

	// Timeout bounds a single generator run. Zero disables the limit.
	Timeout time.Duration `mapstructure:"timeout" validate:"gte=0"`

	// ForwardExtendedOptions passes cloud, preset, template and analytics
	// choices to the generator in addition to the core stack flags.
	ForwardExtendedOptions bool `mapstructure:"forward_extended_options"`
}

// TaskConfig contains settings for the background task runner.
type TaskConfig struct {
	WorkerCount int `mapstructure:"worker_count" validate:"required,gte=1"`
	QueueSize   int `mapstructure:"queue_size"   validate:"required,gte=1"`
}
