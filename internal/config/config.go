package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"github.com/AshrafHassan95/invoice-automation-agent/internal/domain/entity"
	"github.com/AshrafHassan95/invoice-automation-agent/internal/domain/rules"
)

// Storage drivers
const (
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Config holds all application configuration
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Storage      StorageConfig      `mapstructure:"storage"`
	Logger       LoggerConfig       `mapstructure:"logger"`
	Rules        rules.Config       `mapstructure:"rules"`
	Approvers    map[string]string  `mapstructure:"approvers"`
	Worker       WorkerConfig       `mapstructure:"worker"`
	Export       ExportConfig       `mapstructure:"export"`
	Notification NotificationConfig `mapstructure:"notification"`
	Webhook      WebhookConfig      `mapstructure:"webhook"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	BusyTimeout     time.Duration `mapstructure:"busy_timeout"`
	MigrationsDir   string        `mapstructure:"migrations_dir"`
}

// StorageConfig selects the persistence driver
type StorageConfig struct {
	Driver   string `mapstructure:"driver"`
	SeedFile string `mapstructure:"seed_file"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// WorkerConfig holds background processing configuration
type WorkerConfig struct {
	BatchConcurrency int           `mapstructure:"batch_concurrency"`
	SLAPollInterval  time.Duration `mapstructure:"sla_poll_interval"`
	SLABatchSize     int           `mapstructure:"sla_batch_size"`
}

// ExportConfig holds export configuration
type ExportConfig struct {
	OutputDir string `mapstructure:"output_dir"`
}

// NotificationConfig holds notification routing
type NotificationConfig struct {
	Escalations string `mapstructure:"escalations"`
}

// WebhookConfig holds extraction webhook configuration
type WebhookConfig struct {
	Path        string        `mapstructure:"path"`
	VerifyToken string        `mapstructure:"verify_token"`
	Secret      string        `mapstructure:"secret"`
	MaxSkew     time.Duration `mapstructure:"max_skew"`
}

// Load reads configuration from the optional YAML file at configPath, a
// .env file next to the working directory, and environment variables
func Load(configPath string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	bindEnvVars(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// loadDotEnv loads variables from path without overriding the environment
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := gotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)

	v.SetDefault("database.path", "data/invoices.db")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.busy_timeout", 5*time.Second)
	v.SetDefault("database.migrations_dir", "migrations")

	v.SetDefault("storage.driver", DriverSQLite)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")

	r := rules.DefaultConfig()
	v.SetDefault("rules.min_amount", r.MinAmount)
	v.SetDefault("rules.max_amount", r.MaxAmount)
	v.SetDefault("rules.auto_approve_threshold", r.AutoApproveThreshold)
	v.SetDefault("rules.manager_threshold", r.ManagerThreshold)
	v.SetDefault("rules.director_threshold", r.DirectorThreshold)
	v.SetDefault("rules.tolerance_percentage", r.TolerancePercentage)
	v.SetDefault("rules.max_invoice_age_days", r.MaxInvoiceAgeDays)
	v.SetDefault("rules.duplicate_window_days", r.DuplicateWindowDays)
	v.SetDefault("rules.require_po_for_auto_approval", r.RequirePOForAutoApproval)
	for level, hours := range r.SLAHours {
		v.SetDefault("rules.sla_hours."+level, hours)
	}

	v.SetDefault("worker.batch_concurrency", 4)
	v.SetDefault("worker.sla_poll_interval", time.Minute)
	v.SetDefault("worker.sla_batch_size", 100)

	v.SetDefault("export.output_dir", "exports")

	v.SetDefault("notification.escalations", entity.TeamAccountsPayable)

	v.SetDefault("webhook.path", "/webhook/extraction")
	v.SetDefault("webhook.max_skew", 5*time.Minute)
}

func bindEnvVars(v *viper.Viper) {
	_ = v.BindEnv("server.port", "PORT")
	_ = v.BindEnv("database.path", "INVOICE_DB_PATH")
	_ = v.BindEnv("storage.driver", "STORAGE_DRIVER")
	_ = v.BindEnv("logger.level", "LOG_LEVEL")
	_ = v.BindEnv("webhook.verify_token", "WEBHOOK_VERIFY_TOKEN")
	_ = v.BindEnv("webhook.secret", "WEBHOOK_SECRET")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}

	switch c.Storage.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for the sqlite driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("storage.driver must be %q or %q, got %q", DriverSQLite, DriverMemory, c.Storage.Driver)
	}

	if err := c.Rules.Validate(); err != nil {
		return err
	}

	for level := range c.Approvers {
		switch entity.ApprovalLevel(level) {
		case entity.LevelManager, entity.LevelDirector, entity.LevelExecutive, entity.LevelException:
		default:
			return fmt.Errorf("approvers: unknown level %q", level)
		}
	}

	if c.Worker.BatchConcurrency <= 0 {
		return fmt.Errorf("worker.batch_concurrency must be positive")
	}
	if c.Worker.SLAPollInterval <= 0 {
		return fmt.Errorf("worker.sla_poll_interval must be positive")
	}
	return nil
}

// Address returns the HTTP listen address
func (c ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
