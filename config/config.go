package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Scheduler SchedulerConfig
	Deposit   DepositConfig
	Cleanup   CleanupConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Port string
}

// DatabaseConfig holds the SQLite location. ":memory:" is allowed.
type DatabaseConfig struct {
	Path string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// HTTPConfig holds HTTP server settings
type HTTPConfig struct {
	CORSAllowOrigins []string
	ShutdownTimeout  time.Duration
}

// SchedulerConfig holds the cron specs of the background ticks. Specs use
// the five-field cron format.
type SchedulerConfig struct {
	Enabled        bool
	MonthlySpec    string
	DeactivateSpec string
	CleanupSpec    string
}

// DepositConfig holds recurring-deposit settings
type DepositConfig struct {
	PenaltyAmount decimal.Decimal
}

// CleanupConfig holds purge settings
type CleanupConfig struct {
	RejectedRetention time.Duration
}

// Load reads configuration from path (or ./config.toml when path is empty),
// then PAYOUT_* environment variables, then defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("PAYOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	penalty, err := decimal.NewFromString(v.GetString("deposit.penalty_amount"))
	if err != nil {
		return nil, fmt.Errorf("deposit.penalty_amount: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Path: v.GetString("database.path"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			CORSAllowOrigins: splitList(v.GetStringSlice("http.cors_allow_origins")),
			ShutdownTimeout:  v.GetDuration("http.shutdown_timeout"),
		},
		Scheduler: SchedulerConfig{
			Enabled:        v.GetBool("scheduler.enabled"),
			MonthlySpec:    v.GetString("scheduler.monthly_spec"),
			DeactivateSpec: v.GetString("scheduler.deactivate_spec"),
			CleanupSpec:    v.GetString("scheduler.cleanup_spec"),
		},
		Deposit: DepositConfig{
			PenaltyAmount: penalty,
		},
		Cleanup: CleanupConfig{
			RejectedRetention: v.GetDuration("cleanup.rejected_retention"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "payout-engine")
	v.SetDefault("app.port", "8080")
	v.SetDefault("database.path", "./data/payout.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("http.cors_allow_origins", []string{"http://localhost:5173", "http://localhost:8080"})
	v.SetDefault("http.shutdown_timeout", "10s")
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.monthly_spec", "1 1 1 * *")
	v.SetDefault("scheduler.deactivate_spec", "30 0 * * *")
	v.SetDefault("scheduler.cleanup_spec", "0 0 * * *")
	v.SetDefault("deposit.penalty_amount", "1000")
	v.SetDefault("cleanup.rejected_retention", "24h")
}

// splitList accepts both a TOML array and a comma-separated env value.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

// Validate checks the values the server cannot start without.
func (c *Config) Validate() error {
	if c.App.Port == "" {
		return fmt.Errorf("app.port is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if !c.Deposit.PenaltyAmount.IsPositive() {
		return fmt.Errorf("deposit.penalty_amount must be positive")
	}
	if c.Cleanup.RejectedRetention <= 0 {
		return fmt.Errorf("cleanup.rejected_retention must be positive")
	}
	if c.Scheduler.Enabled {
		if c.Scheduler.MonthlySpec == "" || c.Scheduler.DeactivateSpec == "" || c.Scheduler.CleanupSpec == "" {
			return fmt.Errorf("scheduler specs are required when the scheduler is enabled")
		}
	}
	return nil
}
