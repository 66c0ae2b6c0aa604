package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port       string `mapstructure:"PORT"`
	Env        string `mapstructure:"ENV"`
	AuthSecret string `mapstructure:"AUTH_SECRET"`

	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`

	// Reminder engine knobs. Every recognized option is enumerated here so
	// components receive explicit values at construction instead of reading
	// the environment themselves.
	GenerationHorizonDays int           `mapstructure:"GENERATION_HORIZON_DAYS"`
	GenerationCron        string        `mapstructure:"GENERATION_CRON"`
	DispatchInterval      time.Duration `mapstructure:"DISPATCH_INTERVAL"`
	DispatchBatchSize     int           `mapstructure:"DISPATCH_BATCH_SIZE"`
	DispatchClaimLease    time.Duration `mapstructure:"DISPATCH_CLAIM_LEASE"`
	RetryHorizon          time.Duration `mapstructure:"RETRY_HORIZON"`
	SweepInterval         time.Duration `mapstructure:"SWEEP_INTERVAL"`
	PendingStaleness      time.Duration `mapstructure:"PENDING_STALENESS"`
	SentStaleness         time.Duration `mapstructure:"SENT_STALENESS"`
	OnTimeTolerance       time.Duration `mapstructure:"ON_TIME_TOLERANCE"`
	LowStockDefault       int           `mapstructure:"LOW_STOCK_THRESHOLD_DEFAULT"`
	SkippedBreaksStreak   bool          `mapstructure:"SKIPPED_BREAKS_STREAK"`
	ChannelTimeout        time.Duration `mapstructure:"CHANNEL_TIMEOUT"`

	// Notification provider credentials.
	PushoverAppToken string `mapstructure:"PUSHOVER_APP_TOKEN"`
	SMSAPIKey        string `mapstructure:"SMS_API_KEY"`
	SMSUsername      string `mapstructure:"SMS_USERNAME"`
	SMSSenderID      string `mapstructure:"SMS_SENDER_ID"`
	SMSEnv           string `mapstructure:"SMS_ENV"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("GENERATION_HORIZON_DAYS", 30)
	v.SetDefault("GENERATION_CRON", "15 2 * * *")
	v.SetDefault("DISPATCH_INTERVAL", "1m")
	v.SetDefault("DISPATCH_BATCH_SIZE", 100)
	v.SetDefault("DISPATCH_CLAIM_LEASE", "2m")
	v.SetDefault("RETRY_HORIZON", "30m")
	v.SetDefault("SWEEP_INTERVAL", "1h")
	v.SetDefault("PENDING_STALENESS", "2h")
	v.SetDefault("SENT_STALENESS", "2h")
	v.SetDefault("ON_TIME_TOLERANCE", "1h")
	v.SetDefault("LOW_STOCK_THRESHOLD_DEFAULT", 5)
	v.SetDefault("SKIPPED_BREAKS_STREAK", false)
	v.SetDefault("CHANNEL_TIMEOUT", "10s")
	v.SetDefault("SMS_ENV", "sandbox")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range []string{
		"PORT", "ENV", "AUTH_SECRET",
		"DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
		"GENERATION_HORIZON_DAYS", "GENERATION_CRON",
		"DISPATCH_INTERVAL", "DISPATCH_BATCH_SIZE", "DISPATCH_CLAIM_LEASE", "RETRY_HORIZON",
		"SWEEP_INTERVAL", "PENDING_STALENESS", "SENT_STALENESS",
		"ON_TIME_TOLERANCE", "LOW_STOCK_THRESHOLD_DEFAULT", "SKIPPED_BREAKS_STREAK",
		"CHANNEL_TIMEOUT",
		"PUSHOVER_APP_TOKEN", "SMS_API_KEY", "SMS_USERNAME", "SMS_SENDER_ID", "SMS_ENV",
	} {
		v.BindEnv(key)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run. The engine intervals
// must be positive: a zero dispatch interval would spin the scheduler, and a
// zero staleness threshold would sweep every reminder as soon as it is due.
func (c *Config) Validate() error {
	if c.GenerationHorizonDays <= 0 {
		return fmt.Errorf("GENERATION_HORIZON_DAYS must be positive, got %d", c.GenerationHorizonDays)
	}
	if c.DispatchInterval <= 0 {
		return fmt.Errorf("DISPATCH_INTERVAL must be positive, got %s", c.DispatchInterval)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be positive, got %s", c.SweepInterval)
	}
	if c.PendingStaleness <= 0 || c.SentStaleness <= 0 {
		return fmt.Errorf("staleness thresholds must be positive")
	}
	if c.DispatchBatchSize <= 0 {
		return fmt.Errorf("DISPATCH_BATCH_SIZE must be positive, got %d", c.DispatchBatchSize)
	}
	if c.DispatchClaimLease <= 0 {
		return fmt.Errorf("DISPATCH_CLAIM_LEASE must be positive, got %s", c.DispatchClaimLease)
	}
	if c.LowStockDefault < 0 {
		return fmt.Errorf("LOW_STOCK_THRESHOLD_DEFAULT must not be negative, got %d", c.LowStockDefault)
	}
	if !c.IsDev() && c.AuthSecret == "" {
		return fmt.Errorf("AUTH_SECRET is required outside development")
	}
	return nil
}
