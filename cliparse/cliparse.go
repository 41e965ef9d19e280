package cliparse

import (
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port           int
	DatabaseURL    string
	DatabaseType   string
	IdentitySalt   string
	VoteWindow     time.Duration
	SweepInterval  time.Duration
	MaxCastRetries int
	LogLevel       string
}

// ParseFlags reads CLI flags, falling back to environment variables and .env
func ParseFlags(args []string) (Config, error) {
	var cfg Config

	// A missing .env is fine; real environment variables win over it.
	_ = godotenv.Load()

	env := viper.New()
	env.AutomaticEnv()
	env.SetDefault("PORT", 3318)
	env.SetDefault("DATABASE_TYPE", "sqlite")
	env.SetDefault("VOTE_WINDOW", "24h")
	env.SetDefault("SWEEP_INTERVAL", "1m")
	env.SetDefault("MAX_CAST_RETRIES", 5)
	env.SetDefault("LOG_LEVEL", "info")

	fs := flag.NewFlagSet("messmate", flag.ContinueOnError)

	// Network config (can be CLI args or env)
	fs.IntVar(&cfg.Port, "p", 0, "Server port")
	fs.StringVar(&cfg.DatabaseURL, "d", "", "Database URL")
	fs.StringVar(&cfg.DatabaseType, "t", "", "Database type (sqlite or postgres)")

	// Secrets (prefer env variables, but allow CLI for dev)
	fs.StringVar(&cfg.IdentitySalt, "identity-salt", "", "Identity signature salt (prefer env)")

	// Voting behaviour
	fs.DurationVar(&cfg.VoteWindow, "vote-window", 0, "Default voting window")
	fs.DurationVar(&cfg.SweepInterval, "sweep-interval", -1, "Expiry sweep interval (0 disables)")
	fs.IntVar(&cfg.MaxCastRetries, "max-cast-retries", 0, "Ballot retries after a version conflict")
	fs.StringVar(&cfg.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	// Fall back to environment variables
	if cfg.Port == 0 {
		cfg.Port = env.GetInt("PORT")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return Config{}, errors.New("invalid PORT")
	}

	if cfg.DatabaseType == "" {
		cfg.DatabaseType = env.GetString("DATABASE_TYPE")
	}
	if cfg.DatabaseType != "sqlite" && cfg.DatabaseType != "postgres" {
		return Config{}, fmt.Errorf("unsupported database type %q", cfg.DatabaseType)
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = env.GetString("DATABASE_URL")
	}
	if cfg.DatabaseURL == "" {
		return Config{}, errors.New("database URL required (use -d or DATABASE_URL env)")
	}

	if cfg.VoteWindow == 0 {
		cfg.VoteWindow = env.GetDuration("VOTE_WINDOW")
	}
	if cfg.VoteWindow <= 0 {
		return Config{}, errors.New("VOTE_WINDOW must be positive")
	}

	if cfg.SweepInterval < 0 {
		cfg.SweepInterval = env.GetDuration("SWEEP_INTERVAL")
	}
	if cfg.SweepInterval < 0 {
		return Config{}, errors.New("SWEEP_INTERVAL cannot be negative")
	}

	if cfg.MaxCastRetries == 0 {
		cfg.MaxCastRetries = env.GetInt("MAX_CAST_RETRIES")
	}
	if cfg.MaxCastRetries <= 0 {
		return Config{}, errors.New("MAX_CAST_RETRIES must be positive")
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = env.GetString("LOG_LEVEL")
	}

	// Secrets - MUST be provided
	if cfg.IdentitySalt == "" {
		cfg.IdentitySalt = env.GetString("IDENTITY_SALT")
	}
	if cfg.IdentitySalt == "" {
		return Config{}, errors.New("IDENTITY_SALT required")
	}

	return cfg, nil
}
