package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for our application
type Config struct {
	DiscordToken string
	DatabaseDSN  string
	RedisDSN     string
	MetricsAddr  string
	GuildsFile   string

	LogLevel string
	LogMode  string
	LogFile  string

	Location *time.Location

	TickInterval           time.Duration
	TenureInterval         time.Duration
	DynamicRoleInterval    time.Duration
	RoleMutationsPerSecond float64

	Guilds *GuildSet
}

// Load loads configuration from environment variables and the guild file
func Load() (*Config, error) {
	// .env file is optional, continue with environment variables
	_ = godotenv.Load()

	config := &Config{
		DiscordToken: os.Getenv("DISCORD_TOKEN"),
		DatabaseDSN:  os.Getenv("DATABASE_DSN"),
		RedisDSN:     os.Getenv("REDIS_DSN"),
		MetricsAddr:  os.Getenv("METRICS_ADDR"),
		GuildsFile:   getenvDefault("GUILDS_CONFIG", "guilds.yaml"),
		LogLevel:     getenvDefault("LOG_LEVEL", "info"),
		LogMode:      getenvDefault("LOG_MODE", "prod"),
		LogFile:      os.Getenv("LOG_FILE"),
	}

	if config.DiscordToken == "" {
		return nil, &ConfigError{Field: "DISCORD_TOKEN", Message: "DISCORD_TOKEN is required"}
	}

	if config.DatabaseDSN == "" {
		return nil, &ConfigError{Field: "DATABASE_DSN", Message: "DATABASE_DSN is required"}
	}

	loc, err := time.LoadLocation(getenvDefault("TIMEZONE", "America/Sao_Paulo"))
	if err != nil {
		return nil, &ConfigError{Field: "TIMEZONE", Message: fmt.Sprintf("invalid TIMEZONE: %v", err)}
	}
	config.Location = loc

	if config.TickInterval, err = getenvDuration("TICK_INTERVAL", 60*time.Second); err != nil {
		return nil, err
	}
	if config.TenureInterval, err = getenvDuration("TENURE_INTERVAL", 10*time.Minute); err != nil {
		return nil, err
	}
	if config.DynamicRoleInterval, err = getenvDuration("DYNAMIC_ROLE_INTERVAL", time.Hour); err != nil {
		return nil, err
	}

	config.RoleMutationsPerSecond = 5
	if raw := os.Getenv("ROLE_MUTATIONS_PER_SECOND"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v <= 0 {
			return nil, &ConfigError{Field: "ROLE_MUTATIONS_PER_SECOND", Message: "ROLE_MUTATIONS_PER_SECOND must be a positive number"}
		}
		config.RoleMutationsPerSecond = v
	}

	guilds, err := LoadGuilds(config.GuildsFile)
	if err != nil {
		return nil, err
	}
	config.Guilds = guilds

	return config, nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}

func getenvDefault(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func getenvDuration(k string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(k)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, &ConfigError{Field: k, Message: k + " must be a positive duration"}
	}
	return d, nil
}
