/**
 * @description
 * This package handles the configuration management for the service. It uses the
 * Viper library to read configuration from environment variables and an optional
 * .env file, providing a centralized way to manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"errors"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	defaultRedisKeyPrefix = "fund"
	defaultJWTIssuer      = "fund-service"
	minJWTSecretLength    = 16
)

// Config holds all the configuration variables for the fund-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort               string `mapstructure:"SERVER_PORT"`
	DatabaseURL              string `mapstructure:"DATABASE_URL"`
	RedisURL                 string `mapstructure:"REDIS_URL"`
	RedisKeyPrefix           string `mapstructure:"REDIS_KEY_PREFIX"`
	RabbitMQURL              string `mapstructure:"RABBITMQ_URL"`
	NAVUpdateQueue           string `mapstructure:"NAV_UPDATE_QUEUE"`
	JWTSecret                string `mapstructure:"JWT_SECRET"`
	JWTIssuer                string `mapstructure:"JWT_ISSUER"`
	JWTTTLMinutes            int    `mapstructure:"JWT_TTL_MINUTES"`
	SessionMirrorTTLMinutes  int    `mapstructure:"SESSION_MIRROR_TTL_MINUTES"`
	WizardIdleTTLMinutes     int    `mapstructure:"WIZARD_IDLE_TTL_MINUTES"`
	WizardSweepSchedule      string `mapstructure:"WIZARD_SWEEP_SCHEDULE"`
	SubmitRateLimitPerMinute int    `mapstructure:"SUBMIT_RATE_LIMIT_PER_MINUTE"`
	CORSAllowedOrigins       string `mapstructure:"CORS_ALLOWED_ORIGINS"`
	SeedDemoData             bool   `mapstructure:"SEED_DEMO_DATA"`
	DemoPassword             string `mapstructure:"DEMO_PASSWORD"`
	BcryptCost               int    `mapstructure:"BCRYPT_COST"`
	LogLevel                 string `mapstructure:"LOG_LEVEL"`
}

// JWTTTL is the lifetime of issued tokens.
func (c Config) JWTTTL() time.Duration { return time.Duration(c.JWTTTLMinutes) * time.Minute }

// SessionMirrorTTL is how long a mirrored session survives without a refresh.
func (c Config) SessionMirrorTTL() time.Duration {
	return time.Duration(c.SessionMirrorTTLMinutes) * time.Minute
}

// WizardIdleTTL is how long an untouched wizard stays open.
func (c Config) WizardIdleTTL() time.Duration {
	return time.Duration(c.WizardIdleTTLMinutes) * time.Minute
}

// AllowedOrigins splits CORS_ALLOWED_ORIGINS.
func (c Config) AllowedOrigins() []string {
	var out []string
	for _, origin := range strings.Split(c.CORSAllowedOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			out = append(out, origin)
		}
	}
	return out
}

// LoadConfig reads configuration from environment variables and the optional
// .env file in path.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("REDIS_KEY_PREFIX", defaultRedisKeyPrefix)
	viper.SetDefault("NAV_UPDATE_QUEUE", "fund_service.nav_updates")
	viper.SetDefault("JWT_ISSUER", defaultJWTIssuer)
	viper.SetDefault("JWT_TTL_MINUTES", 1440)
	viper.SetDefault("SESSION_MIRROR_TTL_MINUTES", 1440)
	viper.SetDefault("WIZARD_IDLE_TTL_MINUTES", 30)
	viper.SetDefault("WIZARD_SWEEP_SCHEDULE", "@every 5m")
	viper.SetDefault("SUBMIT_RATE_LIMIT_PER_MINUTE", 10)
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	viper.SetDefault("SEED_DEMO_DATA", true)
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("BCRYPT_COST", 10)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL", "REDIS_URL", "FUND_REDIS_URL")
	_ = viper.BindEnv("REDIS_KEY_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("NAV_UPDATE_QUEUE")
	_ = viper.BindEnv("JWT_SECRET")
	_ = viper.BindEnv("JWT_ISSUER")
	_ = viper.BindEnv("JWT_TTL_MINUTES")
	_ = viper.BindEnv("SESSION_MIRROR_TTL_MINUTES")
	_ = viper.BindEnv("WIZARD_IDLE_TTL_MINUTES")
	_ = viper.BindEnv("WIZARD_SWEEP_SCHEDULE")
	_ = viper.BindEnv("SUBMIT_RATE_LIMIT_PER_MINUTE")
	_ = viper.BindEnv("CORS_ALLOWED_ORIGINS")
	_ = viper.BindEnv("SEED_DEMO_DATA")
	_ = viper.BindEnv("DEMO_PASSWORD")
	_ = viper.BindEnv("LOG_LEVEL")
	_ = viper.BindEnv("BCRYPT_COST")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
		err = nil
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.DatabaseURL = strings.TrimSpace(config.DatabaseURL)
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RabbitMQURL = strings.TrimSpace(config.RabbitMQURL)
	config.RedisKeyPrefix = strings.TrimSuffix(strings.TrimSpace(config.RedisKeyPrefix), ":")
	if config.RedisKeyPrefix == "" {
		config.RedisKeyPrefix = defaultRedisKeyPrefix
	}
	if strings.TrimSpace(config.JWTIssuer) == "" {
		config.JWTIssuer = defaultJWTIssuer
	}
	config.LogLevel = strings.ToLower(strings.TrimSpace(config.LogLevel))

	config.JWTSecret = strings.TrimSpace(config.JWTSecret)
	if config.JWTSecret == "" {
		return config, errors.New("JWT_SECRET is required")
	}
	if len(config.JWTSecret) < minJWTSecretLength {
		return config, errors.New("JWT_SECRET must be at least 16 characters")
	}

	if config.JWTTTLMinutes <= 0 {
		config.JWTTTLMinutes = 1440
	}
	if config.SessionMirrorTTLMinutes <= 0 {
		config.SessionMirrorTTLMinutes = config.JWTTTLMinutes
	}
	if config.WizardIdleTTLMinutes < 0 {
		log.Printf("level=warn component=config msg=\"negative wizard idle ttl configured; disabling sweep\" minutes=%d", config.WizardIdleTTLMinutes)
		config.WizardIdleTTLMinutes = 0
	}
	if strings.TrimSpace(config.WizardSweepSchedule) == "" {
		config.WizardSweepSchedule = "@every 5m"
	}
	if config.BcryptCost < 4 || config.BcryptCost > 31 {
		log.Printf("level=warn component=config msg=\"bcrypt cost out of range; using default\" cost=%d", config.BcryptCost)
		config.BcryptCost = 10
	}
	if config.SubmitRateLimitPerMinute < 0 {
		log.Printf("level=warn component=config msg=\"negative submit rate limit configured; disabling limit\" limit=%d", config.SubmitRateLimitPerMinute)
		config.SubmitRateLimitPerMinute = 0
	}

	return
}
