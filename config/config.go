// Package config loads application settings from an optional config file
// and SKETCHRELAY_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	// Store picks the backend: "memory", "redis", or "dynamo".
	Store string `mapstructure:"store"`

	RedisAddr string `mapstructure:"redis_addr"`

	DynamoTable string `mapstructure:"dynamo_table"`
	AWSRegion   string `mapstructure:"aws_region"`

	// PollInterval is the guesser-side stroke fetch cadence.
	PollInterval time.Duration `mapstructure:"poll_interval"`
	// LeaseTTL bounds how long a disconnected player lingers in a roster.
	LeaseTTL time.Duration `mapstructure:"lease_ttl"`

	LogLevel string `mapstructure:"log_level"`
}

// Load reads sketchrelay.yaml (or .json, .toml) from the working directory
// if present; defaults cover everything, so no file is required.
func Load() (*AppConfig, error) {
	v := viper.New()

	v.SetConfigName("sketchrelay")
	v.AddConfigPath(".")

	v.SetDefault("store", "memory")
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("dynamo_table", "sketchrelay")
	v.SetDefault("aws_region", "us-west-2")
	v.SetDefault("poll_interval", time.Second)
	v.SetDefault("lease_ttl", 10*time.Second)
	v.SetDefault("log_level", "info")

	v.SetEnvPrefix("sketchrelay")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("loading config: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}
