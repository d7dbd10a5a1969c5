// Package config loads runtime configuration for a planward process.
package config

import "github.com/spf13/viper"

// Config holds all runtime configuration. Values are populated from
// .planward.yaml, PLANWARD_* env vars, and CLI flags.
type Config struct {
	ListenAddr     string `mapstructure:"listen_addr"`
	DatabasePath   string `mapstructure:"database_path"`
	LogLevel       string `mapstructure:"log_level"`
	LogJSON        bool   `mapstructure:"log_json"`
	ActivityBuffer int    `mapstructure:"activity_buffer"`
	ActivityLimit  int    `mapstructure:"activity_limit"`
}

// Load reads configuration from viper, applying built-in defaults for any
// values not set by config file, environment, or flags.
func Load() Config {
	viper.SetDefault("listen_addr", ":8080")
	viper.SetDefault("database_path", "planward.db")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_json", false)
	viper.SetDefault("activity_buffer", 1024)
	viper.SetDefault("activity_limit", 50)

	var cfg Config
	_ = viper.Unmarshal(&cfg)
	return cfg
}
