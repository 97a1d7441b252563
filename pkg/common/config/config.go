package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// DaemonConfig holds configuration for the papd server process.
type DaemonConfig struct {
	BindAddr    string
	DatabaseDSN string
	LogLevel    string
	MetricsPort int
}

// LoadDaemonConfig loads papd configuration from cfgFile (if non-empty)
// or the default search paths, falling back to defaults, then applying
// PAP_-prefixed environment variable overrides.
func LoadDaemonConfig(cfgFile string) (*DaemonConfig, error) {
	v := viper.New()

	v.SetDefault("bind_addr", "127.0.0.1:9090")
	v.SetDefault("database_dsn", "pap.db")
	v.SetDefault("log_level", "info")
	v.SetDefault("metrics_port", 9400)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("papd")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/pap/")
		v.AddConfigPath("$HOME/.pap/")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("PAP")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	return &DaemonConfig{
		BindAddr:    v.GetString("bind_addr"),
		DatabaseDSN: v.GetString("database_dsn"),
		LogLevel:    v.GetString("log_level"),
		MetricsPort: v.GetInt("metrics_port"),
	}, nil
}
