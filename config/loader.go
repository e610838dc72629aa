package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// RootConfig is the top-level shape loaded from mcprpc.yaml / env vars.
type RootConfig struct {
	Stdio     StdioConfig `mapstructure:"stdio" yaml:"stdio"`
	HTTP      HTTPConfig  `mapstructure:"http" yaml:"http"`
	LogLevel  string      `mapstructure:"log_level" yaml:"log_level"`
}

// InitViper wires config file discovery and MCPRPC_-prefixed environment
// variable overrides. If configFile is empty, mcprpc.yaml/.yml is searched
// for in the current directory and $HOME/.mcprpc.
func InitViper(configFile string) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else if found := findConfigFile(); found != "" {
		viper.SetConfigFile(found)
	} else {
		viper.SetConfigName("mcprpc")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix("MCPRPC")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
}

func findConfigFile() string {
	home, _ := os.UserHomeDir()
	for _, dir := range []string{".", filepath.Join(home, ".mcprpc")} {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, "mcprpc"+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// Load reads the configuration file (if any), applies environment
// overrides and field defaults, and validates the result.
func Load() (*RootConfig, error) {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg RootConfig
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.Stdio = cfg.Stdio.WithDefaults()
	cfg.HTTP = cfg.HTTP.WithDefaults()
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	if err := cfg.HTTP.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
