// Copyright 2025 The rdiag Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config loads rdiagd's process configuration from environment
// variables, a config file, and built-in defaults, in that precedence order.
//
// Grounded on Sumatoshi-tech-codefang's pkg/config/config.go: a viper
// instance, a SetDefault block, ReadInConfig tolerating a missing file, and
// Unmarshal into a mapstructure-tagged struct.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultListenAddr     = "127.0.0.1:7737"
	defaultAnalyzerPreset = "default"
	defaultLogLevel       = "info"
	defaultLogFormat      = "json"
)

// Sentinel validation errors.
var (
	ErrEmptyListenAddr     = errors.New("server.listen_addr must not be empty")
	ErrInvalidAnalyzerList = errors.New("project.analyzer_preset must not be empty")
)

// Config holds rdiagd's process configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Project ProjectConfig `mapstructure:"project"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig describes the MCP transport. rdiagd serve always serves over
// stdio; Transport is only reported in the startup log.
type ServerConfig struct {
	// ListenAddr is validated as non-empty when Transport is "http"; it is
	// not otherwise used.
	ListenAddr string `mapstructure:"listen_addr"`
	// Transport names the transport, "stdio" (default) or "http".
	Transport string `mapstructure:"transport"`
}

// ProjectConfig names the directory the host adapter loads packages from
// and the analyzer preset every resolved project uses.
type ProjectConfig struct {
	Root           string `mapstructure:"root"`
	AnalyzerPreset string `mapstructure:"analyzer_preset"`
}

// LoggingConfig controls the process-wide logger.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	// Format is "json" (production) or "console" (development).
	Format string `mapstructure:"format"`
}

// Load reads configuration from the environment (prefixed RDIAGD_), the
// config file (configPath if non-empty, else rdiagd.yaml in . or
// /etc/rdiagd), and defaults, in that order of decreasing precedence.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("rdiagd")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/rdiagd")
	}

	v.SetEnvPrefix("RDIAGD")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config: invalid configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen_addr", defaultListenAddr)
	v.SetDefault("server.transport", "stdio")
	v.SetDefault("project.analyzer_preset", defaultAnalyzerPreset)
	v.SetDefault("logging.level", defaultLogLevel)
	v.SetDefault("logging.format", defaultLogFormat)
}

func validate(cfg *Config) error {
	if cfg.Server.Transport == "http" && cfg.Server.ListenAddr == "" {
		return ErrEmptyListenAddr
	}
	if cfg.Project.AnalyzerPreset == "" {
		return ErrInvalidAnalyzerList
	}
	return nil
}
