// Package config loads the YAML configuration file selected by the
// RUN_MODE environment variable (spec.md §6), mirroring the
// development/production split many twelve-factor Go services use.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// defaultRunMode is used when RUN_MODE is unset.
const defaultRunMode = "development"

// Config is the top-level configuration document. Fields match spec.md
// §6 exactly: logging.level, cipher.aes_key, cipher.certificates_path.
type Config struct {
	Logging LoggingConfig `yaml:"logging"`
	Cipher  CipherConfig  `yaml:"cipher"`
	Server  ServerConfig  `yaml:"server"`
}

// LoggingConfig holds the configured log level. Load requires it to be
// set, but neither binary reads it: both set pkg/log's level from their
// --log-level flag.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// CipherConfig supplies the CA's sealing key and certificate directory.
type CipherConfig struct {
	AESKey           string `yaml:"aes_key"`
	CertificatesPath string `yaml:"certificates_path"`
}

// ServerConfig supplies the listening addresses (spec.md §6): the
// database server defaults to 127.0.0.1:5545, the CA service to
// 0.0.0.0:3000.
type ServerConfig struct {
	ListenAddr        string `yaml:"listen_addr"`
	CAListenAddr      string `yaml:"ca_listen_addr"`
	MetricsListenAddr string `yaml:"metrics_listen_addr"`
}

// RunMode returns the RUN_MODE environment variable, or "development"
// when unset.
func RunMode() string {
	if mode := os.Getenv("RUN_MODE"); mode != "" {
		return mode
	}
	return defaultRunMode
}

// Load reads config/{RUN_MODE}.yaml relative to dir (the process's
// working directory in normal operation) and parses it into a Config.
func Load(dir string) (*Config, error) {
	mode := RunMode()
	path := filepath.Join(dir, "config", mode+".yaml")

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}

	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = "127.0.0.1:5545"
	}
	if cfg.Server.CAListenAddr == "" {
		cfg.Server.CAListenAddr = "0.0.0.0:3000"
	}
	if cfg.Server.MetricsListenAddr == "" {
		cfg.Server.MetricsListenAddr = "127.0.0.1:9090"
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level is required")
	}
	if len(c.Cipher.AESKey) != 32 {
		return fmt.Errorf("cipher.aes_key must be 32 bytes, got %d", len(c.Cipher.AESKey))
	}
	if c.Cipher.CertificatesPath == "" {
		return fmt.Errorf("cipher.certificates_path is required")
	}
	return nil
}
