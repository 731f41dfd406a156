// Package config loads qworker's configuration, layering an optional
// YAML file under environment-variable overrides, mirroring the
// teacher's file-plus-flags pattern (cmd/warren's apply command reads
// YAML manifests with gopkg.in/yaml.v3; cobra flags apply on top in
// cmd/qworker at the highest precedence).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config covers every row of the worker configuration table: bind
// address/port, thread-pool and queue sizing, the static worker lists,
// the registry URL, the discovery port, and the file-descriptor floor.
type Config struct {
	Host                string   `yaml:"host"`
	Port                int      `yaml:"port"`
	DefaultQty          int      `yaml:"default_qty"`
	QueueSize           int      `yaml:"queue_size"`
	Workers             []string `yaml:"workers"`
	HighPriorityWorkers []string `yaml:"high_priority_workers"`
	RegistryURL         string   `yaml:"registry_url"`
	RegistryList        string   `yaml:"registry_list"`
	DiscoveryPort       int      `yaml:"discovery_port"`
	NoFiles             uint64   `yaml:"no_files"`
}

// Defaults returns a Config populated with the numeric defaults
// spec.md's execution-engine section specifies: queue capacity 4,
// consumer count equal to queue capacity, immediate-mode pool size 4.
func Defaults() *Config {
	return &Config{
		Host:          "0.0.0.0",
		Port:          8080,
		DefaultQty:    4,
		QueueSize:     4,
		RegistryURL:   "http://127.0.0.1:9400",
		DiscoveryPort: 9999,
		NoFiles:       4096,
	}
}

// Load builds a Config starting from Defaults, overlaying an optional
// YAML file at path (skipped silently if path is empty or the file does
// not exist — a missing config file is not an error, while any other read
// failure or a parse failure is), then applying environment-variable
// overrides. CLI flags, the highest-precedence layer, are applied by the
// caller on the returned Config.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("config: read %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("WORKER_DEFAULT_HOST"); v != "" {
		cfg.Host = v
	}
	if v := os.Getenv("WORKER_DEFAULT_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Port = n
		}
	}
	if v := os.Getenv("WORKER_DEFAULT_QTY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.DefaultQty = n
		}
	}
	if v := os.Getenv("WORKER_QUEUE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.QueueSize = n
		}
	}
	if v := os.Getenv("WORKER_LIST"); v != "" {
		cfg.Workers = splitList(v)
	}
	if v := os.Getenv("WORKER_HIGH_LIST"); v != "" {
		cfg.HighPriorityWorkers = splitList(v)
	}
	if v := os.Getenv("QW_REGISTRY_URL"); v != "" {
		cfg.RegistryURL = v
	}
	if v := os.Getenv("WORKER_DISCOVERY_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.DiscoveryPort = n
		}
	}
	if v := os.Getenv("NOFILES"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.NoFiles = n
		}
	}
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Addr returns the "host:port" bind address for this config.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
