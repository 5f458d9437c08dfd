package core

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Host is a robot computer reachable over SSH for deployments.
type Host struct {
	Name    string `yaml:"name" toml:"name"`
	IP      string `yaml:"ip" toml:"ip"`
	User    string `yaml:"user" toml:"user"`
	Port    int    `yaml:"port" toml:"port"`
	KeyPath string `yaml:"key_path" toml:"key_path"`
	Dir     string `yaml:"dir" toml:"dir"`
	Command string `yaml:"command" toml:"command"`
}

type Config struct {
	DataDir string `yaml:"data_dir" toml:"data_dir"`
	Share   struct {
		Prefixes []string `yaml:"prefixes" toml:"prefixes"`
	} `yaml:"share" toml:"share"`
	Launch struct {
		NRobots   string            `yaml:"n_robots" toml:"n_robots"`
		Arguments map[string]string `yaml:"arguments" toml:"arguments"`
	} `yaml:"launch" toml:"launch"`
	Runtime struct {
		Ros2Bin      string `yaml:"ros2_bin" toml:"ros2_bin"`
		BatchSize    int    `yaml:"batch_size" toml:"batch_size"`
		BatchDelayMS int    `yaml:"batch_delay_ms" toml:"batch_delay_ms"`
		GraceSeconds int    `yaml:"grace_seconds" toml:"grace_seconds"`
		EnvFile      string `yaml:"env_file" toml:"env_file"`
		RunDir       string `yaml:"run_dir" toml:"run_dir"`
	} `yaml:"runtime" toml:"runtime"`
	Remote struct {
		Hosts []Host `yaml:"hosts" toml:"hosts"`
	} `yaml:"remote" toml:"remote"`
	SSH struct {
		KnownHosts     string `yaml:"known_hosts" toml:"known_hosts"`
		TimeoutSeconds int    `yaml:"timeout_seconds" toml:"timeout_seconds"`
		Retries        int    `yaml:"retries" toml:"retries"`
	} `yaml:"ssh" toml:"ssh"`
	Telemetry struct {
		Enabled bool `yaml:"enabled" toml:"enabled"`
	} `yaml:"telemetry" toml:"telemetry"`
}

// configBase returns $XDG_CONFIG_HOME/swarmlaunch or ~/.config/swarmlaunch.
func configBase() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, _ := os.UserHomeDir()
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "swarmlaunch")
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	var cfg Config
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.DataDir == "" {
		c.DataDir = filepath.Join(configBase(), "data")
	}
	if len(c.Share.Prefixes) == 0 {
		c.Share.Prefixes = filepath.SplitList(os.Getenv("AMENT_PREFIX_PATH"))
	}
	if c.Runtime.Ros2Bin == "" {
		c.Runtime.Ros2Bin = "ros2"
	}
	if c.Runtime.GraceSeconds <= 0 {
		c.Runtime.GraceSeconds = 5
	}
	if c.Runtime.RunDir == "" {
		c.Runtime.RunDir = filepath.Join(c.DataDir, "runs")
	}
	if c.SSH.KnownHosts == "" {
		c.SSH.KnownHosts = filepath.Join(configBase(), "known_hosts")
	}
	if c.SSH.TimeoutSeconds <= 0 {
		c.SSH.TimeoutSeconds = 15
	}
	for i := range c.Remote.Hosts {
		if c.Remote.Hosts[i].Port == 0 {
			c.Remote.Hosts[i].Port = 22
		}
		if c.Remote.Hosts[i].Dir == "" {
			c.Remote.Hosts[i].Dir = "swarmlaunch"
		}
	}
}

// Host looks up a configured remote host by name.
func (c *Config) Host(name string) (Host, error) {
	for _, h := range c.Remote.Hosts {
		if h.Name == name {
			return h, nil
		}
	}
	return Host{}, fmt.Errorf("host not configured: %s", name)
}

// DBPath is the launch history database inside the data dir.
func (c *Config) DBPath() string { return filepath.Join(c.DataDir, "history.db") }

// LoadConfig reads configuration from a path. If path is empty, it resolves
// $XDG_CONFIG_HOME/swarmlaunch/config.yaml or ~/.config/swarmlaunch/config.yaml
// and falls back to defaults when that file does not exist. Files ending in
// .toml are decoded as TOML.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	explicit := path != ""
	if !explicit {
		path = filepath.Join(configBase(), "config.yaml")
	}
	f, err := os.Open(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(string(content), &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	} else if err := yaml.Unmarshal(content, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}
