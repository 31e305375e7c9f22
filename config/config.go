// Package config handles configuration parsing for shellutil.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath returns the default config file path:
// $XDG_CONFIG_HOME/shellutil/config.yaml or ~/.config/shellutil/config.yaml
func DefaultConfigPath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "shellutil", "config.yaml")
}

// Config represents the top-level configuration.
type Config struct {
	Servers  []ServerConfig `yaml:"servers"`
	Shell    ShellConfig    `yaml:"shell"`
	Transfer TransferConfig `yaml:"transfer"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig defines an SSH server connection.
type ServerConfig struct {
	Name       string     `yaml:"name"`
	Host       string     `yaml:"host"`
	Port       int        `yaml:"port"`
	User       string     `yaml:"user"`
	Auth       AuthConfig `yaml:"auth"`
	UseKeyring bool       `yaml:"use_keyring"` // look up credentials in the OS keyring
}

// AuthConfig defines authentication settings for one server.
type AuthConfig struct {
	Type          string `yaml:"type"`           // "key", "password" or "agent"
	KeyPath       string `yaml:"key_path"`       // path to private key file
	PassphraseEnv string `yaml:"passphrase_env"` // env var containing key passphrase
	PasswordEnv   string `yaml:"password_env"`   // env var containing SSH password
}

// Passphrase resolves the key passphrase from the environment.
func (a AuthConfig) Passphrase() string {
	if a.PassphraseEnv == "" {
		return ""
	}
	return os.Getenv(a.PassphraseEnv)
}

// Password resolves the SSH password from the environment.
func (a AuthConfig) Password() string {
	if a.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(a.PasswordEnv)
}

// ShellConfig defines interactive session settings.
type ShellConfig struct {
	Term   string `yaml:"term"`   // terminal type for pty sessions
	Rows   int    `yaml:"rows"`   // pty rows
	Cols   int    `yaml:"cols"`   // pty columns
	Prompt string `yaml:"prompt"` // custom prompt regex, empty for the default
}

// TransferConfig defines rsync transfer defaults.
type TransferConfig struct {
	Flags      string   `yaml:"flags"`      // rsync short flags
	Sudo       bool     `yaml:"sudo"`       // run remote rsync under sudo
	Delete     bool     `yaml:"delete"`     // remove destination files missing from source
	Exclusions []string `yaml:"exclusions"` // default exclusion patterns
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level    string `yaml:"level"`    // "debug", "info", "warn", "error"
	Sanitize bool   `yaml:"sanitize"` // sanitize sensitive data from logs
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Shell: ShellConfig{
			Term: "xterm",
			Rows: 25,
			Cols: 80,
		},
		Transfer: TransferConfig{
			Flags: "aczq",
			Sudo:  true,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Sanitize: true,
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	return cfg, nil
}

// Validate normalizes nonsensical values.
func (c *Config) Validate() error {
	if c.Shell.Rows <= 0 {
		c.Shell.Rows = 25
	}
	if c.Shell.Cols <= 0 {
		c.Shell.Cols = 80
	}
	for i := range c.Servers {
		if c.Servers[i].Port == 0 {
			c.Servers[i].Port = 22
		}
		if c.Servers[i].Name == "" {
			return fmt.Errorf("server %d: name is required", i)
		}
	}
	return nil
}

// Server looks up a server by name.
func (c *Config) Server(name string) (*ServerConfig, error) {
	for i := range c.Servers {
		if c.Servers[i].Name == name {
			return &c.Servers[i], nil
		}
	}
	return nil, fmt.Errorf("server %q not configured", name)
}

// AddServer adds a server, rejecting duplicate names.
func (c *Config) AddServer(server ServerConfig) error {
	for _, s := range c.Servers {
		if s.Name == server.Name {
			return fmt.Errorf("server %q already exists", server.Name)
		}
	}
	c.Servers = append(c.Servers, server)
	return nil
}

// Save writes the configuration to a YAML file.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
