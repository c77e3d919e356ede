// Package config loads the agent configuration. Values are layered:
// built-in defaults, then an optional YAML file, then LOCALAGENT_*
// environment variables. Command-line flags are applied last by the CLI.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"localagent/pkg/capability"
)

const (
	// DefaultMailbox is the mailbox file name used by request producers.
	DefaultMailbox = "gpt_command.json"
	// DefaultLogFile is the log file written next to the mailbox.
	DefaultLogFile = "agent.log"
	// DefaultPollInterval is the time between mailbox polls.
	DefaultPollInterval = time.Second
)

// Config is the complete agent configuration.
type Config struct {
	Mailbox      string        `yaml:"mailbox" env:"LOCALAGENT_MAILBOX"`
	PollInterval time.Duration `yaml:"poll_interval" env:"LOCALAGENT_POLL_INTERVAL"`

	Log          LogConfig                  `yaml:"log"`
	Tiers        map[string]capability.Tier `yaml:"tiers"`
	Security     SecurityConfig             `yaml:"security"`
	Capabilities CapabilitiesConfig         `yaml:"capabilities"`
	SQLite       SQLiteConfig               `yaml:"sqlite"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level   string `yaml:"level" env:"LOCALAGENT_LOG_LEVEL"`
	File    string `yaml:"file" env:"LOCALAGENT_LOG_FILE"`
	Journal bool   `yaml:"journal" env:"LOCALAGENT_LOG_JOURNAL"`
}

// SecurityConfig holds the layered policies applied on top of tiers.
type SecurityConfig struct {
	// ProtectedPaths are roots that medium and higher tier actions may not touch.
	ProtectedPaths []string `yaml:"protected_paths" env:"LOCALAGENT_PROTECTED_PATHS" envSeparator:":"`
	// ProtectedProcesses are process names kill_process_by_name refuses to signal.
	ProtectedProcesses []string `yaml:"protected_processes"`
}

// CapabilitiesConfig selects which built-in capabilities are registered.
type CapabilitiesConfig struct {
	Disabled []string `yaml:"disabled" env:"LOCALAGENT_DISABLED" envSeparator:","`
}

// SQLiteConfig configures the database capabilities.
type SQLiteConfig struct {
	Path string `yaml:"path" env:"LOCALAGENT_SQLITE_PATH"`
}

// DefaultTiers is the built-in tier table. Tier assignment is
// configuration data: any entry may be overridden from the YAML file.
func DefaultTiers() map[string]capability.Tier {
	return map[string]capability.Tier{
		"message":              capability.TierSafe,
		"system_check":         capability.TierSafe,
		"list_dir":             capability.TierSafe,
		"read_file":            capability.TierSafe,
		"list_processes":       capability.TierSafe,
		"wait":                 capability.TierSafe,
		"hash_file":            capability.TierSafe,
		"git_status":           capability.TierSafe,
		"extract_html":         capability.TierSafe,
		"extract_xml":          capability.TierSafe,
		"extract_json":         capability.TierSafe,
		"extract_regex":        capability.TierSafe,
		"create_file":          capability.TierMedium,
		"create_folder":        capability.TierMedium,
		"write_file":           capability.TierMedium,
		"append_file":          capability.TierMedium,
		"copy_file":            capability.TierMedium,
		"rename_file":          capability.TierMedium,
		"open_app":             capability.TierMedium,
		"compress_file":        capability.TierMedium,
		"decompress_file":      capability.TierMedium,
		"encrypt_file":         capability.TierMedium,
		"decrypt_file":         capability.TierMedium,
		"sqlite_query":         capability.TierMedium,
		"move_file":            capability.TierDangerous,
		"delete_file":          capability.TierDangerous,
		"start_process":        capability.TierDangerous,
		"kill_process_by_name": capability.TierDangerous,
		"git_commit":           capability.TierDangerous,
		"run_script":           capability.TierCritical,
		"sqlite_exec":          capability.TierCritical,
	}
}

// DefaultProtectedProcesses are never signalled by kill_process_by_name.
func DefaultProtectedProcesses() []string {
	return []string{
		"csrss.exe", "wininit.exe", "winlogon.exe", "services.exe",
		"smss.exe", "lsass.exe", "svchost.exe", "system",
		"init", "systemd", "kthreadd", "sshd", "launchd",
	}
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Mailbox:      DefaultMailbox,
		PollInterval: DefaultPollInterval,
		Log: LogConfig{
			Level: "info",
			File:  DefaultLogFile,
		},
		Tiers: DefaultTiers(),
		Security: SecurityConfig{
			ProtectedProcesses: DefaultProtectedProcesses(),
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path (if
// path is non-empty) and the environment, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFile merges the YAML document at path over cfg. Tier entries in
// the file are added to, not substituted for, the default table.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file '%s': %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return enhanceYamlError(path, err)
	}
	return nil
}

// enhanceYamlError prefixes a YAML error with the config file name and,
// when the decoder reported them, the offending field errors one per line.
func enhanceYamlError(path string, err error) error {
	var typeErr *yaml.TypeError
	if errors.As(err, &typeErr) {
		return fmt.Errorf("invalid config '%s':\n  %s", filepath.Base(path), strings.Join(typeErr.Errors, "\n  "))
	}
	return fmt.Errorf("YAML parsing error in '%s': %w", filepath.Base(path), err)
}

// Validate checks the configuration for values the agent cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Mailbox) == "" {
		return fmt.Errorf("mailbox path is required")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %s", c.PollInterval)
	}
	for name, tier := range c.Tiers {
		if tier < capability.TierSafe || tier > capability.TierCritical {
			return fmt.Errorf("tier for '%s' is out of range: %d", name, int(tier))
		}
	}
	return nil
}
