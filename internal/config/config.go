package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// SelectorConfig holds the structural selectors of the host chat page.
// These are a contract with the host application, not with this program;
// every lookup through them fails soft when the host markup changes.
type SelectorConfig struct {
	ListRoot  string `json:"list_root"`  // conversation list container
	Row       string `json:"row"`        // one conversation row
	RowName   string `json:"row_name"`   // display-name element inside a row
	RowBadge  string `json:"row_badge"`  // unread badge element inside a row
	Header    string `json:"header"`     // header container, injection anchor
	FolderBar string `json:"folder_bar"` // marker attribute of the injected bar
}

// TimingConfig holds the delays and thresholds of the reconciliation loop.
// All values are strings in time.Duration syntax so they read naturally in
// the JSON file ("300ms", "30s").
type TimingConfig struct {
	InjectRetryInterval string `json:"inject_retry_interval"`
	InjectMaxAttempts   int    `json:"inject_max_attempts"`
	ReconcileDebounce   string `json:"reconcile_debounce"`
	BadgeDebounce       string `json:"badge_debounce"`
	PeriodicRefresh     string `json:"periodic_refresh"`
	ObserverWarmup      string `json:"observer_warmup"`
	IdleThreshold       string `json:"idle_threshold"`
	OrphanCleanupDelay  string `json:"orphan_cleanup_delay"`
}

// Config holds all configuration for the chatfolders companion process
type Config struct {
	// Listen address for the browser agent WebSocket endpoint
	ListenAddr string `json:"listen_addr"`

	// Path to the SQLite folder store
	StorePath string `json:"store_path"`

	// Logging
	LogFile string `json:"log_file"`

	Selectors SelectorConfig `json:"selectors"`
	Timing    TimingConfig   `json:"timing"`
}

// DefaultConfig returns a configuration with sensible defaults for the
// supported host application.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr: "127.0.0.1:8077",
		StorePath:  defaultStorePath(),
		Selectors: SelectorConfig{
			ListRoot:  "#cnvs_root .ws-conversations-list--root",
			Row:       ".ws-conversations-list-item",
			RowName:   ".ws-conversations-list-item--info--name",
			RowBadge:  ".ws-conversations-list-item--badge",
			Header:    ".ws-conversations-header",
			FolderBar: "data-chat-folders",
		},
		Timing: TimingConfig{
			InjectRetryInterval: "200ms",
			InjectMaxAttempts:   5,
			ReconcileDebounce:   "300ms",
			BadgeDebounce:       "30ms",
			PeriodicRefresh:     "3s",
			ObserverWarmup:      "1s",
			IdleThreshold:       "30s",
			OrphanCleanupDelay:  "2s",
		},
	}
}

// LoadConfig loads configuration from a file, falling back to defaults for
// anything the file does not set.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultConfigPath returns the default configuration file path
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "chatfolders", "config.json")
}

func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "chatfolders.db"
	}
	return filepath.Join(home, ".config", "chatfolders", "folders.db")
}

// SaveConfig writes the configuration to a file
func (c *Config) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.Selectors.ListRoot) == "" ||
		strings.TrimSpace(c.Selectors.Row) == "" ||
		strings.TrimSpace(c.Selectors.Header) == "" {
		return fmt.Errorf("selectors list_root, row and header cannot be empty")
	}
	if c.Timing.InjectMaxAttempts <= 0 {
		return fmt.Errorf("inject_max_attempts must be positive")
	}
	for name, v := range map[string]string{
		"inject_retry_interval": c.Timing.InjectRetryInterval,
		"reconcile_debounce":    c.Timing.ReconcileDebounce,
		"badge_debounce":        c.Timing.BadgeDebounce,
		"periodic_refresh":      c.Timing.PeriodicRefresh,
		"observer_warmup":       c.Timing.ObserverWarmup,
		"idle_threshold":        c.Timing.IdleThreshold,
		"orphan_cleanup_delay":  c.Timing.OrphanCleanupDelay,
	} {
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}
	return nil
}

// Duration parses a TimingConfig field, falling back to def when the value
// is empty or malformed. Config validation already rejects malformed files;
// the fallback covers zero-value Config structs used in tests.
func Duration(v string, def time.Duration) time.Duration {
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
