package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/taskdeck/eventstream"
)

// ============================================================================
// Config types
// ============================================================================

// Config represents the CLI configuration stored in ~/.eventstream/config.toml.
type Config struct {
	Default ConfigDefault `toml:"default"`
	Backoff ConfigBackoff `toml:"backoff"`
}

// ConfigDefault holds the server settings.
type ConfigDefault struct {
	BaseURL   string `toml:"base_url"`
	Token     string `toml:"token"`
	Transport string `toml:"transport"`
}

// ConfigBackoff holds the reconnect policy. Zero fields use the library defaults.
type ConfigBackoff struct {
	InitialMS   int     `toml:"initial_ms"`
	MaxMS       int     `toml:"max_ms"`
	Multiplier  float64 `toml:"multiplier"`
	MaxAttempts int     `toml:"max_attempts"`
}

// Policy converts the section to a backoff policy.
func (b ConfigBackoff) Policy() eventstream.BackoffPolicy {
	p := eventstream.DefaultPolicy()
	if b.InitialMS > 0 {
		p.Initial = eventstream.DurationMillis(b.InitialMS)
	}
	if b.MaxMS > 0 {
		p.Max = eventstream.DurationMillis(b.MaxMS)
	}
	if b.Multiplier > 0 {
		p.Multiplier = b.Multiplier
	}
	if b.MaxAttempts > 0 {
		p.MaxAttempts = b.MaxAttempts
	}
	return p
}

// ============================================================================
// Config helpers
// ============================================================================

// configDir returns the path to ~/.eventstream, creating it if needed.
func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".eventstream")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("cannot create config directory: %w", err)
	}
	return dir, nil
}

// configPath returns the full path to the config file.
func configPath() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// loadConfig reads and parses the config file.
// If the file does not exist, it returns a zero-value Config.
func loadConfig() (*Config, error) {
	path, err := configPath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("cannot read config: %w", err)
	}
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config: %w", err)
	}
	return &cfg, nil
}

// saveConfig writes the config struct back to disk as TOML.
func saveConfig(cfg *Config) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("cannot write config: %w", err)
	}
	return nil
}

// setConfigValue sets a config field using dot notation (e.g. "default.base_url").
func setConfigValue(cfg *Config, key, value string) error {
	parts := strings.SplitN(key, ".", 2)
	if len(parts) != 2 {
		return fmt.Errorf("key must use dot notation: section.field (e.g. default.base_url)")
	}
	section, field := parts[0], parts[1]

	switch section {
	case "default":
		switch field {
		case "base_url":
			cfg.Default.BaseURL = value
		case "token":
			cfg.Default.Token = value
		case "transport":
			if _, err := selectTransport(value); err != nil {
				return err
			}
			cfg.Default.Transport = value
		default:
			return fmt.Errorf("unknown field %q in section [default]", field)
		}
	case "backoff":
		switch field {
		case "initial_ms", "max_ms", "max_attempts":
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 {
				return fmt.Errorf("%s must be a non-negative integer, got %q", key, value)
			}
			switch field {
			case "initial_ms":
				cfg.Backoff.InitialMS = n
			case "max_ms":
				cfg.Backoff.MaxMS = n
			default:
				cfg.Backoff.MaxAttempts = n
			}
		case "multiplier":
			f, err := strconv.ParseFloat(value, 64)
			if err != nil || f <= 1 {
				return fmt.Errorf("%s must be a number greater than 1, got %q", key, value)
			}
			cfg.Backoff.Multiplier = f
		default:
			return fmt.Errorf("unknown field %q in section [backoff]", field)
		}
	default:
		return fmt.Errorf("unknown config section %q (valid: default, backoff)", section)
	}
	return nil
}

// selectTransport maps a transport name to its implementation.
func selectTransport(name string) (eventstream.Transport, error) {
	switch strings.ToLower(name) {
	case "", "sse":
		return eventstream.SSETransport{}, nil
	case "ws", "websocket":
		return eventstream.WebSocketTransport{}, nil
	default:
		return nil, fmt.Errorf("unknown transport %q (valid: sse, ws)", name)
	}
}

// ============================================================================
// Root command
// ============================================================================

var rootCmd = &cobra.Command{
	Use:   "eventstream",
	Short: "Resilient event stream client",
	Long:  "Command-line client for server-push event streams.\nWatch streams with automatic reconnect and replay, and check their health.",
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
