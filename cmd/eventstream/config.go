package main

import (
	"fmt"
	"io"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/taskdeck/eventstream"
)

func init() {
	configShowCmd.Flags().Bool("reveal", false, "print the token unmasked")
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage eventstream configuration",
	Long:  "View or modify the settings 'eventstream watch' reads from ~/.eventstream/config.toml.",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the configuration and the backoff policy it yields",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := configPath()
		if err != nil {
			return err
		}
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		reveal, _ := cmd.Flags().GetBool("reveal")
		return renderConfig(cmd.OutOrStdout(), path, cfg, reveal)
	},
}

// renderConfig writes cfg as TOML with the token masked unless reveal is set,
// followed by the effective reconnect policy as comments.
func renderConfig(w io.Writer, path string, cfg *Config, reveal bool) error {
	shown := *cfg
	if !reveal && shown.Default.Token != "" {
		shown.Default.Token = maskKey(shown.Default.Token)
	}
	data, err := toml.Marshal(&shown)
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	fmt.Fprintf(w, "# %s\n", path)
	if _, err := w.Write(data); err != nil {
		return err
	}

	fmt.Fprintf(w, "\n# effective backoff: %s\n", describePolicy(cfg.Backoff.Policy()))
	return nil
}

func describePolicy(p eventstream.BackoffPolicy) string {
	attempts := "unlimited"
	if !p.Unlimited() {
		attempts = fmt.Sprint(p.MaxAttempts)
	}
	return fmt.Sprintf("%s initial, %s max, x%g, %s attempts", p.Initial, p.Max, p.Multiplier, attempts)
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: "Set a configuration value using dot notation.\n" +
		"Keys: default.base_url, default.token, default.transport,\n" +
		"      backoff.initial_ms, backoff.max_ms, backoff.multiplier, backoff.max_attempts\n" +
		"Example: eventstream config set backoff.max_attempts 10",
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := setConfigValue(cfg, key, value); err != nil {
			return err
		}
		if err := saveConfig(cfg); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}

		if key == "default.token" {
			value = maskKey(value)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", key, value)
		return nil
	},
}
