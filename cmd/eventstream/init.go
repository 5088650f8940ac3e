package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taskdeck/eventstream"
)

func init() {
	initCmd.Flags().String("token", "", "bearer token sent with every stream request")
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init <base-url>",
	Short: "Store the server URL in ~/.eventstream/config.toml",
	Long:  "Initialize the eventstream CLI by storing the server base URL (and optionally a token) in the local configuration file.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		baseURL := args[0]
		if _, err := eventstream.NewClient(baseURL, eventstream.WithRegistry(eventstream.NewRegistry())); err != nil {
			return err
		}

		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		cfg.Default.BaseURL = baseURL
		if token, _ := cmd.Flags().GetString("token"); token != "" {
			cfg.Default.Token = token
		}
		if cfg.Default.Transport == "" {
			cfg.Default.Transport = "sse"
		}

		if err := saveConfig(cfg); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}

		path, _ := configPath()
		fmt.Fprintf(cmd.OutOrStdout(), "Base URL saved to %s\n", path)
		return nil
	},
}
