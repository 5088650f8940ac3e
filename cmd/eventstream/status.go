package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/taskdeck/eventstream"
)

func init() {
	statusCmd.Flags().String("addr", defaultHealthAddr, "health address of a running 'eventstream watch'")
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show current configuration and stream health",
	Long:  "Display the current configuration and, if a watcher is serving health, the state of every stream it keeps open.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		out := cmd.OutOrStdout()

		fmt.Fprintln(out, "Configuration:")
		fmt.Fprintf(out, "  Base URL:    %s\n", valueOrDefault(cfg.Default.BaseURL, "(not set)"))
		fmt.Fprintf(out, "  Transport:   %s\n", valueOrDefault(cfg.Default.Transport, "sse"))
		if cfg.Default.Token != "" {
			fmt.Fprintf(out, "  Token:       %s\n", maskKey(cfg.Default.Token))
		} else {
			fmt.Fprintln(out, "  Token:       (not set)")
		}
		fmt.Fprintf(out, "  Backoff:     %s\n", describePolicy(cfg.Backoff.Policy()))

		addr, _ := cmd.Flags().GetString("addr")
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Live status:")

		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()

		summary, err := fetchSummary(ctx, "http://"+addr)
		if err != nil {
			fmt.Fprintf(out, "  No watcher reachable at %s: %v\n", addr, err)
			return nil
		}
		printSummary(out, summary)
		return nil
	},
}

// fetchSummary reads the stream table from a watcher's health endpoint.
func fetchSummary(ctx context.Context, baseURL string) (*eventstream.Summary, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/streams", nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	var s eventstream.Summary
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode health: %w", err)
	}
	return &s, nil
}

func printSummary(out io.Writer, s *eventstream.Summary) {
	fmt.Fprintf(out, "  Overall:     %s (%d/%d connected)\n", s.Label, s.Connected, s.Total)
	if s.HasErrors {
		fmt.Fprintf(out, "  First error: %s\n", s.FirstError)
	}
	for _, e := range s.Streams {
		state := "down"
		if e.Connected {
			state = "up"
		}
		line := fmt.Sprintf("  - %-4s %s", state, e.Name)
		if e.Error != "" {
			line += " (" + e.Error + ")"
		}
		fmt.Fprintln(out, line)
	}
}

// maskKey shows only the edges of a credential.
func maskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	if len(key) <= 16 {
		return key[:4] + "..." + key[len(key)-4:]
	}
	return key[:12] + "..." + key[len(key)-4:]
}

func valueOrDefault(val, def string) string {
	if val == "" {
		return def
	}
	return val
}
