package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/taskdeck/eventstream"
)

const defaultHealthAddr = "127.0.0.1:9470"

func init() {
	f := watchCmd.Flags()
	f.String("base-url", "", "server base URL (overrides default.base_url)")
	f.String("token", "", "bearer token (overrides default.token)")
	f.String("transport", "", "transport: sse or ws (overrides default.transport)")
	f.String("health-addr", "", "serve stream health on this address, e.g. "+defaultHealthAddr)
	f.Int("initial-backoff-ms", 0, "first retry delay in milliseconds")
	f.Int("max-backoff-ms", 0, "retry delay cap in milliseconds")
	f.Float64("multiplier", 0, "retry delay growth factor")
	f.Int("max-attempts", 0, "retries before giving up, 0 for unlimited")
	f.BoolP("quiet", "q", false, "only log warnings and errors")
	rootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch <path>...",
	Short: "Watch one or more streams and print messages as JSON lines",
	Long: "Open one resilient connection per path, reconnecting with exponential backoff and\n" +
		"resuming after the last delivered event id. Messages go to stdout, one JSON object per line;\n" +
		"state changes are logged to stderr.",
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		applyWatchFlags(cmd, cfg)
		if cfg.Default.BaseURL == "" {
			return errors.New("no base URL. Run 'eventstream init <base-url>' or pass --base-url")
		}

		quiet, _ := cmd.Flags().GetBool("quiet")
		logger, err := newLogger(quiet)
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		defer logger.Sync() //nolint:errcheck

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		addr, _ := cmd.Flags().GetString("health-addr")
		return runWatch(ctx, watchConfig{
			Config:     cfg,
			Paths:      args,
			HealthAddr: addr,
			Out:        cmd.OutOrStdout(),
			Logger:     logger,
		})
	},
}

// applyWatchFlags overlays explicitly set flags on the file configuration.
func applyWatchFlags(cmd *cobra.Command, cfg *Config) {
	f := cmd.Flags()
	if f.Changed("base-url") {
		cfg.Default.BaseURL, _ = f.GetString("base-url")
	}
	if f.Changed("token") {
		cfg.Default.Token, _ = f.GetString("token")
	}
	if f.Changed("transport") {
		cfg.Default.Transport, _ = f.GetString("transport")
	}
	if f.Changed("initial-backoff-ms") {
		cfg.Backoff.InitialMS, _ = f.GetInt("initial-backoff-ms")
	}
	if f.Changed("max-backoff-ms") {
		cfg.Backoff.MaxMS, _ = f.GetInt("max-backoff-ms")
	}
	if f.Changed("multiplier") {
		cfg.Backoff.Multiplier, _ = f.GetFloat64("multiplier")
	}
	if f.Changed("max-attempts") {
		cfg.Backoff.MaxAttempts, _ = f.GetInt("max-attempts")
	}
}

type watchConfig struct {
	*Config
	Paths      []string
	HealthAddr string
	Out        io.Writer
	Logger     *zap.Logger
	// Registry defaults to a fresh registry.
	Registry *eventstream.Registry
}

// watchLine is one line of the JSON output.
type watchLine struct {
	Stream string `json:"stream"`
	ID     string `json:"id,omitempty"`
	Event  string `json:"event,omitempty"`
	Data   any    `json:"data"`
}

// runWatch keeps a connection open per path until ctx is canceled.
func runWatch(ctx context.Context, wc watchConfig) error {
	transport, err := selectTransport(wc.Default.Transport)
	if err != nil {
		return err
	}
	reg := wc.Registry
	if reg == nil {
		reg = eventstream.NewRegistry()
	}
	logger := wc.Logger

	client, err := eventstream.NewClient(wc.Default.BaseURL,
		eventstream.WithToken(wc.Default.Token),
		eventstream.WithTransport(transport),
		eventstream.WithRegistry(reg),
		eventstream.WithLogger(logger),
		eventstream.WithBackoff(wc.Backoff.Policy()),
	)
	if err != nil {
		return err
	}

	var outMu sync.Mutex
	enc := json.NewEncoder(wc.Out)

	var lastOverall eventstream.ConnectionState
	cancelSub := reg.Subscribe(func(s eventstream.Summary) {
		outMu.Lock()
		changed := s.State != lastOverall
		lastOverall = s.State
		outMu.Unlock()
		if changed {
			logger.Info("Overall stream health",
				zap.String("state", string(s.State)),
				zap.Int("connected", s.Connected),
				zap.Int("total", s.Total))
		}
	})
	defer cancelSub()

	conns := make([]*eventstream.Connection, 0, len(wc.Paths))
	for _, path := range wc.Paths {
		log := logger.With(zap.String("stream", path))
		conn := client.Stream(path, true, &eventstream.Options{
			StreamID:   uuid.NewString(),
			StreamName: path,
			OnMessage: func(m eventstream.Message) {
				outMu.Lock()
				defer outMu.Unlock()
				if err := enc.Encode(watchLine{Stream: path, ID: m.ID, Event: m.Event, Data: m.Data}); err != nil {
					log.Warn("Failed to write message", zap.Error(err))
				}
			},
			OnStateChange: func(s eventstream.ConnectionState) {
				log.Info("Stream state changed", zap.String("state", string(s)))
			},
			OnError: func(msg string) {
				log.Warn("Stream error", zap.String("error", msg))
			},
		})
		conns = append(conns, conn)
	}
	defer func() {
		for _, c := range conns {
			c.Close()
		}
	}()

	var srv *http.Server
	if wc.HealthAddr != "" {
		srv = &http.Server{
			Addr:              wc.HealthAddr,
			Handler:           eventstream.NewHealthHandler(reg),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("Serving stream health", zap.String("addr", wc.HealthAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Health server failed", zap.Error(err))
			}
		}()
	}

	<-ctx.Done()
	logger.Info("Shutting down")

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Health server shutdown", zap.Error(err))
		}
	}
	return nil
}
