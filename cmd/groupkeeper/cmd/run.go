package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/groupkeeper/groupkeeper/internal/core/console"
	"github.com/groupkeeper/groupkeeper/internal/core/db"
	"github.com/groupkeeper/groupkeeper/internal/engine"
	"github.com/groupkeeper/groupkeeper/internal/sched"
	"github.com/groupkeeper/groupkeeper/internal/types"
)

const Version = "0.1.0"

var runAdmins []int64

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the rule engine against JSON events from stdin",
	Long: `Reads one JSON event per line from stdin, runs each through the
group's rules, and prints every resulting moderation call to stdout as a
JSON line. Schedule triggers fire in the background while the host runs.`,
	RunE: runEngine,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().Int64SliceVar(&runAdmins, "admin", nil, "user id treated as chat administrator (repeatable)")
}

// engineStore adapts the concrete store to the engine's session interface.
type engineStore struct {
	store *db.Store
}

func (s engineStore) Begin(ctx context.Context) (engine.Session, error) {
	return s.store.Begin(ctx)
}

func runEngine(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	if err := db.MigrateUp(database); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	store, err := db.NewStore(database)
	if err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}

	backend := console.New(os.Stdout, runAdmins)

	engineOpts := []engine.Option{engine.WithLogger(logger)}
	if cfg.MetricsAddr != "" {
		registry := prometheus.NewRegistry()
		engineOpts = append(engineOpts, engine.WithMetrics(registry))
		go serveMetrics(cfg.MetricsAddr, registry, logger)
	}
	eng := engine.New(engineStore{store: store}, backend, engineOpts...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("shutting down")
		cancel()
	}()

	if cfg.SchedEnabled {
		scheduler := sched.New(store, eng, cfg.SchedInterval, logger)
		go func() {
			if err := scheduler.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("scheduler stopped", "error", err)
			}
		}()
	}

	logger.Info("groupkeeper started", "version", Version, "database", cfg.DatabaseURL)

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if ctx.Err() != nil {
			break
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var ev types.Event
		if err := json.Unmarshal(line, &ev); err != nil {
			logger.Warn("skipping malformed event", "error", err)
			continue
		}
		if ev.GroupID == 0 {
			if chat := ev.EffectiveChat(); chat != nil {
				ev.GroupID = chat.ID
			}
		}

		evCtx, evCancel := context.WithTimeout(ctx, cfg.EventTimeout)
		if err := eng.ProcessEvent(evCtx, &ev); err != nil {
			logger.Error("event processing failed", "event_id", ev.ID, "error", err)
		}
		evCancel()
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("stdin read failed: %w", err)
	}
	return nil
}

func serveMetrics(addr string, registry *prometheus.Registry, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics server stopped", "error", err)
	}
}
