package cmd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/thaiproxy/searchproxy/internal/backend"
	"github.com/thaiproxy/searchproxy/internal/cache"
	"github.com/thaiproxy/searchproxy/internal/config"
	"github.com/thaiproxy/searchproxy/internal/dictionary"
	"github.com/thaiproxy/searchproxy/internal/executor"
	"github.com/thaiproxy/searchproxy/internal/httpapi"
	"github.com/thaiproxy/searchproxy/internal/logging"
	"github.com/thaiproxy/searchproxy/internal/mcpsurface"
	"github.com/thaiproxy/searchproxy/internal/metrics"
	"github.com/thaiproxy/searchproxy/internal/proxy"
	"github.com/thaiproxy/searchproxy/internal/query"
	"github.com/thaiproxy/searchproxy/internal/segmenter"
	"github.com/thaiproxy/searchproxy/internal/telemetry"
	"github.com/thaiproxy/searchproxy/internal/tokenizer"

	_ "modernc.org/sqlite"
)

// newServeCmd creates the serve command, which wires every spec §4
// component together and serves the stable v1 HTTP contract (spec §6)
// until interrupted.
func newServeCmd() *cobra.Command {
	var withMCP bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the search proxy HTTP server",
		Long: `serve loads the compound dictionary, builds the tokenizer and query
processor, wires them to a search backend (Meilisearch or an embedded
bleve index), and starts the stable v1 HTTP API with /health, /metrics,
and the search/compounds endpoints (spec §6).

With --mcp (or MCP_ENABLED=true), stdio MCP replaces the HTTP listener
entirely and exposes tokenize and search as tools for AI coding
assistants instead — stdio MCP and HTTP serving are mutually exclusive
process modes, since the HTTP server's own stdout/stderr logging would
otherwise collide with the JSON-RPC stream.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), withMCP)
		},
	}
	cmd.Flags().BoolVar(&withMCP, "mcp", false, "serve an MCP tool surface over stdio instead of HTTP")
	return cmd
}

func runServe(ctx context.Context, withMCP bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	dict := dictionary.New(cfg.Dictionary.Path)
	if err := dict.Load(ctx); err != nil {
		slog.Warn("dictionary_load_failed_starting_degraded", slog.String("error", err.Error()))
	}
	go func() {
		if err := dict.Watch(ctx); err != nil {
			slog.Error("dictionary_watch_stopped", slog.String("error", err.Error()))
		}
	}()

	segments := segmenter.NewRegistry(cfg.Segmenter.Primary, cfg.Segmenter.Fallbacks,
		time.Duration(cfg.Segmenter.TimeoutMS)*time.Millisecond)
	tok := tokenizer.New(dict, segments)

	processor := query.New(tok,
		query.WithMaxVariants(cfg.MaxVariants),
		query.WithTimeout(time.Duration(cfg.Timeouts.QueryProcessMS)*time.Millisecond),
		query.WithMinSplitConfidence(cfg.Dictionary.MinSplitConfidence),
		query.WithWeights(query.Weights{
			Original:      cfg.Weights.Original,
			Tokenised:     cfg.Weights.Tokenised,
			CompoundSplit: cfg.Weights.CompoundSplit,
			FallbackChar:  cfg.Weights.FallbackChar,
		}),
		query.WithComponentsLookup(func(surface string) ([]string, float64, bool) {
			e, ok := dict.Get(surface)
			if !ok {
				return nil, 0, false
			}
			return e.Components, e.Confidence, true
		}),
	)

	be, err := buildBackend(cfg)
	if err != nil {
		return fmt.Errorf("build backend: %w", err)
	}

	exec := executor.New(be,
		executor.WithPoolSize(cfg.Backend.PoolSize),
		executor.WithMaxQueue(cfg.Backend.QueueMax),
		executor.WithSearchTimeout(time.Duration(cfg.Timeouts.SearchMS)*time.Millisecond),
		executor.WithVariantTimeout(time.Duration(cfg.Timeouts.VariantMS)*time.Millisecond),
	)

	mx := metrics.New(prometheus.DefaultRegisterer)

	resultCache, err := cache.New(cache.DefaultSize)
	if err != nil {
		return fmt.Errorf("build cache: %w", err)
	}

	prox := proxy.New(processor, exec,
		proxy.WithRequestDeadline(time.Duration(cfg.Timeouts.RequestDeadlineMS)*time.Millisecond),
		proxy.WithMetrics(mx),
		proxy.WithCache(resultCache),
	)

	if withMCP || cfg.MCP.Enabled {
		mcpSrv := mcpsurface.New(tok, prox)
		return mcpSrv.Serve(ctx)
	}

	health := httpapi.NewHealthChecker(dict, tok, be, 30*time.Second)

	srv := httpapi.New(cfg, tok, prox, dict, health, mx)

	if cfg.Telemetry.Enabled {
		qm, err := buildQueryMetrics(cfg)
		if err != nil {
			slog.Warn("telemetry_disabled_init_failed", slog.String("error", err.Error()))
		} else {
			srv.SetQueryMetrics(qm)
			defer func() {
				if err := qm.Close(); err != nil {
					slog.Warn("telemetry_flush_failed", slog.String("error", err.Error()))
				}
			}()
		}
	}

	httpSrv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server_starting", slog.String("addr", cfg.Server.ListenAddr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("server_shutting_down")
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// buildBackend selects the configured search backend. A configured
// Backend.URL means Meilisearch; an empty URL falls back to an embedded
// bleve index, matching the teacher's test-mode-by-default posture.
func buildBackend(cfg *config.Config) (backend.Backend, error) {
	if cfg.Backend.URL != "" {
		return backend.NewMeiliBackend(cfg.Backend.URL, cfg.Backend.APIKey, "documents"), nil
	}
	return backend.NewBleveBackend("")
}

// defaultTelemetryDBPath returns the default sqlite file for query-level
// telemetry (spec §4.J), sitting next to the server's log directory.
func defaultTelemetryDBPath() string {
	return filepath.Join(logging.DefaultLogDir(), "..", "telemetry.db")
}

// buildQueryMetrics opens the telemetry sqlite database, initializes its
// schema, and returns a QueryMetrics collector flushing to it. The
// returned QueryMetrics owns the database handle from here on — its
// Close (deferred by the caller) closes it via SQLiteMetricsStore.Close.
func buildQueryMetrics(cfg *config.Config) (*telemetry.QueryMetrics, error) {
	path := cfg.Telemetry.DBPath
	if path == "" {
		path = defaultTelemetryDBPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create telemetry dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open telemetry db: %w", err)
	}
	if err := telemetry.InitTelemetrySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("init telemetry schema: %w", err)
	}
	store, err := telemetry.NewSQLiteMetricsStore(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("build telemetry store: %w", err)
	}
	return telemetry.NewQueryMetrics(store), nil
}
