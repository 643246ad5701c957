package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"imaged/internal/config"
	"imaged/internal/dispatch"
	"imaged/internal/gateway"
	"imaged/internal/httpapi"
	"imaged/internal/observability"
	"imaged/internal/presets"
	"imaged/internal/worker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP gateway",
	RunE:  runServe,
}

func init() {
	addServeFlags(serveCmd.Flags())
}

func addServeFlags(f *pflag.FlagSet) {
	f.String("addr", "", "HTTP listen address, e.g. :8888")
	f.String("worker-url", "", "Base URL of the generation worker")
	f.String("worker-api-key", "", "Bearer token sent to the worker")
	f.String("presets-dir", "", "Directory of preset files (.json, .yaml, .toml)")
	f.Int("max-inflight", 0, "Jobs the worker runs at once")
	f.Int("max-queue-depth", 0, "Admitted jobs, running ones included")
	f.Int("sync-timeout-seconds", 0, "Bound on a synchronous job (0 = none)")
	f.String("stream-drop-policy", "", "drop_newest or drop_oldest")
	f.String("job-store", "", "memory or redis")
	f.String("redis-url", "", "Redis URL for the redis job store")
	f.String("log-level", "", "trace, debug, info, warn or error")
	f.Bool("cors-enabled", false, "Enable CORS middleware")
	f.String("cors-origins", "", "Comma-separated allowed origins")
	f.String("otlp-endpoint", "", "OTLP/HTTP traces endpoint URL")
	f.Bool("pretty-log", false, "Human-readable console logs")
}

func setupLogger(level string, pretty bool) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("log level: %w", err)
	}
	var w io.Writer = os.Stderr
	if pretty {
		w = zerolog.ConsoleWriter{Out: os.Stderr}
	}
	lg := zerolog.New(w).Level(lvl).With().Timestamp().Str("service", "imaged").Logger()
	log.Logger = lg
	return lg, nil
}

func newStore(ctx context.Context, cfg config.Config) (dispatch.HandleStore, error) {
	switch cfg.JobStore {
	case "redis":
		return dispatch.NewRedisStore(ctx, cfg.RedisURL, "", cfg.JobTTL())
	default:
		return dispatch.NewMemoryStore(cfg.JobTTL()), nil
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	pretty, _ := cmd.Flags().GetBool("pretty-log")
	lg, err := setupLogger(cfg.LogLevel, pretty)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, "imaged", cfg.OTLPEndpoint, cfg.OTLPInsecure)
	if err != nil {
		return err
	}

	tmpl, err := cfg.Template()
	if err != nil {
		return err
	}
	var set presets.Set
	if cfg.PresetsDir != "" {
		if set, err = presets.LoadDir(cfg.PresetsDir); err != nil {
			return fmt.Errorf("load presets: %w", err)
		}
	}

	policy, err := dispatch.ParseDropPolicy(cfg.StreamDropPolicy)
	if err != nil {
		return err
	}
	store, err := newStore(ctx, cfg)
	if err != nil {
		return err
	}

	wc := worker.New(cfg.WorkerURL, cfg.WorkerAPIKey, cfg.WorkerTimeout(), cfg.WorkerConnectTimeout())
	disp := dispatch.New(wc, dispatch.Config{
		SyncTimeout:    cfg.SyncTimeout(),
		MaxInflight:    cfg.MaxInflight,
		MaxQueueDepth:  cfg.MaxQueueDepth,
		MaxWait:        cfg.QueueWait(),
		StreamBuffer:   cfg.StreamBuffer,
		DropPolicy:     policy,
		WebhookTimeout: cfg.WebhookTimeout(),
		Store:          store,
		Webhook:        dispatch.NewWebhookClient(cfg.WebhookTimeout()),
		Events:         dispatch.NewLogPublisher(lg),
	})

	gw, err := gateway.New(gateway.Options{
		Template:   tmpl,
		Presets:    set,
		Dispatcher: disp,
		Pinger:     wc,
		Logger:     &lg,
	})
	if err != nil {
		_ = disp.Close(context.Background())
		if c, ok := store.(io.Closer); ok {
			_ = c.Close()
		}
		return err
	}

	httpapi.SetLogger(lg)
	httpapi.SetMaxBodyBytes(cfg.MaxBodyBytes)
	httpapi.SetCORSOptions(cfg.CORSEnabled, cfg.CORSOrigins, cfg.CORSMethods, cfg.CORSHeaders)
	httpapi.SetDefaultLogLevel(cfg.HTTPLogLevel)
	httpapi.SetBaseContext(ctx)

	srv := &http.Server{Addr: cfg.Addr, Handler: httpapi.NewMux(gw)}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lg.Info().
			Str("addr", cfg.Addr).
			Str("worker", wc.BaseURL()).
			Str("job_store", cfg.JobStore).
			Strs("presets", set.Names()).
			Msg("imaged listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
		defer cancel()
		lg.Info().Msg("shutting down")
		var errs []error
		if err := srv.Shutdown(sctx); err != nil {
			errs = append(errs, fmt.Errorf("graceful shutdown: %w", err))
		}
		if err := disp.Close(sctx); err != nil {
			errs = append(errs, fmt.Errorf("dispatcher close: %w", err))
		}
		if c, ok := store.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("job store close: %w", err))
			}
		}
		if err := shutdownTracing(sctx); err != nil {
			errs = append(errs, fmt.Errorf("tracing shutdown: %w", err))
		}
		return errors.Join(errs...)
	})
	return g.Wait()
}
