package main

import (
	"brainapi/internal/api"
	"brainapi/internal/config"
	"brainapi/internal/engine"
	"brainapi/internal/logging"
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "brain-api",
		Short:        "Trade data analytics proxy for the comtrade search endpoint",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), configPath)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file (default: $CONFIG_PATH or ./config.yaml)")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Load the dataset and serve the HTTP API (default)",
			RunE: func(cmd *cobra.Command, args []string) error {
				return serve(cmd.Context(), configPath)
			},
		},
		newFetchCmd(&configPath),
	)
	return root
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	return cfg, nil
}

func serve(ctx context.Context, configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := engine.NewClient(cfg.Upstream)
	svc := engine.NewService(client)

	// Initial load runs before the listener starts. A failure is not fatal:
	// the API comes up empty and /api/refresh can be retried.
	t0 := time.Now()
	logging.Info().Str("url", client.URL()).Msg("STARTUP: loading dataset")
	if res, err := svc.Refresh(ctx); err != nil {
		logging.Warn().Err(err).Msg("STARTUP: initial load failed, serving without data")
	} else {
		logging.Info().Int("rows", res.Total).Dur("took", time.Since(t0)).Msg("STARTUP: dataset ready")
	}

	h := api.NewHandler(svc, cfg.Server.RefreshTimeout)
	e := api.NewServer(cfg.Server, h)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logging.Info().Str("addr", cfg.Server.Addr()).Msg("server listening")
		if err := e.Start(cfg.Server.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logging.Info().Msg("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return e.Shutdown(sctx)
	})

	return g.Wait()
}
