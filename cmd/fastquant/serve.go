package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/newthinker/fastquant/internal/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the fastquant HTTP server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer log.Sync()
	if cfgFile == "" {
		log.Warn("no config file specified, using defaults")
	}

	rt, err := buildRuntime(cfg, log)
	if err != nil {
		return err
	}
	defer rt.Close()

	log.Info("starting fastquant server",
		zap.String("addr", cfg.Server.Addr()),
		zap.String("store", cfg.Storage.Hot.Driver),
		zap.String("archive", cfg.Storage.Cold.Type),
		zap.String("default_provider", cfg.Providers.Default),
	)

	server, err := api.NewServer(api.Config{
		Host:        cfg.Server.Host,
		Port:        cfg.Server.Port,
		APIKey:      cfg.Server.APIKey,
		JobTTL:      jobTTL(cfg),
		MaxJobs:     cfg.Server.MaxJobs,
		JobTimeout:  cfg.Backtest.Timeout,
		MetricsPath: cfg.Metrics.Path,
	}, api.Dependencies{
		Runner:  rt.service,
		Results: rt.store,
		Metrics: rt.metrics,
	}, log)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	log.Info("shutting down fastquant server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return server.Shutdown(ctx)
}
