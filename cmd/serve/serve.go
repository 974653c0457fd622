// Package serve implements the HTTP API server command.
package serve

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/snakeguard/snakeguard-go/internal/api"
	"github.com/snakeguard/snakeguard-go/internal/app"
	"github.com/snakeguard/snakeguard-go/internal/conf"
	"github.com/snakeguard/snakeguard-go/internal/logging"
)

const shutdownTimeout = 10 * time.Second

// Command creates the serve command.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Long:  "Start the JSON API server exposing detection ingest, processing, playbook and notification operations.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), settings)
		},
	}

	cmd.Flags().StringVar(&settings.WebServer.Port, "port", viper.GetString("webserver.port"), "Listen port for the API server")
	cmd.Flags().BoolVar(&settings.Pipeline.AlertsEnabled, "alerts", viper.GetBool("pipeline.alertsenabled"), "Enable playbook assignment and alert fan-out")
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		cobra.CheckErr(err)
	}

	return cmd
}

func runServer(ctx context.Context, settings *conf.Settings) error {
	a, err := app.Build(ctx, settings)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logging.Error("shutdown cleanup failed", "error", err)
		}
	}()

	e := echo.New()
	e.HideBanner = true
	controller := api.New(e, a.DS, settings, a.Processor, a.Poller, a.Classifier,
		a.Resolver, a.Manager, a.Notifier, a.Runtime, a.Metrics)
	defer func() {
		if err := controller.Close(); err != nil {
			logging.Error("closing api log writer failed", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		addr := ":" + settings.WebServer.Port
		logging.Info("api server starting", "addr", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("api server: %w", err)
	case <-ctx.Done():
	}

	logging.Info("shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api server shutdown: %w", err)
	}
	return nil
}
