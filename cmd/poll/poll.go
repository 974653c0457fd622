// Package poll implements the retry poller command.
package poll

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/snakeguard/snakeguard-go/internal/app"
	"github.com/snakeguard/snakeguard-go/internal/conf"
	"github.com/snakeguard/snakeguard-go/internal/logging"
	"github.com/snakeguard/snakeguard-go/internal/pipeline"
)

// Command creates the poll command.
func Command(settings *conf.Settings) *cobra.Command {
	var daemon bool

	cmd := &cobra.Command{
		Use:   "poll",
		Short: "Sweep unprocessed detections",
		Long:  "Run one retry sweep over unprocessed detections, or loop continuously with --daemon.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPoll(cmd.Context(), settings, daemon)
		},
	}

	cmd.Flags().BoolVar(&daemon, "daemon", false, "Keep sweeping on a fixed interval")
	cmd.Flags().DurationVar(&settings.Pipeline.PollInterval, "interval",
		viper.GetDuration("pipeline.pollinterval"), "Scan interval in daemon mode")
	cmd.Flags().IntVar(&settings.Pipeline.PollLimit, "limit",
		viper.GetInt("pipeline.polllimit"), "Maximum detections per sweep")
	cmd.Flags().Float64Var(&settings.Pipeline.PollMinConfidence, "minconfidence",
		viper.GetFloat64("pipeline.pollminconfidence"), "Confidence floor for the sweep")
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		cobra.CheckErr(err)
	}

	return cmd
}

func runPoll(ctx context.Context, settings *conf.Settings, daemon bool) error {
	a, err := app.Build(ctx, settings)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logging.Error("shutdown cleanup failed", "error", err)
		}
	}()

	if daemon {
		ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := a.Poller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	}

	batch, err := a.Poller.Sweep(ctx, pipeline.SweepOptions{})
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(batch); err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	return nil
}
