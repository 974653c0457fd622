// Package process implements the single-detection processing command.
package process

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/snakeguard/snakeguard-go/internal/app"
	"github.com/snakeguard/snakeguard-go/internal/conf"
	"github.com/snakeguard/snakeguard-go/internal/logging"
)

// Command creates the process command.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "process [detection-id]",
		Short: "Run the pipeline for one detection",
		Long:  "Classify, assign a playbook and fan out alerts for a single stored detection.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil || id == 0 {
				return fmt.Errorf("invalid detection id %q", args[0])
			}
			return runProcess(cmd.Context(), settings, uint(id))
		},
	}
}

func runProcess(ctx context.Context, settings *conf.Settings, id uint) error {
	a, err := app.Build(ctx, settings)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logging.Error("shutdown cleanup failed", "error", err)
		}
	}()

	result, err := a.Processor.Process(ctx, id)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	if !result.Success && !result.Skipped && !result.AlreadyProcessed {
		return fmt.Errorf("processing did not complete, %d error(s)", len(result.Errors))
	}
	return nil
}
