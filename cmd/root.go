// Package cmd assembles the cobra command tree.
package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/snakeguard/snakeguard-go/cmd/poll"
	"github.com/snakeguard/snakeguard-go/cmd/process"
	"github.com/snakeguard/snakeguard-go/cmd/serve"
	"github.com/snakeguard/snakeguard-go/cmd/support"
	"github.com/snakeguard/snakeguard-go/internal/conf"
)

// RootCommand creates and returns the root command.
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "snakeguard",
		Short: "SnakeGuard detection processing pipeline",
	}

	setupFlags(rootCmd, settings)

	rootCmd.AddCommand(
		serve.Command(settings),
		process.Command(settings),
		poll.Command(settings),
		support.Command(settings),
	)

	return rootCmd
}

// setupFlags configures persistent flags shared by every subcommand.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) {
	cmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	cmd.PersistentFlags().Float64Var(&settings.Pipeline.ConfidenceThreshold, "threshold",
		viper.GetFloat64("pipeline.confidencethreshold"), "Minimum detection confidence to process")
	cmd.PersistentFlags().StringVar(&settings.Output.SQLite.Path, "dbpath",
		viper.GetString("output.sqlite.path"), "Path to SQLite database")

	if err := viper.BindPFlags(cmd.PersistentFlags()); err != nil {
		cobra.CheckErr(err)
	}
}
