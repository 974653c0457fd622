// Package support implements the diagnostics dump command.
package support

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/snakeguard/snakeguard-go/internal/conf"
)

// Command creates the support command.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "support",
		Short: "Print diagnostics for support requests",
		Long:  "Dump version, platform and redacted configuration to include in a support request.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return dump(settings)
		},
	}
}

// dump prints the diagnostics. Secrets are redacted, never printed.
func dump(settings *conf.Settings) error {
	fmt.Printf("snakeguard %s (built %s)\n", settings.Version, settings.BuildDate)
	fmt.Printf("platform: %s/%s, %s\n", runtime.GOOS, runtime.GOARCH, runtime.Version())
	fmt.Printf("config file: %s\n", viper.ConfigFileUsed())
	fmt.Println()

	fmt.Printf("pipeline: threshold=%.2f alerts=%v radius=%.1fkm\n",
		settings.Pipeline.ConfidenceThreshold,
		settings.Pipeline.AlertsEnabled,
		settings.Pipeline.AlertRadiusKm)
	fmt.Printf("poller: limit=%d maxage=%s interval=%s delay=%s minconfidence=%.2f\n",
		settings.Pipeline.PollLimit,
		settings.Pipeline.PollMaxAge,
		settings.Pipeline.PollInterval,
		settings.Pipeline.PollDelay,
		settings.Pipeline.PollMinConfidence)
	fmt.Printf("classifier: enabled=%v model=%s timeout=%s retries=%d apikey=%s\n",
		settings.Classifier.Enabled,
		settings.Classifier.Model,
		settings.Classifier.Timeout,
		settings.Classifier.Retries,
		redact(settings.Classifier.APIKey))
	fmt.Printf("email: enabled=%v host=%s port=%d from=%s password=%s\n",
		settings.Notify.Email.Enabled,
		settings.Notify.Email.Host,
		settings.Notify.Email.Port,
		settings.Notify.Email.From,
		redact(settings.Notify.Email.Password))
	fmt.Printf("sms: enabled=%v url=%s from=%s password=%s\n",
		settings.Notify.SMS.Enabled,
		settings.Notify.SMS.URL,
		settings.Notify.SMS.From,
		redact(settings.Notify.SMS.Password))
	fmt.Printf("webhook: enabled=%v url=%s\n",
		settings.Notify.Webhook.Enabled,
		settings.Notify.Webhook.URL)

	switch {
	case settings.Output.SQLite.Enabled:
		fmt.Printf("storage: sqlite path=%s\n", settings.Output.SQLite.Path)
	case settings.Output.MySQL.Enabled:
		fmt.Printf("storage: mysql host=%s port=%d database=%s\n",
			settings.Output.MySQL.Host,
			settings.Output.MySQL.Port,
			settings.Output.MySQL.Database)
	default:
		fmt.Println("storage: none enabled")
	}
	return nil
}

func redact(secret string) string {
	if secret == "" {
		return "(unset)"
	}
	return "(redacted)"
}
