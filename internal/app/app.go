// Package app wires the application components from settings: the
// datastore, the classifier, the playbook layer, the fan-out engine,
// the orchestrator and the retry poller.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/snakeguard/snakeguard-go/internal/classify"
	"github.com/snakeguard/snakeguard-go/internal/conf"
	"github.com/snakeguard/snakeguard-go/internal/datastore"
	"github.com/snakeguard/snakeguard-go/internal/httpclient"
	"github.com/snakeguard/snakeguard-go/internal/logging"
	"github.com/snakeguard/snakeguard-go/internal/notify"
	"github.com/snakeguard/snakeguard-go/internal/observability"
	"github.com/snakeguard/snakeguard-go/internal/pipeline"
	"github.com/snakeguard/snakeguard-go/internal/playbook"
)

var logger = logging.ForService("app")

// App holds the wired components for one process lifetime.
type App struct {
	Settings *conf.Settings
	DS       datastore.Interface
	HTTP     *httpclient.Client

	Classifier *classify.Adapter // nil when remote classification is disabled
	Resolver   *playbook.Resolver
	Manager    *playbook.Manager
	Notifier   *notify.Engine
	Runtime    *pipeline.SettingsCache
	Processor  *pipeline.Processor
	Poller     *pipeline.Poller
	Metrics    *observability.Metrics
}

// Build validates the settings, opens the datastore and wires every
// component. Call Close when done.
func Build(ctx context.Context, settings *conf.Settings) (*App, error) {
	if err := conf.ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}

	ds := datastore.New(settings)
	if ds == nil {
		return nil, fmt.Errorf("no database output enabled, enable sqlite or mysql")
	}
	if err := ds.Open(); err != nil {
		return nil, fmt.Errorf("opening datastore: %w", err)
	}

	metrics, err := observability.NewMetrics()
	if err != nil {
		return nil, fmt.Errorf("initializing metrics: %w", err)
	}

	httpClient := httpclient.New(nil)

	var classifier *classify.Adapter
	if settings.Classifier.Enabled && settings.Classifier.APIKey != "" {
		provider, err := classify.NewGeminiProvider(ctx,
			settings.Classifier.APIKey, settings.Classifier.Model, settings.Classifier.Retries)
		if err != nil {
			return nil, fmt.Errorf("initializing classifier: %w", err)
		}
		classifier = classify.NewAdapter(provider, httpClient, settings.Classifier.Timeout)
	} else {
		logger.Warn("remote classification disabled, unclassified detections get the fail-safe classification")
	}

	resolver := playbook.NewResolver(ds)
	manager := playbook.NewManager(ds)

	email := notify.NewEmailProvider(settings.Notify.Email)
	sms := notify.NewSMSProvider(settings.Notify.SMS, httpClient)
	webhook := notify.NewWebhookClient(httpClient, settings.Notify.Webhook.Timeout)
	notifier := notify.NewEngine(ds, settings.Notify, email, sms, webhook)
	notifier.SetMetrics(metrics.Notification)

	runtime := pipeline.NewSettingsCache(ds, settings)
	processor := pipeline.NewProcessor(ds, classifier, resolver, manager, notifier, runtime, metrics)
	poller := pipeline.NewPoller(ds, processor, settings.Pipeline)

	logger.Info("application wired",
		slog.String("version", settings.Version),
		slog.Bool("classifier", classifier != nil),
		slog.Bool("email", settings.Notify.Email.Enabled),
		slog.Bool("sms", settings.Notify.SMS.Enabled),
		slog.Bool("webhook", settings.Notify.Webhook.Enabled))

	return &App{
		Settings:   settings,
		DS:         ds,
		HTTP:       httpClient,
		Classifier: classifier,
		Resolver:   resolver,
		Manager:    manager,
		Notifier:   notifier,
		Runtime:    runtime,
		Processor:  processor,
		Poller:     poller,
		Metrics:    metrics,
	}, nil
}

// Close releases the datastore and HTTP resources.
func (a *App) Close() error {
	a.HTTP.Close()
	if err := a.DS.Close(); err != nil {
		return fmt.Errorf("closing datastore: %w", err)
	}
	return nil
}
