package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/snakeguard/snakeguard-go/internal/classify"
	"github.com/snakeguard/snakeguard-go/internal/conf"
	"github.com/snakeguard/snakeguard-go/internal/datastore"
	"github.com/snakeguard/snakeguard-go/internal/errors"
	"github.com/snakeguard/snakeguard-go/internal/logging"
	"github.com/snakeguard/snakeguard-go/internal/notify"
	"github.com/snakeguard/snakeguard-go/internal/observability"
	"github.com/snakeguard/snakeguard-go/internal/observability/metrics"
	"github.com/snakeguard/snakeguard-go/internal/playbook"
)

var logger = logging.ForService("pipeline")

// Processor runs one detection through the full pipeline. Stage
// failures after the validation gates are collected, never fatal: the
// detection is always marked processed at the end so a poisoned record
// cannot wedge the retry poller.
type Processor struct {
	ds         datastore.Interface
	classifier *classify.Adapter
	resolver   *playbook.Resolver
	manager    *playbook.Manager
	notifier   *notify.Engine
	settings   *SettingsCache
	obs        *observability.Metrics
}

// NewProcessor wires the orchestrator. The classifier may be nil when
// remote classification is disabled; unclassified detections then get
// the fail-safe classification. The metrics handle may also be nil.
func NewProcessor(ds datastore.Interface, classifier *classify.Adapter, resolver *playbook.Resolver,
	manager *playbook.Manager, notifier *notify.Engine, settings *SettingsCache, obs *observability.Metrics) *Processor {
	return &Processor{
		ds:         ds,
		classifier: classifier,
		resolver:   resolver,
		manager:    manager,
		notifier:   notifier,
		settings:   settings,
		obs:        obs,
	}
}

func (p *Processor) pipelineMetrics() *metrics.PipelineMetrics {
	if p.obs == nil {
		return nil
	}
	return p.obs.Pipeline
}

// Process runs the pipeline for one detection id. It returns an error
// only for the hard failures: a missing detection or an unreadable
// store. Everything past those gates is reported through the result.
func (p *Processor) Process(ctx context.Context, detectionID uint) (*Result, error) {
	start := time.Now()
	result := &Result{
		DetectionID: detectionID,
		RunID:       uuid.NewString(),
	}

	d, err := p.ds.GetDetection(detectionID)
	if err != nil {
		return nil, err
	}

	// A processed but unclassified detection re-enters the pipeline so
	// a failed classification write can be retried.
	if d.Processed && d.Classified() {
		result.AlreadyProcessed = true
		result.Success = true
		result.ResponseTimeMs = time.Since(start).Milliseconds()
		p.pipelineMetrics().RecordProcessed(result.outcome(), time.Since(start))
		return result, nil
	}

	rt := p.settings.Runtime()

	if d.Confidence < rt.ConfidenceThreshold {
		note := fmt.Sprintf("skipped: confidence %.2f below threshold %.2f", d.Confidence, rt.ConfidenceThreshold)
		p.markProcessed(d.ID, note, result)
		result.Skipped = true
		result.ResponseTimeMs = time.Since(start).Milliseconds()
		p.writeMetric(&d, result)
		p.pipelineMetrics().RecordProcessed(result.outcome(), time.Since(start))
		return result, nil
	}

	p.runClassification(ctx, &d, result)

	var pb *datastore.Playbook
	if rt.AlertsEnabled && d.RiskLevel != nil && *d.RiskLevel != "" {
		pb = p.runPlaybook(&d, result)
	}

	if rt.AlertsEnabled && d.HasCoordinates() {
		p.runNotifications(ctx, &d, pb, rt, result)
	}

	p.markProcessed(d.ID, p.runNote(result), result)

	result.Success = result.ClassificationCompleted || result.NotificationsSent
	result.ResponseTimeMs = time.Since(start).Milliseconds()
	p.writeMetric(&d, result)
	p.pipelineMetrics().RecordProcessed(result.outcome(), time.Since(start))

	logger.Info("detection processed",
		slog.Uint64("detection_id", uint64(d.ID)),
		slog.String("run_id", result.RunID),
		slog.Bool("success", result.Success),
		slog.Bool("classified", result.ClassificationCompleted),
		slog.Bool("playbook_assigned", result.PlaybookAssigned),
		slog.Bool("notifications_sent", result.NotificationsSent),
		slog.Int64("response_time_ms", result.ResponseTimeMs),
		slog.Int("errors", len(result.Errors)))
	return result, nil
}

// runClassification ensures the detection carries a classification.
// Classifier failures degrade to the fail-safe classification so an
// alert still goes out treating the snake as venomous.
func (p *Processor) runClassification(ctx context.Context, d *datastore.Detection, result *Result) {
	if d.Classified() {
		result.ClassificationCompleted = true
		return
	}

	var c classify.Classification
	switch {
	case p.classifier == nil:
		c = classify.FallbackClassification()
		result.Errors = append(result.Errors, "classifier disabled, applied fail-safe classification")
		p.pipelineMetrics().RecordClassification("fallback", 0)
	default:
		classifyStart := time.Now()
		got, err := p.classifier.Classify(ctx, d.ImageURL)
		if err != nil {
			c = classify.FallbackClassification()
			result.Errors = append(result.Errors, fmt.Sprintf("classification: %v", err))
			p.pipelineMetrics().RecordClassification("error", time.Since(classifyStart))
			p.pipelineMetrics().RecordStageError("classification")
			if errors.HasCategory(err, errors.CategoryImageFetch) {
				logger.Warn("image fetch failed, applying fail-safe classification",
					slog.Uint64("detection_id", uint64(d.ID)),
					slog.String("image_url", d.ImageURL))
			}
		} else {
			c = got
			p.pipelineMetrics().RecordClassification("ok", time.Since(classifyStart))
		}
	}

	applied, err := p.ds.SetClassification(d.ID, c.Species, c.Venomous, c.RiskLevel, c.Confidence)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("storing classification: %v", err))
		p.pipelineMetrics().RecordStageError("classification")
		return
	}
	if !applied {
		// Another worker classified this detection first; reload to see
		// what it wrote.
		fresh, err := p.ds.GetDetection(d.ID)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("reloading detection: %v", err))
			return
		}
		*d = fresh
		result.ClassificationCompleted = d.Classified()
		return
	}

	d.Species = &c.Species
	d.Venomous = &c.Venomous
	d.RiskLevel = &c.RiskLevel
	if c.Confidence > 0 {
		d.Confidence = c.Confidence
	}
	result.ClassificationCompleted = true
}

// runPlaybook resolves and assigns the response playbook. A missing
// playbook is not an error, the notification stage substitutes generic
// first-aid guidance.
func (p *Processor) runPlaybook(d *datastore.Detection, result *Result) *datastore.Playbook {
	species := ""
	if d.Species != nil {
		species = *d.Species
	}

	pb, err := p.resolver.Resolve(*d.RiskLevel, species)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("playbook lookup: %v", err))
		p.pipelineMetrics().RecordStageError("playbook")
		return nil
	}
	if pb == nil {
		logger.Debug("no playbook for detection",
			slog.Uint64("detection_id", uint64(d.ID)),
			slog.String("risk_level", *d.RiskLevel),
			slog.String("species", species))
		return nil
	}

	if _, err := p.manager.Assign(d.ID, pb); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("playbook assignment: %v", err))
		p.pipelineMetrics().RecordStageError("playbook")
		return pb
	}
	result.PlaybookAssigned = true
	p.pipelineMetrics().RecordAssignment(*d.RiskLevel)
	return pb
}

// runNotifications fans the alert out. The engine isolates individual
// recipient failures already; only a wholesale failure lands here.
func (p *Processor) runNotifications(ctx context.Context, d *datastore.Detection, pb *datastore.Playbook, rt conf.Runtime, result *Result) {
	nres, err := p.notifier.SendNotifications(ctx, d, pb, rt)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("notifications: %v", err))
		p.pipelineMetrics().RecordStageError("notification")
		return
	}
	result.Notifications = nres
	result.Errors = append(result.Errors, nres.Errors...)
	sent := nres.EmailsSent + nres.SMSSent + nres.GlobalEmailsSent + nres.GlobalSMSSent
	result.NotificationsSent = sent > 0 || nres.WebhookTriggered
}

// markProcessed flips the monotonic processed flag and appends the run
// note. Write failures are recorded but never abort the run.
func (p *Processor) markProcessed(id uint, note string, result *Result) {
	fields := map[string]any{"processed": true}
	if note != "" {
		fields["notes"] = note
	}
	if err := p.ds.UpdateDetection(id, fields); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("marking processed: %v", err))
	}
}

func (p *Processor) runNote(result *Result) string {
	if len(result.Errors) == 0 {
		return ""
	}
	return "errors: " + strings.Join(result.Errors, "; ")
}

// writeMetric appends the per-run record; failures are logged only.
func (p *Processor) writeMetric(d *datastore.Detection, result *Result) {
	m := &datastore.PipelineMetric{
		RunID:                   result.RunID,
		DetectionID:             d.ID,
		ResponseTimeMs:          result.ResponseTimeMs,
		Success:                 result.Success,
		ClassificationCompleted: result.ClassificationCompleted,
		PlaybookAssigned:        result.PlaybookAssigned,
		NotificationsSent:       result.NotificationsSent,
		Errors:                  strings.Join(result.Errors, "\n"),
	}
	if err := p.ds.InsertMetric(m); err != nil {
		logger.Error("failed to write pipeline metric",
			slog.Uint64("detection_id", uint64(d.ID)),
			slog.Any("error", err))
		p.pipelineMetrics().RecordStageError("metric")
	}
}
