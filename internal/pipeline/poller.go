package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/snakeguard/snakeguard-go/internal/conf"
	"github.com/snakeguard/snakeguard-go/internal/datastore"
	"github.com/snakeguard/snakeguard-go/internal/errors"
)

// Poller sweeps unprocessed detections and replays them through the
// processor. Detections are handled sequentially with a fixed delay so
// a large backlog cannot stampede the classifier or the notification
// providers.
type Poller struct {
	ds   datastore.Interface
	proc *Processor
	cfg  conf.PipelineConfig
}

// NewPoller wires the retry poller.
func NewPoller(ds datastore.Interface, proc *Processor, cfg conf.PipelineConfig) *Poller {
	return &Poller{ds: ds, proc: proc, cfg: cfg}
}

// SweepOptions override the configured sweep bounds for a single
// call. Zero Limit and MaxAge and a nil MinConfidence fall back to the
// configured values.
type SweepOptions struct {
	Limit         int
	MaxAge        time.Duration
	MinConfidence *float64
}

// Sweep runs one pass: list unprocessed detections inside the trailing
// window and process each. A failure for one detection never stops the
// rest of the batch.
func (p *Poller) Sweep(ctx context.Context, opts SweepOptions) (*BatchResult, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = p.cfg.PollLimit
	}
	if limit <= 0 {
		limit = 20
	}
	maxAge := opts.MaxAge
	if maxAge <= 0 {
		maxAge = p.cfg.PollMaxAge
	}
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	minConfidence := p.cfg.PollMinConfidence
	if opts.MinConfidence != nil {
		minConfidence = *opts.MinConfidence
	}
	since := time.Now().Add(-maxAge)

	detections, err := p.ds.ListUnprocessed(minConfidence, since, limit)
	if err != nil {
		return nil, fmt.Errorf("poller sweep: %w", err)
	}

	batch := &BatchResult{Found: len(detections)}
	p.proc.pipelineMetrics().RecordPollerRun(len(detections))
	if len(detections) == 0 {
		return batch, nil
	}

	logger.Info("poller sweep starting",
		slog.Int("found", len(detections)),
		slog.Float64("min_confidence", minConfidence))

	delay := p.cfg.PollDelay
	if delay <= 0 {
		delay = time.Second
	}
	limiter := rate.NewLimiter(rate.Every(delay), 1)

	for i := range detections {
		d := &detections[i]
		if err := limiter.Wait(ctx); err != nil {
			return batch, err
		}

		item := ItemOutcome{DetectionID: d.ID}
		res, err := p.proc.Process(ctx, d.ID)
		switch {
		case err != nil:
			item.Error = err.Error()
			batch.Failed++
			logger.Error("poller: processing failed",
				slog.Uint64("detection_id", uint64(d.ID)),
				slog.Any("error", err))
		case res.Skipped:
			item.Skipped = true
			batch.Skipped++
		case res.Success:
			item.Success = true
			batch.Succeeded++
		default:
			if len(res.Errors) > 0 {
				item.Error = res.Errors[0]
			}
			batch.Failed++
		}
		batch.Items = append(batch.Items, item)
	}

	logger.Info("poller sweep complete",
		slog.Int("found", batch.Found),
		slog.Int("succeeded", batch.Succeeded),
		slog.Int("skipped", batch.Skipped),
		slog.Int("failed", batch.Failed))
	return batch, nil
}

// Run executes sweeps on a fixed interval until the context is
// cancelled. One sweep runs immediately on startup.
func (p *Poller) Run(ctx context.Context) error {
	interval := p.cfg.PollInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	if _, err := p.Sweep(ctx, SweepOptions{}); err != nil && !isCancelled(err) {
		logger.Error("poller sweep failed", slog.Any("error", err))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := p.Sweep(ctx, SweepOptions{}); err != nil && !isCancelled(err) {
				logger.Error("poller sweep failed", slog.Any("error", err))
			}
		}
	}
}

func isCancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
