package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/snakeguard/snakeguard-go/internal/datastore"
	"github.com/snakeguard/snakeguard-go/internal/errors"
	"github.com/snakeguard/snakeguard-go/internal/pipeline"
)

// IngestRequest is the payload for submitting a new detection.
type IngestRequest struct {
	ImageURL   string     `json:"imageUrl"`
	Confidence float64    `json:"confidence"`
	Latitude   *float64   `json:"latitude,omitempty"`
	Longitude  *float64   `json:"longitude,omitempty"`
	DetectedAt *time.Time `json:"detectedAt,omitempty"`
	Notes      string     `json:"notes,omitempty"`
}

func (r *IngestRequest) validate() error {
	switch {
	case r.ImageURL == "":
		return errors.Newf("imageUrl is required").
			Component("api").Category(errors.CategoryValidation).Build()
	case r.Confidence < 0 || r.Confidence > 1:
		return errors.Newf("confidence must be within [0,1]").
			Component("api").Category(errors.CategoryValidation).Build()
	case (r.Latitude == nil) != (r.Longitude == nil):
		return errors.Newf("latitude and longitude must be provided together").
			Component("api").Category(errors.CategoryValidation).Build()
	}
	return nil
}

// IngestDetection stores a new detection. With ?process=true the
// pipeline runs synchronously and the processing result is included.
func (c *Controller) IngestDetection(ctx echo.Context) error {
	var req IngestRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, errors.New(err).
			Component("api").Category(errors.CategoryValidation).Build(),
			"invalid request body")
	}
	if err := req.validate(); err != nil {
		return c.HandleError(ctx, err, "invalid detection")
	}

	d := &datastore.Detection{
		ImageURL:   req.ImageURL,
		Confidence: req.Confidence,
		Latitude:   req.Latitude,
		Longitude:  req.Longitude,
		Notes:      req.Notes,
	}
	if req.DetectedAt != nil {
		d.DetectedAt = *req.DetectedAt
	}
	if err := c.DS.InsertDetection(d); err != nil {
		return c.HandleError(ctx, err, "failed to store detection")
	}

	if ctx.QueryParam("process") == "true" {
		result, err := c.Processor.Process(ctx.Request().Context(), d.ID)
		if err != nil {
			return c.HandleError(ctx, err, "processing failed")
		}
		return ctx.JSON(http.StatusCreated, map[string]any{
			"detection": d,
			"result":    result,
		})
	}

	return ctx.JSON(http.StatusCreated, map[string]any{"detection": d})
}

// GetDetection returns one detection row.
func (c *Controller) GetDetection(ctx echo.Context) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return c.HandleError(ctx, err, "invalid detection id")
	}
	d, err := c.DS.GetDetection(id)
	if err != nil {
		return c.HandleError(ctx, err, "detection lookup failed")
	}
	return ctx.JSON(http.StatusOK, d)
}

// ProcessDetection runs the full pipeline for one detection. Partial
// stage failures still return 200 with the error list in the result.
func (c *Controller) ProcessDetection(ctx echo.Context) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return c.HandleError(ctx, err, "invalid detection id")
	}
	result, err := c.Processor.Process(ctx.Request().Context(), id)
	if err != nil {
		return c.HandleError(ctx, err, "processing failed")
	}
	return ctx.JSON(http.StatusOK, result)
}

// ClassifyDetection runs classification only. An already classified
// detection is returned as-is with applied=false.
func (c *Controller) ClassifyDetection(ctx echo.Context) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return c.HandleError(ctx, err, "invalid detection id")
	}
	d, err := c.DS.GetDetection(id)
	if err != nil {
		return c.HandleError(ctx, err, "detection lookup failed")
	}
	if d.Classified() {
		return ctx.JSON(http.StatusOK, map[string]any{
			"applied":   false,
			"detection": d,
		})
	}
	if c.Classifier == nil {
		return c.HandleError(ctx, errors.Newf("classifier is disabled").
			Component("api").Category(errors.CategoryConfiguration).Build(),
			"classifier unavailable")
	}

	classification, err := c.Classifier.Classify(ctx.Request().Context(), d.ImageURL)
	if err != nil {
		return c.HandleError(ctx, err, "classification failed")
	}
	applied, err := c.DS.SetClassification(d.ID, classification.Species,
		classification.Venomous, classification.RiskLevel, classification.Confidence)
	if err != nil {
		return c.HandleError(ctx, err, "failed to store classification")
	}

	d, err = c.DS.GetDetection(id)
	if err != nil {
		return c.HandleError(ctx, err, "detection reload failed")
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"applied":        applied,
		"classification": classification,
		"detection":      d,
	})
}

// PollUnprocessed triggers one retry poller sweep. The configured
// bounds can be overridden per call with the limit, maxAgeSeconds and
// minConfidence query parameters.
func (c *Controller) PollUnprocessed(ctx echo.Context) error {
	opts, err := sweepOptions(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "invalid sweep parameters")
	}
	batch, err := c.Poller.Sweep(ctx.Request().Context(), opts)
	if err != nil {
		return c.HandleError(ctx, err, "poller sweep failed")
	}
	return ctx.JSON(http.StatusOK, batch)
}

func sweepOptions(ctx echo.Context) (pipeline.SweepOptions, error) {
	var opts pipeline.SweepOptions
	if raw := ctx.QueryParam("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return opts, errors.Newf("limit must be a positive integer").
				Component("api").Category(errors.CategoryValidation).Build()
		}
		opts.Limit = limit
	}
	if raw := ctx.QueryParam("maxAgeSeconds"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds < 1 {
			return opts, errors.Newf("maxAgeSeconds must be a positive integer").
				Component("api").Category(errors.CategoryValidation).Build()
		}
		opts.MaxAge = time.Duration(seconds) * time.Second
	}
	if raw := ctx.QueryParam("minConfidence"); raw != "" {
		floor, err := strconv.ParseFloat(raw, 64)
		if err != nil || floor < 0 || floor > 1 {
			return opts, errors.Newf("minConfidence must be within [0,1]").
				Component("api").Category(errors.CategoryValidation).Build()
		}
		opts.MinConfidence = &floor
	}
	return opts, nil
}
