package notify

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/snakeguard/snakeguard-go/internal/datastore"
	"github.com/snakeguard/snakeguard-go/internal/httpclient"
)

// WebhookClient POSTs the raw detection as JSON to an admin-configured
// URL. It is not a per-user channel; the engine triggers it at most
// once per fan-out.
type WebhookClient struct {
	client  *httpclient.Client
	timeout time.Duration
}

// webhookPayload is the JSON structure sent to the webhook.
type webhookPayload struct {
	DetectionID uint     `json:"detection_id"`
	ImageURL    string   `json:"image_url"`
	Confidence  float64  `json:"confidence"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
	Species     *string  `json:"species,omitempty"`
	Venomous    *bool    `json:"venomous,omitempty"`
	RiskLevel   *string  `json:"risk_level,omitempty"`
	DetectedAt  string   `json:"detected_at"`
}

// NewWebhookClient returns the webhook dispatcher.
func NewWebhookClient(client *httpclient.Client, timeout time.Duration) *WebhookClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &WebhookClient{client: client, timeout: timeout}
}

// Trigger posts the detection to url. Non-2xx responses are errors.
func (w *WebhookClient) Trigger(ctx context.Context, url string, d *datastore.Detection) error {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	payload := webhookPayload{
		DetectionID: d.ID,
		ImageURL:    d.ImageURL,
		Confidence:  d.Confidence,
		Latitude:    d.Latitude,
		Longitude:   d.Longitude,
		Species:     d.Species,
		Venomous:    d.Venomous,
		RiskLevel:   d.RiskLevel,
		DetectedAt:  d.DetectedAt.UTC().Format(time.RFC3339),
	}

	resp, err := w.client.Post(ctx, url, "application/json", payload)
	if err != nil {
		return fmt.Errorf("webhook post: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, strings.TrimSpace(string(excerpt)))
	}
	return nil
}
