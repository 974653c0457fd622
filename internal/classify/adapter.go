package classify

import (
	"context"
	"log/slog"
	"time"

	"github.com/snakeguard/snakeguard-go/internal/errors"
	"github.com/snakeguard/snakeguard-go/internal/httpclient"
	"github.com/snakeguard/snakeguard-go/internal/logging"
)

const (
	// describePrompt instructs the model to answer with a strict JSON
	// object only. The schema mirrors the Classification struct.
	describePrompt = `You are a herpetology expert. Identify the snake in this image.
Respond with ONLY a JSON object, no prose and no markdown, exactly this schema:
{"species": "<common name>", "venomous": true|false, "risk_level": "low"|"medium"|"high"|"critical", "confidence": <0.0-1.0>, "description": "<one sentence>"}
If you cannot identify the species, use "Unknown Snake", venomous true and risk_level "high".`

	// maxImageBytes caps image downloads ahead of the model call.
	maxImageBytes = 16 << 20

	defaultMimeType = "image/jpeg"
)

var logger = logging.ForService("classify")

// Adapter fetches a detection image and runs it through the description
// provider, normalizing the response into a Classification.
type Adapter struct {
	provider Provider
	http     *httpclient.Client
	timeout  time.Duration
}

// NewAdapter wires the adapter from a provider and a shared HTTP client.
func NewAdapter(provider Provider, httpClient *httpclient.Client, timeout time.Duration) *Adapter {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Adapter{provider: provider, http: httpClient, timeout: timeout}
}

// Classify downloads the image and asks the model to describe it.
// Shape problems in the model output degrade to the fail-safe-high
// fallback classification; only fetch and transport errors are
// returned to the caller.
func (a *Adapter) Classify(ctx context.Context, imageURL string) (Classification, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	image, mimeType, err := a.http.FetchBytes(ctx, imageURL, maxImageBytes)
	if err != nil {
		return Classification{}, errors.New(err).
			Component("classify").
			Category(errors.CategoryImageFetch).
			Context("image_url", imageURL).
			Build()
	}
	if mimeType == "" {
		mimeType = defaultMimeType
	}

	start := time.Now()
	raw, err := a.provider.Describe(ctx, image, mimeType, describePrompt)
	if err != nil {
		return Classification{}, errors.New(err).
			Component("classify").
			Category(errors.CategoryClassification).
			Timing("describe", time.Since(start)).
			Build()
	}

	c, parsed := ParseResponse(raw)
	if !parsed {
		logger.Warn("unparseable model response, using fail-safe classification",
			slog.Int("response_length", len(raw)))
	}
	return c, nil
}
