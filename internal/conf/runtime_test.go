package conf

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func baseRuntime() Runtime {
	return Runtime{
		ConfidenceThreshold: 0.5,
		AlertsEnabled:       true,
		AlertRadiusKm:       25,
		EmailEnabled:        true,
		SMSEnabled:          false,
		WebhookURL:          "http://default.example/hook",
	}
}

func TestRuntimeDefaultsGateWebhookOnEnabled(t *testing.T) {
	s := &Settings{}
	s.Notify.Webhook.URL = "http://hooks.example/snake"

	got := RuntimeDefaults(s)
	assert.Empty(t, got.WebhookURL)

	s.Notify.Webhook.Enabled = true
	got = RuntimeDefaults(s)
	assert.Equal(t, "http://hooks.example/snake", got.WebhookURL)
}

func TestMergeRuntimeNilOverrides(t *testing.T) {
	got := MergeRuntime(baseRuntime(), nil)
	assert.Equal(t, baseRuntime(), got)
}

func TestMergeRuntimePartialOverrides(t *testing.T) {
	threshold := 0.8
	sms := true
	got := MergeRuntime(baseRuntime(), &StoredOverrides{
		ConfidenceThreshold: &threshold,
		SMSEnabled:          &sms,
	})

	assert.InDelta(t, 0.8, got.ConfidenceThreshold, 1e-9)
	assert.True(t, got.SMSEnabled)
	// Untouched fields keep defaults.
	assert.True(t, got.AlertsEnabled)
	assert.InDelta(t, 25, got.AlertRadiusKm, 1e-9)
	assert.Equal(t, "http://default.example/hook", got.WebhookURL)
}

func TestMergeRuntimeEmptyWebhookKeepsDefault(t *testing.T) {
	empty := ""
	got := MergeRuntime(baseRuntime(), &StoredOverrides{WebhookURL: &empty})
	assert.Equal(t, "http://default.example/hook", got.WebhookURL)

	custom := "http://other.example/hook"
	got = MergeRuntime(baseRuntime(), &StoredOverrides{WebhookURL: &custom})
	assert.Equal(t, custom, got.WebhookURL)
}

func TestMergeRuntimeDoesNotMutateDefaults(t *testing.T) {
	defaults := baseRuntime()
	off := false
	_ = MergeRuntime(defaults, &StoredOverrides{AlertsEnabled: &off})
	assert.True(t, defaults.AlertsEnabled)
}
