package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilReceiversAreSafe(t *testing.T) {
	var p *PipelineMetrics
	var n *NotificationMetrics

	assert.NotPanics(t, func() {
		p.RecordProcessed("success", time.Second)
		p.RecordClassification("ok", time.Second)
		p.RecordAssignment("high")
		p.RecordPollerRun(3)
		p.RecordStageError("notification")
		n.RecordDelivery("email", "sent", time.Second)
		n.RecordDedupSkip("email")
		n.RecordGeoRejection()
		n.RecordWebhookTrigger("sent")
	})
}

func TestDuplicateRegistrationFails(t *testing.T) {
	registry := prometheus.NewRegistry()
	_, err := NewPipelineMetrics(registry)
	require.NoError(t, err)
	_, err = NewPipelineMetrics(registry)
	require.Error(t, err)
}
