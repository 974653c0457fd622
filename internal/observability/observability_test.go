package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRegistrationAndExposition(t *testing.T) {
	m, err := NewMetrics()
	require.NoError(t, err)

	m.Pipeline.RecordProcessed("success", 120*time.Millisecond)
	m.Pipeline.RecordClassification("ok", 2*time.Second)
	m.Pipeline.RecordAssignment("high")
	m.Pipeline.RecordPollerRun(5)
	m.Notification.RecordDelivery("email", "sent", 50*time.Millisecond)
	m.Notification.RecordDedupSkip("sms")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "pipeline_detections_processed_total")
	assert.Contains(t, body, "pipeline_playbook_assignments_total")
	assert.Contains(t, body, "pipeline_poller_backlog 5")
	assert.Contains(t, body, "notification_deliveries_total")
	assert.Contains(t, body, "notification_dedup_skips_total")
}
