package datastore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snakeguard/snakeguard-go/internal/conf"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	settings := &conf.Settings{}
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = filepath.Join(t.TempDir(), "test.db")

	store := &SQLiteStore{Settings: settings}
	require.NoError(t, store.Open())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func floatPtr(v float64) *float64 { return &v }

func TestSetClassificationIsSingleShot(t *testing.T) {
	store := newTestStore(t)

	d := &Detection{ImageURL: "http://cam/1.jpg", Confidence: 0.8}
	require.NoError(t, store.InsertDetection(d))

	applied, err := store.SetClassification(d.ID, "Eastern Brown Snake", true, RiskCritical, 0.92)
	require.NoError(t, err)
	assert.True(t, applied)

	// Second write must be a no-op.
	applied, err = store.SetClassification(d.ID, "Carpet Python", false, RiskLow, 0.99)
	require.NoError(t, err)
	assert.False(t, applied)

	got, err := store.GetDetection(d.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Species)
	assert.Equal(t, "Eastern Brown Snake", *got.Species)
	require.NotNil(t, got.Venomous)
	assert.True(t, *got.Venomous)
	require.NotNil(t, got.RiskLevel)
	assert.Equal(t, RiskCritical, *got.RiskLevel)
	assert.InDelta(t, 0.92, got.Confidence, 1e-9)
}

func TestUpdateDetectionProcessedIsMonotonic(t *testing.T) {
	store := newTestStore(t)

	d := &Detection{ImageURL: "http://cam/1.jpg", Confidence: 0.8}
	require.NoError(t, store.InsertDetection(d))

	require.NoError(t, store.UpdateDetection(d.ID, map[string]any{"processed": true}))

	// A false write must be discarded, not applied.
	require.NoError(t, store.UpdateDetection(d.ID, map[string]any{"processed": false, "notes": "retry"}))

	got, err := store.GetDetection(d.ID)
	require.NoError(t, err)
	assert.True(t, got.Processed)
	assert.Equal(t, "retry", got.Notes)
}

func TestGetDetectionNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetDetection(9999)
	require.Error(t, err)
}

func TestListUnprocessedFilters(t *testing.T) {
	store := newTestStore(t)

	now := time.Now()
	seed := []Detection{
		{ImageURL: "a", Confidence: 0.9, DetectedAt: now.Add(-1 * time.Hour)},
		{ImageURL: "b", Confidence: 0.2, DetectedAt: now.Add(-1 * time.Hour)},  // below floor
		{ImageURL: "c", Confidence: 0.9, DetectedAt: now.Add(-48 * time.Hour)}, // too old
		{ImageURL: "d", Confidence: 0.9, DetectedAt: now.Add(-2 * time.Hour), Processed: true},
	}
	for i := range seed {
		require.NoError(t, store.InsertDetection(&seed[i]))
	}

	got, err := store.ListUnprocessed(0.5, now.Add(-24*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ImageURL)
}

func TestUpsertAssignmentOnePerDetection(t *testing.T) {
	store := newTestStore(t)

	pb := &Playbook{RiskLevel: RiskHigh, FirstAid: "stay calm"}
	require.NoError(t, store.SavePlaybook(pb))

	a1 := &IncidentAssignment{DetectionID: 7, PlaybookID: pb.ID, Status: AssignmentActive}
	created, err := store.UpsertAssignment(a1, []AssignmentStep{{StepID: 1, Title: "Call ranger"}})
	require.NoError(t, err)
	assert.True(t, created)

	a2 := &IncidentAssignment{DetectionID: 7, PlaybookID: pb.ID, Status: AssignmentActive}
	created, err = store.UpsertAssignment(a2, []AssignmentStep{{StepID: 1, Title: "Call ranger"}})
	require.NoError(t, err)
	assert.False(t, created)

	got, err := store.GetAssignmentByDetection(7)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, a1.ID, got.ID)
	assert.Len(t, got.Steps, 1)
}

func TestMergeStepStates(t *testing.T) {
	store := newTestStore(t)

	a := &IncidentAssignment{DetectionID: 3, PlaybookID: 1, Status: AssignmentActive}
	steps := []AssignmentStep{
		{StepID: 10, Title: "Secure area"},
		{StepID: 11, Title: "Call ranger"},
	}
	created, err := store.UpsertAssignment(a, steps)
	require.NoError(t, err)
	require.True(t, created)

	got, err := store.MergeStepStates(a.ID, []StepUpdate{
		{StepID: 10, Completed: true, Note: "done"},
		{StepID: 999, Completed: true}, // unknown, skipped
	})
	require.NoError(t, err)
	require.Len(t, got.Steps, 2)

	byStep := map[uint]AssignmentStep{}
	for _, s := range got.Steps {
		byStep[s.StepID] = s
	}
	assert.True(t, byStep[10].Completed)
	assert.NotNil(t, byStep[10].CompletedAt)
	assert.Equal(t, "done", byStep[10].Note)
	assert.False(t, byStep[11].Completed)
	assert.Nil(t, byStep[11].CompletedAt)
}

func TestInsertNotificationLogDedup(t *testing.T) {
	store := newTestStore(t)

	entry := &NotificationLog{UserID: "42", DetectionID: 5, Channel: ChannelEmail, Status: NotifyPending}
	inserted, err := store.InsertNotificationLog(entry)
	require.NoError(t, err)
	assert.True(t, inserted)

	dup := &NotificationLog{UserID: "42", DetectionID: 5, Channel: ChannelEmail, Status: NotifyPending}
	inserted, err = store.InsertNotificationLog(dup)
	require.NoError(t, err)
	assert.False(t, inserted)

	// Same user, different channel is a separate tuple.
	sms := &NotificationLog{UserID: "42", DetectionID: 5, Channel: ChannelSMS, Status: NotifyPending}
	inserted, err = store.InsertNotificationLog(sms)
	require.NoError(t, err)
	assert.True(t, inserted)
}

func TestFinalizeNotificationLog(t *testing.T) {
	store := newTestStore(t)

	entry := &NotificationLog{UserID: "42", DetectionID: 5, Channel: ChannelEmail, Status: NotifyPending}
	inserted, err := store.InsertNotificationLog(entry)
	require.NoError(t, err)
	require.True(t, inserted)

	now := time.Now()
	require.NoError(t, store.FinalizeNotificationLog(entry.ID, NotifySent, "", &now))

	got, err := store.GetNotificationLog("42", 5, ChannelEmail)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, NotifySent, got.Status)
	require.NotNil(t, got.SentAt)

	sent, err := store.HasSentNotification("42", 5, ChannelEmail)
	require.NoError(t, err)
	assert.True(t, sent)
}

func TestListUsersNearbyUnsupportedOnSQLite(t *testing.T) {
	store := newTestStore(t)

	_, err := store.ListUsersNearby(-27.5, 153.0, 10)
	require.ErrorIs(t, err, ErrGeoQueryUnsupported)
}

func TestStoredSettingsLatestWins(t *testing.T) {
	store := newTestStore(t)

	got, err := store.GetLatestStoredSettings()
	require.NoError(t, err)
	assert.Nil(t, got)

	first := &StoredSettings{ConfidenceThreshold: floatPtr(0.4)}
	require.NoError(t, store.DB.Create(first).Error)
	second := &StoredSettings{ConfidenceThreshold: floatPtr(0.6), UpdatedAt: time.Now().Add(time.Minute)}
	require.NoError(t, store.DB.Create(second).Error)

	got, err = store.GetLatestStoredSettings()
	require.NoError(t, err)
	require.NotNil(t, got)
	require.NotNil(t, got.ConfidenceThreshold)
	assert.InDelta(t, 0.6, *got.ConfidenceThreshold, 1e-9)
}
