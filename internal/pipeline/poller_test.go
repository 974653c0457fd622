package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snakeguard/snakeguard-go/internal/datastore"
)

func newTestPoller(t *testing.T, rig *testRig) *Poller {
	t.Helper()
	cfg := rig.store.Settings.Pipeline
	cfg.PollLimit = 10
	cfg.PollMaxAge = 24 * time.Hour
	cfg.PollMinConfidence = 0.5
	cfg.PollDelay = time.Millisecond
	return NewPoller(rig.store, rig.proc, cfg)
}

func TestSweepProcessesBacklog(t *testing.T) {
	rig := newTestRig(t)
	poller := newTestPoller(t, rig)

	for i := 0; i < 3; i++ {
		d := &datastore.Detection{ImageURL: "http://cam/img.jpg", Confidence: 0.8}
		require.NoError(t, rig.store.InsertDetection(d))
	}

	batch, err := poller.Sweep(context.Background(), SweepOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, batch.Found)
	assert.Equal(t, 3, batch.Succeeded)
	assert.Equal(t, 0, batch.Failed)

	// Everything is processed now, the next sweep finds nothing.
	batch, err = poller.Sweep(context.Background(), SweepOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, batch.Found)
}

func TestSweepHonorsConfidenceFloor(t *testing.T) {
	rig := newTestRig(t)
	poller := newTestPoller(t, rig)

	low := &datastore.Detection{ImageURL: "a", Confidence: 0.2}
	high := &datastore.Detection{ImageURL: "b", Confidence: 0.8}
	require.NoError(t, rig.store.InsertDetection(low))
	require.NoError(t, rig.store.InsertDetection(high))

	batch, err := poller.Sweep(context.Background(), SweepOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, batch.Found)
	require.Len(t, batch.Items, 1)
	assert.Equal(t, high.ID, batch.Items[0].DetectionID)

	// The low-confidence detection stays unprocessed for later.
	got, err := rig.store.GetDetection(low.ID)
	require.NoError(t, err)
	assert.False(t, got.Processed)
}

func TestSweepOptionsOverrideConfig(t *testing.T) {
	rig := newTestRig(t)
	poller := newTestPoller(t, rig)

	for i := 0; i < 3; i++ {
		d := &datastore.Detection{ImageURL: "http://cam/img.jpg", Confidence: 0.8}
		require.NoError(t, rig.store.InsertDetection(d))
	}

	// A per-call limit trumps the configured one.
	batch, err := poller.Sweep(context.Background(), SweepOptions{Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, batch.Found)

	// A per-call confidence floor above every detection finds nothing.
	floor := 0.95
	batch, err = poller.Sweep(context.Background(), SweepOptions{MinConfidence: &floor})
	require.NoError(t, err)
	assert.Equal(t, 0, batch.Found)

	// A window that excludes the backlog finds nothing either.
	batch, err = poller.Sweep(context.Background(), SweepOptions{MaxAge: time.Nanosecond})
	require.NoError(t, err)
	assert.Equal(t, 0, batch.Found)
}

func TestSweepRespectsCancellation(t *testing.T) {
	rig := newTestRig(t)
	poller := newTestPoller(t, rig)

	for i := 0; i < 3; i++ {
		d := &datastore.Detection{ImageURL: "http://cam/img.jpg", Confidence: 0.8}
		require.NoError(t, rig.store.InsertDetection(d))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := poller.Sweep(ctx, SweepOptions{})
	require.Error(t, err)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	rig := newTestRig(t)
	cfg := rig.store.Settings.Pipeline
	cfg.PollInterval = 10 * time.Millisecond
	cfg.PollDelay = time.Millisecond
	poller := NewPoller(rig.store, rig.proc, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := poller.Run(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
