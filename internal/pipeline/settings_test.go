package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snakeguard/snakeguard-go/internal/datastore"
)

func TestRuntimeDefaultsWithoutStoredRow(t *testing.T) {
	rig := newTestRig(t)
	cache := NewSettingsCache(rig.store, rig.store.Settings)

	rt := cache.Runtime()
	assert.InDelta(t, 0.5, rt.ConfidenceThreshold, 1e-9)
	assert.True(t, rt.AlertsEnabled)
	assert.InDelta(t, 50, rt.AlertRadiusKm, 1e-9)
	assert.True(t, rt.EmailEnabled)
}

func TestRuntimeAppliesStoredOverrides(t *testing.T) {
	rig := newTestRig(t)

	threshold := 0.8
	alerts := false
	require.NoError(t, rig.store.DB.Create(&datastore.StoredSettings{
		ConfidenceThreshold: &threshold,
		AlertsEnabled:       &alerts,
	}).Error)

	cache := NewSettingsCache(rig.store, rig.store.Settings)
	rt := cache.Runtime()
	assert.InDelta(t, 0.8, rt.ConfidenceThreshold, 1e-9)
	assert.False(t, rt.AlertsEnabled)
	// Fields without an override keep their defaults.
	assert.InDelta(t, 50, rt.AlertRadiusKm, 1e-9)
	assert.True(t, rt.EmailEnabled)
}

func TestRuntimeCachesWithinTTL(t *testing.T) {
	rig := newTestRig(t)
	rig.store.Settings.Pipeline.SettingsCacheTTL = time.Minute
	cache := NewSettingsCache(rig.store, rig.store.Settings)

	first := cache.Runtime()
	assert.InDelta(t, 0.5, first.ConfidenceThreshold, 1e-9)

	// A new stored row is not visible until the TTL expires or the
	// cache is invalidated.
	threshold := 0.9
	require.NoError(t, rig.store.DB.Create(&datastore.StoredSettings{
		ConfidenceThreshold: &threshold,
	}).Error)

	cached := cache.Runtime()
	assert.InDelta(t, 0.5, cached.ConfidenceThreshold, 1e-9)

	cache.Invalidate()
	fresh := cache.Runtime()
	assert.InDelta(t, 0.9, fresh.ConfidenceThreshold, 1e-9)
}
