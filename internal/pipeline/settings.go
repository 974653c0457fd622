package pipeline

import (
	"log/slog"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/snakeguard/snakeguard-go/internal/conf"
	"github.com/snakeguard/snakeguard-go/internal/datastore"
)

const runtimeCacheKey = "runtime"

// SettingsCache serves the effective runtime configuration: static
// defaults merged with the operator's stored settings row, cached for a
// short TTL so every detection does not hit the database.
type SettingsCache struct {
	ds       datastore.Interface
	defaults conf.Runtime
	cache    *gocache.Cache
}

// NewSettingsCache builds the cache from static settings. TTL zero or
// negative disables caching entirely, every call reads the store.
func NewSettingsCache(ds datastore.Interface, s *conf.Settings) *SettingsCache {
	ttl := s.Pipeline.SettingsCacheTTL
	if ttl <= 0 {
		ttl = time.Nanosecond
	}
	return &SettingsCache{
		ds:       ds,
		defaults: conf.RuntimeDefaults(s),
		cache:    gocache.New(ttl, 2*ttl),
	}
}

// Runtime returns the effective configuration for this moment. Store
// read failures degrade to the static defaults so a database hiccup
// never stalls processing.
func (c *SettingsCache) Runtime() conf.Runtime {
	if cached, found := c.cache.Get(runtimeCacheKey); found {
		if rt, ok := cached.(conf.Runtime); ok {
			return rt
		}
	}

	stored, err := c.ds.GetLatestStoredSettings()
	if err != nil {
		logger.Warn("reading stored settings failed, using defaults", slog.Any("error", err))
		return c.defaults
	}

	rt := conf.MergeRuntime(c.defaults, overridesFrom(stored))
	c.cache.SetDefault(runtimeCacheKey, rt)
	return rt
}

// Invalidate drops the cached runtime, forcing the next call to reread
// the stored settings row.
func (c *SettingsCache) Invalidate() {
	c.cache.Delete(runtimeCacheKey)
}

func overridesFrom(s *datastore.StoredSettings) *conf.StoredOverrides {
	if s == nil {
		return nil
	}
	return &conf.StoredOverrides{
		ConfidenceThreshold: s.ConfidenceThreshold,
		AlertsEnabled:       s.AlertsEnabled,
		AlertRadiusKm:       s.AlertRadiusKm,
		EmailEnabled:        s.EmailEnabled,
		SMSEnabled:          s.SMSEnabled,
		WebhookURL:          s.WebhookURL,
	}
}
