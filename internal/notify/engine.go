package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/snakeguard/snakeguard-go/internal/conf"
	"github.com/snakeguard/snakeguard-go/internal/datastore"
	"github.com/snakeguard/snakeguard-go/internal/errors"
	"github.com/snakeguard/snakeguard-go/internal/logging"
	obsmetrics "github.com/snakeguard/snakeguard-go/internal/observability/metrics"
)

// genericFirstAid is sent when no playbook matched, so an alert never
// ships with an empty guidance section.
const genericFirstAid = "Keep your distance, do not attempt to handle the snake, " +
	"keep children and pets away, and call your local emergency services if anyone is bitten."

var logger = logging.ForService("notify")

// Result aggregates one fan-out run.
type Result struct {
	EmailsSent       int      `json:"emailsSent"`
	SMSSent          int      `json:"smsSent"`
	GlobalEmailsSent int      `json:"globalEmailsSent"`
	GlobalSMSSent    int      `json:"globalSmsSent"`
	WebhookTriggered bool     `json:"webhookTriggered"`
	Errors           []string `json:"errors"`
}

// Engine computes eligible recipients and dispatches notifications per
// channel independently: a failure for one user or channel never blocks
// another.
type Engine struct {
	ds      datastore.Interface
	cfg     conf.NotifyConfig
	email   Provider
	sms     Provider
	webhook *WebhookClient
	limiter *rate.Limiter
	metrics *obsmetrics.NotificationMetrics
}

// SetMetrics attaches the shared notification metrics. Optional; the
// engine works without it.
func (e *Engine) SetMetrics(m *obsmetrics.NotificationMetrics) {
	e.metrics = m
}

// candidate pairs a recipient profile with its distance to the
// detection and the user's stored preferences.
type candidate struct {
	user     datastore.UserProfile
	distance float64
	settings *datastore.UserSettings
}

// NewEngine wires the fan-out engine. The limiter paces dispatches to
// keep load on SMTP/SMS providers predictable.
func NewEngine(ds datastore.Interface, cfg conf.NotifyConfig, email, sms Provider, webhook *WebhookClient) *Engine {
	perSecond := cfg.PacingPerSecond
	if perSecond <= 0 {
		perSecond = 2
	}
	burst := cfg.PacingBurst
	if burst < 1 {
		burst = 1
	}
	return &Engine{
		ds:      ds,
		cfg:     cfg,
		email:   email,
		sms:     sms,
		webhook: webhook,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

// SendNotifications fans one detection out to nearby recipients, the
// operator's global lists, and the admin webhook. Per-recipient and
// per-channel failures are collected into the result, never propagated.
func (e *Engine) SendNotifications(ctx context.Context, d *datastore.Detection, pb *datastore.Playbook, rt conf.Runtime) (*Result, error) {
	if d == nil || !d.HasCoordinates() {
		return nil, errors.Newf("detection has no coordinates").
			Component("notify").
			Category(errors.CategoryValidation).
			Build()
	}

	result := &Result{}
	msg := e.renderMessage(d, pb)

	candidates := e.resolveCandidates(d, rt, result)
	for i := range candidates {
		e.notifyCandidate(ctx, &candidates[i], d, rt, msg, result)
	}

	e.notifyGlobal(ctx, d, rt, msg, result)
	e.triggerWebhook(ctx, d, rt, result)

	logger.Info("fan-out complete",
		slog.Uint64("detection_id", uint64(d.ID)),
		slog.Int("emails_sent", result.EmailsSent),
		slog.Int("sms_sent", result.SMSSent),
		slog.Int("global_emails_sent", result.GlobalEmailsSent),
		slog.Int("global_sms_sent", result.GlobalSMSSent),
		slog.Bool("webhook_triggered", result.WebhookTriggered),
		slog.Int("errors", len(result.Errors)))
	return result, nil
}

// resolveCandidates prefers the server-side geo-radius query and falls
// back to scanning all located profiles with a haversine distance.
func (e *Engine) resolveCandidates(d *datastore.Detection, rt conf.Runtime, result *Result) []candidate {
	lat, lng := *d.Latitude, *d.Longitude

	users, err := e.ds.ListUsersNearby(lat, lng, rt.AlertRadiusKm)
	if err != nil {
		if !errors.Is(err, datastore.ErrGeoQueryUnsupported) {
			logger.Warn("geo query failed, falling back to profile scan", slog.Any("error", err))
		}
		users, err = e.ds.ListUserProfiles()
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("listing recipients: %v", err))
			return nil
		}
	}

	candidates := make([]candidate, 0, len(users))
	for i := range users {
		u := users[i]
		if u.Latitude == nil || u.Longitude == nil {
			continue
		}
		settings, err := e.ds.GetUserSettings(u.ID)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("settings for user %d: %v", u.ID, err))
			settings = nil
		}
		candidates = append(candidates, candidate{
			user:     u,
			distance: HaversineKm(lat, lng, *u.Latitude, *u.Longitude),
			settings: settings,
		})
	}
	return candidates
}

// notifyCandidate applies the per-user gates and dispatches each
// enabled channel independently.
func (e *Engine) notifyCandidate(ctx context.Context, c *candidate, d *datastore.Detection, rt conf.Runtime, msg *Message, result *Result) {
	userID := fmt.Sprintf("%d", c.user.ID)

	if c.distance > e.userRadius(c.settings) {
		e.metrics.RecordGeoRejection()
		return
	}
	// Fixed cutoff, deliberately independent of the system threshold.
	if e.highRiskOnly(c.settings) && !e.isHighRisk(d) {
		return
	}

	if rt.EmailEnabled && e.email.IsEnabled() && c.user.Email != "" && e.emailAlerts(c.settings) {
		if e.dispatch(ctx, userID, d.ID, datastore.ChannelEmail, e.email, c.user.Email, msg, result) {
			result.EmailsSent++
		}
	}
	if rt.SMSEnabled && e.sms.IsEnabled() && c.user.Phone != "" && e.smsAlerts(c.settings) {
		if e.dispatch(ctx, userID, d.ID, datastore.ChannelSMS, e.sms, c.user.Phone, msg, result) {
			result.SMSSent++
		}
	}
}

// notifyGlobal fans out to the operator-configured recipient lists.
// Global recipients bypass geo filtering but not channel dedup.
func (e *Engine) notifyGlobal(ctx context.Context, d *datastore.Detection, rt conf.Runtime, msg *Message, result *Result) {
	if rt.EmailEnabled && e.email.IsEnabled() {
		for _, addr := range e.cfg.GlobalEmails {
			userID := "global:" + strings.ToLower(addr)
			if e.dispatch(ctx, userID, d.ID, datastore.ChannelEmail, e.email, addr, msg, result) {
				result.GlobalEmailsSent++
			}
		}
	}
	if rt.SMSEnabled && e.sms.IsEnabled() {
		for _, number := range e.cfg.GlobalPhoneNumbers {
			userID := "global:" + number
			if e.dispatch(ctx, userID, d.ID, datastore.ChannelSMS, e.sms, number, msg, result) {
				result.GlobalSMSSent++
			}
		}
	}
}

// triggerWebhook posts the raw detection to the admin webhook at most
// once per detection; failure is recorded but non-fatal.
func (e *Engine) triggerWebhook(ctx context.Context, d *datastore.Detection, rt conf.Runtime, result *Result) {
	if rt.WebhookURL == "" || e.webhook == nil {
		return
	}

	existing, err := e.ds.GetNotificationLog("webhook", d.ID, datastore.ChannelWebhook)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("webhook log lookup: %v", err))
		return
	}
	if existing != nil && existing.Status == datastore.NotifySent {
		result.WebhookTriggered = true
		return
	}

	entryID, ok := e.claimEntry(existing, "webhook", d.ID, datastore.ChannelWebhook, result)
	if !ok {
		return
	}

	if err := e.webhook.Trigger(ctx, rt.WebhookURL, d); err != nil {
		e.finalize(entryID, datastore.NotifyFailed, err.Error(), nil)
		e.metrics.RecordWebhookTrigger(datastore.NotifyFailed)
		result.Errors = append(result.Errors, fmt.Sprintf("webhook: %v", err))
		return
	}
	now := time.Now()
	e.finalize(entryID, datastore.NotifySent, "", &now)
	e.metrics.RecordWebhookTrigger(datastore.NotifySent)
	result.WebhookTriggered = true
}

// dispatch runs the idempotency gate, paces the send, and records the
// outcome in the notification log. Returns true when a message went out.
func (e *Engine) dispatch(ctx context.Context, userID string, detectionID uint, channel string, provider Provider, to string, msg *Message, result *Result) bool {
	existing, err := e.ds.GetNotificationLog(userID, detectionID, channel)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("%s log lookup for user %s: %v", channel, userID, err))
		return false
	}
	// Dedup: a sent row means this (user, detection, channel) is done.
	if existing != nil && existing.Status == datastore.NotifySent {
		e.metrics.RecordDedupSkip(channel)
		return false
	}

	entryID, ok := e.claimEntry(existing, userID, detectionID, channel, result)
	if !ok {
		return false
	}

	if err := e.limiter.Wait(ctx); err != nil {
		e.finalize(entryID, datastore.NotifyFailed, err.Error(), nil)
		result.Errors = append(result.Errors, fmt.Sprintf("%s to user %s: %v", channel, userID, err))
		return false
	}

	sendStart := time.Now()
	if err := provider.Send(ctx, to, msg); err != nil {
		e.finalize(entryID, datastore.NotifyFailed, err.Error(), nil)
		e.metrics.RecordDelivery(channel, datastore.NotifyFailed, time.Since(sendStart))
		result.Errors = append(result.Errors, fmt.Sprintf("%s to user %s: %v", channel, userID, err))
		return false
	}

	now := time.Now()
	e.finalize(entryID, datastore.NotifySent, "", &now)
	e.metrics.RecordDelivery(channel, datastore.NotifySent, time.Since(sendStart))
	return true
}

// claimEntry secures the log row for this attempt. A fresh insert that
// hits the unique constraint means another worker claimed the tuple
// first, so this one backs off; an existing failed/pending row is
// re-used, which is what makes failed sends retryable.
func (e *Engine) claimEntry(existing *datastore.NotificationLog, userID string, detectionID uint, channel string, result *Result) (uint, bool) {
	if existing != nil {
		return existing.ID, true
	}
	entry := &datastore.NotificationLog{
		UserID:      userID,
		DetectionID: detectionID,
		Channel:     channel,
		Status:      datastore.NotifyPending,
	}
	inserted, err := e.ds.InsertNotificationLog(entry)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("%s log insert for user %s: %v", channel, userID, err))
		return 0, false
	}
	if !inserted {
		return 0, false
	}
	return entry.ID, true
}

// finalize records the attempt outcome; log-write failures are logged
// only, never propagated.
func (e *Engine) finalize(entryID uint, status, errMsg string, sentAt *time.Time) {
	if err := e.ds.FinalizeNotificationLog(entryID, status, errMsg, sentAt); err != nil {
		logger.Error("failed to finalize notification log",
			slog.Uint64("entry_id", uint64(entryID)),
			slog.Any("error", err))
	}
}

// renderMessage builds the alert content from the detection and its
// playbook. When no playbook matched, generic first-aid guidance is
// used instead of omitting the section.
func (e *Engine) renderMessage(d *datastore.Detection, pb *datastore.Playbook) *Message {
	species := "Unknown Snake"
	if d.Species != nil && *d.Species != "" {
		species = *d.Species
	}
	risk := "unknown"
	if d.RiskLevel != nil && *d.RiskLevel != "" {
		risk = *d.RiskLevel
	}

	firstAid := genericFirstAid
	if pb != nil && strings.TrimSpace(pb.FirstAid) != "" {
		firstAid = pb.FirstAid
	}

	var b strings.Builder
	fmt.Fprintf(&b, "A %s was detected near your location (risk level: %s, confidence: %.0f%%).\n\n",
		species, risk, d.Confidence*100)
	if d.HasCoordinates() {
		fmt.Fprintf(&b, "Location: %.5f, %.5f\n", *d.Latitude, *d.Longitude)
	}
	if d.ImageURL != "" {
		fmt.Fprintf(&b, "Image: %s\n", d.ImageURL)
	}
	fmt.Fprintf(&b, "\nFirst aid: %s\n", firstAid)

	return &Message{
		Title: fmt.Sprintf("Snake alert: %s (%s risk)", species, risk),
		Body:  b.String(),
	}
}

// isHighRisk gates high-risk-only subscribers: both a high or critical
// risk level and sufficient confidence are required.
func (e *Engine) isHighRisk(d *datastore.Detection) bool {
	if d.RiskLevel == nil {
		return false
	}
	switch *d.RiskLevel {
	case datastore.RiskHigh, datastore.RiskCritical:
		return d.Confidence >= e.cfg.HighRiskConfidence
	default:
		return false
	}
}

// Preference helpers: nil settings or nil fields fall back to defaults.

func (e *Engine) userRadius(s *datastore.UserSettings) float64 {
	if s != nil && s.AlertRadiusKm != nil {
		return *s.AlertRadiusKm
	}
	return e.cfg.DefaultRadiusKm
}

func (e *Engine) highRiskOnly(s *datastore.UserSettings) bool {
	return s != nil && s.HighRiskOnly != nil && *s.HighRiskOnly
}

func (e *Engine) emailAlerts(s *datastore.UserSettings) bool {
	if s != nil && s.EmailAlerts != nil {
		return *s.EmailAlerts
	}
	return true
}

func (e *Engine) smsAlerts(s *datastore.UserSettings) bool {
	if s != nil && s.SMSAlerts != nil {
		return *s.SMSAlerts
	}
	return true
}
