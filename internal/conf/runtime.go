package conf

// Runtime is the effective per-run pipeline configuration: static
// defaults merged with the operator's stored settings row. It is
// computed fresh for each orchestrator run rather than held as global
// mutable state.
type Runtime struct {
	ConfidenceThreshold float64 // minimum detection confidence to process
	AlertsEnabled       bool    // master toggle for playbook + notification stages
	AlertRadiusKm       float64 // geo radius for recipient eligibility
	EmailEnabled        bool
	SMSEnabled          bool
	WebhookURL          string
}

// StoredOverrides mirrors the operator settings row. Nil fields mean
// "no override, keep the default".
type StoredOverrides struct {
	ConfidenceThreshold *float64
	AlertsEnabled       *bool
	AlertRadiusKm       *float64
	EmailEnabled        *bool
	SMSEnabled          *bool
	WebhookURL          *string
}

// RuntimeDefaults derives the default Runtime from static settings.
// The webhook URL is exported only when the channel is enabled; a
// stored override can still set one.
func RuntimeDefaults(s *Settings) Runtime {
	webhookURL := ""
	if s.Notify.Webhook.Enabled {
		webhookURL = s.Notify.Webhook.URL
	}
	return Runtime{
		ConfidenceThreshold: s.Pipeline.ConfidenceThreshold,
		AlertsEnabled:       s.Pipeline.AlertsEnabled,
		AlertRadiusKm:       s.Pipeline.AlertRadiusKm,
		EmailEnabled:        s.Notify.Email.Enabled,
		SMSEnabled:          s.Notify.SMS.Enabled,
		WebhookURL:          webhookURL,
	}
}

// MergeRuntime applies stored overrides on top of the defaults. Pure
// function: neither argument is mutated.
func MergeRuntime(defaults Runtime, over *StoredOverrides) Runtime {
	merged := defaults
	if over == nil {
		return merged
	}
	if over.ConfidenceThreshold != nil {
		merged.ConfidenceThreshold = *over.ConfidenceThreshold
	}
	if over.AlertsEnabled != nil {
		merged.AlertsEnabled = *over.AlertsEnabled
	}
	if over.AlertRadiusKm != nil {
		merged.AlertRadiusKm = *over.AlertRadiusKm
	}
	if over.EmailEnabled != nil {
		merged.EmailEnabled = *over.EmailEnabled
	}
	if over.SMSEnabled != nil {
		merged.SMSEnabled = *over.SMSEnabled
	}
	if over.WebhookURL != nil && *over.WebhookURL != "" {
		merged.WebhookURL = *over.WebhookURL
	}
	return merged
}
