package conf

import (
	"errors"
	"fmt"
)

// ValidateSettings checks the loaded configuration for values that
// would break the pipeline at runtime.
func ValidateSettings(s *Settings) error {
	var errs []error

	if s.Pipeline.ConfidenceThreshold < 0 || s.Pipeline.ConfidenceThreshold > 1 {
		errs = append(errs, fmt.Errorf("pipeline.confidencethreshold must be within [0,1], got %v", s.Pipeline.ConfidenceThreshold))
	}
	if s.Pipeline.PollLimit < 1 {
		errs = append(errs, fmt.Errorf("pipeline.polllimit must be at least 1, got %d", s.Pipeline.PollLimit))
	}
	if s.Pipeline.PollMinConfidence < 0 || s.Pipeline.PollMinConfidence > 1 {
		errs = append(errs, fmt.Errorf("pipeline.pollminconfidence must be within [0,1], got %v", s.Pipeline.PollMinConfidence))
	}
	if s.Notify.HighRiskConfidence < 0 || s.Notify.HighRiskConfidence > 1 {
		errs = append(errs, fmt.Errorf("notify.highriskconfidence must be within [0,1], got %v", s.Notify.HighRiskConfidence))
	}
	if s.Notify.DefaultRadiusKm < 0 {
		errs = append(errs, fmt.Errorf("notify.defaultradiuskm must not be negative, got %v", s.Notify.DefaultRadiusKm))
	}
	if s.Classifier.Enabled && s.Classifier.Model == "" {
		errs = append(errs, errors.New("classifier.model must be set when the classifier is enabled"))
	}
	if s.Notify.SMS.Enabled && s.Notify.SMS.URL == "" {
		errs = append(errs, errors.New("notify.sms.url must be set when the SMS channel is enabled"))
	}
	if s.Notify.Email.Enabled && s.Notify.Email.Host == "" {
		errs = append(errs, errors.New("notify.email.host must be set when the email channel is enabled"))
	}
	if !s.Output.SQLite.Enabled && !s.Output.MySQL.Enabled {
		errs = append(errs, errors.New("either output.sqlite or output.mysql must be enabled"))
	}

	return errors.Join(errs...)
}
