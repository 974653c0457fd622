package conf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSettings() *Settings {
	s := &Settings{}
	s.Pipeline.ConfidenceThreshold = 0.5
	s.Pipeline.PollLimit = 10
	s.Pipeline.PollMinConfidence = 0.5
	s.Notify.HighRiskConfidence = 0.7
	s.Notify.DefaultRadiusKm = 10
	s.Output.SQLite.Enabled = true
	s.Output.SQLite.Path = "test.db"
	return s
}

func TestValidateSettingsAcceptsDefaults(t *testing.T) {
	require.NoError(t, ValidateSettings(validSettings()))
}

func TestValidateSettingsRejectsBadValues(t *testing.T) {
	s := validSettings()
	s.Pipeline.ConfidenceThreshold = 1.5
	assert.Error(t, ValidateSettings(s))

	s = validSettings()
	s.Pipeline.PollLimit = 0
	assert.Error(t, ValidateSettings(s))

	s = validSettings()
	s.Notify.SMS.Enabled = true // no URL
	assert.Error(t, ValidateSettings(s))

	s = validSettings()
	s.Classifier.Enabled = true // no model
	assert.Error(t, ValidateSettings(s))

	s = validSettings()
	s.Output.SQLite.Enabled = false
	assert.Error(t, ValidateSettings(s))
}

func TestValidateSettingsCollectsAllErrors(t *testing.T) {
	s := validSettings()
	s.Pipeline.ConfidenceThreshold = -1
	s.Notify.DefaultRadiusKm = -5
	err := ValidateSettings(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "confidencethreshold")
	assert.Contains(t, err.Error(), "defaultradiuskm")
}
