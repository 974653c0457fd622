// Package conf holds the application configuration: static settings
// loaded from file/env via viper, and the runtime pipeline settings
// merged from the stored settings row.
package conf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// LogConfig defines the configuration for a log file
type LogConfig struct {
	Enabled    bool   // true to enable this log
	Path       string // path to log file
	MaxSize    int    // max log file size in MB before rotation
	MaxBackups int    // how many rotated files to keep
	MaxAge     int    // days to retain rotated files
}

// ClassifierConfig holds the multimodal classification provider settings
type ClassifierConfig struct {
	Enabled bool          // true to enable remote classification
	Model   string        // model identifier, e.g. gemini-2.0-flash
	APIKey  string        // provider API key
	Timeout time.Duration // per-request ceiling for a describe call
	Retries int           // attempts per describe call
}

// EmailConfig holds SMTP submission settings for the email channel
type EmailConfig struct {
	Enabled  bool
	Host     string // SMTP server host
	Port     int    // SMTP submission port
	Username string
	Password string
	From     string // sender address
	UseTLS   bool
}

// SMSConfig holds the HTTP messaging API settings for the SMS channel
type SMSConfig struct {
	Enabled  bool
	URL      string // carrier API endpoint
	Username string // basic auth user
	Password string // basic auth password
	From     string // sender number or id
	Timeout  time.Duration
}

// WebhookConfig holds the admin-configured detection webhook
type WebhookConfig struct {
	Enabled bool
	URL     string
	Timeout time.Duration
}

// NotifyConfig groups notification fan-out settings
type NotifyConfig struct {
	Email              EmailConfig
	SMS                SMSConfig
	Webhook            WebhookConfig
	GlobalEmails       []string // operator-configured recipients, not geo-filtered
	GlobalPhoneNumbers []string // operator-configured SMS recipients
	DefaultRadiusKm    float64  // fallback personal alert radius
	HighRiskConfidence float64  // fixed cutoff for high-risk-only preference
	PacingPerSecond    float64  // provider dispatch rate
	PacingBurst        int
}

// PipelineConfig groups orchestrator and poller settings
type PipelineConfig struct {
	ConfidenceThreshold float64       // default minimum confidence to process
	AlertsEnabled       bool          // default master alert toggle
	AlertRadiusKm       float64       // default geo radius for recipients
	SettingsCacheTTL    time.Duration // stored-settings cache window
	PollLimit           int           // default batch size for the retry poller
	PollMaxAge          time.Duration // default trailing window for unprocessed scans
	PollMinConfidence   float64       // default confidence floor for the poller
	PollInterval        time.Duration // daemon mode scan interval
	PollDelay           time.Duration // fixed delay between detections in a batch
}

// Settings contains all application settings
type Settings struct {
	Debug bool // true to enable debug mode

	// Runtime values, not stored in config file
	Version   string `yaml:"-"` // Version from build
	BuildDate string `yaml:"-"` // Build date from build

	Main struct {
		Name string    // instance name, used to identify the alert source
		Log  LogConfig // logging configuration
	}

	Pipeline PipelineConfig

	Classifier ClassifierConfig

	Notify NotifyConfig

	WebServer struct {
		Enabled bool
		Port    string
	}

	Output struct {
		SQLite struct {
			Enabled bool   // true to enable sqlite output
			Path    string // path to sqlite database
		}

		MySQL struct {
			Enabled  bool
			Username string
			Password string
			Database string
			Host     string
			Port     int
		}
	}
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
	once             sync.Once
)

// Load reads the configuration into a new Settings struct.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	viper.SetEnvPrefix("SNAKEGUARD")
	viper.AutomaticEnv()

	// function defined in defaults.go
	setDefaultConfig()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// Missing config file is fine, defaults and env cover it
			return nil
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// GetDefaultConfigPaths returns the config file search paths in
// priority order: XDG config dir, /etc/snakeguard, current directory.
func GetDefaultConfigPaths() ([]string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("error resolving user config dir: %w", err)
	}
	return []string{
		filepath.Join(configDir, "snakeguard"),
		"/etc/snakeguard",
		".",
	}, nil
}

// GetSettings returns the current settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// Setting returns the current settings instance, initializing it if necessary
func Setting() *Settings {
	once.Do(func() {
		if settingsInstance == nil {
			if _, err := Load(); err != nil {
				panic(fmt.Sprintf("error loading settings: %v", err))
			}
		}
	})
	return GetSettings()
}
