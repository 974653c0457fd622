// model.go this code defines the data model for the application
package datastore

import "time"

// Risk levels assigned by classification. Order matters for severity.
const (
	RiskLow      = "low"
	RiskMedium   = "medium"
	RiskHigh     = "high"
	RiskCritical = "critical"
)

// ValidRiskLevel reports whether s is a member of the risk level enum.
func ValidRiskLevel(s string) bool {
	switch s {
	case RiskLow, RiskMedium, RiskHigh, RiskCritical:
		return true
	}
	return false
}

// Assignment statuses.
const (
	AssignmentActive    = "active"
	AssignmentCompleted = "completed"
	AssignmentCancelled = "cancelled"
)

// Notification channels.
const (
	ChannelEmail   = "email"
	ChannelSMS     = "sms"
	ChannelWebhook = "webhook"
)

// Notification log statuses.
const (
	NotifyPending = "pending"
	NotifySent    = "sent"
	NotifyFailed  = "failed"
)

// Detection represents a single reported sighting event. Classification
// fields (Species, Venomous, RiskLevel) are nil until the adapter has
// run; Processed never reverts to false once set.
type Detection struct {
	ID         uint    `gorm:"primaryKey"`
	ImageURL   string  // reference to the captured image
	Confidence float64 `gorm:"index:idx_detections_processed_confidence"`
	Latitude   *float64
	Longitude  *float64
	Species    *string
	Venomous   *bool   // tri-state: nil means not yet classified
	RiskLevel  *string `gorm:"type:varchar(20)"`
	Processed  bool    `gorm:"index:idx_detections_processed_confidence"`
	Notes      string  `gorm:"type:text"` // diagnostic processing notes
	DetectedAt time.Time `gorm:"index"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// HasCoordinates reports whether the detection carries a geolocation.
func (d *Detection) HasCoordinates() bool {
	return d.Latitude != nil && d.Longitude != nil
}

// Classified reports whether classification fields are present.
func (d *Detection) Classified() bool {
	return d.Venomous != nil
}

// Playbook is a predefined response procedure keyed by risk level and
// optionally species. A nil Species marks the generic playbook for its
// risk level.
type Playbook struct {
	ID        uint    `gorm:"primaryKey"`
	RiskLevel string  `gorm:"type:varchar(20);index:idx_playbooks_risk"`
	Species   *string // nil means generic for this risk level
	FirstAid  string  `gorm:"type:text"`
	Steps     []PlaybookStep    `gorm:"foreignKey:PlaybookID;constraint:OnDelete:CASCADE"`
	Contacts  []PlaybookContact `gorm:"foreignKey:PlaybookID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PlaybookStep is one ordered checklist item of a playbook.
type PlaybookStep struct {
	ID          uint `gorm:"primaryKey"`
	PlaybookID  uint `gorm:"index;not null"`
	Position    int
	Title       string
	Description string `gorm:"type:text"`
}

// PlaybookContact is an emergency contact attached to a playbook.
type PlaybookContact struct {
	ID         uint `gorm:"primaryKey"`
	PlaybookID uint `gorm:"index;not null"`
	Name       string
	Role       string
	Phone      string
	Email      string
}

// IncidentAssignment binds one detection to one playbook and tracks
// checklist progress. The unique index on DetectionID is the
// idempotency key for upserts.
type IncidentAssignment struct {
	ID          uint   `gorm:"primaryKey"`
	DetectionID uint   `gorm:"uniqueIndex;not null"`
	PlaybookID  uint   `gorm:"index;not null"`
	Status      string `gorm:"type:varchar(20)"`
	Steps       []AssignmentStep `gorm:"foreignKey:AssignmentID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// AssignmentStep is the live completion state of one playbook step,
// projected from the playbook at assignment time.
type AssignmentStep struct {
	ID           uint `gorm:"primaryKey"`
	AssignmentID uint `gorm:"index;not null"`
	StepID       uint `gorm:"index;not null"` // originating PlaybookStep
	Title        string
	Completed    bool
	CompletedAt  *time.Time
	Note         string
}

// NotificationLog records one delivery attempt per (user, detection,
// channel). The composite unique index is the dedup/idempotency guard;
// insert-or-ignore against it makes concurrent fan-out safe.
type NotificationLog struct {
	ID          uint   `gorm:"primaryKey"`
	UserID      string `gorm:"uniqueIndex:idx_notiflog_user_detection_channel;size:191"`
	DetectionID uint   `gorm:"uniqueIndex:idx_notiflog_user_detection_channel"`
	Channel     string `gorm:"uniqueIndex:idx_notiflog_user_detection_channel;type:varchar(20)"`
	Status      string `gorm:"type:varchar(20)"`
	Error       string `gorm:"type:text"`
	SentAt      *time.Time
	CreatedAt   time.Time
}

// PipelineMetric is an append-only per-run record of pipeline outcomes.
type PipelineMetric struct {
	ID                      uint   `gorm:"primaryKey"`
	RunID                   string `gorm:"size:64"`
	DetectionID             uint   `gorm:"index"`
	ResponseTimeMs          int64
	Success                 bool
	ClassificationCompleted bool
	PlaybookAssigned        bool
	NotificationsSent       bool
	Errors                  string `gorm:"type:text"` // newline-joined error list
	CreatedAt               time.Time
}

// UserProfile is a registered alert recipient with an optional home
// location.
type UserProfile struct {
	ID        uint `gorm:"primaryKey"`
	Name      string
	Email     string
	Phone     string
	Latitude  *float64
	Longitude *float64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserSettings holds per-user notification preferences. Nil fields fall
// back to the system defaults when candidates are computed.
type UserSettings struct {
	ID            uint `gorm:"primaryKey"`
	UserID        uint `gorm:"uniqueIndex;not null"`
	AlertRadiusKm *float64
	HighRiskOnly  *bool
	EmailAlerts   *bool
	SMSAlerts     *bool
	UpdatedAt     time.Time
}

// StoredSettings is the operator settings row merged over static
// defaults at the start of each pipeline run. Nil fields mean "use the
// default".
type StoredSettings struct {
	ID                  uint `gorm:"primaryKey"`
	ConfidenceThreshold *float64
	AlertsEnabled       *bool
	AlertRadiusKm       *float64
	EmailEnabled        *bool
	SMSEnabled          *bool
	WebhookURL          *string
	UpdatedAt           time.Time
}
