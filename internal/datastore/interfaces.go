// interfaces.go: this code defines the interface for the database operations
package datastore

import (
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/snakeguard/snakeguard-go/internal/conf"
	"github.com/snakeguard/snakeguard-go/internal/errors"
)

// ErrGeoQueryUnsupported is returned by stores that cannot run a
// server-side geo-radius query; callers fall back to scanning profiles.
var ErrGeoQueryUnsupported = errors.NewStd("datastore: geo radius query not supported by this store")

// StepUpdate is a partial completion update for one assignment step.
type StepUpdate struct {
	StepID    uint
	Completed bool
	Note      string
}

// Interface abstracts the underlying database implementation and
// defines the interface for database operations.
type Interface interface {
	Open() error
	Close() error

	// detections
	GetDetection(id uint) (Detection, error)
	InsertDetection(d *Detection) error
	UpdateDetection(id uint, fields map[string]any) error
	SetClassification(id uint, species string, venomous bool, riskLevel string, confidence float64) (bool, error)
	ListUnprocessed(minConfidence float64, since time.Time, limit int) ([]Detection, error)

	// settings
	GetLatestStoredSettings() (*StoredSettings, error)

	// playbooks and assignments
	FindPlaybooks(riskLevel string) ([]Playbook, error)
	GetPlaybook(id uint) (Playbook, error)
	SavePlaybook(p *Playbook) error
	UpsertAssignment(a *IncidentAssignment, steps []AssignmentStep) (created bool, err error)
	GetAssignmentByDetection(detectionID uint) (*IncidentAssignment, error)
	MergeStepStates(assignmentID uint, updates []StepUpdate) (*IncidentAssignment, error)
	UpdateAssignmentStatus(assignmentID uint, status string) error

	// notification log
	InsertNotificationLog(entry *NotificationLog) (inserted bool, err error)
	GetNotificationLog(userID string, detectionID uint, channel string) (*NotificationLog, error)
	HasSentNotification(userID string, detectionID uint, channel string) (bool, error)
	FinalizeNotificationLog(id uint, status, errMsg string, sentAt *time.Time) error
	ListNotificationLogs(detectionID uint) ([]NotificationLog, error)

	// recipients
	ListUserProfiles() ([]UserProfile, error)
	ListUsersNearby(lat, lng, radiusKm float64) ([]UserProfile, error)
	GetUserSettings(userID uint) (*UserSettings, error)
	SaveUserProfile(p *UserProfile) error
	SaveUserSettings(s *UserSettings) error

	// metrics
	InsertMetric(m *PipelineMetric) error
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB *gorm.DB // GORM database instance
}

// New creates a new datastore instance based on the provided settings.
func New(settings *conf.Settings) Interface {
	switch {
	case settings.Output.SQLite.Enabled:
		return &SQLiteStore{
			Settings: settings,
		}
	case settings.Output.MySQL.Enabled:
		return &MySQLStore{
			Settings: settings,
		}
	default:
		return nil
	}
}

// GetDetection retrieves a detection by its ID.
func (ds *DataStore) GetDetection(id uint) (Detection, error) {
	var d Detection
	if err := ds.DB.First(&d, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Detection{}, errors.Newf("detection %d not found", id).
				Component("datastore").
				Category(errors.CategoryNotFound).
				Context("detection_id", id).
				Build()
		}
		return Detection{}, fmt.Errorf("getting detection %d: %w", id, err)
	}
	return d, nil
}

// InsertDetection stores a new detection record.
func (ds *DataStore) InsertDetection(d *Detection) error {
	if d.DetectedAt.IsZero() {
		d.DetectedAt = time.Now()
	}
	if err := ds.DB.Create(d).Error; err != nil {
		return fmt.Errorf("inserting detection: %w", err)
	}
	return nil
}

// UpdateDetection applies a partial field update to a detection row.
func (ds *DataStore) UpdateDetection(id uint, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	// processed is monotonic: never allow a reset to false
	if v, ok := fields["processed"]; ok {
		if b, isBool := v.(bool); isBool && !b {
			delete(fields, "processed")
		}
	}
	if err := ds.DB.Model(&Detection{}).Where("id = ?", id).Updates(fields).Error; err != nil {
		return fmt.Errorf("updating detection %d: %w", id, err)
	}
	return nil
}

// SetClassification writes classification fields once. The guard on a
// null venomous column makes the write single-shot: a second call for
// an already classified detection reports false and changes nothing.
func (ds *DataStore) SetClassification(id uint, species string, venomous bool, riskLevel string, confidence float64) (bool, error) {
	fields := map[string]any{
		"species":    species,
		"venomous":   venomous,
		"risk_level": riskLevel,
	}
	if confidence > 0 {
		fields["confidence"] = confidence
	}
	tx := ds.DB.Model(&Detection{}).
		Where("id = ? AND venomous IS NULL", id).
		Updates(fields)
	if tx.Error != nil {
		return false, fmt.Errorf("setting classification for detection %d: %w", id, tx.Error)
	}
	return tx.RowsAffected > 0, nil
}

// ListUnprocessed returns unprocessed detections at or above the
// confidence floor, detected within the trailing window, oldest first.
func (ds *DataStore) ListUnprocessed(minConfidence float64, since time.Time, limit int) ([]Detection, error) {
	var detections []Detection
	err := ds.DB.
		Where("processed = ? AND confidence >= ? AND detected_at >= ?", false, minConfidence, since).
		Order("detected_at asc").
		Limit(limit).
		Find(&detections).Error
	if err != nil {
		return nil, fmt.Errorf("listing unprocessed detections: %w", err)
	}
	return detections, nil
}

// GetLatestStoredSettings returns the most recent settings row, or nil
// when the operator has never saved one.
func (ds *DataStore) GetLatestStoredSettings() (*StoredSettings, error) {
	var s StoredSettings
	err := ds.DB.Order("updated_at desc").First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting stored settings: %w", err)
	}
	return &s, nil
}

// FindPlaybooks returns all playbooks for a risk level with steps and
// contacts preloaded, steps in checklist order.
func (ds *DataStore) FindPlaybooks(riskLevel string) ([]Playbook, error) {
	var playbooks []Playbook
	err := ds.DB.
		Preload("Steps", func(db *gorm.DB) *gorm.DB { return db.Order("position asc") }).
		Preload("Contacts").
		Where("risk_level = ?", riskLevel).
		Order("id asc").
		Find(&playbooks).Error
	if err != nil {
		return nil, fmt.Errorf("finding playbooks for risk %q: %w", riskLevel, err)
	}
	return playbooks, nil
}

// GetPlaybook retrieves one playbook with steps and contacts.
func (ds *DataStore) GetPlaybook(id uint) (Playbook, error) {
	var p Playbook
	err := ds.DB.
		Preload("Steps", func(db *gorm.DB) *gorm.DB { return db.Order("position asc") }).
		Preload("Contacts").
		First(&p, id).Error
	if err != nil {
		return Playbook{}, fmt.Errorf("getting playbook %d: %w", id, err)
	}
	return p, nil
}

// SavePlaybook stores a playbook with its steps and contacts.
func (ds *DataStore) SavePlaybook(p *Playbook) error {
	if err := ds.DB.Create(p).Error; err != nil {
		return fmt.Errorf("saving playbook: %w", err)
	}
	return nil
}

// UpsertAssignment creates the assignment and its projected step states
// in one transaction. The unique index on detection_id plus
// insert-or-ignore semantics guarantee at most one assignment per
// detection even under concurrent callers; repeated calls report
// created=false and write nothing.
func (ds *DataStore) UpsertAssignment(a *IncidentAssignment, steps []AssignmentStep) (bool, error) {
	created := false
	err := ds.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "detection_id"}},
			DoNothing: true,
		}).Create(a)
		if res.Error != nil {
			return fmt.Errorf("upserting assignment: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			// Lost the race or repeat call, keep the existing row.
			return nil
		}
		created = true
		for i := range steps {
			steps[i].AssignmentID = a.ID
		}
		if len(steps) > 0 {
			if err := tx.Create(&steps).Error; err != nil {
				return fmt.Errorf("creating assignment steps: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

// GetAssignmentByDetection returns the assignment for a detection with
// step states preloaded, or nil when none exists.
func (ds *DataStore) GetAssignmentByDetection(detectionID uint) (*IncidentAssignment, error) {
	var a IncidentAssignment
	err := ds.DB.
		Preload("Steps", func(db *gorm.DB) *gorm.DB { return db.Order("id asc") }).
		Where("detection_id = ?", detectionID).
		First(&a).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting assignment for detection %d: %w", detectionID, err)
	}
	return &a, nil
}

// MergeStepStates applies a partial list of step updates: only listed
// step ids are mutated, all others keep their prior state. Transitioning
// to completed stamps a completion timestamp.
func (ds *DataStore) MergeStepStates(assignmentID uint, updates []StepUpdate) (*IncidentAssignment, error) {
	err := ds.DB.Transaction(func(tx *gorm.DB) error {
		for _, u := range updates {
			var step AssignmentStep
			err := tx.Where("assignment_id = ? AND step_id = ?", assignmentID, u.StepID).First(&step).Error
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					// Unknown step ids are skipped, not an error.
					continue
				}
				return fmt.Errorf("loading step %d: %w", u.StepID, err)
			}

			fields := map[string]any{"completed": u.Completed}
			if u.Completed && !step.Completed {
				now := time.Now()
				fields["completed_at"] = &now
			}
			if !u.Completed {
				fields["completed_at"] = nil
			}
			if u.Note != "" {
				fields["note"] = u.Note
			}
			if err := tx.Model(&AssignmentStep{}).Where("id = ?", step.ID).Updates(fields).Error; err != nil {
				return fmt.Errorf("updating step %d: %w", u.StepID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var a IncidentAssignment
	if err := ds.DB.Preload("Steps", func(db *gorm.DB) *gorm.DB { return db.Order("id asc") }).
		First(&a, assignmentID).Error; err != nil {
		return nil, fmt.Errorf("reloading assignment %d: %w", assignmentID, err)
	}
	return &a, nil
}

// UpdateAssignmentStatus moves an assignment through its lifecycle.
func (ds *DataStore) UpdateAssignmentStatus(assignmentID uint, status string) error {
	switch status {
	case AssignmentActive, AssignmentCompleted, AssignmentCancelled:
	default:
		return errors.Newf("invalid assignment status %q", status).
			Component("datastore").
			Category(errors.CategoryValidation).
			Build()
	}
	if err := ds.DB.Model(&IncidentAssignment{}).Where("id = ?", assignmentID).
		Update("status", status).Error; err != nil {
		return fmt.Errorf("updating assignment %d status: %w", assignmentID, err)
	}
	return nil
}

// InsertNotificationLog inserts a log row guarded by the composite
// unique index. Returns false when a row for (user, detection, channel)
// already exists, which is the dedup signal for the fan-out engine.
func (ds *DataStore) InsertNotificationLog(entry *NotificationLog) (bool, error) {
	res := ds.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "user_id"}, {Name: "detection_id"}, {Name: "channel"},
		},
		DoNothing: true,
	}).Create(entry)
	if res.Error != nil {
		return false, fmt.Errorf("inserting notification log: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// GetNotificationLog returns the log row for a (user, detection,
// channel) tuple, or nil when no attempt has been recorded.
func (ds *DataStore) GetNotificationLog(userID string, detectionID uint, channel string) (*NotificationLog, error) {
	var entry NotificationLog
	err := ds.DB.
		Where("user_id = ? AND detection_id = ? AND channel = ?", userID, detectionID, channel).
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting notification log: %w", err)
	}
	return &entry, nil
}

// HasSentNotification reports whether a sent log row already exists for
// the given (user, detection, channel) tuple.
func (ds *DataStore) HasSentNotification(userID string, detectionID uint, channel string) (bool, error) {
	var count int64
	err := ds.DB.Model(&NotificationLog{}).
		Where("user_id = ? AND detection_id = ? AND channel = ? AND status = ?",
			userID, detectionID, channel, NotifySent).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("checking notification log: %w", err)
	}
	return count > 0, nil
}

// FinalizeNotificationLog records the outcome of a dispatch attempt.
func (ds *DataStore) FinalizeNotificationLog(id uint, status, errMsg string, sentAt *time.Time) error {
	fields := map[string]any{
		"status": status,
		"error":  errMsg,
	}
	if sentAt != nil {
		fields["sent_at"] = sentAt
	}
	if err := ds.DB.Model(&NotificationLog{}).Where("id = ?", id).Updates(fields).Error; err != nil {
		return fmt.Errorf("finalizing notification log %d: %w", id, err)
	}
	return nil
}

// ListNotificationLogs returns all log entries for a detection.
func (ds *DataStore) ListNotificationLogs(detectionID uint) ([]NotificationLog, error) {
	var logs []NotificationLog
	if err := ds.DB.Where("detection_id = ?", detectionID).Order("id asc").Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("listing notification logs: %w", err)
	}
	return logs, nil
}

// ListUserProfiles returns all profiles that carry coordinates.
func (ds *DataStore) ListUserProfiles() ([]UserProfile, error) {
	var users []UserProfile
	err := ds.DB.
		Where("latitude IS NOT NULL AND longitude IS NOT NULL").
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("listing user profiles: %w", err)
	}
	return users, nil
}

// ListUsersNearby is unsupported on the generic store; MySQL overrides
// it with a server-side spherical distance query.
func (ds *DataStore) ListUsersNearby(lat, lng, radiusKm float64) ([]UserProfile, error) {
	return nil, ErrGeoQueryUnsupported
}

// GetUserSettings returns a user's preferences, or nil when the user
// has never saved any (field defaults then apply).
func (ds *DataStore) GetUserSettings(userID uint) (*UserSettings, error) {
	var s UserSettings
	err := ds.DB.Where("user_id = ?", userID).First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting settings for user %d: %w", userID, err)
	}
	return &s, nil
}

// SaveUserProfile stores or updates a recipient profile.
func (ds *DataStore) SaveUserProfile(p *UserProfile) error {
	if err := ds.DB.Save(p).Error; err != nil {
		return fmt.Errorf("saving user profile: %w", err)
	}
	return nil
}

// SaveUserSettings stores or updates per-user preferences.
func (ds *DataStore) SaveUserSettings(s *UserSettings) error {
	if err := ds.DB.Save(s).Error; err != nil {
		return fmt.Errorf("saving user settings: %w", err)
	}
	return nil
}

// InsertMetric appends a pipeline run record.
func (ds *DataStore) InsertMetric(m *PipelineMetric) error {
	if err := ds.DB.Create(m).Error; err != nil {
		return fmt.Errorf("inserting pipeline metric: %w", err)
	}
	return nil
}
