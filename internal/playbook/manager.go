package playbook

import (
	"log/slog"

	"github.com/snakeguard/snakeguard-go/internal/datastore"
	"github.com/snakeguard/snakeguard-go/internal/logging"
)

var logger = logging.ForService("playbook")

// Manager handles incident assignment bookkeeping: one active
// assignment per detection, with checklist state projected from the
// playbook at assignment time.
type Manager struct {
	ds datastore.Interface
}

// NewManager returns an assignment manager backed by the given store.
func NewManager(ds datastore.Interface) *Manager {
	return &Manager{ds: ds}
}

// Assign upserts the assignment for a detection. On first call the
// playbook's steps are projected to uncompleted checklist entries;
// repeated calls for the same detection return the existing assignment
// untouched.
func (m *Manager) Assign(detectionID uint, pb *datastore.Playbook) (*datastore.IncidentAssignment, error) {
	assignment := &datastore.IncidentAssignment{
		DetectionID: detectionID,
		PlaybookID:  pb.ID,
		Status:      datastore.AssignmentActive,
	}

	steps := make([]datastore.AssignmentStep, 0, len(pb.Steps))
	for _, s := range pb.Steps {
		steps = append(steps, datastore.AssignmentStep{
			StepID:    s.ID,
			Title:     s.Title,
			Completed: false,
		})
	}

	created, err := m.ds.UpsertAssignment(assignment, steps)
	if err != nil {
		return nil, err
	}
	if created {
		logger.Info("assignment created",
			slog.Uint64("detection_id", uint64(detectionID)),
			slog.Uint64("playbook_id", uint64(pb.ID)),
			slog.Int("steps", len(steps)))
		return m.ds.GetAssignmentByDetection(detectionID)
	}

	// Existing row wins; the upsert wrote nothing.
	return m.ds.GetAssignmentByDetection(detectionID)
}

// UpdateSteps merges a partial list of step completion updates into the
// assignment's checklist.
func (m *Manager) UpdateSteps(assignmentID uint, updates []datastore.StepUpdate) (*datastore.IncidentAssignment, error) {
	return m.ds.MergeStepStates(assignmentID, updates)
}

// SetStatus moves the assignment through its lifecycle
// (active, completed, cancelled).
func (m *Manager) SetStatus(assignmentID uint, status string) error {
	return m.ds.UpdateAssignmentStatus(assignmentID, status)
}
