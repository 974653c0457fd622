package playbook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snakeguard/snakeguard-go/internal/datastore"
)

func seedPlaybook(t *testing.T, store *datastore.SQLiteStore) *datastore.Playbook {
	t.Helper()
	pb := &datastore.Playbook{
		RiskLevel: datastore.RiskHigh,
		FirstAid:  "pressure bandage",
		Steps: []datastore.PlaybookStep{
			{Position: 1, Title: "Secure area"},
			{Position: 2, Title: "Call ranger"},
		},
	}
	require.NoError(t, store.SavePlaybook(pb))
	loaded, err := store.GetPlaybook(pb.ID)
	require.NoError(t, err)
	return &loaded
}

func TestAssignProjectsSteps(t *testing.T) {
	store := newTestStore(t)
	manager := NewManager(store)
	pb := seedPlaybook(t, store)

	assignment, err := manager.Assign(11, pb)
	require.NoError(t, err)
	require.NotNil(t, assignment)
	assert.Equal(t, datastore.AssignmentActive, assignment.Status)
	require.Len(t, assignment.Steps, 2)
	for _, s := range assignment.Steps {
		assert.False(t, s.Completed)
		assert.Nil(t, s.CompletedAt)
	}
}

func TestAssignIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	manager := NewManager(store)
	pb := seedPlaybook(t, store)

	first, err := manager.Assign(11, pb)
	require.NoError(t, err)

	// Complete a step, then re-assign: the existing assignment and its
	// step state must survive.
	_, err = manager.UpdateSteps(first.ID, []datastore.StepUpdate{
		{StepID: pb.Steps[0].ID, Completed: true},
	})
	require.NoError(t, err)

	second, err := manager.Assign(11, pb)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, first.ID, second.ID)

	completed := 0
	for _, s := range second.Steps {
		if s.Completed {
			completed++
		}
	}
	assert.Equal(t, 1, completed)
}

func TestSetStatusLifecycle(t *testing.T) {
	store := newTestStore(t)
	manager := NewManager(store)
	pb := seedPlaybook(t, store)

	assignment, err := manager.Assign(11, pb)
	require.NoError(t, err)

	require.NoError(t, manager.SetStatus(assignment.ID, datastore.AssignmentCompleted))

	got, err := store.GetAssignmentByDetection(11)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, datastore.AssignmentCompleted, got.Status)

	err = manager.SetStatus(assignment.ID, "archived")
	require.Error(t, err)
}

func TestCompletingAllStepsDoesNotCompleteAssignment(t *testing.T) {
	store := newTestStore(t)
	manager := NewManager(store)
	pb := seedPlaybook(t, store)

	assignment, err := manager.Assign(11, pb)
	require.NoError(t, err)

	updates := make([]datastore.StepUpdate, 0, len(pb.Steps))
	for _, s := range pb.Steps {
		updates = append(updates, datastore.StepUpdate{StepID: s.ID, Completed: true})
	}
	got, err := manager.UpdateSteps(assignment.ID, updates)
	require.NoError(t, err)

	for _, s := range got.Steps {
		assert.True(t, s.Completed)
	}
	assert.Equal(t, datastore.AssignmentActive, got.Status)
}
