package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/snakeguard/snakeguard-go/internal/datastore"
	"github.com/snakeguard/snakeguard-go/internal/errors"
)

// AssignPlaybook resolves and assigns the response playbook for a
// classified detection. Repeat calls return the existing assignment.
func (c *Controller) AssignPlaybook(ctx echo.Context) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return c.HandleError(ctx, err, "invalid detection id")
	}
	d, err := c.DS.GetDetection(id)
	if err != nil {
		return c.HandleError(ctx, err, "detection lookup failed")
	}
	if d.RiskLevel == nil || *d.RiskLevel == "" {
		return c.HandleError(ctx, errors.Newf("detection %d has no risk level, classify it first", id).
			Component("api").Category(errors.CategoryValidation).Build(),
			"detection not classified")
	}

	species := ""
	if d.Species != nil {
		species = *d.Species
	}
	pb, err := c.Resolver.Resolve(*d.RiskLevel, species)
	if err != nil {
		return c.HandleError(ctx, err, "playbook lookup failed")
	}
	if pb == nil {
		return c.HandleError(ctx, errors.Newf("no playbook matches risk level %q", *d.RiskLevel).
			Component("api").Category(errors.CategoryNotFound).Build(),
			"no matching playbook")
	}

	assignment, err := c.Manager.Assign(d.ID, pb)
	if err != nil {
		return c.HandleError(ctx, err, "assignment failed")
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"playbook":   pb,
		"assignment": assignment,
	})
}

// GetAssignment returns the assignment for a detection.
func (c *Controller) GetAssignment(ctx echo.Context) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return c.HandleError(ctx, err, "invalid detection id")
	}
	assignment, err := c.DS.GetAssignmentByDetection(id)
	if err != nil {
		return c.HandleError(ctx, err, "assignment lookup failed")
	}
	if assignment == nil {
		return c.HandleError(ctx, errors.Newf("no assignment for detection %d", id).
			Component("api").Category(errors.CategoryNotFound).Build(),
			"assignment not found")
	}
	return ctx.JSON(http.StatusOK, assignment)
}

// StepUpdateRequest carries partial step completion updates.
type StepUpdateRequest struct {
	Steps []struct {
		StepID    uint   `json:"stepId"`
		Completed bool   `json:"completed"`
		Note      string `json:"note,omitempty"`
	} `json:"steps"`
}

// UpdateAssignmentSteps merges partial step completion state. Steps not
// listed keep their prior state; unknown step ids are ignored.
func (c *Controller) UpdateAssignmentSteps(ctx echo.Context) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return c.HandleError(ctx, err, "invalid assignment id")
	}
	var req StepUpdateRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, errors.New(err).
			Component("api").Category(errors.CategoryValidation).Build(),
			"invalid request body")
	}
	if len(req.Steps) == 0 {
		return c.HandleError(ctx, errors.Newf("steps list is empty").
			Component("api").Category(errors.CategoryValidation).Build(),
			"nothing to update")
	}

	updates := make([]datastore.StepUpdate, 0, len(req.Steps))
	for _, s := range req.Steps {
		updates = append(updates, datastore.StepUpdate{
			StepID:    s.StepID,
			Completed: s.Completed,
			Note:      s.Note,
		})
	}
	assignment, err := c.Manager.UpdateSteps(id, updates)
	if err != nil {
		return c.HandleError(ctx, err, "step update failed")
	}
	return ctx.JSON(http.StatusOK, assignment)
}

// StatusUpdateRequest moves an assignment through its lifecycle.
type StatusUpdateRequest struct {
	Status string `json:"status"`
}

// UpdateAssignmentStatus sets the assignment status. Completing every
// step does not complete the assignment, this transition is explicit.
func (c *Controller) UpdateAssignmentStatus(ctx echo.Context) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return c.HandleError(ctx, err, "invalid assignment id")
	}
	var req StatusUpdateRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, errors.New(err).
			Component("api").Category(errors.CategoryValidation).Build(),
			"invalid request body")
	}
	if err := c.Manager.SetStatus(id, req.Status); err != nil {
		return c.HandleError(ctx, err, "status update failed")
	}
	return ctx.JSON(http.StatusOK, map[string]any{"id": id, "status": req.Status})
}
