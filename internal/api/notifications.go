package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/snakeguard/snakeguard-go/internal/datastore"
)

// SendNotifications fans one detection's alerts out on demand. Partial
// failures return 200 with the error list in the result body.
func (c *Controller) SendNotifications(ctx echo.Context) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return c.HandleError(ctx, err, "invalid detection id")
	}
	d, err := c.DS.GetDetection(id)
	if err != nil {
		return c.HandleError(ctx, err, "detection lookup failed")
	}

	rt := c.Runtime.Runtime()

	// Best effort playbook lookup for the message content; the generic
	// first-aid text is substituted when none resolves.
	var pb *datastore.Playbook
	if d.RiskLevel != nil && *d.RiskLevel != "" {
		species := ""
		if d.Species != nil {
			species = *d.Species
		}
		pb, _ = c.Resolver.Resolve(*d.RiskLevel, species)
	}

	res, err := c.Notifier.SendNotifications(ctx.Request().Context(), &d, pb, rt)
	if err != nil {
		return c.HandleError(ctx, err, "notification fan-out failed")
	}
	return ctx.JSON(http.StatusOK, res)
}

// ListNotificationLogs returns all dispatch log entries for a
// detection.
func (c *Controller) ListNotificationLogs(ctx echo.Context) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return c.HandleError(ctx, err, "invalid detection id")
	}
	logs, err := c.DS.ListNotificationLogs(id)
	if err != nil {
		return c.HandleError(ctx, err, "notification log lookup failed")
	}
	return ctx.JSON(http.StatusOK, logs)
}
