package hipaa

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/moonraker/engage/internal/platform/auth"
)

// RetentionHandler exposes the retention policy table to platform admins.
// Policies are read-only over HTTP; changing how long chat transcripts or
// crisis documentation are kept is a code change, not an API call.
type RetentionHandler struct {
	service *RetentionService
}

func NewRetentionHandler(service *RetentionService) *RetentionHandler {
	return &RetentionHandler{service: service}
}

// RegisterRetentionRoutes mounts the admin retention routes on the API group.
func RegisterRetentionRoutes(g *echo.Group, service *RetentionService) {
	h := NewRetentionHandler(service)

	admin := g.Group("/admin/retention-policies", auth.RequireRole(auth.RoleAdmin))
	admin.GET("", h.HandleListPolicies)
	admin.GET("/:resourceType", h.HandleGetPolicy)

	g.GET("/admin/retention-status", h.HandleRetentionStatus, auth.RequireRole(auth.RoleAdmin))
}

// HandleListPolicies serves GET /admin/retention-policies.
func (h *RetentionHandler) HandleListPolicies(c echo.Context) error {
	policies := h.service.GetAllPolicies()
	return c.JSON(http.StatusOK, echo.Map{
		"policies": policies,
		"total":    len(policies),
	})
}

// HandleGetPolicy serves GET /admin/retention-policies/:resourceType.
func (h *RetentionHandler) HandleGetPolicy(c echo.Context) error {
	resourceType := c.Param("resourceType")
	policy := h.service.GetPolicy(resourceType)
	if policy == nil {
		return c.JSON(http.StatusNotFound, map[string]string{
			"error": "no retention policy found for resource type: " + resourceType,
		})
	}
	return c.JSON(http.StatusOK, policy)
}

// RetentionStatusSummary reports one resource type's policy alongside its
// purge behavior, so an admin can confirm what the nightly sweep will do.
type RetentionStatusSummary struct {
	ResourceType     string `json:"resource_type"`
	RetentionDays    int    `json:"retention_days"`
	ArchiveAfterDays int    `json:"archive_after_days"`
	PurgeAfterDays   int    `json:"purge_after_days"`
	AutoPurges       bool   `json:"auto_purges"`
}

// HandleRetentionStatus serves GET /admin/retention-status.
func (h *RetentionHandler) HandleRetentionStatus(c echo.Context) error {
	policies := h.service.GetAllPolicies()

	summaries := make([]RetentionStatusSummary, 0, len(policies))
	for _, p := range policies {
		summaries = append(summaries, RetentionStatusSummary{
			ResourceType:     p.ResourceType,
			RetentionDays:    p.RetentionDays,
			ArchiveAfterDays: p.ArchiveAfter,
			PurgeAfterDays:   p.PurgeAfter,
			AutoPurges:       p.PurgeAfter > 0,
		})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"summaries":   summaries,
		"as_of":       time.Now().UTC(),
		"total_types": len(summaries),
	})
}
