package webhook

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/moonraker/engage/internal/platform/auth"
)

// Handler exposes endpoint management over HTTP. Endpoints are always
// scoped to the caller's practice.
type Handler struct {
	manager *Manager
}

// NewHandler creates a webhook HTTP handler.
func NewHandler(manager *Manager) *Handler {
	return &Handler{manager: manager}
}

// RegisterRoutes mounts webhook management under the given group. Callers
// should guard the group with owner-level RBAC.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/webhooks", h.RegisterEndpoint)
	g.GET("/webhooks", h.ListEndpoints)
	g.DELETE("/webhooks/:id", h.DeleteEndpoint)
	g.POST("/webhooks/:id/pause", h.PauseEndpoint)
	g.POST("/webhooks/:id/resume", h.ResumeEndpoint)
	g.POST("/webhooks/:id/test", h.TestEndpoint)
	g.GET("/webhooks/:id/deliveries", h.DeliveryLogs)
	g.POST("/webhooks/deliveries/:id/retry", h.RetryDelivery)
}

type registerEndpointRequest struct {
	URL    string   `json:"url"`
	Secret string   `json:"secret"`
	Events []string `json:"events"`
}

func (h *Handler) RegisterEndpoint(c echo.Context) error {
	var req registerEndpointRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	practiceID := auth.PracticeIDFromContext(c.Request().Context())
	ep, err := h.manager.RegisterEndpoint(c.Request().Context(), practiceID, req.URL, req.Secret, req.Events)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, ep)
}

func (h *Handler) ListEndpoints(c echo.Context) error {
	practiceID := auth.PracticeIDFromContext(c.Request().Context())
	limit, offset := pageParams(c)

	eps, total, err := h.manager.store.ListEndpoints(c.Request().Context(), practiceID, limit, offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list endpoints")
	}
	// Secrets are returned once at registration, never on list.
	redacted := make([]*Endpoint, 0, len(eps))
	for _, ep := range eps {
		cp := *ep
		cp.Secret = ""
		redacted = append(redacted, &cp)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"data":  redacted,
		"total": total,
	})
}

func (h *Handler) DeleteEndpoint(c echo.Context) error {
	ep, err := h.endpointForCaller(c)
	if err != nil {
		return err
	}
	if err := h.manager.store.DeleteEndpoint(c.Request().Context(), ep.ID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to delete endpoint")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) PauseEndpoint(c echo.Context) error {
	ep, err := h.endpointForCaller(c)
	if err != nil {
		return err
	}
	if err := h.manager.PauseEndpoint(c.Request().Context(), ep.ID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to pause endpoint")
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "paused"})
}

func (h *Handler) ResumeEndpoint(c echo.Context) error {
	ep, err := h.endpointForCaller(c)
	if err != nil {
		return err
	}
	if err := h.manager.ResumeEndpoint(c.Request().Context(), ep.ID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to resume endpoint")
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "active"})
}

func (h *Handler) TestEndpoint(c echo.Context) error {
	ep, err := h.endpointForCaller(c)
	if err != nil {
		return err
	}
	attempt, err := h.manager.TestEndpoint(c.Request().Context(), ep.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, attempt)
}

func (h *Handler) DeliveryLogs(c echo.Context) error {
	ep, err := h.endpointForCaller(c)
	if err != nil {
		return err
	}
	limit, offset := pageParams(c)
	logs, total, err := h.manager.DeliveryLogs(c.Request().Context(), ep.ID, limit, offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list deliveries")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"data":  logs,
		"total": total,
	})
}

func (h *Handler) RetryDelivery(c echo.Context) error {
	attempt, err := h.manager.RetryDelivery(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, attempt)
}

// endpointForCaller loads the :id endpoint and checks it belongs to the
// caller's practice.
func (h *Handler) endpointForCaller(c echo.Context) (*Endpoint, error) {
	ep, err := h.manager.store.GetEndpoint(c.Request().Context(), c.Param("id"))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusNotFound, "endpoint not found")
	}
	practiceID := auth.PracticeIDFromContext(c.Request().Context())
	if practiceID != "" && ep.PracticeID != practiceID {
		return nil, echo.NewHTTPError(http.StatusNotFound, "endpoint not found")
	}
	return ep, nil
}

func pageParams(c echo.Context) (limit, offset int) {
	limit = 50
	if v, err := strconv.Atoi(c.QueryParam("limit")); err == nil && v > 0 && v <= 200 {
		limit = v
	}
	if v, err := strconv.Atoi(c.QueryParam("offset")); err == nil && v >= 0 {
		offset = v
	}
	return limit, offset
}
