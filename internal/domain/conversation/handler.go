package conversation

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/moonraker/engage/internal/platform/auth"
	"github.com/moonraker/engage/pkg/pagination"
)

// Handler serves the practice-facing conversation endpoints.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/conversations", auth.RequireRole(auth.RoleOwner, auth.RoleTherapist, auth.RoleStaff))
	g.GET("", h.ListConversations)
	g.GET("/:id", h.GetConversation)
	g.GET("/:id/messages", h.GetHistory)
	g.PATCH("/:id/complete", h.CompleteConversation)
}

func (h *Handler) ListConversations(c echo.Context) error {
	practiceID, err := requirePractice(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)

	if patientID := c.QueryParam("patient_id"); patientID != "" {
		convs, total, err := h.svc.ListByPatient(c.Request().Context(), practiceID, patientID, pg.Limit, pg.Offset)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, pagination.NewResponse(convs, total, pg.Limit, pg.Offset))
	}

	convs, total, err := h.svc.List(c.Request().Context(), practiceID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(convs, total, pg.Limit, pg.Offset))
}

func (h *Handler) GetConversation(c echo.Context) error {
	practiceID, err := requirePractice(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	conv, err := h.svc.Get(c.Request().Context(), practiceID, id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "conversation not found")
	}
	return c.JSON(http.StatusOK, conv)
}

func (h *Handler) GetHistory(c echo.Context) error {
	practiceID, err := requirePractice(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if _, err := h.svc.Get(c.Request().Context(), practiceID, id); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "conversation not found")
	}
	pg := pagination.FromContext(c)
	entries, err := h.svc.History(c.Request().Context(), practiceID, id, pg.Limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"conversation_id": id,
		"messages":        entries,
	})
}

func (h *Handler) CompleteConversation(c echo.Context) error {
	practiceID, err := requirePractice(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var body struct {
		Outcome string `json:"outcome"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	conv, err := h.svc.Complete(c.Request().Context(), practiceID, id, body.Outcome)
	if err != nil {
		if err == ErrNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "conversation not found")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, conv)
}

func requirePractice(c echo.Context) (string, error) {
	practiceID := auth.PracticeIDFromContext(c.Request().Context())
	if practiceID == "" {
		return "", echo.NewHTTPError(http.StatusForbidden, "practice context required")
	}
	return practiceID, nil
}
