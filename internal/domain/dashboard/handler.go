package dashboard

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/moonraker/engage/internal/platform/auth"
)

// Handler serves the dashboard pages. All routes require an authenticated
// member of the practice.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/dashboard", auth.RequireRole(auth.RoleOwner, auth.RoleTherapist))

	g.GET("/stats", h.Stats)
	g.GET("/conversations/recent", h.RecentConversations)
	g.GET("/chatbot/status", h.ChatbotStatus)
	g.GET("/analytics", h.Analytics)
	g.GET("/overview", h.Overview)

	// Owner-only debug view of recent CRM calls.
	g.GET("/crm-log", h.CRMLog, auth.RequireRole(auth.RoleOwner))
}

func requirePractice(c echo.Context) (string, error) {
	practiceID := auth.PracticeIDFromContext(c.Request().Context())
	if practiceID == "" {
		return "", echo.NewHTTPError(http.StatusForbidden, "practice context required")
	}
	return practiceID, nil
}

func (h *Handler) Stats(c echo.Context) error {
	practiceID, err := requirePractice(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.svc.Stats(c.Request().Context(), practiceID))
}

func (h *Handler) RecentConversations(c echo.Context) error {
	practiceID, err := requirePractice(c)
	if err != nil {
		return err
	}
	cards := h.svc.RecentCards(c.Request().Context(), practiceID, 5)
	return c.JSON(http.StatusOK, map[string]interface{}{"conversations": cards})
}

func (h *Handler) ChatbotStatus(c echo.Context) error {
	practiceID, err := requirePractice(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.svc.BotStatus(c.Request().Context(), practiceID))
}

func (h *Handler) Analytics(c echo.Context) error {
	practiceID, err := requirePractice(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.svc.Analytics(c.Request().Context(), practiceID))
}

func (h *Handler) Overview(c echo.Context) error {
	practiceID, err := requirePractice(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.svc.Overview(c.Request().Context(), practiceID))
}

func (h *Handler) CRMLog(c echo.Context) error {
	if _, err := requirePractice(c); err != nil {
		return err
	}
	calls, connected := h.svc.CRMCallLog(20)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"connected": connected,
		"calls":     calls,
	})
}
