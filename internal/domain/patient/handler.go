package patient

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/moonraker/engage/internal/platform/auth"
	"github.com/moonraker/engage/pkg/pagination"
)

// Handler serves the practice-facing patient and crisis alert endpoints.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/patients", auth.RequireRole(auth.RoleOwner, auth.RoleTherapist))
	g.POST("", h.CreatePatient)
	g.GET("", h.ListPatients)
	g.GET("/:id", h.GetPatient)
	g.PUT("/:id/consent", h.UpdateConsent)
	g.PUT("/:id/risk", h.UpdateRisk)
	g.GET("/:id/alerts", h.PatientAlerts)

	a := api.Group("/alerts", auth.RequireRole(auth.RoleOwner, auth.RoleTherapist))
	a.GET("", h.ListAlerts)
	a.POST("/:id/acknowledge", h.AcknowledgeAlert)
}

func (h *Handler) CreatePatient(c echo.Context) error {
	practiceID, err := requirePractice(c)
	if err != nil {
		return err
	}

	var p Patient
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p.PracticeID = practiceID

	if err := h.svc.Create(c.Request().Context(), &p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, &p)
}

func (h *Handler) ListPatients(c echo.Context) error {
	practiceID, err := requirePractice(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)

	patients, total, err := h.svc.List(c.Request().Context(), practiceID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(patients, total, pg.Limit, pg.Offset))
}

func (h *Handler) GetPatient(c echo.Context) error {
	practiceID, err := requirePractice(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, err := h.svc.Get(c.Request().Context(), practiceID, id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) UpdateConsent(c echo.Context) error {
	practiceID, err := requirePractice(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var body struct {
		ConsentStatus string `json:"consent_status"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	p, err := h.svc.UpdateConsent(c.Request().Context(), practiceID, id, body.ConsentStatus)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "patient not found")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) UpdateRisk(c echo.Context) error {
	practiceID, err := requirePractice(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var body struct {
		RiskLevel string `json:"risk_level"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	p, err := h.svc.UpdateRisk(c.Request().Context(), practiceID, id, body.RiskLevel)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "patient not found")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) PatientAlerts(c echo.Context) error {
	practiceID, err := requirePractice(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	pg := pagination.FromContext(c)

	alerts, err := h.svc.AlertsByPatient(c.Request().Context(), practiceID, id, pg.Limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"patient_id": id,
		"alerts":     alerts,
	})
}

func (h *Handler) ListAlerts(c echo.Context) error {
	practiceID, err := requirePractice(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)

	status := c.QueryParam("status")
	if status != "" && status != AlertOpen && status != AlertAcknowledged && status != AlertResolved {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid alert status")
	}

	alerts, total, err := h.svc.ListAlerts(c.Request().Context(), practiceID, status, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(alerts, total, pg.Limit, pg.Offset))
}

func (h *Handler) AcknowledgeAlert(c echo.Context) error {
	practiceID, err := requirePractice(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	a, err := h.svc.AcknowledgeAlert(c.Request().Context(), practiceID, id)
	if err != nil {
		if errors.Is(err, ErrAlertNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "crisis alert not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, a)
}

func requirePractice(c echo.Context) (string, error) {
	practiceID := auth.PracticeIDFromContext(c.Request().Context())
	if practiceID == "" {
		return "", echo.NewHTTPError(http.StatusForbidden, "practice context required")
	}
	return practiceID, nil
}
