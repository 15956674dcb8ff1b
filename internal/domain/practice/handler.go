package practice

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/moonraker/engage/internal/platform/auth"
)

// Handler serves the practice configuration pages of the dashboard. Reads
// are open to the care team; writes are owner-only.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/practice", auth.RequireRole(auth.RoleOwner, auth.RoleTherapist))
	ownerOnly := auth.RequireRole(auth.RoleOwner)

	g.GET("/info", h.GetInfo)
	g.PUT("/info", h.UpdateInfo, ownerOnly)
	g.GET("/locations", h.GetLocations)
	g.PUT("/locations", h.UpdateLocations, ownerOnly)
	g.GET("/services", h.GetServices)
	g.PUT("/services", h.UpdateServices, ownerOnly)
	g.GET("/branding", h.GetBranding)
	g.PUT("/branding", h.UpdateBranding, ownerOnly)
	g.GET("/instructions", h.GetInstructions)
	g.PUT("/instructions", h.UpdateInstructions, ownerOnly)
	g.GET("/appointments", h.GetAppointments)
	g.PUT("/appointments", h.UpdateAppointments, ownerOnly)
	g.GET("/website-integration", h.WebsiteIntegration)
	g.GET("/knowledge-base", h.GetKnowledgeBase)
	g.PUT("/knowledge-base", h.UpdateKnowledgeBase, ownerOnly)
}

func (h *Handler) load(c echo.Context) (*Practice, error) {
	practiceID := auth.PracticeIDFromContext(c.Request().Context())
	if practiceID == "" {
		return nil, echo.NewHTTPError(http.StatusForbidden, "practice context required")
	}
	p, err := h.svc.Get(c.Request().Context(), practiceID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, echo.NewHTTPError(http.StatusNotFound, "practice not found")
		}
		return nil, echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return p, nil
}

func requirePractice(c echo.Context) (string, error) {
	practiceID := auth.PracticeIDFromContext(c.Request().Context())
	if practiceID == "" {
		return "", echo.NewHTTPError(http.StatusForbidden, "practice context required")
	}
	return practiceID, nil
}

func (h *Handler) GetInfo(c echo.Context) error {
	p, err := h.load(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"basic_information": map[string]interface{}{
			"practice_name":      p.Name,
			"practice_email":     p.Email,
			"phone_number":       p.Phone,
			"website":            p.Website,
			"hours_of_operation": p.HoursOfOperation,
		},
		"practice_configuration": map[string]interface{}{
			"team_size":        teamSizeLabel(p.TeamSize),
			"service_delivery": deliveryLabel(p.ServiceDelivery),
		},
		"insurance_billing": map[string]interface{}{
			"accepts_insurance": p.AcceptsInsurance,
		},
	})
}

func (h *Handler) UpdateInfo(c echo.Context) error {
	practiceID, err := requirePractice(c)
	if err != nil {
		return err
	}
	var upd InfoUpdate
	if err := c.Bind(&upd); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.UpdateInfo(c.Request().Context(), practiceID, upd)
	if err != nil {
		return updateError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":    "Practice information updated successfully",
		"updated_at": p.UpdatedAt,
	})
}

func (h *Handler) GetLocations(c echo.Context) error {
	p, err := h.load(c)
	if err != nil {
		return err
	}
	locations := p.Locations
	if locations == nil {
		locations = []Location{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"locations": locations})
}

func (h *Handler) UpdateLocations(c echo.Context) error {
	practiceID, err := requirePractice(c)
	if err != nil {
		return err
	}
	var req struct {
		Locations []Location `json:"locations"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.ReplaceLocations(c.Request().Context(), practiceID, req.Locations)
	if err != nil {
		return updateError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":    "Locations updated successfully",
		"locations":  p.Locations,
		"updated_at": p.UpdatedAt,
	})
}

func (h *Handler) GetServices(c echo.Context) error {
	p, err := h.load(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p.Services)
}

func (h *Handler) UpdateServices(c echo.Context) error {
	practiceID, err := requirePractice(c)
	if err != nil {
		return err
	}
	var info ServicesInfo
	if err := c.Bind(&info); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.UpdateServices(c.Request().Context(), practiceID, info)
	if err != nil {
		return updateError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":    "Services updated successfully",
		"updated_at": p.UpdatedAt,
	})
}

func (h *Handler) GetBranding(c echo.Context) error {
	p, err := h.load(c)
	if err != nil {
		return err
	}
	branding := p.Branding
	if branding.BotName == "" {
		branding = DefaultBranding()
	}
	return c.JSON(http.StatusOK, branding)
}

func (h *Handler) UpdateBranding(c echo.Context) error {
	practiceID, err := requirePractice(c)
	if err != nil {
		return err
	}
	var b Branding
	if err := c.Bind(&b); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.UpdateBranding(c.Request().Context(), practiceID, b)
	if err != nil {
		return updateError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":    "Chatbot branding updated successfully",
		"updated_at": p.UpdatedAt,
	})
}

func (h *Handler) GetInstructions(c echo.Context) error {
	p, err := h.load(c)
	if err != nil {
		return err
	}
	ins := p.Instructions
	if ins.ShouldSay == "" && ins.MaxMessagesPerConversation == 0 {
		ins = DefaultBotInstructions()
	}
	return c.JSON(http.StatusOK, ins)
}

func (h *Handler) UpdateInstructions(c echo.Context) error {
	practiceID, err := requirePractice(c)
	if err != nil {
		return err
	}
	var ins BotInstructions
	if err := c.Bind(&ins); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.UpdateInstructions(c.Request().Context(), practiceID, ins)
	if err != nil {
		return updateError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":    "Bot instructions updated successfully",
		"updated_at": p.UpdatedAt,
	})
}

func (h *Handler) GetAppointments(c echo.Context) error {
	p, err := h.load(c)
	if err != nil {
		return err
	}
	cfg := p.Appointments
	if len(cfg.AvailableDays) == 0 {
		cfg = DefaultAppointmentSettings()
	}
	return c.JSON(http.StatusOK, cfg)
}

func (h *Handler) UpdateAppointments(c echo.Context) error {
	practiceID, err := requirePractice(c)
	if err != nil {
		return err
	}
	var cfg AppointmentSettings
	if err := c.Bind(&cfg); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.UpdateAppointments(c.Request().Context(), practiceID, cfg)
	if err != nil {
		return updateError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":    "Appointment booking updated successfully",
		"updated_at": p.UpdatedAt,
	})
}

func (h *Handler) WebsiteIntegration(c echo.Context) error {
	practiceID, err := requirePractice(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"embed_code": fmt.Sprintf(`<script src="https://moonraker-engage.com/widget.js" data-practice-id="%s"></script>`, practiceID),
		"widget_settings": map[string]interface{}{
			"position":            "bottom-right",
			"theme":               "auto",
			"expanded_by_default": false,
		},
		"installation_guide": "Copy the embed code and paste it before the closing </body> tag on your website.",
	})
}

func (h *Handler) GetKnowledgeBase(c echo.Context) error {
	p, err := h.load(c)
	if err != nil {
		return err
	}
	kb := p.KnowledgeBase
	if kb.FAQs == nil {
		kb.FAQs = []FAQ{}
	}
	if kb.WebsiteLinks == nil {
		kb.WebsiteLinks = []WebsiteLink{}
	}
	return c.JSON(http.StatusOK, kb)
}

func (h *Handler) UpdateKnowledgeBase(c echo.Context) error {
	practiceID, err := requirePractice(c)
	if err != nil {
		return err
	}
	var kb KnowledgeBase
	if err := c.Bind(&kb); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.UpdateKnowledgeBase(c.Request().Context(), practiceID, kb)
	if err != nil {
		return updateError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":    "Knowledge base updated successfully",
		"updated_at": p.UpdatedAt,
	})
}

func updateError(err error) error {
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "practice not found")
	}
	return echo.NewHTTPError(http.StatusBadRequest, err.Error())
}

func teamSizeLabel(size string) string {
	switch size {
	case TeamSmallGroup:
		return "Small Group"
	case TeamGroupPractice:
		return "Group Practice"
	default:
		return "Solo"
	}
}
