package therapist

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/moonraker/engage/internal/domain/conversation"
	"github.com/moonraker/engage/internal/domain/patient"
	"github.com/moonraker/engage/internal/platform/auth"
	"github.com/moonraker/engage/internal/platform/crisis"
	"github.com/moonraker/engage/internal/platform/hipaa"
	"github.com/moonraker/engage/internal/platform/mcp"
	"github.com/moonraker/engage/pkg/pagination"
)

// Messenger is the slice of the CRM client the therapist surface needs for
// patient outreach.
type Messenger interface {
	Configured() bool
	SendSMS(ctx context.Context, contactID, message string) (*mcp.Message, error)
}

// Handler serves staff authentication and the therapist patient-care
// endpoints. Therapists see anonymized summaries and clinical insights; the
// CRM stays invisible.
type Handler struct {
	svc      *Service
	patients *patient.Service
	convs    *conversation.Service
	crm      Messenger
	logger   zerolog.Logger
}

func NewHandler(svc *Service, patients *patient.Service, convs *conversation.Service, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, patients: patients, convs: convs, logger: logger}
}

// SetMessenger wires CRM-backed patient messaging.
func (h *Handler) SetMessenger(m Messenger) { h.crm = m }

// RegisterPublicRoutes mounts login and refresh on the public API.
func (h *Handler) RegisterPublicRoutes(g *echo.Group) {
	g.POST("/auth/login", h.Login)
	g.POST("/auth/refresh", h.Refresh)
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/therapist", auth.RequireRole(auth.RoleOwner, auth.RoleTherapist))
	g.GET("/me", h.Me)
	g.GET("/patients", h.Patients)
	g.POST("/patients/:id/message", h.SendMessage)
	g.GET("/patients/:id/conversation", h.ConversationSummary)
	g.POST("/patients/:id/session-note", h.AddSessionNote)
	g.GET("/patients/:id/session-notes", h.SessionNotes)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Email == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email and password are required")
	}

	pair, t, err := h.svc.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, ErrInvalidCredentials.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
		"token_type":    pair.TokenType,
		"therapist":     t,
	})
}

func (h *Handler) Refresh(c echo.Context) error {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.RefreshToken == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "refresh_token is required")
	}

	pair, err := h.svc.Refresh(c.Request().Context(), req.RefreshToken)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid refresh token")
	}
	return c.JSON(http.StatusOK, pair)
}

func (h *Handler) Me(c echo.Context) error {
	practiceID, therapistID, err := requireTherapist(c)
	if err != nil {
		return err
	}
	t, err := h.svc.Get(c.Request().Context(), practiceID, therapistID)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "therapist not found")
	}
	return c.JSON(http.StatusOK, t)
}

// Patients returns the therapist's anonymized caseload with consent and
// risk counts. Owners see the whole practice with ?all=true.
func (h *Handler) Patients(c echo.Context) error {
	practiceID, therapistID, err := requireTherapist(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)

	scope := therapistID.String()
	if c.QueryParam("all") == "true" && auth.RoleFromContext(c.Request().Context()) == auth.RoleOwner {
		scope = ""
	}

	summaries, total, err := h.patients.ListSummaries(c.Request().Context(), practiceID, scope, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	highRisk := 0
	for _, s := range summaries {
		if s.RiskLevel == patient.RiskHigh || s.RiskLevel == patient.RiskCrisis {
			highRisk++
		}
	}
	funnel, err := h.patients.ConsentFunnel(c.Request().Context(), practiceID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"patients":              summaries,
		"total_count":           total,
		"high_risk_count":       highRisk,
		"pending_consent_count": funnel[patient.ConsentPending],
	})
}

type sendMessageRequest struct {
	Message     string `json:"message"`
	MessageType string `json:"message_type"`
}

// SendMessage relays a therapist message to the patient over CRM SMS.
func (h *Handler) SendMessage(c echo.Context) error {
	practiceID, therapistID, err := requireTherapist(c)
	if err != nil {
		return err
	}
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Message) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message is required")
	}
	if req.MessageType == "" {
		req.MessageType = "supportive_check_in"
	}

	p, err := h.patients.Get(c.Request().Context(), practiceID, patientID)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	}
	if h.crm == nil || !h.crm.Configured() {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "patient messaging is not configured")
	}
	if p.CRMContactID == nil {
		return echo.NewHTTPError(http.StatusConflict, "patient has no linked messaging contact")
	}

	sent, err := h.crm.SendSMS(c.Request().Context(), *p.CRMContactID, req.Message)
	if err != nil {
		h.logger.Error().Err(err).
			Str("practice_id", practiceID).
			Str("therapist_id", therapistID.String()).
			Msg("patient message send failed")
		return echo.NewHTTPError(http.StatusBadGateway, "failed to send message")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":         "Message sent",
		"message_type":    req.MessageType,
		"sent_at":         time.Now().UTC(),
		"delivery_status": sent.Status,
	})
}

// ConversationSummary builds the clinical review of a patient's most recent
// support chat: risk timeline, themes, and recommended actions.
func (h *Handler) ConversationSummary(c echo.Context) error {
	practiceID, _, err := requireTherapist(c)
	if err != nil {
		return err
	}
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()

	conv, err := h.resolveConversation(c, practiceID, patientID)
	if err != nil {
		return err
	}

	entries, err := h.convs.Review(ctx, practiceID, conv.ID, 200)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	var (
		risks           []string
		patientMessages []string
		sessionEntries  []crisis.Entry
		maxRisk         = crisis.RiskLow
	)
	for _, e := range entries {
		switch e.Sender {
		case conversation.SenderPatient, conversation.SenderVisitor:
			entry := crisis.Entry{Timestamp: e.Timestamp, Type: crisis.EntryPatient, Content: e.Message}
			if e.RiskLevel != nil {
				risks = append(risks, *e.RiskLevel)
				level := crisis.RiskLevel(*e.RiskLevel)
				if riskRankOf(level) > riskRankOf(maxRisk) {
					maxRisk = level
				}
				entry.EscalationTriggered = level == crisis.RiskHigh || level == crisis.RiskCrisis
			}
			patientMessages = append(patientMessages, e.Message)
			sessionEntries = append(sessionEntries, entry)
		case conversation.SenderBot:
			sessionEntries = append(sessionEntries, crisis.Entry{Timestamp: e.Timestamp, Type: crisis.EntryBot, Content: e.Message})
		}
	}

	alerts, err := h.patients.AlertsByPatient(ctx, practiceID, patientID, 50)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"conversation_id":      conv.ID,
		"patient_anonymous_id": hipaa.AnonymizePatientID(patientID.String()),
		"total_messages":       len(entries),
		"risk_assessments":     risks,
		"crisis_alerts":        len(alerts),
		"key_themes":           crisis.ExtractThemes(patientMessages),
		"ai_summary":           crisis.SessionSummary(sessionEntries, maxRisk),
		"recommended_actions":  recommendedActions(maxRisk, len(alerts)),
	})
}

func (h *Handler) resolveConversation(c echo.Context, practiceID string, patientID uuid.UUID) (*conversation.Conversation, error) {
	ctx := c.Request().Context()
	if raw := c.QueryParam("conversation_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid conversation_id")
		}
		conv, err := h.convs.Get(ctx, practiceID, id)
		if err != nil {
			return nil, echo.NewHTTPError(http.StatusNotFound, "conversation not found")
		}
		if conv.PatientID == nil || *conv.PatientID != patientID.String() {
			return nil, echo.NewHTTPError(http.StatusNotFound, "conversation not found")
		}
		return conv, nil
	}

	convs, _, err := h.convs.ListByPatient(ctx, practiceID, patientID.String(), 1, 0)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if len(convs) == 0 {
		return nil, echo.NewHTTPError(http.StatusNotFound, "patient has no conversations")
	}
	return convs[0], nil
}

type sessionNoteRequest struct {
	SessionDate     string  `json:"session_date"`
	NoteContent     string  `json:"note_content"`
	RiskAssessment  string  `json:"risk_assessment"`
	NextSessionPlan *string `json:"next_session_plan"`
}

func (h *Handler) AddSessionNote(c echo.Context) error {
	practiceID, therapistID, err := requireTherapist(c)
	if err != nil {
		return err
	}
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var req sessionNoteRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	sessionDate := time.Now().UTC()
	if req.SessionDate != "" {
		sessionDate, err = time.Parse("2006-01-02", req.SessionDate)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "session_date must be YYYY-MM-DD")
		}
	}

	if _, err := h.patients.Get(c.Request().Context(), practiceID, patientID); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	}

	note := &SessionNote{
		PracticeID:      practiceID,
		TherapistID:     therapistID,
		PatientID:       patientID,
		SessionDate:     sessionDate,
		Content:         req.NoteContent,
		RiskAssessment:  req.RiskAssessment,
		NextSessionPlan: req.NextSessionPlan,
	}
	if err := h.svc.AddSessionNote(c.Request().Context(), note); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	return c.JSON(http.StatusCreated, map[string]interface{}{
		"message":    "Session note added",
		"note_id":    note.ID,
		"created_at": note.CreatedAt,
	})
}

func (h *Handler) SessionNotes(c echo.Context) error {
	practiceID, _, err := requireTherapist(c)
	if err != nil {
		return err
	}
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	pg := pagination.FromContext(c)

	notes, err := h.svc.SessionNotes(c.Request().Context(), practiceID, patientID, pg.Limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"patient_id": patientID,
		"notes":      notes,
	})
}

func recommendedActions(maxRisk crisis.RiskLevel, alertCount int) []string {
	var actions []string
	if alertCount > 0 {
		actions = append(actions, "Review crisis alerts and confirm the safety plan")
	}
	if maxRisk == crisis.RiskHigh || maxRisk == crisis.RiskCrisis {
		actions = append(actions, "Schedule an immediate check-in")
	}
	actions = append(actions, "Continue supportive approach", "Schedule follow-up session")
	return actions
}

func riskRankOf(level crisis.RiskLevel) int {
	switch level {
	case crisis.RiskCrisis:
		return 3
	case crisis.RiskHigh:
		return 2
	case crisis.RiskModerate:
		return 1
	}
	return 0
}

func requireTherapist(c echo.Context) (string, uuid.UUID, error) {
	ctx := c.Request().Context()
	practiceID := auth.PracticeIDFromContext(ctx)
	if practiceID == "" {
		return "", uuid.Nil, echo.NewHTTPError(http.StatusForbidden, "practice context required")
	}
	therapistID, err := uuid.Parse(auth.UserIDFromContext(ctx))
	if err != nil {
		return "", uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "invalid token subject")
	}
	return practiceID, therapistID, nil
}
