package patient

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/moonraker/engage/internal/domain/conversation"
	"github.com/moonraker/engage/internal/platform/analytics"
	"github.com/moonraker/engage/internal/platform/auth"
	"github.com/moonraker/engage/internal/platform/chatbot"
	"github.com/moonraker/engage/internal/platform/crisis"
	"github.com/moonraker/engage/internal/platform/hipaa"
	"github.com/moonraker/engage/internal/platform/notification"
	"github.com/moonraker/engage/internal/platform/stream"
	"github.com/moonraker/engage/internal/platform/webhook"
	"github.com/moonraker/engage/internal/platform/websocket"
)

// SupportHandler serves the patient support chat. Like the website widget,
// the chat surface never sees a 5xx: any storage failure collapses to the
// canned fallback reply with crisis resources attached.
type SupportHandler struct {
	patients *Service
	convs    *conversation.Service
	sessions *chatbot.PatientStore
	notifier *notification.Manager
	alertTo  struct{ email, sms string }
	hub      *websocket.Hub
	events   stream.Publisher
	hooks    *webhook.Manager
	metrics  *analytics.Tracker
	logger   zerolog.Logger
}

func NewSupportHandler(patients *Service, convs *conversation.Service, sessions *chatbot.PatientStore, logger zerolog.Logger) *SupportHandler {
	return &SupportHandler{
		patients: patients,
		convs:    convs,
		sessions: sessions,
		events:   stream.NopPublisher{},
		logger:   logger,
	}
}

// SetNotifier wires crisis notifications with the practice's on-call
// destinations.
func (h *SupportHandler) SetNotifier(m *notification.Manager, emailTo, smsTo string) {
	h.notifier = m
	h.alertTo.email = emailTo
	h.alertTo.sms = smsTo
}

// SetHub wires the websocket alert broadcast.
func (h *SupportHandler) SetHub(hub *websocket.Hub) { h.hub = hub }

// SetPublisher wires the event stream.
func (h *SupportHandler) SetPublisher(p stream.Publisher) { h.events = p }

// SetWebhooks wires outbound webhook delivery.
func (h *SupportHandler) SetWebhooks(m *webhook.Manager) { h.hooks = m }

// SetTracker wires chat metrics.
func (h *SupportHandler) SetTracker(t *analytics.Tracker) { h.metrics = t }

// RegisterPublicRoutes mounts the support chat on the public API. Resource
// endpoints are open; everything that touches a patient requires a patient
// token.
func (h *SupportHandler) RegisterPublicRoutes(g *echo.Group, tm *auth.TokenManager) {
	open := g.Group("/patient-chat")
	open.GET("/emergency-resources", h.EmergencyResources)
	open.GET("/session-info", h.SessionInfo)
	open.GET("/wellness-check", h.WellnessCheck)

	chat := g.Group("/patient-chat", auth.PatientTokenMiddleware(tm))
	chat.POST("/message", h.HandleMessage)
	chat.POST("/consent", h.UpdateConsent)
	chat.GET("/history", h.History)
	chat.POST("/session/end", h.EndSession)
}

type supportRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

type supportResponse struct {
	Message           string            `json:"message"`
	RiskLevel         string            `json:"risk_level"`
	SessionID         string            `json:"session_id"`
	Timestamp         time.Time         `json:"timestamp"`
	Escalated         bool              `json:"escalated"`
	TherapistNotified bool              `json:"therapist_notified"`
	Resources         map[string]string `json:"resources,omitempty"`
}

func (h *SupportHandler) HandleMessage(c echo.Context) error {
	ctx := c.Request().Context()

	practiceID := auth.PracticeIDFromContext(ctx)
	patientID, err := uuid.Parse(auth.UserIDFromContext(ctx))
	if err != nil || practiceID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}

	if err := h.patients.EnsureConsent(ctx, practiceID, patientID); err != nil {
		if errors.Is(err, ErrConsentRequired) {
			return echo.NewHTTPError(http.StatusForbidden, ErrConsentRequired.Error())
		}
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	}

	var req supportRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Message) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message is required")
	}
	sessionID := c.Request().Header.Get("Session-Id")
	if sessionID == "" {
		sessionID = req.SessionID
	}

	start := time.Now()
	assessment := crisis.Detect(req.Message)

	var (
		reply      string
		techniques []string
		resources  map[string]string
		escalated  bool
		notified   bool
	)
	switch {
	case assessment.Risk == crisis.RiskCrisis:
		reply = crisis.ResponseMessage
		resources = crisis.ResponseResources()
		escalated = true
		notified = h.escalateCrisis(ctx, practiceID, patientID, req.Message, assessment)
	case assessment.Escalate:
		reply = chatbot.ElevatedRiskReply
		escalated = true
	default:
		reply, techniques = chatbot.SupportReply(req.Message, assessment)
	}

	now := time.Now().UTC()
	sessionID = h.sessions.Apply(sessionID, patientID.String(), "", func(sess *chatbot.PatientSession) {
		if riskOutranks(assessment.Risk, sess.Risk) {
			sess.Risk = assessment.Risk
		}
		sess.MessageCount++
		if escalated {
			sess.Escalations++
		}
		sess.History = append(sess.History,
			crisis.Entry{
				Timestamp:           now,
				Type:                crisis.EntryPatient,
				Content:             req.Message,
				RiskIndicators:      assessment.Indicators,
				EscalationTriggered: escalated,
			},
			crisis.Entry{
				Timestamp:  now,
				Type:       crisis.EntryBot,
				Content:    reply,
				Techniques: techniques,
			},
		)
	})

	risk := string(assessment.Risk)
	conv, err := h.convs.Open(ctx, practiceID, sessionID, conversation.BotSupport)
	if err != nil {
		h.logger.Error().Err(err).Str("practice_id", practiceID).Msg("patient chat: open conversation failed")
		return h.fallback(c, sessionID)
	}
	if err := h.convs.AttachPatient(ctx, conv, patientID.String()); err != nil {
		h.logger.Warn().Err(err).Msg("patient chat: attach patient failed")
	}
	if err := h.convs.RecordExchange(ctx, conv, conversation.SenderPatient, req.Message, reply, &risk); err != nil {
		h.logger.Error().Err(err).Str("practice_id", practiceID).Msg("patient chat: store exchange failed")
		return h.fallback(c, sessionID)
	}
	if assessment.Escalate {
		note := "Elevated risk detected (" + risk + "). Review recent messages."
		if err := h.convs.AddNote(ctx, conv, note); err != nil {
			h.logger.Warn().Err(err).Msg("patient chat: risk note failed")
		}
	}

	if h.metrics != nil {
		h.metrics.RecordChat(&analytics.ChatMetric{
			Timestamp:  start,
			Bot:        conversation.BotSupport,
			PracticeID: practiceID,
			Risk:       risk,
			Duration:   time.Since(start),
			Escalated:  escalated,
		})
	}

	return c.JSON(http.StatusOK, supportResponse{
		Message:           reply,
		RiskLevel:         risk,
		SessionID:         sessionID,
		Timestamp:         now,
		Escalated:         escalated,
		TherapistNotified: notified,
		Resources:         resources,
	})
}

// escalateCrisis persists the alert and fans it out. The alert reaches the
// care team even when a downstream channel fails; only the persisted alert
// counts as "notified".
func (h *SupportHandler) escalateCrisis(ctx context.Context, practiceID string, patientID uuid.UUID, message string, a crisis.Assessment) bool {
	// External channels carry the anonymized id only.
	alert := crisis.BuildAlert(hipaa.AnonymizePatientID(patientID.String()), message, a)
	stored, err := h.patients.RecordAlert(ctx, practiceID, patientID, alert)
	if err != nil {
		h.logger.Error().Err(err).Str("practice_id", practiceID).Msg("patient chat: record alert failed")
		return false
	}

	payload := map[string]interface{}{
		"alert_id":           stored.ID,
		"patient_id":         alert.PatientID,
		"alert_type":         stored.AlertType,
		"severity":           stored.Severity,
		"summary":            stored.Summary,
		"recommended_action": stored.RecommendedAction,
		"created_at":         stored.CreatedAt,
	}

	if h.notifier != nil {
		h.notifier.NotifyCrisis(ctx, h.alertTo.email, h.alertTo.sms, map[string]string{
			"patient_id": alert.PatientID,
			"severity":   stored.Severity,
			"summary":    stored.Summary,
			"action":     stored.RecommendedAction,
		})
	}
	if h.hub != nil {
		h.hub.BroadcastAlert(practiceID, payload)
	}
	if err := h.events.Publish(ctx, "crisis.alert", practiceID, payload); err != nil {
		h.logger.Warn().Err(err).Msg("patient chat: crisis event publish failed")
	}
	if h.hooks != nil {
		go h.hooks.Emit(context.Background(), "crisis.alert", practiceID, payload)
	}
	return true
}

type consentRequest struct {
	Granted bool `json:"granted"`
}

func (h *SupportHandler) UpdateConsent(c echo.Context) error {
	ctx := c.Request().Context()

	practiceID := auth.PracticeIDFromContext(ctx)
	patientID, err := uuid.Parse(auth.UserIDFromContext(ctx))
	if err != nil || practiceID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}

	var req consentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	status := ConsentGranted
	if !req.Granted {
		status = ConsentRevoked
	}
	if _, err := h.patients.UpdateConsent(ctx, practiceID, patientID, status); err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "patient not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if req.Granted {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"consent_status": ConsentGranted,
			"message":        "Thank you. You can now chat with your practice's AI support companion between sessions.",
			"next_steps": []string{
				"Send a message any time you need support",
				"Your therapist reviews chat summaries and is alerted to any safety concerns",
				"You can withdraw consent at any time",
			},
		})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"consent_status": ConsentRevoked,
		"message":        "That's completely okay. AI chat stays off until you change your mind.",
		"next_steps": []string{
			"Contact your practice directly to talk with your therapist",
			"Call or text 988 any time you need immediate support",
			"You can grant consent later from this same screen",
		},
	})
}

func (h *SupportHandler) History(c echo.Context) error {
	ctx := c.Request().Context()

	practiceID := auth.PracticeIDFromContext(ctx)
	patientID, err := uuid.Parse(auth.UserIDFromContext(ctx))
	if err != nil || practiceID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}

	sessionID := c.Request().Header.Get("Session-Id")
	if sessionID == "" {
		sessionID = c.QueryParam("session_id")
	}
	if sessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session id is required")
	}

	conv, err := h.convs.GetBySession(ctx, practiceID, sessionID)
	if err != nil {
		if errors.Is(err, conversation.ErrNotFound) {
			return c.JSON(http.StatusOK, map[string]interface{}{
				"session_id": sessionID,
				"messages":   []conversation.HistoryEntry{},
			})
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if conv.PatientID == nil || *conv.PatientID != patientID.String() {
		return echo.NewHTTPError(http.StatusForbidden, "session belongs to another patient")
	}

	entries, err := h.convs.History(ctx, practiceID, conv.ID, 50)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"session_id": sessionID,
		"messages":   entries,
	})
}

func (h *SupportHandler) EndSession(c echo.Context) error {
	ctx := c.Request().Context()

	practiceID := auth.PracticeIDFromContext(ctx)
	patientID, err := uuid.Parse(auth.UserIDFromContext(ctx))
	if err != nil || practiceID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}

	sessionID := c.Request().Header.Get("Session-Id")
	if sessionID == "" {
		var body supportRequest
		if err := c.Bind(&body); err == nil {
			sessionID = body.SessionID
		}
	}
	if sessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session id is required")
	}

	sess, ok := h.sessions.Snapshot(sessionID)
	if !ok || sess.PatientID != patientID.String() {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}

	outcome := conversation.OutcomeInfoOnly
	if sess.Escalations > 0 {
		outcome = conversation.OutcomeEscalated
	}
	summary := crisis.SessionSummary(sess.History, sess.Risk)

	conv, err := h.convs.GetBySession(ctx, practiceID, sessionID)
	if err == nil {
		if err := h.convs.AddNote(ctx, conv, summary); err != nil {
			h.logger.Warn().Err(err).Msg("patient chat: session summary note failed")
		}
		if _, err := h.convs.Complete(ctx, practiceID, conv.ID, outcome); err != nil {
			h.logger.Warn().Err(err).Msg("patient chat: complete conversation failed")
		}
	} else if err != conversation.ErrNotFound {
		h.logger.Warn().Err(err).Msg("patient chat: conversation lookup failed")
	}
	h.sessions.Delete(sessionID)

	return c.JSON(http.StatusOK, map[string]interface{}{
		"session_id":    sessionID,
		"status":        "ended",
		"outcome":       outcome,
		"message_count": sess.MessageCount,
		"risk_level":    string(sess.Risk),
	})
}

func (h *SupportHandler) EmergencyResources(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"hotlines":           crisis.Hotlines(),
		"emergency_contacts": crisis.EmergencyContacts(),
		"safety_plan":        crisis.SafetyPlan,
	})
}

func (h *SupportHandler) SessionInfo(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"capabilities": []string{
			"Emotional support and coping strategies between sessions",
			"Crisis resource referrals, available 24/7",
			"Session summaries shared with your therapist",
		},
		"limitations": []string{
			"Not a replacement for therapy or medical advice",
			"Cannot prescribe or change treatment",
			"Automated responses, not a human clinician",
		},
		"privacy":        "Your messages are encrypted and only shared with your care team.",
		"crisis_support": "If you are in crisis, call 911 or call/text 988 for the Suicide & Crisis Lifeline.",
	})
}

func (h *SupportHandler) WellnessCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"service":   "patient-support-chat",
		"timestamp": time.Now().UTC(),
	})
}

func (h *SupportHandler) fallback(c echo.Context, sessionID string) error {
	return c.JSON(http.StatusOK, supportResponse{
		Message:           chatbot.PatientFallbackMessage,
		RiskLevel:         "unknown",
		SessionID:         sessionID,
		Timestamp:         time.Now().UTC(),
		TherapistNotified: true,
		Resources:         crisis.FallbackResources(),
	})
}

func riskOutranks(a, b crisis.RiskLevel) bool {
	rank := map[crisis.RiskLevel]int{
		crisis.RiskLow:      0,
		crisis.RiskModerate: 1,
		crisis.RiskHigh:     2,
		crisis.RiskCrisis:   3,
	}
	return rank[a] > rank[b]
}
