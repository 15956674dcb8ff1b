package conversation

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/moonraker/engage/internal/platform/analytics"
	"github.com/moonraker/engage/internal/platform/chatbot"
	"github.com/moonraker/engage/internal/platform/db"
	"github.com/moonraker/engage/internal/platform/mcp"
	"github.com/moonraker/engage/internal/platform/stream"
	"github.com/moonraker/engage/internal/platform/webhook"
)

// CRM is the slice of the CRM client the widget chat needs.
type CRM interface {
	Configured() bool
	CreateLeadContact(ctx context.Context, p mcp.LeadParams) (*mcp.Contact, error)
	AddContactNote(ctx context.Context, contactID, note string) error
	EnsureTherapyCalendar(ctx context.Context) (string, error)
	CreateAppointment(ctx context.Context, p mcp.AppointmentParams) (*mcp.Appointment, error)
}

// sessionLength is the booked portion of a one-hour therapy slot.
const sessionLength = 50 * time.Minute

// BotConfigSource supplies per-practice bot configuration. The practice
// domain implements it; without one the bot falls back to generic wording.
type BotConfigSource interface {
	SalesBotConfig(ctx context.Context, practiceID string) (chatbot.PracticeInfo, chatbot.AppointmentConfig, error)
}

// ChatHandler serves the public website widget chat. The widget never sees a
// 5xx: any CRM or storage failure collapses to the canned fallback reply.
type ChatHandler struct {
	svc      *Service
	sessions *chatbot.Store
	slots    *chatbot.SlotInventory
	crm      CRM
	config   BotConfigSource
	events   stream.Publisher
	hooks    *webhook.Manager
	metrics  *analytics.Tracker
	logger   zerolog.Logger
}

func NewChatHandler(svc *Service, sessions *chatbot.Store, crm CRM, logger zerolog.Logger) *ChatHandler {
	return &ChatHandler{
		svc:      svc,
		sessions: sessions,
		slots:    chatbot.NewSlotInventory(),
		crm:      crm,
		events:   stream.NopPublisher{},
		logger:   logger,
	}
}

// SetConfigSource wires per-practice bot configuration.
func (h *ChatHandler) SetConfigSource(src BotConfigSource) { h.config = src }

// SetPublisher wires the event stream.
func (h *ChatHandler) SetPublisher(p stream.Publisher) { h.events = p }

// SetWebhooks wires outbound webhook delivery.
func (h *ChatHandler) SetWebhooks(m *webhook.Manager) { h.hooks = m }

// SetTracker wires chat metrics.
func (h *ChatHandler) SetTracker(t *analytics.Tracker) { h.metrics = t }

func (h *ChatHandler) RegisterPublicRoutes(g *echo.Group) {
	g.POST("/chat/message", h.HandleMessage)
	g.GET("/chat/slots", h.HandleSlots)
	g.POST("/chat/book", h.HandleBook)
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

type chatResponse struct {
	Message        string    `json:"message"`
	Intent         string    `json:"intent"`
	Timestamp      time.Time `json:"timestamp"`
	SessionID      string    `json:"session_id"`
	ContactCreated bool      `json:"contact_created"`
	GHLConnected   bool      `json:"ghl_connected"`
	BookingReady   bool      `json:"booking_ready"`
	NextAction     string    `json:"next_action,omitempty"`
}

func (h *ChatHandler) HandleMessage(c echo.Context) error {
	ctx := c.Request().Context()
	practiceID := db.PracticeFromContext(ctx)
	if practiceID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "practice context required")
	}

	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Message) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message is required")
	}

	start := time.Now()
	practice, appt := h.botConfig(ctx, practiceID)

	var resp chatbot.Response
	sessionID := h.sessions.Apply(req.SessionID, func(sess *chatbot.Session) {
		resp = chatbot.SalesReply(req.Message, sess, practice, appt)
	})
	snap, _ := h.sessions.Snapshot(sessionID)

	ghlConnected := h.crm != nil && h.crm.Configured()

	conv, err := h.svc.Open(ctx, practiceID, sessionID, BotSales)
	if err != nil {
		h.logger.Error().Err(err).Str("practice_id", practiceID).Msg("widget chat: open conversation failed")
		return h.fallback(c, sessionID, ghlConnected)
	}
	if err := h.svc.RecordExchange(ctx, conv, SenderVisitor, req.Message, resp.Message, nil); err != nil {
		h.logger.Error().Err(err).Str("practice_id", practiceID).Msg("widget chat: store exchange failed")
		return h.fallback(c, sessionID, ghlConnected)
	}
	if topic := topicFor(resp.Intent, req.Message); topic != "" {
		if err := h.svc.SetTopic(ctx, conv, topic); err != nil {
			h.logger.Warn().Err(err).Msg("widget chat: set topic failed")
		}
	}

	contactCreated := false
	if ghlConnected && snap.ContactID == "" && (snap.Collected["email"] != "" || snap.Collected["phone"] != "") {
		contact, err := h.captureLead(ctx, conv, snap)
		if err != nil {
			h.logger.Error().Err(err).Str("practice_id", practiceID).Msg("widget chat: lead capture failed")
			return h.fallback(c, sessionID, ghlConnected)
		}
		h.sessions.Apply(sessionID, func(sess *chatbot.Session) {
			sess.ContactID = contact.ID
		})
		contactCreated = true
	}

	if h.metrics != nil {
		h.metrics.RecordChat(&analytics.ChatMetric{
			Timestamp:  start,
			Bot:        BotSales,
			PracticeID: practiceID,
			Intent:     resp.Intent,
			Duration:   time.Since(start),
		})
	}

	return c.JSON(http.StatusOK, chatResponse{
		Message:        resp.Message,
		Intent:         resp.Intent,
		Timestamp:      time.Now().UTC(),
		SessionID:      sessionID,
		ContactCreated: contactCreated,
		GHLConnected:   ghlConnected,
		BookingReady:   resp.BookingReady,
		NextAction:     resp.NextAction,
	})
}

func (h *ChatHandler) botConfig(ctx context.Context, practiceID string) (chatbot.PracticeInfo, chatbot.AppointmentConfig) {
	if h.config == nil {
		return chatbot.PracticeInfo{}, chatbot.AppointmentConfig{}
	}
	practice, appt, err := h.config.SalesBotConfig(ctx, practiceID)
	if err != nil {
		h.logger.Warn().Err(err).Str("practice_id", practiceID).Msg("widget chat: bot config lookup failed")
		return chatbot.PracticeInfo{}, chatbot.AppointmentConfig{}
	}
	return practice, appt
}

// captureLead creates the CRM contact for a visitor who left contact info,
// attaches it to the conversation, and fans the lead event out.
func (h *ChatHandler) captureLead(ctx context.Context, conv *Conversation, snap chatbot.Session) (*mcp.Contact, error) {
	contact, err := h.crm.CreateLeadContact(ctx, mcp.LeadParams{
		Name:  snap.Collected["name"],
		Email: snap.Collected["email"],
		Phone: snap.Collected["phone"],
	})
	if err != nil {
		return nil, err
	}

	if err := h.svc.AttachContact(ctx, conv, contact.ID, snap.Collected["name"]); err != nil {
		h.logger.Warn().Err(err).Msg("widget chat: attach contact failed")
	}
	if err := h.crm.AddContactNote(ctx, contact.ID, chatbot.ConversationSummary(&snap)); err != nil {
		h.logger.Warn().Err(err).Msg("widget chat: contact note failed")
	}

	payload := map[string]interface{}{
		"contact_id":      contact.ID,
		"conversation_id": conv.ID,
		"session_id":      conv.SessionID,
		"name":            snap.Collected["name"],
		"email":           snap.Collected["email"],
		"phone":           snap.Collected["phone"],
	}
	if err := h.events.Publish(ctx, "lead.captured", conv.PracticeID, payload); err != nil {
		h.logger.Warn().Err(err).Msg("widget chat: lead event publish failed")
	}
	if h.hooks != nil {
		practiceID := conv.PracticeID
		go h.hooks.Emit(context.Background(), "lead.captured", practiceID, payload)
	}
	return contact, nil
}

// HandleSlots serves GET /chat/slots: upcoming open consultation slots
// generated from the practice's appointment configuration.
func (h *ChatHandler) HandleSlots(c echo.Context) error {
	ctx := c.Request().Context()
	practiceID := db.PracticeFromContext(ctx)
	if practiceID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "practice context required")
	}

	_, appt := h.botConfig(ctx, practiceID)
	open := h.slots.Available(practiceID, appt, time.Now(), 0)

	slots := make([]string, 0, len(open))
	for _, at := range open {
		slots = append(slots, at.Format(time.RFC3339))
	}
	return c.JSON(http.StatusOK, echo.Map{
		"slots":             slots,
		"appointment_types": appt.Types,
	})
}

type bookRequest struct {
	SessionID       string `json:"session_id"`
	StartTime       string `json:"start_time"`
	AppointmentType string `json:"appointment_type"`
}

type bookResponse struct {
	Message       string `json:"message"`
	Booked        bool   `json:"booked"`
	SessionID     string `json:"session_id"`
	AppointmentID string `json:"appointment_id,omitempty"`
	GHLConnected  bool   `json:"ghl_connected"`
}

// HandleBook serves POST /chat/book: completes a booking-ready widget
// session. The slot is reserved locally first so concurrent visitors cannot
// take the same time, then the appointment is created on the CRM calendar
// when one is configured.
func (h *ChatHandler) HandleBook(c echo.Context) error {
	ctx := c.Request().Context()
	practiceID := db.PracticeFromContext(ctx)
	if practiceID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "practice context required")
	}

	var req bookRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.SessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session_id is required")
	}
	start, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "start_time must be RFC 3339")
	}

	snap, ok := h.sessions.Snapshot(req.SessionID)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "chat session not found or expired")
	}
	if snap.Collected["name"] == "" || (snap.Collected["email"] == "" && snap.Collected["phone"] == "") {
		return echo.NewHTTPError(http.StatusBadRequest, "booking details incomplete")
	}

	if !h.slots.Reserve(practiceID, start) {
		return echo.NewHTTPError(http.StatusConflict, "that time was just taken, please pick another")
	}

	ghlConnected := h.crm != nil && h.crm.Configured()

	conv, err := h.svc.Open(ctx, practiceID, req.SessionID, BotSales)
	if err != nil {
		h.slots.Release(practiceID, start)
		h.logger.Error().Err(err).Str("practice_id", practiceID).Msg("widget booking: open conversation failed")
		return h.fallback(c, req.SessionID, ghlConnected)
	}

	appointmentID := ""
	if ghlConnected {
		if snap.ContactID == "" {
			contact, err := h.captureLead(ctx, conv, snap)
			if err != nil {
				h.slots.Release(practiceID, start)
				h.logger.Error().Err(err).Str("practice_id", practiceID).Msg("widget booking: lead capture failed")
				return h.fallback(c, req.SessionID, ghlConnected)
			}
			h.sessions.Apply(req.SessionID, func(sess *chatbot.Session) {
				sess.ContactID = contact.ID
			})
			snap.ContactID = contact.ID
		}

		calendarID, err := h.crm.EnsureTherapyCalendar(ctx)
		if err == nil {
			var created *mcp.Appointment
			created, err = h.crm.CreateAppointment(ctx, mcp.AppointmentParams{
				CalendarID: calendarID,
				ContactID:  snap.ContactID,
				Title:      appointmentTitle(req.AppointmentType, snap.Collected["name"]),
				StartTime:  start,
				EndTime:    start.Add(sessionLength),
			})
			if err == nil {
				appointmentID = created.ID
			}
		}
		if err != nil {
			h.slots.Release(practiceID, start)
			h.logger.Error().Err(err).Str("practice_id", practiceID).Msg("widget booking: calendar booking failed")
			return h.fallback(c, req.SessionID, ghlConnected)
		}
	}

	if _, err := h.svc.Complete(ctx, practiceID, conv.ID, OutcomeBooked); err != nil {
		h.logger.Warn().Err(err).Msg("widget booking: complete conversation failed")
	}

	payload := map[string]interface{}{
		"conversation_id":  conv.ID,
		"session_id":       req.SessionID,
		"contact_id":       snap.ContactID,
		"appointment_id":   appointmentID,
		"appointment_type": req.AppointmentType,
		"start_time":       start.Format(time.RFC3339),
	}
	if err := h.events.Publish(ctx, stream.EventAppointmentBooked, practiceID, payload); err != nil {
		h.logger.Warn().Err(err).Msg("widget booking: event publish failed")
	}
	if h.hooks != nil {
		go h.hooks.Emit(context.Background(), webhook.EventAppointmentBooked, practiceID, payload)
	}
	if h.metrics != nil {
		h.metrics.RecordChat(&analytics.ChatMetric{
			Timestamp:  time.Now(),
			Bot:        BotSales,
			PracticeID: practiceID,
			Intent:     chatbot.IntentBooking,
		})
	}

	return c.JSON(http.StatusOK, bookResponse{
		Message:       "You're all set for " + start.Format("Monday, January 2 at 3:04 PM") + ". We'll be in touch to confirm.",
		Booked:        true,
		SessionID:     req.SessionID,
		AppointmentID: appointmentID,
		GHLConnected:  ghlConnected,
	})
}

func appointmentTitle(appointmentType, name string) string {
	if appointmentType == "" {
		appointmentType = "Initial Consultation"
	}
	if name == "" {
		return appointmentType
	}
	return appointmentType + " - " + name
}

func (h *ChatHandler) fallback(c echo.Context, sessionID string, ghlConnected bool) error {
	resp := chatbot.Fallback()
	return c.JSON(http.StatusOK, chatResponse{
		Message:      resp.Message,
		Intent:       resp.Intent,
		Timestamp:    time.Now().UTC(),
		SessionID:    sessionID,
		GHLConnected: ghlConnected,
	})
}

// topicFor buckets an exchange for the dashboard topic chart.
func topicFor(intent, message string) string {
	switch intent {
	case chatbot.IntentBooking:
		return "Appointment Scheduling"
	case chatbot.IntentPricing:
		return "Pricing"
	case chatbot.IntentServices:
		return "Service Information"
	}
	lower := strings.ToLower(message)
	if strings.Contains(lower, "insurance") {
		return "Insurance Questions"
	}
	if strings.Contains(lower, "hours") || strings.Contains(lower, "open") {
		return "Office Hours"
	}
	return ""
}
