package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// leadSource marks contacts created by the public website chatbot.
const leadSource = "Moonraker Engage Chatbot"

// Therapy calendar defaults: 50-minute sessions on a 60-minute grid with a
// 10-minute buffer between appointments.
const (
	therapyCalendarName = "Therapy Sessions"
	therapyEventColor   = "#2196F3"
	therapySlotDuration = 50
	therapySlotInterval = 60
	therapySlotBuffer   = 10
)

// therapyFieldMapping translates therapy-domain field names into CRM custom
// field paths. Therapists only ever see the left-hand side.
var therapyFieldMapping = map[string]string{
	"patient_preferred_name": "customField.preferred_name",
	"emergency_contact":      "customField.emergency_contact",
	"diagnosis":              "customField.primary_diagnosis",
	"medication_list":        "customField.current_medications",
	"therapy_goals":          "customField.therapy_goals",
	"session_frequency":      "customField.session_frequency",
	"insurance_info":         "customField.insurance_provider",
	"consent_status":         "customField.hipaa_consent_status",
	"risk_level":             "customField.risk_assessment",
	"therapist_notes":        "customField.private_notes",
}

// TherapyCustomFields converts therapy-domain fields into the CRM
// custom-field map. Fields without a mapping are dropped.
func TherapyCustomFields(fields map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		path, ok := therapyFieldMapping[k]
		if !ok {
			continue
		}
		out[strings.TrimPrefix(path, "customField.")] = v
	}
	return out
}

// Contact is a CRM contact reduced to the fields the platform uses.
type Contact struct {
	ID           string                 `json:"id"`
	FirstName    string                 `json:"firstName"`
	LastName     string                 `json:"lastName"`
	Email        string                 `json:"email,omitempty"`
	Phone        string                 `json:"phone,omitempty"`
	Tags         []string               `json:"tags,omitempty"`
	CustomFields map[string]interface{} `json:"customFields,omitempty"`
	DateAdded    time.Time              `json:"dateAdded"`
	DateUpdated  time.Time              `json:"dateUpdated"`
}

// Appointment is a CRM calendar appointment.
type Appointment struct {
	ID          string    `json:"id"`
	CalendarID  string    `json:"calendarId,omitempty"`
	ContactID   string    `json:"contactId,omitempty"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`
	Status      string    `json:"appointmentStatus,omitempty"`
	Location    string    `json:"location,omitempty"`
	Notes       string    `json:"notes,omitempty"`
}

// Calendar is a CRM calendar.
type Calendar struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CalendarEvent is one scheduled event on a CRM calendar.
type CalendarEvent struct {
	ID         string    `json:"id"`
	CalendarID string    `json:"calendarId,omitempty"`
	ContactID  string    `json:"contactId,omitempty"`
	Title      string    `json:"title"`
	StartTime  time.Time `json:"startTime"`
	EndTime    time.Time `json:"endTime"`
	Status     string    `json:"appointmentStatus,omitempty"`
}

// Message is a CRM conversation message (SMS or email).
type Message struct {
	ID             string    `json:"id"`
	ContactID      string    `json:"contactId,omitempty"`
	ConversationID string    `json:"conversationId,omitempty"`
	Type           string    `json:"type,omitempty"`
	Body           string    `json:"body,omitempty"`
	Direction      string    `json:"direction,omitempty"`
	Status         string    `json:"status,omitempty"`
	DateAdded      time.Time `json:"dateAdded"`
}

// Conversation is a CRM conversation thread.
type Conversation struct {
	ID              string    `json:"id"`
	ContactID       string    `json:"contactId,omitempty"`
	LastMessageBody string    `json:"lastMessageBody,omitempty"`
	DateUpdated     time.Time `json:"dateUpdated"`
}

// ---------------------------------------------------------------------------
// Contacts
// ---------------------------------------------------------------------------

// ContactParams describes a patient contact to create in the CRM.
type ContactParams struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
	// TherapyFields holds therapy-domain keys (diagnosis, medication_list,
	// therapy_goals, ...) that are mapped to CRM custom fields.
	TherapyFields map[string]interface{}
}

// CreateContact creates a patient contact tagged for therapy use.
func (c *Client) CreateContact(ctx context.Context, p ContactParams) (*Contact, error) {
	args := map[string]interface{}{
		"firstName":    p.FirstName,
		"lastName":     p.LastName,
		"email":        p.Email,
		"phone":        p.Phone,
		"tags":         []string{"therapy_patient", "hipaa_compliant"},
		"customFields": TherapyCustomFields(p.TherapyFields),
	}
	result, err := c.CallTool(ctx, "contacts_create", args)
	if err != nil {
		return nil, err
	}
	return decodeContact(result)
}

// LeadParams describes a website visitor captured by the sales chatbot.
type LeadParams struct {
	Name  string
	Email string
	Phone string
}

// CreateLeadContact creates a contact for a website visitor. The full name
// is split into first and last on the first space.
func (c *Client) CreateLeadContact(ctx context.Context, p LeadParams) (*Contact, error) {
	args := map[string]interface{}{
		"tags":   []string{"website_visitor", "chatbot_lead"},
		"source": leadSource,
	}
	if p.Name != "" {
		first, last, _ := strings.Cut(p.Name, " ")
		args["firstName"] = first
		if last != "" {
			args["lastName"] = last
		}
	}
	if p.Email != "" {
		args["email"] = p.Email
	}
	if p.Phone != "" {
		args["phone"] = p.Phone
	}
	result, err := c.CallTool(ctx, "contacts_create", args)
	if err != nil {
		return nil, err
	}
	return decodeContact(result)
}

// GetContact fetches a contact by CRM id. A response without a contact
// member returns (nil, nil).
func (c *Client) GetContact(ctx context.Context, contactID string) (*Contact, error) {
	result, err := c.CallTool(ctx, "contacts_get", map[string]interface{}{
		"contactId": contactID,
	})
	if err != nil {
		return nil, err
	}
	var out struct {
		Contact *Contact `json:"contact"`
	}
	if err := json.Unmarshal(result, &out); err != nil {
		return nil, fmt.Errorf("decode contact: %w", err)
	}
	return out.Contact, nil
}

// UpdateContact writes therapy-domain fields to a contact's custom fields.
func (c *Client) UpdateContact(ctx context.Context, contactID string, therapyFields map[string]interface{}) error {
	_, err := c.CallTool(ctx, "contacts_update", map[string]interface{}{
		"contactId":    contactID,
		"customFields": TherapyCustomFields(therapyFields),
	})
	return err
}

// SearchContacts searches contacts by free-text query and tags.
func (c *Client) SearchContacts(ctx context.Context, query string, tags []string, limit int) ([]Contact, error) {
	if limit <= 0 {
		limit = 100
	}
	result, err := c.CallTool(ctx, "contacts_search", map[string]interface{}{
		"query": query,
		"tags":  tags,
		"limit": limit,
	})
	if err != nil {
		return nil, err
	}
	var out struct {
		Contacts []Contact `json:"contacts"`
	}
	if err := json.Unmarshal(result, &out); err != nil {
		return nil, fmt.Errorf("decode contacts: %w", err)
	}
	return out.Contacts, nil
}

// AddContactNote attaches a free-text note to a contact.
func (c *Client) AddContactNote(ctx context.Context, contactID, note string) error {
	_, err := c.CallTool(ctx, "contacts_add_note", map[string]interface{}{
		"contactId": contactID,
		"note":      note,
	})
	return err
}

func decodeContact(result json.RawMessage) (*Contact, error) {
	var out struct {
		Contact *Contact `json:"contact"`
	}
	if err := json.Unmarshal(result, &out); err != nil {
		return nil, fmt.Errorf("decode contact: %w", err)
	}
	if out.Contact == nil {
		return nil, fmt.Errorf("mcp response missing contact")
	}
	return out.Contact, nil
}

// ---------------------------------------------------------------------------
// Calendars
// ---------------------------------------------------------------------------

// AppointmentParams describes a therapy session to book.
type AppointmentParams struct {
	CalendarID  string
	ContactID   string
	Title       string
	Description string
	StartTime   time.Time
	EndTime     time.Time
}

// CreateAppointment books a confirmed appointment on a calendar.
func (c *Client) CreateAppointment(ctx context.Context, p AppointmentParams) (*Appointment, error) {
	if p.Title == "" {
		p.Title = "Therapy Session"
	}
	if p.Description == "" {
		p.Description = "Individual therapy session"
	}
	result, err := c.CallTool(ctx, "calendars_create_appointment", map[string]interface{}{
		"calendarId":        p.CalendarID,
		"contactId":         p.ContactID,
		"title":             p.Title,
		"description":       p.Description,
		"startTime":         p.StartTime.Format(time.RFC3339),
		"endTime":           p.EndTime.Format(time.RFC3339),
		"appointmentStatus": "confirmed",
	})
	if err != nil {
		return nil, err
	}
	var out struct {
		Appointment *Appointment `json:"appointment"`
	}
	if err := json.Unmarshal(result, &out); err != nil {
		return nil, fmt.Errorf("decode appointment: %w", err)
	}
	if out.Appointment == nil {
		return nil, fmt.Errorf("mcp response missing appointment")
	}
	return out.Appointment, nil
}

// ListCalendars returns the location's calendars.
func (c *Client) ListCalendars(ctx context.Context) ([]Calendar, error) {
	result, err := c.CallTool(ctx, "calendars_list", map[string]interface{}{})
	if err != nil {
		return nil, err
	}
	var out struct {
		Calendars []Calendar `json:"calendars"`
	}
	if err := json.Unmarshal(result, &out); err != nil {
		return nil, fmt.Errorf("decode calendars: %w", err)
	}
	return out.Calendars, nil
}

// EnsureTherapyCalendar returns the id of the "Therapy Sessions" calendar,
// creating it with standard therapy slot settings when absent.
func (c *Client) EnsureTherapyCalendar(ctx context.Context) (string, error) {
	calendars, err := c.ListCalendars(ctx)
	if err != nil {
		return "", err
	}
	for _, cal := range calendars {
		if cal.Name == therapyCalendarName {
			return cal.ID, nil
		}
	}

	result, err := c.CallTool(ctx, "calendars_create", map[string]interface{}{
		"name":         therapyCalendarName,
		"description":  "Calendar for individual therapy sessions",
		"eventTitle":   "Therapy Session",
		"eventColor":   therapyEventColor,
		"slotDuration": therapySlotDuration,
		"slotInterval": therapySlotInterval,
		"slotBuffer":   therapySlotBuffer,
	})
	if err != nil {
		return "", err
	}
	var out struct {
		Calendar Calendar `json:"calendar"`
	}
	if err := json.Unmarshal(result, &out); err != nil {
		return "", fmt.Errorf("decode calendar: %w", err)
	}
	return out.Calendar.ID, nil
}

// CalendarEvents returns events between two dates, inclusive.
func (c *Client) CalendarEvents(ctx context.Context, start, end time.Time) ([]CalendarEvent, error) {
	result, err := c.CallTool(ctx, "calendars_get_events", map[string]interface{}{
		"startDate": start.Format("2006-01-02"),
		"endDate":   end.Format("2006-01-02"),
	})
	if err != nil {
		return nil, err
	}
	var out struct {
		Events []CalendarEvent `json:"events"`
	}
	if err := json.Unmarshal(result, &out); err != nil {
		return nil, fmt.Errorf("decode events: %w", err)
	}
	return out.Events, nil
}

// ---------------------------------------------------------------------------
// Conversations
// ---------------------------------------------------------------------------

// SendSMS sends an SMS to a contact and returns the created message.
func (c *Client) SendSMS(ctx context.Context, contactID, message string) (*Message, error) {
	return c.sendMessage(ctx, "conversations_send_sms", map[string]interface{}{
		"contactId": contactID,
		"message":   message,
		"type":      "sms",
	}, contactID, "sms", message)
}

// SendEmail sends an email to a contact. An empty subject defaults to the
// standard therapist message subject.
func (c *Client) SendEmail(ctx context.Context, contactID, subject, body string) (*Message, error) {
	if subject == "" {
		subject = "Message from your therapist"
	}
	return c.sendMessage(ctx, "conversations_send_email", map[string]interface{}{
		"contactId": contactID,
		"message":   body,
		"type":      "email",
		"subject":   subject,
	}, contactID, "email", body)
}

func (c *Client) sendMessage(ctx context.Context, tool string, args map[string]interface{}, contactID, msgType, body string) (*Message, error) {
	result, err := c.CallTool(ctx, tool, args)
	if err != nil {
		return nil, err
	}
	var out struct {
		Message *Message `json:"message"`
	}
	if err := json.Unmarshal(result, &out); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}
	if out.Message == nil {
		return nil, fmt.Errorf("mcp response missing message")
	}
	msg := out.Message
	msg.ContactID = contactID
	msg.Type = msgType
	msg.Body = body
	msg.Direction = "outbound"
	if msg.Status == "" {
		msg.Status = "sent"
	}
	return msg, nil
}

// ContactMessages returns a contact's recent message history.
func (c *Client) ContactMessages(ctx context.Context, contactID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	result, err := c.CallTool(ctx, "conversations_get_messages", map[string]interface{}{
		"contactId": contactID,
		"limit":     limit,
	})
	if err != nil {
		return nil, err
	}
	var out struct {
		Messages []Message `json:"messages"`
	}
	if err := json.Unmarshal(result, &out); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}
	for i := range out.Messages {
		if out.Messages[i].ContactID == "" {
			out.Messages[i].ContactID = contactID
		}
	}
	return out.Messages, nil
}

// Conversations returns recent conversation threads for the location.
func (c *Client) Conversations(ctx context.Context, limit int) ([]Conversation, error) {
	if limit <= 0 {
		limit = 20
	}
	result, err := c.CallTool(ctx, "conversations_get", map[string]interface{}{
		"limit": limit,
	})
	if err != nil {
		return nil, err
	}
	var out struct {
		Conversations []Conversation `json:"conversations"`
	}
	if err := json.Unmarshal(result, &out); err != nil {
		return nil, fmt.Errorf("decode conversations: %w", err)
	}
	return out.Conversations, nil
}

// ---------------------------------------------------------------------------
// Dashboard aggregation
// ---------------------------------------------------------------------------

// DashboardSnapshot summarises CRM state for the therapist dashboard.
type DashboardSnapshot struct {
	ActivePatients  int       `json:"active_patients"`
	TodaysSessions  int       `json:"todays_sessions"`
	PendingMessages int       `json:"pending_messages"`
	CrisisAlerts    int       `json:"crisis_alerts"`
	DashboardType   string    `json:"dashboard_type"`
	LastUpdated     time.Time `json:"last_updated"`
}

// Snapshot aggregates therapy-patient contacts and today's calendar events.
// Failed sub-calls leave their fields at zero so the dashboard degrades
// instead of erroring. Crisis alert counts come from the platform's own
// store, not the CRM, and are overlaid by the dashboard service.
func (c *Client) Snapshot(ctx context.Context) DashboardSnapshot {
	snap := DashboardSnapshot{
		DashboardType: "therapy_focused",
		LastUpdated:   time.Now().UTC(),
	}

	contacts, err := c.SearchContacts(ctx, "", []string{"therapy_patient"}, 100)
	if err != nil {
		c.logger.Warn().Err(err).Msg("dashboard snapshot: contact search failed")
		return snap
	}
	snap.ActivePatients = len(contacts)

	today := time.Now()
	events, err := c.CalendarEvents(ctx, today, today)
	if err != nil {
		c.logger.Warn().Err(err).Msg("dashboard snapshot: calendar lookup failed")
		return snap
	}
	snap.TodaysSessions = len(events)
	return snap
}
