// Package dashboard assembles the owner dashboard and the therapist day
// view from the other services. It keeps no state of its own: live numbers
// come from conversations, patients, the usage tracker and the CRM, and the
// canned demo payloads fill in until a practice has real traffic.
package dashboard

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/moonraker/engage/internal/domain/conversation"
	"github.com/moonraker/engage/internal/domain/patient"
	"github.com/moonraker/engage/internal/platform/analytics"
	"github.com/moonraker/engage/internal/platform/blobstore"
	"github.com/moonraker/engage/internal/platform/chatbot"
	"github.com/moonraker/engage/internal/platform/demo"
	"github.com/moonraker/engage/internal/platform/hipaa"
	"github.com/moonraker/engage/internal/platform/mcp"
)

const botModel = "Claude 3.5 Sonnet"

// Service aggregates dashboard data. The CRM client, usage tracker and
// document store are optional; without them the affected cards fall back
// to demo payloads.
type Service struct {
	convs    *conversation.Service
	patients *patient.Service
	crm      *mcp.Client
	tracker  *analytics.Tracker
	docs     blobstore.DocumentStore
	logger   zerolog.Logger
}

func NewService(convs *conversation.Service, patients *patient.Service, logger zerolog.Logger) *Service {
	return &Service{
		convs:    convs,
		patients: patients,
		logger:   logger.With().Str("component", "dashboard").Logger(),
	}
}

// SetCRM attaches the GoHighLevel client used for the therapist day view.
func (s *Service) SetCRM(c *mcp.Client) { s.crm = c }

// SetTracker attaches the usage tracker that supplies latency and intent
// breakdowns.
func (s *Service) SetTracker(t *analytics.Tracker) { s.tracker = t }

// SetDocumentStore attaches the knowledge base store backing the chatbot
// status card.
func (s *Service) SetDocumentStore(d blobstore.DocumentStore) { s.docs = d }

// CRMCallLog returns recent CRM tool calls for the owner debug view, plus
// whether a CRM is connected at all.
func (s *Service) CRMCallLog(n int) ([]mcp.CallRecord, bool) {
	if s.crm == nil || !s.crm.Configured() {
		return []mcp.CallRecord{}, false
	}
	return s.crm.RecentCalls(n), true
}

// Stats computes the overview cards for the last seven days, comparing
// against the seven days before. A practice with no conversations yet gets
// the stock demo numbers so the dashboard never renders empty.
func (s *Service) Stats(ctx context.Context, practiceID string) demo.Stats {
	now := time.Now().UTC()
	weekAgo := now.AddDate(0, 0, -7)
	twoWeeksAgo := now.AddDate(0, 0, -14)

	total, err := s.convs.CountSince(ctx, practiceID, weekAgo)
	if err != nil {
		s.logger.Error().Err(err).Str("practice_id", practiceID).Msg("counting conversations")
		return demo.DashboardStats()
	}
	fortnight, err := s.convs.CountSince(ctx, practiceID, twoWeeksAgo)
	if err != nil {
		return demo.DashboardStats()
	}
	prev := fortnight - total
	if total == 0 && prev == 0 {
		return demo.DashboardStats()
	}

	booked, err := s.convs.CountOutcomeSince(ctx, practiceID, conversation.OutcomeBooked, weekAgo)
	if err != nil {
		return demo.DashboardStats()
	}
	bookedFortnight, err := s.convs.CountOutcomeSince(ctx, practiceID, conversation.OutcomeBooked, twoWeeksAgo)
	if err != nil {
		return demo.DashboardStats()
	}
	prevBooked := bookedFortnight - booked

	stats := demo.Stats{
		TotalConversations:  total,
		ConversationsChange: changeLabel(total, prev),
		AppointmentsBooked:  booked,
		AppointmentsChange:  changeLabel(booked, prevBooked),
		ConversionRate:      conversionRate(booked, total),
		ResponseTimeChange:  "steady",
	}
	prevRate := conversionRate(prevBooked, prev)
	stats.ConversionChange = fmt.Sprintf("%+.0f%% from last week", stats.ConversionRate-prevRate)

	if s.tracker != nil {
		if bs := s.tracker.BotStats(analytics.BotSales); bs.TotalMessages > 0 {
			stats.AvgResponseTime = round1(bs.AvgLatency.Seconds())
		}
	}
	return stats
}

// RecentCards maps the latest conversations into dashboard rows. With no
// traffic yet, the stock demo cards are returned instead.
func (s *Service) RecentCards(ctx context.Context, practiceID string, n int) []demo.ConversationCard {
	if n <= 0 {
		n = 5
	}
	convs, err := s.convs.Recent(ctx, practiceID, n)
	if err != nil {
		s.logger.Error().Err(err).Str("practice_id", practiceID).Msg("loading recent conversations")
		return []demo.ConversationCard{demo.ErrorConversation()}
	}
	if len(convs) == 0 {
		return demo.RecentConversations()
	}

	now := time.Now().UTC()
	cards := make([]demo.ConversationCard, 0, len(convs))
	for _, conv := range convs {
		name := "Website Visitor"
		if conv.ContactName != nil && *conv.ContactName != "" {
			name = *conv.ContactName
		}
		preview := ""
		if conv.LastMessage != nil {
			preview = *conv.LastMessage
		}
		cards = append(cards, demo.ConversationCard{
			Initial: strings.ToUpper(name[:1]),
			Name:    name,
			Preview: preview,
			Status:  statusLabel(conv.Status),
			TimeAgo: timeAgo(now.Sub(conv.UpdatedAt)),
		})
	}
	return cards
}

// BotStatus builds the chatbot status card from the knowledge base store.
func (s *Service) BotStatus(ctx context.Context, practiceID string) demo.ChatbotStatus {
	if s.docs == nil {
		return demo.BotStatus()
	}
	docs, total, err := s.docs.ListByPractice(ctx, practiceID, "", 1, 0)
	if err != nil {
		s.logger.Error().Err(err).Str("practice_id", practiceID).Msg("listing knowledge documents")
		return demo.BotStatus()
	}
	status := demo.ChatbotStatus{
		Status:        "Active",
		Model:         botModel,
		KnowledgeBase: fmt.Sprintf("%d documents", total),
		LastUpdated:   "never",
	}
	if len(docs) > 0 {
		newest := docs[0].CreatedAt
		for _, d := range docs {
			if d.CreatedAt.After(newest) {
				newest = d.CreatedAt
			}
		}
		status.LastUpdated = timeAgo(time.Now().UTC().Sub(newest))
	}
	return status
}

// AnalyticsData is the analytics page payload.
type AnalyticsData struct {
	Overview          demo.Stats         `json:"overview"`
	WeeklyActivity    []demo.DayActivity `json:"weekly_activity"`
	TopTopics         []demo.TopicShare  `json:"top_conversation_topics"`
	ResponseTimeChart []float64          `json:"avg_response_time_chart"`
}

// Analytics assembles the weekly activity chart, the topic breakdown and
// the response-time trend. Each section degrades to demo data on its own.
func (s *Service) Analytics(ctx context.Context, practiceID string) AnalyticsData {
	return AnalyticsData{
		Overview:          s.Stats(ctx, practiceID),
		WeeklyActivity:    s.weeklyActivity(ctx, practiceID),
		TopTopics:         s.topTopics(),
		ResponseTimeChart: s.responseTrend(practiceID),
	}
}

// weeklyActivity derives per-day counts from the cumulative since-counters,
// newest day last.
func (s *Service) weeklyActivity(ctx context.Context, practiceID string) []demo.DayActivity {
	now := time.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	var (
		days  []demo.DayActivity
		total int
	)
	for i := 6; i >= 0; i-- {
		start := today.AddDate(0, 0, -i)
		end := start.AddDate(0, 0, 1)

		convCount, err := s.countBetween(ctx, practiceID, start, end, "")
		if err != nil {
			return demo.WeeklyActivity()
		}
		bookedCount, err := s.countBetween(ctx, practiceID, start, end, conversation.OutcomeBooked)
		if err != nil {
			return demo.WeeklyActivity()
		}
		total += convCount
		days = append(days, demo.DayActivity{
			Day:           start.Weekday().String()[:3],
			Conversations: convCount,
			Appointments:  bookedCount,
		})
	}
	if total == 0 {
		return demo.WeeklyActivity()
	}
	return days
}

func (s *Service) countBetween(ctx context.Context, practiceID string, start, end time.Time, outcome string) (int, error) {
	if outcome == "" {
		since, err := s.convs.CountSince(ctx, practiceID, start)
		if err != nil {
			return 0, err
		}
		after, err := s.convs.CountSince(ctx, practiceID, end)
		if err != nil {
			return 0, err
		}
		return since - after, nil
	}
	since, err := s.convs.CountOutcomeSince(ctx, practiceID, outcome, start)
	if err != nil {
		return 0, err
	}
	after, err := s.convs.CountOutcomeSince(ctx, practiceID, outcome, end)
	if err != nil {
		return 0, err
	}
	return since - after, nil
}

// topicLabels maps sales bot intents to the chart labels.
var topicLabels = map[string]string{
	chatbot.IntentBooking:   "Appointment Scheduling",
	chatbot.IntentServices:  "Service Information",
	chatbot.IntentPricing:   "Insurance & Pricing",
	chatbot.IntentGeneral:   "General Questions",
	chatbot.IntentEmergency: "Crisis Support",
}

func (s *Service) topTopics() []demo.TopicShare {
	if s.tracker == nil {
		return demo.TopTopics()
	}
	bs := s.tracker.BotStats(analytics.BotSales)
	var total int64
	for _, n := range bs.IntentCounts {
		total += n
	}
	if total == 0 {
		return demo.TopTopics()
	}
	var topics []demo.TopicShare
	for intent, n := range bs.IntentCounts {
		label, ok := topicLabels[intent]
		if !ok {
			continue
		}
		topics = append(topics, demo.TopicShare{
			Topic:   label,
			Percent: round1(float64(n) / float64(total) * 100),
		})
	}
	sort.Slice(topics, func(i, j int) bool { return topics[i].Percent > topics[j].Percent })
	return topics
}

func (s *Service) responseTrend(practiceID string) []float64 {
	if s.tracker == nil {
		return demo.ResponseTimeTrend()
	}
	buckets := s.tracker.TimeSeries(practiceID, 24*time.Hour, 6*24*time.Hour)
	var (
		trend []float64
		sum   float64
	)
	for _, b := range buckets {
		sec := round1(b.AvgLatency.Seconds())
		sum += sec
		trend = append(trend, sec)
	}
	if sum == 0 {
		return demo.ResponseTimeTrend()
	}
	return trend
}

// ScheduleEntry is one slot of the therapist's day.
type ScheduleEntry struct {
	Time            string `json:"time"`
	PatientInitials string `json:"patient_initials"`
	SessionType     string `json:"session_type"`
	DurationMinutes int    `json:"duration_minutes"`
	Status          string `json:"status"`
}

// PatientAlert is an open crisis alert shown on the therapist view.
type PatientAlert struct {
	PatientInitials   string    `json:"patient_initials"`
	Severity          string    `json:"severity"`
	Summary           string    `json:"summary"`
	RecommendedAction string    `json:"recommended_action"`
	CreatedAt         time.Time `json:"created_at"`
}

// PatientMessage is a recent AI conversation preview.
type PatientMessage struct {
	PatientInitials string `json:"patient_initials"`
	Preview         string `json:"preview"`
	Timestamp       string `json:"timestamp"`
	Type            string `json:"type"`
}

// WeeklySummary rolls up the therapist's last seven days.
type WeeklySummary struct {
	SessionsBooked      int `json:"sessions_booked"`
	CrisisInterventions int `json:"crisis_interventions"`
	AIConversations     int `json:"ai_conversations"`
}

// TherapistOverview is the simplified therapist day view.
type TherapistOverview struct {
	Overview       mcp.DashboardSnapshot `json:"overview"`
	InterfaceNote  string                `json:"interface_note"`
	TodaysSchedule []ScheduleEntry       `json:"todays_schedule"`
	PatientAlerts  []PatientAlert        `json:"patient_alerts"`
	RecentMessages []PatientMessage      `json:"recent_messages"`
	WeeklySummary  WeeklySummary         `json:"weekly_summary"`
}

// Overview builds the therapist day view. CRM-sourced sections are empty
// when no CRM is connected; crisis alert counts always come from the
// platform's own alert store, never the CRM.
func (s *Service) Overview(ctx context.Context, practiceID string) TherapistOverview {
	now := time.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	weekAgo := now.AddDate(0, 0, -7)

	ov := TherapistOverview{
		InterfaceNote:  "This is your therapy practice dashboard - simplified and HIPAA-compliant",
		TodaysSchedule: []ScheduleEntry{},
		PatientAlerts:  []PatientAlert{},
		RecentMessages: []PatientMessage{},
	}

	if s.crm != nil && s.crm.Configured() {
		ov.Overview = s.crm.Snapshot(ctx)
		ov.TodaysSchedule = s.todaysSchedule(ctx, today)
	} else {
		ov.Overview = mcp.DashboardSnapshot{DashboardType: "therapy_focused", LastUpdated: now}
	}
	if n, err := s.patients.CountAlertsSince(ctx, practiceID, today); err == nil {
		ov.Overview.CrisisAlerts = n
	}

	ov.PatientAlerts = s.openAlerts(ctx, practiceID)
	ov.RecentMessages = s.recentMessages(ctx, practiceID, now)

	if n, err := s.convs.CountSince(ctx, practiceID, weekAgo); err == nil {
		ov.WeeklySummary.AIConversations = n
	}
	if n, err := s.convs.CountOutcomeSince(ctx, practiceID, conversation.OutcomeBooked, weekAgo); err == nil {
		ov.WeeklySummary.SessionsBooked = n
	}
	if n, err := s.patients.CountAlertsSince(ctx, practiceID, weekAgo); err == nil {
		ov.WeeklySummary.CrisisInterventions = n
	}
	return ov
}

func (s *Service) todaysSchedule(ctx context.Context, dayStart time.Time) []ScheduleEntry {
	events, err := s.crm.CalendarEvents(ctx, dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		s.logger.Warn().Err(err).Msg("loading calendar events")
		return []ScheduleEntry{}
	}
	entries := make([]ScheduleEntry, 0, len(events))
	for _, ev := range events {
		name, sessionType := splitEventTitle(ev.Title)
		entries = append(entries, ScheduleEntry{
			Time:            ev.StartTime.Format("3:04 PM"),
			PatientInitials: hipaa.Initials(name),
			SessionType:     sessionType,
			DurationMinutes: int(ev.EndTime.Sub(ev.StartTime).Minutes()),
			Status:          ev.Status,
		})
	}
	return entries
}

func (s *Service) openAlerts(ctx context.Context, practiceID string) []PatientAlert {
	alerts, _, err := s.patients.ListAlerts(ctx, practiceID, patient.AlertOpen, 10, 0)
	if err != nil {
		s.logger.Error().Err(err).Str("practice_id", practiceID).Msg("listing crisis alerts")
		return []PatientAlert{}
	}
	out := make([]PatientAlert, 0, len(alerts))
	for _, a := range alerts {
		initials := "??"
		if p, err := s.patients.Get(ctx, practiceID, a.PatientID); err == nil {
			initials = hipaa.Initials(p.FullName())
		}
		out = append(out, PatientAlert{
			PatientInitials:   initials,
			Severity:          a.Severity,
			Summary:           a.Summary,
			RecommendedAction: a.RecommendedAction,
			CreatedAt:         a.CreatedAt,
		})
	}
	return out
}

func (s *Service) recentMessages(ctx context.Context, practiceID string, now time.Time) []PatientMessage {
	convs, err := s.convs.Recent(ctx, practiceID, 10)
	if err != nil {
		return []PatientMessage{}
	}
	out := []PatientMessage{}
	for _, conv := range convs {
		if conv.Bot != conversation.BotSupport {
			continue
		}
		initials := "??"
		if conv.ContactName != nil {
			initials = hipaa.Initials(*conv.ContactName)
		}
		preview := ""
		if conv.LastMessage != nil {
			preview = *conv.LastMessage
		}
		out = append(out, PatientMessage{
			PatientInitials: initials,
			Preview:         preview,
			Timestamp:       timeAgo(now.Sub(conv.UpdatedAt)),
			Type:            "AI conversation",
		})
		if len(out) == 3 {
			break
		}
	}
	return out
}

func splitEventTitle(title string) (name, sessionType string) {
	if before, after, found := strings.Cut(title, " - "); found {
		return before, after
	}
	return title, "Therapy Session"
}

func statusLabel(status string) string {
	switch status {
	case conversation.StatusActive:
		return "Ongoing"
	case conversation.StatusCompleted:
		return "Completed"
	default:
		return "Abandoned"
	}
}

func changeLabel(cur, prev int) string {
	if prev == 0 {
		if cur == 0 {
			return "no change from last week"
		}
		return "new this week"
	}
	pct := float64(cur-prev) / float64(prev) * 100
	return fmt.Sprintf("%+.0f%% from last week", pct)
}

func conversionRate(booked, total int) float64 {
	if total == 0 {
		return 0
	}
	return round1(float64(booked) / float64(total) * 100)
}

func round1(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}

func timeAgo(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%d min ago", int(d.Minutes()))
	case d < 2*time.Hour:
		return "1 hour ago"
	case d < 24*time.Hour:
		return fmt.Sprintf("%d hours ago", int(d.Hours()))
	case d < 48*time.Hour:
		return "1 day ago"
	default:
		return fmt.Sprintf("%d days ago", int(d.Hours()/24))
	}
}
