// Package demo supplies the canned payloads the dashboard serves before a
// practice has connected its CRM, plus a deterministic seeder that can
// populate a trial practice with sample data.
package demo

import "fmt"

// Stats mirrors the dashboard overview cards.
type Stats struct {
	TotalConversations  int     `json:"total_conversations"`
	ConversationsChange string  `json:"conversations_change"`
	AppointmentsBooked  int     `json:"appointments_booked"`
	AppointmentsChange  string  `json:"appointments_change"`
	ConversionRate      float64 `json:"conversion_rate"`
	ConversionChange    string  `json:"conversion_change"`
	AvgResponseTime     float64 `json:"avg_response_time"`
	ResponseTimeChange  string  `json:"response_time_change"`
}

// DashboardStats returns the stock overview numbers.
func DashboardStats() Stats {
	return Stats{
		TotalConversations:  152,
		ConversationsChange: "+12% from last week",
		AppointmentsBooked:  24,
		AppointmentsChange:  "+8% from last week",
		ConversionRate:      15.8,
		ConversionChange:    "+3% from last week",
		AvgResponseTime:     2.1,
		ResponseTimeChange:  "-0.3s from last week",
	}
}

// ConversationCard is a recent-conversation row on the dashboard.
type ConversationCard struct {
	Initial string `json:"initial"`
	Name    string `json:"name"`
	Preview string `json:"preview"`
	Status  string `json:"status"`
	TimeAgo string `json:"time_ago"`
}

// RecentConversations returns the stock recent-conversation cards.
func RecentConversations() []ConversationCard {
	return []ConversationCard{
		{
			Initial: "S",
			Name:    "Sarah Johnson",
			Preview: "I'd like to schedule an appointment for next week",
			Status:  "Completed",
			TimeAgo: "10 min ago",
		},
		{
			Initial: "M",
			Name:    "Michael Chen",
			Preview: "Do you accept insurance for therapy sessions?",
			Status:  "Ongoing",
			TimeAgo: "25 min ago",
		},
		{
			Initial: "E",
			Name:    "Emma Wilson",
			Preview: "What are your hours of operation?",
			Status:  "Completed",
			TimeAgo: "1 hour ago",
		},
		{
			Initial: "J",
			Name:    "James Rodriguez",
			Preview: "I need information about couples therapy",
			Status:  "Completed",
			TimeAgo: "2 hours ago",
		},
	}
}

// ErrorConversation is the single card shown when the CRM lookup fails.
func ErrorConversation() ConversationCard {
	return ConversationCard{
		Initial: "D",
		Name:    "Demo User",
		Preview: "This is demo data - connect your GHL API to see real data",
		Status:  "Demo",
		TimeAgo: "now",
	}
}

// ChatbotStatus is the bot status card.
type ChatbotStatus struct {
	Status        string `json:"status"`
	Model         string `json:"model"`
	KnowledgeBase string `json:"knowledge_base"`
	LastUpdated   string `json:"last_updated"`
}

// BotStatus returns the stock chatbot status card.
func BotStatus() ChatbotStatus {
	return ChatbotStatus{
		Status:        "Active",
		Model:         "Claude 3.5 Sonnet",
		KnowledgeBase: "12 documents",
		LastUpdated:   "2 days ago",
	}
}

// DayActivity is one bar of the weekly activity chart.
type DayActivity struct {
	Day           string `json:"day"`
	Conversations int    `json:"conversations"`
	Appointments  int    `json:"appointments"`
}

// WeeklyActivity returns the stock weekly bar chart, Monday through Sunday.
func WeeklyActivity() []DayActivity {
	return []DayActivity{
		{Day: "Mon", Conversations: 12, Appointments: 3},
		{Day: "Tue", Conversations: 8, Appointments: 2},
		{Day: "Wed", Conversations: 22, Appointments: 5},
		{Day: "Thu", Conversations: 18, Appointments: 4},
		{Day: "Fri", Conversations: 15, Appointments: 3},
		{Day: "Sat", Conversations: 8, Appointments: 2},
		{Day: "Sun", Conversations: 7, Appointments: 2},
	}
}

// TopicShare is one slice of the topic pie chart.
type TopicShare struct {
	Topic   string  `json:"topic"`
	Percent float64 `json:"percent"`
}

// TopTopics returns the stock topic distribution.
func TopTopics() []TopicShare {
	return []TopicShare{
		{Topic: "Appointment Scheduling", Percent: 35.0},
		{Topic: "Service Information", Percent: 25.0},
		{Topic: "Insurance Questions", Percent: 20.0},
		{Topic: "Location & Hours", Percent: 12.0},
		{Topic: "Pricing", Percent: 8.0},
	}
}

// ResponseTimeTrend returns the stock response-time line chart, in seconds.
func ResponseTimeTrend() []float64 {
	return []float64{3.2, 2.8, 2.5, 2.1, 2.3, 2.0}
}

// PracticeProfile is the stock practice-info page payload.
type PracticeProfile struct {
	PracticeName     string `json:"practice_name"`
	PracticeEmail    string `json:"practice_email"`
	PhoneNumber      string `json:"phone_number"`
	Website          string `json:"website"`
	HoursOfOperation string `json:"hours_of_operation"`
	TeamSize         string `json:"team_size"`
	ServiceDelivery  string `json:"service_delivery"`
	AcceptsInsurance bool   `json:"accepts_insurance"`
}

// Profile returns the stock practice profile.
func Profile() PracticeProfile {
	return PracticeProfile{
		PracticeName:     "Intensive Therapy Retreats",
		PracticeEmail:    "support@intensivetherapyretreat.com",
		PhoneNumber:      "413-331-7421",
		Website:          "https://intensivetherapyretreat.com",
		HoursOfOperation: "Mon-Fri 9a-5p",
		TeamSize:         "group_practice",
		ServiceDelivery:  "both",
		AcceptsInsurance: true,
	}
}

// Location is a stock practice location.
type Location struct {
	ID                      string `json:"id"`
	Name                    string `json:"name"`
	Address                 string `json:"address"`
	City                    string `json:"city"`
	State                   string `json:"state"`
	ZipCode                 string `json:"zip_code"`
	Phone                   string `json:"phone"`
	Email                   string `json:"email"`
	IsPrimary               bool   `json:"is_primary"`
	OnlineSessionsAvailable bool   `json:"online_sessions_available"`
}

// Locations returns the stock location list.
func Locations() []Location {
	return []Location{
		{
			ID:                      "loc_1",
			Name:                    "Main Office",
			Address:                 "123 Therapy Lane",
			City:                    "Springfield",
			State:                   "MA",
			ZipCode:                 "01103",
			Phone:                   "413-331-7421",
			Email:                   "main@intensivetherapyretreat.com",
			IsPrimary:               true,
			OnlineSessionsAvailable: true,
		},
	}
}

// Services is the stock services page payload.
type Services struct {
	WhatWeTreat      []string `json:"what_we_treat"`
	HowWeTreat       []string `json:"how_we_treat"`
	ClientExperience string   `json:"client_experience"`
}

// ServiceCatalog returns the stock services payload.
func ServiceCatalog() Services {
	return Services{
		WhatWeTreat: []string{
			"Anxiety and Depression",
			"Trauma and PTSD",
			"Relationship Issues",
			"Life Transitions",
			"Stress Management",
		},
		HowWeTreat: []string{
			"Cognitive Behavioral Therapy (CBT)",
			"EMDR Therapy",
			"Mindfulness-Based Approaches",
			"Solution-Focused Therapy",
			"Intensive Therapy Retreats",
		},
		ClientExperience: "We provide a safe, supportive environment for healing and growth. Our approach is collaborative and tailored to your unique needs and goals.",
	}
}

// Branding is the stock chatbot branding payload.
type Branding struct {
	BotName        string `json:"bot_name"`
	PrimaryColor   string `json:"primary_color"`
	SecondaryColor string `json:"secondary_color"`
	TitleFont      string `json:"title_font"`
	BodyFont       string `json:"body_font"`
	LogoURL        string `json:"logo_url,omitempty"`
	WelcomeMessage string `json:"welcome_message"`
}

// BotBranding returns the stock branding.
func BotBranding() Branding {
	return Branding{
		BotName:        "Retreat Bot",
		PrimaryColor:   "#ac7782",
		SecondaryColor: "#d3d6de",
		TitleFont:      "Inter",
		BodyFont:       "Inter",
		WelcomeMessage: "Hi! I'm here to help you with scheduling and answering questions about our therapy services. How can I assist you today?",
	}
}

// Instructions is the stock bot instructions payload.
type Instructions struct {
	WhatBotShouldSay           string `json:"what_bot_should_say"`
	WhatBotShouldNeverSay      string `json:"what_bot_should_never_say"`
	EmergencyInstructions      string `json:"emergency_instructions"`
	MaxMessagesPerConversation int    `json:"max_messages_per_conversation"`
}

// BotInstructions returns the stock instructions.
func BotInstructions() Instructions {
	return Instructions{
		WhatBotShouldSay:           "Be warm, professional, and helpful. Focus on scheduling appointments and providing basic practice information.",
		WhatBotShouldNeverSay:      "Never provide therapy advice, diagnose conditions, or discuss specific treatment details.",
		EmergencyInstructions:      "For mental health emergencies, direct users to call 988 (Suicide & Crisis Lifeline) or 911.",
		MaxMessagesPerConversation: 20,
	}
}

// AppointmentConfig is the stock booking configuration.
type AppointmentConfig struct {
	Enabled            bool     `json:"enabled"`
	GoogleCalendarID   string   `json:"google_calendar_id"`
	BookingHoursStart  string   `json:"booking_hours_start"`
	BookingHoursEnd    string   `json:"booking_hours_end"`
	AvailableDays      []string `json:"available_days"`
	AppointmentTypes   []string `json:"appointment_types"`
	BufferTimeMinutes  int      `json:"buffer_time_minutes"`
	AdvanceBookingDays int      `json:"advance_booking_days"`
}

// BookingConfig returns the stock appointment configuration.
func BookingConfig() AppointmentConfig {
	return AppointmentConfig{
		Enabled:            true,
		GoogleCalendarID:   "your-calendar@gmail.com",
		BookingHoursStart:  "09:00",
		BookingHoursEnd:    "17:00",
		AvailableDays:      []string{"monday", "tuesday", "wednesday", "thursday", "friday"},
		AppointmentTypes:   []string{"Initial Consultation", "Individual Therapy", "Couples Therapy"},
		BufferTimeMinutes:  15,
		AdvanceBookingDays: 30,
	}
}

// FAQ is a stock knowledge base entry.
type FAQ struct {
	ID       string `json:"id"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Category string `json:"category"`
}

// KnowledgeBase is the stock knowledge base payload.
type KnowledgeBase struct {
	FAQs         []FAQ               `json:"faqs"`
	Documents    []map[string]string `json:"documents"`
	WebsiteLinks []map[string]string `json:"website_links"`
}

// KnowledgeBaseContent returns the stock knowledge base.
func KnowledgeBaseContent() KnowledgeBase {
	return KnowledgeBase{
		FAQs: []FAQ{
			{
				ID:       "faq_1",
				Question: "What types of therapy do you offer?",
				Answer:   "We offer individual therapy, couples counseling, and intensive therapy retreats using evidence-based approaches.",
				Category: "Services",
			},
		},
		Documents: []map[string]string{
			{
				"id":          "doc_1",
				"name":        "Intake Forms",
				"url":         "/documents/intake-forms.pdf",
				"uploaded_at": "2025-01-10",
			},
		},
		WebsiteLinks: []map[string]string{
			{
				"id":          "link_1",
				"title":       "About Our Approach",
				"url":         "https://intensivetherapyretreat.com/approach",
				"description": "Learn about our therapeutic methodology",
			},
		},
	}
}

// WebsiteIntegration is the embed snippet payload for a practice.
type WebsiteIntegration struct {
	EmbedCode         string         `json:"embed_code"`
	WidgetSettings    map[string]any `json:"widget_settings"`
	InstallationGuide string         `json:"installation_guide"`
}

// Integration returns the embed snippet for the given practice.
func Integration(practiceID string) WebsiteIntegration {
	return WebsiteIntegration{
		EmbedCode: fmt.Sprintf(`<script src="https://moonraker-engage.com/widget.js" data-practice-id="%s"></script>`, practiceID),
		WidgetSettings: map[string]any{
			"position":            "bottom-right",
			"theme":               "auto",
			"expanded_by_default": false,
		},
		InstallationGuide: "Copy the embed code and paste it before the closing </body> tag on your website.",
	}
}
