// Package practice manages the tenant root: practice profile, locations,
// services, and the chatbot configuration blobs the bots read at runtime.
package practice

import (
	"time"

	"github.com/google/uuid"
)

// Practice account status.
const (
	StatusActive    = "active"
	StatusTrial     = "trial"
	StatusSuspended = "suspended"
	StatusCancelled = "cancelled"
)

// Team size options.
const (
	TeamSolo          = "solo"
	TeamSmallGroup    = "small_group"
	TeamGroupPractice = "group_practice"
)

// Service delivery options.
const (
	DeliveryInPerson = "in_person"
	DeliveryOnline   = "online"
	DeliveryBoth     = "both"
)

// Practice is one therapy practice tenant. The configuration blobs are
// stored as JSON columns; everything else is flat.
type Practice struct {
	ID                  uuid.UUID           `db:"id" json:"id"`
	CRMLocationID       *string             `db:"crm_location_id" json:"crm_location_id,omitempty"`
	Name                string              `db:"name" json:"name"`
	Email               string              `db:"email" json:"email"`
	Phone               *string             `db:"phone" json:"phone,omitempty"`
	Website             *string             `db:"website" json:"website,omitempty"`
	HoursOfOperation    string              `db:"hours_of_operation" json:"hours_of_operation"`
	TeamSize            string              `db:"team_size" json:"team_size"`
	ServiceDelivery     string              `db:"service_delivery" json:"service_delivery"`
	AcceptsInsurance    bool                `db:"accepts_insurance" json:"accepts_insurance"`
	Branding            Branding            `db:"branding_config" json:"branding"`
	Appointments        AppointmentSettings `db:"appointment_config" json:"appointments"`
	Instructions        BotInstructions     `db:"bot_instructions" json:"bot_instructions"`
	Services            ServicesInfo        `db:"services_config" json:"services"`
	Locations           []Location          `db:"locations" json:"locations"`
	KnowledgeBase       KnowledgeBase       `db:"knowledge_base" json:"knowledge_base"`
	Status              string              `db:"status" json:"status"`
	OnboardingCompleted bool                `db:"onboarding_completed" json:"onboarding_completed"`
	CreatedAt           time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time           `db:"updated_at" json:"updated_at"`
}

// Branding is the widget look-and-feel configuration.
type Branding struct {
	BotName        string  `json:"bot_name"`
	PrimaryColor   string  `json:"primary_color"`
	SecondaryColor string  `json:"secondary_color"`
	TitleFont      string  `json:"title_font"`
	BodyFont       string  `json:"body_font"`
	LogoURL        *string `json:"logo_url"`
	WelcomeMessage string  `json:"welcome_message"`
}

func DefaultBranding() Branding {
	return Branding{
		BotName:        "Retreat Bot",
		PrimaryColor:   "#ac7782",
		SecondaryColor: "#d3d6de",
		TitleFont:      "Inter",
		BodyFont:       "Inter",
		WelcomeMessage: "Hi! I'm here to help you with scheduling and answering questions about our therapy services. How can I assist you today?",
	}
}

// AppointmentSettings is the booking configuration the sales bot reads.
type AppointmentSettings struct {
	Enabled            bool     `json:"enabled"`
	CalendarID         *string  `json:"google_calendar_id"`
	BookingHoursStart  string   `json:"booking_hours_start"`
	BookingHoursEnd    string   `json:"booking_hours_end"`
	AvailableDays      []string `json:"available_days"`
	AppointmentTypes   []string `json:"appointment_types"`
	BufferMinutes      int      `json:"buffer_time_minutes"`
	AdvanceBookingDays int      `json:"advance_booking_days"`
}

func DefaultAppointmentSettings() AppointmentSettings {
	return AppointmentSettings{
		Enabled:            true,
		BookingHoursStart:  "09:00",
		BookingHoursEnd:    "17:00",
		AvailableDays:      []string{"monday", "tuesday", "wednesday", "thursday", "friday"},
		AppointmentTypes:   []string{"Initial Consultation", "Individual Therapy", "Couples Therapy"},
		BufferMinutes:      15,
		AdvanceBookingDays: 30,
	}
}

// BotInstructions constrains what the bots say.
type BotInstructions struct {
	ShouldSay                  string `json:"what_bot_should_say"`
	NeverSay                   string `json:"what_bot_should_never_say"`
	EmergencyInstructions      string `json:"emergency_instructions"`
	MaxMessagesPerConversation int    `json:"max_messages_per_conversation"`
}

func DefaultBotInstructions() BotInstructions {
	return BotInstructions{
		ShouldSay:                  "Be warm, professional, and helpful. Focus on scheduling appointments and providing basic practice information.",
		NeverSay:                   "Never provide therapy advice, diagnose conditions, or discuss specific treatment details.",
		EmergencyInstructions:      "For mental health emergencies, direct users to call 988 (Suicide & Crisis Lifeline) or 911.",
		MaxMessagesPerConversation: 20,
	}
}

// ServicesInfo describes what the practice treats and how.
type ServicesInfo struct {
	WhatWeTreat      []string `json:"what_we_treat"`
	HowWeTreat       []string `json:"how_we_treat"`
	ClientExperience string   `json:"client_experience"`
}

// Location is one practice office.
type Location struct {
	ID                      string  `json:"id"`
	Name                    string  `json:"name"`
	Address                 string  `json:"address"`
	City                    string  `json:"city"`
	State                   string  `json:"state"`
	ZipCode                 string  `json:"zip_code"`
	Phone                   *string `json:"phone,omitempty"`
	Email                   *string `json:"email,omitempty"`
	IsPrimary               bool    `json:"is_primary"`
	OnlineSessionsAvailable bool    `json:"online_sessions_available"`
}

// KnowledgeBase holds the curated FAQ and link content the bots draw on.
// Uploaded documents live in the blob store, not here.
type KnowledgeBase struct {
	FAQs         []FAQ         `json:"faqs"`
	WebsiteLinks []WebsiteLink `json:"website_links"`
}

type FAQ struct {
	ID       string `json:"id"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Category string `json:"category,omitempty"`
}

type WebsiteLink struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
}

// PrimaryLocation returns the flagged primary office, or the first one.
func (p *Practice) PrimaryLocation() *Location {
	if len(p.Locations) == 0 {
		return nil
	}
	for i := range p.Locations {
		if p.Locations[i].IsPrimary {
			return &p.Locations[i]
		}
	}
	return &p.Locations[0]
}
