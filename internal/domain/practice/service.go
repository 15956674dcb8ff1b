package practice

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/moonraker/engage/internal/platform/chatbot"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

var validStatus = map[string]bool{
	StatusActive:    true,
	StatusTrial:     true,
	StatusSuspended: true,
	StatusCancelled: true,
}

var validTeamSize = map[string]bool{
	TeamSolo:          true,
	TeamSmallGroup:    true,
	TeamGroupPractice: true,
}

var validDelivery = map[string]bool{
	DeliveryInPerson: true,
	DeliveryOnline:   true,
	DeliveryBoth:     true,
}

var validDays = map[string]bool{
	"monday": true, "tuesday": true, "wednesday": true, "thursday": true,
	"friday": true, "saturday": true, "sunday": true,
}

// Create registers a new practice tenant. New practices start on trial with
// the default bot configuration.
func (s *Service) Create(ctx context.Context, p *Practice) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if strings.TrimSpace(p.Email) == "" {
		return fmt.Errorf("email is required")
	}
	if p.Status == "" {
		p.Status = StatusTrial
	}
	if !validStatus[p.Status] {
		return fmt.Errorf("invalid status: %s", p.Status)
	}
	if p.TeamSize == "" {
		p.TeamSize = TeamSolo
	}
	if !validTeamSize[p.TeamSize] {
		return fmt.Errorf("invalid team size: %s", p.TeamSize)
	}
	if p.ServiceDelivery == "" {
		p.ServiceDelivery = DeliveryBoth
	}
	if !validDelivery[p.ServiceDelivery] {
		return fmt.Errorf("invalid service delivery: %s", p.ServiceDelivery)
	}
	if p.HoursOfOperation == "" {
		p.HoursOfOperation = "Mon-Fri 9a-5p"
	}
	if p.Branding.BotName == "" {
		p.Branding = DefaultBranding()
	}
	if p.Instructions.ShouldSay == "" {
		p.Instructions = DefaultBotInstructions()
	}
	if len(p.Appointments.AvailableDays) == 0 {
		p.Appointments = DefaultAppointmentSettings()
	}
	return s.repo.Create(ctx, p)
}

// Get resolves a practice by its id. A malformed id reads as not found so
// callers can treat both uniformly.
func (s *Service) Get(ctx context.Context, practiceID string) (*Practice, error) {
	id, err := uuid.Parse(practiceID)
	if err != nil {
		return nil, ErrNotFound
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Practice, int, error) {
	return s.repo.List(ctx, limit, offset)
}

// InfoUpdate carries the optional fields of a practice-info update. Nil
// fields keep their current value.
type InfoUpdate struct {
	Name             *string `json:"practice_name"`
	Email            *string `json:"practice_email"`
	Phone            *string `json:"phone_number"`
	Website          *string `json:"website"`
	HoursOfOperation *string `json:"hours_of_operation"`
	TeamSize         *string `json:"team_size"`
	ServiceDelivery  *string `json:"service_delivery"`
	AcceptsInsurance *bool   `json:"accepts_insurance"`
}

func (s *Service) UpdateInfo(ctx context.Context, practiceID string, upd InfoUpdate) (*Practice, error) {
	p, err := s.Get(ctx, practiceID)
	if err != nil {
		return nil, err
	}

	if upd.Name != nil {
		if strings.TrimSpace(*upd.Name) == "" {
			return nil, fmt.Errorf("name cannot be empty")
		}
		p.Name = *upd.Name
	}
	if upd.Email != nil {
		if strings.TrimSpace(*upd.Email) == "" {
			return nil, fmt.Errorf("email cannot be empty")
		}
		p.Email = *upd.Email
	}
	if upd.Phone != nil {
		p.Phone = upd.Phone
	}
	if upd.Website != nil {
		p.Website = upd.Website
	}
	if upd.HoursOfOperation != nil {
		p.HoursOfOperation = *upd.HoursOfOperation
	}
	if upd.TeamSize != nil {
		if !validTeamSize[*upd.TeamSize] {
			return nil, fmt.Errorf("invalid team size: %s", *upd.TeamSize)
		}
		p.TeamSize = *upd.TeamSize
	}
	if upd.ServiceDelivery != nil {
		if !validDelivery[*upd.ServiceDelivery] {
			return nil, fmt.Errorf("invalid service delivery: %s", *upd.ServiceDelivery)
		}
		p.ServiceDelivery = *upd.ServiceDelivery
	}
	if upd.AcceptsInsurance != nil {
		p.AcceptsInsurance = *upd.AcceptsInsurance
	}

	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// ReplaceLocations swaps the full location list. The first location becomes
// primary when none is flagged.
func (s *Service) ReplaceLocations(ctx context.Context, practiceID string, locs []Location) (*Practice, error) {
	p, err := s.Get(ctx, practiceID)
	if err != nil {
		return nil, err
	}

	hasPrimary := false
	for i := range locs {
		if strings.TrimSpace(locs[i].Name) == "" || strings.TrimSpace(locs[i].Address) == "" {
			return nil, fmt.Errorf("location name and address are required")
		}
		if locs[i].ID == "" {
			locs[i].ID = "loc_" + uuid.NewString()
		}
		if locs[i].IsPrimary {
			if hasPrimary {
				return nil, fmt.Errorf("only one location can be primary")
			}
			hasPrimary = true
		}
	}
	if !hasPrimary && len(locs) > 0 {
		locs[0].IsPrimary = true
	}

	p.Locations = locs
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) UpdateServices(ctx context.Context, practiceID string, info ServicesInfo) (*Practice, error) {
	p, err := s.Get(ctx, practiceID)
	if err != nil {
		return nil, err
	}
	p.Services = info
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// UpdateBranding replaces the widget branding. Empty fields fall back to the
// defaults so a partial payload never blanks the widget.
func (s *Service) UpdateBranding(ctx context.Context, practiceID string, b Branding) (*Practice, error) {
	p, err := s.Get(ctx, practiceID)
	if err != nil {
		return nil, err
	}

	def := DefaultBranding()
	if b.BotName == "" {
		b.BotName = def.BotName
	}
	if b.PrimaryColor == "" {
		b.PrimaryColor = def.PrimaryColor
	}
	if b.SecondaryColor == "" {
		b.SecondaryColor = def.SecondaryColor
	}
	if b.TitleFont == "" {
		b.TitleFont = def.TitleFont
	}
	if b.BodyFont == "" {
		b.BodyFont = def.BodyFont
	}
	if b.WelcomeMessage == "" {
		b.WelcomeMessage = def.WelcomeMessage
	}
	if !strings.HasPrefix(b.PrimaryColor, "#") || !strings.HasPrefix(b.SecondaryColor, "#") {
		return nil, fmt.Errorf("colors must be hex values")
	}

	p.Branding = b
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) UpdateInstructions(ctx context.Context, practiceID string, ins BotInstructions) (*Practice, error) {
	p, err := s.Get(ctx, practiceID)
	if err != nil {
		return nil, err
	}
	if ins.MaxMessagesPerConversation <= 0 {
		ins.MaxMessagesPerConversation = DefaultBotInstructions().MaxMessagesPerConversation
	}
	p.Instructions = ins
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) UpdateAppointments(ctx context.Context, practiceID string, cfg AppointmentSettings) (*Practice, error) {
	p, err := s.Get(ctx, practiceID)
	if err != nil {
		return nil, err
	}

	def := DefaultAppointmentSettings()
	if cfg.BookingHoursStart == "" {
		cfg.BookingHoursStart = def.BookingHoursStart
	}
	if cfg.BookingHoursEnd == "" {
		cfg.BookingHoursEnd = def.BookingHoursEnd
	}
	for _, h := range []string{cfg.BookingHoursStart, cfg.BookingHoursEnd} {
		if _, err := time.Parse("15:04", h); err != nil {
			return nil, fmt.Errorf("booking hours must be HH:MM: %s", h)
		}
	}
	for _, d := range cfg.AvailableDays {
		if !validDays[strings.ToLower(d)] {
			return nil, fmt.Errorf("invalid day: %s", d)
		}
	}
	if len(cfg.AvailableDays) == 0 {
		cfg.AvailableDays = def.AvailableDays
	}
	if len(cfg.AppointmentTypes) == 0 {
		cfg.AppointmentTypes = def.AppointmentTypes
	}
	if cfg.BufferMinutes <= 0 {
		cfg.BufferMinutes = def.BufferMinutes
	}
	if cfg.AdvanceBookingDays <= 0 {
		cfg.AdvanceBookingDays = def.AdvanceBookingDays
	}

	p.Appointments = cfg
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) UpdateKnowledgeBase(ctx context.Context, practiceID string, kb KnowledgeBase) (*Practice, error) {
	p, err := s.Get(ctx, practiceID)
	if err != nil {
		return nil, err
	}

	for i := range kb.FAQs {
		if strings.TrimSpace(kb.FAQs[i].Question) == "" || strings.TrimSpace(kb.FAQs[i].Answer) == "" {
			return nil, fmt.Errorf("faq question and answer are required")
		}
		if kb.FAQs[i].ID == "" {
			kb.FAQs[i].ID = "faq_" + uuid.NewString()
		}
	}
	for i := range kb.WebsiteLinks {
		if strings.TrimSpace(kb.WebsiteLinks[i].URL) == "" {
			return nil, fmt.Errorf("link url is required")
		}
		if kb.WebsiteLinks[i].ID == "" {
			kb.WebsiteLinks[i].ID = "link_" + uuid.NewString()
		}
	}

	p.KnowledgeBase = kb
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// SalesBotConfig maps the stored practice configuration onto the slices the
// sales bot reads. It satisfies the conversation chat handler's config
// source.
func (s *Service) SalesBotConfig(ctx context.Context, practiceID string) (chatbot.PracticeInfo, chatbot.AppointmentConfig, error) {
	p, err := s.Get(ctx, practiceID)
	if err != nil {
		return chatbot.PracticeInfo{}, chatbot.AppointmentConfig{}, err
	}

	info := chatbot.PracticeInfo{
		Name:            p.Name,
		Hours:           p.HoursOfOperation,
		ServiceDelivery: deliveryLabel(p.ServiceDelivery),
		Approach:        p.Services.ClientExperience,
		Services:        p.Services.WhatWeTreat,
	}
	if loc := p.PrimaryLocation(); loc != nil {
		info.Address = fmt.Sprintf("%s, %s, %s %s", loc.Address, loc.City, loc.State, loc.ZipCode)
	}
	if p.AcceptsInsurance {
		info.InsuranceAccepted = "We accept most major insurance plans."
	} else {
		info.InsuranceAccepted = "We do not bill insurance directly, but we can provide superbills for reimbursement."
	}

	appt := chatbot.AppointmentConfig{
		Types:      p.Appointments.AppointmentTypes,
		Days:       p.Appointments.AvailableDays,
		HoursStart: p.Appointments.BookingHoursStart,
		HoursEnd:   p.Appointments.BookingHoursEnd,
	}
	return info, appt, nil
}

func deliveryLabel(delivery string) string {
	switch delivery {
	case DeliveryInPerson:
		return "In-Person"
	case DeliveryOnline:
		return "Online"
	default:
		return "Both In-Person & Online"
	}
}
