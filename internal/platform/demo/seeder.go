package demo

import (
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------

// SeedConfig controls the volume and shape of generated trial data.
type SeedConfig struct {
	PracticeID              string `json:"practiceId"`
	LeadCount               int    `json:"leadCount"`
	ConversationsPerLead    int    `json:"conversationsPerLead"`
	MessagesPerConversation int    `json:"messagesPerConversation"`
	AppointmentEvery        int    `json:"appointmentEvery"` // every Nth lead books
	IncludeCrisisAlert      bool   `json:"includeCrisisAlert"`
	Seed                    int64  `json:"seed"`
}

// DefaultSeedConfig returns a SeedConfig sized for a trial practice.
func DefaultSeedConfig() SeedConfig {
	return SeedConfig{
		PracticeID:              "trial-practice",
		LeadCount:               25,
		ConversationsPerLead:    2,
		MessagesPerConversation: 8,
		AppointmentEvery:        4,
		IncludeCrisisAlert:      true,
	}
}

// ---------------------------------------------------------------------------
// SeedResult
// ---------------------------------------------------------------------------

// SeedResult summarizes the output of a seed operation.
type SeedResult struct {
	Leads          int           `json:"leads"`
	Conversations  int           `json:"conversations"`
	Messages       int           `json:"messages"`
	Appointments   int           `json:"appointments"`
	CrisisAlerts   int           `json:"crisisAlerts"`
	TotalResources int           `json:"totalResources"`
	Duration       time.Duration `json:"duration"`
}

// ---------------------------------------------------------------------------
// Sample pools
// ---------------------------------------------------------------------------

var (
	firstNames = []string{
		"Sarah", "Michael", "Emma", "James", "Olivia", "Daniel", "Sophia",
		"David", "Isabella", "Matthew", "Mia", "Andrew", "Charlotte",
		"Joshua", "Amelia", "Ryan", "Harper", "Nathan", "Evelyn", "Tyler",
		"Abigail", "Brandon", "Ella", "Kevin", "Grace",
	}
	lastNames = []string{
		"Johnson", "Chen", "Wilson", "Rodriguez", "Smith", "Garcia",
		"Miller", "Davis", "Martinez", "Lopez", "Anderson", "Thomas",
		"Taylor", "Moore", "Jackson", "Lee", "Perez", "Thompson", "White",
		"Harris", "Clark", "Lewis", "Walker", "Young", "King",
	}
	leadSources = []string{"website", "referral", "google-ads", "facebook", "instagram"}
	topics      = []string{
		"Appointment Scheduling", "Service Information", "Insurance Questions",
		"Location & Hours", "Pricing",
	}
	visitorMessages = []string{
		"I'd like to schedule an appointment for next week",
		"Do you accept insurance for therapy sessions?",
		"What are your hours of operation?",
		"I need information about couples therapy",
		"How much does an initial consultation cost?",
		"Do you offer online sessions?",
		"Is the intensive retreat right for trauma recovery?",
		"Can I book a free consultation call?",
	}
	botReplies = []string{
		"Of course! I can help you with that. Could you share your name and the best way to reach you?",
		"We accept most major insurance plans. I'd be happy to check your specific plan.",
		"Our office is open Monday through Friday, 9am to 5pm.",
		"We offer couples therapy with several of our licensed therapists.",
		"An initial consultation is free. Would you like me to find a time for you?",
		"Yes, we offer both in-person and online sessions.",
		"Many of our clients come to us for trauma recovery. A consultation call is the best first step.",
		"Absolutely. What days work best for you?",
	}
	appointmentTypes = []string{"Initial Consultation", "Individual Therapy", "Couples Therapy"}
)

// ---------------------------------------------------------------------------
// Generator
// ---------------------------------------------------------------------------

// Generator produces reproducible sample resources for a trial practice.
type Generator struct {
	rng     *rand.Rand
	counter int
}

// NewGenerator creates a Generator with the given random seed.
func NewGenerator(seed int64) *Generator {
	return &Generator{rng: rand.New(rand.NewSource(seed))}
}

func (g *Generator) nextID(prefix string) string {
	g.counter++
	return fmt.Sprintf("%s-%06d", prefix, g.counter)
}

func (g *Generator) pick(pool []string) string {
	return pool[g.rng.Intn(len(pool))]
}

func (g *Generator) pastTime(maxDays int) time.Time {
	offset := time.Duration(g.rng.Intn(maxDays*24)) * time.Hour
	return time.Now().Add(-offset).Truncate(time.Minute)
}

// GenerateLead produces a sample captured lead.
func (g *Generator) GenerateLead(practiceID string) map[string]interface{} {
	first := g.pick(firstNames)
	last := g.pick(lastNames)
	return map[string]interface{}{
		"resourceType": "Lead",
		"id":           g.nextID("lead"),
		"practiceId":   practiceID,
		"firstName":    first,
		"lastName":     last,
		"email":        fmt.Sprintf("%s.%s@example.com", first, last),
		"phone":        fmt.Sprintf("413-%03d-%04d", g.rng.Intn(900)+100, g.rng.Intn(10000)),
		"source":       g.pick(leadSources),
		"capturedAt":   g.pastTime(30).Format(time.RFC3339),
	}
}

// GenerateConversation produces a sample bot conversation for a lead.
func (g *Generator) GenerateConversation(practiceID, leadID string) map[string]interface{} {
	status := "completed"
	if g.rng.Intn(5) == 0 {
		status = "active"
	}
	bot := "sales"
	if g.rng.Intn(3) == 0 {
		bot = "support"
	}
	return map[string]interface{}{
		"resourceType": "Conversation",
		"id":           g.nextID("conv"),
		"practiceId":   practiceID,
		"leadId":       leadID,
		"bot":          bot,
		"topic":        g.pick(topics),
		"status":       status,
		"startedAt":    g.pastTime(30).Format(time.RFC3339),
	}
}

// GenerateMessage produces one message inside a conversation. Even sequence
// numbers are the visitor, odd numbers are the bot.
func (g *Generator) GenerateMessage(practiceID, conversationID string, sequence int) map[string]interface{} {
	role := "visitor"
	text := g.pick(visitorMessages)
	if sequence%2 == 1 {
		role = "bot"
		text = g.pick(botReplies)
	}
	return map[string]interface{}{
		"resourceType":   "Message",
		"id":             g.nextID("msg"),
		"practiceId":     practiceID,
		"conversationId": conversationID,
		"sequence":       sequence,
		"role":           role,
		"text":           text,
	}
}

// GenerateAppointment produces a sample booked appointment for a lead.
func (g *Generator) GenerateAppointment(practiceID, leadID string) map[string]interface{} {
	start := time.Now().AddDate(0, 0, g.rng.Intn(14)+1).
		Truncate(24 * time.Hour).
		Add(time.Duration(9+g.rng.Intn(8)) * time.Hour)
	return map[string]interface{}{
		"resourceType": "Appointment",
		"id":           g.nextID("appt"),
		"practiceId":   practiceID,
		"leadId":       leadID,
		"type":         g.pick(appointmentTypes),
		"status":       "booked",
		"start":        start.Format(time.RFC3339),
		"end":          start.Add(50 * time.Minute).Format(time.RFC3339),
	}
}

// GenerateCrisisAlert produces a sample crisis alert tied to a conversation.
func (g *Generator) GenerateCrisisAlert(practiceID, conversationID string) map[string]interface{} {
	return map[string]interface{}{
		"resourceType":   "CrisisAlert",
		"id":             g.nextID("alert"),
		"practiceId":     practiceID,
		"conversationId": conversationID,
		"alertType":      "self_harm_language",
		"severity":       "high",
		"status":         "acknowledged",
		"createdAt":      g.pastTime(7).Format(time.RFC3339),
	}
}

// ---------------------------------------------------------------------------
// Seeder — orchestrates trial data generation
// ---------------------------------------------------------------------------

// Seeder orchestrates generation of a complete trial-practice dataset.
type Seeder struct {
	generator *Generator
	config    SeedConfig
	mu        sync.RWMutex
	resources map[string][]map[string]interface{}
}

// NewSeeder creates a new Seeder with the given config.
func NewSeeder(config SeedConfig) *Seeder {
	seed := config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Seeder{
		generator: NewGenerator(seed),
		config:    config,
		resources: make(map[string][]map[string]interface{}),
	}
}

// Generate creates all trial resources according to config.
func (s *Seeder) Generate() (*SeedResult, error) {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	// Reset
	s.resources = make(map[string][]map[string]interface{})

	result := &SeedResult{}
	practiceID := s.config.PracticeID
	if practiceID == "" {
		practiceID = "trial-practice"
	}

	var firstConversationID string
	for i := 0; i < s.config.LeadCount; i++ {
		lead := s.generator.GenerateLead(practiceID)
		leadID := lead["id"].(string)
		s.resources["Lead"] = append(s.resources["Lead"], lead)

		for j := 0; j < s.config.ConversationsPerLead; j++ {
			conv := s.generator.GenerateConversation(practiceID, leadID)
			convID := conv["id"].(string)
			if firstConversationID == "" {
				firstConversationID = convID
			}
			s.resources["Conversation"] = append(s.resources["Conversation"], conv)

			for k := 0; k < s.config.MessagesPerConversation; k++ {
				msg := s.generator.GenerateMessage(practiceID, convID, k)
				s.resources["Message"] = append(s.resources["Message"], msg)
				result.Messages++
			}
		}
		result.Conversations += s.config.ConversationsPerLead

		if s.config.AppointmentEvery > 0 && i%s.config.AppointmentEvery == 0 {
			appt := s.generator.GenerateAppointment(practiceID, leadID)
			s.resources["Appointment"] = append(s.resources["Appointment"], appt)
			result.Appointments++
		}
	}

	if s.config.IncludeCrisisAlert && firstConversationID != "" {
		alert := s.generator.GenerateCrisisAlert(practiceID, firstConversationID)
		s.resources["CrisisAlert"] = append(s.resources["CrisisAlert"], alert)
		result.CrisisAlerts = 1
	}

	result.Leads = s.config.LeadCount
	result.TotalResources = result.Leads + result.Conversations + result.Messages +
		result.Appointments + result.CrisisAlerts
	result.Duration = time.Since(start)

	return result, nil
}

// GetResources returns generated resources of the given type.
func (s *Seeder) GetResources(resourceType string) []map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resources[resourceType]
}

// ExportNDJSON writes resources of the given type as newline-delimited JSON.
func (s *Seeder) ExportNDJSON(w io.Writer, resourceType string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	resources := s.resources[resourceType]
	enc := json.NewEncoder(w)
	for _, r := range resources {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encoding %s: %w", resourceType, err)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// SeedHandler — Echo HTTP handlers
// ---------------------------------------------------------------------------

// SeedHandler provides HTTP endpoints for trial data management.
type SeedHandler struct {
	seeder *Seeder
	mu     sync.Mutex
}

// NewSeedHandler creates a new handler with no pre-seeded data.
func NewSeedHandler() *SeedHandler {
	return &SeedHandler{}
}

// RegisterRoutes registers demo routes on the given Echo group.
func (h *SeedHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/seed", h.handleSeed)
	g.GET("/resources/:type", h.handleListResources)
	g.POST("/reset", h.handleReset)
	g.GET("/export/ndjson/:type", h.handleExportNDJSON)
}

func (h *SeedHandler) handleSeed(c echo.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var cfg SeedConfig
	if err := c.Bind(&cfg); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	// Apply defaults for zero values
	if cfg.LeadCount == 0 {
		cfg.LeadCount = 10
	}
	if cfg.ConversationsPerLead == 0 {
		cfg.ConversationsPerLead = 1
	}
	if cfg.MessagesPerConversation == 0 {
		cfg.MessagesPerConversation = 6
	}

	h.seeder = NewSeeder(cfg)
	result, err := h.seeder.Generate()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, result)
}

func (h *SeedHandler) handleListResources(c echo.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.seeder == nil {
		return c.JSON(http.StatusOK, []interface{}{})
	}

	resourceType := c.Param("type")
	resources := h.seeder.GetResources(resourceType)
	if resources == nil {
		resources = []map[string]interface{}{}
	}
	return c.JSON(http.StatusOK, resources)
}

func (h *SeedHandler) handleReset(c echo.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.seeder != nil {
		h.seeder.mu.Lock()
		h.seeder.resources = make(map[string][]map[string]interface{})
		h.seeder.mu.Unlock()
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "reset"})
}

func (h *SeedHandler) handleExportNDJSON(c echo.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.seeder == nil {
		return c.String(http.StatusOK, "")
	}

	resourceType := c.Param("type")
	c.Response().Header().Set(echo.HeaderContentType, "application/x-ndjson")
	c.Response().WriteHeader(http.StatusOK)

	return h.seeder.ExportNDJSON(c.Response().Writer, resourceType)
}
