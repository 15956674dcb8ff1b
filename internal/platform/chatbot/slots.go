package chatbot

import (
	"sync"
	"time"
)

// Slot generation mirrors the therapy calendar settings: 50-minute sessions
// on the hour with a 10-minute buffer between them.
const (
	slotHorizon   = 14 // days offered ahead
	defaultOpen   = 9  // hour, practice-local
	defaultClose  = 17
	maxSlotsOffer = 12
)

var defaultDays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"}

// SlotInventory tracks which consultation slots have been taken through the
// widget, per practice. It only guards against double-booking within this
// process; the CRM calendar remains the source of truth once an appointment
// is created there.
type SlotInventory struct {
	mu     sync.Mutex
	booked map[string]map[time.Time]bool
}

func NewSlotInventory() *SlotInventory {
	return &SlotInventory{booked: make(map[string]map[time.Time]bool)}
}

// Available returns up to max open slots for the practice starting after
// from, generated from the practice's appointment configuration. Zero-value
// config falls back to weekdays nine to five.
func (inv *SlotInventory) Available(practiceID string, cfg AppointmentConfig, from time.Time, max int) []time.Time {
	if max <= 0 || max > maxSlotsOffer {
		max = maxSlotsOffer
	}

	days := cfg.Days
	if len(days) == 0 {
		days = defaultDays
	}
	open, closeHour := parseHour(cfg.HoursStart, defaultOpen), parseHour(cfg.HoursEnd, defaultClose)
	if closeHour <= open {
		open, closeHour = defaultOpen, defaultClose
	}

	allowed := make(map[string]bool, len(days))
	for _, d := range days {
		allowed[d] = true
	}

	inv.mu.Lock()
	defer inv.mu.Unlock()
	taken := inv.booked[practiceID]

	var slots []time.Time
	day := from.Truncate(24 * time.Hour)
	for offset := 0; offset <= slotHorizon && len(slots) < max; offset++ {
		d := day.AddDate(0, 0, offset)
		if !allowed[d.Weekday().String()] {
			continue
		}
		for h := open; h < closeHour && len(slots) < max; h++ {
			at := time.Date(d.Year(), d.Month(), d.Day(), h, 0, 0, 0, from.Location())
			if !at.After(from) || taken[at] {
				continue
			}
			slots = append(slots, at)
		}
	}
	return slots
}

// Reserve marks a slot taken. It returns false when the slot was already
// reserved by another visitor.
func (inv *SlotInventory) Reserve(practiceID string, at time.Time) bool {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	taken, ok := inv.booked[practiceID]
	if !ok {
		taken = make(map[time.Time]bool)
		inv.booked[practiceID] = taken
	}
	if taken[at] {
		return false
	}
	taken[at] = true
	return true
}

// Release frees a slot after a failed CRM booking so another visitor can
// take it.
func (inv *SlotInventory) Release(practiceID string, at time.Time) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	delete(inv.booked[practiceID], at)
}

// parseHour reads the hour out of an "HH:MM" office-hours value.
func parseHour(s string, fallback int) int {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return fallback
	}
	return t.Hour()
}
