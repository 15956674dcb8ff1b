package crisis

import "strings"

// Conversation theme buckets, scanned in a fixed order so summaries stay
// deterministic.
var themes = []struct {
	display  string
	keywords []string
}{
	{"Anxiety", []string{"anxious", "worried", "panic", "nervous", "fear"}},
	{"Depression", []string{"sad", "depressed", "hopeless", "worthless", "empty"}},
	{"Relationships", []string{"family", "friend", "partner", "relationship", "alone"}},
	{"Work Stress", []string{"job", "work", "boss", "career", "stress"}},
	{"Trauma", []string{"trauma", "abuse", "ptsd", "flashback", "trigger"}},
}

// ExtractThemes returns the display names of themes present in the given
// patient messages.
func ExtractThemes(messages []string) []string {
	all := strings.ToLower(strings.Join(messages, " "))
	var found []string
	for _, th := range themes {
		for _, kw := range th.keywords {
			if strings.Contains(all, kw) {
				found = append(found, th.display)
				break
			}
		}
	}
	return found
}

// ThemeSummary renders the theme list for a session summary.
func ThemeSummary(messages []string) string {
	found := ExtractThemes(messages)
	if len(found) == 0 {
		return "General support and check-in"
	}
	return strings.Join(found, ", ")
}
