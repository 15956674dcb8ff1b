package chatbot

import (
	"regexp"
	"strings"
)

// Contact extraction patterns. Phone matching accepts both dashed and
// parenthesized US forms; name matching keys off common self-introductions.
var (
	emailPattern  = regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`)
	phonePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b\d{3}[-.]?\d{3}[-.]?\d{4}\b`),
		regexp.MustCompile(`\(\d{3}\)\s*\d{3}[-.]?\d{4}\b`),
	}
	namePatterns = []*regexp.Regexp{
		regexp.MustCompile(`my name is ([a-z\s]+)`),
		regexp.MustCompile(`i'm ([a-z\s]+)`),
		regexp.MustCompile(`this is ([a-z\s]+)`),
	}
)

// ExtractContactInfo pulls an email address, phone number, and name out of a
// visitor message. Keys present in the result: "email", "phone", "name".
func ExtractContactInfo(message string) map[string]string {
	info := make(map[string]string)

	if m := emailPattern.FindString(message); m != "" {
		info["email"] = m
	}

	for _, p := range phonePatterns {
		if m := p.FindString(message); m != "" {
			info["phone"] = m
			break
		}
	}

	lower := strings.ToLower(message)
	for _, p := range namePatterns {
		if m := p.FindStringSubmatch(lower); m != nil {
			info["name"] = titleCase(strings.TrimSpace(m[1]))
			break
		}
	}

	return info
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
