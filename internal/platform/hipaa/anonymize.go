package hipaa

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
)

// anonymizationSalt keeps anonymized IDs stable across restarts so the same
// patient always maps to the same anonymous handle.
const anonymizationSalt = "patient_anonymization_salt_v1"

// AnonymizePatientID produces a stable, non-reversible handle for a patient
// identifier. The handle is what dashboards, chat transcripts, and outbound
// CRM payloads carry instead of the raw ID.
func AnonymizePatientID(patientID string) string {
	sum := sha256.Sum256([]byte(patientID + anonymizationSalt))
	return "anon_" + hex.EncodeToString(sum[:])[:16]
}

// Initials reduces a display name to initials for dashboard views, e.g.
// "Jane Doe" -> "J.D.". Empty input yields an empty string.
func Initials(name string) string {
	var b strings.Builder
	for _, part := range strings.Fields(name) {
		for _, r := range part {
			if unicode.IsLetter(r) {
				b.WriteRune(unicode.ToUpper(r))
				b.WriteByte('.')
			}
			break
		}
	}
	return b.String()
}
