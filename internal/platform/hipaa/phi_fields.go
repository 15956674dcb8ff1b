package hipaa

// PHIFieldConfig maps a record type to the field names that contain Protected
// Health Information and must be encrypted at rest.
type PHIFieldConfig struct {
	// RecordType names the record, e.g. "patient".
	RecordType string
	// Fields lists the column/field names within the record that carry PHI.
	Fields []string
}

// DefaultPHIFields returns the PHI field configuration for the records this
// platform stores. Display handles (anonymized IDs, initials) are derived
// before storage and are intentionally NOT listed: they carry no direct
// identifiers and sit on high-read dashboard paths.
func DefaultPHIFields() []PHIFieldConfig {
	return []PHIFieldConfig{
		{
			RecordType: "patient",
			Fields: []string{
				"preferred_name",
				"phone",
				"email",
				"emergency_contact",
				"diagnosis",
				"medication_list",
				"therapy_goals",
				"insurance_info",
				"therapist_notes",
			},
		},
		{
			RecordType: "conversation",
			Fields: []string{
				"transcript", // raw chat messages may contain anything a patient types
			},
		},
		{
			RecordType: "crisis_alert",
			Fields: []string{
				"trigger_message", // the verbatim message that raised the alert
			},
		},
	}
}

// PHIFieldPaths returns a flat set of "<RecordType>.<field>" strings for fast
// look-up. Example key: "patient.diagnosis".
func PHIFieldPaths() map[string]bool {
	configs := DefaultPHIFields()
	paths := make(map[string]bool, 16)
	for _, c := range configs {
		for _, f := range c.Fields {
			paths[c.RecordType+"."+f] = true
		}
	}
	return paths
}

// IsPHIField reports whether the given record field must be encrypted at rest.
func IsPHIField(recordType, field string) bool {
	return PHIFieldPaths()[recordType+"."+field]
}
