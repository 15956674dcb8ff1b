package hipaa

import (
	"testing"
)

func TestDefaultPHIFields_CoversExpectedRecords(t *testing.T) {
	configs := DefaultPHIFields()

	expected := map[string]bool{
		"patient":      false,
		"conversation": false,
		"crisis_alert": false,
	}

	for _, c := range configs {
		if _, ok := expected[c.RecordType]; ok {
			expected[c.RecordType] = true
		}
	}

	for rt, found := range expected {
		if !found {
			t.Errorf("expected PHI config for record type %q but it was missing", rt)
		}
	}
}

func TestDefaultPHIFields_PatientFields(t *testing.T) {
	configs := DefaultPHIFields()

	var patientCfg *PHIFieldConfig
	for i := range configs {
		if configs[i].RecordType == "patient" {
			patientCfg = &configs[i]
			break
		}
	}

	if patientCfg == nil {
		t.Fatal("patient PHI config not found")
	}

	requiredFields := []string{
		"preferred_name",
		"phone",
		"email",
		"emergency_contact",
		"diagnosis",
		"medication_list",
		"therapy_goals",
		"insurance_info",
		"therapist_notes",
	}

	fieldSet := make(map[string]bool, len(patientCfg.Fields))
	for _, f := range patientCfg.Fields {
		fieldSet[f] = true
	}

	for _, rf := range requiredFields {
		if !fieldSet[rf] {
			t.Errorf("patient config missing required PHI field %q", rf)
		}
	}
}

func TestPHIFieldPaths(t *testing.T) {
	paths := PHIFieldPaths()

	expectedPaths := []string{
		"patient.preferred_name",
		"patient.phone",
		"patient.email",
		"patient.emergency_contact",
		"patient.diagnosis",
		"patient.medication_list",
		"patient.therapy_goals",
		"patient.insurance_info",
		"patient.therapist_notes",
		"conversation.transcript",
		"crisis_alert.trigger_message",
	}

	for _, p := range expectedPaths {
		if !paths[p] {
			t.Errorf("PHIFieldPaths() missing expected path %q", p)
		}
	}

	// Verify total count matches expectations (no unexpected extras).
	if len(paths) != len(expectedPaths) {
		t.Errorf("PHIFieldPaths() has %d entries, expected %d", len(paths), len(expectedPaths))
	}
}

func TestIsPHIField(t *testing.T) {
	tests := []struct {
		record string
		field  string
		want   bool
	}{
		{"patient", "diagnosis", true},
		{"patient", "therapist_notes", true},
		{"conversation", "transcript", true},
		{"patient", "anonymized_id", false},
		{"patient", "risk_level", false},
		{"unknown", "diagnosis", false},
	}
	for _, tt := range tests {
		if got := IsPHIField(tt.record, tt.field); got != tt.want {
			t.Errorf("IsPHIField(%q, %q) = %v, want %v", tt.record, tt.field, got, tt.want)
		}
	}
}

func TestDefaultPHIFields_AllHaveNonEmptyFields(t *testing.T) {
	for _, cfg := range DefaultPHIFields() {
		if cfg.RecordType == "" {
			t.Error("found PHIFieldConfig with empty RecordType")
		}
		if len(cfg.Fields) == 0 {
			t.Errorf("PHIFieldConfig for %q has no fields", cfg.RecordType)
		}
	}
}
