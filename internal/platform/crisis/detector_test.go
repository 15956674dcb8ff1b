package crisis

import (
	"strings"
	"testing"
)

func TestDetect_RiskLadder(t *testing.T) {
	tests := []struct {
		name     string
		message  string
		risk     RiskLevel
		escalate bool
	}{
		{"suicide phrase", "I want to kill myself", RiskCrisis, true},
		{"suicide plan", "I have a suicide plan ready", RiskCrisis, true},
		{"self-harm phrase", "I've been cutting again", RiskCrisis, true},
		{"uppercase still matches", "I FEEL SUICIDAL", RiskCrisis, true},
		{"psychosis phrase", "I keep hearing voices at night", RiskHigh, true},
		{"two distress phrases", "I feel hopeless and worthless", RiskHigh, true},
		{"single distress phrase", "everything feels hopeless lately", RiskModerate, false},
		{"benign message", "I had a good day at the park", RiskLow, false},
		{"empty message", "", RiskLow, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Detect(tt.message)
			if got.Risk != tt.risk {
				t.Errorf("Detect(%q).Risk = %s, want %s", tt.message, got.Risk, tt.risk)
			}
			if got.Escalate != tt.escalate {
				t.Errorf("Detect(%q).Escalate = %v, want %v", tt.message, got.Escalate, tt.escalate)
			}
		})
	}
}

func TestDetect_CollectsIndicators(t *testing.T) {
	got := Detect("I want to die and I can't go on")

	if got.Risk != RiskCrisis {
		t.Fatalf("Risk = %s, want %s", got.Risk, RiskCrisis)
	}
	want := []string{"want to die", "can't go on"}
	for _, kw := range want {
		found := false
		for _, ind := range got.Indicators {
			if ind == kw {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("Indicators = %v, missing %q", got.Indicators, kw)
		}
	}
}

func TestDetect_BenignHasNoIndicators(t *testing.T) {
	got := Detect("looking forward to my session tomorrow")
	if len(got.Indicators) != 0 {
		t.Errorf("Indicators = %v, want none", got.Indicators)
	}
}

func TestBuildAlert_Types(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    string
	}{
		{"suicide ideation", "I want to kill myself", AlertSuicideIdeation},
		{"self harm", "I cut myself last night", AlertSelfHarm},
		{"psychosis", "I feel paranoid all the time", AlertPsychosisIndicators},
		{"suicide wins over self harm", "thinking about suicide and I cut myself", AlertSuicideIdeation},
		{"distress falls back to general", "I feel hopeless and worthless", AlertGeneralCrisis},
		{"crisis phrase outside type lists", "I want to die", AlertGeneralCrisis},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := Detect(tt.message)
			alert := BuildAlert("patient-1", tt.message, a)
			if alert.AlertType != tt.want {
				t.Errorf("AlertType = %s, want %s", alert.AlertType, tt.want)
			}
		})
	}
}

func TestBuildAlert_Fields(t *testing.T) {
	msg := "I want to end my life"
	a := Detect(msg)
	alert := BuildAlert("patient-42", msg, a)

	if alert.PatientID != "patient-42" {
		t.Errorf("PatientID = %s, want patient-42", alert.PatientID)
	}
	if alert.TriggerMessage != msg {
		t.Errorf("TriggerMessage = %q, want %q", alert.TriggerMessage, msg)
	}
	if alert.Severity != "critical" {
		t.Errorf("Severity = %s, want critical", alert.Severity)
	}
	if alert.RecommendedAction != RecommendedAction {
		t.Errorf("RecommendedAction = %q", alert.RecommendedAction)
	}
	if !strings.Contains(alert.Summary, "Risk level: crisis") {
		t.Errorf("Summary = %q, want risk level mention", alert.Summary)
	}
	if !strings.Contains(alert.Summary, "end my life") {
		t.Errorf("Summary = %q, want indicator mention", alert.Summary)
	}
	if alert.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}
}

func TestSeverity(t *testing.T) {
	tests := []struct {
		risk RiskLevel
		want string
	}{
		{RiskCrisis, "critical"},
		{RiskHigh, "high"},
		{RiskModerate, "medium"},
		{RiskLow, "critical"},
	}
	for _, tt := range tests {
		if got := Severity(tt.risk); got != tt.want {
			t.Errorf("Severity(%s) = %s, want %s", tt.risk, got, tt.want)
		}
	}
}

func TestHotlines_CoreNumbers(t *testing.T) {
	lines := Hotlines()
	if len(lines) != 3 {
		t.Fatalf("len(Hotlines()) = %d, want 3", len(lines))
	}

	byNumber := make(map[string]Hotline, len(lines))
	for _, h := range lines {
		byNumber[h.Number] = h
	}
	for _, number := range []string{"988", "741741", "911"} {
		if _, ok := byNumber[number]; !ok {
			t.Errorf("missing hotline %s", number)
		}
	}
	if byNumber["911"].Website != "" {
		t.Errorf("911 website = %q, want empty", byNumber["911"].Website)
	}
}

func TestResponseResources_Keys(t *testing.T) {
	res := ResponseResources()
	for _, key := range []string{"crisis_text_line", "suicide_lifeline", "emergency", "your_therapist"} {
		if res[key] == "" {
			t.Errorf("ResponseResources()[%q] empty", key)
		}
	}
}

func TestFallbackResources(t *testing.T) {
	res := FallbackResources()
	if res["emergency"] != "Call 911" {
		t.Errorf("emergency = %q", res["emergency"])
	}
	if res["crisis_support"] != "Text 988" {
		t.Errorf("crisis_support = %q", res["crisis_support"])
	}
}
