// Package triage classifies a patient-reported symptom form into an urgency tier.
//
// Classification is a pure keyword and threshold check. It never calls a model and
// is safe to run on arbitrary free text.
package triage

import (
	"strconv"
	"strings"
)

// Severity is the urgency tier of an assessment.
type Severity string

const (
	SeverityCritical  Severity = "critical"
	SeverityUrgent    Severity = "urgent"
	SeverityNonUrgent Severity = "non_urgent"
)

// Serious reports whether the tier allows the patient to request an appointment.
func (s Severity) Serious() bool {
	return s == SeverityCritical || s == SeverityUrgent
}

// Form is the patient-reported input to an assessment. Age and duration are kept
// as free text exactly as they were submitted.
type Form struct {
	Age        string `json:"age"`
	Symptoms   string `json:"symptoms"`
	Duration   string `json:"duration"`
	Allergies  string `json:"allergies"`
	Conditions string `json:"conditions"`
}

// RedFlags are symptom phrases that indicate a potential emergency.
var RedFlags = []string{
	"chest pain",
	"shortness of breath",
	"difficulty breathing",
	"fainting",
	"loss of consciousness",
	"slurred speech",
	"sudden weakness",
	"severe bleeding",
	"severe allergic reaction",
	"severe abdominal pain",
	"seizure",
}

const (
	// infantAgeLimit is the age, in years, below which a fever is urgent.
	infantAgeLimit = 2
	// longIllnessDays is the duration at which any complaint becomes urgent.
	longIllnessDays = 7
)

// Classify maps a form to a severity tier. The first matching rule wins:
// a red flag in symptoms or conditions, a fever in an infant, a long duration.
func Classify(f Form) Severity {
	text := strings.ToLower(f.Symptoms + " " + f.Conditions)
	for _, flag := range RedFlags {
		if strings.Contains(text, flag) {
			return SeverityCritical
		}
	}

	if strings.Contains(strings.ToLower(f.Symptoms), "fever") {
		if age, ok := wholeYears(f.Age); ok && age < infantAgeLimit {
			return SeverityUrgent
		}
	}

	if days, ok := DurationDays(f.Duration); ok && days >= longIllnessDays {
		return SeverityUrgent
	}

	return SeverityNonUrgent
}

// DurationDays parses a duration field as a number of days. A decimal such as
// "7.5" counts its whole days only.
func DurationDays(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if d, err := strconv.Atoi(s); err == nil {
		return d, true
	}

	whole, frac, ok := strings.Cut(s, ".")
	if !ok || frac == "" || strings.Trim(frac, "0123456789") != "" {
		return 0, false
	}
	d, err := strconv.Atoi(whole)
	if err != nil {
		return 0, false
	}
	return d, true
}

// wholeYears accepts only a non-empty run of ASCII digits.
func wholeYears(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	age, err := strconv.Atoi(s)
	if err != nil {
		// overflow; certainly not an infant
		return 0, false
	}
	return age, true
}
