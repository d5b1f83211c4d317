package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageSource identifies who produced a chat answer.
type MessageSource string

const (
	SourceSystem MessageSource = "system"
	SourceDoctor MessageSource = "doctor"
)

// StringList accepts either a JSON array of strings or a single string.
type StringList []string

// UnmarshalJSON implements json.Unmarshaler.
func (l *StringList) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*l = nil
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if single == "" {
			*l = nil
		} else {
			*l = StringList{single}
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("expected string or list of strings: %w", err)
	}
	*l = many
	return nil
}

// ChatContext is the optional clinical context a question is asked in.
type ChatContext struct {
	Medications StringList `json:"medications,omitempty"`
	Conditions  StringList `json:"conditions,omitempty"`
	Symptoms    string     `json:"symptoms,omitempty"`
	Allergies   string     `json:"allergies,omitempty"`
}

// ChatMessage is one question/answer turn, or a doctor note shown in a patient's history.
type ChatMessage struct {
	BaseModel
	UserID    string        `gorm:"size:36;index;not null" json:"user_id"`
	Question  *string       `gorm:"type:text" json:"question"`
	Answer    string        `gorm:"type:text" json:"answer"`
	FromRole  MessageSource `gorm:"size:20;default:'system'" json:"from_role"`
	DoctorID  *string       `gorm:"size:36;index" json:"doctor_id,omitempty"`
	Context   ChatContext   `gorm:"type:text;serializer:json" json:"context"`
	Timestamp time.Time     `gorm:"index" json:"timestamp"`
}

// EditableBy reports whether the given user may edit or delete the message:
// its owner, or the doctor who authored a doctor-attributed message.
func (m *ChatMessage) EditableBy(userID string, role Role) bool {
	if m.UserID == userID {
		return true
	}
	return role == RoleDoctor &&
		m.FromRole == SourceDoctor &&
		m.DoctorID != nil && *m.DoctorID == userID
}
