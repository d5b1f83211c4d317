package models

import (
	"medichat-server/internal/triage"
)

// AppointmentStatus represents the status of an appointment
type AppointmentStatus string

const (
	StatusPending  AppointmentStatus = "pending"
	StatusAccepted AppointmentStatus = "accepted"
	StatusDeclined AppointmentStatus = "declined"
)

// AssessmentSnapshot is the denormalized copy of an assessment kept on an appointment.
type AssessmentSnapshot struct {
	Form         triage.Form     `json:"form"`
	Severity     triage.Severity `json:"severity"`
	Advice       string          `json:"advice"`
	AssessmentID string          `json:"assessment_id"`
}

// Appointment is a patient's request to see a doctor about a serious assessment.
type Appointment struct {
	BaseModel
	PatientID          string              `gorm:"size:36;index;not null" json:"patient_id"`
	AssessmentID       string              `gorm:"size:36;index" json:"assessment_id"`
	AssessmentSnapshot *AssessmentSnapshot `gorm:"type:text;serializer:json" json:"assessment_snapshot,omitempty"`
	DesiredDate        string              `gorm:"size:64" json:"desired_date"`
	Notes              string              `gorm:"type:text" json:"notes"`
	Status             AppointmentStatus   `gorm:"size:20;default:'pending'" json:"status"`
	Note               string              `gorm:"type:text" json:"note"`

	// Relations
	Patient *User `gorm:"foreignKey:PatientID" json:"-"`
}
