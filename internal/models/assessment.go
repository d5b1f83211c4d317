package models

import (
	"medichat-server/internal/medicine"
	"medichat-server/internal/triage"
)

// AssessmentType is the fixed type tag stored on every assessment.
const AssessmentType = "assessment"

// Assessment is the stored result of one triage run.
type Assessment struct {
	BaseModel
	UserID          string                       `gorm:"size:36;index;not null" json:"user_id"`
	Type            string                       `gorm:"size:20;default:'assessment'" json:"type"`
	Form            triage.Form                  `gorm:"type:text;serializer:json" json:"form"`
	Severity        triage.Severity              `gorm:"size:20;index" json:"severity"`
	Advice          string                       `gorm:"type:text" json:"advice"`
	ModelMedsRaw    string                       `gorm:"type:text" json:"model_meds_raw"`
	SuggestedMeds   []string                     `gorm:"type:text;serializer:json" json:"suggested_meds"`
	MedicineDetails map[string]medicine.Medicine `gorm:"type:text;serializer:json" json:"medicine_details"`
}

// Snapshot copies the parts of the assessment a doctor needs to review an appointment.
func (a *Assessment) Snapshot() *AssessmentSnapshot {
	return &AssessmentSnapshot{
		Form:         a.Form,
		Severity:     a.Severity,
		Advice:       a.Advice,
		AssessmentID: a.ID,
	}
}
