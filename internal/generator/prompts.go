package generator

import (
	"fmt"

	"medichat-server/internal/models"
	"medichat-server/internal/triage"
)

// AdviceQuestion asks for structured self-care advice for an assessment form.
func AdviceQuestion(form triage.Form, severity triage.Severity) string {
	return fmt.Sprintf("You are an experienced medical information specialist. A patient reports the following:\n\n"+
		"Age: %s\n"+
		"Symptoms: %s\n"+
		"Duration: %s\n"+
		"Allergies: %s\n"+
		"Medical History: %s\n\n"+
		"Severity Assessment: %s\n\n"+
		"Please provide:\n"+
		"1. Initial assessment of symptoms\n"+
		"2. Specific home care recommendations (with details)\n"+
		"3. Safe over-the-counter options if appropriate\n"+
		"4. Clear warning signs that require medical attention\n"+
		"5. When to seek urgent care\n\n"+
		"Be thorough, practical, and safety-conscious. Highlight any red flags.",
		form.Age, form.Symptoms, form.Duration, form.Allergies, form.Conditions, severity)
}

// MedicineQuestion asks for a bare comma-separated list of generic medicine names.
func MedicineQuestion(form triage.Form) string {
	return fmt.Sprintf("Based on the reported symptoms (%s), medical history (%s), and allergies (%s), "+
		"provide ONLY a brief comma-separated list of generic medication names that would be appropriate and safe. "+
		"Focus on common OTC options. Do not include dosing, brand names, or controlled substances. "+
		"If no medications are appropriate, respond with: 'None recommended at this time.' "+
		"Example format: 'acetaminophen, ibuprofen (if no contraindication)'",
		form.Symptoms, form.Conditions, form.Allergies)
}

// FormContext is the chat context derived from an assessment form.
func FormContext(form triage.Form) models.ChatContext {
	gctx := models.ChatContext{
		Symptoms:  form.Symptoms,
		Allergies: form.Allergies,
	}
	if form.Conditions != "" {
		gctx.Conditions = models.StringList{form.Conditions}
	}
	return gctx
}
