package handlers

import (
	"context"
	"errors"
	"strings"
	"time"

	"medichat-server/internal/cache"
	"medichat-server/internal/models"
	"medichat-server/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AppointmentHandler handles appointment related requests.
type AppointmentHandler struct {
	DB     *gorm.DB
	Cache  *cache.HistoryCache
	Logger *zap.Logger
}

// NewAppointmentHandler creates a new AppointmentHandler.
func NewAppointmentHandler(db *gorm.DB, history *cache.HistoryCache, logger *zap.Logger) *AppointmentHandler {
	return &AppointmentHandler{DB: db, Cache: history, Logger: logger}
}

// CreateAppointmentRequest represents the request body for creating an appointment.
type CreateAppointmentRequest struct {
	AssessmentID string           `json:"assessment_id"`
	DesiredDate  utils.FlexString `json:"desired_date"`
	Notes        string           `json:"notes"`
}

// AppointmentView is an appointment with the patient's contact details attached.
type AppointmentView struct {
	models.Appointment
	PatientName  string `json:"patient_name,omitempty"`
	PatientEmail string `json:"patient_email,omitempty"`
}

func newAppointmentView(a models.Appointment) AppointmentView {
	view := AppointmentView{Appointment: a}
	if a.Patient != nil {
		view.PatientName = a.Patient.Name
		view.PatientEmail = a.Patient.Email
	}
	return view
}

// CreateAppointment lets a patient request an appointment for one of their own
// critical or urgent assessments.
func (h *AppointmentHandler) CreateAppointment(c *gin.Context) {
	var req CreateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid request payload")
		return
	}
	if strings.TrimSpace(req.AssessmentID) == "" {
		utils.BadRequest(c, "assessment_id required")
		return
	}
	assessmentID, err := utils.ParseID(req.AssessmentID)
	if err != nil {
		utils.BadRequest(c, "invalid assessment id")
		return
	}

	userID, _ := caller(c)
	ctx := c.Request.Context()

	var assessment models.Assessment
	err = h.DB.WithContext(ctx).
		Where("id = ? AND user_id = ? AND type = ?", assessmentID.String(), userID, models.AssessmentType).
		First(&assessment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "Assessment not found or not owned by the current user. Please re-run the assessment and try again.")
		} else {
			h.Logger.Error("failed to load assessment", zap.Error(err))
			utils.InternalServerError(c, "Server error")
		}
		return
	}

	if !assessment.Severity.Serious() {
		utils.Forbidden(c, "Only serious assessments can request appointments")
		return
	}

	appointment := models.Appointment{
		PatientID:          userID,
		AssessmentID:       assessment.ID,
		AssessmentSnapshot: assessment.Snapshot(),
		DesiredDate:        req.DesiredDate.String(),
		Notes:              req.Notes,
		Status:             models.StatusPending,
	}
	if err := h.DB.WithContext(ctx).Create(&appointment).Error; err != nil {
		h.Logger.Error("failed to create appointment", zap.Error(err))
		utils.InternalServerError(c, "Server error")
		return
	}

	h.Logger.Info("appointment created",
		zap.String("appointment_id", appointment.ID),
		zap.String("patient_id", userID),
		zap.String("severity", string(assessment.Severity)))

	utils.JSON(c, gin.H{"appointment_id": appointment.ID, "status": appointment.Status})
}

// ListAppointments returns every appointment for doctors to triage.
func (h *AppointmentHandler) ListAppointments(c *gin.Context) {
	var appointments []models.Appointment
	if err := h.DB.WithContext(c.Request.Context()).
		Preload("Patient").
		Order("created_at asc").
		Find(&appointments).Error; err != nil {
		h.Logger.Error("failed to list appointments", zap.Error(err))
		utils.InternalServerError(c, "Server error")
		return
	}

	views := make([]AppointmentView, len(appointments))
	for i, a := range appointments {
		views[i] = newAppointmentView(a)
	}
	utils.JSON(c, gin.H{"appointments": views})
}

// GetAppointment returns one appointment. Appointments stored without a snapshot
// get one built from their assessment.
func (h *AppointmentHandler) GetAppointment(c *gin.Context) {
	id, err := utils.ParseID(c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	ctx := c.Request.Context()
	var appointment models.Appointment
	if err := findByID(ctx, h.DB.Preload("Patient"), &appointment, id.String(), "Not found"); err != nil {
		utils.RespondError(c, err)
		return
	}

	if appointment.AssessmentSnapshot == nil && appointment.AssessmentID != "" {
		h.backfillSnapshot(ctx, &appointment)
	}
	utils.JSON(c, gin.H{"appointment": newAppointmentView(appointment)})
}

func (h *AppointmentHandler) backfillSnapshot(ctx context.Context, appointment *models.Appointment) {
	var assessment models.Assessment
	err := h.DB.WithContext(ctx).
		Where("id = ? AND type = ?", appointment.AssessmentID, models.AssessmentType).
		First(&assessment).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			h.Logger.Warn("failed to load assessment for snapshot",
				zap.String("appointment_id", appointment.ID), zap.Error(err))
		}
		return
	}
	appointment.AssessmentSnapshot = assessment.Snapshot()
}

// UpdateAppointmentStatusRequest represents a doctor's decision on a pending appointment.
type UpdateAppointmentStatusRequest struct {
	Status models.AppointmentStatus `json:"status"`
	Note   string                   `json:"note"`
}

// UpdateAppointmentStatus accepts or declines a pending appointment. Accepting
// with a note also posts the note to the patient's chat history.
func (h *AppointmentHandler) UpdateAppointmentStatus(c *gin.Context) {
	id, err := utils.ParseID(c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	var req UpdateAppointmentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid request payload")
		return
	}
	if req.Status != models.StatusAccepted && req.Status != models.StatusDeclined {
		utils.BadRequest(c, "invalid status")
		return
	}

	doctorID, _ := caller(c)
	ctx := c.Request.Context()

	var appointment models.Appointment
	err = h.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := findByID(ctx, tx, &appointment, id.String(), "Not found"); err != nil {
			return err
		}

		// The status guard makes the pending -> decided transition happen once.
		res := tx.Model(&models.Appointment{}).
			Where("id = ? AND status = ?", appointment.ID, models.StatusPending).
			Updates(map[string]interface{}{"status": req.Status, "note": req.Note})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return utils.NewValidationError("appointment already " + string(appointment.Status))
		}

		if req.Status == models.StatusAccepted && req.Note != "" {
			msg := models.ChatMessage{
				UserID:    appointment.PatientID,
				Answer:    "Appointment update: " + req.Note,
				FromRole:  models.SourceDoctor,
				DoctorID:  &doctorID,
				Timestamp: time.Now().UTC(),
			}
			if err := tx.Create(&msg).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		var apiErr *utils.APIError
		if !errors.As(err, &apiErr) {
			h.Logger.Error("failed to update appointment status", zap.String("appointment_id", id.String()), zap.Error(err))
		}
		utils.RespondError(c, err)
		return
	}

	h.Cache.Invalidate(ctx, appointment.PatientID)
	h.Logger.Info("appointment status updated",
		zap.String("appointment_id", appointment.ID),
		zap.String("status", string(req.Status)),
		zap.String("doctor_id", doctorID))

	utils.Message(c, "updated")
}
