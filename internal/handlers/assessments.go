package handlers

import (
	"strings"

	"medichat-server/internal/generator"
	"medichat-server/internal/medicine"
	"medichat-server/internal/models"
	"medichat-server/internal/triage"
	"medichat-server/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// AssessmentHandler runs symptom assessments and serves their results.
type AssessmentHandler struct {
	DB        *gorm.DB
	Generator AnswerGenerator
	Medicines *medicine.KnowledgeBase
	Logger    *zap.Logger
}

// NewAssessmentHandler creates a new AssessmentHandler.
func NewAssessmentHandler(db *gorm.DB, gen AnswerGenerator, kb *medicine.KnowledgeBase, logger *zap.Logger) *AssessmentHandler {
	return &AssessmentHandler{DB: db, Generator: gen, Medicines: kb, Logger: logger}
}

// AssessRequest is the patient form. Age and duration may be sent as numbers.
type AssessRequest struct {
	Age        utils.FlexString `json:"age"`
	Symptoms   string           `json:"symptoms"`
	Duration   utils.FlexString `json:"duration"`
	Allergies  string           `json:"allergies"`
	Conditions string           `json:"conditions"`
}

func (r AssessRequest) form() triage.Form {
	return triage.Form{
		Age:        r.Age.String(),
		Symptoms:   r.Symptoms,
		Duration:   r.Duration.String(),
		Allergies:  r.Allergies,
		Conditions: r.Conditions,
	}
}

// AssessResponse is the outcome of one assessment.
type AssessResponse struct {
	AssessmentID    string                       `json:"assessment_id"`
	Severity        triage.Severity              `json:"severity"`
	Advice          string                       `json:"advice"`
	SuggestedMeds   []string                     `json:"suggested_meds"`
	MedicineDetails map[string]medicine.Medicine `json:"medicine_details"`
	ModelMedsRaw    string                       `json:"model_meds_raw"`
}

// Assess classifies the form, asks the generator for advice and a medicine list
// concurrently, filters the list through the knowledge base and stores the result.
func (h *AssessmentHandler) Assess(c *gin.Context) {
	var req AssessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid request payload")
		return
	}
	if strings.TrimSpace(req.Symptoms) == "" {
		utils.BadRequest(c, "symptoms required")
		return
	}

	form := req.form()
	severity := triage.Classify(form)
	gctx := generator.FormContext(form)

	var advice, medsRaw string
	g, ctx := errgroup.WithContext(c.Request.Context())
	g.Go(func() error {
		var err error
		advice, err = h.Generator.Generate(ctx, generator.AdviceQuestion(form, severity), models.RolePatient, gctx)
		return err
	})
	g.Go(func() error {
		var err error
		medsRaw, err = h.Generator.Generate(ctx, generator.MedicineQuestion(form), models.RolePatient, gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		utils.RespondError(c, err)
		return
	}

	suggested := h.Medicines.ExtractValid(medsRaw)
	userID, _ := caller(c)
	assessment := models.Assessment{
		UserID:          userID,
		Type:            models.AssessmentType,
		Form:            form,
		Severity:        severity,
		Advice:          advice,
		ModelMedsRaw:    medsRaw,
		SuggestedMeds:   suggested,
		MedicineDetails: h.Medicines.Details(suggested),
	}
	if err := h.DB.WithContext(c.Request.Context()).Create(&assessment).Error; err != nil {
		h.Logger.Error("failed to store assessment", zap.Error(err))
		utils.InternalServerError(c, "Server error")
		return
	}

	h.Logger.Info("assessment completed",
		zap.String("assessment_id", assessment.ID),
		zap.String("severity", string(severity)),
		zap.Int("suggested_meds", len(suggested)))

	utils.JSON(c, AssessResponse{
		AssessmentID:    assessment.ID,
		Severity:        severity,
		Advice:          advice,
		SuggestedMeds:   suggested,
		MedicineDetails: assessment.MedicineDetails,
		ModelMedsRaw:    medsRaw,
	})
}

// ListAssessments returns the caller's assessments, newest first.
func (h *AssessmentHandler) ListAssessments(c *gin.Context) {
	userID, _ := caller(c)

	assessments := []models.Assessment{}
	if err := h.DB.WithContext(c.Request.Context()).
		Where("user_id = ? AND type = ?", userID, models.AssessmentType).
		Order("created_at desc").
		Find(&assessments).Error; err != nil {
		h.Logger.Error("failed to list assessments", zap.Error(err))
		utils.InternalServerError(c, "Server error")
		return
	}
	utils.JSON(c, gin.H{"assessments": assessments})
}

// GetAssessment returns one assessment to its owner or to any doctor.
func (h *AssessmentHandler) GetAssessment(c *gin.Context) {
	id, err := utils.ParseID(c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	var assessment models.Assessment
	if err := findByID(c.Request.Context(), h.DB.Where("type = ?", models.AssessmentType), &assessment, id.String(), "Not found"); err != nil {
		utils.RespondError(c, err)
		return
	}

	userID, role := caller(c)
	if role != models.RoleDoctor && assessment.UserID != userID {
		utils.RespondError(c, utils.NewForbiddenError("Forbidden"))
		return
	}
	utils.JSON(c, gin.H{"assessment": assessment})
}
