package handlers

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"medichat-server/internal/cache"
	"medichat-server/internal/models"
	"medichat-server/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ChatHandler handles questions, chat history and doctor notes.
type ChatHandler struct {
	DB        *gorm.DB
	Generator AnswerGenerator
	Cache     *cache.HistoryCache
	Logger    *zap.Logger
}

// NewChatHandler creates a new ChatHandler. history may be nil.
func NewChatHandler(db *gorm.DB, gen AnswerGenerator, history *cache.HistoryCache, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{DB: db, Generator: gen, Cache: history, Logger: logger}
}

// AskRequest represents the request body for asking a question.
type AskRequest struct {
	Question string             `json:"question"`
	Context  models.ChatContext `json:"context"`
}

// AskResponse is the generated answer and the id of the stored message.
type AskResponse struct {
	Answer    string `json:"answer"`
	MessageID string `json:"message_id"`
}

// Ask answers a question and records it in the caller's history.
func (h *ChatHandler) Ask(c *gin.Context) {
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid request payload")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		utils.BadRequest(c, "question required")
		return
	}

	userID, role := caller(c)
	ctx := c.Request.Context()

	answer, err := h.Generator.Generate(ctx, req.Question, role, req.Context)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	question := req.Question
	msg := models.ChatMessage{
		UserID:    userID,
		Question:  &question,
		Answer:    answer,
		FromRole:  models.SourceSystem,
		Context:   req.Context,
		Timestamp: time.Now().UTC(),
	}
	if err := h.DB.WithContext(ctx).Create(&msg).Error; err != nil {
		h.Logger.Error("failed to store chat message", zap.Error(err))
		utils.InternalServerError(c, "Server error")
		return
	}
	h.Cache.Invalidate(ctx, userID)

	utils.JSON(c, AskResponse{Answer: answer, MessageID: msg.ID})
}

// loadHistory returns a user's messages in timestamp order, through the cache when present.
func (h *ChatHandler) loadHistory(ctx context.Context, userID string) ([]models.ChatMessage, error) {
	return h.Cache.Load(ctx, userID, func(ctx context.Context) ([]models.ChatMessage, error) {
		messages := []models.ChatMessage{}
		if err := h.DB.WithContext(ctx).
			Where("user_id = ?", userID).
			Order("timestamp asc").
			Order("created_at asc").
			Find(&messages).Error; err != nil {
			return nil, err
		}
		return messages, nil
	})
}

// History returns the caller's own chat history.
func (h *ChatHandler) History(c *gin.Context) {
	userID, _ := caller(c)
	messages, err := h.loadHistory(c.Request.Context(), userID)
	if err != nil {
		h.Logger.Error("failed to load history", zap.String("user_id", userID), zap.Error(err))
		utils.InternalServerError(c, "Server error")
		return
	}
	utils.JSON(c, gin.H{"history": messages})
}

// PatientHistory lets a doctor read a patient's chat history.
func (h *ChatHandler) PatientHistory(c *gin.Context) {
	patientID, err := utils.ParseID(c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	messages, err := h.loadHistory(c.Request.Context(), patientID.String())
	if err != nil {
		h.Logger.Error("failed to load patient history", zap.String("patient_id", patientID.String()), zap.Error(err))
		utils.InternalServerError(c, "Server error")
		return
	}
	utils.JSON(c, gin.H{"history": messages})
}

// SuggestRequest represents a doctor's note for a patient.
type SuggestRequest struct {
	Suggestion string `json:"suggestion"`
}

// Suggest stores a doctor-attributed note in a patient's history.
func (h *ChatHandler) Suggest(c *gin.Context) {
	patientID, err := utils.ParseID(c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	var req SuggestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid request payload")
		return
	}
	if strings.TrimSpace(req.Suggestion) == "" {
		utils.BadRequest(c, "suggestion required")
		return
	}

	ctx := c.Request.Context()
	var patient models.User
	if err := findByID(ctx, h.DB, &patient, patientID.String(), "Patient not found"); err != nil {
		utils.RespondError(c, err)
		return
	}

	doctorID, _ := caller(c)
	msg := models.ChatMessage{
		UserID:    patient.ID,
		Answer:    req.Suggestion,
		FromRole:  models.SourceDoctor,
		DoctorID:  &doctorID,
		Timestamp: time.Now().UTC(),
	}
	if err := h.DB.WithContext(ctx).Create(&msg).Error; err != nil {
		h.Logger.Error("failed to store suggestion", zap.Error(err))
		utils.InternalServerError(c, "Server error")
		return
	}
	h.Cache.Invalidate(ctx, patient.ID)

	utils.JSON(c, gin.H{"message": "Suggestion saved", "message_id": msg.ID})
}

// loadEditableMessage resolves :id and checks the caller may change it.
func (h *ChatHandler) loadEditableMessage(c *gin.Context) (*models.ChatMessage, bool) {
	id, err := utils.ParseID(c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return nil, false
	}

	var msg models.ChatMessage
	if err := findByID(c.Request.Context(), h.DB, &msg, id.String(), "Not found"); err != nil {
		utils.RespondError(c, err)
		return nil, false
	}

	userID, role := caller(c)
	if !msg.EditableBy(userID, role) {
		utils.RespondError(c, utils.NewForbiddenError("Forbidden"))
		return nil, false
	}
	return &msg, true
}

// UpdateMessageRequest edits a stored question and optionally regenerates its answer.
type UpdateMessageRequest struct {
	Question *string `json:"question"`
	Rerun    bool    `json:"rerun"`
}

// UpdateMessage edits a message. With rerun the answer is regenerated from the
// stored context and the caller's role.
func (h *ChatHandler) UpdateMessage(c *gin.Context) {
	msg, ok := h.loadEditableMessage(c)
	if !ok {
		return
	}

	var req UpdateMessageRequest
	// An empty body changes nothing.
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		utils.BadRequest(c, "Invalid request payload")
		return
	}

	updates := map[string]interface{}{}
	if req.Question != nil {
		msg.Question = req.Question
		updates["question"] = *req.Question
	}

	ctx := c.Request.Context()
	if req.Rerun {
		question := ""
		if msg.Question != nil {
			question = *msg.Question
		}
		_, role := caller(c)
		answer, err := h.Generator.Generate(ctx, question, role, msg.Context)
		if err != nil {
			utils.RespondError(c, err)
			return
		}
		updates["answer"] = answer
		updates["timestamp"] = time.Now().UTC()
	}

	if len(updates) > 0 {
		if err := h.DB.WithContext(ctx).Model(msg).Updates(updates).Error; err != nil {
			h.Logger.Error("failed to update message", zap.String("message_id", msg.ID), zap.Error(err))
			utils.InternalServerError(c, "Server error")
			return
		}
		h.Cache.Invalidate(ctx, msg.UserID)
	}

	utils.Message(c, "updated")
}

// DeleteMessage removes a message under the same permission rule as UpdateMessage.
func (h *ChatHandler) DeleteMessage(c *gin.Context) {
	msg, ok := h.loadEditableMessage(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if err := h.DB.WithContext(ctx).Delete(msg).Error; err != nil {
		h.Logger.Error("failed to delete message", zap.String("message_id", msg.ID), zap.Error(err))
		utils.InternalServerError(c, "Server error")
		return
	}
	h.Cache.Invalidate(ctx, msg.UserID)

	utils.Message(c, "deleted")
}
