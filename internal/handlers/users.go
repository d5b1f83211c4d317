package handlers

import (
	"strings"

	"medichat-server/internal/models"
	"medichat-server/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ListUsers returns every user, optionally filtered by ?role=. Passwords are never included.
func (h *AuthHandler) ListUsers(c *gin.Context) {
	query := h.DB.WithContext(c.Request.Context()).Order("created_at asc")

	if raw := strings.TrimSpace(c.Query("role")); raw != "" {
		role := models.Role(strings.ToLower(raw))
		if !role.Valid() {
			utils.BadRequest(c, "role must be one of [patient doctor]")
			return
		}
		query = query.Where("role = ?", role)
	}

	var users []models.User
	if err := query.Find(&users).Error; err != nil {
		h.Logger.Error("failed to list users", zap.Error(err))
		utils.InternalServerError(c, "Server error")
		return
	}

	sanitized := make([]models.UserSanitized, len(users))
	for i := range users {
		sanitized[i] = users[i].Sanitize()
	}
	utils.JSON(c, gin.H{"users": sanitized})
}
