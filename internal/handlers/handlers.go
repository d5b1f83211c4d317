// Package handlers implements the HTTP endpoints of the API.
package handlers

import (
	"context"
	"errors"

	"medichat-server/internal/middleware"
	"medichat-server/internal/models"
	"medichat-server/internal/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// AnswerGenerator produces free-text answers. *generator.Service implements it.
type AnswerGenerator interface {
	Generate(ctx context.Context, question string, role models.Role, gctx models.ChatContext) (string, error)
}

// caller returns the identity set by middleware.AuthMiddleware.
func caller(c *gin.Context) (string, models.Role) {
	userID, _ := middleware.GetUserIDFromContext(c)
	role, ok := middleware.GetUserRoleFromContext(c)
	if !ok || !role.Valid() {
		role = models.RolePatient
	}
	return userID, role
}

// findByID loads a record by primary key, mapping a missing row to a not found error.
func findByID(ctx context.Context, db *gorm.DB, dest interface{}, id string, notFound string) error {
	err := db.WithContext(ctx).First(dest, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return utils.NewNotFoundError(notFound)
	}
	return err
}
