package middleware

import (
	"errors"

	"medichat-server/internal/models"
	"medichat-server/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	contextUserID   = "userID"
	contextUserRole = "userRole"
	contextUser     = "user"
)

// AuthMiddleware creates a middleware for JWT authentication. The token must
// belong to a user that still exists.
func AuthMiddleware(tokens *utils.TokenService, db *gorm.DB, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			utils.Unauthorized(c, "Authorization header required")
			c.Abort()
			return
		}

		tokenString, err := utils.ParseBearer(authHeader)
		if err != nil {
			utils.Unauthorized(c, "Invalid authorization header")
			c.Abort()
			return
		}

		claims, err := tokens.Verify(tokenString)
		if err != nil {
			logger.Debug("token rejected", zap.Error(err))
			utils.Unauthorized(c, "Invalid token")
			c.Abort()
			return
		}

		var user models.User
		if err := db.WithContext(c.Request.Context()).First(&user, "id = ?", claims.UserID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				utils.Unauthorized(c, "User not found")
			} else {
				logger.Error("failed to load token user", zap.String("user_id", claims.UserID), zap.Error(err))
				utils.InternalServerError(c, "Server error")
			}
			c.Abort()
			return
		}

		// The stored role wins over the claim so role changes apply immediately.
		c.Set(contextUserID, user.ID)
		c.Set(contextUserRole, user.Role)
		c.Set(contextUser, &user)

		c.Next()
	}
}

// RoleAuthMiddleware creates a middleware for role-based authorization.
// It should be used *after* AuthMiddleware.
func RoleAuthMiddleware(allowedRoles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := GetUserRoleFromContext(c)
		if !ok {
			utils.Unauthorized(c, "Unauthorized")
			c.Abort()
			return
		}

		for _, allowedRole := range allowedRoles {
			if role == allowedRole {
				c.Next()
				return
			}
		}

		utils.Forbidden(c, "Forbidden: insufficient role")
		c.Abort()
	}
}

// GetUserIDFromContext returns the authenticated user's id.
func GetUserIDFromContext(c *gin.Context) (string, bool) {
	userID, exists := c.Get(contextUserID)
	if !exists {
		return "", false
	}
	idStr, ok := userID.(string)
	return idStr, ok
}

// GetUserRoleFromContext returns the authenticated user's role.
func GetUserRoleFromContext(c *gin.Context) (models.Role, bool) {
	userRole, exists := c.Get(contextUserRole)
	if !exists {
		return "", false
	}
	role, ok := userRole.(models.Role)
	return role, ok
}

// GetUserFromContext returns the user record loaded by AuthMiddleware.
func GetUserFromContext(c *gin.Context) (*models.User, bool) {
	user, exists := c.Get(contextUser)
	if !exists {
		return nil, false
	}
	u, ok := user.(*models.User)
	return u, ok
}
