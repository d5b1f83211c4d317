package handlers

import (
	"errors"
	"strings"

	"medichat-server/internal/middleware"
	"medichat-server/internal/models"
	"medichat-server/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// AuthHandler handles authentication-related requests.
type AuthHandler struct {
	DB          *gorm.DB
	Tokens      *utils.TokenService
	EmailDomain string
	Logger      *zap.Logger
}

// NewAuthHandler creates a new AuthHandler. Only addresses ending in
// "@"+emailDomain may sign up or log in.
func NewAuthHandler(db *gorm.DB, tokens *utils.TokenService, emailDomain string, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{DB: db, Tokens: tokens, EmailDomain: emailDomain, Logger: logger}
}

// SignupRequest represents the request body for user registration.
type SignupRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,max=255"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role" validate:"omitempty,oneof=patient doctor"`
}

// SignupResponse is returned after a successful signup.
type SignupResponse struct {
	Message string `json:"message"`
	Token   string `json:"token"`
	UserID  string `json:"user_id"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (h *AuthHandler) allowedEmail(email string) bool {
	return strings.HasSuffix(email, "@"+h.EmailDomain)
}

func (h *AuthHandler) domainMessage() string {
	return "Email must be a @" + h.EmailDomain + " address"
}

// Signup handles user registration.
func (h *AuthHandler) Signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid request payload")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = normalizeEmail(req.Email)
	req.Role = strings.TrimSpace(req.Role)

	if req.Name == "" || req.Email == "" || req.Password == "" {
		utils.BadRequest(c, "Name, email and password are required")
		return
	}
	if err := utils.Validate(req); err != nil {
		utils.BadRequest(c, utils.FormatValidationError(err))
		return
	}
	if !h.allowedEmail(req.Email) {
		utils.BadRequest(c, h.domainMessage())
		return
	}

	role := models.RolePatient
	if req.Role != "" {
		role = models.Role(req.Role)
	}

	ctx := c.Request.Context()
	var existing models.User
	if err := h.DB.WithContext(ctx).Where("email = ?", req.Email).First(&existing).Error; err == nil {
		utils.BadRequest(c, "User already exists")
		return
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		h.Logger.Error("failed to check existing user", zap.Error(err))
		utils.InternalServerError(c, "Server error")
		return
	}

	user := models.User{Name: req.Name, Email: req.Email, Role: role}
	if err := user.SetPassword(req.Password); err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			utils.BadRequest(c, "Password must be at most 72 bytes")
			return
		}
		h.Logger.Error("failed to hash password", zap.Error(err))
		utils.InternalServerError(c, "Server error")
		return
	}

	if err := h.DB.WithContext(ctx).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			utils.BadRequest(c, "User already exists")
			return
		}
		h.Logger.Error("failed to create user", zap.Error(err))
		utils.InternalServerError(c, "Server error")
		return
	}

	token, err := h.Tokens.Issue(user.ID, user.Email, user.Role)
	if err != nil {
		h.Logger.Error("failed to issue token", zap.Error(err))
		utils.InternalServerError(c, "Server error")
		return
	}

	h.Logger.Info("user signed up", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	utils.JSON(c, SignupResponse{Message: "Signup successful", Token: token, UserID: user.ID})
}

// LoginRequest represents the request body for user login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse represents the response body for successful login.
type LoginResponse struct {
	Message string      `json:"message"`
	Token   string      `json:"token"`
	UserID  string      `json:"user_id"`
	Name    string      `json:"name"`
	Role    models.Role `json:"role"`
}

// Login handles user login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid request payload")
		return
	}
	req.Email = normalizeEmail(req.Email)

	if req.Email == "" || req.Password == "" {
		utils.BadRequest(c, "Email and password are required")
		return
	}
	if !h.allowedEmail(req.Email) {
		utils.BadRequest(c, h.domainMessage())
		return
	}

	var user models.User
	if err := h.DB.WithContext(c.Request.Context()).Where("email = ?", req.Email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Unauthorized(c, "Invalid credentials")
		} else {
			h.Logger.Error("failed to load user for login", zap.Error(err))
			utils.InternalServerError(c, "Server error")
		}
		return
	}

	if !user.CheckPassword(req.Password) {
		utils.Unauthorized(c, "Invalid credentials")
		return
	}

	token, err := h.Tokens.Issue(user.ID, user.Email, user.Role)
	if err != nil {
		h.Logger.Error("failed to issue token", zap.Error(err))
		utils.InternalServerError(c, "Server error")
		return
	}

	utils.JSON(c, LoginResponse{
		Message: "Login successful",
		Token:   token,
		UserID:  user.ID,
		Name:    user.Name,
		Role:    user.Role,
	})
}

// Me returns the authenticated user's profile.
func (h *AuthHandler) Me(c *gin.Context) {
	user, ok := middleware.GetUserFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}
	utils.JSON(c, gin.H{"user": user.Sanitize()})
}
