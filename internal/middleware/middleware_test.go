package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"medichat-server/internal/models"
	"medichat-server/internal/testutil"
	"medichat-server/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(t *testing.T) (*gin.Engine, *utils.TokenService, *gorm.DB) {
	t.Helper()
	db := testutil.NewDB(t)
	tokens := utils.NewTokenService("secret", 0)

	r := gin.New()
	r.Use(Recovery(testutil.Logger()))
	auth := AuthMiddleware(tokens, db, testutil.Logger())
	r.GET("/me", auth, func(c *gin.Context) {
		id, _ := GetUserIDFromContext(c)
		role, _ := GetUserRoleFromContext(c)
		user, _ := GetUserFromContext(c)
		c.JSON(http.StatusOK, gin.H{"id": id, "role": role, "name": user.Name})
	})
	r.GET("/doctors-only", auth, RoleAuthMiddleware(models.RoleDoctor), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	r.GET("/no-auth-role", RoleAuthMiddleware(models.RoleDoctor), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	r.GET("/panic", func(c *gin.Context) {
		panic("boom")
	})

	return r, tokens, db
}

func do(r http.Handler, path, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	r, tokens, db := newRouter(t)
	patient := testutil.CreateUser(t, db, "Pat", "pat@gmail.com", models.RolePatient)

	token, err := tokens.Issue(patient.ID, patient.Email, patient.Role)
	require.NoError(t, err)

	t.Run("valid token", func(t *testing.T) {
		w := do(r, "/me", "Bearer "+token)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), patient.ID)
		assert.Contains(t, w.Body.String(), `"role":"patient"`)
	})

	t.Run("missing header", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, do(r, "/me", "").Code)
	})

	t.Run("missing bearer prefix", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, do(r, "/me", token).Code)
	})

	t.Run("bad signature", func(t *testing.T) {
		forged, err := utils.NewTokenService("other", 0).Issue(patient.ID, patient.Email, models.RoleDoctor)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, do(r, "/me", "Bearer "+forged).Code)
	})

	t.Run("user no longer exists", func(t *testing.T) {
		ghost, err := tokens.Issue("0b6f6f0c-2d8e-4d4e-9a55-4b1c7a1f6c11", "ghost@gmail.com", models.RolePatient)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, do(r, "/me", "Bearer "+ghost).Code)
	})
}

func TestRoleAuthMiddleware(t *testing.T) {
	r, tokens, db := newRouter(t)
	patient := testutil.CreateUser(t, db, "Pat", "pat@gmail.com", models.RolePatient)
	doctor := testutil.CreateUser(t, db, "Doc", "doc@gmail.com", models.RoleDoctor)

	patientToken, err := tokens.Issue(patient.ID, patient.Email, patient.Role)
	require.NoError(t, err)
	doctorToken, err := tokens.Issue(doctor.ID, doctor.Email, doctor.Role)
	require.NoError(t, err)

	assert.Equal(t, http.StatusForbidden, do(r, "/doctors-only", "Bearer "+patientToken).Code)
	assert.Equal(t, http.StatusNoContent, do(r, "/doctors-only", "Bearer "+doctorToken).Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, "/no-auth-role", "").Code)

	// A token claiming doctor for a patient account does not elevate the role.
	lying, err := tokens.Issue(patient.ID, patient.Email, models.RoleDoctor)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, do(r, "/doctors-only", "Bearer "+lying).Code)
}

func TestRecovery(t *testing.T) {
	r, _, _ := newRouter(t)
	w := do(r, "/panic", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Server error")
	assert.NotContains(t, w.Body.String(), "boom")
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter := NewIPRateLimiter(1, 2)
	r := gin.New()
	r.Use(RateLimitMiddleware(limiter))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	assert.Equal(t, http.StatusNoContent, do(r, "/", "").Code)
	assert.Equal(t, http.StatusNoContent, do(r, "/", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, do(r, "/", "").Code)
}

func TestIPRateLimiter_SweepsIdleVisitors(t *testing.T) {
	now := time.Now()
	limiter := NewIPRateLimiter(1, 1)
	limiter.now = func() time.Time { return now }

	limiter.GetLimiter("10.0.0.1")
	limiter.GetLimiter("10.0.0.2")
	assert.Equal(t, 2, limiter.size())

	now = now.Add(5 * time.Minute)
	limiter.GetLimiter("10.0.0.3")
	assert.Equal(t, 1, limiter.size())
}
