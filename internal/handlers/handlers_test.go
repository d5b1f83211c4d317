package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"medichat-server/internal/cache"
	"medichat-server/internal/medicine"
	"medichat-server/internal/middleware"
	"medichat-server/internal/models"
	"medichat-server/internal/testutil"
	"medichat-server/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type generateCall struct {
	Question string
	Role     models.Role
	Context  models.ChatContext
}

// stubGenerator answers with a fixed reply, or with medsReply for medicine list prompts.
type stubGenerator struct {
	mu        sync.Mutex
	reply     string
	medsReply string
	err       error
	calls     []generateCall
}

func (g *stubGenerator) Generate(_ context.Context, question string, role models.Role, gctx models.ChatContext) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, generateCall{Question: question, Role: role, Context: gctx})
	if g.err != nil {
		return "", g.err
	}
	if g.medsReply != "" && strings.Contains(question, "comma-separated list") {
		return g.medsReply, nil
	}
	return g.reply, nil
}

func (g *stubGenerator) Calls() []generateCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]generateCall(nil), g.calls...)
}

type testEnv struct {
	t      *testing.T
	db     *gorm.DB
	tokens *utils.TokenService
	gen    *stubGenerator
	router *gin.Engine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithCache(t, nil)
}

// newTestEnvWithCache wires every route with history served through hc.
func newTestEnvWithCache(t *testing.T, hc *cache.HistoryCache) *testEnv {
	t.Helper()

	db := testutil.NewDB(t)
	tokens := utils.NewTokenService("test-secret", 0)
	gen := &stubGenerator{reply: "Rest and drink fluids."}
	kb, err := medicine.LoadDefault()
	require.NoError(t, err)
	logger := testutil.Logger()

	authHandler := NewAuthHandler(db, tokens, "gmail.com", logger)
	chatHandler := NewChatHandler(db, gen, hc, logger)
	assessmentHandler := NewAssessmentHandler(db, gen, kb, logger)
	appointmentHandler := NewAppointmentHandler(db, hc, logger)
	medicineHandler := NewMedicineHandler(kb)

	requireAuth := middleware.AuthMiddleware(tokens, db, logger)
	doctorOnly := middleware.RoleAuthMiddleware(models.RoleDoctor)

	r := gin.New()
	api := r.Group("/api")
	api.POST("/auth/signup", authHandler.Signup)
	api.POST("/auth/login", authHandler.Login)
	api.GET("/auth/me", requireAuth, authHandler.Me)
	api.GET("/auth/users", requireAuth, doctorOnly, authHandler.ListUsers)

	chat := api.Group("/chat")
	chat.GET("/medicines", medicineHandler.ListMedicines)
	chat.GET("/medicines/search", medicineHandler.SearchMedicines)
	chat.GET("/medicines/:name", medicineHandler.GetMedicine)
	chat.POST("/ask", requireAuth, chatHandler.Ask)
	chat.GET("/history", requireAuth, chatHandler.History)
	chat.PUT("/message/:id", requireAuth, chatHandler.UpdateMessage)
	chat.DELETE("/message/:id", requireAuth, chatHandler.DeleteMessage)
	chat.POST("/assess", requireAuth, assessmentHandler.Assess)
	chat.GET("/assessments", requireAuth, assessmentHandler.ListAssessments)
	chat.GET("/assessments/:id", requireAuth, assessmentHandler.GetAssessment)
	chat.POST("/appointments", requireAuth, appointmentHandler.CreateAppointment)
	chat.GET("/appointments", requireAuth, doctorOnly, appointmentHandler.ListAppointments)
	chat.GET("/appointments/:id", requireAuth, doctorOnly, appointmentHandler.GetAppointment)
	chat.PUT("/appointments/:id/status", requireAuth, doctorOnly, appointmentHandler.UpdateAppointmentStatus)
	chat.GET("/patient/:id/history", requireAuth, doctorOnly, chatHandler.PatientHistory)
	chat.POST("/patient/:id/suggest", requireAuth, doctorOnly, chatHandler.Suggest)

	return &testEnv{t: t, db: db, tokens: tokens, gen: gen, router: r}
}

// user creates an account and returns it with a valid token.
func (e *testEnv) user(name, email string, role models.Role) (*models.User, string) {
	e.t.Helper()
	u := testutil.CreateUser(e.t, e.db, name, email, role)
	token, err := e.tokens.Issue(u.ID, u.Email, u.Role)
	require.NoError(e.t, err)
	return u, token
}

func (e *testEnv) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	e.t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(e.t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[utils.ErrorResponse](t, w).Error
}
