package routes

import (
	"net/http"
	"sort"

	"medichat-server/internal/cache"
	"medichat-server/internal/handlers"
	"medichat-server/internal/medicine"
	"medichat-server/internal/middleware"
	"medichat-server/internal/models"
	"medichat-server/internal/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

// Dependencies are the long-lived services the routes are built from.
type Dependencies struct {
	DB          *gorm.DB
	Tokens      *utils.TokenService
	Generator   handlers.AnswerGenerator
	Medicines   *medicine.KnowledgeBase
	History     *cache.HistoryCache
	Logger      *zap.Logger
	Origin      string
	EmailDomain string
	RateLimit   rate.Limit
	RateBurst   int
}

// NewRouter builds the engine with the global middleware stack and every route.
func NewRouter(deps Dependencies) *gin.Engine {
	router := gin.New()
	router.Use(middleware.Recovery(deps.Logger))
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(cors.New(corsConfig(deps.Origin)))
	router.Use(gzip.Gzip(gzip.BestSpeed))

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"status": http.StatusNotFound, "error": "Not found", "path": c.Request.URL.Path})
	})

	SetupRoutes(router, deps)
	return router
}

func corsConfig(origin string) cors.Config {
	cfg := cors.DefaultConfig()
	if origin == "" || origin == "*" {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = []string{origin}
		cfg.AllowCredentials = true
	}
	cfg.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	cfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	return cfg
}

// SetupRoutes configures the application routes.
func SetupRoutes(router *gin.Engine, deps Dependencies) {
	authHandler := handlers.NewAuthHandler(deps.DB, deps.Tokens, deps.EmailDomain, deps.Logger)
	chatHandler := handlers.NewChatHandler(deps.DB, deps.Generator, deps.History, deps.Logger)
	assessmentHandler := handlers.NewAssessmentHandler(deps.DB, deps.Generator, deps.Medicines, deps.Logger)
	appointmentHandler := handlers.NewAppointmentHandler(deps.DB, deps.History, deps.Logger)
	medicineHandler := handlers.NewMedicineHandler(deps.Medicines)

	requireAuth := middleware.AuthMiddleware(deps.Tokens, deps.DB, deps.Logger)
	doctorOnly := middleware.RoleAuthMiddleware(models.RoleDoctor)

	api := router.Group("/api")
	if deps.RateLimit > 0 && deps.RateBurst > 0 {
		api.Use(middleware.RateLimitMiddleware(middleware.NewIPRateLimiter(deps.RateLimit, deps.RateBurst)))
	}

	authRoutes := api.Group("/auth")
	{
		authRoutes.POST("/signup", authHandler.Signup)
		authRoutes.POST("/login", authHandler.Login)
		authRoutes.GET("/me", requireAuth, authHandler.Me)
		authRoutes.GET("/users", requireAuth, doctorOnly, authHandler.ListUsers)
	}

	chatRoutes := api.Group("/chat")
	{
		// Medicine reference data is public.
		chatRoutes.GET("/medicines", medicineHandler.ListMedicines)
		chatRoutes.GET("/medicines/search", medicineHandler.SearchMedicines)
		chatRoutes.GET("/medicines/:name", medicineHandler.GetMedicine)

		private := chatRoutes.Group("")
		private.Use(requireAuth)
		{
			private.POST("/ask", chatHandler.Ask)
			private.GET("/history", chatHandler.History)
			private.PUT("/message/:id", chatHandler.UpdateMessage)
			private.DELETE("/message/:id", chatHandler.DeleteMessage)

			private.POST("/assess", assessmentHandler.Assess)
			private.GET("/assessments", assessmentHandler.ListAssessments)
			private.GET("/assessments/:id", assessmentHandler.GetAssessment)

			private.POST("/appointments", appointmentHandler.CreateAppointment)

			doctor := private.Group("")
			doctor.Use(doctorOnly)
			{
				doctor.GET("/appointments", appointmentHandler.ListAppointments)
				doctor.GET("/appointments/:id", appointmentHandler.GetAppointment)
				doctor.PUT("/appointments/:id/status", appointmentHandler.UpdateAppointmentStatus)
				doctor.GET("/patient/:id/history", chatHandler.PatientHistory)
				doctor.POST("/patient/:id/suggest", chatHandler.Suggest)
			}
		}
	}

	router.GET("/", func(c *gin.Context) {
		paths := make([]string, 0)
		seen := make(map[string]bool)
		for _, r := range router.Routes() {
			if !seen[r.Path] {
				seen[r.Path] = true
				paths = append(paths, r.Path)
			}
		}
		sort.Strings(paths)
		c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "Healthcare chat backend running", "routes": paths})
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "UP"})
	})
}
