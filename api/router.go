// api/router.go
package api

import (
	"database/sql"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/chimeradev/chimera-navigator/api/handlers"
	"github.com/chimeradev/chimera-navigator/api/middleware"
	"github.com/chimeradev/chimera-navigator/config"
	"github.com/chimeradev/chimera-navigator/internal/ai"
	"github.com/chimeradev/chimera-navigator/internal/automation"
	"github.com/chimeradev/chimera-navigator/internal/billing"
	"github.com/chimeradev/chimera-navigator/internal/relay"
)

// SetupRouter initializes the Gin router and sets up all routes.
func SetupRouter(db *sql.DB, cfg *config.Config) *gin.Engine {
	router := gin.Default() // Includes Logger and Recovery

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", middleware.IdentityHeader},
		AllowCredentials: true,
	}))
	router.Use(middleware.ErrorHandler())

	// Initialize delegates
	aiClient := ai.NewClient(cfg)
	billingClient := billing.NewClient(cfg)
	runner := automation.NewRunner()
	chatRelay := relay.NewRelay(db, aiClient, cfg.AllowedOrigins)

	// Initialize Handlers
	userHandler := handlers.NewUserHandler(db, cfg)
	projectHandler := handlers.NewProjectHandler(db)
	fileHandler := handlers.NewFileHandler(db, aiClient)
	aiHandler := handlers.NewAIHandler(db, aiClient, runner, cfg)
	stripeHandler := handlers.NewStripeHandler(db, billingClient)
	wsHandler := handlers.NewWSHandler(cfg, chatRelay)

	// --- Public Routes ---
	router.GET("/ping", func(c *gin.Context) { c.String(200, "pong") })

	ratelimiter := middleware.NewRateLimiter()
	identityRoutes := router.Group("/api/users")
	identityRoutes.Use(middleware.RateLimitMiddleware(ratelimiter))
	{
		identityRoutes.GET("/firebase/:uid", userHandler.FindByFirebaseUID)
		identityRoutes.POST("", userHandler.Create)
	}

	// Webhook is unauthenticated but signature-verified.
	router.POST("/api/stripe/webhook", stripeHandler.Webhook)

	// Websocket upgrade authenticates via a short-lived ticket.
	router.GET("/ws", wsHandler.Serve)

	// --- Protected Routes ---
	apiRoutes := router.Group("/api")
	apiRoutes.Use(middleware.AuthMiddleware(db))
	{
		apiRoutes.GET("/users/:id/credits", userHandler.GetCredits)
		apiRoutes.POST("/users/:id/upgrade", userHandler.Upgrade)

		apiRoutes.GET("/projects", projectHandler.List)
		apiRoutes.POST("/projects", projectHandler.Create)
		apiRoutes.GET("/projects/:id", projectHandler.Get)
		apiRoutes.DELETE("/projects/:id", projectHandler.Delete)

		apiRoutes.POST("/projects/:id/files", fileHandler.Upload)
		apiRoutes.GET("/projects/:id/results", fileHandler.GetResults)
		apiRoutes.GET("/projects/:id/logs", fileHandler.GetLogs)

		apiRoutes.GET("/ai/chat/:userId", aiHandler.GetChatHistory)
		apiRoutes.POST("/ai/review/:projectId", aiHandler.GenerateReview)
		apiRoutes.POST("/ai/modify-schema", aiHandler.ModifySchema)
		apiRoutes.POST("/ai/ast-path", aiHandler.GenerateASTPath)

		apiRoutes.POST("/stripe/create-subscription", stripeHandler.CreateSubscription)
		apiRoutes.GET("/stripe/prices", stripeHandler.ListPrices)

		apiRoutes.POST("/ws/ticket", wsHandler.CreateTicket)
	}

	return router
}
