package routes

import (
	"net/http"
	"time"

	"leadmarket/handlers"
	"leadmarket/middleware"
	"leadmarket/models"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// RegisterRequestRoutes registers customer-facing request lifecycle endpoints.
func RegisterRequestRoutes(r *gin.Engine) {
	api := r.Group("/api/requests")
	{
		api.Use(middleware.JWTAuthMiddleware(), middleware.RateLimitMiddleware())
		api.POST("", middleware.RequireRole(models.RoleUser), handlers.CreateRequestHandler)
		api.GET("/:id", handlers.GetRequestHandler)
		api.POST("/:id/review", middleware.RequireRole(models.RoleUser), handlers.ReviewRequestHandler)
		api.POST("/:id/complete", middleware.RequireRole(models.RoleProvider), handlers.CompleteRequestHandler)
	}
}

// RegisterLeadRoutes registers the provider-facing lead marketplace endpoints.
func RegisterLeadRoutes(r *gin.Engine) {
	api := r.Group("/api/leads")
	{
		api.Use(middleware.JWTAuthMiddleware(), middleware.RateLimitMiddleware(), middleware.RequireRole(models.RoleProvider))
		api.GET("", handlers.ListLeadsHandler)
		api.GET("/:id/price", handlers.PreviewLeadPriceHandler)
		api.POST("/:id/accept", handlers.AcceptLeadHandler)
		api.POST("/:id/decline", handlers.DeclineLeadHandler)
		api.POST("/:id/purchase", handlers.PurchaseLeadHandler)
	}
}

// RegisterProviderRoutes registers provider onboarding and profile endpoints.
func RegisterProviderRoutes(r *gin.Engine) {
	api := r.Group("/api/providers")
	{
		api.Use(middleware.JWTAuthMiddleware(), middleware.RateLimitMiddleware())
		api.POST("/register", handlers.RegisterProviderHandler)
		api.GET("/me", middleware.RequireRole(models.RoleProvider), handlers.GetProviderProfileHandler)
		api.PATCH("/me", middleware.RequireRole(models.RoleProvider), handlers.StageProviderUpdatesHandler)
	}
}

// RegisterCategoryRoutes registers the public category catalogue.
func RegisterCategoryRoutes(r *gin.Engine) {
	api := r.Group("/api/categories")
	{
		api.GET("", handlers.ListCategoriesHandler)
		api.GET("/:id", handlers.GetCategoryHandler)
	}
}

// RegisterAdminRoutes sets up endpoints for admin operations.
func RegisterAdminRoutes(r *gin.Engine) {
	adminGroup := r.Group("/api/admin")
	{
		adminGroup.Use(middleware.JWTAuthMiddleware(), middleware.RequireAdmin())
		adminGroup.PUT("/providers/:id/verify", handlers.VerifyProviderHandler)
		adminGroup.PUT("/providers/:id/approve-updates", handlers.ApproveProviderUpdatesHandler)
		adminGroup.PUT("/requests/:id/status", handlers.OverrideStatusHandler)
	}
}

// RegisterWebhookRoutes registers processor callbacks. These authenticate by
// payload signature, not by bearer token.
func RegisterWebhookRoutes(r *gin.Engine) {
	r.POST("/api/webhooks/stripe", handlers.StripeWebhookHandler)
}

// RegisterHealthRoute registers a health-check endpoint.
func RegisterHealthRoute(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

// RegisterRoutes centralizes registration of all endpoints and middleware.
func RegisterRoutes(r *gin.Engine) {
	// Setup global middleware (e.g., CORS) here.
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	RegisterHealthRoute(r)
	RegisterCategoryRoutes(r)
	RegisterRequestRoutes(r)
	RegisterLeadRoutes(r)
	RegisterProviderRoutes(r)
	RegisterAdminRoutes(r)
	RegisterWebhookRoutes(r)
}
