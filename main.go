package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"leadmarket/config"
	"leadmarket/cron"
	"leadmarket/database"
	"leadmarket/database/repository"
	categoryRepoPkg "leadmarket/database/repository/category"
	providerRepoPkg "leadmarket/database/repository/provider"
	purchaseRepoPkg "leadmarket/database/repository/purchase"
	requestRepoPkg "leadmarket/database/repository/request"
	"leadmarket/handlers"
	"leadmarket/routes"
	"leadmarket/services/lead"
	"leadmarket/services/matching"
	"leadmarket/services/notification"
	"leadmarket/services/payment"
	"leadmarket/services/provider"
	"leadmarket/services/request"
	"leadmarket/utils"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v76"
)

func main() {
	config.LoadConfig()
	logger := utils.GetLogger()

	database.InitDB()
	utils.InitCache()
	utils.InitRateLimitStore()
	utils.FirebaseInit()
	stripe.Key = config.AppConfig.StripeKey

	// Create the Gin router.
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.ErrorHandler())
	router.Use(gin.Logger())

	// repositories.
	requestRepo := requestRepoPkg.NewMongoRequestRepo()
	purchaseRepo := purchaseRepoPkg.NewMongoPurchaseRepo()
	provRepo := providerRepoPkg.NewMongoProviderRepo()
	categoryRepo := categoryRepoPkg.NewMongoCategoryRepo()
	txnManager := repository.NewMongoTxnManager()

	// services.
	notificationService, err := notification.NewDefaultNotificationService(provRepo, logger)
	if err != nil {
		logger.Sugar().Fatalf("main: failed to initialize notification service: %v", err)
	}

	matchingService, err := matching.NewDefaultMatchingService(requestRepo, provRepo, notificationService, logger)
	if err != nil {
		logger.Sugar().Fatalf("main: failed to initialize matching service: %v", err)
	}

	leadService, err := lead.NewDefaultLeadService(
		requestRepo,
		purchaseRepo,
		provRepo,
		categoryRepo,
		payment.NewStripeCheckoutClient(),
		notificationService,
		logger,
		config.AppConfig.CheckoutSuccessURL,
		config.AppConfig.CheckoutCancelURL,
	)
	if err != nil {
		logger.Sugar().Fatalf("main: failed to initialize lead service: %v", err)
	}

	requestService, err := request.NewDefaultRequestService(requestRepo, provRepo, categoryRepo, matchingService, logger)
	if err != nil {
		logger.Sugar().Fatalf("main: failed to initialize request service: %v", err)
	}

	providerService, err := provider.NewDefaultProviderService(provRepo, matchingService, logger)
	if err != nil {
		logger.Sugar().Fatalf("main: failed to initialize provider service: %v", err)
	}

	reconciler, err := payment.NewReconciler(requestRepo, purchaseRepo, provRepo, txnManager, notificationService, logger)
	if err != nil {
		logger.Sugar().Fatalf("main: failed to initialize webhook reconciler: %v", err)
	}

	// handlers.
	handlers.LeadService = leadService
	handlers.RequestService = requestService
	handlers.ProviderService = providerService
	handlers.CategoryRepo = categoryRepo
	handlers.WebhookReconciler = reconciler

	// Background sweeps: expiry and auto-approval.
	cron.InitSweepWorker(requestRepo)

	routes.RegisterRoutes(router)

	// Start the HTTP server.
	port := config.AppConfig.AppPort
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    "0.0.0.0:" + port,
		Handler: router,
	}

	logger.Sugar().Infof("Starting server on %s...", srv.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Sugar().Fatalf("main: server failed to start: %v", err)
		}
	}()

	// Wait for an OS signal to gracefully shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Sugar().Info("main: server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Sugar().Fatalf("main: server forced to shutdown: %v", err)
	}

	logger.Sugar().Info("main: server stopped gracefully")
}
