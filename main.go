package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/altovisual/artist-management-sub002/bootstrap"
	"github.com/altovisual/artist-management-sub002/config"
	"github.com/altovisual/artist-management-sub002/handler"
	"github.com/altovisual/artist-management-sub002/middleware"
)

// routerDeps are the collaborators behind the HTTP routes
type routerDeps struct {
	pipeline   handler.SignaturePipeline
	reconciler handler.LedgerReconciler
	ledger     handler.StatusLedger
}

func main() {
	// Load configuration
	cfg, err := config.Load("config.yaml")
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	bootstrap.InitLogger(cfg)
	slog.Info("configuration loaded successfully")

	// Missing provider settings are reported per request; warn early
	if err := cfg.CheckRequired(); err != nil {
		slog.Warn("signature dispatch is not fully configured", "error", err)
	}

	app, err := bootstrap.New(context.Background(), cfg)
	if err != nil {
		slog.Error("failed to initialize services", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	gin.SetMode(gin.ReleaseMode)
	router := newRouter(cfg, routerDeps{
		pipeline:   app.Pipeline,
		reconciler: app.Reconciler,
		ledger:     app.Store,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		return
	}

	slog.Info("server exited gracefully")
}

func newRouter(cfg *config.Config, deps routerDeps) *gin.Engine {
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(corsMiddleware(cfg.Server.CORSOrigins))
	router.Use(middleware.RateLimit(cfg.Server.RateLimit, cfg.Server.Burst))

	authHandler := handler.NewAuthHandler(cfg)
	signatureHandler := handler.NewSignatureHandler(deps.pipeline, deps.reconciler)
	webhookHandler := handler.NewWebhookHandler(deps.ledger, cfg.Auco.WebhookToken)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Public routes
	api := router.Group("/api")
	{
		api.POST("/auth/login", authHandler.Login)
		api.POST("/auco/webhook", webhookHandler.HandleWebhook)
		api.GET("/auco/webhook", webhookHandler.Status)
	}

	// Protected routes
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(&cfg.Auth))
	{
		protected.GET("/auth/me", authHandler.GetCurrentUser)
		protected.POST("/contracts/:id/signature", signatureHandler.Start)
		protected.GET("/contracts/:id/preview", signatureHandler.Preview)
		protected.POST("/auco/start-signature", signatureHandler.StartLegacy)
		protected.GET("/signatures", signatureHandler.List)
		protected.GET("/signatures/provider-documents", signatureHandler.ProviderDocuments)
		protected.POST("/signatures/reconcile", middleware.RequireRole(middleware.RoleAdmin), signatureHandler.Reconcile)
	}

	return router
}

// corsMiddleware allows the configured origins, or every origin when none
// are listed
func corsMiddleware(origins []string) gin.HandlerFunc {
	corsConfig := cors.DefaultConfig()
	if len(origins) == 0 {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = origins
	}
	corsConfig.AddAllowHeaders("Authorization", middleware.RequestIDHeader)
	corsConfig.AddExposeHeaders(middleware.RequestIDHeader)
	return cors.New(corsConfig)
}
