package main

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"nexuspay.backend/internal/config"
	"nexuspay.backend/internal/domain/entities"
	"nexuspay.backend/internal/infrastructure/jobs"
	"nexuspay.backend/internal/interfaces/http/handlers"
	"nexuspay.backend/internal/interfaces/http/middleware"
)

type routeDeps struct {
	authHandler      *handlers.AuthHandler
	projectHandler   *handlers.ProjectHandler
	apiKeyHandler    *handlers.APIKeyHandler
	walletHandler    *handlers.WalletHandler
	paymasterHandler *handlers.PaymasterHandler
	analyticsHandler *handlers.AnalyticsHandler
	projectAuth      gin.HandlerFunc
	sessionAuth      gin.HandlerFunc
	rateLimits       config.RateLimitConfig
	usageWriter      *jobs.UsageWriter
}

func registerHealthRoutes(r *gin.Engine) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func registerAPIV1Routes(r *gin.Engine, d routeDeps) {
	v1 := r.Group("/v1")

	// Session lifecycle. IP-scoped limits guard credential probing.
	auth := v1.Group("/auth")
	auth.Use(middleware.IPRateLimitMiddleware("auth", 10, 15*time.Minute))
	{
		auth.POST("/register", d.authHandler.Register)
		auth.POST("/login", d.authHandler.Login)
		auth.POST("/oauth", d.authHandler.OAuthSignIn)
		auth.POST("/verify-email", d.authHandler.VerifyEmail)

		reset := auth.Group("")
		reset.Use(middleware.IPRateLimitMiddleware("pwreset", 3, time.Hour))
		reset.POST("/reset-password", d.authHandler.RequestPasswordReset)
		reset.POST("/reset-password/confirm", d.authHandler.ConfirmPasswordReset)
	}

	profile := v1.Group("/auth")
	profile.Use(d.sessionAuth)
	{
		profile.GET("/profile", d.authHandler.GetProfile)
		profile.PUT("/profile", d.authHandler.UpdateProfile)
	}

	// Project management is dashboard-only: session auth, role checks
	// inside the usecase.
	projects := v1.Group("/projects")
	projects.Use(d.sessionAuth)
	{
		projects.POST("", d.projectHandler.Create)
		projects.GET("", d.projectHandler.List)
		projects.GET("/:projectId", d.projectHandler.Get)
		projects.PUT("/:projectId", d.projectHandler.Update)
		projects.DELETE("/:projectId", d.projectHandler.Delete)
		projects.GET("/:projectId/members", d.projectHandler.ListMembers)
		projects.POST("/:projectId/members", d.projectHandler.InviteMember)
		projects.DELETE("/:projectId/members/:userId", d.projectHandler.RemoveMember)
	}

	// Data-plane routes accept either a session or an API key.
	scoped := v1.Group("/projects/:projectId")
	scoped.Use(d.projectAuth)
	scoped.Use(middleware.RateLimitMiddleware(d.rateLimits))
	scoped.Use(middleware.UsageRecorderMiddleware(d.usageWriter))
	{
		keys := scoped.Group("/api-keys")
		{
			keys.POST("", middleware.RequirePermission(entities.PermKeysCreate), d.apiKeyHandler.Create)
			keys.GET("", middleware.RequirePermission(entities.PermKeysCreate), d.apiKeyHandler.List)
			keys.PUT("/:keyId/allowlist", middleware.RequirePermission(entities.PermKeysCreate), d.apiKeyHandler.UpdateAllowlist)
			keys.POST("/:keyId/rotate", middleware.RequirePermission(entities.PermKeysCreate), d.apiKeyHandler.Rotate)
			keys.DELETE("/:keyId", middleware.RequirePermission(entities.PermKeysCreate), d.apiKeyHandler.Revoke)
			keys.GET("/:keyId/usage", middleware.RequirePermission(entities.PermAnalyticsRead), d.apiKeyHandler.Usage)
		}

		wallets := scoped.Group("/wallets")
		{
			wallets.POST("/create", middleware.RequirePermission(entities.PermWalletsCreate), d.walletHandler.Create)
			wallets.POST("/deploy", middleware.RequirePermission(entities.PermWalletsDeploy), d.walletHandler.Deploy)
			wallets.GET("", middleware.RequirePermission(entities.PermWalletsRead), d.walletHandler.List)
			wallets.GET("/:walletId", middleware.RequirePermission(entities.PermWalletsRead), d.walletHandler.Get)
		}

		paymaster := scoped.Group("/paymaster")
		{
			paymaster.GET("/balance", middleware.RequirePermission(entities.PermPaymasterRead),
				middleware.CacheMiddleware(30*time.Second), d.paymasterHandler.Balance)
			paymaster.GET("/addresses", middleware.RequirePermission(entities.PermPaymasterRead),
				middleware.CacheMiddleware(5*time.Minute), d.paymasterHandler.Addresses)
			paymaster.POST("/fund", middleware.RequirePermission(entities.PermPaymasterFund), d.paymasterHandler.Fund)
			paymaster.GET("/transactions", middleware.RequirePermission(entities.PermPaymasterRead), d.paymasterHandler.Ledger)
		}

		scoped.GET("/transactions", middleware.RequirePermission(entities.PermAnalyticsRead), d.paymasterHandler.Transactions)
		scoped.GET("/transactions/:txId", middleware.RequirePermission(entities.PermAnalyticsRead), d.paymasterHandler.Transaction)

		analytics := scoped.Group("/analytics")
		analytics.Use(middleware.RequirePermission(entities.PermAnalyticsRead))
		{
			analytics.GET("/overview", middleware.CacheMiddleware(time.Minute), d.analyticsHandler.Overview)
			analytics.GET("/transactions", middleware.CacheMiddleware(time.Minute), d.analyticsHandler.Transactions)
			analytics.GET("/users", middleware.CacheMiddleware(time.Minute), d.analyticsHandler.Users)
			analytics.GET("/costs", middleware.CacheMiddleware(time.Minute), d.analyticsHandler.Costs)
			analytics.GET("/export", d.analyticsHandler.Export)
		}
	}
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
