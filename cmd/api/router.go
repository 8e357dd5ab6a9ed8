package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"refunds-backend/internal/shared"
	"refunds-backend/internal/shared/middleware"
	"refunds-backend/pkg/container"
)

func SetupRouter(c *container.Container) *gin.Engine {
	router := gin.New()

	// Global middlewares
	router.Use(
		middleware.Recovery(),
		middleware.Correlation(),
		middleware.Logger(),
	)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", healthCheckHandler(c))

		setupWebhookRoutes(v1, c)
		setupRefundRoutes(v1, c)
		setupApprovalRoutes(v1, c)
		setupBankAccountRoutes(v1, c)
		setupMerchantRoutes(v1, c)
		setupParameterRoutes(v1, c)
		setupReportRoutes(v1, c)
	}

	return router
}

// ========================================
// WEBHOOK ROUTES
// ========================================
// Gateways authenticate with signatures, not bearer tokens.
func setupWebhookRoutes(v1 *gin.RouterGroup, c *container.Container) {
	webhooks := v1.Group("/webhooks")
	{
		webhooks.POST("/:gateway", c.WebhookHandler.HandleWebhook)
	}
}

// ========================================
// REFUND ROUTES
// ========================================
func setupRefundRoutes(v1 *gin.RouterGroup, c *container.Container) {
	refunds := v1.Group("/refunds")
	refunds.Use(middleware.Auth(c.JWTManager))
	{
		refunds.POST("", c.RefundHandler.CreateRefund)
		refunds.GET("", c.RefundHandler.ListRefunds)
		refunds.GET("/statistics", c.RefundHandler.GetStatistics)
		refunds.GET("/:id", c.RefundHandler.GetRefund)
		refunds.PUT("/:id", c.RefundHandler.UpdateRefund)
		refunds.PUT("/:id/cancel", c.RefundHandler.CancelRefund)
		refunds.GET("/:id/approval", c.ApprovalHandler.GetApprovalForRefund)
	}
}

// ========================================
// APPROVAL ROUTES
// ========================================
func setupApprovalRoutes(v1 *gin.RouterGroup, c *container.Container) {
	approvals := v1.Group("/approvals")
	approvals.Use(
		middleware.Auth(c.JWTManager),
		middleware.RequireRole(shared.RoleOperator, shared.RoleAdmin),
	)
	{
		approvals.GET("/:id", c.ApprovalHandler.GetApproval)
		approvals.POST("/:id/decision", c.ApprovalHandler.Decide)
	}
}

// ========================================
// BANK ACCOUNT ROUTES
// ========================================
func setupBankAccountRoutes(v1 *gin.RouterGroup, c *container.Container) {
	accounts := v1.Group("/bank-accounts")
	accounts.Use(middleware.Auth(c.JWTManager))
	{
		accounts.POST("", c.BankAccountHandler.CreateBankAccount)
		accounts.GET("", c.BankAccountHandler.ListBankAccounts)
		accounts.GET("/:id", c.BankAccountHandler.GetBankAccount)
		accounts.PUT("/:id/default", c.BankAccountHandler.SetDefaultBankAccount)
		accounts.PUT("/:id/verification",
			middleware.RequireRole(shared.RoleAdmin),
			c.BankAccountHandler.UpdateVerification)
	}
}

// ========================================
// MERCHANT ROUTES
// ========================================
// Credential provisioning is a platform operation, not a merchant one.
func setupMerchantRoutes(v1 *gin.RouterGroup, c *container.Container) {
	merchants := v1.Group("/merchants")
	merchants.Use(
		middleware.Auth(c.JWTManager),
		middleware.RequireRole(shared.RoleAdmin),
	)
	{
		merchants.PUT("/:id/gateways/:gateway/credentials", c.CredentialHandler.UpsertCredentials)
	}
}

// ========================================
// PARAMETER ROUTES
// ========================================
func setupParameterRoutes(v1 *gin.RouterGroup, c *container.Container) {
	parameters := v1.Group("/parameters")
	parameters.Use(middleware.Auth(c.JWTManager))
	{
		parameters.POST("", c.ParameterHandler.CreateParameter)
		parameters.GET("", c.ParameterHandler.ListParameters)
		parameters.GET("/definitions", c.ParameterHandler.ListDefinitions)
		parameters.GET("/resolve", c.ParameterHandler.ResolveParameter)
	}
}

// ========================================
// REPORT ROUTES
// ========================================
func setupReportRoutes(v1 *gin.RouterGroup, c *container.Container) {
	reports := v1.Group("/reports")
	reports.Use(middleware.Auth(c.JWTManager))
	{
		reports.POST("", c.ReportHandler.GenerateReport)
	}
}

// ========================================
// HEALTH CHECK HANDLER
// ========================================
func healthCheckHandler(appCtx *container.Container) gin.HandlerFunc {
	return func(c *gin.Context) {
		health := gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
			"version":   appCtx.Config.App.Version,
			"services":  gin.H{},
		}

		dbStatus := "ok"
		if appCtx.DB == nil || appCtx.DB.Pool == nil {
			dbStatus = "disconnected"
			health["status"] = "degraded"
		} else {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()

			if err := appCtx.DB.HealthCheck(ctx); err != nil {
				dbStatus = fmt.Sprintf("error: %v", err)
				health["status"] = "degraded"
			}
		}

		redisStatus := "ok"
		if appCtx.Redis == nil {
			redisStatus = "disconnected"
		} else {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()

			if err := appCtx.Redis.Ping(ctx).Err(); err != nil {
				redisStatus = fmt.Sprintf("error: %v", err)
			}
		}

		health["services"] = gin.H{
			"database": dbStatus,
			"redis":    redisStatus,
		}

		statusCode := http.StatusOK
		if dbStatus != "ok" {
			statusCode = http.StatusServiceUnavailable
		}

		c.JSON(statusCode, health)
	}
}
