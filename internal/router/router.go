package router

import (
	"fmt"
	"strings"

	"github.com/fenyong-next/internal/cache"
	"github.com/fenyong-next/internal/config"
	adminhandlers "github.com/fenyong-next/internal/http/handlers/admin"
	publichandlers "github.com/fenyong-next/internal/http/handlers/public"
	"github.com/fenyong-next/internal/logger"
	"github.com/fenyong-next/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	// 初始化 Handler（按平台接入/运营管理分组）
	publicHandler := publichandlers.New(c)
	adminHandler := adminhandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "fy"
	}
	intakeRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:settlement", redisPrefix),
		WindowSeconds: cfg.Security.IntakeRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.IntakeRateLimit.MaxRequests,
	}

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	// API 路由组
	apiV1 := r.Group("/api/v1")
	{
		// 平台接入接口（上游结算系统调用）
		platform := apiV1.Group("/platform")
		{
			platform.POST("/settlements",
				RateLimitMiddleware(cache.Client(), intakeRule, KeyByIP),
				publicHandler.RecordSettlement,
			)
		}

		// 运营管理接口
		admin := apiV1.Group("/admin")
		{
			// 规则目录
			admin.POST("/rules", adminHandler.CreateRule)
			admin.GET("/rules", adminHandler.GetRules)
			admin.GET("/rules/resolve", adminHandler.ResolveRule)
			admin.GET("/rules/:id", adminHandler.GetRule)
			admin.POST("/rules/:id/deactivate", adminHandler.DeactivateRule)

			// 佣金流水
			admin.GET("/transactions", adminHandler.GetTransactions)
			admin.GET("/transactions/summary", adminHandler.GetStoreCommissionSummary)
			admin.GET("/transactions/:id", adminHandler.GetTransaction)

			// 账单
			admin.POST("/invoices/generate", adminHandler.GenerateInvoice)
			admin.GET("/invoices", adminHandler.GetInvoices)
			admin.GET("/invoices/:id", adminHandler.GetInvoice)
			admin.POST("/invoices/:id/issue", adminHandler.IssueInvoice)
			admin.POST("/invoices/:id/pay", adminHandler.MarkInvoicePaid)
			admin.POST("/invoices/:id/void", adminHandler.VoidInvoice)

			// 批量出账
			admin.POST("/billing/run", adminHandler.RunBilling)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
