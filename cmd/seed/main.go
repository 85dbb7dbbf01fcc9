package main

import (
	"time"

	"github.com/fenyong-next/internal/config"
	"github.com/fenyong-next/internal/logger"
	"github.com/fenyong-next/internal/models"
	"github.com/fenyong-next/internal/repository"
	"github.com/fenyong-next/internal/service"
)

// 开发环境演示数据：一条全局兜底规则加若干范围规则。
func main() {
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()

	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	ruleSvc := service.NewRuleService(repository.NewRuleRepository(models.DB))

	storeA := uint(1)
	storeB := uint(2)
	categoryDigital := uint(10)
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	seeds := []service.RuleCreateInput{
		{
			Name:          "平台基础佣金",
			ScopeType:     "global",
			Percent:       models.NewMoneyFromFloat(10),
			Priority:      100,
			EffectiveFrom: &from,
		},
		{
			Name:          "数字商品分类佣金",
			ScopeType:     "category",
			CategoryID:    &categoryDigital,
			Percent:       models.NewMoneyFromFloat(12),
			Priority:      50,
			EffectiveFrom: &from,
		},
		{
			Name:          "重点店铺优惠费率",
			ScopeType:     "store",
			StoreID:       &storeA,
			Percent:       models.NewMoneyFromFloat(8),
			Priority:      50,
			EffectiveFrom: &from,
		},
		{
			Name:          "店铺数字商品专项费率",
			ScopeType:     "store_category",
			StoreID:       &storeB,
			CategoryID:    &categoryDigital,
			Percent:       models.NewMoneyFromFloat(6),
			FixedAmount:   models.NewMoneyFromFloat(0.5),
			Priority:      10,
			EffectiveFrom: &from,
		},
	}

	for _, input := range seeds {
		rule, err := ruleSvc.CreateRule(input)
		if err != nil {
			stdLog.Printf("Skip rule %q: %v", input.Name, err)
			continue
		}
		stdLog.Printf("Created rule %d: %s (%s)", rule.ID, rule.Name, rule.ScopeSignature)
	}
}
