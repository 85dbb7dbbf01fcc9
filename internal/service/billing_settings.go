package service

import (
	"github.com/fenyong-next/internal/config"

	"github.com/shopspring/decimal"
)

const defaultInvoiceDueDays = 14

// BillingSettings 平台计费参数快照
// 启动时从配置转换一次，服务内部只读，避免在事务中读取可变全局状态。
type BillingSettings struct {
	TaxPercent               decimal.Decimal
	InvoiceDueDays           int
	DefaultCommissionPercent decimal.Decimal
}

// NewBillingSettings 从配置构建计费参数
func NewBillingSettings(cfg config.BillingConfig) BillingSettings {
	dueDays := cfg.InvoiceDueDays
	if dueDays <= 0 {
		dueDays = defaultInvoiceDueDays
	}
	taxPercent := decimal.NewFromFloat(cfg.TaxPercent)
	if taxPercent.IsNegative() {
		taxPercent = decimal.Zero
	}
	defaultPercent := decimal.NewFromFloat(cfg.DefaultCommissionPercent)
	if defaultPercent.IsNegative() {
		defaultPercent = decimal.Zero
	}
	return BillingSettings{
		TaxPercent:               taxPercent,
		InvoiceDueDays:           dueDays,
		DefaultCommissionPercent: defaultPercent,
	}
}

// HasDefaultCommission 判断是否配置了平台默认佣金兜底
func (s BillingSettings) HasDefaultCommission() bool {
	return s.DefaultCommissionPercent.IsPositive()
}
