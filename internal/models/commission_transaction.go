package models

import (
	"time"
)

// CommissionTransaction 佣金流水（只追加的财务记录）
// 创建后不可修改、不可删除；冲正以新的负数流水表达。
type CommissionTransaction struct {
	ID               uint      `gorm:"primarykey" json:"id"`                                        // 主键
	EscrowRef        string    `gorm:"type:varchar(64);not null;uniqueIndex" json:"escrow_ref"`     // 结算事件引用（唯一，保证单事件单流水）
	StoreID          uint      `gorm:"not null;index" json:"store_id"`                              // 店铺ID
	CategoryID       *uint     `gorm:"index" json:"category_id,omitempty"`                          // 分类ID
	TransactionType  string    `gorm:"type:varchar(20);not null" json:"transaction_type"`           // 类型（initial/adjustment/refund）
	GrossAmount      Money     `gorm:"type:decimal(20,2);not null" json:"gross_amount"`             // 成交总额（冲销为负数）
	CommissionAmount Money     `gorm:"type:decimal(20,2);not null" json:"commission_amount"`        // 佣金金额（带符号）
	Percent          Money     `gorm:"type:decimal(10,2);not null;default:0" json:"percent"`        // 计佣比例快照
	FixedAmount      Money     `gorm:"type:decimal(20,2);not null;default:0" json:"fixed_amount"`   // 固定佣金快照
	RuleID           *uint     `gorm:"index" json:"rule_id,omitempty"`                              // 命中规则ID（空为平台默认兜底）
	InvoiceID        *uint     `gorm:"index" json:"invoice_id,omitempty"`                           // 归属账单ID（空为未出账）
	CreatedAt        time.Time `gorm:"index" json:"created_at"`                                     // 记账时间
}

// TableName 指定表名
func (CommissionTransaction) TableName() string {
	return "commission_transactions"
}

// Billed 判断流水是否已被账单认领
func (t CommissionTransaction) Billed() bool {
	return t.InvoiceID != nil
}
