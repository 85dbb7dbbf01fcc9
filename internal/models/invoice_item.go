package models

import (
	"time"
)

// InvoiceItem 账单明细（逐笔对应一条佣金流水，保留追溯链）
type InvoiceItem struct {
	ID            uint      `gorm:"primarykey" json:"id"`                                    // 主键
	InvoiceID     uint      `gorm:"not null;index" json:"invoice_id"`                        // 账单ID
	TransactionID uint      `gorm:"not null;uniqueIndex" json:"transaction_id"`              // 佣金流水ID（唯一，防止重复计费）
	EscrowRef     string    `gorm:"type:varchar(64);not null" json:"escrow_ref"`             // 结算事件引用快照
	RuleID        *uint     `gorm:"index" json:"rule_id,omitempty"`                          // 计佣规则快照
	CategoryID    *uint     `json:"category_id,omitempty"`                                   // 分类快照
	Amount        Money     `gorm:"type:decimal(20,2);not null" json:"amount"`               // 明细金额（带符号）
	CreatedAt     time.Time `json:"created_at"`                                              // 创建时间
}

// TableName 指定表名
func (InvoiceItem) TableName() string {
	return "invoice_items"
}
