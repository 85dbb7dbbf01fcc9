package models

import (
	"time"
)

// Invoice 店铺佣金账单
// 金额在生成时一次性固定，之后只允许状态流转（Draft->Issued->Paid，Draft/Issued->Void）。
type Invoice struct {
	ID          uint       `gorm:"primarykey" json:"id"`                                     // 主键
	InvoiceNo   string     `gorm:"type:varchar(40);uniqueIndex" json:"invoice_no"`           // 账单号（顺序生成，唯一）
	StoreID     uint       `gorm:"not null;index" json:"store_id"`                           // 店铺ID
	PeriodStart time.Time  `gorm:"not null" json:"period_start"`                             // 账期开始
	PeriodEnd   time.Time  `gorm:"not null" json:"period_end"`                               // 账期结束
	Status      string     `gorm:"type:varchar(20);not null;index" json:"status"`            // 状态（draft/issued/paid/void）
	Subtotal    Money      `gorm:"type:decimal(20,2);not null" json:"subtotal"`              // 佣金小计
	TaxPercent  Money      `gorm:"type:decimal(10,2);not null;default:0" json:"tax_percent"` // 税率快照（百分比）
	TaxAmount   Money      `gorm:"type:decimal(20,2);not null" json:"tax_amount"`            // 税额
	Total       Money      `gorm:"type:decimal(20,2);not null" json:"total"`                 // 应付总额（= 小计 + 税额）
	DueAt       *time.Time `json:"due_at,omitempty"`                                         // 付款截止时间
	IssuedAt    *time.Time `json:"issued_at,omitempty"`                                      // 开具时间
	PaidAt      *time.Time `json:"paid_at,omitempty"`                                        // 支付时间
	VoidedAt    *time.Time `json:"voided_at,omitempty"`                                      // 作废时间
	CreatedAt   time.Time  `gorm:"index" json:"created_at"`                                  // 创建时间
	UpdatedAt   time.Time  `gorm:"index" json:"updated_at"`                                  // 更新时间

	Items []InvoiceItem `gorm:"foreignKey:InvoiceID" json:"items,omitempty"` // 账单明细
}

// TableName 指定表名
func (Invoice) TableName() string {
	return "invoices"
}
